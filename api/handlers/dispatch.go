package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/dispatch"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/types"
)

// DispatchHandler exposes the batch dispatch surface.
type DispatchHandler struct {
	coordinator *dispatch.Coordinator
	maxTasks    int
	logger      *zap.Logger
}

// NewDispatchHandler creates a DispatchHandler. maxTasks bounds one batch;
// zero or negative means 256.
func NewDispatchHandler(coordinator *dispatch.Coordinator, maxTasks int, logger *zap.Logger) *DispatchHandler {
	if maxTasks <= 0 {
		maxTasks = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DispatchHandler{
		coordinator: coordinator,
		maxTasks:    maxTasks,
		logger:      logger.With(zap.String("handler", "dispatch")),
	}
}

// DispatchRequest is the batch dispatch request body.
type DispatchRequest struct {
	Tasks []types.Task `json:"tasks"`
}

// DispatchResponse maps task IDs to their results.
type DispatchResponse struct {
	Results map[string]types.TaskResult `json:"results"`
}

// HandleDispatch processes a batch of tasks.
// POST /v1/dispatch
func (h *DispatchHandler) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if len(req.Tasks) == 0 {
		WriteErrorMessage(w, types.ErrValidation, "tasks must not be empty", h.logger)
		return
	}
	if len(req.Tasks) > h.maxTasks {
		WriteErrorMessage(w, types.ErrValidation, "batch exceeds the task limit", h.logger)
		return
	}
	for i, task := range req.Tasks {
		if task.Concept == "" || task.Intent == "" {
			h.logger.Warn("rejecting malformed task",
				zap.Int("index", i),
				zap.String("task_id", task.TaskID),
			)
			WriteErrorMessage(w, types.ErrValidation, "every task needs a concept and an intent", h.logger)
			return
		}
	}

	results := h.coordinator.ProcessBatch(r.Context(), req.Tasks)
	WriteSuccess(w, DispatchResponse{Results: results})
}
