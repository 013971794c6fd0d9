package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/internal/metrics"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/reinforce"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/types"
)

// Transferrer seeds a new concept's edges from an existing one.
type Transferrer interface {
	Transfer(ctx context.Context, sourceConcept, targetConcept string) (int, error)
}

// WeightsHandler exposes the reinforcement and decay surface for
// operational tooling, independent of live traffic.
type WeightsHandler struct {
	engine      *reinforce.Engine
	transferrer Transferrer
	collector   *metrics.Collector
	logger      *zap.Logger
}

// NewWeightsHandler creates a WeightsHandler. transferrer and collector may
// be nil when cross-concept transfer or metrics are disabled.
func NewWeightsHandler(engine *reinforce.Engine, transferrer Transferrer, collector *metrics.Collector, logger *zap.Logger) *WeightsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeightsHandler{
		engine:      engine,
		transferrer: transferrer,
		collector:   collector,
		logger:      logger.With(zap.String("handler", "weights")),
	}
}

// ReinforceRequest is one explicit reinforcement event.
type ReinforceRequest struct {
	AgentName string `json:"agent_name"`
	Concept   string `json:"concept"`
	Intent    string `json:"intent"`
	Success   bool   `json:"success"`
}

// ReinforceResponse carries the weight after the update.
type ReinforceResponse struct {
	Weight float64 `json:"weight"`
}

// HandleReinforce applies one reinforcement event.
// POST /v1/weights/reinforce
func (h *WeightsHandler) HandleReinforce(w http.ResponseWriter, r *http.Request) {
	var req ReinforceRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.AgentName == "" || req.Concept == "" || req.Intent == "" {
		WriteErrorMessage(w, types.ErrValidation, "agent_name, concept, and intent are required", h.logger)
		return
	}

	weight, err := h.engine.Reinforce(r.Context(), req.AgentName, req.Concept, req.Intent, req.Success)
	if err != nil {
		writeTypedError(w, err, h.logger)
		return
	}
	if h.collector != nil {
		h.collector.RecordWeightUpdate(req.Success)
	}
	WriteSuccess(w, ReinforceResponse{Weight: weight})
}

// DecayRequest is one decay sweep over a concept.
type DecayRequest struct {
	Concept string  `json:"concept"`
	Rate    float64 `json:"rate"`
}

// DecayResponse reports how many edges the sweep touched.
type DecayResponse struct {
	EdgesDecayed int `json:"edges_decayed"`
}

// HandleDecay decays every edge of a concept.
// POST /v1/weights/decay
func (h *WeightsHandler) HandleDecay(w http.ResponseWriter, r *http.Request) {
	var req DecayRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Concept == "" {
		WriteErrorMessage(w, types.ErrValidation, "concept is required", h.logger)
		return
	}

	touched, err := h.engine.Decay(r.Context(), req.Concept, req.Rate)
	if err != nil {
		writeTypedError(w, err, h.logger)
		return
	}
	if h.collector != nil {
		h.collector.RecordDecay(touched)
	}
	WriteSuccess(w, DecayResponse{EdgesDecayed: touched})
}

// TransferRequest seeds target_concept from source_concept's edges.
type TransferRequest struct {
	SourceConcept string `json:"source_concept"`
	TargetConcept string `json:"target_concept"`
}

// TransferResponse reports how many edges were created.
type TransferResponse struct {
	EdgesCreated int `json:"edges_created"`
}

// HandleTransfer copies a concept's edges onto a new concept at a
// discounted weight.
// POST /v1/weights/transfer
func (h *WeightsHandler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	if h.transferrer == nil {
		WriteErrorMessage(w, types.ErrNeurogenesisFailed, "knowledge transfer is disabled", h.logger)
		return
	}

	var req TransferRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.SourceConcept == "" || req.TargetConcept == "" {
		WriteErrorMessage(w, types.ErrValidation, "source_concept and target_concept are required", h.logger)
		return
	}

	created, err := h.transferrer.Transfer(r.Context(), req.SourceConcept, req.TargetConcept)
	if err != nil {
		writeTypedError(w, err, h.logger)
		return
	}
	WriteSuccess(w, TransferResponse{EdgesCreated: created})
}

func writeTypedError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var typed *types.Error
	if errors.As(err, &typed) {
		WriteError(w, typed, logger)
		return
	}
	WriteErrorMessage(w, types.ErrStoreUnavailable, err.Error(), logger)
}
