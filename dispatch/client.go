package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/types"
)

// ClientConfig controls how agent endpoints are called.
type ClientConfig struct {
	// Timeout bounds a single attempt, connection included.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// MaxRetries is the number of extra attempts after the first. Only
	// transport faults are retried; structured agent errors never are.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// InitialDelay is the backoff before the first retry.
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`

	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration `yaml:"max_delay" json:"max_delay"`

	// Multiplier grows the delay between consecutive retries.
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`

	// Jitter randomizes the delay by up to 25% in either direction.
	Jitter bool `yaml:"jitter" json:"jitter"`
}

// DefaultClientConfig returns the default agent client configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:      10 * time.Second,
		MaxRetries:   1,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Client sends queries to agent endpoints over HTTP.
type Client struct {
	http    *http.Client
	config  ClientConfig
	logger  *zap.Logger
	onRetry func(agent string)
}

// NewClient creates an agent client. onRetry, when non-nil, is invoked once
// per retried attempt and is how the dispatcher counts retries.
func NewClient(config ClientConfig, logger *zap.Logger, onRetry func(agent string)) *Client {
	if config.Timeout <= 0 {
		config.Timeout = DefaultClientConfig().Timeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = DefaultClientConfig().InitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = DefaultClientConfig().MaxDelay
	}
	if config.Multiplier < 1.0 {
		config.Multiplier = DefaultClientConfig().Multiplier
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:    &http.Client{Timeout: config.Timeout},
		config:  config,
		logger:  logger.With(zap.String("component", "dispatch.client")),
		onRetry: onRetry,
	}
}

// Query posts the request to the agent's endpoint for the request's intent.
// Transport faults (unreachable endpoint, timeout, 5xx, malformed body) are
// retried up to the configured bound. A parsed response is returned even
// when the agent reports an application-level failure; callers check OK().
func (c *Client) Query(ctx context.Context, agent *types.Agent, req *types.AgentRequest) (*types.AgentResponse, error) {
	path, ok := agent.IntentPath(req.Intent)
	if !ok {
		return nil, types.NewErrorf(types.ErrValidation,
			"agent %q does not serve intent %q", agent.Name, req.Intent)
	}
	url := strings.TrimRight(agent.Endpoint, "/") + path

	body, err := json.Marshal(req)
	if err != nil {
		return nil, types.NewError(types.ErrValidation, "marshal agent request").WithCause(err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			c.logger.Debug("retrying agent call",
				zap.String("agent", agent.Name),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if c.onRetry != nil {
				c.onRetry(agent.Name)
			}
			select {
			case <-ctx.Done():
				return nil, types.NewError(types.ErrTransport, "agent call canceled").WithCause(ctx.Err())
			case <-time.After(delay):
			}
		}

		resp, err := c.attempt(ctx, url, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !types.IsRetryable(err) {
			return nil, err
		}
	}

	c.logger.Warn("agent call retries exhausted",
		zap.String("agent", agent.Name),
		zap.String("url", url),
		zap.Int("attempts", c.config.MaxRetries+1),
		zap.Error(lastErr),
	)
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, url string, body []byte) (*types.AgentResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewError(types.ErrValidation, "build agent request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, types.NewErrorf(types.ErrTransport, "agent unreachable: %s", url).WithCause(err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 4<<20))
	if err != nil {
		return nil, types.NewError(types.ErrTransport, "read agent response").WithCause(err)
	}

	switch {
	case httpResp.StatusCode >= 500:
		// A 5xx carrying the structured response shape is the agent
		// deterministically reporting its own failure; retrying cannot
		// change that outcome. Only bare 5xx counts as a transport fault.
		if isStructuredResponse(data) {
			return nil, types.NewErrorf(types.ErrValidation,
				"agent reported failure with %d: %s", httpResp.StatusCode, truncate(data, 200))
		}
		return nil, types.NewErrorf(types.ErrTransport,
			"agent returned %d: %s", httpResp.StatusCode, truncate(data, 200))
	case httpResp.StatusCode >= 400:
		return nil, types.NewErrorf(types.ErrValidation,
			"agent rejected request with %d: %s", httpResp.StatusCode, truncate(data, 200))
	}

	var resp types.AgentResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, types.NewError(types.ErrTransport, "malformed agent response").WithCause(err)
	}
	return &resp, nil
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := float64(c.config.InitialDelay) * math.Pow(c.config.Multiplier, float64(attempt-1))
	if delay > float64(c.config.MaxDelay) {
		delay = float64(c.config.MaxDelay)
	}
	if c.config.Jitter {
		jitter := delay * 0.25
		delay = delay + (rand.Float64()*2-1)*jitter
	}
	if delay < float64(c.config.InitialDelay) {
		delay = float64(c.config.InitialDelay)
	}
	return time.Duration(delay)
}

// isStructuredResponse reports whether the body parses as an agent
// response envelope.
func isStructuredResponse(data []byte) bool {
	var resp types.AgentResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return false
	}
	return resp.AgentName != "" && resp.Status != ""
}

func truncate(data []byte, n int) string {
	s := string(data)
	if len(s) > n {
		return fmt.Sprintf("%s...", s[:n])
	}
	return s
}
