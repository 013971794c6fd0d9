package neurogenesis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/types"
)

// Provisioner is the external collaborator that spins up a new agent for a
// concept. Implementations own process sandboxing and placement; the
// controller only consumes the resulting name and endpoint.
type Provisioner interface {
	Provision(ctx context.Context, concept string, agentType types.AgentType) (*types.Agent, error)
}

// HTTPProvisioner requests agents from a remote provisioning service.
type HTTPProvisioner struct {
	endpoint string
	http     *http.Client
	logger   *zap.Logger
}

// NewHTTPProvisioner creates a provisioner client against the given base
// endpoint. timeout bounds one provisioning call; it should stay well under
// the neurogenesis session ceiling.
func NewHTTPProvisioner(endpoint string, timeout time.Duration, logger *zap.Logger) *HTTPProvisioner {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPProvisioner{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: timeout},
		logger:   logger.With(zap.String("component", "neurogenesis.provisioner")),
	}
}

type provisionRequest struct {
	Concept   string          `json:"concept"`
	AgentType types.AgentType `json:"agent_type"`
}

type provisionResponse struct {
	AgentName string            `json:"agent_name"`
	Endpoint  string            `json:"endpoint"`
	IntentMap map[string]string `json:"intent_map,omitempty"`
}

// Provision implements Provisioner.
func (p *HTTPProvisioner) Provision(ctx context.Context, concept string, agentType types.AgentType) (*types.Agent, error) {
	body, err := json.Marshal(provisionRequest{Concept: concept, AgentType: agentType})
	if err != nil {
		return nil, types.NewError(types.ErrValidation, "marshal provision request").WithCause(err)
	}

	url := p.endpoint + "/provision"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewError(types.ErrValidation, "build provision request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, types.NewErrorf(types.ErrTransport, "provisioner unreachable: %s", url).WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, types.NewError(types.ErrTransport, "read provisioner response").WithCause(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, types.NewErrorf(types.ErrNeurogenesisFailed,
			"provisioner returned %d for concept %q", resp.StatusCode, concept)
	}

	var pr provisionResponse
	if err := json.Unmarshal(data, &pr); err != nil {
		return nil, types.NewError(types.ErrTransport, "malformed provisioner response").WithCause(err)
	}
	if pr.AgentName == "" || pr.Endpoint == "" {
		return nil, types.NewError(types.ErrNeurogenesisFailed, "provisioner returned incomplete agent")
	}

	agent := &types.Agent{
		Name:      pr.AgentName,
		Endpoint:  pr.Endpoint,
		Type:      agentType,
		IntentMap: pr.IntentMap,
	}
	if len(agent.IntentMap) == 0 {
		agent.IntentMap = map[string]string{"define": "/query"}
	}

	p.logger.Info("agent provisioned",
		zap.String("concept", concept),
		zap.String("agent", agent.Name),
		zap.String("endpoint", agent.Endpoint),
	)
	return agent, nil
}

var _ Provisioner = (*HTTPProvisioner)(nil)

// StaticProvisioner fabricates agent records against a fixed base endpoint
// without any remote call. Useful for embedded setups where every
// provisioned agent is served by one multiplexing worker host.
type StaticProvisioner struct {
	baseEndpoint string
}

// NewStaticProvisioner creates a StaticProvisioner.
func NewStaticProvisioner(baseEndpoint string) *StaticProvisioner {
	return &StaticProvisioner{baseEndpoint: strings.TrimRight(baseEndpoint, "/")}
}

// Provision implements Provisioner.
func (p *StaticProvisioner) Provision(ctx context.Context, concept string, agentType types.AgentType) (*types.Agent, error) {
	slug := types.NormalizeConcept(concept)
	name := fmt.Sprintf("%s_agent", slug)
	return &types.Agent{
		Name:      name,
		Endpoint:  fmt.Sprintf("%s/agents/%s", p.baseEndpoint, slug),
		Type:      agentType,
		IntentMap: defaultIntentMap(agentType),
	}, nil
}

var _ Provisioner = (*StaticProvisioner)(nil)

func defaultIntentMap(agentType types.AgentType) map[string]string {
	switch agentType {
	case types.AgentTypeFunctionExecutor:
		return map[string]string{"calculate": "/execute", "analyze": "/execute"}
	case types.AgentTypeHybrid:
		return map[string]string{
			"define": "/query", "explain": "/query", "summarize": "/query",
			"compare": "/query", "calculate": "/execute", "analyze": "/execute",
		}
	default:
		return map[string]string{
			"define": "/query", "explain": "/query",
			"summarize": "/query", "compare": "/query",
		}
	}
}
