package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/types"
)

// RedisConfig holds configuration for the Redis-backed store.
type RedisConfig struct {
	// Addr is the Redis server address.
	Addr string `yaml:"addr" json:"addr"`

	// Password is the Redis password, empty for none.
	Password string `yaml:"password" json:"password"`

	// DB is the Redis database number.
	DB int `yaml:"db" json:"db"`

	// PoolSize is the connection pool size.
	PoolSize int `yaml:"pool_size" json:"pool_size"`

	// MinIdleConns is the minimum number of idle connections.
	MinIdleConns int `yaml:"min_idle_conns" json:"min_idle_conns"`

	// KeyPrefix namespaces all keys written by the store.
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// DefaultRedisConfig returns a RedisConfig with sensible defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		KeyPrefix:    "myriad:",
	}
}

// RedisStore is a Store backed by Redis. Agents and edges are stored as
// JSON values under namespaced keys; a set per (concept, intent) pair
// indexes the edges for discovery. Every write touches a single edge, so
// plain SET/SADD pipelines give the required single-key atomicity.
type RedisStore struct {
	client  *redis.Client
	config  RedisConfig
	intents *IntentSet
	logger  *zap.Logger
	now     func() time.Time
}

// NewRedisStore connects to Redis and returns a store. The connection is
// verified with a ping before the store is handed out.
func NewRedisStore(config RedisConfig, intents *IntentSet, logger *zap.Logger) (*RedisStore, error) {
	if intents == nil {
		intents = NewIntentSet(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	s := &RedisStore{
		client:  client,
		config:  config,
		intents: intents,
		logger:  logger.With(zap.String("component", "redis_store")),
		now:     time.Now,
	}

	logger.Info("redis capability store initialized",
		zap.String("addr", config.Addr),
		zap.String("key_prefix", config.KeyPrefix),
	)
	return s, nil
}

func (s *RedisStore) agentKey(name string) string {
	return s.config.KeyPrefix + "agent:" + name
}

func (s *RedisStore) agentIndexKey() string {
	return s.config.KeyPrefix + "agents"
}

func (s *RedisStore) edgeKey(concept, intent, agentName string) string {
	return s.config.KeyPrefix + "edge:" + concept + ":" + intent + ":" + agentName
}

func (s *RedisStore) edgeIndexKey(concept, intent string) string {
	return s.config.KeyPrefix + "idx:" + concept + ":" + intent
}

// UpsertAgent implements Store.
func (s *RedisStore) UpsertAgent(ctx context.Context, agent *types.Agent) error {
	if err := validateAgent(agent, s.intents); err != nil {
		return err
	}

	stored := copyAgent(agent)
	if stored.RegisteredAt.IsZero() {
		stored.RegisteredAt = s.now().UTC()
	}
	// Re-registration keeps the original registration time.
	if raw, err := s.client.Get(ctx, s.agentKey(agent.Name)).Result(); err == nil {
		var existing types.Agent
		if json.Unmarshal([]byte(raw), &existing) == nil && !existing.RegisteredAt.IsZero() {
			stored.RegisteredAt = existing.RegisteredAt
		}
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal agent: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.agentKey(agent.Name), data, 0)
		pipe.SAdd(ctx, s.agentIndexKey(), agent.Name)
		return nil
	})
	if err != nil {
		return types.NewErrorf(types.ErrStoreUnavailable, "agent write failed").WithCause(err)
	}

	s.logger.Debug("agent upserted", zap.String("agent", agent.Name))
	return nil
}

// GetAgent implements Store.
func (s *RedisStore) GetAgent(ctx context.Context, name string) (*types.Agent, error) {
	raw, err := s.client.Get(ctx, s.agentKey(name)).Result()
	if err == redis.Nil {
		return nil, types.NewErrorf(types.ErrNotFound, "agent %s not found", name)
	}
	if err != nil {
		return nil, types.NewErrorf(types.ErrStoreUnavailable, "agent read failed").WithCause(err)
	}

	var agent types.Agent
	if err := json.Unmarshal([]byte(raw), &agent); err != nil {
		return nil, types.NewErrorf(types.ErrStoreUnavailable, "agent %s is corrupt", name).WithCause(err)
	}
	return &agent, nil
}

// ListAgents implements Store.
func (s *RedisStore) ListAgents(ctx context.Context) ([]*types.Agent, error) {
	names, err := s.client.SMembers(ctx, s.agentIndexKey()).Result()
	if err != nil {
		return nil, types.NewErrorf(types.ErrStoreUnavailable, "agent index read failed").WithCause(err)
	}

	agents := make([]*types.Agent, 0, len(names))
	for _, name := range names {
		agent, err := s.GetAgent(ctx, name)
		if err != nil {
			if types.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		agents = append(agents, agent)
	}
	return agents, nil
}

// UpsertEdge implements Store.
func (s *RedisStore) UpsertEdge(ctx context.Context, agentName, concept, intent string, weight float64) error {
	concept = types.NormalizeConcept(concept)
	if err := validateEdgeKey(agentName, concept, intent, s.intents); err != nil {
		return err
	}
	if _, err := s.GetAgent(ctx, agentName); err != nil {
		return err
	}

	edge := Edge{
		AgentName:   agentName,
		Concept:     concept,
		Intent:      intent,
		Weight:      ClampWeight(weight),
		LastUpdated: s.now().UTC(),
	}
	data, err := json.Marshal(edge)
	if err != nil {
		return fmt.Errorf("failed to marshal edge: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.edgeKey(concept, intent, agentName), data, 0)
		pipe.SAdd(ctx, s.edgeIndexKey(concept, intent), agentName)
		return nil
	})
	if err != nil {
		return types.NewErrorf(types.ErrStoreUnavailable, "edge write failed").WithCause(err)
	}

	s.logger.Debug("edge upserted",
		zap.String("agent", agentName),
		zap.String("concept", concept),
		zap.String("intent", intent),
		zap.Float64("weight", edge.Weight),
	)
	return nil
}

// FindEdges implements Store.
func (s *RedisStore) FindEdges(ctx context.Context, concept, intent string) ([]Edge, error) {
	concept = types.NormalizeConcept(concept)

	names, err := s.client.SMembers(ctx, s.edgeIndexKey(concept, intent)).Result()
	if err != nil {
		return nil, types.NewErrorf(types.ErrStoreUnavailable, "edge index read failed").WithCause(err)
	}
	if len(names) == 0 {
		return []Edge{}, nil
	}

	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = s.edgeKey(concept, intent, name)
	}

	raws, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, types.NewErrorf(types.ErrStoreUnavailable, "edge read failed").WithCause(err)
	}

	edges := make([]Edge, 0, len(raws))
	for _, raw := range raws {
		str, ok := raw.(string)
		if !ok {
			// Index entry without a value: the edge was removed out of
			// band, skip it.
			continue
		}
		var e Edge
		if err := json.Unmarshal([]byte(str), &e); err != nil {
			s.logger.Warn("skipping corrupt edge", zap.Error(err))
			continue
		}
		edges = append(edges, e)
	}
	sortEdges(edges)
	return edges, nil
}

// GetWeight implements Store.
func (s *RedisStore) GetWeight(ctx context.Context, agentName, concept, intent string) (float64, error) {
	concept = types.NormalizeConcept(concept)

	raw, err := s.client.Get(ctx, s.edgeKey(concept, intent, agentName)).Result()
	if err == redis.Nil {
		return DefaultWeight, nil
	}
	if err != nil {
		return 0, types.NewErrorf(types.ErrStoreUnavailable, "edge read failed").WithCause(err)
	}

	var e Edge
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return 0, types.NewErrorf(types.ErrStoreUnavailable, "edge is corrupt").WithCause(err)
	}
	return e.Weight, nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	s.logger.Info("closing redis capability store")
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
