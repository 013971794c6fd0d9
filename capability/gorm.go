package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/types"
)

// agentRecord is the persisted form of a types.Agent.
type agentRecord struct {
	Name         string    `gorm:"primaryKey;size:128"`
	Endpoint     string    `gorm:"size:512;not null"`
	AgentType    string    `gorm:"size:32;not null"`
	IntentMap    string    `gorm:"type:text;not null"`
	Inactive     bool      `gorm:"not null;default:false"`
	RegisteredAt time.Time `gorm:"not null"`
}

func (agentRecord) TableName() string { return "agents" }

// edgeRecord is the persisted form of an Edge. The composite primary key
// enforces the one-edge-per-(agent, concept, intent) invariant at the
// schema level.
type edgeRecord struct {
	AgentName   string    `gorm:"primaryKey;size:128"`
	Concept     string    `gorm:"primaryKey;size:128;index:idx_concept_intent,priority:1"`
	Intent      string    `gorm:"primaryKey;size:64;index:idx_concept_intent,priority:2"`
	Weight      float64   `gorm:"not null"`
	LastUpdated time.Time `gorm:"not null"`
}

func (edgeRecord) TableName() string { return "capability_edges" }

// GormStore is a Store backed by a relational database through GORM. Any
// dialect GORM supports will do; tests run against the pure-Go SQLite
// driver.
type GormStore struct {
	db      *gorm.DB
	intents *IntentSet
	logger  *zap.Logger
	now     func() time.Time
}

// NewGormStore migrates the schema and returns a SQL-backed store.
func NewGormStore(db *gorm.DB, intents *IntentSet, logger *zap.Logger) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if intents == nil {
		intents = NewIntentSet(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := db.AutoMigrate(&agentRecord{}, &edgeRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate capability schema: %w", err)
	}

	return &GormStore{
		db:      db,
		intents: intents,
		logger:  logger.With(zap.String("component", "gorm_store")),
		now:     time.Now,
	}, nil
}

// UpsertAgent implements Store.
func (s *GormStore) UpsertAgent(ctx context.Context, agent *types.Agent) error {
	if err := validateAgent(agent, s.intents); err != nil {
		return err
	}

	intentMap, err := json.Marshal(agent.IntentMap)
	if err != nil {
		return fmt.Errorf("failed to marshal intent map: %w", err)
	}

	registeredAt := agent.RegisteredAt
	if registeredAt.IsZero() {
		registeredAt = s.now().UTC()
	}

	rec := agentRecord{
		Name:         agent.Name,
		Endpoint:     agent.Endpoint,
		AgentType:    string(agent.Type),
		IntentMap:    string(intentMap),
		Inactive:     agent.Inactive,
		RegisteredAt: registeredAt,
	}

	// RegisteredAt is write-once: re-registration only refreshes the
	// mutable columns.
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"endpoint", "agent_type", "intent_map", "inactive"}),
	}).Create(&rec).Error
	if err != nil {
		return types.NewErrorf(types.ErrStoreUnavailable, "agent write failed").WithCause(err)
	}

	s.logger.Debug("agent upserted", zap.String("agent", agent.Name))
	return nil
}

// GetAgent implements Store.
func (s *GormStore) GetAgent(ctx context.Context, name string) (*types.Agent, error) {
	var rec agentRecord
	err := s.db.WithContext(ctx).First(&rec, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewErrorf(types.ErrNotFound, "agent %s not found", name)
	}
	if err != nil {
		return nil, types.NewErrorf(types.ErrStoreUnavailable, "agent read failed").WithCause(err)
	}
	return recordToAgent(&rec)
}

// ListAgents implements Store.
func (s *GormStore) ListAgents(ctx context.Context) ([]*types.Agent, error) {
	var recs []agentRecord
	if err := s.db.WithContext(ctx).Find(&recs).Error; err != nil {
		return nil, types.NewErrorf(types.ErrStoreUnavailable, "agent list failed").WithCause(err)
	}

	agents := make([]*types.Agent, 0, len(recs))
	for i := range recs {
		agent, err := recordToAgent(&recs[i])
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	return agents, nil
}

// UpsertEdge implements Store.
func (s *GormStore) UpsertEdge(ctx context.Context, agentName, concept, intent string, weight float64) error {
	concept = types.NormalizeConcept(concept)
	if err := validateEdgeKey(agentName, concept, intent, s.intents); err != nil {
		return err
	}
	if _, err := s.GetAgent(ctx, agentName); err != nil {
		return err
	}

	rec := edgeRecord{
		AgentName:   agentName,
		Concept:     concept,
		Intent:      intent,
		Weight:      ClampWeight(weight),
		LastUpdated: s.now().UTC(),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "agent_name"}, {Name: "concept"}, {Name: "intent"}},
		DoUpdates: clause.AssignmentColumns([]string{"weight", "last_updated"}),
	}).Create(&rec).Error
	if err != nil {
		return types.NewErrorf(types.ErrStoreUnavailable, "edge write failed").WithCause(err)
	}

	s.logger.Debug("edge upserted",
		zap.String("agent", agentName),
		zap.String("concept", concept),
		zap.String("intent", intent),
		zap.Float64("weight", rec.Weight),
	)
	return nil
}

// FindEdges implements Store.
func (s *GormStore) FindEdges(ctx context.Context, concept, intent string) ([]Edge, error) {
	concept = types.NormalizeConcept(concept)

	var recs []edgeRecord
	err := s.db.WithContext(ctx).
		Where("concept = ? AND intent = ?", concept, intent).
		Order("weight DESC, last_updated DESC").
		Find(&recs).Error
	if err != nil {
		return nil, types.NewErrorf(types.ErrStoreUnavailable, "edge query failed").WithCause(err)
	}

	edges := make([]Edge, 0, len(recs))
	for _, r := range recs {
		edges = append(edges, Edge{
			AgentName:   r.AgentName,
			Concept:     r.Concept,
			Intent:      r.Intent,
			Weight:      r.Weight,
			LastUpdated: r.LastUpdated,
		})
	}
	return edges, nil
}

// GetWeight implements Store.
func (s *GormStore) GetWeight(ctx context.Context, agentName, concept, intent string) (float64, error) {
	concept = types.NormalizeConcept(concept)

	var rec edgeRecord
	err := s.db.WithContext(ctx).
		First(&rec, "agent_name = ? AND concept = ? AND intent = ?", agentName, concept, intent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultWeight, nil
	}
	if err != nil {
		return 0, types.NewErrorf(types.ErrStoreUnavailable, "edge read failed").WithCause(err)
	}
	return rec.Weight, nil
}

// Close implements Store.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func recordToAgent(rec *agentRecord) (*types.Agent, error) {
	var intentMap map[string]string
	if err := json.Unmarshal([]byte(rec.IntentMap), &intentMap); err != nil {
		return nil, types.NewErrorf(types.ErrStoreUnavailable, "agent %s intent map is corrupt", rec.Name).WithCause(err)
	}
	return &types.Agent{
		Name:         rec.Name,
		Endpoint:     rec.Endpoint,
		Type:         types.AgentType(rec.AgentType),
		IntentMap:    intentMap,
		Inactive:     rec.Inactive,
		RegisteredAt: rec.RegisteredAt,
	}, nil
}

var _ Store = (*GormStore)(nil)
