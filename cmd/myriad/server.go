package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/api/handlers"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/capability"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/config"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/discovery"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/dispatch"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/internal/metrics"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/internal/server"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/neurogenesis"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/reinforce"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/types"
)

// Server assembles the routing engine from configuration and runs the
// API and metrics listeners.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	store      capability.Store
	controller *neurogenesis.Controller
	collector  *metrics.Collector

	httpManager    *server.Manager
	metricsManager *server.Manager
}

// NewServer creates an unstarted server.
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, logger: logger}
}

// Start builds all components and begins listening. It returns once
// both listeners are bound.
func (s *Server) Start() error {
	s.collector = metrics.NewCollector("myriad", nil, s.logger)

	if err := s.initStore(); err != nil {
		return err
	}
	if err := s.seedAgents(); err != nil {
		return err
	}

	selector := discovery.NewSelector(s.store, discovery.Config{
		MinConfidence: s.cfg.Routing.MinConfidence,
	}, s.logger)

	engine := reinforce.NewEngine(s.store, reinforce.Config{
		LearningRate: s.cfg.Reinforce.LearningRate,
		DecayFloor:   s.cfg.Reinforce.DecayFloor,
		Intents:      s.cfg.Routing.Intents,
		LockStripes:  s.cfg.Reinforce.LockStripes,
	}, s.logger)

	clientCfg := dispatch.DefaultClientConfig()
	clientCfg.Timeout = s.cfg.Dispatch.AgentTimeout
	clientCfg.MaxRetries = s.cfg.Dispatch.MaxRetries
	clientCfg.InitialDelay = s.cfg.Dispatch.RetryDelay
	client := dispatch.NewClient(clientCfg, s.logger, s.collector.RecordAgentRetry)

	expander, err := s.initExpander()
	if err != nil {
		return err
	}

	coordinator := dispatch.NewCoordinator(selector, client, engine, expander, s.collector, dispatch.Config{
		MaxWorkers:   s.cfg.Dispatch.MaxWorkers,
		BatchTimeout: s.cfg.Dispatch.BatchTimeout,
	}, s.logger)

	if err := s.startHTTPServer(coordinator, selector, engine); err != nil {
		return err
	}
	if err := s.startMetricsServer(); err != nil {
		s.httpManager.Shutdown(context.Background())
		return err
	}
	return nil
}

func (s *Server) initStore() error {
	intents := capability.NewIntentSet(s.cfg.Routing.Intents)

	switch s.cfg.Store.Backend {
	case "memory", "":
		s.store = capability.NewMemoryStore(intents, s.logger)

	case "redis":
		store, err := capability.NewRedisStore(capability.RedisConfig{
			Addr:         s.cfg.Redis.Addr,
			Password:     s.cfg.Redis.Password,
			DB:           s.cfg.Redis.DB,
			PoolSize:     s.cfg.Redis.PoolSize,
			MinIdleConns: s.cfg.Redis.MinIdleConns,
			KeyPrefix:    s.cfg.Redis.KeyPrefix,
		}, intents, s.logger)
		if err != nil {
			return fmt.Errorf("redis store: %w", err)
		}
		s.store = store

	case "database":
		db, err := gorm.Open(sqlite.Open(s.cfg.Database.DSN), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("database pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(s.cfg.Database.MaxOpenConns)
		sqlDB.SetMaxIdleConns(s.cfg.Database.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(s.cfg.Database.ConnMaxLifetime)

		store, err := capability.NewGormStore(db, intents, s.logger)
		if err != nil {
			return fmt.Errorf("database store: %w", err)
		}
		s.store = store

	default:
		return fmt.Errorf("unknown store backend: %q", s.cfg.Store.Backend)
	}

	s.logger.Info("capability store ready", zap.String("backend", s.cfg.Store.Backend))
	return nil
}

// seedAgents registers the agents listed in configuration. Seeding is
// idempotent, so restarts do not duplicate anything.
func (s *Server) seedAgents() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, seed := range s.cfg.Agents {
		agent := &types.Agent{
			Name:      seed.Name,
			Endpoint:  seed.Endpoint,
			Type:      seed.Type,
			IntentMap: seed.IntentMap,
		}
		if err := s.store.UpsertAgent(ctx, agent); err != nil {
			return fmt.Errorf("seed agent %s: %w", seed.Name, err)
		}
	}
	if len(s.cfg.Agents) > 0 {
		s.logger.Info("seeded agents", zap.Int("count", len(s.cfg.Agents)))
	}
	return nil
}

// initExpander builds the neurogenesis controller and adapts it to the
// coordinator's expansion hook. A disabled controller leaves misses as
// routing failures.
func (s *Server) initExpander() (dispatch.Expander, error) {
	if !s.cfg.Neurogenesis.Enabled {
		s.logger.Info("neurogenesis disabled")
		return nil, nil
	}

	var source neurogenesis.KnowledgeSource
	corpus, err := loadCorpus(s.cfg.Neurogenesis.CorpusPath)
	if err != nil {
		return nil, err
	}
	source = neurogenesis.NewCorpusSource(corpus)
	if s.cfg.Neurogenesis.SourceRateLimit > 0 {
		burst := s.cfg.Neurogenesis.SourceRateBurst
		if burst <= 0 {
			burst = 1
		}
		source = neurogenesis.NewRateLimitedSource(source, rate.Limit(s.cfg.Neurogenesis.SourceRateLimit), burst)
	}

	var provisioner neurogenesis.Provisioner
	if s.cfg.Neurogenesis.ProvisionerEndpoint != "" {
		provisioner = neurogenesis.NewHTTPProvisioner(
			s.cfg.Neurogenesis.ProvisionerEndpoint,
			s.cfg.Neurogenesis.ProvisionerTimeout,
			s.logger,
		)
	}

	s.controller = neurogenesis.NewController(s.store, source, provisioner, neurogenesis.Config{
		CreationThreshold: s.cfg.Neurogenesis.CreationThreshold,
		BaseConfidence:    s.cfg.Neurogenesis.BaseConfidence,
		SourceWeight:      s.cfg.Neurogenesis.SourceWeight,
		MaxConfidence:     s.cfg.Neurogenesis.MaxConfidence,
		TransferFactor:    s.cfg.Neurogenesis.TransferFactor,
		SessionTimeout:    s.cfg.Neurogenesis.SessionTimeout,
		MaxSources:        s.cfg.Neurogenesis.MaxSources,
		Intents:           s.cfg.Routing.Intents,
	}, s.logger)

	controller := s.controller
	collector := s.collector
	return dispatch.ExpanderFunc(func(ctx context.Context, concept, intent string) (*dispatch.Expansion, error) {
		start := time.Now()
		outcome, err := controller.Expand(ctx, concept, intent)
		if err != nil {
			collector.RecordNeurogenesis("failed", time.Since(start))
			return nil, err
		}
		collector.RecordNeurogenesis(string(outcome.State), time.Since(start))
		return &dispatch.Expansion{
			Agent: outcome.Agent,
			Data:  outcome.Acquisition,
		}, nil
	}), nil
}

// loadCorpus reads the knowledge corpus YAML. An empty path yields an
// empty corpus, which makes every expansion fail for lack of sources.
func loadCorpus(path string) (map[string]neurogenesis.CorpusEntry, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	var entries map[string]neurogenesis.CorpusEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse corpus: %w", err)
	}
	return entries, nil
}

func (s *Server) startHTTPServer(coordinator *dispatch.Coordinator, selector *discovery.Selector, engine *reinforce.Engine) error {
	health := handlers.NewHealthHandler(s.logger)
	health.RegisterCheck(handlers.CheckFunc{
		CheckName: "store",
		Fn: func(ctx context.Context) error {
			_, err := s.store.ListAgents(ctx)
			return err
		},
	})

	var transferrer handlers.Transferrer
	if s.controller != nil {
		transferrer = s.controller
	}

	router := server.NewRouter(server.Handlers{
		Dispatch: handlers.NewDispatchHandler(coordinator, 0, s.logger),
		Agents:   handlers.NewAgentsHandler(s.store, selector, s.logger),
		Weights:  handlers.NewWeightsHandler(engine, transferrer, s.collector, s.logger),
		Health:   health,
	}, s.collector, s.logger)

	s.httpManager = server.NewManager(router, server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}
	s.logger.Info("api server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s.metricsManager = server.NewManager(mux, server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}
	s.logger.Info("metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// WaitForShutdown blocks until a termination signal arrives, then
// shuts everything down in order.
func (s *Server) WaitForShutdown() {
	s.httpManager.WaitForShutdown()
	s.Shutdown()
}

// Shutdown closes the listeners and the store.
func (s *Server) Shutdown() {
	ctx := context.Background()

	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown", zap.Error(err))
		}
	}
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("api server shutdown", zap.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("store close", zap.Error(err))
		}
	}
	s.logger.Info("shutdown complete")
}
