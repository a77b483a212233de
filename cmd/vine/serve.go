package main

import (
	"context"
	stderrors "errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/vine/config"
	"github.com/Ramsey-B/vine/internal/repositories/catalogentity"
	"github.com/Ramsey-B/vine/internal/repositories/matchresult"
	"github.com/Ramsey-B/vine/internal/repositories/reviewitem"
	"github.com/Ramsey-B/vine/internal/repositories/skumapping"
	"github.com/Ramsey-B/vine/pkg/catalog"
	"github.com/Ramsey-B/vine/pkg/database"
	"github.com/Ramsey-B/vine/pkg/events"
	"github.com/Ramsey-B/vine/pkg/kafka"
	"github.com/Ramsey-B/vine/pkg/mappingstore"
	"github.com/Ramsey-B/vine/pkg/processor"
	"github.com/Ramsey-B/vine/pkg/redis"
	"github.com/Ramsey-B/vine/pkg/routes/health"
	"github.com/Ramsey-B/vine/pkg/startup"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Consume import lines from Kafka and match them until interrupted",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger, flush, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer flush()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := newTracerProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = tp.Shutdown(context.Background())
	}()

	srv := newServer(cfg, logger)
	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	for _, dep := range srv.dependencies(ctx) {
		boot.AddDependency(dep)
	}

	if err := boot.Start(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = boot.Stop(stopCtx)
		return err
	}
	logger.Info("vine is serving")

	<-ctx.Done()
	logger.Info("Shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return boot.Stop(stopCtx)
}

// server owns the long-lived pieces of `vine serve`. Dependencies fill it in as they start.
type server struct {
	cfg    *config.Config
	logger ectologger.Logger

	adapters adapters
	provider catalog.Provider
	index    *catalog.VersionedIndex
	matcher  *matcher
	proc     *processor.Processor
	health   *health.Checker
}

func newServer(cfg *config.Config, logger ectologger.Logger) *server {
	a := memoryAdapters()
	a.cache = mappingstore.NewMemoryCache(mappingstore.DefaultMemoryCacheConfig())
	index := newIndex(cfg, logger)
	return &server{
		cfg:      cfg,
		logger:   logger,
		adapters: a,
		index:    index,
		health: health.NewChecker(func() string {
			if snap := index.Current(); snap != nil {
				return snap.Version()
			}
			return ""
		}),
	}
}

func (s *server) dependencies(ctx context.Context) []startup.StartupDependency {
	var deps []startup.StartupDependency
	var storage []string

	if s.cfg.DatabaseHost != "" {
		storage = append(storage, "database")
		deps = append(deps, s.databaseDependency())
	} else {
		s.logger.Warn("DB_HOST is not set; mappings, review items and results are kept in memory")
	}
	if s.cfg.RedisEnabled {
		storage = append(storage, "redis")
		deps = append(deps, s.redisDependency())
	}

	deps = append(deps,
		s.eventsDependency(),
		s.catalogDependency(ctx, storage),
		&startup.Dependency{
			Name:     "matcher",
			Requires: append([]string{"catalog", "events"}, storage...),
			OnStart: func(context.Context) error {
				m, err := buildMatcher(s.cfg, s.logger, s.index, s.adapters)
				if err != nil {
					return err
				}
				s.matcher = m
				return nil
			},
		},
		s.processorDependency(),
		s.metricsDependency(),
	)
	if s.cfg.KafkaConsumerEnabled {
		deps = append(deps, s.consumerDependency())
	}
	return deps
}

func (s *server) databaseDependency() *startup.Dependency {
	var db database.DB
	return &startup.Dependency{
		Name: "database",
		OnStart: func(ctx context.Context) error {
			var err error
			db, err = connectDatabase(ctx, s.cfg, s.logger)
			if err != nil {
				return err
			}
			s.adapters.mappings = skumapping.NewRepository(db, s.logger)
			s.adapters.reviews = reviewitem.NewRepository(db, s.logger)
			s.adapters.results = matchresult.NewRepository(db, s.logger)
			s.provider = catalogentity.NewRepository(db, s.logger)
			s.health.AddCheck("database", db.PingContext)
			return nil
		},
		OnStop: func(context.Context) error {
			if db == nil {
				return nil
			}
			return db.Close()
		},
	}
}

func (s *server) redisDependency() *startup.Dependency {
	var client *redis.Client
	return &startup.Dependency{
		Name: "redis",
		OnStart: func(ctx context.Context) error {
			c, err := redis.NewClient(ctx, redis.Config{
				Addr:     s.cfg.RedisAddr,
				Password: s.cfg.RedisPassword,
				DB:       s.cfg.RedisDB,
			}, s.logger)
			if err != nil {
				return err
			}
			client = c
			s.adapters.cache = mappingstore.NewRedisCache(c, s.cfg.MappingTTL)
			s.adapters.locker = redis.NewLocker(c, "vine:lock:", s.cfg.ReviewLockTTL, s.cfg.ReviewLockTTL)
			s.health.AddCheck("redis", c.Ping)
			return nil
		},
		OnStop: func(context.Context) error {
			if client == nil {
				return nil
			}
			return client.Close()
		},
	}
}

func (s *server) eventsDependency() *startup.Dependency {
	var producer *kafka.Producer
	return &startup.Dependency{
		Name: "events",
		OnStart: func(context.Context) error {
			producer = kafka.NewProducer(kafka.ProducerConfig{
				Brokers:      s.cfg.KafkaBrokers,
				Topic:        s.cfg.KafkaOutputTopic,
				BatchSize:    s.cfg.KafkaBatchSize,
				BatchTimeout: time.Duration(s.cfg.KafkaBatchTimeout) * time.Millisecond,
				RequiredAcks: s.cfg.KafkaRequiredAcks,
				Compression:  s.cfg.KafkaCompression,
			}, s.logger)
			s.adapters.emitter = events.NewEmitter(producer, s.logger)
			return nil
		},
		OnStop: func(context.Context) error {
			if producer == nil {
				return nil
			}
			return producer.Close()
		},
	}
}

// catalogDependency builds the first index version and keeps refreshing it in the background.
// The seed file wins over the database when both are configured.
func (s *server) catalogDependency(ctx context.Context, storage []string) *startup.Dependency {
	var cancel context.CancelFunc
	done := make(chan struct{})
	return &startup.Dependency{
		Name:     "catalog",
		Requires: storage,
		OnStart: func(startCtx context.Context) error {
			provider := s.provider
			if s.cfg.CatalogSeedPath != "" {
				provider = catalog.FileProvider{Path: s.cfg.CatalogSeedPath}
			}
			if provider == nil {
				return stderrors.New("no catalog source: set CATALOG_SEED_PATH or DB_HOST")
			}

			refresher := catalog.NewRefresher(s.logger, s.index, provider, s.cfg.CatalogRefreshInterval)
			if err := refresher.Prime(startCtx); err != nil {
				return err
			}

			var loopCtx context.Context
			loopCtx, cancel = context.WithCancel(ctx)
			go func() {
				defer close(done)
				refresher.Loop(loopCtx)
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			if cancel == nil {
				return nil
			}
			cancel()
			<-done
			return nil
		},
	}
}

func (s *server) processorDependency() *startup.Dependency {
	return &startup.Dependency{
		Name:     "processor",
		Requires: []string{"matcher"},
		OnStart: func(ctx context.Context) error {
			s.proc = processor.NewProcessor(s.logger, s.matcher.service, s.adapters.emitter, processorConfig(s.cfg))
			// queued lines are drained on Stop even after a shutdown signal
			s.proc.Start(context.WithoutCancel(ctx))
			s.health.SetReady(true)
			return nil
		},
		OnStop: func(context.Context) error {
			s.health.SetReady(false)
			s.proc.Stop()
			return nil
		},
	}
}

func (s *server) consumerDependency() *startup.Dependency {
	var consumer *kafka.Consumer
	return &startup.Dependency{
		Name:     "consumer",
		Requires: []string{"processor"},
		OnStart: func(ctx context.Context) error {
			consumer = kafka.NewConsumer(*s.cfg, s.logger, s.proc.HandleMessage)
			s.health.AddCheck("kafka", consumer.Check)
			return consumer.Start(ctx)
		},
		OnStop: func(context.Context) error {
			if consumer == nil {
				return nil
			}
			return consumer.Stop()
		},
	}
}

func (s *server) metricsDependency() *startup.Dependency {
	var e *echo.Echo
	return &startup.Dependency{
		Name: "metrics",
		OnStart: func(ctx context.Context) error {
			e = echo.New()
			e.HideBanner = true
			e.HidePort = true
			s.health.RegisterRoutes(e)

			go func() {
				if err := e.Start(s.cfg.MetricsAddr); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
					s.logger.WithError(err).Error("Metrics server stopped")
				}
			}()
			s.logger.WithContext(ctx).WithField("addr", s.cfg.MetricsAddr).Info("Metrics server listening")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if e == nil {
				return nil
			}
			return e.Shutdown(ctx)
		},
	}
}
