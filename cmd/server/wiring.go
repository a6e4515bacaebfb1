package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"eligo/internal/audit"
	"eligo/internal/catalog"
	catalogcache "eligo/internal/catalog/cache"
	catalogstore "eligo/internal/catalog/store"
	"eligo/internal/eligibility"
	jwttoken "eligo/internal/jwt_token"
	"eligo/internal/migration/identity"
	migmetrics "eligo/internal/migration/metrics"
	migservice "eligo/internal/migration/service"
	migstore "eligo/internal/migration/store"
	"eligo/internal/platform/config"
	"eligo/internal/platform/kafka"
	"eligo/internal/platform/postgres"
	platformredis "eligo/internal/platform/redis"
	rlmetrics "eligo/internal/ratelimit/metrics"
	rlmodels "eligo/internal/ratelimit/models"
	rlservice "eligo/internal/ratelimit/service"
	rlstore "eligo/internal/ratelimit/store"
	simmetrics "eligo/internal/simulation/metrics"
	simservice "eligo/internal/simulation/service"
	simstore "eligo/internal/simulation/store"
	auditmodels "eligo/pkg/platform/audit"
	auditmemory "eligo/pkg/platform/audit/store/memory"
	auditpostgres "eligo/pkg/platform/audit/store/postgres"
)

// auditStore is both the append side used by services and the outbox read
// by the relay.
type auditStore interface {
	auditmodels.Store
	auditmodels.OutboxSource
}

// sessionStore is what both services need from the temporary session store.
type sessionStore interface {
	simservice.Store
	migservice.SessionStore
}

type accountStore interface {
	migservice.AccountStore
	migservice.Transactor
}

type app struct {
	db       *sql.DB
	redis    *platformredis.Client
	producer *kafka.Producer

	auditStore auditStore
	simulation *simservice.Service
	migration  *migservice.Service
	limiter    *rlservice.Limiter
}

// buildApp selects Postgres, Redis, Kafka and the hosted identity provider
// when they are configured and in-memory stand-ins otherwise.
func buildApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.db = db

	var (
		sessions sessionStore
		accounts accountStore
		products catalog.LivenessReader
	)
	if db != nil {
		if cfg.Database.AutoMigrate {
			if err := postgres.ApplySchema(ctx, db); err != nil {
				return nil, err
			}
		}
		catalogPG := catalogstore.NewPostgres(db)
		if err := catalogPG.Seed(ctx, catalog.DefaultProducts()); err != nil {
			return nil, fmt.Errorf("seed catalog: %w", err)
		}
		sessions = simstore.NewPostgres(db)
		accounts = pgAccounts{
			PostgresStore: migstore.NewPostgres(db),
			PostgresTx:    migstore.NewPostgresTx(db),
		}
		products = catalogPG
		a.auditStore = auditpostgres.New(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		sessions = simstore.NewInMemoryStore()
		accounts = migstore.NewInMemoryStore()
		products = catalogstore.NewInMemoryStore(catalog.DefaultProducts()...)
		a.auditStore = auditmemory.NewInMemoryStore()
	}

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.redis = redisClient
	liveness := products
	if redisClient != nil {
		liveness = catalogcache.NewRedisLiveness(redisClient, products, cfg.Catalog.CacheTTL, log)
	}

	if cfg.RateLimit.Enabled {
		var window rlservice.Store = rlstore.NewInMemoryStore()
		if redisClient != nil {
			window = rlstore.NewRedisStore(redisClient)
		}
		a.limiter, err = rlservice.New(window, map[rlmodels.EndpointClass]rlmodels.Limit{
			rlmodels.ClassGlobal:    {RequestsPerWindow: cfg.RateLimit.GlobalRequests, Window: cfg.RateLimit.GlobalWindow},
			rlmodels.ClassMigration: {RequestsPerWindow: cfg.RateLimit.MigrationRequests, Window: cfg.RateLimit.MigrationWindow},
		}, rlservice.WithLogger(log), rlservice.WithMetrics(rlmetrics.New()))
		if err != nil {
			return nil, err
		}
	}

	identities, err := buildIdentity(cfg, log)
	if err != nil {
		return nil, err
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, log)
		if err != nil {
			return nil, err
		}
		a.producer = producer
		if err := producer.EnsureTopic(ctx, 3, 1); err != nil {
			log.Warn("could not ensure audit topic", "topic", cfg.Kafka.AuditTopic, "error", err)
		}
	}

	publisher := audit.NewPublisher(a.auditStore, log)
	tokens := jwttoken.NewJWTService(cfg.Session.SigningKey)

	a.simulation = simservice.New(sessions, eligibility.NewEngine(), tokens,
		simservice.WithLogger(log),
		simservice.WithMetrics(simmetrics.New()),
		simservice.WithAuditPublisher(publisher),
		simservice.WithTTL(cfg.Session.TTL),
		simservice.WithGracePeriod(cfg.Session.GracePeriod),
	)
	a.migration = migservice.New(sessions, accounts, accounts, tokens, identities,
		catalog.NewMapper(liveness, catalog.WithLogger(log)),
		migservice.WithLogger(log),
		migservice.WithMetrics(migmetrics.New()),
		migservice.WithAuditPublisher(publisher),
		migservice.WithReservationLease(cfg.Session.ReservationLease),
	)

	ok = true
	return a, nil
}

func buildIdentity(cfg config.Config, log *slog.Logger) (identity.Provider, error) {
	if cfg.Identity.BaseURL == "" {
		if cfg.IsProduction() {
			return nil, errors.New("identity provider is required in production")
		}
		log.Warn("IDENTITY_URL not set, using in-memory identity provider")
		return identity.NewInMemoryProvider(), nil
	}
	return identity.NewGoTrue(identity.GoTrueConfig{
		BaseURL:          cfg.Identity.BaseURL,
		ServiceKey:       cfg.Identity.ServiceKey,
		Timeout:          cfg.Identity.Timeout,
		FailureThreshold: cfg.Identity.BreakerFailure,
	}, log)
}

// Health reports the first failing backing service.
func (a *app) Health(ctx context.Context) error {
	if a.db != nil {
		if err := a.db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Health(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if a.producer != nil {
		if err := a.producer.Health(ctx); err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
	}
	return nil
}

func (a *app) Close() {
	if a.producer != nil {
		a.producer.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

type pgAccounts struct {
	*migstore.PostgresStore
	*migstore.PostgresTx
}
