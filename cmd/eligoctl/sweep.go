package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"eligo/internal/audit"
	"eligo/internal/eligibility"
	"eligo/internal/housekeeping"
	jwttoken "eligo/internal/jwt_token"
	migservice "eligo/internal/migration/service"
	migstore "eligo/internal/migration/store"
	"eligo/internal/platform/config"
	"eligo/internal/platform/logger"
	"eligo/internal/platform/postgres"
	simservice "eligo/internal/simulation/service"
	simstore "eligo/internal/simulation/store"
	auditpostgres "eligo/pkg/platform/audit/store/postgres"
)

type sweepReport struct {
	ExpiredDeleted        int `json:"expired_deleted" yaml:"expired_deleted"`
	MigratedDeleted       int `json:"migrated_deleted" yaml:"migrated_deleted"`
	ReservationsReleased  int `json:"reservations_released" yaml:"reservations_released"`
	ReservationsFinalized int `json:"reservations_finalized" yaml:"reservations_finalized"`
}

func sweepCmd() *cobra.Command {
	var (
		envFile string
		format  string
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one housekeeping pass: purge old sessions and reconcile stale reservations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := sweep(ctx, cfg)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), format, report)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Optional .env file read before the environment")
	cmd.Flags().StringVar(&format, "format", "json", "Output format (json, yaml)")
	return cmd
}

func sweep(ctx context.Context, cfg config.Config) (sweepReport, error) {
	if cfg.Database.URL == "" {
		return sweepReport{}, errors.New("DATABASE_URL is required for sweep")
	}
	log := logger.NewWithWriter(os.Stderr, "text", cfg.Server.LogLevel)

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return sweepReport{}, err
	}
	defer db.Close()

	sessions := simstore.NewPostgres(db)
	publisher := audit.NewPublisher(auditpostgres.New(db), log)

	simulation := simservice.New(sessions, eligibility.NewEngine(), jwttoken.NewJWTService(cfg.Session.SigningKey),
		simservice.WithLogger(log),
		simservice.WithAuditPublisher(publisher),
		simservice.WithGracePeriod(cfg.Session.GracePeriod),
	)
	// Reconcile touches neither the identity provider nor the catalog.
	migration := migservice.New(sessions, migstore.NewPostgres(db), migstore.NewPostgresTx(db),
		jwttoken.NewJWTService(cfg.Session.SigningKey), nil, nil,
		migservice.WithLogger(log),
		migservice.WithAuditPublisher(publisher),
		migservice.WithReservationLease(cfg.Session.ReservationLease),
	)

	r, err := housekeeping.New(simulation, migration, housekeeping.WithLogger(log)).RunOnce(ctx)
	return sweepReport{
		ExpiredDeleted:        r.Sessions.ExpiredDeleted,
		MigratedDeleted:       r.Sessions.MigratedDeleted,
		ReservationsReleased:  r.Reservations.Released,
		ReservationsFinalized: r.Reservations.Finalized,
	}, err
}
