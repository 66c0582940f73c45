package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/edvin/integrations/internal/activity"
	"github.com/edvin/integrations/internal/audit"
	"github.com/edvin/integrations/internal/config"
	"github.com/edvin/integrations/internal/crypto"
	"github.com/edvin/integrations/internal/db"
	"github.com/edvin/integrations/internal/logging"
	"github.com/edvin/integrations/internal/metrics"
	"github.com/edvin/integrations/internal/provider"
	"github.com/edvin/integrations/internal/workflow"
)

const taskQueue = "integration-tasks"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("worker"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	metrics.RegisterPgxPoolMetrics(pool)

	keyring, err := crypto.NewKeyring(cfg.MasterKeySecret, cfg.VaultKeyVersion)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build keyring")
	}
	vault := crypto.NewVault(keyring)

	registry := provider.NewRegistry(cfg)

	recorder := audit.NewRecorder(pool, logger)
	defer recorder.Close()

	tlsConfig, err := cfg.TemporalTLS()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure temporal TLS")
	}
	dialOpts := temporalclient.Options{HostPort: cfg.TemporalAddress}
	if tlsConfig != nil {
		dialOpts.ConnectionOptions = temporalclient.ConnectionOptions{TLS: tlsConfig}
		logger.Info().Msg("temporal mTLS enabled")
	}
	tc, err := temporalclient.Dial(dialOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to temporal")
	}
	defer tc.Close()

	w := worker.New(tc, taskQueue, worker.Options{})

	// Register activities
	credentialActivities := activity.NewCredentials(pool)
	w.RegisterActivity(credentialActivities)

	refreshActivities := activity.NewRefresh(pool, registry, vault, recorder, logger)
	w.RegisterActivity(refreshActivities)

	if cfg.S3Bucket != "" {
		s3c := activity.NewS3Client(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey)
		archiveActivities := activity.NewAuditArchive(pool, s3c, cfg.S3Bucket, logger)
		w.RegisterActivity(archiveActivities)
	} else {
		logger.Warn().Msg("S3_BUCKET not set, audit archival activities disabled")
	}

	// Register workflows
	w.RegisterWorkflow(workflow.RefreshTokensWorkflow)
	w.RegisterWorkflow(workflow.ArchiveAuditEventsWorkflow)

	if cfg.MetricsListenAddr != "" {
		metricsSrv := metrics.NewServer(cfg.MetricsListenAddr)
		go func() {
			logger.Info().Str("addr", cfg.MetricsListenAddr).Msg("starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	go func() {
		logger.Info().Str("taskQueue", taskQueue).Msg("starting temporal worker")
		if err := w.Run(worker.InterruptCh()); err != nil {
			logger.Fatal().Err(err).Msg("worker failed")
		}
	}()

	// Register cron schedules. Errors for already-existing schedules are
	// ignored so that re-deploys do not fail.
	registerCronSchedules(ctx, tc, taskQueue, cfg, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down worker")
	cancel()
}

type cronSchedule struct {
	id       string
	cron     string
	workflow interface{}
	args     []interface{}
}

func registerCronSchedules(ctx context.Context, tc temporalclient.Client, taskQueue string, cfg *config.Config, logger zerolog.Logger) {
	schedules := []cronSchedule{
		{
			id:       "token-refresh-cron",
			cron:     "*/15 * * * *",
			workflow: workflow.RefreshTokensWorkflow,
		},
	}
	if cfg.S3Bucket != "" {
		schedules = append(schedules, cronSchedule{
			id:       "audit-archive-cron",
			cron:     "0 4 * * *",
			workflow: workflow.ArchiveAuditEventsWorkflow,
			args:     []interface{}{cfg.AuditRetentionDays},
		})
	}

	scheduleClient := tc.ScheduleClient()

	for _, s := range schedules {
		_, err := scheduleClient.Create(ctx, temporalclient.ScheduleOptions{
			ID: s.id,
			Spec: temporalclient.ScheduleSpec{
				CronExpressions: []string{s.cron},
			},
			Action: &temporalclient.ScheduleWorkflowAction{
				ID:        s.id,
				Workflow:  s.workflow,
				Args:      s.args,
				TaskQueue: taskQueue,
			},
		})
		if err != nil {
			if strings.Contains(err.Error(), "already exists") || strings.Contains(err.Error(), "AlreadyExists") || strings.Contains(err.Error(), "already registered") {
				logger.Info().Str("id", s.id).Msg("cron schedule already exists, skipping")
			} else {
				logger.Fatal().Err(err).Str("id", s.id).Msg("failed to create cron schedule")
			}
		} else {
			logger.Info().Str("id", s.id).Str("cron", s.cron).Msg("created cron schedule")
		}
	}
}
