// Command check-deadlines runs one deadline sweep and prints its report as JSON.
// It auto-grades missed homeworks and sends pending deadline warnings, exactly
// like the sweeper embedded in the API server.
package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/academy-api/internal/config"
	"github.com/noah-isme/academy-api/internal/database"
	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/repository"
	"github.com/noah-isme/academy-api/internal/service"
)

const (
	exitFatal           = 1
	exitPartialFailures = 2
)

func main() {
	os.Exit(run())
}

// run returns instead of exiting so the deferred drains flush relayed
// notifications on every path.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	// stdout carries the report
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Str("command", "check-deadlines").Logger()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return exitFatal
	}
	if err := database.Migrate(db); err != nil {
		logger.Error().Err(err).Msg("failed to migrate database")
		return exitFatal
	}

	// live API nodes only see the new notifications through the relays
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		if redisClient, err = database.ConnectRedis(cfg.RedisURL); err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, notifications will not be relayed")
		} else {
			defer redisClient.Close()
		}
	}
	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		if natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName+"-check-deadlines"); err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, notifications will not be relayed")
		} else {
			defer natsConn.Drain()
		}
	}

	homeworks := repository.NewHomeworkRepository(db)
	groups := repository.NewGroupRepository(db)
	submissions := repository.NewSubmissionRepository(db)
	notifier := service.NewNotificationService(repository.NewNotificationRepository(db), redisClient, cfg.RealtimeChannel, natsConn, logger)
	deadlines := service.NewDeadlineService(homeworks, groups, submissions, notifier, cfg.WarningWindow, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := deadlines.Sweep(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("deadline sweep failed")
		return exitFatal
	}

	if err := writeReport(os.Stdout, report); err != nil {
		logger.Error().Err(err).Msg("failed to write report")
		return exitFatal
	}
	return exitCode(report)
}

func writeReport(w io.Writer, report dto.SweepReport) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// exitCode is non-zero when any student or homework failed during the sweep.
func exitCode(report dto.SweepReport) int {
	if len(report.Failures) > 0 {
		return exitPartialFailures
	}
	return 0
}
