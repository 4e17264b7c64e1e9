package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/academy-api/internal/config"
	"github.com/noah-isme/academy-api/internal/database"
	"github.com/noah-isme/academy-api/internal/handler"
	"github.com/noah-isme/academy-api/internal/middleware"
	"github.com/noah-isme/academy-api/internal/repository"
	"github.com/noah-isme/academy-api/internal/router"
	"github.com/noah-isme/academy-api/internal/service"
	cloud "github.com/noah-isme/academy-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := newLogger(cfg)

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to access database pool")
	}
	defer sqlDB.Close()

	probes := map[string]handler.Pinger{"database": sqlDB.PingContext}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		probes["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		logger.Warn().Msg("redis not configured, dashboard cache and cross-node relay disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Drain()
	}

	var uploader service.FileUploader
	if cfg.UploadsEnabled() {
		uploader, err = cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create cloudinary client")
		}
	} else {
		logger.Warn().Msg("cloudinary not configured, submission files will be rejected")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	homeworkRepo := repository.NewHomeworkRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	activityService := service.NewActivityService(activityRepo, logger)
	notificationService := service.NewNotificationService(notificationRepo, redisClient, cfg.RealtimeChannel, natsConn, logger)
	lockService := service.NewLockService(homeworkRepo)
	progressService := service.NewProgressService(userRepo, groupRepo, courseRepo, homeworkRepo, submissionRepo, logger)
	deadlineService := service.NewDeadlineService(homeworkRepo, groupRepo, submissionRepo, notificationService, cfg.WarningWindow, logger)
	gradingService := service.NewGradingService(submissionRepo, notificationService, activityService, validate, logger)
	submissionService := service.NewSubmissionService(homeworkRepo, submissionRepo, lockService, uploader, validate, logger)
	homeworkService := service.NewHomeworkService(homeworkRepo, groupRepo, submissionRepo, lockService, notificationService, activityService, validate, cfg.WarningWindow, logger)
	dashboardService := service.NewDashboardService(service.DashboardRepositories{
		Users:         userRepo,
		Courses:       courseRepo,
		Groups:        groupRepo,
		Homeworks:     homeworkRepo,
		Submissions:   submissionRepo,
		Notifications: notificationRepo,
	}, progressService, deadlineService, redisClient, cfg.DashboardCacheTTL, logger)
	userService := service.NewUserService(userRepo, validate, activityService, logger)
	courseService := service.NewCourseService(courseRepo, validate, activityService, logger)
	groupService := service.NewGroupService(groupRepo, courseRepo, userRepo, validate, activityService, logger)
	seedService := service.NewSeedService(userRepo, courseRepo, groupRepo, homeworkRepo, cfg.SeedEnabled, cfg.SeedToken, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    12 << 20,
	})

	middleware.Register(app, middleware.Config{
		Logger:     logger,
		AccessLog:  cfg.AppEnv == "development",
		RateLimit:  300,
		RateWindow: time.Minute,
	})
	router.Register(app, cfg, router.Dependencies{
		ProgressHandler:     handler.NewProgressHandler(progressService, dashboardService, logger),
		HomeworkHandler:     handler.NewHomeworkHandler(homeworkService, lockService, submissionService, logger),
		SubmissionHandler:   handler.NewSubmissionHandler(submissionService, gradingService, logger),
		DeadlineHandler:     handler.NewDeadlineHandler(deadlineService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, 30*time.Second),
		DashboardHandler:    handler.NewDashboardHandler(dashboardService, logger),
		UserHandler:         handler.NewUserHandler(userService, logger),
		CourseHandler:       handler.NewCourseHandler(courseService, logger),
		GroupHandler:        handler.NewGroupHandler(groupService, logger),
		ActivityHandler:     handler.NewActivityHandler(activityService, logger),
		SeedHandler:         handler.NewSeedHandler(seedService, logger),
		HealthProbes:        probes,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		Users:               userRepo,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationService.Start(ctx)
	go deadlineService.Run(ctx, cfg.SweepInterval)

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Msg("academy api listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	shutdown(app, logger)
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(level).With().
		Timestamp().
		Str("service", cfg.AppName).
		Logger()
}

func shutdown(app *fiber.App, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		return
	}
	logger.Info().Msg("server stopped")
}
