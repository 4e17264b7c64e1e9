// Command seed loads the demo school (staff, students, a course, two groups and
// their homeworks). It refuses to run unless ACADEMY_SEED_ENABLED is set and is
// safe to run repeatedly.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/rs/zerolog"

	"github.com/noah-isme/academy-api/internal/config"
	"github.com/noah-isme/academy-api/internal/database"
	"github.com/noah-isme/academy-api/internal/repository"
	"github.com/noah-isme/academy-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Str("command", "seed").Logger()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	seeder := service.NewSeedService(
		repository.NewUserRepository(db),
		repository.NewCourseRepository(db),
		repository.NewGroupRepository(db),
		repository.NewHomeworkRepository(db),
		cfg.SeedEnabled,
		cfg.SeedToken,
		logger,
	)

	report, err := seeder.Seed(context.Background())
	if err != nil {
		logger.Fatal().Err(err).Msg("seeding failed")
	}

	if err := json.NewEncoder(os.Stdout).Encode(report); err != nil {
		logger.Fatal().Err(err).Msg("failed to write report")
	}
}
