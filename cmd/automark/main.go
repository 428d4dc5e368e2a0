package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/veli/attendix/internal/app/migrations"
	"github.com/veli/attendix/internal/app/models"
	"github.com/veli/attendix/internal/app/repositories"
	"github.com/veli/attendix/internal/app/services"
	"github.com/veli/attendix/internal/config"
	"github.com/veli/attendix/internal/db"
	"github.com/veli/attendix/internal/pkg/helpers"
	"github.com/veli/attendix/internal/pkg/logger"
)

func main() {
	var (
		configPath = flag.String("config", filepath.Join("configs", "config.yaml"), "path to config file")
		dateFlag   = flag.String("date", "", "date to mark (YYYY-MM-DD, default today)")
		force      = flag.Bool("force", false, "run even before the configured cutoff")
	)
	flag.Parse()

	if err := run(*configPath, *dateFlag, *force); err != nil {
		logger.Error().Err(err).Msg("auto-mark run failed")
		os.Exit(1)
	}
}

func run(configPath, dateFlag string, force bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger.Configure(logger.Config{
		Level:  logger.LogLevel(strings.ToLower(cfg.Logging.Level)),
		Pretty: strings.ToLower(cfg.Logging.Format) == "text",
	})

	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	migrator := migrations.NewMigrator(database)
	if err := migrator.MigrateFromDirectory("migrations"); err != nil {
		return err
	}

	repos := repositories.NewRepositories(database.Pool)

	attendance, err := services.NewAttendanceService(
		repos.AttendanceRepository,
		repos.StudentRepository,
		repos.LeaveTypeRepository,
		services.EngineConfig{
			BaselineStatus: models.Status(cfg.Engine.BaselineStatus),
			BaselineNote:   cfg.Engine.BaselineNote,
		},
	)
	if err != nil {
		return err
	}

	autoMark := services.NewAutoMarkService(
		attendance,
		repos.AttendanceRepository,
		repos.StudentRepository,
		repos.LeaveRequestRepository,
		services.AutoMarkConfig{
			Cutoff:        cfg.AutoMark.Cutoff,
			DefaultStatus: models.Status(cfg.AutoMark.DefaultStatus),
		},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	now := time.Now().UTC()
	if dateFlag != "" {
		date, err := helpers.ParseDate(dateFlag)
		if err != nil {
			return err
		}
		_, err = autoMark.Run(ctx, date)
		return err
	}

	if force {
		_, err = autoMark.Run(ctx, now)
		return err
	}

	result, err := autoMark.RunDue(ctx, now)
	if err != nil {
		return err
	}
	if result == nil {
		logger.Info().Str("cutoff", cfg.AutoMark.Cutoff).Msg("before cutoff, nothing to do")
	}
	return nil
}
