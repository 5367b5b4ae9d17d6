package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loyaltycast/cmd"
	"loyaltycast/config"
	"loyaltycast/database"
	"loyaltycast/service"

	log "github.com/sirupsen/logrus"
)

func main() {
	// Check for migration subcommands
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := handleMigrationCommand(); err != nil {
			log.Fatal("Migration error: ", err)
		}
		return
	}

	configureLogging(config.Get())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	if len(os.Args) > 1 && os.Args[1] == "birthday" {
		if err := handleBirthdayCommand(ctx, os.Args[2:]); err != nil {
			log.Fatal("Birthday job error: ", err)
		}
		return
	}

	if err := cmd.Run(ctx); err != nil {
		log.Fatal("Application error: ", err)
	}
}

func configureLogging(cfg *config.Config) {
	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown LOG_LEVEL, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: loyaltycast migrate [up|down|status] [args...]")
	}

	command := os.Args[2]
	switch command {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := "1"
		if len(os.Args) > 3 {
			steps = os.Args[3]
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}

func handleBirthdayCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("birthday", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "report who would be rewarded without granting or notifying")
	dateStr := fs.String("date", "", "run for this date (YYYY-MM-DD) instead of today")
	details := fs.Bool("details", false, "include per-member outcomes in the output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := service.BirthdayRunOptions{
		DryRun:         *dryRun,
		IncludeDetails: *details,
	}
	if *dateStr != "" {
		date, err := time.Parse(time.DateOnly, *dateStr)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", *dateStr, err)
		}
		opts.Date = &date
	}

	return cmd.RunBirthday(ctx, opts, os.Stdout)
}
