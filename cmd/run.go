package cmd

import (
	"context"
	"fmt"

	"loyaltycast/config"
	"loyaltycast/observability"
	"loyaltycast/scheduler"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Run starts the long-running service: the birthday schedule and the ops endpoint
func Run(ctx context.Context) error {
	log.Info("Starting loyaltycast...")

	cfg := config.Get()

	app, err := Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	g, gctx := errgroup.WithContext(ctx)

	ops := observability.NewServer(cfg.OpsAddr, app.DB)
	g.Go(func() error {
		return ops.Run(gctx)
	})

	if cfg.BirthdayScheduleEnabled {
		sched, err := scheduler.NewBirthdayScheduler(app.Birthday, cfg.BirthdayCron, cfg.Location())
		if err != nil {
			return fmt.Errorf("failed to create birthday scheduler: %w", err)
		}
		if err := sched.Start(gctx); err != nil {
			return err
		}
		g.Go(func() error {
			<-gctx.Done()
			sched.Stop()
			return nil
		})
	} else {
		log.Info("Birthday schedule disabled")
	}

	log.WithField("environment", cfg.Environment).Info("Service is running")

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Shutdown completed")
	return nil
}
