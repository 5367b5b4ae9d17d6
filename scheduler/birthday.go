package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"loyaltycast/service"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// BirthdayScheduler triggers the birthday job on a cron schedule. Overlapping ticks
// within this process are skipped; overlap across processes is left to the claim store.
type BirthdayScheduler struct {
	birthday service.BirthdayService
	schedule string
	loc      *time.Location

	mu     sync.Mutex
	c      *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// NewBirthdayScheduler validates schedule and returns a stopped scheduler
func NewBirthdayScheduler(birthday service.BirthdayService, schedule string, loc *time.Location) (*BirthdayScheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid birthday schedule %q: %w", schedule, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &BirthdayScheduler{
		birthday: birthday,
		schedule: schedule,
		loc:      loc,
	}, nil
}

// Start registers the job and starts the cron loop. Jobs run under a context derived from ctx.
func (s *BirthdayScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.c != nil {
		return nil
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	s.ctx, s.cancel = context.WithCancel(ctx)
	if _, err := c.AddFunc(s.schedule, s.tick); err != nil {
		s.cancel()
		return fmt.Errorf("failed to schedule birthday job: %w", err)
	}

	c.Start()
	s.c = c

	log.WithFields(log.Fields{
		"schedule": s.schedule,
		"timezone": s.loc.String(),
	}).Info("Birthday scheduler started")
	return nil
}

// Stop halts the cron loop and waits for a running job to return
func (s *BirthdayScheduler) Stop() {
	s.mu.Lock()
	c := s.c
	cancel := s.cancel
	s.c = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	cancel()
	log.Info("Birthday scheduler stopped")
}

// RunNow runs the birthday job immediately, outside the schedule
func (s *BirthdayScheduler) RunNow(ctx context.Context, opts service.BirthdayRunOptions) (*service.BirthdayRunResult, error) {
	return s.birthday.RunBirthdayJob(ctx, opts)
}

func (s *BirthdayScheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	start := time.Now()
	result, err := s.birthday.RunBirthdayJob(ctx, service.BirthdayRunOptions{})
	if err != nil {
		log.WithError(err).Error("Scheduled birthday job failed")
		return
	}

	log.WithFields(log.Fields{
		"runId":     result.RunID,
		"eligible":  result.Eligible,
		"succeeded": result.Succeeded,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
		"duration":  time.Since(start).String(),
	}).Info("Scheduled birthday job completed")
}

// cronLogger routes cron's internal logging through logrus
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.WithFields(fieldsOf(keysAndValues)).Debug("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.WithFields(fieldsOf(keysAndValues)).WithError(err).Error("cron: " + msg)
}

func fieldsOf(keysAndValues []interface{}) log.Fields {
	fields := log.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
