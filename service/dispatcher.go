package service

import (
	"context"
	"fmt"
	"time"

	"loyaltycast/config"
	"loyaltycast/events"
	"loyaltycast/models"
	"loyaltycast/observability"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DispatchConfig holds the rate-limiting knobs of the dispatch engine
type DispatchConfig struct {
	BatchSize   int
	BatchDelay  time.Duration
	SendTimeout time.Duration
}

// DispatchConfigFrom extracts the dispatch settings from the application config
func DispatchConfigFrom(cfg *config.Config) DispatchConfig {
	return DispatchConfig{
		BatchSize:   cfg.BatchSize,
		BatchDelay:  cfg.BatchDelay,
		SendTimeout: cfg.SendTimeout,
	}
}

// Dispatch is one broadcast of a message to a resolved recipient list
type Dispatch struct {
	Program      *models.Program
	Recipients   []*models.Member
	Message      string
	CampaignName string
	Segment      models.SegmentName
}

// DispatchSummary aggregates the outcome of a dispatch
type DispatchSummary struct {
	Total         int
	Succeeded     int
	Failed        int
	Batches       int
	CampaignLogID int64
	Duration      time.Duration
}

// Dispatcher sends messages through the wallet gateway in fixed-size concurrent batches
// separated by a fixed delay, and records one campaign log entry per run.
type Dispatcher struct {
	gateway   WalletGateway
	logs      CampaignLogRepository
	publisher EventPublisher
	cfg       DispatchConfig
	sleep     func(ctx context.Context, d time.Duration)
}

// NewDispatcher creates a new dispatch engine
func NewDispatcher(gateway WalletGateway, logs CampaignLogRepository, publisher EventPublisher, cfg DispatchConfig) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &Dispatcher{
		gateway:   gateway,
		logs:      logs,
		publisher: publisher,
		cfg:       cfg,
		sleep:     sleepContext,
	}
}

// Dispatch sends d.Message to every recipient and writes the campaign log entry.
// Per-recipient failures are counted, never returned. The run is detached from ctx
// cancellation once started: in-flight batches finish and the log entry is written.
func (d *Dispatcher) Dispatch(ctx context.Context, req Dispatch) (*DispatchSummary, error) {
	runCtx := context.WithoutCancel(ctx)
	start := time.Now()

	summary := &DispatchSummary{Total: len(req.Recipients)}

	fields := log.Fields{
		"programId":  req.Program.ID,
		"campaign":   req.CampaignName,
		"segment":    req.Segment,
		"recipients": summary.Total,
		"batchSize":  d.cfg.BatchSize,
	}
	log.WithFields(fields).Info("Starting dispatch")

	for offset := 0; offset < len(req.Recipients); offset += d.cfg.BatchSize {
		if offset > 0 {
			d.sleep(runCtx, d.cfg.BatchDelay)
		}

		end := min(offset+d.cfg.BatchSize, len(req.Recipients))
		succeeded := d.sendBatch(runCtx, req.Program.WalletProgramID, req.Recipients[offset:end], req.Message)

		summary.Batches++
		summary.Succeeded += succeeded
		summary.Failed += (end - offset) - succeeded
	}
	summary.Duration = time.Since(start)
	observability.DispatchDuration.Observe(summary.Duration.Seconds())

	programID := req.Program.ID
	entry := &models.CampaignLog{
		ProgramID:      &programID,
		CampaignName:   req.CampaignName,
		RecipientCount: summary.Total,
		SuccessCount:   summary.Succeeded,
		FailureCount:   summary.Failed,
		MessageBody:    req.Message,
		TargetSegment:  req.Segment,
	}
	id, err := d.logs.Append(runCtx, entry)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Failed to write campaign log after dispatch")
		return summary, systemFailure(err, "failed to write campaign log")
	}
	summary.CampaignLogID = id

	if d.publisher != nil {
		d.publisher.Publish(events.CampaignDispatchedEvent{
			CampaignLogID: id,
			ProgramID:     &programID,
			CampaignName:  req.CampaignName,
			Segment:       string(req.Segment),
			Recipients:    summary.Total,
			Succeeded:     summary.Succeeded,
			Failed:        summary.Failed,
		})
	}

	fields["succeeded"] = summary.Succeeded
	fields["failed"] = summary.Failed
	fields["batches"] = summary.Batches
	fields["campaignLogId"] = id
	fields["duration"] = summary.Duration.String()
	if summary.Failed > 0 {
		log.WithFields(fields).Warn("Dispatch finished with failures")
	} else {
		log.WithFields(fields).Info("Dispatch finished")
	}

	return summary, nil
}

// sendBatch issues every send of the batch concurrently and waits for all of them
func (d *Dispatcher) sendBatch(ctx context.Context, walletProgramID string, batch []*models.Member, text string) int {
	results := make([]bool, len(batch))

	var g errgroup.Group
	for i, member := range batch {
		g.Go(func() error {
			results[i] = d.SendOne(ctx, walletProgramID, member, text)
			return nil
		})
	}
	_ = g.Wait()

	succeeded := 0
	for _, ok := range results {
		if ok {
			succeeded++
		}
	}
	return succeeded
}

// SendOne pushes text to a single member under its own timeout and reports success.
// Gateway errors and panics are logged and converted to false.
func (d *Dispatcher) SendOne(ctx context.Context, walletProgramID string, member *models.Member, text string) (ok bool) {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"memberId":         member.ID,
				"walletInternalId": member.WalletInternalID,
				"panic":            r,
			}).Error("Gateway send panicked")
			ok = false
		}
		if ok {
			observability.NotificationsTotal.WithLabelValues(observability.ResultSuccess).Inc()
		} else {
			observability.NotificationsTotal.WithLabelValues(observability.ResultFailure).Inc()
		}
	}()

	if err := d.gateway.SendMessage(sendCtx, member.WalletInternalID, walletProgramID, text); err != nil {
		log.WithFields(log.Fields{
			"memberId":         member.ID,
			"walletInternalId": member.WalletInternalID,
			"walletProgramId":  walletProgramID,
			"error":            err,
		}).Warn("Failed to send wallet notification")
		return false
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// String implements fmt.Stringer for log output
func (s DispatchSummary) String() string {
	return fmt.Sprintf("%d/%d delivered in %d batches", s.Succeeded, s.Total, s.Batches)
}
