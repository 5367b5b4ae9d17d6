package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"loyaltycast/models"
	"loyaltycast/observability"

	log "github.com/sirupsen/logrus"
)

const (
	defaultCampaignLogLimit = 50
	maxCampaignLogLimit     = 500
)

// notificationService implements NotificationService
type notificationService struct {
	validator   *Validator
	evaluator   *Evaluator
	dispatcher  *Dispatcher
	logs        CampaignLogRepository
	cache       EstimateCache
	estimateTTL time.Duration
}

// NewNotificationService creates a new notification service. cache may be nil.
func NewNotificationService(
	validator *Validator,
	evaluator *Evaluator,
	dispatcher *Dispatcher,
	logs CampaignLogRepository,
	cache EstimateCache,
	estimateTTL time.Duration,
) NotificationService {
	return &notificationService{
		validator:   validator,
		evaluator:   evaluator,
		dispatcher:  dispatcher,
		logs:        logs,
		cache:       cache,
		estimateTTL: estimateTTL,
	}
}

// ValidateProgram resolves and checks a program
func (s *notificationService) ValidateProgram(ctx context.Context, tenantID, walletProgramID string, protocol models.Protocol) (*models.Program, error) {
	return s.validator.Validate(ctx, tenantID, walletProgramID, protocol)
}

// ListSegments returns the program's segment catalog. Segments that need no caller
// configuration carry an estimate computed with default settings.
func (s *notificationService) ListSegments(ctx context.Context, program *models.Program) ([]models.SegmentDefinition, error) {
	if program == nil {
		return nil, validationError("program is required")
	}

	defs := Catalog(program)

	var population []*models.Member
	loaded := false

	for i := range defs {
		if defs[i].RequiresConfig {
			continue
		}

		key := estimateKey(program, defs[i].Name)
		if count, ok := s.cachedEstimate(ctx, key); ok {
			defs[i].EstimatedCount = &count
			continue
		}

		if !loaded {
			var err error
			population, err = s.evaluator.Population(ctx, program)
			if err != nil {
				return nil, err
			}
			loaded = true
		}

		matched, err := s.evaluator.Filter(program, population, defs[i].Name, models.SegmentConfig{})
		if err != nil {
			return nil, err
		}
		count := len(matched)
		defs[i].EstimatedCount = &count

		s.storeEstimate(ctx, key, count)
	}

	return defs, nil
}

// PreviewSegment resolves the audience without contacting the gateway or writing a log entry
func (s *notificationService) PreviewSegment(ctx context.Context, req BroadcastRequest) (*BroadcastResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.Message != "" {
		if err := validateMessage(req.Message); err != nil {
			return nil, err
		}
	}

	recipients, err := s.evaluator.Evaluate(ctx, req.Program, req.Segment, req.Config)
	if err != nil {
		return nil, err
	}

	return &BroadcastResult{
		Success:            true,
		DryRun:             true,
		TotalRecipients:    len(recipients),
		SegmentDescription: DescribeSegment(req.Program, req.Segment, req.Config),
		SampleRecipients:   samplesOf(recipients),
	}, nil
}

// SendBroadcast dispatches req.Message to the segment. With req.DryRun it returns a preview.
// The message is validated before the member directory is queried. A failed log write after
// the sends returns both the counted result and the error.
func (s *notificationService) SendBroadcast(ctx context.Context, req BroadcastRequest) (*BroadcastResult, error) {
	if err := validateMessage(req.Message); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	if req.DryRun {
		return s.PreviewSegment(ctx, req)
	}

	recipients, err := s.evaluator.Evaluate(ctx, req.Program, req.Segment, req.Config)
	if err != nil {
		return nil, err
	}

	campaignName := strings.TrimSpace(req.CampaignName)
	if campaignName == "" {
		campaignName = fmt.Sprintf("%s broadcast %s", req.Segment, time.Now().UTC().Format("2006-01-02 15:04"))
	}

	summary, err := s.dispatcher.Dispatch(ctx, Dispatch{
		Program:      req.Program,
		Recipients:   recipients,
		Message:      strings.TrimSpace(req.Message),
		CampaignName: campaignName,
		Segment:      req.Segment,
	})
	if summary == nil {
		return nil, err
	}

	result := &BroadcastResult{
		Success:            err == nil,
		TotalRecipients:    summary.Total,
		SuccessCount:       summary.Succeeded,
		FailedCount:        summary.Failed,
		SegmentDescription: DescribeSegment(req.Program, req.Segment, req.Config),
	}
	if err != nil {
		// Sends already happened; the counts go back with the error
		return result, err
	}

	logID := summary.CampaignLogID
	result.CampaignLogID = &logID
	return result, nil
}

// GetCampaignLogs returns the newest campaign log entries. A nil programID returns every program's entries.
func (s *notificationService) GetCampaignLogs(ctx context.Context, programID *int64, limit int) ([]*models.CampaignLog, error) {
	if limit <= 0 {
		limit = defaultCampaignLogLimit
	}
	if limit > maxCampaignLogLimit {
		limit = maxCampaignLogLimit
	}

	entries, err := s.logs.Query(ctx, programID, limit)
	if err != nil {
		return nil, systemFailure(err, "failed to query campaign logs")
	}
	return entries, nil
}

func (s *notificationService) cachedEstimate(ctx context.Context, key string) (int, bool) {
	if s.cache == nil {
		return 0, false
	}

	count, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		log.WithFields(log.Fields{
			"key":   key,
			"error": err,
		}).Warn("Failed to read segment estimate from cache")
		observability.SegmentEstimateCacheTotal.WithLabelValues("error").Inc()
		return 0, false
	}
	if !ok {
		observability.SegmentEstimateCacheTotal.WithLabelValues("miss").Inc()
		return 0, false
	}
	observability.SegmentEstimateCacheTotal.WithLabelValues("hit").Inc()
	return count, true
}

func (s *notificationService) storeEstimate(ctx context.Context, key string, count int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, count, s.estimateTTL); err != nil {
		log.WithFields(log.Fields{
			"key":   key,
			"error": err,
		}).Warn("Failed to store segment estimate in cache")
	}
}

// estimateKey scopes tier band estimates to the thresholds they were computed with
func estimateKey(program *models.Program, segment models.SegmentName) string {
	switch segment {
	case models.SegmentTierBronze, models.SegmentTierSilver, models.SegmentTierGold, models.SegmentTierPlatinum:
		t := program.Tiers
		return fmt.Sprintf("segment-estimate:%d:%s:%d-%d-%d", program.ID, segment, t.BronzeMax, t.SilverMax, t.GoldMax)
	}
	return fmt.Sprintf("segment-estimate:%d:%s", program.ID, segment)
}

func validateMessage(message string) error {
	if utf8.RuneCountInString(strings.TrimSpace(message)) < MinMessageLength {
		return validationError("message must be at least %d characters", MinMessageLength)
	}
	return nil
}

func validateRequest(req BroadcastRequest) error {
	if req.Program == nil {
		return validationError("program is required")
	}
	if req.Segment == "" {
		return validationError("segment is required")
	}

	switch req.Segment {
	case models.SegmentGeographic:
		if len(normalizePostalCodes(req.Config.PostalCodes)) == 0 {
			return validationError("at least one postal code is required for %s", req.Segment)
		}
	case models.SegmentExplicitIDs:
		if len(normalizeIDs(req.Config.IDs)) == 0 {
			return validationError("at least one id is required for %s", req.Segment)
		}
	case models.SegmentVIP:
		if req.Config.VIPThreshold != nil && *req.Config.VIPThreshold < 0 {
			return validationError("threshold must not be negative")
		}
	case models.SegmentDormant:
		if req.Config.DormantDays != nil && *req.Config.DormantDays <= 0 {
			return validationError("days must be positive")
		}
	}
	return nil
}
