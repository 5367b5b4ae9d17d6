package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"loyaltycast/events"
	"loyaltycast/models"
	"loyaltycast/observability"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	defaultBirthdayMessage = "Happy birthday {name}! We've added {points} points to your account."
	reasonAlreadyGifted    = "already gifted this year"
	reasonWouldProcess     = "would be processed"

	defaultMaxDetails = 500
)

// BirthdayConfig holds the birthday job settings
type BirthdayConfig struct {
	Location   *time.Location
	MaxDetails int
}

// birthdayService implements BirthdayService
type birthdayService struct {
	programs   ProgramRepository
	members    MemberRepository
	claims     BirthdayClaimRepository
	points     PointsGranter
	dispatcher *Dispatcher
	logs       CampaignLogRepository
	publisher  EventPublisher
	cfg        BirthdayConfig
	now        func() time.Time
	newRunID   func() string
}

// NewBirthdayService creates a new birthday job service
func NewBirthdayService(
	programs ProgramRepository,
	members MemberRepository,
	claims BirthdayClaimRepository,
	points PointsGranter,
	dispatcher *Dispatcher,
	logs CampaignLogRepository,
	publisher EventPublisher,
	cfg BirthdayConfig,
) BirthdayService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxDetails <= 0 {
		cfg.MaxDetails = defaultMaxDetails
	}
	return &birthdayService{
		programs:   programs,
		members:    members,
		claims:     claims,
		points:     points,
		dispatcher: dispatcher,
		logs:       logs,
		publisher:  publisher,
		cfg:        cfg,
		now:        time.Now,
		newRunID:   func() string { return uuid.New().String() },
	}
}

// RunBirthdayJob grants the configured reward to every eligible member whose birthday is today,
// at most once per member per calendar year. The (member, year) claim row is inserted before
// the balance mutation and deleted again if the mutation fails, so a later run can retry.
func (s *birthdayService) RunBirthdayJob(ctx context.Context, opts BirthdayRunOptions) (*BirthdayRunResult, error) {
	date := s.now().In(s.cfg.Location)
	if opts.Date != nil {
		date = *opts.Date
	}
	year := date.Year()

	result := &BirthdayRunResult{
		RunID:  s.newRunID(),
		Date:   time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
		DryRun: opts.DryRun,
	}
	withDetails := opts.DryRun || opts.IncludeDetails

	fields := log.Fields{
		"runId":  result.RunID,
		"date":   result.Date.Format(time.DateOnly),
		"dryRun": opts.DryRun,
	}
	log.WithFields(fields).Info("Starting birthday job")

	programs, err := s.programs.ListBirthdayEnabled(ctx)
	if err != nil {
		return nil, systemFailure(err, "failed to list birthday-enabled programs")
	}

	// Claim, grant and release for one member always run to completion
	runCtx := context.WithoutCancel(ctx)

programs:
	for _, program := range programs {
		if program.Protocol != models.ProtocolMembership || !program.Birthday.Enabled {
			continue
		}
		if program.Birthday.RewardPoints <= 0 {
			log.WithFields(log.Fields{
				"programId": program.ID,
				"reward":    program.Birthday.RewardPoints,
			}).Warn("Skipping birthday program with non-positive reward")
			continue
		}
		result.ProgramsScanned++

		members, err := s.members.ListWithBirthDates(ctx, program.ID)
		if err != nil {
			return nil, systemFailure(err, "failed to load members for program %d", program.ID)
		}

		for _, member := range members {
			if !member.Eligible() || !IsBirthday(member.BirthDate(), date) {
				continue
			}
			if ctx.Err() != nil {
				result.Interrupted = true
				break programs
			}
			result.Eligible++

			var outcome models.BirthdayOutcome
			if opts.DryRun {
				outcome = models.BirthdayOutcome{
					ProgramID:        program.ID,
					MemberID:         member.ID,
					WalletInternalID: member.WalletInternalID,
					Status:           models.BirthdayOutcomeSuccess,
					Reason:           reasonWouldProcess,
				}
			} else {
				outcome = s.processMember(runCtx, result.RunID, program, member, year)
			}

			switch outcome.Status {
			case models.BirthdayOutcomeSuccess:
				result.Succeeded++
			case models.BirthdayOutcomeSkipped:
				result.Skipped++
			case models.BirthdayOutcomeFailed:
				result.Failed++
			}
			if outcome.Notified {
				result.Notified++
			}
			if !opts.DryRun {
				observability.BirthdayOutcomesTotal.WithLabelValues(string(outcome.Status)).Inc()
			}

			if withDetails {
				if len(result.Details) < s.cfg.MaxDetails {
					result.Details = append(result.Details, outcome)
				} else {
					result.DetailsTruncated = true
				}
			}
		}
	}

	fields["programs"] = result.ProgramsScanned
	fields["eligible"] = result.Eligible
	fields["succeeded"] = result.Succeeded
	fields["skipped"] = result.Skipped
	fields["failed"] = result.Failed

	if opts.DryRun {
		log.WithFields(fields).Info("Birthday job dry run finished")
		return result, nil
	}

	entry := &models.CampaignLog{
		CampaignName:   "Birthday rewards " + result.Date.Format(time.DateOnly),
		RecipientCount: result.Eligible,
		SuccessCount:   result.Succeeded,
		FailureCount:   result.Failed,
		MessageBody:    fmt.Sprintf("Birthday rewards: %d granted, %d already gifted, %d failed", result.Succeeded, result.Skipped, result.Failed),
		TargetSegment:  models.SegmentBirthday,
	}
	id, err := s.logs.Append(runCtx, entry)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Failed to write birthday campaign log")
		return result, systemFailure(err, "failed to write birthday campaign log")
	}
	result.CampaignLogID = &id

	if s.publisher != nil {
		s.publisher.Publish(events.BirthdayRunCompletedEvent{
			RunID:           result.RunID,
			Date:            result.Date,
			ProgramsScanned: result.ProgramsScanned,
			Eligible:        result.Eligible,
			Rewarded:        result.Succeeded,
			Skipped:         result.Skipped,
			Failed:          result.Failed,
			CampaignLogID:   &id,
		})
	}

	if result.Failed > 0 {
		log.WithFields(fields).Warn("Birthday job finished with failures")
	} else {
		log.WithFields(fields).Info("Birthday job finished")
	}
	return result, nil
}

func (s *birthdayService) processMember(ctx context.Context, runID string, program *models.Program, member *models.Member, year int) models.BirthdayOutcome {
	outcome := models.BirthdayOutcome{
		ProgramID:        program.ID,
		MemberID:         member.ID,
		WalletInternalID: member.WalletInternalID,
	}
	fields := log.Fields{
		"runId":     runID,
		"programId": program.ID,
		"memberId":  member.ID,
		"year":      year,
	}

	claimed, err := s.claims.Claim(ctx, member.ID, year)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Failed to insert birthday claim")
		outcome.Status = models.BirthdayOutcomeFailed
		outcome.Reason = "claim failed: " + err.Error()
		return outcome
	}
	if !claimed {
		outcome.Status = models.BirthdayOutcomeSkipped
		outcome.Reason = reasonAlreadyGifted
		return outcome
	}

	amount := program.Birthday.RewardPoints
	metadata := map[string]any{
		"source":     "birthday_job",
		"run_id":     runID,
		"program_id": program.ID,
		"year":       year,
	}
	if err := s.points.GrantPoints(ctx, member.ID, amount, fmt.Sprintf("Birthday reward %d", year), metadata); err != nil {
		outcome.Status = models.BirthdayOutcomeFailed
		outcome.Reason = "grant failed: " + err.Error()

		if relErr := s.claims.Release(ctx, member.ID, year); relErr != nil {
			log.WithFields(fields).WithError(relErr).Error("Failed to release birthday claim after grant failure")
			outcome.Reason += "; claim release failed: " + relErr.Error()
		} else {
			log.WithFields(fields).WithError(err).Warn("Birthday grant failed, claim released for retry")
		}
		return outcome
	}

	outcome.Status = models.BirthdayOutcomeSuccess
	if s.dispatcher != nil {
		text := RenderBirthdayMessage(program.Birthday.Message, member, amount)
		outcome.Notified = s.dispatcher.SendOne(ctx, program.WalletProgramID, member, text)
	}

	if s.publisher != nil {
		s.publisher.Publish(events.BirthdayRewardedEvent{
			RunID:     runID,
			ProgramID: program.ID,
			MemberID:  member.ID,
			Year:      year,
			Points:    amount,
			Notified:  outcome.Notified,
		})
	}

	log.WithFields(fields).WithField("notified", outcome.Notified).Debug("Birthday reward granted")
	return outcome
}

// IsBirthday reports whether birthDate falls on date's month and day. Birth dates are
// calendar dates, so their components are read as stored.
func IsBirthday(birthDate *time.Time, date time.Time) bool {
	if birthDate == nil {
		return false
	}
	return birthDate.Month() == date.Month() && birthDate.Day() == date.Day()
}

// RenderBirthdayMessage fills the {name} and {points} placeholders of template
func RenderBirthdayMessage(template string, member *models.Member, points int64) string {
	if strings.TrimSpace(template) == "" {
		template = defaultBirthdayMessage
	}

	name := ""
	if member.Profile != nil {
		name = strings.TrimSpace(member.Profile.FirstName)
	}

	text := strings.NewReplacer(
		"{name}", name,
		"{points}", strconv.FormatInt(points, 10),
	).Replace(template)

	// "Happy birthday !" when the name is unknown
	text = strings.ReplaceAll(text, " !", "!")
	text = strings.ReplaceAll(text, " ,", ",")
	return strings.TrimSpace(text)
}
