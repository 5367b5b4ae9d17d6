package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"loyaltycast/models"

	log "github.com/sirupsen/logrus"
)

// Evaluator resolves a segment to the list of dispatch-eligible members it selects
type Evaluator struct {
	members MemberRepository
	now     func() time.Time
}

// NewEvaluator creates a new predicate evaluator
func NewEvaluator(members MemberRepository) *Evaluator {
	return &Evaluator{
		members: members,
		now:     time.Now,
	}
}

// Evaluate loads every eligible member of the program and filters them by segment.
// The result is not paginated.
func (e *Evaluator) Evaluate(ctx context.Context, program *models.Program, segment models.SegmentName, cfg models.SegmentConfig) ([]*models.Member, error) {
	if !SupportsSegment(program.Protocol, segment) {
		return nil, fmt.Errorf("%w: %s for protocol %s", ErrUnknownSegment, segment, program.Protocol)
	}

	population, err := e.Population(ctx, program)
	if err != nil {
		return nil, err
	}

	return e.Filter(program, population, segment, cfg)
}

// Population returns every dispatch-eligible member of the program
func (e *Evaluator) Population(ctx context.Context, program *models.Program) ([]*models.Member, error) {
	members, err := e.members.ListEligible(ctx, program.ID, program.Protocol)
	if err != nil {
		return nil, systemFailure(err, "failed to load members for program %d", program.ID)
	}

	eligible := members[:0:0]
	for _, m := range members {
		if !m.Eligible() {
			continue
		}
		if m.Record == nil || m.Record.Protocol() != program.Protocol {
			log.WithFields(log.Fields{
				"programId": program.ID,
				"memberId":  m.ID,
			}).Warn("Skipping member whose record does not match program protocol")
			continue
		}
		eligible = append(eligible, m)
	}
	return eligible, nil
}

// Filter applies the segment predicate to an already loaded population
func (e *Evaluator) Filter(program *models.Program, population []*models.Member, segment models.SegmentName, cfg models.SegmentConfig) ([]*models.Member, error) {
	match, err := e.predicate(program, segment, cfg)
	if err != nil {
		return nil, err
	}

	out := make([]*models.Member, 0, len(population))
	for _, m := range population {
		if match(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

type predicate func(m *models.Member) bool

func matchAll(*models.Member) bool { return true }

func (e *Evaluator) predicate(program *models.Program, segment models.SegmentName, cfg models.SegmentConfig) (predicate, error) {
	if !SupportsSegment(program.Protocol, segment) {
		return nil, fmt.Errorf("%w: %s for protocol %s", ErrUnknownSegment, segment, program.Protocol)
	}

	// Segments shared by every protocol
	switch segment {
	case models.SegmentGeographic:
		return postalCodePredicate(cfg.PostalCodes), nil
	case models.SegmentExplicitIDs:
		return explicitIDPredicate(cfg.IDs), nil
	}

	now := e.now()
	switch program.Protocol {
	case models.ProtocolMembership:
		return membershipPredicate(program.Tiers, segment, cfg, now)
	case models.ProtocolCoupon:
		return couponPredicate(segment, now)
	case models.ProtocolEventTicket:
		return eventTicketPredicate(segment)
	}
	return nil, fmt.Errorf("%w: %s for protocol %s", ErrUnknownSegment, segment, program.Protocol)
}

// TierOf returns the tier segment a tier points value falls in.
// Bands are half-open: (lower, upper], with bronze starting at zero and platinum unbounded.
func TierOf(tiers models.TierThresholds, tierPoints int64) models.SegmentName {
	switch {
	case tierPoints <= tiers.BronzeMax:
		return models.SegmentTierBronze
	case tierPoints <= tiers.SilverMax:
		return models.SegmentTierSilver
	case tierPoints <= tiers.GoldMax:
		return models.SegmentTierGold
	default:
		return models.SegmentTierPlatinum
	}
}

func membershipPredicate(tiers models.TierThresholds, segment models.SegmentName, cfg models.SegmentConfig, now time.Time) (predicate, error) {
	record := func(m *models.Member) (models.MembershipRecord, bool) {
		r, ok := m.Record.(models.MembershipRecord)
		return r, ok
	}

	switch segment {
	case models.SegmentAllActive:
		return matchAll, nil
	case models.SegmentTierBronze, models.SegmentTierSilver, models.SegmentTierGold, models.SegmentTierPlatinum:
		return func(m *models.Member) bool {
			r, ok := record(m)
			return ok && TierOf(tiers, r.TierPoints) == segment
		}, nil
	case models.SegmentVIP:
		threshold := vipThreshold(cfg)
		return func(m *models.Member) bool {
			r, ok := record(m)
			return ok && r.PointsBalance >= threshold
		}, nil
	case models.SegmentDormant:
		cutoff := now.AddDate(0, 0, -dormantDays(cfg))
		return func(m *models.Member) bool {
			r, ok := record(m)
			if !ok {
				return false
			}
			// Never active counts as dormant
			return r.LastActivity == nil || r.LastActivity.Before(cutoff)
		}, nil
	}
	return nil, fmt.Errorf("%w: %s for protocol %s", ErrUnknownSegment, segment, models.ProtocolMembership)
}

func couponPredicate(segment models.SegmentName, now time.Time) (predicate, error) {
	switch segment {
	// Active coupon holders are the ones that can still redeem
	case models.SegmentAllActive, models.SegmentUnredeemed:
		return func(m *models.Member) bool {
			r, ok := m.Record.(models.CouponRecord)
			return ok && r.RedeemedAt == nil
		}, nil
	case models.SegmentExpiringSoon:
		horizon := now.Add(ExpiringWindow)
		return func(m *models.Member) bool {
			r, ok := m.Record.(models.CouponRecord)
			if !ok || r.RedeemedAt != nil || r.ExpiresAt == nil {
				return false
			}
			return !r.ExpiresAt.Before(now) && !r.ExpiresAt.After(horizon)
		}, nil
	}
	return nil, fmt.Errorf("%w: %s for protocol %s", ErrUnknownSegment, segment, models.ProtocolCoupon)
}

func eventTicketPredicate(segment models.SegmentName) (predicate, error) {
	switch segment {
	case models.SegmentAllTicketed:
		return matchAll, nil
	case models.SegmentNotCheckedIn:
		return func(m *models.Member) bool {
			r, ok := m.Record.(models.EventTicketRecord)
			return ok && r.CheckedInAt == nil
		}, nil
	case models.SegmentCheckedIn:
		return func(m *models.Member) bool {
			r, ok := m.Record.(models.EventTicketRecord)
			return ok && r.CheckedInAt != nil
		}, nil
	}
	return nil, fmt.Errorf("%w: %s for protocol %s", ErrUnknownSegment, segment, models.ProtocolEventTicket)
}

// postalCodePredicate matches full codes and truncated prefixes alike ("94107" and "941")
func postalCodePredicate(codes []string) predicate {
	prefixes := normalizePostalCodes(codes)
	return func(m *models.Member) bool {
		code := m.PostalCode()
		if code == "" {
			return false
		}
		for _, p := range prefixes {
			if strings.HasPrefix(code, p) {
				return true
			}
		}
		return false
	}
}

// explicitIDPredicate matches either the external id or the wallet internal id
func explicitIDPredicate(ids []string) predicate {
	set := normalizeIDs(ids)
	return func(m *models.Member) bool {
		if _, ok := set[strings.ToLower(strings.TrimSpace(m.ExternalID))]; ok && m.ExternalID != "" {
			return true
		}
		_, ok := set[strings.ToLower(strings.TrimSpace(m.WalletInternalID))]
		return ok && m.WalletInternalID != ""
	}
}
