package service

import (
	"fmt"
	"strings"
	"time"

	"loyaltycast/models"
)

const (
	// DefaultVIPThreshold is the points balance VIP targets when no threshold is supplied
	DefaultVIPThreshold int64 = 500

	// DefaultDormantDays is the inactivity window DORMANT targets when none is supplied
	DefaultDormantDays = 30

	// ExpiringWindow is how far ahead EXPIRING_SOON looks for coupon expiry
	ExpiringWindow = 7 * 24 * time.Hour
)

// protocolSegments lists segment names per protocol in display order
var protocolSegments = map[models.Protocol][]models.SegmentName{
	models.ProtocolMembership: {
		models.SegmentAllActive,
		models.SegmentTierBronze,
		models.SegmentTierSilver,
		models.SegmentTierGold,
		models.SegmentTierPlatinum,
		models.SegmentVIP,
		models.SegmentDormant,
		models.SegmentGeographic,
		models.SegmentExplicitIDs,
	},
	models.ProtocolCoupon: {
		models.SegmentAllActive,
		models.SegmentUnredeemed,
		models.SegmentExpiringSoon,
		models.SegmentGeographic,
		models.SegmentExplicitIDs,
	},
	models.ProtocolEventTicket: {
		models.SegmentAllTicketed,
		models.SegmentNotCheckedIn,
		models.SegmentCheckedIn,
		models.SegmentGeographic,
		models.SegmentExplicitIDs,
	},
}

// SegmentsFor returns the segment names applicable to protocol, in display order
func SegmentsFor(protocol models.Protocol) []models.SegmentName {
	names := protocolSegments[protocol]
	out := make([]models.SegmentName, len(names))
	copy(out, names)
	return out
}

// SupportsSegment reports whether segment applies to protocol
func SupportsSegment(protocol models.Protocol, segment models.SegmentName) bool {
	for _, name := range protocolSegments[protocol] {
		if name == segment {
			return true
		}
	}
	return false
}

// Catalog builds the segment definitions for a program. Estimates are left unset.
func Catalog(program *models.Program) []models.SegmentDefinition {
	names := protocolSegments[program.Protocol]
	defs := make([]models.SegmentDefinition, 0, len(names))
	for _, name := range names {
		defs = append(defs, definition(program, name))
	}
	return defs
}

func definition(program *models.Program, name models.SegmentName) models.SegmentDefinition {
	def := models.SegmentDefinition{
		Name:        name,
		Description: DescribeSegment(program, name, models.SegmentConfig{}),
	}

	t := program.Tiers
	switch name {
	case models.SegmentAllActive:
		def.Label = "All active"
	case models.SegmentTierBronze:
		def.Label = fmt.Sprintf("Bronze (0-%d pts)", t.BronzeMax)
	case models.SegmentTierSilver:
		def.Label = fmt.Sprintf("Silver (%d-%d pts)", t.BronzeMax+1, t.SilverMax)
	case models.SegmentTierGold:
		def.Label = fmt.Sprintf("Gold (%d-%d pts)", t.SilverMax+1, t.GoldMax)
	case models.SegmentTierPlatinum:
		def.Label = fmt.Sprintf("Platinum (%d+ pts)", t.GoldMax+1)
	case models.SegmentVIP:
		def.Label = "VIP"
		def.ConfigKind = models.ConfigThreshold
	case models.SegmentDormant:
		def.Label = "Dormant"
		def.ConfigKind = models.ConfigDays
	case models.SegmentUnredeemed:
		def.Label = "Unredeemed"
	case models.SegmentExpiringSoon:
		def.Label = "Expiring soon"
	case models.SegmentAllTicketed:
		def.Label = "All ticket holders"
	case models.SegmentNotCheckedIn:
		def.Label = "Not checked in"
	case models.SegmentCheckedIn:
		def.Label = "Checked in"
	case models.SegmentGeographic:
		def.Label = "Geographic"
		def.ConfigKind = models.ConfigPostalCodes
		def.RequiresConfig = true
	case models.SegmentExplicitIDs:
		def.Label = "Specific members"
		def.ConfigKind = models.ConfigIDs
		def.RequiresConfig = true
	}

	return def
}

// DescribeSegment renders a human-readable description of segment with cfg applied
func DescribeSegment(program *models.Program, segment models.SegmentName, cfg models.SegmentConfig) string {
	t := program.Tiers
	switch segment {
	case models.SegmentAllActive:
		if program.Protocol == models.ProtocolCoupon {
			return "All active unredeemed coupon holders"
		}
		return "All active members"
	case models.SegmentTierBronze:
		return fmt.Sprintf("Members with 0 to %d tier points", t.BronzeMax)
	case models.SegmentTierSilver:
		return fmt.Sprintf("Members with %d to %d tier points", t.BronzeMax+1, t.SilverMax)
	case models.SegmentTierGold:
		return fmt.Sprintf("Members with %d to %d tier points", t.SilverMax+1, t.GoldMax)
	case models.SegmentTierPlatinum:
		return fmt.Sprintf("Members with more than %d tier points", t.GoldMax)
	case models.SegmentVIP:
		return fmt.Sprintf("Members with at least %d points", vipThreshold(cfg))
	case models.SegmentDormant:
		return fmt.Sprintf("Members with no activity in the last %d days", dormantDays(cfg))
	case models.SegmentUnredeemed:
		return "Coupon holders who have not redeemed"
	case models.SegmentExpiringSoon:
		return "Unredeemed coupons expiring within 7 days"
	case models.SegmentAllTicketed:
		return "All ticket holders"
	case models.SegmentNotCheckedIn:
		return "Ticket holders who have not checked in"
	case models.SegmentCheckedIn:
		return "Ticket holders who have checked in"
	case models.SegmentGeographic:
		codes := normalizePostalCodes(cfg.PostalCodes)
		if len(codes) == 0 {
			return "Holders in selected postal codes"
		}
		return "Holders in postal codes " + strings.Join(codes, ", ")
	case models.SegmentExplicitIDs:
		ids := normalizeIDs(cfg.IDs)
		if len(ids) == 0 {
			return "Explicitly listed holders"
		}
		return fmt.Sprintf("%d explicitly listed holders", len(ids))
	}
	return string(segment)
}

func vipThreshold(cfg models.SegmentConfig) int64 {
	if cfg.VIPThreshold != nil {
		return *cfg.VIPThreshold
	}
	return DefaultVIPThreshold
}

func dormantDays(cfg models.SegmentConfig) int {
	if cfg.DormantDays != nil {
		return *cfg.DormantDays
	}
	return DefaultDormantDays
}

func normalizePostalCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func normalizeIDs(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = strings.ToLower(strings.TrimSpace(id)); id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}
