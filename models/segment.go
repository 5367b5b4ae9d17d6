package models

// SegmentName identifies a targeting rule
type SegmentName string

const (
	SegmentAllActive    SegmentName = "ALL_ACTIVE"
	SegmentTierBronze   SegmentName = "TIER_BRONZE"
	SegmentTierSilver   SegmentName = "TIER_SILVER"
	SegmentTierGold     SegmentName = "TIER_GOLD"
	SegmentTierPlatinum SegmentName = "TIER_PLATINUM"
	SegmentVIP          SegmentName = "VIP"
	SegmentDormant      SegmentName = "DORMANT"
	SegmentUnredeemed   SegmentName = "UNREDEEMED"
	SegmentExpiringSoon SegmentName = "EXPIRING_SOON"
	SegmentAllTicketed  SegmentName = "ALL_TICKETED"
	SegmentNotCheckedIn SegmentName = "NOT_CHECKED_IN"
	SegmentCheckedIn    SegmentName = "CHECKED_IN"
	SegmentGeographic   SegmentName = "GEOGRAPHIC"
	SegmentExplicitIDs  SegmentName = "EXPLICIT_IDS"
	SegmentBirthday     SegmentName = "BIRTHDAY"
)

// ConfigKind names the caller-supplied parameter a segment takes
type ConfigKind string

const (
	ConfigNone        ConfigKind = ""
	ConfigThreshold   ConfigKind = "threshold"
	ConfigDays        ConfigKind = "days"
	ConfigPostalCodes ConfigKind = "postal_codes"
	ConfigIDs         ConfigKind = "ids"
)

// SegmentConfig carries optional per-request parameters. Nil fields use the segment default.
type SegmentConfig struct {
	VIPThreshold *int64   `json:"vipThreshold,omitempty"`
	DormantDays  *int     `json:"dormantDays,omitempty"`
	PostalCodes  []string `json:"postalCodes,omitempty"`
	IDs          []string `json:"ids,omitempty"`
}

// SegmentDefinition describes a segment available to a program
type SegmentDefinition struct {
	Name           SegmentName `json:"name"`
	Label          string      `json:"label"`
	Description    string      `json:"description"`
	ConfigKind     ConfigKind  `json:"configKind,omitempty"`
	RequiresConfig bool        `json:"requiresConfig"`
	EstimatedCount *int        `json:"estimatedCount,omitempty"`
}
