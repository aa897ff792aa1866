package models

// Subscription binds a guild to a tracked identity and says where to announce it.
type Subscription struct {
	DestinationID   string   `gorm:"primaryKey;column:destination_id;index:idx_subscription_destination"`
	Platform        Platform `gorm:"primaryKey;column:platform;index:idx_subscription_identity,priority:1"`
	CanonicalID     string   `gorm:"primaryKey;column:canonical_id;index:idx_subscription_identity,priority:2"`
	TargetChannelID string   `gorm:"column:target_channel_id;not null"`
	MentionRoleID   *string  `gorm:"column:mention_role_id"`
}

func (Subscription) TableName() string { return "subscription" }

// MentionRole returns the role to ping, or "" for none.
func (s Subscription) MentionRole() string {
	if s.MentionRoleID == nil {
		return ""
	}
	return *s.MentionRoleID
}

type SchemaVersion struct {
	Version int `gorm:"primaryKey;autoIncrement:false"`
}

func (SchemaVersion) TableName() string { return "schema_version" }
