package models

// Platform identifies the external service a tracked identity lives on.
type Platform string

const (
	PlatformYouTube Platform = "youtube"
	PlatformTwitch  Platform = "twitch"
)

// Platforms lists every supported platform.
var Platforms = []Platform{PlatformYouTube, PlatformTwitch}

func (p Platform) Valid() bool {
	switch p {
	case PlatformYouTube, PlatformTwitch:
		return true
	}
	return false
}

// Label is the display name used in messages.
func (p Platform) Label() string {
	switch p {
	case PlatformYouTube:
		return "YouTube"
	case PlatformTwitch:
		return "Twitch"
	}
	return string(p)
}

// Identity is a globally tracked channel row for one platform.
type Identity interface {
	IdentityPlatform() Platform
	IdentityID() string
}

// VideoIdentity is a tracked YouTube channel and the last upload seen for it.
type VideoIdentity struct {
	CanonicalID    string  `gorm:"primaryKey;column:canonical_id"`
	LatestUploadID *string `gorm:"column:latest_upload_id;uniqueIndex"`
}

func (VideoIdentity) TableName() string { return "video_identity" }

func (VideoIdentity) IdentityPlatform() Platform { return PlatformYouTube }

func (v VideoIdentity) IdentityID() string { return v.CanonicalID }

// LatestUpload returns the stored upload id, or "" when none has been seen.
func (v VideoIdentity) LatestUpload() string {
	if v.LatestUploadID == nil {
		return ""
	}
	return *v.LatestUploadID
}

// LiveIdentity is a tracked Twitch broadcaster and whether it was live at the last poll.
type LiveIdentity struct {
	CanonicalID string `gorm:"primaryKey;column:canonical_id"`
	IsLive      bool   `gorm:"column:is_live"`
}

func (LiveIdentity) TableName() string { return "live_identity" }

func (LiveIdentity) IdentityPlatform() Platform { return PlatformTwitch }

func (l LiveIdentity) IdentityID() string { return l.CanonicalID }
