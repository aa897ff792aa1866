package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/fvckgrimm/discord-feed-notify/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAlreadySubscribed    = errors.New("subscription already exists")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// Repository handles database operations for tracked identities and subscriptions
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository instance
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// VideoStates returns the last seen upload id for every tracked YouTube channel.
func (r *Repository) VideoStates(ctx context.Context) (map[string]string, error) {
	var rows []models.VideoIdentity
	err := WithRetry(func() error {
		return r.db.WithContext(ctx).Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	states := make(map[string]string, len(rows))
	for _, row := range rows {
		states[row.CanonicalID] = row.LatestUpload()
	}
	return states, nil
}

// LiveStates returns the stored live flag for every tracked Twitch broadcaster.
func (r *Repository) LiveStates(ctx context.Context) (map[string]bool, error) {
	var rows []models.LiveIdentity
	err := WithRetry(func() error {
		return r.db.WithContext(ctx).Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	states := make(map[string]bool, len(rows))
	for _, row := range rows {
		states[row.CanonicalID] = row.IsLive
	}
	return states, nil
}

// UpdateVideoState overwrites the latest upload id. An empty id is stored as NULL.
func (r *Repository) UpdateVideoState(ctx context.Context, channelID, uploadID string) error {
	var value *string
	if uploadID != "" {
		value = &uploadID
	}
	return WithRetry(func() error {
		return r.db.WithContext(ctx).Model(&models.VideoIdentity{}).
			Where("canonical_id = ?", channelID).
			Update("latest_upload_id", value).Error
	})
}

// UpdateLiveState overwrites the stored live flag.
func (r *Repository) UpdateLiveState(ctx context.Context, userID string, live bool) error {
	return WithRetry(func() error {
		return r.db.WithContext(ctx).Model(&models.LiveIdentity{}).
			Where("canonical_id = ?", userID).
			Update("is_live", live).Error
	})
}

// IdentityExists reports whether the identity is tracked globally.
func (r *Repository) IdentityExists(ctx context.Context, platform models.Platform, id string) (bool, error) {
	model, err := identityModel(platform)
	if err != nil {
		return false, err
	}
	var count int64
	err = WithRetry(func() error {
		return r.db.WithContext(ctx).Model(model).Where("canonical_id = ?", id).Count(&count).Error
	})
	return count > 0, err
}

// SubscriptionExists reports whether the guild already follows the identity on the platform.
func (r *Repository) SubscriptionExists(ctx context.Context, guildID string, platform models.Platform, id string) (bool, error) {
	var count int64
	err := WithRetry(func() error {
		return subscriptionKey(r.db.WithContext(ctx), guildID, platform, id).Count(&count).Error
	})
	return count > 0, err
}

// Subscribe stores the subscription and, when given, the identity it refers to.
// Both rows are written in one transaction; an identity that already exists is left as is.
func (r *Repository) Subscribe(ctx context.Context, sub models.Subscription, identity models.Identity) error {
	if identity != nil && (identity.IdentityPlatform() != sub.Platform || identity.IdentityID() != sub.CanonicalID) {
		return fmt.Errorf("identity %s/%s does not match subscription %s/%s",
			identity.IdentityPlatform(), identity.IdentityID(), sub.Platform, sub.CanonicalID)
	}

	return WithRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := subscriptionKey(tx, sub.DestinationID, sub.Platform, sub.CanonicalID).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrAlreadySubscribed
			}

			if identity != nil {
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(identity).Error; err != nil {
					return fmt.Errorf("create identity: %w", err)
				}
			}

			if err := tx.Create(&sub).Error; err != nil {
				return fmt.Errorf("create subscription: %w", err)
			}
			return nil
		})
	})
}

// Unsubscribe deletes the guild's subscription. The tracked identity is kept.
func (r *Repository) Unsubscribe(ctx context.Context, guildID string, platform models.Platform, id string) error {
	var affected int64
	err := WithRetry(func() error {
		result := r.db.WithContext(ctx).Delete(&models.Subscription{},
			"destination_id = ? AND platform = ? AND canonical_id = ?", guildID, platform, id)
		affected = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// SubscriptionsFor returns every subscription for the identity on the platform.
func (r *Repository) SubscriptionsFor(ctx context.Context, platform models.Platform, id string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := WithRetry(func() error {
		return r.db.WithContext(ctx).
			Where("platform = ? AND canonical_id = ?", platform, id).
			Find(&subs).Error
	})
	return subs, err
}

// SubscriptionsForGuild returns all subscriptions for a specific guild
func (r *Repository) SubscriptionsForGuild(ctx context.Context, guildID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := WithRetry(func() error {
		return r.db.WithContext(ctx).
			Where("destination_id = ?", guildID).
			Order("platform, canonical_id").
			Find(&subs).Error
	})
	return subs, err
}

// DeleteGuildSubscriptions deletes all subscriptions for a specific guild
func (r *Repository) DeleteGuildSubscriptions(ctx context.Context, guildID string) (int64, error) {
	var affected int64
	err := WithRetry(func() error {
		result := r.db.WithContext(ctx).Delete(&models.Subscription{}, "destination_id = ?", guildID)
		affected = result.RowsAffected
		return result.Error
	})
	return affected, err
}

// CountSubscriptions counts all subscriptions
func (r *Repository) CountSubscriptions(ctx context.Context) (int64, error) {
	var count int64
	err := WithRetry(func() error {
		return r.db.WithContext(ctx).Model(&models.Subscription{}).Count(&count).Error
	})
	return count, err
}

// CountGuilds counts unique guilds with subscriptions
func (r *Repository) CountGuilds(ctx context.Context) (int64, error) {
	var count int64
	err := WithRetry(func() error {
		return r.db.WithContext(ctx).Model(&models.Subscription{}).Distinct("destination_id").Count(&count).Error
	})
	return count, err
}

// CountIdentities counts tracked identities on the platform.
func (r *Repository) CountIdentities(ctx context.Context, platform models.Platform) (int64, error) {
	model, err := identityModel(platform)
	if err != nil {
		return 0, err
	}
	var count int64
	err = WithRetry(func() error {
		return r.db.WithContext(ctx).Model(model).Count(&count).Error
	})
	return count, err
}

func subscriptionKey(db *gorm.DB, guildID string, platform models.Platform, id string) *gorm.DB {
	return db.Model(&models.Subscription{}).
		Where("destination_id = ? AND platform = ? AND canonical_id = ?", guildID, platform, id)
}

func identityModel(platform models.Platform) (any, error) {
	switch platform {
	case models.PlatformYouTube:
		return &models.VideoIdentity{}, nil
	case models.PlatformTwitch:
		return &models.LiveIdentity{}, nil
	}
	return nil, fmt.Errorf("unknown platform %q", platform)
}
