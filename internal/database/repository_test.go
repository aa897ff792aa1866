package database

import (
	"context"
	"errors"
	"testing"

	"github.com/fvckgrimm/discord-feed-notify/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { Close(db) })
	return db
}

func strPtr(s string) *string { return &s }

func videoSub(guild, channel string) models.Subscription {
	return models.Subscription{
		DestinationID:   guild,
		Platform:        models.PlatformYouTube,
		CanonicalID:     channel,
		TargetChannelID: "chan-" + guild,
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db))

	var sv models.SchemaVersion
	require.NoError(t, db.First(&sv).Error)
	assert.Equal(t, len(migrations), sv.Version)

	for _, table := range []string{"video_identity", "live_identity", "subscription"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestSubscribeCreatesIdentityOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))
	const channel = "UCaaaaaaaaaaaaaaaaaaaaaa"

	err := repo.Subscribe(ctx, videoSub("g1", channel), &models.VideoIdentity{CanonicalID: channel, LatestUploadID: strPtr("abc")})
	require.NoError(t, err)

	// A second guild following the same channel must not duplicate or reset the identity.
	err = repo.Subscribe(ctx, videoSub("g2", channel), &models.VideoIdentity{CanonicalID: channel})
	require.NoError(t, err)

	states, err := repo.VideoStates(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{channel: "abc"}, states)

	subs, err := repo.SubscriptionsFor(ctx, models.PlatformYouTube, channel)
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	n, err := repo.CountIdentities(ctx, models.PlatformYouTube)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSubscribeRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))
	const channel = "UCaaaaaaaaaaaaaaaaaaaaaa"

	require.NoError(t, repo.Subscribe(ctx, videoSub("g1", channel), &models.VideoIdentity{CanonicalID: channel}))
	err := repo.Subscribe(ctx, videoSub("g1", channel), nil)
	assert.ErrorIs(t, err, ErrAlreadySubscribed)

	// Same id on the other platform is a different subscription.
	live := models.Subscription{DestinationID: "g1", Platform: models.PlatformTwitch, CanonicalID: channel, TargetChannelID: "c"}
	assert.NoError(t, repo.Subscribe(ctx, live, &models.LiveIdentity{CanonicalID: channel}))
}

func TestSubscribeRollsBackIdentityOnFailure(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewRepository(db)

	err := db.Callback().Create().Before("gorm:create").Register("test:fail_subscription", func(tx *gorm.DB) {
		if tx.Statement.Table == "subscription" {
			_ = tx.AddError(errors.New("disk full"))
		}
	})
	require.NoError(t, err)

	err = repo.Subscribe(ctx, videoSub("g1", "UCbbbbbbbbbbbbbbbbbbbbbb"), &models.VideoIdentity{CanonicalID: "UCbbbbbbbbbbbbbbbbbbbbbb"})
	require.Error(t, err)

	exists, err := repo.IdentityExists(ctx, models.PlatformYouTube, "UCbbbbbbbbbbbbbbbbbbbbbb")
	require.NoError(t, err)
	assert.False(t, exists, "identity insert must roll back with the subscription")
}

func TestSubscribeRejectsMismatchedIdentity(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	err := repo.Subscribe(context.Background(), videoSub("g1", "UCaaaaaaaaaaaaaaaaaaaaaa"), &models.LiveIdentity{CanonicalID: "123"})
	assert.Error(t, err)
}

func TestUnsubscribeKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))

	sub := models.Subscription{DestinationID: "g1", Platform: models.PlatformTwitch, CanonicalID: "42", TargetChannelID: "c", MentionRoleID: strPtr("r1")}
	require.NoError(t, repo.Subscribe(ctx, sub, &models.LiveIdentity{CanonicalID: "42", IsLive: true}))

	require.NoError(t, repo.Unsubscribe(ctx, "g1", models.PlatformTwitch, "42"))
	assert.ErrorIs(t, repo.Unsubscribe(ctx, "g1", models.PlatformTwitch, "42"), ErrSubscriptionNotFound)

	states, err := repo.LiveStates(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"42": true}, states)
}

func TestUpdateStates(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))

	require.NoError(t, repo.Subscribe(ctx, videoSub("g1", "UCaaaaaaaaaaaaaaaaaaaaaa"), &models.VideoIdentity{CanonicalID: "UCaaaaaaaaaaaaaaaaaaaaaa"}))
	require.NoError(t, repo.Subscribe(ctx, videoSub("g1", "UCbbbbbbbbbbbbbbbbbbbbbb"), &models.VideoIdentity{CanonicalID: "UCbbbbbbbbbbbbbbbbbbbbbb"}))
	require.NoError(t, repo.Subscribe(ctx,
		models.Subscription{DestinationID: "g1", Platform: models.PlatformTwitch, CanonicalID: "42", TargetChannelID: "c"},
		&models.LiveIdentity{CanonicalID: "42"}))

	require.NoError(t, repo.UpdateVideoState(ctx, "UCaaaaaaaaaaaaaaaaaaaaaa", "xyz"))
	require.NoError(t, repo.UpdateLiveState(ctx, "42", true))

	videos, err := repo.VideoStates(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"UCaaaaaaaaaaaaaaaaaaaaaa": "xyz", "UCbbbbbbbbbbbbbbbbbbbbbb": ""}, videos)

	lives, err := repo.LiveStates(ctx)
	require.NoError(t, err)
	assert.True(t, lives["42"])
}

func TestGuildQueries(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))

	require.NoError(t, repo.Subscribe(ctx, videoSub("g1", "UCaaaaaaaaaaaaaaaaaaaaaa"), &models.VideoIdentity{CanonicalID: "UCaaaaaaaaaaaaaaaaaaaaaa"}))
	require.NoError(t, repo.Subscribe(ctx, videoSub("g2", "UCaaaaaaaaaaaaaaaaaaaaaa"), nil))
	require.NoError(t, repo.Subscribe(ctx,
		models.Subscription{DestinationID: "g1", Platform: models.PlatformTwitch, CanonicalID: "42", TargetChannelID: "c"},
		&models.LiveIdentity{CanonicalID: "42"}))

	subs, err := repo.SubscriptionsForGuild(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, models.PlatformTwitch, subs[0].Platform)

	guilds, err := repo.CountGuilds(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, guilds)

	removed, err := repo.DeleteGuildSubscriptions(ctx, "g1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	total, err := repo.CountSubscriptions(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestWithRetry(t *testing.T) {
	calls := 0
	err := WithRetry(func() error {
		calls++
		if calls < 2 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	boom := errors.New("boom")
	assert.ErrorIs(t, WithRetry(func() error { calls++; return boom }), boom)
	assert.Equal(t, 1, calls)
}
