package database

import "context"

// VideoStateStore exposes the latest upload ids as a poller state store.
type VideoStateStore struct {
	Repo *Repository
}

func (s VideoStateStore) Load(ctx context.Context) (map[string]string, error) {
	return s.Repo.VideoStates(ctx)
}

func (s VideoStateStore) Save(ctx context.Context, channelID, uploadID string) error {
	return s.Repo.UpdateVideoState(ctx, channelID, uploadID)
}

// LiveStateStore exposes the live flags as a poller state store.
type LiveStateStore struct {
	Repo *Repository
}

func (s LiveStateStore) Load(ctx context.Context) (map[string]bool, error) {
	return s.Repo.LiveStates(ctx)
}

func (s LiveStateStore) Save(ctx context.Context, userID string, live bool) error {
	return s.Repo.UpdateLiveState(ctx, userID, live)
}
