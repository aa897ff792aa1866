package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"github.com/fvckgrimm/discord-feed-notify/internal/metrics"
	"github.com/fvckgrimm/discord-feed-notify/internal/models"
	"github.com/fvckgrimm/discord-feed-notify/internal/notify"
)

var ErrTickInProgress = errors.New("reconciliation tick already in progress")

// Phase is the step a Reconciler is currently executing.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseFetching
	PhaseDiffing
	PhasePersisting
	PhaseNotifying
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseFetching:
		return "fetching"
	case PhaseDiffing:
		return "diffing"
	case PhasePersisting:
		return "persisting"
	case PhaseNotifying:
		return "notifying"
	}
	return fmt.Sprintf("phase(%d)", int32(p))
}

// StateStore loads and overwrites the last observed state per identity.
type StateStore[S any] interface {
	Load(ctx context.Context) (map[string]S, error)
	Save(ctx context.Context, id string, state S) error
}

type SubscriptionLister interface {
	SubscriptionsFor(ctx context.Context, platform models.Platform, id string) ([]models.Subscription, error)
}

// Announcer builds the announcement for an identity that changed to state.
type Announcer[S any] interface {
	Announce(ctx context.Context, id string, state S) notify.Announcement
}

type Dispatcher interface {
	Dispatch(ctx context.Context, sub models.Subscription, ann notify.Announcement) error
}

// Report summarizes one tick.
type Report struct {
	Tracked        int
	Chunks         int
	FailedChunks   int
	Changed        int
	Notified       int
	DispatchErrors int
}

// Reconciler runs the poll, diff, persist and notify cycle for one platform.
// At most one tick runs at a time; a concurrent Tick returns ErrTickInProgress.
type Reconciler[S comparable] struct {
	Platform      models.Platform
	Fetcher       Fetcher[S]
	Store         StateStore[S]
	Subscriptions SubscriptionLister
	Announcer     Announcer[S]
	Dispatcher    Dispatcher
	// ShouldNotify decides whether a stored change is announced.
	ShouldNotify func(prev, next S) bool
	// KeepGoing continues with later chunks after a failed request.
	KeepGoing bool
	Metrics   *metrics.Metrics

	phase atomic.Int32
}

// NotifyOnUpload announces any change to a non-empty upload id.
func NotifyOnUpload(_, next string) bool { return next != "" }

// NotifyOnLive announces only the transition into live.
func NotifyOnLive(_, next bool) bool { return next }

func (r *Reconciler[S]) Phase() Phase {
	return Phase(r.phase.Load())
}

func (r *Reconciler[S]) setPhase(p Phase) {
	r.phase.Store(int32(p))
}

func (r *Reconciler[S]) logger() *slog.Logger {
	return slog.Default().With(slog.String("platform", string(r.Platform)))
}

// Tick runs one reconciliation pass. Fetch failures are reported in the
// returned error after every applied chunk has been persisted and announced.
func (r *Reconciler[S]) Tick(ctx context.Context) (rep Report, err error) {
	if !r.phase.CompareAndSwap(int32(PhaseIdle), int32(PhaseFetching)) {
		r.Metrics.ObserveTick(string(r.Platform), metrics.ResultSkipped, 0)
		return rep, ErrTickInProgress
	}
	defer r.setPhase(PhaseIdle)

	start := time.Now()
	defer func() {
		result := metrics.ResultOK
		if err != nil {
			result = metrics.ResultError
		}
		r.Metrics.ObserveTick(string(r.Platform), result, time.Since(start))
	}()

	stored, err := r.Store.Load(ctx)
	if err != nil {
		return rep, fmt.Errorf("load %s states: %w", r.Platform, err)
	}
	rep.Tracked = len(stored)
	r.Metrics.SetTracked(string(r.Platform), len(stored))
	if len(stored) == 0 {
		return rep, nil
	}

	ids := slices.Sorted(maps.Keys(stored))
	results, applyErr := FetchBatches(ctx, r.Fetcher, ids, r.KeepGoing, func(res ChunkResult[S]) error {
		err := r.apply(ctx, stored, res, &rep)
		r.setPhase(PhaseFetching)
		return err
	})

	var fetchErrs []error
	for _, res := range results {
		r.Metrics.FetchChunk(string(r.Platform), res.Err)
		if res.Err != nil {
			fetchErrs = append(fetchErrs, fmt.Errorf("chunk of %d ids: %w", len(res.IDs), res.Err))
		}
	}
	rep.Chunks = len(results)
	rep.FailedChunks = len(fetchErrs)

	if applyErr != nil {
		return rep, applyErr
	}
	return rep, errors.Join(fetchErrs...)
}

type change[S any] struct {
	id         string
	prev, next S
}

// apply diffs one fetched chunk against stored, persisting and announcing
// every change before moving to the next identity.
func (r *Reconciler[S]) apply(ctx context.Context, stored map[string]S, res ChunkResult[S], rep *Report) error {
	r.setPhase(PhaseDiffing)
	var changes []change[S]
	for _, id := range res.IDs {
		next, ok := res.States[id]
		if !ok {
			continue
		}
		if prev := stored[id]; prev != next {
			changes = append(changes, change[S]{id: id, prev: prev, next: next})
		}
	}

	for _, c := range changes {
		r.setPhase(PhasePersisting)
		if err := r.Store.Save(ctx, c.id, c.next); err != nil {
			return fmt.Errorf("save %s state for %s: %w", r.Platform, c.id, err)
		}
		stored[c.id] = c.next
		rep.Changed++
		r.Metrics.StateChanged(string(r.Platform))

		r.setPhase(PhaseNotifying)
		r.notify(ctx, c.id, c.prev, c.next, rep)
	}
	return nil
}

func (r *Reconciler[S]) notify(ctx context.Context, id string, prev, next S, rep *Report) {
	log := r.logger().With(slog.String("id", id))
	if r.ShouldNotify != nil && !r.ShouldNotify(prev, next) {
		log.Debug("state changed silently")
		return
	}

	subs, err := r.Subscriptions.SubscriptionsFor(ctx, r.Platform, id)
	if err != nil {
		log.Error("failed to list subscriptions", slog.Any("err", err))
		return
	}
	if len(subs) == 0 {
		return
	}

	ann := r.Announcer.Announce(ctx, id, next)
	for _, sub := range subs {
		err := r.Dispatcher.Dispatch(ctx, sub, ann)
		r.Metrics.Notification(string(r.Platform), err)
		if err != nil {
			rep.DispatchErrors++
			log.Warn("failed to deliver notification",
				slog.String("guild_id", sub.DestinationID),
				slog.String("channel_id", sub.TargetChannelID),
				slog.Any("err", err))
			continue
		}
		rep.Notified++
	}
}

// Run ticks immediately and then every interval until ctx is done.
func (r *Reconciler[S]) Run(ctx context.Context, interval time.Duration) {
	r.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Reconciler[S]) runOnce(ctx context.Context) {
	log := r.logger()
	rep, err := r.Tick(ctx)
	switch {
	case errors.Is(err, ErrTickInProgress):
		log.Warn("previous tick still running, skipping")
		return
	case err != nil && ctx.Err() != nil:
		return
	case err != nil:
		log.Error("reconciliation tick failed",
			slog.Int("chunks", rep.Chunks),
			slog.Int("failed_chunks", rep.FailedChunks),
			slog.Int("changed", rep.Changed),
			slog.Any("err", err))
		return
	}
	log.Debug("reconciliation tick done",
		slog.Int("tracked", rep.Tracked),
		slog.Int("changed", rep.Changed),
		slog.Int("notified", rep.Notified),
		slog.Int("dispatch_errors", rep.DispatchErrors))
}
