// Package metrics holds the Prometheus instruments for polling and delivery.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "feed_notify"

// Result label values.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	Ticks             *prometheus.CounterVec
	FetchChunks       *prometheus.CounterVec
	StateChanges      *prometheus.CounterVec
	Notifications     *prometheus.CounterVec
	TickDuration      *prometheus.HistogramVec
	TrackedIdentities *prometheus.GaugeVec
}

// New registers all instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Ticks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "ticks_total",
			Help: "Reconciliation ticks by platform and result",
		}, []string{"platform", "result"}),
		FetchChunks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "fetch_chunks_total",
			Help: "Upstream state requests by platform and result",
		}, []string{"platform", "result"}),
		StateChanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "state_changes_total",
			Help: "Tracked identities whose upstream state changed",
		}, []string{"platform"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_total",
			Help: "Notification deliveries by platform and result",
		}, []string{"platform", "result"}),
		TickDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "tick_duration_seconds",
			Help:    "Reconciliation tick duration seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"platform"}),
		TrackedIdentities: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "tracked_identities",
			Help: "Identities loaded at the last tick",
		}, []string{"platform"}),
	}
}

func (m *Metrics) ObserveTick(platform, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Ticks.WithLabelValues(platform, result).Inc()
	if result != ResultSkipped {
		m.TickDuration.WithLabelValues(platform).Observe(d.Seconds())
	}
}

func (m *Metrics) FetchChunk(platform string, err error) {
	if m == nil {
		return
	}
	m.FetchChunks.WithLabelValues(platform, result(err)).Inc()
}

func (m *Metrics) StateChanged(platform string) {
	if m == nil {
		return
	}
	m.StateChanges.WithLabelValues(platform).Inc()
}

func (m *Metrics) Notification(platform string, err error) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(platform, result(err)).Inc()
}

func (m *Metrics) SetTracked(platform string, n int) {
	if m == nil {
		return
	}
	m.TrackedIdentities.WithLabelValues(platform).Set(float64(n))
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// Serve exposes the registry on /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics server shutdown", slog.Any("err", err))
		}
	}()

	slog.Info("serving metrics", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
