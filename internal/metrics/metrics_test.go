package metrics

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveTick("youtube", ResultOK, time.Second)
	m.FetchChunk("youtube", nil)
	m.StateChanged("youtube")
	m.Notification("youtube", errors.New("boom"))
	m.SetTracked("youtube", 3)
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveTick("twitch", ResultOK, 200*time.Millisecond)
	m.ObserveTick("twitch", ResultSkipped, 0)
	m.FetchChunk("twitch", nil)
	m.FetchChunk("twitch", errors.New("503"))
	m.StateChanged("twitch")
	m.Notification("twitch", nil)
	m.SetTracked("twitch", 120)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Ticks.WithLabelValues("twitch", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Ticks.WithLabelValues("twitch", ResultSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchChunks.WithLabelValues("twitch", ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StateChanges.WithLabelValues("twitch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("twitch", ResultOK)))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.TrackedIdentities.WithLabelValues("twitch")))
	// Skipped ticks do not observe a duration.
	assert.Equal(t, 1, testutil.CollectAndCount(m.TickDuration))
}

func TestServe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.StateChanged("youtube")

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, addr, reg) }()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		body = string(b)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
	assert.True(t, strings.Contains(body, `feed_notify_state_changes_total{platform="youtube"} 1`), body)

	cancel()
	require.NoError(t, <-done)
}
