// Package metrics provides Prometheus metrics for camera sessions and
// doorbell triggers.
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bellbridge"

var (
	sessionsPrepared = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "sessions_prepared_total",
		Help:      "Stream sessions negotiated by clients",
	})

	streamsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "streams_started_total",
		Help:      "Transcoders started, by mode",
	}, []string{"mode"})

	streamsStopped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "streams_stopped_total",
		Help:      "Calls ended, by reason",
	}, []string{"reason"})

	streamFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "stream_failures_total",
		Help:      "Stream starts abandoned, by error code",
	}, []string{"code"})

	activeStreams = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "active_streams",
		Help:      "Running transcoders, by mode",
	}, []string{"mode"})

	processExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "exits_total",
		Help:      "Transcoder process exits",
	}, []string{"expected"})

	doorbellTriggers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "doorbell",
		Name:      "triggers_total",
		Help:      "Accepted button presses and motion events",
	}, []string{"doorbell", "kind", "source"})

	doorbellMaxHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "doorbell",
		Name:      "max_height",
		Help:      "Maximum video height from the doorbell's settings",
	}, []string{"doorbell"})

	// Local mirror of the active stream gauge for the status API.
	activeMu    sync.RWMutex
	activeModes = make(map[string]string)
)

// RecordSessionPrepared counts a negotiated session.
func RecordSessionPrepared() {
	sessionsPrepared.Inc()
}

// RecordStreamStarted counts a started transcoder and marks it active.
func RecordStreamStarted(sessionID, mode string) {
	streamsStarted.WithLabelValues(mode).Inc()

	activeMu.Lock()
	defer activeMu.Unlock()
	if prev, ok := activeModes[sessionID]; ok {
		activeStreams.WithLabelValues(prev).Dec()
	}
	activeModes[sessionID] = mode
	activeStreams.WithLabelValues(mode).Inc()
}

// RecordStreamStopped counts an ended call and clears it from the active set.
func RecordStreamStopped(sessionID, reason string) {
	streamsStopped.WithLabelValues(reason).Inc()

	activeMu.Lock()
	defer activeMu.Unlock()
	if mode, ok := activeModes[sessionID]; ok {
		activeStreams.WithLabelValues(mode).Dec()
		delete(activeModes, sessionID)
	}
}

// RecordStreamFailed counts an abandoned start.
func RecordStreamFailed(code string) {
	streamFailures.WithLabelValues(code).Inc()
}

// RecordProcessExit counts a transcoder exit.
func RecordProcessExit(expected bool) {
	processExits.WithLabelValues(strconv.FormatBool(expected)).Inc()
}

// RecordTrigger counts an accepted doorbell trigger.
func RecordTrigger(doorbell, kind, source string) {
	doorbellTriggers.WithLabelValues(doorbell, kind, source).Inc()
}

// SetMaxHeight records a doorbell's maximum video height.
func SetMaxHeight(doorbell string, height int) {
	doorbellMaxHeight.WithLabelValues(doorbell).Set(float64(height))
}

// ActiveStreams returns the running transcoders keyed by session id, with
// their mode.
func ActiveStreams() map[string]string {
	activeMu.RLock()
	defer activeMu.RUnlock()
	out := make(map[string]string, len(activeModes))
	for id, mode := range activeModes {
		out[id] = mode
	}
	return out
}
