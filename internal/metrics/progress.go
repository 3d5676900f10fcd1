package metrics

import (
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smazurov/bellbridge/internal/ffmpeg"
)

var (
	transcoderFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "fps",
		Help:      "Current transcoder output FPS",
	}, []string{"session_id"})

	transcoderDroppedFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "dropped_frames_total",
		Help:      "Frames dropped by the transcoder",
	}, []string{"session_id"})

	transcoderSpeed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "processing_speed",
		Help:      "Transcoder speed relative to real time",
	}, []string{"session_id"})
)

// TranscoderStats holds the latest progress report of a transcoder.
type TranscoderStats struct {
	FPS           float64 `json:"fps"`
	DroppedFrames float64 `json:"dropped_frames"`
	Speed         float64 `json:"speed"`
}

// ProgressCollector turns ffmpeg -progress reports on stdout into gauges.
// It implements process.OutputHandler.
type ProgressCollector struct {
	mu      sync.Mutex
	pending map[string]map[string]string
	stats   map[string]TranscoderStats
}

// NewProgressCollector creates an empty collector.
func NewProgressCollector() *ProgressCollector {
	return &ProgressCollector{
		pending: make(map[string]map[string]string),
		stats:   make(map[string]TranscoderStats),
	}
}

// HandleLine accumulates key=value lines until a progress= line closes
// the report.
func (c *ProgressCollector) HandleLine(id, source, line string) {
	if source != "stdout" || !ffmpeg.IsProgressLine(line) {
		return
	}
	key, value, _ := strings.Cut(line, "=")

	c.mu.Lock()
	defer c.mu.Unlock()

	report := c.pending[id]
	if report == nil {
		report = make(map[string]string)
		c.pending[id] = report
	}
	report[key] = value
	if key != "progress" {
		return
	}
	delete(c.pending, id)

	if value == "end" {
		c.forget(id)
		return
	}
	c.record(id, report)
}

// record must be called with mu held.
func (c *ProgressCollector) record(id string, report map[string]string) {
	s := c.stats[id]
	if fps, err := strconv.ParseFloat(report["fps"], 64); err == nil {
		s.FPS = fps
		transcoderFPS.WithLabelValues(id).Set(fps)
	}
	if dropped, err := strconv.ParseFloat(report["drop_frames"], 64); err == nil {
		s.DroppedFrames = dropped
		transcoderDroppedFrames.WithLabelValues(id).Set(dropped)
	}
	speed := strings.TrimSpace(strings.TrimSuffix(report["speed"], "x"))
	if v, err := strconv.ParseFloat(speed, 64); err == nil {
		s.Speed = v
		transcoderSpeed.WithLabelValues(id).Set(v)
	}
	c.stats[id] = s
}

// forget must be called with mu held.
func (c *ProgressCollector) forget(id string) {
	delete(c.stats, id)
	delete(c.pending, id)
	transcoderFPS.DeleteLabelValues(id)
	transcoderDroppedFrames.DeleteLabelValues(id)
	transcoderSpeed.DeleteLabelValues(id)
}

// Forget drops a session's stats, e.g. after its transcoder exits.
func (c *ProgressCollector) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forget(id)
}

// Stats returns the latest stats of a session's transcoder.
func (c *ProgressCollector) Stats(id string) (TranscoderStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.stats[id]
	return s, ok
}
