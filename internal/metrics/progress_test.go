package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func feed(c *ProgressCollector, id, source string, lines ...string) {
	for _, line := range lines {
		c.HandleLine(id, source, line)
	}
}

func TestProgressCollector(t *testing.T) {
	c := NewProgressCollector()
	id := "progress-s1"

	feed(c, id, "stdout", "frame=120", "fps=29.97", "drop_frames=3")
	if _, ok := c.Stats(id); ok {
		t.Fatal("stats recorded before the report closed")
	}

	feed(c, id, "stdout", "speed=1.25x", "progress=continue")
	s, ok := c.Stats(id)
	if !ok {
		t.Fatal("no stats")
	}
	if s.FPS != 29.97 || s.DroppedFrames != 3 || s.Speed != 1.25 {
		t.Errorf("stats = %+v", s)
	}
	if got := testutil.ToFloat64(transcoderFPS.WithLabelValues(id)); got != 29.97 {
		t.Errorf("fps gauge = %v", got)
	}

	// Unparseable values keep the previous reading.
	feed(c, id, "stdout", "fps=30", "speed=N/A", "progress=continue")
	if s, _ := c.Stats(id); s.FPS != 30 || s.Speed != 1.25 {
		t.Errorf("stats = %+v", s)
	}

	feed(c, id, "stdout", "progress=end")
	if _, ok := c.Stats(id); ok {
		t.Error("stats kept after end")
	}
}

func TestProgressCollectorIgnoresOtherOutput(t *testing.T) {
	c := NewProgressCollector()
	feed(c, "progress-s2", "stderr", "fps=10", "progress=continue")
	feed(c, "progress-s2", "stdout", "[warning] fps=10", "frame=  120 fps= 30")
	if _, ok := c.Stats("progress-s2"); ok {
		t.Error("non-progress output recorded")
	}
}

func TestProgressCollectorForget(t *testing.T) {
	c := NewProgressCollector()
	feed(c, "progress-s3", "stdout", "fps=25", "progress=continue")
	c.Forget("progress-s3")
	if _, ok := c.Stats("progress-s3"); ok {
		t.Error("stats kept after Forget")
	}
}
