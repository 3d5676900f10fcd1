package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/smazurov/bellbridge/internal/logging"
	"golang.org/x/sync/singleflight"
)

// ErrNoTranscoder is returned when no candidate executable passes the probe.
var ErrNoTranscoder = errors.New("no suitable ffmpeg executable")

// Candidate is an executable plus the arguments that must precede every invocation.
type Candidate struct {
	Name string
	Args []string
}

func (c Candidate) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// DefaultCandidates are probed in order. The whitelist is needed for SDP
// input over a pipe but older builds reject the flag.
var DefaultCandidates = []Candidate{
	{Name: "ffmpeg", Args: []string{"-protocol_whitelist", "rtp,udp,pipe"}},
	{Name: "avconv", Args: []string{"-protocol_whitelist", "rtp,udp,pipe"}},
	{Name: "ffmpeg"},
	{Name: "avconv"},
}

// Runner executes name with args and reports whether it exited cleanly.
type Runner func(ctx context.Context, name string, args ...string) error

// ExecRunner runs the command with os/exec, discarding its output.
func ExecRunner(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Locator finds a working transcoder once and remembers it for the life
// of the process. Failed probes are not cached.
type Locator struct {
	candidates []Candidate
	run        Runner
	logger     logging.Logger

	group singleflight.Group
	mu    sync.RWMutex
	found *Candidate
}

// NewLocator creates a locator over candidates.
func NewLocator(candidates []Candidate, run Runner, logger logging.Logger) *Locator {
	return &Locator{candidates: candidates, run: run, logger: logger}
}

var defaultLocator = sync.OnceValue(func() *Locator {
	return NewLocator(DefaultCandidates, ExecRunner, logging.GetLogger("ffmpeg"))
})

// DefaultLocator returns the process-wide locator.
func DefaultLocator() *Locator {
	return defaultLocator()
}

// Cached returns the chosen candidate, if a probe has succeeded.
func (l *Locator) Cached() (Candidate, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.found == nil {
		return Candidate{}, false
	}
	return *l.found, true
}

// Locate returns the first candidate that answers -version. Concurrent
// callers share one probe run.
func (l *Locator) Locate(ctx context.Context) (Candidate, error) {
	if c, ok := l.Cached(); ok {
		return c, nil
	}

	v, err, _ := l.group.Do("probe", func() (any, error) {
		if c, ok := l.Cached(); ok {
			return c, nil
		}
		for _, c := range l.candidates {
			args := append(append([]string{}, c.Args...), "-version")
			if err := l.run(ctx, c.Name, args...); err != nil {
				l.logger.Debug("Transcoder probe failed", "candidate", c.String(), "error", err)
				continue
			}
			l.logger.Info("Transcoder found", "candidate", c.String())
			chosen := c
			l.mu.Lock()
			l.found = &chosen
			l.mu.Unlock()
			return chosen, nil
		}
		return nil, fmt.Errorf("%w (tried %d candidates)", ErrNoTranscoder, len(l.candidates))
	})
	if err != nil {
		return Candidate{}, err
	}
	return v.(Candidate), nil
}

// Command resolves the executable and prefixes args with its base arguments.
func (l *Locator) Command(ctx context.Context, args []string) (string, []string, error) {
	c, err := l.Locate(ctx)
	if err != nil {
		return "", nil, err
	}
	full := make([]string, 0, len(c.Args)+len(args))
	full = append(full, c.Args...)
	full = append(full, args...)
	return c.Name, full, nil
}
