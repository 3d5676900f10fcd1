package camera

import (
	"context"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/wlynxg/anet"

	"github.com/smazurov/bellbridge/internal/events"
	"github.com/smazurov/bellbridge/internal/ffmpeg"
	"github.com/smazurov/bellbridge/internal/logging"
	"github.com/smazurov/bellbridge/internal/process"
)

// DefaultMaxCalls is the number of calls the doorbell serves at once.
const DefaultMaxCalls = 2

// DefaultRecording is the resolution of clips recorded by the doorbell.
var DefaultRecording = ffmpeg.Resolution{Width: 1280, Height: 720, FPS: ffmpeg.MaxFPS}

// Options configures a Streamer.
type Options struct {
	// Name identifies the camera in logs and SDP.
	Name string

	Device   Device
	Spawner  Spawner
	Resolver Resolver

	// Publisher receives lifecycle events (optional).
	Publisher events.Publisher
	// Logger defaults to slog.Default().
	Logger logging.Logger

	// Binder opens punch sockets; defaults to ListenUDP.
	Binder Binder
	// Address is advertised in setup responses instead of an interface address.
	Address string
	// InterfaceAddrs defaults to anet.InterfaceAddrs.
	InterfaceAddrs func() ([]net.Addr, error)
	// Now defaults to time.Now.
	Now func() time.Time

	// MaxHeight is the initial device resolution limit; 0 means 1080.
	MaxHeight int
	// Recording is the resolution of recorded clips; zero means DefaultRecording.
	Recording ffmpeg.Resolution

	ReplayEnabled bool
	// MaxCalls caps concurrent calls; values below 1 mean DefaultMaxCalls.
	MaxCalls int

	// StopTimeout bounds each device StopCall; 0 means 10s.
	StopTimeout time.Duration
}

// Streamer is the camera streaming core for one doorbell.
type Streamer struct {
	name           string
	device         Device
	spawner        Spawner
	resolver       Resolver
	publisher      events.Publisher
	logger         logging.Logger
	bind           Binder
	address        string
	interfaceAddrs func() ([]net.Addr, error)
	now            func() time.Time
	recording      ffmpeg.Resolution
	stopTimeout    time.Duration

	// opMu serializes stream starts and stops.
	opMu sync.Mutex

	mu            sync.RWMutex
	maxHeight     int
	activity      *Activity
	replayEnabled bool
	maxCalls      int
	sessions      map[string]*Session
	active        []string // session ids with a running call, oldest first
	procs         map[string]*process.Process

	snapMu   sync.Mutex
	snapshot snapshotCache
}

// New creates a Streamer.
func New(opts Options) *Streamer {
	s := &Streamer{
		name:           opts.Name,
		device:         opts.Device,
		spawner:        opts.Spawner,
		resolver:       opts.Resolver,
		publisher:      opts.Publisher,
		logger:         opts.Logger,
		bind:           opts.Binder,
		address:        opts.Address,
		interfaceAddrs: opts.InterfaceAddrs,
		now:            opts.Now,
		recording:      opts.Recording,
		stopTimeout:    opts.StopTimeout,
		maxHeight:      opts.MaxHeight,
		replayEnabled:  opts.ReplayEnabled,
		maxCalls:       opts.MaxCalls,
		sessions:       make(map[string]*Session),
		procs:          make(map[string]*process.Process),
	}
	if s.name == "" {
		s.name = "SkyBell"
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.bind == nil {
		s.bind = ListenUDP
	}
	if s.interfaceAddrs == nil {
		s.interfaceAddrs = anet.InterfaceAddrs
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.recording == (ffmpeg.Resolution{}) {
		s.recording = DefaultRecording
	}
	if s.stopTimeout <= 0 {
		s.stopTimeout = 10 * time.Second
	}
	if s.maxHeight <= 0 {
		s.maxHeight = ffmpeg.Ladder[0].Height
	}
	if s.maxCalls < 1 {
		s.maxCalls = DefaultMaxCalls
	}
	return s
}

// Name returns the camera name.
func (s *Streamer) Name() string {
	return s.name
}

// Capabilities returns the current capability descriptor. While a replay
// is pinned the ladder also admits the recording resolution.
func (s *Streamer) Capabilities() Capabilities {
	s.mu.RLock()
	limit := s.maxHeight
	if s.replayEnabled && s.activity != nil {
		limit = max(limit, s.recording.Height)
	}
	s.mu.RUnlock()
	return NewCapabilities(limit)
}

// SetMaxResolution sets the device's usable vertical resolution.
func (s *Streamer) SetMaxResolution(height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxHeight != height {
		s.logger.Info("Maximum resolution changed", "camera", s.name, "height", height)
		s.maxHeight = height
	}
}

// SetActivity pins the activity to replay instead of streaming live. nil
// clears it.
func (s *Streamer) SetActivity(activity *Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if activity == nil {
		if s.activity != nil {
			s.logger.Info("Replay activity cleared", "camera", s.name)
		}
		s.activity = nil
		return
	}
	a := *activity
	s.activity = &a
	s.logger.Info("Replay activity pinned", "camera", s.name, "activity_id", a.ID, "created_at", a.CreatedAt)
}

// SetReplayEnabled toggles recorded playback.
func (s *Streamer) SetReplayEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replayEnabled != enabled {
		s.logger.Info("Replay setting changed", "camera", s.name, "enabled", enabled)
		s.replayEnabled = enabled
	}
}

// SetMaxCalls changes the call slot limit. Running calls are not ended;
// the limit applies to the next start.
func (s *Streamer) SetMaxCalls(n int) {
	if n < 1 {
		n = DefaultMaxCalls
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxCalls != n {
		s.logger.Info("Call slot limit changed", "camera", s.name, "max_calls", n)
		s.maxCalls = n
	}
}

// Session returns the session registered under id.
func (s *Streamer) Session(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Sessions returns all registered sessions, oldest first.
func (s *Streamer) Sessions() []*Session {
	s.mu.RLock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ActiveCalls returns the session ids with a running call, oldest first.
func (s *Streamer) ActiveCalls() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.active...)
}

// HandleStreamRequest processes a stream request and logs any failure. A
// start for an unknown session is a no-op.
func (s *Streamer) HandleStreamRequest(ctx context.Context, req StreamRequest) {
	err := s.ProcessStreamRequest(ctx, req)
	if ErrorCode(err) == ErrCodeSessionNotFound {
		s.logger.Warn("Stream request for unknown session ignored",
			"camera", s.name,
			"session_id", req.SessionID,
			"type", req.Type)
		return
	}
	if err != nil {
		s.logger.Error("Stream request failed",
			"camera", s.name,
			"session_id", req.SessionID,
			"type", req.Type,
			"error", err)
	}
}

// ProcessStreamRequest is HandleStreamRequest with the error returned.
// Unknown request types are logged and ignored.
func (s *Streamer) ProcessStreamRequest(ctx context.Context, req StreamRequest) error {
	s.logger.Debug("Stream request", "camera", s.name, "session_id", req.SessionID, "type", req.Type)

	switch req.Type {
	case RequestStart:
		return s.startStream(ctx, req)
	case RequestStop:
		s.stopStream(ctx, req.SessionID)
		return nil
	case RequestReconfigure:
		s.reconfigure(req)
		return nil
	default:
		s.logger.Warn("Stream request type not supported", "session_id", req.SessionID, "type", req.Type)
		return nil
	}
}

// ProcessExited ends the call of a session whose transcoder died on its
// own. Expected exits, and exits of a transcoder the session has since
// replaced, are ignored.
func (s *Streamer) ProcessExited(id string, p *process.Process, expected bool) {
	if expected || p == nil {
		return
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	current := s.procs[id]
	s.mu.RUnlock()
	if current != p {
		s.logger.Debug("Ignoring exit of replaced transcoder", "session_id", id)
		return
	}
	if s.isActive(id) {
		s.endCall(context.Background(), id, "exited")
	}
}

// Close ends every running call and forgets all sessions.
func (s *Streamer) Close() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	for _, id := range s.ActiveCalls() {
		s.endCall(context.Background(), id, "shutdown")
	}
	s.mu.Lock()
	clear(s.sessions)
	s.mu.Unlock()
}

func (s *Streamer) putSession(sess *Session) {
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
}

func (s *Streamer) deleteSession(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *Streamer) isActive(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.active {
		if a == id {
			return true
		}
	}
	return false
}

func (s *Streamer) publish(ev events.Event) {
	if s.publisher != nil {
		s.publisher.Publish(ev)
	}
}
