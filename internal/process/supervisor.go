package process

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/smazurov/bellbridge/internal/logging"
)

// Info describes a registered process.
type Info struct {
	ID        string    `json:"id"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	Command   string    `json:"command"`
}

// ExitFunc is called once per process after it exits. p is the handle
// Spawn returned, so a late exit can be told apart from a newer process
// under the same id. expected is true when the supervisor had already
// deregistered it (Kill, KillAll, or a replacing Spawn).
type ExitFunc func(p *Process, expected bool)

// Options configures a Supervisor.
type Options struct {
	// Logger for supervisor events. If nil, uses slog.Default().
	Logger logging.Logger

	// OutputLogger receives process output lines (e.g. module="ffmpeg").
	// If nil, Logger is used.
	OutputLogger logging.Logger

	// LogParser extracts levels from output lines (optional).
	LogParser LogParser

	// OutputHandler sees every output line (optional).
	OutputHandler OutputHandler

	// OnExit is called after each process exits (optional).
	OnExit ExitFunc
}

// Supervisor owns at most one process per id. A process is always
// removed from the registry before the supervisor signals it, so its
// exit can be told apart from a crash.
type Supervisor struct {
	opts   Options
	logger logging.Logger

	mu      sync.Mutex
	handles map[string]*Process
	wg      sync.WaitGroup
}

// NewSupervisor creates an empty supervisor.
func NewSupervisor(opts Options) *Supervisor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		opts:    opts,
		logger:  logger,
		handles: make(map[string]*Process),
	}
}

// Spawn launches name with args under id and writes stdin to it. Any
// process already registered under id is deregistered and killed first.
// A failed launch leaves nothing registered and is not retried.
func (s *Supervisor) Spawn(id, name string, args []string, stdin []byte) (*Process, error) {
	p := &Process{
		id:            id,
		name:          name,
		args:          args,
		logger:        s.logger,
		processLogger: s.opts.OutputLogger,
		logParser:     s.opts.LogParser,
		outputHandler: s.opts.OutputHandler,
		done:          make(chan struct{}),
	}

	// Held across start so two spawns for one id cannot both register.
	s.mu.Lock()
	if prev := s.handles[id]; prev != nil {
		delete(s.handles, id)
		s.logger.Warn("Replacing running process", "id", id, "pid", prev.PID())
		prev.kill()
	}
	if err := p.start(stdin); err != nil {
		s.mu.Unlock()
		s.logger.Error("Failed to spawn process", "id", id, "command", p.CommandLine(), "error", err)
		return nil, fmt.Errorf("spawn %s: %w", name, err)
	}
	s.handles[id] = p
	s.mu.Unlock()

	s.logger.Info("Process started", "id", id, "pid", p.PID(), "command", p.CommandLine())

	s.wg.Add(1)
	go s.reap(p)
	return p, nil
}

func (s *Supervisor) reap(p *Process) {
	defer s.wg.Done()
	<-p.done

	s.mu.Lock()
	unexpected := s.handles[p.id] == p
	if unexpected {
		delete(s.handles, p.id)
	}
	s.mu.Unlock()

	if unexpected {
		s.logger.Warn("Unexpected process exit", "id", p.id, "pid", p.PID(), "exit_code", p.exitCode)
	} else {
		s.logger.Info("Normal process exit", "id", p.id, "pid", p.PID(), "exit_code", p.exitCode)
	}

	if s.opts.OnExit != nil {
		s.opts.OnExit(p, !unexpected)
	}
}

// Kill deregisters and SIGKILLs the process for id. It returns false when
// nothing was registered. It does not wait for the exit.
func (s *Supervisor) Kill(id string) bool {
	s.mu.Lock()
	p := s.handles[id]
	delete(s.handles, id)
	s.mu.Unlock()

	if p == nil {
		return false
	}
	s.logger.Info("Killing process", "id", id, "pid", p.PID())
	p.kill()
	return true
}

// KillAll kills every registered process and waits for them to be reaped.
func (s *Supervisor) KillAll() {
	s.mu.Lock()
	procs := make([]*Process, 0, len(s.handles))
	for id, p := range s.handles {
		procs = append(procs, p)
		delete(s.handles, id)
	}
	s.mu.Unlock()

	for _, p := range procs {
		p.kill()
	}
	s.wg.Wait()
}

// Running reports whether a process is registered under id.
func (s *Supervisor) Running(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.handles[id]
	return ok
}

// Get returns the process registered under id.
func (s *Supervisor) Get(id string) (*Process, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.handles[id]
	return p, ok
}

// List returns the registered processes ordered by id.
func (s *Supervisor) List() []Info {
	s.mu.Lock()
	infos := make([]Info, 0, len(s.handles))
	for _, p := range s.handles {
		infos = append(infos, Info{
			ID:        p.id,
			PID:       p.PID(),
			StartedAt: p.startedAt,
			Command:   p.CommandLine(),
		})
	}
	s.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}
