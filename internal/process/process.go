package process

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/bellbridge/internal/logging"
)

// OutputHandler receives output lines from the subprocess.
type OutputHandler interface {
	HandleLine(id, source, line string)
}

// LogParser splits a line of process output into a level
// (error, warn, info, debug) and a message.
type LogParser func(line string) (level, msg string)

// Process is one running external command.
type Process struct {
	id        string
	name      string
	args      []string
	cmd       *exec.Cmd
	startedAt time.Time

	logger        logging.Logger
	processLogger logging.Logger
	logParser     LogParser
	outputHandler OutputHandler

	done     chan struct{}
	exitCode int
	exitErr  error
	killOnce sync.Once
}

// ID returns the registry key the process was spawned under.
func (p *Process) ID() string { return p.id }

// PID returns the operating system process id.
func (p *Process) PID() int { return p.cmd.Process.Pid }

// StartedAt returns when the process was launched.
func (p *Process) StartedAt() time.Time { return p.startedAt }

// CommandLine returns the full command for logging.
func (p *Process) CommandLine() string {
	return p.name + " " + strings.Join(p.args, " ")
}

// Done is closed once the process has exited and its output is drained.
func (p *Process) Done() <-chan struct{} { return p.done }

// ExitCode returns the exit status. Valid after Done is closed.
// Deaths by signal are reported as 128+signal.
func (p *Process) ExitCode() int {
	<-p.done
	return p.exitCode
}

// start launches the command. stdin, when non-nil, is written to the
// process and its input closed.
func (p *Process) start(stdin []byte) error {
	p.cmd = exec.Command(p.name, p.args...)
	p.cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if stdin != nil {
		p.cmd.Stdin = bytes.NewReader(stdin)
	}

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err := p.cmd.Start(); err != nil {
		return err
	}
	p.startedAt = time.Now()

	var output sync.WaitGroup
	output.Add(2)
	go func() {
		defer output.Done()
		p.streamOutput(stdout, "stdout")
	}()
	go func() {
		defer output.Done()
		p.streamOutput(stderr, "stderr")
	}()

	go func() {
		output.Wait()
		p.exitErr = p.cmd.Wait()
		p.exitCode = exitCodeFromError(p.exitErr)
		close(p.done)
	}()

	return nil
}

// kill sends SIGKILL to the whole process group. It does not wait.
func (p *Process) kill() {
	p.killOnce.Do(func() {
		if p.cmd == nil || p.cmd.Process == nil {
			return
		}
		select {
		case <-p.done:
			return
		default:
		}
		if err := syscall.Kill(-p.cmd.Process.Pid, syscall.SIGKILL); err != nil {
			if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				p.logger.Warn("Failed to kill process", "id", p.id, "pid", p.cmd.Process.Pid, "error", err)
			}
		}
	})
}

// exitCodeFromError extracts the exit status from a Wait error.
// Returns 0 for nil, 128+signal for signal deaths, the exit code for
// ExitError, or 1 for anything else.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return exitErr.ExitCode()
	}
	return 1
}

// maxLineLength caps a single output line. Longer lines are truncated and
// the rest of the line is discarded so the pipe keeps draining.
const maxLineLength = 64 * 1024

// streamOutput logs each output line at the level reported by the parser.
func (p *Process) streamOutput(reader io.Reader, source string) {
	logger := p.processLogger
	if logger == nil {
		logger = p.logger
	}

	br := bufio.NewReader(reader)
	for {
		line, err := readLine(br, maxLineLength)
		if line != "" {
			p.handleLine(logger, source, line)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				p.logger.Warn("Error reading output", "id", p.id, "source", source, "error", err)
			}
			return
		}
	}
}

func (p *Process) handleLine(logger logging.Logger, source, line string) {
	if p.outputHandler != nil {
		p.outputHandler.HandleLine(p.id, source, line)
	}

	level, msg := "info", line
	if p.logParser != nil {
		level, msg = p.logParser(line)
	}

	switch level {
	case "fatal", "error":
		logger.Error(msg, "id", p.id)
	case "warn", "warning":
		logger.Warn(msg, "id", p.id)
	case "debug", "trace":
		logger.Debug(msg, "id", p.id)
	default:
		logger.Info(msg, "id", p.id)
	}
}

// readLine reads up to the next newline, keeping at most limit bytes.
func readLine(r *bufio.Reader, limit int) (string, error) {
	var buf []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if room := limit - len(buf); room > 0 {
			buf = append(buf, chunk[:min(len(chunk), room)]...)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return strings.TrimRight(string(buf), "\r\n"), err
	}
}
