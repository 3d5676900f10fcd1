package process

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type exitEvent struct {
	proc     *Process
	id       string
	expected bool
	code     int
}

type exitRecorder struct {
	ch chan exitEvent
}

func newExitRecorder() *exitRecorder {
	return &exitRecorder{ch: make(chan exitEvent, 16)}
}

func (r *exitRecorder) onExit(p *Process, expected bool) {
	r.ch <- exitEvent{p, p.ID(), expected, p.ExitCode()}
}

func (r *exitRecorder) wait(t *testing.T) exitEvent {
	t.Helper()
	select {
	case ev := <-r.ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for process exit")
		return exitEvent{}
	}
}

type lineCollector struct {
	mu    sync.Mutex
	lines []string
}

func (c *lineCollector) HandleLine(_, _, line string) {
	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
}

func (c *lineCollector) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

const longRunning = "trap 'exit 0' INT TERM; while :; do sleep 0.1; done"

func TestSpawnWritesStdinAndClosesIt(t *testing.T) {
	rec := newExitRecorder()
	lines := &lineCollector{}
	sup := NewSupervisor(Options{Logger: testLogger(), OnExit: rec.onExit, OutputHandler: lines})

	p, err := sup.Spawn("s1", "sh", []string{"-c", "cat"}, []byte("v=0\ns=door in\n"))
	if err != nil {
		t.Fatal(err)
	}

	ev := rec.wait(t)
	if ev.id != "s1" || ev.expected || ev.code != 0 {
		t.Errorf("exit = %+v, want unexpected clean exit of s1", ev)
	}
	if p.ExitCode() != 0 {
		t.Errorf("ExitCode() = %d", p.ExitCode())
	}
	if got := strings.Join(lines.all(), "|"); got != "v=0|s=door in" {
		t.Errorf("echoed stdin = %q", got)
	}
	if sup.Running("s1") {
		t.Error("exited process must be deregistered")
	}
}

func TestKillIsExpectedExit(t *testing.T) {
	rec := newExitRecorder()
	sup := NewSupervisor(Options{Logger: testLogger(), OnExit: rec.onExit})

	if _, err := sup.Spawn("s1", "sh", []string{"-c", longRunning}, nil); err != nil {
		t.Fatal(err)
	}
	if !sup.Running("s1") {
		t.Fatal("expected s1 registered")
	}

	if !sup.Kill("s1") {
		t.Fatal("Kill returned false for registered process")
	}
	if sup.Running("s1") {
		t.Error("Kill must deregister before returning")
	}

	ev := rec.wait(t)
	if !ev.expected {
		t.Errorf("exit after Kill should be expected: %+v", ev)
	}
	if ev.code != 137 {
		t.Errorf("exit code = %d, want 137", ev.code)
	}

	if sup.Kill("s1") {
		t.Error("second Kill should be a no-op")
	}
}

func TestUnexpectedExitCode(t *testing.T) {
	rec := newExitRecorder()
	sup := NewSupervisor(Options{Logger: testLogger(), OnExit: rec.onExit})

	if _, err := sup.Spawn("s1", "sh", []string{"-c", "exit 42"}, nil); err != nil {
		t.Fatal(err)
	}
	ev := rec.wait(t)
	if ev.expected || ev.code != 42 {
		t.Errorf("exit = %+v, want unexpected code 42", ev)
	}
}

func TestSpawnReplacesExistingHandle(t *testing.T) {
	rec := newExitRecorder()
	sup := NewSupervisor(Options{Logger: testLogger(), OnExit: rec.onExit})

	first, err := sup.Spawn("s1", "sh", []string{"-c", longRunning}, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := sup.Spawn("s1", "sh", []string{"-c", longRunning}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer sup.KillAll()

	ev := rec.wait(t)
	if !ev.expected {
		t.Errorf("replaced process exit should be expected: %+v", ev)
	}
	if ev.proc != first {
		t.Error("exit callback should carry the replaced handle, not the new one")
	}
	select {
	case <-first.Done():
	default:
		t.Error("first process should have exited")
	}

	got, ok := sup.Get("s1")
	if !ok || got != second {
		t.Error("registry should hold the second process")
	}
	if n := len(sup.List()); n != 1 {
		t.Errorf("List() has %d entries, want 1", n)
	}
}

func TestSpawnFailureRegistersNothing(t *testing.T) {
	rec := newExitRecorder()
	sup := NewSupervisor(Options{Logger: testLogger(), OnExit: rec.onExit})

	if _, err := sup.Spawn("s1", "/nonexistent/transcoder", nil, nil); err == nil {
		t.Fatal("expected spawn error")
	}
	if sup.Running("s1") {
		t.Error("failed spawn must not register a handle")
	}
	select {
	case ev := <-rec.ch:
		t.Errorf("unexpected exit callback %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestKillAll(t *testing.T) {
	rec := newExitRecorder()
	sup := NewSupervisor(Options{Logger: testLogger(), OnExit: rec.onExit})

	for _, id := range []string{"b", "a"} {
		if _, err := sup.Spawn(id, "sh", []string{"-c", longRunning}, nil); err != nil {
			t.Fatal(err)
		}
	}
	list := sup.List()
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
		t.Fatalf("List() = %+v", list)
	}

	sup.KillAll()
	if len(sup.List()) != 0 {
		t.Error("KillAll should empty the registry")
	}
	for range 2 {
		if ev := rec.wait(t); !ev.expected {
			t.Errorf("KillAll exit should be expected: %+v", ev)
		}
	}
}

func TestOutputRoutedByLevel(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	parser := func(line string) (string, string) {
		level, msg, _ := strings.Cut(line, ":")
		mu.Lock()
		seen = append(seen, level)
		mu.Unlock()
		return level, msg
	}

	rec := newExitRecorder()
	sup := NewSupervisor(Options{Logger: testLogger(), LogParser: parser, OnExit: rec.onExit})
	script := `echo "error:boom"; echo "warn:careful" >&2; echo "debug:detail"`
	if _, err := sup.Spawn("s1", "sh", []string{"-c", script}, nil); err != nil {
		t.Fatal(err)
	}
	rec.wait(t)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Errorf("parser saw %d lines, want 3: %v", len(seen), seen)
	}
}

func TestExitCodeFromError(t *testing.T) {
	if got := exitCodeFromError(nil); got != 0 {
		t.Errorf("nil error = %d", got)
	}
	if got := exitCodeFromError(io.EOF); got != 1 {
		t.Errorf("non-exit error = %d", got)
	}
}

func TestLongOutputLineIsTruncatedAndDrained(t *testing.T) {
	rec := newExitRecorder()
	lines := &lineCollector{}
	sup := NewSupervisor(Options{Logger: testLogger(), OnExit: rec.onExit, OutputHandler: lines})

	// A 2 MiB line followed by a 256 KiB tail fills both pipe buffers.
	script := "head -c 2097152 /dev/zero | tr '\\0' x; echo; head -c 262144 /dev/zero | tr '\\0' y; echo; echo done"
	if _, err := sup.Spawn("s1", "sh", []string{"-c", script}, nil); err != nil {
		t.Fatal(err)
	}

	ev := rec.wait(t)
	if ev.code != 0 {
		t.Errorf("exit = %+v, want clean exit", ev)
	}
	got := lines.all()
	if len(got) != 3 || got[2] != "done" {
		t.Fatalf("got %d lines ending %q, want 3 ending done", len(got), tail(got))
	}
	if len(got[0]) != maxLineLength || len(got[1]) != maxLineLength {
		t.Errorf("line lengths = %d, %d, want both truncated to %d", len(got[0]), len(got[1]), maxLineLength)
	}
}

func TestReadLine(t *testing.T) {
	r := bufio.NewReaderSize(strings.NewReader("abcdefghij\r\nxy\n\ntail"), 16)
	want := []struct {
		line string
		eof  bool
	}{
		{"abcd", false},
		{"xy", false},
		{"", false},
		{"tail", true},
	}
	for i, w := range want {
		line, err := readLine(r, 4)
		if line != w.line {
			t.Errorf("line %d = %q, want %q", i, line, w.line)
		}
		if gotEOF := errors.Is(err, io.EOF); gotEOF != w.eof || (err != nil && !gotEOF) {
			t.Errorf("line %d err = %v", i, err)
		}
	}
}

func tail(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	last := lines[len(lines)-1]
	if len(last) > 32 {
		return last[:32] + "..."
	}
	return last
}
