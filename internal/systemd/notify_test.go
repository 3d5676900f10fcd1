package systemd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	states []string
}

func (r *recorder) notify(state string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
	return true, nil
}

func (r *recorder) count(state string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.states {
		if s == state {
			n++
		}
	}
	return n
}

func newTestNotifier(r *recorder, interval time.Duration, err error) *Notifier {
	return &Notifier{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		notify:   r.notify,
		watchdog: func() (time.Duration, error) { return interval, err },
	}
}

func TestLifecycleStates(t *testing.T) {
	r := &recorder{}
	n := newTestNotifier(r, 0, nil)

	n.Ready()
	n.Reloading()
	n.Stopping()

	want := []string{"READY=1", "RELOADING=1", "STOPPING=1"}
	if len(r.states) != len(want) {
		t.Fatalf("states = %v", r.states)
	}
	for i := range want {
		if r.states[i] != want[i] {
			t.Errorf("states[%d] = %q, want %q", i, r.states[i], want[i])
		}
	}
}

func TestRunWatchdogDisabled(t *testing.T) {
	for _, err := range []error{nil, errors.New("bad WATCHDOG_USEC")} {
		r := &recorder{}
		done := make(chan struct{})
		go func() {
			newTestNotifier(r, 0, err).RunWatchdog(context.Background())
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("RunWatchdog did not return (err=%v)", err)
		}
	}
}

func TestRunWatchdogPings(t *testing.T) {
	r := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		newTestNotifier(r, 20*time.Millisecond, nil).RunWatchdog(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for r.count("WATCHDOG=1") < 2 {
		if time.Now().After(deadline) {
			t.Fatal("watchdog was not pinged")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
}

func TestNewNotifierOutsideSystemd(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("WATCHDOG_USEC", "")

	n := NewNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
	n.Ready()
	n.RunWatchdog(context.Background())
}
