// Package systemd reports service state to the systemd manager.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/smazurov/bellbridge/internal/logging"
)

// Notifier sends sd_notify messages. Outside systemd every call is a no-op.
type Notifier struct {
	logger logging.Logger
	notify func(state string) (bool, error)
	// watchdog returns the keep-alive interval, zero when disabled.
	watchdog func() (time.Duration, error)
}

// NewNotifier creates a notifier using NOTIFY_SOCKET and WATCHDOG_USEC.
func NewNotifier(logger logging.Logger) *Notifier {
	return &Notifier{
		logger: logger,
		notify: func(state string) (bool, error) {
			return daemon.SdNotify(false, state)
		},
		watchdog: func() (time.Duration, error) {
			return daemon.SdWatchdogEnabled(false)
		},
	}
}

func (n *Notifier) send(state string) {
	sent, err := n.notify(state)
	switch {
	case err != nil:
		n.logger.Warn("sd_notify failed", "state", state, "error", err)
	case sent:
		n.logger.Debug("sd_notify sent", "state", state)
	}
}

// Ready tells systemd that startup finished.
func (n *Notifier) Ready() { n.send(daemon.SdNotifyReady) }

// Reloading tells systemd a configuration reload is in progress. Ready
// must follow once it completes.
func (n *Notifier) Reloading() { n.send(daemon.SdNotifyReloading) }

// Stopping tells systemd that shutdown began.
func (n *Notifier) Stopping() { n.send(daemon.SdNotifyStopping) }

// RunWatchdog pings the watchdog at half its interval until ctx is done.
// It returns immediately when the unit has no watchdog.
func (n *Notifier) RunWatchdog(ctx context.Context) {
	interval, err := n.watchdog()
	if err != nil {
		n.logger.Warn("Invalid watchdog configuration", "error", err)
		return
	}
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}
