package skybell

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smazurov/bellbridge/internal/camera"
	"github.com/smazurov/bellbridge/internal/logging"
)

// Default polling intervals.
const (
	DefaultInfoInterval     = 5 * time.Minute
	DefaultSettingsInterval = 60 * time.Second
	DefaultActivityInterval = 5 * time.Second
)

// Source is what a Poller reads. *Device implements it.
type Source interface {
	Info(ctx context.Context) (Info, error)
	Settings(ctx context.Context) (Settings, error)
	Activities(ctx context.Context) ([]camera.Activity, error)
}

// Poller periodically reads a doorbell's status, settings and activity
// log. Handlers run on the polling goroutines.
type Poller struct {
	Name             string
	InfoInterval     time.Duration
	SettingsInterval time.Duration
	ActivityInterval time.Duration

	// OnSettings receives every successful settings read.
	OnSettings func(Settings)
	// OnActivity receives activities that appeared since the previous
	// poll, oldest first.
	OnActivity func(camera.Activity)

	source Source
	logger logging.Logger

	seeded bool
	lastID string
}

// NewPoller creates a poller with the default intervals.
func NewPoller(name string, source Source, logger logging.Logger) *Poller {
	if logger == nil {
		logger = logging.GetLogger("skybell")
	}
	return &Poller{
		Name:             name,
		InfoInterval:     DefaultInfoInterval,
		SettingsInterval: DefaultSettingsInterval,
		ActivityInterval: DefaultActivityInterval,
		source:           source,
		logger:           logger,
	}
}

// Run polls until ctx is cancelled. Each loop polls once immediately.
func (p *Poller) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.loop(ctx, p.InfoInterval, p.pollInfo) })
	g.Go(func() error { return p.loop(ctx, p.SettingsInterval, p.pollSettings) })
	g.Go(func() error { return p.loop(ctx, p.ActivityInterval, p.PollActivities) })
	return g.Wait()
}

func (p *Poller) loop(ctx context.Context, interval time.Duration, poll func(context.Context)) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		poll(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Poller) pollInfo(ctx context.Context) {
	info, err := p.source.Info(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("Failed to read doorbell info", "doorbell", p.Name, "error", err)
		}
		return
	}
	p.logger.Info("Doorbell Wi-Fi status",
		"doorbell", p.Name,
		"quality", info.Status.WifiLink,
		"ssid", info.Essid,
		"rssi_dbm", info.WifiSignalLevel,
		"noise_dbm", info.WifiNoise,
		"snr", info.WifiSnr,
		"bitrate", info.WifiBitrate)
}

func (p *Poller) pollSettings(ctx context.Context) {
	settings, err := p.source.Settings(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("Failed to read doorbell settings", "doorbell", p.Name, "error", err)
		}
		return
	}
	if p.OnSettings != nil {
		p.OnSettings(settings)
	}
}

// PollActivities reads the activity log once. The first successful read
// only records the newest id; later reads deliver everything newer than
// it. If the recorded id is no longer listed, every listed activity is
// treated as new.
func (p *Poller) PollActivities(ctx context.Context) {
	activities, err := p.source.Activities(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("Failed to read doorbell activities", "doorbell", p.Name, "error", err)
		}
		return
	}

	if p.seeded {
		n := len(activities)
		for i, a := range activities {
			if a.ID == p.lastID {
				n = i
				break
			}
		}
		for i := n - 1; i >= 0; i-- {
			p.logger.Debug("New doorbell activity", "doorbell", p.Name, "id", activities[i].ID, "event", activities[i].Event)
			if p.OnActivity != nil {
				p.OnActivity(activities[i])
			}
		}
	}

	p.seeded = true
	p.lastID = "none"
	if len(activities) > 0 {
		p.lastID = activities[0].ID
	}
}
