package doorbell

import (
	"sync"
	"time"

	"github.com/smazurov/bellbridge/internal/camera"
	"github.com/smazurov/bellbridge/internal/events"
	"github.com/smazurov/bellbridge/internal/logging"
	"github.com/smazurov/bellbridge/internal/skybell"
)

// Trigger timing.
const (
	// RecordedDuration is how long a triggering activity stays pinned for
	// replay.
	RecordedDuration = 30 * time.Minute
	// SuppressDuration is how long a trigger kind ignores other sources.
	SuppressDuration = 10 * time.Minute
	// MotionDuration is how long motion stays reported after a trigger.
	MotionDuration = 10 * time.Second
)

// Kind is a trigger type.
type Kind string

const (
	KindButton Kind = "button"
	KindMotion Kind = "motion"
)

// ParseKind validates a trigger kind name.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindButton, KindMotion:
		return Kind(s), true
	}
	return "", false
}

// Source is where a trigger came from.
type Source string

const (
	SourceCloud   Source = "cloud"
	SourceWebhook Source = "webhook"
)

// profileHeights maps video_profile to the doorbell's recording height.
var profileHeights = []int{1080, 720, 720, 480}

// MaxHeight returns the maximum video height for a video_profile value.
func MaxHeight(profile int) (int, bool) {
	if profile < 0 || profile >= len(profileHeights) {
		return 0, false
	}
	return profileHeights[profile], true
}

// Camera is the part of the streamer a doorbell drives.
type Camera interface {
	SetActivity(activity *camera.Activity)
	SetMaxResolution(height int)
}

// Stopper cancels a pending timer.
type Stopper interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Stopper

func realAfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

type recentTrigger struct {
	source Source
	timer  Stopper
}

// Options configures a Doorbell.
type Options struct {
	Name      string
	Camera    Camera
	Publisher events.Publisher
	Logger    logging.Logger
	AfterFunc AfterFunc
}

// Doorbell turns cloud activities, webhook calls and settings into camera
// state and events.
type Doorbell struct {
	name      string
	camera    Camera
	publisher events.Publisher
	logger    logging.Logger
	afterFunc AfterFunc

	mu            sync.Mutex
	recent        map[Kind]*recentTrigger
	activityTimer Stopper
	activityID    string
	motionTimer   Stopper
	motion        bool
	maxHeight     int
	lastTrigger   time.Time
	closed        bool
}

// New creates a doorbell.
func New(opts Options) *Doorbell {
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("doorbell")
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = realAfterFunc
	}
	return &Doorbell{
		name:      opts.Name,
		camera:    opts.Camera,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		afterFunc: opts.AfterFunc,
		recent:    make(map[Kind]*recentTrigger),
	}
}

// Name returns the doorbell's name.
func (d *Doorbell) Name() string {
	return d.name
}

// HandleActivity processes a new activity from the cloud log.
func (d *Doorbell) HandleActivity(activity camera.Activity) {
	switch activity.Event {
	case camera.EventButton:
		d.Trigger(SourceCloud, KindButton, &activity)
	case camera.EventMotion:
		d.Trigger(SourceCloud, KindMotion, &activity)
	default:
		d.logger.Debug("Ignoring activity", "doorbell", d.name, "id", activity.ID, "event", activity.Event)
	}
}

// Trigger handles a button press or motion event. A non-nil activity is
// pinned for replay whether or not the trigger is suppressed. It reports
// whether the trigger was accepted.
func (d *Doorbell) Trigger(source Source, kind Kind, activity *camera.Activity) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}

	if activity != nil {
		d.pinActivity(*activity)
	}

	if recent := d.recent[kind]; recent != nil {
		if recent.source != source {
			d.logger.Info("Suppressing trigger",
				"doorbell", d.name,
				"kind", kind,
				"source", source,
				"recent_source", recent.source)
			return false
		}
		recent.timer.Stop()
	}

	entry := &recentTrigger{source: source}
	entry.timer = d.afterFunc(SuppressDuration, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.recent[kind] == entry {
			d.logger.Debug("Re-enabling triggers from all sources", "doorbell", d.name, "kind", kind)
			delete(d.recent, kind)
		}
	})
	d.recent[kind] = entry
	d.lastTrigger = time.Now()

	if kind == KindMotion {
		d.startMotion()
	}

	d.logger.Info("Doorbell triggered", "doorbell", d.name, "kind", kind, "source", source)
	ev := events.DoorbellTriggeredEvent{
		Doorbell:  d.name,
		Kind:      string(kind),
		Source:    string(source),
		Timestamp: events.Now(),
	}
	if activity != nil {
		ev.ActivityID = activity.ID
	}
	if d.publisher != nil {
		d.publisher.Publish(ev)
	}
	return true
}

// pinActivity must be called with mu held.
func (d *Doorbell) pinActivity(activity camera.Activity) {
	if d.activityTimer != nil {
		d.activityTimer.Stop()
	}
	d.activityID = activity.ID
	d.camera.SetActivity(&activity)

	var timer Stopper
	timer = d.afterFunc(RecordedDuration, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.activityTimer != timer {
			return
		}
		d.logger.Debug("Forgetting activity", "doorbell", d.name, "id", d.activityID)
		d.activityTimer = nil
		d.activityID = ""
		d.camera.SetActivity(nil)
	})
	d.activityTimer = timer
}

// startMotion must be called with mu held.
func (d *Doorbell) startMotion() {
	if d.motionTimer != nil {
		d.motionTimer.Stop()
	}
	d.motion = true

	var timer Stopper
	timer = d.afterFunc(MotionDuration, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.motionTimer == timer {
			d.motion = false
			d.motionTimer = nil
		}
	})
	d.motionTimer = timer
}

// UpdateSettings applies the doorbell's reported settings.
func (d *Doorbell) UpdateSettings(settings skybell.Settings) {
	profile, ok := settings.VideoProfile()
	if !ok {
		d.logger.Warn("Settings have no video profile", "doorbell", d.name)
		return
	}
	height, ok := MaxHeight(profile)
	if !ok {
		d.logger.Warn("Unknown video profile", "doorbell", d.name, "video_profile", profile)
		return
	}

	d.mu.Lock()
	changed := d.maxHeight != height
	d.maxHeight = height
	d.mu.Unlock()
	if !changed {
		return
	}

	d.logger.Info("Doorbell settings updated",
		"doorbell", d.name,
		"video_profile", profile,
		"max_height", height,
		"motion_policy", settings["motion_policy"],
		"do_not_disturb", settings["do_not_disturb"])
	d.camera.SetMaxResolution(height)
	if d.publisher != nil {
		d.publisher.Publish(events.SettingsChangedEvent{
			Doorbell:  d.name,
			MaxHeight: height,
			Timestamp: events.Now(),
		})
	}
}

// Status is a snapshot of the doorbell's trigger state.
type Status struct {
	Name           string    `json:"name" example:"Front Door" doc:"Doorbell name"`
	MotionDetected bool      `json:"motion_detected" doc:"Motion reported within the last few seconds"`
	ActivityID     string    `json:"activity_id,omitempty" doc:"Activity pinned for replay"`
	MaxHeight      int       `json:"max_height,omitempty" example:"1080" doc:"Maximum video height from the doorbell's settings"`
	LastTrigger    time.Time `json:"last_trigger,omitzero" doc:"Time of the last accepted trigger"`
}

// Status returns the current trigger state.
func (d *Doorbell) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Status{
		Name:           d.name,
		MotionDetected: d.motion,
		ActivityID:     d.activityID,
		MaxHeight:      d.maxHeight,
		LastTrigger:    d.lastTrigger,
	}
}

// Close cancels pending timers. Later triggers are ignored.
func (d *Doorbell) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for kind, recent := range d.recent {
		recent.timer.Stop()
		delete(d.recent, kind)
	}
	if d.activityTimer != nil {
		d.activityTimer.Stop()
		d.activityTimer = nil
	}
	if d.motionTimer != nil {
		d.motionTimer.Stop()
		d.motionTimer = nil
	}
}
