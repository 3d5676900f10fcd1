package events

// Event type constants for kelindar/event.
const (
	TypeSessionPrepared uint32 = iota + 1
	TypeStreamStarted
	TypeStreamStopped
	TypeStreamFailed
	TypeProcessExited
	TypeDoorbellTriggered
	TypeSettingsChanged
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SessionPreparedEvent is published when a client sets up stream endpoints.
type SessionPreparedEvent struct {
	SessionID string `json:"session_id" doc:"HomeKit session identifier"`
	Client    string `json:"client" example:"192.168.1.42" doc:"Client address"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionPreparedEvent.
func (e SessionPreparedEvent) Type() uint32 { return TypeSessionPrepared }

// StreamStartedEvent is published once a transcoder is running for a session.
type StreamStartedEvent struct {
	SessionID  string `json:"session_id" doc:"HomeKit session identifier"`
	Mode       string `json:"mode" example:"live" doc:"live or playback"`
	Resolution string `json:"resolution" example:"1280x720@30" doc:"Output resolution"`
	Copy       bool   `json:"copy" doc:"True when video is passed through without re-encoding"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamStartedEvent.
func (e StreamStartedEvent) Type() uint32 { return TypeStreamStarted }

// StreamStoppedEvent is published when a session's call ends.
type StreamStoppedEvent struct {
	SessionID string `json:"session_id" doc:"HomeKit session identifier"`
	Mode      string `json:"mode" example:"playback" doc:"live or playback"`
	Reason    string `json:"reason" example:"stop" doc:"stop, replaced, evicted or shutdown"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamStoppedEvent.
func (e StreamStoppedEvent) Type() uint32 { return TypeStreamStopped }

// StreamFailedEvent is published when a stream start is abandoned.
type StreamFailedEvent struct {
	SessionID string `json:"session_id" doc:"HomeKit session identifier"`
	Code      string `json:"code" example:"CALL_FAILED" doc:"Error code"`
	Error     string `json:"error" doc:"Error description"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamFailedEvent.
func (e StreamFailedEvent) Type() uint32 { return TypeStreamFailed }

// ProcessExitedEvent is published after a transcoder process exits.
type ProcessExitedEvent struct {
	SessionID string `json:"session_id" doc:"HomeKit session identifier"`
	Expected  bool   `json:"expected" doc:"False when the process died on its own"`
	ExitCode  int    `json:"exit_code" example:"137" doc:"Process exit status"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ProcessExitedEvent.
func (e ProcessExitedEvent) Type() uint32 { return TypeProcessExited }

// DoorbellTriggeredEvent is published when a button press or motion is accepted.
type DoorbellTriggeredEvent struct {
	Doorbell   string `json:"doorbell" example:"Front Door" doc:"Doorbell name"`
	Kind       string `json:"kind" example:"button" doc:"button or motion"`
	Source     string `json:"source" example:"webhook" doc:"cloud or webhook"`
	ActivityID string `json:"activity_id,omitempty" doc:"Cloud activity pinned for replay"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DoorbellTriggeredEvent.
func (e DoorbellTriggeredEvent) Type() uint32 { return TypeDoorbellTriggered }

// SettingsChangedEvent is published when the doorbell reports new settings.
type SettingsChangedEvent struct {
	Doorbell  string `json:"doorbell" example:"Front Door" doc:"Doorbell name"`
	MaxHeight int    `json:"max_height" example:"720" doc:"Maximum video height advertised to clients"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SettingsChangedEvent.
func (e SettingsChangedEvent) Type() uint32 { return TypeSettingsChanged }
