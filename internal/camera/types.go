package camera

import (
	"context"
	"net"
	"time"

	"github.com/smazurov/bellbridge/internal/ffmpeg"
	"github.com/smazurov/bellbridge/internal/process"
)

// Call describes the doorbell's upstream SRTP streams for a live call.
type Call = ffmpeg.LiveSource

// Device is the doorbell as seen by the streaming core.
type Device interface {
	// StartCall asks the doorbell for a live call keyed by sessionID.
	StartCall(ctx context.Context, sessionID string) (Call, error)
	// StopCall ends the live call for sessionID.
	StopCall(ctx context.Context, sessionID string) error
	// VideoURL resolves the recorded clip for an activity.
	VideoURL(ctx context.Context, activity Activity) (string, error)
	// Avatar returns the doorbell's latest still image and its format.
	Avatar(ctx context.Context) ([]byte, string, error)
}

// EventKind classifies an activity.
type EventKind string

// Activity event kinds as reported by the cloud.
const (
	EventButton   EventKind = "device:sensor:button"
	EventMotion   EventKind = "device:sensor:motion"
	EventOnDemand EventKind = "application:on-demand"
)

// Activity is a recorded doorbell event.
type Activity struct {
	ID        string    `json:"id"`
	CallID    string    `json:"callId"`
	Event     EventKind `json:"event"`
	CreatedAt time.Time `json:"createdAt"`
	Media     string    `json:"media,omitempty"`
}

// Spawner runs one transcoder per session id.
type Spawner interface {
	Spawn(id, name string, args []string, stdin []byte) (*process.Process, error)
	Kill(id string) bool
}

// Resolver turns transcoder arguments into a runnable command line.
type Resolver interface {
	Command(ctx context.Context, args []string) (string, []string, error)
}

// Binder opens a UDP socket on a local port. network is udp4 or udp6.
type Binder func(network string, port int) (net.PacketConn, error)

// Endpoint is one of the client's receive ports with its SRTP master key
// followed by the master salt.
type Endpoint struct {
	Port int    `json:"port" minimum:"1" maximum:"65535"`
	Key  []byte `json:"key" doc:"SRTP master key followed by master salt (30 bytes)"`
}

// SetupRequest is the client's stream endpoint announcement.
type SetupRequest struct {
	SessionID     string   `json:"session_id"`
	TargetAddress string   `json:"target_address" example:"192.168.1.42"`
	Video         Endpoint `json:"video"`
	Audio         Endpoint `json:"audio"`
}

// EndpointResponse is the accessory side of one stream.
type EndpointResponse struct {
	Port int    `json:"port"`
	SSRC uint32 `json:"ssrc"`
	Key  []byte `json:"key"`
}

// SetupResponse mirrors the request with the accessory's address and SSRCs.
type SetupResponse struct {
	SessionID   string           `json:"session_id"`
	Address     string           `json:"address"`
	AddressType string           `json:"address_type" enum:"v4,v6"`
	Video       EndpointResponse `json:"video"`
	Audio       EndpointResponse `json:"audio"`
}

// RequestType is the action of a stream request.
type RequestType string

// Stream request types.
const (
	RequestStart       RequestType = "start"
	RequestStop        RequestType = "stop"
	RequestReconfigure RequestType = "reconfigure"
)

// VideoParams are the client's selected video parameters. Profile and
// Level are always applied; other zero fields keep the negotiated value.
type VideoParams struct {
	Profile     int `json:"profile" minimum:"0" maximum:"2" doc:"0 baseline, 1 main, 2 high"`
	Level       int `json:"level" minimum:"0" maximum:"2" doc:"0 = 3.1, 1 = 3.2, 2 = 4.0"`
	Width       int `json:"width,omitempty"`
	Height      int `json:"height,omitempty"`
	FPS         int `json:"fps,omitempty"`
	PayloadType int `json:"payload_type,omitempty"`
	MaxBitrate  int `json:"max_bitrate,omitempty" doc:"kbps"`
	MTU         int `json:"mtu,omitempty"`
}

// AudioParams are the client's selected audio parameters. BitrateMode is
// always applied; other zero fields keep the negotiated value.
type AudioParams struct {
	Codec       string `json:"codec,omitempty" example:"OPUS"`
	Channels    int    `json:"channels,omitempty"`
	BitrateMode int    `json:"bitrate_mode" minimum:"0" maximum:"1" doc:"0 variable, 1 constant"`
	SampleRate  int    `json:"sample_rate,omitempty" doc:"kHz"`
	PacketTime  int    `json:"packet_time,omitempty" doc:"ms"`
	PayloadType int    `json:"payload_type,omitempty"`
	MaxBitrate  int    `json:"max_bitrate,omitempty" doc:"kbps"`
}

// StreamRequest starts, stops or reconfigures a prepared session.
type StreamRequest struct {
	SessionID string       `json:"session_id"`
	Type      RequestType  `json:"type"`
	Video     *VideoParams `json:"video,omitempty"`
	Audio     *AudioParams `json:"audio,omitempty"`
}

// SessionState is the lifecycle position of a session.
type SessionState string

// Session states.
const (
	StateCreated SessionState = "created"
	StateStarted SessionState = "started"
	StateStopped SessionState = "stopped"
)

// Mode is how a started session is fed.
type Mode string

// Stream modes.
const (
	ModeLive     Mode = "live"
	ModePlayback Mode = "playback"
)

// Session is the negotiated state of one client stream. Values are never
// modified after they are stored; updates replace the pointer.
type Session struct {
	ID        string             `json:"id"`
	Client    string             `json:"client"`
	Video     ffmpeg.VideoTarget `json:"video"`
	Audio     ffmpeg.AudioTarget `json:"audio"`
	State     SessionState       `json:"state"`
	Mode      Mode               `json:"mode,omitempty"`
	Live      bool               `json:"live" doc:"A device call backs this session"`
	CreatedAt time.Time          `json:"created_at"`
}

// withParams returns a copy of s with the client's refined parameters.
func (s *Session) withParams(v *VideoParams, a *AudioParams) *Session {
	next := *s
	if v != nil {
		next.Video.Profile = v.Profile
		next.Video.Level = v.Level
		next.Video.Width = orKeep(v.Width, next.Video.Width)
		next.Video.Height = orKeep(v.Height, next.Video.Height)
		next.Video.FPS = orKeep(v.FPS, next.Video.FPS)
		next.Video.PayloadType = orKeep(v.PayloadType, next.Video.PayloadType)
		next.Video.MaxBitrate = orKeep(v.MaxBitrate, next.Video.MaxBitrate)
		next.Video.MTU = orKeep(v.MTU, next.Video.MTU)
	}
	if a != nil {
		if a.Codec != "" {
			next.Audio.Codec = a.Codec
		}
		next.Audio.Channels = orKeep(a.Channels, next.Audio.Channels)
		next.Audio.BitrateMode = a.BitrateMode
		next.Audio.SampleRate = orKeep(a.SampleRate, next.Audio.SampleRate)
		next.Audio.PacketTime = orKeep(a.PacketTime, next.Audio.PacketTime)
		next.Audio.PayloadType = orKeep(a.PayloadType, next.Audio.PayloadType)
		next.Audio.MaxBitrate = orKeep(a.MaxBitrate, next.Audio.MaxBitrate)
	}
	return &next
}

// with returns a copy of s in state with the given feed.
func (s *Session) with(state SessionState, mode Mode, live bool) *Session {
	next := *s
	next.State = state
	next.Mode = mode
	next.Live = live
	return &next
}

func orKeep(v, current int) int {
	if v != 0 {
		return v
	}
	return current
}
