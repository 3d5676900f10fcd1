package models

import "time"

// CameraQuery selects a camera when more than one doorbell is configured.
type CameraQuery struct {
	Camera string `query:"camera" example:"Front Door" doc:"Camera name; defaults to the first camera"`
}

// Capability models
type ResolutionData struct {
	Width  int `json:"width" example:"1280"`
	Height int `json:"height" example:"720"`
	FPS    int `json:"fps" example:"30"`
}

type AudioCodecData struct {
	Type       string `json:"type" example:"OPUS"`
	SampleRate int    `json:"sample_rate" example:"16" doc:"Sample rate in kHz"`
}

type CapabilitiesData struct {
	Camera       string           `json:"camera" example:"Front Door"`
	SRTP         bool             `json:"srtp"`
	Resolutions  []ResolutionData `json:"resolutions" doc:"Advertised resolutions, largest first"`
	Profiles     []int            `json:"profiles" doc:"H.264 profiles: 0 baseline, 1 main, 2 high"`
	Levels       []int            `json:"levels" doc:"H.264 levels: 0 3.1, 1 3.2, 2 4.0"`
	AudioCodecs  []AudioCodecData `json:"audio_codecs"`
	ComfortNoise bool             `json:"comfort_noise"`
}

type CapabilitiesRequest struct {
	CameraQuery
}

type CapabilitiesResponse struct {
	Body CapabilitiesData
}

// Session setup models
type EndpointData struct {
	Port int    `json:"port" minimum:"1" maximum:"65535" example:"51000" doc:"RTP port"`
	Key  []byte `json:"key" doc:"SRTP master key followed by master salt (30 bytes, base64)"`
}

type SetupRequestData struct {
	TLV8          string        `json:"tlv8,omitempty" doc:"Base64 HomeKit Setup Endpoints value; replaces the other fields"`
	SessionID     string        `json:"session_id,omitempty" example:"5a1d0c3e-9b2f-4c7a-8e61-0f3b2d4c6a8e" doc:"Session identifier"`
	TargetAddress string        `json:"target_address,omitempty" example:"192.168.1.42" doc:"Client address"`
	Video         *EndpointData `json:"video,omitempty" doc:"Client video endpoint"`
	Audio         *EndpointData `json:"audio,omitempty" doc:"Client audio endpoint"`
}

type SetupRequest struct {
	CameraQuery
	Body SetupRequestData
}

type EndpointResponseData struct {
	Port int    `json:"port" example:"51000"`
	SSRC uint32 `json:"ssrc" example:"1"`
	Key  []byte `json:"key"`
}

type SetupData struct {
	SessionID   string               `json:"session_id"`
	Address     string               `json:"address" example:"192.168.1.10" doc:"Address the camera sends from"`
	AddressType string               `json:"address_type" example:"v4" enum:"v4,v6"`
	Video       EndpointResponseData `json:"video"`
	Audio       EndpointResponseData `json:"audio"`
	TLV8        string               `json:"tlv8,omitempty" doc:"Base64 HomeKit Setup Endpoints response, when the request used TLV8"`
}

type SetupResponse struct {
	Body SetupData
}

// Stream request models
type VideoParamsData struct {
	Profile     int `json:"profile" minimum:"0" maximum:"2"`
	Level       int `json:"level" minimum:"0" maximum:"2"`
	Width       int `json:"width,omitempty" example:"1280"`
	Height      int `json:"height,omitempty" example:"720"`
	FPS         int `json:"fps,omitempty" example:"30"`
	PayloadType int `json:"payload_type,omitempty" example:"99"`
	MaxBitrate  int `json:"max_bitrate,omitempty" example:"299" doc:"kbit/s"`
	MTU         int `json:"mtu,omitempty" example:"1378"`
}

type AudioParamsData struct {
	Codec       string `json:"codec,omitempty" example:"OPUS"`
	Channels    int    `json:"channels,omitempty" example:"1"`
	BitrateMode int    `json:"bitrate_mode" doc:"0 variable, 1 constant"`
	SampleRate  int    `json:"sample_rate,omitempty" example:"16" doc:"kHz"`
	PacketTime  int    `json:"packet_time,omitempty" example:"20" doc:"ms"`
	PayloadType int    `json:"payload_type,omitempty" example:"110"`
	MaxBitrate  int    `json:"max_bitrate,omitempty" example:"24" doc:"kbit/s"`
}

type StreamRequestData struct {
	TLV8  string           `json:"tlv8,omitempty" doc:"Base64 HomeKit Selected RTP Stream Configuration; replaces the other fields"`
	Type  string           `json:"type,omitempty" enum:"start,stop,reconfigure" example:"start"`
	Video *VideoParamsData `json:"video,omitempty"`
	Audio *AudioParamsData `json:"audio,omitempty"`
}

type StreamRequest struct {
	CameraQuery
	SessionID string `path:"session_id" example:"5a1d0c3e-9b2f-4c7a-8e61-0f3b2d4c6a8e" doc:"Session identifier"`
	Body      StreamRequestData
}

// Session list models
type TranscoderData struct {
	FPS           float64 `json:"fps" example:"29.97"`
	DroppedFrames float64 `json:"dropped_frames"`
	Speed         float64 `json:"speed" example:"1.0"`
}

type SessionData struct {
	SessionID  string          `json:"session_id"`
	Client     string          `json:"client" example:"192.168.1.42"`
	State      string          `json:"state" enum:"created,started,stopped"`
	Mode       string          `json:"mode,omitempty" enum:"live,playback"`
	Live       bool            `json:"live" doc:"A doorbell call is open for this session"`
	Resolution string          `json:"resolution" example:"1280x720@30" doc:"Negotiated resolution"`
	CreatedAt  time.Time       `json:"created_at"`
	Transcoder *TranscoderData `json:"transcoder,omitempty" doc:"Latest transcoder progress"`
}

type SessionListData struct {
	Camera      string        `json:"camera" example:"Front Door"`
	Sessions    []SessionData `json:"sessions"`
	Count       int           `json:"count" example:"1"`
	ActiveCalls []string      `json:"active_calls" doc:"Sessions holding call slots, oldest first"`
}

type SessionListRequest struct {
	CameraQuery
}

type SessionListResponse struct {
	Body SessionListData
}

// Snapshot models
type SnapshotRequest struct {
	CameraQuery
	Width  int `query:"width" minimum:"0" example:"640" doc:"Requested width"`
	Height int `query:"height" minimum:"0" example:"360" doc:"Requested height"`
}

type SnapshotResponse struct {
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	Body         []byte
}
