package hap

// TLV8 layouts of the camera RTP stream management characteristics.

// SetupEndpoints is the value written to the Setup Endpoints characteristic.
type SetupEndpoints struct {
	SessionID      []byte      `tlv8:"1"`
	ControllerAddr Addr        `tlv8:"3"`
	VideoCrypto    CryptoSuite `tlv8:"4"`
	AudioCrypto    CryptoSuite `tlv8:"5"`
}

// Addr is an endpoint address with its RTP ports.
type Addr struct {
	IPVersion    byte   `tlv8:"1"` // 0 IPv4, 1 IPv6
	IPAddr       string `tlv8:"2"`
	VideoRTPPort uint16 `tlv8:"3"`
	AudioRTPPort uint16 `tlv8:"4"`
}

// CryptoSuite carries SRTP key material.
type CryptoSuite struct {
	CryptoType byte   `tlv8:"1"`
	MasterKey  []byte `tlv8:"2"`
	MasterSalt []byte `tlv8:"3"`
}

// SetupEndpointsResponse is read back from the Setup Endpoints characteristic.
type SetupEndpointsResponse struct {
	SessionID     []byte      `tlv8:"1"`
	Status        byte        `tlv8:"2"`
	AccessoryAddr Addr        `tlv8:"3"`
	VideoCrypto   CryptoSuite `tlv8:"4"`
	AudioCrypto   CryptoSuite `tlv8:"5"`
	VideoSSRC     uint32      `tlv8:"6"`
	AudioSSRC     uint32      `tlv8:"7"`
}

// SelectedStreamConfig is the value written to Selected RTP Stream Configuration.
type SelectedStreamConfig struct {
	Control    SessionControl `tlv8:"1"`
	VideoCodec VideoCodec     `tlv8:"2"`
	AudioCodec AudioCodec     `tlv8:"3"`
}

// SessionControl identifies the session and the command applied to it.
type SessionControl struct {
	SessionID []byte `tlv8:"1"`
	Command   byte   `tlv8:"2"`
}

// VideoCodec is the selected H.264 configuration.
type VideoCodec struct {
	CodecType   byte          `tlv8:"1"`
	CodecParams []VideoParams `tlv8:"2"`
	VideoAttrs  []VideoAttrs  `tlv8:"3"`
	RTPParams   []RTPParams   `tlv8:"4"`
}

// VideoParams holds the H.264 profile and level indices.
type VideoParams struct {
	ProfileID         []byte `tlv8:"1"`
	Level             []byte `tlv8:"2"`
	PacketizationMode byte   `tlv8:"3"`
}

// VideoAttrs is a resolution and frame rate.
type VideoAttrs struct {
	Width     uint16 `tlv8:"1"`
	Height    uint16 `tlv8:"2"`
	Framerate uint8  `tlv8:"3"`
}

// AudioCodec is the selected audio configuration.
type AudioCodec struct {
	CodecType    byte          `tlv8:"1"`
	CodecParams  []AudioParams `tlv8:"2"`
	RTPParams    []RTPParams   `tlv8:"3"`
	ComfortNoise byte          `tlv8:"4"`
}

// AudioParams are the audio codec parameters.
type AudioParams struct {
	Channels   uint8 `tlv8:"1"`
	Bitrate    byte  `tlv8:"2"` // 0 variable, 1 constant
	SampleRate byte  `tlv8:"3"` // 0 8kHz, 1 16kHz, 2 24kHz
	RTPTime    uint8 `tlv8:"4"`
}

// RTPParams are the RTP parameters of one stream.
type RTPParams struct {
	PayloadType  uint8   `tlv8:"1"`
	SSRC         uint32  `tlv8:"2"`
	MaxBitrate   uint16  `tlv8:"3"`
	RTCPInterval float32 `tlv8:"4"`
	MaxMTU       uint16  `tlv8:"5"`
}

// Session commands.
const (
	SessionCommandEnd         = 0
	SessionCommandStart       = 1
	SessionCommandSuspend     = 2
	SessionCommandResume      = 3
	SessionCommandReconfigure = 4
)

// Audio codec types.
const (
	AudioCodecTypePCMU   = 0
	AudioCodecTypePCMA   = 1
	AudioCodecTypeAACELD = 2
	AudioCodecTypeOpus   = 3
)

// Setup status values.
const (
	StatusSuccess = 0
	StatusBusy    = 1
	StatusError   = 2
)

const cryptoAESCM128HMACSHA180 = 0
