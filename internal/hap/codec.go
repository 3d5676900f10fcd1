package hap

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/netip"
	"strconv"

	"github.com/AlexxIT/go2rtc/pkg/hap/tlv8"
	"github.com/google/uuid"

	"github.com/smazurov/bellbridge/internal/camera"
	"github.com/smazurov/bellbridge/internal/ffmpeg"
)

// ErrMalformed wraps every decode failure.
var ErrMalformed = errors.New("malformed TLV8 payload")

var sampleRates = []int{8, 16, 24}

// DecodeSetupEndpoints parses a base64 Setup Endpoints write.
func DecodeSetupEndpoints(b64 string) (camera.SetupRequest, error) {
	var in SetupEndpoints
	if err := unmarshal(b64, &in); err != nil {
		return camera.SetupRequest{}, err
	}

	id, err := sessionID(in.SessionID)
	if err != nil {
		return camera.SetupRequest{}, err
	}
	if _, err := netip.ParseAddr(in.ControllerAddr.IPAddr); err != nil {
		return camera.SetupRequest{}, fmt.Errorf("%w: controller address: %w", ErrMalformed, err)
	}

	return camera.SetupRequest{
		SessionID:     id,
		TargetAddress: in.ControllerAddr.IPAddr,
		Video: camera.Endpoint{
			Port: int(in.ControllerAddr.VideoRTPPort),
			Key:  joinKey(in.VideoCrypto),
		},
		Audio: camera.Endpoint{
			Port: int(in.ControllerAddr.AudioRTPPort),
			Key:  joinKey(in.AudioCrypto),
		},
	}, nil
}

// EncodeSetupEndpoints renders a setup response as a base64 TLV8 value.
func EncodeSetupEndpoints(resp camera.SetupResponse) (string, error) {
	id, err := uuid.Parse(resp.SessionID)
	if err != nil {
		return "", fmt.Errorf("session id: %w", err)
	}

	var version byte
	if resp.AddressType == "v6" {
		version = 1
	}

	out := SetupEndpointsResponse{
		SessionID: id[:],
		Status:    StatusSuccess,
		AccessoryAddr: Addr{
			IPVersion:    version,
			IPAddr:       resp.Address,
			VideoRTPPort: uint16(resp.Video.Port),
			AudioRTPPort: uint16(resp.Audio.Port),
		},
		VideoCrypto: splitKey(resp.Video.Key),
		AudioCrypto: splitKey(resp.Audio.Key),
		VideoSSRC:   resp.Video.SSRC,
		AudioSSRC:   resp.Audio.SSRC,
	}

	b, err := tlv8.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode setup response: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DecodeSelectedStream parses a base64 Selected RTP Stream Configuration
// write. Codec sections that are absent leave the parameters unset.
func DecodeSelectedStream(b64 string) (camera.StreamRequest, error) {
	var in SelectedStreamConfig
	if err := unmarshal(b64, &in); err != nil {
		return camera.StreamRequest{}, err
	}

	id, err := sessionID(in.Control.SessionID)
	if err != nil {
		return camera.StreamRequest{}, err
	}

	req := camera.StreamRequest{
		SessionID: id,
		Type:      requestType(in.Control.Command),
		Video:     videoParams(in.VideoCodec),
		Audio:     audioParams(in.AudioCodec),
	}
	return req, nil
}

func requestType(cmd byte) camera.RequestType {
	switch cmd {
	case SessionCommandEnd:
		return camera.RequestStop
	case SessionCommandStart:
		return camera.RequestStart
	case SessionCommandReconfigure:
		return camera.RequestReconfigure
	case SessionCommandSuspend:
		return "suspend"
	case SessionCommandResume:
		return "resume"
	default:
		return camera.RequestType("command-" + strconv.Itoa(int(cmd)))
	}
}

func videoParams(v VideoCodec) *camera.VideoParams {
	if len(v.CodecParams) == 0 && len(v.VideoAttrs) == 0 && len(v.RTPParams) == 0 {
		return nil
	}

	p := &camera.VideoParams{Profile: 2, Level: 2}
	if len(v.CodecParams) > 0 {
		if cp := v.CodecParams[0]; len(cp.ProfileID) > 0 && len(cp.Level) > 0 {
			p.Profile = int(cp.ProfileID[0])
			p.Level = int(cp.Level[0])
		}
	}
	if len(v.VideoAttrs) > 0 {
		a := v.VideoAttrs[0]
		p.Width, p.Height, p.FPS = int(a.Width), int(a.Height), int(a.Framerate)
	}
	if len(v.RTPParams) > 0 {
		r := v.RTPParams[0]
		p.PayloadType = int(r.PayloadType)
		p.MaxBitrate = int(r.MaxBitrate)
		p.MTU = int(r.MaxMTU)
	}
	return p
}

func audioParams(a AudioCodec) *camera.AudioParams {
	if len(a.CodecParams) == 0 && len(a.RTPParams) == 0 {
		return nil
	}

	p := &camera.AudioParams{Codec: audioCodecName(a.CodecType)}
	if len(a.CodecParams) > 0 {
		cp := a.CodecParams[0]
		p.Channels = int(cp.Channels)
		p.BitrateMode = int(cp.Bitrate)
		if int(cp.SampleRate) < len(sampleRates) {
			p.SampleRate = sampleRates[cp.SampleRate]
		}
		p.PacketTime = int(cp.RTPTime)
	}
	if len(a.RTPParams) > 0 {
		r := a.RTPParams[0]
		p.PayloadType = int(r.PayloadType)
		p.MaxBitrate = int(r.MaxBitrate)
	}
	return p
}

func audioCodecName(t byte) string {
	switch t {
	case AudioCodecTypeAACELD:
		return ffmpeg.AudioCodecAACELD
	case AudioCodecTypeOpus:
		return ffmpeg.AudioCodecOpus
	case AudioCodecTypePCMU:
		return "PCMU"
	case AudioCodecTypePCMA:
		return "PCMA"
	default:
		return "codec-" + strconv.Itoa(int(t))
	}
}

func unmarshal(b64 string, v any) error {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if err := tlv8.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return nil
}

func sessionID(b []byte) (string, error) {
	id, err := uuid.FromBytes(b)
	if err != nil {
		return "", fmt.Errorf("%w: session id: %w", ErrMalformed, err)
	}
	return id.String(), nil
}

func joinKey(c CryptoSuite) []byte {
	key := make([]byte, 0, len(c.MasterKey)+len(c.MasterSalt))
	key = append(key, c.MasterKey...)
	return append(key, c.MasterSalt...)
}

// splitKey reverses joinKey for the AES_CM_128 suite.
func splitKey(key []byte) CryptoSuite {
	c := CryptoSuite{CryptoType: cryptoAESCM128HMACSHA180}
	if len(key) >= 16 {
		c.MasterKey = key[:16]
		c.MasterSalt = key[16:]
	}
	return c
}
