package ffmpeg

import (
	"fmt"
	"net/netip"
	"strconv"

	"github.com/pion/sdp/v3"
)

// Upstream is one SRTP stream offered by the doorbell for a live call.
type Upstream struct {
	Server      string `json:"server"`
	Port        int    `json:"port"`
	PayloadType int    `json:"payloadType"`
	Encoding    string `json:"encoding"`
	SampleRate  int    `json:"sampleRate"`
	Key         string `json:"key"` // base64 key+salt, used inline
	Channels    int    `json:"channels,omitempty"`
	SSRC        uint32 `json:"ssrc"`
}

// LiveSource pairs the doorbell's video and audio streams.
type LiveSource struct {
	Video Upstream `json:"incomingVideo"`
	Audio Upstream `json:"incomingAudio"`
}

// AddressType returns the SDP address type for host: IP4 for IPv4
// literals, IP6 otherwise.
func AddressType(host string) string {
	if addr, err := netip.ParseAddr(host); err == nil && addr.Unmap().Is4() {
		return "IP4"
	}
	return "IP6"
}

// BuildSDP describes the doorbell's streams for ffmpeg's SDP demuxer.
// Audio is declared as L16; the -acodec input flag overrides the sample format.
func BuildSDP(name string, src LiveSource) ([]byte, error) {
	desc := sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      0,
			SessionVersion: 0,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: "127.0.0.1",
		},
		SessionName:      sdp.SessionName(name + " in"),
		TimeDescriptions: []sdp.TimeDescription{{Timing: sdp.Timing{StartTime: 0, StopTime: 0}}},
		MediaDescriptions: []*sdp.MediaDescription{
			upstreamMedia("video", src.Video, fmt.Sprintf("%s/%d", src.Video.Encoding, src.Video.SampleRate)),
			upstreamMedia("audio", src.Audio, fmt.Sprintf("L16/%d/%d", src.Audio.SampleRate, max(src.Audio.Channels, 1))),
		},
	}

	out, err := desc.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal live SDP: %w", err)
	}
	return out, nil
}

func upstreamMedia(kind string, u Upstream, rtpmap string) *sdp.MediaDescription {
	pt := strconv.Itoa(u.PayloadType)
	return &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:   kind,
			Port:    sdp.RangedPort{Value: u.Port},
			Protos:  []string{"RTP", "SAVP"},
			Formats: []string{pt},
		},
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: AddressType(u.Server),
			Address:     &sdp.Address{Address: u.Server},
		},
		Attributes: []sdp.Attribute{
			{Key: "rtpmap", Value: pt + " " + rtpmap},
			{Key: "crypto", Value: "1 " + SRTPSuite + " inline:" + u.Key},
			{Key: "ssrc", Value: strconv.FormatUint(uint64(u.SSRC), 10)},
		},
	}
}
