package camera

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/smazurov/bellbridge/internal/events"
	"github.com/smazurov/bellbridge/internal/ffmpeg"
)

// Fixed stream parameters for every session.
const (
	VideoSSRC uint32 = 1
	AudioSSRC uint32 = 2

	// SRTP master key plus master salt for AES_CM_128_HMAC_SHA1_80.
	srtpKeyLength = 16 + 14

	mtuIPv4 = 1378
	mtuIPv6 = 1228
)

// AddressType classifies host as "v4" or "v6".
func AddressType(host string) string {
	if ffmpeg.AddressType(host) == "IP4" {
		return "v4"
	}
	return "v6"
}

// MTU returns the maximum RTP packet size for a client at target.
func MTU(target string) int {
	if AddressType(target) == "v4" {
		return mtuIPv4
	}
	return mtuIPv6
}

func validateSetup(req SetupRequest) error {
	switch {
	case req.SessionID == "":
		return NewStreamError(ErrCodeInvalidSetup, "missing session id", nil)
	case !validPort(req.Video.Port) || !validPort(req.Audio.Port):
		return NewStreamError(ErrCodeInvalidSetup,
			fmt.Sprintf("invalid ports video=%d audio=%d", req.Video.Port, req.Audio.Port), nil)
	case len(req.Video.Key) != srtpKeyLength || len(req.Audio.Key) != srtpKeyLength:
		return NewStreamError(ErrCodeInvalidSetup,
			fmt.Sprintf("SRTP key material must be %d bytes", srtpKeyLength), nil)
	}
	if _, err := netip.ParseAddr(req.TargetAddress); err != nil {
		return NewStreamError(ErrCodeInvalidSetup, "invalid target address", err)
	}
	return nil
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

// PrepareSession registers a session for the client's endpoints and returns
// the accessory side. A malformed request registers nothing.
func (s *Streamer) PrepareSession(_ context.Context, req SetupRequest) (SetupResponse, error) {
	if err := validateSetup(req); err != nil {
		s.logger.Warn("Rejected stream setup", "session_id", req.SessionID, "error", err)
		return SetupResponse{}, err
	}

	family := AddressType(req.TargetAddress)
	own := s.ownAddress(family)

	sess := &Session{
		ID:     req.SessionID,
		Client: req.TargetAddress,
		Video: ffmpeg.VideoTarget{
			Server:      req.TargetAddress,
			Port:        req.Video.Port,
			SSRC:        VideoSSRC,
			Key:         req.Video.Key,
			Profile:     2,
			Level:       2,
			Width:       ffmpeg.Ladder[0].Width,
			Height:      ffmpeg.Ladder[0].Height,
			FPS:         ffmpeg.Ladder[0].FPS,
			PayloadType: 99,
			MaxBitrate:  800,
			MTU:         MTU(req.TargetAddress),
		},
		Audio: ffmpeg.AudioTarget{
			Server:      req.TargetAddress,
			Port:        req.Audio.Port,
			SSRC:        AudioSSRC,
			Key:         req.Audio.Key,
			Codec:       ffmpeg.AudioCodecAACELD,
			Channels:    1,
			BitrateMode: 0,
			SampleRate:  16,
			PacketTime:  30,
			PayloadType: 110,
			MaxBitrate:  24,
		},
		State:     StateCreated,
		CreatedAt: s.now(),
	}
	s.putSession(sess)

	s.logger.Info("Prepared stream session",
		"session_id", sess.ID,
		"client", req.TargetAddress,
		"address", own,
		"mtu", sess.Video.MTU)
	s.publish(events.SessionPreparedEvent{
		SessionID: sess.ID,
		Client:    req.TargetAddress,
		Timestamp: events.Now(),
	})

	return SetupResponse{
		SessionID:   req.SessionID,
		Address:     own,
		AddressType: AddressType(own),
		Video:       EndpointResponse{Port: req.Video.Port, SSRC: VideoSSRC, Key: req.Video.Key},
		Audio:       EndpointResponse{Port: req.Audio.Port, SSRC: AudioSSRC, Key: req.Audio.Key},
	}, nil
}

// ownAddress picks the address clients should stream from: the configured
// one, else the first non-loopback interface address of family.
func (s *Streamer) ownAddress(family string) string {
	if s.address != "" {
		return s.address
	}

	addrs, err := s.interfaceAddrs()
	if err != nil {
		s.logger.Warn("Failed to list interface addresses", "error", err)
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip, ok := netip.AddrFromSlice(ipnet.IP)
		if !ok {
			continue
		}
		ip = ip.Unmap()
		if ip.IsLoopback() || ip.IsLinkLocalUnicast() {
			continue
		}
		if (family == "v4") == ip.Is4() {
			return ip.String()
		}
	}

	s.logger.Warn("No usable interface address, advertising loopback", "family", family)
	if family == "v4" {
		return "127.0.0.1"
	}
	return "::1"
}
