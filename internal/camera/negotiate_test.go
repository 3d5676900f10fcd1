package camera

import (
	"bytes"
	"context"
	"errors"
	"net"
	"slices"
	"strconv"
	"testing"
	"time"
)

func TestCaption(t *testing.T) {
	tests := []struct {
		name    string
		event   EventKind
		elapsed time.Duration
		want    string
	}{
		{"button 90s", EventButton, 90 * time.Second, "Button pressed 2 minutes ago"},
		{"motion 10s", EventMotion, 10 * time.Second, "Motion detected just now"},
		{"exactly one minute", EventButton, time.Minute, "Button pressed just now"},
		{"just over one minute", EventButton, time.Minute + time.Millisecond, "Button pressed 2 minutes ago"},
		{"on demand has no prefix", EventOnDemand, 5 * time.Minute, "5 minutes ago"},
		{"future timestamp", EventMotion, -time.Minute, "Motion detected just now"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Activity{Event: tt.event, CreatedAt: testNow.Add(-tt.elapsed)}
			if got := Caption(a, testNow); got != tt.want {
				t.Errorf("Caption() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPunchOrdering(t *testing.T) {
	b := &fakeBinder{}
	if err := Punch(b.bind, "10.0.0.5", []int{6000, 6002}); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"bind:udp4:6000", "send:10.0.0.5:6000", "close:6000",
		"bind:udp4:6002", "send:10.0.0.5:6002", "close:6002",
	}
	if !slices.Equal(b.ops, want) {
		t.Errorf("ops = %v", b.ops)
	}
}

func TestPunchAbortsOnFirstError(t *testing.T) {
	t.Run("bind", func(t *testing.T) {
		b := &fakeBinder{failOn: 6000}
		if err := Punch(b.bind, "10.0.0.5", []int{6000, 6002}); err == nil {
			t.Fatal("expected error")
		}
		if !slices.Equal(b.ops, []string{"bind:udp4:6000"}) {
			t.Errorf("ops = %v", b.ops)
		}
	})

	t.Run("send", func(t *testing.T) {
		b := &fakeBinder{sendErr: errors.New("network unreachable")}
		if err := Punch(b.bind, "10.0.0.5", []int{6000, 6002}); err == nil {
			t.Fatal("expected error")
		}
		want := []string{"bind:udp4:6000", "send:10.0.0.5:6000", "close:6000"}
		if !slices.Equal(b.ops, want) {
			t.Errorf("ops = %v", b.ops)
		}
	})
}

func TestPunchIPv6(t *testing.T) {
	b := &fakeBinder{}
	if err := Punch(b.bind, "fd00::5", []int{6000}); err != nil {
		t.Fatal(err)
	}
	if b.ops[0] != "bind:udp6:6000" || b.ops[1] != "send:[fd00::5]:6000" {
		t.Errorf("ops = %v", b.ops)
	}
}

func TestPunchSendsEightZeroBytes(t *testing.T) {
	recv, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("no loopback UDP: %v", err)
	}
	defer recv.Close()
	port := recv.LocalAddr().(*net.UDPAddr).Port

	// The punch socket binds the same port number on all interfaces, which
	// collides with the receiver; bind an ephemeral port instead.
	bind := func(network string, _ int) (net.PacketConn, error) {
		return net.ListenPacket(network, "127.0.0.1:0")
	}
	if err := Punch(bind, "127.0.0.1", []int{port}); err != nil {
		t.Fatal(err)
	}

	_ = recv.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, _, err := recv.ReadFrom(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf[:n], make([]byte, 8)) {
		t.Errorf("payload = %v", buf[:n])
	}
}

func TestPrepareSessionDefaults(t *testing.T) {
	h := newHarness(t, nil)
	resp, err := h.streamer.PrepareSession(context.Background(), testSetup("s1"))
	if err != nil {
		t.Fatal(err)
	}

	if resp.Address != "192.168.1.10" || resp.AddressType != "v4" {
		t.Errorf("address = %s (%s)", resp.Address, resp.AddressType)
	}
	if resp.Video.SSRC != 1 || resp.Audio.SSRC != 2 {
		t.Errorf("ssrcs = %d/%d", resp.Video.SSRC, resp.Audio.SSRC)
	}
	if resp.Video.Port != 51000 || resp.Audio.Port != 51002 {
		t.Errorf("ports = %d/%d", resp.Video.Port, resp.Audio.Port)
	}

	sess, ok := h.streamer.Session("s1")
	if !ok {
		t.Fatal("session not registered")
	}
	v, a := sess.Video, sess.Audio
	if v.Profile != 2 || v.Level != 2 || v.Width != 1920 || v.Height != 1080 || v.FPS != 30 {
		t.Errorf("video defaults = %+v", v)
	}
	if v.PayloadType != 99 || v.MaxBitrate != 800 || v.MTU != 1378 {
		t.Errorf("video rtp defaults = %+v", v)
	}
	if a.Codec != "AAC-eld" || a.Channels != 1 || a.BitrateMode != 0 || a.SampleRate != 16 || a.PacketTime != 30 {
		t.Errorf("audio defaults = %+v", a)
	}
	if a.PayloadType != 110 || a.MaxBitrate != 24 {
		t.Errorf("audio rtp defaults = %+v", a)
	}
	if sess.State != StateCreated || sess.Live {
		t.Errorf("session = %+v", sess)
	}
}

func TestPrepareSessionIPv6(t *testing.T) {
	h := newHarness(t, nil)
	req := testSetup("s1")
	req.TargetAddress = "fd00::42"

	resp, err := h.streamer.PrepareSession(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Address != "fd00::10" || resp.AddressType != "v6" {
		t.Errorf("address = %s (%s)", resp.Address, resp.AddressType)
	}
	if sess, _ := h.streamer.Session("s1"); sess.Video.MTU != 1228 {
		t.Errorf("MTU = %d", sess.Video.MTU)
	}
}

func TestPrepareSessionAddressOverride(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Address = "10.1.2.3" })
	resp, err := h.streamer.PrepareSession(context.Background(), testSetup("s1"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Address != "10.1.2.3" {
		t.Errorf("address = %s", resp.Address)
	}
}

func TestPrepareSessionLoopbackFallback(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.InterfaceAddrs = func() ([]net.Addr, error) { return nil, errors.New("netlink denied") }
	})
	resp, err := h.streamer.PrepareSession(context.Background(), testSetup("s1"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Address != "127.0.0.1" {
		t.Errorf("address = %s", resp.Address)
	}
}

func TestPrepareSessionRejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SetupRequest)
	}{
		{"missing id", func(r *SetupRequest) { r.SessionID = "" }},
		{"bad address", func(r *SetupRequest) { r.TargetAddress = "not-an-ip" }},
		{"zero port", func(r *SetupRequest) { r.Video.Port = 0 }},
		{"port too large", func(r *SetupRequest) { r.Audio.Port = 70000 }},
		{"short key", func(r *SetupRequest) { r.Video.Key = r.Video.Key[:16] }},
		{"missing audio key", func(r *SetupRequest) { r.Audio.Key = nil }},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			req := testSetup("s" + strconv.Itoa(i))
			tt.mutate(&req)

			_, err := h.streamer.PrepareSession(context.Background(), req)
			if ErrorCode(err) != ErrCodeInvalidSetup {
				t.Fatalf("err = %v", err)
			}
			if len(h.streamer.Sessions()) != 0 {
				t.Error("malformed setup registered a session")
			}
			if len(h.publisher.types()) != 0 {
				t.Error("malformed setup published an event")
			}
		})
	}
}
