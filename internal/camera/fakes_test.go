package camera

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/bellbridge/internal/events"
	"github.com/smazurov/bellbridge/internal/ffmpeg"
	"github.com/smazurov/bellbridge/internal/process"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testNow = time.Date(2025, 1, 27, 10, 30, 0, 0, time.UTC)

type fakeDevice struct {
	mu        sync.Mutex
	ops       []string
	startErr  error
	urlErr    error
	avatarErr error
	call      Call
}

func (d *fakeDevice) record(op string) {
	d.mu.Lock()
	d.ops = append(d.ops, op)
	d.mu.Unlock()
}

func (d *fakeDevice) StartCall(_ context.Context, id string) (Call, error) {
	d.record("start:" + id)
	if d.startErr != nil {
		return Call{}, d.startErr
	}
	return d.call, nil
}

func (d *fakeDevice) StopCall(_ context.Context, id string) error {
	d.record("stop:" + id)
	return errors.New("already hung up")
}

func (d *fakeDevice) VideoURL(_ context.Context, a Activity) (string, error) {
	d.record("url:" + a.ID)
	if d.urlErr != nil {
		return "", d.urlErr
	}
	return "https://media.example.com/" + a.ID + ".mp4", nil
}

func (d *fakeDevice) Avatar(_ context.Context) ([]byte, string, error) {
	d.record("avatar")
	if d.avatarErr != nil {
		return nil, "", d.avatarErr
	}
	return []byte{0xff, 0xd8, 0xff}, "jpeg", nil
}

func (d *fakeDevice) count(prefix string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, op := range d.ops {
		if strings.HasPrefix(op, prefix) {
			n++
		}
	}
	return n
}

type spawnRecord struct {
	id    string
	name  string
	args  []string
	stdin []byte
}

// fakeSpawner tracks live handles per id and flags a spawn over a live one.
type fakeSpawner struct {
	mu       sync.Mutex
	running  map[string]bool
	spawns   []spawnRecord
	procs    []*process.Process
	kills    []string
	overlaps int
	err      error
}

func newFakeSpawner() *fakeSpawner {
	return &fakeSpawner{running: make(map[string]bool)}
}

func (f *fakeSpawner) Spawn(id, name string, args []string, stdin []byte) (*process.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.running[id] {
		f.overlaps++
	}
	f.running[id] = true
	f.spawns = append(f.spawns, spawnRecord{id, name, args, stdin})
	// Distinct zero handles stand in for real processes; only identity matters.
	proc := new(process.Process)
	f.procs = append(f.procs, proc)
	return proc, nil
}

// crash drops id as if its process died, returning the handle it had.
func (f *fakeSpawner) crash(t *testing.T) *process.Process {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.procs) == 0 {
		t.Fatal("nothing spawned")
	}
	last := f.spawns[len(f.spawns)-1]
	delete(f.running, last.id)
	return f.procs[len(f.procs)-1]
}

func (f *fakeSpawner) Kill(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	was := f.running[id]
	delete(f.running, id)
	if was {
		f.kills = append(f.kills, id)
	}
	return was
}

func (f *fakeSpawner) lastSpawn(t *testing.T) spawnRecord {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.spawns) == 0 {
		t.Fatal("nothing spawned")
	}
	return f.spawns[len(f.spawns)-1]
}

type fakeResolver struct {
	err error
}

func (r fakeResolver) Command(_ context.Context, args []string) (string, []string, error) {
	if r.err != nil {
		return "", nil, r.err
	}
	return "ffmpeg", append([]string{"-protocol_whitelist", "rtp,udp,pipe"}, args...), nil
}

// fakeConn records socket operations; unimplemented methods panic.
type fakeConn struct {
	net.PacketConn
	port    int
	ops     *[]string
	sendErr error
}

func (c *fakeConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	*c.ops = append(*c.ops, "send:"+addr.String())
	if c.sendErr != nil {
		return 0, c.sendErr
	}
	return len(b), nil
}

func (c *fakeConn) Close() error {
	*c.ops = append(*c.ops, "close:"+strconv.Itoa(c.port))
	return nil
}

type fakeBinder struct {
	ops     []string
	failOn  int
	sendErr error
}

func (b *fakeBinder) bind(network string, port int) (net.PacketConn, error) {
	b.ops = append(b.ops, "bind:"+network+":"+strconv.Itoa(port))
	if port == b.failOn {
		return nil, errors.New("address in use")
	}
	return &fakeConn{port: port, ops: &b.ops, sendErr: b.sendErr}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ev events.Event) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func (p *recordingPublisher) types() []uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uint32, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type())
	}
	return out
}

type harness struct {
	streamer  *Streamer
	device    *fakeDevice
	spawner   *fakeSpawner
	binder    *fakeBinder
	publisher *recordingPublisher
}

func testCall() Call {
	return ffmpeg.LiveSource{
		Video: ffmpeg.Upstream{Server: "10.0.0.5", Port: 5000, PayloadType: 99, Encoding: "H264", SampleRate: 90000, Key: "dmlkZW8ta2V5", SSRC: 11},
		Audio: ffmpeg.Upstream{Server: "10.0.0.5", Port: 5002, PayloadType: 100, Encoding: "PCMU", SampleRate: 8000, Key: "YXVkaW8ta2V5", Channels: 1, SSRC: 12},
	}
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		device:    &fakeDevice{call: testCall()},
		spawner:   newFakeSpawner(),
		binder:    &fakeBinder{},
		publisher: &recordingPublisher{},
	}
	opts := Options{
		Name:      "Front Door",
		Device:    h.device,
		Spawner:   h.spawner,
		Resolver:  fakeResolver{},
		Publisher: h.publisher,
		Logger:    testLogger(),
		Binder:    h.binder.bind,
		InterfaceAddrs: func() ([]net.Addr, error) {
			return []net.Addr{
				&net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)},
				&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
				&net.IPNet{IP: net.ParseIP("192.168.1.10"), Mask: net.CIDRMask(24, 32)},
				&net.IPNet{IP: net.ParseIP("fd00::10"), Mask: net.CIDRMask(64, 128)},
			}, nil
		},
		Now:           func() time.Time { return testNow },
		ReplayEnabled: true,
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.streamer = New(opts)
	return h
}

func testKey(fill byte) []byte {
	k := make([]byte, srtpKeyLength)
	for i := range k {
		k[i] = fill
	}
	return k
}

func testSetup(id string) SetupRequest {
	return SetupRequest{
		SessionID:     id,
		TargetAddress: "192.168.1.42",
		Video:         Endpoint{Port: 51000, Key: testKey('v')},
		Audio:         Endpoint{Port: 51002, Key: testKey('a')},
	}
}

func (h *harness) prepare(t *testing.T, id string) {
	t.Helper()
	if _, err := h.streamer.PrepareSession(context.Background(), testSetup(id)); err != nil {
		t.Fatalf("PrepareSession(%s): %v", id, err)
	}
}

func (h *harness) request(t *testing.T, id string, typ RequestType) error {
	t.Helper()
	return h.streamer.ProcessStreamRequest(context.Background(), StreamRequest{SessionID: id, Type: typ})
}
