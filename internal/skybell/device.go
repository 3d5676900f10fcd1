package skybell

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/smazurov/bellbridge/internal/camera"
	"github.com/smazurov/bellbridge/internal/logging"
)

// DefaultCallRetries is how many times a live call start is attempted.
const DefaultCallRetries = 5

// Settings is the doorbell's settings object. The cloud reports numbers
// both as JSON numbers and as strings.
type Settings map[string]any

// Int returns the integer value of key.
func (s Settings) Int(key string) (int, bool) {
	switch v := s[key].(type) {
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

// VideoProfile returns video_profile: 0 1080p, 1 and 2 720p, 3 480p.
func (s Settings) VideoProfile() (int, bool) {
	return s.Int("video_profile")
}

// Device is one doorbell on the account. Each streaming session gets its
// own cloned client, created on StartCall and dropped on StopCall.
type Device struct {
	ID   string
	Name string

	api         *Client
	callRetries int
	logger      logging.Logger

	mu      sync.Mutex
	clients map[string]*Client
}

var _ camera.Device = (*Device)(nil)

// DeviceOption configures a Device.
type DeviceOption func(*Device)

// WithCallRetries sets the number of call start attempts.
func WithCallRetries(n int) DeviceOption {
	return func(d *Device) {
		if n > 0 {
			d.callRetries = n
		}
	}
}

// NewDevice wraps a device from the account's device list.
func NewDevice(api *Client, info DeviceInfo, opts ...DeviceOption) *Device {
	d := &Device{
		ID:          info.ID,
		Name:        info.Name,
		api:         api,
		callRetries: DefaultCallRetries,
		logger:      api.logger,
		clients:     make(map[string]*Client),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// clientFor returns the session's client, cloning one on first use.
func (d *Device) clientFor(sessionID string) *Client {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.clients[sessionID]
	if !ok {
		c = d.api.Clone()
		d.clients[sessionID] = c
	}
	return c
}

func (d *Device) takeClient(sessionID string) (*Client, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.clients[sessionID]
	delete(d.clients, sessionID)
	return c, ok
}

// Sessions returns the number of session clients held.
func (d *Device) Sessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.clients)
}

// StartCall opens a live call under the session's own identity, retrying
// failed attempts. The session's client is dropped when every attempt fails.
func (d *Device) StartCall(ctx context.Context, sessionID string) (camera.Call, error) {
	client := d.clientFor(sessionID)

	var err error
	for attempt := 1; attempt <= d.callRetries; attempt++ {
		var call camera.Call
		call, err = client.StartCall(ctx, d.ID)
		if err == nil {
			return call, nil
		}
		if ctx.Err() != nil {
			break
		}
		if attempt < d.callRetries {
			d.logger.Warn("Retrying call to doorbell", "doorbell", d.Name, "session_id", sessionID, "attempt", attempt, "error", err)
		}
	}
	d.takeClient(sessionID)
	d.logger.Error("Failed to start call to doorbell", "doorbell", d.Name, "session_id", sessionID, "error", err)
	return camera.Call{}, fmt.Errorf("start call: %w", err)
}

// StopCall ends the session's live call and drops its client.
func (d *Device) StopCall(ctx context.Context, sessionID string) error {
	client, ok := d.takeClient(sessionID)
	if !ok {
		d.logger.Debug("No call to stop", "doorbell", d.Name, "session_id", sessionID)
		return nil
	}
	if err := client.StopCall(ctx, d.ID); err != nil {
		return fmt.Errorf("stop call: %w", err)
	}
	return nil
}

// VideoURL resolves the recorded clip of an activity.
func (d *Device) VideoURL(ctx context.Context, activity camera.Activity) (string, error) {
	u, err := d.api.ActivityVideoURL(ctx, d.ID, activity.ID)
	if err != nil {
		return "", fmt.Errorf("video for activity %s: %w", activity.ID, err)
	}
	return u, nil
}

// Avatar downloads the doorbell's latest still image.
func (d *Device) Avatar(ctx context.Context) ([]byte, string, error) {
	u, err := d.api.AvatarURL(ctx, d.ID)
	if err != nil {
		return nil, "", fmt.Errorf("avatar: %w", err)
	}
	image, contentType, err := d.api.Download(ctx, u)
	if err != nil {
		return nil, "", fmt.Errorf("avatar: %w", err)
	}
	return image, imageFormat(contentType, u), nil
}

// imageFormat derives a short format name from a content type or URL,
// defaulting to jpeg.
func imageFormat(contentType, rawURL string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(mt, "image/") {
		return strings.TrimPrefix(mt, "image/")
	}
	p := rawURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".png":
		return "png"
	case ".gif":
		return "gif"
	}
	return "jpeg"
}

// Info reads the doorbell's network status.
func (d *Device) Info(ctx context.Context) (Info, error) {
	return d.api.Info(ctx, d.ID)
}

// Settings reads the doorbell's settings.
func (d *Device) Settings(ctx context.Context) (Settings, error) {
	return d.api.Settings(ctx, d.ID)
}

// UpdateSettings changes doorbell settings.
func (d *Device) UpdateSettings(ctx context.Context, changes Settings) error {
	if err := d.api.UpdateSettings(ctx, d.ID, changes); err != nil {
		d.logger.Warn("Failed to reconfigure doorbell", "doorbell", d.Name, "changes", changes, "error", err)
		return err
	}
	return nil
}

// Activities lists recent events, newest first.
func (d *Device) Activities(ctx context.Context) ([]camera.Activity, error) {
	return d.api.Activities(ctx, d.ID)
}
