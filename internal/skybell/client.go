package skybell

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/smazurov/bellbridge/internal/camera"
	"github.com/smazurov/bellbridge/internal/logging"
	"github.com/smazurov/bellbridge/internal/version"
)

// DefaultBaseURL is the SkyBell cloud API root.
const DefaultBaseURL = "https://cloud.myskybell.com/api/v3/"

// ErrAuth is returned when login fails or yields no token.
var ErrAuth = errors.New("skybell: authentication failed")

// instances numbers clients in log output.
var instances atomic.Int64

// APIError is an error response from the cloud.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return "SkyBell API error: " + e.Message
}

// needsLogin reports whether the cloud rejected the access token.
func needsLogin(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnauthorized || strings.Contains(apiErr.Message, "SmartAuth")
}

// Credentials are the account login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Client is a SkyBell cloud API client. Each client carries its own app
// and client identifiers; the cloud ties a live call to them.
type Client struct {
	baseURL  string
	creds    Credentials
	http     *retryablehttp.Client
	logger   logging.Logger
	appID    string
	clientID string
	instance int64
	requests atomic.Int64

	mu    sync.Mutex
	token string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API root. It must end with a slash.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http.HTTPClient = hc }
}

// WithRetry sets the transport retry count and backoff bounds.
func WithRetry(retries int, waitMin, waitMax time.Duration) ClientOption {
	return func(c *Client) {
		c.http.RetryMax = retries
		c.http.RetryWaitMin = waitMin
		c.http.RetryWaitMax = waitMax
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the account. No request is made until
// the first API call, which logs in.
func NewClient(creds Credentials, opts ...ClientOption) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = 30 * time.Second
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		baseURL:  DefaultBaseURL,
		creds:    creds,
		http:     rc,
		logger:   logging.GetLogger("skybell"),
		appID:    uuid.NewString(),
		clientID: uuid.NewString(),
		instance: instances.Add(1),
	}
	for _, opt := range opts {
		opt(c)
	}
	rc.Logger = c.logger
	return c
}

// Clone returns a client for the same account with fresh identifiers and
// no token. It shares the HTTP transport.
func (c *Client) Clone() *Client {
	return &Client{
		baseURL:  c.baseURL,
		creds:    c.creds,
		http:     c.http,
		logger:   c.logger,
		appID:    uuid.NewString(),
		clientID: uuid.NewString(),
		instance: instances.Add(1),
	}
}

// AppID returns the x-skybell-app-id identifier.
func (c *Client) AppID() string {
	return c.appID
}

// Login obtains a new access token.
func (c *Client) Login(ctx context.Context) error {
	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.requestRaw(ctx, http.MethodPost, "login/", c.creds, &body); err != nil {
		return fmt.Errorf("%w: %w", ErrAuth, err)
	}
	if body.AccessToken == "" {
		return fmt.Errorf("%w: no access token returned", ErrAuth)
	}

	c.mu.Lock()
	c.token = body.AccessToken
	c.mu.Unlock()
	return nil
}

// Logout ends the session for this client's app id.
func (c *Client) Logout(ctx context.Context) error {
	return c.request(ctx, http.MethodPost, "logout", map[string]string{"appId": c.appID}, nil)
}

// request issues an authenticated request, logging in first when there is
// no token and once more when the cloud rejects it.
func (c *Client) request(ctx context.Context, method, path string, in, out any) error {
	c.mu.Lock()
	hasToken := c.token != ""
	c.mu.Unlock()

	if !hasToken {
		if err := c.Login(ctx); err != nil {
			return err
		}
	}

	err := c.requestRaw(ctx, method, path, in, out)
	if needsLogin(err) {
		c.logger.Info("SkyBell access token rejected, logging in again", "instance", c.instance)
		if err := c.Login(ctx); err != nil {
			return err
		}
		err = c.requestRaw(ctx, method, path, in, out)
	}
	return err
}

func (c *Client) requestRaw(ctx context.Context, method, path string, in, out any) error {
	var body any
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = data
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.mu.Lock()
	req.Header.Set("Authorization", "Bearer "+c.token)
	c.mu.Unlock()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("x-skybell-app-id", c.appID)
	req.Header.Set("x-skybell-client-id", c.clientID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	n := c.requests.Add(1)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Cloud API request failed", "request", fmt.Sprintf("%d-%d", c.instance, n), "method", method, "path", path, "error", err)
		return fmt.Errorf("%s /%s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Cloud API request",
		"request", fmt.Sprintf("%d-%d", c.instance, n),
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(resp.Status, data)}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// errorMessage extracts the most useful text from an error body.
func errorMessage(status string, data []byte) string {
	var body map[string]json.RawMessage
	if len(data) == 0 || json.Unmarshal(data, &body) != nil {
		if s := strings.TrimSpace(string(data)); s != "" {
			return s
		}
		return status
	}

	e := data
	if raw, ok := body["errors"]; ok {
		e = raw
	} else if raw, ok := body["error"]; ok {
		e = raw
	}

	var fields struct {
		Message string `json:"message"`
		Name    string `json:"name"`
	}
	if json.Unmarshal(e, &fields) == nil {
		if fields.Message != "" {
			return fields.Message
		}
		if fields.Name != "" {
			return fields.Name
		}
	}
	var s string
	if json.Unmarshal(e, &s) == nil && s != "" {
		return s
	}
	return string(e)
}

// DeviceInfo is an entry of the account's device list.
type DeviceInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type,omitempty"`
	Status string `json:"status,omitempty"`
}

// Devices lists the account's doorbells.
func (c *Client) Devices(ctx context.Context) ([]DeviceInfo, error) {
	var out []DeviceInfo
	if err := c.request(ctx, http.MethodGet, "devices/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Info is the doorbell's network status.
type Info struct {
	Essid           string `json:"essid"`
	WifiSignalLevel string `json:"wifiSignalLevel"`
	WifiNoise       string `json:"wifiNoise"`
	WifiSnr         string `json:"wifiSnr"`
	WifiLinkQuality string `json:"wifiLinkQuality"`
	WifiBitrate     string `json:"wifiBitrate"`
	Firmware        string `json:"firmwareVersion"`
	Status          struct {
		WifiLink string `json:"wifiLink"`
	} `json:"status"`
}

// Info reads the doorbell's network status.
func (c *Client) Info(ctx context.Context, deviceID string) (Info, error) {
	var out Info
	err := c.request(ctx, http.MethodGet, "devices/"+deviceID+"/info/", nil, &out)
	return out, err
}

// Settings reads the doorbell's settings.
func (c *Client) Settings(ctx context.Context, deviceID string) (Settings, error) {
	out := Settings{}
	err := c.request(ctx, http.MethodGet, "devices/"+deviceID+"/settings/", nil, &out)
	return out, err
}

// UpdateSettings changes any combination of settings.
func (c *Client) UpdateSettings(ctx context.Context, deviceID string, changes Settings) error {
	return c.request(ctx, http.MethodPatch, "devices/"+deviceID+"/settings/", changes, nil)
}

type mediaURL struct {
	URL string `json:"url"`
}

// AvatarURL returns the location of the doorbell's latest still image.
func (c *Client) AvatarURL(ctx context.Context, deviceID string) (string, error) {
	var out mediaURL
	if err := c.request(ctx, http.MethodGet, "devices/"+deviceID+"/avatar/", nil, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", errors.New("no avatar URL returned")
	}
	return out.URL, nil
}

// Activities lists recent events, newest first.
func (c *Client) Activities(ctx context.Context, deviceID string) ([]camera.Activity, error) {
	var out []camera.Activity
	if err := c.request(ctx, http.MethodGet, "devices/"+deviceID+"/activities/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ActivityVideoURL returns the location of an activity's recorded clip.
func (c *Client) ActivityVideoURL(ctx context.Context, deviceID, activityID string) (string, error) {
	var out mediaURL
	path := "devices/" + deviceID + "/activities/" + activityID + "/video/"
	if err := c.request(ctx, http.MethodGet, path, nil, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", errors.New("no video URL returned")
	}
	return out.URL, nil
}

// StartCall opens a live call and returns the doorbell's SRTP streams.
func (c *Client) StartCall(ctx context.Context, deviceID string) (camera.Call, error) {
	var out camera.Call
	if err := c.request(ctx, http.MethodPost, "devices/"+deviceID+"/calls/", nil, &out); err != nil {
		return camera.Call{}, err
	}
	if out.Video.Server == "" || out.Video.Port == 0 {
		return camera.Call{}, errors.New("call response has no incoming video")
	}
	return out, nil
}

// StopCall ends this client's live call.
func (c *Client) StopCall(ctx context.Context, deviceID string) error {
	return c.request(ctx, http.MethodDelete, "devices/"+deviceID+"/calls/", nil, nil)
}

// Download fetches an unauthenticated media URL and returns the body with
// its content type.
func (c *Client) Download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed, status: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, "", fmt.Errorf("download: %w", err)
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty download")
	}
	return data, resp.Header.Get("Content-Type"), nil
}
