package skybell

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCloud is a scripted SkyBell API. Handlers are keyed by
// "METHOD /path" relative to the API root.
type fakeCloud struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	logins   int
	requests []*http.Request
	bodies   []string
	handlers map[string]http.HandlerFunc
}

func newFakeCloud(t *testing.T) *fakeCloud {
	t.Helper()
	f := &fakeCloud{t: t, handlers: make(map[string]http.HandlerFunc)}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeCloud) handle(route string, h http.HandlerFunc) {
	f.mu.Lock()
	f.handlers[route] = h
	f.mu.Unlock()
}

func (f *fakeCloud) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	route := r.Method + " " + strings.TrimPrefix(r.URL.Path, "/api/v3/")

	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.bodies = append(f.bodies, string(body))
	h, ok := f.handlers[route]
	if route == "POST login/" {
		f.logins++
		if !ok {
			n := f.logins
			h = func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, map[string]string{"access_token": "token-" + string(rune('0'+n))})
			}
			ok = true
		}
	}
	f.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]string{"message": "no route " + route}})
		return
	}
	h(w, r)
}

func (f *fakeCloud) loginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

// last returns the most recent request for route.
func (f *fakeCloud) last(route string) (*http.Request, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		r := f.requests[i]
		if r.Method+" "+strings.TrimPrefix(r.URL.Path, "/api/v3/") == route {
			return r, f.bodies[i]
		}
	}
	return nil, ""
}

func (f *fakeCloud) count(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.Method+" "+strings.TrimPrefix(r.URL.Path, "/api/v3/") == route {
			n++
		}
	}
	return n
}

func (f *fakeCloud) client() *Client {
	return NewClient(
		Credentials{Username: "user@example.com", Password: "hunter2"},
		WithBaseURL(f.server.URL+"/api/v3/"),
		WithRetry(0, time.Millisecond, time.Millisecond),
		WithLogger(testLogger()),
	)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLoginAndHeaders(t *testing.T) {
	cloud := newFakeCloud(t)
	cloud.handle("GET devices/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []DeviceInfo{{ID: "d1", Name: "Front Door"}})
	})

	c := cloud.client()
	devices, err := c.Devices(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 1 || devices[0].Name != "Front Door" {
		t.Errorf("devices = %+v", devices)
	}

	_, body := cloud.last("POST login/")
	var creds Credentials
	if err := json.Unmarshal([]byte(body), &creds); err != nil {
		t.Fatalf("login body %q: %v", body, err)
	}
	if creds.Username != "user@example.com" || creds.Password != "hunter2" {
		t.Errorf("login creds = %+v", creds)
	}

	r, _ := cloud.last("GET devices/")
	if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
		t.Errorf("Authorization = %q", got)
	}
	if r.Header.Get("x-skybell-app-id") != c.AppID() {
		t.Errorf("app id = %q", r.Header.Get("x-skybell-app-id"))
	}
	if r.Header.Get("x-skybell-client-id") == "" {
		t.Error("missing client id")
	}
	if !strings.HasPrefix(r.Header.Get("User-Agent"), "bellbridge/") {
		t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
	}

	// The token is reused.
	if _, err := c.Devices(context.Background()); err != nil {
		t.Fatal(err)
	}
	if cloud.loginCount() != 1 {
		t.Errorf("logins = %d, want 1", cloud.loginCount())
	}
}

func TestReloginOnRejectedToken(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
	}{
		{"unauthorized", http.StatusUnauthorized, map[string]string{"message": "expired"}},
		{"smart auth", http.StatusForbidden, map[string]any{"error": map[string]string{"message": "SmartAuth session invalid"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cloud := newFakeCloud(t)
			var calls int
			cloud.handle("GET devices/", func(w http.ResponseWriter, _ *http.Request) {
				calls++
				if calls == 1 {
					writeJSON(w, tt.status, tt.body)
					return
				}
				writeJSON(w, http.StatusOK, []DeviceInfo{})
			})

			if _, err := cloud.client().Devices(context.Background()); err != nil {
				t.Fatal(err)
			}
			if cloud.loginCount() != 2 {
				t.Errorf("logins = %d, want 2", cloud.loginCount())
			}
			r, _ := cloud.last("GET devices/")
			if got := r.Header.Get("Authorization"); got != "Bearer token-2" {
				t.Errorf("Authorization = %q", got)
			}
		})
	}
}

func TestOtherErrorsDoNotRelogin(t *testing.T) {
	cloud := newFakeCloud(t)
	cloud.handle("GET devices/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "Forbidden"})
	})

	_, err := cloud.client().Devices(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusForbidden {
		t.Fatalf("err = %v", err)
	}
	if err.Error() != "SkyBell API error: Forbidden" {
		t.Errorf("message = %q", err.Error())
	}
	if cloud.loginCount() != 1 {
		t.Errorf("logins = %d", cloud.loginCount())
	}
}

func TestLoginFailure(t *testing.T) {
	cloud := newFakeCloud(t)
	cloud.handle("POST login/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": map[string]string{"name": "InvalidCredentials"}})
	})

	_, err := cloud.client().Devices(context.Background())
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", err)
	}
	if !strings.Contains(err.Error(), "InvalidCredentials") {
		t.Errorf("err = %v", err)
	}
	if cloud.count("GET devices/") != 0 {
		t.Error("request sent without a token")
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"errors message", `{"errors":{"message":"bad device"}}`, "bad device"},
		{"error name", `{"error":{"name":"NotFound"}}`, "NotFound"},
		{"error string", `{"error":"nope"}`, "nope"},
		{"top-level message", `{"message":"slow down"}`, "slow down"},
		{"unrecognised object", `{"code":7}`, `{"code":7}`},
		{"plain text", "gateway timeout\n", "gateway timeout"},
		{"empty", "", "502 Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorMessage("502 Bad Gateway", []byte(tt.body)); got != tt.want {
				t.Errorf("errorMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestServerErrorSurfacesAsAPIError(t *testing.T) {
	cloud := newFakeCloud(t)
	cloud.handle("GET devices/d1/settings/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "boom"})
	})

	_, err := cloud.client().Settings(context.Background(), "d1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusInternalServerError || apiErr.Message != "boom" {
		t.Fatalf("err = %v", err)
	}
}

func TestCloneHasFreshIdentity(t *testing.T) {
	cloud := newFakeCloud(t)
	cloud.handle("GET devices/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []DeviceInfo{})
	})

	c := cloud.client()
	clone := c.Clone()
	if clone.AppID() == c.AppID() {
		t.Error("clone shares the app id")
	}

	if _, err := c.Devices(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := clone.Devices(context.Background()); err != nil {
		t.Fatal(err)
	}
	if cloud.loginCount() != 2 {
		t.Errorf("logins = %d, want one per client", cloud.loginCount())
	}
	r, _ := cloud.last("GET devices/")
	if r.Header.Get("x-skybell-app-id") != clone.AppID() {
		t.Errorf("app id = %q", r.Header.Get("x-skybell-app-id"))
	}
}

func TestActivityVideoURLUsesActivityID(t *testing.T) {
	cloud := newFakeCloud(t)
	cloud.handle("GET devices/d1/activities/a42/video/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"url": "https://media.example/a42.mp4"})
	})

	u, err := cloud.client().ActivityVideoURL(context.Background(), "d1", "a42")
	if err != nil {
		t.Fatal(err)
	}
	if u != "https://media.example/a42.mp4" {
		t.Errorf("url = %q", u)
	}
}

func TestUpdateSettingsPatches(t *testing.T) {
	cloud := newFakeCloud(t)
	cloud.handle("PATCH devices/d1/settings/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if err := cloud.client().UpdateSettings(context.Background(), "d1", Settings{"video_profile": 1}); err != nil {
		t.Fatal(err)
	}
	r, body := cloud.last("PATCH devices/d1/settings/")
	if r.Header.Get("Content-Type") != "application/json" || body != `{"video_profile":1}` {
		t.Errorf("content-type %q body %q", r.Header.Get("Content-Type"), body)
	}
}
