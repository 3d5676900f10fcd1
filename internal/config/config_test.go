package config

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

type testOptions struct {
	Config string `help:"Config file path"`

	ServerPort     int           `toml:"server.port" env:"SERVER_PORT"`
	SkybellUser    string        `toml:"skybell.username" env:"SKYBELL_USERNAME"`
	ReplayEnabled  bool          `toml:"camera.replay_enabled" env:"CAMERA_REPLAY_ENABLED"`
	PollInterval   time.Duration `toml:"skybell.poll_interval" env:"SKYBELL_POLL_INTERVAL"`
	WebhookAllowed []string      `toml:"webhooks.allowed" env:"WEBHOOKS_ALLOWED"`
}

const sampleTOML = `
[server]
port = 8092

[skybell]
username = "toml@example.com"
poll_interval = "5s"

[camera]
replay_enabled = true

[webhooks]
allowed = ["button", "motion"]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bellbridge.toml")
	writeTestFile(t, path, content)
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	opts := &testOptions{Config: writeConfig(t, sampleTOML)}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.ServerPort != 8092 {
		t.Errorf("ServerPort = %d, want 8092", opts.ServerPort)
	}
	if opts.SkybellUser != "toml@example.com" {
		t.Errorf("SkybellUser = %q", opts.SkybellUser)
	}
	if !opts.ReplayEnabled {
		t.Error("ReplayEnabled = false, want true")
	}
	if opts.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s", opts.PollInterval)
	}
	if want := []string{"button", "motion"}; !reflect.DeepEqual(opts.WebhookAllowed, want) {
		t.Errorf("WebhookAllowed = %v, want %v", opts.WebhookAllowed, want)
	}
}

func TestLoadConfigEnvOverridesTOML(t *testing.T) {
	t.Setenv("BELLBRIDGE_SERVER_PORT", "9000")
	t.Setenv("BELLBRIDGE_CAMERA_REPLAY_ENABLED", "false")
	t.Setenv("BELLBRIDGE_SKYBELL_POLL_INTERVAL", "2s")
	t.Setenv("BELLBRIDGE_WEBHOOKS_ALLOWED", " button , motion ")

	opts := &testOptions{Config: writeConfig(t, sampleTOML)}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.ServerPort != 9000 {
		t.Errorf("ServerPort = %d, want 9000 from env", opts.ServerPort)
	}
	if opts.ReplayEnabled {
		t.Error("ReplayEnabled should be overridden to false")
	}
	if opts.PollInterval != 2*time.Second {
		t.Errorf("PollInterval = %v, want 2s", opts.PollInterval)
	}
	if opts.SkybellUser != "toml@example.com" {
		t.Errorf("SkybellUser = %q, want TOML value", opts.SkybellUser)
	}
	if want := []string{"button", "motion"}; !reflect.DeepEqual(opts.WebhookAllowed, want) {
		t.Errorf("WebhookAllowed = %v, want %v", opts.WebhookAllowed, want)
	}
}

func TestLoadConfigCLIWins(t *testing.T) {
	t.Setenv("BELLBRIDGE_SERVER_PORT", "9000")

	opts := &testOptions{Config: writeConfig(t, sampleTOML)}
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().IntVar(&opts.ServerPort, "server-port", 0, "")
	if err := cmd.Flags().Set("server-port", "7000"); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if opts.ServerPort != 7000 {
		t.Errorf("ServerPort = %d, want CLI value 7000", opts.ServerPort)
	}
}

func TestLoadConfigBadEnvValue(t *testing.T) {
	t.Setenv("BELLBRIDGE_SERVER_PORT", "eighty")
	if err := LoadConfig(&testOptions{}, nil); err == nil {
		t.Fatal("expected error for non-numeric port")
	}
}

func TestLoadConfigTypeMismatch(t *testing.T) {
	opts := &testOptions{Config: writeConfig(t, "[server]\nport = \"eighty\"\n")}
	if err := LoadConfig(opts, nil); err == nil {
		t.Fatal("expected error for string port in TOML")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &testOptions{Config: filepath.Join(t.TempDir(), "missing.toml")}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig should not fail for missing file: %v", err)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	opts := &testOptions{Config: writeConfig(t, "[server\ninvalid")}
	if err := LoadConfig(opts, nil); err == nil {
		t.Fatal("LoadConfig should fail for invalid TOML")
	}
}

func TestLoadConfigRejectsNonPointer(t *testing.T) {
	if err := LoadConfig(testOptions{}, nil); err == nil {
		t.Fatal("expected error for non-pointer opts")
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":            "port",
		"SkybellUsername": "skybell-username",
		"CameraMaxCalls":  "camera-max-calls",
		"CORSOrigins":     "cors-origins",
		"LoggingAPI":      "logging-api",
		"LoggingFfmpeg":   "logging-ffmpeg",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"camera": map[string]any{
			"recording": map[string]any{"width": int64(1280)},
			"max_calls": int64(2),
		},
		"root": "value",
	}

	tests := []struct {
		path string
		want any
	}{
		{"root", "value"},
		{"camera.max_calls", int64(2)},
		{"camera.recording.width", int64(1280)},
		{"missing", nil},
		{"camera.missing", nil},
		{"root.child", nil},
	}
	for _, tt := range tests {
		if got := getNestedValue(data, tt.path); got != tt.want {
			t.Errorf("getNestedValue(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"warn\"\nformat = \"json\"\ncamera = \"debug\"\nffmpeg = \"error\"\n")

	cfg := LoadLoggingConfig(path)
	if cfg.Level != "warn" || cfg.Format != "json" {
		t.Errorf("cfg = %+v", cfg)
	}
	want := map[string]string{"camera": "debug", "ffmpeg": "error"}
	if !reflect.DeepEqual(cfg.Modules, want) {
		t.Errorf("Modules = %v, want %v", cfg.Modules, want)
	}

	if def := LoadLoggingConfig(""); def.Level != "info" || def.Format != "text" {
		t.Errorf("default = %+v", def)
	}
}
