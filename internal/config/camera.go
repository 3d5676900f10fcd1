package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/bellbridge/internal/logging"
)

// CameraSettings is the hot-reloadable part of the config file.
type CameraSettings struct {
	ReplayEnabled bool `toml:"replay_enabled"`
	MaxCalls      int  `toml:"max_calls"`
}

// DefaultCameraSettings returns the values used when [camera] omits a key.
func DefaultCameraSettings() CameraSettings {
	return CameraSettings{ReplayEnabled: true, MaxCalls: 2}
}

// Reloadable bundles everything the watcher re-applies on a file change.
type Reloadable struct {
	Camera  CameraSettings
	Logging logging.Config
}

// LoadReloadable reads the [camera] and [logging] tables from path.
// Unlike LoadLoggingConfig it reports read and parse errors, so a
// half-written file never replaces a good configuration.
func LoadReloadable(path string) (Reloadable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Reloadable{}, err
	}

	var raw struct {
		Camera *struct {
			ReplayEnabled *bool `toml:"replay_enabled"`
			MaxCalls      *int  `toml:"max_calls"`
		} `toml:"camera"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Reloadable{}, fmt.Errorf("parse %s: %w", path, err)
	}

	cam := DefaultCameraSettings()
	if raw.Camera != nil {
		if raw.Camera.ReplayEnabled != nil {
			cam.ReplayEnabled = *raw.Camera.ReplayEnabled
		}
		if raw.Camera.MaxCalls != nil {
			if *raw.Camera.MaxCalls < 1 {
				return Reloadable{}, fmt.Errorf("camera.max_calls must be >= 1, got %d", *raw.Camera.MaxCalls)
			}
			cam.MaxCalls = *raw.Camera.MaxCalls
		}
	}

	return Reloadable{Camera: cam, Logging: LoadLoggingConfig(path)}, nil
}
