// Package logging provides structured logging with per-module log level configuration.
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"camera": "debug",
//			"ffmpeg": "warn",
//		},
//	})
//
// Get a logger for your module and add per-session context:
//
//	logger := logging.GetLogger("camera").With("session_id", id)
//	logger.Info("Stream started", "mode", "live")
//
// Records go to stdout and, when journald is reachable, to the systemd
// journal as well:
//
//	journalctl -t bellbridge MODULE=camera
//	journalctl -t bellbridge SESSION_ID=2f0c...
//
// Module levels can be changed at runtime with SetLevel, which the config
// watcher uses when the [logging] section of the config file changes.
package logging
