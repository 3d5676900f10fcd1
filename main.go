package main

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/bellbridge/cmd"
	"github.com/smazurov/bellbridge/internal/api"
	"github.com/smazurov/bellbridge/internal/camera"
	"github.com/smazurov/bellbridge/internal/config"
	"github.com/smazurov/bellbridge/internal/doorbell"
	"github.com/smazurov/bellbridge/internal/events"
	"github.com/smazurov/bellbridge/internal/ffmpeg"
	"github.com/smazurov/bellbridge/internal/logging"
	"github.com/smazurov/bellbridge/internal/metrics"
	"github.com/smazurov/bellbridge/internal/process"
	"github.com/smazurov/bellbridge/internal/skybell"
	"github.com/smazurov/bellbridge/internal/systemd"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port        string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	Address     string `help:"Address advertised to streaming clients (default: first interface address)" toml:"server.address" env:"SERVER_ADDRESS"`
	CORSOrigins string `help:"Comma-separated origins allowed to call the API (default: any)" toml:"server.cors_origins" env:"SERVER_CORS_ORIGINS"`

	// Auth settings
	AuthUsername string `help:"Basic auth username (empty disables auth)" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// SkyBell cloud settings
	SkybellUsername         string `help:"SkyBell account username" toml:"skybell.username" env:"SKYBELL_USERNAME"`
	SkybellPassword         string `help:"SkyBell account password" toml:"skybell.password" env:"SKYBELL_PASSWORD"`
	SkybellDevices          string `help:"Comma-separated doorbell names to bridge (default: all)" toml:"skybell.devices" env:"SKYBELL_DEVICES"`
	SkybellCallRetries      int    `help:"Attempts to open a live call" default:"5" toml:"skybell.call_retries" env:"SKYBELL_CALL_RETRIES"`
	SkybellActivityInterval string `help:"Activity poll interval" default:"5s" toml:"skybell.activity_interval" env:"SKYBELL_ACTIVITY_INTERVAL"`
	SkybellSettingsInterval string `help:"Settings poll interval" default:"60s" toml:"skybell.settings_interval" env:"SKYBELL_SETTINGS_INTERVAL"`
	SkybellInfoInterval     string `help:"Device info poll interval" default:"5m" toml:"skybell.info_interval" env:"SKYBELL_INFO_INTERVAL"`

	// Camera settings (reloaded at runtime)
	CameraReplayEnabled bool `help:"Replay the pinned recording instead of calling the doorbell" default:"true" toml:"camera.replay_enabled" env:"CAMERA_REPLAY_ENABLED"`
	CameraMaxCalls      int  `help:"Concurrent live calls per doorbell" default:"2" toml:"camera.max_calls" env:"CAMERA_MAX_CALLS"`

	// Webhook settings
	WebhooksSecret string `help:"Shared secret required in webhook bodies (empty accepts any)" toml:"webhooks.secret" env:"WEBHOOKS_SECRET"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCamera   string `help:"Camera logging level" default:"info" toml:"logging.camera" env:"LOGGING_CAMERA"`
	LoggingProcess  string `help:"Process supervisor logging level" default:"info" toml:"logging.process" env:"LOGGING_PROCESS"`
	LoggingFfmpeg   string `help:"FFmpeg output logging level" default:"info" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingSkybell  string `help:"SkyBell cloud logging level" default:"info" toml:"logging.skybell" env:"LOGGING_SKYBELL"`
	LoggingDoorbell string `help:"Doorbell logging level" default:"info" toml:"logging.doorbell" env:"LOGGING_DOORBELL"`
	LoggingAPI      string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

// bridge is one doorbell with its streaming side and poller.
type bridge struct {
	streamer *camera.Streamer
	doorbell *doorbell.Doorbell
	poller   *skybell.Poller
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"camera":   opts.LoggingCamera,
				"process":  opts.LoggingProcess,
				"ffmpeg":   opts.LoggingFfmpeg,
				"skybell":  opts.LoggingSkybell,
				"doorbell": opts.LoggingDoorbell,
				"api":      opts.LoggingAPI,
			},
		})

		logger := logging.GetLogger("main")
		notifier := systemd.NewNotifier(logger)

		// Create event bus for in-process event handling
		eventBus := events.New()
		detachMetrics := metrics.Attach(eventBus)
		progress := metrics.NewProgressCollector()

		var (
			mu      sync.Mutex
			bridges []*bridge
		)

		supervisor := process.NewSupervisor(process.Options{
			Logger:        logging.GetLogger("process"),
			OutputLogger:  logging.GetLogger("ffmpeg"),
			LogParser:     ffmpeg.ParseLogLevel,
			OutputHandler: progress,
			OnExit: func(p *process.Process, expected bool) {
				id := p.ID()
				progress.Forget(id)
				eventBus.Publish(events.ProcessExitedEvent{
					SessionID: id,
					Expected:  expected,
					ExitCode:  p.ExitCode(),
					Timestamp: events.Now(),
				})
				mu.Lock()
				current := bridges
				mu.Unlock()
				for _, b := range current {
					b.streamer.ProcessExited(id, p, expected)
				}
			},
		})

		registry := doorbell.NewRegistry()
		ctx, cancel := context.WithCancel(context.Background())
		var pollers sync.WaitGroup

		var server *api.Server
		var watcher *config.Watcher[config.Reloadable]

		hooks.OnStart(func() {
			if opts.SkybellUsername == "" || opts.SkybellPassword == "" {
				logger.Error("SkyBell credentials are not configured")
				os.Exit(1)
			}

			client := skybell.NewClient(
				skybell.Credentials{Username: opts.SkybellUsername, Password: opts.SkybellPassword},
				skybell.WithLogger(logging.GetLogger("skybell")),
			)

			devices, err := client.Devices(ctx)
			if err != nil {
				logger.Error("Failed to list SkyBell devices", "error", err)
				os.Exit(1)
			}

			wanted := splitList(opts.SkybellDevices)
			var cameras []api.Camera
			for _, info := range devices {
				if len(wanted) > 0 && !wanted[info.Name] {
					logger.Info("Skipping doorbell", "name", info.Name)
					continue
				}
				b := newBridge(client, info, opts, eventBus, supervisor)
				registry.Add(b.doorbell)
				cameras = append(cameras, b.streamer)

				mu.Lock()
				bridges = append(bridges, b)
				mu.Unlock()

				pollers.Add(1)
				go func() {
					defer pollers.Done()
					if runErr := b.poller.Run(ctx); runErr != nil {
						logger.Error("Poller stopped", "doorbell", info.Name, "error", runErr)
					}
				}()
				logger.Info("Bridging doorbell", "name", info.Name, "id", info.ID)
			}
			if len(cameras) == 0 {
				logger.Warn("No doorbells to bridge", "found", len(devices))
			}

			watcher = config.NewConfigWatcher(
				opts.Config,
				config.LoadReloadable,
				logger,
				config.WithDebounce[config.Reloadable](1500*time.Millisecond),
			)
			watcher.OnReload(func(r config.Reloadable) {
				notifier.Reloading()
				defer notifier.Ready()

				mu.Lock()
				current := bridges
				mu.Unlock()
				for _, b := range current {
					b.streamer.SetReplayEnabled(r.Camera.ReplayEnabled)
					b.streamer.SetMaxCalls(r.Camera.MaxCalls)
				}
				logging.SetLevel("", r.Logging.Level)
				for module, level := range r.Logging.Modules {
					logging.SetLevel(module, level)
				}
				logger.Info("Configuration reloaded",
					"replay_enabled", r.Camera.ReplayEnabled,
					"max_calls", r.Camera.MaxCalls)
			})
			// Non-fatal: hot reload is optional
			if startErr := watcher.Start(); startErr != nil {
				logger.Warn("Failed to start config watcher, hot-reload disabled", "error", startErr)
			}

			server = api.NewServer(&api.Options{
				AuthUsername:      opts.AuthUsername,
				AuthPassword:      opts.AuthPassword,
				WebhookSecret:     opts.WebhooksSecret,
				CORSOrigins:       slices.Sorted(maps.Keys(splitList(opts.CORSOrigins))),
				Cameras:           cameras,
				Doorbells:         registry,
				EventBus:          eventBus,
				Stats:             progress,
				PrometheusHandler: promhttp.Handler(),
			})

			notifier.Ready()
			go notifier.RunWatchdog(ctx)

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			notifier.Stopping()

			if server != nil {
				if stopErr := server.Stop(); stopErr != nil {
					logger.Error("Error stopping HTTP server", "error", stopErr)
				}
			}
			if watcher != nil {
				_ = watcher.Stop()
			}

			cancel()
			pollers.Wait()
			registry.Close()

			// End device calls before the transcoders feeding them
			mu.Lock()
			current := bridges
			mu.Unlock()
			for _, b := range current {
				b.streamer.Close()
			}
			supervisor.KillAll()
			detachMetrics()
		})
	})

	cli.Root().AddCommand(cmd.CreateProbeCmd())
	cli.Root().AddCommand(cmd.CreateSnapshotCmd())

	// Run the CLI
	cli.Run()
}

func newBridge(
	client *skybell.Client,
	info skybell.DeviceInfo,
	opts *Options,
	bus *events.Bus,
	supervisor *process.Supervisor,
) *bridge {
	device := skybell.NewDevice(client, info, skybell.WithCallRetries(opts.SkybellCallRetries))

	streamer := camera.New(camera.Options{
		Name:          info.Name,
		Device:        device,
		Spawner:       supervisor,
		Resolver:      ffmpeg.DefaultLocator(),
		Publisher:     bus,
		Logger:        logging.GetLogger("camera").With("doorbell", info.Name),
		Address:       opts.Address,
		ReplayEnabled: opts.CameraReplayEnabled,
		MaxCalls:      opts.CameraMaxCalls,
	})

	bell := doorbell.New(doorbell.Options{
		Name:      info.Name,
		Camera:    streamer,
		Publisher: bus,
		Logger:    logging.GetLogger("doorbell"),
	})

	poller := skybell.NewPoller(info.Name, device, logging.GetLogger("skybell"))
	poller.ActivityInterval = parseInterval(opts.SkybellActivityInterval, skybell.DefaultActivityInterval)
	poller.SettingsInterval = parseInterval(opts.SkybellSettingsInterval, skybell.DefaultSettingsInterval)
	poller.InfoInterval = parseInterval(opts.SkybellInfoInterval, skybell.DefaultInfoInterval)
	poller.OnSettings = bell.UpdateSettings
	poller.OnActivity = bell.HandleActivity

	return &bridge{streamer: streamer, doorbell: bell, poller: poller}
}

func parseInterval(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(value string) map[string]bool {
	out := make(map[string]bool)
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out[part] = true
		}
	}
	return out
}
