package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/bellbridge/internal/config"
	"github.com/smazurov/bellbridge/internal/logging"
	"github.com/smazurov/bellbridge/internal/skybell"
)

type snapshotOptions struct {
	Config   string
	Username string `toml:"skybell.username" env:"SKYBELL_USERNAME"`
	Password string `toml:"skybell.password" env:"SKYBELL_PASSWORD"`
	Device   string
	Output   string
	Timeout  time.Duration
}

// CreateSnapshotCmd creates the snapshot command.
func CreateSnapshotCmd() *cobra.Command {
	opts := &snapshotOptions{}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save a doorbell's latest image",
		Long: `Logs in to the SkyBell cloud, downloads the latest avatar image of a doorbell and writes it to a file. ` +
			`Credentials come from the config file or the BELLBRIDGE_SKYBELL_* environment variables.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			logger := logging.GetLogger("skybell")

			if err := config.LoadConfig(opts, cmd); err != nil {
				logger.Warn("Failed to load config", "error", err)
			}
			if opts.Username == "" || opts.Password == "" {
				logger.Error("SkyBell credentials are not configured")
				os.Exit(1)
			}

			ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
			defer cancel()

			path, err := saveSnapshot(ctx, opts, logger)
			if err != nil {
				logger.Error("Snapshot failed", "error", err)
				os.Exit(1)
			}
			fmt.Println(path)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "config.toml", "Path to configuration file")
	cmd.Flags().StringVar(&opts.Username, "username", "", "SkyBell account username")
	cmd.Flags().StringVar(&opts.Password, "password", "", "SkyBell account password")
	cmd.Flags().StringVarP(&opts.Device, "device", "d", "", "Doorbell name or id (default: first doorbell)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Output file (default: snapshot.<format>)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "Time allowed for the download")

	return cmd
}

func saveSnapshot(ctx context.Context, opts *snapshotOptions, logger logging.Logger) (string, error) {
	client := skybell.NewClient(
		skybell.Credentials{Username: opts.Username, Password: opts.Password},
		skybell.WithLogger(logger),
	)

	devices, err := client.Devices(ctx)
	if err != nil {
		return "", fmt.Errorf("list devices: %w", err)
	}
	info, ok := pickDevice(devices, opts.Device)
	if !ok {
		return "", fmt.Errorf("doorbell %q not found among %d devices", opts.Device, len(devices))
	}

	image, format, err := skybell.NewDevice(client, info).Avatar(ctx)
	if err != nil {
		return "", err
	}

	path := opts.Output
	if path == "" {
		path = "snapshot." + format
	}
	if err := os.WriteFile(path, image, 0o644); err != nil {
		return "", err
	}
	logger.Info("Snapshot saved", "device", info.Name, "bytes", len(image), "path", path)
	return path, nil
}

// pickDevice matches by name or id; an empty selector picks the first device.
func pickDevice(devices []skybell.DeviceInfo, selector string) (skybell.DeviceInfo, bool) {
	for _, d := range devices {
		if selector == "" || d.Name == selector || d.ID == selector {
			return d, true
		}
	}
	return skybell.DeviceInfo{}, false
}
