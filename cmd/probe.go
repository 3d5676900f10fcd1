package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/bellbridge/internal/ffmpeg"
	"github.com/smazurov/bellbridge/internal/logging"
)

// CreateProbeCmd creates the probe command.
func CreateProbeCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Find a working ffmpeg executable",
		Long: `Tries each transcoder candidate with -version in order and prints the first one that works. ` +
			`The bridge runs the same probe before its first stream.`,
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			logger := logging.GetLogger("ffmpeg")

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			locator := ffmpeg.NewLocator(ffmpeg.DefaultCandidates, ffmpeg.ExecRunner, logger)
			candidate, err := locator.Locate(ctx)
			if err != nil {
				logger.Error("Transcoder probe failed", "error", err)
				os.Exit(1)
			}
			fmt.Println(candidate.String())
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Time allowed for all probes")

	return cmd
}
