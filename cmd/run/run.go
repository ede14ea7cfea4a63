// Package run implements the one-shot pipeline run command.
package run

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/skymonitor/meteor-go/internal/app"
	"github.com/skymonitor/meteor-go/internal/conf"
	"github.com/skymonitor/meteor-go/internal/pipeline"
	"github.com/skymonitor/meteor-go/internal/scheduler"
)

// Command creates the run command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		date   string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process one night now",
		Long: "Downloads and detects the given night's clips and rebuilds its " +
			"aggregate outputs. Defaults to the current night: before noon that " +
			"is yesterday's date. Safe to re-run; already processed clips are " +
			"skipped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				date = pipeline.ResolveNight(time.Now())
			}

			a, err := app.New(settings)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck // process exiting

			if !dryRun {
				lock, err := scheduler.AcquireLock(conf.ExpandPath(settings.Paths.LockPath))
				if err != nil {
					if scheduler.IsLockHeld(err) {
						return fmt.Errorf("another run is in progress, try again later")
					}
					return err
				}
				defer lock.Release() //nolint:errcheck // process exiting
			}

			result, err := a.Pipeline.Run(cmd.Context(), date, dryRun)
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Printf("Night %s: %d clip(s) available\n", date, result.ClipsListed)
				return nil
			}
			fmt.Printf("Night %s: %d processed, %d detected, %d error(s), %d detection(s) in %s\n",
				date, result.ClipsProcessed, result.ClipsDetected, result.ClipErrors,
				result.DetectionCount, result.Duration.Round(time.Second))
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Night to process (YYYYMMDD, default: current night)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List available clips without downloading or detecting")

	return cmd
}
