// Package redetect implements re-running detection over a stored night.
package redetect

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skymonitor/meteor-go/internal/app"
	"github.com/skymonitor/meteor-go/internal/conf"
	"github.com/skymonitor/meteor-go/internal/pipeline"
	"github.com/skymonitor/meteor-go/internal/tasks"
)

// Command creates the redetect command.
func Command(settings *conf.Settings) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "redetect",
		Short: "Re-run detection over a night's retained clips",
		Long: "Runs the detector again over every locally retained clip of a " +
			"night, replacing its detections wholesale, then rebuilds the " +
			"night's outputs. Useful after tuning detection parameters. " +
			"Interrupting stops at the next clip boundary.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				date = pipeline.ResolveNight(time.Now())
			}

			a, err := app.New(settings)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck // process exiting

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			task, err := a.Tasks.Start(tasks.KindRedetect, date, func(taskCtx context.Context, task *tasks.Task) error {
				return a.Pipeline.Redetect(taskCtx, date, func(done, total int) {
					task.Advance()
					fmt.Printf("\rRedetecting %s: %d/%d", date, done, total)
				})
			})
			if err != nil {
				return err
			}

			// Poll the task, forwarding an interrupt as a cancellation.
			cancelled := false
			for {
				switch task.Status() {
				case tasks.StatusDone:
					fmt.Printf("\nNight %s: redetect complete\n", date)
					return nil
				case tasks.StatusFailed:
					fmt.Println()
					return task.Err()
				case tasks.StatusCancelled:
					fmt.Printf("\nNight %s: redetect cancelled after %d clip(s)\n", date, task.Progress())
					return nil
				}
				if !cancelled && ctx.Err() != nil {
					cancelled = true
					if err := a.Tasks.Cancel(task.ID); err != nil {
						return err
					}
				}
				time.Sleep(200 * time.Millisecond)
			}
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Night to redetect (YYYYMMDD, default: current night)")

	return cmd
}
