// Package serve implements the long-running scheduler command.
package serve

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/skymonitor/meteor-go/internal/app"
	"github.com/skymonitor/meteor-go/internal/conf"
	"github.com/skymonitor/meteor-go/internal/errors"
	"github.com/skymonitor/meteor-go/internal/scheduler"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler until interrupted",
		Long: "Watches the observation window and runs the pipeline at the " +
			"configured interval while the window is open. Stops cleanly on " +
			"SIGINT or SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(settings)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck // process exiting

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sched := scheduler.New(settings, a.Store, a.Pipeline)
			if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
