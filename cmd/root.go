// Package cmd assembles the meteor CLI command tree.
package cmd

import (
	"github.com/spf13/cobra"

	configcmd "github.com/skymonitor/meteor-go/cmd/config"
	"github.com/skymonitor/meteor-go/cmd/rebuild"
	"github.com/skymonitor/meteor-go/cmd/redetect"
	reviewcmd "github.com/skymonitor/meteor-go/cmd/review"
	"github.com/skymonitor/meteor-go/cmd/run"
	"github.com/skymonitor/meteor-go/cmd/serve"
	"github.com/skymonitor/meteor-go/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "meteor",
		Short: "Meteor detection for ATOM Cam night sky recordings",
		Long: "Downloads one-minute night clips from the camera, detects meteor " +
			"streaks by frame differencing and line detection, and aggregates " +
			"each night's composite image and highlight video.",
	}

	rootCmd.PersistentFlags().BoolVarP(&settings.System.Debug, "debug", "d", settings.System.Debug, "Enable debug output")

	rootCmd.AddCommand(
		run.Command(settings),
		serve.Command(settings),
		rebuild.Command(settings),
		redetect.Command(settings),
		reviewcmd.Command(settings),
		configcmd.Command(settings),
	)

	return rootCmd
}
