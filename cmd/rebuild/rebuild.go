// Package rebuild implements the artifact regeneration command.
package rebuild

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/skymonitor/meteor-go/internal/app"
	"github.com/skymonitor/meteor-go/internal/conf"
	"github.com/skymonitor/meteor-go/internal/pipeline"
)

// Command creates the rebuild command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		date          string
		compositeOnly bool
		concatOnly    bool
	)

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Regenerate a night's aggregate outputs",
		Long: "Rebuilds the composite image and concatenated video from the " +
			"current exclusion state. Use --composite or --concat to rebuild " +
			"just one artifact; the other is left untouched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if compositeOnly && concatOnly {
				return fmt.Errorf("--composite and --concat are mutually exclusive; omit both to rebuild everything")
			}
			if date == "" {
				date = pipeline.ResolveNight(time.Now())
			}

			a, err := app.New(settings)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck // process exiting

			ctx := cmd.Context()
			switch {
			case compositeOnly:
				path, err := a.Pipeline.RebuildComposite(ctx, date)
				if err != nil {
					return err
				}
				fmt.Printf("Night %s: composite rebuilt (%s)\n", date, orNone(path))
			case concatOnly:
				path, err := a.Pipeline.RebuildConcat(ctx, date)
				if err != nil {
					return err
				}
				fmt.Printf("Night %s: video rebuilt (%s)\n", date, orNone(path))
			default:
				night, err := a.Pipeline.RebuildOutputs(ctx, date)
				if err != nil {
					return err
				}
				fmt.Printf("Night %s: %d detection(s), composite %s, video %s\n",
					date, night.DetectionCount, orNone(night.CompositeImage), orNone(night.ConcatVideo))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Night to rebuild (YYYYMMDD, default: current night)")
	cmd.Flags().BoolVar(&compositeOnly, "composite", false, "Rebuild only the composite image")
	cmd.Flags().BoolVar(&concatOnly, "concat", false, "Rebuild only the concatenated video")

	return cmd
}

func orNone(path string) string {
	if path == "" {
		return "none"
	}
	return path
}
