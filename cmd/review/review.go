// Package review implements the result curation commands.
package review

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/skymonitor/meteor-go/internal/app"
	"github.com/skymonitor/meteor-go/internal/conf"
)

// Command creates the review command group.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Curate detection results",
		Long: "Lists nights and detections, excludes false positives from a " +
			"night's outputs, hides nights and removes artifacts. Exclusions " +
			"update the detection count at once; run rebuild to regenerate " +
			"the image and video artifacts.",
	}

	cmd.AddCommand(
		nightsCommand(settings),
		showCommand(settings),
		excludeClipCommand(settings),
		excludeDetectionCommand(settings),
		excludeNightCommand(settings),
		hideCommand(settings),
		deleteVideoCommand(settings),
	)
	return cmd
}

func withApp(settings *conf.Settings, fn func(*app.App) error) error {
	a, err := app.New(settings)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck // process exiting
	return fn(a)
}

func nightsCommand(settings *conf.Settings) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "nights",
		Short: "List recorded nights",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(settings, func(a *app.App) error {
				nights, err := a.Review.ListNights(all)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "DATE\tDETECTIONS\tVIDEO\tHIDDEN")
				for _, n := range nights {
					video := "-"
					if n.ConcatVideo != "" {
						video = "yes"
					}
					fmt.Fprintf(w, "%s\t%d\t%s\t%v\n", n.DateStr, n.DetectionCount, video, n.Hidden)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include hidden nights")
	return cmd
}

func showCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "show <date>",
		Short: "Show a night's detected clips",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(settings, func(a *app.App) error {
				detail, err := a.Review.GetNight(args[0])
				if err != nil {
					return err
				}
				fmt.Printf("Night %s: %d detection(s)\n", detail.Night.DateStr, detail.Night.DetectionCount)
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "CLIP\tTIME\tLINES\tEXCLUDED")
				for _, c := range detail.Clips {
					fmt.Fprintf(w, "%d\t%02d:%02d\t%d\t%v\n",
						c.Clip.ID, c.Clip.Hour, c.Clip.Minute, c.Clip.LineCount, c.Clip.Excluded)
				}
				return w.Flush()
			})
		},
	}
}

func excludeClipCommand(settings *conf.Settings) *cobra.Command {
	var include bool
	cmd := &cobra.Command{
		Use:   "exclude-clip <clip-id>",
		Short: "Exclude a clip from its night's outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var clipID uint
			if _, err := fmt.Sscanf(args[0], "%d", &clipID); err != nil {
				return fmt.Errorf("invalid clip id %q", args[0])
			}
			return withApp(settings, func(a *app.App) error {
				return a.Review.SetClipExcluded(clipID, !include)
			})
		},
	}
	cmd.Flags().BoolVar(&include, "undo", false, "Include the clip again")
	return cmd
}

func excludeDetectionCommand(settings *conf.Settings) *cobra.Command {
	var include bool
	cmd := &cobra.Command{
		Use:   "exclude-detection <detection-id>",
		Short: "Exclude a single detected line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var detectionID uint
			if _, err := fmt.Sscanf(args[0], "%d", &detectionID); err != nil {
				return fmt.Errorf("invalid detection id %q", args[0])
			}
			return withApp(settings, func(a *app.App) error {
				return a.Review.SetDetectionExcluded(detectionID, !include)
			})
		},
	}
	cmd.Flags().BoolVar(&include, "undo", false, "Include the detection again")
	return cmd
}

func excludeNightCommand(settings *conf.Settings) *cobra.Command {
	var include bool
	cmd := &cobra.Command{
		Use:   "exclude-night <date>",
		Short: "Exclude every detection of a night",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(settings, func(a *app.App) error {
				return a.Review.SetNightDetectionsExcluded(args[0], !include)
			})
		},
	}
	cmd.Flags().BoolVar(&include, "undo", false, "Include the night's detections again")
	return cmd
}

func hideCommand(settings *conf.Settings) *cobra.Command {
	var unhide bool
	cmd := &cobra.Command{
		Use:   "hide <date>",
		Short: "Hide a night from the default listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(settings, func(a *app.App) error {
				return a.Review.SetNightHidden(args[0], !unhide)
			})
		},
	}
	cmd.Flags().BoolVar(&unhide, "undo", false, "Show the night again")
	return cmd
}

func deleteVideoCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-video <date>",
		Short: "Delete a night's concatenated video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(settings, func(a *app.App) error {
				return a.Review.DeleteConcatVideo(args[0])
			})
		},
	}
}
