// Package config implements the default configuration generator command.
package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skymonitor/meteor-go/internal/conf"
)

// Command creates the config command.
func Command(_ *conf.Settings) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := conf.GenerateYAML(output); err != nil {
				return err
			}
			fmt.Printf("Wrote default configuration to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "config.yaml", "Destination path")
	return cmd
}
