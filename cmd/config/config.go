// Package config implements the config file write-back command.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/waterdeep/usersync/internal/conf"
)

// Command creates the config command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		output string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write the resolved configuration to a YAML file",
		Long:  "Writes the currently resolved settings (defaults, config file and environment overrides applied) to a YAML file, giving a starting point to edit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeConfig(settings, output, force)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "config.yaml", "path of the config file to write")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func writeConfig(settings *conf.Settings, output string, force bool) error {
	if !force {
		if _, err := os.Stat(output); err == nil {
			return fmt.Errorf("config file %s already exists, use --force to overwrite", output)
		}
	}
	if err := conf.SaveYAMLConfig(output, settings); err != nil {
		return err
	}
	fmt.Printf("configuration written to %s\n", output)
	return nil
}
