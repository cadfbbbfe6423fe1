package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/waterdeep/usersync/cmd/config"
	"github.com/waterdeep/usersync/cmd/enqueue"
	"github.com/waterdeep/usersync/cmd/process"
	"github.com/waterdeep/usersync/cmd/serve"
	"github.com/waterdeep/usersync/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "usersync",
		Short: "Waterdeep to User Service migration pipeline",
		Long:  "Moves user identity, role, subscription and external-auth data from the legacy Waterdeep store to the User Service store through a queue-mediated pipeline.",
	}

	// Set up the global flags for the root command.
	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		serve.Command(settings),
		enqueue.Command(settings),
		process.Command(settings),
		config.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags configures the global flags for the root command.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVar(&settings.Debug, "debug", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Queue.Topic, "topic", viper.GetString("queue.topic"), "Job queue topic")
	rootCmd.PersistentFlags().StringVar(&settings.Queue.Broker, "broker", viper.GetString("queue.broker"), "MQTT broker URL")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
	}
}
