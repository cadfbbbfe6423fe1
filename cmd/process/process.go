// Package process implements the job processor command.
package process

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/waterdeep/usersync/internal/conf"
	"github.com/waterdeep/usersync/internal/logging"
	"github.com/waterdeep/usersync/internal/processor"
	"github.com/waterdeep/usersync/internal/queue"
	"github.com/waterdeep/usersync/internal/userstore"
	"github.com/waterdeep/usersync/internal/waterdeep"
)

// Command creates the process command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		batchSize     int
		flushInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Consume migration jobs from the queue and migrate users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcessor(cmd.Context(), settings, batchSize, flushInterval)
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 10, "number of messages to buffer before processing")
	cmd.Flags().DurationVar(&flushInterval, "flush-interval", 5*time.Second,
		"maximum time a buffered message waits before processing")
	return cmd
}

func runProcessor(ctx context.Context, settings *conf.Settings, batchSize int, flushInterval time.Duration) error {
	source := waterdeep.New(settings)
	if err := source.Open(); err != nil {
		return err
	}
	defer func() {
		if err := source.Close(); err != nil {
			logging.Error("failed to close legacy store", "error", err)
		}
	}()

	dest := userstore.New(settings)
	if err := dest.Open(); err != nil {
		return err
	}
	defer func() {
		if err := dest.Close(); err != nil {
			logging.Error("failed to close migration store", "error", err)
		}
	}()

	client := queue.NewClient(settings)
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return err
	}
	defer client.Disconnect()

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info("processor started", "topic", settings.Queue.Topic, "batch_size", batchSize)
	consumer := processor.NewConsumer(client, processor.New(source, dest), batchSize, flushInterval)
	if err := consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info("processor stopped")
	return nil
}
