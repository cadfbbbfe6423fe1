// Package enqueue implements the one-shot migration enqueue command.
package enqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/waterdeep/usersync/internal/conf"
	"github.com/waterdeep/usersync/internal/enqueuer"
	"github.com/waterdeep/usersync/internal/logging"
	"github.com/waterdeep/usersync/internal/queue"
	"github.com/waterdeep/usersync/internal/waterdeep"
)

// Command creates the enqueue command.
func Command(settings *conf.Settings) *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Publish migration jobs for eligible users onto the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnqueue(cmd.Context(), settings, batchSize)
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", settings.Enqueue.DefaultBatchSize,
		"maximum number of users to enqueue in this run")
	return cmd
}

func runEnqueue(ctx context.Context, settings *conf.Settings, batchSize int) error {
	store := waterdeep.New(settings)
	if err := store.Open(); err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error("failed to close legacy store", "error", err)
		}
	}()

	client := queue.NewClient(settings)
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return err
	}
	defer client.Disconnect()

	result, err := enqueuer.New(settings, store, client).Enqueue(ctx, batchSize)
	if result.Enqueued > 0 || err == nil {
		fmt.Printf("%d UserID(s) added to the queue\n", result.Enqueued)
	}
	return err
}
