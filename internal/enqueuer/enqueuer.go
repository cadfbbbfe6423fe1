// Package enqueuer selects not-yet-migrated users from the legacy store and
// publishes one migration job per user onto the job queue.
package enqueuer

import (
	"context"
	"log/slog"

	"github.com/waterdeep/usersync/internal/conf"
	"github.com/waterdeep/usersync/internal/errors"
	"github.com/waterdeep/usersync/internal/logging"
	"github.com/waterdeep/usersync/internal/queue"
	"github.com/waterdeep/usersync/internal/waterdeep"
	"github.com/waterdeep/usersync/pkg/batch"
)

// Result reports one enqueue run.
type Result struct {
	// Selected is the number of eligible users found in the legacy store.
	Selected int
	// Enqueued is the number of job messages actually published. It can be
	// lower than Selected when publish groups fail partway.
	Enqueued int
}

// Enqueuer publishes migration jobs in bounded batches.
type Enqueuer struct {
	settings *conf.Settings
	store    waterdeep.Interface
	client   queue.Client
	logger   *slog.Logger
}

// New creates an Enqueuer over the given legacy store and queue client.
func New(settings *conf.Settings, store waterdeep.Interface, client queue.Client) *Enqueuer {
	logger := logging.ForService("enqueuer")
	if logger == nil {
		logger = slog.Default().With("service", "enqueuer")
	}
	return &Enqueuer{
		settings: settings,
		store:    store,
		client:   client,
		logger:   logger,
	}
}

// Enqueue selects up to batchSize eligible users, ordered by ID, and publishes
// one job message per user in publish groups of the transport limit. A
// batchSize <= 0 falls back to the configured default cap.
//
// Enqueuing has no side effect on the legacy data: only the processor's
// checkpoint write marks a user migrated, so re-running the enqueuer before
// processing completes re-enqueues the same users, which is safe because
// processing is idempotent.
//
// Group publish failures do not abort the run: remaining groups are still
// attempted and the result carries the count actually published together with
// the joined errors.
func (e *Enqueuer) Enqueue(ctx context.Context, batchSize int) (Result, error) {
	if e.settings.Queue.Topic == "" {
		return Result{}, errors.Newf("no queue was found").
			Component("enqueuer").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if batchSize <= 0 {
		batchSize = e.settings.Enqueue.DefaultBatchSize
	}
	e.logger.Info("selecting users to enqueue", "batch_size", batchSize)

	userIDs, err := e.store.EligibleUserIDs(ctx, batchSize)
	if err != nil {
		return Result{}, err
	}

	result := Result{Selected: len(userIDs)}
	var publishErrs []error

	for _, group := range batch.Chunk(userIDs, e.settings.Queue.PublishBatchLimit) {
		entries := make([]queue.Entry, 0, len(group))
		for _, id := range group {
			entries = append(entries, queue.NewEntry(id))
		}

		published, err := e.client.PublishBatch(ctx, entries)
		result.Enqueued += published
		if err != nil {
			e.logger.Error("publish group failed",
				"group_size", len(entries), "published", published, "error", err)
			publishErrs = append(publishErrs, err)
		}
	}

	e.logger.Info("enqueue run finished",
		"selected", result.Selected, "enqueued", result.Enqueued, "failed_groups", len(publishErrs))
	return result, errors.Join(publishErrs...)
}
