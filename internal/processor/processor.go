// Package processor consumes migration jobs: it fans out the legacy reads for
// one user, writes the denormalized record to the destination store, and
// advances the migration checkpoint on confirmed write success.
package processor

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/waterdeep/usersync/internal/errors"
	"github.com/waterdeep/usersync/internal/logging"
	"github.com/waterdeep/usersync/internal/userstore"
	"github.com/waterdeep/usersync/internal/waterdeep"
)

// Outcome classifies the terminal state of one processed job.
type Outcome string

const (
	// OutcomeSuccess: record upserted and checkpoint advanced.
	OutcomeSuccess Outcome = "success"
	// OutcomeNoOp: the destination write affected zero rows; the user is not
	// migrated and the checkpoint was withheld.
	OutcomeNoOp Outcome = "no-op"
	// OutcomeFatal: the job can never succeed (malformed payload or
	// data-integrity failure); redelivery would not help.
	OutcomeFatal Outcome = "fatal"
	// OutcomeTransient: infrastructure failure; the job should be redelivered.
	OutcomeTransient Outcome = "transient"
)

// Result is the explicit per-job outcome. One job's failure never decides the
// delivery accounting of its siblings.
type Result struct {
	Body    string
	UserID  int64 // zero when the payload did not parse
	Outcome Outcome
	Err     error
}

// ShouldAck reports whether the delivered message should be acknowledged.
// Success and no-op are done; fatal jobs are acknowledged too since
// redelivering them would only fail again. Only transient failures are left
// unacknowledged for the transport to redeliver.
func (r Result) ShouldAck() bool {
	return r.Outcome != OutcomeTransient
}

// Processor migrates one user per job.
type Processor struct {
	source waterdeep.Interface
	dest   userstore.Interface
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Processor over the given stores.
func New(source waterdeep.Interface, dest userstore.Interface) *Processor {
	logger := logging.ForService("processor")
	if logger == nil {
		logger = slog.Default().With("service", "processor")
	}
	return &Processor{
		source: source,
		dest:   dest,
		logger: logger,
		now:    time.Now,
	}
}

// ProcessBatch processes the delivered job bodies sequentially, in delivery
// order, and returns one Result per job in the same order. Jobs are not run
// concurrently so one invocation holds one set of database connections.
func (p *Processor) ProcessBatch(ctx context.Context, bodies []string) []Result {
	results := make([]Result, 0, len(bodies))
	for _, body := range bodies {
		result := p.processOne(ctx, body)
		switch result.Outcome {
		case OutcomeSuccess:
			p.logger.Info("user migrated", "user_id", result.UserID)
		case OutcomeNoOp:
			p.logger.Warn("user did not migrate, destination write was a no-op", "user_id", result.UserID)
		case OutcomeFatal:
			p.logger.Error("job failed permanently", "body", result.Body, "error", result.Err)
		case OutcomeTransient:
			p.logger.Warn("job failed, leaving for redelivery", "body", result.Body, "error", result.Err)
		}
		results = append(results, result)
	}
	return results
}

// processOne runs the full migration for a single job.
func (p *Processor) processOne(ctx context.Context, body string) Result {
	userID, err := strconv.ParseInt(body, 10, 64)
	if err != nil {
		return Result{
			Body:    body,
			Outcome: OutcomeFatal,
			Err: errors.New(err).
				Component("processor").
				Category(errors.CategoryJobPayload).
				Context("body", body).
				Build(),
		}
	}

	record, err := p.gather(ctx, userID)
	if err != nil {
		return Result{Body: body, UserID: userID, Outcome: classify(err), Err: err}
	}

	rowsAffected, err := p.dest.Upsert(ctx, record)
	if err != nil {
		return Result{Body: body, UserID: userID, Outcome: classify(err), Err: err}
	}
	if rowsAffected == 0 {
		// Not migrated: report, withhold the checkpoint, continue the batch.
		return Result{Body: body, UserID: userID, Outcome: OutcomeNoOp}
	}

	// Commit point. Once this write lands the user is permanently excluded
	// from enqueuer selection. Setting "now" again on redelivery is harmless.
	if err := p.source.MarkSynced(ctx, userID, p.now()); err != nil {
		return Result{Body: body, UserID: userID, Outcome: classify(err), Err: err}
	}

	return Result{Body: body, UserID: userID, Outcome: OutcomeSuccess}
}

// gather issues the four legacy reads concurrently and assembles the
// denormalized destination record once all four have completed.
func (p *Processor) gather(ctx context.Context, userID int64) (*userstore.MigratedUser, error) {
	var (
		wg       sync.WaitGroup
		profile  waterdeep.Profile
		mappings []waterdeep.ExternalMapping
		tier     string
		roles    []string

		profileErr, mappingsErr, tierErr, rolesErr error
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		profile, profileErr = p.source.UserProfile(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		mappings, mappingsErr = p.source.ExternalMappings(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		tier, tierErr = p.source.SubscriptionTier(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		roles, rolesErr = p.source.UserRoles(ctx, userID)
	}()
	wg.Wait()

	if err := errors.Join(profileErr, mappingsErr, tierErr, rolesErr); err != nil {
		return nil, err
	}

	displayName := profile.Nickname
	if displayName == "" {
		displayName = profile.Username
	}

	return &userstore.MigratedUser{
		UserID:           userID,
		Email:            profile.Email,
		Username:         profile.Username,
		Nickname:         profile.Nickname,
		DisplayName:      displayName,
		SubscriptionTier: tier,
		Roles:            userstore.RoleSet(roles),
		ExternalMappings: userstore.MappingSet(mappings),
	}, nil
}

// classify maps an error to the outcome deciding its delivery accounting.
// Data-integrity failures are per-user fatal; everything else is assumed
// recoverable by redelivery.
func classify(err error) Outcome {
	if errors.IsDataIntegrity(err) || errors.IsCategory(err, errors.CategoryJobPayload) {
		return OutcomeFatal
	}
	return OutcomeTransient
}
