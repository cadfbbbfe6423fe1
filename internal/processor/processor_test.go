package processor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waterdeep/usersync/internal/conf"
	"github.com/waterdeep/usersync/internal/errors"
	"github.com/waterdeep/usersync/internal/userstore"
	"github.com/waterdeep/usersync/internal/waterdeep"
)

func newTestStores(t *testing.T) (*waterdeep.SQLiteStore, *userstore.SQLiteStore) {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")

	settings := &conf.Settings{}
	settings.Source.Type = "sqlite"
	settings.Source.Path = "file:src_" + name + "?mode=memory&cache=shared"
	settings.Dest.Type = "sqlite"
	settings.Dest.Path = "file:dst_" + name + "?mode=memory&cache=shared"

	source := &waterdeep.SQLiteStore{Settings: settings}
	require.NoError(t, source.Open())
	t.Cleanup(func() { _ = source.Close() })

	dest := &userstore.SQLiteStore{Settings: settings}
	require.NoError(t, dest.Open())
	t.Cleanup(func() { _ = dest.Close() })

	return source, dest
}

// seedMigratableUser creates a fully consistent legacy user.
func seedMigratableUser(t *testing.T, source *waterdeep.SQLiteStore, id int64, nickname string) {
	t.Helper()
	require.NoError(t, source.DB.Create(&waterdeep.User{ID: id, Status: waterdeep.StatusActive}).Error)
	require.NoError(t, source.DB.Create(&waterdeep.UserProfile{
		ID: id, UserID: id, Email: "a@x.com", Username: "a", Nickname: nickname,
	}).Error)
	require.NoError(t, source.DB.Create(&waterdeep.UserSubscription{
		ID: id, UserID: id, SubscriptionTier: "free",
	}).Error)
	require.NoError(t, source.DB.FirstOrCreate(&waterdeep.Role{ID: 1, Name: "member"}).Error)
	require.NoError(t, source.DB.Create(&waterdeep.UserRole{ID: id, UserID: id, RoleID: 1}).Error)
}

func lastFullSync(t *testing.T, source *waterdeep.SQLiteStore, id int64) *time.Time {
	t.Helper()
	var user waterdeep.User
	require.NoError(t, source.DB.First(&user, id).Error)
	return user.LastFullSync
}

func TestProcessBatchMigratesUser(t *testing.T) {
	t.Parallel()

	source, dest := newTestStores(t)
	seedMigratableUser(t, source, 1, "")
	proc := New(source, dest)
	ctx := context.Background()

	results := proc.ProcessBatch(ctx, []string{"1"})
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeSuccess, results[0].Outcome)
	assert.Equal(t, int64(1), results[0].UserID)
	assert.True(t, results[0].ShouldAck())

	record, err := dest.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", record.Email)
	assert.Equal(t, "a", record.Username)
	assert.Empty(t, record.Nickname)
	// Display name falls back to the username when nickname is unset.
	assert.Equal(t, "a", record.DisplayName)
	assert.Equal(t, "free", record.SubscriptionTier)
	assert.Equal(t, userstore.RoleSet{"member"}, record.Roles)
	assert.Empty(t, record.ExternalMappings)

	require.NotNil(t, lastFullSync(t, source, 1))
}

func TestProcessBatchDisplayNamePrefersNickname(t *testing.T) {
	t.Parallel()

	source, dest := newTestStores(t)
	seedMigratableUser(t, source, 1, "ace")
	proc := New(source, dest)

	results := proc.ProcessBatch(context.Background(), []string{"1"})
	require.Equal(t, OutcomeSuccess, results[0].Outcome)

	record, err := dest.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "ace", record.DisplayName)
}

func TestProcessBatchIdempotentUnderRedelivery(t *testing.T) {
	t.Parallel()

	source, dest := newTestStores(t)
	seedMigratableUser(t, source, 1, "")
	proc := New(source, dest)
	ctx := context.Background()

	first := proc.ProcessBatch(ctx, []string{"1"})
	require.Equal(t, OutcomeSuccess, first[0].Outcome)
	firstSync := lastFullSync(t, source, 1)
	require.NotNil(t, firstSync)
	firstRecord, err := dest.Get(ctx, 1)
	require.NoError(t, err)

	// Simulated redelivery of the same job.
	second := proc.ProcessBatch(ctx, []string{"1"})
	require.Equal(t, OutcomeSuccess, second[0].Outcome)

	secondRecord, err := dest.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, firstRecord.Email, secondRecord.Email)
	assert.Equal(t, firstRecord.Roles, secondRecord.Roles)

	var count int64
	require.NoError(t, dest.DB.Model(&userstore.MigratedUser{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	secondSync := lastFullSync(t, source, 1)
	require.NotNil(t, secondSync)
	assert.False(t, secondSync.Before(*firstSync), "checkpoint must be monotonically non-decreasing")
}

func TestProcessBatchMalformedPayload(t *testing.T) {
	t.Parallel()

	source, dest := newTestStores(t)
	proc := New(source, dest)

	results := proc.ProcessBatch(context.Background(), []string{"not-a-number"})
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeFatal, results[0].Outcome)
	assert.True(t, errors.IsCategory(results[0].Err, errors.CategoryJobPayload))
	// Redelivering a malformed payload cannot help.
	assert.True(t, results[0].ShouldAck())
}

func TestProcessBatchMissingTierIsFatalForThatUser(t *testing.T) {
	t.Parallel()

	source, dest := newTestStores(t)
	// User with profile but no subscription row.
	require.NoError(t, source.DB.Create(&waterdeep.User{ID: 1, Status: waterdeep.StatusActive}).Error)
	require.NoError(t, source.DB.Create(&waterdeep.UserProfile{ID: 1, UserID: 1, Email: "a@x.com", Username: "a"}).Error)
	proc := New(source, dest)
	ctx := context.Background()

	results := proc.ProcessBatch(ctx, []string{"1"})
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeFatal, results[0].Outcome)
	assert.True(t, errors.IsDataIntegrity(results[0].Err))

	// Nothing written, nothing checkpointed.
	_, err := dest.Get(ctx, 1)
	assert.Error(t, err)
	assert.Nil(t, lastFullSync(t, source, 1))
}

func TestProcessBatchPartialFailureIsolation(t *testing.T) {
	t.Parallel()

	source, dest := newTestStores(t)
	seedMigratableUser(t, source, 1, "")
	// User 2 has no profile: fatal. User 3 is fine.
	require.NoError(t, source.DB.Create(&waterdeep.User{ID: 2, Status: waterdeep.StatusActive}).Error)
	seedMigratableUser(t, source, 3, "")
	proc := New(source, dest)
	ctx := context.Background()

	results := proc.ProcessBatch(ctx, []string{"1", "2", "3"})
	require.Len(t, results, 3)

	// Job 2 failing does not stop job 3 from being attempted.
	assert.Equal(t, OutcomeSuccess, results[0].Outcome)
	assert.Equal(t, OutcomeFatal, results[1].Outcome)
	assert.Equal(t, OutcomeSuccess, results[2].Outcome)

	require.NotNil(t, lastFullSync(t, source, 1))
	assert.Nil(t, lastFullSync(t, source, 2))
	require.NotNil(t, lastFullSync(t, source, 3))
}

// noOpDest wraps a destination store and reports zero rows affected.
type noOpDest struct {
	userstore.Interface
}

func (d *noOpDest) Upsert(context.Context, *userstore.MigratedUser) (int64, error) {
	return 0, nil
}

func TestProcessBatchNoOpWriteWithholdsCheckpoint(t *testing.T) {
	t.Parallel()

	source, dest := newTestStores(t)
	seedMigratableUser(t, source, 1, "")
	seedMigratableUser(t, source, 2, "")
	proc := New(source, &noOpDest{Interface: dest})

	results := proc.ProcessBatch(context.Background(), []string{"1", "2"})
	require.Len(t, results, 2)
	assert.Equal(t, OutcomeNoOp, results[0].Outcome)
	// A no-op is not fatal for the batch: the next user still proceeds.
	assert.Equal(t, OutcomeNoOp, results[1].Outcome)
	assert.True(t, results[0].ShouldAck())

	assert.Nil(t, lastFullSync(t, source, 1))
	assert.Nil(t, lastFullSync(t, source, 2))
}

// failingDest wraps a destination store and fails every upsert.
type failingDest struct {
	userstore.Interface
}

func (d *failingDest) Upsert(context.Context, *userstore.MigratedUser) (int64, error) {
	return 0, errors.Newf("connection refused").
		Category(errors.CategoryDatabase).
		Build()
}

func TestProcessBatchTransientFailureLeftForRedelivery(t *testing.T) {
	t.Parallel()

	source, dest := newTestStores(t)
	seedMigratableUser(t, source, 1, "")
	proc := New(source, &failingDest{Interface: dest})

	results := proc.ProcessBatch(context.Background(), []string{"1"})
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeTransient, results[0].Outcome)
	assert.False(t, results[0].ShouldAck())
	assert.Nil(t, lastFullSync(t, source, 1))
}

func TestProcessBatchFixedClockCheckpoint(t *testing.T) {
	t.Parallel()

	source, dest := newTestStores(t)
	seedMigratableUser(t, source, 1, "")
	proc := New(source, dest)
	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	proc.now = func() time.Time { return fixed }

	results := proc.ProcessBatch(context.Background(), []string{"1"})
	require.Equal(t, OutcomeSuccess, results[0].Outcome)

	sync := lastFullSync(t, source, 1)
	require.NotNil(t, sync)
	assert.True(t, sync.Equal(fixed))
}
