package userstore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waterdeep/usersync/internal/conf"
	"github.com/waterdeep/usersync/internal/errors"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	settings := &conf.Settings{}
	settings.Dest.Type = "sqlite"
	settings.Dest.Path = "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"

	store := &SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testRecord(userID int64) *MigratedUser {
	return &MigratedUser{
		UserID:           userID,
		Email:            "a@x.com",
		Username:         "a",
		DisplayName:      "a",
		SubscriptionTier: "free",
		Roles:            RoleSet{"member"},
		ExternalMappings: MappingSet{{Provider: "google", ExternalUserID: "g-123"}},
	}
}

func TestUpsertInsertsNewRecord(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	affected, err := store.Upsert(ctx, testRecord(1))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, affected, int64(1))

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)
	assert.Equal(t, RoleSet{"member"}, got.Roles)
	assert.Equal(t, MappingSet{{Provider: "google", ExternalUserID: "g-123"}}, got.ExternalMappings)
}

func TestUpsertIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, testRecord(1))
	require.NoError(t, err)
	first, err := store.Get(ctx, 1)
	require.NoError(t, err)

	// Reprocessing the same job must not duplicate or conflict.
	affected, err := store.Upsert(ctx, testRecord(1))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, affected, int64(1))

	second, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.Email, second.Email)
	assert.Equal(t, first.Roles, second.Roles)
	assert.Equal(t, first.ExternalMappings, second.ExternalMappings)

	var count int64
	require.NoError(t, store.DB.Model(&MigratedUser{}).Where("user_id = ?", 1).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpsertOverwritesChangedFields(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, testRecord(1))
	require.NoError(t, err)

	updated := testRecord(1)
	updated.SubscriptionTier = "premium"
	updated.Roles = RoleSet{"member", "admin"}
	_, err = store.Upsert(ctx, updated)
	require.NoError(t, err)

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "premium", got.SubscriptionTier)
	assert.ElementsMatch(t, []string{"member", "admin"}, got.Roles)
}

func TestUpsertEmptySetsRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	record := testRecord(2)
	record.Roles = nil
	record.ExternalMappings = nil
	_, err := store.Upsert(ctx, record)
	require.NoError(t, err)

	got, err := store.Get(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, got.Roles)
	assert.Empty(t, got.ExternalMappings)
}

func TestGetUnknownUser(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.Get(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestRoleSetScanValue(t *testing.T) {
	t.Parallel()

	val, err := RoleSet{"member"}.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `["member"]`, val.(string))

	var roles RoleSet
	require.NoError(t, roles.Scan(`["a","b"]`))
	assert.Equal(t, RoleSet{"a", "b"}, roles)

	var empty RoleSet
	require.NoError(t, empty.Scan(nil))
	assert.Empty(t, empty)
}

func TestMappingSetScanValue(t *testing.T) {
	t.Parallel()

	val, err := MappingSet{{Provider: "google", ExternalUserID: "g-1"}}.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"Provider":"google","ExternalUserId":"g-1"}]`, val.(string))

	var mappings MappingSet
	require.NoError(t, mappings.Scan([]byte(`[{"Provider":"apple","ExternalUserId":"a-2"}]`)))
	assert.Equal(t, MappingSet{{Provider: "apple", ExternalUserID: "a-2"}}, mappings)
}
