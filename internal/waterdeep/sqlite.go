package waterdeep

import (
	"context"
	"fmt"

	"github.com/waterdeep/usersync/internal/conf"
	"github.com/waterdeep/usersync/internal/errors"
	"github.com/waterdeep/usersync/internal/logging"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteStore implements the legacy store against a local SQLite file. Used
// for development and tests; the schema is created on open.
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open sets up the SQLite database connection and creates the legacy schema.
func (store *SQLiteStore) Open() error {
	src := store.Settings.Source

	db, err := gorm.Open(sqlite.Open(src.Path), &gorm.Config{Logger: createGormLogger(src.Debug)})
	if err != nil {
		return errors.New(fmt.Errorf("failed to open legacy SQLite database: %w", err)).
			Component("waterdeep").
			Category(errors.CategoryDatabase).
			Context("path", src.Path).
			Build()
	}

	if err := db.AutoMigrate(
		&User{}, &UserProfile{},
		&ExternalAuthProvider{}, &ExternalUserMap{},
		&Role{}, &UserRole{},
		&UserSubscription{},
	); err != nil {
		return errors.New(fmt.Errorf("failed to migrate legacy SQLite schema: %w", err)).
			Component("waterdeep").
			Category(errors.CategoryDatabase).
			Build()
	}

	store.DB = db
	store.logger = logging.ForService("waterdeep")
	return nil
}

// Close releases the SQLite connection.
func (store *SQLiteStore) Close() error {
	return closeDB(store.DB)
}

// SubscriptionTier reads the tier with a plain query; SQLite has no legacy
// stored procedures.
func (store *SQLiteStore) SubscriptionTier(ctx context.Context, userID int64) (string, error) {
	return store.subscriptionTierQuery(ctx, userID)
}

// UserRoles reads the role names with a plain query.
func (store *SQLiteStore) UserRoles(ctx context.Context, userID int64) ([]string, error) {
	return store.userRolesQuery(ctx, userID)
}
