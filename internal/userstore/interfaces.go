// interfaces.go: this code defines the interface for the destination store
package userstore

import (
	"context"

	"github.com/waterdeep/usersync/internal/conf"
	"github.com/waterdeep/usersync/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Interface abstracts the User Service destination store.
type Interface interface {
	Open() error
	Close() error
	// Upsert inserts or overwrites the record sharing the same UserID and
	// returns the number of rows affected. Zero means the write was a no-op
	// and the caller must not treat the user as migrated.
	Upsert(ctx context.Context, record *MigratedUser) (int64, error)
	// Get returns the migrated record for one user.
	Get(ctx context.Context, userID int64) (MigratedUser, error)
}

// DataStore implements the shared GORM-backed operations.
type DataStore struct {
	DB *gorm.DB
}

// New creates a destination store instance based on the configured engine.
func New(settings *conf.Settings) Interface {
	switch settings.Dest.Type {
	case "sqlite":
		return &SQLiteStore{Settings: settings}
	default:
		return &MySQLStore{Settings: settings}
	}
}

func createGormLogger(debug bool) logger.Interface {
	if debug {
		return logger.Default.LogMode(logger.Info)
	}
	return logger.Default.LogMode(logger.Warn)
}

// Upsert writes the denormalized record keyed on UserID. Insert-or-overwrite
// semantics keep reprocessing of a redelivered job idempotent.
func (ds *DataStore) Upsert(ctx context.Context, record *MigratedUser) (int64, error) {
	result := ds.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(record)
	if result.Error != nil {
		return 0, errors.New(result.Error).
			Component("userstore").
			Category(errors.CategoryDatabase).
			UserContext(record.UserID).
			Context("operation", "upsert").
			Build()
	}
	return result.RowsAffected, nil
}

// Get retrieves the migrated record for one user.
func (ds *DataStore) Get(ctx context.Context, userID int64) (MigratedUser, error) {
	var record MigratedUser
	err := ds.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return MigratedUser{}, errors.Newf("no migrated record for user %d", userID).
				Component("userstore").
				Category(errors.CategoryNotFound).
				UserContext(userID).
				Build()
		}
		return MigratedUser{}, errors.New(err).
			Component("userstore").
			Category(errors.CategoryDatabase).
			UserContext(userID).
			Build()
	}
	return record, nil
}

func closeDB(db *gorm.DB) error {
	if db == nil {
		return errors.Newf("database connection is not initialized").
			Component("userstore").
			Category(errors.CategoryDatabase).
			Build()
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
