package userstore

import (
	"fmt"

	"github.com/waterdeep/usersync/internal/conf"
	"github.com/waterdeep/usersync/internal/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteStore implements the destination store for SQLite.
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open sets up the SQLite database connection and migrates the schema.
func (store *SQLiteStore) Open() error {
	dst := store.Settings.Dest

	db, err := gorm.Open(sqlite.Open(dst.Path), &gorm.Config{Logger: createGormLogger(dst.Debug)})
	if err != nil {
		return errors.New(fmt.Errorf("failed to open destination SQLite database: %w", err)).
			Component("userstore").
			Category(errors.CategoryDatabase).
			Context("path", dst.Path).
			Build()
	}

	if err := db.AutoMigrate(&MigratedUser{}); err != nil {
		return errors.New(fmt.Errorf("failed to migrate destination schema: %w", err)).
			Component("userstore").
			Category(errors.CategoryDatabase).
			Build()
	}

	store.DB = db
	return nil
}

// Close releases the SQLite connection.
func (store *SQLiteStore) Close() error {
	return closeDB(store.DB)
}
