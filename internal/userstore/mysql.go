package userstore

import (
	"fmt"

	"github.com/waterdeep/usersync/internal/conf"
	"github.com/waterdeep/usersync/internal/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// MySQLStore implements the destination store for MySQL.
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

// Open sets up the MySQL database connection and migrates the schema.
func (store *MySQLStore) Open() error {
	dst := store.Settings.Dest
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		dst.Username, dst.Password, dst.Host, dst.Port, dst.Database)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: createGormLogger(dst.Debug)})
	if err != nil {
		return errors.New(fmt.Errorf("failed to open destination MySQL database: %w", err)).
			Component("userstore").
			Category(errors.CategoryDatabase).
			Context("host", dst.Host).
			Context("database", dst.Database).
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

// Close releases the MySQL connection.
func (store *MySQLStore) Close() error {
	return closeDB(store.DB)
}
