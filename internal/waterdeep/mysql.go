package waterdeep

import (
	"context"
	"fmt"

	"github.com/waterdeep/usersync/internal/conf"
	"github.com/waterdeep/usersync/internal/errors"
	"github.com/waterdeep/usersync/internal/logging"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// MySQLStore implements the legacy store against the production Waterdeep
// MySQL database. The schema is owned by Waterdeep; no migration is performed.
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

// Open sets up the MySQL database connection.
func (store *MySQLStore) Open() error {
	src := store.Settings.Source
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		src.Username, src.Password, src.Host, src.Port, src.Database)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: createGormLogger(src.Debug)})
	if err != nil {
		return errors.New(fmt.Errorf("failed to open legacy MySQL database: %w", err)).
			Component("waterdeep").
			Category(errors.CategoryDatabase).
			Context("host", src.Host).
			Context("database", src.Database).
			Build()
	}

	store.DB = db
	store.logger = logging.ForService("waterdeep")
	return nil
}

// Close releases the MySQL connection.
func (store *MySQLStore) Close() error {
	return closeDB(store.DB)
}

// SubscriptionTier calls the legacy GetSubscriptionTierForUser stored procedure.
func (store *MySQLStore) SubscriptionTier(ctx context.Context, userID int64) (string, error) {
	var rows []struct {
		SubscriptionTier string
		UserID           int64
	}
	err := store.DB.WithContext(ctx).
		Raw("CALL GetSubscriptionTierForUser(?)", userID).
		Scan(&rows).Error
	if err != nil {
		return "", errors.New(err).
			Component("waterdeep").
			Category(errors.CategoryDatabase).
			UserContext(userID).
			Context("procedure", "GetSubscriptionTierForUser").
			Build()
	}
	if len(rows) == 0 {
		return "", missingTierError(userID)
	}
	return rows[0].SubscriptionTier, nil
}

// UserRoles calls the legacy RoleGetByUserId stored procedure.
func (store *MySQLStore) UserRoles(ctx context.Context, userID int64) ([]string, error) {
	var rows []struct {
		ID   int64
		Name string
	}
	err := store.DB.WithContext(ctx).
		Raw("CALL RoleGetByUserId(?)", userID).
		Scan(&rows).Error
	if err != nil {
		return nil, errors.New(err).
			Component("waterdeep").
			Category(errors.CategoryDatabase).
			UserContext(userID).
			Context("procedure", "RoleGetByUserId").
			Build()
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.Name)
	}
	return names, nil
}
