// interfaces.go: this code defines the interface for legacy store operations
package waterdeep

import (
	"context"
	"log/slog"
	"time"

	"github.com/waterdeep/usersync/internal/conf"
	"github.com/waterdeep/usersync/internal/errors"
	"github.com/waterdeep/usersync/internal/logging"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Interface abstracts the legacy Waterdeep store. The pipeline reads user data
// through it and writes nothing except the migration checkpoint.
type Interface interface {
	Open() error
	Close() error
	// EligibleUserIDs returns up to limit IDs of active users whose migration
	// checkpoint is unset, ordered by ID ascending.
	EligibleUserIDs(ctx context.Context, limit int) ([]int64, error)
	// UserProfile returns the identity+profile row for one user. Exactly one
	// row is expected; absence is a data-integrity error.
	UserProfile(ctx context.Context, userID int64) (Profile, error)
	// ExternalMappings returns zero or more external auth mappings for a user.
	ExternalMappings(ctx context.Context, userID int64) ([]ExternalMapping, error)
	// SubscriptionTier returns the user's current tier. Exactly one row is
	// expected; absence is a data-integrity error.
	SubscriptionTier(ctx context.Context, userID int64) (string, error)
	// UserRoles returns zero or more role names for a user.
	UserRoles(ctx context.Context, userID int64) ([]string, error)
	// MarkSynced sets the user's LastFullSync checkpoint. This is the commit
	// point: a checkpointed user never reappears in EligibleUserIDs.
	MarkSynced(ctx context.Context, userID int64, syncedAt time.Time) error
}

// DataStore implements the shared GORM-backed operations.
type DataStore struct {
	DB     *gorm.DB
	logger *slog.Logger
}

// New creates a legacy store instance based on the configured engine.
func New(settings *conf.Settings) Interface {
	switch settings.Source.Type {
	case "sqlite":
		return &SQLiteStore{Settings: settings}
	default:
		return &MySQLStore{Settings: settings}
	}
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger(debug bool) logger.Interface {
	if debug {
		return logger.Default.LogMode(logger.Info)
	}
	return logger.Default.LogMode(logger.Warn)
}

func (ds *DataStore) log() *slog.Logger {
	if ds.logger == nil {
		ds.logger = logging.ForService("waterdeep")
	}
	if ds.logger == nil {
		ds.logger = slog.Default()
	}
	return ds.logger
}

// EligibleUserIDs selects the next batch of not-yet-migrated active users.
func (ds *DataStore) EligibleUserIDs(ctx context.Context, limit int) ([]int64, error) {
	var ids []int64
	err := ds.DB.WithContext(ctx).
		Model(&User{}).
		Where("status = ? AND last_full_sync IS NULL", StatusActive).
		Order("id").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, errors.New(err).
			Component("waterdeep").
			Category(errors.CategoryDatabase).
			Context("operation", "eligible_user_ids").
			Build()
	}
	return ids, nil
}

// UserProfile reads the identity+profile join for one user.
func (ds *DataStore) UserProfile(ctx context.Context, userID int64) (Profile, error) {
	var profile Profile
	err := ds.DB.WithContext(ctx).
		Model(&User{}).
		Select("user_profiles.email, user_profiles.username, user_profiles.nickname").
		Joins("JOIN user_profiles ON user_profiles.user_id = users.id").
		Where("users.id = ?", userID).
		Take(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Profile{}, errors.Newf("no profile row for user %d", userID).
				Component("waterdeep").
				Category(errors.CategoryDataIntegrity).
				UserContext(userID).
				Build()
		}
		return Profile{}, errors.New(err).
			Component("waterdeep").
			Category(errors.CategoryDatabase).
			UserContext(userID).
			Build()
	}
	return profile, nil
}

// ExternalMappings reads the external auth mappings for one user.
func (ds *DataStore) ExternalMappings(ctx context.Context, userID int64) ([]ExternalMapping, error) {
	var mappings []ExternalMapping
	err := ds.DB.WithContext(ctx).
		Model(&ExternalUserMap{}).
		Select("external_auth_providers.name AS provider, external_user_maps.external_user_id").
		Joins("JOIN external_auth_providers ON external_auth_providers.id = external_user_maps.external_auth_provider_id").
		Where("external_user_maps.user_id = ?", userID).
		Scan(&mappings).Error
	if err != nil {
		return nil, errors.New(err).
			Component("waterdeep").
			Category(errors.CategoryDatabase).
			UserContext(userID).
			Build()
	}
	return mappings, nil
}

// subscriptionTierQuery is the plain-query tier read shared by engines without
// the legacy stored procedures.
func (ds *DataStore) subscriptionTierQuery(ctx context.Context, userID int64) (string, error) {
	var sub UserSubscription
	err := ds.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", missingTierError(userID)
		}
		return "", errors.New(err).
			Component("waterdeep").
			Category(errors.CategoryDatabase).
			UserContext(userID).
			Build()
	}
	return sub.SubscriptionTier, nil
}

// userRolesQuery is the plain-query role read shared by engines without the
// legacy stored procedures.
func (ds *DataStore) userRolesQuery(ctx context.Context, userID int64) ([]string, error) {
	var names []string
	err := ds.DB.WithContext(ctx).
		Model(&UserRole{}).
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("user_roles.user_id = ?", userID).
		Pluck("roles.name", &names).Error
	if err != nil {
		return nil, errors.New(err).
			Component("waterdeep").
			Category(errors.CategoryDatabase).
			UserContext(userID).
			Build()
	}
	return names, nil
}

// MarkSynced advances the migration checkpoint for one user.
func (ds *DataStore) MarkSynced(ctx context.Context, userID int64, syncedAt time.Time) error {
	result := ds.DB.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", userID).
		Update("last_full_sync", syncedAt)
	if result.Error != nil {
		return errors.New(result.Error).
			Component("waterdeep").
			Category(errors.CategoryDatabase).
			UserContext(userID).
			Context("operation", "mark_synced").
			Build()
	}
	if result.RowsAffected == 0 {
		return errors.Newf("no user row %d to checkpoint", userID).
			Component("waterdeep").
			Category(errors.CategoryNotFound).
			UserContext(userID).
			Build()
	}
	ds.log().Debug("checkpoint advanced", "user_id", userID, "synced_at", syncedAt)
	return nil
}

// missingTierError builds the data-integrity error for an absent tier row. The
// read path assumes exactly one row per user, so absence must fail loudly
// rather than default silently.
func missingTierError(userID int64) error {
	return errors.Newf("no subscription tier row for user %d", userID).
		Component("waterdeep").
		Category(errors.CategoryDataIntegrity).
		UserContext(userID).
		Build()
}

// closeDB releases the underlying connection of a GORM handle.
func closeDB(db *gorm.DB) error {
	if db == nil {
		return errors.Newf("database connection is not initialized").
			Component("waterdeep").
			Category(errors.CategoryDatabase).
			Build()
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
