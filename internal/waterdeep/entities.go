// entities.go: legacy Waterdeep schema rows read by the migration pipeline
package waterdeep

import "time"

// User statuses in the legacy store.
const (
	StatusDeleted = 0
	StatusActive  = 1
)

// User is the legacy identity row. LastFullSync is the migration checkpoint:
// nil means the user has never been migrated.
type User struct {
	ID           int64 `gorm:"primaryKey"`
	Status       int   `gorm:"index:idx_users_eligibility"`
	LastFullSync *time.Time
}

// UserProfile holds the profile attributes for exactly one user.
type UserProfile struct {
	ID       int64 `gorm:"primaryKey"`
	UserID   int64 `gorm:"uniqueIndex"`
	Email    string
	Username string
	Nickname string
}

// ExternalAuthProvider is a lookup row naming an external identity provider.
type ExternalAuthProvider struct {
	ID   int64 `gorm:"primaryKey"`
	Name string
}

// ExternalUserMap links a user to an account at an external auth provider.
type ExternalUserMap struct {
	ID                     int64 `gorm:"primaryKey"`
	UserID                 int64 `gorm:"index"`
	ExternalAuthProviderID int64
	ExternalUserID         string
}

// Role is a lookup row naming a role.
type Role struct {
	ID   int64 `gorm:"primaryKey"`
	Name string
}

// UserRole links a user to a role.
type UserRole struct {
	ID     int64 `gorm:"primaryKey"`
	UserID int64 `gorm:"index"`
	RoleID int64
}

// UserSubscription holds the current subscription tier for exactly one user.
type UserSubscription struct {
	ID               int64 `gorm:"primaryKey"`
	UserID           int64 `gorm:"uniqueIndex"`
	SubscriptionTier string
}

// Profile is the fanned-in identity+profile read result for one user.
type Profile struct {
	Email    string
	Username string
	Nickname string
}

// ExternalMapping is one (provider, external user id) pair for a user.
type ExternalMapping struct {
	Provider       string `json:"Provider"`
	ExternalUserID string `json:"ExternalUserId"`
}
