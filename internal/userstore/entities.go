// entities.go: denormalized user record written to the User Service store
package userstore

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/waterdeep/usersync/internal/waterdeep"
)

// RoleSet is an unordered set of role names, serialized as a JSON array.
type RoleSet []string

// Value implements driver.Valuer for JSON column storage.
func (r RoleSet) Value() (driver.Value, error) {
	if r == nil {
		r = RoleSet{}
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshaling role set: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner for JSON column storage.
func (r *RoleSet) Scan(value any) error {
	return scanJSON(value, r, "role set")
}

// MappingSet is an unordered set of external auth mappings, serialized as a
// JSON array.
type MappingSet []waterdeep.ExternalMapping

// Value implements driver.Valuer for JSON column storage.
func (m MappingSet) Value() (driver.Value, error) {
	if m == nil {
		m = MappingSet{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshaling mapping set: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner for JSON column storage.
func (m *MappingSet) Scan(value any) error {
	return scanJSON(value, m, "mapping set")
}

func scanJSON(value, target any, what string) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unexpected %s column type %T", what, value)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshaling %s: %w", what, err)
	}
	return nil
}

// MigratedUser is the denormalized destination row, keyed by UserID. It is a
// derived projection of the legacy data and may be overwritten any number of
// times safely.
type MigratedUser struct {
	UserID           int64 `gorm:"primaryKey;autoIncrement:false"`
	Email            string
	Username         string
	Nickname         string
	DisplayName      string
	SubscriptionTier string
	Roles            RoleSet    `gorm:"type:text"`
	ExternalMappings MappingSet `gorm:"type:text"`
	UpdatedAt        time.Time
}
