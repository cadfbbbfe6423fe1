// conf/validate.go

package conf

import (
	"fmt"
	"strconv"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateDatabaseSettings("source", &settings.Source); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateDatabaseSettings("dest", &settings.Dest); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateQueueSettings(&settings.Queue); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateEnqueueSettings(&settings.Enqueue); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateDatabaseSettings(name string, db *DatabaseConfig) error {
	switch db.Type {
	case "mysql":
		if db.Host == "" {
			return fmt.Errorf("%s: MySQL host must not be empty", name)
		}
		if _, err := strconv.Atoi(db.Port); err != nil {
			return fmt.Errorf("%s: invalid MySQL port: %s", name, db.Port)
		}
		if db.Database == "" {
			return fmt.Errorf("%s: MySQL database name must not be empty", name)
		}
	case "sqlite":
		if db.Path == "" {
			return fmt.Errorf("%s: SQLite path must not be empty", name)
		}
	default:
		return fmt.Errorf("%s: unsupported database type: %s", name, db.Type)
	}
	return nil
}

func validateQueueSettings(queue *QueueConfig) error {
	// Topic may be empty: the enqueuer rejects requests at runtime when no
	// queue destination is configured, so only structural settings are checked.
	if queue.Broker == "" {
		return fmt.Errorf("queue broker URL must not be empty")
	}
	if queue.PublishBatchLimit <= 0 {
		return fmt.Errorf("queue publish batch limit must be positive, got %d", queue.PublishBatchLimit)
	}
	return nil
}

func validateEnqueueSettings(enqueue *EnqueueConfig) error {
	if enqueue.DefaultBatchSize <= 0 {
		return fmt.Errorf("enqueue default batch size must be positive, got %d", enqueue.DefaultBatchSize)
	}
	return nil
}

func validateWebServerSettings(ws *WebServerConfig) error {
	if !ws.Enabled {
		return nil
	}
	port, err := strconv.Atoi(ws.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid web server port: %s", ws.Port)
	}
	return nil
}
