// internal/api/migration.go
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/waterdeep/usersync/internal/errors"
)

// enqueueRequest is the optional JSON body of the enqueue trigger.
type enqueueRequest struct {
	BatchSize *int `json:"batchSize"`
}

// initMigrationRoutes registers the migration API routes.
func (c *Controller) initMigrationRoutes() {
	c.Group.GET("/health", c.health)
	c.Group.POST("/migration/enqueue", c.EnqueueMigration)
}

// EnqueueMigration handles POST /api/v1/migration/enqueue.
//
// The batch size comes from the batchSize query parameter or the JSON body;
// when absent the configured default cap applies. Non-numeric or non-positive
// input fails the request rather than silently coercing.
func (c *Controller) EnqueueMigration(ctx echo.Context) error {
	start := time.Now()

	batchSize, err := c.parseBatchSize(ctx)
	if err != nil {
		return c.HandleError(ctx, err, http.StatusBadRequest)
	}
	c.Debug("enqueue triggered", "batch_size", batchSize)

	result, err := c.Enqueuer.Enqueue(ctx.Request().Context(), batchSize)
	if err != nil {
		// A missing queue destination is a configuration error, not a
		// retryable one: no queries were executed.
		if errors.IsCategory(err, errors.CategoryConfiguration) {
			return c.HandleError(ctx, err, http.StatusBadRequest)
		}
		return c.HandleError(ctx, err, http.StatusInternalServerError)
	}

	c.logRequest(ctx, start, http.StatusOK)
	return ctx.JSON(http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("%d UserID(s) added to the queue", result.Enqueued),
	})
}

// parseBatchSize reads the optional batch size from the query string or body.
// Zero means "use the default cap".
func (c *Controller) parseBatchSize(ctx echo.Context) (int, error) {
	if raw := ctx.QueryParam("batchSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return 0, errors.Newf("invalid batchSize %q: must be a positive integer", raw).
				Component("api").
				Category(errors.CategoryValidation).
				Build()
		}
		return n, nil
	}

	var req enqueueRequest
	// An empty body is fine; malformed JSON is not.
	if err := ctx.Bind(&req); err != nil {
		return 0, errors.Newf("invalid request body: must be JSON with a numeric batchSize").
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	if req.BatchSize != nil {
		if *req.BatchSize <= 0 {
			return 0, errors.Newf("invalid batchSize %d: must be a positive integer", *req.BatchSize).
				Component("api").
				Category(errors.CategoryValidation).
				Build()
		}
		return *req.BatchSize, nil
	}

	return 0, nil
}
