// internal/api/api.go
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/waterdeep/usersync/internal/conf"
	"github.com/waterdeep/usersync/internal/enqueuer"
	"github.com/waterdeep/usersync/internal/logging"
)

// MessageResponse is the JSON body returned by every migration endpoint.
type MessageResponse struct {
	Message string `json:"message"`
}

// Controller manages the API routes and handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Settings *conf.Settings
	Enqueuer *enqueuer.Enqueuer

	apiLogger       *slog.Logger
	closeFileLogger func() error
}

// New creates a Controller, sets up middleware and registers the routes.
func New(settings *conf.Settings, enq *enqueuer.Enqueuer) *Controller {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	c := &Controller{
		Echo:      e,
		Settings:  settings,
		Enqueuer:  enq,
		apiLogger: logging.ForService("api"),
	}
	if c.apiLogger == nil {
		c.apiLogger = slog.Default().With("service", "api")
	}

	// Route API request logs to the rotated file when file logging is on.
	if settings.Main.Log.Enabled && settings.Main.Log.Path != "" {
		fileLogger, closeFunc, err := logging.NewFileLogger(settings.Main.Log.Path, "api", slog.LevelInfo)
		if err != nil {
			c.apiLogger.Warn("failed to open API log file, keeping stdout logger",
				"path", settings.Main.Log.Path, "error", err)
		} else {
			c.apiLogger = fileLogger
			c.closeFileLogger = closeFunc
		}
	}

	c.Group = e.Group("/api/v1")
	c.initMigrationRoutes()

	return c
}

// Start runs the HTTP server until Shutdown is called.
func (c *Controller) Start() error {
	return c.Echo.Start(":" + c.Settings.WebServer.Port)
}

// Shutdown stops the HTTP server gracefully and closes the API log file.
func (c *Controller) Shutdown(ctx context.Context) error {
	err := c.Echo.Shutdown(ctx)
	if c.closeFileLogger != nil {
		if closeErr := c.closeFileLogger(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

// HandleError logs the error and returns it as a JSON message response. The
// raw error message is the caller-visible failure detail.
func (c *Controller) HandleError(ctx echo.Context, err error, code int) error {
	c.apiLogger.Error("API error",
		"error", err.Error(),
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP(),
	)
	return ctx.JSON(code, MessageResponse{Message: err.Error()})
}

// Debug logs debug messages when web server debug mode is enabled.
func (c *Controller) Debug(msg string, args ...any) {
	if c.Settings.WebServer.Debug {
		c.apiLogger.Debug(msg, args...)
	}
}

// logRequest logs one handled request at info level.
func (c *Controller) logRequest(ctx echo.Context, start time.Time, code int) {
	c.apiLogger.Info("request handled",
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"code", code,
		"duration_ms", time.Since(start).Milliseconds(),
		"ip", ctx.RealIP(),
	)
}

// health endpoint for load balancer probes.
func (c *Controller) health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "ok"})
}
