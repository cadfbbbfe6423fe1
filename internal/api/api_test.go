package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waterdeep/usersync/internal/conf"
	"github.com/waterdeep/usersync/internal/enqueuer"
	"github.com/waterdeep/usersync/internal/queue"
	"github.com/waterdeep/usersync/internal/waterdeep"
)

func newTestController(t *testing.T) (*Controller, *waterdeep.SQLiteStore, *queue.MockClient) {
	t.Helper()

	settings := &conf.Settings{}
	settings.Source.Type = "sqlite"
	settings.Source.Path = "file:api_" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	settings.Queue.Topic = "usersync/jobs"
	settings.Queue.PublishBatchLimit = 10
	settings.Enqueue.DefaultBatchSize = 100000
	settings.WebServer.Port = "8080"

	store := &waterdeep.SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	mock := queue.NewMockClient()
	controller := New(settings, enqueuer.New(settings, store, mock))
	return controller, store, mock
}

func doEnqueue(t *testing.T, c *Controller, target, contentType, body string) (*httptest.ResponseRecorder, MessageResponse) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(echoHeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, req)

	var resp MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

const echoHeaderContentType = "Content-Type"

func seedActiveUsers(t *testing.T, store *waterdeep.SQLiteStore, n int) {
	t.Helper()
	for id := 1; id <= n; id++ {
		require.NoError(t, store.DB.Create(&waterdeep.User{ID: int64(id), Status: waterdeep.StatusActive}).Error)
	}
}

func TestEnqueueEndpointSuccess(t *testing.T) {
	t.Parallel()

	controller, store, mock := newTestController(t)
	seedActiveUsers(t, store, 3)

	rec, resp := doEnqueue(t, controller, "/api/v1/migration/enqueue", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3 UserID(s) added to the queue", resp.Message)
	assert.Equal(t, []string{"1", "2", "3"}, mock.PublishedBodies())
}

func TestEnqueueEndpointQueryBatchSize(t *testing.T) {
	t.Parallel()

	controller, store, mock := newTestController(t)
	seedActiveUsers(t, store, 5)

	rec, resp := doEnqueue(t, controller, "/api/v1/migration/enqueue?batchSize=2", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2 UserID(s) added to the queue", resp.Message)
	assert.Equal(t, []string{"1", "2"}, mock.PublishedBodies())
}

func TestEnqueueEndpointBodyBatchSize(t *testing.T) {
	t.Parallel()

	controller, store, mock := newTestController(t)
	seedActiveUsers(t, store, 5)

	rec, _ := doEnqueue(t, controller, "/api/v1/migration/enqueue", "application/json", `{"batchSize":4}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, mock.PublishedBodies(), 4)
}

func TestEnqueueEndpointRejectsNonNumericBatchSize(t *testing.T) {
	t.Parallel()

	controller, _, mock := newTestController(t)

	rec, resp := doEnqueue(t, controller, "/api/v1/migration/enqueue?batchSize=abc", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Message, "invalid batchSize")
	assert.Empty(t, mock.Batches)
}

func TestEnqueueEndpointRejectsNonPositiveBatchSize(t *testing.T) {
	t.Parallel()

	controller, _, _ := newTestController(t)

	rec, _ := doEnqueue(t, controller, "/api/v1/migration/enqueue?batchSize=0", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doEnqueue(t, controller, "/api/v1/migration/enqueue", "application/json", `{"batchSize":-5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnqueueEndpointUnconfiguredQueue(t *testing.T) {
	t.Parallel()

	controller, store, _ := newTestController(t)
	controller.Settings.Queue.Topic = ""
	seedActiveUsers(t, store, 1)

	rec, resp := doEnqueue(t, controller, "/api/v1/migration/enqueue", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no queue was found", resp.Message)
}

func TestEnqueueEndpointPublishFailureIs500(t *testing.T) {
	t.Parallel()

	controller, store, mock := newTestController(t)
	seedActiveUsers(t, store, 1)
	mock.FailBatchIndex = 0

	rec, resp := doEnqueue(t, controller, "/api/v1/migration/enqueue", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, resp.Message, "publish")
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	controller, _, _ := newTestController(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", http.NoBody)
	rec := httptest.NewRecorder()
	controller.Echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
