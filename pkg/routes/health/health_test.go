package health

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, c *Checker, path string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	c.RegisterRoutes(e)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	t.Run("should be healthy with a catalog and passing checks", func(t *testing.T) {
		c := NewChecker(func() string { return "v1+token-jw@1" })
		c.AddCheck("database", func(context.Context) error { return nil })

		rec := serve(t, c, "/api/v1/health")
		require.Equal(t, http.StatusOK, rec.Code)

		var status HealthStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, "healthy", status.Status)
		assert.Equal(t, "v1+token-jw@1", status.IndexVersion)
		assert.Equal(t, "healthy", status.Checks["database"].Status)
	})

	t.Run("should report a failing check", func(t *testing.T) {
		c := NewChecker(func() string { return "v1+token-jw@1" })
		c.AddCheck("redis", func(context.Context) error { return stderrors.New("connection refused") })

		rec := serve(t, c, "/api/v1/health")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var status HealthStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, "connection refused", status.Checks["redis"].Message)
	})

	t.Run("should be unhealthy before the first catalog load", func(t *testing.T) {
		rec := serve(t, NewChecker(func() string { return "" }), "/api/v1/health")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "no catalog version loaded")
	})
}

func TestReadiness(t *testing.T) {
	c := NewChecker(nil)
	assert.Equal(t, http.StatusOK, serve(t, c, "/api/v1/health/live").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, c, "/api/v1/health/ready").Code)

	c.SetReady(true)
	assert.Equal(t, http.StatusOK, serve(t, c, "/api/v1/health/ready").Code)
}

func TestMetricsRoute(t *testing.T) {
	rec := serve(t, NewChecker(nil), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
