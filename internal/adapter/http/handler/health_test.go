package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"idle-market/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	name string
	err  error
	wait time.Duration
}

func (s stubChecker) Name() string { return s.name }

func (s stubChecker) Ping(ctx context.Context) error {
	if s.wait > 0 {
		select {
		case <-time.After(s.wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.err
}

type healthBody struct {
	Status       string               `json:"status"`
	Dependencies map[string]depStatus `json:"dependencies"`
}

func runHealth(t *testing.T, checkers ...ports.HealthChecker) (int, healthBody) {
	t.Helper()
	r := gin.New()
	r.GET("/health", HealthCheck(checkers...))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body healthBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHealthCheck_AllHealthy(t *testing.T) {
	code, body := runHealth(t, stubChecker{name: "postgresql"}, stubChecker{name: "redis"})

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body.Status)
	assert.Len(t, body.Dependencies, 2)
	assert.Equal(t, "healthy", body.Dependencies["redis"].Status)
}

func TestHealthCheck_Degraded(t *testing.T) {
	code, body := runHealth(t,
		stubChecker{name: "postgresql", err: errors.New("connection refused")},
		stubChecker{name: "redis"},
	)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "unhealthy", body.Dependencies["postgresql"].Status)
	assert.Equal(t, "connection refused", body.Dependencies["postgresql"].Error)
	assert.Equal(t, "healthy", body.Dependencies["redis"].Status)
}

func TestHealthCheck_SlowDependencyTimesOut(t *testing.T) {
	started := time.Now()
	code, body := runHealth(t, stubChecker{name: "redis", wait: time.Minute})

	assert.Less(t, time.Since(started), healthCheckTimeout+time.Second)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, context.DeadlineExceeded.Error(), body.Dependencies["redis"].Error)
}

func TestHealthCheck_NoDependencies(t *testing.T) {
	code, body := runHealth(t)

	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, body.Dependencies)
}
