package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloud-deploy-dashboard/internal/auth"
	"cloud-deploy-dashboard/internal/config"
	"cloud-deploy-dashboard/internal/metrics"
	"cloud-deploy-dashboard/internal/model"
	"cloud-deploy-dashboard/internal/pkg/logger"
	"cloud-deploy-dashboard/internal/service"
)

type fixture struct {
	engine  *gin.Engine
	service *service.DeployService
}

func newFixture(t *testing.T, opts ...service.Option) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := service.NewDeployService(0, logger.Nop(), opts...)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	h := NewDeployHandler(svc, metrics.New(), logger.Nop(), []string{"http://localhost:3000"})

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if user := c.GetHeader("X-Test-User"); user != "" {
			c.Set(auth.ContextUser, user)
		}
		c.Next()
	})
	r.POST("/api/deploy-to-cloud", h.Deploy)
	r.GET("/api/deployment-progress", h.Progress)
	r.GET("/api/deployment-progress/ws", h.Stream)

	return &fixture{engine: r, service: svc}
}

func (f *fixture) do(method, target, user string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", user)
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) waitDone(t *testing.T, user, id string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	updates, err := f.service.Watch(ctx, user, id)
	require.NoError(t, err)
	for range updates {
	}
	require.NoError(t, ctx.Err())
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()
	var body model.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body
}

func TestDeployAndProgress(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/deploy-to-cloud", "admin", model.DeploymentRequest{
		CloudProvider: model.ProviderAliyun,
		ClusterName:   "demo",
		NodeCount:     1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.DeployResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotEmpty(t, resp.DeploymentID)

	f.waitDone(t, "admin", resp.DeploymentID)

	rec = f.do(http.MethodGet, "/api/deployment-progress", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status model.DeploymentStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 100, status.Progress)
	assert.Equal(t, service.StatusCompleted, status.Status)

	rec = f.do(http.MethodGet, "/api/deployment-progress?id="+resp.DeploymentID, "admin", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeployRejectsBadPayload(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body any
		code int
	}{
		{name: "unknown provider", body: map[string]any{"cloudProvider": "gcp", "clusterName": "demo", "nodeCount": 1}, code: 3002},
		{name: "missing cluster", body: map[string]any{"cloudProvider": "aws", "nodeCount": 1}, code: 3002},
		{name: "zero nodes", body: map[string]any{"cloudProvider": "aws", "clusterName": "demo", "nodeCount": 0}, code: 3002},
		{name: "nodes as string", body: map[string]any{"cloudProvider": "aws", "clusterName": "demo", "nodeCount": "3"}, code: 3002},
		{name: "cluster not a dns label", body: map[string]any{"cloudProvider": "aws", "clusterName": "My Cluster", "nodeCount": 1}, code: 3001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/deploy-to-cloud", "admin", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestProgressWithoutDeployment(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/deployment-progress", "nobody", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, 4001, body.Code)
	assert.Equal(t, "deployment not found", body.Message)
}

func TestProgressOfFailedDeployment(t *testing.T) {
	f := newFixture(t, service.WithStepFunc(func(_ context.Context, _ string, step service.Step) error {
		if step.Key == "wait-ready" {
			return errors.New("cluster never became ready")
		}
		return nil
	}))

	rec := f.do(http.MethodPost, "/api/deploy-to-cloud", "admin", model.DeploymentRequest{
		CloudProvider: model.ProviderAWS,
		ClusterName:   "demo",
		NodeCount:     1,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.DeployResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	f.waitDone(t, "admin", resp.DeploymentID)

	rec = f.do(http.MethodGet, "/api/deployment-progress", "admin", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, 2001, body.Code)
	assert.Equal(t, "deployment step wait-ready failed", body.Message)
	assert.Equal(t, "cluster never became ready", body.Details)
}

func TestStream(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.engine)
	defer srv.Close()

	rec := f.do(http.MethodPost, "/api/deploy-to-cloud", "admin", model.DeploymentRequest{
		CloudProvider: model.ProviderAWS,
		ClusterName:   "demo",
		NodeCount:     2,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.DeployResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/deployment-progress/ws?id=" + resp.DeploymentID
	header := http.Header{"X-Test-User": []string{"admin"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var last model.DeploymentStatus
	for {
		var status model.DeploymentStatus
		if err := conn.ReadJSON(&status); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		assert.Equal(t, resp.DeploymentID, status.DeploymentID)
		assert.GreaterOrEqual(t, status.Progress, last.Progress)
		last = status
	}
	assert.Equal(t, 100, last.Progress)
	assert.Equal(t, service.StatusCompleted, last.Status)
}

func TestStreamRejectsForeignOrigin(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.engine)
	defer srv.Close()

	rec := f.do(http.MethodPost, "/api/deploy-to-cloud", "admin", model.DeploymentRequest{
		CloudProvider: model.ProviderAWS,
		ClusterName:   "demo",
		NodeCount:     1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/deployment-progress/ws"
	header := http.Header{
		"X-Test-User": []string{"admin"},
		"Origin":      []string{"http://evil.example"},
	}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestStreamWithoutDeployment(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/deployment-progress/ws", "nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a, err := auth.New(config.AuthConfig{Username: "admin", Password: "secret", JWTSecret: "s"})
	require.NoError(t, err)

	h := NewAuthHandler(a, logger.Nop())
	r := gin.New()
	r.POST("/api/login", h.Login)

	post := func(body any) *httptest.ResponseRecorder {
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := post(model.LoginRequest{Username: "admin", Password: "secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	claims, err := a.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)

	rec = post(model.LoginRequest{Username: "admin", Password: "nope"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 1001, decodeError(t, rec).Code)

	rec = post(map[string]string{"username": "admin"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 3002, decodeError(t, rec).Code)
}
