package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"cloud-deploy-dashboard/internal/credentials"
	"cloud-deploy-dashboard/internal/model"
	"cloud-deploy-dashboard/internal/trace"
)

// fakeBackend serves the deployment API with canned progress values.
type fakeBackend struct {
	mu         sync.Mutex
	progress   []int
	deployed   []model.DeploymentRequest
	authHeader string
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		var req model.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "admin123" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(model.ErrorResponse{Message: "authentication failed"})
			return
		}
		_ = json.NewEncoder(w).Encode(model.LoginResponse{Token: "tok-" + req.Username})
	})
	mux.HandleFunc("POST /api/deploy-to-cloud", func(w http.ResponseWriter, r *http.Request) {
		var req model.DeploymentRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		b.deployed = append(b.deployed, req)
		b.authHeader = r.Header.Get("Authorization")
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(model.DeployResponse{Success: true, DeploymentID: "d-1"})
	})
	mux.HandleFunc("GET /api/deployment-progress", func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		p := 100
		if len(b.progress) > 0 {
			p, b.progress = b.progress[0], b.progress[1:]
		}
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(model.DeploymentStatus{
			Progress:      p,
			Status:        "step",
			DeploymentID:  "d-1",
			CloudProvider: model.ProviderAWS,
			ClusterName:   "demo",
		})
	})
	return mux
}

func newEnv(t *testing.T, b *fakeBackend) (*GlobalOptions, string) {
	t.Helper()
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	tokenFile := filepath.Join(t.TempDir(), "credentials.yaml")
	t.Setenv("DEPLOY_TOKEN_STORE", "file")
	t.Setenv("DEPLOY_TOKEN_FILE", tokenFile)
	t.Setenv("LOG_FILE", "")

	return &GlobalOptions{APIURL: srv.URL}, tokenFile
}

func TestLoginStoresToken(t *testing.T) {
	opts, tokenFile := newEnv(t, &fakeBackend{})
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, Login(ctx, opts, &out, "admin", "admin123"))
	assert.Contains(t, out.String(), "as admin")
	assert.Contains(t, out.String(), "Token saved to "+tokenFile)

	token, err := credentials.NewFileStore(tokenFile).Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-admin", token)

	require.NoError(t, Logout(ctx, opts, &out))
	_, err = credentials.NewFileStore(tokenFile).Token(ctx)
	assert.ErrorIs(t, err, credentials.ErrTokenNotFound)
}

func TestMissingEnvFile(t *testing.T) {
	opts, _ := newEnv(t, &fakeBackend{})
	opts.EnvFile = filepath.Join(t.TempDir(), "missing.env")

	err := Status(context.Background(), opts, &bytes.Buffer{}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load env file")
}

func TestLoginRejected(t *testing.T) {
	opts, _ := newEnv(t, &fakeBackend{})

	err := Login(context.Background(), opts, &bytes.Buffer{}, "admin", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid username or password")
}

func TestDeployPlain(t *testing.T) {
	b := &fakeBackend{progress: []int{30, 60, 100}}
	opts, tokenFile := newEnv(t, b)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, credentials.NewFileStore(tokenFile).SetToken(ctx, "stored"))

	var out bytes.Buffer
	err := Deploy(ctx, opts, &out, DeployOptions{
		Provider:     "aws",
		ClusterName:  "demo",
		NodeCount:    2,
		PollInterval: time.Millisecond,
		Plain:        true,
	})
	require.NoError(t, err)

	b.mu.Lock()
	defer b.mu.Unlock()
	require.Len(t, b.deployed, 1)
	assert.Equal(t, model.DeploymentRequest{CloudProvider: model.ProviderAWS, ClusterName: "demo", NodeCount: 2}, b.deployed[0])
	assert.Equal(t, "Bearer stored", b.authHeader)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, "[completed] 100% step", lines[len(lines)-1])
}

func TestDeployPlainRequiresFlags(t *testing.T) {
	opts, _ := newEnv(t, &fakeBackend{})

	err := Deploy(context.Background(), opts, &bytes.Buffer{}, DeployOptions{Provider: "aws", Plain: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required with --plain")

	err = Deploy(context.Background(), opts, &bytes.Buffer{}, DeployOptions{Provider: "gcp", Plain: true})
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	opts, _ := newEnv(t, &fakeBackend{progress: []int{42}})

	var out bytes.Buffer
	require.NoError(t, Status(context.Background(), opts, &out, false))
	assert.Contains(t, out.String(), " 42% step")
	assert.Contains(t, out.String(), "deployment: d-1 (Amazon Web Services, demo)")

	out.Reset()
	require.NoError(t, Status(context.Background(), opts, &out, true))
	var status model.DeploymentStatus
	require.NoError(t, json.Unmarshal(out.Bytes(), &status))
	assert.Equal(t, 100, status.Progress)
}

func TestStatusServerDown(t *testing.T) {
	opts, _ := newEnv(t, &fakeBackend{})
	opts.APIURL = "http://127.0.0.1:1"

	err := Status(context.Background(), opts, &bytes.Buffer{}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error checking deployment progress")
}

func TestStatusExportsSpans(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
	}))
	defer collector.Close()

	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	opts, _ := newEnv(t, &fakeBackend{})
	t.Setenv(trace.EndpointEnv, collector.URL)

	require.NoError(t, Status(context.Background(), opts, &bytes.Buffer{}, false))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, paths, "/v1/traces")
}
