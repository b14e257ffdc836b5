package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	oteltrace "go.opentelemetry.io/otel/trace"

	"cloud-deploy-dashboard/internal/credentials"
	"cloud-deploy-dashboard/internal/model"
)

func TestStartDeploymentSendsRequest(t *testing.T) {
	var got model.DeploymentRequest
	var auth, contentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, DeployPath, r.URL.Path)
		auth = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true,"deploymentId":"abc"}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", credentials.Static("tok-1"))
	req := model.DeploymentRequest{CloudProvider: model.ProviderAWS, ClusterName: "demo", NodeCount: 3}

	require.NoError(t, c.StartDeployment(context.Background(), req))
	assert.Equal(t, req, got)
	assert.Equal(t, "Bearer tok-1", auth)
	assert.Equal(t, "application/json", contentType)
}

func TestGetProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, ProgressPath, r.URL.Path)
		assert.Equal(t, "Bearer tok-2", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"progress":40,"status":"provisioning"}`))
	}))
	defer srv.Close()

	status, err := New(srv.URL, credentials.Static("tok-2")).GetProgress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 40, status.Progress)
	assert.Equal(t, "provisioning", status.Status)
}

func TestTokenIsReadBeforeEachCall(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"progress":1,"status":"x"}`))
	}))
	defer srv.Close()

	tokens := &rotatingTokens{values: []string{"first", "second"}}
	c := New(srv.URL, tokens)

	_, err := c.GetProgress(context.Background())
	require.NoError(t, err)
	_, err = c.GetProgress(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer first", "Bearer second"}, seen)
}

func TestMissingTokenSendsNoHeader(t *testing.T) {
	var auth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Values("Authorization")
		http.Error(w, `{"success":false,"message":"unauthorized"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := New(srv.URL, credentials.Static("")).GetProgress(context.Background())
	require.Error(t, err)
	assert.Empty(t, auth)
	assert.True(t, IsServerError(err))
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.Equal(t, "unauthorized", Detail(err))
}

func TestServerErrorDetail(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "envelope with details", status: 400, body: `{"success":false,"message":"invalid request payload","details":"nodeCount"}`, want: "invalid request payload: nodeCount"},
		{name: "envelope message only", status: 500, body: `{"message":"boom"}`, want: "boom"},
		{name: "error field", status: 401, body: `{"error":"invalid token"}`, want: "invalid token"},
		{name: "plain text", status: 502, body: "upstream unavailable\n", want: "upstream unavailable"},
		{name: "empty body", status: 503, body: "", want: "Service Unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := New(srv.URL, credentials.Static("t")).StartDeployment(context.Background(),
				model.DeploymentRequest{CloudProvider: model.ProviderAWS, ClusterName: "demo", NodeCount: 1})

			require.Error(t, err)
			assert.True(t, IsServerError(err))
			assert.False(t, IsNetworkError(err))
			assert.Equal(t, tt.status, StatusCode(err))
			assert.Equal(t, tt.want, Detail(err))
		})
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url, credentials.Static("t")).GetProgress(context.Background())
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
	assert.Zero(t, StatusCode(err))
	assert.NotEmpty(t, Detail(err))
}

func TestDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, credentials.Static("t")).GetProgress(context.Background())
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, DecodeError, reqErr.Kind)
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, LoginPath, r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		var body model.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Password != "right" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"message":"invalid username or password"}`))
			return
		}
		_, _ = w.Write([]byte(`{"token":"issued"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, credentials.Static("ignored"))

	token, err := c.Login(context.Background(), "admin", "right")
	require.NoError(t, err)
	assert.Equal(t, "issued", token)

	_, err = c.Login(context.Background(), "admin", "wrong")
	require.Error(t, err)
	assert.Equal(t, "invalid username or password", Detail(err))
}

func TestDetailOfPlainError(t *testing.T) {
	assert.Equal(t, "", Detail(nil))
	assert.Equal(t, assert.AnError.Error(), Detail(assert.AnError))
}

type rotatingTokens struct {
	values []string
	next   int
}

func (r *rotatingTokens) Token(context.Context) (string, error) {
	v := r.values[r.next%len(r.values)]
	r.next++
	return v, nil
}

func newRecorder() (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	sr := tracetest.NewSpanRecorder()
	return sr, sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
}

func TestFailedGetProgressRecordsErrorSpan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"upstream unavailable"}`))
	}))
	defer srv.Close()

	sr, tp := newRecorder()
	_, err := New(srv.URL, credentials.Static("t"), WithTracerProvider(tp)).GetProgress(context.Background())
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "get progress", span.Name())
	assert.Equal(t, oteltrace.SpanKindClient, span.SpanKind())
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, "upstream unavailable", span.Status().Description)
	require.NotEmpty(t, span.Events())
	assert.Equal(t, "exception", span.Events()[0].Name)
}

func TestSuccessfulRequestSpan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"progress":100,"status":"done"}`))
	}))
	defer srv.Close()

	sr, tp := newRecorder()
	_, err := New(srv.URL, credentials.Static("t"), WithTracerProvider(tp)).GetProgress(context.Background())
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("http.route", ProgressPath))
}

func TestTraceContextIsPropagated(t *testing.T) {
	previous := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(previous) })

	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("Traceparent")
		_, _ = w.Write([]byte(`{"progress":1,"status":"x"}`))
	}))
	defer srv.Close()

	sr, tp := newRecorder()
	_, err := New(srv.URL, credentials.Static("t"), WithTracerProvider(tp)).GetProgress(context.Background())
	require.NoError(t, err)

	require.Len(t, sr.Ended(), 1)
	traceID := sr.Ended()[0].SpanContext().TraceID().String()
	assert.Contains(t, traceparent, traceID)
}

func TestWithTimeoutLeavesCallerClientAlone(t *testing.T) {
	hc := &http.Client{}
	c := New("http://example.invalid", nil, WithHTTPClient(hc), WithTimeout(3*time.Second))

	assert.Zero(t, hc.Timeout)
	assert.Equal(t, 3*time.Second, c.httpClient.Timeout)
	assert.NotSame(t, hc, c.httpClient)

	plain := New("http://example.invalid", nil, WithHTTPClient(hc))
	assert.Same(t, hc, plain.httpClient)
}
