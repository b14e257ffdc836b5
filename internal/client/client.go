package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"cloud-deploy-dashboard/internal/credentials"
	"cloud-deploy-dashboard/internal/model"
)

const (
	DeployPath   = "/api/deploy-to-cloud"
	ProgressPath = "/api/deployment-progress"
	LoginPath    = "/api/login"

	tracerName = "cloud-deploy-dashboard/client"

	// maxErrorBody bounds how much of an error response is kept as detail.
	maxErrorBody = 4 << 10
)

// Client talks to the deployment backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     credentials.TokenProvider
	logger     *zap.Logger
	tracer     trace.Tracer
	timeout    time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTimeout sets the per-request timeout. It applies to a copy of the
// HTTP client, so a client passed to WithHTTPClient is left untouched.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithTracerProvider records request spans on tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer(tracerName) }
}

func New(baseURL string, tokens credentials.TokenProvider, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
		logger:     zap.NewNop(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

// StartDeployment asks the backend to start a deployment. The response
// body is ignored beyond success or failure.
func (c *Client) StartDeployment(ctx context.Context, req model.DeploymentRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode deployment request: %w", err)
	}
	return c.do(ctx, "start deployment", http.MethodPost, DeployPath, body, nil, true)
}

// GetProgress fetches the latest status of the caller's deployment.
func (c *Client) GetProgress(ctx context.Context) (model.DeploymentStatus, error) {
	var status model.DeploymentStatus
	if err := c.do(ctx, "get progress", http.MethodGet, ProgressPath, nil, &status, true); err != nil {
		return model.DeploymentStatus{}, err
	}
	return status, nil
}

// Login exchanges credentials for a bearer token. It does not store the token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body, err := json.Marshal(model.LoginRequest{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("encode login request: %w", err)
	}
	var resp model.LoginResponse
	if err := c.do(ctx, "login", http.MethodPost, LoginPath, body, &resp, false); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", &RequestError{Kind: DecodeError, Op: "login", Detail: "empty token in response"}
	}
	return resp.Token, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte, out any, authorize bool) error {
	ctx, span := c.tracer.Start(ctx, op, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", path),
		))
	defer span.End()

	err := c.roundTrip(ctx, op, method, path, body, out, authorize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Detail(err))
		c.logger.Debug("request failed", zap.String("op", op), zap.Error(err))
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, body []byte, out any, authorize bool) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	if authorize {
		if err := c.authorize(ctx, req); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{Kind: NetworkError, Op: op, Detail: networkDetail(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &RequestError{
			Kind:       ServerError,
			Op:         op,
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(resp.StatusCode, raw),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{Kind: DecodeError, Op: op, StatusCode: resp.StatusCode, Detail: err.Error(), Err: err}
	}
	return nil
}

// authorize reads the token before every call. A missing token sends the
// request without a header so the server's 401 surfaces as a ServerError.
func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.tokens == nil {
		return nil
	}
	token, err := c.tokens.Token(ctx)
	if errors.Is(err, credentials.ErrTokenNotFound) {
		c.logger.Warn("no bearer token available, sending unauthenticated request")
		return nil
	}
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// errorDetail prefers the message of a JSON error envelope, falling back to
// the raw body and finally the status text.
func errorDetail(status int, raw []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Details string `json:"details"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil {
		switch {
		case envelope.Message != "" && envelope.Details != "":
			return envelope.Message + ": " + envelope.Details
		case envelope.Message != "":
			return envelope.Message
		case envelope.Error != "":
			return envelope.Error
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return http.StatusText(status)
}

func networkDetail(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	if errors.Is(err, context.Canceled) {
		return "request canceled"
	}
	return err.Error()
}
