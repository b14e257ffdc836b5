// Package handlers implements the business logic of the deployctl commands.
package handlers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cloud-deploy-dashboard/internal/client"
	"cloud-deploy-dashboard/internal/config"
	"cloud-deploy-dashboard/internal/credentials"
	"cloud-deploy-dashboard/internal/pkg/logger"
	"cloud-deploy-dashboard/internal/trace"
)

// GlobalOptions are the persistent flags of the root command.
type GlobalOptions struct {
	APIURL  string
	EnvFile string
}

type env struct {
	cfg     *config.Config
	logger  *logger.Logger
	store   credentials.Store
	client  *client.Client
	tracing *trace.Provider
}

const flushTimeout = 5 * time.Second

// setup loads configuration and wires the token store and API client. The
// CLI only logs when LOG_FILE is set, so log lines never mix with the
// terminal output.
func setup(ctx context.Context, opts *GlobalOptions) (*env, error) {
	var files []string
	if opts.EnvFile != "" {
		files = append(files, opts.EnvFile)
	}
	if err := config.LoadEnv(files...); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := config.LoadConfig()
	if opts.APIURL != "" {
		cfg.Client.BaseURL = opts.APIURL
	}

	l := logger.Nop()
	if cfg.Logging.File != "" {
		var err error
		if l, err = logger.NewLogger(cfg.Logging); err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}

	store, err := credentials.Open(cfg.Client.TokenStore, cfg.Client.TokenFile)
	if err != nil {
		return nil, err
	}

	tracing, err := trace.Setup(ctx, "deployctl")
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	c := client.New(cfg.Client.BaseURL, store,
		client.WithLogger(l.Logger),
		client.WithTimeout(cfg.Client.RequestTimeout),
	)

	return &env{cfg: cfg, logger: l, store: store, client: c, tracing: tracing}, nil
}

// close flushes spans and logs. It uses a fresh context so an interrupted
// command still exports what it recorded.
func (e *env) close() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := e.tracing.Shutdown(ctx); err != nil {
		e.logger.Warn("failed to flush traces", zap.Error(err))
	}
	_ = e.logger.Sync()
}
