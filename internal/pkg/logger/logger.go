package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cloud-deploy-dashboard/internal/config"
)

type Logger struct {
	*zap.Logger
}

// NewLogger builds a logger from cfg. Format "json" uses the production
// encoder, anything else the console encoder.
func NewLogger(cfg config.LoggingConfig) (*Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	var zcfg zap.Config
	if cfg.Format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	if cfg.File != "" {
		zcfg.OutputPaths = []string{cfg.File}
		zcfg.ErrorOutputPaths = []string{cfg.File}
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	l, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: l}, nil
}

// New wraps an existing zap logger.
func New(l *zap.Logger) *Logger {
	return &Logger{Logger: l}
}

func Nop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

func (l *Logger) DeploymentStep(deploymentID, step string) {
	l.Info("executing deployment step",
		zap.String("type", "deployment"),
		zap.String("deployment", deploymentID),
		zap.String("step", step),
	)
}

func (l *Logger) DeploymentError(deploymentID, step string, err error) {
	l.Error("deployment step failed",
		zap.String("type", "deployment"),
		zap.String("deployment", deploymentID),
		zap.String("step", step),
		zap.Error(err),
	)
}

func (l *Logger) DeploymentSuccess(deploymentID string) {
	l.Info("deployment completed",
		zap.String("type", "deployment"),
		zap.String("deployment", deploymentID),
	)
}

func (l *Logger) PollResult(progress int, status string) {
	l.Debug("deployment progress",
		zap.String("type", "poll"),
		zap.Int("progress", progress),
		zap.String("status", status),
	)
}

// Fallback returns a logger that writes to stderr when building from
// config fails, so startup errors are still visible.
func Fallback() *Logger {
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return &Logger{Logger: zap.New(zapcore.NewCore(enc, zapcore.Lock(os.Stderr), zapcore.InfoLevel))}
}
