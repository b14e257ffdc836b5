// Package controller drives a deployment attempt: one start request followed
// by sequential progress polls until the backend reports 100% or a request
// fails.
package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"cloud-deploy-dashboard/internal/client"
	"cloud-deploy-dashboard/internal/model"
	"cloud-deploy-dashboard/internal/pkg/logger"
)

const (
	DefaultPollInterval = 5 * time.Second

	StatusDeploying = "Deploying..."
	StatusInitiated = "Deployment initiated. Checking progress..."

	deployFailedPrefix = "Deployment failed: "
	pollFailedPrefix   = "Error checking deployment progress: "
)

// ErrSuperseded is returned by Deploy when Stop or a newer Deploy call
// cancelled the attempt before the start request finished.
var ErrSuperseded = errors.New("deployment attempt superseded")

// API is the subset of the deployment client the controller needs.
type API interface {
	StartDeployment(ctx context.Context, req model.DeploymentRequest) error
	GetProgress(ctx context.Context) (model.DeploymentStatus, error)
}

type Controller struct {
	api      API
	interval time.Duration
	after    func(time.Duration) <-chan time.Time
	logger   *logger.Logger

	mu        sync.Mutex
	snap      Snapshot
	cancel    context.CancelFunc
	done      chan struct{}
	listeners map[int]func(Snapshot)
	nextID    int
	version   uint64

	// notifyMu serializes listener calls; delivered is guarded by it.
	notifyMu  sync.Mutex
	delivered uint64
}

type Option func(*Controller)

func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithAfter replaces time.After for scheduling the next poll.
func WithAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(c *Controller) { c.after = after }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func New(api API, opts ...Option) *Controller {
	c := &Controller{
		api:       api,
		interval:  DefaultPollInterval,
		after:     time.After,
		logger:    logger.Nop(),
		listeners: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Subscribe registers fn to receive every state change. fn runs on the
// goroutine that made the change and must not call Deploy.
func (c *Controller) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Deploy starts a new attempt. Any polling chain of a previous attempt is
// cancelled first. It returns after the start request completes; polling
// continues in the background until a terminal state, Stop, or ctx is done.
func (c *Controller) Deploy(ctx context.Context, req model.DeploymentRequest) error {
	if err := req.Validate(); err != nil {
		c.mu.Lock()
		c.stopLocked()
		c.done = nil
		c.snap = Snapshot{Progress: 0, Attempt: c.snap.Attempt + 1}
		c.failLocked(deployFailedPrefix+err.Error(), err)
		c.commitLocked()
		return err
	}

	c.mu.Lock()
	c.stopLocked()
	c.done = nil
	c.snap = Snapshot{State: Deploying, Progress: 0, Status: StatusDeploying, Attempt: c.snap.Attempt + 1}
	attempt := c.snap.Attempt
	attemptCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.commitLocked()

	c.logger.Info("starting deployment",
		zap.Uint64("attempt", attempt),
		zap.String("provider", string(req.CloudProvider)),
		zap.String("cluster", req.ClusterName),
		zap.Int("nodes", req.NodeCount),
	)
	err := c.api.StartDeployment(attemptCtx, req)

	c.mu.Lock()
	if c.snap.Attempt != attempt || attemptCtx.Err() != nil {
		c.mu.Unlock()
		cancel()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrSuperseded
	}
	if err != nil {
		c.failLocked(deployFailedPrefix+client.Detail(err), err)
		c.cancel = nil
		c.commitLocked()
		cancel()
		c.logger.Warn("deployment request failed", zap.Uint64("attempt", attempt), zap.Error(err))
		return err
	}

	c.snap.State = Polling
	c.snap.Status = StatusInitiated
	done := make(chan struct{})
	c.done = done
	c.commitLocked()

	go c.poll(attemptCtx, cancel, attempt, done)
	return nil
}

// Stop cancels the polling chain of the current attempt. The snapshot keeps
// its last value and no further updates are made for that attempt.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Wait blocks until the current polling chain ends or ctx is done, and
// returns the snapshot at that point.
func (c *Controller) Wait(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		}
	}
	return c.Snapshot(), nil
}

func (c *Controller) poll(ctx context.Context, cancel context.CancelFunc, attempt uint64, done chan struct{}) {
	defer close(done)
	defer cancel()

	for {
		status, err := c.api.GetProgress(ctx)
		if !c.applyPoll(ctx, attempt, status, err) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-c.after(c.interval):
		}
	}
}

// applyPoll records a poll outcome and reports whether another poll is due.
func (c *Controller) applyPoll(ctx context.Context, attempt uint64, status model.DeploymentStatus, err error) bool {
	c.mu.Lock()
	if ctx.Err() != nil || c.snap.Attempt != attempt {
		c.mu.Unlock()
		return false
	}

	if err != nil {
		c.failLocked(pollFailedPrefix+client.Detail(err), err)
		c.commitLocked()
		c.logger.Warn("progress request failed", zap.Uint64("attempt", attempt), zap.Error(err))
		return false
	}

	c.snap.Progress = status.Progress
	c.snap.Status = status.Status
	c.logger.PollResult(status.Progress, status.Status)

	if status.Done() {
		c.snap.State = Completed
		c.commitLocked()
		c.logger.Info("deployment completed", zap.Uint64("attempt", attempt))
		return false
	}

	c.snap.State = Polling
	c.commitLocked()
	return true
}

func (c *Controller) failLocked(status string, err error) {
	c.snap.State = Failed
	c.snap.Status = status
	c.snap.Err = err
}

func (c *Controller) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// commitLocked publishes the snapshot to listeners and releases c.mu.
// Deliveries older than one already made are dropped.
func (c *Controller) commitLocked() {
	c.version++
	version := c.version
	snap := c.snap
	listeners := make([]func(Snapshot), 0, len(c.listeners))
	for id := 0; id < c.nextID; id++ {
		if fn, ok := c.listeners[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	c.mu.Unlock()

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if version <= c.delivered {
		return
	}
	c.delivered = version
	for _, fn := range listeners {
		fn(snap)
	}
}
