package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cloud-deploy-dashboard/internal/metrics"
	"cloud-deploy-dashboard/internal/model"
	"cloud-deploy-dashboard/internal/pkg/logger"
	"cloud-deploy-dashboard/pkg/utils"
)

const StatusCompleted = "Deployment completed successfully"

// DefaultRetention is how long a finished deployment stays queryable once it
// is no longer its owner's latest.
const DefaultRetention = time.Hour

var (
	ErrNoDeployment = errors.New("deployment not found")
	ErrShuttingDown = errors.New("deployment service is shutting down")
)

// StepFunc runs one simulated step. It is called after the step's delay.
type StepFunc func(ctx context.Context, deploymentID string, step Step) error

type Step struct {
	Key  string
	Name string
}

// DeployService simulates the cloud provisioning workflow and tracks its
// progress per deployment and per owner.
type DeployService struct {
	logger       *logger.Logger
	metrics      *metrics.Metrics
	stepDuration time.Duration
	stepFunc     StepFunc
	retention    time.Duration
	now          func() time.Time
	// observe, when set, sees every status change under the lock.
	observe func(model.DeploymentStatus)

	mu          sync.Mutex
	deployments map[string]*deployment
	latest      map[string]string
	closed      bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type deployment struct {
	id         string
	owner      string
	req        model.DeploymentRequest
	status     model.DeploymentStatus
	failure    *utils.APIError
	done       bool
	startedAt  time.Time
	finishedAt time.Time
	watchers   map[chan struct{}]struct{}
}

type Option func(*DeployService)

// WithStepFunc installs a hook run for every step; a returned error fails
// the deployment at that step.
func WithStepFunc(fn StepFunc) Option {
	return func(s *DeployService) { s.stepFunc = fn }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *DeployService) { s.metrics = m }
}

// WithRetention sets how long finished deployments are kept. A deployment
// that is still its owner's latest is never evicted.
func WithRetention(d time.Duration) Option {
	return func(s *DeployService) { s.retention = d }
}

func NewDeployService(stepDuration time.Duration, logger *logger.Logger, opts ...Option) *DeployService {
	ctx, cancel := context.WithCancel(context.Background())
	s := &DeployService{
		logger:       logger,
		metrics:      metrics.New(),
		stepDuration: stepDuration,
		stepFunc:     func(context.Context, string, Step) error { return nil },
		retention:    DefaultRetention,
		now:          time.Now,
		deployments:  make(map[string]*deployment),
		latest:       make(map[string]string),
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Steps returns the workflow for req: purchase the managed cluster, wait
// for it, bring up each node, then deploy the application.
func Steps(req model.DeploymentRequest) []Step {
	var product string
	switch req.CloudProvider {
	case model.ProviderAliyun:
		product = "Alibaba Cloud ACK"
	case model.ProviderAWS:
		product = "AWS ECS"
	default:
		product = string(req.CloudProvider)
	}

	steps := []Step{
		{Key: "purchase", Name: fmt.Sprintf("Purchasing %s cluster %s", product, req.ClusterName)},
		{Key: "wait-ready", Name: "Waiting for cluster to become ready"},
	}
	for i := 1; i <= req.NodeCount; i++ {
		steps = append(steps, Step{
			Key:  "provision-node",
			Name: fmt.Sprintf("Provisioning node %d/%d", i, req.NodeCount),
		})
	}
	steps = append(steps, Step{Key: "deploy-app", Name: "Deploying application"})
	return steps
}

// Start validates req and launches the simulated workflow in the background.
func (s *DeployService) Start(owner string, req model.DeploymentRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", utils.NewValidationError("request", err.Error())
	}
	if err := utils.ValidateClusterName(req.ClusterName); err != nil {
		return "", utils.NewValidationError("clusterName", err.Error())
	}

	id := uuid.New().String()
	steps := Steps(req)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrShuttingDown
	}
	d := &deployment{
		id:    id,
		owner: owner,
		req:   req,
		status: model.DeploymentStatus{
			Progress:      0,
			Status:        "Deployment started",
			DeploymentID:  id,
			CloudProvider: req.CloudProvider,
			ClusterName:   req.ClusterName,
			Logs:          []string{"Deployment started"},
		},
		startedAt: s.now(),
		watchers:  make(map[chan struct{}]struct{}),
	}
	s.deployments[id] = d
	s.latest[owner] = id
	s.pruneLocked()
	s.wg.Add(1)
	s.mu.Unlock()

	s.metrics.DeploymentStarted(string(req.CloudProvider))
	s.logger.Info("deployment accepted",
		zap.String("deployment", id),
		zap.String("owner", owner),
		zap.String("provider", string(req.CloudProvider)),
		zap.String("cluster", req.ClusterName),
		zap.Int("nodes", req.NodeCount),
	)

	go s.run(d, steps)
	return id, nil
}

func (s *DeployService) run(d *deployment, steps []Step) {
	defer s.wg.Done()
	provider := string(d.req.CloudProvider)

	for i, step := range steps {
		s.update(d, func(st *model.DeploymentStatus) {
			st.Status = step.Name
			st.Logs = append(st.Logs, "Starting "+step.Name)
		})
		s.logger.DeploymentStep(d.id, step.Name)

		began := s.now()
		err := s.sleep(s.stepDuration)
		if err == nil {
			err = s.stepFunc(s.ctx, d.id, step)
		}
		s.metrics.ObserveStep(provider, step.Key, s.now().Sub(began).Seconds())

		if err != nil {
			if errors.Is(err, context.Canceled) {
				s.metrics.DeploymentFinished(provider, "cancelled")
				s.finish(d, nil, "Deployment cancelled")
				return
			}
			s.logger.DeploymentError(d.id, step.Name, err)
			s.metrics.DeploymentFinished(provider, "failed")
			s.finish(d, utils.NewDeployError(step.Key, err), fmt.Sprintf("Failed %s: %v", step.Name, err))
			return
		}

		if i == len(steps)-1 {
			break
		}
		progress := (i + 1) * 100 / len(steps)
		s.update(d, func(st *model.DeploymentStatus) {
			st.Progress = progress
			st.Logs = append(st.Logs, "Completed "+step.Name)
		})
	}

	s.metrics.DeploymentFinished(provider, "success")
	s.complete(d, steps[len(steps)-1])
	s.logger.DeploymentSuccess(d.id)
}

// complete records the last step and the terminal status in one update so
// no reader sees 100% without the completed status.
func (s *DeployService) complete(d *deployment, last Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.done = true
	d.finishedAt = s.now()
	d.status.Progress = 100
	d.status.Status = StatusCompleted
	d.status.Logs = append(d.status.Logs, "Completed "+last.Name, StatusCompleted)
	s.notifyLocked(d)
}

func (s *DeployService) sleep(d time.Duration) error {
	if d <= 0 {
		return s.ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *DeployService) update(d *deployment, fn func(*model.DeploymentStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&d.status)
	s.notifyLocked(d)
}

func (s *DeployService) finish(d *deployment, failure *utils.APIError, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.done = true
	d.finishedAt = s.now()
	d.failure = failure
	d.status.Logs = append(d.status.Logs, message)
	d.status.Status = message
	if failure != nil {
		d.status.Error = failure.Error()
	}
	s.notifyLocked(d)
}

func (s *DeployService) notifyLocked(d *deployment) {
	if s.observe != nil {
		s.observe(d.snapshotLocked())
	}
	for ch := range d.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Progress returns the status of deployment id, or of the owner's latest
// deployment when id is empty. A failed deployment yields its *utils.APIError.
func (s *DeployService) Progress(owner, id string) (model.DeploymentStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.lookupLocked(owner, id)
	if err != nil {
		return model.DeploymentStatus{}, err
	}
	status := d.snapshotLocked()
	if d.failure != nil {
		return status, d.failure
	}
	return status, nil
}

// Watch streams status changes of a deployment. The current status is sent
// first; the channel is closed after a terminal status or when ctx is done.
func (s *DeployService) Watch(ctx context.Context, owner, id string) (<-chan model.DeploymentStatus, error) {
	s.mu.Lock()
	d, err := s.lookupLocked(owner, id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	signal := make(chan struct{}, 1)
	signal <- struct{}{}
	d.watchers[signal] = struct{}{}
	s.mu.Unlock()

	out := make(chan model.DeploymentStatus)
	go func() {
		defer close(out)
		defer func() {
			s.mu.Lock()
			delete(d.watchers, signal)
			s.mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-signal:
			}

			s.mu.Lock()
			status, done := d.snapshotLocked(), d.done
			s.mu.Unlock()

			select {
			case out <- status:
			case <-ctx.Done():
				return
			}
			if done {
				return
			}
		}
	}()
	return out, nil
}

func (s *DeployService) lookupLocked(owner, id string) (*deployment, error) {
	if id == "" {
		latest, ok := s.latest[owner]
		if !ok {
			return nil, ErrNoDeployment
		}
		id = latest
	}
	d, ok := s.deployments[id]
	if !ok || d.owner != owner {
		return nil, ErrNoDeployment
	}
	return d, nil
}

// pruneLocked evicts finished deployments older than the retention period
// unless they are their owner's latest.
func (s *DeployService) pruneLocked() {
	if s.retention <= 0 {
		return
	}
	cutoff := s.now().Add(-s.retention)
	for id, d := range s.deployments {
		if !d.done || d.finishedAt.After(cutoff) || s.latest[d.owner] == id {
			continue
		}
		delete(s.deployments, id)
	}
}

func (d *deployment) snapshotLocked() model.DeploymentStatus {
	status := d.status
	status.Logs = append([]string(nil), d.status.Logs...)
	return status
}

// Shutdown cancels running simulations and waits for them to exit.
func (s *DeployService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
