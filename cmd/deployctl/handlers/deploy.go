package handlers

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"cloud-deploy-dashboard/internal/controller"
	"cloud-deploy-dashboard/internal/model"
	"cloud-deploy-dashboard/internal/ui"
)

// DeployOptions are the flags of the deploy command. Zero values mean
// "ask in the form".
type DeployOptions struct {
	Provider     string
	ClusterName  string
	NodeCount    int
	PollInterval time.Duration
	Plain        bool
}

func (o DeployOptions) complete() bool {
	return o.Provider != "" && o.ClusterName != "" && o.NodeCount > 0
}

func (o DeployOptions) request() (model.DeploymentRequest, error) {
	req := model.DeploymentRequest{ClusterName: o.ClusterName, NodeCount: o.NodeCount}
	if o.Provider != "" {
		p, err := model.ParseProvider(o.Provider)
		if err != nil {
			return model.DeploymentRequest{}, err
		}
		req.CloudProvider = p
	}
	return req, nil
}

// Deploy starts a deployment and follows it until it reaches a terminal state.
func Deploy(ctx context.Context, opts *GlobalOptions, out io.Writer, d DeployOptions) error {
	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer e.close()

	req, err := d.request()
	if err != nil {
		return err
	}
	if !d.complete() {
		if d.Plain {
			return fmt.Errorf("--provider, --cluster and --nodes are required with --plain")
		}
		if req, err = ui.RunForm(ctx, req); err != nil {
			return err
		}
	}

	interval := e.cfg.Client.PollInterval
	if d.PollInterval > 0 {
		interval = d.PollInterval
	}
	ctrl := controller.New(e.client,
		controller.WithPollInterval(interval),
		controller.WithLogger(e.logger),
	)

	if d.Plain {
		return ui.RunPlain(ctx, out, ctrl, req)
	}
	return ui.Run(ctx, ctrl, req, tea.WithOutput(out))
}
