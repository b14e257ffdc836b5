// Package ui renders the deployment form and the live progress view.
package ui

import (
	"context"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"cloud-deploy-dashboard/internal/model"
	"cloud-deploy-dashboard/pkg/utils"
)

// FormValues holds the raw form input. NodeCount stays a string so the
// numeric check happens in the form's validator.
type FormValues struct {
	Provider    string
	ClusterName string
	NodeCount   string
}

// NewFormValues seeds the form from a partial request.
func NewFormValues(req model.DeploymentRequest) *FormValues {
	v := &FormValues{
		Provider:    string(req.CloudProvider),
		ClusterName: req.ClusterName,
		NodeCount:   "1",
	}
	if v.Provider == "" {
		v.Provider = string(model.ProviderAliyun)
	}
	if req.NodeCount > 0 {
		v.NodeCount = strconv.Itoa(req.NodeCount)
	}
	return v
}

// Request converts the form input into a validated request.
func (v *FormValues) Request() (model.DeploymentRequest, error) {
	provider, err := model.ParseProvider(v.Provider)
	if err != nil {
		return model.DeploymentRequest{}, err
	}
	nodes, err := utils.ParseNodeCount(v.NodeCount)
	if err != nil {
		return model.DeploymentRequest{}, err
	}
	req := model.DeploymentRequest{
		CloudProvider: provider,
		ClusterName:   strings.TrimSpace(v.ClusterName),
		NodeCount:     nodes,
	}
	return req, req.Validate()
}

func providerOptions() []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(model.Providers))
	for _, p := range model.Providers {
		opts = append(opts, huh.NewOption(p.DisplayName(), string(p)))
	}
	return opts
}

// NewForm builds the deployment form bound to v.
func NewForm(v *FormValues) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Cloud Provider").
				Options(providerOptions()...).
				Value(&v.Provider),
			huh.NewInput().
				Title("Cluster Name").
				Description("Lowercase letters, digits and hyphens").
				Placeholder("my-cluster").
				Value(&v.ClusterName).
				Validate(func(s string) error {
					return utils.ValidateClusterName(strings.TrimSpace(s))
				}),
			huh.NewInput().
				Title("Node Count").
				Placeholder("1").
				Value(&v.NodeCount).
				Validate(func(s string) error {
					_, err := utils.ParseNodeCount(s)
					return err
				}),
		).Title("Deploy to Cloud"),
	)
}

// RunForm prompts for the deployment parameters, starting from req.
func RunForm(ctx context.Context, req model.DeploymentRequest) (model.DeploymentRequest, error) {
	v := NewFormValues(req)
	if err := NewForm(v).RunWithContext(ctx); err != nil {
		return model.DeploymentRequest{}, err
	}
	return v.Request()
}
