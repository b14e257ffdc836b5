package model

import "cloud-deploy-dashboard/pkg/utils"

// DeploymentStatus is the body of GET /api/deployment-progress. Only
// Progress and Status are required by clients; the rest is informational.
type DeploymentStatus struct {
	Progress      int           `json:"progress"`
	Status        string        `json:"status"`
	DeploymentID  string        `json:"deploymentId,omitempty"`
	CloudProvider CloudProvider `json:"cloudProvider,omitempty"`
	ClusterName   string        `json:"clusterName,omitempty"`
	Logs          []string      `json:"logs,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// Done reports whether the deployment reached 100%.
func (s DeploymentStatus) Done() bool {
	return s.Progress >= 100
}

type DeployResponse struct {
	Success      bool   `json:"success"`
	DeploymentID string `json:"deploymentId,omitempty"`
	Message      string `json:"message,omitempty"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// NewErrorResponse wraps an API error in the response envelope.
func NewErrorResponse(err *utils.APIError) ErrorResponse {
	return ErrorResponse{
		Success: false,
		Code:    err.Code,
		Message: err.Message,
		Details: err.Details,
	}
}
