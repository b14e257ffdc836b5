package model

import (
	"errors"
	"fmt"
	"strings"
)

// DeploymentRequest is the body of POST /api/deploy-to-cloud.
type DeploymentRequest struct {
	CloudProvider CloudProvider `json:"cloudProvider" binding:"required,oneof=aliyun aws"`
	ClusterName   string        `json:"clusterName" binding:"required"`
	NodeCount     int           `json:"nodeCount" binding:"required,min=1"`
}

var (
	ErrClusterNameRequired = errors.New("cluster name is required")
	ErrInvalidNodeCount    = errors.New("node count must be a positive integer")
)

// Validate checks the request before it is dispatched.
func (r DeploymentRequest) Validate() error {
	if !r.CloudProvider.Valid() {
		return fmt.Errorf("unsupported cloud provider: %q", r.CloudProvider)
	}
	if strings.TrimSpace(r.ClusterName) == "" {
		return ErrClusterNameRequired
	}
	if r.NodeCount < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidNodeCount, r.NodeCount)
	}
	return nil
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}
