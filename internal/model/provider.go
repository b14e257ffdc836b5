package model

import "fmt"

// CloudProvider identifies the cloud a cluster is deployed to.
type CloudProvider string

const (
	ProviderAliyun CloudProvider = "aliyun"
	ProviderAWS    CloudProvider = "aws"
)

// Providers lists every supported provider in display order.
var Providers = []CloudProvider{ProviderAliyun, ProviderAWS}

// DisplayName returns the label shown in the provider selector.
func (p CloudProvider) DisplayName() string {
	switch p {
	case ProviderAliyun:
		return "Alibaba Cloud"
	case ProviderAWS:
		return "Amazon Web Services"
	default:
		return string(p)
	}
}

func (p CloudProvider) Valid() bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}

// ParseProvider converts user input into a CloudProvider.
func ParseProvider(s string) (CloudProvider, error) {
	p := CloudProvider(s)
	if !p.Valid() {
		return "", fmt.Errorf("unsupported cloud provider: %q", s)
	}
	return p, nil
}
