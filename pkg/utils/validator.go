package utils

import (
	"fmt"
	"strconv"
	"strings"
)

const maxClusterNameLength = 63

// ValidateClusterName enforces DNS label rules: lowercase letters, digits
// and hyphens, at most 63 characters, no leading or trailing hyphen.
func ValidateClusterName(name string) error {
	if name == "" {
		return fmt.Errorf("cluster name must not be empty")
	}

	if len(name) > maxClusterNameLength {
		return fmt.Errorf("cluster name must not exceed %d characters", maxClusterNameLength)
	}

	for _, char := range name {
		if !((char >= 'a' && char <= 'z') || (char >= '0' && char <= '9') || char == '-') {
			return fmt.Errorf("cluster name may only contain lowercase letters, digits and hyphens: %s", name)
		}
	}

	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") {
		return fmt.Errorf("cluster name must not start or end with a hyphen: %s", name)
	}

	return nil
}

func ValidateNodeCount(count int) error {
	if count < 1 {
		return fmt.Errorf("node count must be at least 1: %d", count)
	}
	return nil
}

// ParseNodeCount parses the numeric node-count field.
func ParseNodeCount(input string) (int, error) {
	count, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return 0, fmt.Errorf("parse node count: %v", err)
	}

	if err := ValidateNodeCount(count); err != nil {
		return 0, err
	}

	return count, nil
}
