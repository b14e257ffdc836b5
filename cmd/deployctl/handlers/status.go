package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"cloud-deploy-dashboard/internal/client"
)

// Status prints the latest deployment status once.
func Status(ctx context.Context, opts *GlobalOptions, out io.Writer, jsonOutput bool) error {
	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer e.close()

	status, err := e.client.GetProgress(ctx)
	if err != nil {
		return fmt.Errorf("error checking deployment progress: %s", client.Detail(err))
	}

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	fmt.Fprintf(out, "%3d%% %s\n", status.Progress, status.Status)
	if status.DeploymentID != "" {
		fmt.Fprintf(out, "deployment: %s (%s, %s)\n", status.DeploymentID, status.CloudProvider.DisplayName(), status.ClusterName)
	}
	if status.Error != "" {
		fmt.Fprintf(out, "error: %s\n", status.Error)
	}
	return nil
}
