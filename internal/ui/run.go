package ui

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"cloud-deploy-dashboard/internal/controller"
	"cloud-deploy-dashboard/internal/model"
)

// ErrAborted is returned when the user leaves the view mid-deployment.
var ErrAborted = errors.New("deployment view closed before completion")

// Deployer is the part of the controller the views drive.
type Deployer interface {
	Subscribe(fn func(controller.Snapshot)) (unsubscribe func())
	Deploy(ctx context.Context, req model.DeploymentRequest) error
	Wait(ctx context.Context) (controller.Snapshot, error)
	Snapshot() controller.Snapshot
	Stop()
}

// Run starts a deployment and shows it in a Bubble Tea program until it
// completes, fails or the user quits.
func Run(ctx context.Context, d Deployer, req model.DeploymentRequest, opts ...tea.ProgramOption) error {
	p := tea.NewProgram(NewModel(req), append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)...)

	unsubscribe := d.Subscribe(func(s controller.Snapshot) {
		p.Send(SnapshotMsg(s))
	})
	defer unsubscribe()

	go func() {
		// Failures surface through the Failed snapshot.
		_ = d.Deploy(ctx, req)
	}()

	final, err := p.Run()
	d.Stop()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	fm := final.(Model)
	if fm.Aborted {
		return ErrAborted
	}
	return resultError(fm.Snapshot)
}

// RunPlain starts a deployment and writes one line to w per status change.
func RunPlain(ctx context.Context, w io.Writer, d Deployer, req model.DeploymentRequest) error {
	var last controller.Snapshot
	unsubscribe := d.Subscribe(func(s controller.Snapshot) {
		if s.State == last.State && s.Progress == last.Progress && s.Status == last.Status {
			return
		}
		last = s
		fmt.Fprintln(w, FormatSnapshot(s))
	})
	defer unsubscribe()

	if err := d.Deploy(ctx, req); err != nil {
		if snap := d.Snapshot(); snap.State == controller.Failed {
			return resultError(snap)
		}
		return err
	}

	snap, err := d.Wait(ctx)
	if err != nil {
		d.Stop()
		return err
	}
	return resultError(snap)
}

// FormatSnapshot renders s as a single line.
func FormatSnapshot(s controller.Snapshot) string {
	return fmt.Sprintf("[%-9s] %3d%% %s", s.State, s.Progress, s.Status)
}

// FailedError reports a deployment that ended in the Failed state. Its
// message is the status line shown to the user.
type FailedError struct {
	Status string
	Err    error
}

func (e *FailedError) Error() string { return e.Status }

func (e *FailedError) Unwrap() error { return e.Err }

func resultError(s controller.Snapshot) error {
	if s.State != controller.Failed {
		return nil
	}
	return &FailedError{Status: s.Status, Err: s.Err}
}
