package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"cloud-deploy-dashboard/internal/controller"
	"cloud-deploy-dashboard/internal/model"
)

const (
	defaultBarWidth = 50
	maxBarWidth     = 80
)

// SnapshotMsg carries a controller snapshot into the program.
type SnapshotMsg controller.Snapshot

// Model is the Bubble Tea model of the progress view.
type Model struct {
	Request  model.DeploymentRequest
	Snapshot controller.Snapshot

	// Aborted is set when the user quit before a terminal state.
	Aborted bool

	bar     progress.Model
	spinner spinner.Model
	width   int
}

func NewModel(req model.DeploymentRequest) Model {
	return Model{
		Request: req,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(defaultBarWidth)),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(activeStyle)),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.Snapshot.State.Terminal() {
				m.Aborted = true
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(max(msg.Width-8, 10), maxBarWidth)

	case SnapshotMsg:
		m.Snapshot = controller.Snapshot(msg)
		if m.Snapshot.State.Terminal() {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// Percent is the bar fill in [0, 1]. Values above 100 render as full.
func (m Model) Percent() float64 {
	p := float64(m.Snapshot.Progress) / 100
	return min(max(p, 0), 1)
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Deploying %s", m.Request.ClusterName)))
	b.WriteString("\n")
	b.WriteString(subtitleStyle.Render(fmt.Sprintf("%s · %d node(s)",
		m.Request.CloudProvider.DisplayName(), m.Request.NodeCount)))
	b.WriteString("\n\n")

	b.WriteString(m.statusLine())
	b.WriteString("\n\n")
	b.WriteString(m.bar.ViewAs(m.Percent()))
	b.WriteString(fmt.Sprintf(" %3d%%", m.Snapshot.Progress))
	b.WriteString("\n")
	b.WriteString(footerStyle.Render("q: quit"))

	return boxStyle.Render(b.String()) + "\n"
}

func (m Model) statusLine() string {
	status := m.Snapshot.Status
	switch m.Snapshot.State {
	case controller.Completed:
		return doneStyle.Render("✓ " + status)
	case controller.Failed:
		return failedStyle.Render("✗ " + status)
	case controller.Idle:
		return subtitleStyle.Render("Waiting to start...")
	default:
		return m.spinner.View() + " " + status
	}
}
