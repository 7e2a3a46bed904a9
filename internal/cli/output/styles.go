package output

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/leapstack-labs/leapmeta/pkg/core"
)

// Styles holds the lipgloss styles used in text mode.
type Styles struct {
	Header   lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Info     lipgloss.Style
	EntityID lipgloss.Style

	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
	StatusRunning lipgloss.Style
}

// NewStyles creates styles bound to a lipgloss renderer.
func NewStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Bold:     r.NewStyle().Bold(true),
		Muted:    r.NewStyle().Foreground(lipgloss.Color("8")),
		Success:  r.NewStyle().Foreground(lipgloss.Color("10")),
		Warning:  r.NewStyle().Foreground(lipgloss.Color("11")),
		Error:    r.NewStyle().Foreground(lipgloss.Color("9")),
		Info:     r.NewStyle().Foreground(lipgloss.Color("14")),
		EntityID: r.NewStyle().Foreground(lipgloss.Color("13")),

		StatusSuccess: r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		StatusFailed:  r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		StatusRunning: r.NewStyle().Foreground(lipgloss.Color("11")),
	}
}

// Severity returns the style for a diagnostic severity.
func (s *Styles) Severity(sev core.Severity) lipgloss.Style {
	switch sev {
	case core.SeverityError:
		return s.Error
	case core.SeverityWarning:
		return s.Warning
	case core.SeverityInfo:
		return s.Info
	default:
		return s.Muted
	}
}

// Status returns the style for a run status.
func (s *Styles) Status(status core.RunStatus) lipgloss.Style {
	switch status {
	case core.RunStatusCompleted:
		return s.StatusSuccess
	case core.RunStatusFailed:
		return s.StatusFailed
	case core.RunStatusDegraded:
		return s.Warning
	default:
		return s.StatusRunning
	}
}
