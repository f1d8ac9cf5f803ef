package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/captiveconfig/internal/portal"
)

// StepStatus represents the current state of a step
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepComplete
	StepFailed
)

// Step is one line of the phase list.
type Step struct {
	Number  int
	Name    string
	Status  StepStatus
	Message string // optional note, e.g. "12 networks"
}

// Progress is a bar plus a step list, one step per portal phase before Done.
type Progress struct {
	Steps   []Step
	Percent float64
	Width   int
	ShowBar bool
	bar     progress.Model
}

// PhaseSteps are the portal phases shown as steps.
func PhaseSteps() []portal.State {
	states := portal.States()
	return states[:len(states)-1]
}

// NewProgress creates a progress display for the portal phases.
func NewProgress() *Progress {
	phases := PhaseSteps()
	steps := make([]Step, len(phases))
	for i, s := range phases {
		steps[i] = Step{Number: i + 1, Name: s.Description()}
	}

	p := &Progress{Steps: steps, ShowBar: true}
	p.SetWidth(GetTerminalWidth())
	return p
}

// SetWidth sets the terminal width and resizes the bar.
func (p *Progress) SetWidth(width int) *Progress {
	p.Width = width
	barWidth := width - 20
	if barWidth < 20 {
		barWidth = 20
	}
	if barWidth > 50 {
		barWidth = 50
	}
	p.bar = progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
	)
	return p
}

// SetState marks every phase before state complete and state itself as
// running, or failed when failed is true. StateDone completes every step.
func (p *Progress) SetState(state portal.State, failed bool) {
	completed := 0
	for i := range p.Steps {
		phase := portal.State(i)
		switch {
		case phase < state:
			p.Steps[i].Status = StepComplete
			completed++
		case phase == state && failed:
			p.Steps[i].Status = StepFailed
		case phase == state:
			p.Steps[i].Status = StepRunning
		default:
			p.Steps[i].Status = StepPending
		}
	}
	p.Percent = float64(completed) / float64(len(p.Steps))
}

// SetNote attaches a note to the step for state.
func (p *Progress) SetNote(state portal.State, note string) {
	if i := int(state); i >= 0 && i < len(p.Steps) {
		p.Steps[i].Message = note
	}
}

// Render returns the bar and the step list.
func (p *Progress) Render() string {
	var b strings.Builder
	if p.ShowBar {
		b.WriteString(p.renderBar())
		b.WriteString("\n\n")
	}
	lines := make([]string, len(p.Steps))
	for i, step := range p.Steps {
		lines[i] = p.RenderStep(step)
	}
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}

func (p *Progress) renderBar() string {
	done := 0
	for _, s := range p.Steps {
		if s.Status == StepComplete {
			done++
		}
	}
	return lipgloss.NewStyle().
		PaddingLeft(2).
		Render(fmt.Sprintf("%s  %3.0f%%  [%d/%d]", p.bar.ViewAs(p.Percent), p.Percent*100, done, len(p.Steps)))
}

// RenderStep renders a single "[n/N] name  marker (note)" line.
func (p *Progress) RenderStep(step Step) string {
	var marker string
	var style lipgloss.Style
	switch step.Status {
	case StepComplete:
		marker, style = StepMarkerComplete, StepCompleteStyle
	case StepRunning:
		marker, style = StepMarkerRunning, StepRunningStyle
	case StepFailed:
		marker, style = FailureMarker, ErrorTitleStyle
	default:
		marker, style = StepMarkerPending, StepPendingStyle
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  [%d/%d] ", step.Number, len(p.Steps))
	b.WriteString(style.Render(step.Name))

	padding := 30 - lipgloss.Width(step.Name)
	if padding < 1 {
		padding = 1
	}
	b.WriteString(strings.Repeat(" ", padding))
	b.WriteString(style.Render(marker))

	if step.Message != "" {
		b.WriteString("  ")
		b.WriteString(StepNoteStyle.Render("(" + step.Message + ")"))
	}
	return b.String()
}

// String implements fmt.Stringer
func (p *Progress) String() string {
	return p.Render()
}
