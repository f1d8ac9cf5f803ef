package ui

import (
	"github.com/muurk/captiveconfig/internal/portal"
)

// PhaseReporter prints one step line per finished phase. It is the
// non-interactive counterpart of PortalModel and is fed from a session's
// OnTransition hook.
type PhaseReporter struct {
	printer  *Printer
	progress *Progress
}

// NewPhaseReporter creates a reporter that prints through p.
func NewPhaseReporter(p *Printer) *PhaseReporter {
	prog := NewProgress()
	prog.ShowBar = false
	return &PhaseReporter{printer: p, progress: prog}
}

// Note attaches a note to the step for state. It shows when that step's
// line is printed.
func (r *PhaseReporter) Note(state portal.State, note string) {
	r.progress.SetNote(state, note)
}

// OnTransition prints the step that just completed.
func (r *PhaseReporter) OnTransition(from, to portal.State) {
	r.progress.SetState(to, false)
	if i := int(from); i < len(r.progress.Steps) {
		r.printer.Println(r.progress.RenderStep(r.progress.Steps[i]))
	}
}

// Fail prints the step for state as failed.
func (r *PhaseReporter) Fail(state portal.State) {
	r.progress.SetState(state, true)
	if i := int(state); i >= 0 && i < len(r.progress.Steps) {
		r.printer.Println(r.progress.RenderStep(r.progress.Steps[i]))
	}
}
