package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/captiveconfig/internal/portal"
	"github.com/muurk/captiveconfig/internal/wifi"
)

// ErrTimeout is returned by PortalModel.Err when the deadline passes first.
var ErrTimeout = errors.New("timed out waiting for credentials")

// Driver is the part of a portal session the model drives.
type Driver interface {
	Progress() bool
	State() portal.State
	Failed() bool
	Err() error
	Catalog() []wifi.AccessPoint
}

type tickMsg time.Time

// PortalModel drives a session from bubbletea's event loop: every tick calls
// Progress once, then the phase list and catalog are redrawn. It quits on
// Done, on failure, on the deadline or on ctrl+c.
type PortalModel struct {
	driver   Driver
	interval time.Duration
	deadline time.Time

	header   *Header
	progress *Progress
	spinner  spinner.Model
	catalog  []wifi.AccessPoint
	portal   string

	done        bool
	interrupted bool
	err         error
}

// NewPortalModel creates the model. A zero interval means 10ms; a zero
// deadline means no timeout. portalURL is shown while serving.
func NewPortalModel(d Driver, header *Header, interval time.Duration, deadline time.Time, portalURL string) PortalModel {
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return PortalModel{
		driver:   d,
		interval: interval,
		deadline: deadline,
		header:   header,
		progress: NewProgress(),
		spinner:  s,
		portal:   portalURL,
	}
}

func (m PortalModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model
func (m PortalModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.tick())
}

// Update implements tea.Model
func (m PortalModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		finished := m.driver.Progress()
		m.sync()
		switch {
		case finished:
			m.done = true
			return m, tea.Quit
		case m.driver.Failed():
			m.err = m.driver.Err()
			return m, tea.Quit
		case !m.deadline.IsZero() && !time.Time(msg).Before(m.deadline):
			m.err = ErrTimeout
			return m, tea.Quit
		}
		return m, m.tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.interrupted = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		w := clampWidth(msg.Width)
		m.progress.SetWidth(w)
		if m.header != nil {
			m.header.SetWidth(w)
		}
	}
	return m, nil
}

func (m *PortalModel) sync() {
	state := m.driver.State()
	m.progress.SetState(state, m.driver.Failed())
	if state > portal.StateScanning && m.catalog == nil {
		m.catalog = m.driver.Catalog()
		m.progress.SetNote(portal.StateScanning, fmt.Sprintf("%d networks", len(m.catalog)))
	}
}

// View implements tea.Model
func (m PortalModel) View() string {
	var b strings.Builder
	if m.header != nil {
		b.WriteString(m.header.Render())
		b.WriteString("\n\n")
	}
	b.WriteString(m.progress.Render())
	b.WriteString("\n")

	if m.catalog != nil {
		b.WriteString("\n")
		b.WriteString(RenderCatalog(m.catalog))
		b.WriteString("\n")
	}

	if !m.done && m.err == nil && !m.interrupted {
		status := m.driver.State().Description()
		if m.driver.State() == portal.StateServing && m.portal != "" {
			status += " at " + m.portal
		}
		b.WriteString("\n  " + m.spinner.View() + " " + status + "\n")
	}
	return b.String()
}

// Done reports whether credentials were captured.
func (m PortalModel) Done() bool { return m.done }

// Interrupted reports whether the user quit before the session finished.
func (m PortalModel) Interrupted() bool { return m.interrupted }

// Err returns the session failure or ErrTimeout.
func (m PortalModel) Err() error { return m.err }
