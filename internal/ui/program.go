package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/captiveconfig/internal/wifi"
)

// Printer writes UI components to a writer. Commands that do not run the
// interactive model print through it.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a Printer that writes to w, or os.Stdout when w is nil.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// Width returns the width used for boxes
func (p *Printer) Width() int {
	return p.width
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box followed by a blank line.
func (p *Printer) PrintHeader(h *Header) {
	p.Println(h.SetWidth(p.width).Render())
	p.Newline()
}

// PrintResult prints a result box preceded by a blank line.
func (p *Printer) PrintResult(r *Result) {
	p.Newline()
	p.Println(r.SetWidth(p.width).Render())
}

// PrintCatalog prints networks one per line, in the order given.
func (p *Printer) PrintCatalog(aps []wifi.AccessPoint) {
	p.Println(RenderCatalog(aps))
}

// RenderCatalog renders a network listing. Hidden networks show as <hidden>.
func RenderCatalog(aps []wifi.AccessPoint) string {
	if len(aps) == 0 {
		return NetworkMetaStyle.Render("  No networks found")
	}
	lines := make([]string, len(aps))
	for i, ap := range aps {
		ssid := ap.SSID
		if ssid == "" {
			ssid = "<hidden>"
		}
		meta := fmt.Sprintf("%4d dBm  %s", ap.RSSI, ap.Security)
		lines[i] = fmt.Sprintf("  %2d. ", i+1) + NetworkSSIDStyle.Render(ssid) + NetworkMetaStyle.Render(meta)
	}
	return strings.Join(lines, "\n")
}

// RunPortal runs the model as an inline bubbletea program writing to out
// and returns the final model state.
func RunPortal(m PortalModel, out io.Writer) (PortalModel, error) {
	if out == nil {
		out = os.Stdout
	}
	final, err := tea.NewProgram(m, tea.WithOutput(out)).Run()
	if err != nil {
		return m, fmt.Errorf("terminal UI: %w", err)
	}
	return final.(PortalModel), nil
}
