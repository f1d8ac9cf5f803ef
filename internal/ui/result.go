package ui

import (
	"fmt"
	"strings"

	"github.com/muurk/captiveconfig/internal/portal"
)

// ResultType indicates success or failure
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
)

// Result is the box printed when a command finishes.
type Result struct {
	Type            ResultType
	Title           string
	Details         []Param
	Error           error
	Troubleshooting []string
	Width           int
}

// NewSuccessResult creates a success result box
func NewSuccessResult(title string, details ...Param) *Result {
	return &Result{
		Type:    ResultSuccess,
		Title:   title,
		Details: details,
		Width:   GetTerminalWidth(),
	}
}

// NewFailureResult creates a failure result box
func NewFailureResult(title string, err error, troubleshooting ...string) *Result {
	return &Result{
		Type:            ResultFailure,
		Title:           title,
		Error:           err,
		Troubleshooting: troubleshooting,
		Width:           GetTerminalWidth(),
	}
}

// NewCredentialsResult reports captured credentials. The passphrase is
// masked unless showSecret is set.
func NewCredentialsResult(creds portal.Credentials, showSecret bool) *Result {
	security := "open"
	pass := "(none)"
	if !creds.IsOpen() {
		security = "passphrase"
		pass = strings.Repeat("•", len(creds.Passphrase))
		if showSecret {
			pass = creds.Passphrase
		}
	}
	return NewSuccessResult("Credentials received",
		Param{Key: "SSID", Value: creds.SSID},
		Param{Key: "Security", Value: security},
		Param{Key: "Passphrase", Value: pass},
	)
}

// NewSessionFailureResult reports a failed portal session with the hint
// that matches its error type.
func NewSessionFailureResult(err error) *Result {
	return NewFailureResult(portal.GetShortErrorMessage(err), err, hintTips(portal.GetTroubleshootingHint(err))...)
}

// hintTips splits a multi-line troubleshooting hint into bullet items.
func hintTips(hint string) []string {
	var tips []string
	for _, line := range strings.Split(hint, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimPrefix(line, "•"))
		if line == "" || line == "Troubleshooting:" {
			continue
		}
		tips = append(tips, line)
	}
	return tips
}

// SetWidth sets the terminal width for responsive rendering
func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

// Render returns the styled result box as a string
func (r *Result) Render() string {
	width := r.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}
	if r.Type == ResultFailure {
		return ErrorBoxStyle(width).Render(r.failureContent(width))
	}
	return SuccessBoxStyle(width).Render(r.successContent())
}

func (r *Result) successContent() string {
	lines := []string{
		"",
		SuccessTitleStyle.Render(fmt.Sprintf("   %s  SUCCESS  ─  %s", SuccessMarker, r.Title)),
		"",
	}
	for _, d := range r.Details {
		lines = append(lines, ResultKeyStyle.Render("   "+d.Key+":")+" "+ResultValueStyle.Render(d.Value))
	}
	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func (r *Result) failureContent(width int) string {
	lines := []string{
		"",
		ErrorTitleStyle.Render(fmt.Sprintf("   %s  FAILED  ─  %s", FailureMarker, r.Title)),
		"",
	}
	if r.Error != nil {
		lines = append(lines, ErrorMessageStyle.Render("   Error: "+r.Error.Error()), "")
	}
	if len(r.Troubleshooting) > 0 {
		tips := []string{TroubleshootingTitleStyle.Render("Troubleshooting:"), ""}
		for _, tip := range r.Troubleshooting {
			tips = append(tips, TroubleshootingItemStyle.Render("  • "+tip))
		}
		lines = append(lines, TroubleshootingBoxStyle(width).Render(strings.Join(tips, "\n")), "")
	}
	return strings.Join(lines, "\n")
}

// String implements fmt.Stringer
func (r *Result) String() string {
	return r.Render()
}
