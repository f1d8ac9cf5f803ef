// Package ui renders captive-config's terminal output with Bubble Tea and
// Lipgloss.
//
// Components:
//
//   - Header: command banner with ordered parameters
//   - Progress: bar and step list, one step per portal phase
//   - Result: success box (captured credentials) or failure box with
//     troubleshooting tips derived from the portal error type
//   - PortalModel: a Bubble Tea model that calls Session.Progress on every
//     tick and redraws the phases, the network catalog and a spinner
//   - PhaseReporter: prints one line per finished phase for plain output
//
// # Logging Integration
//
// zap logging stays silent unless CAPTIVECFG_LOG_LEVEL is set, so log lines
// do not interleave with the rendered output.
package ui
