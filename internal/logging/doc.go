// Package logging provides structured logging for the captive portal.
//
// This package wraps a global zap logger with convenience functions used by
// the portal state machine, the HTTP config endpoint and the DNS redirector.
//
// # Log Levels
//
//   - Debug: DNS answers, raw packet dumps, per-poll detail
//   - Info: phase transitions, HTTP requests, captured submissions
//   - Warn: rejected submissions, transient scan errors, poll errors
//   - Error: fatal session failures (soft-AP, listener bind)
//
// # Configuration
//
// Logging is silent unless a level is passed or CAPTIVECFG_LOG_LEVEL is set,
// so the terminal UI owns stdout by default. Log lines go to stderr.
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// The logging functions are safe for concurrent use. Initialize and
// SetLogger are expected to run once at start-up.
package logging
