package portal

import "fmt"

// State is the portal phase. Phases only move forward, one at a time:
//
//	Scanning → StartingWiFi → StartingHTTP → StartingDNS → Serving → Done
type State int

const (
	// StateScanning waits for the radio scan to finish and fills the catalog
	StateScanning State = iota
	// StateStartingWiFi brings up the open soft-AP at the portal address
	StateStartingWiFi
	// StateStartingHTTP registers the handlers and starts the config endpoint
	StateStartingHTTP
	// StateStartingDNS starts the redirector
	StateStartingDNS
	// StateServing polls HTTP and DNS until credentials are submitted
	StateServing
	// StateDone is terminal; credentials are available
	StateDone
)

// String returns the phase name used in logs, metrics and the UI
func (s State) String() string {
	switch s {
	case StateScanning:
		return "SCANNING"
	case StateStartingWiFi:
		return "STARTING_WIFI"
	case StateStartingHTTP:
		return "STARTING_HTTP"
	case StateStartingDNS:
		return "STARTING_DNS"
	case StateServing:
		return "SERVING"
	case StateDone:
		return "DONE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Description returns a short label for progress displays
func (s State) Description() string {
	switch s {
	case StateScanning:
		return "Scanning for networks"
	case StateStartingWiFi:
		return "Starting access point"
	case StateStartingHTTP:
		return "Starting config page"
	case StateStartingDNS:
		return "Starting DNS redirector"
	case StateServing:
		return "Waiting for credentials"
	case StateDone:
		return "Credentials received"
	default:
		return s.String()
	}
}

// next returns the following phase. Done is its own successor.
func (s State) next() State {
	if s >= StateDone {
		return StateDone
	}
	return s + 1
}

// States lists every phase in order.
func States() []State {
	return []State{
		StateScanning,
		StateStartingWiFi,
		StateStartingHTTP,
		StateStartingDNS,
		StateServing,
		StateDone,
	}
}
