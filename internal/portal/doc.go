// Package portal implements the captive-portal session: a polled state
// machine that scans for networks, brings up an open soft-AP, starts the
// config page and DNS redirector, and waits for the user to submit Wi-Fi
// credentials.
//
// # State Machine
//
// A Session moves strictly forward through
//
//	SCANNING → STARTING_WIFI → STARTING_HTTP → STARTING_DNS → SERVING → DONE
//
// Each call to Progress does at most one phase of work and returns; it
// returns true once the session is in DONE and keeps returning true after
// that. Scan failures are transient and restart the scan on the next call.
// A soft-AP, HTTP or DNS start-up failure is fatal: the session stays in its
// phase, Failed reports true and Err returns a *portal.Error describing it.
// The embedder decides whether to Close and start over.
//
// # Registry
//
// HTTP handlers are registered without a session reference. They look the
// live session up in a Registry, which holds exactly one. NewSession fails
// with ErrTypeSessionActive while the slot is taken, Close releases it, and
// a request arriving with an empty slot gets 503 Service Unavailable.
// Binaries use DefaultRegistry; tests use NewRegistry.
//
// # Endpoints
//
//   - GET /             config page: ranked network list, hidden-network field, passphrase
//   - POST /            credential submission (form fields ssid, passphrase, hidden_ssid)
//   - GET /?ssid=...    submission by query string
//   - anything else     config page, so OS connectivity probes land on it
//
// Invalid submissions re-serve the form with a message and do not advance
// the session.
//
// # Usage Example
//
//	s, err := portal.NewSession(portal.SessionConfig{Interface: "wlan0"}, portal.Services{
//	    Scanner: wifi.NewIWScanner("wlan0"),
//	    SoftAP:  wifi.NewHostapdAP(),
//	    HTTP:    server.New(server.DefaultConfig("192.168.1.1")),
//	    DNS:     dnsredirect.New(dnsredirect.DefaultConfig(wifi.DefaultPortalIP)),
//	})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	for !s.Progress() {
//	    if s.Failed() {
//	        return s.Err()
//	    }
//	    doOtherWork()
//	}
//	creds, _ := s.Config()
package portal
