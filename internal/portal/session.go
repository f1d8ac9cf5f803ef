package portal

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muurk/captiveconfig/internal/logging"
	"github.com/muurk/captiveconfig/internal/telemetry"
	"github.com/muurk/captiveconfig/internal/wifi"
)

// Scanner is the radio's scan half.
type Scanner interface {
	StartScan() error
	ScanComplete() (bool, error)
	ResultCount() int
	Result(index int) (wifi.AccessPoint, bool)
}

// SoftAP is the radio's access-point half. StartAP only launches the
// bring-up; APStarted reports when it has finished and how.
type SoftAP interface {
	StartAP(cfg wifi.APConfig) error
	APStarted() (bool, error)
	StopAP() error
}

// HTTPService is a polled HTTP server. Poll serves at most one request.
type HTTPService interface {
	Handle(method, path string, h http.HandlerFunc)
	HandleNotFound(h http.HandlerFunc)
	Start() error
	Poll() (bool, error)
	Stop() error
}

// DNSService is a polled DNS server. Poll answers at most one query.
type DNSService interface {
	Start() error
	Poll() (bool, error)
	Stop() error
}

// Services are the collaborators a session starts, polls and stops.
type Services struct {
	Scanner Scanner
	SoftAP  SoftAP
	HTTP    HTTPService
	DNS     DNSService
}

// SessionConfig holds the session configuration
type SessionConfig struct {
	// ID tags the session's log lines. Empty means a random UUID.
	ID string

	Interface       string
	PortalIP        net.IP
	APSSID          string
	Channel         int
	CatalogCapacity int

	// Registry routes HTTP callbacks to the session. Nil means DefaultRegistry.
	Registry *Registry

	// OnTransition, if set, is called after every phase change, outside
	// the session lock.
	OnTransition func(from, to State)
}

// Session drives one captive-portal run. Call Progress repeatedly until it
// returns true, then read Config and Close the session.
type Session struct {
	config   SessionConfig
	services Services
	registry *Registry

	// step serializes Progress and Close
	step        sync.Mutex
	scanStarted bool
	apStarting  bool

	// mu guards the fields below; handlers take it during Progress
	mu      sync.Mutex
	state   State
	catalog *Catalog
	creds   *Credentials
	err     *Error
	closed  bool
}

// NewSession validates the configuration and claims the registry slot.
func NewSession(config SessionConfig, services Services) (*Session, error) {
	if services.Scanner == nil || services.SoftAP == nil || services.HTTP == nil || services.DNS == nil {
		return nil, NewValidationError("scanner, soft-AP, HTTP and DNS services are all required")
	}
	if config.PortalIP == nil {
		config.PortalIP = wifi.DefaultPortalIP
	}
	if config.APSSID == "" {
		config.APSSID = wifi.DefaultAPSSID
	}
	if config.Channel == 0 {
		config.Channel = wifi.DefaultChannel
	}
	if config.Registry == nil {
		config.Registry = DefaultRegistry
	}
	if config.ID == "" {
		config.ID = uuid.New().String()
	}
	if config.PortalIP.To4() == nil {
		return nil, NewValidationError(fmt.Sprintf("portal address must be IPv4, got %v", config.PortalIP))
	}

	s := &Session{
		config:   config,
		services: services,
		registry: config.Registry,
		state:    StateScanning,
		catalog:  NewCatalog(config.CatalogCapacity),
	}
	if err := s.registry.attach(s); err != nil {
		return nil, err
	}

	logging.Info("Portal session created",
		zap.String("session_id", config.ID),
		zap.String("interface", config.Interface),
		zap.String("portal_ip", config.PortalIP.String()),
		zap.String("ap_ssid", config.APSSID),
		zap.Int("catalog_capacity", s.catalog.Cap()),
	)
	return s, nil
}

// Progress advances the session by at most one phase and returns true once
// credentials have been captured. It never blocks beyond the services' own
// poll windows. After a fatal start-up error it keeps returning false and
// Failed reports true.
func (s *Session) Progress() bool {
	s.step.Lock()
	defer s.step.Unlock()

	s.mu.Lock()
	state, failed, closed := s.state, s.err != nil, s.closed
	s.mu.Unlock()

	if state == StateDone {
		return true
	}
	if failed || closed {
		return false
	}

	switch state {
	case StateScanning:
		s.stepScanning()
	case StateStartingWiFi:
		s.stepStartingWiFi()
	case StateStartingHTTP:
		s.stepStartingHTTP()
	case StateStartingDNS:
		s.stepStartingDNS()
	case StateServing:
		s.stepServing()
	}

	return s.State() == StateDone
}

func (s *Session) stepScanning() {
	if !s.scanStarted {
		if err := s.services.Scanner.StartScan(); err != nil {
			logging.Warn("Failed to start Wi-Fi scan, retrying",
				zap.Error(NewScanError("scan did not start", err)))
			return
		}
		s.scanStarted = true
	}

	done, err := s.services.Scanner.ScanComplete()
	if !done {
		return
	}
	s.scanStarted = false
	if err != nil {
		logging.Warn("Wi-Fi scan failed, restarting",
			zap.Error(NewScanError("scan did not complete", err)))
		return
	}

	count := s.services.Scanner.ResultCount()
	found := make([]wifi.AccessPoint, 0, count)
	for i := 0; i < count; i++ {
		if ap, ok := s.services.Scanner.Result(i); ok {
			found = append(found, ap)
		}
	}

	s.mu.Lock()
	dropped := s.catalog.Fill(found)
	listed := s.catalog.Len()
	s.mu.Unlock()

	telemetry.CatalogSize.Set(float64(listed))
	logging.Info("Wi-Fi scan complete",
		zap.Int("found", len(found)),
		zap.Int("listed", listed),
		zap.Int("dropped", dropped),
	)

	s.transition(StateScanning, StateStartingWiFi)
}

func (s *Session) stepStartingWiFi() {
	if !s.apStarting {
		cfg := wifi.APConfig{
			Interface: s.config.Interface,
			SSID:      s.config.APSSID,
			Channel:   s.config.Channel,
			Address:   s.config.PortalIP,
			PrefixLen: wifi.DefaultPrefixLen,
		}
		if err := s.services.SoftAP.StartAP(cfg); err != nil {
			s.fail(NewAccessPointError(fmt.Sprintf("failed to start soft-AP %q", cfg.SSID), err))
			return
		}
		s.apStarting = true
	}

	up, err := s.services.SoftAP.APStarted()
	if !up && err == nil {
		return
	}
	s.apStarting = false
	if err != nil {
		s.fail(NewAccessPointError(fmt.Sprintf("failed to start soft-AP %q", s.config.APSSID), err))
		return
	}
	s.transition(StateStartingWiFi, StateStartingHTTP)
}

func (s *Session) stepStartingHTTP() {
	h := s.services.HTTP
	h.Handle(http.MethodGet, "/", ConfigPageHandler(s.registry))
	h.Handle(http.MethodPost, "/", SubmitHandler(s.registry))
	h.HandleNotFound(ConfigPageHandler(s.registry))

	if err := h.Start(); err != nil {
		s.fail(NewHTTPError("failed to start config page server", err))
		return
	}
	s.transition(StateStartingHTTP, StateStartingDNS)
}

func (s *Session) stepStartingDNS() {
	if err := s.services.DNS.Start(); err != nil {
		s.fail(NewDNSError("failed to start DNS redirector", err))
		return
	}
	s.transition(StateStartingDNS, StateServing)
}

func (s *Session) stepServing() {
	if _, err := s.services.HTTP.Poll(); err != nil {
		logging.Warn("HTTP poll failed", zap.Error(err))
	}
	if _, err := s.services.DNS.Poll(); err != nil {
		logging.Warn("DNS poll failed", zap.Error(err))
	}

	s.mu.Lock()
	captured := s.creds != nil
	s.mu.Unlock()

	if captured {
		s.transition(StateServing, StateDone)
	}
}

func (s *Session) transition(from, to State) {
	s.mu.Lock()
	if s.state != from || to != from.next() {
		s.mu.Unlock()
		logging.Error("Refusing out-of-order state transition",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		return
	}
	s.state = to
	s.mu.Unlock()

	logging.LogStateTransition(from.String(), to.String())
	telemetry.StateTransitions.WithLabelValues(from.String(), to.String()).Inc()

	if s.config.OnTransition != nil {
		s.config.OnTransition(from, to)
	}
}

func (s *Session) fail(err *Error) {
	s.mu.Lock()
	s.err = err
	state := s.state
	s.mu.Unlock()

	telemetry.SessionFailures.WithLabelValues(err.Type.String()).Inc()
	logging.Error("Portal session failed",
		zap.String("session_id", s.config.ID),
		zap.String("state", state.String()),
		zap.Error(err),
	)
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.config.ID
}

// State returns the current phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the fatal start-up error, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		return nil
	}
	return s.err
}

// Failed reports whether a fatal start-up error stopped the session.
func (s *Session) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err != nil
}

// Catalog returns a copy of the listed networks, strongest first.
func (s *Session) Catalog() []wifi.AccessPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.All()
}

// Config returns the captured credentials. Before Done it returns an
// ErrTypeNotReady error.
func (s *Session) Config() (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDone || s.creds == nil {
		return Credentials{}, NewNotReadyError(s.state)
	}
	return *s.creds, nil
}

// submit validates and stores credentials.
func (s *Session) submit(creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDone {
		return NewValidationError("credentials were already received")
	}
	if s.state != StateServing {
		return NewNotReadyError(s.state)
	}
	if err := ValidateCredentials(creds, s.catalog); err != nil {
		return err
	}
	c := creds
	s.creds = &c
	return nil
}

// Close stops DNS, HTTP and the soft-AP, clears the catalog and releases
// the registry slot. Safe to call more than once.
func (s *Session) Close() error {
	s.step.Lock()
	defer s.step.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.catalog.Reset()
	s.mu.Unlock()

	s.registry.detach(s)

	var errs []error
	if err := s.services.DNS.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop DNS: %w", err))
	}
	if err := s.services.HTTP.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop HTTP: %w", err))
	}
	if err := s.services.SoftAP.StopAP(); err != nil {
		errs = append(errs, fmt.Errorf("stop soft-AP: %w", err))
	}

	logging.Info("Portal session closed",
		zap.String("session_id", s.config.ID),
		zap.String("state", s.State().String()),
	)
	return errors.Join(errs...)
}
