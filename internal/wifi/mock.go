package wifi

import (
	"fmt"
	"sync"
)

// MockScanner is an in-memory scanner for --mock runs and tests. The scan
// reports complete after PollsUntilComplete calls to ScanComplete.
type MockScanner struct {
	Networks           []AccessPoint
	PollsUntilComplete int
	StartErr           error
	ScanErr            error

	mu      sync.Mutex
	started bool
	polls   int
	starts  int
}

// NewMockScanner returns a scanner that yields networks after polls polls.
func NewMockScanner(polls int, networks ...AccessPoint) *MockScanner {
	return &MockScanner{Networks: networks, PollsUntilComplete: polls}
}

// StartScan begins a simulated scan.
func (m *MockScanner) StartScan() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	if m.StartErr != nil {
		return m.StartErr
	}
	m.started = true
	m.polls = 0
	return nil
}

// ScanComplete counts polls and reports completion once enough have passed.
func (m *MockScanner) ScanComplete() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return false, nil
	}
	m.polls++
	if m.polls <= m.PollsUntilComplete {
		return false, nil
	}
	if m.ScanErr != nil {
		err := m.ScanErr
		m.ScanErr = nil
		m.started = false
		return true, err
	}
	return true, nil
}

// ResultCount returns the number of simulated networks.
func (m *MockScanner) ResultCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Networks)
}

// Result returns the simulated network at index.
func (m *MockScanner) Result(index int) (AccessPoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.Networks) {
		return AccessPoint{}, false
	}
	return m.Networks[index], true
}

// Starts returns how many times StartScan was called.
func (m *MockScanner) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// MockAP records soft-AP calls without touching the radio. The bring-up
// finishes after PollsUntilUp calls to APStarted and then fails with Err,
// if set.
type MockAP struct {
	Err          error
	PollsUntilUp int

	mu       sync.Mutex
	starting bool
	running  bool
	failed   error
	polls    int
	starts   int
	stops    int
	last     APConfig
}

// StartAP records cfg and begins a simulated bring-up.
func (m *MockAP) StartAP(cfg APConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	if err := cfg.Validate(); err != nil {
		return err
	}
	if m.starting || m.running {
		return fmt.Errorf("soft-AP already running on %s", m.last.Interface)
	}
	m.starting = true
	m.failed = nil
	m.polls = 0
	m.last = cfg
	return nil
}

// APStarted counts polls and finishes the bring-up once enough have passed.
func (m *MockAP) APStarted() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.starting {
		m.polls++
		if m.polls <= m.PollsUntilUp {
			return false, nil
		}
		m.starting = false
		m.failed = m.Err
		m.running = m.Err == nil
	}
	if m.failed != nil {
		return true, m.failed
	}
	return m.running, nil
}

// StopAP marks the AP stopped.
func (m *MockAP) StopAP() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		m.stops++
	}
	m.running = false
	m.starting = false
	return nil
}

// Running reports whether a bring-up succeeded without a later StopAP.
func (m *MockAP) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Starts returns how many times StartAP was called.
func (m *MockAP) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Stops returns how many running APs were stopped.
func (m *MockAP) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// LastConfig returns the configuration of the last accepted StartAP.
func (m *MockAP) LastConfig() APConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// DemoNetworks is the network list used by --mock runs.
func DemoNetworks() []AccessPoint {
	return []AccessPoint{
		{SSID: "HomeNet", RSSI: -42, Security: SecurityWPA2},
		{SSID: "CoffeeShop", RSSI: -67, Security: SecurityOpen},
		{SSID: "Neighbour-5G", RSSI: -78, Security: SecurityWPA3},
		{SSID: "PrinterSetup", RSSI: -55, Security: SecurityWPA},
		{SSID: "", RSSI: -81, Security: SecurityWPA2},
	}
}
