package wifi

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/captiveconfig/internal/logging"
)

// CommandRunner executes an external driver tool and returns its combined
// output. Tests substitute a canned runner.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s %s: %w (%s)", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

// IWScanner scans with `iw dev <iface> scan`. The scan runs in the
// background; callers poll ScanComplete.
type IWScanner struct {
	Interface string
	IWPath    string
	Run       CommandRunner

	mu       sync.Mutex
	running  bool
	done     bool
	err      error
	results  []AccessPoint
	cancel   context.CancelFunc
	finished chan struct{}
}

// NewIWScanner creates a scanner for the given wireless interface.
func NewIWScanner(iface string) *IWScanner {
	return &IWScanner{
		Interface: iface,
		IWPath:    "iw",
		Run:       ExecRunner,
	}
}

// StartScan launches a scan unless one is already in flight.
func (s *IWScanner) StartScan() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if s.Interface == "" {
		return fmt.Errorf("scan interface is empty")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.done = false
	s.err = nil
	s.results = nil
	s.cancel = cancel
	s.finished = make(chan struct{})

	go s.scan(ctx, s.finished)

	logging.Debug("Wi-Fi scan started", zap.String("interface", s.Interface))
	return nil
}

func (s *IWScanner) scan(ctx context.Context, finished chan struct{}) {
	defer close(finished)

	out, err := s.Run(ctx, s.IWPath, "dev", s.Interface, "scan")

	var results []AccessPoint
	if err == nil {
		results, err = ParseIWScan(out)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.done = true
	s.err = err
	s.results = results
}

// ScanComplete reports whether the last scan has finished. A driver error
// is returned once the scan has finished; the caller may StartScan again.
func (s *IWScanner) ScanComplete() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done, s.err
}

// ResultCount returns the number of networks from the last finished scan.
func (s *IWScanner) ResultCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

// Result returns the network at index from the last finished scan.
func (s *IWScanner) Result(index int) (AccessPoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.results) {
		return AccessPoint{}, false
	}
	return s.results[index], true
}

// Close aborts an in-flight scan and waits for the worker to exit.
func (s *IWScanner) Close() error {
	s.mu.Lock()
	cancel, finished := s.cancel, s.finished
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if finished != nil {
		<-finished
	}
	return nil
}

// ParseIWScan converts `iw dev <iface> scan` output into access points in
// the order iw printed them.
//
// Example input:
//
//	BSS 00:11:22:33:44:55(on wlan0)
//		capability: ESS Privacy ShortSlotTime (0x0411)
//		signal: -40.00 dBm
//		SSID: HomeNet
//		RSN:	 * Version: 1
//			 * Authentication suites: PSK
func ParseIWScan(out []byte) ([]AccessPoint, error) {
	var (
		results []AccessPoint
		current *bssBlock
	)

	flush := func() {
		if current != nil {
			results = append(results, current.accessPoint())
		}
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		raw := scanner.Text()
		line := strings.TrimSpace(raw)

		// New BSS blocks start at column 0
		if strings.HasPrefix(raw, "BSS ") {
			flush()
			current = &bssBlock{}
			continue
		}
		if current == nil {
			continue
		}

		switch {
		case strings.HasPrefix(line, "SSID:"):
			current.ssid = strings.TrimSpace(strings.TrimPrefix(line, "SSID:"))
		case strings.HasPrefix(line, "signal:"):
			current.rssi = parseSignal(strings.TrimPrefix(line, "signal:"))
		case strings.HasPrefix(line, "capability:"):
			current.privacy = strings.Contains(line, "Privacy")
		case strings.HasPrefix(line, "RSN:"):
			current.rsn = true
			current.section = "rsn"
		case strings.HasPrefix(line, "WPA:"):
			current.wpa = true
			current.section = "wpa"
		case strings.Contains(line, "Authentication suites:"):
			if current.section == "rsn" && strings.Contains(line, "SAE") {
				current.sae = true
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read iw scan output: %w", err)
	}
	flush()

	return results, nil
}

type bssBlock struct {
	ssid    string
	rssi    int
	privacy bool
	rsn     bool
	wpa     bool
	sae     bool
	section string
}

func (b *bssBlock) accessPoint() AccessPoint {
	security := SecurityOpen
	switch {
	case b.rsn && b.sae:
		security = SecurityWPA3
	case b.rsn:
		security = SecurityWPA2
	case b.wpa:
		security = SecurityWPA
	case b.privacy:
		security = SecurityWEP
	}
	return AccessPoint{
		SSID:     unescapeSSID(b.ssid),
		RSSI:     b.rssi,
		Security: security,
	}
}

// parseSignal turns " -40.00 dBm" into -40. Unparseable values rank last.
func parseSignal(s string) int {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "dBm"))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return -100
	}
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}

// unescapeSSID decodes the \xNN escapes iw prints for non-printable octets.
func unescapeSSID(s string) string {
	if !strings.Contains(s, `\x`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && s[i+1] == 'x' {
			if v, err := strconv.ParseUint(s[i+2:i+4], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
