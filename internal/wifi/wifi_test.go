package wifi

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

const sampleIWScan = `BSS 00:11:22:33:44:55(on wlan0) -- associated
	TSF: 1234567 usec (0d, 00:00:01)
	freq: 2412
	beacon interval: 100 TUs
	capability: ESS Privacy ShortSlotTime (0x0411)
	signal: -40.00 dBm
	last seen: 10 ms ago
	SSID: HomeNet
	RSN:	 * Version: 1
		 * Group cipher: CCMP
		 * Pairwise ciphers: CCMP
		 * Authentication suites: PSK
BSS 66:77:88:99:aa:bb(on wlan0)
	capability: ESS ShortSlotTime (0x0401)
	signal: -70.00 dBm
	SSID: CoffeeShop
BSS 66:77:88:99:aa:cc(on wlan0)
	capability: ESS Privacy (0x0011)
	signal: -55.60 dBm
	SSID: Caf\xc3\xa9
	RSN:	 * Version: 1
		 * Authentication suites: SAE
BSS 66:77:88:99:aa:dd(on wlan0)
	capability: ESS Privacy (0x0011)
	signal: -80.00 dBm
	SSID: Legacy
	WPA:	 * Version: 1
		 * Authentication suites: PSK
BSS 66:77:88:99:aa:ee(on wlan0)
	capability: ESS Privacy (0x0011)
	signal: -85.00 dBm
	SSID: OldRouter
`

func TestParseIWScan(t *testing.T) {
	aps, err := ParseIWScan([]byte(sampleIWScan))
	if err != nil {
		t.Fatalf("ParseIWScan() error = %v", err)
	}

	want := []AccessPoint{
		{SSID: "HomeNet", RSSI: -40, Security: SecurityWPA2},
		{SSID: "CoffeeShop", RSSI: -70, Security: SecurityOpen},
		{SSID: "Café", RSSI: -56, Security: SecurityWPA3},
		{SSID: "Legacy", RSSI: -80, Security: SecurityWPA},
		{SSID: "OldRouter", RSSI: -85, Security: SecurityWEP},
	}

	if len(aps) != len(want) {
		t.Fatalf("got %d access points, want %d: %v", len(aps), len(want), aps)
	}
	for i := range want {
		if aps[i] != want[i] {
			t.Errorf("aps[%d] = %+v, want %+v", i, aps[i], want[i])
		}
	}
}

func TestParseIWScanEmpty(t *testing.T) {
	aps, err := ParseIWScan(nil)
	if err != nil {
		t.Fatalf("ParseIWScan(nil) error = %v", err)
	}
	if len(aps) != 0 {
		t.Errorf("got %d access points, want 0", len(aps))
	}
}

func TestParseSignal(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{" -40.00 dBm", -40},
		{"-55.60 dBm", -56},
		{"-55.40 dBm", -55},
		{"garbage", -100},
	}
	for _, tt := range tests {
		if got := parseSignal(tt.in); got != tt.want {
			t.Errorf("parseSignal(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestIWScannerLifecycle(t *testing.T) {
	release := make(chan struct{})
	var calls [][]string
	var mu sync.Mutex

	s := NewIWScanner("wlan0")
	s.Run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		mu.Lock()
		calls = append(calls, append([]string{name}, args...))
		mu.Unlock()
		<-release
		return []byte(sampleIWScan), nil
	}

	if err := s.StartScan(); err != nil {
		t.Fatalf("StartScan() error = %v", err)
	}
	// A second start while running is a no-op
	if err := s.StartScan(); err != nil {
		t.Fatalf("StartScan() second call error = %v", err)
	}

	if done, _ := s.ScanComplete(); done {
		t.Fatal("scan should not be complete before iw returns")
	}

	close(release)
	deadline := time.Now().Add(2 * time.Second)
	for {
		done, err := s.ScanComplete()
		if err != nil {
			t.Fatalf("ScanComplete() error = %v", err)
		}
		if done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("scan did not complete")
		}
		time.Sleep(time.Millisecond)
	}

	if s.ResultCount() != 5 {
		t.Errorf("ResultCount() = %d, want 5", s.ResultCount())
	}
	if ap, ok := s.Result(0); !ok || ap.SSID != "HomeNet" {
		t.Errorf("Result(0) = %+v, %v", ap, ok)
	}
	if _, ok := s.Result(5); ok {
		t.Error("Result(5) should be out of range")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 {
		t.Fatalf("iw invoked %d times, want 1", len(calls))
	}
	if got := strings.Join(calls[0], " "); got != "iw dev wlan0 scan" {
		t.Errorf("command = %q", got)
	}
}

func TestIWScannerDriverError(t *testing.T) {
	s := NewIWScanner("wlan0")
	s.Run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("device busy")
	}

	if err := s.StartScan(); err != nil {
		t.Fatalf("StartScan() error = %v", err)
	}
	_ = s.Close()

	done, err := s.ScanComplete()
	if !done || err == nil {
		t.Errorf("ScanComplete() = %v, %v; want done with error", done, err)
	}
}

func TestAPConfigValidate(t *testing.T) {
	valid := DefaultAPConfig("wlan0")
	if err := valid.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*APConfig)
	}{
		{"empty interface", func(c *APConfig) { c.Interface = "" }},
		{"empty ssid", func(c *APConfig) { c.SSID = "" }},
		{"long ssid", func(c *APConfig) { c.SSID = strings.Repeat("x", 33) }},
		{"channel 0", func(c *APConfig) { c.Channel = 0 }},
		{"ipv6 address", func(c *APConfig) { c.Address = net.ParseIP("fe80::1") }},
		{"prefix 31", func(c *APConfig) { c.PrefixLen = 31 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultAPConfig("wlan0")
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}

// waitAPStarted polls ap until its bring-up has finished.
func waitAPStarted(t *testing.T, ap *HostapdAP) error {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		up, err := ap.APStarted()
		if up || err != nil {
			return err
		}
		if time.Now().After(deadline) {
			t.Fatal("soft-AP bring-up did not finish")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHostapdAPStartStop(t *testing.T) {
	dir := t.TempDir()
	var calls []string

	ap := NewHostapdAP()
	ap.WorkDir = dir
	ap.Run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, name+" "+strings.Join(args, " "))
		return nil, nil
	}

	if err := ap.StartAP(DefaultAPConfig("wlan0")); err != nil {
		t.Fatalf("StartAP() error = %v", err)
	}
	if err := waitAPStarted(t, ap); err != nil {
		t.Fatalf("APStarted() error = %v", err)
	}

	conf, err := os.ReadFile(filepath.Join(dir, "hostapd.conf"))
	if err != nil {
		t.Fatalf("hostapd.conf not written: %v", err)
	}
	for _, want := range []string{"interface=wlan0", "ssid=captive-config", "channel=6", "wpa=0"} {
		if !strings.Contains(string(conf), want) {
			t.Errorf("hostapd.conf missing %q", want)
		}
	}

	wantCalls := []string{
		"ip addr flush dev wlan0",
		"ip addr add 192.168.1.1/24 dev wlan0",
		"ip link set wlan0 up",
		"hostapd -B -P " + filepath.Join(dir, "hostapd.pid") + " " + filepath.Join(dir, "hostapd.conf"),
	}
	if len(calls) != len(wantCalls) {
		t.Fatalf("calls = %v", calls)
	}
	for i := range wantCalls {
		if calls[i] != wantCalls[i] {
			t.Errorf("call %d = %q, want %q", i, calls[i], wantCalls[i])
		}
	}

	if err := ap.StartAP(DefaultAPConfig("wlan0")); err == nil {
		t.Error("second StartAP() should fail while running")
	}

	if err := ap.StopAP(); err != nil {
		t.Fatalf("StopAP() error = %v", err)
	}
	if err := ap.StopAP(); err != nil {
		t.Fatalf("StopAP() on stopped AP error = %v", err)
	}
}

func TestHostapdAPStartFailure(t *testing.T) {
	ap := NewHostapdAP()
	ap.WorkDir = t.TempDir()
	ap.Run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if name == "hostapd" {
			return nil, errors.New("nl80211: Could not configure driver mode")
		}
		return nil, nil
	}

	if err := ap.StartAP(DefaultAPConfig("wlan0")); err != nil {
		t.Fatalf("StartAP() error = %v, want failure reported by APStarted", err)
	}
	err := waitAPStarted(t, ap)
	if err == nil || !strings.Contains(err.Error(), "hostapd failed to start") {
		t.Fatalf("APStarted() error = %v, want hostapd failure", err)
	}
	if _, statErr := os.Stat(filepath.Join(ap.WorkDir, "hostapd.conf")); !os.IsNotExist(statErr) {
		t.Error("hostapd.conf should be removed after a failed start")
	}
	if err := ap.StartAP(DefaultAPConfig("wlan0")); err != nil {
		t.Errorf("StartAP() after a failed bring-up error = %v", err)
	}
	_ = ap.StopAP()
}

func TestHostapdAPStartDoesNotWait(t *testing.T) {
	ap := NewHostapdAP()
	ap.WorkDir = t.TempDir()
	ap.Run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	start := time.Now()
	if err := ap.StartAP(DefaultAPConfig("wlan0")); err != nil {
		t.Fatalf("StartAP() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("StartAP() waited %v for the driver", elapsed)
	}
	if up, err := ap.APStarted(); up || err != nil {
		t.Errorf("APStarted() = %v, %v while ip is still running", up, err)
	}

	// StopAP aborts the bring-up in flight
	if err := ap.StopAP(); err != nil {
		t.Fatalf("StopAP() error = %v", err)
	}
	if up, err := ap.APStarted(); !up || err == nil {
		t.Errorf("APStarted() after abort = %v, %v; want finished with error", up, err)
	}
}

func TestHostapdAPStartTimeout(t *testing.T) {
	ap := NewHostapdAP()
	ap.WorkDir = t.TempDir()
	ap.StartTimeout = 20 * time.Millisecond
	ap.Run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if name == "hostapd" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return nil, nil
	}

	if err := ap.StartAP(DefaultAPConfig("wlan0")); err != nil {
		t.Fatalf("StartAP() error = %v", err)
	}
	if err := waitAPStarted(t, ap); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("APStarted() error = %v, want deadline exceeded", err)
	}
}

func TestMockAPBringUp(t *testing.T) {
	m := &MockAP{PollsUntilUp: 2}
	if err := m.StartAP(DefaultAPConfig("wlan0")); err != nil {
		t.Fatalf("StartAP() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if up, _ := m.APStarted(); up {
			t.Fatalf("poll %d: up too early", i)
		}
	}
	if up, err := m.APStarted(); !up || err != nil || !m.Running() {
		t.Fatalf("third poll = %v, %v; want up", up, err)
	}

	failing := &MockAP{Err: errors.New("driver mode")}
	_ = failing.StartAP(DefaultAPConfig("wlan0"))
	if up, err := failing.APStarted(); !up || err == nil || failing.Running() {
		t.Errorf("failing APStarted() = %v, %v", up, err)
	}
}

func TestMockScannerPolls(t *testing.T) {
	m := NewMockScanner(2, DemoNetworks()...)

	if done, _ := m.ScanComplete(); done {
		t.Fatal("mock should not complete before StartScan")
	}
	_ = m.StartScan()
	for i := 0; i < 2; i++ {
		if done, _ := m.ScanComplete(); done {
			t.Fatalf("poll %d: complete too early", i)
		}
	}
	if done, err := m.ScanComplete(); !done || err != nil {
		t.Fatalf("third poll = %v, %v; want complete", done, err)
	}
	if m.ResultCount() != len(DemoNetworks()) {
		t.Errorf("ResultCount() = %d", m.ResultCount())
	}
}

func TestSecurityKindString(t *testing.T) {
	if SecurityWPA2.String() != "WPA2" || SecurityOpen.String() != "OPEN" || SecurityKind(99).String() != "UNKNOWN" {
		t.Error("unexpected SecurityKind labels")
	}
	if !SecurityOpen.IsOpen() || SecurityWEP.IsOpen() {
		t.Error("IsOpen() mismatch")
	}
	if got := (AccessPoint{RSSI: -81, Security: SecurityWPA2}).String(); got != "<hidden> (-81 dBm, WPA2)" {
		t.Errorf("String() = %q", got)
	}
}
