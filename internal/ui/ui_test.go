package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/captiveconfig/internal/portal"
	"github.com/muurk/captiveconfig/internal/wifi"
)

// fakeDriver advances one phase per Progress call.
type fakeDriver struct {
	state   portal.State
	failAt  portal.State
	failErr error
	failed  bool
	calls   int
}

func (d *fakeDriver) Progress() bool {
	d.calls++
	if d.state == portal.StateDone {
		return true
	}
	if d.failErr != nil && d.state == d.failAt {
		d.failed = true
		return false
	}
	if d.state < portal.StateServing {
		d.state++
		return false
	}
	if d.calls > 8 {
		d.state = portal.StateDone
	}
	return d.state == portal.StateDone
}

func (d *fakeDriver) State() portal.State { return d.state }
func (d *fakeDriver) Failed() bool { return d.failed }
func (d *fakeDriver) Err() error {
	if d.failed {
		return d.failErr
	}
	return nil
}
func (d *fakeDriver) Catalog() []wifi.AccessPoint { return wifi.DemoNetworks() }

func drive(t *testing.T, m PortalModel, max int) PortalModel {
	t.Helper()
	for i := 0; i < max; i++ {
		next, _ := m.Update(tickMsg(time.Now()))
		m = next.(PortalModel)
		if m.Done() || m.Err() != nil {
			return m
		}
	}
	return m
}

func TestPortalModelRunsToDone(t *testing.T) {
	d := &fakeDriver{}
	m := NewPortalModel(d, NewHeader("Captive Portal", "captive-config run"), time.Millisecond, time.Time{}, "http://192.168.1.1/")

	m = drive(t, m, 50)
	if !m.Done() {
		t.Fatalf("model did not finish, state %v", d.state)
	}
	if m.Err() != nil {
		t.Errorf("Err() = %v", m.Err())
	}
	for _, step := range m.progress.Steps {
		if step.Status != StepComplete {
			t.Errorf("step %q status = %v, want complete", step.Name, step.Status)
		}
	}
	if len(m.catalog) != len(wifi.DemoNetworks()) {
		t.Errorf("catalog has %d entries", len(m.catalog))
	}
	if !strings.Contains(m.progress.Steps[0].Message, "networks") {
		t.Errorf("scan step note = %q", m.progress.Steps[0].Message)
	}
}

func TestPortalModelServingView(t *testing.T) {
	d := &fakeDriver{}
	m := NewPortalModel(d, nil, time.Millisecond, time.Time{}, "http://192.168.1.1/")
	for d.state != portal.StateServing {
		next, _ := m.Update(tickMsg(time.Now()))
		m = next.(PortalModel)
	}

	view := m.View()
	for _, want := range []string{"Waiting for credentials at http://192.168.1.1/", "Scanning for networks", "HomeNet"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestPortalModelFailure(t *testing.T) {
	apErr := portal.NewAccessPointError("failed to start soft-AP", errors.New("driver does not support AP mode"))
	d := &fakeDriver{failAt: portal.StateStartingWiFi, failErr: apErr}
	m := NewPortalModel(d, nil, time.Millisecond, time.Time{}, "")

	m = drive(t, m, 20)
	if m.Done() {
		t.Fatal("model should not be done")
	}
	if !portal.IsAccessPointError(m.Err()) {
		t.Fatalf("Err() = %v, want access point error", m.Err())
	}
	if got := m.progress.Steps[portal.StateStartingWiFi].Status; got != StepFailed {
		t.Errorf("soft-AP step status = %v, want failed", got)
	}
}

func TestPortalModelDeadline(t *testing.T) {
	d := &fakeDriver{}
	m := NewPortalModel(d, nil, time.Millisecond, time.Now().Add(-time.Second), "")

	next, _ := m.Update(tickMsg(time.Now()))
	m = next.(PortalModel)
	if !errors.Is(m.Err(), ErrTimeout) {
		t.Errorf("Err() = %v, want ErrTimeout", m.Err())
	}
}

func TestPortalModelInterrupt(t *testing.T) {
	m := NewPortalModel(&fakeDriver{}, nil, 0, time.Time{}, "")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(PortalModel)
	if !m.Interrupted() || cmd == nil {
		t.Error("ctrl+c should interrupt and quit")
	}
}

func TestProgressSetState(t *testing.T) {
	p := NewProgress()
	if len(p.Steps) != 5 {
		t.Fatalf("got %d steps, want 5", len(p.Steps))
	}

	p.SetState(portal.StateStartingHTTP, false)
	want := []StepStatus{StepComplete, StepComplete, StepRunning, StepPending, StepPending}
	for i, s := range want {
		if p.Steps[i].Status != s {
			t.Errorf("step %d status = %v, want %v", i, p.Steps[i].Status, s)
		}
	}
	if p.Percent != 0.4 {
		t.Errorf("Percent = %v, want 0.4", p.Percent)
	}

	p.SetState(portal.StateDone, false)
	if p.Percent != 1 {
		t.Errorf("Percent at Done = %v", p.Percent)
	}
}

func TestPhaseReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewPhaseReporter(NewPrinter(&buf))

	r.Note(portal.StateScanning, "3 networks")
	r.OnTransition(portal.StateScanning, portal.StateStartingWiFi)
	r.Fail(portal.StateStartingWiFi)

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "[1/5]") || !strings.Contains(lines[0], "(3 networks)") || !strings.Contains(lines[0], StepMarkerComplete) {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "Starting access point") || !strings.Contains(lines[1], FailureMarker) {
		t.Errorf("second line = %q", lines[1])
	}
}

func TestCredentialsResult(t *testing.T) {
	creds := portal.Credentials{SSID: "HomeNet", Passphrase: "hunter22"}

	masked := NewCredentialsResult(creds, false).SetWidth(80).Render()
	if !strings.Contains(masked, "HomeNet") || strings.Contains(masked, "hunter22") {
		t.Errorf("masked result:\n%s", masked)
	}

	shown := NewCredentialsResult(creds, true).SetWidth(80).Render()
	if !strings.Contains(shown, "hunter22") {
		t.Errorf("result with secret:\n%s", shown)
	}

	open := NewCredentialsResult(portal.Credentials{SSID: "CoffeeShop"}, false).SetWidth(80).Render()
	if !strings.Contains(open, "open") {
		t.Errorf("open result:\n%s", open)
	}
}

func TestSessionFailureResult(t *testing.T) {
	err := portal.NewDNSError("failed to start DNS redirector", errors.New("address already in use"))
	r := NewSessionFailureResult(err)

	if r.Title != "Could not start the DNS redirector" {
		t.Errorf("Title = %q", r.Title)
	}
	for _, tip := range r.Troubleshooting {
		if strings.HasPrefix(tip, "•") || tip == "Troubleshooting:" {
			t.Errorf("tip not cleaned: %q", tip)
		}
	}
	out := r.SetWidth(100).Render()
	if !strings.Contains(out, "FAILED") || !strings.Contains(out, "port 53") {
		t.Errorf("Render():\n%s", out)
	}
}

func TestRenderCatalog(t *testing.T) {
	out := RenderCatalog([]wifi.AccessPoint{
		{SSID: "HomeNet", RSSI: -40, Security: wifi.SecurityWPA2},
		{RSSI: -81, Security: wifi.SecurityOpen},
	})
	for _, want := range []string{"1.", "HomeNet", "-40 dBm", "WPA2", "<hidden>", "OPEN"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderCatalog() missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(RenderCatalog(nil), "No networks found") {
		t.Error("empty catalog message missing")
	}
}

func TestHeaderRender(t *testing.T) {
	h := NewHeader("Captive Portal", "captive-config run",
		Param{Key: "Interface", Value: "wlan0"},
		Param{Key: "SSID", Value: "captive-config"},
	).SetWidth(80)

	out := h.Render()
	for _, want := range []string{"CAPTIVE PORTAL", "captive-config run", "wlan0"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q", want)
		}
	}
	if strings.Index(out, "Interface") > strings.Index(out, "SSID:") {
		t.Error("params not rendered in order")
	}
}
