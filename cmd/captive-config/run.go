package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/muurk/captiveconfig/internal/config"
	"github.com/muurk/captiveconfig/internal/discovery"
	"github.com/muurk/captiveconfig/internal/dnsredirect"
	"github.com/muurk/captiveconfig/internal/logging"
	"github.com/muurk/captiveconfig/internal/portal"
	"github.com/muurk/captiveconfig/internal/server"
	"github.com/muurk/captiveconfig/internal/telemetry"
	"github.com/muurk/captiveconfig/internal/ui"
	"github.com/muurk/captiveconfig/internal/version"
	"github.com/muurk/captiveconfig/internal/wifi"
)

// Ports used by --mock unless overridden, so no privileges are needed.
const (
	mockHTTPPort = 8080
	mockDNSPort  = 8053
	mockPolls    = 20
)

// Run command flags
var (
	useTUI         bool
	useMock        bool
	runTimeout     time.Duration
	outputFormat   string
	showPassphrase bool
	noAdvertise    bool

	flagInterface   string
	flagSSID        string
	flagChannel     int
	flagPortalIP    string
	flagHTTPPort    int
	flagDNSPort     int
	flagMetricsAddr string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the captive portal until credentials are submitted",
	Long: `Run the captive portal.

The portal moves through these phases, one per poll:
  1. Scan for nearby networks
  2. Start the open soft-AP
  3. Start the config page (HTTP)
  4. Start the DNS redirector
  5. Serve until a network and passphrase are submitted

The captured SSID and passphrase are then written to stdout and the
access point is torn down. Exit status is 1 if any start-up phase fails
or the timeout passes.

Binding ports 53 and 80 and driving the radio need root or the
CAP_NET_ADMIN and CAP_NET_BIND_SERVICE capabilities. --mock simulates the
radio and serves on 127.0.0.1:8080 (DNS on 8053) instead.`,
	Example: `  # Run on wlan0 with defaults from the config file
  sudo captive-config run

  # Interactive progress display, give up after 10 minutes
  sudo captive-config run --tui --timeout 10m

  # Machine-readable output for a provisioning script
  sudo captive-config run --format json > /run/wifi.json

  # Try the page locally without a radio
  captive-config run --mock --tui`,
	RunE: runPortal,
}

func init() {
	f := runCmd.Flags()
	f.BoolVar(&useTUI, "tui", false, "Interactive progress display")
	f.BoolVar(&useMock, "mock", false, "Simulate the radio and serve on localhost")
	f.DurationVar(&runTimeout, "timeout", 0, "Give up after this long (0 = wait forever)")
	f.StringVar(&outputFormat, "format", "text", "Output format (text, json, yaml)")
	f.BoolVar(&showPassphrase, "show-passphrase", false, "Print the passphrase in text output")
	f.BoolVar(&noAdvertise, "no-advertise", false, "Do not announce the portal over mDNS")

	f.StringVar(&flagInterface, "interface", "", "Wireless interface")
	f.StringVar(&flagSSID, "ssid", "", "Soft-AP network name")
	f.IntVar(&flagChannel, "channel", 0, "Soft-AP channel (1-14)")
	f.StringVar(&flagPortalIP, "portal-ip", "", "Device address on the soft-AP")
	f.IntVar(&flagHTTPPort, "http-port", 0, "Config page port")
	f.IntVar(&flagDNSPort, "dns-port", 0, "DNS redirector port")
	f.StringVar(&flagMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	rootCmd.AddCommand(runCmd)
}

// applyRunFlags overrides file values with flags the user set.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if useMock {
		cfg.HTTPPort, cfg.DNSPort = mockHTTPPort, mockDNSPort
	}
	if f.Changed("interface") {
		cfg.Interface = flagInterface
	}
	if f.Changed("ssid") {
		cfg.APSSID = flagSSID
	}
	if f.Changed("channel") {
		cfg.APChannel = flagChannel
	}
	if f.Changed("portal-ip") {
		cfg.PortalIP = flagPortalIP
	}
	if f.Changed("http-port") {
		cfg.HTTPPort = flagHTTPPort
	}
	if f.Changed("dns-port") {
		cfg.DNSPort = flagDNSPort
	}
	if f.Changed("metrics-addr") {
		cfg.MetricsAddr = flagMetricsAddr
	}
	if noAdvertise || useMock {
		cfg.Advertise = false
	}
	return cfg.Validate()
}

// radio bundles the services handed to the session with the scanner to
// close on exit.
type radio struct {
	services portal.Services
	host     string
	closer   io.Closer
}

func buildServices(cfg *config.Config, mock bool) radio {
	r := radio{host: cfg.PortalIP}

	if mock {
		r.host = "127.0.0.1"
		r.services.Scanner = wifi.NewMockScanner(mockPolls, wifi.DemoNetworks()...)
		r.services.SoftAP = &wifi.MockAP{PollsUntilUp: mockPolls / 4}
	} else {
		scanner := wifi.NewIWScanner(cfg.Interface)
		if cfg.IWPath != "" {
			scanner.IWPath = cfg.IWPath
		}
		ap := wifi.NewHostapdAP()
		if cfg.HostapdPath != "" {
			ap.HostapdPath = cfg.HostapdPath
		}
		if cfg.IPPath != "" {
			ap.IPPath = cfg.IPPath
		}
		r.services.Scanner = scanner
		r.services.SoftAP = ap
		r.closer = scanner
	}

	httpCfg := server.DefaultConfig(r.host)
	httpCfg.Port = cfg.HTTPPort
	r.services.HTTP = server.New(httpCfg)

	// Every name resolves to wherever the config page is served
	answer := cfg.PortalAddr()
	if mock {
		answer = net.ParseIP(r.host)
	}
	dnsCfg := dnsredirect.DefaultConfig(answer)
	dnsCfg.Addr = net.JoinHostPort(r.host, strconv.Itoa(cfg.DNSPort))
	r.services.DNS = dnsredirect.New(dnsCfg)

	return r
}

func portalURL(host string, port int) string {
	if port == 80 {
		return "http://" + host + "/"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/"
}

// serveMetrics exposes the Prometheus registry on addr in the background.
func serveMetrics(addr string) *http.Server {
	telemetry.InitMetrics()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Warn("Metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logging.Info("Serving metrics", zap.String("addr", addr))
	return srv
}

func runPortal(cmd *cobra.Command, args []string) error {
	switch outputFormat {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown --format %q (want text, json or yaml)", outputFormat)
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	if cfg.MetricsAddr != "" {
		metrics := serveMetrics(cfg.MetricsAddr)
		defer func() { _ = metrics.Close() }()
	}

	r := buildServices(cfg, useMock)
	if r.closer != nil {
		defer func() { _ = r.closer.Close() }()
	}

	// Progress output goes to stderr when stdout carries machine-readable data
	uiOut := cmd.OutOrStdout()
	if outputFormat != "text" {
		uiOut = cmd.ErrOrStderr()
	}
	printer := ui.NewPrinter(uiOut)
	reporter := ui.NewPhaseReporter(printer)
	url := portalURL(r.host, cfg.HTTPPort)
	sessionID := uuid.New().String()

	var adv *discovery.Advertiser
	if cfg.Advertise {
		adv = discovery.NewAdvertiser(discovery.AdvertiserConfig{
			Instance:  cfg.APSSID,
			PortalIP:  cfg.PortalAddr(),
			Port:      cfg.HTTPPort,
			Interface: cfg.Interface,
			Version:   version.Version,
			SessionID: sessionID,
		})
		defer adv.Stop()
	}

	var session *portal.Session
	onTransition := func(from, to portal.State) {
		if from == portal.StateScanning && session != nil {
			reporter.Note(portal.StateScanning, fmt.Sprintf("%d networks", len(session.Catalog())))
		}
		if !useTUI {
			reporter.OnTransition(from, to)
		}
		switch to {
		case portal.StateServing:
			if adv != nil {
				if err := adv.Start(); err != nil {
					logging.Warn("mDNS advertisement disabled", zap.Error(err))
				}
			}
		case portal.StateDone:
			if adv != nil {
				adv.Stop()
			}
		}
	}

	session, err = portal.NewSession(portal.SessionConfig{
		ID:              sessionID,
		Interface:       cfg.Interface,
		PortalIP:        cfg.PortalAddr(),
		APSSID:          cfg.APSSID,
		Channel:         cfg.APChannel,
		CatalogCapacity: cfg.CatalogCapacity,
		OnTransition:    onTransition,
	}, r.services)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			logging.Warn("Portal teardown incomplete", zap.Error(err))
		}
	}()

	header := ui.NewHeader("Captive Portal", "captive-config run",
		ui.Param{Key: "Interface", Value: cfg.Interface},
		ui.Param{Key: "Access point", Value: fmt.Sprintf("%s (channel %d)", cfg.APSSID, cfg.APChannel)},
		ui.Param{Key: "Config page", Value: url},
		ui.Param{Key: "Session", Value: sessionID[:8]},
	)

	var deadline time.Time
	if runTimeout > 0 {
		deadline = time.Now().Add(runTimeout)
	}

	if useTUI {
		final, err := ui.RunPortal(ui.NewPortalModel(session, header, cfg.PollInterval, deadline, url), uiOut)
		if err != nil {
			return err
		}
		switch {
		case final.Interrupted():
			return fmt.Errorf("interrupted in phase %s", session.State())
		case final.Err() != nil:
			return reportFailure(printer, final.Err())
		}
	} else {
		printer.PrintHeader(header)
		if err := pollSession(cmd.Context(), session, cfg.PollInterval, deadline); err != nil {
			if session.Failed() {
				reporter.Fail(session.State())
			}
			return reportFailure(printer, err)
		}
	}

	creds, err := session.Config()
	if err != nil {
		return err
	}
	return writeCredentials(cmd.OutOrStdout(), printer, creds)
}

// pollSession calls Progress every interval until Done, a fatal error, the
// deadline, or SIGINT/SIGTERM.
func pollSession(ctx context.Context, session *portal.Session, interval time.Duration, deadline time.Time) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if session.Progress() {
			return nil
		}
		if session.Failed() {
			return session.Err()
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ui.ErrTimeout
			}
			return fmt.Errorf("interrupted in phase %s", session.State())
		case <-ticker.C:
		}
	}
}

func reportFailure(printer *ui.Printer, err error) error {
	if errors.Is(err, ui.ErrTimeout) {
		printer.PrintResult(ui.NewFailureResult("No credentials received", err,
			"Check that the access point is visible from the client",
			"Open any http:// page on the client if no portal pops up",
			"Increase --timeout",
		))
	} else {
		printer.PrintResult(ui.NewSessionFailureResult(err))
	}
	return fmt.Errorf("%w: %v", errReported, err)
}

func writeCredentials(out io.Writer, printer *ui.Printer, creds portal.Credentials) error {
	switch outputFormat {
	case "json":
		data, err := json.MarshalIndent(creds, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	case "yaml":
		data, err := yaml.Marshal(creds)
		if err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		_, err = out.Write(data)
		return err
	default:
		printer.PrintResult(ui.NewCredentialsResult(creds, showPassphrase))
		return nil
	}
}
