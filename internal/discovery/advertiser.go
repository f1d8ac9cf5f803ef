package discovery

import (
	"fmt"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/captiveconfig/internal/logging"
)

// AdvertiserConfig holds configuration for mDNS advertisement of a portal.
type AdvertiserConfig struct {
	// Instance is the DNS-SD instance name, e.g. the soft-AP SSID
	Instance string

	// Host is the mDNS hostname without domain (default "captive-config")
	Host string

	// PortalIP is the address announced for Host
	PortalIP net.IP

	// Port is the config page port
	Port int

	// Interface restricts announcements to one interface. Empty means all.
	Interface string

	// Version is published in the TXT record
	Version string

	// SessionID is published in the TXT record when set
	SessionID string
}

// Advertiser announces the running portal so that clients already on the
// soft-AP can find it as <host>.local.
type Advertiser struct {
	config AdvertiserConfig
	server *zeroconf.Server
	mu     sync.Mutex
}

// NewAdvertiser creates a new mDNS advertiser with the given configuration.
func NewAdvertiser(cfg AdvertiserConfig) *Advertiser {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Instance == "" {
		cfg.Instance = cfg.Host
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	return &Advertiser{config: cfg}
}

// TXTRecords returns the TXT strings the advertiser publishes.
func (a *Advertiser) TXTRecords() []string {
	txt := []string{
		"path=/",
		PortalTXTKey + "=" + PortalTXTValue,
		"ssid=" + a.config.Instance,
	}
	if a.config.Version != "" {
		txt = append(txt, "version="+a.config.Version)
	}
	if a.config.SessionID != "" {
		txt = append(txt, "session="+a.config.SessionID)
	}
	return txt
}

// Start registers the service. Calling Start while running is a no-op.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return nil
	}
	if a.config.PortalIP.To4() == nil {
		return fmt.Errorf("mdns advertise: portal address must be IPv4, got %v", a.config.PortalIP)
	}

	var ifaces []net.Interface
	if a.config.Interface != "" {
		iface, err := net.InterfaceByName(a.config.Interface)
		if err != nil {
			return fmt.Errorf("mdns advertise: %w", err)
		}
		ifaces = []net.Interface{*iface}
	}

	server, err := zeroconf.RegisterProxy(
		a.config.Instance,
		ServiceType,
		ServiceDomain,
		a.config.Port,
		a.config.Host,
		[]string{a.config.PortalIP.String()},
		a.TXTRecords(),
		ifaces,
	)
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}
	a.server = server

	logging.Info("Portal advertised over mDNS",
		zap.String("instance", a.config.Instance),
		zap.String("host", a.config.Host+"."+ServiceDomain),
		zap.Int("port", a.config.Port),
	)
	return nil
}

// Stop withdraws the advertisement. Safe to call when not running.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
		logging.Info("Portal mDNS advertisement stopped")
	}
}

// IsRunning returns true if the advertiser is currently running.
func (a *Advertiser) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}
