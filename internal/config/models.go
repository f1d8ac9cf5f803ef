package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/muurk/captiveconfig/internal/wifi"
)

// CurrentVersion is the config file schema version
const CurrentVersion = 1

// Config represents the entire user configuration file.
type Config struct {
	Version int `yaml:"version"`

	// Radio
	Interface   string `yaml:"interface"`              // Wireless interface for scan and soft-AP
	APSSID      string `yaml:"ap_ssid"`                // Name of the open configuration network
	APChannel   int    `yaml:"ap_channel"`             // 2.4GHz channel, 1-14
	HostapdPath string `yaml:"hostapd_path,omitempty"` // hostapd binary (default: from PATH)
	IWPath      string `yaml:"iw_path,omitempty"`      // iw binary (default: from PATH)
	IPPath      string `yaml:"ip_path,omitempty"`      // iproute2 binary (default: from PATH)

	// Portal
	PortalIP        string        `yaml:"portal_ip"`        // Address of the device on the soft-AP
	HTTPPort        int           `yaml:"http_port"`        // Config page port
	DNSPort         int           `yaml:"dns_port"`         // DNS redirector port
	CatalogCapacity int           `yaml:"catalog_capacity"` // Networks listed on the page
	PollInterval    time.Duration `yaml:"poll_interval"`    // Delay between Progress calls

	// Ambient
	LogLevel    string `yaml:"log_level,omitempty"`    // debug, info, warn, error
	Advertise   bool   `yaml:"advertise"`              // Announce the portal over mDNS
	MetricsAddr string `yaml:"metrics_addr,omitempty"` // Prometheus listen address, empty = off
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version:         CurrentVersion,
		Interface:       "wlan0",
		APSSID:          wifi.DefaultAPSSID,
		APChannel:       wifi.DefaultChannel,
		PortalIP:        wifi.DefaultPortalIP.String(),
		HTTPPort:        80,
		DNSPort:         53,
		CatalogCapacity: 16,
		PollInterval:    10 * time.Millisecond,
		Advertise:       true,
	}
}

// Validate checks every field and returns the first problem found.
func (c *Config) Validate() error {
	if c.Interface == "" {
		return fmt.Errorf("interface cannot be empty")
	}
	if c.APSSID == "" || len(c.APSSID) > wifi.MaxSSIDLength {
		return fmt.Errorf("ap_ssid must be 1-%d bytes, got %d", wifi.MaxSSIDLength, len(c.APSSID))
	}
	if c.APChannel < 1 || c.APChannel > 14 {
		return fmt.Errorf("ap_channel must be 1-14, got %d", c.APChannel)
	}
	if ip := net.ParseIP(c.PortalIP); ip == nil || ip.To4() == nil {
		return fmt.Errorf("portal_ip must be an IPv4 address, got %q", c.PortalIP)
	}
	if err := validatePort("http_port", c.HTTPPort); err != nil {
		return err
	}
	if err := validatePort("dns_port", c.DNSPort); err != nil {
		return err
	}
	if c.CatalogCapacity < 1 || c.CatalogCapacity > 256 {
		return fmt.Errorf("catalog_capacity must be 1-256, got %d", c.CatalogCapacity)
	}
	if c.PollInterval < 0 || c.PollInterval > time.Second {
		return fmt.Errorf("poll_interval must be between 0 and 1s, got %s", c.PollInterval)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	return nil
}

// PortalAddr returns PortalIP parsed. Call Validate first.
func (c *Config) PortalAddr() net.IP {
	return net.ParseIP(c.PortalIP).To4()
}

// APConfig returns the soft-AP settings derived from the configuration.
func (c *Config) APConfig() wifi.APConfig {
	return wifi.APConfig{
		Interface: c.Interface,
		SSID:      c.APSSID,
		Channel:   c.APChannel,
		Address:   c.PortalAddr(),
		PrefixLen: wifi.DefaultPrefixLen,
	}
}

func validatePort(name string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%s must be 0-65535, got %d", name, port)
	}
	return nil
}
