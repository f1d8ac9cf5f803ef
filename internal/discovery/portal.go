package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Portal represents a captive-config portal found over mDNS
type Portal struct {
	// Instance is the DNS-SD instance name (usually the soft-AP SSID)
	Instance string

	// Hostname is the mDNS hostname (e.g., "captive-config.local.")
	Hostname string

	// IP is the announced address (e.g., "192.168.1.1")
	IP string

	// Port is the config page port (typically 80)
	Port int

	// Path is the config page path from the TXT record
	Path string

	// SSID is the soft-AP network name
	SSID string

	// Version is the portal software version, if published
	Version string

	// Metadata contains all mDNS TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the portal was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the portal
func (p *Portal) String() string {
	return fmt.Sprintf("Portal %s (%s) at %s", p.Instance, p.Hostname, net.JoinHostPort(p.IP, strconv.Itoa(p.Port)))
}

// URL returns the config page URL
func (p *Portal) URL() string {
	host := net.JoinHostPort(p.IP, strconv.Itoa(p.Port))
	if p.Port == DefaultPort {
		host = p.IP
		if ip := net.ParseIP(p.IP); ip != nil && ip.To4() == nil {
			host = "[" + p.IP + "]"
		}
	}
	return "http://" + host + p.Path
}
