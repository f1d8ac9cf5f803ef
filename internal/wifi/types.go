package wifi

import (
	"fmt"
	"net"
)

// DefaultPortalIP is the address the soft-AP takes for itself and the answer
// the DNS redirector gives to every query.
var DefaultPortalIP = net.IPv4(192, 168, 1, 1)

const (
	// DefaultAPSSID is the name of the open configuration network
	DefaultAPSSID = "captive-config"

	// DefaultChannel is the 2.4GHz channel the soft-AP beacons on
	DefaultChannel = 6

	// DefaultPrefixLen is the netmask length assigned with the portal address
	DefaultPrefixLen = 24

	// MaxSSIDLength is the 802.11 limit on SSID octets
	MaxSSIDLength = 32
)

// SecurityKind classifies how a scanned network authenticates clients.
type SecurityKind int

const (
	SecurityUnknown SecurityKind = iota
	SecurityOpen
	SecurityWEP
	SecurityWPA
	SecurityWPA2
	SecurityWPA3
)

// String returns the short label used on the config page and in logs.
func (k SecurityKind) String() string {
	switch k {
	case SecurityOpen:
		return "OPEN"
	case SecurityWEP:
		return "WEP"
	case SecurityWPA:
		return "WPA"
	case SecurityWPA2:
		return "WPA2"
	case SecurityWPA3:
		return "WPA3"
	default:
		return "UNKNOWN"
	}
}

// IsOpen reports whether the network accepts clients without a passphrase.
func (k SecurityKind) IsOpen() bool {
	return k == SecurityOpen
}

// MarshalText lets YAML/JSON output carry the label instead of the number.
func (k SecurityKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// AccessPoint is one network seen by a scan. Values are copied, never
// mutated after the scanner produced them.
type AccessPoint struct {
	SSID     string       `json:"ssid" yaml:"ssid"`
	RSSI     int          `json:"rssi" yaml:"rssi"` // dBm, higher is stronger
	Security SecurityKind `json:"security" yaml:"security"`
}

// String returns a compact human-readable form, e.g. "HomeNet (-40 dBm, WPA2)".
func (ap AccessPoint) String() string {
	name := ap.SSID
	if name == "" {
		name = "<hidden>"
	}
	return fmt.Sprintf("%s (%d dBm, %s)", name, ap.RSSI, ap.Security)
}

// APConfig describes the open soft-AP the portal brings up.
type APConfig struct {
	Interface string
	SSID      string
	Channel   int
	Address   net.IP
	PrefixLen int
}

// DefaultAPConfig returns the portal soft-AP settings for an interface.
func DefaultAPConfig(iface string) APConfig {
	return APConfig{
		Interface: iface,
		SSID:      DefaultAPSSID,
		Channel:   DefaultChannel,
		Address:   DefaultPortalIP,
		PrefixLen: DefaultPrefixLen,
	}
}

// Validate checks the soft-AP settings before any driver command runs.
func (c APConfig) Validate() error {
	if c.Interface == "" {
		return fmt.Errorf("soft-AP interface is empty")
	}
	if c.SSID == "" || len(c.SSID) > MaxSSIDLength {
		return fmt.Errorf("soft-AP SSID must be 1-%d bytes, got %d", MaxSSIDLength, len(c.SSID))
	}
	if c.Channel < 1 || c.Channel > 14 {
		return fmt.Errorf("soft-AP channel must be 1-14, got %d", c.Channel)
	}
	if c.Address.To4() == nil {
		return fmt.Errorf("soft-AP address must be IPv4, got %v", c.Address)
	}
	if c.PrefixLen < 1 || c.PrefixLen > 30 {
		return fmt.Errorf("soft-AP prefix length must be 1-30, got %d", c.PrefixLen)
	}
	return nil
}
