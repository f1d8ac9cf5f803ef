// Package config provides user configuration management for captive-config.
//
// This package manages a YAML configuration file holding the radio interface,
// soft-AP settings, portal address and ports, and logging/metrics options.
// The configuration follows OS-specific conventions for storage location.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/captivecfg/config.yaml or $HOME/.config/captivecfg/config.yaml
//   - macOS: $HOME/.config/captivecfg/config.yaml
//   - Windows: %LOCALAPPDATA%\captivecfg\config.yaml
//
// # Security
//
// IMPORTANT: This package NEVER stores the Wi-Fi credentials the portal
// captures. They are handed to the embedding application and nowhere else.
//
// # Usage Example
//
//	cfg, path, err := config.LoadDefault()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cfg.Interface = "wlan1"
//	if err := cfg.Save(path); err != nil {
//	    log.Fatal(err)
//	}
//
// # File Format
//
//	version: 1
//	interface: wlan0
//	ap_ssid: captive-config
//	ap_channel: 6
//	portal_ip: 192.168.1.1
//	http_port: 80
//	dns_port: 53
//	catalog_capacity: 16
//	poll_interval: 10ms
//	advertise: true
//
// # Thread Safety
//
// Save serializes writes with a package-level mutex and replaces the file
// atomically (write to .tmp, then rename).
package config
