// Package discovery announces and finds captive-config portals over mDNS.
//
// A running portal registers an "_http._tcp" service for its own address
// with TXT records marking it as a portal:
//
//	path=/
//	portal=captive-config
//	ssid=<soft-AP SSID>
//	version=<build version>
//
// Clients already joined to the soft-AP can then open
// http://captive-config.local/ if their OS did not pop up the portal.
// Scanner browses for such services from a laptop on the same segment.
//
// # Usage Example
//
//	adv := discovery.NewAdvertiser(discovery.AdvertiserConfig{
//	    Instance: "captive-config",
//	    PortalIP: net.IPv4(192, 168, 1, 1),
//	    Interface: "wlan0",
//	})
//	if err := adv.Start(); err != nil {
//	    log.Printf("mDNS disabled: %v", err)
//	}
//	defer adv.Stop()
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Firewall must allow mDNS (UDP port 5353)
package discovery
