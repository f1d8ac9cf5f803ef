package urls

import "strings"

// Probe is a connectivity check an OS makes after joining a network. Any
// answer other than the expected one makes the OS open the portal page.
type Probe struct {
	OS   string
	Host string
	Path string
}

// URL returns the plain-HTTP probe URL.
func (p Probe) URL() string {
	return "http://" + p.Host + p.Path
}

// Probes lists the well-known captive-portal checks.
var Probes = []Probe{
	{OS: "Android", Host: "connectivitycheck.gstatic.com", Path: "/generate_204"},
	{OS: "Android", Host: "clients3.google.com", Path: "/generate_204"},
	{OS: "Apple", Host: "captive.apple.com", Path: "/hotspot-detect.html"},
	{OS: "Windows", Host: "www.msftconnecttest.com", Path: "/connecttest.txt"},
	{OS: "Windows", Host: "www.msftncsi.com", Path: "/ncsi.txt"},
	{OS: "Firefox", Host: "detectportal.firefox.com", Path: "/success.txt"},
	{OS: "Linux", Host: "nmcheck.gnome.org", Path: "/check_network_status.txt"},
}

// MatchProbe reports which probe a request for host and path is. The host
// may carry a port; matching is case-insensitive on the host. When the host
// is unknown the path alone decides.
func MatchProbe(host, path string) (Probe, bool) {
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	host = strings.ToLower(host)

	var byPath *Probe
	for i, p := range Probes {
		if p.Path != path {
			continue
		}
		if p.Host == host {
			return p, true
		}
		if byPath == nil {
			byPath = &Probes[i]
		}
	}
	if byPath != nil {
		return *byPath, true
	}
	return Probe{}, false
}
