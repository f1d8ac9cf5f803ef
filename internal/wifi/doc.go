// Package wifi drives the radio for the captive portal: scanning for nearby
// networks and running the device's own open access point.
//
// Both halves shell out to the standard Linux tools rather than speaking
// nl80211 directly:
//
//   - IWScanner runs `iw dev <iface> scan` in the background and parses the
//     BSS blocks into AccessPoint values (SSID, signal in dBm, security).
//   - HostapdAP assigns the portal address with `ip` and starts a
//     daemonised hostapd with an open configuration. The bring-up runs in
//     the background; callers poll APStarted.
//
// MockScanner and MockAP implement the same methods in memory. They back the
// CLI's --mock mode and the portal tests.
//
// # Usage Example
//
//	scanner := wifi.NewIWScanner("wlan0")
//	_ = scanner.StartScan()
//	for {
//	    done, err := scanner.ScanComplete()
//	    if done {
//	        break
//	    }
//	    doOtherWork()
//	}
//	for i := 0; i < scanner.ResultCount(); i++ {
//	    ap, _ := scanner.Result(i)
//	    fmt.Println(ap)
//	}
package wifi
