// Package dnsredirect implements the captive portal's DNS server.
//
// Every A query is answered with the portal address so that any hostname a
// client tries lands on the config page. The wire format is handled by
// github.com/miekg/dns; the socket is a plain UDP PacketConn read with a
// short deadline so the redirector can be driven from a polling loop.
//
// # Usage Example
//
//	r := dnsredirect.New(dnsredirect.DefaultConfig(net.IPv4(192, 168, 1, 1)))
//	if err := r.Start(); err != nil {
//	    return err
//	}
//	defer r.Stop()
//	for {
//	    if _, err := r.Poll(); err != nil {
//	        return err
//	    }
//	    doOtherWork()
//	}
package dnsredirect
