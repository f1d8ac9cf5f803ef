// Package urls lists the connectivity-check URLs operating systems fetch
// after joining a network.
//
// The portal answers all of them with the config page; this table exists
// so request logs can say which client is probing.
//
//	if p, ok := urls.MatchProbe(req.Host, req.URL.Path); ok {
//	    log.Printf("%s captive-portal probe", p.OS)
//	}
package urls
