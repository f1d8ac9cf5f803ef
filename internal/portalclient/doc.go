// Package portalclient talks to a running captive-config portal over HTTP.
//
// It is what a scripted client uses instead of a browser: Ping checks that
// the config page is up, Submit posts an SSID and passphrase and reports
// whether the portal accepted them. Connection failures and 503 replies
// are retried with exponential backoff; rejected submissions are not.
//
//	c := portalclient.NewClient("192.168.1.1", 80)
//	err := c.Submit(ctx, portal.Credentials{SSID: "HomeNet", Passphrase: "hunter22"})
//	if portalclient.IsRejected(err) {
//	    fmt.Println("portal said:", err)
//	}
package portalclient
