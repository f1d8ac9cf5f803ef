// Package server implements the captive portal's HTTP endpoint.
//
// The server binds one TCP listener and is driven by Poll. Each Poll accepts
// at most one new connection into a pending set, performs one bounded read
// on every pending connection, and once a connection's buffered bytes parse
// as a full request (body included) dispatches it to the handler registered
// for the exact method and path, or the not-found handler. The buffered
// response is written with Connection: close. No goroutines are started, so
// the portal state machine can interleave HTTP with scanning and DNS from
// one loop, and a client that connects and stays silent never holds Poll
// for more than one read window.
//
// # Timeouts
//
//   - PollTimeout (default 1ms) bounds the wait for a new connection and
//     each read on a pending one.
//   - RequestTimeout (default 2s) is how long a client may take to deliver
//     its request before the connection is dropped. It also bounds writing
//     the reply.
//   - MaxPending (default 16) caps connections still sending; further
//     clients wait in the listen backlog.
//
// # Usage Example
//
//	srv := server.New(server.DefaultConfig("192.168.1.1"))
//	srv.Handle(http.MethodGet, "/", servePage)
//	srv.HandleNotFound(servePage)
//	if err := srv.Start(); err != nil {
//	    return err
//	}
//	defer srv.Stop()
//	for {
//	    if _, err := srv.Poll(); err != nil {
//	        return err
//	    }
//	}
//
// # Logging
//
// Requests and responses are logged at info level through internal/logging;
// host, query and user agent are logged at debug level, which is enough to
// tell which OS probe hit the portal.
package server
