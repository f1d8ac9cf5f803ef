package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()
	s := New(Config{Host: "127.0.0.1", Port: 0})
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

type httpResult struct {
	status int
	header http.Header
	body   string
	err    error
}

// do runs send in a goroutine and polls s until the reply arrives.
func do(t *testing.T, s *Server, send func(client *http.Client, base string) (*http.Response, error)) httpResult {
	t.Helper()

	client := &http.Client{
		Timeout:   3 * time.Second,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
	base := "http://" + s.Addr().String()

	ch := make(chan httpResult, 1)
	go func() {
		resp, err := send(client, base)
		if err != nil {
			ch <- httpResult{err: err}
			return
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		ch <- httpResult{status: resp.StatusCode, header: resp.Header, body: string(b), err: err}
	}()

	deadline := time.Now().Add(4 * time.Second)
	for {
		select {
		case res := <-ch:
			if res.err != nil {
				t.Fatalf("request error = %v", res.err)
			}
			return res
		default:
		}
		if _, err := s.Poll(); err != nil {
			t.Fatalf("Poll() error = %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("no HTTP response received")
		}
	}
}

func get(path string) func(*http.Client, string) (*http.Response, error) {
	return func(c *http.Client, base string) (*http.Response, error) {
		return c.Get(base + path)
	}
}

func TestRoutesExactMatch(t *testing.T) {
	s := startTestServer(t)
	s.Handle(http.MethodGet, "/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "root")
	})

	res := do(t, s, get("/"))
	if res.status != http.StatusOK || res.body != "root" {
		t.Errorf("GET / = %d %q", res.status, res.body)
	}
	if got := res.header.Get("Content-Type"); got != "text/plain" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestPostForm(t *testing.T) {
	s := startTestServer(t)
	s.Handle(http.MethodPost, "/", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, r.PostForm.Get("ssid")+"|"+r.PostForm.Get("passphrase"))
	})

	res := do(t, s, func(c *http.Client, base string) (*http.Response, error) {
		return c.PostForm(base+"/", url.Values{"ssid": {"HomeNet"}, "passphrase": {"p@ss w0rd"}})
	})
	if res.body != "HomeNet|p@ss w0rd" {
		t.Errorf("body = %q", res.body)
	}
}

func TestNotFoundFallback(t *testing.T) {
	s := startTestServer(t)
	s.Handle(http.MethodGet, "/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "root")
	})

	res := do(t, s, get("/generate_204"))
	if res.status != http.StatusNotFound {
		t.Errorf("without fallback status = %d, want 404", res.status)
	}

	s.HandleNotFound(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "fallback "+r.URL.Path)
	})
	res = do(t, s, get("/generate_204"))
	if res.status != http.StatusOK || res.body != "fallback /generate_204" {
		t.Errorf("fallback = %d %q", res.status, res.body)
	}

	// Unregistered method on a known path also falls through
	res = do(t, s, func(c *http.Client, base string) (*http.Response, error) {
		req, _ := http.NewRequest(http.MethodDelete, base+"/", nil)
		return c.Do(req)
	})
	if !strings.HasPrefix(res.body, "fallback") {
		t.Errorf("DELETE / body = %q", res.body)
	}
}

func TestHandlerPanicReturns500(t *testing.T) {
	s := startTestServer(t)
	s.Handle(http.MethodGet, "/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	res := do(t, s, get("/boom"))
	if res.status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", res.status)
	}
}

func TestPollWithoutConnection(t *testing.T) {
	s := startTestServer(t)

	start := time.Now()
	accepted, err := s.Poll()
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if accepted {
		t.Error("Poll() accepted a connection that was never made")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Poll() blocked for %v", elapsed)
	}
}

func TestLifecycle(t *testing.T) {
	s := New(Config{Host: "127.0.0.1", Port: 0})
	if _, err := s.Poll(); err == nil {
		t.Error("Poll() before Start should fail")
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() before Start error = %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(); err == nil {
		t.Error("second Start() should fail")
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if s.Addr() != nil {
		t.Error("Addr() should be nil after Stop")
	}
}

func TestResponseWriterDetectsContentType(t *testing.T) {
	rw := newResponseWriter()
	_, _ = rw.Write([]byte("<html><body>hi</body></html>"))
	rw.WriteHeader(http.StatusTeapot)

	var sb strings.Builder
	n, err := rw.writeTo(&sb, nil)
	if err != nil {
		t.Fatalf("writeTo() error = %v", err)
	}
	out := sb.String()
	if n != len(out) {
		t.Errorf("reported %d bytes, wrote %d", n, len(out))
	}
	if !strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n") {
		t.Errorf("status line = %q", strings.SplitN(out, "\r\n", 2)[0])
	}
	for _, want := range []string{"Content-Type: text/html; charset=utf-8", "Content-Length: 28", "Connection: close"} {
		if !strings.Contains(out, want) {
			t.Errorf("response missing %q:\n%s", want, out)
		}
	}
}

func dialServer(t *testing.T, s *Server) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp4", s.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// pollUntil polls s until cond holds or two seconds pass.
func pollUntil(t *testing.T, s *Server, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if _, err := s.Poll(); err != nil {
			t.Fatalf("Poll() error = %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
	}
}

func TestIdleConnectionDoesNotBlockPoll(t *testing.T) {
	s := startTestServer(t)
	s.Handle(http.MethodGet, "/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "root")
	})

	// Connects and never sends a byte, like a browser preconnect
	_ = dialServer(t, s)
	pollUntil(t, s, func() bool { return len(s.pending) == 1 })

	for i := 0; i < 5; i++ {
		start := time.Now()
		if _, err := s.Poll(); err != nil {
			t.Fatalf("Poll() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
			t.Fatalf("Poll() with an idle client blocked for %v", elapsed)
		}
	}

	// Other clients are still served while the idle one waits
	res := do(t, s, get("/"))
	if res.status != http.StatusOK || res.body != "root" {
		t.Errorf("GET / = %d %q", res.status, res.body)
	}
	if len(s.pending) != 1 {
		t.Errorf("pending = %d, want the idle connection only", len(s.pending))
	}
}

func TestRequestSplitAcrossPolls(t *testing.T) {
	s := startTestServer(t)
	var hits int
	s.Handle(http.MethodPost, "/", func(w http.ResponseWriter, r *http.Request) {
		hits++
		_ = r.ParseForm()
		_, _ = io.WriteString(w, r.PostForm.Get("ssid"))
	})

	conn := dialServer(t, s)
	parts := []string{
		"POST / HTTP/1.1\r\nHo",
		"st: portal\r\nContent-Type: application/x-www-form-urlencoded\r\n",
		"Content-Length: 12\r\n\r\nssid=",
		"HomeNet",
	}
	for _, part := range parts[:len(parts)-1] {
		if _, err := io.WriteString(conn, part); err != nil {
			t.Fatalf("write error = %v", err)
		}
		for i := 0; i < 3; i++ {
			if _, err := s.Poll(); err != nil {
				t.Fatalf("Poll() error = %v", err)
			}
		}
		if hits != 0 {
			t.Fatalf("handler ran on a partial request after %q", part)
		}
	}

	if _, err := io.WriteString(conn, parts[len(parts)-1]); err != nil {
		t.Fatalf("write error = %v", err)
	}
	pollUntil(t, s, func() bool { return hits == 1 })

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		t.Fatalf("ReadResponse() error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "HomeNet" {
		t.Errorf("body = %q, want HomeNet", body)
	}
	if len(s.pending) != 0 {
		t.Errorf("pending = %d after reply, want 0", len(s.pending))
	}
}

func TestSilentConnectionExpires(t *testing.T) {
	s := New(Config{Host: "127.0.0.1", Port: 0, RequestTimeout: 20 * time.Millisecond})
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })

	conn := dialServer(t, s)
	_, _ = io.WriteString(conn, "GET / HTTP/1.1\r\n")
	pollUntil(t, s, func() bool { return len(s.pending) == 1 })

	time.Sleep(30 * time.Millisecond)
	pollUntil(t, s, func() bool { return len(s.pending) == 0 })

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Error("expired connection should be closed by the server")
	}
}

func TestPendingConnectionsAreCapped(t *testing.T) {
	s := New(Config{Host: "127.0.0.1", Port: 0, MaxPending: 2})
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })

	for i := 0; i < 3; i++ {
		_ = dialServer(t, s)
	}
	pollUntil(t, s, func() bool { return len(s.pending) == 2 })
	for i := 0; i < 5; i++ {
		_, _ = s.Poll()
	}
	if len(s.pending) != 2 {
		t.Errorf("pending = %d, want cap of 2", len(s.pending))
	}
}

func TestParseHTTPRequest(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		incomplete bool
		wantErr    bool
		wantBody   string
	}{
		{name: "empty", raw: "", incomplete: true},
		{name: "partial request line", raw: "GET /gen", incomplete: true},
		{name: "partial headers", raw: "GET / HTTP/1.1\r\nHost: x\r\n", incomplete: true},
		{name: "short body", raw: "POST / HTTP/1.1\r\nHost: x\r\nContent-Length: 10\r\n\r\nssid", incomplete: true},
		{name: "complete get", raw: "GET /generate_204 HTTP/1.1\r\nHost: x\r\n\r\n"},
		{name: "complete post", raw: "POST / HTTP/1.1\r\nHost: x\r\nContent-Length: 4\r\n\r\nssid", wantBody: "ssid"},
		{name: "malformed", raw: "garbage\r\n\r\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseHTTPRequest([]byte(tt.raw))
			switch {
			case tt.incomplete:
				if !errors.Is(err, errIncomplete) {
					t.Fatalf("error = %v, want errIncomplete", err)
				}
			case tt.wantErr:
				if err == nil || errors.Is(err, errIncomplete) {
					t.Fatalf("error = %v, want a parse error", err)
				}
			default:
				if err != nil {
					t.Fatalf("ParseHTTPRequest() error = %v", err)
				}
				body, _ := io.ReadAll(req.Body)
				if string(body) != tt.wantBody {
					t.Errorf("body = %q, want %q", body, tt.wantBody)
				}
			}
		})
	}
}
