package dnsredirect

import (
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
)

var portalIP = net.IPv4(192, 168, 1, 1)

func startTestRedirector(t *testing.T) *Redirector {
	t.Helper()
	r := New(Config{Addr: "127.0.0.1:0", Answer: portalIP})
	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = r.Stop() })
	return r
}

// exchange sends m from a goroutine while the test polls the redirector.
func exchange(t *testing.T, r *Redirector, m *dns.Msg) *dns.Msg {
	t.Helper()

	type result struct {
		msg *dns.Msg
		err error
	}
	ch := make(chan result, 1)
	go func() {
		c := &dns.Client{Timeout: 2 * time.Second}
		in, _, err := c.Exchange(m, r.Addr().String())
		ch <- result{in, err}
	}()

	deadline := time.Now().Add(3 * time.Second)
	for {
		select {
		case res := <-ch:
			if res.err != nil {
				t.Fatalf("Exchange() error = %v", res.err)
			}
			return res.msg
		default:
		}
		if _, err := r.Poll(); err != nil {
			t.Fatalf("Poll() error = %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("no DNS reply received")
		}
	}
}

func TestPollWithoutQueryReturnsQuickly(t *testing.T) {
	r := startTestRedirector(t)

	start := time.Now()
	handled, err := r.Poll()
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if handled {
		t.Error("Poll() handled a query that was never sent")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Poll() blocked for %v", elapsed)
	}
}

func TestAnswersAQueryWithPortalAddress(t *testing.T) {
	r := startTestRedirector(t)

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn("connectivitycheck.gstatic.com"), dns.TypeA)
	in := exchange(t, r, m)

	if in.Rcode != dns.RcodeSuccess {
		t.Fatalf("Rcode = %s", dns.RcodeToString[in.Rcode])
	}
	if len(in.Answer) != 1 {
		t.Fatalf("got %d answers, want 1", len(in.Answer))
	}
	a, ok := in.Answer[0].(*dns.A)
	if !ok {
		t.Fatalf("answer is %T, want *dns.A", in.Answer[0])
	}
	if !a.A.Equal(portalIP) {
		t.Errorf("answer = %v, want %v", a.A, portalIP)
	}
	if a.Hdr.Ttl != DefaultTTL {
		t.Errorf("TTL = %d, want %d", a.Hdr.Ttl, DefaultTTL)
	}
	if a.Hdr.Name != "connectivitycheck.gstatic.com." {
		t.Errorf("name = %q", a.Hdr.Name)
	}
}

func TestAAAAQueryGetsEmptyAnswer(t *testing.T) {
	r := startTestRedirector(t)

	m := new(dns.Msg)
	m.SetQuestion("example.com.", dns.TypeAAAA)
	in := exchange(t, r, m)

	if in.Rcode != dns.RcodeSuccess {
		t.Errorf("Rcode = %s, want NOERROR", dns.RcodeToString[in.Rcode])
	}
	if len(in.Answer) != 0 {
		t.Errorf("got %d answers, want 0", len(in.Answer))
	}
}

func TestBuildResponse(t *testing.T) {
	m := new(dns.Msg)
	m.SetQuestion("anything.local.", dns.TypeANY)
	query, err := m.Pack()
	if err != nil {
		t.Fatalf("Pack() error = %v", err)
	}

	packed, q, err := BuildResponse(query, portalIP, 30)
	if err != nil {
		t.Fatalf("BuildResponse() error = %v", err)
	}
	if q.Name != "anything.local." || q.Qtype != dns.TypeANY {
		t.Errorf("question = %+v", q)
	}

	resp := new(dns.Msg)
	if err := resp.Unpack(packed); err != nil {
		t.Fatalf("Unpack() error = %v", err)
	}
	if resp.Id != m.Id || !resp.Response || !resp.Authoritative {
		t.Errorf("unexpected header %+v", resp.MsgHdr)
	}
	if len(resp.Answer) != 1 || resp.Answer[0].Header().Ttl != 30 {
		t.Errorf("answers = %v", resp.Answer)
	}
}

func TestBuildResponseRejectsGarbage(t *testing.T) {
	tests := []struct {
		name  string
		query func() []byte
	}{
		{"short packet", func() []byte { return []byte{0x01, 0x02, 0x03} }},
		{"response packet", func() []byte {
			m := new(dns.Msg)
			m.SetQuestion("example.com.", dns.TypeA)
			m.Response = true
			b, _ := m.Pack()
			return b
		}},
		{"no question", func() []byte {
			m := new(dns.Msg)
			m.Id = 7
			b, _ := m.Pack()
			return b
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := BuildResponse(tt.query(), portalIP, DefaultTTL); err == nil {
				t.Error("BuildResponse() should fail")
			}
		})
	}
}

func TestMalformedPacketIsDropped(t *testing.T) {
	r := startTestRedirector(t)

	conn, err := net.Dial("udp4", r.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("not dns")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		handled, err := r.Poll()
		if err != nil {
			t.Fatalf("Poll() error = %v", err)
		}
		if handled {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("malformed packet never read")
		}
	}
}

func TestLifecycleErrors(t *testing.T) {
	r := New(Config{Addr: "127.0.0.1:0", Answer: portalIP})
	if _, err := r.Poll(); err == nil {
		t.Error("Poll() before Start should fail")
	}
	if err := r.Stop(); err != nil {
		t.Errorf("Stop() before Start error = %v", err)
	}
	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := r.Start(); err == nil {
		t.Error("second Start() should fail")
	}
	if err := r.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if r.Addr() != nil {
		t.Error("Addr() should be nil after Stop")
	}

	bad := New(Config{Addr: "127.0.0.1:0", Answer: net.ParseIP("::1")})
	if err := bad.Start(); err == nil {
		t.Error("Start() with IPv6 answer should fail")
	}
}
