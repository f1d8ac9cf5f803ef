package dnsredirect

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/muurk/captiveconfig/internal/logging"
	"github.com/muurk/captiveconfig/internal/telemetry"
)

const (
	// DefaultPort is the standard DNS port clients on the soft-AP query
	DefaultPort = 53

	// DefaultTTL keeps client caches short so leaving the portal is quick
	DefaultTTL = 60

	// DefaultPollTimeout bounds how long one Poll waits for a query
	DefaultPollTimeout = time.Millisecond

	// maxPacketSize is the classic UDP DNS message limit without EDNS0
	maxPacketSize = 512
)

// Config holds the redirector configuration
type Config struct {
	// Addr is the UDP listen address, e.g. "192.168.1.1:53"
	Addr string

	// Answer is the IPv4 address returned for every A query
	Answer net.IP

	TTL         uint32
	PollTimeout time.Duration
}

// DefaultConfig returns a config answering with ip on port 53 of ip.
func DefaultConfig(ip net.IP) Config {
	return Config{
		Addr:        net.JoinHostPort(ip.String(), fmt.Sprint(DefaultPort)),
		Answer:      ip,
		TTL:         DefaultTTL,
		PollTimeout: DefaultPollTimeout,
	}
}

// Redirector answers every DNS query with the portal address. It never
// spawns goroutines: the caller drives it with Poll.
type Redirector struct {
	config Config

	mu   sync.Mutex
	conn net.PacketConn
	buf  []byte
}

// New creates a redirector. Nothing is bound until Start.
func New(config Config) *Redirector {
	if config.PollTimeout <= 0 {
		config.PollTimeout = DefaultPollTimeout
	}
	if config.TTL == 0 {
		config.TTL = DefaultTTL
	}
	return &Redirector{config: config}
}

// Start binds the UDP socket.
func (r *Redirector) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		return fmt.Errorf("DNS redirector already listening on %s", r.conn.LocalAddr())
	}
	if r.config.Answer.To4() == nil {
		return fmt.Errorf("DNS answer must be an IPv4 address, got %v", r.config.Answer)
	}

	conn, err := net.ListenPacket("udp4", r.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind DNS socket on %s: %w", r.config.Addr, err)
	}
	r.conn = conn
	r.buf = make([]byte, maxPacketSize)

	logging.Info("DNS redirector listening",
		zap.String("addr", conn.LocalAddr().String()),
		zap.String("answer", r.config.Answer.String()),
	)
	return nil
}

// Addr returns the bound address, or nil before Start.
func (r *Redirector) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}

// Answer returns the address every A query resolves to.
func (r *Redirector) Answer() net.IP {
	return r.config.Answer
}

// Poll services at most one pending query. It returns true when a packet
// was read (answered or dropped as malformed) and false when nothing
// arrived within the poll window.
func (r *Redirector) Poll() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return false, fmt.Errorf("DNS redirector not started")
	}

	if err := r.conn.SetReadDeadline(time.Now().Add(r.config.PollTimeout)); err != nil {
		return false, fmt.Errorf("failed to set DNS read deadline: %w", err)
	}
	n, addr, err := r.conn.ReadFrom(r.buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read DNS query: %w", err)
	}

	resp, question, err := BuildResponse(r.buf[:n], r.config.Answer, r.config.TTL)
	if err != nil {
		telemetry.DNSMalformed.Inc()
		logging.Debug("Dropping malformed DNS packet",
			zap.String("remote_addr", addr.String()),
			zap.Error(err),
		)
		logging.LogRawBytes("Malformed DNS packet", r.buf[:n])
		return true, nil
	}

	if _, err := r.conn.WriteTo(resp, addr); err != nil {
		logging.Warn("Failed to send DNS answer",
			zap.String("remote_addr", addr.String()),
			zap.Error(err),
		)
		return true, nil
	}

	qtype := dns.TypeToString[question.Qtype]
	telemetry.DNSQueries.WithLabelValues(qtype).Inc()
	logging.LogDNSQuery(addr.String(), question.Name, qtype, r.config.Answer.String())
	return true, nil
}

// Stop closes the socket. Safe to call when not started.
func (r *Redirector) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	r.buf = nil

	logging.Info("DNS redirector stopped")
	if err != nil {
		return fmt.Errorf("failed to close DNS socket: %w", err)
	}
	return nil
}

// BuildResponse parses a raw query and packs the redirecting reply.
// A and ANY questions are answered with answer; other types get an empty
// NOERROR reply so clients fall back to IPv4.
func BuildResponse(query []byte, answer net.IP, ttl uint32) ([]byte, dns.Question, error) {
	req := new(dns.Msg)
	if err := req.Unpack(query); err != nil {
		return nil, dns.Question{}, fmt.Errorf("failed to unpack DNS query: %w", err)
	}
	if req.Response {
		return nil, dns.Question{}, fmt.Errorf("packet is a response, not a query")
	}
	if len(req.Question) != 1 {
		return nil, dns.Question{}, fmt.Errorf("expected one question, got %d", len(req.Question))
	}
	q := req.Question[0]

	resp := new(dns.Msg)
	resp.SetReply(req)
	resp.Authoritative = true
	resp.RecursionAvailable = req.RecursionDesired

	if q.Qclass == dns.ClassINET && (q.Qtype == dns.TypeA || q.Qtype == dns.TypeANY) {
		resp.Answer = append(resp.Answer, &dns.A{
			Hdr: dns.RR_Header{
				Name:   q.Name,
				Rrtype: dns.TypeA,
				Class:  dns.ClassINET,
				Ttl:    ttl,
			},
			A: answer.To4(),
		})
	}

	packed, err := resp.Pack()
	if err != nil {
		return nil, q, fmt.Errorf("failed to pack DNS reply: %w", err)
	}
	return packed, q, nil
}
