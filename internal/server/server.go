package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/captiveconfig/internal/logging"
	"github.com/muurk/captiveconfig/internal/telemetry"
)

const (
	// DefaultPort is the plain HTTP port captive-portal probes hit
	DefaultPort = 80

	// DefaultPollTimeout bounds how long one Poll waits for a connection
	DefaultPollTimeout = time.Millisecond

	// DefaultRequestTimeout bounds how long a client may take to deliver
	// its request, and writing the reply
	DefaultRequestTimeout = 2 * time.Second

	// DefaultMaxBodyBytes caps form submissions
	DefaultMaxBodyBytes = 16 << 10

	// DefaultMaxPending caps connections whose request is still arriving
	DefaultMaxPending = 16

	maxHeaderBytes = 8 << 10
	readChunk      = 4 << 10
)

// Config holds the server configuration
type Config struct {
	Host           string
	Port           int
	PollTimeout    time.Duration
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	MaxPending     int
}

// DefaultConfig returns a config listening on host port 80.
func DefaultConfig(host string) Config {
	return Config{
		Host:           host,
		Port:           DefaultPort,
		PollTimeout:    DefaultPollTimeout,
		RequestTimeout: DefaultRequestTimeout,
		MaxBodyBytes:   DefaultMaxBodyBytes,
		MaxPending:     DefaultMaxPending,
	}
}

// Server is an HTTP server driven by Poll. It never spawns goroutines.
// Accepted connections wait in a pending set until their request has fully
// arrived, so a silent client costs a Poll at most one read window.
type Server struct {
	config   Config
	mu       sync.Mutex
	listener *net.TCPListener
	pending  []*pendingConn
	routes   map[string]map[string]http.HandlerFunc // path -> method -> handler
	notFound http.HandlerFunc
}

// pendingConn is an accepted connection whose request is still arriving.
type pendingConn struct {
	conn     net.Conn
	remote   string
	accepted time.Time
	buf      bytes.Buffer
	eof      bool
}

// New creates a new Server instance
func New(config Config) *Server {
	if config.PollTimeout <= 0 {
		config.PollTimeout = DefaultPollTimeout
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if config.MaxPending <= 0 {
		config.MaxPending = DefaultMaxPending
	}
	return &Server{
		config: config,
		routes: make(map[string]map[string]http.HandlerFunc),
	}
}

// Handle registers h for an exact method and path.
func (s *Server) Handle(method, path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.routes[path] == nil {
		s.routes[path] = make(map[string]http.HandlerFunc)
	}
	s.routes[path][method] = h
}

// HandleNotFound registers the handler for requests matching no route.
func (s *Server) HandleNotFound(h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notFound = h
}

// Start opens the listening socket.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return fmt.Errorf("HTTP server already listening on %s", s.listener.Addr())
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	l, err := net.Listen("tcp4", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = l.(*net.TCPListener)

	logging.Info("HTTP server listening", zap.String("addr", l.Addr().String()))
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Poll accepts at most one new connection, reads whatever pending clients
// have sent without waiting for more, and answers at most one complete
// request. It returns true when a connection was accepted or a request
// served. Per-request failures are logged, not returned.
func (s *Server) Poll() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return false, fmt.Errorf("HTTP server not started")
	}

	accepted, err := s.accept()
	if err != nil {
		return false, err
	}
	served := s.servePending()
	return accepted || served, nil
}

func (s *Server) accept() (bool, error) {
	if len(s.pending) >= s.config.MaxPending {
		return false, nil
	}

	if err := s.listener.SetDeadline(time.Now().Add(s.config.PollTimeout)); err != nil {
		return false, fmt.Errorf("failed to set accept deadline: %w", err)
	}
	conn, err := s.listener.AcceptTCP()
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return false, nil
		}
		return false, fmt.Errorf("failed to accept connection: %w", err)
	}

	s.pending = append(s.pending, &pendingConn{
		conn:     conn,
		remote:   conn.RemoteAddr().String(),
		accepted: time.Now(),
	})
	return true, nil
}

// servePending advances every pending connection and drops the ones that
// were answered, closed early or ran out of time.
func (s *Server) servePending() bool {
	served := false
	kept := s.pending[:0]
	for _, pc := range s.pending {
		done, answered := s.advance(pc, !served)
		if answered {
			served = true
		}
		if done {
			_ = pc.conn.Close()
			continue
		}
		kept = append(kept, pc)
	}
	for i := len(kept); i < len(s.pending); i++ {
		s.pending[i] = nil
	}
	s.pending = kept
	return served
}

// advance reads what pc has delivered and answers it once complete.
// It reports whether pc is finished and whether a request was served.
func (s *Server) advance(pc *pendingConn, canServe bool) (bool, bool) {
	if err := pc.fill(s.config.PollTimeout); err != nil {
		logging.Debug("Dropping HTTP connection",
			zap.String("remote_addr", pc.remote),
			zap.Error(err),
		)
		return true, false
	}

	if canServe {
		req, err := ParseHTTPRequest(pc.buf.Bytes())
		switch {
		case err == nil:
			s.respond(pc, req)
			return true, true
		case !errors.Is(err, errIncomplete):
			logging.Debug("Failed to read HTTP request",
				zap.String("remote_addr", pc.remote),
				zap.Error(err),
			)
			return true, false
		case pc.eof:
			logging.Debug("Client closed before finishing its request",
				zap.String("remote_addr", pc.remote),
				zap.Int("bytes", pc.buf.Len()),
			)
			return true, false
		}
	}

	if pc.buf.Len() > maxHeaderBytes+int(s.config.MaxBodyBytes) {
		logging.Warn("Dropping oversized HTTP request",
			zap.String("remote_addr", pc.remote),
			zap.Int("bytes", pc.buf.Len()),
		)
		return true, false
	}
	if time.Since(pc.accepted) > s.config.RequestTimeout {
		logging.Debug("HTTP request timed out",
			zap.String("remote_addr", pc.remote),
			zap.Int("bytes", pc.buf.Len()),
		)
		return true, false
	}
	return false, false
}

// fill performs one read bounded by wait. A read that times out is not an
// error.
func (pc *pendingConn) fill(wait time.Duration) error {
	if pc.eof {
		return nil
	}
	if err := pc.conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return fmt.Errorf("failed to set read deadline: %w", err)
	}

	var chunk [readChunk]byte
	n, err := pc.conn.Read(chunk[:])
	pc.buf.Write(chunk[:n])

	switch {
	case err == nil, errors.Is(err, os.ErrDeadlineExceeded):
		return nil
	case errors.Is(err, io.EOF):
		pc.eof = true
		return nil
	default:
		return fmt.Errorf("failed to read from connection: %w", err)
	}
}

// respond dispatches a complete request and writes the buffered reply
func (s *Server) respond(pc *pendingConn, req *http.Request) {
	req.RemoteAddr = pc.remote
	LogHTTPRequestDetails(req, pc.remote)

	rw := newResponseWriter()
	req.Body = http.MaxBytesReader(rw, req.Body, s.config.MaxBodyBytes)
	s.dispatch(rw, req)

	if err := pc.conn.SetWriteDeadline(time.Now().Add(s.config.RequestTimeout)); err != nil {
		logging.Warn("Failed to set write deadline",
			zap.String("remote_addr", pc.remote),
			zap.Error(err),
		)
		return
	}
	n, err := rw.writeTo(pc.conn, req)
	if err != nil {
		logging.Warn("Failed to write HTTP response",
			zap.String("remote_addr", pc.remote),
			zap.Error(err),
		)
		return
	}

	telemetry.HTTPRequests.WithLabelValues(req.Method, strconv.Itoa(rw.status)).Inc()
	logging.LogHTTPResponse(pc.remote, rw.status, n)
}

func (s *Server) dispatch(w http.ResponseWriter, req *http.Request) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("HTTP handler panicked",
				zap.String("path", req.URL.Path),
				zap.Any("panic", r),
			)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}()

	if methods, ok := s.routes[req.URL.Path]; ok {
		if h, ok := methods[req.Method]; ok {
			h(w, req)
			return
		}
		if req.Method == http.MethodHead {
			if h, ok := methods[http.MethodGet]; ok {
				h(w, req)
				return
			}
		}
	}

	if s.notFound != nil {
		s.notFound(w, req)
		return
	}
	http.NotFound(w, req)
}

// Stop closes the listening socket and any pending connections. Safe to
// call when not started.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	for _, pc := range s.pending {
		_ = pc.conn.Close()
	}
	s.pending = nil
	err := s.listener.Close()
	s.listener = nil

	logging.Info("HTTP server stopped")
	if err != nil {
		return fmt.Errorf("failed to close listener: %w", err)
	}
	return nil
}
