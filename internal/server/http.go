package server

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/captiveconfig/internal/logging"
	"github.com/muurk/captiveconfig/internal/urls"
)

// responseWriter buffers a handler's output so the full response can be
// written with an explicit Content-Length and Connection: close.
type responseWriter struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func newResponseWriter() *responseWriter {
	return &responseWriter{header: make(http.Header), status: http.StatusOK}
}

func (w *responseWriter) Header() http.Header {
	return w.header
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = status
}

func (w *responseWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.Write(p)
}

// writeTo serializes the buffered response and returns the bytes written.
func (w *responseWriter) writeTo(conn io.Writer, req *http.Request) (int, error) {
	if w.header.Get("Content-Type") == "" && w.body.Len() > 0 {
		w.header.Set("Content-Type", http.DetectContentType(w.body.Bytes()))
	}

	resp := &http.Response{
		StatusCode:    w.status,
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        w.header,
		ContentLength: int64(w.body.Len()),
		Body:          io.NopCloser(bytes.NewReader(w.body.Bytes())),
		Close:         true,
		Request:       req,
	}

	cw := &countingWriter{w: conn}
	if err := resp.Write(cw); err != nil {
		return cw.n, fmt.Errorf("failed to write HTTP response: %w", err)
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}

// errIncomplete means the buffered bytes are a prefix of a request
var errIncomplete = errors.New("incomplete HTTP request")

// ParseHTTPRequest parses one request, body included, from the bytes a
// connection has delivered so far. It returns errIncomplete while more
// bytes are needed.
func ParseHTTPRequest(data []byte) (*http.Request, error) {
	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(data)))
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errIncomplete
		}
		return nil, fmt.Errorf("failed to read HTTP request: %w", err)
	}

	body, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errIncomplete
		}
		return nil, fmt.Errorf("failed to read HTTP request body: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	return req, nil
}

// LogHTTPRequestDetails logs all details of an HTTP request
func LogHTTPRequestDetails(req *http.Request, remoteAddr string) {
	headers := make(map[string]string)
	for key, values := range req.Header {
		headers[key] = strings.Join(values, ", ")
	}

	logging.LogHTTPRequest(remoteAddr, req.Method, req.URL.Path, headers)

	if p, ok := urls.MatchProbe(req.Host, req.URL.Path); ok {
		logging.Info("Captive-portal probe",
			zap.String("remote_addr", remoteAddr),
			zap.String("os", p.OS),
			zap.String("url", p.URL()),
		)
	}

	// Captive-portal probes are recognisable by host and user agent
	logging.Debug("HTTP request details",
		zap.String("remote_addr", remoteAddr),
		zap.String("host", req.Host),
		zap.String("query", req.URL.RawQuery),
		zap.String("user_agent", req.Header.Get("User-Agent")),
		zap.String("content_type", req.Header.Get("Content-Type")),
		zap.Int64("content_length", req.ContentLength),
	)
}
