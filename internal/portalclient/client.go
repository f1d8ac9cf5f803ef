package portalclient

import (
	"context"
	"fmt"
	"html"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/captiveconfig/internal/logging"
	"github.com/muurk/captiveconfig/internal/portal"
)

const (
	DefaultTimeout       = 5 * time.Second
	DefaultMaxRetries    = 3
	DefaultRetryDelay    = 500 * time.Millisecond
	DefaultMaxRetryDelay = 10 * time.Second

	// maxPageBytes bounds how much of a reply is read
	maxPageBytes = 256 << 10

	pageMarker = "Choose a network"
	doneMarker = "The device will now join"
)

var errorPattern = regexp.MustCompile(`<p class="err">([^<]*)</p>`)

// Client submits credentials to a running portal the way a browser would.
type Client struct {
	// BaseURL is the portal root, e.g. "http://192.168.1.1"
	BaseURL string

	HTTPClient *http.Client

	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// NewClient creates a client for the portal at host:port.
func NewClient(host string, port int) *Client {
	base := "http://" + host
	if port != 80 {
		base = "http://" + net.JoinHostPort(host, strconv.Itoa(port))
	}
	return NewClientWithURL(base)
}

// NewClientWithURL creates a client for a full base URL.
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		HTTPClient:    &http.Client{Timeout: DefaultTimeout},
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
	}
}

// Ping fetches the config page and checks that it is one.
func (c *Client) Ping(ctx context.Context) error {
	return c.retry(ctx, func() error {
		status, body, err := c.do(ctx, http.MethodGet, nil)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return &Error{Type: ErrTypeHTTP, StatusCode: status, Message: fmt.Sprintf("unexpected status code: %d", status), Retryable: status == http.StatusServiceUnavailable}
		}
		if !strings.Contains(body, pageMarker) {
			return &Error{Type: ErrTypeNotPortal, Message: "reply is not a config page"}
		}
		return nil
	})
}

// Submit posts creds as the config form. A refused submission returns an
// ErrTypeRejected error carrying the portal's message; it is not retried.
func (c *Client) Submit(ctx context.Context, creds portal.Credentials) error {
	form := url.Values{}
	form.Set("ssid", creds.SSID)
	form.Set("passphrase", creds.Passphrase)

	return c.retry(ctx, func() error {
		status, body, err := c.do(ctx, http.MethodPost, form)
		if err != nil {
			return err
		}
		switch {
		case status == http.StatusOK && strings.Contains(body, doneMarker):
			logging.Info("Credentials accepted by portal", zap.String("ssid", creds.SSID))
			return nil
		case status == http.StatusBadRequest:
			msg := "submission rejected"
			if m := errorPattern.FindStringSubmatch(body); m != nil {
				msg = html.UnescapeString(m[1])
			}
			return &Error{Type: ErrTypeRejected, StatusCode: status, Message: msg}
		case status == http.StatusServiceUnavailable:
			return &Error{Type: ErrTypeHTTP, StatusCode: status, Message: "portal not serving yet", Retryable: true}
		case status == http.StatusOK:
			return &Error{Type: ErrTypeNotPortal, StatusCode: status, Message: "reply did not confirm the submission"}
		default:
			return &Error{Type: ErrTypeHTTP, StatusCode: status, Message: fmt.Sprintf("unexpected status code: %d", status)}
		}
	})
}

// retry runs attempt until it succeeds, fails permanently, or MaxRetries
// extra attempts have been made. The delay doubles up to MaxRetryDelay.
func (c *Client) retry(ctx context.Context, attempt func() error) error {
	var lastErr error
	delay := c.RetryDelay

	for i := 0; i <= c.MaxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.MaxRetryDelay {
				delay = c.MaxRetryDelay
			}
		}

		err := attempt()
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return err
		}
		logging.Debug("Portal request failed, retrying", zap.Int("attempt", i+1), zap.Error(err))
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, method string, form url.Values) (int, string, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+"/", body)
	if err != nil {
		return 0, "", &Error{Type: ErrTypeNetwork, Message: "failed to create request", Err: err}
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, "", classifyNetworkError(method+" request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return 0, "", classifyNetworkError("failed to read response body", err)
	}
	return resp.StatusCode, string(data), nil
}
