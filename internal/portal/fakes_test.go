package portal

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/muurk/captiveconfig/internal/wifi"
)

// fakeHTTP dispatches queued requests to the registered handlers, one per Poll.
type fakeHTTP struct {
	routes    map[string]http.HandlerFunc
	notFound  http.HandlerFunc
	startErr  error
	started   bool
	stopped   bool
	polls     int
	pending   []*http.Request
	responses []*httptest.ResponseRecorder
}

func newFakeHTTP() *fakeHTTP {
	return &fakeHTTP{routes: make(map[string]http.HandlerFunc)}
}

func (f *fakeHTTP) Handle(method, path string, h http.HandlerFunc) {
	f.routes[method+" "+path] = h
}

func (f *fakeHTTP) HandleNotFound(h http.HandlerFunc) {
	f.notFound = h
}

func (f *fakeHTTP) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeHTTP) Poll() (bool, error) {
	f.polls++
	if !f.started {
		return false, errors.New("not started")
	}
	if len(f.pending) == 0 {
		return false, nil
	}
	req := f.pending[0]
	f.pending = f.pending[1:]
	f.responses = append(f.responses, f.serve(req))
	return true, nil
}

func (f *fakeHTTP) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	if h, ok := f.routes[req.Method+" "+req.URL.Path]; ok {
		h(rec, req)
	} else if f.notFound != nil {
		f.notFound(rec, req)
	} else {
		http.NotFound(rec, req)
	}
	return rec
}

func (f *fakeHTTP) Stop() error {
	f.stopped = true
	f.started = false
	return nil
}

func (f *fakeHTTP) enqueue(req *http.Request) {
	f.pending = append(f.pending, req)
}

func (f *fakeHTTP) lastResponse(t *testing.T) *httptest.ResponseRecorder {
	t.Helper()
	if len(f.responses) == 0 {
		t.Fatal("no HTTP response recorded")
	}
	return f.responses[len(f.responses)-1]
}

type fakeDNS struct {
	startErr error
	started  bool
	stopped  bool
	polls    int
}

func (f *fakeDNS) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeDNS) Poll() (bool, error) {
	f.polls++
	return false, nil
}

func (f *fakeDNS) Stop() error {
	f.stopped = true
	f.started = false
	return nil
}

type testRig struct {
	session  *Session
	registry *Registry
	scanner  *wifi.MockScanner
	ap       *wifi.MockAP
	http     *fakeHTTP
	dns      *fakeDNS
	seen     [][2]State
}

func newTestRig(t *testing.T, networks ...wifi.AccessPoint) *testRig {
	t.Helper()
	return newTestRigWith(t, func(*testRig) {}, networks...)
}

// newTestRigWith lets a test adjust the fakes before the session is built.
func newTestRigWith(t *testing.T, setup func(*testRig), networks ...wifi.AccessPoint) *testRig {
	t.Helper()

	rig := &testRig{
		registry: NewRegistry(),
		scanner:  wifi.NewMockScanner(0, networks...),
		ap:       &wifi.MockAP{},
		http:     newFakeHTTP(),
		dns:      &fakeDNS{},
	}
	setup(rig)

	s, err := NewSession(SessionConfig{
		Interface: "wlan0",
		Registry:  rig.registry,
		OnTransition: func(from, to State) {
			rig.seen = append(rig.seen, [2]State{from, to})
		},
	}, Services{
		Scanner: rig.scanner,
		SoftAP:  rig.ap,
		HTTP:    rig.http,
		DNS:     rig.dns,
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	rig.session = s
	return rig
}

// driveTo calls Progress until the session reaches want.
func (r *testRig) driveTo(t *testing.T, want State) {
	t.Helper()
	for i := 0; i < 50; i++ {
		if r.session.State() == want {
			return
		}
		r.session.Progress()
	}
	t.Fatalf("session stuck in %s, want %s", r.session.State(), want)
}

func postForm(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}
