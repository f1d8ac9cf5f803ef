package portal

import (
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/muurk/captiveconfig/internal/logging"
	"github.com/muurk/captiveconfig/internal/telemetry"
)

// ConfigPageHandler serves the network list and credential form to the
// registry's live session. A GET on / carrying an ssid query parameter is
// treated as a submission.
func ConfigPageHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := reg.Current()
		if s == nil {
			http.Error(w, "portal is not running", http.StatusServiceUnavailable)
			return
		}
		if r.Method == http.MethodGet && r.URL.Path == "/" && r.URL.Query().Has("ssid") {
			s.handleSubmit(w, r)
			return
		}
		s.servePage(w, http.StatusOK, "", "")
	}
}

// SubmitHandler accepts the credential form for the registry's live session.
func SubmitHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := reg.Current()
		if s == nil {
			http.Error(w, "portal is not running", http.StatusServiceUnavailable)
			return
		}
		s.handleSubmit(w, r)
	}
}

func (s *Session) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		telemetry.Submissions.WithLabelValues("rejected").Inc()
		logging.Warn("Failed to parse credential form",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		s.servePage(w, http.StatusBadRequest, "The form could not be read. Please try again.", "")
		return
	}

	creds, err := credentialsFromForm(r.Form)
	if err == nil {
		err = s.submit(creds)
	}
	if err != nil {
		telemetry.Submissions.WithLabelValues("rejected").Inc()
		logging.Info("Credential submission rejected",
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("ssid", creds.SSID),
			zap.String("reason", GetShortErrorMessage(err)),
		)
		s.servePage(w, http.StatusBadRequest, GetShortErrorMessage(err), creds.SSID)
		return
	}

	telemetry.Submissions.WithLabelValues("accepted").Inc()
	logging.Info("Credentials received",
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("ssid", creds.SSID),
		zap.Bool("open", creds.IsOpen()),
	)
	writePage(w, http.StatusOK, pageData{
		APSSID: s.config.APSSID,
		Done:   true,
		SSID:   creds.SSID,
	})
}

// credentialsFromForm extracts the submission. A typed hidden_ssid wins over
// the radio selection. Fields are taken byte for byte.
func credentialsFromForm(form url.Values) (Credentials, error) {
	var creds Credentials

	switch {
	case form.Get("hidden_ssid") != "":
		creds.SSID = form.Get("hidden_ssid")
	case form.Has("ssid"):
		creds.SSID = form.Get("ssid")
	default:
		return creds, NewValidationError("choose a network or type its name")
	}

	if !form.Has("passphrase") {
		return creds, NewValidationError("passphrase field is missing")
	}
	creds.Passphrase = form.Get("passphrase")
	return creds, nil
}

func (s *Session) servePage(w http.ResponseWriter, status int, message, selected string) {
	s.mu.Lock()
	networks := newNetworkViews(s.catalog.All(), selected)
	s.mu.Unlock()

	writePage(w, status, pageData{
		APSSID:   s.config.APSSID,
		Networks: networks,
		Error:    message,
	})
}
