package portal

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/muurk/captiveconfig/internal/wifi"
)

const pageHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.APSSID}} Wi-Fi setup</title>
<style>
body { font-family: sans-serif; max-width: 28em; margin: 1em auto; padding: 0 1em; }
li { list-style: none; padding: .3em 0; }
.err { color: #b00020; }
.sig { color: #666; font-size: .85em; }
input[type=text], input[type=password] { width: 100%; padding: .4em; box-sizing: border-box; }
</style>
</head>
<body>
{{- if .Done}}
<h1>Saved</h1>
<p>The device will now join <b>{{.SSID}}</b>. You can disconnect from {{.APSSID}}.</p>
{{- else}}
<h1>Choose a network</h1>
{{- if .Error}}
<p class="err">{{.Error}}</p>
{{- end}}
<form method="POST" action="/">
<ul>
{{- range .Networks}}
<li>
{{- if .Hidden}}
<label><input type="radio" name="ssid" value="" disabled> <i>hidden network</i></label>
{{- else}}
<label><input type="radio" name="ssid" value="{{.SSID}}"{{if .Selected}} checked{{end}}> {{.SSID}}</label>
{{- end}}
<span class="sig">{{.Bars}} {{.RSSI}} dBm{{if .Secured}} &#128274; {{.Security}}{{end}}</span>
</li>
{{- else}}
<li>No networks found.</li>
{{- end}}
</ul>
<p><label>Other network name<br><input type="text" name="hidden_ssid" maxlength="32" autocapitalize="none"></label></p>
<p><label>Passphrase<br><input type="password" name="passphrase" maxlength="64"></label></p>
<p><input type="submit" value="Connect"></p>
</form>
{{- end}}
</body>
</html>
`

var pageTemplate = template.Must(template.New("page").Parse(pageHTML))

type pageData struct {
	APSSID   string
	Networks []networkView
	Error    string
	Done     bool
	SSID     string
}

type networkView struct {
	SSID     string
	Hidden   bool
	Selected bool
	RSSI     int
	Bars     string
	Secured  bool
	Security string
}

func newNetworkViews(aps []wifi.AccessPoint, selected string) []networkView {
	views := make([]networkView, 0, len(aps))
	for _, ap := range aps {
		views = append(views, networkView{
			SSID:     ap.SSID,
			Hidden:   ap.SSID == "",
			Selected: ap.SSID != "" && ap.SSID == selected,
			RSSI:     ap.RSSI,
			Bars:     signalBars(ap.RSSI),
			Secured:  !ap.Security.IsOpen(),
			Security: ap.Security.String(),
		})
	}
	return views
}

// signalBars maps dBm to a four step indicator
func signalBars(rssi int) string {
	switch {
	case rssi >= -50:
		return "▂▄▆█"
	case rssi >= -60:
		return "▂▄▆_"
	case rssi >= -70:
		return "▂▄__"
	default:
		return "▂___"
	}
}

// writePage renders data with an explicit status and disables caching.
func writePage(w http.ResponseWriter, status int, data pageData) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
