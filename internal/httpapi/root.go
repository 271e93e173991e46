package httpapi

import (
	"fmt"
	"html"
	"net/http"
	"os"
)

// handleRoot serves a small welcome page, mirroring the Python-era
// service's landing response.
func handleRoot(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hostname, _ := os.Hostname()
		model := "none"
		if info, ok := svc.Info(); ok {
			model = fmt.Sprintf("%s (%s)", info.ID, info.Kind)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<h1>Welcome to inferd</h1>
<p>Hostname: %s</p>
<p>Active model: %s</p>
<p>API docs: <a href="/swagger/index.html">/swagger/</a> (when built with the swagger tag)</p>
`, html.EscapeString(hostname), html.EscapeString(model))
	}
}
