package web

import (
	"net/http"
	"strings"

	"github.com/esrs-tools/csvprep/internal/logging"
	"github.com/esrs-tools/csvprep/internal/pipeline"
	"github.com/esrs-tools/csvprep/internal/web/templates"
)

// errorResponse is the JSON body returned for API errors.
type errorResponse struct {
	Error  string `json:"error"`
	Action string `json:"action,omitempty"`
	Code   string `json:"code,omitempty"`
}

// respondError translates err into a user-facing response. API routes get
// a JSON body; page routes get an HTML alert fragment so the frontend can
// swap it in place.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := pipeline.MapError(err)

	logging.FromContext(r.Context()).Error("request failed",
		"path", r.URL.Path,
		"status", status,
		"code", msg.Code,
		"error", err,
	)

	if wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		writeJSON(w, errorResponse{
			Error:  msg.Message,
			Action: msg.Action,
			Code:   msg.Code,
		})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if renderErr := templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); renderErr != nil {
		logging.FromContext(r.Context()).Error("error fragment render failed", "error", renderErr)
	}
}

// wantsJSON reports whether the client expects a JSON error body.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
