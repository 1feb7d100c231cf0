// Package handlers contains HTTP request handlers
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/randytsao24/trafficintel/internal/models"
)

// maxDetailLen bounds error text returned to clients
const maxDetailLen = 200

// ValidationDetail is one entry of a 422 response body
type ValidationDetail struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

// writeDetail writes {"detail": msg}
func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"detail": truncate(msg, maxDetailLen)})
}

// writeValidation writes a 422 listing every offending field, located in
// the request part named by loc ("body" or "query")
func writeValidation(w http.ResponseWriter, loc string, err error) {
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	details := make([]ValidationDetail, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		path := []string{loc}
		if f.Field != "" {
			path = append(path, f.Field)
		}
		details = append(details, ValidationDetail{Loc: path, Msg: f.Message, Type: f.Kind})
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": details})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
