package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/randytsao24/trafficintel/internal/models"
	"github.com/randytsao24/trafficintel/internal/store"
)

const defaultListLimit = 50

// ResourceHandler serves list and create for one record kind
type ResourceHandler[T models.Record] struct {
	store        DocumentStore
	collection   string
	statusFilter bool
}

// NewResourceHandler creates a handler for records of type T. When
// statusFilter is set, List honours the status query parameter.
func NewResourceHandler[T models.Record](s DocumentStore, statusFilter bool) *ResourceHandler[T] {
	var zero T
	return &ResourceHandler[T]{
		store:        s,
		collection:   zero.Collection(),
		statusFilter: statusFilter,
	}
}

// List returns up to limit sanitized records, optionally filtered by status
func (h *ResourceHandler[T]) List(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeValidation(w, "query", err)
		return
	}

	var filter store.Filter
	if status := r.URL.Query().Get("status"); h.statusFilter && status != "" {
		filter = store.Filter{"status": status}
	}

	docs, err := h.store.GetDocuments(r.Context(), h.collection, filter, limit)
	if err != nil {
		slog.Error("listing documents", "collection", h.collection, "error", err)
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		out = append(out, Sanitize(doc))
	}
	writeJSON(w, http.StatusOK, out)
}

// Create validates the body and stores it as a new record
func (h *ResourceHandler[T]) Create(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeDetail(w, http.StatusBadRequest, "reading request body: "+err.Error())
		return
	}

	rec, err := models.Decode[T](body)
	if err != nil {
		writeValidation(w, "body", err)
		return
	}

	id, err := h.store.CreateDocument(r.Context(), h.collection, rec.Document())
	if err != nil {
		slog.Error("creating document", "collection", h.collection, "error", err)
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"id": id,
	})
}

// Sanitize drops the store identifier and renders timestamps as text
func Sanitize(doc store.Document) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		switch k {
		case store.FieldID:
			continue
		case store.FieldCreatedAt, store.FieldUpdatedAt:
			out[k] = timestampText(v)
		default:
			out[k] = v
		}
	}
	return out
}

func timestampText(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case string:
		return t
	default:
		return fmt.Sprint(v)
	}
}

// parseLimit reads the limit query parameter. Negative values behave as 0.
func parseLimit(r *http.Request) (int, error) {
	str := r.URL.Query().Get("limit")
	if str == "" {
		return defaultListLimit, nil
	}

	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, &models.ValidationError{Fields: []models.FieldError{{
			Field:   "limit",
			Kind:    models.KindType,
			Message: "must be an integer",
		}}}
	}
	return max(val, 0), nil
}
