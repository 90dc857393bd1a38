package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/farmcost/internal/refdata"
	"github.com/hyperengineering/farmcost/internal/types"
	"github.com/hyperengineering/farmcost/internal/validation"
)

const (
	defaultRunLimit = 50
	maxRunLimit     = 500
)

// List handles GET /get_<plural>.
func (h *Handler) List(kind *refdata.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := h.store.List(r.Context(), kind)
		if err != nil {
			MapStoreError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, rows)
	}
}

// Add handles POST /add_<singular>.
func (h *Handler) Add(kind *refdata.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		row, ok := h.parseRow(w, r, kind)
		if !ok {
			return
		}
		if err := h.store.Add(r.Context(), kind, row); err != nil {
			MapStoreError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, types.SuccessResponse{Status: statusSuccess})
	}
}

// Update handles POST /update_<singular>.
func (h *Handler) Update(kind *refdata.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		row, ok := h.parseRow(w, r, kind)
		if !ok {
			return
		}
		created, err := h.store.Upsert(r.Context(), kind, row)
		if err != nil {
			MapStoreError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, types.UpsertResponse{Status: statusSuccess, Created: created})
	}
}

// parseRow decodes and validates a reference row. On failure it has
// already written the response.
func (h *Handler) parseRow(w http.ResponseWriter, r *http.Request, kind *refdata.Kind) (refdata.Row, bool) {
	var raw map[string]any
	if err := decodeJSON(w, r, &raw); err != nil || raw == nil {
		WriteError(w, r, http.StatusBadRequest, msgInvalidJSON)
		return nil, false
	}
	row, errs := kind.Parse(raw)
	if len(errs) > 0 {
		WriteValidationErrors(w, r, errs)
		return nil, false
	}
	return row, true
}

// DeleteByField handles POST /delete_<singular>: removes every row whose
// legacy delete field matches. Matching nothing is not an error.
func (h *Handler) DeleteByField(kind *refdata.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		if err := decodeJSON(w, r, &raw); err != nil || raw == nil {
			WriteError(w, r, http.StatusBadRequest, msgInvalidJSON)
			return
		}

		value := raw[kind.DeleteField]
		if n, ok := value.(json.Number); ok {
			value = n.String()
		}
		s, isString := value.(string)
		if !isString || validation.IsBlank(s) {
			WriteValidationErrors(w, r, []validation.ValidationError{{Field: kind.DeleteField, Message: "is required"}})
			return
		}

		n, err := h.store.DeleteByField(r.Context(), kind, s)
		if err != nil {
			MapStoreError(w, r, err)
			return
		}
		slog.Info("bulk delete",
			"component", "api",
			"kind", kind.Name,
			"field", kind.DeleteField,
			"deleted", n,
		)
		WriteJSON(w, http.StatusOK, types.DeleteResponse{Status: statusSuccess, Deleted: n})
	}
}

// DeleteByKey handles DELETE /<singular>/{key}.
func (h *Handler) DeleteByKey(kind *refdata.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		// chi routes on RawPath when the path carries escapes such as %2F
		if r.URL.RawPath != "" {
			unescaped, err := url.PathUnescape(key)
			if err != nil {
				WriteError(w, r, http.StatusBadRequest, msgInvalidFields)
				return
			}
			key = unescaped
		}

		if err := h.store.DeleteByKey(r.Context(), kind, key); err != nil {
			MapStoreError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, types.DeleteResponse{Status: statusSuccess, Deleted: 1})
	}
}

// Ingest handles POST /ingest_<plural>.
func (h *Handler) Ingest(kind *refdata.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := h.store.Ingest(r.Context(), kind)
		h.metrics.ObserveIngest(kind.Name, res, err)
		if err != nil {
			MapStoreError(w, r, err)
			return
		}
		logIngest(res)
		WriteJSON(w, http.StatusOK, types.IngestResponse{Status: statusSuccess, IngestResult: *res})
	}
}

// IngestAll handles POST /ingest_all.
func (h *Handler) IngestAll(w http.ResponseWriter, r *http.Request) {
	results, err := h.store.IngestAll(r.Context())
	for i := range results {
		h.metrics.ObserveIngest(results[i].Kind, &results[i], nil)
		logIngest(&results[i])
	}
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, types.IngestAllResponse{Status: statusSuccess, Results: results})
}

// IngestRuns handles GET /ingest_runs?kind=&limit=.
func (h *Handler) IngestRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	kindName := ""
	if v := q.Get("kind"); v != "" {
		kind, err := refdata.Lookup(v)
		if err != nil {
			WriteError(w, r, http.StatusBadRequest, msgUnknownKind)
			return
		}
		kindName = kind.Name
	}

	limit := defaultRunLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			WriteError(w, r, http.StatusBadRequest, msgInvalidQueryArg)
			return
		}
		limit = min(n, maxRunLimit)
	}

	runs, err := h.store.ListIngestRuns(r.Context(), kindName, limit)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if runs == nil {
		runs = []types.IngestResult{}
	}
	WriteJSON(w, http.StatusOK, runs)
}

func logIngest(res *types.IngestResult) {
	slog.Info("ingest complete",
		"component", "api",
		"kind", res.Kind,
		"run_id", res.RunID,
		"scanned", res.Scanned,
		"inserted", res.Inserted,
		"skipped", res.Skipped,
	)
}
