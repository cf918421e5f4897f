package management

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ErrUnknownType is returned by a Querier for entity types it does not serve.
var ErrUnknownType = errors.New("unknown entity type")

// NewHandler serves q over the same HTTP QUERY protocol Client speaks.
func NewHandler(q Querier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
			return
		}
		if id := r.Header.Get(CorrelationHeader); id != "" {
			w.Header().Set(CorrelationHeader, id)
		}
		w.Header().Set("Content-Type", "application/json")

		if req.Operation != "QUERY" {
			writeStatus(w, http.StatusNotImplemented, "operation "+req.Operation+" not supported")
			return
		}
		resp, err := q.Query(r.Context(), req.EntityType, req.AttributeNames)
		switch {
		case errors.Is(err, ErrUnknownType):
			writeStatus(w, http.StatusNotFound, err.Error())
			return
		case err != nil:
			writeStatus(w, http.StatusInternalServerError, err.Error())
			return
		}
		if req.Offset > 0 || req.Count > 0 {
			resp.Results = window(resp.Results, req.Offset, req.Count)
		}
		resp.StatusCode = http.StatusOK
		resp.StatusDescription = "OK"
		_ = json.NewEncoder(w).Encode(resp)
	})
}

func writeStatus(w http.ResponseWriter, code int, desc string) {
	_ = json.NewEncoder(w).Encode(QueryResponse{StatusCode: code, StatusDescription: desc})
}

func window(rows [][]any, offset, count int) [][]any {
	if offset >= len(rows) {
		return [][]any{}
	}
	rows = rows[offset:]
	if count > 0 && count < len(rows) {
		rows = rows[:count]
	}
	return rows
}
