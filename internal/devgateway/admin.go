package devgateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// InjectRequest is the body of POST /admin/events.
type InjectRequest struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CountResponse reports how many connections an admin action touched.
type CountResponse struct {
	Count int `json:"count"`
}

func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CountResponse{Count: s.DropAll()})
}

func (s *Server) handleInject(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req InjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Event == "" {
		http.Error(w, "event is required", http.StatusBadRequest)
		return
	}
	var payload any
	if len(req.Payload) > 0 {
		payload = req.Payload
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: s.Broadcast(req.Event, payload)})
}

func (s *Server) handlePushTokens(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.PushTokens())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.store.history(chi.URLParam(r, "key"), limit))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
