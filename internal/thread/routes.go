package thread

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the thread read API.
func RegisterRoutes(r chi.Router, store Store) {
	r.Route("/api/threads", func(r chi.Router) {
		r.Get("/{id}", handleGetHistory(store))
		r.Get("/{id}/export", handleExport(store))
	})
}

func handleGetHistory(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		rec, err := store.Get(r.Context(), id)
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		if rec == nil {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}

		maxTurns := 0
		if v := r.URL.Query().Get("max_turns"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				maxTurns = n
			}
		}

		turns, err := store.History(r.Context(), id, maxTurns)
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(History{ThreadID: id, UserID: rec.UserID, Turns: turns})
	}
}

func handleExport(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		rec, err := store.Get(r.Context(), id)
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		if rec == nil {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}

		turns, err := store.History(r.Context(), id, 0)
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		h := History{ThreadID: id, UserID: rec.UserID, Turns: turns}

		switch r.URL.Query().Get("format") {
		case "html":
			out, err := ExportHTML(h)
			if err != nil {
				http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(out))
		default:
			w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
			w.Write([]byte(ExportMarkdown(h)))
		}
	}
}
