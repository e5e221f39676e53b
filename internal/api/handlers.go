package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/codesnip/snipsync/internal/snippets"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleListSnippets(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListSnippets(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetSnippet(w http.ResponseWriter, r *http.Request) {
	sn, err := s.store.GetSnippet(r.Context(), r.PathValue("id"))
	if errors.Is(err, snippets.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Snippet not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, sn)
}

func (s *Server) handleCreateSnippet(w http.ResponseWriter, r *http.Request) {
	var sn snippets.Snippet
	if !s.decode(w, r, &sn) {
		return
	}
	if err := sn.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.store.CreateSnippet(r.Context(), &sn); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, sn)
}

func (s *Server) handleUpdateSnippet(w http.ResponseWriter, r *http.Request) {
	var sn snippets.Snippet
	if !s.decode(w, r, &sn) {
		return
	}
	id := r.PathValue("id")
	err := s.store.UpdateSnippet(r.Context(), id, &sn)
	if errors.Is(err, snippets.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Snippet not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, sn)
}

func (s *Server) handleDeleteSnippet(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteSnippet(r.Context(), r.PathValue("id"))
	if errors.Is(err, snippets.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Snippet not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleListNamespaces(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListNamespaces(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateNamespace(w http.ResponseWriter, r *http.Request) {
	var ns snippets.Namespace
	if !s.decode(w, r, &ns) {
		return
	}
	if ns.CreatedAt == 0 {
		ns.CreatedAt = snippets.Now()
	}
	if err := ns.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.store.CreateNamespace(r.Context(), &ns); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, ns)
}

func (s *Server) handleDeleteNamespace(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteNamespace(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, snippets.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Namespace not found")
	case errors.Is(err, snippets.ErrDefaultNamespace):
		writeMessage(w, http.StatusBadRequest, "Cannot delete default namespace")
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func (s *Server) handleWipe(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Wipe(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.logger.Println("Database wiped and recreated")
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Database wiped and recreated",
	})
}

// decode reads a JSON body into v, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Printf("Error: %v", err)
	}
	writeMessage(w, status, err.Error())
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
