package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/openexams/paperd/internal/core/domain"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse represents a simple status response
type StatusResponse struct {
	Status string `json:"status"`
}

// Health endpoints

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Hello World from " + s.appName,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports readiness of the backing services. The cache is
// optional: a cold cache connection does not fail readiness, the document
// store does.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  "database unreachable",
		})
		return
	}

	status := map[string]string{"status": "ready"}
	if s.cache != nil {
		if err := s.cache.Ping(r.Context()); err != nil {
			status["cache"] = "unreachable"
		} else {
			status["cache"] = "ok"
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Sample paper endpoints

func (s *Server) handleCreatePaper(w http.ResponseWriter, r *http.Request) {
	var paper domain.SamplePaper
	if err := json.NewDecoder(r.Body).Decode(&paper); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := s.paperService.Create(r.Context(), &paper)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "Sample paper created successfully",
		"id":      id,
	})
}

func (s *Server) handleGetPaper(w http.ResponseWriter, r *http.Request) {
	paperID := r.PathValue("id")

	doc, err := s.paperService.Get(r.Context(), paperID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound,
				fmt.Sprintf("Sample paper with ID %s not found", paperID))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleUpdatePaper(w http.ResponseWriter, r *http.Request) {
	paperID := r.PathValue("id")

	var update map[string]any
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, err := s.paperService.Update(r.Context(), paperID, update)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoFieldsUpdated):
			writeError(w, http.StatusBadRequest, "No fields were updated")
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound,
				fmt.Sprintf("Sample paper with ID %s not found", paperID))
		default:
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Sample paper updated successfully",
		"paper":   doc,
	})
}

func (s *Server) handleDeletePaper(w http.ResponseWriter, r *http.Request) {
	paperID := r.PathValue("id")

	err := s.paperService.Delete(r.Context(), paperID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound,
				fmt.Sprintf("Sample paper with ID %s not found", paperID))
		case errors.Is(err, domain.ErrDeleteFailed):
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("Failed to delete the sample paper with ID %s", paperID))
		default:
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Sample paper deleted successfully",
	})
}

func (s *Server) handleSearchPapers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	limit, err := queryInt(r, "limit", 10)
	if err != nil || limit < 1 || limit > 100 {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
		return
	}
	skip, err := queryInt(r, "skip", 0)
	if err != nil || skip < 0 {
		writeError(w, http.StatusBadRequest, "skip must be non-negative")
		return
	}

	result, err := s.paperService.Search(r.Context(), query, limit, skip)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Extraction endpoints

const maxUploadSize = 32 << 20 // 32 MB

func (s *Server) handleExtractPDF(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if header.Header.Get("Content-Type") != "application/pdf" {
		writeError(w, http.StatusBadRequest, "Only PDF files are allowed")
		return
	}

	taskID, err := s.extractionService.SubmitPDF(r.Context(), header.Filename, file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "PDF processing started",
		"task_id": taskID,
	})
}

func (s *Server) handleExtractText(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	text := r.FormValue("text")
	taskID, err := s.extractionService.SubmitText(r.Context(), text)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "text field is required")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "Text processing started",
		"task_id": taskID,
	})
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task_id")

	task, err := s.extractionService.Status(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"status":  "not_found",
				"message": "Task not found",
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// Helpers

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
