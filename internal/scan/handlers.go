package scan

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/zombor/labelcheck/internal/vision"
)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError maps service errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errorStatus(err), map[string]string{"error": err.Error()})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrFailedPrecondition), errors.Is(err, ErrStatusConflict):
		return http.StatusConflict
	case errors.Is(err, vision.ErrInvalidResponse), errors.Is(err, vision.ErrValidation):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleStartScan accepts a multipart image upload and starts the pipeline.
// The response carries only the scan id; processing happens in the background
// and the caller follows it through the record.
func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request, userID string) {
	// 50MB to handle high-resolution phone photos
	maxFormSize := int64(50 << 20)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		writeError(w, fmt.Errorf("%w: invalid multipart form", ErrInvalidArgument))
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, fmt.Errorf("%w: no file provided", ErrInvalidArgument))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading upload", "error", err)
		writeError(w, fmt.Errorf("reading upload: %w", err))
		return
	}

	contentType := header.Header.Get("Content-Type")

	scanID, err := s.service.StartScan(userID, header.Filename, data, contentType)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"scanId": scanID})
}

// handleRetryScan re-runs the analysis stage for a failed scan and returns
// the result synchronously.
func (s *Server) handleRetryScan(w http.ResponseWriter, r *http.Request, userID string) {
	result, err := s.service.Retry(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleAnalyze scores a caller-supplied ingredient list directly.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request, userID string) {
	var req struct {
		Ingredients []string `json:"ingredients"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body", ErrInvalidArgument))
		return
	}

	result, err := s.service.AnalyzeIngredients(r.Context(), userID, req.Ingredients)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGetScan returns a single scan record
func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request, userID string) {
	rec, err := s.service.GetScan(r.PathValue("id"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleListScans returns the caller's scan history, newest first
func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request, userID string) {
	scans, err := s.service.ListScans(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scans)
}

// handleScanEvents streams record updates for one scan as server-sent events.
// The current record is delivered immediately, then the full record after
// every committed write, until the client disconnects.
func (s *Server) handleScanEvents(w http.ResponseWriter, r *http.Request, userID string) {
	scanID := r.PathValue("id")

	rec, err := s.service.GetScan(scanID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("streaming unsupported"))
		return
	}

	// Subscribe before sending the snapshot so no update can fall between.
	updates, cancel := s.service.WatchScan(scanID)
	defer cancel()

	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, rec); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case rec := <-updates:
			if err := writeEvent(w, rec); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// handleGetFile serves stored scan images by the URL recorded on the scan.
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request, userID string) {
	path := strings.TrimPrefix(r.URL.Path, "/files/")

	data, err := s.service.ScanImage(path, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Write(data)
}
