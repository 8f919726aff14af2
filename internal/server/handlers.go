package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/grailmeter/grail-meter/apimodels"
	"github.com/grailmeter/grail-meter/internal/analyzer"
)

const maxUploadBytes = 32 << 20 // per request

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Server is running"})
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Test endpoint is working"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	s.runAnalysis(w, r)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	s.runAnalysis(w, r)
}

// runAnalysis is shared by /analyze and /upload; both accept one or more
// multipart images and return the merged analysis payload.
func (s *Server) runAnalysis(w http.ResponseWriter, r *http.Request) {
	uploads, err := uploadsFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.analyzer.Analyze(r.Context(), uploads)
	if err != nil {
		if errors.Is(err, analyzer.ErrNoAnalysis) {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		slog.Error("analysis request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIP(w http.ResponseWriter, r *http.Request) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, s.ipEndpoint, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("ip lookup failed: %v", err))
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		slog.Error("failed to forward ip response", "error", err)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("history lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load search history")
		return
	}
	if records == nil {
		records = []apimodels.SearchRecord{}
	}

	writeJSON(w, http.StatusOK, apimodels.HistoryResponse{Searches: records})
}

// uploadsFromRequest validates multipart image uploads and stages each one
// through a temp file that is removed before the request proceeds, success
// or not.
func uploadsFromRequest(r *http.Request) ([]analyzer.Upload, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, fmt.Errorf("invalid multipart upload: %w", err)
	}

	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		for _, key := range []string{"file", "files"} {
			headers = append(headers, r.MultipartForm.File[key]...)
		}
	}
	if len(headers) == 0 {
		return nil, errors.New("no file uploaded")
	}

	uploads := make([]analyzer.Upload, 0, len(headers))
	for _, fh := range headers {
		data, mimeType, err := stageUpload(fh)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, analyzer.Upload{
			Filename: fh.Filename,
			MimeType: mimeType,
			Data:     data,
		})
	}
	return uploads, nil
}

func stageUpload(fh *multipart.FileHeader) ([]byte, string, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, "", fmt.Errorf("open upload %q: %w", fh.Filename, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "grail-upload-*.img")
	if err != nil {
		return nil, "", fmt.Errorf("stage upload %q: %w", fh.Filename, err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return nil, "", fmt.Errorf("write upload %q: %w", fh.Filename, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, "", fmt.Errorf("flush upload %q: %w", fh.Filename, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read staged upload %q: %w", fh.Filename, err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("uploaded file %q is empty", fh.Filename)
	}

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, "", fmt.Errorf("uploaded file %q is not an image (%s)", fh.Filename, mimeType)
	}

	return data, mimeType, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
