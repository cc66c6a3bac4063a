package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/rollreview/internal/api/middleware"
	"github.com/kiranshivaraju/rollreview/internal/api/response"
	"github.com/kiranshivaraju/rollreview/internal/reconcile"
	"github.com/kiranshivaraju/rollreview/pkg/models"
)

// AnalysisService defines the interface the analysis handlers depend on.
type AnalysisService interface {
	Import(ctx context.Context, videoID int64, raw []byte) error
	Merge(ctx context.Context, videoID int64, patch *models.AnalysisPatch, editor string) (*models.ProjectedResult, error)
	Project(ctx context.Context, videoID int64) (*models.ProjectedResult, error)
}

// NewGetAnalysisHandler returns an http.HandlerFunc for
// GET /api/v1/videos/{videoID}/analysis.
func NewGetAnalysisHandler(svc AnalysisService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID, ok := videoIDParam(w, r)
		if !ok {
			return
		}

		out, err := svc.Project(r.Context(), videoID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.JSON(w, out)
	}
}

// NewImportAnalysisHandler returns an http.HandlerFunc for
// PUT /api/v1/videos/{videoID}/analysis. The body is the raw AI payload; it
// replaces the video's analysis and the new projection is returned.
func NewImportAnalysisHandler(svc AnalysisService, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID, ok := videoIDParam(w, r)
		if !ok {
			return
		}

		raw, ok := readBody(w, r, maxBytes)
		if !ok {
			return
		}

		if err := svc.Import(r.Context(), videoID, raw); err != nil {
			writeServiceError(w, r, err)
			return
		}

		out, err := svc.Project(r.Context(), videoID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.JSON(w, out)
	}
}

// NewPatchAnalysisHandler returns an http.HandlerFunc for
// PATCH /api/v1/videos/{videoID}/analysis. The calling key's name is recorded
// as the editor.
func NewPatchAnalysisHandler(svc AnalysisService, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID, ok := videoIDParam(w, r)
		if !ok {
			return
		}

		raw, ok := readBody(w, r, maxBytes)
		if !ok {
			return
		}

		var patch models.AnalysisPatch
		if err := json.Unmarshal(raw, &patch); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		editor, _ := mw.GetKeyName(r)
		out, err := svc.Merge(r.Context(), videoID, &patch, editor)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.JSON(w, out)
	}
}

func videoIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "videoID"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "videoID must be a positive integer", nil)
		return 0, false
	}
	return id, true
}

func readBody(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, bool) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
				"Request body exceeds the configured limit", map[string]any{"limit_bytes": tooLarge.Limit})
			return nil, false
		}
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Could not read request body", nil)
		return nil, false
	}
	return raw, true
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, reconcile.ErrInvalidPayload):
		response.Error(w, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error(), nil)
	case errors.Is(err, reconcile.ErrResultNotFound):
		response.Error(w, http.StatusNotFound, "ANALYSIS_NOT_FOUND",
			"No analysis exists for this video", nil)
	default:
		slog.Error("analysis request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
