package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gesinv/gesinv/internal/core"
	"github.com/gesinv/gesinv/internal/logging"
)

// handleImport receives a multipart CSV upload and runs the pipeline.
//
// The file is staged to the temp dir first so the engine can re-read
// it in Pass 2 when confirmation is required. For asset imports, the
// optional asset_type_id form/query value selects the custom-field
// sub-schema.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	entity := core.EntityType(chi.URLParam(r, "entity"))

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	assetTypeID, err := parseAssetTypeID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	path, err := s.stageFile(file)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to stage file")
		return
	}

	ctx := core.WithClientInfo(r.Context(), r.RemoteAddr, r.UserAgent())
	logging.FromContext(ctx).Info("import received",
		"entity", string(entity), "file", header.Filename, "size", header.Size)

	outcome, err := s.service.ImportFile(ctx, path, entity, assetTypeID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if outcome.Status == core.RunRequiresConfirmation {
		status = http.StatusAccepted
	}
	writeJSON(w, status, outcome)
}

// handleConfirm creates a job's pending models and runs Pass 2.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	ctx := core.WithClientInfo(r.Context(), r.RemoteAddr, r.UserAgent())
	outcome, err := s.service.Confirm(ctx, jobID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// handleCancel abandons a pending job.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	if err := s.service.Cancel(r.Context(), jobID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// handleJobStatus returns a job record.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := s.service.Job(r.Context(), jobID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleRunLog streams the downloadable audit log of a completed run.
func (s *Server) handleRunLog(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	summary, ok := s.service.RunSummary(runID)
	if !ok {
		writeError(w, r, http.StatusNotFound, "run not found or expired")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"import_log_%s.csv\"", runID))
	if err := core.WriteAuditLog(w, summary.Results); err != nil {
		logging.FromContext(r.Context()).Error("audit log write failed",
			"run_id", runID, "error", err)
	}
}

// handleTemplate returns the CSV template for an entity type.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	entity := core.EntityType(chi.URLParam(r, "entity"))

	assetTypeID, err := parseAssetTypeID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	data, err := s.service.TemplateCSV(r.Context(), entity, assetTypeID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"plantilla_%s.csv\"", entity))
	w.Write(data)
}

// handleHealth reports liveness and import slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	active, capacity := s.service.LimiterStatus()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"active_imports":  active,
		"import_capacity": capacity,
	})
}

// stageFile copies the upload into the configured temp directory.
func (s *Server) stageFile(file io.Reader) (string, error) {
	tmp, err := os.CreateTemp(s.cfg.Import.TempDir, "import-*.csv")
	if err != nil {
		return "", err
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, file); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// writeServiceError maps engine errors to HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrTooManyImports):
		w.Header().Set("Retry-After", "30")
		writeError(w, r, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, core.ErrUnsupportedEntity):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrJobNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrJobNotPending):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		logging.FromContext(r.Context()).Error("import request failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func parseAssetTypeID(r *http.Request) (int64, error) {
	raw := r.FormValue("asset_type_id")
	if raw == "" {
		raw = r.URL.Query().Get("asset_type_id")
	}
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid asset_type_id %q", raw)
	}
	return id, nil
}
