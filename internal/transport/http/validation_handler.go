package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	apierrors "github.com/QUANTMATRIXAI/trinity-dev/internal/errors"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/exporter"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/middleware"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/report"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/services"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/table"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/validation"
	api "github.com/QUANTMATRIXAI/trinity-dev/pkg/contracts/api/v1"
)

// Validation sources recorded on every run
const (
	SourceAPI    = "api"
	SourceUpload = "upload"
	SourceExport = "export"
)

// multipartMemory is the part of an upload kept in memory before spilling to disk
const multipartMemory = 32 << 20

// ValidationHandler serves the validation endpoints
type ValidationHandler struct {
	service      ValidationServiceInterface
	validator    *middleware.RequestValidator
	files        *validation.FileValidator
	query        *middleware.QueryParamValidator
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
	maxFiles     int
	now          func() time.Time
}

// ValidationHandlerConfig bounds what a single request may carry
type ValidationHandlerConfig struct {
	MaxBodySize int64
	MaxFiles    int
}

// NewValidationHandler creates a new validation handler
func NewValidationHandler(
	service ValidationServiceInterface,
	files *validation.FileValidator,
	cfg ValidationHandlerConfig,
	logger *slog.Logger,
	errorHandler *apierrors.ErrorHandler,
) *ValidationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if files == nil {
		files = validation.NewFileValidator(logger, 0)
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 8
	}
	return &ValidationHandler{
		service:      service,
		validator:    middleware.NewRequestValidator(logger, cfg.MaxBodySize),
		files:        files,
		query:        middleware.NewQueryParamValidator(errorHandler),
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "validation")),
		maxFiles:     cfg.MaxFiles,
		now:          time.Now,
	}
}

// Routes returns the validation routes
func (h *ValidationHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/pipelines", h.ListPipelines)
	r.Route("/validate", func(r chi.Router) {
		r.With(middleware.ContentTypeValidator("application/json")).Post("/", h.Validate)
		r.With(middleware.ContentTypeValidator("multipart/form-data")).Post("/file", h.ValidateFiles)
		r.With(middleware.ContentTypeValidator("application/json")).Post("/export", h.Export)
	})

	return r
}

// ListPipelines handles GET /api/v1/pipelines
func (h *ValidationHandler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, api.PipelinesResponse{Pipelines: h.service.Pipelines()})
}

// Validate handles POST /api/v1/validate. A produced report is always a 200,
// whether or not it passed.
func (h *ValidationHandler) Validate(w http.ResponseWriter, r *http.Request) {
	req, inputs, ok := h.decodeValidateRequest(w, r)
	if !ok {
		return
	}

	ctx := services.WithSource(r.Context(), SourceAPI)
	rep, err := h.service.Validate(ctx, req.Pipeline, inputs)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, services.NewValidateResponse(req.Pipeline, rep, inputs))
}

// Export handles POST /api/v1/validate/export?format=csv|xlsx
func (h *ValidationHandler) Export(w http.ResponseWriter, r *http.Request) {
	format, ok := h.query.ValidateEnum(w, r, "format", api.ExportFormats, api.FormatCSV)
	if !ok {
		return
	}

	req, inputs, ok := h.decodeValidateRequest(w, r)
	if !ok {
		return
	}

	ctx := services.WithSource(r.Context(), SourceExport)
	rep, err := h.service.Validate(ctx, req.Pipeline, inputs)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeExport(w, r, exporter.Format(format), req.Pipeline, rep)
}

// ValidateFiles handles POST /api/v1/validate/file with a multipart form of
// pipeline, files and an optional file_keys JSON object
func (h *ValidationHandler) ValidateFiles(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.files.MaxSize()*int64(h.maxFiles)+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.errorHandler.HandleError(w, r, multipartError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	pipeline := r.FormValue("pipeline")
	if pipeline == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("pipeline", "pipeline is required"))
		return
	}

	headers := r.MultipartForm.File["files"]
	switch {
	case len(headers) == 0:
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("files", "at least one file is required"))
		return
	case len(headers) > h.maxFiles:
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("files",
			fmt.Sprintf("at most %d files may be uploaded", h.maxFiles)))
		return
	}

	keys, err := h.fileKeys(r.FormValue("file_keys"), pipeline, len(headers))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	for _, fh := range headers {
		if err := h.files.ValidateUpload(fh.Filename, fh.Size); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
	}

	inputs, err := readUploads(r, headers, keys)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "files parsed",
		slog.String("pipeline", pipeline),
		slog.Int("files", len(headers)),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)

	ctx := services.WithSource(r.Context(), SourceUpload)
	rep, err := h.service.Validate(ctx, pipeline, inputs)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, services.NewValidateResponse(pipeline, rep, inputs))
}

func (h *ValidationHandler) decodeValidateRequest(w http.ResponseWriter, r *http.Request) (api.ValidateRequest, map[string]*table.Table, bool) {
	var req api.ValidateRequest
	if err := h.validator.DecodeJSON(w, r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return req, nil, false
	}

	inputs, err := recordTables(req.Data)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return req, nil, false
	}
	return req, inputs, true
}

func (h *ValidationHandler) writeExport(w http.ResponseWriter, r *http.Request, format exporter.Format, pipeline string, rep *report.Report) {
	now := h.now()
	var buf bytes.Buffer
	if err := exporter.Write(&buf, format, rep, exporter.Meta{Pipeline: pipeline, GeneratedAt: now}); err != nil {
		h.errorHandler.HandleError(w, r, fmt.Errorf("export %s report: %w", format, err))
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", exporter.FileName(pipeline, format, now)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Validation-Verdict", exporter.Verdict(rep))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "export write failed",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
	}
}

// fileKeys resolves the input key of every uploaded file. Explicit keys win
// over the defaults, and two files may not fill the same key.
func (h *ValidationHandler) fileKeys(raw, pipeline string, n int) ([]string, error) {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = DefaultFileKey(pipeline, i, n)
	}
	if raw == "" {
		return keys, nil
	}

	var explicit api.FileKeys
	if err := json.Unmarshal([]byte(raw), &explicit.Keys); err != nil {
		return nil, apierrors.ErrValidation("file_keys", "file_keys must be a JSON object of index to input key")
	}
	if err := h.validator.ValidateStruct(&explicit); err != nil {
		return nil, err
	}
	for idx, key := range explicit.Keys {
		i, err := strconv.Atoi(idx)
		if err != nil {
			return nil, apierrors.ErrValidation("file_keys",
				fmt.Sprintf("file index %s is not a whole number", idx))
		}
		if i < 0 || i >= n {
			return nil, apierrors.ErrValidation("file_keys",
				fmt.Sprintf("file index %s is out of range for %d files", idx, n))
		}
		keys[i] = key
	}

	seen := make(map[string]int, n)
	for i, key := range keys {
		if j, dup := seen[key]; dup {
			return nil, apierrors.ErrValidation("file_keys",
				fmt.Sprintf("files %d and %d both map to input %q", j, i, key))
		}
		seen[key] = i
	}
	return keys, nil
}

// DefaultFileKey is the input key of upload i out of n when none is given. A
// single file fills "data"; for mmm the first two files are media then sales;
// otherwise the first file is "data" and later ones "data_<i>".
func DefaultFileKey(pipeline string, i, n int) string {
	if n == 1 {
		return validation.InputData
	}
	if pipeline == validation.PipelineMMM {
		switch i {
		case 0:
			return validation.InputMedia
		case 1:
			return validation.InputSales
		}
	}
	if i == 0 {
		return validation.InputData
	}
	return fmt.Sprintf("%s_%d", validation.InputData, i)
}

// readUploads parses every upload concurrently
func readUploads(r *http.Request, headers []*multipart.FileHeader, keys []string) (map[string]*table.Table, error) {
	tables := make([]*table.Table, len(headers))

	g, _ := errgroup.WithContext(r.Context())
	for i, fh := range headers {
		g.Go(func() error {
			f, err := fh.Open()
			if err != nil {
				return apierrors.InvalidFile(fh.Filename, err)
			}
			defer f.Close()

			t, err := table.ReadFile(fh.Filename, f)
			if err != nil {
				return apierrors.InvalidFile(fh.Filename, err)
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	inputs := make(map[string]*table.Table, len(headers))
	for i, key := range keys {
		inputs[key] = tables[i]
	}
	return inputs, nil
}

// recordTables turns the raw record lists of a request into tables. Null or
// empty lists are skipped so the dispatcher reports them as missing.
func recordTables(data map[string]json.RawMessage) (map[string]*table.Table, error) {
	inputs := make(map[string]*table.Table, len(data))
	for key, raw := range data {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			continue
		}
		t, err := table.DecodeRecords(trimmed)
		if err != nil {
			return nil, apierrors.InvalidRequestWithError(fmt.Errorf("data.%s: %w", key, err))
		}
		if t.Len() == 0 {
			continue
		}
		inputs[key] = t
	}
	return inputs, nil
}

func multipartError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return apierrors.InvalidRequestWithError(fmt.Errorf("invalid multipart form: %w", err))
}
