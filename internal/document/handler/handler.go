package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ekyc/internal/document/extraction"
	"ekyc/internal/document/models"
	"ekyc/internal/platform/metrics"
	"ekyc/internal/platform/middleware"
	dErrors "ekyc/pkg/domain-errors"
	"ekyc/pkg/platform/audit"
	"ekyc/pkg/platform/httputil"
	"ekyc/pkg/platform/middleware/admin"
)

// Service runs extractions.
type Service interface {
	ExtractRequest(ctx context.Context, req extraction.Request) (*models.ExtractionResult, error)
	ExtractRef(ctx context.Context, ref string) (*models.ExtractionResult, error)
}

// Catalog lists the supported document types.
type Catalog interface {
	Summaries() []models.Summary
}

// AuditReader exposes the audit trail to operators.
type AuditReader interface {
	List(ctx context.Context, subject string) ([]audit.Event, error)
	Recent(ctx context.Context, limit int) ([]audit.Event, error)
}

const (
	formImage    = "image"
	formLiveness = "liveness_media"

	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// Handler serves the document endpoints.
type Handler struct {
	service        Service
	catalog        Catalog
	logger         *slog.Logger
	metrics        *metrics.Metrics
	audit          AuditReader
	adminToken     string
	extractLimiter func(http.Handler) http.Handler
	maxUploadBytes int64
	requestTimeout time.Duration
	retryAfter     time.Duration
}

// Option configures a Handler.
type Option func(*Handler)

// WithMetrics records HTTP latency and upload sizes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithMaxUploadBytes bounds request bodies.
func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// WithRequestTimeout bounds each request.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.requestTimeout = d
	}
}

// WithRetryAfter sets the Retry-After hint sent with transient failures.
func WithRetryAfter(d time.Duration) Option {
	return func(h *Handler) {
		h.retryAfter = d
	}
}

// WithAuditReader mounts the operator audit routes behind token.
func WithAuditReader(reader AuditReader, token string) Option {
	return func(h *Handler) {
		h.audit = reader
		h.adminToken = token
	}
}

// WithExtractLimiter guards both extraction routes with limiter.
func WithExtractLimiter(limiter func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.extractLimiter = limiter
	}
}

// New creates a document Handler.
func New(service Service, catalog Catalog, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service:        service,
		catalog:        catalog,
		logger:         logger,
		maxUploadBytes: 10 << 20,
		requestTimeout: 60 * time.Second,
		retryAfter:     2 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the document routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	docs := chi.NewRouter()
	docs.Use(middleware.Recovery(h.logger))
	docs.Use(middleware.RequestID)
	docs.Use(middleware.Logger(h.logger))
	docs.Use(middleware.Timeout(h.requestTimeout))
	docs.Use(middleware.LatencyMiddleware(h.metrics))

	docs.Group(func(r chi.Router) {
		if h.extractLimiter != nil {
			r.Use(h.extractLimiter)
		}
		r.Post("/documents/extract", h.handleExtract)
		r.With(middleware.ContentTypeJSON).Post("/documents/extract-by-reference", h.handleExtractByReference)
	})
	docs.Get("/documents/types", h.handleListTypes)

	if h.audit != nil {
		docs.With(admin.RequireAdminToken(h.adminToken, h.logger)).Get("/admin/audit", h.handleListAudit)
	}

	r.Mount("/", docs)
}

// handleExtract accepts either a multipart form with an "image" part and an
// optional "liveness_media" part, or the raw image as the request body.
func (h *Handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, err := h.readUpload(w, r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid extract request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	h.metrics.ObserveUpload(len(req.Image))

	result, err := h.service.ExtractRequest(ctx, req)
	if err != nil {
		h.writeExtractionError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toExtractResponse(result, requestID))
}

type extractByReferenceRequest struct {
	Reference string `json:"reference"`
}

func (h *Handler) handleExtractByReference(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var body extractByReferenceRequest
	if err := decodeJSON(w, r, h.maxUploadBytes, &body); err != nil {
		h.logger.WarnContext(ctx, "invalid extract-by-reference request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	body.Reference = strings.TrimSpace(body.Reference)
	if body.Reference == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "reference is required"))
		return
	}

	result, err := h.service.ExtractRef(ctx, body.Reference)
	if err != nil {
		h.writeExtractionError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toExtractResponse(result, requestID))
}

type listTypesResponse struct {
	DocumentTypes []models.Summary `json:"document_types"`
}

func (h *Handler) handleListTypes(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, listTypesResponse{DocumentTypes: h.catalog.Summaries()})
}

func (h *Handler) handleListAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var (
		events []audit.Event
		err    error
	)
	if subject := strings.TrimSpace(q.Get("subject")); subject != "" {
		events, err = h.audit.List(ctx, subject)
	} else {
		limit := defaultAuditLimit
		if raw := q.Get("limit"); raw != "" {
			n, convErr := strconv.Atoi(raw)
			if convErr != nil || n < 1 || n > maxAuditLimit {
				httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be between 1 and 500"))
				return
			}
			limit = n
		}
		events, err = h.audit.Recent(ctx, limit)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list audit events",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAuditResponse(events))
}

// readUpload bounds the body and pulls the image (and optional liveness
// media) out of it.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (extraction.Request, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		image, err := io.ReadAll(r.Body)
		if err != nil {
			return extraction.Request{}, uploadError(err)
		}
		if len(image) == 0 {
			return extraction.Request{}, dErrors.New(dErrors.CodeValidation, "image is required")
		}
		return extraction.Request{Image: image}, nil
	}

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		return extraction.Request{}, uploadError(err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	image, err := readPart(r.MultipartForm, formImage)
	if err != nil {
		return extraction.Request{}, err
	}
	if len(image) == 0 {
		return extraction.Request{}, dErrors.New(dErrors.CodeValidation, "image is required")
	}
	media, err := readPart(r.MultipartForm, formLiveness)
	if err != nil {
		return extraction.Request{}, err
	}
	return extraction.Request{Image: image, LivenessMedia: media}, nil
}

// readPart returns the first file under name, or nil when absent.
func readPart(form *multipart.Form, name string) ([]byte, error) {
	files := form.File[name]
	if len(files) == 0 {
		return nil, nil
	}
	f, err := files[0].Open()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "unreadable "+name)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "unreadable "+name)
	}
	return data, nil
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return dErrors.Wrap(err, dErrors.CodePayloadTooLarge, "image exceeds the upload limit")
	}
	return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid upload")
}

type extractResponse struct {
	*models.ExtractionResult
	FailedFields []string `json:"failed_fields,omitempty"`
	RequestID    string   `json:"request_id,omitempty"`
}

func toExtractResponse(result *models.ExtractionResult, requestID string) extractResponse {
	failed := result.FailedFields()
	sort.Strings(failed)
	return extractResponse{ExtractionResult: result, FailedFields: failed, RequestID: requestID}
}

type auditEventResponse struct {
	ID           string    `json:"id"`
	Category     string    `json:"category"`
	Timestamp    time.Time `json:"timestamp"`
	Subject      string    `json:"subject"`
	Action       string    `json:"action"`
	DocumentType string    `json:"document_type,omitempty"`
	Decision     string    `json:"decision"`
	Reason       string    `json:"reason,omitempty"`
	Confidence   float64   `json:"confidence"`
	FailedFields int       `json:"failed_fields"`
	RequestID    string    `json:"request_id,omitempty"`
}

type auditResponse struct {
	Events []auditEventResponse `json:"events"`
}

func toAuditResponse(events []audit.Event) auditResponse {
	out := auditResponse{Events: make([]auditEventResponse, 0, len(events))}
	for _, e := range events {
		out.Events = append(out.Events, auditEventResponse{
			ID:           e.ID,
			Category:     string(e.Category),
			Timestamp:    e.Timestamp,
			Subject:      e.Subject,
			Action:       e.Action,
			DocumentType: e.DocumentType,
			Decision:     e.Decision,
			Reason:       e.Reason,
			Confidence:   e.Confidence,
			FailedFields: e.FailedFields,
			RequestID:    e.RequestID,
		})
	}
	return out
}
