// Package inference talks to the HTTP vision inference service that hosts the
// landmark detector and the liveness model.
//
//	POST {base}/detect    multipart: image, model, name...  -> {"detections": [...]}
//	POST {base}/liveness  multipart: media                  -> {"live": bool, "score": float}
//	GET  {base}/health
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"ekyc/internal/document/models"
	"ekyc/internal/document/providers"
	"ekyc/pkg/platform/circuit"
	strutil "ekyc/pkg/platform/strings"
)

// BackendName identifies this adapter in backend errors and metrics.
const BackendName = "inference"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

// Client implements ports.LandmarkDetector and ports.LivenessChecker.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	breaker    *circuit.Breaker
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithBreaker fails calls fast while the service keeps failing.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the service at baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type detectResponse struct {
	Detections []struct {
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
		Box        struct {
			Left   float64 `json:"left"`
			Top    float64 `json:"top"`
			Width  float64 `json:"width"`
			Height float64 `json:"height"`
		} `json:"box"`
	} `json:"detections"`
}

type livenessResponse struct {
	Live  *bool   `json:"live"`
	Score float64 `json:"score"`
}

// DetectLandmarks asks the detector for the named regions. Detections for
// names that were not requested are dropped.
func (c *Client) DetectLandmarks(ctx context.Context, image []byte, modelID string, landmarks []models.LandmarkTemplate) ([]models.Detection, error) {
	names := make([]string, len(landmarks))
	for i, lm := range landmarks {
		names[i] = lm.Name
	}
	names = strutil.DedupeAndTrim(names)
	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		wanted[name] = struct{}{}
	}

	body, contentType, err := multipartBody("image", image, map[string][]string{
		"model": {modelID},
		"name":  names,
	})
	if err != nil {
		return nil, providers.NewBackendError(providers.ErrorInternal, BackendName, "encode request", err)
	}

	var resp detectResponse
	if err := c.call(ctx, "/detect", body, contentType, &resp); err != nil {
		return nil, err
	}

	detections := make([]models.Detection, 0, len(resp.Detections))
	for _, d := range resp.Detections {
		if _, ok := wanted[d.Name]; !ok {
			continue
		}
		detections = append(detections, models.Detection{
			Name:       d.Name,
			Confidence: d.Confidence,
			Box: models.BoundingBox{
				Left:   d.Box.Left,
				Top:    d.Box.Top,
				Width:  d.Box.Width,
				Height: d.Box.Height,
			},
		})
	}
	return detections, nil
}

// CheckLiveness reports whether media shows a live subject.
func (c *Client) CheckLiveness(ctx context.Context, media []byte) (bool, error) {
	body, contentType, err := multipartBody("media", media, nil)
	if err != nil {
		return false, providers.NewBackendError(providers.ErrorInternal, BackendName, "encode request", err)
	}

	var resp livenessResponse
	if err := c.call(ctx, "/liveness", body, contentType, &resp); err != nil {
		return false, err
	}
	if resp.Live == nil {
		return false, providers.NewBackendError(providers.ErrorBadData, BackendName, "liveness verdict missing", nil)
	}
	return *resp.Live, nil
}

// Health checks if the service is available.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, "", nil)
}

// call is do for model endpoints, guarded by the breaker when one is set.
// Only outages and timeouts count against the service.
func (c *Client) call(ctx context.Context, path string, body io.Reader, contentType string, out any) error {
	if c.breaker == nil {
		return c.do(ctx, http.MethodPost, path, body, contentType, out)
	}
	if !c.breaker.Allow() {
		return providers.NewBackendError(providers.ErrorOutage, BackendName, "circuit open", nil)
	}

	err := c.do(ctx, http.MethodPost, path, body, contentType, out)
	switch providers.GetCategory(err) {
	case providers.ErrorOutage, providers.ErrorTimeout:
		if ctx.Err() != nil {
			return err
		}
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.logger.WarnContext(ctx, "inference circuit opened", "path", path, "error", err)
		}
	case providers.ErrorCanceled:
	default:
		if _, change := c.breaker.RecordSuccess(); change.Closed {
			c.logger.InfoContext(ctx, "inference circuit closed", "path", path)
		}
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return providers.NewBackendError(providers.ErrorInternal, BackendName, "build request", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "inference call failed",
			"path", path,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return transportError(ctx, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportError(ctx, err)
	}
	if err := statusError(resp.StatusCode, payload); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return providers.NewBackendError(providers.ErrorBadData, BackendName, "malformed response", err)
	}
	return nil
}

func transportError(ctx context.Context, err error) error {
	if ctxErr := providers.FromContext(BackendName, ctx.Err()); ctxErr != nil {
		return ctxErr
	}
	if ctxErr := providers.FromContext(BackendName, err); ctxErr != nil {
		return ctxErr
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return providers.NewBackendError(providers.ErrorTimeout, BackendName, "request timed out", err)
	}
	return providers.NewBackendError(providers.ErrorOutage, BackendName, "service unreachable", err)
}

// statusError maps non-2xx responses onto the taxonomy: 5xx and 429 are
// retryable, every other 4xx is not.
func statusError(code int, payload []byte) error {
	if code >= 200 && code < 300 {
		return nil
	}
	message := fmt.Sprintf("status %d", code)
	if detail := strings.TrimSpace(string(payload)); detail != "" {
		if len(detail) > 200 {
			detail = detail[:200]
		}
		message += ": " + detail
	}

	var category providers.ErrorCategory
	switch {
	case code == http.StatusTooManyRequests:
		category = providers.ErrorRateLimited
	case code == http.StatusGatewayTimeout || code == http.StatusRequestTimeout:
		category = providers.ErrorTimeout
	case code >= 500:
		category = providers.ErrorOutage
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		category = providers.ErrorAuthentication
	case code == http.StatusNotFound:
		category = providers.ErrorNotFound
	default:
		category = providers.ErrorBadRequest
	}
	return providers.NewBackendError(category, BackendName, message, nil)
}

func multipartBody(fileField string, content []byte, fields map[string][]string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile(fileField, fileField)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", fmt.Errorf("write form file: %w", err)
	}
	for key, values := range fields {
		for _, v := range values {
			if err := writer.WriteField(key, v); err != nil {
				return nil, "", fmt.Errorf("write field %s: %w", key, err)
			}
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}
