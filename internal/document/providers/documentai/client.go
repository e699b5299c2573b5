// Package documentai adapts Google Document AI custom processors to the
// classification and field extraction ports.
//
// A custom classifier processor labels the image with one of the registered
// model IDs. Field extraction runs the custom extractor processor configured
// for the document's model ID.
package documentai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
)

// BackendName identifies this adapter in backend errors and metrics.
const BackendName = "documentai"

// Config locates the processors.
type Config struct {
	ProjectID string
	Location  string
	// ClassifierProcessorID is the custom classifier processor.
	ClassifierProcessorID string
	// ExtractorProcessors maps model IDs to extractor processor IDs. A model ID
	// without an entry is used as the processor ID directly.
	ExtractorProcessors map[string]string
	// CredentialsFile is optional; application default credentials are used
	// when it is empty.
	CredentialsFile string
	Timeout         time.Duration
}

// Validate checks the fields needed to build processor names.
func (c Config) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("documentai: project id is required")
	}
	if c.Location == "" {
		return fmt.Errorf("documentai: location is required")
	}
	if c.ClassifierProcessorID == "" {
		return fmt.Errorf("documentai: classifier processor id is required")
	}
	return nil
}

type processFunc func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error)

// Client implements ports.Classifier and ports.FieldExtractor.
type Client struct {
	cfg     Config
	process processFunc
	closer  func() error
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New dials the regional Document AI endpoint.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	clientOpts := []option.ClientOption{
		option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)),
	}
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	dc, err := documentai.NewDocumentProcessorClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Document AI client: %w", err)
	}
	process := func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error) {
		return dc.ProcessDocument(ctx, req)
	}
	return newClient(cfg, process, dc.Close, opts...), nil
}

func newClient(cfg Config, process processFunc, closer func() error, opts ...Option) *Client {
	c := &Client{
		cfg:     cfg,
		process: process,
		closer:  closer,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

func (c *Client) processorName(processorID string) string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		c.cfg.ProjectID, c.cfg.Location, processorID)
}

func (c *Client) extractorFor(modelID string) string {
	if id, ok := c.cfg.ExtractorProcessors[modelID]; ok && id != "" {
		return id
	}
	return modelID
}

// run sends image to processorID and returns the processed document.
func (c *Client) run(ctx context.Context, processorID string, image []byte) (*documentaipb.Document, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	req := &documentaipb.ProcessRequest{
		Name: c.processorName(processorID),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  image,
				MimeType: mimeType(image),
			},
		},
		SkipHumanReview: true,
	}

	start := time.Now()
	resp, err := c.process(ctx, req)
	if err != nil {
		c.logger.DebugContext(ctx, "document ai call failed",
			"processor", processorID,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return nil, translate(ctx, err)
	}
	if resp.GetDocument() == nil {
		return nil, badData("empty document in response")
	}
	return resp.GetDocument(), nil
}

// mimeType sniffs the image format. Document AI rejects octet-stream, so
// unrecognized content is sent as JPEG and left for the backend to refuse.
func mimeType(image []byte) string {
	switch ct := http.DetectContentType(image); ct {
	case "image/png", "image/jpeg", "image/gif", "image/webp", "image/bmp", "application/pdf":
		return ct
	default:
		if len(image) >= 4 && (string(image[:4]) == "II*\x00" || string(image[:4]) == "MM\x00*") {
			return "image/tiff"
		}
		return "image/jpeg"
	}
}
