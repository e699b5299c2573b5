package documentai

import (
	"context"
	"math"

	"cloud.google.com/go/documentai/apiv1/documentaipb"

	"ekyc/internal/document/models"
)

// ExtractFields runs the extractor processor for modelID and returns one
// detection per entity whose type names a requested field. Nested entity
// properties are flattened.
func (c *Client) ExtractFields(ctx context.Context, image []byte, modelID string, fields []models.FieldTemplate) ([]models.Detection, error) {
	doc, err := c.run(ctx, c.extractorFor(modelID), image)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		wanted[f.Name] = struct{}{}
	}

	var detections []models.Detection
	var walk func(entities []*documentaipb.Document_Entity)
	walk = func(entities []*documentaipb.Document_Entity) {
		for _, entity := range entities {
			if len(entity.GetProperties()) > 0 {
				walk(entity.GetProperties())
			}
			if _, ok := wanted[entity.GetType()]; !ok {
				continue
			}
			box, ok := entityBox(doc, entity)
			if !ok {
				continue
			}
			value := entity.GetMentionText()
			if nv := entity.GetNormalizedValue(); nv != nil && nv.GetText() != "" {
				value = nv.GetText()
			}
			detections = append(detections, models.Detection{
				Name:       entity.GetType(),
				Value:      value,
				Confidence: float64(entity.GetConfidence()),
				Box:        box,
			})
		}
	}
	walk(doc.GetEntities())
	return detections, nil
}

// entityBox reads the first page reference's bounding polygon. Normalized
// vertices are preferred; pixel vertices are scaled by the page dimension.
func entityBox(doc *documentaipb.Document, entity *documentaipb.Document_Entity) (models.BoundingBox, bool) {
	refs := entity.GetPageAnchor().GetPageRefs()
	if len(refs) == 0 {
		return models.BoundingBox{}, false
	}
	poly := refs[0].GetBoundingPoly()

	if nv := poly.GetNormalizedVertices(); len(nv) > 0 {
		xs := make([]float64, len(nv))
		ys := make([]float64, len(nv))
		for i, v := range nv {
			xs[i], ys[i] = float64(v.GetX()), float64(v.GetY())
		}
		return envelope(xs, ys), true
	}

	vs := poly.GetVertices()
	pages := doc.GetPages()
	page := int(refs[0].GetPage())
	if len(vs) == 0 || page < 0 || page >= len(pages) {
		return models.BoundingBox{}, false
	}
	dim := pages[page].GetDimension()
	if dim.GetWidth() <= 0 || dim.GetHeight() <= 0 {
		return models.BoundingBox{}, false
	}
	xs := make([]float64, len(vs))
	ys := make([]float64, len(vs))
	for i, v := range vs {
		xs[i] = float64(v.GetX()) / float64(dim.GetWidth())
		ys[i] = float64(v.GetY()) / float64(dim.GetHeight())
	}
	return envelope(xs, ys), true
}

func envelope(xs, ys []float64) models.BoundingBox {
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for i := range xs {
		minX, maxX = math.Min(minX, xs[i]), math.Max(maxX, xs[i])
		minY, maxY = math.Min(minY, ys[i]), math.Max(maxY, ys[i])
	}
	return models.BoundingBox{Left: minX, Top: minY, Width: maxX - minX, Height: maxY - minY}
}
