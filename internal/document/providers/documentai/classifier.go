package documentai

import (
	"context"
	"sort"

	"ekyc/internal/document/models"
)

// Classify runs the classifier processor and returns one label per candidate
// model ID it reported, keeping the highest confidence when a label repeats.
func (c *Client) Classify(ctx context.Context, image []byte, candidateModelIDs []string) ([]models.Label, error) {
	doc, err := c.run(ctx, c.cfg.ClassifierProcessorID, image)
	if err != nil {
		return nil, err
	}

	candidates := make(map[string]struct{}, len(candidateModelIDs))
	for _, id := range candidateModelIDs {
		candidates[id] = struct{}{}
	}

	best := make(map[string]float64)
	order := make([]string, 0)
	for _, entity := range doc.GetEntities() {
		label := entity.GetType()
		if _, ok := candidates[label]; !ok {
			continue
		}
		confidence := float64(entity.GetConfidence())
		prev, seen := best[label]
		if !seen {
			order = append(order, label)
		}
		if !seen || confidence > prev {
			best[label] = confidence
		}
	}

	labels := make([]models.Label, 0, len(order))
	for _, id := range order {
		labels = append(labels, models.Label{ModelID: id, Confidence: best[id]})
	}
	sort.SliceStable(labels, func(i, j int) bool {
		return labels[i].Confidence > labels[j].Confidence
	})
	return labels, nil
}
