// Package detect filters raw object-detector output down to the bus
// regions worth sending through OCR.
package detect

import "busmate/internal/domain"

// Filter discards detections whose label differs from the target label or
// whose confidence is below minConfidence, preserving detector output
// order. The result is truncated to maxRegions to bound the number of
// OCR calls issued per frame.
func Filter(detections []domain.Detection, label string, minConfidence float64, maxRegions int) []domain.Detection {
	if maxRegions <= 0 {
		return nil
	}

	kept := make([]domain.Detection, 0, maxRegions)
	for _, d := range detections {
		if d.Label != label || d.Confidence < minConfidence {
			continue
		}
		kept = append(kept, d)
		if len(kept) == maxRegions {
			break
		}
	}
	return kept
}
