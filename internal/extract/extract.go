// Package extract scans OCR responses for bus-number candidates.
package extract

import (
	"errors"

	"busmate/internal/busnum"
	"busmate/internal/domain"
	"busmate/pkg/clovaocr"
)

var (
	// ErrMalformedResponse means the OCR response violated the structural
	// precondition of at least one image result with a non-empty field
	// list. Always fatal to the single call, never defaulted.
	ErrMalformedResponse = errors.New("ocr response is missing image fields")

	// ErrNoBusNumber means no recognized field matched a bus-number
	// shape. A soft, expected outcome.
	ErrNoBusNumber = errors.New("no bus number found in ocr fields")
)

// BusNumber scans the response fields in order and returns the candidate
// from the first field whose normalized text matches any bus-number
// shape. The candidate may still be window-invalid; the match outcome is
// the reconciliation engine's call, not this pipeline's.
func BusNumber(resp *clovaocr.Response) (domain.BusNumberCandidate, error) {
	if resp == nil || len(resp.Images) == 0 || len(resp.Images[0].Fields) == 0 {
		return domain.BusNumberCandidate{}, ErrMalformedResponse
	}

	for _, field := range resp.Images[0].Fields {
		if busnum.MatchesShape(field.InferText) {
			return busnum.Classify(field.InferText), nil
		}
	}
	return domain.BusNumberCandidate{}, ErrNoBusNumber
}
