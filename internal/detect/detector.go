package detect

import (
	"context"
	"fmt"

	"github.com/dpdp-tools/piiscan/internal/model"
)

// Options carries per-call detection parameters. A nil Entities slice means
// "all supported entities"; ContextWords boost recognizer confidence when
// found near a match.
type Options struct {
	Language       string
	Entities       []string
	ScoreThreshold float64
	ContextWords   []string
}

// Detector analyzes text and returns raw candidate spans. Implementations
// must not mutate their input and must keep span offsets local to the text
// they were handed.
type Detector interface {
	Name() string
	Analyze(ctx context.Context, text string, opts Options) ([]model.SpanResult, error)
}

// DetectionError marks a detector failure for one text item. The corpus
// scan records the item as failed and continues.
type DetectionError struct {
	TextID string
	Err    error
}

func (e *DetectionError) Error() string {
	if e.TextID == "" {
		return fmt.Sprintf("detection failed: %v", e.Err)
	}
	return fmt.Sprintf("detection failed for %s: %v", e.TextID, e.Err)
}

func (e *DetectionError) Unwrap() error { return e.Err }
