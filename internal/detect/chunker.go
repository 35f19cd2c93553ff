package detect

import (
	"context"

	"github.com/dpdp-tools/piiscan/internal/model"
	"github.com/dpdp-tools/piiscan/internal/worker"
)

// chunk is one detector-sized window of a larger text. Ephemeral: chunks
// exist only for the duration of a single analysis pass.
type chunk struct {
	text         string
	globalOffset int
}

// ChunkedAnalyzer makes arbitrarily long text safe for a length-bounded
// detector while preserving global offsets. Windows overlap so entities
// straddling a boundary are never lost; the resulting duplicates are the
// reconciler's problem, not this component's.
type ChunkedAnalyzer struct {
	detector     Detector
	chunkSize    int
	chunkOverlap int
	workers      int
}

// NewChunkedAnalyzer builds a chunked analyzer. chunkSize <= 0 disables
// chunking; overlap is clamped to [0, chunkSize-1]; workers bounds parallel
// chunk dispatch and defaults to 1.
func NewChunkedAnalyzer(detector Detector, chunkSize, chunkOverlap, workers int) *ChunkedAnalyzer {
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkSize > 0 && chunkOverlap > chunkSize-1 {
		chunkOverlap = chunkSize - 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &ChunkedAnalyzer{
		detector:     detector,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		workers:      workers,
	}
}

// Analyze runs the detector across the text in windows and returns spans
// with document-global offsets, concatenated in window order. Any chunk
// failure aborts the whole text: partial per-chunk results are discarded.
func (a *ChunkedAnalyzer) Analyze(ctx context.Context, textID, text string, opts Options) ([]model.SpanResult, error) {
	if a.chunkSize <= 0 || len(text) <= a.chunkSize {
		results, err := a.detector.Analyze(ctx, text, opts)
		if err != nil {
			return nil, wrapDetection(textID, err)
		}
		return results, nil
	}

	chunks := splitChunks(text, a.chunkSize, a.chunkOverlap)

	// Chunks run on a bounded pool with index-aligned results, so the
	// merge order is chunk order regardless of completion order and
	// downstream reconciliation stays deterministic.
	jobs := make([]worker.Job, len(chunks))
	for i, c := range chunks {
		jobs[i] = chunkJob{detector: a.detector, chunk: c, opts: opts}
	}
	results := worker.NewPool(a.workers).Run(ctx, jobs)

	var merged []model.SpanResult
	for _, result := range results {
		if result == nil {
			return nil, wrapDetection(textID, ctx.Err())
		}
		cr := result.(chunkResult)
		if cr.err != nil {
			return nil, wrapDetection(textID, cr.err)
		}
		merged = append(merged, cr.spans...)
	}
	return merged, nil
}

type chunkJob struct {
	detector Detector
	chunk    chunk
	opts     Options
}

type chunkResult struct {
	spans []model.SpanResult
	err   error
}

func (r chunkResult) Err() error { return r.err }

// Execute analyzes one window and re-issues its spans at document-global
// offsets.
func (j chunkJob) Execute(ctx context.Context) worker.Result {
	results, err := j.detector.Analyze(ctx, j.chunk.text, j.opts)
	if err != nil {
		return chunkResult{err: err}
	}
	shifted := make([]model.SpanResult, 0, len(results))
	for _, r := range results {
		shifted = append(shifted, r.WithOffset(j.chunk.globalOffset))
	}
	return chunkResult{spans: shifted}
}

// splitChunks advances a window of chunkSize across the text, stepping back
// by overlap before each next window.
func splitChunks(text string, chunkSize, overlap int) []chunk {
	var chunks []chunk
	start := 0
	for start < len(text) {
		end := start + chunkSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, chunk{text: text[start:end], globalOffset: start})
		if end >= len(text) {
			break
		}
		start = end - overlap
	}
	return chunks
}

func wrapDetection(textID string, err error) error {
	if de, ok := err.(*DetectionError); ok {
		if de.TextID == "" {
			return &DetectionError{TextID: textID, Err: de.Err}
		}
		return de
	}
	return &DetectionError{TextID: textID, Err: err}
}
