package model

// SpanResult represents one raw candidate span produced by a detector.
// A SpanResult is never mutated after creation; offset translation produces
// a shifted copy via WithOffset.
type SpanResult struct {
	EntityType     string  `json:"entity_type"`
	Start          int     `json:"start"`
	End            int     `json:"end"`
	Score          float64 `json:"score"`
	RecognizerName string  `json:"recognizer_name,omitempty"`
}

// WithOffset returns a copy of the span shifted into global document offsets.
func (s SpanResult) WithOffset(offset int) SpanResult {
	shifted := s
	shifted.Start += offset
	shifted.End += offset
	return shifted
}

// MatchedText returns the substring of text covered by the span.
// Out-of-range spans yield an empty string rather than panicking.
func (s SpanResult) MatchedText(text string) string {
	if s.Start < 0 || s.End > len(text) || s.Start >= s.End {
		return ""
	}
	return text[s.Start:s.End]
}
