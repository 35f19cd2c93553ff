package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dpdp-tools/piiscan/internal/model"
)

// OpenAIDetector is an alternative Detector backed by a chat-completion
// model. It asks the model for entity spans as JSON and repairs the
// offsets against the source text, since models are unreliable about
// character arithmetic.
type OpenAIDetector struct {
	client *openai.Client
	cfg    model.LLMConfig
}

// NewOpenAIDetector creates the LLM-backed detector.
func NewOpenAIDetector(cfg model.LLMConfig) (*OpenAIDetector, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &OpenAIDetector{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
	}, nil
}

// Name implements Detector.
func (d *OpenAIDetector) Name() string { return "openai" }

// llmSpan is the JSON shape the model is asked to produce.
type llmSpan struct {
	EntityType string  `json:"entity_type"`
	Text       string  `json:"text"`
	Start      int     `json:"start"`
	Score      float64 `json:"score"`
}

// Analyze implements Detector.
func (d *OpenAIDetector) Analyze(ctx context.Context, text string, opts Options) ([]model.SpanResult, error) {
	timeout := time.Duration(d.cfg.TimeoutS) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	chatModel := d.cfg.Model
	if chatModel == "" {
		chatModel = openai.GPT4oMini
	}
	maxTokens := d.cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2000
	}

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: chatModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a PII span detector. Reply with a JSON array only, no prose.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildSpanPrompt(text, opts),
			},
		},
		MaxTokens:   maxTokens,
		Temperature: 0,
	})
	if err != nil {
		return nil, &DetectionError{Err: fmt.Errorf("openai: %w", err)}
	}
	if len(resp.Choices) == 0 {
		return nil, &DetectionError{Err: fmt.Errorf("openai: empty response")}
	}

	spans, err := parseSpans(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, &DetectionError{Err: err}
	}
	return repairOffsets(text, spans, opts.ScoreThreshold), nil
}

func buildSpanPrompt(text string, opts Options) string {
	entities := "any sensitive personal data"
	if len(opts.Entities) > 0 {
		entities = strings.Join(opts.Entities, ", ")
	}
	return fmt.Sprintf(`Find every occurrence of the following entity types in the text: %s.

Reply with a JSON array of objects, one per occurrence:
[{"entity_type": "...", "text": "exact matched substring", "start": <character offset>, "score": <confidence 0..1>}]

Text:
%s`, entities, text)
}

// parseSpans tolerates markdown fences around the JSON payload.
func parseSpans(content string) ([]llmSpan, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var spans []llmSpan
	if err := json.Unmarshal([]byte(trimmed), &spans); err != nil {
		return nil, fmt.Errorf("parse span JSON: %w", err)
	}
	return spans, nil
}

// repairOffsets anchors each reported span to a real occurrence of its
// matched text, preferring the occurrence nearest the reported start.
// Spans whose text cannot be found are dropped.
func repairOffsets(text string, spans []llmSpan, threshold float64) []model.SpanResult {
	var results []model.SpanResult
	for _, s := range spans {
		if s.Text == "" || s.Score < threshold {
			continue
		}
		start := nearestOccurrence(text, s.Text, s.Start)
		if start < 0 {
			continue
		}
		results = append(results, model.SpanResult{
			EntityType:     s.EntityType,
			Start:          start,
			End:            start + len(s.Text),
			Score:          s.Score,
			RecognizerName: "OPENAI_RECOGNIZER",
		})
	}
	return results
}

func nearestOccurrence(text, needle string, hint int) int {
	if hint >= 0 && hint+len(needle) <= len(text) && text[hint:hint+len(needle)] == needle {
		return hint
	}
	best := -1
	offset := 0
	for {
		idx := strings.Index(text[offset:], needle)
		if idx < 0 {
			break
		}
		pos := offset + idx
		if best < 0 || abs(pos-hint) < abs(best-hint) {
			best = pos
		}
		offset = pos + 1
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
