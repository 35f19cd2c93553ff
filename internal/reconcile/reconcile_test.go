package reconcile

import (
	"testing"

	"github.com/dpdp-tools/piiscan/internal/model"
	"github.com/dpdp-tools/piiscan/internal/rules"
)

func boolPtr(v bool) *bool        { return &v }
func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func ruleSetWith(entities map[string]rules.EntityRule) *rules.RuleSet {
	return &rules.RuleSet{
		Metadata: model.RulesMetadata{Enabled: true, Region: "india", Environment: "test"},
		Entities: entities,
	}
}

func TestDeduplicate(t *testing.T) {
	text := "aadhaar 234123412346 end"
	spans := []model.SpanResult{
		{EntityType: "IN_AADHAAR", Start: 8, End: 20, Score: 0.8},
		{EntityType: "IN_AADHAAR", Start: 8, End: 20, Score: 1.0},
		{EntityType: "IN_AADHAAR", Start: 8, End: 20, Score: 0.9},
		{EntityType: "IN_BANK_ACCOUNT", Start: 8, End: 20, Score: 0.5},
	}

	deduped := Deduplicate(spans, text)

	if len(deduped) != 2 {
		t.Fatalf("expected 2 spans after dedup, got %+v", deduped)
	}
	for _, span := range deduped {
		if span.EntityType == "IN_AADHAAR" && span.Score != 1.0 {
			t.Errorf("dedup should keep the highest score, got %v", span.Score)
		}
	}
}

func TestApplyThresholdIsMaxOfSources(t *testing.T) {
	text := "phone 9876543210 end"
	spans := []model.SpanResult{
		{EntityType: "PHONE_NUMBER", Start: 6, End: 16, Score: 0.6},
	}

	// Map threshold alone keeps the span.
	r := New(map[string]float64{"PHONE_NUMBER": 0.55}, nil)
	if got := r.Apply(spans, text); len(got) != 1 {
		t.Fatalf("span below map threshold dropped: %+v", got)
	}

	// A stricter rule threshold wins over the map.
	rs := ruleSetWith(map[string]rules.EntityRule{
		"PHONE_NUMBER": {ScoreThreshold: floatPtr(0.7)},
	})
	r = New(map[string]float64{"PHONE_NUMBER": 0.55}, rs)
	if got := r.Apply(spans, text); len(got) != 0 {
		t.Errorf("rule threshold should filter the span: %+v", got)
	}

	// A looser rule threshold never relaxes the map threshold.
	rs = ruleSetWith(map[string]rules.EntityRule{
		"PHONE_NUMBER": {ScoreThreshold: floatPtr(0.3)},
	})
	r = New(map[string]float64{"PHONE_NUMBER": 0.65}, rs)
	if got := r.Apply(spans, text); len(got) != 0 {
		t.Errorf("map threshold should still apply: %+v", got)
	}
}

func TestApplyDisabledEntityRule(t *testing.T) {
	text := "mail a@b.example.com end"
	spans := []model.SpanResult{
		{EntityType: "EMAIL_ADDRESS", Start: 5, End: 20, Score: 0.9},
	}
	rs := ruleSetWith(map[string]rules.EntityRule{
		"EMAIL_ADDRESS": {Enabled: boolPtr(false)},
	})

	if got := New(nil, rs).Apply(spans, text); len(got) != 0 {
		t.Errorf("disabled entity survived: %+v", got)
	}
}

func TestApplyExcludeValuesWithNormalization(t *testing.T) {
	text := "test card 4111-1111-1111-1111 end"
	spans := []model.SpanResult{
		{EntityType: "CREDIT_CARD", Start: 10, End: 29, Score: 1.0},
	}
	rs := ruleSetWith(map[string]rules.EntityRule{
		"CREDIT_CARD": {
			Normalization: "digits",
			ExcludeValues: []string{"4111 1111 1111 1111"},
		},
	})

	if got := New(nil, rs).Apply(spans, text); len(got) != 0 {
		t.Errorf("excluded test card survived: %+v", got)
	}
}

func TestApplyIncludeValuesAllowList(t *testing.T) {
	text := "a@b.example.com and c@d.example.com"
	spans := []model.SpanResult{
		{EntityType: "EMAIL_ADDRESS", Start: 0, End: 15, Score: 0.9},
		{EntityType: "EMAIL_ADDRESS", Start: 20, End: 35, Score: 0.9},
	}
	rs := ruleSetWith(map[string]rules.EntityRule{
		"EMAIL_ADDRESS": {
			Normalization: "lower",
			IncludeValues: []string{"A@B.EXAMPLE.COM"},
		},
	})

	got := New(nil, rs).Apply(spans, text)
	if len(got) != 1 || got[0].Start != 0 {
		t.Errorf("include allow-list mismatch: %+v", got)
	}
}

func TestApplyExcludePatterns(t *testing.T) {
	text := "noreply@example.com and priya@example.com"
	spans := []model.SpanResult{
		{EntityType: "EMAIL_ADDRESS", Start: 0, End: 19, Score: 0.9},
		{EntityType: "EMAIL_ADDRESS", Start: 24, End: 41, Score: 0.9},
	}
	rs := ruleSetWith(map[string]rules.EntityRule{
		"EMAIL_ADDRESS": {
			ExcludePatterns: []string{`^NOREPLY@`, `[invalid`},
		},
	})

	got := New(nil, rs).Apply(spans, text)
	if len(got) != 1 || got[0].Start != 24 {
		t.Errorf("exclude pattern mismatch (invalid pattern must be skipped): %+v", got)
	}
}

func TestApplyLengthBoundsOnNormalizedValue(t *testing.T) {
	text := "a/c 4567 8912 345 end"
	spans := []model.SpanResult{
		{EntityType: "IN_BANK_ACCOUNT", Start: 4, End: 17, Score: 0.9},
	}
	rs := ruleSetWith(map[string]rules.EntityRule{
		"IN_BANK_ACCOUNT": {Normalization: "digits", MinLength: intPtr(12)},
	})

	// 11 digits after normalization, below the minimum.
	if got := New(nil, rs).Apply(spans, text); len(got) != 0 {
		t.Errorf("below-min-length span survived: %+v", got)
	}

	rs = ruleSetWith(map[string]rules.EntityRule{
		"IN_BANK_ACCOUNT": {Normalization: "digits", MinLength: intPtr(11), MaxLength: intPtr(11)},
	})
	got := New(nil, rs).Apply(spans, text)
	if len(got) != 1 {
		t.Errorf("in-bounds span dropped: %+v", got)
	}
}

func TestApplyRequiredAndForbiddenContext(t *testing.T) {
	text := "Account number 45678912345 for payroll"
	spans := []model.SpanResult{
		{EntityType: "IN_BANK_ACCOUNT", Start: 15, End: 26, Score: 0.9},
	}

	rs := ruleSetWith(map[string]rules.EntityRule{
		"IN_BANK_ACCOUNT": {RequiredContext: []string{"ACCOUNT"}},
	})
	if got := New(nil, rs).Apply(spans, text); len(got) != 1 {
		t.Errorf("required context (case-insensitive) not honored: %+v", got)
	}

	rs = ruleSetWith(map[string]rules.EntityRule{
		"IN_BANK_ACCOUNT": {RequiredContext: []string{"invoice"}},
	})
	if got := New(nil, rs).Apply(spans, text); len(got) != 0 {
		t.Errorf("missing required context should drop: %+v", got)
	}

	rs = ruleSetWith(map[string]rules.EntityRule{
		"IN_BANK_ACCOUNT": {ForbiddenContext: []string{"payroll"}},
	})
	if got := New(nil, rs).Apply(spans, text); len(got) != 0 {
		t.Errorf("forbidden context should drop: %+v", got)
	}
}

func TestApplyContextWindowBound(t *testing.T) {
	padding := make([]byte, 80)
	for i := range padding {
		padding[i] = 'x'
	}
	text := "pan: " + string(padding) + "ABCDE1234F"
	start := len(text) - 10
	spans := []model.SpanResult{
		{EntityType: "IN_PAN", Start: start, End: len(text), Score: 0.9},
	}

	// Keyword sits ~80 chars away: outside a 10-char window, inside 100.
	rs := ruleSetWith(map[string]rules.EntityRule{
		"IN_PAN": {RequiredContext: []string{"pan"}, ContextWindowChars: intPtr(10)},
	})
	if got := New(nil, rs).Apply(spans, text); len(got) != 0 {
		t.Errorf("keyword outside window should not count: %+v", got)
	}

	rs = ruleSetWith(map[string]rules.EntityRule{
		"IN_PAN": {RequiredContext: []string{"pan"}, ContextWindowChars: intPtr(100)},
	})
	if got := New(nil, rs).Apply(spans, text); len(got) != 1 {
		t.Errorf("keyword inside window should count: %+v", got)
	}
}

func TestApplySameSpanConflict(t *testing.T) {
	spans := []model.SpanResult{
		{EntityType: "IN_BANK_ACCOUNT", Start: 3, End: 15, Score: 0.99},
		{EntityType: "IN_AADHAAR", Start: 3, End: 15, Score: 0.5},
	}

	got := resolveSameSpanConflicts(spans)
	if len(got) != 1 {
		t.Fatalf("expected single winner, got %+v", got)
	}
	if got[0].EntityType != "IN_AADHAAR" {
		t.Errorf("priority should beat score, got %s", got[0].EntityType)
	}
}

func TestApplySameSpanConflictScoreTiebreak(t *testing.T) {
	spans := []model.SpanResult{
		{EntityType: "IN_AADHAAR", Start: 3, End: 15, Score: 0.5},
		{EntityType: "IN_AADHAAR", Start: 3, End: 15, Score: 0.8},
	}
	got := resolveSameSpanConflicts(spans)
	if len(got) != 1 || got[0].Score != 0.8 {
		t.Errorf("equal priority should fall back to score: %+v", got)
	}
}

func TestApplyOverlappingSpansBothSurvive(t *testing.T) {
	spans := []model.SpanResult{
		{EntityType: "PHONE_NUMBER", Start: 0, End: 10, Score: 0.6},
		{EntityType: "IN_BANK_ACCOUNT", Start: 0, End: 12, Score: 0.5},
	}
	got := resolveSameSpanConflicts(spans)
	if len(got) != 2 {
		t.Errorf("overlapping non-identical spans must both survive: %+v", got)
	}
}

func TestApplyFinalOrdering(t *testing.T) {
	spans := []model.SpanResult{
		{EntityType: "EMAIL_ADDRESS", Start: 40, End: 50, Score: 0.9},
		{EntityType: "PHONE_NUMBER", Start: 10, End: 20, Score: 0.6},
		{EntityType: "IN_PAN", Start: 10, End: 25, Score: 0.8},
	}
	got := resolveSameSpanConflicts(spans)

	if len(got) != 3 {
		t.Fatalf("got %+v", got)
	}
	if got[0].Start != 10 || got[0].End != 20 {
		t.Errorf("expected (10,20) first, got %+v", got[0])
	}
	if got[1].Start != 10 || got[1].End != 25 {
		t.Errorf("expected (10,25) second, got %+v", got[1])
	}
	if got[2].Start != 40 {
		t.Errorf("expected start 40 last, got %+v", got[2])
	}
}

func TestPriorityTable(t *testing.T) {
	if Priority("IN_AADHAAR") != 200 {
		t.Errorf("IN_AADHAAR priority = %d", Priority("IN_AADHAAR"))
	}
	if Priority("IP_ADDRESS") != 100 {
		t.Errorf("IP_ADDRESS priority = %d", Priority("IP_ADDRESS"))
	}
	if Priority("UNKNOWN_TYPE") != 0 {
		t.Errorf("unlisted type priority = %d", Priority("UNKNOWN_TYPE"))
	}
	if Priority("IN_AADHAAR") <= Priority("IN_PAN") {
		t.Errorf("priority ordering broken")
	}
}

func TestApplyScoresNeverModified(t *testing.T) {
	text := "account 45678912345 end"
	spans := []model.SpanResult{
		{EntityType: "IN_BANK_ACCOUNT", Start: 8, End: 19, Score: 0.62},
	}
	got := New(nil, nil).Apply(spans, text)
	if len(got) != 1 {
		t.Fatalf("span dropped: %+v", got)
	}
	if got[0].Score != 0.62 {
		t.Errorf("reconciliation changed the score: %v", got[0].Score)
	}
}
