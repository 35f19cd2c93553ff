package reconcile

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dpdp-tools/piiscan/internal/model"
	"github.com/dpdp-tools/piiscan/internal/rules"
)

// Reconciler turns the raw merged span list into the final finding set:
// exact-duplicate removal, per-entity score thresholds, rule-based
// validation, built-in domain validation, and same-span conflict
// resolution. Reconciliation only filters; it never changes scores.
type Reconciler struct {
	entityThresholds map[string]float64
	ruleSet          *rules.RuleSet
}

// New creates a reconciler for one effective policy. The rule set may be
// nil or disabled; thresholds may be nil.
func New(entityThresholds map[string]float64, ruleSet *rules.RuleSet) *Reconciler {
	return &Reconciler{
		entityThresholds: entityThresholds,
		ruleSet:          ruleSet,
	}
}

// Apply runs the reconciliation pipeline in its fixed order and returns
// the surviving spans sorted in document order.
func (r *Reconciler) Apply(spans []model.SpanResult, text string) []model.SpanResult {
	deduped := Deduplicate(spans, text)

	var filtered []model.SpanResult
	for _, span := range deduped {
		rule, hasRule := r.rule(span.EntityType)

		if span.Score < r.effectiveThreshold(span.EntityType, rule, hasRule) {
			continue
		}
		if hasRule && !keepByEntityRule(span, text, rule) {
			continue
		}
		if v, ok := builtinValidator(span.EntityType); ok && !v.Keep(span, text) {
			continue
		}
		filtered = append(filtered, span)
	}

	return resolveSameSpanConflicts(filtered)
}

func (r *Reconciler) rule(entityType string) (rules.EntityRule, bool) {
	if r.ruleSet == nil || !r.ruleSet.Metadata.Enabled {
		return rules.EntityRule{}, false
	}
	return r.ruleSet.Rule(entityType)
}

// effectiveThreshold is max(per-entity threshold, rule threshold), with 0
// when neither is set.
func (r *Reconciler) effectiveThreshold(entityType string, rule rules.EntityRule, hasRule bool) float64 {
	threshold := r.entityThresholds[entityType]
	if hasRule && rule.ScoreThreshold != nil && *rule.ScoreThreshold > threshold {
		threshold = *rule.ScoreThreshold
	}
	return threshold
}

// Deduplicate removes spans with an identical (entity_type, start, end,
// matched_text) tuple, keeping the highest-scoring instance.
func Deduplicate(spans []model.SpanResult, text string) []model.SpanResult {
	ordered := append([]model.SpanResult(nil), spans...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Start != ordered[j].Start {
			return ordered[i].Start < ordered[j].Start
		}
		if ordered[i].End != ordered[j].End {
			return ordered[i].End < ordered[j].End
		}
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		return ordered[i].EntityType < ordered[j].EntityType
	})

	type key struct {
		entity  string
		start   int
		end     int
		matched string
	}
	seen := make(map[key]bool, len(ordered))
	var deduped []model.SpanResult
	for _, span := range ordered {
		k := key{span.EntityType, span.Start, span.End, span.MatchedText(text)}
		if seen[k] {
			continue
		}
		seen[k] = true
		deduped = append(deduped, span)
	}
	return deduped
}

// keepByEntityRule applies a rule-file entity override: normalization,
// value and pattern allow/deny lists, length bounds, and contextual
// keyword gating.
func keepByEntityRule(span model.SpanResult, text string, rule rules.EntityRule) bool {
	if rule.IsDisabled() {
		return false
	}

	matched := span.MatchedText(text)
	normalized := normalizeValue(matched, rule.Normalization)

	if len(rule.IncludeValues) > 0 && !inNormalizedSet(normalized, rule.IncludeValues, rule.Normalization) {
		return false
	}
	if inNormalizedSet(normalized, rule.ExcludeValues, rule.Normalization) {
		return false
	}

	if len(rule.IncludePatterns) > 0 && !matchesAnyPattern(matched, rule.IncludePatterns) {
		return false
	}
	if matchesAnyPattern(matched, rule.ExcludePatterns) {
		return false
	}

	if rule.MinLength != nil && len(normalized) < *rule.MinLength {
		return false
	}
	if rule.MaxLength != nil && len(normalized) > *rule.MaxLength {
		return false
	}

	window := numericContextWindow
	if rule.ContextWindowChars != nil && *rule.ContextWindowChars >= 0 {
		window = *rule.ContextWindowChars
	}
	surrounding := surroundingText(text, span.Start, span.End, window)

	if len(rule.RequiredContext) > 0 && !containsAnyLower(surrounding, rule.RequiredContext) {
		return false
	}
	if containsAnyLower(surrounding, rule.ForbiddenContext) {
		return false
	}

	return true
}

// normalizeValue applies the rule's normalization mode: digits strips
// non-digits, lower lowercases, anything else is identity.
func normalizeValue(value, normalization string) string {
	switch strings.ToLower(strings.TrimSpace(normalization)) {
	case "digits":
		return digitsOnly(value)
	case "lower":
		return strings.ToLower(value)
	default:
		return value
	}
}

func inNormalizedSet(normalized string, values []string, normalization string) bool {
	for _, value := range values {
		if normalizeValue(value, normalization) == normalized {
			return true
		}
	}
	return false
}

// matchesAnyPattern runs case-insensitive regex search; invalid patterns
// are skipped rather than failing the scan.
func matchesAnyPattern(value string, patterns []string) bool {
	for _, pattern := range patterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			continue
		}
		if re.MatchString(value) {
			return true
		}
	}
	return false
}

func containsAnyLower(haystack string, tokens []string) bool {
	for _, token := range tokens {
		lowered := strings.ToLower(token)
		if lowered != "" && strings.Contains(haystack, lowered) {
			return true
		}
	}
	return false
}

// resolveSameSpanConflicts keeps exactly one candidate per identical
// (start, end) span, chosen by highest priority then highest score, and
// returns the result in document order.
func resolveSameSpanConflicts(spans []model.SpanResult) []model.SpanResult {
	type spanKey struct{ start, end int }
	grouped := make(map[spanKey][]model.SpanResult)
	var order []spanKey
	for _, span := range spans {
		k := spanKey{span.Start, span.End}
		if _, ok := grouped[k]; !ok {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], span)
	}

	resolved := make([]model.SpanResult, 0, len(order))
	for _, k := range order {
		candidates := grouped[k]
		winner := candidates[0]
		for _, candidate := range candidates[1:] {
			wp, cp := Priority(winner.EntityType), Priority(candidate.EntityType)
			if cp > wp || (cp == wp && candidate.Score > winner.Score) {
				winner = candidate
			}
		}
		resolved = append(resolved, winner)
	}

	sort.SliceStable(resolved, func(i, j int) bool {
		if resolved[i].Start != resolved[j].Start {
			return resolved[i].Start < resolved[j].Start
		}
		if resolved[i].End != resolved[j].End {
			return resolved[i].End < resolved[j].End
		}
		if resolved[i].Score != resolved[j].Score {
			return resolved[i].Score > resolved[j].Score
		}
		return Priority(resolved[i].EntityType) > Priority(resolved[j].EntityType)
	})
	return resolved
}
