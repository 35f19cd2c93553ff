package detect

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dpdp-tools/piiscan/internal/model"
)

const (
	// Context enhancement: a nearby context keyword lifts a tentative
	// match's score and guarantees a floor.
	contextBoost       = 0.35
	contextScoreFloor  = 0.45
	contextWindowChars = 64
	maxScore           = 1.0
)

// pattern is one scored regex belonging to a recognizer.
type pattern struct {
	name  string
	re    *regexp.Regexp
	score float64
	// digitBoundary rejects matches with an adjacent digit, standing in
	// for the lookaround assertions RE2 does not support.
	digitBoundary bool
}

// recognizer detects one entity type through patterns plus an optional
// match validator. A validator returning true pins the score to maxScore;
// false discards the match; nil leaves the pattern score untouched.
type recognizer struct {
	name     string
	entity   string
	patterns []pattern
	context  []string
	validate func(match string) *bool
}

// PatternDetector is the built-in Detector: a registry of regex
// recognizers for the supported entity set.
type PatternDetector struct {
	recognizers []recognizer
}

// NewPatternDetector builds the recognizer registry from the recognizer
// tuning config.
func NewPatternDetector(cfg model.RecognizersConfig) *PatternDetector {
	d := &PatternDetector{}
	d.recognizers = append(d.recognizers, builtinRecognizers()...)
	if cfg.EnableIndianIdentifiers {
		d.recognizers = append(d.recognizers, indianRecognizers(cfg)...)
	}
	return d
}

// Name implements Detector.
func (d *PatternDetector) Name() string { return "pattern" }

// Analyze implements Detector. Offsets are local to the supplied text.
func (d *PatternDetector) Analyze(ctx context.Context, text string, opts Options) ([]model.SpanResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &DetectionError{Err: err}
	}

	var allowed map[string]bool
	if opts.Entities != nil {
		allowed = make(map[string]bool, len(opts.Entities))
		for _, entity := range opts.Entities {
			allowed[entity] = true
		}
	}

	lowerText := strings.ToLower(text)
	var results []model.SpanResult
	for _, rec := range d.recognizers {
		if allowed != nil && !allowed[rec.entity] {
			continue
		}
		results = append(results, rec.findAll(text, lowerText, opts)...)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Start != results[j].Start {
			return results[i].Start < results[j].Start
		}
		if results[i].End != results[j].End {
			return results[i].End < results[j].End
		}
		return results[i].Score > results[j].Score
	})
	return results, nil
}

func (r recognizer) findAll(text, lowerText string, opts Options) []model.SpanResult {
	var spans []model.SpanResult
	for _, p := range r.patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			start, end := loc[0], loc[1]
			if p.digitBoundary && hasAdjacentDigit(text, start, end) {
				continue
			}

			score := p.score
			match := text[start:end]
			if r.validate != nil {
				verdict := r.validate(match)
				if verdict != nil && !*verdict {
					continue
				}
				if verdict != nil && *verdict {
					score = maxScore
				}
			}

			if score < maxScore && hasContextKeyword(lowerText, start, end, r.context, opts.ContextWords) {
				score += contextBoost
				if score < contextScoreFloor {
					score = contextScoreFloor
				}
				if score > maxScore {
					score = maxScore
				}
			}

			if score < opts.ScoreThreshold {
				continue
			}
			spans = append(spans, model.SpanResult{
				EntityType:     r.entity,
				Start:          start,
				End:            end,
				Score:          score,
				RecognizerName: r.name,
			})
		}
	}
	return spans
}

func hasAdjacentDigit(text string, start, end int) bool {
	if start > 0 && text[start-1] >= '0' && text[start-1] <= '9' {
		return true
	}
	if end < len(text) && text[end] >= '0' && text[end] <= '9' {
		return true
	}
	return false
}

// hasContextKeyword checks a fixed window around the match for any of the
// recognizer's context keywords or the caller's extra context words.
func hasContextKeyword(lowerText string, start, end int, keywords, extra []string) bool {
	if len(keywords) == 0 && len(extra) == 0 {
		return false
	}
	winStart := start - contextWindowChars
	if winStart < 0 {
		winStart = 0
	}
	winEnd := end + contextWindowChars
	if winEnd > len(lowerText) {
		winEnd = len(lowerText)
	}
	window := lowerText[winStart:winEnd]
	for _, kw := range keywords {
		if kw != "" && strings.Contains(window, strings.ToLower(kw)) {
			return true
		}
	}
	for _, kw := range extra {
		if kw != "" && strings.Contains(window, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func digitsOf(value string) string {
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		if value[i] >= '0' && value[i] <= '9' {
			b.WriteByte(value[i])
		}
	}
	return b.String()
}

func boolPtr(v bool) *bool { return &v }

// builtinRecognizers covers the region-independent entity types.
func builtinRecognizers() []recognizer {
	return []recognizer{
		{
			name:   "EMAIL_RECOGNIZER",
			entity: "EMAIL_ADDRESS",
			patterns: []pattern{{
				name:  "email",
				re:    regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
				score: 0.6,
			}},
			context: []string{"email", "e-mail", "mail", "contact"},
		},
		{
			name:   "PHONE_RECOGNIZER",
			entity: "PHONE_NUMBER",
			patterns: []pattern{
				{
					name:          "phone_in_cc",
					re:            regexp.MustCompile(`\+?91[\s-]?[6-9]\d{4}[\s-]?\d{5}`),
					score:         0.6,
					digitBoundary: true,
				},
				{
					name:          "phone_in_local",
					re:            regexp.MustCompile(`[6-9]\d{9}`),
					score:         0.55,
					digitBoundary: true,
				},
			},
			context: []string{"phone", "mobile", "call", "contact", "tel", "whatsapp"},
		},
		{
			name:   "CREDIT_CARD_RECOGNIZER",
			entity: "CREDIT_CARD",
			patterns: []pattern{{
				name:          "card",
				re:            regexp.MustCompile(`\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{2,4}`),
				score:         0.35,
				digitBoundary: true,
			}},
			context: []string{"card", "credit", "debit", "visa", "mastercard", "cvv", "expiry"},
			validate: func(match string) *bool {
				digits := digitsOf(match)
				if len(digits) < 13 || len(digits) > 19 {
					return boolPtr(false)
				}
				return boolPtr(LuhnValid(digits))
			},
		},
		{
			name:   "IBAN_RECOGNIZER",
			entity: "IBAN_CODE",
			patterns: []pattern{{
				name:  "iban",
				re:    regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`),
				score: 0.5,
			}},
			context: []string{"iban", "bank", "transfer", "swift"},
		},
		{
			name:   "IP_RECOGNIZER",
			entity: "IP_ADDRESS",
			patterns: []pattern{{
				name:          "ipv4",
				re:            regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\.){3}(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\b`),
				score:         0.6,
				digitBoundary: true,
			}},
			context: []string{"ip", "address", "host", "server"},
		},
	}
}

// indianRecognizers covers the India-specific identifier set.
func indianRecognizers(cfg model.RecognizersConfig) []recognizer {
	recs := []recognizer{
		{
			name:   "IN_AADHAAR_RECOGNIZER",
			entity: "IN_AADHAAR",
			patterns: []pattern{{
				name:          "aadhaar_strict",
				re:            regexp.MustCompile(`[2-9]\d{3}\s?\d{4}\s?\d{4}`),
				score:         0.35,
				digitBoundary: true,
			}},
			context: []string{"aadhaar", "uidai", "identity number", "government id"},
			validate: func(match string) *bool {
				digits := digitsOf(match)
				if len(digits) != 12 {
					return boolPtr(false)
				}
				if !cfg.AadhaarChecksumValidation {
					return boolPtr(true)
				}
				return boolPtr(VerhoeffValid(digits))
			},
		},
		{
			name:   "IN_PAN_RECOGNIZER",
			entity: "IN_PAN",
			patterns: []pattern{{
				name:  "pan_regex",
				re:    regexp.MustCompile(`\b[A-Z]{5}[0-9]{4}[A-Z]\b`),
				score: 0.55,
			}},
			context: []string{"pan", "income tax", "permanent account number"},
		},
		{
			name:   "IN_IFSC_RECOGNIZER",
			entity: "IN_IFSC",
			patterns: []pattern{{
				name:  "ifsc_regex",
				re:    regexp.MustCompile(`\b[A-Z]{4}0[A-Z0-9]{6}\b`),
				score: 0.6,
			}},
			context: []string{"ifsc", "bank", "branch", "account"},
		},
		{
			name:   "IN_PASSPORT_RECOGNIZER",
			entity: "IN_PASSPORT",
			patterns: []pattern{{
				name:  "passport_regex",
				re:    regexp.MustCompile(`\b[A-PR-WYa-pr-wy][1-9]\d{6}\b`),
				score: 0.55,
			}},
			context: []string{"passport", "travel document"},
		},
		{
			name:   "IN_BANK_ACCOUNT_RECOGNIZER",
			entity: "IN_BANK_ACCOUNT",
			patterns: []pattern{{
				name:          "bank_account_regex",
				re:            regexp.MustCompile(`\d{9,18}`),
				score:         0.35,
				digitBoundary: true,
			}},
			context: []string{"account", "bank", "ifsc", "branch", "beneficiary"},
		},
	}

	upi := recognizer{
		name:   "IN_UPI_RECOGNIZER",
		entity: "IN_UPI_ID",
		patterns: []pattern{{
			name:  "upi_strict",
			re:    regexp.MustCompile(fmt.Sprintf(`\b[a-zA-Z0-9._-]{2,}@(?:%s)\b`, strings.Join(upiDomains(cfg), "|"))),
			score: 0.7,
		}},
		context: []string{"upi", "vpa", "gpay", "phonepe", "paytm", "bhim", "payment"},
	}
	if cfg.UPIGenericPattern {
		upi.patterns = append(upi.patterns, pattern{
			name:  "upi_generic",
			re:    regexp.MustCompile(`\b[a-zA-Z0-9._-]{2,}@[a-zA-Z]{2,64}\b`),
			score: 0.45,
		})
	}
	return append(recs, upi)
}

func upiDomains(cfg model.RecognizersConfig) []string {
	if len(cfg.UPIHandleDomains) > 0 {
		domains := make([]string, 0, len(cfg.UPIHandleDomains))
		for _, d := range cfg.UPIHandleDomains {
			domains = append(domains, regexp.QuoteMeta(d))
		}
		return domains
	}
	return []string{"upi", "ybl", "ibl", "axl", "paytm", "okhdfcbank", "okicici", "oksbi", "okaxis"}
}
