package reconcile

import (
	"strings"

	"github.com/dpdp-tools/piiscan/internal/detect"
	"github.com/dpdp-tools/piiscan/internal/model"
)

const numericContextWindow = 64

var bankContextKeywords = []string{
	"account", "acct", "a/c", "ifsc", "bank", "beneficiary", "iban",
}

// Validator is a built-in domain check for one entity type, applied after
// rule-based validation regardless of whether a rule is present.
type Validator interface {
	Keep(span model.SpanResult, text string) bool
}

// validatorRegistry maps entity types to their built-in validator.
var validatorRegistry = map[string]Validator{
	"IN_BANK_ACCOUNT": bankAccountValidator{},
	"PHONE_NUMBER":    phoneNumberValidator{},
}

func builtinValidator(entityType string) (Validator, bool) {
	v, ok := validatorRegistry[entityType]
	return v, ok
}

// bankAccountValidator tightens the loose all-digits bank account pattern:
// the digit count must be 11-18, the number must not look like a phone
// number or a checksum-valid Aadhaar, and candidates of 12 digits or fewer
// need a bank-context keyword nearby. The 13-18 digit range intentionally
// never requires context.
type bankAccountValidator struct{}

func (bankAccountValidator) Keep(span model.SpanResult, text string) bool {
	digits := digitsOnly(span.MatchedText(text))
	if len(digits) < 11 || len(digits) > 18 {
		return false
	}
	if looksLikePhone(digits) {
		return false
	}
	if looksLikeAadhaar(digits) {
		return false
	}
	if len(digits) <= 12 {
		window := surroundingText(text, span.Start, span.End, numericContextWindow)
		if !containsAny(window, bankContextKeywords) {
			return false
		}
	}
	return true
}

// phoneNumberValidator rejects +91/91-prefixed numbers whose trailing
// 10-digit local part does not start 6-9.
type phoneNumberValidator struct{}

func (phoneNumberValidator) Keep(span model.SpanResult, text string) bool {
	digits := digitsOnly(span.MatchedText(text))
	if strings.HasPrefix(digits, "91") && len(digits) >= 12 {
		local := digits[len(digits)-10:]
		if local[0] < '6' || local[0] > '9' {
			return false
		}
	}
	return true
}

func looksLikePhone(digits string) bool {
	return len(digits) == 10 && digits[0] >= '6' && digits[0] <= '9'
}

func looksLikeAadhaar(digits string) bool {
	return len(digits) == 12 &&
		digits[0] >= '2' && digits[0] <= '9' &&
		detect.VerhoeffValid(digits)
}

func digitsOnly(value string) string {
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		if value[i] >= '0' && value[i] <= '9' {
			b.WriteByte(value[i])
		}
	}
	return b.String()
}

// surroundingText returns the lower-cased window of chars on each side of
// the span, clamped to the text bounds.
func surroundingText(text string, start, end, window int) string {
	s := start - window
	if s < 0 {
		s = 0
	}
	e := end + window
	if e > len(text) {
		e = len(text)
	}
	return strings.ToLower(text[s:e])
}

func containsAny(haystack string, tokens []string) bool {
	for _, token := range tokens {
		if token != "" && strings.Contains(haystack, token) {
			return true
		}
	}
	return false
}
