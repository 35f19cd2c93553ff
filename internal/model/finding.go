package model

// Category is the high-level DPDP classification of an entity type.
type Category string

const (
	CategorySensitivePersonal Category = "SENSITIVE_PERSONAL"
	CategoryPersonal          Category = "PERSONAL"
)

// sensitiveEntityTypes is the closed set of entity types classified as
// SENSITIVE_PERSONAL. Everything else maps to PERSONAL.
var sensitiveEntityTypes = map[string]bool{
	"IN_AADHAAR":     true,
	"IN_PAN":         true,
	"IN_PASSPORT":    true,
	"CREDIT_CARD":    true,
	"IBAN_CODE":      true,
	"CRYPTO":         true,
	"US_BANK_NUMBER": true,
}

// ClassifyEntity maps an entity type to its DPDP category.
func ClassifyEntity(entityType string) Category {
	if sensitiveEntityTypes[entityType] {
		return CategorySensitivePersonal
	}
	return CategoryPersonal
}

// Finding is a validated, filtered, categorized detection surfaced in the
// output report. Derived 1:1 from a surviving SpanResult.
type Finding struct {
	EntityType     string   `json:"entity_type"`
	Category       Category `json:"category"`
	Score          float64  `json:"score"`
	Text           string   `json:"text"`
	Start          int      `json:"start"`
	End            int      `json:"end"`
	FilePath       string   `json:"file_path"`
	FileHash       string   `json:"file_hash,omitempty"`
	RecognizerName string   `json:"recognizer_name,omitempty"`
	Snippet        string   `json:"snippet,omitempty"`
}
