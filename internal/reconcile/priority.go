package reconcile

// entityPriority ranks entity types for same-span conflict resolution.
// Higher wins; unlisted types rank 0. Process-wide immutable.
var entityPriority = map[string]int{
	"IN_AADHAAR":      200,
	"IN_PAN":          190,
	"IN_IFSC":         185,
	"IN_UPI_ID":       180,
	"IN_PASSPORT":     175,
	"CREDIT_CARD":     170,
	"IBAN_CODE":       165,
	"US_BANK_NUMBER":  150,
	"IN_BANK_ACCOUNT": 145,
	"EMAIL_ADDRESS":   140,
	"PHONE_NUMBER":    130,
	"PERSON":          120,
	"LOCATION":        110,
	"IP_ADDRESS":      100,
}

// Priority returns the conflict-resolution priority for an entity type.
func Priority(entityType string) int {
	return entityPriority[entityType]
}
