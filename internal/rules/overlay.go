package rules

import (
	"github.com/dpdp-tools/piiscan/internal/model"
)

// Apply projects the rule set onto runtime detection parameters and returns
// the effective copies. The projection is pure: the inputs are never
// mutated, and applying the same rule set twice yields the same result.
func (rs *RuleSet) Apply(det model.DetectorConfig, rec model.RecognizersConfig) (model.DetectorConfig, model.RecognizersConfig) {
	effective := det.Clone()
	if rs == nil || !rs.Metadata.Enabled {
		return effective, rec
	}

	// Entity allow-list: explicit list replaces, includes union in,
	// excludes drop out.
	if rs.DetectorOverrides.Entities != nil {
		effective.Entities = append([]string(nil), (*rs.DetectorOverrides.Entities)...)
	}
	entities := mergeUnique(effective.Entities, rs.IncludeEntities)
	if len(rs.ExcludeEntities) > 0 {
		excluded := make(map[string]bool, len(rs.ExcludeEntities))
		for _, name := range rs.ExcludeEntities {
			excluded[name] = true
		}
		kept := entities[:0]
		for _, entity := range entities {
			if !excluded[entity] {
				kept = append(kept, entity)
			}
		}
		entities = kept
	}
	if len(entities) > 0 {
		effective.Entities = entities
	}

	if rs.DetectorOverrides.ScoreThreshold != nil {
		effective.ScoreThreshold = *rs.DetectorOverrides.ScoreThreshold
	}

	// Per-entity thresholds: overlay wins on collision, then any
	// score_threshold on an entity rule overrides further.
	for entity, threshold := range rs.DetectorOverrides.EntityScoreThresholds {
		effective.EntityScoreThresholds[entity] = threshold
	}
	for entity, rule := range rs.Entities {
		if rule.ScoreThreshold != nil {
			effective.EntityScoreThresholds[entity] = *rule.ScoreThreshold
		}
	}

	effective.ContextWords = mergeUnique(effective.ContextWords, rs.DetectorOverrides.ContextWords)

	return effective, rs.applyRecognizerOverrides(rec)
}

// applyRecognizerOverrides applies direct key overwrites onto the
// recognizer tuning knobs. Unknown keys are ignored.
func (rs *RuleSet) applyRecognizerOverrides(rec model.RecognizersConfig) model.RecognizersConfig {
	out := rec
	out.UPIHandleDomains = append([]string(nil), rec.UPIHandleDomains...)
	for key, value := range rs.RecognizerOverrides {
		switch key {
		case "enable_indian_identifiers":
			if v, ok := value.(bool); ok {
				out.EnableIndianIdentifiers = v
			}
		case "aadhaar_checksum_validation":
			if v, ok := value.(bool); ok {
				out.AadhaarChecksumValidation = v
			}
		case "upi_generic_pattern":
			if v, ok := value.(bool); ok {
				out.UPIGenericPattern = v
			}
		case "upi_handle_domains":
			if list, ok := value.([]any); ok {
				domains := make([]string, 0, len(list))
				for _, item := range list {
					if s, ok := item.(string); ok {
						domains = append(domains, s)
					}
				}
				out.UPIHandleDomains = domains
			}
		}
	}
	return out
}
