package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dpdp-tools/piiscan/internal/model"
)

// RuleFileNotFoundError indicates a referenced rule file does not exist.
// It is fatal to the run: an effective policy cannot be established.
type RuleFileNotFoundError struct {
	Path string
}

func (e *RuleFileNotFoundError) Error() string {
	return fmt.Sprintf("rule file not found: %s", e.Path)
}

// EntityRule is a per-entity policy override loaded from rule files.
type EntityRule struct {
	Enabled            *bool    `json:"enabled,omitempty"`
	ScoreThreshold     *float64 `json:"score_threshold,omitempty"`
	Normalization      string   `json:"normalization,omitempty"`
	IncludeValues      []string `json:"include_values,omitempty"`
	ExcludeValues      []string `json:"exclude_values,omitempty"`
	IncludePatterns    []string `json:"include_patterns,omitempty"`
	ExcludePatterns    []string `json:"exclude_patterns,omitempty"`
	MinLength          *int     `json:"min_length,omitempty"`
	MaxLength          *int     `json:"max_length,omitempty"`
	ContextWindowChars *int     `json:"context_window_chars,omitempty"`
	RequiredContext    []string `json:"required_context,omitempty"`
	ForbiddenContext   []string `json:"forbidden_context,omitempty"`
}

// IsDisabled reports whether the rule explicitly disables its entity.
func (r EntityRule) IsDisabled() bool {
	return r.Enabled != nil && !*r.Enabled
}

// DetectorOverrides adjusts runtime detection parameters. Pointer fields
// distinguish "absent" from "explicitly empty".
type DetectorOverrides struct {
	Entities              *[]string          `json:"entities,omitempty"`
	ScoreThreshold        *float64           `json:"score_threshold,omitempty"`
	EntityScoreThresholds map[string]float64 `json:"entity_score_thresholds,omitempty"`
	ContextWords          []string           `json:"context_words,omitempty"`
}

// RuleSet is the effective, merged detection policy. Built fresh per run
// and read-only afterwards; safe to share across concurrent scans.
type RuleSet struct {
	Metadata            model.RulesMetadata   `json:"metadata"`
	DetectorOverrides   DetectorOverrides     `json:"detector_overrides"`
	RecognizerOverrides map[string]any        `json:"recognizer_overrides"`
	Entities            map[string]EntityRule `json:"entities"`
	IncludeEntities     []string              `json:"include_entities"`
	ExcludeEntities     []string              `json:"exclude_entities"`
}

// Rule returns the entity rule for an entity type, if one is present.
func (rs *RuleSet) Rule(entityType string) (EntityRule, bool) {
	if rs == nil || rs.Entities == nil {
		return EntityRule{}, false
	}
	rule, ok := rs.Entities[entityType]
	return rule, ok
}

// Fingerprint summarizes the effective policy for cache keying. It hashes
// the merged rule content, not the loaded file list, so editing a rule
// file in place changes the fingerprint and invalidates cached findings.
func (rs *RuleSet) Fingerprint() string {
	if rs == nil || !rs.Metadata.Enabled {
		return "rules:off"
	}
	content, _ := json.Marshal(struct {
		Detector    DetectorOverrides     `json:"detector"`
		Recognizers map[string]any        `json:"recognizers"`
		Entities    map[string]EntityRule `json:"entities"`
		Include     []string              `json:"include"`
		Exclude     []string              `json:"exclude"`
	}{rs.DetectorOverrides, rs.RecognizerOverrides, rs.Entities, rs.IncludeEntities, rs.ExcludeEntities})
	digest := sha256.Sum256(content)
	return "rules:" + rs.Metadata.Region + ":" + rs.Metadata.Environment + ":" +
		hex.EncodeToString(digest[:8])
}

// ResolveEnvironment picks the active rule environment with precedence
// environment variable > configured value > default. Values that are empty
// or still look like an unresolved ${VAR} placeholder are ignored.
func ResolveEnvironment(envVarName, configured, defaultEnvironment string) string {
	fallback := strings.TrimSpace(defaultEnvironment)
	if fallback == "" {
		fallback = "default"
	}
	if name := strings.TrimSpace(envVarName); name != "" {
		if value := normalizeEnvironmentName(os.Getenv(name)); value != "" {
			return value
		}
	}
	if value := normalizeEnvironmentName(configured); value != "" {
		return value
	}
	return fallback
}

func normalizeEnvironmentName(value string) string {
	normalized := strings.TrimSpace(value)
	if normalized == "" {
		return ""
	}
	// Unresolved placeholder expansion is treated as unset.
	if strings.HasPrefix(normalized, "${") && strings.HasSuffix(normalized, "}") {
		return ""
	}
	return normalized
}

// Load builds the effective rule set from the base file and the file mapped
// to the selected environment, merged in that fixed order. A disabled rule
// engine yields a no-op RuleSet.
func Load(cfg model.RulesConfig) (*RuleSet, error) {
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "india"
	}

	if !cfg.Enabled {
		return &RuleSet{
			Metadata: model.RulesMetadata{
				Enabled:     false,
				Region:      region,
				Environment: "disabled",
				FilesLoaded: []string{},
			},
		}, nil
	}

	environment := ResolveEnvironment(cfg.EnvironmentVariable, cfg.Environment, cfg.DefaultEnvironment)

	var files []string
	if base := strings.TrimSpace(cfg.BaseRulesFile); base != "" {
		files = append(files, resolveRulePath(base, cfg.ConfigDir))
	}
	if envFile := strings.TrimSpace(cfg.EnvironmentRules[environment]); envFile != "" {
		files = append(files, resolveRulePath(envFile, cfg.ConfigDir))
	}

	merged := map[string]any{}
	loaded := []string{}
	for _, path := range files {
		doc, err := readRuleFile(path)
		if err != nil {
			return nil, err
		}
		merged = deepMerge(merged, doc)
		loaded = append(loaded, path)
	}

	ruleSet, err := decodeRuleSet(merged)
	if err != nil {
		return nil, err
	}
	ruleSet.Metadata = model.RulesMetadata{
		Enabled:     true,
		Region:      region,
		Environment: environment,
		FilesLoaded: loaded,
	}
	return ruleSet, nil
}

// readRuleFile reads one rule document as a generic nested map.
func readRuleFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &RuleFileNotFoundError{Path: path}
		}
		return nil, fmt.Errorf("read rule file %s: %w", path, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rule file %s: %w", path, err)
	}
	return doc, nil
}

// decodeRuleSet converts the merged generic tree into the typed RuleSet.
func decodeRuleSet(merged map[string]any) (*RuleSet, error) {
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode merged rules: %w", err)
	}
	var ruleSet RuleSet
	if err := json.Unmarshal(data, &ruleSet); err != nil {
		return nil, fmt.Errorf("decode merged rules: %w", err)
	}
	return &ruleSet, nil
}

func resolveRulePath(path, configDir string) string {
	if filepath.IsAbs(path) || configDir == "" {
		return path
	}
	return filepath.Join(configDir, path)
}
