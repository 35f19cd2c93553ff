package model

import "time"

// Config is the full runtime configuration, assembled from defaults, the
// config file, environment variables, and CLI flags (in ascending priority).
type Config struct {
	Scan        ScanConfig        `yaml:"scan" mapstructure:"scan"`
	Detector    DetectorConfig    `yaml:"detector" mapstructure:"detector"`
	Recognizers RecognizersConfig `yaml:"recognizers" mapstructure:"recognizers"`
	Rules       RulesConfig       `yaml:"rules" mapstructure:"rules"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
}

// ScanConfig controls corpus discovery and extraction.
type ScanConfig struct {
	InputPaths        []string `yaml:"input_paths" mapstructure:"input_paths" json:"input_paths"`
	Recursive         bool     `yaml:"recursive" mapstructure:"recursive" json:"recursive"`
	IncludeExtensions []string `yaml:"include_extensions" mapstructure:"include_extensions" json:"include_extensions"`
	ExcludeDirs       []string `yaml:"exclude_dirs" mapstructure:"exclude_dirs" json:"exclude_dirs"`
	ExcludeFileGlobs  []string `yaml:"exclude_file_globs" mapstructure:"exclude_file_globs" json:"exclude_file_globs"`
	MaxFileSizeMB     int      `yaml:"max_file_size_mb" mapstructure:"max_file_size_mb" json:"max_file_size_mb"`
	ReadBinaryAsText  bool     `yaml:"read_binary_as_text" mapstructure:"read_binary_as_text" json:"read_binary_as_text"`
}

// DetectorConfig carries the runtime detection parameters the rule overlay
// projects onto. It is copied, never shared mutably.
type DetectorConfig struct {
	Provider              string             `yaml:"provider" mapstructure:"provider" json:"provider"`
	Language              string             `yaml:"language" mapstructure:"language" json:"language"`
	Entities              []string           `yaml:"entities" mapstructure:"entities" json:"entities"`
	ScoreThreshold        float64            `yaml:"score_threshold" mapstructure:"score_threshold" json:"score_threshold"`
	EntityScoreThresholds map[string]float64 `yaml:"entity_score_thresholds" mapstructure:"entity_score_thresholds" json:"entity_score_thresholds"`
	ContextWords          []string           `yaml:"context_words" mapstructure:"context_words" json:"context_words"`
	ChunkSizeChars        int                `yaml:"chunk_size_chars" mapstructure:"chunk_size_chars" json:"chunk_size_chars"`
	ChunkOverlapChars     int                `yaml:"chunk_overlap_chars" mapstructure:"chunk_overlap_chars" json:"chunk_overlap_chars"`
}

// Clone returns a deep copy so overlay projection never aliases the base.
func (d DetectorConfig) Clone() DetectorConfig {
	out := d
	out.Entities = append([]string(nil), d.Entities...)
	out.ContextWords = append([]string(nil), d.ContextWords...)
	out.EntityScoreThresholds = make(map[string]float64, len(d.EntityScoreThresholds))
	for k, v := range d.EntityScoreThresholds {
		out.EntityScoreThresholds[k] = v
	}
	return out
}

// RecognizersConfig tunes the built-in pattern recognizers.
type RecognizersConfig struct {
	EnableIndianIdentifiers   bool     `yaml:"enable_indian_identifiers" mapstructure:"enable_indian_identifiers"`
	AadhaarChecksumValidation bool     `yaml:"aadhaar_checksum_validation" mapstructure:"aadhaar_checksum_validation"`
	UPIGenericPattern         bool     `yaml:"upi_generic_pattern" mapstructure:"upi_generic_pattern"`
	UPIHandleDomains          []string `yaml:"upi_handle_domains" mapstructure:"upi_handle_domains"`
}

// RulesConfig selects which layered rule files build the effective policy.
type RulesConfig struct {
	Enabled             bool              `yaml:"enabled" mapstructure:"enabled"`
	Region              string            `yaml:"region" mapstructure:"region"`
	EnvironmentVariable string            `yaml:"environment_variable" mapstructure:"environment_variable"`
	DefaultEnvironment  string            `yaml:"default_environment" mapstructure:"default_environment"`
	Environment         string            `yaml:"environment" mapstructure:"environment"`
	BaseRulesFile       string            `yaml:"base_rules_file" mapstructure:"base_rules_file"`
	EnvironmentRules    map[string]string `yaml:"environment_rules" mapstructure:"environment_rules"`
	// ConfigDir anchors relative rule file paths; set after config load.
	ConfigDir string `yaml:"-" mapstructure:"-"`
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	Path                string `yaml:"path" mapstructure:"path"`
	Pretty              bool   `yaml:"pretty" mapstructure:"pretty"`
	IncludeTextSnippet  bool   `yaml:"include_text_snippet" mapstructure:"include_text_snippet"`
	SnippetContextChars int    `yaml:"snippet_context_chars" mapstructure:"snippet_context_chars"`
	IncludeFileHash     bool   `yaml:"include_file_hash" mapstructure:"include_file_hash"`
	MaskFilePaths       bool   `yaml:"mask_file_paths" mapstructure:"mask_file_paths"`
	FilePathMaskMode    string `yaml:"file_path_mask_mode" mapstructure:"file_path_mask_mode"`
	FilePathBaseDir     string `yaml:"file_path_base_dir" mapstructure:"file_path_base_dir"`
	FilePathHashSalt    string `yaml:"file_path_hash_salt" mapstructure:"file_path_hash_salt"`
}

// CacheConfig controls the per-file findings cache.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// HTTPConfig applies to URL text sources.
type HTTPConfig struct {
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots     bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int           `yaml:"burst_size" mapstructure:"burst_size"`
	HTTPProxy         string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy        string        `yaml:"https_proxy" mapstructure:"https_proxy"`
}

// LLMConfig configures the optional LLM-backed detector.
type LLMConfig struct {
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"-" mapstructure:"-"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutS  int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ConcurrencyConfig bounds parallel chunk analysis within one text.
type ConcurrencyConfig struct {
	ChunkWorkers int `yaml:"chunk_workers" mapstructure:"chunk_workers"`
}

// DefaultConfig returns the built-in defaults; the config file and flags
// override individual fields.
func DefaultConfig() *Config {
	return &Config{
		Scan: ScanConfig{
			InputPaths: []string{"."},
			Recursive:  true,
			IncludeExtensions: []string{
				".txt", ".csv", ".json", ".log", ".md",
				".xml", ".yaml", ".yml", ".html", ".htm",
			},
			ExcludeDirs: []string{
				".git", ".idea", "node_modules", "dist", "build", "vendor",
			},
			ExcludeFileGlobs: []string{"*.exe", "*.bin", "*.DS_Store"},
			MaxFileSizeMB:    20,
		},
		Detector: DetectorConfig{
			Provider: "pattern",
			Language: "en",
			Entities: []string{
				"IN_AADHAAR", "IN_PAN", "IN_IFSC", "IN_UPI_ID",
				"IN_PASSPORT", "IN_BANK_ACCOUNT", "EMAIL_ADDRESS",
				"PHONE_NUMBER", "CREDIT_CARD", "IBAN_CODE", "IP_ADDRESS",
			},
			ScoreThreshold: 0.35,
			EntityScoreThresholds: map[string]float64{
				"PHONE_NUMBER":    0.55,
				"EMAIL_ADDRESS":   0.6,
				"IN_BANK_ACCOUNT": 0.45,
			},
			ChunkSizeChars:    200000,
			ChunkOverlapChars: 500,
		},
		Recognizers: RecognizersConfig{
			EnableIndianIdentifiers:   true,
			AadhaarChecksumValidation: true,
			UPIGenericPattern:         false,
			UPIHandleDomains: []string{
				"upi", "ybl", "ibl", "axl", "paytm",
				"okhdfcbank", "okicici", "oksbi", "okaxis",
			},
		},
		Rules: RulesConfig{
			Enabled:             false,
			Region:              "india",
			EnvironmentVariable: "PIISCAN_RULES_ENV",
			DefaultEnvironment:  "default",
			EnvironmentRules:    map[string]string{},
		},
		Output: OutputConfig{
			Path:                "pii_report.json",
			Pretty:              true,
			IncludeTextSnippet:  true,
			SnippetContextChars: 24,
			IncludeFileHash:     true,
			FilePathMaskMode:    "full",
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		HTTP: HTTPConfig{
			Timeout:           30 * time.Second,
			UserAgent:         "piiscan/1.0 (+https://github.com/dpdp-tools/piiscan)",
			MaxBodyBytes:      2_000_000,
			RespectRobots:     true,
			RequestsPerSecond: 2,
			BurstSize:         5,
		},
		LLM: LLMConfig{
			Model:     "gpt-4o-mini",
			TimeoutS:  30,
			MaxTokens: 2000,
		},
		Concurrency: ConcurrencyConfig{
			ChunkWorkers: 4,
		},
	}
}
