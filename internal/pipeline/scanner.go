package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dpdp-tools/piiscan/internal/cache"
	"github.com/dpdp-tools/piiscan/internal/detect"
	"github.com/dpdp-tools/piiscan/internal/model"
	"github.com/dpdp-tools/piiscan/internal/reconcile"
	"github.com/dpdp-tools/piiscan/internal/rules"
	"github.com/dpdp-tools/piiscan/internal/source"
)

// progressEvery controls how often the corpus loop logs progress.
const progressEvery = 25

// Scanner orchestrates the complete scan: rule loading, discovery,
// extraction, chunked detection, reconciliation, and report assembly.
type Scanner struct {
	cfg         *model.Config
	ruleSet     *rules.RuleSet
	detector    model.DetectorConfig
	recognizers model.RecognizersConfig
	analyzer    *detect.ChunkedAnalyzer
	reconciler  *reconcile.Reconciler
	masker      *source.PathMasker
	fetcher     *source.URLFetcher
	findings    cache.Cache
	policyFP    string
	log         *zap.SugaredLogger
	version     string
}

// policyFingerprint folds the effective detection policy into one cache
// key component. It covers the merged rule content and the projected
// detector and recognizer settings, so changing any of them invalidates
// cached findings even when file paths stay the same.
func policyFingerprint(rulesFP string, det model.DetectorConfig, rec model.RecognizersConfig) string {
	h := sha256.New()
	h.Write([]byte(rulesFP))
	enc := json.NewEncoder(h)
	_ = enc.Encode(det)
	_ = enc.Encode(rec)
	return hex.EncodeToString(h.Sum(nil))
}

// NewScanner builds a scanner from the effective configuration. The rule
// overlay is applied once here; everything downstream sees only the
// projected detector and recognizer settings.
func NewScanner(cfg *model.Config, version string, log *zap.SugaredLogger) (*Scanner, error) {
	ruleSet, err := rules.Load(cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	detectorCfg, recognizersCfg := ruleSet.Apply(cfg.Detector, cfg.Recognizers)

	var detector detect.Detector
	switch detectorCfg.Provider {
	case "", "pattern":
		detector = detect.NewPatternDetector(recognizersCfg)
	case "openai":
		detector, err = detect.NewOpenAIDetector(cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("init openai detector: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown detector provider %q", detectorCfg.Provider)
	}

	var findings cache.Cache
	if cfg.Cache.Enabled {
		dir := cfg.Cache.Dir
		if dir == "" {
			dir = filepath.Join(os.TempDir(), "piiscan-cache")
		}
		findings = cache.NewLayeredCache(cfg.Cache.MemoryTTL, dir, cfg.Cache.DiskTTL)
	}

	return &Scanner{
		cfg:         cfg,
		ruleSet:     ruleSet,
		detector:    detectorCfg,
		recognizers: recognizersCfg,
		analyzer: detect.NewChunkedAnalyzer(
			detector,
			detectorCfg.ChunkSizeChars,
			detectorCfg.ChunkOverlapChars,
			cfg.Concurrency.ChunkWorkers,
		),
		reconciler: reconcile.New(detectorCfg.EntityScoreThresholds, ruleSet),
		policyFP:   policyFingerprint(ruleSet.Fingerprint(), detectorCfg, recognizersCfg),
		masker:     source.NewPathMasker(cfg.Output, cfg.Scan),
		fetcher:    source.NewURLFetcher(cfg.HTTP),
		findings:   findings,
		log:        log,
		version:    version,
	}, nil
}

// RuleSet exposes the loaded policy, mainly for config inspection.
func (s *Scanner) RuleSet() *rules.RuleSet { return s.ruleSet }

// ScanText detects, reconciles, and categorizes findings in one text.
// Whitespace-only text short-circuits without calling the detector.
// Findings carry text-relative fields only; the corpus loop fills in the
// file identity.
func (s *Scanner) ScanText(ctx context.Context, textID, text string) ([]model.Finding, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	spans, err := s.analyzer.Analyze(ctx, textID, text, detect.Options{
		Language:       s.detector.Language,
		Entities:       s.detector.Entities,
		ScoreThreshold: s.detector.ScoreThreshold,
		ContextWords:   s.detector.ContextWords,
	})
	if err != nil {
		return nil, err
	}

	kept := s.reconciler.Apply(spans, text)

	findings := make([]model.Finding, 0, len(kept))
	for _, span := range kept {
		finding := model.Finding{
			EntityType:     span.EntityType,
			Category:       model.ClassifyEntity(span.EntityType),
			Score:          span.Score,
			Text:           span.MatchedText(text),
			Start:          span.Start,
			End:            span.End,
			RecognizerName: span.RecognizerName,
		}
		if s.cfg.Output.IncludeTextSnippet {
			finding.Snippet = snippet(text, span.Start, span.End, s.cfg.Output.SnippetContextChars)
		}
		findings = append(findings, finding)
	}
	return findings, nil
}

// Run scans the whole corpus and assembles the report. Item failures are
// recorded and the scan continues; cancellation stops between items and
// the report still carries everything accumulated so far.
func (s *Scanner) Run(ctx context.Context) (*model.Report, error) {
	startedAt := time.Now().UTC()

	urls, paths := splitInputs(s.cfg.Scan.InputPaths)

	var stats model.Stats
	var allFindings []model.Finding
	var files []model.FileReport

	if len(paths) > 0 {
		fileCfg := s.cfg.Scan
		fileCfg.InputPaths = paths
		entries, err := source.Discover(fileCfg)
		if err != nil {
			return nil, fmt.Errorf("discover corpus: %w", err)
		}
		s.log.Infow("corpus discovered", "files", len(entries), "urls", len(urls))

		outputAbs := ""
		if abs, err := filepath.Abs(s.cfg.Output.Path); err == nil {
			outputAbs = abs
		}
		maxBytes := int64(s.cfg.Scan.MaxFileSizeMB) * 1024 * 1024

		for i, entry := range entries {
			if ctx.Err() != nil {
				break
			}
			report := s.scanFile(ctx, entry, outputAbs, maxBytes)
			files = append(files, report.file)
			allFindings = append(allFindings, report.findings...)
			report.count(&stats)

			if (i+1)%progressEvery == 0 {
				s.log.Infow("scan progress",
					"processed", i+1,
					"total", len(entries),
					"findings", len(allFindings),
				)
			}
		}
	}

	if len(urls) > 0 && ctx.Err() == nil {
		for _, outcome := range s.fetcher.FetchAll(ctx, urls, s.cfg.Concurrency.ChunkWorkers) {
			report := s.scanFetched(ctx, outcome)
			files = append(files, report.file)
			allFindings = append(allFindings, report.findings...)
			report.count(&stats)
		}
	}

	sort.SliceStable(allFindings, func(i, j int) bool {
		a, b := allFindings[i], allFindings[j]
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		return a.Score > b.Score
	})

	stats.TotalFindings = len(allFindings)
	stats.ByEntityType = make(map[string]int)
	for _, finding := range allFindings {
		stats.ByEntityType[finding.EntityType]++
	}

	report := &model.Report{
		ScanStartedAt:   startedAt,
		ScanCompletedAt: time.Now().UTC(),
		Stats:           stats,
		Findings:        allFindings,
		Files:           files,
	}
	report.Scanner.Name = "piiscan"
	report.Scanner.Version = s.version
	report.Config = model.ReportConfig{
		Scan:     s.cfg.Scan,
		Detector: s.detector,
		Rules: model.RulesMetadata{
			Enabled:     s.ruleSet.Metadata.Enabled,
			Region:      s.ruleSet.Metadata.Region,
			Environment: s.ruleSet.Metadata.Environment,
			FilesLoaded: s.ruleSet.Metadata.FilesLoaded,
		},
	}

	s.log.Infow("scan complete",
		"scanned", stats.FilesScanned,
		"skipped", stats.FilesSkipped,
		"failed", stats.FilesFailed,
		"findings", stats.TotalFindings,
	)
	return report, nil
}

// itemReport is the outcome of one corpus item.
type itemReport struct {
	file     model.FileReport
	findings []model.Finding
}

// count folds one item into the corpus counters. FilesScanned counts
// every item whose scan was attempted, so a failed item increments both
// FilesScanned and FilesFailed.
func (r itemReport) count(stats *model.Stats) {
	switch r.file.Status {
	case model.StatusScanned:
		stats.FilesScanned++
	case model.StatusSkipped:
		stats.FilesSkipped++
	case model.StatusFailed:
		stats.FilesScanned++
		stats.FilesFailed++
	}
}

func (s *Scanner) scanFile(ctx context.Context, entry source.Entry, outputAbs string, maxBytes int64) itemReport {
	masked := s.masker.Mask(entry.Path)

	if abs, err := filepath.Abs(entry.Path); err == nil && outputAbs != "" && abs == outputAbs {
		return itemReport{file: model.FileReport{
			FilePath: masked,
			Status:   model.StatusSkipped,
			Reason:   "report output file",
		}}
	}
	if maxBytes > 0 && entry.Size > maxBytes {
		return itemReport{file: model.FileReport{
			FilePath: masked,
			Status:   model.StatusSkipped,
			Reason:   fmt.Sprintf("exceeds max file size (%d bytes)", entry.Size),
		}}
	}

	doc, err := source.ExtractFile(entry.Path, s.cfg.Scan)
	if err != nil {
		return itemReport{file: model.FileReport{
			FilePath: masked,
			Status:   model.StatusFailed,
			Error:    err.Error(),
		}}
	}
	if doc.Text == "" {
		return itemReport{file: model.FileReport{
			FilePath: masked,
			Status:   model.StatusSkipped,
			Reason:   "no extractable text",
		}}
	}
	return s.scanDocument(ctx, doc, masked)
}

func (s *Scanner) scanFetched(ctx context.Context, outcome source.FetchOutcome) itemReport {
	if outcome.Error != nil {
		return itemReport{file: model.FileReport{
			FilePath: outcome.URL,
			Status:   model.StatusFailed,
			Error:    outcome.Error.Error(),
		}}
	}
	if outcome.Document.Text == "" {
		return itemReport{file: model.FileReport{
			FilePath: outcome.Document.Path,
			Status:   model.StatusSkipped,
			Reason:   "no extractable text",
		}}
	}
	return s.scanDocument(ctx, outcome.Document, outcome.Document.Path)
}

// scanDocument scans one extracted document, consulting the findings
// cache first. Cached entries hold text-relative findings; file identity
// is applied after retrieval so mask settings never leak into the cache.
func (s *Scanner) scanDocument(ctx context.Context, doc source.Document, displayPath string) itemReport {
	var key string
	var findings []model.Finding
	cached := false

	if s.findings != nil {
		key = cache.FindingsKey(doc.Hash, s.policyFP)
		if payload, found := s.findings.Get(key); found {
			if err := json.Unmarshal(payload, &findings); err == nil {
				cached = true
				s.log.Debugw("cache hit", "path", displayPath)
			}
		}
	}

	if !cached {
		var err error
		findings, err = s.ScanText(ctx, doc.Path, doc.Text)
		if err != nil {
			return itemReport{file: model.FileReport{
				FilePath: displayPath,
				Status:   model.StatusFailed,
				Error:    err.Error(),
			}}
		}
		if s.findings != nil {
			if payload, err := json.Marshal(findings); err == nil {
				_ = s.findings.Set(key, payload, 0)
			}
		}
	}

	for i := range findings {
		findings[i].FilePath = displayPath
		if s.cfg.Output.IncludeFileHash {
			findings[i].FileHash = doc.Hash
		}
	}

	return itemReport{
		file: model.FileReport{
			FilePath:      displayPath,
			Status:        model.StatusScanned,
			FindingsCount: len(findings),
		},
		findings: findings,
	}
}

// splitInputs separates URL inputs from filesystem paths.
func splitInputs(inputs []string) (urls, paths []string) {
	for _, input := range inputs {
		if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
			urls = append(urls, input)
			continue
		}
		paths = append(paths, input)
	}
	return urls, paths
}

// snippet returns the matched text with surrounding context, clamped to
// the document bounds.
func snippet(text string, start, end, contextChars int) string {
	if contextChars < 0 {
		contextChars = 0
	}
	from := start - contextChars
	if from < 0 {
		from = 0
	}
	to := end + contextChars
	if to > len(text) {
		to = len(text)
	}
	if from > len(text) || start > end {
		return ""
	}
	return text[from:to]
}
