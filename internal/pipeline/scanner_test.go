package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dpdp-tools/piiscan/internal/logging"
	"github.com/dpdp-tools/piiscan/internal/model"
)

func testConfig(t *testing.T) *model.Config {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.Scan.InputPaths = nil
	cfg.Cache.Enabled = false
	cfg.Output.Path = filepath.Join(t.TempDir(), "report.json")
	return cfg
}

func newTestScanner(t *testing.T, cfg *model.Config) *Scanner {
	t.Helper()
	scanner, err := NewScanner(cfg, "test", logging.Nop())
	if err != nil {
		t.Fatalf("NewScanner failed: %v", err)
	}
	return scanner
}

func writeCorpusFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestNewScannerUnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Detector.Provider = "psychic"
	if _, err := NewScanner(cfg, "test", logging.Nop()); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestScanText(t *testing.T) {
	cfg := testConfig(t)
	scanner := newTestScanner(t, cfg)

	text := "reach priya@example.com or call 9876543210 today"
	findings, err := scanner.ScanText(context.Background(), "inline", text)
	if err != nil {
		t.Fatalf("ScanText failed: %v", err)
	}

	byEntity := make(map[string]model.Finding)
	for _, f := range findings {
		byEntity[f.EntityType] = f
	}

	email, ok := byEntity["EMAIL_ADDRESS"]
	if !ok {
		t.Fatalf("email not found: %+v", findings)
	}
	if email.Text != "priya@example.com" {
		t.Errorf("email text = %q", email.Text)
	}
	if email.Category != model.CategoryPersonal {
		t.Errorf("email category = %q", email.Category)
	}
	if !strings.Contains(email.Snippet, "priya@example.com") {
		t.Errorf("snippet missing match: %q", email.Snippet)
	}
	if email.FilePath != "" {
		t.Errorf("ScanText findings must stay text-relative, got FilePath %q", email.FilePath)
	}

	if _, ok := byEntity["PHONE_NUMBER"]; !ok {
		t.Errorf("phone not found: %+v", findings)
	}
}

func TestScanTextWhitespaceShortCircuit(t *testing.T) {
	scanner := newTestScanner(t, testConfig(t))

	findings, err := scanner.ScanText(context.Background(), "blank", "   \n\t  ")
	if err != nil {
		t.Fatalf("ScanText failed: %v", err)
	}
	if findings != nil {
		t.Errorf("whitespace-only text produced findings: %+v", findings)
	}
}

func TestScanTextSensitiveCategory(t *testing.T) {
	scanner := newTestScanner(t, testConfig(t))

	findings, err := scanner.ScanText(context.Background(), "inline", "aadhaar 2341 2341 2346 on file")
	if err != nil {
		t.Fatalf("ScanText failed: %v", err)
	}
	if len(findings) != 1 || findings[0].EntityType != "IN_AADHAAR" {
		t.Fatalf("findings = %+v", findings)
	}
	if findings[0].Category != model.CategorySensitivePersonal {
		t.Errorf("aadhaar category = %q", findings[0].Category)
	}
}

func TestRunMixedCorpus(t *testing.T) {
	corpus := t.TempDir()
	writeCorpusFile(t, filepath.Join(corpus, "a.txt"), "email priya@example.com here")
	writeCorpusFile(t, filepath.Join(corpus, "b.txt"), "phone 9876543210 listed")
	writeCorpusFile(t, filepath.Join(corpus, "empty.txt"), "")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.Scan.InputPaths = []string{corpus, server.URL + "/page"}

	report, err := newTestScanner(t, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// The failed URL counts as attempted, so it shows up in both
	// FilesScanned and FilesFailed.
	if report.Stats.FilesScanned != 3 {
		t.Errorf("FilesScanned = %d, want 3", report.Stats.FilesScanned)
	}
	if report.Stats.FilesSkipped != 1 {
		t.Errorf("FilesSkipped = %d, want 1", report.Stats.FilesSkipped)
	}
	if report.Stats.FilesFailed != 1 {
		t.Errorf("FilesFailed = %d, want 1", report.Stats.FilesFailed)
	}
	if report.Stats.TotalFindings != len(report.Findings) {
		t.Errorf("TotalFindings = %d, findings = %d", report.Stats.TotalFindings, len(report.Findings))
	}
	if report.Stats.ByEntityType["EMAIL_ADDRESS"] != 1 || report.Stats.ByEntityType["PHONE_NUMBER"] != 1 {
		t.Errorf("ByEntityType = %v", report.Stats.ByEntityType)
	}

	// Findings carry their file identity and arrive in path order.
	for _, finding := range report.Findings {
		if finding.FilePath == "" {
			t.Errorf("finding without file path: %+v", finding)
		}
		if finding.FileHash == "" {
			t.Errorf("finding without file hash: %+v", finding)
		}
	}
	for i := 1; i < len(report.Findings); i++ {
		if report.Findings[i-1].FilePath > report.Findings[i].FilePath {
			t.Errorf("findings not sorted by file path")
		}
	}

	if report.Scanner.Name != "piiscan" || report.Scanner.Version != "test" {
		t.Errorf("scanner identity = %+v", report.Scanner)
	}

	statuses := make(map[model.FileStatus]int)
	for _, file := range report.Files {
		statuses[file.Status]++
	}
	if statuses[model.StatusScanned] != 2 || statuses[model.StatusSkipped] != 1 || statuses[model.StatusFailed] != 1 {
		t.Errorf("file statuses = %v", statuses)
	}
}

func TestRunSkipsOversizeFile(t *testing.T) {
	corpus := t.TempDir()
	writeCorpusFile(t, filepath.Join(corpus, "big.txt"), strings.Repeat("a", 1_200_000))

	cfg := testConfig(t)
	cfg.Scan.InputPaths = []string{corpus}
	cfg.Scan.MaxFileSizeMB = 1

	report, err := newTestScanner(t, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Stats.FilesSkipped != 1 || report.Stats.FilesScanned != 0 {
		t.Errorf("stats = %+v", report.Stats)
	}
	if len(report.Files) != 1 || !strings.Contains(report.Files[0].Reason, "max file size") {
		t.Errorf("files = %+v", report.Files)
	}
}

func TestRunSkipsOwnReportFile(t *testing.T) {
	corpus := t.TempDir()
	output := filepath.Join(corpus, "report.json")
	writeCorpusFile(t, output, `{"findings": []}`)
	writeCorpusFile(t, filepath.Join(corpus, "a.txt"), "email priya@example.com")

	cfg := testConfig(t)
	cfg.Scan.InputPaths = []string{corpus}
	cfg.Output.Path = output

	report, err := newTestScanner(t, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var skipped *model.FileReport
	for i := range report.Files {
		if report.Files[i].Status == model.StatusSkipped {
			skipped = &report.Files[i]
		}
	}
	if skipped == nil || skipped.Reason != "report output file" {
		t.Errorf("report output file not skipped: %+v", report.Files)
	}
	if report.Stats.FilesScanned != 1 {
		t.Errorf("FilesScanned = %d, want 1", report.Stats.FilesScanned)
	}
}

func TestRunPersistsFindingsCache(t *testing.T) {
	corpus := t.TempDir()
	writeCorpusFile(t, filepath.Join(corpus, "a.txt"), "email priya@example.com")

	cacheDir := t.TempDir()
	cfg := testConfig(t)
	cfg.Scan.InputPaths = []string{corpus}
	cfg.Cache.Enabled = true
	cfg.Cache.Dir = cacheDir

	if _, err := newTestScanner(t, cfg).Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		t.Fatalf("read cache dir: %v", err)
	}
	if len(entries) == 0 {
		t.Errorf("no cache entries written")
	}

	// A second run over the unchanged corpus serves from cache and still
	// reports the finding with its file identity.
	report, err := newTestScanner(t, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if len(report.Findings) != 1 || report.Findings[0].FilePath == "" {
		t.Errorf("cached run findings = %+v", report.Findings)
	}
}

func TestRunRefreshesFindingsAfterRuleEdit(t *testing.T) {
	corpus := t.TempDir()
	writeCorpusFile(t, filepath.Join(corpus, "a.txt"), "email priya@example.com")

	ruleFile := filepath.Join(t.TempDir(), "base.json")
	writeCorpusFile(t, ruleFile, `{}`)

	cfg := testConfig(t)
	cfg.Scan.InputPaths = []string{corpus}
	cfg.Cache.Enabled = true
	cfg.Cache.Dir = t.TempDir()
	cfg.Rules.Enabled = true
	cfg.Rules.BaseRulesFile = ruleFile

	report, err := newTestScanner(t, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(report.Findings) != 1 {
		t.Fatalf("findings before rule edit = %+v", report.Findings)
	}

	// Tightening the policy in place must not serve findings cached
	// under the old policy, even though the loaded file list is the same.
	writeCorpusFile(t, ruleFile, `{"entities": {"EMAIL_ADDRESS": {"enabled": false}}}`)

	report, err = newTestScanner(t, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run after rule edit failed: %v", err)
	}
	if len(report.Findings) != 0 {
		t.Errorf("stale findings after disabling entity: %+v", report.Findings)
	}
}

func TestPolicyFingerprintCoversDetectorConfig(t *testing.T) {
	defaults := model.DefaultConfig()
	base := policyFingerprint("rules:off", defaults.Detector, defaults.Recognizers)

	tightened := defaults.Detector.Clone()
	tightened.ScoreThreshold = 0.9
	if policyFingerprint("rules:off", tightened, defaults.Recognizers) == base {
		t.Errorf("detector threshold change kept the fingerprint")
	}

	recognizers := defaults.Recognizers
	recognizers.AadhaarChecksumValidation = false
	if policyFingerprint("rules:off", defaults.Detector, recognizers) == base {
		t.Errorf("recognizer change kept the fingerprint")
	}
}

func TestRunCancelledContextKeepsPartialReport(t *testing.T) {
	corpus := t.TempDir()
	writeCorpusFile(t, filepath.Join(corpus, "a.txt"), "email priya@example.com")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testConfig(t)
	cfg.Scan.InputPaths = []string{corpus}

	report, err := newTestScanner(t, cfg).Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Stats.FilesScanned != 0 {
		t.Errorf("cancelled run scanned files: %+v", report.Stats)
	}
}

func TestSplitInputs(t *testing.T) {
	urls, paths := splitInputs([]string{
		"https://example.com/a",
		"./docs",
		"http://example.com/b",
		"/var/data",
	})
	if len(urls) != 2 || urls[0] != "https://example.com/a" || urls[1] != "http://example.com/b" {
		t.Errorf("urls = %v", urls)
	}
	if len(paths) != 2 || paths[0] != "./docs" || paths[1] != "/var/data" {
		t.Errorf("paths = %v", paths)
	}
}

func TestSnippet(t *testing.T) {
	text := "aaaa MATCH bbbb"

	tests := []struct {
		name    string
		start   int
		end     int
		context int
		want    string
	}{
		{"full context", 5, 10, 2, "a MATCH b"},
		{"clamped at start", 5, 10, 100, text},
		{"zero context", 5, 10, 0, "MATCH"},
		{"negative context", 5, 10, -4, "MATCH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := snippet(text, tt.start, tt.end, tt.context); got != tt.want {
				t.Errorf("snippet = %q, want %q", got, tt.want)
			}
		})
	}
}
