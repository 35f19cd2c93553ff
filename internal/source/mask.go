package source

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/dpdp-tools/piiscan/internal/model"
)

// Path mask modes. Reports can carry the full path, just the file name,
// a path relative to a base directory, a salted hash, or a fixed token.
const (
	MaskModeFull     = "full"
	MaskModeBasename = "basename"
	MaskModeRelative = "relative"
	MaskModeHash     = "hash"
	MaskModeRedacted = "redacted"
)

const redactedPathToken = "[REDACTED_PATH]"

// PathMasker rewrites document paths for report output.
type PathMasker struct {
	enabled  bool
	mode     string
	baseDirs []string
	salt     string
}

// NewPathMasker creates a masker from the output and scan configuration.
// Relative masking anchors on the configured base dir when set, otherwise
// on the scan input paths.
func NewPathMasker(out model.OutputConfig, scan model.ScanConfig) *PathMasker {
	mode := strings.ToLower(strings.TrimSpace(out.FilePathMaskMode))
	if mode == "" {
		mode = MaskModeFull
	}

	var baseDirs []string
	if custom := strings.TrimSpace(out.FilePathBaseDir); custom != "" {
		if abs, err := filepath.Abs(custom); err == nil {
			baseDirs = append(baseDirs, abs)
		}
	} else {
		for _, input := range scan.InputPaths {
			info, err := os.Stat(input)
			if err != nil {
				continue
			}
			dir := input
			if !info.IsDir() {
				dir = filepath.Dir(input)
			}
			if abs, err := filepath.Abs(dir); err == nil {
				baseDirs = append(baseDirs, abs)
			}
		}
	}

	return &PathMasker{
		enabled:  out.MaskFilePaths,
		mode:     mode,
		baseDirs: baseDirs,
		salt:     out.FilePathHashSalt,
	}
}

// Mask returns the report representation of path.
func (m *PathMasker) Mask(path string) string {
	if !m.enabled || m.mode == MaskModeFull {
		return path
	}

	switch m.mode {
	case MaskModeBasename:
		return filepath.Base(path)
	case MaskModeRelative:
		return m.asRelative(path)
	case MaskModeHash:
		return m.asHash(path)
	case MaskModeRedacted:
		return redactedPathToken
	default:
		return path
	}
}

func (m *PathMasker) asRelative(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Base(path)
	}
	for _, baseDir := range m.baseDirs {
		rel, err := filepath.Rel(baseDir, abs)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		return rel
	}
	return filepath.Base(path)
}

func (m *PathMasker) asHash(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	digest := sha256.Sum256([]byte(m.salt + "|" + abs))
	return "file_" + hex.EncodeToString(digest[:])[:24] + filepath.Ext(path)
}
