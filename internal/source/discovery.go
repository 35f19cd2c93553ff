package source

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dpdp-tools/piiscan/internal/model"
)

// Entry is a discovered candidate file.
type Entry struct {
	Path string
	Size int64
}

// Discover walks the configured input paths and returns candidate files
// in deterministic path order. Explicitly named files always qualify;
// files found by walking a directory must pass the extension, directory,
// and glob filters.
func Discover(cfg model.ScanConfig) ([]Entry, error) {
	extensions := make(map[string]bool, len(cfg.IncludeExtensions))
	for _, ext := range cfg.IncludeExtensions {
		extensions[strings.ToLower(ext)] = true
	}
	excludeDirs := make(map[string]bool, len(cfg.ExcludeDirs))
	for _, dir := range cfg.ExcludeDirs {
		excludeDirs[dir] = true
	}

	seen := make(map[string]bool)
	var entries []Entry
	add := func(path string, size int64) {
		if seen[path] {
			return
		}
		seen[path] = true
		entries = append(entries, Entry{Path: path, Size: size})
	}

	for _, input := range cfg.InputPaths {
		info, err := os.Stat(input)
		if err != nil {
			return nil, fmt.Errorf("stat input path: %w", err)
		}

		if !info.IsDir() {
			add(filepath.Clean(input), info.Size())
			continue
		}

		err = filepath.WalkDir(input, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if path != input && excludeDirs[d.Name()] {
					return filepath.SkipDir
				}
				if path != input && !cfg.Recursive {
					return filepath.SkipDir
				}
				return nil
			}
			if !qualifies(path, extensions, cfg.ExcludeFileGlobs) {
				return nil
			}
			fileInfo, err := d.Info()
			if err != nil {
				return err
			}
			add(path, fileInfo.Size())
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", input, err)
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func qualifies(path string, extensions map[string]bool, excludeGlobs []string) bool {
	if len(extensions) > 0 && !extensions[strings.ToLower(filepath.Ext(path))] {
		return false
	}
	base := filepath.Base(path)
	for _, glob := range excludeGlobs {
		if matched, err := filepath.Match(glob, base); err == nil && matched {
			return false
		}
	}
	return true
}
