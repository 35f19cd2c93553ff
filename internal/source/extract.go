package source

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/dpdp-tools/piiscan/internal/model"
)

// binarySniffBytes bounds how much of a file the binary check inspects.
const binarySniffBytes = 8192

// plainTextExtensions are read verbatim. HTML goes through the HTML
// extractor; anything else yields empty text and the pipeline records the
// file as skipped.
var plainTextExtensions = map[string]bool{
	".txt": true, ".csv": true, ".json": true, ".log": true,
	".md": true, ".xml": true, ".yaml": true, ".yml": true,
}

// ExtractFile reads a file and returns it as a scan document. HTML files
// are reduced to their visible text. Unknown and binary content yields an
// empty document unless the scan config opts into reading it as text.
func ExtractFile(path string, cfg model.ScanConfig) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read file: %w", err)
	}

	doc := Document{
		Path:      path,
		Hash:      ContentHash(raw),
		SizeBytes: int64(len(raw)),
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".html" || ext == ".htm":
		text, err := HTMLToText(raw)
		if err != nil {
			return Document{}, fmt.Errorf("extract html: %w", err)
		}
		doc.Text = text
	case plainTextExtensions[ext]:
		doc.Text = string(raw)
	default:
		if cfg.ReadBinaryAsText && !looksBinary(raw) {
			doc.Text = string(raw)
		}
	}
	return doc, nil
}

// HTMLToText parses HTML and returns the visible text with elements
// separated by newlines. Script and style bodies are dropped.
func HTMLToText(raw []byte) (string, error) {
	root, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode {
			switch node.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if node.Type == html.TextNode {
			if text := strings.TrimSpace(node.Data); text != "" {
				builder.WriteString(text)
				builder.WriteString("\n")
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return strings.TrimRight(builder.String(), "\n"), nil
}

// looksBinary reports whether content resembles binary data, checking
// for a NUL byte in the sniff window.
func looksBinary(raw []byte) bool {
	window := raw
	if len(window) > binarySniffBytes {
		window = window[:binarySniffBytes]
	}
	return bytes.IndexByte(window, 0) >= 0
}
