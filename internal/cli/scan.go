package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dpdp-tools/piiscan/internal/logging"
	"github.com/dpdp-tools/piiscan/internal/pipeline"
	"github.com/dpdp-tools/piiscan/internal/source"
)

var (
	scanPaths     []string
	urlListFile   string
	outputPath    string
	rulesEnv      string
	maskFilePaths bool
	maskMode      string
	noCache       bool
	noPretty      bool
	maxFileSizeMB int
	provider      string
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan files or URLs for personal data",
	Long: `Scan walks the given paths (directories, files, or http(s) URLs),
extracts text, runs PII detection, and writes a JSON findings report.

Rule files can tighten or relax detection per environment; select the
environment with --rules-env or the PIISCAN_RULES_ENV variable.

Example:
  piiscan scan --path ./exports --output pii_report.json
  piiscan scan --path data.csv --path https://example.com/page.html
  piiscan scan --path ./exports --rules-env production --mask-file-paths`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringArrayVar(&scanPaths, "path", nil, "path or URL to scan (repeatable)")
	scanCmd.Flags().StringVar(&urlListFile, "url-file", "", "file with URLs to scan, one per line")
	scanCmd.Flags().StringVarP(&outputPath, "output", "o", "", "report output path")
	scanCmd.Flags().StringVar(&rulesEnv, "rules-env", "", "rules environment (overrides config and PIISCAN_RULES_ENV)")
	scanCmd.Flags().BoolVar(&maskFilePaths, "mask-file-paths", false, "mask file paths in the report")
	scanCmd.Flags().StringVar(&maskMode, "mask-mode", "", "path mask mode (full, basename, relative, hash, redacted)")
	scanCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the findings cache")
	scanCmd.Flags().BoolVar(&noPretty, "compact", false, "write compact JSON")
	scanCmd.Flags().IntVar(&maxFileSizeMB, "max-file-size-mb", 0, "skip files larger than this (0 = config default)")
	scanCmd.Flags().StringVar(&provider, "provider", "", "detector provider (pattern, openai)")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Flag overrides, highest priority.
	if len(scanPaths) > 0 {
		cfg.Scan.InputPaths = scanPaths
	}
	if urlListFile != "" {
		urls, err := source.ReadURLList(urlListFile)
		if err != nil {
			return err
		}
		cfg.Scan.InputPaths = append(cfg.Scan.InputPaths, urls...)
	}
	if outputPath != "" {
		cfg.Output.Path = outputPath
	}
	if rulesEnv != "" {
		cfg.Rules.Environment = rulesEnv
	}
	if maskFilePaths {
		cfg.Output.MaskFilePaths = true
	}
	if maskMode != "" {
		cfg.Output.FilePathMaskMode = maskMode
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if noPretty {
		cfg.Output.Pretty = false
	}
	if maxFileSizeMB > 0 {
		cfg.Scan.MaxFileSizeMB = maxFileSizeMB
	}
	if provider != "" {
		cfg.Detector.Provider = provider
	}
	if cfg.Detector.Provider == "openai" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}

	log := logging.New(logLevel)
	defer func() { _ = log.Sync() }()

	scanner, err := pipeline.NewScanner(cfg, Version, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := scanner.Run(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	renderer := pipeline.NewRenderer(cfg.Output.Pretty)
	if err := renderer.WriteJSON(report, cfg.Output.Path); err != nil {
		return err
	}
	renderer.WriteSummary(os.Stdout, report)
	fmt.Printf("Report written: %s\n", cfg.Output.Path)

	return nil
}
