package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dpdp-tools/piiscan/internal/model"
)

// Version is the release identifier stamped into reports.
const Version = "1.2.0"

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "piiscan",
	Short: "piiscan - DPDP-oriented PII scanner for document corpora",
	Long: `piiscan walks a corpus of files (or URLs), extracts their text, and
detects personal data with an Indian DPDP-oriented entity set: Aadhaar,
PAN, IFSC, UPI handles, passports, bank accounts, phone numbers, emails,
credit cards, and more.

Findings are deduplicated, validated against layered rule files, and
classified as SENSITIVE_PERSONAL or PERSONAL in a stable JSON report.

piiscan flags where personal data lives; it does not decide whether that
data should exist.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("piiscan v" + Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.piiscan/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".piiscan"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match PIISCAN_*
	viper.SetEnvPrefix("PIISCAN")
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}

// loadConfig builds the effective configuration: defaults, then the
// config file, then PIISCAN_* environment variables. Flag overrides are
// applied by the command funcs afterwards.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Relative rule file paths resolve against the config file location.
	if used := viper.ConfigFileUsed(); used != "" {
		cfg.Rules.ConfigDir = filepath.Dir(used)
	}
	return cfg, nil
}
