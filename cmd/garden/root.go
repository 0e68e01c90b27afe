package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gardenops/cli/internal/alerts"
	"github.com/gardenops/cli/internal/audit"
	"github.com/gardenops/cli/internal/config"
	"github.com/gardenops/cli/internal/governor"
	"github.com/gardenops/cli/internal/ledger"
	"github.com/gardenops/cli/internal/statestore"
)

var (
	// Global flags
	verbose bool
	output  string
	baseDir string
	cfgFile string
)

// Exit codes. Scripts branch on these; keep them stable.
const (
	exitGeneric        = 1
	exitLockContention = 2
	exitCorruption     = 3
	exitUnknownDomain  = 4
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "garden",
	Short: "Autonomy governance for graded agent decisions",
	Long: `garden governs how much autonomy automated decision-making earns.

Decisions are graded after the fact (correct or regret) and appended to
per-domain ledgers. Evaluation turns windowed regret statistics into level
promotions, demotions, and domain locks, with a full audit trail.

Core Commands:
  record       Append a graded decision outcome
  evaluate     Run the governance cycle
  autonomy     Inspect or demote the autonomy level
  demote       Force a domain demotion or lock
  unlock       Clear a domain lock
  alerts       List emitted breach alerts

Safety beats capability: a demotion or lock always wins over a promotion
in the same cycle, and locked domains stay pinned until explicitly unlocked.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		syncConfigFlagToEnv()
	},
}

// Execute runs the root command and maps well-known failures to their exit
// codes.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, statestore.ErrLockContention):
		return exitLockContention
	case errors.Is(err, ledger.ErrCorrupt),
		errors.Is(err, statestore.ErrCorrupt),
		errors.Is(err, alerts.ErrCorrupt),
		errors.Is(err, audit.ErrCorrupt):
		return exitCorruption
	case errors.Is(err, governor.ErrUnknownDomain),
		errors.Is(err, ledger.ErrInvalidDomainName):
		return exitUnknownDomain
	}
	return exitGeneric
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVar(&baseDir, "base-dir", "", "Governance data directory (default: .agents/garden)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ~/.gardenops/config.yaml)")
}

func syncConfigFlagToEnv() {
	path := strings.TrimSpace(cfgFile)
	if path == "" {
		return
	}
	_ = os.Setenv("GARDEN_CONFIG", path) //nolint:errcheck
}

// loadConfig resolves configuration with the global flags layered on top.
func loadConfig() (*config.Config, error) {
	return config.Load(&config.Config{
		Output:  output,
		BaseDir: baseDir,
		Verbose: verbose,
	})
}

// newEngine builds the governance engine from resolved configuration.
func newEngine() (*governor.Engine, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	eng, err := governor.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return eng, cfg, nil
}

// VerbosePrintf prints only when verbose mode is enabled.
func VerbosePrintf(format string, args ...interface{}) {
	if verbose {
		fmt.Printf(format, args...)
	}
}

// invocation reconstructs the command line for audit attribution.
func invocation(cmd *cobra.Command) string {
	parts := []string{cmd.CommandPath()}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if f.Value.Type() == "bool" {
			parts = append(parts, "--"+f.Name)
			return
		}
		parts = append(parts, "--"+f.Name, f.Value.String())
	})
	return strings.Join(parts, " ")
}
