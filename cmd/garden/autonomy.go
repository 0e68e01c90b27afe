package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gardenops/cli/internal/governor"
)

var autonomyCmd = &cobra.Command{
	Use:   "autonomy",
	Short: "Inspect or demote the autonomy level",
}

var statusJSON bool

var autonomyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show autonomy levels and windowed regret",
	Long: `Display the global autonomy level and every domain's level, lock state,
and trailing-window regret statistics.

Status is a pure read: it takes no locks and never blocks a running
evaluation.

Examples:
  garden autonomy status
  garden autonomy status --json`,
	RunE: runAutonomyStatus,
}

var autonomyDemoteReason string

var autonomyDemoteCmd = &cobra.Command{
	Use:   "demote",
	Short: "Force a one-level global demotion",
	Long: `Lower the global autonomy level by one, recording the operator-forced
transition in the audit trail. The level never drops below zero.

Examples:
  garden autonomy demote
  garden autonomy demote --reason "post-incident review"`,
	RunE: runAutonomyDemote,
}

func init() {
	autonomyStatusCmd.Flags().BoolVar(&statusJSON, "json", false, "Emit status as JSON")
	autonomyDemoteCmd.Flags().StringVar(&autonomyDemoteReason, "reason", "operator-requested demotion", "Reason recorded in the audit trail")
	autonomyCmd.AddCommand(autonomyStatusCmd)
	autonomyCmd.AddCommand(autonomyDemoteCmd)
	rootCmd.AddCommand(autonomyCmd)
}

type scopeStatusOutput struct {
	Scope            string  `json:"scope"`
	Level            int     `json:"level"`
	MaxLevel         int     `json:"max_level"`
	Locked           bool    `json:"locked,omitempty"`
	LockReason       string  `json:"lock_reason,omitempty"`
	RegretRate       float64 `json:"regret_rate"`
	Accuracy         float64 `json:"accuracy"`
	SampleSize       int     `json:"sample_size"`
	InsufficientData bool    `json:"insufficient_data,omitempty"`
	LastTransitionAt string  `json:"last_transition_at,omitempty"`
}

type statusOutput struct {
	BaseDir string              `json:"base_dir"`
	Global  scopeStatusOutput   `json:"global"`
	Domains []scopeStatusOutput `json:"domains,omitempty"`
}

func runAutonomyStatus(cmd *cobra.Command, args []string) error {
	eng, cfg, err := newEngine()
	if err != nil {
		return err
	}

	status, err := eng.Status()
	if err != nil {
		return err
	}

	out := statusOutput{
		BaseDir: cfg.BaseDir,
		Global:  scopeOutput(status.Global, cfg.Autonomy.MaxLevel),
	}
	for _, d := range status.Domains {
		out.Domains = append(out.Domains, scopeOutput(d, cfg.Autonomy.MaxLevel))
	}

	if statusJSON || cfg.Output == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	printScopeLine("global", out.Global)
	for _, d := range out.Domains {
		printScopeLine(d.Scope, d)
	}
	return nil
}

func scopeOutput(s governor.ScopeStatus, maxLevel int) scopeStatusOutput {
	out := scopeStatusOutput{
		Scope:            s.Scope.String(),
		Level:            s.State.CurrentLevel,
		MaxLevel:         maxLevel,
		Locked:           s.State.Locked,
		LockReason:       s.State.LockReason,
		RegretRate:       s.Metrics.RegretRate,
		Accuracy:         s.Metrics.Accuracy,
		SampleSize:       s.Metrics.SampleSize,
		InsufficientData: s.Metrics.Insufficient,
	}
	if !s.State.LastTransitionAt.IsZero() {
		out.LastTransitionAt = s.State.LastTransitionAt.UTC().Format(time.RFC3339)
	}
	return out
}

func printScopeLine(name string, s scopeStatusOutput) {
	fmt.Printf("%-20s level %d/%d", name, s.Level, s.MaxLevel)
	if s.Locked {
		fmt.Printf("  LOCKED (%s)", s.LockReason)
	} else if s.InsufficientData {
		fmt.Printf("  insufficient data (%d samples)", s.SampleSize)
	} else {
		fmt.Printf("  regret %.1f%% over %d decisions", s.RegretRate*100, s.SampleSize)
	}
	fmt.Println()
}

func runAutonomyDemote(cmd *cobra.Command, args []string) error {
	eng, _, err := newEngine()
	if err != nil {
		return err
	}

	res, err := eng.DemoteGlobal(invocation(cmd), autonomyDemoteReason)
	if err != nil {
		return err
	}
	fmt.Print(res.Audit.Transcript())
	return nil
}
