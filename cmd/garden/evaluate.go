package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gardenops/cli/internal/governor"
)

var evaluateDomain string

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Run the governance cycle",
	Long: `Evaluate windowed regret statistics and apply any resulting transitions:
promotions on sustained accuracy, domain locks on regret breaches, and
global demotions on period-over-period regret increases.

With --domain only that domain is evaluated; otherwise every known domain
is evaluated, then the global scope. Re-running against an unchanged ledger
is a no-op.

Examples:
  garden evaluate
  garden evaluate --domain payments`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateDomain, "domain", "", "Evaluate a single domain")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	eng, _, err := newEngine()
	if err != nil {
		return err
	}

	var results []*governor.Result
	if evaluateDomain != "" {
		res, err := eng.EvaluateDomain(evaluateDomain)
		if err != nil {
			return err
		}
		results = append(results, res)
	} else {
		results, err = eng.EvaluateAll()
		if err != nil {
			return err
		}
	}

	if printResults(results) == 0 {
		fmt.Println("no transitions")
	}
	return nil
}

// printResults prints transitions and alerts, returning how many scopes
// changed. Notices only show under --verbose.
func printResults(results []*governor.Result) int {
	changed := 0
	for _, res := range results {
		for _, notice := range res.Notices {
			VerbosePrintf("%s\n", notice)
		}
		if res.Transition == nil {
			continue
		}
		changed++
		fmt.Printf("%s: %s (level %d -> %d)\n",
			res.Scope, res.Transition.Kind, res.Transition.LevelBefore, res.Transition.LevelAfter)
		if res.Alert != nil {
			fmt.Printf("  alert %s: %s\n", res.Alert.ID, res.Alert.RecommendedCommand)
		}
	}
	return changed
}
