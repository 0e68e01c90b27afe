package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gardenops/cli/internal/governor"
	"github.com/gardenops/cli/internal/ledger"
)

var (
	recordDomain     string
	recordOutcome    string
	recordNoEvaluate bool
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Append a graded decision outcome",
	Long: `Append one graded decision to a domain's ledger, stamped with the
domain's current autonomy level, then run the governance cycle for that
domain and the global scope. Ledgers are append-only; grading a decision
never rewrites history.

Examples:
  garden record --domain payments --outcome correct
  garden record --domain payments --outcome regret --no-evaluate`,
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().StringVar(&recordDomain, "domain", "", "Domain the decision belongs to (required)")
	recordCmd.Flags().StringVar(&recordOutcome, "outcome", "", "Graded outcome: correct or regret (required)")
	recordCmd.Flags().BoolVar(&recordNoEvaluate, "no-evaluate", false, "Append only; skip the evaluation cycle")
	_ = recordCmd.MarkFlagRequired("domain")  //nolint:errcheck
	_ = recordCmd.MarkFlagRequired("outcome") //nolint:errcheck
	rootCmd.AddCommand(recordCmd)
}

func runRecord(cmd *cobra.Command, args []string) error {
	outcome, err := ledger.ParseOutcome(recordOutcome)
	if err != nil {
		return err
	}

	eng, _, err := newEngine()
	if err != nil {
		return err
	}

	rec, err := eng.RecordDecision(recordDomain, outcome)
	if err != nil {
		return err
	}
	fmt.Printf("%s  %s  level %d  %s\n", rec.Domain, rec.Outcome, rec.LevelAtTime, rec.Timestamp.Format(time.RFC3339))

	if recordNoEvaluate {
		return nil
	}

	domainRes, err := eng.EvaluateDomain(recordDomain)
	if err != nil {
		return err
	}
	globalRes, err := eng.EvaluateGlobal()
	if err != nil {
		return err
	}
	printResults([]*governor.Result{domainRes, globalRes})
	return nil
}
