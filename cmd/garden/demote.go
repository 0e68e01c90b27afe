package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	demoteDomain string
	demoteReason string
	demoteLock   bool
)

var demoteCmd = &cobra.Command{
	Use:   "demote",
	Short: "Force a domain demotion or lock",
	Long: `Lower a domain's autonomy level by one, or with --lock pin the domain to
level 0 until an explicit unlock. Either way the transition is recorded in
the audit trail.

Examples:
  garden demote --domain payments
  garden demote --domain payments --lock --reason "bad rollout"`,
	RunE: runDemote,
}

func init() {
	demoteCmd.Flags().StringVar(&demoteDomain, "domain", "", "Domain to demote (required)")
	demoteCmd.Flags().StringVar(&demoteReason, "reason", "operator-requested demotion", "Reason recorded in the audit trail")
	demoteCmd.Flags().BoolVar(&demoteLock, "lock", false, "Pin the domain to level 0 until explicitly unlocked")
	_ = demoteCmd.MarkFlagRequired("domain") //nolint:errcheck
	rootCmd.AddCommand(demoteCmd)
}

func runDemote(cmd *cobra.Command, args []string) error {
	eng, _, err := newEngine()
	if err != nil {
		return err
	}

	res, err := eng.DemoteDomain(demoteDomain, invocation(cmd), demoteReason, demoteLock)
	if err != nil {
		return err
	}
	for _, notice := range res.Notices {
		fmt.Println(notice)
	}
	if res.Audit != nil {
		fmt.Print(res.Audit.Transcript())
	}
	return nil
}
