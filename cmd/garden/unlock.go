package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	unlockDomain string
	unlockReason string
)

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Clear a domain lock",
	Long: `Explicitly clear a domain's lock. The level stays at 0; the domain
re-enters evaluation on the next cycle and must earn promotions back.

Examples:
  garden unlock --domain payments --reason "incident resolved"`,
	RunE: runUnlock,
}

func init() {
	unlockCmd.Flags().StringVar(&unlockDomain, "domain", "", "Domain to unlock (required)")
	unlockCmd.Flags().StringVar(&unlockReason, "reason", "operator-requested unlock", "Reason recorded in the audit trail")
	_ = unlockCmd.MarkFlagRequired("domain") //nolint:errcheck
	rootCmd.AddCommand(unlockCmd)
}

func runUnlock(cmd *cobra.Command, args []string) error {
	eng, _, err := newEngine()
	if err != nil {
		return err
	}

	res, err := eng.UnlockDomain(unlockDomain, invocation(cmd), unlockReason)
	if err != nil {
		return err
	}
	fmt.Print(res.Audit.Transcript())
	return nil
}
