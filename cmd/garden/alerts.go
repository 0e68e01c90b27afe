package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var alertsJSON bool

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List emitted breach alerts",
	Long: `List every breach alert in emission order. Alerts are immutable; acting
on one never clears it from the log.

Examples:
  garden alerts
  garden alerts --json`,
	RunE: runAlerts,
}

func init() {
	alertsCmd.Flags().BoolVar(&alertsJSON, "json", false, "Emit alerts as JSON")
	rootCmd.AddCommand(alertsCmd)
}

func runAlerts(cmd *cobra.Command, args []string) error {
	eng, cfg, err := newEngine()
	if err != nil {
		return err
	}

	entries, err := eng.Alerts().List()
	if err != nil {
		return err
	}

	if alertsJSON || cfg.Output == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("no alerts")
		return nil
	}
	for _, e := range entries {
		scope := e.Scope
		if e.Domain != "" {
			scope = e.Domain
		}
		fmt.Printf("%s  %-20s %s (observed %.2f, threshold %.2f)\n",
			e.CreatedAt.Format(time.RFC3339), scope, e.MetricBreach.Kind,
			e.MetricBreach.Observed, e.MetricBreach.Threshold)
		fmt.Printf("  run: %s\n", e.RecommendedCommand)
	}
	return nil
}
