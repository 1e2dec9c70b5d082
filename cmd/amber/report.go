package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"custodia-hq/amber/pkg/cli"
	"custodia-hq/amber/pkg/config"
	"custodia-hq/amber/pkg/retention/service"
)

var reportFlags struct {
	tenant string
	output string
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Produce a tenant compliance report",
	Long: `Produce a compliance snapshot for one tenant.

The report lists the tenant's retention policies with their execution
statistics, archive counts by status, stored archive totals, and the
audit chain heads at generation time.

Examples:
  # Text report
  amber report --tenant acme

  # Machine-readable report
  amber report --tenant acme --output json`,
	RunE: reportTenant,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVarP(&reportFlags.tenant, "tenant", "t", "", "tenant to report on (required)")
	reportCmd.Flags().StringVarP(&reportFlags.output, "output", "o", "text", "output format: text, json")
	_ = reportCmd.MarkFlagRequired("tenant")
}

func reportTenant(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	a, err := buildApp(cfg)
	if err != nil {
		return cli.NewCommandError("report", err)
	}
	defer a.Close()

	report, err := a.svc.TenantReport(context.Background(), reportFlags.tenant)
	if err != nil {
		return cli.NewCommandError("report", err)
	}

	if cli.OutputFormat(reportFlags.output) == cli.FormatJSON {
		formatter := cli.NewFormatter(cli.FormatJSON)
		if err := formatter.FormatTo(os.Stdout, report); err != nil {
			return cli.NewCommandError("report", err)
		}
		return nil
	}

	printTenantReport(report)
	return nil
}

func printTenantReport(report *service.TenantReport) {
	fmt.Printf("Tenant: %s\n", report.TenantID)
	fmt.Printf("Generated: %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Println()

	fmt.Printf("Policies: %d\n", len(report.Policies))
	for _, p := range report.Policies {
		fmt.Printf("  %s  %s/%s  keep %s  status %s  (runs: %d ok, %d failed)\n",
			p.ID, p.TenantID, p.DataType, p.RetentionPeriod.String(), p.Status,
			p.Statistics.SuccessCount, p.Statistics.FailureCount)
	}
	fmt.Println()

	fmt.Println("Archives by status:")
	for status, count := range report.ArchivesByStatus {
		fmt.Printf("  %-10s %d\n", status, count)
	}
	fmt.Println()

	totals := report.StoredArchives
	fmt.Printf("Stored archives: %d holding %d records (%d bytes original, %d stored)\n",
		totals.Count, totals.Records, totals.OriginalBytes, totals.CompressedBytes)
	fmt.Println()

	fmt.Println("Audit chain heads:")
	for category, state := range report.ChainHeads {
		fmt.Printf("  %-10s %d entries, last update %s\n",
			category, state.TotalEntries, state.LastUpdate.Format("2006-01-02 15:04:05 MST"))
	}
}
