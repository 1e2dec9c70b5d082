package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"custodia-hq/amber/pkg/audit"
	"custodia-hq/amber/pkg/cli"
	"custodia-hq/amber/pkg/config"
)

var verifyFlags struct {
	category string
	output   string
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify audit chain integrity",
	Long: `Verify the integrity of the tamper-evident audit chains.

Every entry's hash is recomputed from its content and checked against the
link stored by the following entry. Tampering does not abort verification;
findings are collected into a report per category. The command exits
non-zero when any chain fails verification.

Examples:
  # Verify all configured categories
  amber verify

  # Verify a single category
  amber verify --category retention

  # Machine-readable report
  amber verify --output json`,
	RunE: verifyChains,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&verifyFlags.category, "category", "", "verify a single category (default: all configured)")
	verifyCmd.Flags().StringVarP(&verifyFlags.output, "output", "o", "text", "output format: text, json")
}

func verifyChains(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	chain, err := openChain(cfg)
	if err != nil {
		return cli.NewCommandError("verify", err)
	}

	categories := cfg.Audit.Categories
	if verifyFlags.category != "" {
		categories = []string{verifyFlags.category}
	}

	reports := make([]*audit.Report, 0, len(categories))
	tampered := false
	for _, category := range categories {
		report, err := chain.Verify(category)
		if err != nil {
			return cli.NewCommandError("verify", err)
		}
		if !report.Valid {
			tampered = true
		}
		reports = append(reports, report)
	}

	if cli.OutputFormat(verifyFlags.output) == cli.FormatJSON {
		formatter := cli.NewFormatter(cli.FormatJSON)
		if err := formatter.FormatTo(os.Stdout, reports); err != nil {
			return cli.NewCommandError("verify", err)
		}
	} else {
		for _, report := range reports {
			printChainReport(report)
		}
	}

	if tampered {
		return fmt.Errorf("audit chain verification failed")
	}
	return nil
}

func printChainReport(report *audit.Report) {
	if report.Valid {
		fmt.Printf("✓ %s: %d entries, all valid\n", report.Category, report.TotalEntries)
		return
	}

	fmt.Printf("✗ %s: %d of %d entries invalid (integrity %.2f)\n",
		report.Category, report.InvalidEntries, report.TotalEntries, report.IntegrityScore)
	for _, finding := range report.Errors {
		fmt.Printf("    entry %d: %s\n", finding.Index, finding.Reason)
	}
}
