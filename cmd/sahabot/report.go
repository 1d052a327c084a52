package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ergcontrols/sahabot/internal/adapter"
	"github.com/ergcontrols/sahabot/internal/quality"
	"github.com/ergcontrols/sahabot/internal/reports"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Run workbook reports from the command line",
	Long:  `Renders the scheduled reports against the local workbook without posting them anywhere.`,
}

var reportWeeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Render the weekly data-quality report",
	RunE: func(cmd *cobra.Command, args []string) error {
		reporter, err := localReporter()
		if err != nil {
			return err
		}
		text, err := reporter.Weekly(cmd.Context(), time.Now())
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	},
}

var reportAgingCmd = &cobra.Command{
	Use:   "aging",
	Short: "Render the open-ticket aging alert",
	RunE: func(cmd *cobra.Command, args []string) error {
		reporter, err := localReporter()
		if err != nil {
			return err
		}
		text, err := reporter.Aging(cmd.Context(), time.Now())
		if err != nil {
			return err
		}
		if text == "" {
			fmt.Println("No aging tickets.")
			return nil
		}
		fmt.Println(text)
		return nil
	},
}

var reportScanCmd = &cobra.Command{
	Use:   "scan [site-id]",
	Short: "List data-quality issues, optionally for one site",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}
		wb, err := openWorkbook(cfg)
		if err != nil {
			return err
		}

		siteID := ""
		if len(args) > 0 {
			siteID = args[0]
		}

		scanner := quality.NewScanner(wb, quality.Options{})
		rep, err := scanner.Scan(cmd.Context(), siteID, time.Now())
		if err != nil {
			return err
		}

		issues := append(append([]quality.Issue(nil), rep.Missing...), rep.Stale...)
		if len(issues) == 0 {
			fmt.Println("No issues found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "SITE\tTAB\tSEVERITY\tDETAIL")
		for _, issue := range issues {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", issue.SiteID, issue.Tab, issue.Severity, issue.Detail)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Printf("\nTotal: %d issue(s), completeness %%%d\n", len(issues), rep.Completeness())
		return nil
	},
}

func localReporter() (*reports.Reporter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	wb, err := openWorkbook(cfg)
	if err != nil {
		return nil, err
	}
	return reports.New(quality.NewScanner(wb, quality.Options{}), adapter.NewNullAdapter(), ""), nil
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportWeeklyCmd, reportAgingCmd, reportScanCmd)
}
