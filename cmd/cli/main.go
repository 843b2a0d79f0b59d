package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/chainbooks/chainbooks/internal/adapter/feed"
	"github.com/chainbooks/chainbooks/internal/adapter/http/dto"
	"github.com/chainbooks/chainbooks/internal/adapter/oracle"
	postgresRepo "github.com/chainbooks/chainbooks/internal/adapter/repository/postgres"
	"github.com/chainbooks/chainbooks/internal/domain"
	"github.com/chainbooks/chainbooks/internal/usecase"
)

var (
	baseURL string
	timeout time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chainbooks-cli",
		Short: "ChainBooks CLI tool",
		Long:  `A command line interface for running wallet accounting reports against the ChainBooks API or locally.`,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the ChainBooks API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Request timeout")

	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(taxCmd())
	rootCmd.AddCommand(consistencyCmd())
	rootCmd.AddCommand(checkpointCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Accounting report operations",
	}

	var (
		wallet    string
		method    string
		frequency string
		resume    bool
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a report through the API",
		Run: func(cmd *cobra.Command, args []string) {
			runReport(wallet, method, frequency, resume)
		},
	}
	runCmd.Flags().StringVar(&wallet, "wallet", "", "Wallet address (required)")
	runCmd.Flags().StringVar(&method, "method", "", "Cost basis method: fifo or lifo")
	runCmd.Flags().StringVar(&frequency, "frequency", "", "Reporting frequency: monthly, quarterly or yearly")
	runCmd.Flags().BoolVar(&resume, "resume", false, "Resume from the last checkpoint")
	runCmd.MarkFlagRequired("wallet")

	var (
		feedPath  string
		oracleURL string
	)

	localCmd := &cobra.Command{
		Use:   "local",
		Short: "Run a report locally from a feed file, without the API or a database",
		Run: func(cmd *cobra.Command, args []string) {
			runLocalReport(wallet, feedPath, oracleURL, method, frequency)
		},
	}
	localCmd.Flags().StringVar(&wallet, "wallet", "", "Wallet address (required)")
	localCmd.Flags().StringVar(&feedPath, "feed", "feed.json", "Path to the activity feed file")
	localCmd.Flags().StringVar(&oracleURL, "oracle-url", "http://localhost:9090", "Price oracle base URL")
	localCmd.Flags().StringVar(&method, "method", "fifo", "Cost basis method: fifo or lifo")
	localCmd.Flags().StringVar(&frequency, "frequency", "monthly", "Reporting frequency: monthly, quarterly or yearly")
	localCmd.MarkFlagRequired("wallet")

	cmd.AddCommand(runCmd)
	cmd.AddCommand(localCmd)

	return cmd
}

func taxCmd() *cobra.Command {
	var (
		wallet    string
		feedPath  string
		oracleURL string
		method    string
		year      int
	)

	cmd := &cobra.Command{
		Use:   "tax",
		Short: "Print Form-8949-style tax rows for a wallet",
		Run: func(cmd *cobra.Command, args []string) {
			runTaxReport(wallet, feedPath, oracleURL, method, year)
		},
	}
	cmd.Flags().StringVar(&wallet, "wallet", "", "Wallet address (required)")
	cmd.Flags().StringVar(&feedPath, "feed", "feed.json", "Path to the activity feed file")
	cmd.Flags().StringVar(&oracleURL, "oracle-url", "http://localhost:9090", "Price oracle base URL")
	cmd.Flags().StringVar(&method, "method", "fifo", "Cost basis method: fifo or lifo")
	cmd.Flags().IntVar(&year, "year", 0, "Restrict rows to disposals in this calendar year")
	cmd.MarkFlagRequired("wallet")

	return cmd
}

func consistencyCmd() *cobra.Command {
	var wallet string

	cmd := &cobra.Command{
		Use:   "consistency",
		Short: "Run a report through the API and verify its ledger invariants",
		Run: func(cmd *cobra.Command, args []string) {
			checkConsistency(wallet)
		},
	}
	cmd.Flags().StringVar(&wallet, "wallet", "", "Wallet address (required)")
	cmd.MarkFlagRequired("wallet")

	return cmd
}

func checkConsistency(wallet string) {
	body, _ := json.Marshal(map[string]any{"wallet": wallet})

	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(baseURL+"/api/v1/reports", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Printf("Error making request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Consistency check FAILED (Status: %d)\nResponse: %s\n", resp.StatusCode, string(respBody))
		os.Exit(1)
	}

	var report dto.ReportResponse
	if err := json.Unmarshal(respBody, &report); err != nil {
		fmt.Printf("Failed to parse response: %v\n", err)
		os.Exit(1)
	}

	violations := checkLedgerInvariants(report.Ledger)
	if len(violations) > 0 {
		fmt.Printf("Consistency check FAILED\n")
		for _, v := range violations {
			fmt.Printf("  %s\n", v)
		}
		os.Exit(1)
	}

	fmt.Printf("Consistency check PASSED\n")
	fmt.Printf("Accounts: %d\n", len(report.Ledger))
}

// checkLedgerInvariants verifies the exported ledger: every event's
// debits equal its credits, and each account's running balances and
// closing balance agree with its entries.
func checkLedgerInvariants(ledger []domain.LedgerAccountExport) []string {
	var violations []string

	byEvent := make(map[string]decimal.Decimal)
	for _, acc := range ledger {
		running := decimal.Zero

		for _, e := range acc.Entries {
			byEvent[e.Entry.EventID] = byEvent[e.Entry.EventID].Add(e.Entry.Signed())

			running = running.Add(e.Entry.BalanceDelta())
			if !running.Equal(e.RunningBalance) {
				violations = append(violations, fmt.Sprintf(
					"account %s entry %s: running balance %s, recomputed %s",
					acc.Account, e.Entry.ID, e.RunningBalance, running))
			}
		}

		if !running.Equal(acc.Closing) {
			violations = append(violations, fmt.Sprintf(
				"account %s: closing balance %s, recomputed %s",
				acc.Account, acc.Closing, running))
		}
	}

	events := make([]string, 0, len(byEvent))
	for id := range byEvent {
		events = append(events, id)
	}
	sort.Strings(events)

	for _, id := range events {
		if !byEvent[id].IsZero() {
			violations = append(violations, fmt.Sprintf(
				"event %s: debits minus credits = %s, want 0", id, byEvent[id]))
		}
	}

	return violations
}

func checkpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Checkpoint operations",
	}

	showCmd := &cobra.Command{
		Use:   "show <wallet>",
		Short: "Show a wallet's checkpoint",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			showCheckpoint(args[0])
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear <wallet>",
		Short: "Delete a wallet's checkpoint, forcing a full replay on the next run",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			clearCheckpoint(args[0])
		},
	}

	cmd.AddCommand(showCmd)
	cmd.AddCommand(clearCmd)

	return cmd
}

func runReport(wallet, method, frequency string, resume bool) {
	body, _ := json.Marshal(map[string]any{
		"wallet":    wallet,
		"method":    method,
		"frequency": frequency,
		"resume":    resume,
	})

	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(baseURL+"/api/v1/reports", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Printf("Error making request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Report run FAILED (Status: %d)\nResponse: %s\n", resp.StatusCode, string(respBody))
		os.Exit(1)
	}

	var result map[string]any
	if err := json.Unmarshal(respBody, &result); err != nil {
		fmt.Printf("Failed to parse response: %v\n", err)
		os.Exit(1)
	}

	printJSON(result)
}

func runLocalReport(wallet, feedPath, oracleURL, method, frequency string) {
	parsedMethod, err := domain.ParseMethod(method)
	if err != nil {
		fmt.Printf("Invalid method: %v\n", err)
		os.Exit(1)
	}

	parsedFreq, err := domain.ParseFrequency(frequency)
	if err != nil {
		fmt.Printf("Invalid frequency: %v\n", err)
		os.Exit(1)
	}

	report, err := runLocalPipeline(wallet, feedPath, oracleURL, parsedMethod, parsedFreq)
	if err != nil {
		fmt.Printf("Report run FAILED: %v\n", err)
		os.Exit(1)
	}

	printReportSummary(report)
	printJSON(report)
}

func runLocalPipeline(wallet, feedPath, oracleURL string, method domain.Method, freq domain.Frequency) (*domain.Report, error) {
	priceOracle := oracle.NewPinnedOracle(oracle.NewHTTPOracle(oracleURL, 30*time.Second))

	pipeline := usecase.NewPipeline(
		usecase.NewNormalizer(priceOracle, usecase.DefaultPriceConcurrency),
		usecase.NewClassifier(usecase.DefaultProtocolRules()),
		usecase.NewStatementGenerator(),
		priceOracle,
		nil,
		nil,
		postgresRepo.NewULIDGenerator(),
		usecase.RunConfig{Method: method, Frequency: freq},
	)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	records, err := feed.NewFileFeed(feedPath).Fetch(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}

	return pipeline.Run(ctx, usecase.RunInput{Wallet: wallet, Records: records})
}

func runTaxReport(wallet, feedPath, oracleURL, method string, year int) {
	parsedMethod, err := domain.ParseMethod(method)
	if err != nil {
		fmt.Printf("Invalid method: %v\n", err)
		os.Exit(1)
	}

	report, err := runLocalPipeline(wallet, feedPath, oracleURL, parsedMethod, domain.Yearly)
	if err != nil {
		fmt.Printf("Report run FAILED: %v\n", err)
		os.Exit(1)
	}

	printTaxLines(report.TaxLines, year)
}

func printTaxLines(lines []domain.TaxLine, year int) {
	fmt.Printf("%-8s %-10s %-10s %14s %14s %14s %14s %-5s\n",
		"ASSET", "ACQUIRED", "DISPOSED", "QTY", "PROCEEDS", "BASIS", "GAIN", "TERM")

	for _, line := range lines {
		if year != 0 && line.DisposedDate.Year() != year {
			continue
		}

		marker := ""
		if line.Provisional {
			marker = " *"
		}

		fmt.Printf("%-8s %-10s %-10s %14s %14s %14s %14s %-5s%s\n",
			truncate(line.Asset, 8),
			line.AcquiredDate.Format("2006-01-02"),
			line.DisposedDate.Format("2006-01-02"),
			line.Quantity.String(),
			line.ProceedsUsd.StringFixed(2),
			line.CostBasisUsd.StringFixed(2),
			line.GainUsd.StringFixed(2),
			line.Term,
			marker,
		)
	}
}

func printReportSummary(report *domain.Report) {
	fmt.Printf("Run:         %s\n", report.RunID)
	fmt.Printf("Wallet:      %s\n", truncate(report.Wallet, 20))
	fmt.Printf("Method:      %s\n", report.Method)
	fmt.Printf("Periods:     %d\n", len(report.Periods))
	fmt.Printf("Tax lines:   %d\n", len(report.TaxLines))
	fmt.Printf("Provisional: %v\n", report.Provisional)
	fmt.Println()
}

func showCheckpoint(wallet string) {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(baseURL + "/api/v1/checkpoints/" + wallet)
	if err != nil {
		fmt.Printf("Error making request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		fmt.Printf("No checkpoint for wallet %s\n", wallet)
		return
	}
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Request FAILED (Status: %d)\nResponse: %s\n", resp.StatusCode, string(body))
		os.Exit(1)
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		fmt.Printf("Failed to parse response: %v\n", err)
		os.Exit(1)
	}

	printJSON(result)
}

func clearCheckpoint(wallet string) {
	req, err := http.NewRequest(http.MethodDelete, baseURL+"/api/v1/checkpoints/"+wallet, nil)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error making request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		fmt.Printf("Request FAILED (Status: %d)\nResponse: %s\n", resp.StatusCode, string(body))
		os.Exit(1)
	}

	fmt.Printf("Checkpoint cleared for wallet %s\n", wallet)
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("Failed to encode output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
