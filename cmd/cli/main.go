package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"pvqc/adapters/excel"
	"pvqc/adapters/protocoldir"
	"pvqc/app"
	"pvqc/domain/analysis"
	"pvqc/domain/core"
	"pvqc/internal/fitting"
	"pvqc/internal/registry"
	"pvqc/internal/testkit"
	"pvqc/internal/validation"
	"pvqc/ports"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pvqc-cli",
		Short: "PVQC CLI for validating and analyzing module test exports",
	}

	rootCmd.AddCommand(
		newProtocolsCmd(),
		newValidateCmd(),
		newAnalyzeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newProtocolsCmd() *cobra.Command {
	var protocolDir string

	cmd := &cobra.Command{
		Use:   "protocols",
		Short: "List protocol definitions from a directory",
		Long: `List every protocol definition document in a directory, with its
structural validation status.

Example: pvqc-cli protocols --protocol-dir ./protocols`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProtocols(cmd.Context(), protocolDir)
		},
	}

	cmd.Flags().StringVar(&protocolDir, "protocol-dir", "./protocols", "Directory of protocol definition documents")

	return cmd
}

func newValidateCmd() *cobra.Command {
	var protocolDir string

	cmd := &cobra.Command{
		Use:   "validate [protocol@version] [export-file]",
		Short: "Validate a bench export against a protocol",
		Long: `Read a measurement export (CSV or Excel) and report every data-level
finding against the named protocol. Findings never abort the check; a
malformed protocol definition does.

Example: pvqc-cli validate IAM-2104@1.0 sweep.xlsx`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), protocolDir, args[0], args[1])
		},
	}

	cmd.Flags().StringVar(&protocolDir, "protocol-dir", "./protocols", "Directory of protocol definition documents")

	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var protocolDir string
	var sample string
	var defectScore float64

	cmd := &cobra.Command{
		Use:   "analyze [protocol@version] [export-file]",
		Short: "Run the full analysis pipeline on a bench export",
		Long: `Run validation, metric derivation, model fitting and QC evaluation on a
measurement export, entirely in memory. Use --defect-score to supply the
severity score normally fetched from the scoring service.

Example: pvqc-cli analyze LETID-6892@1.0 letid_0500h.csv --sample MOD-4411`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var score *float64
			if cmd.Flags().Changed("defect-score") {
				score = &defectScore
			}
			return runAnalyze(cmd.Context(), protocolDir, args[0], args[1], sample, score)
		},
	}

	cmd.Flags().StringVar(&protocolDir, "protocol-dir", "./protocols", "Directory of protocol definition documents")
	cmd.Flags().StringVar(&sample, "sample", "CLI-SAMPLE", "Sample identifier for the run")
	cmd.Flags().Float64Var(&defectScore, "defect-score", 0, "Defect severity score for paired-sample gates")

	return cmd
}

func runProtocols(ctx context.Context, protocolDir string) error {
	defs, err := protocoldir.NewSource(protocolDir).List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load protocol directory: %w", err)
	}

	fmt.Printf("=== PROTOCOL DEFINITIONS ===\n")
	fmt.Printf("Directory: %s\n", protocolDir)
	fmt.Printf("Definitions: %d\n\n", len(defs))

	for i, def := range defs {
		fmt.Printf("%d. %s\n", i+1, def.Key())
		fmt.Printf("   Category: %s | Min Points: %d | Criteria: %d\n",
			def.Category, def.MinPoints, len(def.Criteria))
		if len(def.CandidateModels) > 0 {
			names := make([]string, len(def.CandidateModels))
			for j, spec := range def.CandidateModels {
				names[j] = string(spec.Name)
			}
			fmt.Printf("   Models: %s\n", strings.Join(names, ", "))
		}
		fmt.Printf("   Fingerprint: %s\n", def.Fingerprint())
		if err := def.Validate(); err != nil {
			fmt.Printf("   ❌ INVALID: %v\n", err)
		} else {
			fmt.Printf("   ✅ Valid\n")
		}
		fmt.Println()
	}

	return nil
}

func runValidate(ctx context.Context, protocolDir, protocolKey, exportFile string) error {
	protocolID, version, err := parseProtocolKey(protocolKey)
	if err != nil {
		return err
	}

	def, err := protocoldir.NewSource(protocolDir).Fetch(ctx, protocolID, version)
	if err != nil {
		return fmt.Errorf("failed to resolve protocol: %w", err)
	}

	series, err := excel.NewExportReader().Read(ctx, exportFile)
	if err != nil {
		return fmt.Errorf("failed to read export: %w", err)
	}

	outcome, err := validation.New().Validate(series, def)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("=== VALIDATION REPORT ===\n")
	fmt.Printf("Protocol: %s\n", def.Key())
	fmt.Printf("Export: %s\n", exportFile)
	fmt.Printf("Submitted Points: %d\n", series.Len())
	fmt.Printf("Usable Points: %d\n", outcome.Usable.Len())
	if outcome.WasUnsorted {
		fmt.Printf("Note: points arrived unsorted and were ordered by %s\n", def.IndependentVariable)
	}

	printFindings(outcome.Report)

	if outcome.Report.HasErrors() {
		fmt.Printf("\n❌ %d error-level findings; affected points are excluded from analysis\n",
			len(outcome.Report.Errors))
	} else {
		fmt.Printf("\n✅ No error-level findings\n")
	}

	return nil
}

func runAnalyze(ctx context.Context, protocolDir, protocolKey, exportFile, sample string, defectScore *float64) error {
	protocolID, version, err := parseProtocolKey(protocolKey)
	if err != nil {
		return err
	}

	sampleID := core.SampleID(sample)

	// Offline pipeline: directory-backed protocols, in-memory run storage
	var scorer ports.DefectScorer
	if defectScore != nil {
		fake := testkit.NewFakeScorer()
		fake.SetScore(sampleID, *defectScore)
		scorer = fake
	}
	reg := registry.New(protocoldir.NewSource(protocolDir))
	analysisSvc := app.NewAnalysisService(reg, fitting.NewEngine(0, 0), scorer)
	runSvc := app.NewRunService(testkit.NewInMemoryRunStore(), analysisSvc, excel.NewExportReader())

	r, err := runSvc.CreateRun(ctx, protocolID, version, sampleID)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	if _, err := runSvc.ImportSeries(ctx, r.ID, exportFile); err != nil {
		return fmt.Errorf("failed to import export: %w", err)
	}
	outcome, err := runSvc.SubmitForValidation(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	result, err := runSvc.Analyze(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	fmt.Printf("=== ANALYSIS RESULTS ===\n")
	fmt.Printf("Run ID: %s\n", result.RunID)
	fmt.Printf("Protocol: %s@%s\n", result.ProtocolID, result.ProtocolVersion)
	fmt.Printf("Sample: %s\n", sampleID)
	fmt.Printf("Usable Points: %d\n", outcome.Usable.Len())
	fmt.Printf("Overall Status: %s %s\n", strings.ToUpper(string(result.OverallStatus)), statusMarker(result.OverallStatus))

	printFindings(result.Validation)
	printMetrics(result.Metrics)
	printFit(result.Fit)
	printQC(result.QC)

	fmt.Printf("\nResult Fingerprint: %s\n", result.Fingerprint())

	return nil
}

// parseProtocolKey splits "IAM-2104@1.0" into its identifier and version
func parseProtocolKey(key string) (core.ProtocolID, string, error) {
	parts := strings.SplitN(key, "@", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid protocol key %q (expected id@version)", key)
	}
	return core.ProtocolID(parts[0]), parts[1], nil
}

func printFindings(report analysis.ValidationReport) {
	if len(report.Errors) > 0 {
		fmt.Printf("\n=== DATA ERRORS ===\n")
		for _, issue := range report.Errors {
			printIssue(issue)
		}
	}
	if len(report.Warnings) > 0 {
		fmt.Printf("\n=== DATA WARNINGS ===\n")
		for _, issue := range report.Warnings {
			printIssue(issue)
		}
	}
}

func printIssue(issue analysis.Issue) {
	location := ""
	if issue.Field != "" {
		location = " [" + issue.Field + "]"
	}
	if issue.PointIndex != nil {
		location += fmt.Sprintf(" (point %d)", *issue.PointIndex)
	}
	fmt.Printf("• %s%s: %s\n", issue.Code, location, issue.Detail)
}

func printMetrics(metrics analysis.Metrics) {
	fmt.Printf("\n=== METRICS ===\n")
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, string(name))
	}
	sort.Strings(names)

	for _, name := range names {
		value := metrics[core.MetricName(name)]
		if value.IsAvailable() {
			fmt.Printf("%s: %.4f\n", name, *value.Value)
		} else {
			fmt.Printf("%s: unavailable (%s)\n", name, value.Unavailable)
		}
	}
}

func printFit(fit analysis.ModelFitResult) {
	fmt.Printf("\n=== MODEL FIT ===\n")
	switch {
	case fit.Fitted():
		fmt.Printf("Model: %s\n", fit.Model)
		fmt.Printf("R²: %.4f\n", *fit.RSquared)

		params := make([]string, 0, len(fit.Parameters))
		for name := range fit.Parameters {
			params = append(params, name)
		}
		sort.Strings(params)
		for _, name := range params {
			fmt.Printf("   %s = %.6g\n", name, fit.Parameters[name])
		}

		if fit.Diagnostics != nil {
			fmt.Printf("RMSE: %.4g | Degrees of Freedom: %d\n",
				fit.Diagnostics.RMSE, fit.Diagnostics.DegreesOfFreedom)
			if fit.Diagnostics.PValue != nil {
				fmt.Printf("P-Value: %.4g\n", *fit.Diagnostics.PValue)
			}
		}
	case fit.NoFit != "":
		fmt.Printf("No model selected: %s\n", fit.NoFit)
	default:
		fmt.Printf("Not applicable (protocol declares no candidate models)\n")
	}

	if fit.Stabilization != nil {
		if fit.Stabilization.Stabilized && fit.Stabilization.AtHours != nil {
			fmt.Printf("Stabilization: reached at %.1f h (window %d, epsilon %.2f%%)\n",
				*fit.Stabilization.AtHours, fit.Stabilization.Window, fit.Stabilization.EpsilonPct)
		} else {
			fmt.Printf("Stabilization: not observed within the series\n")
		}
	}
}

func printQC(results []analysis.QCResult) {
	fmt.Printf("\n=== QC CRITERIA ===\n")
	for _, qc := range results {
		marker := "✅"
		if !qc.Passed {
			marker = "❌"
		}
		detail := ""
		switch {
		case qc.Actual != nil:
			detail = fmt.Sprintf("%s = %.4f", qc.Target, *qc.Actual)
		case qc.Unavailable != "":
			detail = fmt.Sprintf("%s unavailable (%s)", qc.Target, qc.Unavailable)
		}
		fmt.Printf("%s %s [%s] %s\n", marker, qc.CriterionID, qc.Severity, detail)
	}
}

func statusMarker(status analysis.OverallStatus) string {
	switch status {
	case analysis.OverallPass:
		return "✅"
	case analysis.OverallWarning:
		return "⚠️"
	default:
		return "❌"
	}
}
