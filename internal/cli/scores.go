package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veridexhq/veridex/internal/model"
)

var (
	coverageHistory string
	crosswalkRefine bool
	citeStyle       string
)

// trustCmd represents the trust command
var trustCmd = &cobra.Command{
	Use:   "trust <artifact-id>",
	Short: "Score an artifact's trustworthiness",
	Long: `Trust computes the four deterministic sub-scores (freshness,
authenticity, redundancy, citation density) and their weighted average.
Every signal carries the formula and inputs that produced it.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrust,
}

// coverageCmd represents the coverage command
var coverageCmd = &cobra.Command{
	Use:   "coverage <set-id>",
	Short: "Compute the gap snapshot for a standard set",
	Long: `Coverage scores every node of the set: full credit for direct
evidence, partial credit for crosswalk-only support, zero otherwise.
The snapshot is versioned; prior snapshots remain for trend display.

Example:
  veridex coverage hlc-2024
  veridex coverage hlc-2024 --history hlc-2024:3.A.2`,
	Args: cobra.ExactArgs(1),
	RunE: runCoverage,
}

// crosswalkCmd represents the crosswalk command
var crosswalkCmd = &cobra.Command{
	Use:   "crosswalk <from-set> <to-set>",
	Short: "Cross-map one standard set onto another",
	Long: `Crosswalk proposes equivalences between two frameworks and admits
only pairs whose lexical overlap clears the configured floor. With
--refine, only live edges below the confidence floor are re-evaluated;
accepted edges are never touched.`,
	Args: cobra.ExactArgs(2),
	RunE: runCrosswalk,
}

// citeCmd represents the cite command
var citeCmd = &cobra.Command{
	Use:   "cite <artifact-id>",
	Short: "Validate an artifact's citations",
	Long: `Cite runs structural citation checks for the chosen style. Large
documents are queued and validated in the background. The optional
model-based check is advisory: it can warn, never fail.`,
	Args: cobra.ExactArgs(1),
	RunE: runCite,
}

func init() {
	rootCmd.AddCommand(trustCmd)
	rootCmd.AddCommand(coverageCmd)
	rootCmd.AddCommand(crosswalkCmd)
	rootCmd.AddCommand(citeCmd)

	coverageCmd.Flags().StringVar(&coverageHistory, "history", "", "print snapshot history for one node id instead")
	crosswalkCmd.Flags().BoolVar(&crosswalkRefine, "refine", false, "re-evaluate only low-confidence edges")
	citeCmd.Flags().StringVar(&citeStyle, "style", "apa7", "citation style (apa7, mla9, chicago)")
}

func runTrust(cmd *cobra.Command, args []string) error {
	e, log, err := newEngine(loadConfig())
	if err != nil {
		return err
	}
	defer func() { _ = e.Close(); log.Sync() }()

	ts, err := e.ScoreTrust(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("trust scoring failed: %w", err)
	}
	return printJSON(ts)
}

func runCoverage(cmd *cobra.Command, args []string) error {
	e, log, err := newEngine(loadConfig())
	if err != nil {
		return err
	}
	defer func() { _ = e.Close(); log.Sync() }()

	if coverageHistory != "" {
		history, err := e.GapHistory(coverageHistory)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		return printJSON(history)
	}

	snapshot, err := e.Coverage(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("coverage failed: %w", err)
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "Risk index %.3f across %d nodes\n", snapshot.RiskIndex, len(snapshot.Records))
	}
	return printJSON(snapshot)
}

func runCrosswalk(cmd *cobra.Command, args []string) error {
	e, log, err := newEngine(loadConfig())
	if err != nil {
		return err
	}
	defer func() { _ = e.Close(); log.Sync() }()

	method := model.CrosswalkBatch
	if crosswalkRefine {
		method = model.CrosswalkRefine
	}

	result, err := e.BuildCrosswalk(context.Background(), args[0], args[1], method)
	if err != nil {
		return fmt.Errorf("crosswalk failed: %w", err)
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "Admitted %d of %d proposed pairs\n", result.Admitted, result.Proposed)
	}
	return printJSON(result)
}

func runCite(cmd *cobra.Command, args []string) error {
	e, log, err := newEngine(loadConfig())
	if err != nil {
		return err
	}
	defer func() { _ = e.Close(); log.Sync() }()

	report, err := e.ValidateCitations(context.Background(), args[0], citeStyle)
	if err != nil {
		return fmt.Errorf("citation validation failed: %w", err)
	}
	if report.Status == model.CitationQueued {
		fmt.Fprintln(os.Stderr, "Large document; validation queued in the background")
	}
	return printJSON(report)
}
