package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veridexhq/veridex/internal/engine"
	"github.com/veridexhq/veridex/internal/model"
)

var (
	mapAccount   string
	mapTopK      int
	mapThreshold float64
	mapExplain   bool
)

// mapCmd represents the map command
var mapCmd = &cobra.Command{
	Use:   "map <artifact-id> <set-id>",
	Short: "Align an artifact's evidence with a standard set",
	Long: `Map chunks the artifact, embeds the chunks, and links each relevant
standard node with a confidence score and the supporting spans. Prior
links for the pair are superseded, never edited.

If the embedding capability is down the artifact is queued and retried
by the scheduler; map reports queued instead of failing.

Example:
  veridex map 6f1b... hlc-2024 --explain`,
	Args: cobra.ExactArgs(2),
	RunE: runMap,
}

func init() {
	rootCmd.AddCommand(mapCmd)

	mapCmd.Flags().StringVar(&mapAccount, "account", "default", "requesting account id")
	mapCmd.Flags().IntVar(&mapTopK, "top-k", 0, "candidate nodes per chunk (0 = config default)")
	mapCmd.Flags().Float64Var(&mapThreshold, "threshold", 0, "confidence floor (0 = config default)")
	mapCmd.Flags().BoolVar(&mapExplain, "explain", false, "generate model rationales for matches")
}

func runMap(cmd *cobra.Command, args []string) error {
	artifactID, setID := args[0], args[1]

	e, log, err := newEngine(loadConfig())
	if err != nil {
		return err
	}
	defer func() { _ = e.Close(); log.Sync() }()

	result, err := e.MapArtifact(context.Background(), engine.MapRequest{
		AccountID:  mapAccount,
		ArtifactID: artifactID,
		SetID:      setID,
		TopK:       mapTopK,
		Threshold:  mapThreshold,
		Explain:    mapExplain,
	})
	if err != nil {
		var rle *model.RateLimitedError
		if errors.As(err, &rle) {
			return fmt.Errorf("rate limited; retry in %s", rle.RetryAfter.Round(1e9))
		}
		return fmt.Errorf("map failed: %w", err)
	}

	if result.Queued {
		fmt.Fprintln(os.Stderr, "Embedding capability unavailable; artifact queued for indexing")
	} else if verbose {
		fmt.Fprintf(os.Stderr, "Matched %d standards\n", len(result.Matches))
	}
	return printJSON(result)
}
