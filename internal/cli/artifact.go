package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/veridexhq/veridex/internal/engine"
)

var (
	artifactAccount   string
	artifactAuthor    string
	artifactSignedBy  string
	artifactTag       string
	artifactEffective string
	artifactMime      string
)

// artifactCmd groups artifact subcommands
var artifactCmd = &cobra.Command{
	Use:   "artifact",
	Short: "Manage evidence artifacts",
}

var artifactAddCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Register an evidence document",
	Long: `Add registers a text evidence document. Re-adding identical content
for the same account returns the existing artifact instead of a copy.

Example:
  veridex artifact add evidence/assessment-report.txt --account acme-u \
    --author "Office of Institutional Research" --effective-date 2025-06-30`,
	Args: cobra.ExactArgs(1),
	RunE: runArtifactAdd,
}

var artifactRmCmd = &cobra.Command{
	Use:   "rm <artifact-id>",
	Short: "Delete an artifact and everything derived from it",
	Args:  cobra.ExactArgs(1),
	RunE:  runArtifactRm,
}

func init() {
	rootCmd.AddCommand(artifactCmd)
	artifactCmd.AddCommand(artifactAddCmd)
	artifactCmd.AddCommand(artifactRmCmd)

	artifactAddCmd.Flags().StringVar(&artifactAccount, "account", "default", "owning account id")
	artifactAddCmd.Flags().StringVar(&artifactAuthor, "author", "", "document author")
	artifactAddCmd.Flags().StringVar(&artifactSignedBy, "signed-by", "", "recognized signer")
	artifactAddCmd.Flags().StringVar(&artifactTag, "accreditor", "", "accreditor tag")
	artifactAddCmd.Flags().StringVar(&artifactEffective, "effective-date", "", "document date (YYYY-MM-DD)")
	artifactAddCmd.Flags().StringVar(&artifactMime, "mime", "text/plain", "MIME type")
}

func runArtifactAdd(cmd *cobra.Command, args []string) error {
	path := args[0]
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	var effective *time.Time
	if artifactEffective != "" {
		t, err := time.Parse("2006-01-02", artifactEffective)
		if err != nil {
			return fmt.Errorf("parse effective date: %w", err)
		}
		effective = &t
	}

	e, log, err := newEngine(loadConfig())
	if err != nil {
		return err
	}
	defer func() { _ = e.Close(); log.Sync() }()

	artifact, err := e.RegisterArtifact(context.Background(), engine.RegisterArtifactRequest{
		AccountID:     artifactAccount,
		Filename:      filepath.Base(path),
		MimeType:      artifactMime,
		Text:          string(content),
		AccreditorTag: artifactTag,
		Author:        artifactAuthor,
		SignedBy:      artifactSignedBy,
		EffectiveDate: effective,
	})
	if err != nil {
		return fmt.Errorf("register artifact: %w", err)
	}
	return printJSON(artifact)
}

func runArtifactRm(cmd *cobra.Command, args []string) error {
	e, log, err := newEngine(loadConfig())
	if err != nil {
		return err
	}
	defer func() { _ = e.Close(); log.Sync() }()

	if err := e.Store().DeleteArtifact(args[0]); err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	fmt.Printf("Deleted artifact %s\n", args[0])
	return nil
}
