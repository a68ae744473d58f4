package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docclass/internal/parser"
	"github.com/dgallion1/docclass/internal/pipeline"
	"github.com/dgallion1/docclass/internal/queue"
	"github.com/dgallion1/docclass/internal/store"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			// Open migrates before returning.
			st, err := store.Open(cmd.Context(), store.Config{Driver: cfg.DBDriver, DSN: cfg.DatabaseURL}, log)
			if err != nil {
				log.Error("migrate failed", "error", err)
				return err
			}
			return st.Close()
		},
	}
}

func newClassifyCmd() *cobra.Command {
	var (
		sub      pipeline.Submission
		override bool
	)
	cmd := &cobra.Command{
		Use:   "classify FILE",
		Short: "Extract, classify and store one file synchronously",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			path := args[0]
			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			filename := filepath.Base(path)
			text, err := parser.Extract(raw, filename, parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext})
			if err != nil {
				return err
			}

			a, err := buildApp(ctx, cfg, log, queue.NewMemoryQueue(1))
			if err != nil {
				return err
			}
			defer a.close()

			doc, err := a.store.FindDocumentByFilename(ctx, filename)
			switch {
			case err == nil && override:
				if err := a.store.ReplaceDocument(ctx, doc.ID, text); err != nil {
					return err
				}
			case err == nil:
				// Reclassify the stored text.
			case errors.Is(err, store.ErrNotFound):
				if doc, err = a.store.CreateDocument(ctx, filename, text); err != nil {
					return err
				}
			default:
				return err
			}

			sub.DocumentID = doc.ID
			snap, err := a.orch.ProcessNow(ctx, sub)
			if err != nil {
				return err
			}

			runs, err := a.store.ListRuns(ctx, doc.ID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"file_id": doc.ID,
				"job":     snap,
				"runs":    runs,
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&sub.Model, "model", "", "classification model (default DEFAULT_MODEL)")
	f.StringVar(&sub.Strategy, "strategy", "", "chunking strategy: paragraph or fixed")
	f.IntVar(&sub.ChunkSize, "chunk-size", 0, "token budget (paragraph) or words per window (fixed)")
	f.IntVar(&sub.Overlap, "overlap", 0, "words shared by consecutive windows (fixed)")
	f.BoolVar(&sub.MultiLabel, "multi-label", false, "score labels independently")
	f.BoolVar(&override, "override", false, "replace the stored text of an existing file with the same name")
	return cmd
}
