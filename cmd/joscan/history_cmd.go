// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/journal"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/persistence/sqlite"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/scan"
)

func historyCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and maintain the scan journal",
	}
	cmd.AddCommand(historyExportCmd(opts), historyVerifyCmd(opts), historyPruneCmd(opts))
	return cmd
}

func historyExportCmd(opts *globalOptions) *cobra.Command {
	var (
		out   string
		since time.Duration
		token string
		state string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export journal entries as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			opts.configureCLILogging(cfg)

			f := journal.Filter{Token: token, Limit: limit}
			if since > 0 {
				f.Since = time.Now().Add(-since)
			}
			if state != "" {
				s := scan.ParseState(state)
				if s.String() != state {
					return &exitCodeError{code: exitUsage, err: fmt.Errorf("unknown state %q", state)}
				}
				f.State = &s
			}

			store, err := journal.Open(cmd.Context(), cfg.Journal.Path, cfg.JournalOptions(nil))
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer func() { _ = store.Close() }()

			if out == "" || out == "-" {
				entries, err := store.Recent(cmd.Context(), f)
				if err != nil {
					return err
				}
				return journal.WriteCSV(cmd.OutOrStdout(), entries)
			}
			n, err := store.Export(cmd.Context(), out, f)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "exported %d entries to %s\n", n, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, written atomically (default stdout)")
	cmd.Flags().DurationVar(&since, "since", 0, "only entries newer than this duration")
	cmd.Flags().StringVar(&token, "token", "", "only entries for this token")
	cmd.Flags().StringVar(&state, "state", "", "only entries with this outcome (ready, validated, already_validated, invalid)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of entries (0 for all)")
	return cmd
}

func historyVerifyCmd(opts *globalOptions) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the journal database for corruption",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			if _, err := os.Stat(cfg.Journal.Path); errors.Is(err, os.ErrNotExist) {
				return &exitCodeError{code: exitUsage, err: fmt.Errorf("journal %s does not exist", cfg.Journal.Path)}
			}

			mode := sqlite.VerifyQuick
			if full {
				mode = sqlite.VerifyFull
			}
			issues, err := sqlite.VerifyIntegrity(cmd.Context(), cfg.Journal.Path, mode)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(issues) == 0 {
				_, _ = fmt.Fprintf(w, "%s: ok\n", cfg.Journal.Path)
				return nil
			}
			for _, issue := range issues {
				_, _ = fmt.Fprintf(w, "%s: %s\n", cfg.Journal.Path, issue)
			}
			return &exitCodeError{code: exitError, err: fmt.Errorf("%d integrity issue(s) found", len(issues))}
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "run the full integrity check instead of the quick one")
	return cmd
}

func historyPruneCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete journal entries older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			opts.configureCLILogging(cfg)

			store, err := journal.Open(cmd.Context(), cfg.Journal.Path, cfg.JournalOptions(nil))
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer func() { _ = store.Close() }()

			n, err := store.Prune(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries older than %s\n", n, cfg.Journal.Retention)
			return nil
		},
	}
}
