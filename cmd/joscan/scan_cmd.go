// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/backend"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/console"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/journal"
	xglog "github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/log"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/render"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/scan"
)

// scanOptions are the flags of the lookup and validate commands.
type scanOptions struct {
	userKey   string
	cookies   []string
	noJournal bool
}

func (s *scanOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.userKey, "user-key", "", "purchaser key, required when composite tokens are enforced")
	cmd.Flags().StringArrayVar(&s.cookies, "cookie", nil, "operator cookie for the backend as name=value (repeatable)")
	cmd.Flags().BoolVar(&s.noJournal, "no-journal", false, "do not record the outcome in the scan journal")
}

func lookupCmd(opts *globalOptions) *cobra.Command {
	so := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "lookup <token>",
		Short: "Look up a ticket without validating it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, opts, so, args[0], false)
		},
	}
	so.bind(cmd)
	return cmd
}

func validateCmd(opts *globalOptions) *cobra.Command {
	so := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "validate <token>",
		Short: "Look up a ticket and validate it when it is ready",
		Long: `validate performs the same two steps as the console: the ticket is looked
up first and validated only when the lookup shows it ready. The exit status
is 3 when the ticket is not admitted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, opts, so, args[0], true)
		},
	}
	so.bind(cmd)
	return cmd
}

// runScan drives a one-shot console through lookup and, when asked,
// validate. The console applies the same token rules as the web UI.
func runScan(cmd *cobra.Command, opts *globalOptions, so *scanOptions, token string, validate bool) error {
	cfg, _, err := opts.load()
	if err != nil {
		return err
	}
	opts.configureCLILogging(cfg)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := backend.NewClient(cfg.Backend.BaseURL, backend.OptionsFromConfig(cfg))
	if err != nil {
		return err
	}
	renderer, err := render.New(render.Options{Location: cfg.Location()})
	if err != nil {
		return err
	}

	copts := console.Options{
		Renderer:         renderer,
		RequireComposite: func() bool { return cfg.Scan.RequireComposite },
	}
	if !so.noJournal {
		store, err := journal.Open(ctx, cfg.Journal.Path, cfg.JournalOptions(nil))
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer func() { _ = store.Close() }()
		copts.Journal = store
	}

	sessionID := "cli-" + uuid.NewString()
	ctx = xglog.ContextWithSessionID(ctx, sessionID)
	c := console.New(sessionID, client.WithJar(backend.NewJar()), copts)
	// Cookies given on the command line are all forwarded.
	cookies := backend.ParseCookieArgs(so.cookies)
	names := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		names = append(names, ck.Name)
	}
	c.SeedCookies(cookies, names)

	res := c.Search(ctx, token, so.userKey)
	if validate && res.Outcome != nil && res.Outcome.State == scan.StateReady {
		// The validate response carries no ticket; show the one looked up.
		_, _ = fmt.Fprint(cmd.OutOrStdout(), renderer.Terminal(*res.Outcome))
		res = c.Validate(ctx)
	}
	return printResult(cmd.OutOrStdout(), renderer, res, validate)
}

func printResult(w io.Writer, renderer *render.Renderer, res console.Result, validate bool) error {
	if res.Outcome == nil {
		return &exitCodeError{code: exitUsage, err: fmt.Errorf("%s", res.Notice)}
	}
	_, _ = fmt.Fprint(w, renderer.Terminal(*res.Outcome))

	admitted := res.Outcome.State == scan.StateReady
	if validate {
		admitted = res.Outcome.State == scan.StateValidated
	}
	if !admitted {
		return &exitCodeError{code: exitOutcome}
	}
	return nil
}
