// SPDX-License-Identifier: MIT

// Command joscan runs the ticket scan console and its operator tooling.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/config"
	xglog "github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/log"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/version"
)

const appName = "joscan"

// Exit codes. Scan commands use exitOutcome when the ticket is not
// admissible, so scripts can tell a refused ticket from a broken run.
const (
	exitOK      = 0
	exitError   = 1
	exitUsage   = 2
	exitOutcome = 3
)

// exitCodeError carries a process exit code through cobra's error return.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitCodeError) Unwrap() error { return e.err }

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(exitUsage)
		}
	}()

	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command tree and maps its error to an exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	cmd := rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return exitOK
	}
	var coded *exitCodeError
	if errors.As(err, &coded) {
		if coded.err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", coded.err)
		}
		return coded.code
	}
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitError
}

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Ticket scan console for venue entrances",
		Long: `joscan serves the entrance scan console: operators look up a ticket by
token, typed or read from a QR code, and validate it against the ticketing
backend. Every outcome is journaled.

Configuration precedence is JOSCAN_* environment variables, then the YAML
file given with --config, then built-in defaults.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv(config.EnvPrefix+"CONFIG"), "config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	cmd.AddCommand(
		serveCmd(opts),
		lookupCmd(opts),
		validateCmd(opts),
		historyCmd(opts),
		configCmd(opts),
		versionCmd(),
	)
	return cmd
}

// load reads the configuration and applies the --log-level override.
func (o *globalOptions) load() (config.AppConfig, *config.Loader, error) {
	loader := config.NewLoader(strings.TrimSpace(o.configPath), version.Get().Version)
	cfg, err := loader.Load()
	if err != nil {
		return cfg, loader, fmt.Errorf("load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = strings.ToLower(o.logLevel)
	}
	return cfg, loader, nil
}

// configureCLILogging keeps command output readable: only warnings and
// errors are logged unless --log-level asks for more.
func (o *globalOptions) configureCLILogging(cfg config.AppConfig) {
	lc := cfg.LogOptions()
	lc.Level = "warn"
	if o.logLevel != "" {
		lc.Level = o.logLevel
	}
	xglog.Configure(lc)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
		},
	}
}
