// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/config"
)

func configCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate or print the effective configuration",
	}
	cmd.AddCommand(configValidateCmd(opts), configDumpCmd(opts))
	return cmd
}

func configValidateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, loader, err := opts.load()
			source := loader.Path()
			if source == "" {
				source = "environment and defaults"
			}
			if err != nil {
				return &exitCodeError{code: exitError, err: fmt.Errorf("configuration error in %s: %w", source, err)}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid\n", source)

			env := make([]string, 0, len(loader.ConsumedEnvKeys))
			for k := range loader.ConsumedEnvKeys {
				if _, set := os.LookupEnv(k); set {
					env = append(env, k)
				}
			}
			sort.Strings(env)
			for _, k := range env {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  overridden by %s\n", k)
			}
			return nil
		},
	}
}

func configDumpCmd(opts *globalOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			switch format {
			case "yaml":
				data, err := config.Dump(cfg)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			case "json":
				// Round-trip through YAML so JSON keys match the file format.
				data, err := config.Dump(cfg)
				if err != nil {
					return err
				}
				var generic map[string]any
				if err := yaml.Unmarshal(data, &generic); err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(generic)
			default:
				return &exitCodeError{code: exitUsage, err: fmt.Errorf("unknown format %q (want yaml or json)", format)}
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "output format: yaml or json")
	return cmd
}
