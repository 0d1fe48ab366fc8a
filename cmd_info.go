package main

import (
	"github.com/spf13/cobra"

	cfg "github.com/maastricht-university/session-analysis/config"
	"github.com/maastricht-university/session-analysis/metrics"
)

func newFormulaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formula",
		Short: "Print the scoring formula and weights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd.OutOrStdout(), metrics.Formula())
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := cfg.Load(configPath)
			if err != nil {
				return err
			}
			return cfg.Dump(cmd.OutOrStdout(), conf)
		},
	}
}
