package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"treegift/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check local directories and connectivity to backing services",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Environment", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			if cfg.RequireRemote() != nil {
				fmt.Fprintln(out, renderStatusLine("Remote API", statusWarn, "not configured", colorize))
			}
			if cfg.RequireStorage() != nil {
				fmt.Fprintln(out, renderStatusLine("Object storage", statusWarn, "not configured", colorize))
			}
			if failed := preflight.Failed(results); failed > 0 {
				return fmt.Errorf("%d checks failed", failed)
			}
			return nil
		},
	}
}
