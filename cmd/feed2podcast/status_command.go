package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"feed2podcast/internal/logging"
	"feed2podcast/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check cache directories and the TTS backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, logging.NewNop())
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, a.tts)

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				status := "OK"
				if !r.Passed {
					status = "FAIL"
				}
				rows = append(rows, []string{r.Name, status, r.Detail})
			}
			fmt.Fprintln(out, renderTable(out, []string{"Check", "Status", "Detail"}, rows, nil))

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			return nil
		},
	}
}
