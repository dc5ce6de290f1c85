package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"feed2podcast/internal/logging"
)

func newVoicesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List the voices offered to clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, logging.NewNop())
			if err != nil {
				return err
			}
			voices, err := a.cache.Voices(cmd.Context())
			if err != nil {
				return fmt.Errorf("list voices: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(voices) == 0 {
				fmt.Fprintln(out, "No voices available")
				return nil
			}
			source := "tts backend"
			if len(cfg.TTS.Voices) > 0 {
				source = "config"
			}
			rows := make([][]string, 0, len(voices))
			for i, v := range voices {
				rows = append(rows, []string{strconv.Itoa(i + 1), v})
			}
			fmt.Fprintln(out, renderTable(out, []string{"#", "Voice"}, rows, []columnAlignment{alignRight, alignLeft}))
			fmt.Fprintf(out, "%d voice(s) from %s\n", len(voices), source)
			return nil
		},
	}
}
