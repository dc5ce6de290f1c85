package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"feed2podcast/internal/cachekey"
	"feed2podcast/internal/janitor"
	"feed2podcast/internal/logging"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the audio cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCachePruneCommand(ctx))
	cacheCmd.AddCommand(newCachePathCommand(ctx))

	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show audio cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			j := janitor.New(cfg.Paths.CacheDir, janitor.FromConfig(cfg), logging.NewNop())
			stats, err := j.Stats(cmd.Context())
			if err != nil {
				return err
			}
			printCacheStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
}

func printCacheStats(out io.Writer, s janitor.Stats) {
	rows := [][]string{
		{"Directory", s.Root},
		{"Retention", s.Policy},
		{"Files", strconv.Itoa(s.Files)},
		{"Total size", humanize.IBytes(uint64(s.TotalBytes))},
		{"Demo samples", fmt.Sprintf("%d (%s)", s.DemoFiles, humanize.IBytes(uint64(s.DemoBytes)))},
		{"Reclaimable", humanize.IBytes(uint64(s.ReclaimableBytes()))},
		{"Oldest episode", stamp(s.Oldest)},
		{"Newest episode", stamp(s.Newest)},
	}
	if s.TotalFSBytes > 0 {
		rows = append(rows, []string{"Disk free", fmt.Sprintf("%s of %s", humanize.IBytes(s.FreeBytes), humanize.IBytes(s.TotalFSBytes))})
	}
	fmt.Fprintln(out, renderTable(out, []string{"Cache", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "none"
	}
	return fmt.Sprintf("%s (%s)", t.Local().Format("2006-01-02 15:04"), humanize.Time(t))
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	var maxSize float64
	var maxAge float64

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Run one retention sweep now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			policy := janitor.FromConfig(cfg)
			switch {
			case cmd.Flags().Changed("max-size"):
				policy = janitor.MaxStorage(int64(maxSize * (1 << 30)))
			case cmd.Flags().Changed("max-age"):
				policy = janitor.MaxAge(time.Duration(maxAge * float64(24*time.Hour)))
			}

			out := cmd.OutOrStdout()
			if policy.Kind == janitor.KindNone {
				fmt.Fprintln(out, "No retention policy configured; nothing to prune")
				return nil
			}
			j := janitor.New(cfg.Paths.CacheDir, policy, logger)
			res, err := j.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			if res.Deleted == 0 {
				fmt.Fprintf(out, "No cache files pruned (%s)\n", policy)
				return nil
			}
			fmt.Fprintf(out, "Pruned %d file(s), freed %s (%s)\n", res.Deleted, humanize.IBytes(uint64(res.Freed)), policy)
			if res.Shortfall {
				fmt.Fprintf(out, "Warning: %s still over the limit\n", humanize.IBytes(uint64(res.ToFree-res.Freed)))
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&maxSize, "max-size", 0, "Override the size bound in GiB")
	cmd.Flags().Float64Var(&maxAge, "max-age", 0, "Override the age bound in days")
	cmd.MarkFlagsMutuallyExclusive("max-size", "max-age")
	return cmd
}

func newCachePathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "path <feed-url> <uid> <voice>",
		Short: "Print the cache file for an episode",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := cachekey.Path(cfg.Paths.CacheDir, args[0], args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
