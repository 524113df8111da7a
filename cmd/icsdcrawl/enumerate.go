package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/icsd-tools/icsdcrawl/collection"
	"github.com/icsd-tools/icsdcrawl/queryer"
)

// NewEnumerateCmd creates the enumerate command.
func NewEnumerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enumerate",
		Short: "Enumerate collection codes into CSV files",
		Long: `Enumerate pages through the List View of consecutive 10000-code range
queries and saves the results table as CSV: one file per page plus a
combined file per range.

The combined CSVs are the input of the crawl command.

Examples:
  # Codes 1-10000
  icsdcrawl enumerate

  # Codes 20001-50000
  icsdcrawl enumerate --start 20001 --ranges 3`,
		Args: cobra.NoArgs,
		RunE: runEnumerateCmd,
	}

	cmd.Flags().Int("start", 1, "First collection code of the first range")
	cmd.Flags().Int("ranges", 1, "Number of consecutive 10000-code ranges")

	return cmd
}

func runEnumerateCmd(cmd *cobra.Command, _ []string) error {
	cfg, ctx, cancel, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	start, _ := cmd.Flags().GetInt("start")
	ranges, _ := cmd.Flags().GetInt("ranges")

	// Each range gets a fresh browser session; the enumerator closes it
	// when the range is done.
	for i := 0; i < ranges; i++ {
		firstCode := start + i*collection.CodesPerRange

		q, err := queryer.New(cfg.Browser, cfg.Queryer, nil)
		if err != nil {
			return err
		}
		e, err := collection.NewEnumerator(q, cfg.Crawler.PageDir, cfg.Crawler.CombinedDir)
		if err != nil {
			q.Close()
			return err
		}
		if err := e.Run(ctx, firstCode); err != nil {
			return err
		}
	}

	slog.Info("enumeration finished", "ranges", ranges)
	return nil
}
