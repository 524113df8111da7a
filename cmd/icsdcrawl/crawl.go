package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/icsd-tools/icsdcrawl/crawler"
	"github.com/icsd-tools/icsdcrawl/models"
	"github.com/icsd-tools/icsdcrawl/queryer"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Bulk-retrieve every enumerated entry not yet on disk",
		Long: `Crawl reads the enumerated collection codes from the combined CSVs,
skips entries already present in the output tree, and fetches the rest
in contiguous code ranges.

A failed range is retried after a backoff, so the command can run
unattended for days. Interrupt it at any time; a later run resumes
where it left off.`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}
	return cmd
}

func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, ctx, cancel, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	index, err := openStore(cfg)
	if err != nil {
		return err
	}
	if index != nil {
		defer index.Close()
	}

	// One fresh browser session per batch; PerformQuery closes it.
	fetch := func(ctx context.Context, query models.Query) error {
		q, err := queryer.New(cfg.Browser, cfg.Queryer, index)
		if err != nil {
			return err
		}
		_, err = q.PerformQuery(ctx, query, models.SourceAll)
		return err
	}

	c := crawler.New(cfg.Crawler.CombinedDir, cfg.Queryer.OutputDir,
		cfg.Crawler.BatchSize, cfg.Crawler.Backoff, fetch, index)
	return c.Run(ctx)
}
