package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/icsd-tools/icsdcrawl/config"
	"github.com/icsd-tools/icsdcrawl/models"
	"github.com/icsd-tools/icsdcrawl/queryer"
	"github.com/icsd-tools/icsdcrawl/store"
)

// NewScrapeCmd creates the scrape command.
func NewScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one Basic Search query and save every matching entry",
		Long: `Scrape submits a single Basic Search query, selects all hits, and
walks the Detailed View saving each entry's metadata and CIF file.

Examples:
  # All entries with this exact composition
  icsdcrawl scrape --composition "Na Cl"

  # Binary oxides, experimental structures only
  icsdcrawl scrape --composition "O" --elements 2 --source E

  # A range of collection codes, with screenshots
  icsdcrawl scrape --code 1-100 --screenshot`,
		Args: cobra.NoArgs,
		RunE: runScrapeCmd,
	}

	cmd.Flags().String("composition", "", "Chemical composition search term")
	cmd.Flags().String("elements", "", "Number of elements (value or range, e.g. 2 or 2-4)")
	cmd.Flags().String("code", "", "Collection code (value or range, e.g. 100 or 1-100)")
	cmd.Flags().StringP("source", "s", "A",
		"Structure source: E (experimental), T (theoretical), A (all)")
	cmd.Flags().Bool("screenshot", false, "Save screenshot.png alongside each entry")

	return cmd
}

func runScrapeCmd(cmd *cobra.Command, _ []string) error {
	cfg, ctx, cancel, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	query := models.Query{}
	for flag, field := range map[string]string{
		"composition": "composition",
		"elements":    "number_of_elements",
		"code":        "icsd_collection_code",
	} {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			query[field] = v
		}
	}
	if len(query) == 0 {
		return fmt.Errorf("at least one of --composition, --elements, --code is required")
	}
	if err := query.Validate(); err != nil {
		return err
	}

	src, _ := cmd.Flags().GetString("source")
	source := models.ParseStructureSource(src)

	if ok, _ := cmd.Flags().GetBool("screenshot"); ok {
		cfg.Queryer.SaveScreenshot = true
	}

	index, err := openStore(cfg)
	if err != nil {
		return err
	}
	if index != nil {
		defer index.Close()
	}

	q, err := queryer.New(cfg.Browser, cfg.Queryer, index)
	if err != nil {
		return err
	}

	// The spinner shares the screen with slog, so it goes to stderr and
	// only when that is a terminal.
	var sp *spinner.Spinner
	if isatty.IsTerminal(os.Stderr.Fd()) {
		sp = spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		sp.Suffix = " scraping entries..."
		sp.Start()
	}
	codes, err := q.PerformQuery(ctx, query, source)
	if sp != nil {
		sp.Stop()
	}
	if err != nil {
		return err
	}

	slog.Info("scrape finished", "entries", len(codes))
	for _, code := range codes {
		fmt.Println(code)
	}
	return nil
}

// openStore opens the progress index, or returns nil when disabled.
func openStore(cfg *config.Config) (*store.Store, error) {
	if cfg.Store.Path == "" {
		return nil, nil
	}
	return store.Open(cfg.Store.Path)
}
