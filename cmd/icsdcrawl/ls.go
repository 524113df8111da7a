package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewLsCmd creates the ls command.
func NewLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List retrieved entries from the progress index",
		Args:  cobra.NoArgs,
		RunE:  runLsCmd,
	}
	return cmd
}

func runLsCmd(cmd *cobra.Command, _ []string) error {
	cfg, ctx, cancel, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	index, err := openStore(cfg)
	if err != nil {
		return err
	}
	if index == nil {
		return fmt.Errorf("progress index disabled (ICSD_DB is empty)")
	}
	defer index.Close()

	entries, err := index.List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tFORMULA\tSPACE GROUP\tCRAWLED AT\tDIR")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			e.CollectionCode, e.ChemicalFormula, e.SpaceGroup,
			e.CrawledAt.Format("2006-01-02 15:04:05"), e.OutputDir)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("%d entries\n", len(entries))
	return nil
}
