package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Show the nearest indexed chunks for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, done, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer done()
		hits, err := eng.Search(cmd.Context(), strings.Join(args, " "), searchLimit)
		if err != nil {
			return err
		}
		for i, h := range hits {
			fmt.Fprintf(cmd.OutOrStdout(), "%d. %s  %s p%d  d=%.4f\n   %s\n", i+1, h.ChunkID, h.Source, h.Page, h.Distance, h.Snippet)
		}
		return nil
	},
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List registered ClickUp sources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		eng, done, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer done()
		sources, err := eng.Sources(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "URL\tSTATUS\tADDED\tINGESTED")
		for _, s := range sources {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.URL, s.LastStatus, s.LastAdded, s.LastIngestedAt.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "k", 0, "Number of chunks (default retrieval_k)")
}
