package main

import (
	"fmt"

	"cragflow/internal/index"

	"github.com/spf13/cobra"
)

var ingestPDF string

var ingestCmd = &cobra.Command{
	Use:   "ingest [clickup-doc-url]",
	Short: "Index a ClickUp doc or a local PDF",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIngest,
}

var reingestCmd = &cobra.Command{
	Use:   "reingest",
	Short: "Refresh every registered ClickUp source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		eng, done, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer done()
		added, err := eng.Reingest(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added %d chunks\n", added)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestPDF, "pdf", "", "Path to a PDF to index instead of a ClickUp URL")
}

func runIngest(cmd *cobra.Command, args []string) error {
	if (len(args) == 0) == (ingestPDF == "") {
		return fmt.Errorf("give either a ClickUp doc URL or --pdf")
	}
	eng, done, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer done()

	var report index.Report
	if ingestPDF != "" {
		report, err = eng.IngestPDF(cmd.Context(), ingestPDF)
	} else {
		report, err = eng.IngestURL(cmd.Context(), args[0])
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "documents=%d chunks=%d existing=%d duplicates=%d added=%d\n",
		report.Documents, report.Chunks, report.Existing, report.Duplicates, report.Added)
	return nil
}
