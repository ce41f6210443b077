package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"cragflow/internal/models"

	"github.com/spf13/cobra"
)

var (
	askQuick bool
	askJSON  bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the indexed docs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askQuick, "quick", false, "Single-shot answer without grading")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the answer run as JSON")
}

func runAsk(cmd *cobra.Command, args []string) error {
	eng, done, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer done()

	question := strings.Join(args, " ")
	var run models.AnswerRun
	if askQuick {
		run, err = eng.QuickAnswer(cmd.Context(), question)
	} else {
		run, _, err = eng.Ask(cmd.Context(), question)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if askJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}
	fmt.Fprintln(out, run.Answer)
	fmt.Fprintln(out)
	if run.Rewritten != "" {
		fmt.Fprintf(out, "rewritten: %s\n", run.Rewritten)
	}
	fmt.Fprintf(out, "run=%s mode=%s converged=%t generations=%d rewrites=%d\n",
		run.RunID, run.Mode, run.Converged, run.Generations, run.Rewrites)
	if len(run.Sources) > 0 {
		fmt.Fprintf(out, "sources: %s\n", strings.Join(run.Sources, ", "))
	}
	return nil
}
