package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/dbtrunner/internal/cli"
	"git.home.luguber.info/inful/dbtrunner/internal/eventstore"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int  `short:"n" default:"20" help:"Number of runs to show"`
	JSON  bool `help:"Print the runs as JSON"`
}

func (h *HistoryCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	res := g.Executor.ExecuteHistory(ctx, cli.HistoryRequest{
		ConfigPath: root.Config,
		Limit:      h.Limit,
		Verbose:    root.Verbose,
		JSONLog:    root.JSONLog,
	})
	resp, err := res.ToTuple()
	if err != nil {
		return err
	}
	return writeHistory(os.Stdout, resp.Runs, h.JSON)
}

func writeHistory(out io.Writer, runs []eventstore.RunRecord, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	return writeHistoryTable(out, runs)
}

func writeHistoryTable(w io.Writer, runs []eventstore.RunRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN ID\tSTATUS\tREFERENCE\tTARGET\tSTEPS\tSTARTED\tDURATION")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.RunID, r.Status, r.Reference, r.TargetTier, len(r.Steps),
			r.StartedAt.Format(time.RFC3339), r.Duration.Round(time.Second))
	}
	return tw.Flush()
}
