package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/szylko/treeport/batch"
	"github.com/szylko/treeport/faults"
)

// writeReport renders one batch run as a table, succeeded items first.
func writeReport[P any](w io.Writer, report batch.Report[P]) {
	table := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(table, "ID\tSTATUS\tDETAIL")

	for _, task := range report.Succeeded {
		detail := report.Details[task.ID]
		_, _ = fmt.Fprintf(table, "%s\tok\t%s\n", task.ID, detail)
	}
	for _, outcome := range report.Failed {
		_, _ = fmt.Fprintf(table, "%s\tfailed\t%s: %s\n", outcome.ID, outcome.Category, outcome.Detail)
	}

	_ = table.Flush()
	_, _ = fmt.Fprintf(w, "\nrun %s: %d succeeded, %d failed\n", report.RunID, len(report.Succeeded), len(report.Failed))
}

// reportError converts failed batch items into the command error, carrying
// the first failure's category so the exit code reflects it.
func reportError[P any](report batch.Report[P], operation string) error {
	if report.AllOK() {
		return nil
	}

	ids := make([]string, 0, len(report.Failed))
	for _, outcome := range report.Failed {
		ids = append(ids, outcome.ID)
	}

	return faults.NewTypedError(
		report.Failed[0].Category,
		fmt.Sprintf("%s failed for %d resource(s): %s", operation, len(report.Failed), strings.Join(ids, ", ")),
		nil,
	)
}
