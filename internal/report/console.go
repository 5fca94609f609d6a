package report

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// WriteConsole renders the run summary for a terminal: one row per test,
// then counts and the verdict.
func WriteConsole(r *RunReport, w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Group", "Test", "Status", "Duration"})

	for _, o := range r.Outcomes {
		dur := ""
		if o.Status != StatusSkipped {
			dur = o.Duration.Round(time.Millisecond).String()
		}
		t.AppendRow(table.Row{o.Group, o.Name, colorStatus(o.Status), dur})
	}
	t.Render()

	for _, sf := range r.SuiteFailures {
		fmt.Fprintf(w, "%s %s: %s\n",
			text.FgRed.Sprint("SUITE FAILURE"), sf.Group, sf.Reason)
	}

	verdict := text.FgGreen.Sprint("PASSED")
	if !r.Success() {
		verdict = text.FgRed.Sprint("FAILED")
	}
	fmt.Fprintf(w, "\n%s — %d/%d passed (%.1f%%), %d failed, %d skipped in %s\n",
		verdict, r.Passed, r.ExpectedTotal, r.SuccessRate*100,
		r.Failed, r.Skipped, r.Duration.Round(time.Millisecond))
}

func colorStatus(s Status) string {
	switch s {
	case StatusPassed:
		return text.FgGreen.Sprint(s)
	case StatusFailed:
		return text.FgRed.Sprint(s)
	case StatusSkipped:
		return text.FgYellow.Sprint(s)
	default:
		return string(s)
	}
}
