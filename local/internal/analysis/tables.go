package analysis

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"
)

// PrintScores writes the per-peer compliance scoring table.
func (r *Result) PrintScores(w io.Writer) {
	fmt.Fprintln(w, "\nLocal PPS Compliance Scoring Table:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PEER\tMEAN_OFFSET\tJITTER\tSAMPLES\tOUTLIERS\tACCURACY\tSTABILITY\tPENALTY\tSCORE")
	for _, s := range r.Scores {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\n",
			s.ID, num(s.MeanAbsOffset), num(s.Jitter), s.Samples, s.Outliers,
			num(s.Accuracy), num(s.Stability), num(s.OutlierPenalty), num(s.Score))
	}
	tw.Flush()
}

// PrintCharts lists the chart files written.
func PrintCharts(w io.Writer, charts []string) {
	fmt.Fprintln(w, "Analysis complete. Plots saved:")
	for _, c := range charts {
		fmt.Fprintf(w, " - %s\n", c)
	}
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%.6g", v)
}
