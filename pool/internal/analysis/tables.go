package analysis

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"
	"time"
)

// PrintTables writes the console tables of the pool report to w.
func (r *Result) PrintTables(w io.Writer, offsetThreshold float64) {
	ms := offsetThreshold * 1000

	fmt.Fprintf(w, "Outliers (offset > %.0fms): %d\n", ms, len(r.Outliers))
	tw := newTable(w)
	fmt.Fprintln(tw, "TS\tMONITOR\tOFFSET\tRTT")
	for _, s := range r.Outliers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Time.Format(time.RFC3339), s.MonitorName, num(s.Offset), num(s.RTT))
	}
	tw.Flush()

	fmt.Fprintln(w, "\nPeer Summary (samples, outliers, jitter):")
	tw = newTable(w)
	fmt.Fprintln(tw, "MONITOR\tSAMPLES\tOUTLIERS\tJITTER")
	for _, p := range r.Peers {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", p.Monitor, p.Samples, p.Outliers, num(p.Jitter))
	}
	tw.Flush()

	fmt.Fprintln(w, "\nMonitor Scoring Table:")
	tw = newTable(w)
	fmt.Fprintln(tw, "MONITOR\tMEAN_OFFSET\tJITTER\tMEDIAN_RTT\tSAMPLES\tOUTLIERS\tACCURACY\tSTABILITY\tLATENCY\tPENALTY\tSCORE")
	for _, s := range r.Scores {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, num(s.MeanAbsOffset), num(s.Jitter), num(s.MedianRTT), s.Samples, s.Outliers,
			num(s.Accuracy), num(s.Stability), num(s.Latency), num(s.OutlierPenalty), num(s.Score))
	}
	tw.Flush()

	fmt.Fprintln(w, "\nCountry-level Scoring Table:")
	tw = newTable(w)
	fmt.Fprintln(tw, "COUNTRY\tMONITORS\tSCORE")
	for _, g := range r.Countries {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", g.ID, g.Sources, num(g.Score))
	}
	tw.Flush()

	fmt.Fprintf(w, "\nCompliance Threshold Summary per Country (%% samples within %.0fms):\n", ms)
	tw = newTable(w)
	fmt.Fprintln(tw, "COUNTRY\tSAMPLES\tCOMPLIANCE_PCT")
	for _, g := range r.Compliance {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", g.ID, g.Samples, num(g.CompliancePct))
	}
	tw.Flush()
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%.6g", v)
}
