package report

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"gonum.org/v1/gonum/stat"

	"queuelab/internal/stats"
)

// Balance describes how evenly a stage spread work over its channels.
type Balance struct {
	Mean   float64
	StdDev float64
}

// ChannelBalance returns the mean and sample standard deviation of the
// processed counts of st's channels. A single channel has zero deviation.
func ChannelBalance(st stats.StageStats) Balance {
	if len(st.Channels) == 0 {
		return Balance{}
	}
	counts := make([]float64, len(st.Channels))
	for i, c := range st.Channels {
		counts[i] = float64(c.ProcessedRequests)
	}
	if len(counts) < 2 {
		return Balance{Mean: counts[0]}
	}
	mean, std := stat.MeanStdDev(counts, nil)
	return Balance{Mean: mean, StdDev: std}
}

// Render writes the human-readable completion report. Output depends only on
// snap, so rendering the same snapshot twice yields identical bytes.
func Render(w io.Writer, snap stats.Snapshot) error {
	var b bytes.Buffer

	b.WriteString("\nSystem Statistics:\n")
	for _, st := range snap.Stages {
		bal := ChannelBalance(st)
		fmt.Fprintf(&b, "\nStage %d:\n", st.Index+1)
		fmt.Fprintf(&b, "Total Requests: %d\n", st.TotalRequests)
		fmt.Fprintf(&b, "Dropped Requests: %d\n", st.DroppedRequests)
		fmt.Fprintf(&b, "Abandoned Requests: %d\n", st.Abandoned)
		fmt.Fprintf(&b, "Residual Requests: %d\n", st.Residual)
		fmt.Fprintf(&b, "Channel Balance: mean %.2f, stddev %.2f\n", bal.Mean, bal.StdDev)

		for _, c := range st.Channels {
			fmt.Fprintf(&b, "Channel %d:\n", c.Index+1)
			fmt.Fprintf(&b, "  Processed Requests: %d\n", c.ProcessedRequests)
			fmt.Fprintf(&b, "  Average Processing Time: %.2f ms\n", ms(c.AverageProcessingTime()))
			fmt.Fprintf(&b, "  P99 Processing Time: %.2f ms\n", ms(c.Service.P99))
			fmt.Fprintf(&b, "  Idle Time: %d ms\n", c.IdleTime.Milliseconds())
		}
	}

	fmt.Fprintf(&b, "\nCompleted Requests: %d\n", snap.Completed())
	if snap.Sojourn.Count > 0 {
		fmt.Fprintf(&b, "End-to-End Latency: avg %.2f ms | p50 %.2f ms | p99 %.2f ms | max %.2f ms\n",
			ms(snap.Sojourn.Mean), ms(snap.Sojourn.P50), ms(snap.Sojourn.P99), ms(snap.Sojourn.Max))
	}

	_, err := w.Write(b.Bytes())
	return err
}

// String renders snap into a string.
func String(snap stats.Snapshot) string {
	var b bytes.Buffer
	_ = Render(&b, snap)
	return b.String()
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
