package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"queuelab/internal/report"
	"queuelab/internal/runner"
	"queuelab/internal/stats"
)

type result struct {
	snap stats.Snapshot
	err  error
}

// Start runs r headless, printing a progress line for every update until the
// run finishes, then the final report. updates must be the channel r was
// built with; it may be nil.
func Start(ctx context.Context, r *runner.Runner, updates runner.ProgressChan, w io.Writer, outPrefix string) (stats.Snapshot, error) {
	printHeader(w, r.Cfg)

	done := make(chan result, 1)
	go func() {
		snap, err := r.Run(ctx)
		done <- result{snap, err}
	}()

	for {
		select {
		case p := <-updates:
			printProgress(w, p)
		case res := <-done:
			if res.err != nil {
				return res.snap, res.err
			}
			fmt.Fprintf(w, "\r%s 100%% | %s | Workers joined%s\n", progressBar(1, 20), r.State(), strings.Repeat(" ", 30))
			if err := report.Render(w, res.snap); err != nil {
				return res.snap, err
			}
			if err := handleAutoReport(w, res.snap, outPrefix); err != nil {
				return res.snap, err
			}
			return res.snap, nil
		}
	}
}

func printHeader(w io.Writer, cfg runner.Config) {
	fmt.Fprintf(w, "\nSTARTING QUEUELAB SIMULATION\n")
	fmt.Fprintf(w, "======================================================================\n")
	fmt.Fprintf(w, "Stages     : %d (%d channels total)\n", len(cfg.Stages), cfg.TotalChannels())
	for i, s := range cfg.Stages {
		fmt.Fprintf(w, "  Stage %d  : %d channels, buffer %d\n", i+1, s.Channels, s.Capacity)
	}
	fmt.Fprintf(w, "Interval   : %s\n", cfg.GenerationInterval)
	fmt.Fprintf(w, "Processing : %s - %s\n", cfg.MinProcessing, cfg.MaxProcessing)
	fmt.Fprintf(w, "Duration   : %s\n", cfg.Duration)
	fmt.Fprintf(w, "======================================================================\n\n")
}

func printProgress(w io.Writer, p runner.Progress) {
	pct := 0.0
	if p.Duration > 0 {
		pct = p.Elapsed.Seconds() / p.Duration.Seconds()
	}
	if pct > 1 {
		pct = 1
	}

	var admitted, dropped, depth uint64
	for _, st := range p.Stages {
		dropped += st.Dropped
		depth += uint64(st.Depth)
	}
	if len(p.Stages) > 0 {
		admitted = p.Stages[0].Admitted
	}
	var completed uint64
	if n := len(p.Stages); n > 0 {
		completed = p.Stages[n-1].Processed
	}

	fmt.Fprintf(w, "\r%s %3.0f%% | %s/%s | In: %d | Done: %d | Drop: %d | Queued: %d",
		progressBar(pct, 20), pct*100,
		p.Elapsed.Round(time.Second), p.Duration,
		admitted, completed, dropped, depth,
	)
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

func handleAutoReport(w io.Writer, snap stats.Snapshot, prefix string) error {
	if prefix == "" {
		return nil
	}

	fmt.Fprintf(w, "\nGenerating reports with prefix: %s\n", prefix)
	if err := report.ExportCSV(snap, prefix+".csv"); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	if err := report.ExportJSON(snap, prefix+".json"); err != nil {
		return fmt.Errorf("export json: %w", err)
	}
	fmt.Fprintf(w, "Reports saved to %s.{csv,json}\n", prefix)
	return nil
}
