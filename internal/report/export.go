package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"

	"queuelab/internal/stats"
)

// ExportCSV writes one row per channel.
func ExportCSV(snap stats.Snapshot, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{
		"stage", "channel", "stageAdmitted", "stageDropped",
		"processed", "avgProcessingMs", "p99ProcessingMs", "idleMs",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, st := range snap.Stages {
		for _, c := range st.Channels {
			record := []string{
				strconv.Itoa(st.Index + 1),
				strconv.Itoa(c.Index + 1),
				strconv.FormatUint(st.TotalRequests, 10),
				strconv.FormatUint(st.DroppedRequests, 10),
				strconv.FormatUint(c.ProcessedRequests, 10),
				strconv.FormatFloat(ms(c.AverageProcessingTime()), 'f', 2, 64),
				strconv.FormatFloat(ms(c.Service.P99), 'f', 2, 64),
				strconv.FormatInt(c.IdleTime.Milliseconds(), 10),
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
	}

	w.Flush()
	return w.Error()
}

// ExportJSON writes the whole snapshot.
func ExportJSON(snap stats.Snapshot, filename string) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
