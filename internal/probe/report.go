package probe

import (
	"fmt"
	"io"
	"time"

	"github.com/yndnr/wspool-go/internal/cli/output"
	"github.com/yndnr/wspool-go/pkg/wspool"
)

// ConnectionReport is the final snapshot of one connection.
type ConnectionReport struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	URL      string `json:"url" table:"wide"`
	State    string `json:"state"`
	Error    string `json:"error,omitempty"`
	Sent     int64  `json:"sent"`
	Received int64  `json:"received"`
}

// Report is the outcome of a probe run.
type Report struct {
	RunID       string             `json:"run_id,omitempty"`
	Server      string             `json:"server"`
	Total       int                `json:"total"`
	Opened      int                `json:"opened"`
	Failed      int                `json:"failed"`
	Sent        int64              `json:"sent"`
	Received    int64              `json:"received"`
	Elapsed     time.Duration      `json:"elapsed"`
	CloseError  string             `json:"close_error,omitempty"`
	Connections []ConnectionReport `json:"connections"`
}

// AllFailed reports whether every connection ended in the failed
// state. The probe exits non-zero in that case.
func (rep *Report) AllFailed() bool {
	return rep.Total > 0 && rep.Failed == rep.Total
}

// Render writes the report to w in the given format. Table output
// prints a summary block followed by the per-connection table; JSON
// and YAML emit the whole report as one document.
func (rep *Report) Render(w io.Writer, format output.Format) error {
	switch format {
	case output.FormatJSON, output.FormatYAML:
		return output.NewFormatter(format, false).Format(w, rep)
	default:
		return rep.renderTable(w)
	}
}

func (rep *Report) renderTable(w io.Writer) error {
	if rep.RunID != "" {
		fmt.Fprintf(w, "run:         %s\n", rep.RunID)
	}
	fmt.Fprintf(w, "server:      %s\n", rep.Server)
	fmt.Fprintf(w, "connections: %d total, %d opened, %d failed\n", rep.Total, rep.Opened, rep.Failed)
	fmt.Fprintf(w, "messages:    %d sent, %d received\n", rep.Sent, rep.Received)
	fmt.Fprintf(w, "elapsed:     %s\n", rep.Elapsed.Round(time.Millisecond))
	if rep.CloseError != "" {
		fmt.Fprintf(w, "close error: %s\n", rep.CloseError)
	}
	if len(rep.Connections) == 0 {
		return nil
	}
	fmt.Fprintln(w)

	f := &output.TableFormatter{}
	return f.Format(w, rep.Connections)
}

// connectionRows snapshots every connection into report rows, in
// creation order.
func connectionRows(conns []*wspool.Connection) []ConnectionReport {
	rows := make([]ConnectionReport, 0, len(conns))
	for i, c := range conns {
		info := c.Info()
		rows = append(rows, ConnectionReport{
			Index:    i + 1,
			ID:       info.ID,
			URL:      info.URL,
			State:    info.State,
			Error:    info.ErrorReason,
			Sent:     info.Sent,
			Received: info.Received,
		})
	}
	return rows
}
