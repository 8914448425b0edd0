package status

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/agentq/internal/errors"
	"github.com/Iron-Ham/agentq/internal/util"
)

// Output formats accepted by Render.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Table cells longer than these are cut short.
const (
	maxDescriptionWidth = 40
	maxDependsWidth     = 72
	maxErrorWidth       = 60
)

// RenderOptions controls the table view.
type RenderOptions struct {
	// Now is used for ages and staleness. Defaults to the snapshot time.
	Now time.Time
	// StaleAfter flags running tasks older than this. Zero disables it.
	StaleAfter time.Duration
	// Color forces styled (true) or plain (false) output. When nil, output is
	// styled only if w is a terminal.
	Color *bool
}

// Render writes snap to w in the given format.
func Render(w io.Writer, snap *Snapshot, format string, opts RenderOptions) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case FormatYAML:
		return renderYAML(w, snap)
	case FormatTable, "":
		styled := isTerminal(w)
		if opts.Color != nil {
			styled = *opts.Color
		}
		_, err := io.WriteString(w, Table(snap, opts, styled))
		return err
	default:
		return errors.NewValidationError("unknown output format").
			WithField("output").WithValue(format)
	}
}

// renderYAML goes through JSON so payloads render as structured data and
// field names match the published JSON.
func renderYAML(w io.Writer, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Table renders snap as a human-readable table.
func Table(snap *Snapshot, opts RenderOptions, styled bool) string {
	pal := plainPalette()
	if styled {
		pal = styledPalette()
	}
	now := opts.Now
	if now.IsZero() {
		now = snap.GeneratedAt
	}

	var b strings.Builder
	b.WriteString(pal.title.Render("agentq status"))
	b.WriteString(pal.muted.Render("  " + snap.GeneratedAt.UTC().Format(time.RFC3339)))
	b.WriteString("\n")

	c := snap.Counts
	b.WriteString(fmt.Sprintf("pending %d  running %d  %s  %s\n",
		c.Pending, c.Running,
		pal.ok.Render(fmt.Sprintf("completed %d", c.Completed)),
		pal.err.Render(fmt.Sprintf("failed %d", c.Failed))))
	if snap.Skipped > 0 || snap.Duplicates > 0 {
		b.WriteString(pal.warning.Render(fmt.Sprintf("skipped %d unreadable, %d duplicates", snap.Skipped, snap.Duplicates)))
		b.WriteString("\n")
		for _, name := range snap.SkippedFiles {
			b.WriteString(pal.muted.Render("  " + name))
			b.WriteString("\n")
		}
	}

	section := func(title string, headers []string, rows [][]string) {
		if len(rows) == 0 {
			return
		}
		b.WriteString("\n")
		b.WriteString(pal.title.Render(title))
		b.WriteString("\n")
		b.WriteString(grid(pal, headers, rows))
	}

	var rows [][]string
	for _, rec := range snap.Running {
		age := rec.RunningFor(now).Truncate(time.Second).String()
		if Stale(rec, now, opts.StaleAfter) {
			age = pal.warning.Render(age + " stale")
		}
		rows = append(rows, []string{rec.ID, string(rec.Type), fmt.Sprint(rec.Priority), age, rec.ClaimedBy})
	}
	section("RUNNING", []string{"ID", "TYPE", "PRI", "AGE", "WORKER"}, rows)

	rows = nil
	for _, rec := range snap.Pending {
		rows = append(rows, []string{rec.ID, string(rec.Type), fmt.Sprint(rec.Priority),
			util.TruncateString(rec.Description, maxDescriptionWidth),
			util.TruncateString(strings.Join(rec.Dependencies, ","), maxDependsWidth)})
	}
	section("PENDING", []string{"ID", "TYPE", "PRI", "DESCRIPTION", "DEPENDS ON"}, rows)

	rows = nil
	for _, rec := range snap.RecentCompleted {
		rows = append(rows, []string{rec.ID, string(rec.Type), formatTime(rec.CompletedAt), rec.Duration().Truncate(time.Second).String()})
	}
	section("RECENTLY COMPLETED", []string{"ID", "TYPE", "COMPLETED", "TOOK"}, rows)

	rows = nil
	for _, rec := range snap.Failed {
		rows = append(rows, []string{rec.ID, string(rec.Type), formatTime(rec.CompletedAt), pal.err.Render(util.TruncateANSI(util.SingleLine(rec.Error), maxErrorWidth))})
	}
	section("FAILED", []string{"ID", "TYPE", "FAILED", "ERROR"}, rows)

	rows = nil
	for _, bt := range snap.Blocked {
		rows = append(rows, []string{bt.ID,
			util.TruncateString(strings.Join(bt.Failed, ","), maxDependsWidth),
			pal.warning.Render(util.TruncateString(strings.Join(bt.Missing, ","), maxDependsWidth))})
	}
	section("BLOCKED", []string{"ID", "FAILED DEPS", "MISSING DEPS"}, rows)

	return b.String()
}

// grid lays out rows in left-aligned columns sized to the widest cell.
func grid(pal palette, headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder
	line := func(cells []string, style lipgloss.Style) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			if i == len(cells)-1 {
				parts[i] = style.Render(cell)
				continue
			}
			parts[i] = style.Render(cell) + strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
		}
		b.WriteString(strings.TrimRight(strings.Join(parts, "  "), " "))
		b.WriteString("\n")
	}
	line(headers, pal.header)
	for _, row := range rows {
		line(row, pal.cell)
	}
	return b.String()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}
