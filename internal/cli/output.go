package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"observe/dashboard/internal/model"
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	borderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)
)

// render writes v as JSON or YAML, or the given rows as a table.
func render(w io.Writer, v any, headers []string, rows [][]string) error {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(borderStyle).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			}).
			Headers(headers...).
			Rows(rows...)
		_, err := fmt.Fprintln(w, t.Render())
		return err
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
}

func renderMeta(w io.Writer, meta model.ListMeta) {
	if outputFormat != "table" && outputFormat != "" {
		return
	}
	fmt.Fprintln(w, metaStyle.Render(fmt.Sprintf("page %d of %d, %d shown", meta.Page, meta.PageCount, meta.Count)))
}

// done reports a completed mutation in table mode.
func done(w io.Writer, msg string) {
	if outputFormat == "table" || outputFormat == "" {
		fmt.Fprintln(w, successStyle.Render(msg))
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

func formatLength(meters float64) string {
	if meters >= 1000 {
		return strconv.FormatFloat(meters/1000, 'f', 2, 64) + " km"
	}
	return strconv.FormatFloat(meters, 'f', 0, 64) + " m"
}

func traceRows(traces []model.Trace) [][]string {
	rows := make([][]string, 0, len(traces))
	for _, t := range traces {
		p := t.Properties
		rows = append(rows, []string{p.ID, strconv.FormatInt(p.OwnerID, 10), p.Description, formatLength(p.Length), formatTime(p.RecordedAt)})
	}
	return rows
}

func photoRows(photos []model.Photo) [][]string {
	rows := make([][]string, 0, len(photos))
	for _, p := range photos {
		rows = append(rows, []string{p.ID, strconv.FormatInt(p.OwnerID, 10), p.Description, p.OsmElement, formatTime(p.CreatedAt)})
	}
	return rows
}

func userRows(users []model.User) [][]string {
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{
			strconv.FormatInt(u.OsmID, 10), u.OsmDisplayName, strconv.FormatBool(u.IsAdmin),
			strconv.Itoa(u.Traces), strconv.Itoa(u.Photos),
		})
	}
	return rows
}

var (
	traceHeaders = []string{"ID", "OWNER", "DESCRIPTION", "LENGTH", "RECORDED"}
	photoHeaders = []string{"ID", "OWNER", "DESCRIPTION", "OSM ELEMENT", "CREATED"}
	userHeaders  = []string{"OSM ID", "NAME", "ADMIN", "TRACES", "PHOTOS"}
)
