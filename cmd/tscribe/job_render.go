package main

import (
	"fmt"
	"strings"
	"time"

	"tscribe/internal/api"
)

const titleColumnWidth = 40

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func clip(value string, max int) string {
	if len(value) <= max {
		return value
	}
	if max <= 1 {
		return value[:max]
	}
	return value[:max-1] + "…"
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func formatProgress(view *api.JobView) string {
	switch view.Status {
	case "done":
		return "100%"
	case "failed", "queued":
		return "-"
	default:
		return fmt.Sprintf("%d%%", view.Progress)
	}
}

func jobRow(view *api.JobView) []string {
	title := view.Title
	if title == "" {
		title = view.URL
	}
	return []string{
		shortID(view.ID),
		view.Status,
		formatProgress(view),
		clip(title, titleColumnWidth),
		formatDuration(view.DurationSeconds),
		view.CreatedAt.Local().Format("2006-01-02 15:04"),
	}
}

func jobDetails(view *api.JobView) [][]string {
	rows := [][]string{
		{"ID", view.ID},
		{"URL", view.URL},
		{"Status", view.Status},
		{"Progress", formatProgress(view)},
	}
	if view.Title != "" {
		rows = append(rows, []string{"Title", view.Title})
	}
	if view.Language != "" {
		rows = append(rows, []string{"Requested language", view.Language})
	}
	if view.DetectedLanguage != "" {
		rows = append(rows, []string{"Detected language", view.DetectedLanguage})
	}
	if view.DurationSeconds > 0 {
		rows = append(rows, []string{"Duration", formatDuration(view.DurationSeconds)})
	}
	if view.Source != "" {
		rows = append(rows, []string{"Source", view.Source})
	}
	if view.Error != "" {
		rows = append(rows, []string{"Error", view.Error})
	}
	rows = append(rows, []string{"Created", view.CreatedAt.Local().Format(time.RFC1123)})
	if view.CompletedAt != nil {
		rows = append(rows, []string{"Completed", view.CompletedAt.Local().Format(time.RFC1123)})
	}
	return rows
}

func renderJobDetails(view *api.JobView) string {
	var b strings.Builder
	for _, row := range jobDetails(view) {
		fmt.Fprintf(&b, "%-20s %s\n", row[0]+":", row[1])
	}
	return b.String()
}
