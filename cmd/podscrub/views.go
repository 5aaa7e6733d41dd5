package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"podscrub/internal/api"
	"podscrub/internal/textutil"
)

var statusTitleCaser = cases.Title(language.Und)

func buildJobCountRows(counts map[string]int) [][]string {
	if len(counts) == 0 {
		return nil
	}
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), fmt.Sprintf("%d", counts[key])})
	}
	return rows
}

func buildJobRows(jobs []api.JobView) [][]string {
	if len(jobs) == 0 {
		return nil
	}
	sorted := make([]api.JobView, len(jobs))
	copy(sorted, jobs)

	sort.Slice(sorted, func(i, j int) bool {
		ti := parseViewTime(sorted[i].CreatedAt)
		tj := parseViewTime(sorted[j].CreatedAt)
		if ti.Equal(tj) {
			return sorted[i].ID > sorted[j].ID
		}
		return ti.After(tj)
	})

	rows := make([][]string, 0, len(sorted))
	for _, job := range sorted {
		rows = append(rows, []string{
			job.ID,
			job.PostGUID,
			formatStatusLabel(job.Status),
			formatProgress(job.Progress),
			formatDisplayTime(job.CreatedAt),
		})
	}
	return rows
}

func buildPostRows(posts []api.PostView) [][]string {
	rows := make([][]string, 0, len(posts))
	for _, post := range posts {
		title := strings.TrimSpace(post.Title)
		if title == "" {
			title = "Untitled"
		}
		rows = append(rows, []string{
			post.GUID,
			title,
			yesNo(post.Processed),
			formatDisplayTime(post.PublishedAt),
		})
	}
	return rows
}

func buildFeedRows(feeds []api.FeedView) [][]string {
	rows := make([][]string, 0, len(feeds))
	for _, feed := range feeds {
		rows = append(rows, []string{
			fmt.Sprintf("%d", feed.ID),
			feed.URL,
			feed.Title,
			formatDisplayTime(feed.LastCheckedAt),
		})
	}
	return rows
}

func buildSettingRows(settings []api.SettingView) [][]string {
	rows := make([][]string, 0, len(settings))
	for _, setting := range settings {
		rows = append(rows, []string{
			setting.Key,
			truncateValue(setting.Value, 60),
			formatDisplayTime(setting.UpdatedAt),
		})
	}
	return rows
}

// formatStatusLabel turns a snake_case status into a display label,
// e.g. "in_progress" becomes "In Progress".
func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	return statusTitleCaser.String(strings.ReplaceAll(status, "_", " "))
}

func formatProgress(progress api.JobProgress) string {
	if progress.Total <= 0 {
		return "-"
	}
	label := fmt.Sprintf("%d/%d", progress.Step, progress.Total)
	if name := strings.TrimSpace(progress.Name); name != "" {
		label += " " + name
	}
	return fmt.Sprintf("%s (%.0f%%)", label, progress.Percent)
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if t := parseViewTime(value); !t.IsZero() {
		return t.UTC().Format("2006-01-02 15:04")
	}
	return value
}

func parseViewTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}

func truncateValue(value string, max int) string {
	value = strings.TrimSpace(value)
	if max <= 3 || len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}

func yesNo(value bool) string {
	return textutil.Ternary(value, "yes", "no")
}
