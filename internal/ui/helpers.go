package ui

import (
	"fmt"
	"strings"
	"time"

	"agentchat/internal/styles"

	"github.com/mattn/go-runewidth"
)

func WrappedLineCount(value string, width int) int {
	if width <= 0 {
		return 1
	}
	lines := strings.Split(value, "\n")
	if len(lines) == 0 {
		return 1
	}
	count := 0
	for _, line := range lines {
		w := runewidth.StringWidth(line)
		if w == 0 {
			count++
			continue
		}
		count += (w-1)/width + 1
	}
	return count
}

// Preview flattens s onto one line.
func Preview(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.Join(strings.Fields(s), " ")
}

func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}

func RelativeTime(t time.Time) string {
	d := time.Since(t)
	if d < 0 {
		d = -d
	}
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 min ago"
		}
		return fmt.Sprintf("%d mins ago", mins)
	}
	if d < 24*time.Hour {
		hrs := int(d.Hours())
		if hrs == 1 {
			return "1 hr ago"
		}
		return fmt.Sprintf("%d hrs ago", hrs)
	}
	days := int(d.Hours() / 24)
	if days < 14 {
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
	weeks := days / 7
	if weeks == 1 {
		return "1 week ago"
	}
	return fmt.Sprintf("%d weeks ago", weeks)
}

// FormatDuration renders seconds as m:ss.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// FormatSize renders a byte count the way the knowledge panel lists files.
func FormatSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}

// parseTimestamp reads the backend's ISO timestamps, with or without a zone.
func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func FormatUserMessage(content string, width int, voice bool) string {
	label := styles.UserLabelStyle.Render("YOU")
	if voice {
		label += styles.AudioMarkerStyle.Render("🎤 voice")
	}
	msg := styles.UserMsgStyle.Width(width - 4).Render(content)
	return fmt.Sprintf("%s\n%s", label, msg)
}

func FormatAssistantMessage(name, content, audio string) string {
	label := styles.AssistantLabelStyle.Render(strings.ToUpper(name))
	if audio != "" {
		label += styles.AudioMarkerStyle.Render(audio)
	}
	msg := styles.AssistantMsgStyle.Render(content)
	return fmt.Sprintf("%s\n%s", label, msg)
}
