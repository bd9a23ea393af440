// Package utils holds small presentation helpers shared by notification
// surfaces.
package utils

import (
	"fmt"
	"strings"
)

// FormatMinutes renders an incident duration for humans.
// Examples: "5m", "1h 15m", "26h".
func FormatMinutes(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	hours := minutes / 60
	rem := minutes % 60
	if rem == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, rem)
}

// TruncateText collapses text onto one line and caps it at maxLen
// characters, adding "..." when truncated.
func TruncateText(text string, maxLen int) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	if len(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	return text[:maxLen-3] + "..."
}
