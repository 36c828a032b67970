// Package util provides shared utility functions.
package util

import "strings"

// Slug converts a free-form title into a name safe for git branches and
// file paths. Lowercases, replaces runs of non-alphanumerics with a
// single hyphen, and truncates to 40 characters at a word boundary.
func Slug(title string) string {
	if title == "" {
		return "untitled"
	}

	lower := strings.ToLower(title)
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range lower {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "untitled"
	}

	if len(slug) > 40 {
		truncated := slug[:40]
		if idx := strings.LastIndex(truncated, "-"); idx > 20 {
			truncated = truncated[:idx]
		}
		slug = truncated
	}

	return slug
}
