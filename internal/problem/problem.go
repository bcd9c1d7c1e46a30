package problem

import (
	"context"
	"strings"
	"unicode/utf8"
)

const (
	DefaultTitle       = "Unknown Problem"
	DefaultDescription = "Could not find description."
	DefaultCode        = "// No code found. Please ensure code is visible in the editor."

	// MaxDescriptionBytes caps the description handed to prompts.
	MaxDescriptionBytes = 3000
)

// Snapshot is a point-in-time read of a coding problem.
type Snapshot struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Code        string `json:"code"`
}

// Supplier produces the current problem snapshot.
type Supplier interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Static is a Supplier that always returns the same snapshot.
type Static Snapshot

func (s Static) Snapshot(_ context.Context) (Snapshot, error) {
	return Normalize(Snapshot(s)), nil
}

// Normalize fills empty fields with placeholder text and flattens the
// description onto one line.
func Normalize(s Snapshot) Snapshot {
	if strings.TrimSpace(s.Title) == "" {
		s.Title = DefaultTitle
	} else {
		s.Title = strings.TrimSpace(s.Title)
	}

	if strings.TrimSpace(s.Description) == "" {
		s.Description = DefaultDescription
	} else {
		s.Description = truncate(collapseNewlines(s.Description), MaxDescriptionBytes)
	}

	if strings.TrimSpace(s.Code) == "" {
		s.Code = DefaultCode
	}
	return s
}

// collapseNewlines replaces every run of line breaks with a single space.
func collapseNewlines(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inBreak := false
	for _, r := range s {
		if r == '\n' || r == '\r' {
			if !inBreak {
				b.WriteByte(' ')
			}
			inBreak = true
			continue
		}
		inBreak = false
		b.WriteRune(r)
	}
	return b.String()
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
