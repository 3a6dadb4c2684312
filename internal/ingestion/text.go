// Package ingestion turns job postings, from a URL or a file, into the
// description text sent with a new session.
package ingestion

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	innerSpace  = regexp.MustCompile(`[ \t]+`)
	blankStreak = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalizes line endings and spacing. Headings and bullets keep
// their markers, and runs of blank lines collapse to one.
func CleanText(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = cleanLine(line)
	}
	return strings.TrimSpace(blankStreak.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

func cleanLine(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return ""
	}
	for _, bullet := range []string{"• ", "· ", "* "} {
		if strings.HasPrefix(trimmed, bullet) {
			trimmed = "- " + strings.TrimPrefix(trimmed, bullet)
			break
		}
	}
	return innerSpace.ReplaceAllString(trimmed, " ")
}

// FromFile reads and cleans a posting saved as text.
func FromFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("job posting file not found: %w", err)
		}
		return "", fmt.Errorf("failed to read job posting file: %w", err)
	}
	text := CleanText(string(content))
	if text == "" {
		return "", fmt.Errorf("job posting file %s is empty", path)
	}
	return text, nil
}
