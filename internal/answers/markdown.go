package answers

import "strings"

const boldMarker = "**"

// StripMarkdownBold removes every **...** wrapper and keeps the inner text.
// A pair never spans a line break, and a ** without a partner on its line is
// left untouched.
func StripMarkdownBold(text string) string {
	if !strings.Contains(text, boldMarker) {
		return text
	}

	var sb strings.Builder
	sb.Grow(len(text))

	rest := text
	for {
		open := strings.Index(rest, boldMarker)
		if open < 0 {
			break
		}
		end := strings.Index(rest[open+len(boldMarker):], boldMarker)
		if end < 0 {
			break
		}
		inner := rest[open+len(boldMarker) : open+len(boldMarker)+end]
		if strings.Contains(inner, "\n") {
			sb.WriteString(rest[:open+1])
			rest = rest[open+1:]
			continue
		}
		sb.WriteString(rest[:open])
		sb.WriteString(inner)
		rest = rest[open+2*len(boldMarker)+end:]
	}
	sb.WriteString(rest)
	return sb.String()
}
