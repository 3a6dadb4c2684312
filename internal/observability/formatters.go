// Package observability renders session state for the command line.
package observability

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/coverletter/internal/ingestion"
	"github.com/jonathan/coverletter/internal/poller"
	"github.com/jonathan/coverletter/internal/workspace"
)

// boxWidth is the outer width of a printed box.
const boxWidth = 72

const innerWidth = boxWidth - 4

// Printer writes boxed summaries.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a Printer writing to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

//nolint:errcheck // terminal output; nothing to recover
func (p *Printer) printBox(title, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", pad(title))
	fmt.Fprintf(p.out, "├%s┤\n", border)
	for _, line := range strings.Split(content, "\n") {
		for _, part := range wrap(line, innerWidth) {
			fmt.Fprintf(p.out, "│ %s │\n", pad(part))
		}
	}
	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// pad right-pads s to the inner width, counting runes.
func pad(s string) string {
	if n := utf8.RuneCountInString(s); n < innerWidth {
		return s + strings.Repeat(" ", innerWidth-n)
	}
	return s
}

// wrap breaks line at spaces so no piece exceeds width runes. Words longer
// than width are split.
func wrap(line string, width int) []string {
	if utf8.RuneCountInString(line) <= width {
		return []string{line}
	}
	var out []string
	var current []rune
	for _, word := range strings.Fields(line) {
		w := []rune(word)
		for len(w) > width {
			if len(current) > 0 {
				out = append(out, string(current))
				current = nil
			}
			out = append(out, string(w[:width]))
			w = w[width:]
		}
		switch {
		case len(current) == 0:
			current = w
		case len(current)+1+len(w) <= width:
			current = append(append(current, ' '), w...)
		default:
			out = append(out, string(current))
			current = w
		}
	}
	if len(current) > 0 {
		out = append(out, string(current))
	}
	return out
}

// PrintSession prints every question of a session with its current answer.
func (p *Printer) PrintSession(v workspace.View) {
	var sb strings.Builder
	if v.CompanyName != "" || v.JobTitle != "" {
		fmt.Fprintf(&sb, "Role:     %s at %s\n", v.JobTitle, v.CompanyName)
	}
	if v.Status != "" {
		fmt.Fprintf(&sb, "Status:   %s\n", v.Status)
	}
	if v.Deleted {
		sb.WriteString("Session deleted\n")
	}

	for i, q := range v.Questions {
		sb.WriteString("\n")
		marker := " "
		if i == v.Active {
			marker = "▸"
		}
		fmt.Fprintf(&sb, "%s Q%d. %s\n", marker, q.Position, q.Text)
		fmt.Fprintf(&sb, "  version %d/%d · %d chars%s\n", q.CurrentIndex+1, q.VersionCount, q.DisplayLength, navHint(q))
		sb.WriteString("\n")
		if q.DisplayText == "" {
			sb.WriteString("  (no answer yet)\n")
		} else {
			sb.WriteString(q.DisplayText + "\n")
		}
		if q.Draft != "" {
			fmt.Fprintf(&sb, "  unsent revision: %s\n", q.Draft)
		}
	}

	if v.CanAddQuestion {
		fmt.Fprintf(&sb, "\nYou can add %d more question(s).", workspace.MaxQuestions-len(v.Questions))
	}
	p.printBox("SESSION "+v.SessionID, strings.TrimRight(sb.String(), "\n"))
}

func navHint(q workspace.QuestionView) string {
	switch {
	case q.HasUndo && q.HasRedo:
		return " · undo/redo"
	case q.HasUndo:
		return " · undo"
	case q.HasRedo:
		return " · redo"
	default:
		return ""
	}
}

// PrintPollResult summarizes how a poll ended.
func (p *Printer) PrintPollResult(res poller.Result) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Session:  %s\n", res.SessionID)
	fmt.Fprintf(&sb, "State:    %s after %d tick(s)\n", res.State, res.Ticks)
	if res.Err != nil {
		fmt.Fprintf(&sb, "Error:    %v\n", res.Err)
	}
	if len(res.Questions) > 0 {
		fmt.Fprintf(&sb, "Answers:  %d\n", len(res.Questions))
	}
	p.printBox("GENERATION", strings.TrimRight(sb.String(), "\n"))
}

// PrintPosting summarizes an ingested job posting.
func (p *Printer) PrintPosting(posting *ingestion.Posting) {
	if posting == nil {
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "URL:      %s\n", posting.URL)
	fmt.Fprintf(&sb, "Platform: %s\n", posting.Platform)
	if posting.Title != "" {
		fmt.Fprintf(&sb, "Title:    %s\n", posting.Title)
	}
	if posting.Company != "" {
		fmt.Fprintf(&sb, "Company:  %s\n", posting.Company)
	}
	fmt.Fprintf(&sb, "Text:     %d chars", utf8.RuneCountInString(posting.Text))
	if posting.Rendered {
		sb.WriteString(" (browser)")
	}
	fmt.Fprintf(&sb, "\n\n%s", posting.Summary(200))
	p.printBox("JOB POSTING", sb.String())
}

// PrintShare prints a share link for a session.
func (p *Printer) PrintShare(sessionID, token, link string) {
	p.printBox("SHARE", fmt.Sprintf("Session:  %s\nToken:    %s\nLink:     %s", sessionID, token, link))
}
