package workspace

import "github.com/jonathan/coverletter/internal/answers"

// View is a read-only snapshot of the workspace for rendering.
type View struct {
	SessionID      string
	CompanyName    string
	JobTitle       string
	Status         string
	Active         int
	CanAddQuestion bool
	Deleted        bool
	Questions      []QuestionView
}

// QuestionView describes one question as the user sees it.
type QuestionView struct {
	Position      int
	ID            int
	Text          string
	DisplayText   string
	DisplayLength int
	VersionCount  int
	CurrentIndex  int
	HasUndo       bool
	HasRedo       bool
	Draft         string
}

// View builds the current view model.
func (w *Workspace) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	v := View{
		SessionID:      w.sessionID,
		CompanyName:    w.companyName,
		JobTitle:       w.jobTitle,
		Status:         w.status,
		Active:         w.active,
		CanAddQuestion: !w.deleted && len(w.questions) < MaxQuestions,
		Deleted:        w.deleted,
		Questions:      make([]QuestionView, 0, len(w.questions)),
	}
	for i, q := range w.questions {
		v.Questions = append(v.Questions, QuestionView{
			Position:      i + 1,
			ID:            q.ID,
			Text:          q.Text,
			DisplayText:   answers.StripMarkdownBold(q.DisplayText()),
			DisplayLength: q.DisplayLength(),
			VersionCount:  q.VersionCount(),
			CurrentIndex:  q.CurrentIndex,
			HasUndo:       q.HasUndo(),
			HasRedo:       q.HasRedo(),
			Draft:         w.drafts[i+1],
		})
	}
	return v
}
