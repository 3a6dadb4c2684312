package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/coverletter/internal/generation"
	"github.com/jonathan/coverletter/internal/store"
	"github.com/jonathan/coverletter/internal/types"
)

const maxRequestBytes = 1 << 20

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(v); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// sessionID parses the {id} path value. Malformed ids are reported as
// unknown sessions.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusNotFound, "session not found")
		return uuid.Nil, false
	}
	return id, true
}

func inputFor(sess *store.Session) generation.Input {
	return generation.Input{
		CompanyName:    sess.CompanyName,
		JobTitle:       sess.JobTitle,
		JobDescription: sess.JobDescription,
		Resume:         sess.ResumeContent,
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req types.CreateSessionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.validationError(w, err)
		return
	}

	sess := &store.Session{
		CompanyName:    strings.TrimSpace(req.JobInfo.CompanyName),
		JobTitle:       strings.TrimSpace(req.JobInfo.JobTitle),
		JobDescription: req.JobInfo.Description,
		JobURL:         req.JobInfo.JobURL,
		ResumeContent:  req.ResumeContent,
		Status:         store.StatusPending,
		Questions:      []store.Question{{Text: strings.TrimSpace(req.Question)}},
	}
	if err := s.store.CreateSession(r.Context(), sess); err != nil {
		s.storeError(w, "create session", err)
		return
	}

	s.logger.Printf("[server] session %s created for %s at %s", sess.ID, sess.JobTitle, sess.CompanyName)
	s.generateInitial(sess)
	s.jsonResponse(w, http.StatusCreated, types.CreateSessionResponse{SessionID: sess.ID.String()})
}

// generateInitial answers every question of sess in the background and marks
// the session completed, or failed when any answer could not be written.
func (s *Server) generateInitial(sess *store.Session) {
	questions := make([]string, len(sess.Questions))
	for i, q := range sess.Questions {
		questions[i] = q.Text
	}
	base := inputFor(sess)
	id := sess.ID

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(s.bgCtx, s.cfg.GenerationTimeout)
		defer cancel()

		status := store.StatusCompleted
		answers, err := generation.GenerateAll(ctx, s.gen, base, questions, s.cfg.GenerationConcurrency)
		if err != nil {
			s.logger.Printf("[server] session %s: generation failed: %v", id, err)
			status = store.StatusFailed
		}
		for i, answer := range answers {
			if _, err := s.store.AppendAnswer(ctx, id, i+1, answer); err != nil {
				s.logger.Printf("[server] session %s: failed to store answer %d: %v", id, i+1, err)
				status = store.StatusFailed
				break
			}
		}
		if err := s.store.SetStatus(context.WithoutCancel(ctx), id, status); err != nil {
			s.logger.Printf("[server] session %s: failed to set status %s: %v", id, status, err)
			return
		}
		s.logger.Printf("[server] session %s %s", id, status)
	}()
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	sess, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		s.storeError(w, "get session", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, payloadFor(sess))
}

// payloadFor renders a stored session as a poll response. Answer histories
// are sent as JSON-encoded strings.
func payloadFor(sess *store.Session) types.SessionPayload {
	completed := sess.Status == store.StatusCompleted
	payload := types.SessionPayload{
		SessionID:   sess.ID.String(),
		CompanyName: sess.CompanyName,
		JobTitle:    sess.JobTitle,
		Status:      sess.Status,
		IsCompleted: &completed,
		Questions:   make([]types.QuestionPayload, 0, len(sess.Questions)),
	}
	for _, q := range sess.Questions {
		qp := types.QuestionPayload{
			ID:       q.ID,
			Question: q.Text,
			Answer:   q.Answer(),
		}
		if len(q.History) > 0 {
			encoded, _ := json.Marshal(q.History)
			qp.AnswerHistory, _ = json.Marshal(string(encoded))
			current := q.CurrentIndex
			qp.CurrentVersionIndex = &current
		}
		payload.Questions = append(payload.Questions, qp)
	}
	return payload
}

func (s *Server) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	var req types.AddQuestionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.validationError(w, err)
		return
	}

	sess, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		s.storeError(w, "add question", err)
		return
	}
	if len(sess.Questions) >= s.cfg.MaxQuestions {
		s.storeError(w, "add question", store.ErrQuestionLimit)
		return
	}

	text := strings.TrimSpace(req.Question)
	in := inputFor(sess)
	in.Question = text
	answer, err := s.gen.Answer(r.Context(), in)
	if err != nil {
		s.generationError(w, "add question", err)
		return
	}

	q, err := s.store.AddQuestion(r.Context(), id, text, s.cfg.MaxQuestions)
	if err != nil {
		s.storeError(w, "add question", err)
		return
	}
	if _, err := s.store.AppendAnswer(r.Context(), id, q.Position, answer); err != nil {
		s.storeError(w, "add question", err)
		return
	}

	s.logger.Printf("[server] session %s: question %d added", id, q.Position)
	s.jsonResponse(w, http.StatusCreated, types.AddQuestionResponse{
		ID:       q.ID,
		Question: q.Text,
		Answer:   answer,
	})
}

func (s *Server) handleRevise(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	position, err := strconv.Atoi(r.PathValue("position"))
	if err != nil || position < 1 {
		s.errorResponse(w, http.StatusBadRequest, "invalid question position")
		return
	}
	var req types.ReviseRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.validationError(w, err)
		return
	}

	sess, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		s.storeError(w, "revise", err)
		return
	}
	if position > len(sess.Questions) {
		s.errorResponse(w, http.StatusBadRequest, "invalid question position")
		return
	}
	q := sess.Questions[position-1]
	current := q.Answer()
	if current == "" {
		s.errorResponse(w, http.StatusConflict, "answer is still being generated")
		return
	}

	in := inputFor(sess)
	in.Question = q.Text
	revised, err := s.gen.Revise(r.Context(), in, current, strings.TrimSpace(req.RevisionRequest))
	if err != nil {
		s.generationError(w, "revise", err)
		return
	}
	updated, err := s.store.AppendAnswer(r.Context(), id, position, revised)
	if err != nil {
		s.storeError(w, "revise", err)
		return
	}

	s.logger.Printf("[server] session %s: question %d revised to version %d", id, position, updated.CurrentIndex+1)
	s.jsonResponse(w, http.StatusOK, types.ReviseResponse{RevisedAnswer: revised})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteSession(r.Context(), id); err != nil {
		s.storeError(w, "delete session", err)
		return
	}
	s.logger.Printf("[server] session %s deleted", id)
	w.WriteHeader(http.StatusNoContent)
}
