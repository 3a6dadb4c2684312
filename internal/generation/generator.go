// Package generation writes and revises cover letter answers.
package generation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/coverletter/internal/llm"
	"github.com/jonathan/coverletter/internal/prompts"
)

// Input is the context an answer is written from.
type Input struct {
	CompanyName    string
	JobTitle       string
	JobDescription string
	Resume         string
	Question       string
}

// Generator produces answers.
type Generator interface {
	// Answer writes a first answer to in.Question.
	Answer(ctx context.Context, in Input) (string, error)
	// Revise rewrites current following instruction.
	Revise(ctx context.Context, in Input, current, instruction string) (string, error)
}

// GenerateAll answers every question concurrently, at most limit at a time.
// Results keep the order of questions. The first failure cancels the rest.
func GenerateAll(ctx context.Context, gen Generator, base Input, questions []string, limit int) ([]string, error) {
	answers := make([]string, len(questions))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, question := range questions {
		g.Go(func() error {
			in := base
			in.Question = question
			answer, err := gen.Answer(gCtx, in)
			if err != nil {
				return fmt.Errorf("question %d: %w", i+1, err)
			}
			mu.Lock()
			answers[i] = answer
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return answers, nil
}

// GeminiGenerator writes answers with a language model.
type GeminiGenerator struct {
	client llm.Client
}

var _ Generator = (*GeminiGenerator)(nil)

// NewGeminiGenerator wraps client.
func NewGeminiGenerator(client llm.Client) *GeminiGenerator {
	return &GeminiGenerator{client: client}
}

// Answer implements Generator.
func (g *GeminiGenerator) Answer(ctx context.Context, in Input) (string, error) {
	prompt, err := prompts.Render(prompts.CoverLetter, prompts.AnswerQuestion, map[string]string{
		"CompanyName":    in.CompanyName,
		"JobTitle":       in.JobTitle,
		"JobDescription": orNone(in.JobDescription),
		"Resume":         in.Resume,
		"Question":       in.Question,
	})
	if err != nil {
		return "", err
	}
	return g.generate(ctx, prompt, llm.TaskDraft)
}

// Revise implements Generator.
func (g *GeminiGenerator) Revise(ctx context.Context, in Input, current, instruction string) (string, error) {
	prompt, err := prompts.Render(prompts.CoverLetter, prompts.ReviseAnswer, map[string]string{
		"CompanyName": in.CompanyName,
		"JobTitle":    in.JobTitle,
		"Resume":      in.Resume,
		"Question":    in.Question,
		"Answer":      current,
		"Revision":    instruction,
	})
	if err != nil {
		return "", err
	}
	return g.generate(ctx, prompt, llm.TaskRevise)
}

func (g *GeminiGenerator) generate(ctx context.Context, prompt string, task llm.Task) (string, error) {
	text, err := g.client.Generate(ctx, prompt, task)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("model returned an empty answer")
	}
	return text, nil
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(not provided)"
	}
	return s
}

// TemplateGenerator produces deterministic answers without a model. It is
// used for local development and tests.
type TemplateGenerator struct {
	// Delay simulates model latency.
	Delay time.Duration
}

var _ Generator = (*TemplateGenerator)(nil)

// Answer implements Generator.
func (t *TemplateGenerator) Answer(ctx context.Context, in Input) (string, error) {
	if err := t.wait(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("As a candidate for **%s** at %s, I am answering \"%s\" with experience drawn from my resume.",
		in.JobTitle, in.CompanyName, strings.TrimSpace(in.Question)), nil
}

// Revise implements Generator. A request mentioning "short" keeps the first
// sentence; anything else appends the instruction as a note.
func (t *TemplateGenerator) Revise(ctx context.Context, _ Input, current, instruction string) (string, error) {
	if err := t.wait(ctx); err != nil {
		return "", err
	}
	instruction = strings.TrimSpace(instruction)
	if strings.Contains(strings.ToLower(instruction), "short") {
		if idx := strings.Index(current, ". "); idx >= 0 {
			return current[:idx+1], nil
		}
		return current, nil
	}
	return fmt.Sprintf("%s (%s)", current, instruction), nil
}

func (t *TemplateGenerator) wait(ctx context.Context) error {
	if t.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(t.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
