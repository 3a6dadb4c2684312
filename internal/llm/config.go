// Package llm wraps the language model used to write cover letter answers.
package llm

// Task selects which model handles a request.
type Task string

const (
	// TaskDraft writes a first answer to a question.
	TaskDraft Task = "draft"
	// TaskRevise rewrites an existing answer following a user instruction.
	TaskRevise Task = "revise"
)

// Config maps tasks to Gemini model names and sampling settings.
type Config struct {
	Models      map[Task]string
	Temperature float32
	MaxTokens   int32
}

// DefaultConfig returns the default Gemini configuration.
func DefaultConfig() *Config {
	return &Config{
		Models: map[Task]string{
			TaskDraft:  "gemini-2.5-flash",
			TaskRevise: "gemini-2.5-flash",
		},
		Temperature: 0.7,
		MaxTokens:   1024,
	}
}

// Model returns the model for task, falling back to the draft model.
func (c *Config) Model(task Task) string {
	if model, ok := c.Models[task]; ok && model != "" {
		return model
	}
	return c.Models[TaskDraft]
}
