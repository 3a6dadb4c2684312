package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS cover_letter_sessions (
	id              UUID PRIMARY KEY,
	company_name    TEXT NOT NULL,
	job_title       TEXT NOT NULL,
	job_description TEXT NOT NULL DEFAULT '',
	job_url         TEXT NOT NULL DEFAULT '',
	resume_content  TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS cover_letter_questions (
	id                    BIGSERIAL PRIMARY KEY,
	session_id            UUID NOT NULL REFERENCES cover_letter_sessions(id) ON DELETE CASCADE,
	position              INT NOT NULL,
	question              TEXT NOT NULL,
	answer_history        JSONB NOT NULL DEFAULT '[]'::jsonb,
	current_version_index INT NOT NULL DEFAULT 0,
	UNIQUE (session_id, position)
);
`

// PostgresStore persists sessions in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// Connect opens a pool, verifies it and creates the tables if needed.
func Connect(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the connection pool.
func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// CreateSession implements Store.
func (p *PostgresStore) CreateSession(ctx context.Context, s *Session) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = StatusPending
	}

	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO cover_letter_sessions (id, company_name, job_title, job_description, job_url, resume_content, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING created_at, updated_at`,
			s.ID, s.CompanyName, s.JobTitle, s.JobDescription, s.JobURL, s.ResumeContent, s.Status,
		).Scan(&s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}

		for i := range s.Questions {
			q := &s.Questions[i]
			q.Position = i + 1
			if err := insertQuestion(ctx, tx, s.ID, q); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertQuestion(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID, q *Question) error {
	history, err := json.Marshal(nonNil(q.History))
	if err != nil {
		return fmt.Errorf("failed to marshal answer history: %w", err)
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO cover_letter_questions (session_id, position, question, answer_history, current_version_index)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		sessionID, q.Position, q.Text, history, q.CurrentIndex,
	).Scan(&q.ID)
	if err != nil {
		return fmt.Errorf("failed to create question %d: %w", q.Position, err)
	}
	return nil
}

// GetSession implements Store.
func (p *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	var s Session
	err := p.pool.QueryRow(ctx,
		`SELECT id, company_name, job_title, job_description, job_url, resume_content, status, created_at, updated_at
		 FROM cover_letter_sessions WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.CompanyName, &s.JobTitle, &s.JobDescription, &s.JobURL,
		&s.ResumeContent, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	rows, err := p.pool.Query(ctx,
		`SELECT id, position, question, answer_history, current_version_index
		 FROM cover_letter_questions WHERE session_id = $1 ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		s.Questions = append(s.Questions, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}
	return &s, nil
}

// AddQuestion implements Store. The session row is locked so concurrent adds
// cannot exceed limit.
func (p *PostgresStore) AddQuestion(ctx context.Context, id uuid.UUID, text string, limit int) (*Question, error) {
	var q *Question
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		var locked uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM cover_letter_sessions WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to lock session: %w", err)
		}

		var count int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM cover_letter_questions WHERE session_id = $1`, id).Scan(&count); err != nil {
			return fmt.Errorf("failed to count questions: %w", err)
		}
		if count >= limit {
			return ErrQuestionLimit
		}

		q = &Question{Position: count + 1, Text: text}
		if err := insertQuestion(ctx, tx, id, q); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE cover_letter_sessions SET updated_at = NOW() WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// AppendAnswer implements Store.
func (p *PostgresStore) AppendAnswer(ctx context.Context, id uuid.UUID, position int, answer string) (*Question, error) {
	row := p.pool.QueryRow(ctx,
		`UPDATE cover_letter_questions
		 SET answer_history = answer_history || jsonb_build_array($3::text),
		     current_version_index = jsonb_array_length(answer_history)
		 WHERE session_id = $1 AND position = $2
		 RETURNING id, position, question, answer_history, current_version_index`,
		id, position, answer,
	)
	q, err := scanQuestion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return q, nil
}

// SetStatus implements Store.
func (p *PostgresStore) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE cover_letter_sessions SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSession implements Store.
func (p *PostgresStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM cover_letter_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanQuestion(row pgx.Row) (*Question, error) {
	var q Question
	var history []byte
	if err := row.Scan(&q.ID, &q.Position, &q.Text, &history, &q.CurrentIndex); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan question: %w", err)
	}
	if err := json.Unmarshal(history, &q.History); err != nil {
		return nil, fmt.Errorf("failed to unmarshal answer history: %w", err)
	}
	return &q, nil
}

func nonNil(history []string) []string {
	if history == nil {
		return []string{}
	}
	return history
}
