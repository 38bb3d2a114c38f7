package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizroom-service/internal/domain"
)

// QuizLoader loads catalog quizzes from Postgres. Questions are stored as a
// JSONB array in the same shape rooms embed them.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var (
		title string
		raw   []byte
	)
	err := l.pool.QueryRow(ctx, `SELECT title, questions FROM quizzes WHERE id=$1`, quizID).Scan(&title, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	quiz := domain.Quiz{ID: quizID, Title: title}
	if err := json.Unmarshal(raw, &quiz.Questions); err != nil {
		return domain.Quiz{}, fmt.Errorf("%w: %v", domain.ErrInvalidQuiz, err)
	}
	return quiz, nil
}

// SaveQuiz inserts or replaces a catalog quiz.
func (l *QuizLoader) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	if err := quiz.Validate(); err != nil {
		return err
	}
	questions, err := json.Marshal(quiz.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO quizzes (id, title, questions) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, questions = EXCLUDED.questions`,
		quiz.ID, quiz.Title, string(questions))
	if err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}
