package postgres

import (
	"context"
	"errors"
	"fmt"

	"careerprep/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// CoverLetterRepository stores saved cover-letter markdown.
type CoverLetterRepository struct {
	pool *pgxpool.Pool
}

func NewCoverLetterRepository(pool *pgxpool.Pool) *CoverLetterRepository {
	return &CoverLetterRepository{pool: pool}
}

func (r *CoverLetterRepository) CreateCoverLetter(ctx context.Context, userID, content string) (domain.CoverLetter, error) {
	letter := domain.CoverLetter{ID: uuid.NewString(), UserID: userID, Content: content}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO cover_letters (id, user_id, content) VALUES ($1, $2, $3) RETURNING updated_at`,
		letter.ID, userID, content,
	).Scan(&letter.UpdatedAt)
	if err != nil {
		return domain.CoverLetter{}, fmt.Errorf("insert cover letter: %w", err)
	}
	return letter, nil
}

func (r *CoverLetterRepository) UpdateCoverLetter(ctx context.Context, id, content string) (domain.CoverLetter, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.CoverLetter{}, domain.ErrCoverLetterNotFound
	}
	letter := domain.CoverLetter{ID: id, Content: content}
	err := r.pool.QueryRow(ctx,
		`UPDATE cover_letters SET content = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING user_id, updated_at`,
		id, content,
	).Scan(&letter.UserID, &letter.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CoverLetter{}, domain.ErrCoverLetterNotFound
	}
	if err != nil {
		return domain.CoverLetter{}, fmt.Errorf("update cover letter: %w", err)
	}
	return letter, nil
}

func (r *CoverLetterRepository) GetCoverLetter(ctx context.Context, id string) (domain.CoverLetter, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.CoverLetter{}, domain.ErrCoverLetterNotFound
	}
	letter := domain.CoverLetter{ID: id}
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, content, updated_at FROM cover_letters WHERE id = $1`,
		id,
	).Scan(&letter.UserID, &letter.Content, &letter.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CoverLetter{}, domain.ErrCoverLetterNotFound
	}
	if err != nil {
		return domain.CoverLetter{}, fmt.Errorf("load cover letter: %w", err)
	}
	return letter, nil
}
