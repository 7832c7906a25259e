package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"careerprep/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
)

// AssessmentRepository stores quiz results with questions and answers as JSONB.
type AssessmentRepository struct {
	pool *pgxpool.Pool
}

func NewAssessmentRepository(pool *pgxpool.Pool) *AssessmentRepository {
	return &AssessmentRepository{pool: pool}
}

func (r *AssessmentRepository) SaveResult(ctx context.Context, userID string, result domain.QuizResult) (domain.AssessmentRecord, error) {
	questions, err := json.Marshal(result.Questions)
	if err != nil {
		return domain.AssessmentRecord{}, fmt.Errorf("marshal questions: %w", err)
	}
	answers, err := json.Marshal(result.Answers)
	if err != nil {
		return domain.AssessmentRecord{}, fmt.Errorf("marshal answers: %w", err)
	}

	score := result.Score
	record := domain.AssessmentRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		QuizScore: &score,
		Questions: result.Questions,
		Answers:   result.Answers,
	}
	err = r.pool.QueryRow(ctx,
		`INSERT INTO assessments (id, user_id, quiz_score, questions, answers)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		record.ID, userID, score, questions, answers,
	).Scan(&record.CreatedAt)
	if err != nil {
		return domain.AssessmentRecord{}, fmt.Errorf("insert assessment: %w", err)
	}
	return record, nil
}

func (r *AssessmentRepository) ListResults(ctx context.Context, userID string) ([]domain.AssessmentRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, user_id, quiz_score, questions, answers, created_at
		 FROM assessments
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query assessments: %w", err)
	}
	defer rows.Close()

	var records []domain.AssessmentRecord
	for rows.Next() {
		var (
			record             domain.AssessmentRecord
			questions, answers []byte
		)
		if err := rows.Scan(&record.ID, &record.UserID, &record.QuizScore, &questions, &answers, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		if err := json.Unmarshal(questions, &record.Questions); err != nil {
			return nil, fmt.Errorf("unmarshal questions: %w", err)
		}
		if err := json.Unmarshal(answers, &record.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assessments: %w", err)
	}
	return records, nil
}
