package memory

import (
	"context"
	"sync"
	"time"

	"careerprep/internal/domain"
	"github.com/google/uuid"
)

// AssessmentRepository keeps saved quiz results in process memory.
type AssessmentRepository struct {
	mu      sync.RWMutex
	clock   func() time.Time
	records map[string][]domain.AssessmentRecord
}

func NewAssessmentRepository() *AssessmentRepository {
	return &AssessmentRepository{
		clock:   time.Now,
		records: make(map[string][]domain.AssessmentRecord),
	}
}

func (r *AssessmentRepository) SaveResult(_ context.Context, userID string, result domain.QuizResult) (domain.AssessmentRecord, error) {
	score := result.Score
	record := domain.AssessmentRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		QuizScore: &score,
		Questions: append([]domain.Question(nil), result.Questions...),
		Answers:   append([]string(nil), result.Answers...),
		CreatedAt: r.clock(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Newest first, matching the Postgres ORDER BY.
	r.records[userID] = append([]domain.AssessmentRecord{record}, r.records[userID]...)
	return record, nil
}

func (r *AssessmentRepository) ListResults(_ context.Context, userID string) ([]domain.AssessmentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.AssessmentRecord(nil), r.records[userID]...), nil
}
