package memory

import (
	"context"
	"sync"
	"time"

	"careerprep/internal/domain"
	"github.com/google/uuid"
)

// CoverLetterRepository keeps saved cover letters in process memory.
type CoverLetterRepository struct {
	mu      sync.RWMutex
	clock   func() time.Time
	letters map[string]domain.CoverLetter
}

func NewCoverLetterRepository() *CoverLetterRepository {
	return &CoverLetterRepository{
		clock:   time.Now,
		letters: make(map[string]domain.CoverLetter),
	}
}

func (r *CoverLetterRepository) CreateCoverLetter(_ context.Context, userID, content string) (domain.CoverLetter, error) {
	letter := domain.CoverLetter{
		ID:        uuid.NewString(),
		UserID:    userID,
		Content:   content,
		UpdatedAt: r.clock(),
	}
	r.mu.Lock()
	r.letters[letter.ID] = letter
	r.mu.Unlock()
	return letter, nil
}

func (r *CoverLetterRepository) UpdateCoverLetter(_ context.Context, id, content string) (domain.CoverLetter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	letter, ok := r.letters[id]
	if !ok {
		return domain.CoverLetter{}, domain.ErrCoverLetterNotFound
	}
	letter.Content = content
	letter.UpdatedAt = r.clock()
	r.letters[id] = letter
	return letter, nil
}

func (r *CoverLetterRepository) GetCoverLetter(_ context.Context, id string) (domain.CoverLetter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	letter, ok := r.letters[id]
	if !ok {
		return domain.CoverLetter{}, domain.ErrCoverLetterNotFound
	}
	return letter, nil
}
