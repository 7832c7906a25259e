package memory

import (
	"context"
	"sync"

	"careerprep/internal/coverletter"
	"careerprep/internal/domain"
)

// DraftStore is an in-memory implementation of app.DraftStore.
type DraftStore struct {
	mu     sync.RWMutex
	drafts map[string]coverletter.Draft
}

func NewDraftStore() *DraftStore {
	return &DraftStore{drafts: make(map[string]coverletter.Draft)}
}

func (s *DraftStore) LoadDraft(_ context.Context, id string) (coverletter.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	draft, ok := s.drafts[id]
	if !ok {
		return coverletter.Draft{}, domain.ErrCoverLetterNotFound
	}
	return draft, nil
}

func (s *DraftStore) SeedDraft(_ context.Context, id string, draft coverletter.Draft) (coverletter.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.drafts[id]; ok {
		return existing, nil
	}
	s.drafts[id] = draft
	return draft, nil
}

// UpdateDraft applies fn under the store lock. fn must not block.
func (s *DraftStore) UpdateDraft(_ context.Context, id string, fn func(*coverletter.Draft) error) (coverletter.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, ok := s.drafts[id]
	if !ok {
		return coverletter.Draft{}, domain.ErrCoverLetterNotFound
	}
	if err := fn(&draft); err != nil {
		return coverletter.Draft{}, err
	}
	s.drafts[id] = draft
	return draft, nil
}
