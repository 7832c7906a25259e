package app

import (
	"context"
	"errors"
	"fmt"

	"careerprep/internal/coverletter"
	"careerprep/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CoverLetterRepository stores saved cover letters.
type CoverLetterRepository interface {
	CreateCoverLetter(ctx context.Context, userID, content string) (domain.CoverLetter, error)
	UpdateCoverLetter(ctx context.Context, id, content string) (domain.CoverLetter, error)
	GetCoverLetter(ctx context.Context, id string) (domain.CoverLetter, error)
}

// DraftStore keeps uncommitted editor state between requests. UpdateDraft must
// apply fn atomically per id so concurrent edits and mode switches never
// overwrite each other.
type DraftStore interface {
	LoadDraft(ctx context.Context, id string) (coverletter.Draft, error)
	SeedDraft(ctx context.Context, id string, draft coverletter.Draft) (coverletter.Draft, error)
	UpdateDraft(ctx context.Context, id string, fn func(*coverletter.Draft) error) (coverletter.Draft, error)
}

// Exporter renders markdown for a letter into a downloadable document.
type Exporter interface {
	Export(ctx context.Context, id, markdown string) (domain.Document, error)
}

// Previewer renders markdown into the HTML preview page.
type Previewer interface {
	Preview(markdown string) (string, error)
}

// CoverLetterService drives the draft editor for saved cover letters.
type CoverLetterService struct {
	letters   CoverLetterRepository
	drafts    DraftStore
	previewer Previewer
	renderer  Exporter
	exporter  Exporter
	logger    *zap.Logger
	sf        singleflight.Group
}

// CoverLetterOption customizes a CoverLetterService.
type CoverLetterOption func(*CoverLetterService)

// WithExporter injects an exporter that replaces local rendering.
func WithExporter(e Exporter) CoverLetterOption {
	return func(s *CoverLetterService) {
		s.exporter = e
	}
}

func NewCoverLetterService(letters CoverLetterRepository, drafts DraftStore, previewer Previewer, renderer Exporter, logger *zap.Logger, opts ...CoverLetterOption) *CoverLetterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &CoverLetterService{
		letters:   letters,
		drafts:    drafts,
		previewer: previewer,
		renderer:  renderer,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create saves a new letter and seeds its draft.
func (s *CoverLetterService) Create(ctx context.Context, userID, content string) (domain.CoverLetter, error) {
	letter, err := s.letters.CreateCoverLetter(ctx, userID, content)
	if err != nil {
		return domain.CoverLetter{}, fmt.Errorf("%w: create cover letter: %v", domain.ErrPersistence, err)
	}
	if _, err := s.drafts.SeedDraft(ctx, letter.ID, coverletter.NewDraft(letter.Content)); err != nil {
		s.logger.Warn("seeding draft failed", zap.String("letter", letter.ID), zap.Error(err))
	}
	return letter, nil
}

// Open returns the editor state for id, seeding it from the saved letter when no draft exists.
func (s *CoverLetterService) Open(ctx context.Context, id string) (coverletter.Draft, error) {
	draft, err := s.drafts.LoadDraft(ctx, id)
	if err == nil {
		return draft, nil
	}
	if !errors.Is(err, domain.ErrCoverLetterNotFound) {
		return coverletter.Draft{}, fmt.Errorf("load draft: %w", err)
	}

	v, err, _ := s.sf.Do(id, func() (interface{}, error) {
		letter, err := s.letters.GetCoverLetter(ctx, id)
		if err != nil {
			return coverletter.Draft{}, err
		}
		draft, err := s.drafts.SeedDraft(ctx, id, coverletter.NewDraft(letter.Content))
		if err != nil {
			return coverletter.Draft{}, fmt.Errorf("seed draft: %w", err)
		}
		return draft, nil
	})
	if err != nil {
		return coverletter.Draft{}, err
	}
	return v.(coverletter.Draft), nil
}

// Edit replaces the draft content without saving it.
func (s *CoverLetterService) Edit(ctx context.Context, id, content string) (coverletter.Draft, error) {
	return s.update(ctx, id, func(d *coverletter.Draft) error {
		d.Edit(content)
		return nil
	})
}

// SetMode switches between preview and edit presentation.
func (s *CoverLetterService) SetMode(ctx context.Context, id string, mode coverletter.Mode) (coverletter.Draft, error) {
	return s.update(ctx, id, func(d *coverletter.Draft) error {
		return d.SetMode(mode)
	})
}

func (s *CoverLetterService) update(ctx context.Context, id string, fn func(*coverletter.Draft) error) (coverletter.Draft, error) {
	if _, err := s.Open(ctx, id); err != nil {
		return coverletter.Draft{}, err
	}
	draft, err := s.drafts.UpdateDraft(ctx, id, fn)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidMode) || errors.Is(err, domain.ErrCoverLetterNotFound) {
			return coverletter.Draft{}, err
		}
		return coverletter.Draft{}, fmt.Errorf("update draft: %w", err)
	}
	return draft, nil
}

// Preview renders the current draft as an HTML page.
func (s *CoverLetterService) Preview(ctx context.Context, id string) (string, error) {
	draft, err := s.Open(ctx, id)
	if err != nil {
		return "", err
	}
	page, err := s.previewer.Preview(draft.Content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRender, err)
	}
	return page, nil
}

// Save persists the draft content. The draft is kept even if saving fails.
// Editing is cleared only while the stored content still matches what was
// saved, so an edit that lands during the save stays marked as unsaved.
func (s *CoverLetterService) Save(ctx context.Context, id string) (domain.CoverLetter, error) {
	draft, err := s.Open(ctx, id)
	if err != nil {
		return domain.CoverLetter{}, err
	}

	var saved domain.CoverLetter
	saveErr := draft.Save(ctx, func(ctx context.Context, markdown string) error {
		letter, err := s.letters.UpdateCoverLetter(ctx, id, markdown)
		if err != nil {
			return err
		}
		saved = letter
		return nil
	})
	_, err = s.drafts.UpdateDraft(ctx, id, func(d *coverletter.Draft) error {
		if d.Content == draft.Content {
			d.Editing = draft.Editing
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("storing draft after save failed", zap.String("letter", id), zap.Error(err))
	}
	if saveErr != nil {
		s.logger.Warn("saving cover letter failed", zap.String("letter", id), zap.Error(saveErr))
		return domain.CoverLetter{}, fmt.Errorf("%w: save cover letter: %v", domain.ErrPersistence, saveErr)
	}
	s.logger.Info("cover letter saved", zap.String("letter", id))
	return saved, nil
}

// Export renders the current draft, preferring the injected exporter over local rendering.
func (s *CoverLetterService) Export(ctx context.Context, id string) (domain.Document, error) {
	draft, err := s.Open(ctx, id)
	if err != nil {
		return domain.Document{}, err
	}
	exporter := s.exporter
	if exporter == nil {
		exporter = s.renderer
	}
	if exporter == nil {
		return domain.Document{}, fmt.Errorf("%w: no exporter configured", domain.ErrRender)
	}

	doc, err := draft.Export(ctx, func(ctx context.Context, markdown string) (domain.Document, error) {
		return exporter.Export(ctx, id, markdown)
	})
	if err != nil {
		s.logger.Error("cover letter export failed", zap.String("letter", id), zap.Error(err))
		return domain.Document{}, fmt.Errorf("%w: %v", domain.ErrRender, err)
	}
	return doc, nil
}
