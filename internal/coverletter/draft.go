// Package coverletter holds the editable state of a cover-letter draft.
package coverletter

import (
	"context"

	"careerprep/internal/domain"
)

// Mode selects how the draft is presented. Switching modes never touches content.
type Mode string

const (
	ModePreview Mode = "preview"
	ModeEdit    Mode = "edit"
)

// ParseMode validates a client-supplied mode.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case ModePreview, ModeEdit:
		return Mode(raw), nil
	}
	return "", domain.ErrInvalidMode
}

// Draft is the in-progress markdown of one cover letter.
type Draft struct {
	Content string `json:"content"`
	Mode    Mode   `json:"mode"`
	Editing bool   `json:"editing"`
}

// SaveFunc persists markdown content.
type SaveFunc func(ctx context.Context, markdown string) error

// ExportFunc renders markdown content to a document.
type ExportFunc func(ctx context.Context, markdown string) (domain.Document, error)

// NewDraft seeds a draft in preview mode.
func NewDraft(initial string) Draft {
	return Draft{Content: initial, Mode: ModePreview}
}

// SetMode switches presentation.
func (d *Draft) SetMode(m Mode) error {
	if _, err := ParseMode(string(m)); err != nil {
		return err
	}
	d.Mode = m
	return nil
}

// Edit replaces the content with uncommitted markdown.
func (d *Draft) Edit(markdown string) {
	d.Content = markdown
	d.Editing = true
}

// Save hands the current content to save and clears the editing flag.
// The content is kept whatever save returns.
func (d *Draft) Save(ctx context.Context, save SaveFunc) error {
	err := save(ctx, d.Content)
	d.Editing = false
	return err
}

// Export renders the current content.
func (d Draft) Export(ctx context.Context, export ExportFunc) (domain.Document, error) {
	return export(ctx, d.Content)
}
