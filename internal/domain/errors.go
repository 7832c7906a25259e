package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a user has no quiz session.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionNotActive is returned when an action needs a session in progress.
	ErrSessionNotActive = errors.New("quiz session not in progress")
	// ErrNoAnswer is returned when submitting without a selected answer.
	ErrNoAnswer = errors.New("no answer selected")
	// ErrInvalidOption indicates a selected answer is not one of the question's options.
	ErrInvalidOption = errors.New("answer is not an option of the current question")
	// ErrGeneration wraps failures of the question generator.
	ErrGeneration = errors.New("quiz generation failed")
	// ErrPersistence wraps failures while saving results or drafts.
	ErrPersistence = errors.New("persistence failed")
	// ErrRender wraps failures of the document renderer.
	ErrRender = errors.New("document render failed")
	// ErrCoverLetterNotFound indicates no saved letter or draft exists for an id.
	ErrCoverLetterNotFound = errors.New("cover letter not found")
	// ErrInvalidMode indicates an unknown editor mode.
	ErrInvalidMode = errors.New("invalid editor mode")
)
