package domain

import "time"

// Question is one multiple-choice item. It is never modified after generation.
type Question struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
}

// HasOption reports whether choice is one of the question's options.
func (q Question) HasOption(choice string) bool {
	for _, opt := range q.Options {
		if opt == choice {
			return true
		}
	}
	return false
}

// QuizResult is produced once when a session finishes.
type QuizResult struct {
	Score     float64    `json:"score"`
	Questions []Question `json:"questions"`
	// Answers holds one entry per question; empty means unanswered.
	Answers []string `json:"answers"`
}

// AssessmentRecord is a persisted quiz result.
type AssessmentRecord struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	QuizScore *float64   `json:"quizScore,omitempty"`
	Questions []Question `json:"questions"`
	Answers   []string   `json:"answers"`
	CreatedAt time.Time  `json:"createdAt"`
}

// CoverLetter is the saved markdown body of a user's cover letter.
type CoverLetter struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Document is a rendered export of a cover letter.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}
