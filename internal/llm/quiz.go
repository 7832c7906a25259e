package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"careerprep/internal/domain"
	"go.uber.org/zap"
)

// Profile is what the generated questions are tailored to.
type Profile struct {
	Industry string
	Skills   []string
}

// QuizGenerator asks the model for a fixed-size multiple-choice quiz.
type QuizGenerator struct {
	client  Client
	profile Profile
	size    int
	logger  *zap.Logger
}

func NewQuizGenerator(client Client, profile Profile, size int, logger *zap.Logger) *QuizGenerator {
	if size <= 0 {
		size = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizGenerator{client: client, profile: profile, size: size, logger: logger}
}

type quizResponse struct {
	Questions []domain.Question `json:"questions"`
}

// GenerateQuiz returns exactly size validated questions.
func (g *QuizGenerator) GenerateQuiz(ctx context.Context) ([]domain.Question, error) {
	raw, err := g.client.GenerateJSON(ctx, g.prompt())
	if err != nil {
		return nil, err
	}

	var resp quizResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("parse quiz response: %w", err)
	}

	questions := make([]domain.Question, 0, g.size)
	for i, q := range resp.Questions {
		if err := validateQuestion(q); err != nil {
			g.logger.Debug("dropping generated question", zap.Int("index", i), zap.Error(err))
			continue
		}
		questions = append(questions, q)
		if len(questions) == g.size {
			break
		}
	}
	if len(questions) < g.size {
		return nil, fmt.Errorf("model returned %d usable questions, need %d", len(questions), g.size)
	}
	return questions, nil
}

func (g *QuizGenerator) prompt() string {
	industry := g.profile.Industry
	if industry == "" {
		industry = "software engineering"
	}
	var skills string
	if len(g.profile.Skills) > 0 {
		skills = " with expertise in " + strings.Join(g.profile.Skills, ", ")
	}
	return fmt.Sprintf(`Generate %d technical interview questions for a %s professional%s.

Each question must be multiple choice with exactly 4 options.
Return only JSON in this format, with no additional text:
{
  "questions": [
    {
      "question": "string",
      "options": ["string", "string", "string", "string"],
      "correctAnswer": "string",
      "explanation": "string"
    }
  ]
}
The correctAnswer must be identical to one of the options.`, g.size, industry, skills)
}

func validateQuestion(q domain.Question) error {
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("empty question text")
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("need at least 2 options, got %d", len(q.Options))
	}
	seen := make(map[string]bool, len(q.Options))
	for _, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return fmt.Errorf("empty option")
		}
		if seen[opt] {
			return fmt.Errorf("duplicate option %q", opt)
		}
		seen[opt] = true
	}
	if !seen[q.CorrectAnswer] {
		return fmt.Errorf("correct answer %q is not an option", q.CorrectAnswer)
	}
	return nil
}
