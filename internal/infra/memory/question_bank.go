package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"careerprep/internal/domain"
)

// QuestionBank is a question generator backed by a fixed pool (useful for tests/demos).
// Each call returns size questions from a fresh shuffle of the pool.
type QuestionBank struct {
	pool []domain.Question
	size int

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionBank(pool []domain.Question, size int) *QuestionBank {
	return &QuestionBank{
		pool: pool,
		size: size,
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *QuestionBank) GenerateQuiz(ctx context.Context) ([]domain.Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(b.pool) == 0 {
		return nil, domain.ErrGeneration
	}

	shuffled := make([]domain.Question, len(b.pool))
	copy(shuffled, b.pool)
	b.mu.Lock()
	b.rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	b.mu.Unlock()

	limit := b.size
	if limit <= 0 || limit > len(shuffled) {
		limit = len(shuffled)
	}
	return shuffled[:limit], nil
}

// SampleQuestions is a small general aptitude pool used when no LLM key is configured.
func SampleQuestions() []domain.Question {
	return []domain.Question{
		{
			Question:      "A train travels 120 km in 2 hours. What is its average speed?",
			Options:       []string{"40 km/h", "60 km/h", "80 km/h", "120 km/h"},
			CorrectAnswer: "60 km/h",
			Explanation:   "Average speed is distance divided by time: 120 / 2 = 60 km/h.",
		},
		{
			Question:      "Which number comes next: 2, 6, 12, 20, 30, ?",
			Options:       []string{"36", "40", "42", "44"},
			CorrectAnswer: "42",
			Explanation:   "Differences grow by 2 (4, 6, 8, 10), so the next difference is 12.",
		},
		{
			Question:      "If all bloops are razzies and all razzies are lazzies, are all bloops lazzies?",
			Options:       []string{"Yes", "No", "Cannot be determined", "Only some"},
			CorrectAnswer: "Yes",
			Explanation:   "Set inclusion is transitive.",
		},
		{
			Question:      "What is 15% of 240?",
			Options:       []string{"24", "30", "36", "42"},
			CorrectAnswer: "36",
			Explanation:   "10% is 24 and 5% is 12, so 15% is 36.",
		},
		{
			Question:      "Which word is the odd one out?",
			Options:       []string{"Apple", "Banana", "Carrot", "Mango"},
			CorrectAnswer: "Carrot",
			Explanation:   "Carrot is a vegetable; the others are fruits.",
		},
		{
			Question:      "A shop discounts a 50 item by 20% and then by 10%. What is the final price?",
			Options:       []string{"35", "36", "40", "45"},
			CorrectAnswer: "36",
			Explanation:   "50 × 0.8 = 40, then 40 × 0.9 = 36.",
		},
		{
			Question:      "Which time complexity describes binary search?",
			Options:       []string{"O(1)", "O(log n)", "O(n)", "O(n log n)"},
			CorrectAnswer: "O(log n)",
			Explanation:   "Each step halves the search interval.",
		},
		{
			Question:      "Five people shake hands once with each other. How many handshakes occur?",
			Options:       []string{"5", "10", "15", "20"},
			CorrectAnswer: "10",
			Explanation:   "C(5,2) = 10.",
		},
		{
			Question:      "CLOCK is coded as DMPDL. How is TIME coded?",
			Options:       []string{"UJNF", "SHLD", "UKNF", "VJNF"},
			CorrectAnswer: "UJNF",
			Explanation:   "Each letter shifts forward by one.",
		},
		{
			Question:      "A project needs 6 workers for 10 days. How many days for 15 workers?",
			Options:       []string{"3", "4", "5", "6"},
			CorrectAnswer: "4",
			Explanation:   "Total work is 60 worker-days; 60 / 15 = 4.",
		},
		{
			Question:      "Which HTTP status code means the resource was not found?",
			Options:       []string{"200", "301", "404", "500"},
			CorrectAnswer: "404",
			Explanation:   "404 Not Found.",
		},
		{
			Question:      "What is the probability of rolling a sum of 7 with two dice?",
			Options:       []string{"1/6", "1/12", "1/36", "7/36"},
			CorrectAnswer: "1/6",
			Explanation:   "Six of the 36 outcomes sum to 7.",
		},
	}
}
