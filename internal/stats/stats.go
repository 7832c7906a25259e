// Package stats derives display figures from a user's assessment history.
package stats

import (
	"math"

	"careerprep/internal/domain"
)

// Summary is what the stats cards show.
type Summary struct {
	AverageScore   float64 `json:"averageScore"`
	TotalQuestions int     `json:"totalQuestions"`
	LatestScore    float64 `json:"latestScore"`
	Assessments    int     `json:"assessments"`
}

// Summarize computes every figure in one pass over records.
func Summarize(records []domain.AssessmentRecord) Summary {
	return Summary{
		AverageScore:   AverageScore(records),
		TotalQuestions: TotalQuestions(records),
		LatestScore:    LatestScore(records),
		Assessments:    len(records),
	}
}

// AverageScore is the mean quiz score rounded to one decimal. Records without a
// score count as zero; an empty history averages to zero.
func AverageScore(records []domain.AssessmentRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	var total float64
	for _, r := range records {
		total += scoreOf(r)
	}
	return round1(total / float64(len(records)))
}

// TotalQuestions counts questions across all records.
func TotalQuestions(records []domain.AssessmentRecord) int {
	total := 0
	for _, r := range records {
		total += len(r.Questions)
	}
	return total
}

// LatestScore is the score of the first record. Callers order records most recent first.
func LatestScore(records []domain.AssessmentRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	return round1(scoreOf(records[0]))
}

func scoreOf(r domain.AssessmentRecord) float64 {
	if r.QuizScore == nil {
		return 0
	}
	return *r.QuizScore
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
