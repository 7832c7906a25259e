package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"careerprep/internal/domain"
	"careerprep/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestHistoryCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	backing := &countingResults{AssessmentRepository: memory.NewAssessmentRepository()}
	cache := NewHistoryCache(newClient(mr), backing, time.Minute)

	if _, err := cache.SaveResult(ctx, "u1", sampleResult(80)); err != nil {
		t.Fatalf("save: %v", err)
	}
	records, err := cache.ListResults(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || backing.lists != 1 {
		t.Fatalf("expected loader called once, got records=%d loads=%d", len(records), backing.lists)
	}
	if !mr.Exists("assessments:u1") {
		t.Fatalf("expected history cached in redis")
	}

	// Second call should hit cache, loader not incremented.
	records, _ = cache.ListResults(ctx, "u1")
	if backing.lists != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", backing.lists)
	}
	if len(records[0].Questions) != 1 || records[0].Questions[0].CorrectAnswer != "4" {
		t.Fatalf("expected questions to survive caching, got %+v", records[0].Questions)
	}

	if _, err := cache.SaveResult(ctx, "u1", sampleResult(60)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if mr.Exists("assessments:u1") {
		t.Fatalf("expected save to invalidate cached history")
	}
}

type countingResults struct {
	*memory.AssessmentRepository
	lists int
}

func (c *countingResults) ListResults(ctx context.Context, userID string) ([]domain.AssessmentRecord, error) {
	c.lists++
	return c.AssessmentRepository.ListResults(ctx, userID)
}

func sampleResult(score float64) domain.QuizResult {
	return domain.QuizResult{
		Score: score,
		Questions: []domain.Question{
			{
				Question:      "What is 2 + 2?",
				Options:       []string{"3", "4", "5"},
				CorrectAnswer: "4",
				Explanation:   "Basic addition.",
			},
		},
		Answers: []string{"4"},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}

// stalledResults parks the first load after it has read the history, until released.
type stalledResults struct {
	*memory.AssessmentRepository
	once    sync.Once
	loading chan struct{}
	release chan struct{}
}

func (s *stalledResults) ListResults(ctx context.Context, userID string) ([]domain.AssessmentRecord, error) {
	records, err := s.AssessmentRepository.ListResults(ctx, userID)
	s.once.Do(func() {
		close(s.loading)
		<-s.release
	})
	return records, err
}

func TestHistoryCacheDropsFillOverlappingSave(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	backing := &stalledResults{
		AssessmentRepository: memory.NewAssessmentRepository(),
		loading:              make(chan struct{}),
		release:              make(chan struct{}),
	}
	cache := NewHistoryCache(newClient(mr), backing, time.Minute)
	if _, err := cache.SaveResult(ctx, "u1", sampleResult(80)); err != nil {
		t.Fatalf("save: %v", err)
	}

	done := make(chan []domain.AssessmentRecord)
	go func() {
		records, _ := cache.ListResults(ctx, "u1")
		done <- records
	}()
	<-backing.loading
	if _, err := cache.SaveResult(ctx, "u1", sampleResult(60)); err != nil {
		t.Fatalf("save: %v", err)
	}
	close(backing.release)
	if stale := <-done; len(stale) != 1 {
		t.Fatalf("expected the in-flight load to return what it read, got %d records", len(stale))
	}

	records, err := cache.ListResults(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 || *records[0].QuizScore != 60 {
		t.Fatalf("expected fresh history after save, got %+v", records)
	}
}
