package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"careerprep/internal/app"
	"careerprep/internal/domain"
	"careerprep/internal/infra/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// flakyResults fails the first failures saves, then delegates to memory.
type flakyResults struct {
	*memory.AssessmentRepository

	mu       sync.Mutex
	failures int
	saves    []domain.QuizResult
}

func (f *flakyResults) SaveResult(ctx context.Context, userID string, result domain.QuizResult) (domain.AssessmentRecord, error) {
	f.mu.Lock()
	f.saves = append(f.saves, result)
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return domain.AssessmentRecord{}, errors.New("connection refused")
	}
	f.mu.Unlock()
	return f.AssessmentRepository.SaveResult(ctx, userID, result)
}

func (f *flakyResults) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func newTestService(results app.ResultRepository, n int, opts ...app.SessionOption) *app.QuizService {
	gen := &staticGenerator{questions: sampleQuestions(n)}
	return app.NewQuizService(memory.NewSessionStore(), gen, results, nil, opts...)
}

func TestStartAndFinishPersists(t *testing.T) {
	ctx := context.Background()
	results := memory.NewAssessmentRepository()
	service := newTestService(results, 3)

	snap, err := service.Start(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, app.StateInProgress, snap.State)
	defer service.Leave(ctx, "u1")

	_, err = service.Select(ctx, "u1", "B")
	require.NoError(t, err)
	_, err = service.Submit(ctx, "u1")
	require.NoError(t, err)

	record, err := service.Finish(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "u1", record.UserID)
	require.NotNil(t, record.QuizScore)
	require.Equal(t, 33.3, *record.QuizScore)
	require.Equal(t, []string{"B", "", ""}, record.Answers)

	again, err := service.Finish(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, record.ID, again.ID)

	history, err := service.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 1)

	summary, err := service.Stats(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 33.3, summary.AverageScore)
	require.Equal(t, 3, summary.TotalQuestions)
}

func TestNextPastLastQuestionPersists(t *testing.T) {
	ctx := context.Background()
	results := memory.NewAssessmentRepository()
	service := newTestService(results, 2)
	_, err := service.Start(ctx, "u1")
	require.NoError(t, err)
	defer service.Leave(ctx, "u1")

	_, err = service.Skip(ctx, "u1")
	require.NoError(t, err)
	snap, err := service.Next(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, app.StateFinished, snap.State)
	require.NotNil(t, snap.Record)

	history, err := results.ListResults(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, 0.0, *history[0].QuizScore)
}

func TestSaveFailureKeepsResultForRetry(t *testing.T) {
	ctx := context.Background()
	results := &flakyResults{AssessmentRepository: memory.NewAssessmentRepository(), failures: 1}
	service := newTestService(results, 2)
	_, err := service.Start(ctx, "u1")
	require.NoError(t, err)
	defer service.Leave(ctx, "u1")

	_, err = service.Select(ctx, "u1", "B")
	require.NoError(t, err)

	_, err = service.Finish(ctx, "u1")
	require.ErrorIs(t, err, domain.ErrPersistence)
	require.True(t, app.IsRetryable(err))

	snap, err := service.Snapshot(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, app.StateFinished, snap.State)
	require.NotEmpty(t, snap.SaveError)
	require.Nil(t, snap.Record)
	require.Equal(t, 50.0, snap.Result.Score)

	record, err := service.Finish(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 50.0, *record.QuizScore)
	require.Equal(t, 2, results.saveCount())
	require.Equal(t, results.saves[0], results.saves[1])

	snap, err = service.Snapshot(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, snap.SaveError)
	require.NotNil(t, snap.Record)
}

func TestGenerationFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	gen := &staticGenerator{err: errors.New("quota exceeded")}
	service := app.NewQuizService(memory.NewSessionStore(), gen, memory.NewAssessmentRepository(), nil)
	defer service.Leave(ctx, "u1")

	snap, err := service.Start(ctx, "u1")
	require.ErrorIs(t, err, domain.ErrGeneration)
	require.True(t, app.IsRetryable(err))
	require.Equal(t, app.StateNotStarted, snap.State)

	gen.err = nil
	gen.questions = sampleQuestions(1)
	snap, err = service.Start(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, app.StateInProgress, snap.State)
}

func TestExpiryPersistsResult(t *testing.T) {
	ctx := context.Background()
	ticks := &tickerSource{}
	results := memory.NewAssessmentRepository()
	service := newTestService(results, 4, app.WithTicker(ticks.factory), app.WithTimeBudget(2*time.Second))
	_, err := service.Start(ctx, "u1")
	require.NoError(t, err)
	defer service.Leave(ctx, "u1")

	_, err = service.Select(ctx, "u1", "B")
	require.NoError(t, err)

	ticker := ticks.current()
	ticker.ch <- time.Now()
	ticker.ch <- time.Now()

	require.Eventually(t, func() bool {
		history, _ := results.ListResults(ctx, "u1")
		return len(history) == 1
	}, 2*time.Second, 5*time.Millisecond)

	history, err := results.ListResults(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 25.0, *history[0].QuizScore)

	snap, err := service.Snapshot(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, app.StateFinished, snap.State)
	require.Equal(t, 0, snap.RemainingSeconds)
}

func TestLeaveStopsCountdown(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	service := newTestService(memory.NewAssessmentRepository(), 2)

	updates, cancel := service.Subscribe(ctx, "u1")
	_, err := service.Start(ctx, "u1")
	require.NoError(t, err)

	cancel()
	service.Leave(ctx, "u1")
	for range updates {
	}

	_, err = service.Snapshot(ctx, "u1")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestLeaveKeepsSessionForOtherSubscribers(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	service := newTestService(memory.NewAssessmentRepository(), 2)

	first, cancelFirst := service.Subscribe(ctx, "u1")
	second, cancelSecond := service.Subscribe(ctx, "u1")
	_, err := service.Start(ctx, "u1")
	require.NoError(t, err)

	cancelFirst()
	service.Leave(ctx, "u1")
	for range first {
	}

	snap, err := service.Select(ctx, "u1", "B")
	require.NoError(t, err)
	require.Equal(t, app.StateInProgress, snap.State)
	require.Eventually(t, func() bool {
		select {
		case snap := <-second:
			return snap.Answer == "B"
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	cancelSecond()
	service.Leave(ctx, "u1")
	_, err = service.Snapshot(ctx, "u1")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSubscribeAfterLeaveGetsFreshSession(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	service := newTestService(memory.NewAssessmentRepository(), 2)
	_, err := service.Start(ctx, "u1")
	require.NoError(t, err)
	service.Leave(ctx, "u1")

	updates, cancel := service.Subscribe(ctx, "u1")
	snap, ok := <-updates
	require.True(t, ok)
	require.Equal(t, app.StateNotStarted, snap.State)
	cancel()
	service.Leave(ctx, "u1")
}

// stallingTicker parks the countdown in Stop, between the finishing tick and the expiry hook.
type stallingTicker struct {
	ch      chan time.Time
	once    sync.Once
	stalled chan struct{}
	release chan struct{}
}

func (s *stallingTicker) C() <-chan time.Time { return s.ch }

func (s *stallingTicker) Stop() {
	s.once.Do(func() {
		close(s.stalled)
		<-s.release
	})
}

func TestExpiryResultSurvivesReset(t *testing.T) {
	ctx := context.Background()
	ticker := &stallingTicker{
		ch:      make(chan time.Time),
		stalled: make(chan struct{}),
		release: make(chan struct{}),
	}
	results := memory.NewAssessmentRepository()
	service := newTestService(results, 2,
		app.WithTicker(func(time.Duration) app.Ticker { return ticker }),
		app.WithTimeBudget(time.Second),
	)
	_, err := service.Start(ctx, "u1")
	require.NoError(t, err)
	defer service.Leave(ctx, "u1")
	_, err = service.Select(ctx, "u1", "B")
	require.NoError(t, err)

	ticker.ch <- time.Now()
	<-ticker.stalled
	snap, err := service.Reset(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, app.StateNotStarted, snap.State)
	close(ticker.release)

	require.Eventually(t, func() bool {
		history, _ := results.ListResults(ctx, "u1")
		return len(history) == 1
	}, 2*time.Second, 5*time.Millisecond)
	history, err := results.ListResults(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 50.0, *history[0].QuizScore)
}

// touchCounter records liveness refreshes.
type touchCounter struct {
	*memory.SessionStore

	mu      sync.Mutex
	touches []string
}

func (c *touchCounter) Touch(_ context.Context, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touches = append(c.touches, userID)
}

func TestQuizActivityRefreshesLiveness(t *testing.T) {
	ctx := context.Background()
	store := &touchCounter{SessionStore: memory.NewSessionStore()}
	gen := &staticGenerator{questions: sampleQuestions(2)}
	service := app.NewQuizService(store, gen, memory.NewAssessmentRepository(), nil)

	_, err := service.Start(ctx, "u1")
	require.NoError(t, err)
	defer service.Leave(ctx, "u1")
	_, err = service.Next(ctx, "u1")
	require.NoError(t, err)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Equal(t, []string{"u1", "u1"}, store.touches)
}

func TestActionsRequireSession(t *testing.T) {
	ctx := context.Background()
	service := newTestService(memory.NewAssessmentRepository(), 1)

	_, err := service.Select(ctx, "ghost", "A")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = service.Next(ctx, "ghost")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = service.Finish(ctx, "ghost")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = service.Reset(ctx, "ghost")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}
