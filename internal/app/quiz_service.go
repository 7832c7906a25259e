package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"careerprep/internal/domain"
	"careerprep/internal/stats"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// SessionRepository abstracts where live quiz sessions are kept (in-memory, Redis-marked, etc).
type SessionRepository interface {
	GetOrCreate(userID string, create func(userID string) *Session) *Session
	Get(userID string) (*Session, bool)
	// RemoveIf drops the user's session when retire reports true. retire runs
	// under the repository lock so no GetOrCreate can hand the session out meanwhile.
	RemoveIf(userID string, retire func(*Session) bool) (*Session, bool)
	// Touch refreshes any external liveness record of the user's session.
	Touch(ctx context.Context, userID string)
}

// ResultRepository persists finished quizzes and lists a user's history, most recent first.
type ResultRepository interface {
	SaveResult(ctx context.Context, userID string, result domain.QuizResult) (domain.AssessmentRecord, error)
	ListResults(ctx context.Context, userID string) ([]domain.AssessmentRecord, error)
}

// QuizService contains the quiz use cases.
type QuizService struct {
	sessions    SessionRepository
	generator   QuestionGenerator
	results     ResultRepository
	logger      *zap.Logger
	sessionOpts []SessionOption
	saveTimeout time.Duration
	sf          singleflight.Group
}

func NewQuizService(sessions SessionRepository, generator QuestionGenerator, results ResultRepository, logger *zap.Logger, opts ...SessionOption) *QuizService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizService{
		sessions:    sessions,
		generator:   generator,
		results:     results,
		logger:      logger,
		sessionOpts: opts,
		saveTimeout: 10 * time.Second,
	}
}

func (s *QuizService) session(userID string) *Session {
	return s.sessions.GetOrCreate(userID, s.newSession)
}

func (s *QuizService) newSession(userID string) *Session {
	var session *Session
	opts := append([]SessionOption{}, s.sessionOpts...)
	opts = append(opts, WithExpiryHook(func(result domain.QuizResult) {
		s.logger.Info("quiz time expired", zap.String("user", userID), zap.Float64("score", result.Score))
		ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
		defer cancel()
		if _, err := s.persist(ctx, session, result); err != nil {
			s.logger.Warn("saving expired quiz failed", zap.String("user", userID), zap.Error(err))
		}
	}))
	session = NewSession(userID, opts...)
	return session
}

// Start begins a fresh quiz for userID. Concurrent starts for the same user share one generation call.
func (s *QuizService) Start(ctx context.Context, userID string) (Snapshot, error) {
	session := s.session(userID)
	_, err, _ := s.sf.Do("start:"+userID, func() (interface{}, error) {
		return nil, session.Start(ctx, s.generator)
	})
	if err != nil {
		s.logger.Warn("quiz generation failed", zap.String("user", userID), zap.Error(err))
		return session.Snapshot(), err
	}
	s.sessions.Touch(ctx, userID)
	s.logger.Info("quiz started", zap.String("user", userID))
	return session.Snapshot(), nil
}

// Select records a pending answer for the current question.
func (s *QuizService) Select(_ context.Context, userID, answer string) (Snapshot, error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return Snapshot{}, domain.ErrSessionNotFound
	}
	err := session.SelectAnswer(answer)
	return session.Snapshot(), err
}

// Submit locks in the current answer.
func (s *QuizService) Submit(_ context.Context, userID string) (Snapshot, error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return Snapshot{}, domain.ErrSessionNotFound
	}
	err := session.SubmitAnswer()
	return session.Snapshot(), err
}

// ToggleExplanation shows or hides the explanation of a submitted question.
func (s *QuizService) ToggleExplanation(_ context.Context, userID string) (Snapshot, error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return Snapshot{}, domain.ErrSessionNotFound
	}
	err := session.ToggleExplanation()
	return session.Snapshot(), err
}

// Next advances to the next question, finishing and saving after the last one.
func (s *QuizService) Next(ctx context.Context, userID string) (Snapshot, error) {
	return s.advance(ctx, userID, (*Session).Advance)
}

// Skip bypasses the current question without submitting it.
func (s *QuizService) Skip(ctx context.Context, userID string) (Snapshot, error) {
	return s.advance(ctx, userID, (*Session).Skip)
}

func (s *QuizService) advance(ctx context.Context, userID string, step func(*Session) (domain.QuizResult, bool, error)) (Snapshot, error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return Snapshot{}, domain.ErrSessionNotFound
	}
	s.sessions.Touch(ctx, userID)
	result, finished, err := step(session)
	if err != nil {
		return session.Snapshot(), err
	}
	if finished {
		if _, err := s.persist(ctx, session, result); err != nil {
			return session.Snapshot(), err
		}
	}
	return session.Snapshot(), nil
}

// Finish ends the quiz and saves the result. On a finished session whose save
// failed, calling Finish again retries the save with the same result.
func (s *QuizService) Finish(ctx context.Context, userID string) (domain.AssessmentRecord, error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return domain.AssessmentRecord{}, domain.ErrSessionNotFound
	}
	result, _, err := session.Finish()
	if err != nil {
		return domain.AssessmentRecord{}, err
	}
	return s.persist(ctx, session, result)
}

// persist saves result once per session; concurrent callers share the pending save.
func (s *QuizService) persist(ctx context.Context, session *Session, result domain.QuizResult) (domain.AssessmentRecord, error) {
	if record, ok := session.Record(); ok {
		return record, nil
	}
	userID := session.UserID()
	v, err, _ := s.sf.Do("save:"+userID, func() (interface{}, error) {
		if record, ok := session.Record(); ok {
			return record, nil
		}
		record, err := s.results.SaveResult(ctx, userID, result)
		if err != nil {
			session.MarkSaveFailed(err)
			return domain.AssessmentRecord{}, fmt.Errorf("%w: save quiz result: %v", domain.ErrPersistence, err)
		}
		session.MarkSaved(record)
		return record, nil
	})
	if err != nil {
		s.logger.Warn("quiz result not saved", zap.String("user", userID), zap.Error(err))
		return domain.AssessmentRecord{}, err
	}
	record := v.(domain.AssessmentRecord)
	s.logger.Info("quiz completed", zap.String("user", userID), zap.String("assessment", record.ID), zap.Float64("score", result.Score))
	return record, nil
}

// Reset abandons the current quiz, keeping history.
func (s *QuizService) Reset(_ context.Context, userID string) (Snapshot, error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return Snapshot{}, domain.ErrSessionNotFound
	}
	session.Reset()
	return session.Snapshot(), nil
}

// Snapshot returns the current state of a user's quiz.
func (s *QuizService) Snapshot(_ context.Context, userID string) (Snapshot, error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return Snapshot{}, domain.ErrSessionNotFound
	}
	return session.Snapshot(), nil
}

// Subscribe returns a channel that receives session updates, creating the session if needed.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, userID string) (<-chan Snapshot, func()) {
	for {
		// A session retired between lookup and subscribe is already out of the
		// repository, so the next lookup creates a fresh one.
		if ch, cancel, ok := s.session(userID).subscribe(); ok {
			return ch, cancel
		}
	}
}

// Leave tears the user's session down once its last subscriber has gone,
// stopping its countdown. Callers cancel their own subscription first.
func (s *QuizService) Leave(_ context.Context, userID string) {
	session, ok := s.sessions.RemoveIf(userID, (*Session).Retire)
	if !ok {
		return
	}
	session.Close()
	s.logger.Info("quiz session closed", zap.String("user", userID))
}

// History lists a user's saved assessments, most recent first.
func (s *QuizService) History(ctx context.Context, userID string) ([]domain.AssessmentRecord, error) {
	records, err := s.results.ListResults(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return records, nil
}

// Stats summarizes a user's assessment history.
func (s *QuizService) Stats(ctx context.Context, userID string) (stats.Summary, error) {
	records, err := s.History(ctx, userID)
	if err != nil {
		return stats.Summary{}, err
	}
	return stats.Summarize(records), nil
}

// IsRetryable reports whether err leaves the session intact for a user-initiated retry.
func IsRetryable(err error) bool {
	return errors.Is(err, domain.ErrGeneration) || errors.Is(err, domain.ErrPersistence)
}
