package app

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"careerprep/internal/domain"
)

// SessionState is the lifecycle stage of a quiz session.
type SessionState string

const (
	StateNotStarted SessionState = "not_started"
	StateInProgress SessionState = "in_progress"
	StateFinished   SessionState = "finished"
)

const (
	// DefaultTimeBudget is the countdown a session starts with.
	DefaultTimeBudget = 600 * time.Second
	tickInterval      = time.Second
)

// QuestionGenerator produces a fresh, fixed-size question set.
type QuestionGenerator interface {
	GenerateQuiz(ctx context.Context) ([]domain.Question, error)
}

// slot is the per-question state. One slot exists for every question.
type slot struct {
	answer             string
	submitted          bool
	explanationVisible bool
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithTimeBudget overrides DefaultTimeBudget. Sub-second budgets are rounded up.
func WithTimeBudget(d time.Duration) SessionOption {
	return func(s *Session) {
		secs := int(math.Ceil(d.Seconds()))
		if secs > 0 {
			s.budget = secs
		}
	}
}

// WithTicker replaces the ticker used by the countdown (tests use a manual ticker).
func WithTicker(f TickerFactory) SessionOption {
	return func(s *Session) {
		s.newTicker = f
	}
}

// WithExpiryHook registers fn to run when the countdown finishes the session.
// It runs on the countdown goroutine after the countdown has stopped.
func WithExpiryHook(fn func(domain.QuizResult)) SessionOption {
	return func(s *Session) {
		s.onExpire = fn
	}
}

// Session is a single user's quiz run. All methods are safe for concurrent use;
// the countdown goroutine and user actions serialize on mu.
type Session struct {
	userID    string
	budget    int
	newTicker TickerFactory
	onExpire  func(domain.QuizResult)

	mu          sync.Mutex
	state       SessionState
	questions   []domain.Question
	slots       []slot
	current     int
	remaining   int
	epoch       uint64
	countdown   *Countdown
	result      *domain.QuizResult
	record      *domain.AssessmentRecord
	saveErr     error
	subscribers map[chan Snapshot]struct{}
	closed      bool
}

// NewSession creates a session in the NotStarted state.
func NewSession(userID string, opts ...SessionOption) *Session {
	s := &Session{
		userID:      userID,
		budget:      int(DefaultTimeBudget / time.Second),
		newTicker:   NewRealTicker,
		state:       StateNotStarted,
		subscribers: make(map[chan Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.remaining = s.budget
	return s
}

// UserID returns the owner of the session.
func (s *Session) UserID() string {
	return s.userID
}

// Start resets the session and begins a new run with questions from gen.
// On generation failure the session stays NotStarted.
func (s *Session) Start(ctx context.Context, gen QuestionGenerator) error {
	s.Reset()

	questions, err := gen.GenerateQuiz(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	if len(questions) == 0 {
		return fmt.Errorf("%w: empty question set", domain.ErrGeneration)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	stale := s.clearLocked()
	s.questions = append([]domain.Question(nil), questions...)
	s.slots = make([]slot, len(questions))
	s.state = StateInProgress
	epoch := s.epoch
	var final domain.QuizResult
	s.countdown = StartCountdown(s.newTicker, tickInterval,
		func() bool {
			res, finished, _ := s.tick(epoch)
			if finished {
				final = res
			}
			return finished
		},
		func() { s.expired(final) },
	)
	s.broadcastLocked()
	s.mu.Unlock()

	if stale != nil {
		stale.Wait()
	}
	return nil
}

// SelectAnswer records choice as the pending answer for the current question.
// It is a no-op once the current question has been submitted.
func (s *Session) SelectAnswer(choice string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return domain.ErrSessionNotActive
	}
	sl := &s.slots[s.current]
	if sl.submitted {
		return nil
	}
	if !s.questions[s.current].HasOption(choice) {
		return domain.ErrInvalidOption
	}
	sl.answer = choice
	s.broadcastLocked()
	return nil
}

// SubmitAnswer locks in the pending answer for the current question.
func (s *Session) SubmitAnswer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return domain.ErrSessionNotActive
	}
	sl := &s.slots[s.current]
	if sl.submitted {
		return nil
	}
	if sl.answer == "" {
		return domain.ErrNoAnswer
	}
	sl.submitted = true
	sl.explanationVisible = false
	s.broadcastLocked()
	return nil
}

// ToggleExplanation flips explanation visibility for a submitted question.
// Before submission it has no effect.
func (s *Session) ToggleExplanation() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return domain.ErrSessionNotActive
	}
	sl := &s.slots[s.current]
	if !sl.submitted {
		return nil
	}
	sl.explanationVisible = !sl.explanationVisible
	s.broadcastLocked()
	return nil
}

// Advance moves to the next question, finishing the session past the last one.
// finished is true only for the call that performed the transition.
func (s *Session) Advance() (result domain.QuizResult, finished bool, err error) {
	s.mu.Lock()
	if s.state != StateInProgress {
		s.mu.Unlock()
		return domain.QuizResult{}, false, domain.ErrSessionNotActive
	}
	if s.current < len(s.questions)-1 {
		s.current++
		s.broadcastLocked()
		s.mu.Unlock()
		return domain.QuizResult{}, false, nil
	}
	result, cd := s.finishLocked()
	s.mu.Unlock()
	if cd != nil {
		cd.Wait()
	}
	return result, true, nil
}

// Skip bypasses the current question. It never requires a submission.
func (s *Session) Skip() (domain.QuizResult, bool, error) {
	return s.Advance()
}

// Finish ends the session. Only the first caller (user or countdown) performs
// the transition; later calls return the frozen result with finished=false.
func (s *Session) Finish() (result domain.QuizResult, finished bool, err error) {
	s.mu.Lock()
	switch s.state {
	case StateNotStarted:
		s.mu.Unlock()
		return domain.QuizResult{}, false, domain.ErrSessionNotActive
	case StateFinished:
		res := *s.result
		s.mu.Unlock()
		return res, false, nil
	}
	result, cd := s.finishLocked()
	s.mu.Unlock()
	if cd != nil {
		cd.Wait()
	}
	return result, true, nil
}

// Tick advances the countdown by one second and reports whether it finished the
// session. A finishing tick runs the expiry hook like the countdown would.
func (s *Session) Tick() bool {
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()
	res, finished, cd := s.tick(epoch)
	if !finished {
		return false
	}
	if cd != nil {
		cd.Wait()
	}
	s.expired(res)
	return true
}

// tick returns the frozen result when it performs the transition to Finished.
func (s *Session) tick(epoch uint64) (domain.QuizResult, bool, *Countdown) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress || s.epoch != epoch {
		return domain.QuizResult{}, false, nil
	}
	if s.remaining > 1 {
		s.remaining--
		s.broadcastLocked()
		return domain.QuizResult{}, false, nil
	}
	s.remaining = 0
	res, cd := s.finishLocked()
	return res, true, cd
}

// expired hands the result captured by the finishing tick to the hook. The
// session may already have been reset or restarted by then.
func (s *Session) expired(res domain.QuizResult) {
	if s.onExpire != nil {
		s.onExpire(res)
	}
}

// finishLocked performs the InProgress -> Finished transition. The returned
// countdown has been cancelled; callers wait on it after releasing mu.
func (s *Session) finishLocked() (domain.QuizResult, *Countdown) {
	cd := s.countdown
	s.countdown = nil
	if cd != nil {
		cd.Cancel()
	}
	s.state = StateFinished

	answers := make([]string, len(s.slots))
	for i, sl := range s.slots {
		answers[i] = sl.answer
	}
	res := domain.QuizResult{
		Score:     Score(s.questions, answers),
		Questions: s.questions,
		Answers:   answers,
	}
	s.result = &res
	s.broadcastLocked()
	return res, cd
}

// Reset clears the session back to NotStarted and stops its countdown.
func (s *Session) Reset() {
	s.mu.Lock()
	cd := s.clearLocked()
	s.broadcastLocked()
	s.mu.Unlock()
	if cd != nil {
		cd.Wait()
	}
}

// Retire marks the session closed if nobody is subscribed to it and reports
// whether it did. A retired session refuses new subscribers and starts; the
// caller finishes it off with Close.
func (s *Session) Retire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subscribers) > 0 {
		return false
	}
	s.closed = true
	return true
}

// Close stops the countdown and releases subscribers. The session must not be reused.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	cd := s.clearLocked()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.mu.Unlock()
	if cd != nil {
		cd.Wait()
	}
}

func (s *Session) clearLocked() *Countdown {
	cd := s.countdown
	s.countdown = nil
	if cd != nil {
		cd.Cancel()
	}
	s.epoch++
	s.state = StateNotStarted
	s.questions = nil
	s.slots = nil
	s.current = 0
	s.remaining = s.budget
	s.result = nil
	s.record = nil
	s.saveErr = nil
	return cd
}

// Result returns the frozen result once the session has finished.
func (s *Session) Result() (domain.QuizResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return domain.QuizResult{}, false
	}
	return *s.result, true
}

// Record returns the persisted assessment, if the result has been saved.
func (s *Session) Record() (domain.AssessmentRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return domain.AssessmentRecord{}, false
	}
	return *s.record, true
}

// MarkSaved attaches the persisted record to a finished session.
func (s *Session) MarkSaved(record domain.AssessmentRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateFinished {
		return
	}
	s.record = &record
	s.saveErr = nil
	s.broadcastLocked()
}

// MarkSaveFailed records a failed save so clients can offer a retry.
func (s *Session) MarkSaveFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateFinished {
		return
	}
	s.saveErr = err
	s.broadcastLocked()
}

// State returns the current lifecycle stage.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Score returns the percentage of answers matching the correct answer, rounded
// to one decimal. Missing answers count as wrong.
func Score(questions []domain.Question, answers []string) float64 {
	if len(questions) == 0 {
		return 0
	}
	correct := 0
	for i, q := range questions {
		if i < len(answers) && answers[i] != "" && answers[i] == q.CorrectAnswer {
			correct++
		}
	}
	return RoundScore(float64(correct) / float64(len(questions)) * 100)
}

// RoundScore rounds to one decimal place.
func RoundScore(v float64) float64 {
	return math.Round(v*10) / 10
}
