package app

import (
	"fmt"

	"careerprep/internal/domain"
)

// QuestionView is the client-facing view of a question. The correct answer is
// only revealed once the question has been submitted.
type QuestionView struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
}

// Snapshot is a read-only copy of a session suitable for transport.
type Snapshot struct {
	UserID             string                   `json:"userId"`
	State              SessionState             `json:"state"`
	Index              int                      `json:"index"`
	Total              int                      `json:"total"`
	Question           *QuestionView            `json:"question,omitempty"`
	Answer             string                   `json:"answer,omitempty"`
	Submitted          bool                     `json:"submitted"`
	ExplanationVisible bool                     `json:"explanationVisible"`
	LastQuestion       bool                     `json:"lastQuestion"`
	RemainingSeconds   int                      `json:"remainingSeconds"`
	Clock              string                   `json:"clock"`
	Result             *domain.QuizResult       `json:"result,omitempty"`
	Record             *domain.AssessmentRecord `json:"record,omitempty"`
	SaveError          string                   `json:"saveError,omitempty"`
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		UserID:           s.userID,
		State:            s.state,
		Index:            s.current,
		Total:            len(s.questions),
		RemainingSeconds: s.remaining,
		Clock:            FormatClock(s.remaining),
	}
	if s.state == StateInProgress {
		q := s.questions[s.current]
		sl := s.slots[s.current]
		view := &QuestionView{
			Question: q.Question,
			Options:  append([]string(nil), q.Options...),
		}
		if sl.submitted {
			view.CorrectAnswer = q.CorrectAnswer
			if sl.explanationVisible {
				view.Explanation = q.Explanation
			}
		}
		snap.Question = view
		snap.Answer = sl.answer
		snap.Submitted = sl.submitted
		snap.ExplanationVisible = sl.submitted && sl.explanationVisible
		snap.LastQuestion = s.current == len(s.questions)-1
	}
	if s.result != nil {
		res := *s.result
		snap.Result = &res
	}
	if s.record != nil {
		rec := *s.record
		snap.Record = &rec
	}
	if s.saveErr != nil {
		snap.SaveError = s.saveErr.Error()
	}
	return snap
}

// FormatClock renders seconds as MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// Subscribe returns a channel of snapshots, starting with the current one.
// The caller must invoke cancel to avoid leaks. On a closed session the
// channel is already closed.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch, cancel, ok := s.subscribe()
	if !ok {
		closed := make(chan Snapshot)
		close(closed)
		return closed, func() {}
	}
	return ch, cancel
}

func (s *Session) subscribe() (<-chan Snapshot, func(), bool) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, false
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel, true
}

func (s *Session) broadcastLocked() {
	if len(s.subscribers) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Slow reader: drop the oldest snapshot so the latest always lands.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
