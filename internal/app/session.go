package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"trivia-quiz-service/internal/domain"
)

// Session is the live attempt state of one identity. Every transition happens under mu, and the
// committed state is written to the SnapshotStore before it is broadcast.
type Session struct {
	identity    domain.Identity
	source      QuestionSource
	store       SnapshotStore
	progression Progression
	logger      *zap.Logger
	now         func() time.Time
	budget      time.Duration

	mu          sync.Mutex
	phase       domain.Phase
	attemptID   string
	questions   []domain.Question
	answers     []string
	current     int
	score       int
	startedAt   time.Time
	remaining   int
	prefs       domain.Preferences
	latched     string
	summary     *domain.Summary
	subscribers map[chan domain.State]struct{}
}

// NewSession is exported for infrastructure layers and tests that need a standalone session.
func NewSession(identity domain.Identity, source QuestionSource, store SnapshotStore, progression Progression, logger *zap.Logger) *Session {
	return newSession(identity, source, store, progression, logger, time.Now)
}

func newSession(identity domain.Identity, source QuestionSource, store SnapshotStore, progression Progression, logger *zap.Logger, now func() time.Time) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		identity:    identity,
		source:      source,
		store:       store,
		progression: progression,
		logger:      logger.With(zap.String("identity", identity.ID), zap.Bool("guest", identity.Guest)),
		now:         now,
		budget:      domain.TimeBudget,
		phase:       domain.PhaseIdle,
		prefs:       domain.DefaultPreferences(),
		subscribers: make(map[chan domain.State]struct{}),
	}
}

// Identity returns the owner of the session.
func (s *Session) Identity() domain.Identity {
	return s.identity
}

// Start acquires questions and begins a new attempt. A start while questions are being
// acquired is a no-op; a start while an attempt is live (here or persisted) fails with
// domain.ErrAttemptInProgress and leaves that attempt untouched.
func (s *Session) Start(ctx context.Context, prefs domain.Preferences) (domain.State, error) {
	s.mu.Lock()
	switch s.phase {
	case domain.PhaseAcquiring:
		state := s.stateLocked()
		s.mu.Unlock()
		return state, nil
	case domain.PhaseInProgress:
		s.mu.Unlock()
		return domain.State{}, domain.ErrAttemptInProgress
	}
	if _, ok := s.resumableLocked(ctx); ok {
		s.mu.Unlock()
		return domain.State{}, domain.ErrAttemptInProgress
	}

	prefs = prefs.Normalize()
	s.resetLocked()
	s.phase = domain.PhaseAcquiring
	s.prefs = prefs
	s.broadcastLocked()
	s.mu.Unlock()

	batch, err := s.source.Acquire(ctx, prefs)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.phase = domain.PhaseIdle
		s.logger.Warn("question acquisition failed", zap.Error(err))
		s.broadcastLocked()
		return s.stateLocked(), err
	}

	s.attemptID = uuid.NewString()
	s.questions = batch.Questions
	s.answers = make([]string, len(batch.Questions))
	s.current = 0
	s.score = 0
	s.startedAt = s.now()
	s.remaining = int(s.budget / time.Second)
	s.phase = domain.PhaseInProgress
	s.persistLocked(ctx)

	s.logger.Info("attempt started",
		zap.String("attempt", s.attemptID),
		zap.Int("questions", len(s.questions)),
		zap.Bool("degraded", batch.Degraded))
	return s.broadcastLocked(), nil
}

// SubmitAnswer records value for the current question.
func (s *Session) SubmitAnswer(ctx context.Context, value string) (domain.AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitLocked(ctx, s.current, value)
}

// SubmitAnswerAt records value for question index. Only the current question accepts an
// answer, so a repeated submission for an index that already moved on is a no-op.
func (s *Session) SubmitAnswerAt(ctx context.Context, index int, value string) (domain.AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitLocked(ctx, index, value)
}

func (s *Session) submitLocked(ctx context.Context, index int, value string) (domain.AnswerResult, error) {
	if value == domain.Unanswered {
		return domain.AnswerResult{}, domain.ErrEmptyAnswer
	}
	if s.phase != domain.PhaseInProgress {
		return domain.AnswerResult{}, domain.ErrNoActiveAttempt
	}

	s.remaining = domain.RemainingAt(s.startedAt, s.now(), s.budget)
	if s.remaining == 0 {
		s.completeLocked(ctx, domain.ReasonTimeExpired)
		return domain.AnswerResult{Index: index, Score: s.score, Completed: true}, nil
	}

	noop := domain.AnswerResult{Index: index, Score: s.score}
	if index != s.current || index < 0 || index >= len(s.answers) || s.answers[index] != domain.Unanswered {
		return noop, nil
	}

	question := s.questions[index]
	correct := value == question.CorrectAnswer
	s.answers[index] = value
	if correct {
		s.score++
	}
	s.persistLocked(ctx)

	result := domain.AnswerResult{
		Index:         index,
		Accepted:      true,
		Correct:       correct,
		CorrectAnswer: question.CorrectAnswer,
		Score:         s.score,
	}
	if index == len(s.answers)-1 {
		s.completeLocked(ctx, domain.ReasonAllAnswered)
		result.Completed = true
		return result, nil
	}

	s.current++
	s.persistLocked(ctx)
	s.broadcastLocked()
	return result, nil
}

// Tick recomputes the remaining time from the start instant and completes the attempt when
// it reaches zero.
func (s *Session) Tick(ctx context.Context) domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domain.PhaseInProgress {
		return s.stateLocked()
	}

	s.remaining = domain.RemainingAt(s.startedAt, s.now(), s.budget)
	if s.remaining == 0 {
		s.completeLocked(ctx, domain.ReasonTimeExpired)
		return s.stateLocked()
	}
	s.persistLocked(ctx)
	return s.broadcastLocked()
}

// Abandon discards the live or persisted attempt. Registered identities lose
// progression.AbandonPenalty XP; the returned penalty is nil for guests or when the penalty
// could not be applied.
func (s *Session) Abandon(ctx context.Context) (*domain.PenaltyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case domain.PhaseInProgress:
	case domain.PhaseAcquiring:
		return nil, domain.ErrNoActiveAttempt
	default:
		snap, ok := s.resumableLocked(ctx)
		if !ok {
			return nil, domain.ErrNoActiveAttempt
		}
		s.restoreLocked(snap)
	}

	attemptID := s.attemptID
	s.deleteLocked(ctx)
	s.resetLocked()
	s.phase = domain.PhaseAbandoned
	s.logger.Info("attempt abandoned", zap.String("attempt", attemptID))

	var penalty *domain.PenaltyResult
	if !s.identity.Guest && s.progression != nil {
		res, err := s.progression.ApplyAbandonPenalty(ctx, s.identity.ID)
		if err != nil {
			s.logger.Error("apply abandon penalty", zap.String("attempt", attemptID), zap.Error(err))
		} else {
			penalty = &res
		}
	}
	s.broadcastLocked()
	return penalty, nil
}

// Resume restores a persisted attempt into this session. An attempt whose time ran out while
// nobody was connected is deleted and Resume reports false.
func (s *Session) Resume(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case domain.PhaseInProgress:
		return true, nil
	case domain.PhaseAcquiring:
		return false, nil
	}

	snap, ok := s.resumableLocked(ctx)
	if !ok {
		return false, nil
	}
	s.restoreLocked(snap)
	s.logger.Info("attempt resumed",
		zap.String("attempt", s.attemptID),
		zap.Int("answered", snap.Answered()),
		zap.Int("remaining", s.remaining))

	if s.answeredLocked() == len(s.answers) {
		s.completeLocked(ctx, domain.ReasonAllAnswered)
		return true, nil
	}
	s.persistLocked(ctx)
	s.broadcastLocked()
	return true, nil
}

// State returns the current presentation view.
func (s *Session) State() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Results returns the summary of the last completed attempt.
func (s *Session) Results() (domain.Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary == nil || s.phase != domain.PhaseCompleted {
		return domain.Summary{}, false
	}
	return *s.summary, true
}

// Unused reports whether the session can be dropped from memory without losing anything the
// SnapshotStore does not hold.
func (s *Session) Unused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers) == 0 && s.phase != domain.PhaseAcquiring
}

// Subscribe returns a channel of state updates that starts with the current state.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.State, func()) {
	ch := make(chan domain.State, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	// queued under the lock so no broadcast can overtake it; the buffer is still empty
	ch <- s.stateLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) activeAttempt() (domain.ActiveAttempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domain.PhaseInProgress {
		return domain.ActiveAttempt{}, false
	}
	return domain.ActiveAttempt{
		AttemptID:         s.attemptID,
		QuestionsAnswered: s.answeredLocked(),
		TotalQuestions:    len(s.questions),
		Score:             s.score,
		TimeRemaining:     domain.RemainingAt(s.startedAt, s.now(), s.budget),
		Preferences:       s.prefs,
	}, true
}

// completeLocked moves to PhaseCompleted and finalizes registered identities exactly once per
// attempt id.
func (s *Session) completeLocked(ctx context.Context, reason domain.CompletionReason) {
	s.phase = domain.PhaseCompleted
	s.remaining = domain.RemainingAt(s.startedAt, s.now(), s.budget)
	s.deleteLocked(ctx)

	summary := s.summarizeLocked(reason)
	category := s.prefs.CategoryName
	if category == "" {
		category = s.prefs.Category
	}
	difficulty := s.prefs.DifficultyName
	if difficulty == "" {
		difficulty = s.prefs.Difficulty
	}
	if !s.identity.Guest && s.progression != nil && s.latched != s.attemptID {
		s.latched = s.attemptID
		res, err := s.progression.Finalize(ctx, s.identity.ID, domain.Outcome{
			AttemptID:  s.attemptID,
			Correct:    s.score,
			Total:      len(s.questions),
			Category:   category,
			Difficulty: difficulty,
		})
		if err != nil {
			s.logger.Error("finalize attempt", zap.String("attempt", s.attemptID), zap.Error(err))
		} else {
			summary.Progression = &res
		}
	}
	s.summary = &summary

	s.logger.Info("attempt completed",
		zap.String("attempt", s.attemptID),
		zap.String("reason", string(reason)),
		zap.Int("correct", summary.CorrectAnswers),
		zap.Int("total", summary.TotalQuestions))
	s.broadcastLocked()
}

// resumableLocked loads the persisted attempt if it can still be played. Expired or malformed
// snapshots are deleted.
func (s *Session) resumableLocked(ctx context.Context) (domain.Snapshot, bool) {
	if s.store == nil {
		return domain.Snapshot{}, false
	}
	snap, ok, err := s.store.Load(ctx, s.identity.ID)
	if err != nil {
		s.logger.Warn("load snapshot", zap.Error(err))
		return domain.Snapshot{}, false
	}
	if !ok {
		return domain.Snapshot{}, false
	}
	if snap.Phase != domain.PhaseInProgress || snap.StartedAt.IsZero() ||
		len(snap.Questions) == 0 || len(snap.Answers) != len(snap.Questions) {
		s.logger.Warn("discarding malformed snapshot", zap.String("attempt", snap.AttemptID))
		s.deleteLocked(ctx)
		return domain.Snapshot{}, false
	}
	if domain.RemainingAt(snap.StartedAt, s.now(), s.budget) == 0 {
		s.logger.Info("discarding expired snapshot", zap.String("attempt", snap.AttemptID))
		s.deleteLocked(ctx)
		return domain.Snapshot{}, false
	}
	return snap, true
}

func (s *Session) restoreLocked(snap domain.Snapshot) {
	s.attemptID = snap.AttemptID
	s.questions = snap.Questions
	s.answers = append([]string(nil), snap.Answers...)
	s.score = snap.Score
	s.startedAt = snap.StartedAt
	s.prefs = snap.Preferences
	s.remaining = domain.RemainingAt(snap.StartedAt, s.now(), s.budget)
	s.summary = nil
	s.phase = domain.PhaseInProgress

	// a crash between the slot write and the pointer advance leaves the pointer behind
	s.current = snap.CurrentIndex
	for s.current < len(s.answers)-1 && s.answers[s.current] != domain.Unanswered {
		s.current++
	}
}

func (s *Session) resetLocked() {
	s.attemptID = ""
	s.questions = nil
	s.answers = nil
	s.current = 0
	s.score = 0
	s.startedAt = time.Time{}
	s.remaining = 0
	s.summary = nil
}

func (s *Session) snapshotLocked() domain.Snapshot {
	return domain.Snapshot{
		AttemptID:     s.attemptID,
		Identity:      s.identity,
		Phase:         s.phase,
		Questions:     s.questions,
		Answers:       append([]string(nil), s.answers...),
		CurrentIndex:  s.current,
		Score:         s.score,
		StartedAt:     s.startedAt,
		TimeRemaining: s.remaining,
		Preferences:   s.prefs,
	}
}

// persistLocked is best effort: a failed write is logged and the attempt continues.
func (s *Session) persistLocked(ctx context.Context) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, s.snapshotLocked()); err != nil {
		s.logger.Warn("save snapshot", zap.String("attempt", s.attemptID), zap.Error(err))
	}
}

func (s *Session) deleteLocked(ctx context.Context) {
	if s.store == nil {
		return
	}
	if err := s.store.Delete(ctx, s.identity.ID); err != nil {
		s.logger.Warn("delete snapshot", zap.String("attempt", s.attemptID), zap.Error(err))
	}
}

func (s *Session) answeredLocked() int {
	n := 0
	for _, a := range s.answers {
		if a != domain.Unanswered {
			n++
		}
	}
	return n
}

func (s *Session) broadcastLocked() domain.State {
	state := s.stateLocked()
	for ch := range s.subscribers {
		select {
		case ch <- state:
		default:
			// drop the stale update so a slow reader never blocks the session
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
	return state
}

func (s *Session) stateLocked() domain.State {
	views := make([]domain.QuestionView, len(s.questions))
	for i, q := range s.questions {
		views[i] = domain.QuestionView{
			Prompt:     q.Prompt,
			Answers:    q.Answers,
			Category:   q.Category,
			Difficulty: q.Difficulty,
		}
	}
	return domain.State{
		AttemptID:     s.attemptID,
		Phase:         s.phase,
		Questions:     views,
		Answers:       append([]string{}, s.answers...),
		CurrentIndex:  s.current,
		Score:         s.score,
		Streak:        streak(s.questions, s.answers, s.current),
		TimeRemaining: s.remaining,
		Preferences:   s.prefs,
	}
}
