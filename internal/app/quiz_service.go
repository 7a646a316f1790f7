package app

import (
	"context"
	"time"

	"go.uber.org/zap"
	"trivia-quiz-service/internal/domain"
)

// QuestionSource acquires question batches for an attempt.
type QuestionSource interface {
	Acquire(ctx context.Context, prefs domain.Preferences) (domain.Batch, error)
}

// SnapshotStore abstracts where in-progress attempts are persisted (in-memory, Redis, etc).
type SnapshotStore interface {
	Load(ctx context.Context, identityID string) (domain.Snapshot, bool, error)
	Save(ctx context.Context, snapshot domain.Snapshot) error
	Delete(ctx context.Context, identityID string) error
}

// Progression applies finished attempts to registered identities.
type Progression interface {
	Finalize(ctx context.Context, userID string, outcome domain.Outcome) (domain.FinalizeResult, error)
	ApplyAbandonPenalty(ctx context.Context, userID string) (domain.PenaltyResult, error)
}

// SessionRepository keeps the live sessions of this process, one per identity.
type SessionRepository interface {
	GetOrCreate(identityID string, create func() *Session) *Session
	Get(identityID string) (*Session, bool)
	DeleteIfUnused(identityID string)
	// Live reports whether a session for identityID is currently held, possibly by another
	// instance when the registry is shared.
	Live(ctx context.Context, identityID string) (bool, error)
}

// QuizService wires live sessions to their collaborators.
type QuizService struct {
	sessions    SessionRepository
	source      QuestionSource
	snapshots   SnapshotStore
	progression Progression
	logger      *zap.Logger
	now         func() time.Time
}

func NewQuizService(sessions SessionRepository, source QuestionSource, snapshots SnapshotStore, progression Progression, logger *zap.Logger) *QuizService {
	return NewQuizServiceWithClock(sessions, source, snapshots, progression, logger, time.Now)
}

// NewQuizServiceWithClock is test-only for deterministic timestamps.
func NewQuizServiceWithClock(sessions SessionRepository, source QuestionSource, snapshots SnapshotStore, progression Progression, logger *zap.Logger, now func() time.Time) *QuizService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizService{
		sessions:    sessions,
		source:      source,
		snapshots:   snapshots,
		progression: progression,
		logger:      logger,
		now:         now,
	}
}

// Session returns the live session of identity, creating an idle one if needed.
func (s *QuizService) Session(identity domain.Identity) *Session {
	return s.sessions.GetOrCreate(identity.ID, func() *Session {
		return newSession(identity, s.source, s.snapshots, s.progression, s.logger, s.now)
	})
}

// Connect returns the session of identity after trying to resume a persisted attempt.
func (s *QuizService) Connect(ctx context.Context, identity domain.Identity) (*Session, bool, error) {
	session := s.Session(identity)
	resumed, err := session.Resume(ctx)
	return session, resumed, err
}

// Release drops the live session of identityID once nobody is attached to it. A persisted
// in-progress attempt stays resumable.
func (s *QuizService) Release(identityID string) {
	s.sessions.DeleteIfUnused(identityID)
}

// Connected reports whether identityID has a live session somewhere.
func (s *QuizService) Connected(ctx context.Context, identityID string) (bool, error) {
	return s.sessions.Live(ctx, identityID)
}

// ActiveAttempt reports the persisted attempt of identityID without resuming it.
func (s *QuizService) ActiveAttempt(ctx context.Context, identityID string) (domain.ActiveAttempt, bool, error) {
	if session, ok := s.sessions.Get(identityID); ok {
		if info, live := session.activeAttempt(); live {
			return info, true, nil
		}
	}

	snap, ok, err := s.snapshots.Load(ctx, identityID)
	if err != nil || !ok {
		return domain.ActiveAttempt{}, false, err
	}
	remaining := domain.RemainingAt(snap.StartedAt, s.now(), domain.TimeBudget)
	if snap.Phase != domain.PhaseInProgress || len(snap.Questions) == 0 || remaining == 0 {
		return domain.ActiveAttempt{}, false, nil
	}
	return domain.ActiveAttempt{
		AttemptID:         snap.AttemptID,
		QuestionsAnswered: snap.Answered(),
		TotalQuestions:    len(snap.Questions),
		Score:             snap.Score,
		TimeRemaining:     remaining,
		Preferences:       snap.Preferences,
	}, true, nil
}
