package service

import (
	"errors"
	"sync"
	"time"

	"github.com/okian/arcadehub/internal/domain/engine"
	"github.com/okian/arcadehub/internal/domain/submission"
)

// SubmissionStatus is the lifecycle of a session's latest submission.
type SubmissionStatus string

// Submission statuses.
const (
	SubmissionNone     SubmissionStatus = "none"
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionAccepted SubmissionStatus = "accepted"
	SubmissionFailed   SubmissionStatus = "failed"
)

// SubmissionView describes the latest submission of a session.
type SubmissionView struct {
	Status  SubmissionStatus `json:"status"`
	Score   *int             `json:"score,omitempty"`
	Code    string           `json:"code,omitempty"`
	Message string           `json:"message,omitempty"`
}

// SessionView is the renderable state of a session.
type SessionView struct {
	ID         string          `json:"id"`
	GameID     string          `json:"gameId"`
	CreatedAt  time.Time       `json:"createdAt"`
	LastActive time.Time       `json:"lastActive"`
	Snapshot   engine.Snapshot `json:"snapshot"`
	Submission SubmissionView  `json:"submission"`
}

// session owns one engine. The engine has its own lock; mu guards the rest.
type session struct {
	id      string
	gameID  string
	engine  engine.Engine
	created time.Time

	mu         sync.Mutex
	lastActive time.Time
	submission SubmissionView
	// terminalSeen is the snapshot version at which the outcome was last recorded.
	terminalSeen uint64
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// firstTerminal reports whether snap is a terminal state not reported before.
func (s *session) firstTerminal(snap engine.Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !snap.Terminal || s.terminalSeen == snap.Version {
		return false
	}
	s.terminalSeen = snap.Version
	return true
}

func (s *session) setSubmission(v SubmissionView) {
	s.mu.Lock()
	s.submission = v
	s.mu.Unlock()
}

func (s *session) view() SessionView {
	snap := s.engine.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionView{
		ID:         s.id,
		GameID:     s.gameID,
		CreatedAt:  s.created,
		LastActive: s.lastActive,
		Snapshot:   snap,
		Submission: s.submission,
	}
}

// ErrorCode names the error class of a submission failure.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, submission.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, submission.ErrInvalidSubmission):
		return "invalid_submission"
	case errors.Is(err, submission.ErrBackpressure):
		return "backpressure"
	default:
		return "remote_failure"
	}
}
