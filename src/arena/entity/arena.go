package entity

import (
	"time"

	"github.com/gofrs/uuid"
)

// ProgressStatus is the state of a user's attempt at a challenge.
type ProgressStatus string

const (
	ProgressNotStarted ProgressStatus = "not_started"
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressCompleted  ProgressStatus = "completed"
)

// Session is a logged-in user session identified by its opaque token.
type Session struct {
	Token     string    `json:"-"`
	UserID    uuid.UUID `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Repository is a user's copy of a challenge's starter repository.
type Repository struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	ChallengeID uuid.UUID `json:"challenge_id"`
	RepoURL     string    `json:"repo_url"`
	HostedURL   string    `json:"hosted_url"`
}

// Challenge is a coding challenge made of an ordered set of modules.
type Challenge struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	ModuleCount int       `json:"module_count"`
}

// ProgressDetails holds the per-challenge step counter.
type ProgressDetails struct {
	CurrentStep int `json:"current_step"`
}

// Progress is a user's advancement through a challenge.
type Progress struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	ChallengeID uuid.UUID       `json:"challenge_id"`
	Status      ProgressStatus  `json:"status"`
	Details     ProgressDetails `json:"progress_details"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Resolution is the session and repository an event was resolved to.
type Resolution struct {
	Session    *Session
	Repository *Repository
}
