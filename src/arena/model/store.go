package model

import (
	"database/sql"
	"time"
)

// RepositoryRow is a row of the repositories table.
type RepositoryRow struct {
	ID          string
	UserID      string
	ChallengeID string
	RepoURL     string
	HostedURL   string
}

// SessionRow is a row of the sessions table.
type SessionRow struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// ProgressRow is a row of the progress table. Details holds the JSON encoded progress details.
type ProgressRow struct {
	ID          string
	UserID      string
	ChallengeID string
	Status      string
	Details     sql.NullString
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
