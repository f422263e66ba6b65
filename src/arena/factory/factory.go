package factory

import (
	"fmt"
	"time"

	"github.com/devarena/arena/src/arena/entity"
	"github.com/gofrs/uuid"
)

// UUID is a user-defined factory for a random uuid.UUID.
func UUID() uuid.UUID {
	return uuid.Must(uuid.NewV4())
}

// Session is a factory for a session that expires in an hour.
func Session(token string) *entity.Session {
	return &entity.Session{
		Token:     token,
		UserID:    UUID(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

// Repository is a factory for a repository owned by userID.
func Repository(userID uuid.UUID, repoURL string) *entity.Repository {
	id := UUID()
	return &entity.Repository{
		ID:          id,
		UserID:      userID,
		ChallengeID: UUID(),
		RepoURL:     repoURL,
		HostedURL:   fmt.Sprintf("ssh://git.localhost/%s", id),
	}
}

// Resolution is a factory for a resolved session and repository pair.
func Resolution(token string, repoURL string) *entity.Resolution {
	s := Session(token)
	return &entity.Resolution{
		Session:    s,
		Repository: Repository(s.UserID, repoURL),
	}
}

// Progress is a factory for a progress record at step.
func Progress(userID, challengeID uuid.UUID, status entity.ProgressStatus, step int) *entity.Progress {
	now := time.Now().UTC()
	return &entity.Progress{
		ID:          UUID(),
		UserID:      userID,
		ChallengeID: challengeID,
		Status:      status,
		Details:     entity.ProgressDetails{CurrentStep: step},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TextFrame is a factory for a text frame with the given contents.
func TextFrame(s string) entity.Frame {
	return entity.TextFrame([]byte(s))
}
