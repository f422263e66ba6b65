package store

import (
	"context"
	"fmt"
	"time"

	"github.com/devarena/arena/src/arena/entity"
	"github.com/devarena/arena/src/arena/mapper"
	"github.com/devarena/arena/src/arena/model"
	"github.com/gofrs/uuid"
	"gopkg.in/yaml.v3"
)

// Fixtures are development records loaded into an empty database at startup.
type Fixtures struct {
	Users        []UserFixture       `yaml:"users"`
	Challenges   []ChallengeFixture  `yaml:"challenges"`
	Repositories []RepositoryFixture `yaml:"repositories"`
	Sessions     []SessionFixture    `yaml:"sessions"`
	Progress     []ProgressFixture   `yaml:"progress"`
}

type UserFixture struct {
	ID       string `yaml:"id"`
	Username string `yaml:"username"`
}

type ChallengeFixture struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	ModuleCount int    `yaml:"moduleCount"`
}

type RepositoryFixture struct {
	ID          string `yaml:"id"`
	UserID      string `yaml:"userId"`
	ChallengeID string `yaml:"challengeId"`
	RepoURL     string `yaml:"repoUrl"`
	HostedURL   string `yaml:"hostedUrl"`
}

// SessionFixture expires TTL after the fixtures are loaded.
type SessionFixture struct {
	Token  string        `yaml:"token"`
	UserID string        `yaml:"userId"`
	TTL    time.Duration `yaml:"ttl"`
}

// ProgressFixture starts a user part way through a challenge.
type ProgressFixture struct {
	UserID      string `yaml:"userId"`
	ChallengeID string `yaml:"challengeId"`
	Status      string `yaml:"status"`
	CurrentStep int    `yaml:"currentStep"`
}

// ParseFixtures decodes a YAML fixtures document.
func ParseFixtures(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding seed fixtures: %w", err)
	}
	return &f, nil
}

// Seed inserts the fixtures in one transaction. Existing rows are replaced.
func (s *SQLiteStore) Seed(ctx context.Context, f *Fixtures) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, u := range f.Users {
		if _, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO users(id, username) VALUES (?, ?)`, u.ID, u.Username); err != nil {
			return fmt.Errorf("seed user %q: %w", u.ID, err)
		}
	}
	for _, c := range f.Challenges {
		if _, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO challenges(id, title, module_count) VALUES (?, ?, ?)`, c.ID, c.Title, c.ModuleCount); err != nil {
			return fmt.Errorf("seed challenge %q: %w", c.ID, err)
		}
	}
	for _, r := range f.Repositories {
		_, err = tx.ExecContext(
			ctx,
			`INSERT OR REPLACE INTO repositories(id, user_id, challenge_id, repo_url, hosted_url) VALUES (?, ?, ?, ?, ?)`,
			r.ID, r.UserID, r.ChallengeID, r.RepoURL, r.HostedURL,
		)
		if err != nil {
			return fmt.Errorf("seed repository %q: %w", r.ID, err)
		}
	}
	now := s.clock.Now()
	for _, sess := range f.Sessions {
		_, err = tx.ExecContext(
			ctx,
			`INSERT OR REPLACE INTO sessions(token, user_id, expires_at) VALUES (?, ?, ?)`,
			sess.Token, sess.UserID, formatTime(now.Add(sess.TTL)),
		)
		if err != nil {
			return fmt.Errorf("seed session for user %q: %w", sess.UserID, err)
		}
	}
	for _, p := range f.Progress {
		var (
			ids []uuid.UUID
			row *model.ProgressRow
		)
		if ids, err = parseFixtureUUIDs(p.UserID, p.ChallengeID); err != nil {
			return fmt.Errorf("seed progress for user %q: %w", p.UserID, err)
		}
		row, err = mapper.ProgressToRow(&entity.Progress{
			ID:          uuid.Must(uuid.NewV4()),
			UserID:      ids[0],
			ChallengeID: ids[1],
			Status:      entity.ProgressStatus(p.Status),
			Details:     entity.ProgressDetails{CurrentStep: p.CurrentStep},
			CreatedAt:   now.UTC(),
			UpdatedAt:   now.UTC(),
		})
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(
			ctx,
			`INSERT OR REPLACE INTO progress(id, user_id, challenge_id, status, progress_details, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			row.ID, row.UserID, row.ChallengeID, row.Status, row.Details, formatTime(row.CreatedAt), formatTime(row.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("seed progress for user %q: %w", p.UserID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func parseFixtureUUIDs(values ...string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.FromString(v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
