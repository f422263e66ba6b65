package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/devarena/arena/src/arena/entity"
	"github.com/devarena/arena/src/arena/internal/clock"
	"github.com/devarena/arena/src/arena/internal/errors"
	"github.com/devarena/arena/src/arena/internal/fs"
	"github.com/devarena/arena/src/arena/mapper"
	"github.com/devarena/arena/src/arena/model"
	"github.com/gofrs/uuid"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

const _configKey = "persistence"

// Fixed width so that stored timestamps sort lexicographically.
const _timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is the persistence collaborator consumed by the event pipeline and the handshake.
type Store interface {
	// FindRepository returns the repository hosted at url.
	FindRepository(ctx context.Context, url string) (*entity.Repository, error)
	// FindSessionByUser returns the user's most recent unexpired session.
	FindSessionByUser(ctx context.Context, userID uuid.UUID) (*entity.Session, error)
	// FindSessionByToken returns the session identified by token, expired or not.
	FindSessionByToken(ctx context.Context, token string) (*entity.Session, error)
	// AdvanceProgress moves the user one step forward in the challenge.
	AdvanceProgress(ctx context.Context, userID, challengeID uuid.UUID) (*entity.Progress, error)
	// LeaderboardScore returns the user's score, zero when the user has none.
	LeaderboardScore(ctx context.Context, userID uuid.UUID) (int, error)
	// Ping reports whether the database is reachable.
	Ping(ctx context.Context) error
}

// Config is the persistence configuration block.
type Config struct {
	Path     string `yaml:"path"`
	SeedFile string `yaml:"seedFile"`
}

// Params are the dependencies of the SQLite store.
type Params struct {
	fx.In

	Config    config.Provider
	Lifecycle fx.Lifecycle
	Logger    *zap.SugaredLogger
	Clock     clock.Clock
	FS        fs.ArenaFS
}

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	clock  clock.Clock
	logger *zap.SugaredLogger
}

// New opens the configured database, applies the schema and loads the seed file if one is set.
func New(p Params) (Store, error) {
	var cfg Config
	if err := p.Config.Get(_configKey).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKey, err)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("missing field %q in config", _configKey+".path")
	}

	if cfg.Path != ":memory:" {
		if err := p.FS.MkdirAll(filepath.Dir(cfg.Path)); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	s, err := Open(cfg.Path, p.Clock, p.Logger)
	if err != nil {
		return nil, err
	}

	if cfg.SeedFile != "" {
		data, err := p.FS.ReadFile(cfg.SeedFile)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("reading seed file: %w", err)
		}
		fixtures, err := ParseFixtures(data)
		if err != nil {
			s.Close()
			return nil, err
		}
		if err := s.Seed(context.Background(), fixtures); err != nil {
			s.Close()
			return nil, err
		}
		p.Logger.Infow("seed fixtures loaded", zap.String("file", cfg.SeedFile))
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return s.Close()
		},
	})

	return s, nil
}

// Open opens or creates the SQLite database at path and applies the schema.
func Open(path string, clk clock.Clock, logger *zap.SugaredLogger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, clock: clk, logger: logger}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	logger.Infow("database ready", zap.String("path", path))
	return s, nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS challenges (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			module_count INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS repositories (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			challenge_id TEXT NOT NULL,
			repo_url TEXT NOT NULL,
			hosted_url TEXT NOT NULL,
			FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE,
			FOREIGN KEY(challenge_id) REFERENCES challenges(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_repositories_hosted_url ON repositories(hosted_url);`,
		`CREATE INDEX IF NOT EXISTS idx_repositories_repo_url ON repositories(repo_url);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, expires_at);`,
		`CREATE TABLE IF NOT EXISTS progress (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			challenge_id TEXT NOT NULL,
			status TEXT NOT NULL,
			progress_details TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(user_id, challenge_id),
			FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE,
			FOREIGN KEY(challenge_id) REFERENCES challenges(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS leaderboard (
			user_id TEXT PRIMARY KEY,
			score INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
		);`,
	}

	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("migrate sqlite schema: %w", err)
		}
	}
	return nil
}

// FindRepository matches url against the hosted url first and the repository url second.
func (s *SQLiteStore) FindRepository(ctx context.Context, url string) (*entity.Repository, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, user_id, challenge_id, repo_url, hosted_url
		 FROM repositories
		 WHERE hosted_url = ? OR repo_url = ?
		 ORDER BY hosted_url = ? DESC
		 LIMIT 1`,
		url, url, url,
	)

	var r model.RepositoryRow
	if err := row.Scan(&r.ID, &r.UserID, &r.ChallengeID, &r.RepoURL, &r.HostedURL); err != nil {
		if err == sql.ErrNoRows {
			return nil, &errors.RepositoryNotFoundError{URL: url}
		}
		return nil, fmt.Errorf("query repository: %w", err)
	}
	return mapper.RowToRepository(&r)
}

func (s *SQLiteStore) FindSessionByUser(ctx context.Context, userID uuid.UUID) (*entity.Session, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT token, user_id, expires_at
		 FROM sessions
		 WHERE user_id = ? AND expires_at > ?
		 ORDER BY expires_at DESC
		 LIMIT 1`,
		userID.String(), formatTime(s.clock.Now()),
	)

	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, &errors.SessionNotFoundError{UserID: userID}
	}
	return sess, err
}

func (s *SQLiteStore) FindSessionByToken(ctx context.Context, token string) (*entity.Session, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT token, user_id, expires_at FROM sessions WHERE token = ?`,
		token,
	)

	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, &errors.SessionNotFoundError{Token: token}
	}
	return sess, err
}

// AdvanceProgress runs in one transaction. Completed progress is returned unchanged; otherwise the step
// counter moves forward, the status becomes completed once every module is done, and the user's
// leaderboard score grows by one while the challenge is still in progress.
func (s *SQLiteStore) AdvanceProgress(ctx context.Context, userID, challengeID uuid.UUID) (_ *entity.Progress, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var moduleCount int
	err = tx.QueryRowContext(ctx, `SELECT module_count FROM challenges WHERE id = ?`, challengeID.String()).Scan(&moduleCount)
	if err == sql.ErrNoRows {
		return nil, &errors.ChallengeNotFoundError{ID: challengeID}
	}
	if err != nil {
		return nil, fmt.Errorf("query challenge: %w", err)
	}

	now := s.clock.Now().UTC()
	progress, err := loadProgress(ctx, tx, userID, challengeID)
	if err == sql.ErrNoRows {
		progress = &entity.Progress{
			ID:          uuid.Must(uuid.NewV4()),
			UserID:      userID,
			ChallengeID: challengeID,
			Status:      entity.ProgressNotStarted,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		err = nil
	}
	if err != nil {
		return nil, err
	}

	if progress.Status == entity.ProgressCompleted {
		if err = tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit transaction: %w", err)
		}
		return progress, nil
	}

	progress.Details.CurrentStep++
	progress.UpdatedAt = now
	if progress.Details.CurrentStep >= moduleCount {
		progress.Status = entity.ProgressCompleted
	} else {
		progress.Status = entity.ProgressInProgress
	}

	row, err := mapper.ProgressToRow(progress)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO progress(id, user_id, challenge_id, status, progress_details, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, challenge_id) DO UPDATE SET
			status = excluded.status,
			progress_details = excluded.progress_details,
			updated_at = excluded.updated_at`,
		row.ID, row.UserID, row.ChallengeID, row.Status, row.Details, formatTime(row.CreatedAt), formatTime(row.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert progress: %w", err)
	}

	if progress.Status != entity.ProgressCompleted {
		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO leaderboard(user_id, score) VALUES (?, 1)
			 ON CONFLICT(user_id) DO UPDATE SET score = score + 1`,
			userID.String(),
		)
		if err != nil {
			return nil, fmt.Errorf("update leaderboard: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return progress, nil
}

func (s *SQLiteStore) LeaderboardScore(ctx context.Context, userID uuid.UUID) (int, error) {
	var score int
	err := s.db.QueryRowContext(ctx, `SELECT score FROM leaderboard WHERE user_id = ?`, userID.String()).Scan(&score)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query leaderboard: %w", err)
	}
	return score, nil
}

func loadProgress(ctx context.Context, tx *sql.Tx, userID, challengeID uuid.UUID) (*entity.Progress, error) {
	var (
		r                  model.ProgressRow
		createdRaw, updRaw string
	)
	err := tx.QueryRowContext(
		ctx,
		`SELECT id, user_id, challenge_id, status, progress_details, created_at, updated_at
		 FROM progress
		 WHERE user_id = ? AND challenge_id = ?`,
		userID.String(), challengeID.String(),
	).Scan(&r.ID, &r.UserID, &r.ChallengeID, &r.Status, &r.Details, &createdRaw, &updRaw)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}

	if r.CreatedAt, err = parseTime(createdRaw); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTime(updRaw); err != nil {
		return nil, err
	}
	return mapper.RowToProgress(&r)
}

func scanSession(row *sql.Row) (*entity.Session, error) {
	var (
		r         model.SessionRow
		expiresAt string
	)
	if err := row.Scan(&r.Token, &r.UserID, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("query session: %w", err)
	}

	var err error
	if r.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	return mapper.RowToSession(&r)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(_timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(_timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t, nil
}
