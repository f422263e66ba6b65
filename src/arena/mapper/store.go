package mapper

import (
	"encoding/json"
	"fmt"

	"github.com/devarena/arena/src/arena/entity"
	"github.com/devarena/arena/src/arena/model"
	"github.com/gofrs/uuid"
)

// RowToRepository maps a repositories row to its entity equivalent.
func RowToRepository(row *model.RepositoryRow) (*entity.Repository, error) {
	ids, err := parseUUIDs(row.ID, row.UserID, row.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("repository row: %w", err)
	}
	return &entity.Repository{
		ID:          ids[0],
		UserID:      ids[1],
		ChallengeID: ids[2],
		RepoURL:     row.RepoURL,
		HostedURL:   row.HostedURL,
	}, nil
}

// RowToSession maps a sessions row to its entity equivalent.
func RowToSession(row *model.SessionRow) (*entity.Session, error) {
	userID, err := uuid.FromString(row.UserID)
	if err != nil {
		return nil, fmt.Errorf("session row: %w", err)
	}
	return &entity.Session{
		Token:     row.Token,
		UserID:    userID,
		ExpiresAt: row.ExpiresAt,
	}, nil
}

// RowToProgress maps a progress row to its entity equivalent. A missing details column is an unstarted step counter.
func RowToProgress(row *model.ProgressRow) (*entity.Progress, error) {
	ids, err := parseUUIDs(row.ID, row.UserID, row.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("progress row: %w", err)
	}

	var details entity.ProgressDetails
	if row.Details.Valid && row.Details.String != "" {
		if err := json.Unmarshal([]byte(row.Details.String), &details); err != nil {
			return nil, fmt.Errorf("progress details: %w", err)
		}
	}

	return &entity.Progress{
		ID:          ids[0],
		UserID:      ids[1],
		ChallengeID: ids[2],
		Status:      entity.ProgressStatus(row.Status),
		Details:     details,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

// ProgressToRow maps a Progress entity to its row equivalent.
func ProgressToRow(p *entity.Progress) (*model.ProgressRow, error) {
	details, err := json.Marshal(p.Details)
	if err != nil {
		return nil, fmt.Errorf("progress details: %w", err)
	}
	row := &model.ProgressRow{
		ID:          p.ID.String(),
		UserID:      p.UserID.String(),
		ChallengeID: p.ChallengeID.String(),
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	row.Details.String = string(details)
	row.Details.Valid = true
	return row, nil
}

func parseUUIDs(values ...string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, len(values))
	for i, v := range values {
		id, err := uuid.FromString(v)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}
