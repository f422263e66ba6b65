package model

import (
	"time"

	"github.com/gofrs/uuid"
)

// Connection is the registry layer record for a single live client connection.
type Connection struct {
	ID            uuid.UUID
	Token         string
	LastHeartbeat time.Time
}
