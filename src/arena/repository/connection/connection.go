package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devarena/arena/src/arena/entity"
	"github.com/devarena/arena/src/arena/internal/clock"
	"github.com/devarena/arena/src/arena/internal/errors"
	"github.com/devarena/arena/src/arena/model"
	"github.com/gofrs/uuid"
	"github.com/uber-go/tally"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Sender is the write side of a client connection. Send must not block.
type Sender interface {
	Send(frame entity.Frame) error
	Close() error
}

// Registry tracks live client connections grouped by session token.
type Registry interface {
	Register(ctx context.Context, token string, sender Sender) (uuid.UUID, error)
	Unregister(ctx context.Context, id uuid.UUID) error
	UpdateHeartbeat(ctx context.Context, id uuid.UUID) error
	LastHeartbeat(ctx context.Context, id uuid.UUID) (time.Time, error)
	DeliverToSession(ctx context.Context, token string, frame entity.Frame, exclude uuid.UUID) (DeliveryReport, error)
	DeliverToAll(ctx context.Context, frame entity.Frame) (DeliveryReport, error)
	SessionConnections(ctx context.Context, token string) []uuid.UUID
	ConnectionCount(ctx context.Context) int
	SessionCount(ctx context.Context) int
}

// DeliveryReport summarizes a single delivery.
type DeliveryReport struct {
	Attempted int
	Failed    int
}

// Delivered returns the number of connections that accepted the frame.
func (r DeliveryReport) Delivered() int {
	return r.Attempted - r.Failed
}

// Params are the dependencies of the registry.
type Params struct {
	fx.In

	Stats  tally.Scope
	Logger *zap.SugaredLogger
	Clock  clock.Clock
}

type entry struct {
	record *model.Connection
	sender Sender
}

type target struct {
	id     uuid.UUID
	sender Sender
}

type registry struct {
	mu          sync.RWMutex
	connections map[uuid.UUID]*entry
	sessions    map[string]map[uuid.UUID]struct{}

	stats  tally.Scope
	logger *zap.SugaredLogger
	clock  clock.Clock
}

// New returns an empty connection registry.
func New(p Params) Registry {
	return &registry{
		connections: make(map[uuid.UUID]*entry),
		sessions:    make(map[string]map[uuid.UUID]struct{}),
		stats:       p.Stats.SubScope("registry"),
		logger:      p.Logger,
		clock:       p.Clock,
	}
}

// Register adds a connection under token and returns its new id.
func (r *registry) Register(ctx context.Context, token string, sender Sender) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, errors.MissingTokenError
	}
	if sender == nil {
		return uuid.Nil, errors.New("can't register nil sender")
	}

	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generating connection id: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.connections[id] = &entry{
		record: &model.Connection{
			ID:            id,
			Token:         token,
			LastHeartbeat: r.clock.Now(),
		},
		sender: sender,
	}
	members, ok := r.sessions[token]
	if !ok {
		members = make(map[uuid.UUID]struct{})
		r.sessions[token] = members
	}
	members[id] = struct{}{}
	r.updateGauges()

	return id, nil
}

// Unregister removes the connection and closes its sender. Unknown ids are ignored.
func (r *registry) Unregister(ctx context.Context, id uuid.UUID) error {
	e, ok := r.remove(id)
	if !ok {
		return nil
	}
	return e.sender.Close()
}

// remove drops the connection from both indexes and returns its entry.
func (r *registry) remove(id uuid.UUID) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.connections[id]
	if !ok {
		return nil, false
	}
	delete(r.connections, id)
	if members, ok := r.sessions[e.record.Token]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(r.sessions, e.record.Token)
		}
	}
	r.updateGauges()
	return e, true
}

// UpdateHeartbeat records that the connection was seen alive now. Unknown ids are ignored.
func (r *registry) UpdateHeartbeat(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.connections[id]; ok {
		e.record.LastHeartbeat = r.clock.Now()
	}
	return nil
}

// LastHeartbeat returns the time the connection was last seen alive.
func (r *registry) LastHeartbeat(ctx context.Context, id uuid.UUID) (time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.connections[id]
	if !ok {
		return time.Time{}, &errors.ConnectionNotFoundError{ID: id}
	}
	return e.record.LastHeartbeat, nil
}

// DeliverToSession enqueues frame on every connection of token except exclude. uuid.Nil excludes nothing.
func (r *registry) DeliverToSession(ctx context.Context, token string, frame entity.Frame, exclude uuid.UUID) (DeliveryReport, error) {
	r.mu.RLock()
	members := r.sessions[token]
	targets := make([]target, 0, len(members))
	for id := range members {
		if id == exclude {
			continue
		}
		targets = append(targets, target{id: id, sender: r.connections[id].sender})
	}
	r.mu.RUnlock()

	return r.deliver(ctx, targets, frame)
}

// DeliverToAll enqueues frame on every registered connection.
func (r *registry) DeliverToAll(ctx context.Context, frame entity.Frame) (DeliveryReport, error) {
	r.mu.RLock()
	targets := make([]target, 0, len(r.connections))
	for id, e := range r.connections {
		targets = append(targets, target{id: id, sender: e.sender})
	}
	r.mu.RUnlock()

	return r.deliver(ctx, targets, frame)
}

// SessionConnections returns the ids of the connections registered under token.
func (r *registry) SessionConnections(ctx context.Context, token string) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(r.sessions[token]))
	for id := range r.sessions[token] {
		ids = append(ids, id)
	}
	return ids
}

// ConnectionCount returns the total count of live connections.
func (r *registry) ConnectionCount(ctx context.Context) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.connections)
}

// SessionCount returns the count of sessions with at least one live connection.
func (r *registry) SessionCount(ctx context.Context) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// deliver sends to each target outside the lock. Failed connections are removed before it returns and
// their senders are closed in the background, since closing may wait on a stalled transport.
func (r *registry) deliver(ctx context.Context, targets []target, frame entity.Frame) (DeliveryReport, error) {
	var (
		errs   error
		failed []uuid.UUID
	)
	for _, t := range targets {
		if err := t.sender.Send(frame); err != nil {
			r.logger.Warnw("dropping connection after failed send",
				zap.Stringer("connection", t.id),
				zap.Error(err),
			)
			errs = multierr.Append(errs, fmt.Errorf("connection %s: %w", t.id, err))
			failed = append(failed, t.id)
		}
	}

	for _, id := range failed {
		if e, ok := r.remove(id); ok {
			go r.closeEvicted(id, e.sender)
		}
	}

	report := DeliveryReport{Attempted: len(targets), Failed: len(failed)}
	r.stats.Counter("frames_enqueued").Inc(int64(report.Delivered()))
	r.stats.Counter("frames_failed").Inc(int64(report.Failed))

	if report.Attempted > 0 && report.Failed == report.Attempted {
		return report, &errors.DeliveryError{Attempted: report.Attempted, Err: errs}
	}
	return report, nil
}

func (r *registry) closeEvicted(id uuid.UUID, sender Sender) {
	if err := sender.Close(); err != nil {
		r.logger.Debugw("closing failed connection", zap.Stringer("connection", id), zap.Error(err))
	}
}

// updateGauges must be called with the write lock held.
func (r *registry) updateGauges() {
	r.stats.Gauge("active_connections").Update(float64(len(r.connections)))
	r.stats.Gauge("active_sessions").Update(float64(len(r.sessions)))
}
