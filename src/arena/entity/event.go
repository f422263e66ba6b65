// Package entity contains the domain types of the arena event fan-out service.
package entity

import (
	"encoding/json"
	"strings"
)

// Event type names as they appear on the wire.
const (
	EventTypePush      = "push"
	EventTypeTest      = "test"
	EventTypeBroadcast = "broadcast"
)

// Event is a normalized inbound event. Variants are PushEvent, TestResultEvent and GenericEvent.
type Event interface {
	// Type returns the lower-case event type name.
	Type() string
	isEvent()
}

// RepoEvent is an event addressed to the session that owns a repository.
type RepoEvent interface {
	Event
	Repo() string
}

// PushEvent reports a push to a tracked repository.
type PushEvent struct {
	RepoURL   string
	Branch    string
	CommitSHA string
}

func (PushEvent) Type() string { return EventTypePush }

// Repo returns the repository the push was made to.
func (e PushEvent) Repo() string { return e.RepoURL }

func (PushEvent) isEvent() {}

// TestResultEvent reports the outcome of an automated test run.
type TestResultEvent struct {
	RepoURL   string
	CommitSHA string
	Success   bool
	Output    string
	Error     string
	TestName  string
}

func (TestResultEvent) Type() string { return EventTypeTest }

// Repo returns the repository the tests ran against.
func (e TestResultEvent) Repo() string { return e.RepoURL }

func (TestResultEvent) isEvent() {}

// GenericEvent carries an opaque payload with no session affinity.
type GenericEvent struct {
	Name    string
	Payload json.RawMessage
}

func (e GenericEvent) Type() string { return strings.ToLower(e.Name) }

func (GenericEvent) isEvent() {}
