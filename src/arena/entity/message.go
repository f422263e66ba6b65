package entity

import (
	"encoding/json"
	"fmt"
)

// FrameType is the websocket data frame kind.
type FrameType int

const (
	// FrameText is a UTF-8 text frame.
	FrameText FrameType = iota + 1
	// FrameBinary is a binary frame.
	FrameBinary
)

func (t FrameType) String() string {
	switch t {
	case FrameText:
		return "text"
	case FrameBinary:
		return "binary"
	}
	return fmt.Sprintf("FrameType(%d)", int(t))
}

// Frame is the unit written to a client transport.
type Frame struct {
	Type FrameType
	Data []byte
}

// TextFrame returns a text frame holding data.
func TextFrame(data []byte) Frame {
	return Frame{Type: FrameText, Data: data}
}

// Message is an outbound message. Each variant knows how to encode itself into a Frame.
type Message interface {
	Frame() (Frame, error)
	isMessage()
}

// PushMessage notifies a session about a push.
type PushMessage struct {
	Event PushEvent
}

type pushWire struct {
	EventType string `json:"event_type"`
	RepoURL   string `json:"repoUrl"`
	Branch    string `json:"branch"`
	CommitSHA string `json:"commitSha"`
}

// Frame encodes the push as a JSON text frame.
func (m PushMessage) Frame() (Frame, error) {
	return jsonFrame(pushWire{
		EventType: EventTypePush,
		RepoURL:   m.Event.RepoURL,
		Branch:    m.Event.Branch,
		CommitSHA: m.Event.CommitSHA,
	})
}

func (PushMessage) isMessage() {}

// TestResultMessage notifies a session about a test run, with the updated progress when the run succeeded.
type TestResultMessage struct {
	Event    TestResultEvent
	Progress *Progress
}

type testResultWire struct {
	EventType string `json:"event_type"`
	CommitSHA string `json:"commitSha"`
	RepoURL   string `json:"repoUrl"`
	Success   bool   `json:"success"`
	Output    string `json:"output"`
	Error     string `json:"error,omitempty"`
	TestName  string `json:"test_name,omitempty"`
}

// Frame encodes the result as a JSON object, or as the pair [result, progress] when progress is set.
func (m TestResultMessage) Frame() (Frame, error) {
	result := testResultWire{
		EventType: EventTypeTest,
		CommitSHA: m.Event.CommitSHA,
		RepoURL:   m.Event.RepoURL,
		Success:   m.Event.Success,
		Output:    m.Event.Output,
		Error:     m.Event.Error,
		TestName:  m.Event.TestName,
	}
	if m.Progress == nil {
		return jsonFrame(result)
	}
	return jsonFrame([]interface{}{result, m.Progress})
}

func (TestResultMessage) isMessage() {}

// GenericMessage forwards a generic event to every client.
type GenericMessage struct {
	Event GenericEvent
}

type genericWire struct {
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

// Frame encodes the event type and its payload as a JSON text frame.
func (m GenericMessage) Frame() (Frame, error) {
	payload := m.Event.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return jsonFrame(genericWire{EventType: m.Event.Type(), Payload: payload})
}

func (GenericMessage) isMessage() {}

// RelayMessage is a client frame forwarded verbatim to the other connections of its session.
type RelayMessage struct {
	Original Frame
}

// Frame returns the original frame unchanged.
func (m RelayMessage) Frame() (Frame, error) {
	return m.Original, nil
}

func (RelayMessage) isMessage() {}

func jsonFrame(v interface{}) (Frame, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Frame{}, fmt.Errorf("encoding message: %w", err)
	}
	return TextFrame(data), nil
}
