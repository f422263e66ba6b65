package mapper

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/devarena/arena/src/arena/entity"
	"github.com/devarena/arena/src/arena/internal/errors"
	"github.com/devarena/arena/src/arena/model"
)

// WebhookToEvent decodes a webhook request body into an Event.
func WebhookToEvent(body []byte) (entity.Event, error) {
	var envelope model.WebhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &errors.MalformedError{Err: fmt.Errorf("decoding webhook body: %w", err)}
	}
	if envelope.EventType == "" {
		return nil, &errors.MalformedError{Err: errors.New("event_type is missing")}
	}

	switch strings.ToLower(envelope.EventType) {
	case entity.EventTypePush:
		var p model.WebhookPushPayload
		if err := decodePayload(envelope.Payload, &p); err != nil {
			return nil, err
		}
		branch := p.Branch
		if branch == "" {
			branch = p.BranchURL
		}
		return entity.PushEvent{RepoURL: p.RepoURL, Branch: branch, CommitSHA: p.CommitSHA}, nil

	case entity.EventTypeTest:
		var p model.WebhookTestPayload
		if err := decodePayload(envelope.Payload, &p); err != nil {
			return nil, err
		}
		success := p.Outcome
		if success == nil {
			success = p.Success
		}
		if success == nil {
			return nil, &errors.MalformedError{Err: errors.New("test outcome is missing")}
		}
		output := p.Message
		if output == "" {
			output = p.Output
		}
		return entity.TestResultEvent{
			RepoURL:   p.RepoURL,
			CommitSHA: p.CommitSHA,
			Success:   *success,
			Output:    output,
			Error:     p.Error,
			TestName:  p.TestName,
		}, nil

	case entity.EventTypeBroadcast:
		return entity.GenericEvent{Name: envelope.EventType, Payload: envelope.Payload}, nil
	}

	return nil, &errors.MalformedError{Err: fmt.Errorf("unknown event type %q", envelope.EventType)}
}

// QueuePushToEvent decodes a message from the webhook handler queue.
func QueuePushToEvent(body []byte) (entity.Event, error) {
	var msg model.QueuePushMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, &errors.MalformedError{Err: fmt.Errorf("decoding queue message: %w", err)}
	}
	if !strings.EqualFold(msg.EventType, entity.EventTypePush) {
		return nil, &errors.MalformedError{Err: fmt.Errorf("unknown event type %q", msg.EventType)}
	}
	return entity.PushEvent{
		RepoURL:   deref(msg.RepoURL),
		Branch:    deref(msg.Branch),
		CommitSHA: deref(msg.CommitSHA),
	}, nil
}

// QueueTestToEvent decodes a message from the test runner queue.
func QueueTestToEvent(body []byte) (entity.Event, error) {
	var msg model.QueueTestMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, &errors.MalformedError{Err: fmt.Errorf("decoding queue message: %w", err)}
	}
	if msg.Result == nil {
		return nil, &errors.MalformedError{Err: errors.New("result is missing")}
	}
	return entity.TestResultEvent{
		RepoURL:   msg.Result.RepoURL,
		CommitSHA: msg.Result.CommitSHA,
		Success:   msg.Result.Success,
		Output:    msg.Result.Output,
	}, nil
}

func decodePayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return &errors.MalformedError{Err: errors.New("payload is missing")}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &errors.MalformedError{Err: fmt.Errorf("decoding payload: %w", err)}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
