package model

import "encoding/json"

// WebhookEnvelope is the body accepted by the webhook endpoint.
type WebhookEnvelope struct {
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

// WebhookPushPayload is the payload of a push webhook. Branch is accepted under either key.
type WebhookPushPayload struct {
	RepoURL   string `json:"repoUrl"`
	BranchURL string `json:"branchUrl"`
	Branch    string `json:"branch"`
	CommitSHA string `json:"commitSha"`
}

// WebhookTestPayload is the payload of a test webhook. Outcome and message are aliases of success and output.
type WebhookTestPayload struct {
	RepoURL   string `json:"repoUrl"`
	CommitSHA string `json:"commitSha"`
	Outcome   *bool  `json:"outcome"`
	Success   *bool  `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Output    string `json:"output"`
	TestName  string `json:"test_name"`
}

// QueuePushMessage is a message on the webhook handler queue.
type QueuePushMessage struct {
	EventType string  `json:"event_type"`
	RepoURL   *string `json:"repoUrl"`
	Branch    *string `json:"branch"`
	CommitSHA *string `json:"commitSha"`
}

// QueueTestResult is the result produced by the test runner.
type QueueTestResult struct {
	EventType string `json:"event_type"`
	CommitSHA string `json:"commitSha"`
	RepoURL   string `json:"repoUrl"`
	Success   bool   `json:"success"`
	Output    string `json:"output"`
}

// QueueTestMessage is a message on the test runner queue.
type QueueTestMessage struct {
	Result *QueueTestResult `json:"result"`
}
