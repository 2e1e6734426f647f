package job

import "encoding/json"

// Job is the internal record tracked in Redis while an asynchronous
// acquisition runs. Request and Result are stored as raw JSON so this
// package stays independent of the producing service's types.
type Job struct {
	JobID   string          `json:"job_id"`
	Type    Type            `json:"type"`
	Status  Status          `json:"status"`
	Request json.RawMessage `json:"request,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// Type classifies the work behind a job id.
type Type string

const TypeAcquire Type = "acquire"

// Status tracks a job through its lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)
