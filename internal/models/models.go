// Package models defines the core domain types for tasktrack.
package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Task is one entry of a user's on-chain task list. Its identity is its
// position in the list returned by getUserTasks.
type Task struct {
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
	Timestamp   uint64 `json:"timestamp"`
}

// CreatedAt returns the task timestamp as a time value.
func (t Task) CreatedAt() time.Time {
	return time.Unix(int64(t.Timestamp), 0)
}

// SubmissionKind identifies the mutating contract call being tracked.
type SubmissionKind string

const (
	SubmissionCreate   SubmissionKind = "create"
	SubmissionComplete SubmissionKind = "complete"
)

// SubmissionStatus represents the lifecycle state of a submission.
type SubmissionStatus string

const (
	SubmissionIdle       SubmissionStatus = "idle"
	SubmissionPending    SubmissionStatus = "pending"    // awaiting wallet signature
	SubmissionConfirming SubmissionStatus = "confirming" // awaiting chain receipt
	SubmissionSucceeded  SubmissionStatus = "succeeded"
	SubmissionFailed     SubmissionStatus = "failed"
)

// InFlight reports whether a submission in this state blocks new intents.
func (s SubmissionStatus) InFlight() bool {
	return s == SubmissionPending || s == SubmissionConfirming
}

// Submission is the client-side record of one mutating contract call.
type Submission struct {
	ID          string           `json:"id,omitempty"`
	Kind        SubmissionKind   `json:"kind,omitempty"`
	Description string           `json:"description,omitempty"` // create payload
	Index       int              `json:"index,omitempty"`       // complete payload
	Status      SubmissionStatus `json:"status"`
	TxHash      *common.Hash     `json:"tx_hash,omitempty"`
	Err         error            `json:"-"`
	StartedAt   time.Time        `json:"started_at,omitempty"`
}

// UserProfile is the host-provided identity of the current user.
type UserProfile struct {
	ID     uint64 `json:"id"`
	Handle string `json:"handle"`
}

// LaunchLocation describes where the host launched the application from.
type LaunchLocation struct {
	Kind string `json:"kind"`
}

// HostContext is the validated context object supplied by an embedding host.
type HostContext struct {
	User     *UserProfile    `json:"user,omitempty"`
	Location *LaunchLocation `json:"location,omitempty"`
}
