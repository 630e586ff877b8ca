// Package statemanager owns WorkflowState and its persistence, grounded on
// the DAG executor's execution_state.go/execution_checkpoint.go but widened
// to the standalone create/update/checkpoint/snapshot/lifecycle contract
// that drives the engine ahead of a DAGExecutor.Execute call.
package statemanager

import (
	"time"
)

// Status is the lifecycle stage of a WorkflowState.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// HistoryEntry records one mutation of a WorkflowState's variables, forming
// the append-only audit trail that set_variable, delete_variable and
// update_state write to.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"` // "set_variable" | "delete_variable" | "update_state"
	Key       string    `json:"key,omitempty"`
	Value     any       `json:"value,omitempty"`
}

// cacheEntry is a TTL-bearing cache slot on a WorkflowState.
type cacheEntry struct {
	Value     any       `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// WorkflowState is the persisted unit the StateManager owns.
type WorkflowState struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflow_id"`
	ExecutionID string         `json:"execution_id"`
	Status      Status         `json:"status"`
	Context     map[string]any `json:"context"`
	Session     map[string]any `json:"session"`
	Cache       map[string]cacheEntry `json:"cache"`
	History     []HistoryEntry `json:"history"`
	Version     int64          `json:"version"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// StateCheckpoint is a point-in-time copy of a state's context taken at a
// specific node, used to resume execution from that node.
type StateCheckpoint struct {
	ID        string         `json:"id"`
	StateID   string         `json:"state_id"`
	NodeID    string         `json:"node_id"`
	Context   map[string]any `json:"context"`
	Version   int64          `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
}

// StateSnapshot is a full-state backup, optionally gzip-compressed above
// CompressionThreshold bytes, retained up to MaxSnapshots per state (FIFO
// eviction of the oldest beyond the cap).
type StateSnapshot struct {
	ID         string    `json:"id"`
	StateID    string    `json:"state_id"`
	Reason     string    `json:"reason"`
	Compressed bool      `json:"compressed"`
	Data       []byte    `json:"data"` // JSON-encoded WorkflowState, optionally gzipped
	CreatedAt  time.Time `json:"created_at"`
}

// CacheStats tallies hit/miss counters for a state's cache accessors.
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Expired int64 `json:"expired"`
}
