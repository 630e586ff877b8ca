package statemanager

import "context"

// Persistence is the pluggable storage contract spec.md §4.6 names:
// {save, load, delete, list, close}. save must be durable before
// update_state returns; load/list support recovery on cold start.
type Persistence interface {
	Save(ctx context.Context, state *WorkflowState) error
	Load(ctx context.Context, id string) (*WorkflowState, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*WorkflowState, error)
	Close() error
}
