package statemanager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// KVPersistence is the `external_kv` strategy: each WorkflowState is a JSON
// blob under a namespaced Redis key, with the state id tracked in a set for
// List. Grounded on the teacher's infrastructure/cache Redis wrapper.
type KVPersistence struct {
	client    *redis.Client
	keyPrefix string
	indexKey  string
}

// NewKVPersistence creates a KVPersistence over an existing Redis client.
func NewKVPersistence(client *redis.Client, namespace string) *KVPersistence {
	if namespace == "" {
		namespace = "statemanager"
	}
	return &KVPersistence{
		client:    client,
		keyPrefix: namespace + ":state:",
		indexKey:  namespace + ":index",
	}
}

func (k *KVPersistence) key(id string) string {
	return k.keyPrefix + id
}

func (k *KVPersistence) Save(ctx context.Context, state *WorkflowState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("statemanager: marshal state: %w", err)
	}

	pipe := k.client.TxPipeline()
	pipe.Set(ctx, k.key(state.ID), data, 0)
	pipe.SAdd(ctx, k.indexKey, state.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("statemanager: save state %q: %w", state.ID, err)
	}
	return nil
}

func (k *KVPersistence) Load(ctx context.Context, id string) (*WorkflowState, error) {
	data, err := k.client.Get(ctx, k.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("statemanager: state %q not found", id)
		}
		return nil, fmt.Errorf("statemanager: load state %q: %w", id, err)
	}
	var state WorkflowState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("statemanager: unmarshal state %q: %w", id, err)
	}
	return &state, nil
}

func (k *KVPersistence) Delete(ctx context.Context, id string) error {
	pipe := k.client.TxPipeline()
	pipe.Del(ctx, k.key(id))
	pipe.SRem(ctx, k.indexKey, id)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("statemanager: delete state %q: %w", id, err)
	}
	return nil
}

func (k *KVPersistence) List(ctx context.Context) ([]*WorkflowState, error) {
	ids, err := k.client.SMembers(ctx, k.indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("statemanager: list state ids: %w", err)
	}
	out := make([]*WorkflowState, 0, len(ids))
	for _, id := range ids {
		s, err := k.Load(ctx, id)
		if err != nil {
			continue // index entry outlived its key (e.g. manual expiry)
		}
		out = append(out, s)
	}
	return out, nil
}

func (k *KVPersistence) Close() error { return k.client.Close() }
