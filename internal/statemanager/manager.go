package statemanager

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mbflow/automation-engine/internal/infrastructure/logger"
)

// Config tunes cleanup and snapshot retention.
type Config struct {
	MaxAge               time.Duration // states older than this are pruned; 0 disables age-based cleanup
	MaxEntries           int           // beyond this count, oldest states are pruned; 0 disables
	MaxSnapshots         int           // per-state snapshot retention, FIFO eviction beyond this; default 10
	CompressionThreshold int           // snapshot payload bytes above which gzip is applied; default 4096
	CleanupInterval      time.Duration // default 5 minutes
}

func (c Config) withDefaults() Config {
	if c.MaxSnapshots <= 0 {
		c.MaxSnapshots = 10
	}
	if c.CompressionThreshold <= 0 {
		c.CompressionThreshold = 4096
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 5 * time.Minute
	}
	return c
}

// Manager is the StateManager: it owns WorkflowState lifecycle, variable and
// cache accessors, checkpoints, snapshots, and persistence, serializing
// mutations per state id so update -> save is atomic from the caller's view.
type Manager struct {
	cfg        Config
	persist    Persistence
	logger     *logger.Logger
	locksMu    sync.Mutex
	locks      map[string]*sync.Mutex
	checkpoint sync.Map // stateID -> []*StateCheckpoint
	snapshots  sync.Map // stateID -> []*StateSnapshot
	cacheStats sync.Map // stateID -> *CacheStats

	stopCleanup chan struct{}
	cleanupOnce sync.Once
}

// New creates a Manager over the given persistence strategy.
func New(persist Persistence, cfg Config, log *logger.Logger) *Manager {
	return &Manager{
		cfg:         cfg.withDefaults(),
		persist:     persist,
		logger:      log,
		locks:       make(map[string]*sync.Mutex),
		stopCleanup: make(chan struct{}),
	}
}

func (m *Manager) lockFor(id string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

// CreateState creates a new WorkflowState and persists it.
func (m *Manager) CreateState(ctx context.Context, workflowID, executionID string, initialContext map[string]any) (*WorkflowState, error) {
	if initialContext == nil {
		initialContext = make(map[string]any)
	}
	now := time.Now()
	state := &WorkflowState{
		ID:          uuid.NewString(),
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		Status:      StatusActive,
		Context:     initialContext,
		Session:     make(map[string]any),
		Cache:       make(map[string]cacheEntry),
		History:     []HistoryEntry{},
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	lock := m.lockFor(state.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := m.persist.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("statemanager: create state: %w", err)
	}
	return cloneState(state), nil
}

// UpdateState merges patch into the state's context, bumps version and
// updated_at, and persists the result.
func (m *Manager) UpdateState(ctx context.Context, stateID string, patch map[string]any) (*WorkflowState, error) {
	lock := m.lockFor(stateID)
	lock.Lock()
	defer lock.Unlock()

	state, err := m.persist.Load(ctx, stateID)
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		state.Context[k] = v
	}
	state.Version++
	state.UpdatedAt = time.Now()
	state.History = append(state.History, HistoryEntry{
		Timestamp: state.UpdatedAt,
		Action:    "update_state",
	})

	if err := m.persist.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("statemanager: update state %q: %w", stateID, err)
	}
	return cloneState(state), nil
}

// GetState loads a state by id.
func (m *Manager) GetState(ctx context.Context, stateID string) (*WorkflowState, error) {
	return m.persist.Load(ctx, stateID)
}

// SetVariable sets a context variable and records it in history.
func (m *Manager) SetVariable(ctx context.Context, stateID, name string, value any) error {
	lock := m.lockFor(stateID)
	lock.Lock()
	defer lock.Unlock()

	state, err := m.persist.Load(ctx, stateID)
	if err != nil {
		return err
	}
	state.Context[name] = value
	state.Version++
	state.UpdatedAt = time.Now()
	state.History = append(state.History, HistoryEntry{
		Timestamp: state.UpdatedAt,
		Action:    "set_variable",
		Key:       name,
		Value:     value,
	})
	return m.persist.Save(ctx, state)
}

// GetVariable reads a context variable.
func (m *Manager) GetVariable(ctx context.Context, stateID, name string) (any, bool, error) {
	state, err := m.persist.Load(ctx, stateID)
	if err != nil {
		return nil, false, err
	}
	v, ok := state.Context[name]
	return v, ok, nil
}

// DeleteVariable removes a context variable and records it in history.
func (m *Manager) DeleteVariable(ctx context.Context, stateID, name string) error {
	lock := m.lockFor(stateID)
	lock.Lock()
	defer lock.Unlock()

	state, err := m.persist.Load(ctx, stateID)
	if err != nil {
		return err
	}
	delete(state.Context, name)
	state.Version++
	state.UpdatedAt = time.Now()
	state.History = append(state.History, HistoryEntry{
		Timestamp: state.UpdatedAt,
		Action:    "delete_variable",
		Key:       name,
	})
	return m.persist.Save(ctx, state)
}

// SetSession writes a session value (not part of the append-only history).
func (m *Manager) SetSession(ctx context.Context, stateID, key string, value any) error {
	lock := m.lockFor(stateID)
	lock.Lock()
	defer lock.Unlock()

	state, err := m.persist.Load(ctx, stateID)
	if err != nil {
		return err
	}
	state.Session[key] = value
	state.UpdatedAt = time.Now()
	return m.persist.Save(ctx, state)
}

// GetSession reads a session value.
func (m *Manager) GetSession(ctx context.Context, stateID, key string) (any, bool, error) {
	state, err := m.persist.Load(ctx, stateID)
	if err != nil {
		return nil, false, err
	}
	v, ok := state.Session[key]
	return v, ok, nil
}

// SetCache writes a cache entry with a TTL. A zero ttl means no expiry.
func (m *Manager) SetCache(ctx context.Context, stateID, key string, value any, ttl time.Duration) error {
	lock := m.lockFor(stateID)
	lock.Lock()
	defer lock.Unlock()

	state, err := m.persist.Load(ctx, stateID)
	if err != nil {
		return err
	}
	entry := cacheEntry{Value: value}
	if ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl)
	}
	state.Cache[key] = entry
	return m.persist.Save(ctx, state)
}

// GetCache reads a cache entry, recording hit/miss/expiry statistics. An
// expired entry counts as both a miss and an expiry, and is evicted.
func (m *Manager) GetCache(ctx context.Context, stateID, key string) (any, bool, error) {
	lock := m.lockFor(stateID)
	lock.Lock()
	defer lock.Unlock()

	state, err := m.persist.Load(ctx, stateID)
	if err != nil {
		return nil, false, err
	}

	stats := m.statsFor(stateID)
	entry, ok := state.Cache[key]
	if !ok {
		stats.recordMiss()
		return nil, false, nil
	}
	if !entry.ExpiresAt.IsZero() && time.Now().After(entry.ExpiresAt) {
		delete(state.Cache, key)
		_ = m.persist.Save(ctx, state)
		stats.recordExpiry()
		return nil, false, nil
	}
	stats.recordHit()
	return entry.Value, true, nil
}

// CacheStats returns the hit/miss/expiry counters for a state's cache.
func (m *Manager) CacheStats(stateID string) CacheStats {
	return *m.statsFor(stateID)
}

func (m *Manager) statsFor(stateID string) *cacheStatsCounter {
	v, _ := m.cacheStats.LoadOrStore(stateID, &cacheStatsCounter{})
	return v.(*cacheStatsCounter)
}

type cacheStatsCounter struct {
	mu sync.Mutex
	CacheStats
}

func (c *cacheStatsCounter) recordHit() {
	c.mu.Lock()
	c.Hits++
	c.mu.Unlock()
}

func (c *cacheStatsCounter) recordMiss() {
	c.mu.Lock()
	c.Misses++
	c.mu.Unlock()
}

func (c *cacheStatsCounter) recordExpiry() {
	c.mu.Lock()
	c.Misses++
	c.Expired++
	c.mu.Unlock()
}

// CreateCheckpoint deep-clones the current context into a StateCheckpoint
// tied to nodeID.
func (m *Manager) CreateCheckpoint(ctx context.Context, stateID, nodeID string) (*StateCheckpoint, error) {
	state, err := m.persist.Load(ctx, stateID)
	if err != nil {
		return nil, err
	}
	cp := &StateCheckpoint{
		ID:        uuid.NewString(),
		StateID:   stateID,
		NodeID:    nodeID,
		Context:   cloneMap(state.Context),
		Version:   state.Version,
		CreatedAt: time.Now(),
	}

	list, _ := m.checkpoint.LoadOrStore(stateID, &[]*StateCheckpoint{})
	ptr := list.(*[]*StateCheckpoint)
	*ptr = append(*ptr, cp)
	return cp, nil
}

// RestoreFromCheckpoint replaces the state's context with the checkpoint's
// and bumps version.
func (m *Manager) RestoreFromCheckpoint(ctx context.Context, stateID, checkpointID string) (*WorkflowState, error) {
	lock := m.lockFor(stateID)
	lock.Lock()
	defer lock.Unlock()

	v, ok := m.checkpoint.Load(stateID)
	if !ok {
		return nil, fmt.Errorf("statemanager: no checkpoints for state %q", stateID)
	}
	var target *StateCheckpoint
	for _, cp := range *v.(*[]*StateCheckpoint) {
		if cp.ID == checkpointID {
			target = cp
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("statemanager: checkpoint %q not found", checkpointID)
	}

	state, err := m.persist.Load(ctx, stateID)
	if err != nil {
		return nil, err
	}
	state.Context = cloneMap(target.Context)
	state.Version++
	state.UpdatedAt = time.Now()
	if err := m.persist.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("statemanager: restore checkpoint %q: %w", checkpointID, err)
	}
	return cloneState(state), nil
}

// CreateSnapshot serializes the full state, compressing above
// CompressionThreshold, and retains up to MaxSnapshots per state (FIFO
// eviction of the oldest beyond the cap).
func (m *Manager) CreateSnapshot(ctx context.Context, stateID, reason string) (*StateSnapshot, error) {
	state, err := m.persist.Load(ctx, stateID)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("statemanager: marshal snapshot: %w", err)
	}

	snap := &StateSnapshot{
		ID:        uuid.NewString(),
		StateID:   stateID,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	if len(raw) > m.cfg.CompressionThreshold {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(raw); err != nil {
			return nil, fmt.Errorf("statemanager: compress snapshot: %w", err)
		}
		if err := gz.Close(); err != nil {
			return nil, fmt.Errorf("statemanager: close gzip writer: %w", err)
		}
		snap.Compressed = true
		snap.Data = buf.Bytes()
	} else {
		snap.Data = raw
	}

	listAny, _ := m.snapshots.LoadOrStore(stateID, &[]*StateSnapshot{})
	ptr := listAny.(*[]*StateSnapshot)
	*ptr = append(*ptr, snap)
	if len(*ptr) > m.cfg.MaxSnapshots {
		*ptr = (*ptr)[len(*ptr)-m.cfg.MaxSnapshots:]
	}
	return snap, nil
}

// RestoreFromSnapshot decodes a snapshot and persists it as the current
// state.
func (m *Manager) RestoreFromSnapshot(ctx context.Context, stateID, snapshotID string) (*WorkflowState, error) {
	lock := m.lockFor(stateID)
	lock.Lock()
	defer lock.Unlock()

	listAny, ok := m.snapshots.Load(stateID)
	if !ok {
		return nil, fmt.Errorf("statemanager: no snapshots for state %q", stateID)
	}
	var target *StateSnapshot
	for _, s := range *listAny.(*[]*StateSnapshot) {
		if s.ID == snapshotID {
			target = s
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("statemanager: snapshot %q not found", snapshotID)
	}

	raw := target.Data
	if target.Compressed {
		gz, err := gzip.NewReader(bytes.NewReader(target.Data))
		if err != nil {
			return nil, fmt.Errorf("statemanager: open gzip snapshot: %w", err)
		}
		defer gz.Close()
		raw, err = io.ReadAll(gz)
		if err != nil {
			return nil, fmt.Errorf("statemanager: decompress snapshot: %w", err)
		}
	}

	var state WorkflowState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("statemanager: unmarshal snapshot: %w", err)
	}
	state.Version++
	state.UpdatedAt = time.Now()

	if err := m.persist.Save(ctx, &state); err != nil {
		return nil, fmt.Errorf("statemanager: restore snapshot %q: %w", snapshotID, err)
	}
	return cloneState(&state), nil
}

func (m *Manager) transition(ctx context.Context, stateID string, status Status) (*WorkflowState, error) {
	lock := m.lockFor(stateID)
	lock.Lock()
	defer lock.Unlock()

	state, err := m.persist.Load(ctx, stateID)
	if err != nil {
		return nil, err
	}
	state.Status = status
	state.UpdatedAt = time.Now()
	if err := m.persist.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("statemanager: transition state %q to %s: %w", stateID, status, err)
	}
	return cloneState(state), nil
}

func (m *Manager) PauseState(ctx context.Context, stateID string) (*WorkflowState, error) {
	return m.transition(ctx, stateID, StatusPaused)
}

func (m *Manager) ResumeState(ctx context.Context, stateID string) (*WorkflowState, error) {
	return m.transition(ctx, stateID, StatusActive)
}

func (m *Manager) CompleteState(ctx context.Context, stateID string) (*WorkflowState, error) {
	return m.transition(ctx, stateID, StatusCompleted)
}

func (m *Manager) FailState(ctx context.Context, stateID string) (*WorkflowState, error) {
	return m.transition(ctx, stateID, StatusFailed)
}

func (m *Manager) CancelState(ctx context.Context, stateID string) (*WorkflowState, error) {
	return m.transition(ctx, stateID, StatusCancelled)
}

// DeleteState permanently removes a state and its in-memory checkpoints and
// snapshots.
func (m *Manager) DeleteState(ctx context.Context, stateID string) error {
	lock := m.lockFor(stateID)
	lock.Lock()
	defer lock.Unlock()

	if err := m.persist.Delete(ctx, stateID); err != nil {
		return fmt.Errorf("statemanager: delete state %q: %w", stateID, err)
	}
	m.checkpoint.Delete(stateID)
	m.snapshots.Delete(stateID)
	m.cacheStats.Delete(stateID)
	return nil
}

// StartCleanup launches the periodic pruning loop; it stops when ctx is
// cancelled or Close is called.
func (m *Manager) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCleanup:
				return
			case <-ticker.C:
				if err := m.cleanupOnce_(ctx); err != nil && m.logger != nil {
					m.logger.Error("statemanager: cleanup failed", "error", err)
				}
			}
		}
	}()
}

// Close stops the cleanup loop and closes the underlying persistence.
func (m *Manager) Close() error {
	m.cleanupOnce.Do(func() { close(m.stopCleanup) })
	return m.persist.Close()
}

// cleanupOnce_ prunes states older than MaxAge or beyond MaxEntries, oldest
// first, matching the periodic cleanup contract.
func (m *Manager) cleanupOnce_(ctx context.Context) error {
	states, err := m.persist.List(ctx)
	if err != nil {
		return err
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].CreatedAt.Before(states[j].CreatedAt)
	})

	now := time.Now()
	var toDelete []string
	if m.cfg.MaxAge > 0 {
		for _, s := range states {
			if now.Sub(s.CreatedAt) > m.cfg.MaxAge {
				toDelete = append(toDelete, s.ID)
			}
		}
	}
	if m.cfg.MaxEntries > 0 && len(states) > m.cfg.MaxEntries {
		excess := len(states) - m.cfg.MaxEntries
		for i := 0; i < excess; i++ {
			toDelete = append(toDelete, states[i].ID)
		}
	}

	seen := make(map[string]bool)
	for _, id := range toDelete {
		if seen[id] {
			continue
		}
		seen[id] = true
		if err := m.DeleteState(ctx, id); err != nil && m.logger != nil {
			m.logger.Warn("statemanager: cleanup delete failed", "state_id", id, "error", err)
		}
	}
	return nil
}
