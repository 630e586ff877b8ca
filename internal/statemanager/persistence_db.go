package statemanager

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mbflow/automation-engine/internal/infrastructure/storage/models"
	"github.com/uptrace/bun"
)

// DatabasePersistence is the `database` strategy, grounded on the teacher's
// Bun-based repositories (ExecutionRepository et al.).
type DatabasePersistence struct {
	db *bun.DB
}

// NewDatabasePersistence creates a DatabasePersistence over an existing Bun
// connection.
func NewDatabasePersistence(db *bun.DB) *DatabasePersistence {
	return &DatabasePersistence{db: db}
}

func (d *DatabasePersistence) Save(ctx context.Context, state *WorkflowState) error {
	id, err := stateUUID(state.ID)
	if err != nil {
		return err
	}

	data, err := encodeStateData(state)
	if err != nil {
		return fmt.Errorf("statemanager: encode state %q: %w", state.ID, err)
	}

	row := &models.StateModel{
		ID:          id,
		WorkflowID:  state.WorkflowID,
		ExecutionID: state.ExecutionID,
		Status:      string(state.Status),
		Data:        data,
		Version:     state.Version,
		CreatedAt:   state.CreatedAt,
		UpdatedAt:   state.UpdatedAt,
	}

	_, err = d.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("workflow_id = EXCLUDED.workflow_id").
		Set("execution_id = EXCLUDED.execution_id").
		Set("status = EXCLUDED.status").
		Set("data = EXCLUDED.data").
		Set("version = EXCLUDED.version").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("statemanager: save state %q: %w", state.ID, err)
	}
	return nil
}

func (d *DatabasePersistence) Load(ctx context.Context, id string) (*WorkflowState, error) {
	uid, err := stateUUID(id)
	if err != nil {
		return nil, err
	}

	row := new(models.StateModel)
	err = d.db.NewSelect().Model(row).Where("id = ?", uid).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("statemanager: state %q not found", id)
		}
		return nil, fmt.Errorf("statemanager: load state %q: %w", id, err)
	}
	return decodeStateRow(row)
}

func (d *DatabasePersistence) Delete(ctx context.Context, id string) error {
	uid, err := stateUUID(id)
	if err != nil {
		return err
	}
	_, err = d.db.NewDelete().Model((*models.StateModel)(nil)).Where("id = ?", uid).Exec(ctx)
	if err != nil {
		return fmt.Errorf("statemanager: delete state %q: %w", id, err)
	}
	return nil
}

func (d *DatabasePersistence) List(ctx context.Context) ([]*WorkflowState, error) {
	var rows []models.StateModel
	if err := d.db.NewSelect().Model(&rows).Scan(ctx); err != nil {
		return nil, fmt.Errorf("statemanager: list states: %w", err)
	}
	out := make([]*WorkflowState, 0, len(rows))
	for i := range rows {
		s, err := decodeStateRow(&rows[i])
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *DatabasePersistence) Close() error { return d.db.Close() }

func stateUUID(id string) (uuid.UUID, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("statemanager: state id %q is not a uuid: %w", id, err)
	}
	return uid, nil
}

func encodeStateData(state *WorkflowState) (models.JSONBMap, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	var m models.JSONBMap
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeStateRow(row *models.StateModel) (*WorkflowState, error) {
	raw, err := json.Marshal(row.Data)
	if err != nil {
		return nil, fmt.Errorf("statemanager: re-encode state %q data: %w", row.ID, err)
	}
	var state WorkflowState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("statemanager: decode state %q data: %w", row.ID, err)
	}
	// The row columns are authoritative over the embedded copy.
	state.ID = row.ID.String()
	state.WorkflowID = row.WorkflowID
	state.ExecutionID = row.ExecutionID
	state.Status = Status(row.Status)
	state.Version = row.Version
	state.CreatedAt = row.CreatedAt
	state.UpdatedAt = row.UpdatedAt
	return &state, nil
}
