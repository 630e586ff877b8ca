package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// StateModel is the `database` persistence strategy's row for a
// WorkflowState managed outside the DAG executor's own checkpointing.
type StateModel struct {
	bun.BaseModel `bun:"table:workflow_states,alias:ws"`

	ID          uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	WorkflowID  string    `bun:"workflow_id,notnull" json:"workflow_id"`
	ExecutionID string    `bun:"execution_id,notnull" json:"execution_id"`
	Status      string    `bun:"status,notnull" json:"status"`
	Data        JSONBMap  `bun:"data,type:jsonb,notnull,default:'{}'" json:"data"`
	Version     int64     `bun:"version,notnull,default:0" json:"version"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

func (StateModel) TableName() string {
	return "workflow_states"
}

func (s *StateModel) BeforeInsert(ctx interface{}) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Data == nil {
		s.Data = make(JSONBMap)
	}
	return nil
}
