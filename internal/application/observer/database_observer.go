package observer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mbflow/automation-engine/internal/domain/repository"
	"github.com/mbflow/automation-engine/internal/infrastructure/storage/models"
)

// DatabaseObserver persists every execution event to the event log via
// EventRepository, giving the monitoring stack (internal/monitoring) and any
// replay tooling a durable, queryable history.
type DatabaseObserver struct {
	name string
	repo repository.EventRepository
}

// NewDatabaseObserver creates a new database observer.
func NewDatabaseObserver(repo repository.EventRepository) *DatabaseObserver {
	return &DatabaseObserver{
		name: "database",
		repo: repo,
	}
}

// Name returns the observer's name.
func (o *DatabaseObserver) Name() string {
	return o.name
}

// Filter returns nil to receive all events.
func (o *DatabaseObserver) Filter() EventFilter {
	return nil
}

// OnEvent persists the event.
func (o *DatabaseObserver) OnEvent(ctx context.Context, event Event) error {
	eventModel := o.convertToEventModel(event)
	return o.repo.Append(ctx, eventModel)
}

func (o *DatabaseObserver) convertToEventModel(event Event) *models.EventModel {
	executionUUID, _ := uuid.Parse(event.ExecutionID)

	payload := models.JSONBMap{
		"workflow_id": event.WorkflowID,
		"status":      event.Status,
		"timestamp":   event.Timestamp.Format(time.RFC3339),
	}

	if event.NodeID != nil {
		payload["node_id"] = *event.NodeID
	}
	if event.NodeName != nil {
		payload["node_name"] = *event.NodeName
	}
	if event.NodeType != nil {
		payload["node_type"] = *event.NodeType
	}
	if event.WaveIndex != nil {
		payload["wave_index"] = *event.WaveIndex
	}
	if event.NodeCount != nil {
		payload["node_count"] = *event.NodeCount
	}
	if event.DurationMs != nil {
		payload["duration_ms"] = *event.DurationMs
	}
	if event.Error != nil {
		payload["error"] = event.Error.Error()
	}
	if event.Input != nil {
		payload["input"] = event.Input
	}
	if event.Output != nil {
		payload["output"] = event.Output
	}
	if event.Variables != nil {
		payload["variables"] = event.Variables
	}
	if event.Metadata != nil {
		payload["metadata"] = event.Metadata
	}

	return &models.EventModel{
		ExecutionID: executionUUID,
		EventType:   string(event.Type),
		Payload:     payload,
	}
}
