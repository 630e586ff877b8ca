// Package webhook implements the inbound WebhookService pipeline: endpoint
// registration, rate limiting, authentication, filter evaluation, and
// field-mapping projection into workflow input (spec.md §4.3). It has no
// single teacher file of its own — the teacher's webhook surface
// (internal/application/trigger/webhook_registry.go) is bound one-to-one to
// a Trigger row and supports only a shared-secret HMAC signature. This
// package generalizes that pipeline's shape (registry map, signature
// verification, Redis-backed fixed-window counter) to the richer
// WebhookEndpoint contract: multiple authentication kinds, declarative
// filters (reusing internal/eventbus.Filter), and closed-set field
// transforms, while the existing trigger-bound path keeps serving triggers
// that only need a shared secret.
package webhook

import (
	"time"

	"github.com/mbflow/automation-engine/internal/eventbus"
)

// AuthKind is the closed set of inbound authentication mechanisms.
type AuthKind string

const (
	AuthNone      AuthKind = ""
	AuthBearer    AuthKind = "bearer"
	AuthBasic     AuthKind = "basic"
	AuthAPIKey    AuthKind = "apikey"
	AuthSignature AuthKind = "signature"
)

// AuthDescriptor configures one of the four supported authentication kinds.
// Only the fields relevant to Kind are consulted.
type AuthDescriptor struct {
	Kind AuthKind `json:"kind"`

	// Bearer: HMAC secret the JWT must be signed with.
	// Basic: Password.
	// APIKey: the expected key value.
	// Signature: the HMAC secret.
	Secret string `json:"secret,omitempty"`

	Username string `json:"username,omitempty"` // basic
	Algorithm string `json:"algorithm,omitempty"` // signature: "sha256" or "sha1"
	HeaderName string `json:"header_name,omitempty"` // apikey, default X-API-Key
}

// Transform is the closed set of field-mapping transforms spec.md §4.3 names.
type Transform string

const (
	TransformNone      Transform = ""
	TransformUppercase Transform = "uppercase"
	TransformLowercase Transform = "lowercase"
	TransformTrim      Transform = "trim"
	TransformJSONParse Transform = "json_parse"
	TransformNumber    Transform = "number"
	TransformDate      Transform = "date"
)

// FieldMapping projects one source field (under "headers.", "body.", or
// "query.") into a target key of the workflow input, applying at most one
// transform. DefaultValue is used when the source path is absent or the
// transform fails.
type FieldMapping struct {
	Source       string    `json:"source"`
	Target       string    `json:"target"`
	Transform    Transform `json:"transform,omitempty"`
	DefaultValue any       `json:"default_value,omitempty"`
}

// TriggerBinding is one workflow bound to a WebhookEndpoint. A single
// endpoint may fan out to several workflows, each with its own
// preconditions and its own input projection.
type TriggerBinding struct {
	ID           string           `json:"id"`
	WorkflowID   string           `json:"workflow_id"`
	Conditions   []eventbus.Filter `json:"conditions,omitempty"` // all required
	DataMapping  []FieldMapping   `json:"data_mapping,omitempty"`
	ResponseBody map[string]any   `json:"response_body,omitempty"`
}

// RateLimit is a fixed window {max_requests, window}, mirroring
// actionexecutor.RateLimit's shape for the same concept at the HTTP ingress.
type RateLimit struct {
	MaxRequests int           `json:"max_requests"`
	Window      time.Duration `json:"window"`
}

// WebhookEndpoint is one inbound HTTP endpoint accepting webhook deliveries.
type WebhookEndpoint struct {
	ID        string           `json:"id"`
	URLPath   string           `json:"url_path"`
	Method    string           `json:"method"`
	Active    bool             `json:"active"`
	Auth      *AuthDescriptor  `json:"auth,omitempty"`
	Filters   []eventbus.Filter `json:"filters,omitempty"`
	RateLimit *RateLimit       `json:"rate_limit,omitempty"`
	Bindings  []TriggerBinding `json:"bindings"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// WebhookPayload is one recorded inbound delivery, retained in a bounded
// history.
type WebhookPayload struct {
	ID         string            `json:"id"`
	EndpointID string            `json:"endpoint_id"`
	Method     string            `json:"method"`
	Path       string            `json:"path"`
	Headers    map[string]string `json:"headers"`
	Body       map[string]any    `json:"body"`
	Query      map[string]string `json:"query"`
	Timestamp  time.Time         `json:"timestamp"`
	SourceIP   string            `json:"source_ip"`
	Processed  bool              `json:"processed"`
}

// BindingResult records the outcome of evaluating one TriggerBinding against
// a delivered payload.
type BindingResult struct {
	BindingID   string `json:"binding_id"`
	WorkflowID  string `json:"workflow_id"`
	Skipped     bool   `json:"skipped"`
	ExecutionID string `json:"execution_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

// InboundResult is the outcome of HandleInbound, carrying the HTTP status
// this webhook delivery should respond with.
type InboundResult struct {
	StatusCode int             `json:"-"`
	Body       map[string]any  `json:"-"`
	Bindings   []BindingResult `json:"bindings,omitempty"`
}
