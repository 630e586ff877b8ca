package builtin

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"github.com/mailgun/mailgun-go/v4"
	"github.com/robfig/cron/v3"
	"github.com/uptrace/bun"

	"github.com/mbflow/automation-engine/internal/actionexecutor"
	"github.com/mbflow/automation-engine/internal/application/filestorage"
	"github.com/mbflow/automation-engine/internal/eventbus"
	"github.com/mbflow/automation-engine/internal/infrastructure/logger"
	"github.com/mbflow/automation-engine/internal/retrypolicy"
	conditioneval "github.com/mbflow/automation-engine/pkg/engine"
	"github.com/mbflow/automation-engine/pkg/executor"
)

// SpecNodeDeps wires the node-type executors registered by RegisterSpecNodes
// to the real runtime components: the queued worker pool backing every
// action-kind node, the operator-set condition evaluator backing
// condition/switch-condition, the event bus notification-action publishes
// through, the database handle database-action queries, the file storage
// manager file-action delegates to, and the dispatcher sub-workflow invokes
// to start a child execution.
type SpecNodeDeps struct {
	Actions    *actionexecutor.Executor
	Conditions *conditioneval.RuleEvaluator
	EventBus   *eventbus.Bus
	DB         *bun.DB
	Files      filestorage.Manager
	Dispatcher func(ctx context.Context, workflowID string, input map[string]any) (string, error)
	Logger     *logger.Logger
}

// RegisterSpecNodes registers the sixteen node-type executors against
// manager. The three trigger types, the two branching types, and
// delay/data-transform/variable-setter/logger/sub-workflow run in-process;
// the seven action-kind types are queued through deps.Actions so they share
// its rate limiting and retry policy. Action-kind types are skipped (not
// registered) when deps.Actions is nil, since they have nothing to submit to.
func RegisterSpecNodes(manager executor.Manager, deps SpecNodeDeps) error {
	if deps.Conditions == nil {
		deps.Conditions = conditioneval.NewRuleEvaluator(nil)
	}

	nodes := map[string]executor.Executor{
		"manual-trigger":   &manualTriggerExecutor{BaseExecutor: executor.NewBaseExecutor("manual-trigger")},
		"webhook-trigger":  &webhookTriggerExecutor{BaseExecutor: executor.NewBaseExecutor("webhook-trigger")},
		"schedule-trigger": &scheduleTriggerExecutor{BaseExecutor: executor.NewBaseExecutor("schedule-trigger")},
		"condition":        newConditionExecutor(deps.Conditions),
		"switch-condition": newSwitchConditionExecutor(deps.Conditions),
		"delay":            &delayExecutor{BaseExecutor: executor.NewBaseExecutor("delay")},
		"data-transform":   &dataTransformExecutor{BaseExecutor: executor.NewBaseExecutor("data-transform")},
		"variable-setter":  &variableSetterExecutor{BaseExecutor: executor.NewBaseExecutor("variable-setter")},
		"logger":           &loggerNodeExecutor{BaseExecutor: executor.NewBaseExecutor("logger"), log: deps.Logger},
		"sub-workflow":     &subWorkflowExecutor{BaseExecutor: executor.NewBaseExecutor("sub-workflow"), dispatch: deps.Dispatcher},
	}

	if deps.Actions != nil {
		nodes["http-action"] = newHTTPActionNode(deps.Actions)
		nodes["email-action"] = newEmailActionNode(deps.Actions)
		nodes["database-action"] = newDatabaseActionNode(deps.Actions, deps.DB)
		nodes["social-action"] = newSocialActionNode(deps.Actions)
		nodes["javascript-action"] = newJavaScriptActionNode(deps.Actions)
		nodes["file-action"] = newFileActionNode(deps.Actions, deps.Files)
		nodes["notification-action"] = newNotificationActionNode(deps.Actions, deps.EventBus)
	}

	for name, exec := range nodes {
		if err := manager.Register(name, exec); err != nil {
			return fmt.Errorf("register node type %q: %w", name, err)
		}
	}
	return nil
}

// --- triggers --------------------------------------------------------------

// manualTriggerExecutor marks the start of a manually-invoked execution. Its
// output is just the execution input stamped with the moment it fired.
type manualTriggerExecutor struct {
	*executor.BaseExecutor
}

func (e *manualTriggerExecutor) Execute(_ context.Context, _ map[string]any, input any) (any, error) {
	return map[string]any{
		"triggered": true,
		"timestamp": time.Now(),
		"data":      input,
	}, nil
}

func (e *manualTriggerExecutor) Validate(map[string]any) error { return nil }

// webhookTriggerExecutor is the node a received webhook call fans out to.
// The HTTP method and path live in the node config; the request body the
// trigger was invoked with arrives as input.
type webhookTriggerExecutor struct {
	*executor.BaseExecutor
}

func (e *webhookTriggerExecutor) Execute(_ context.Context, config map[string]any, input any) (any, error) {
	return map[string]any{
		"webhook":       true,
		"method":        e.GetStringDefault(config, "method", "POST"),
		"path":          e.GetStringDefault(config, "path", ""),
		"received_data": input,
	}, nil
}

func (e *webhookTriggerExecutor) Validate(config map[string]any) error {
	return e.ValidateRequired(config, "path")
}

// scheduleTriggerExecutor computes the next cron activation at execution
// time, the same robfig/cron parser the trigger manager's scheduler uses.
type scheduleTriggerExecutor struct {
	*executor.BaseExecutor
}

func (e *scheduleTriggerExecutor) Execute(_ context.Context, config map[string]any, _ any) (any, error) {
	cronExpr, err := e.GetString(config, "cron")
	if err != nil {
		return nil, err
	}
	tz := e.GetStringDefault(config, "timezone", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("schedule-trigger: invalid timezone %q: %w", tz, err)
	}

	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("schedule-trigger: invalid cron expression %q: %w", cronExpr, err)
	}

	return map[string]any{
		"scheduled": true,
		"cron":      cronExpr,
		"timezone":  tz,
		"next_run":  schedule.Next(time.Now().In(loc)),
	}, nil
}

func (e *scheduleTriggerExecutor) Validate(config map[string]any) error {
	cronExpr, err := e.GetString(config, "cron")
	if err != nil {
		return fmt.Errorf("cron is required")
	}
	if _, err := cron.ParseStandard(cronExpr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return nil
}

// --- branching ---------------------------------------------------------------

// conditionExecutor evaluates one Condition/ConditionGroup tree against the
// node's input via the shared RuleEvaluator and reports its verdict.
type conditionExecutor struct {
	*executor.BaseExecutor
	conditions *conditioneval.RuleEvaluator
}

func newConditionExecutor(conditions *conditioneval.RuleEvaluator) *conditionExecutor {
	return &conditionExecutor{
		BaseExecutor: executor.NewBaseExecutor("condition"),
		conditions:   conditions,
	}
}

func (e *conditionExecutor) Execute(_ context.Context, config map[string]any, input any) (any, error) {
	node, err := decodeConditionNode(config["condition"])
	if err != nil {
		return nil, fmt.Errorf("condition: %w", err)
	}
	inputMap, _ := input.(map[string]any)
	result, err := e.conditions.Evaluate(node, inputMap)
	if err != nil {
		return nil, fmt.Errorf("condition: evaluation failed: %w", err)
	}
	return map[string]any{
		"result":     result.Result,
		"evaluation": result.Details,
	}, nil
}

func (e *conditionExecutor) Validate(config map[string]any) error {
	_, err := decodeConditionNode(config["condition"])
	return err
}

// switchConditionExecutor evaluates an ordered list of named cases and
// reports the first one that matches, falling back to a default case.
type switchConditionExecutor struct {
	*executor.BaseExecutor
	conditions *conditioneval.RuleEvaluator
}

func newSwitchConditionExecutor(conditions *conditioneval.RuleEvaluator) *switchConditionExecutor {
	return &switchConditionExecutor{
		BaseExecutor: executor.NewBaseExecutor("switch-condition"),
		conditions:   conditions,
	}
}

type switchCase struct {
	Name      string         `json:"name"`
	Condition map[string]any `json:"condition"`
}

func (e *switchConditionExecutor) Execute(_ context.Context, config map[string]any, input any) (any, error) {
	casesRaw, ok := config["cases"].([]any)
	if !ok {
		return nil, fmt.Errorf("switch-condition: cases must be an array")
	}
	inputMap, _ := input.(map[string]any)

	for _, raw := range casesRaw {
		var c switchCase
		encoded, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("switch-condition: invalid case: %w", err)
		}
		if err := json.Unmarshal(encoded, &c); err != nil {
			return nil, fmt.Errorf("switch-condition: invalid case: %w", err)
		}

		node, err := decodeConditionNode(c.Condition)
		if err != nil {
			return nil, fmt.Errorf("switch-condition: case %q: %w", c.Name, err)
		}
		result, err := e.conditions.Evaluate(node, inputMap)
		if err != nil {
			return nil, fmt.Errorf("switch-condition: case %q: %w", c.Name, err)
		}
		if result.Result {
			return map[string]any{
				"matched":      true,
				"matched_case": c.Name,
			}, nil
		}
	}

	defaultCase := e.GetStringDefault(config, "default_case", "")
	return map[string]any{
		"matched":      false,
		"default_case": defaultCase,
	}, nil
}

func (e *switchConditionExecutor) Validate(config map[string]any) error {
	if _, ok := config["cases"].([]any); !ok {
		return fmt.Errorf("cases must be an array")
	}
	return nil
}

// decodeConditionNode turns the wire shape handlers_runtime.go's
// HandleEvaluateCondition accepts (a flat Condition, or a group with
// logic/negate/conditions) into a conditioneval.ConditionNode.
func decodeConditionNode(raw any) (conditioneval.ConditionNode, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("condition must be an object")
	}
	encoded, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}

	if _, hasConditions := m["conditions"]; hasConditions {
		var group struct {
			ID         string           `json:"id"`
			Logic      string           `json:"logic"`
			Negate     bool             `json:"negate"`
			Conditions []map[string]any `json:"conditions"`
		}
		if err := json.Unmarshal(encoded, &group); err != nil {
			return nil, err
		}
		cg := &conditioneval.ConditionGroup{
			ID:     group.ID,
			Logic:  conditioneval.LogicOperator(group.Logic),
			Negate: group.Negate,
		}
		if cg.Logic == "" {
			cg.Logic = conditioneval.LogicAnd
		}
		for _, child := range group.Conditions {
			childNode, err := decodeConditionNode(child)
			if err != nil {
				return nil, err
			}
			cg.Conditions = append(cg.Conditions, childNode)
		}
		return cg, nil
	}

	var cond conditioneval.Condition
	if err := json.Unmarshal(encoded, &cond); err != nil {
		return nil, err
	}
	return cond, nil
}

// --- direct nodes ------------------------------------------------------------

// delayExecutor pauses the node wave for a configured duration.
type delayExecutor struct {
	*executor.BaseExecutor
}

func (e *delayExecutor) Execute(ctx context.Context, config map[string]any, _ any) (any, error) {
	ms := e.GetIntDefault(config, "duration_ms", 0)
	duration := time.Duration(ms) * time.Millisecond

	select {
	case <-time.After(duration):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return map[string]any{
		"delayed":  true,
		"duration": duration.String(),
	}, nil
}

func (e *delayExecutor) Validate(config map[string]any) error {
	if e.GetIntDefault(config, "duration_ms", 0) < 0 {
		return fmt.Errorf("duration_ms must be non-negative")
	}
	return nil
}

// dataTransformExecutor reshapes input via the same expr-lang/gojq surface
// TransformExecutor exposes to the "transform" node type, wrapped in the
// {transformed, data} shape data-transform reports.
type dataTransformExecutor struct {
	*executor.BaseExecutor
	inner *TransformExecutor
}

func (e *dataTransformExecutor) transform() *TransformExecutor {
	if e.inner == nil {
		e.inner = NewTransformExecutor()
	}
	return e.inner
}

func (e *dataTransformExecutor) Execute(ctx context.Context, config map[string]any, input any) (any, error) {
	out, err := e.transform().Execute(ctx, config, input)
	if err != nil {
		return nil, fmt.Errorf("data-transform: %w", err)
	}
	return map[string]any{
		"transformed": true,
		"data":        out,
	}, nil
}

func (e *dataTransformExecutor) Validate(config map[string]any) error {
	return e.transform().Validate(config)
}

// variableSetterExecutor assigns one or more named values. It cannot reach
// into ExecutionState.Variables directly (the Executor interface is given
// only config and the parent's output), so the values it sets flow to
// children the same way any node's output does: via DirectParentOutput. A
// downstream node referencing {{input.name}} sees what was set here.
type variableSetterExecutor struct {
	*executor.BaseExecutor
}

func (e *variableSetterExecutor) Execute(_ context.Context, config map[string]any, _ any) (any, error) {
	values, err := e.GetMap(config, "variables")
	if err != nil {
		return nil, fmt.Errorf("variable-setter: %w", err)
	}
	out := map[string]any{
		"set":   true,
		"count": len(values),
	}
	for k, v := range values {
		out[k] = v
	}
	return out, nil
}

func (e *variableSetterExecutor) Validate(config map[string]any) error {
	_, err := e.GetMap(config, "variables")
	return err
}

// loggerNodeExecutor writes a structured log line through the same
// *logger.Logger the rest of the server uses.
type loggerNodeExecutor struct {
	*executor.BaseExecutor
	log *logger.Logger
}

func (e *loggerNodeExecutor) Execute(_ context.Context, config map[string]any, input any) (any, error) {
	message := e.GetStringDefault(config, "message", "")
	level := e.GetStringDefault(config, "level", "info")

	if e.log != nil {
		switch level {
		case "warn":
			e.log.Warn(message, "input", input)
		case "error":
			e.log.Error(message, "input", input)
		default:
			e.log.Info(message, "input", input)
		}
	}

	return map[string]any{"logged": true}, nil
}

func (e *loggerNodeExecutor) Validate(map[string]any) error { return nil }

// subWorkflowExecutor dispatches a child workflow execution and returns its
// execution id without waiting for it to finish.
type subWorkflowExecutor struct {
	*executor.BaseExecutor
	dispatch func(ctx context.Context, workflowID string, input map[string]any) (string, error)
}

func (e *subWorkflowExecutor) Execute(ctx context.Context, config map[string]any, input any) (any, error) {
	workflowID, err := e.GetString(config, "workflow_id")
	if err != nil {
		return nil, fmt.Errorf("sub-workflow: %w", err)
	}
	if e.dispatch == nil {
		return nil, fmt.Errorf("sub-workflow: no dispatcher configured")
	}

	inputMap, _ := input.(map[string]any)
	executionID, err := e.dispatch(ctx, workflowID, inputMap)
	if err != nil {
		return nil, fmt.Errorf("sub-workflow: dispatch failed: %w", err)
	}

	return map[string]any{"workflow_execution_id": executionID}, nil
}

func (e *subWorkflowExecutor) Validate(config map[string]any) error {
	return e.ValidateRequired(config, "workflow_id")
}

// --- action-kind nodes, queued through ActionExecutor ------------------------

// actionNode adapts an action-kind node type to the priority-queued worker
// pool: Execute submits the node's resolved config as one action and blocks
// for its terminal result, then reshapes that result into the node's output
// contract. One Definition is registered per node type, keyed by node type
// name, the first time its constructor runs.
type actionNode struct {
	*executor.BaseExecutor
	actions      *actionexecutor.Executor
	definitionID string
	shape        func(result any) (map[string]any, error)
}

func newActionNode(
	actions *actionexecutor.Executor,
	nodeType string,
	timeout time.Duration,
	handler actionexecutor.Handler,
	shape func(any) (map[string]any, error),
) *actionNode {
	actions.Register(&actionexecutor.Definition{
		ID:      nodeType,
		Handler: handler,
		Timeout: timeout,
		Retry:   retrypolicy.Default(),
	})
	return &actionNode{
		BaseExecutor: executor.NewBaseExecutor(nodeType),
		actions:      actions,
		definitionID: nodeType,
		shape:        shape,
	}
}

func (n *actionNode) Execute(ctx context.Context, config map[string]any, _ any) (any, error) {
	action, err := n.actions.SubmitAndWait(ctx, n.definitionID, config, 0)
	if err != nil {
		return nil, err
	}
	switch action.Status {
	case actionexecutor.StatusFailed, actionexecutor.StatusCancelled:
		if action.Err != nil {
			return nil, fmt.Errorf("%s: %w", n.definitionID, action.Err)
		}
		return nil, fmt.Errorf("%s: action ended in status %s", n.definitionID, action.Status)
	}
	return n.shape(action.Result)
}

func (n *actionNode) Validate(map[string]any) error { return nil }

func newHTTPActionNode(actions *actionexecutor.Executor) *actionNode {
	client := NewHTTPExecutor()

	handler := func(ctx context.Context, input map[string]any) (any, error) {
		return client.Execute(ctx, input, nil)
	}
	shape := func(result any) (map[string]any, error) {
		m, ok := result.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("http-action: unexpected result type %T", result)
		}
		return map[string]any{
			"status":  m["status"],
			"headers": m["headers"],
			"body":    m["body"],
		}, nil
	}
	return newActionNode(actions, "http-action", 30*time.Second, handler, shape)
}

func newEmailActionNode(actions *actionexecutor.Executor) *actionNode {
	base := executor.NewBaseExecutor("email-action")

	handler := func(_ context.Context, input map[string]any) (any, error) {
		from, err := base.GetString(input, "from")
		if err != nil {
			return nil, fmt.Errorf("email-action: %w", err)
		}
		to, err := base.GetString(input, "to")
		if err != nil {
			return nil, fmt.Errorf("email-action: %w", err)
		}
		subject, err := base.GetString(input, "subject")
		if err != nil {
			return nil, fmt.Errorf("email-action: %w", err)
		}
		body := base.GetStringDefault(input, "body", "")
		domain := base.GetStringDefault(input, "domain", "")
		apiKey := base.GetStringDefault(input, "api_key", "")

		messageID := uuid.NewString()
		if domain != "" && apiKey != "" {
			mg := mailgun.NewMailgun(domain, apiKey)
			message := mg.NewMessage(from, subject, body, to)
			_, id, err := mg.Send(context.Background(), message)
			if err != nil {
				return nil, fmt.Errorf("email-action: mailgun send failed: %w", err)
			}
			messageID = id
		}

		return map[string]any{
			"message_id":   messageID,
			"delivered_at": time.Now(),
		}, nil
	}

	shape := func(result any) (map[string]any, error) {
		m, ok := result.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("email-action: unexpected result type %T", result)
		}
		return m, nil
	}
	return newActionNode(actions, "email-action", 30*time.Second, handler, shape)
}

func newDatabaseActionNode(actions *actionexecutor.Executor, db *bun.DB) *actionNode {
	base := executor.NewBaseExecutor("database-action")

	handler := func(ctx context.Context, input map[string]any) (any, error) {
		if db == nil {
			return nil, fmt.Errorf("database-action: no database connection configured")
		}
		query, err := base.GetString(input, "query")
		if err != nil {
			return nil, fmt.Errorf("database-action: %w", err)
		}
		var args []any
		if rawArgs, ok := input["args"].([]any); ok {
			args = rawArgs
		}

		if base.GetBoolDefault(input, "returns_rows", false) {
			rows, err := db.QueryContext(ctx, query, args...)
			if err != nil {
				return nil, fmt.Errorf("database-action: query failed: %w", err)
			}
			defer rows.Close()

			data, err := scanRows(rows)
			if err != nil {
				return nil, fmt.Errorf("database-action: scan failed: %w", err)
			}
			return map[string]any{
				"rows_affected": int64(len(data)),
				"data":          data,
			}, nil
		}

		res, err := db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("database-action: exec failed: %w", err)
		}
		affected, _ := res.RowsAffected()
		return map[string]any{"rows_affected": affected}, nil
	}

	shape := func(result any) (map[string]any, error) {
		m, ok := result.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("database-action: unexpected result type %T", result)
		}
		return m, nil
	}
	return newActionNode(actions, "database-action", 30*time.Second, handler, shape)
}

// scanRows reads a *sql.Rows into generic maps keyed by column name.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func newSocialActionNode(actions *actionexecutor.Executor) *actionNode {
	base := executor.NewBaseExecutor("social-action")

	handler := func(_ context.Context, input map[string]any) (any, error) {
		platform, err := base.GetString(input, "platform")
		if err != nil {
			return nil, fmt.Errorf("social-action: %w", err)
		}
		if _, err := base.GetString(input, "message"); err != nil {
			return nil, fmt.Errorf("social-action: %w", err)
		}

		postID := uuid.NewString()
		return map[string]any{
			"post_id":      postID,
			"url":          fmt.Sprintf("https://%s.example/posts/%s", platform, postID),
			"published_at": time.Now(),
		}, nil
	}

	shape := func(result any) (map[string]any, error) {
		m, ok := result.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("social-action: unexpected result type %T", result)
		}
		return m, nil
	}
	return newActionNode(actions, "social-action", 30*time.Second, handler, shape)
}

// javaScriptActionNode runs a user script through the same sandboxed goja
// runtime idiom as the JavaScript executor package: dangerous globals
// stripped, console silenced, input bound as a global, the script's `result`
// binding returned.
func newJavaScriptActionNode(actions *actionexecutor.Executor) *actionNode {
	base := executor.NewBaseExecutor("javascript-action")

	handler := func(ctx context.Context, input map[string]any) (any, error) {
		script, err := base.GetString(input, "script")
		if err != nil {
			return nil, fmt.Errorf("javascript-action: %w", err)
		}

		vm := goja.New()
		vm.SetMaxCallStackSize(256)
		for _, name := range []string{"require", "module", "exports", "eval", "Function", "process", "global", "globalThis"} {
			_ = vm.Set(name, goja.Undefined())
		}
		if err := vm.Set("input", input["data"]); err != nil {
			return nil, fmt.Errorf("javascript-action: %w", err)
		}

		done := make(chan struct{})
		var value goja.Value
		var runErr error
		go func() {
			defer close(done)
			value, runErr = vm.RunString(script)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			vm.Interrupt("cancelled")
			<-done
			return nil, ctx.Err()
		}
		if runErr != nil {
			return nil, fmt.Errorf("javascript-action: script failed: %w", runErr)
		}

		var result any
		if resultVal := vm.Get("result"); resultVal != nil && !goja.IsUndefined(resultVal) {
			result = resultVal.Export()
		} else if value != nil {
			result = value.Export()
		}

		return map[string]any{
			"executed": true,
			"result":   result,
		}, nil
	}

	shape := func(result any) (map[string]any, error) {
		m, ok := result.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("javascript-action: unexpected result type %T", result)
		}
		return m, nil
	}
	return newActionNode(actions, "javascript-action", 10*time.Second, handler, shape)
}

// newFileActionNode composes the existing FileStorageExecutor rather than
// duplicating its store/get/delete logic, translating its richer result into
// the {operation, path, size} shape file-action reports.
func newFileActionNode(actions *actionexecutor.Executor, files filestorage.Manager) *actionNode {
	var inner *FileStorageExecutor
	if files != nil {
		inner = NewFileStorageExecutor(files)
	}

	handler := func(ctx context.Context, input map[string]any) (any, error) {
		if inner == nil {
			return nil, fmt.Errorf("file-action: no file storage manager configured")
		}
		return inner.Execute(ctx, input, nil)
	}

	shape := func(result any) (map[string]any, error) {
		m, ok := result.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("file-action: unexpected result type %T", result)
		}
		path, _ := m["file_id"].(string)
		if name, ok := m["file_name"].(string); ok && name != "" {
			path = name
		}
		var size int64
		switch v := m["size"].(type) {
		case int64:
			size = v
		case int:
			size = int64(v)
		}
		return map[string]any{
			"operation": m["action"],
			"path":      path,
			"size":      size,
		}, nil
	}
	return newActionNode(actions, "file-action", 30*time.Second, handler, shape)
}

// newNotificationActionNode publishes through the same event bus
// notification-triggered subscriptions and webhooks fan out from.
func newNotificationActionNode(actions *actionexecutor.Executor, bus *eventbus.Bus) *actionNode {
	base := executor.NewBaseExecutor("notification-action")

	handler := func(ctx context.Context, input map[string]any) (any, error) {
		if bus == nil {
			return nil, fmt.Errorf("notification-action: no event bus configured")
		}
		eventName := base.GetStringDefault(input, "event", "workflow.notification")
		data, _ := base.GetMap(input, "data")
		if data == nil {
			data = map[string]any{}
		}

		if _, err := bus.Publish(ctx, eventName, data, "notification-action", ""); err != nil {
			return nil, fmt.Errorf("notification-action: publish failed: %w", err)
		}
		return map[string]any{"sent": true}, nil
	}

	shape := func(result any) (map[string]any, error) {
		m, ok := result.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("notification-action: unexpected result type %T", result)
		}
		return m, nil
	}
	return newActionNode(actions, "notification-action", 10*time.Second, handler, shape)
}
