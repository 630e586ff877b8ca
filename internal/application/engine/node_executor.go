package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	conditioneval "github.com/mbflow/automation-engine/pkg/engine"
	"github.com/mbflow/automation-engine/pkg/executor"
	"github.com/mbflow/automation-engine/pkg/models"
)

// ErrPreconditionNotMet is returned by NodeExecutor.Execute when a node
// carries a "precondition" block in its Config and that condition evaluates
// to false. dag_executor treats this distinctly from a real execution
// failure: the node is marked skipped, not failed.
var ErrPreconditionNotMet = errors.New("node precondition not met")

// NodeExecutionResult contains the result of node execution along with metadata.
type NodeExecutionResult struct {
	Output         interface{}
	Input          interface{}
	Config         map[string]interface{}
	ResolvedConfig map[string]interface{}
}

// NodeExecutor executes a single node with automatic template resolution
// and, ahead of that, an optional node-level precondition gate evaluated
// through the operator-set condition evaluator rather than the edge-guard
// expression cache dag_executor already uses for incoming-edge conditions.
type NodeExecutor struct {
	executorManager executor.Manager
	conditions      *conditioneval.RuleEvaluator
}

// NewNodeExecutor creates a new node executor. conditions may be nil; a
// default RuleEvaluator is created lazily the first time a node declares a
// precondition.
func NewNodeExecutor(manager executor.Manager, conditions *conditioneval.RuleEvaluator) *NodeExecutor {
	return &NodeExecutor{
		executorManager: manager,
		conditions:      conditions,
	}
}

// Execute executes a single node with automatic template resolution.
//
// This is the CRITICAL integration point where TemplateExecutorWrapper is applied.
//
// Flow:
//  1. Evaluate the node's precondition, if it has one
//  2. Get base executor from registry
//  3. Build ExecutionContextData from node context
//  4. Resolve templates in config to get ResolvedConfig
//  5. Execute with resolved config
//  6. Return NodeExecutionResult with metadata
func (ne *NodeExecutor) Execute(ctx context.Context, nodeCtx *NodeContext) (*NodeExecutionResult, error) {
	// 1. Node-level precondition gate, independent of edge-guard conditions.
	if met, err := ne.evaluatePrecondition(nodeCtx); err != nil {
		return nil, fmt.Errorf("precondition evaluation failed: %w", err)
	} else if !met {
		return nil, ErrPreconditionNotMet
	}

	// 2. Get base executor from registry
	baseExecutor, err := ne.executorManager.Get(nodeCtx.Node.Type)
	if err != nil {
		return nil, fmt.Errorf("executor not found for type %s: %w", nodeCtx.Node.Type, err)
	}

	// 3. Build ExecutionContextData for template resolution
	execCtxData := &executor.ExecutionContextData{
		WorkflowVariables:  nodeCtx.WorkflowVariables,
		ExecutionVariables: nodeCtx.ExecutionVariables,
		ParentNodeOutput:   nodeCtx.DirectParentOutput, // ⭐ Key: output from immediate parent
		StrictMode:         nodeCtx.StrictMode,
	}

	// 4. Resolve templates in config ({{input.field}}, {{env.var}}, ...)
	templateEngine := executor.NewTemplateEngine(execCtxData)
	resolvedConfig, err := templateEngine.ResolveConfig(nodeCtx.Node.Config)
	if err != nil {
		return nil, fmt.Errorf("template resolution failed: %w", err)
	}

	// 5. Execute with the resolved config
	output, err := baseExecutor.Execute(ctx, resolvedConfig, nodeCtx.DirectParentOutput)

	result := &NodeExecutionResult{
		Output:         output,
		Input:          nodeCtx.DirectParentOutput,
		Config:         nodeCtx.Node.Config,
		ResolvedConfig: resolvedConfig,
	}

	if err != nil {
		return result, fmt.Errorf("node execution failed: %w", err)
	}

	return result, nil
}

// evaluatePrecondition decodes node.Config["precondition"] (a flat
// field/operator/value condition, matching the shape
// handlers_runtime.go's HandleEvaluateCondition accepts over the wire) and
// evaluates it against the node's direct parent output. A node without a
// precondition always proceeds.
func (ne *NodeExecutor) evaluatePrecondition(nodeCtx *NodeContext) (bool, error) {
	raw, ok := nodeCtx.Node.Config["precondition"]
	if !ok || raw == nil {
		return true, nil
	}

	raw, ok = raw.(map[string]interface{})
	if !ok {
		return false, fmt.Errorf("precondition must be an object")
	}

	var cond conditioneval.Condition
	encoded, err := json.Marshal(raw)
	if err != nil {
		return false, fmt.Errorf("invalid precondition: %w", err)
	}
	if err := json.Unmarshal(encoded, &cond); err != nil {
		return false, fmt.Errorf("invalid precondition: %w", err)
	}

	evaluator := ne.conditions
	if evaluator == nil {
		evaluator = conditioneval.NewRuleEvaluator(nil)
	}

	ctxData := map[string]interface{}(nodeCtx.DirectParentOutput)
	result, err := evaluator.Evaluate(cond, ctxData)
	if err != nil {
		return false, err
	}
	return result.Success, nil
}

// PrepareNodeContext builds NodeContext from execution state and node.
//
// This function handles:
//   - Single parent: merges parent output with execution input (parent output takes precedence)
//   - Multiple parents: merges outputs by parent node ID (namespace collision avoidance)
//   - No parents: uses execution input
func PrepareNodeContext(
	execState *ExecutionState,
	node *models.Node,
	parentNodes []*models.Node,
	opts *ExecutionOptions,
) *NodeContext {
	// Get direct parent output (for nodes with single parent)
	var directParentOutput map[string]interface{}

	if len(parentNodes) == 1 {
		// Single parent - merge execution input with parent output
		// This allows child nodes to access both execution input and parent output
		directParentOutput = make(map[string]interface{})

		// First, copy execution input
		for k, v := range execState.Input {
			directParentOutput[k] = v
		}

		// Then, overlay parent output (takes precedence)
		parentID := parentNodes[0].ID
		if output, ok := execState.GetNodeOutput(parentID); ok {
			if outputMap, ok := output.(map[string]interface{}); ok {
				for k, v := range outputMap {
					directParentOutput[k] = v
				}
			}
		}
	} else if len(parentNodes) > 1 {
		// Multiple parents - merge outputs with namespace by parent ID
		directParentOutput = mergeParentOutputs(execState, parentNodes)
	} else {
		// No parents - use execution input
		directParentOutput = execState.Input
	}

	return &NodeContext{
		ExecutionID:        execState.ExecutionID,
		NodeID:             node.ID,
		Node:               node,
		WorkflowVariables:  execState.Workflow.Variables,
		ExecutionVariables: execState.Variables,
		DirectParentOutput: directParentOutput,
		StrictMode:         opts.StrictMode,
	}
}

// mergeParentOutputs merges outputs from multiple parent nodes.
//
// To avoid namespace collisions, outputs are namespaced by parent node ID:
//
//	{
//	  "parent1-id": {parent1 output},
//	  "parent2-id": {parent2 output}
//	}
//
// Access in templates:
//
//	{{input.parent1-id.field}}
//	{{input.parent2-id.data}}
func mergeParentOutputs(execState *ExecutionState, parentNodes []*models.Node) map[string]interface{} {
	merged := make(map[string]interface{})

	for _, parent := range parentNodes {
		if output, ok := execState.GetNodeOutput(parent.ID); ok {
			// Namespace outputs by parent node ID to avoid collisions
			merged[parent.ID] = output
		}
	}

	return merged
}
