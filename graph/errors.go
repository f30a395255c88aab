package graph

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Every typed error below matches exactly one of these
// through errors.Is, so callers can branch without type assertions.
var (
	// ErrSchemaViolation indicates an update touched an undeclared field or
	// carried a value of the wrong type.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrGraphValidation indicates a graph definition failed to compile.
	ErrGraphValidation = errors.New("graph validation failed")

	// ErrRouting indicates a router returned a target outside its candidate set.
	ErrRouting = errors.New("routing error")

	// ErrInvalidResumeState indicates Resume was called on a thread that is
	// not waiting for input.
	ErrInvalidResumeState = errors.New("invalid resume state")

	// ErrConcurrentResume indicates another caller is already advancing the thread.
	ErrConcurrentResume = errors.New("concurrent resume")

	// ErrStepBudgetExceeded indicates the run reached the maximum step count
	// without finishing. Callers may raise the budget and retry.
	ErrStepBudgetExceeded = errors.New("step budget exceeded")

	// ErrNodeExecution indicates a node body failed.
	ErrNodeExecution = errors.New("node execution failed")

	// ErrUnknownGraph indicates a graph name was not registered with the Engine.
	ErrUnknownGraph = errors.New("unknown graph")

	// ErrMultipleInterrupts indicates more than one node requested input in the same step.
	ErrMultipleInterrupts = errors.New("multiple interrupts in one step")

	// ErrThreadInterrupted indicates Invoke was called on a thread that is
	// waiting for input. Resume or discard it first.
	ErrThreadInterrupted = errors.New("thread is waiting for input")

	// ErrNoResumeField indicates resume input was supplied for a node that
	// declares no resume field.
	ErrNoResumeField = errors.New("node declares no resume field")
)

// EngineError reports engine misconfiguration, such as an invalid option.
type EngineError struct {
	Message string
	Code    string
}

func (e *EngineError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// SchemaViolationError reports an update that does not conform to the schema.
type SchemaViolationError struct {
	Schema string
	Node   string
	Field  string
	Reason string
}

func (e *SchemaViolationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "schema %s: field %q", e.Schema, e.Field)
	if e.Node != "" {
		fmt.Fprintf(&b, " (node %s)", e.Node)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

func (e *SchemaViolationError) Is(target error) bool { return target == ErrSchemaViolation }

// ValidationKind classifies a graph compilation failure.
type ValidationKind string

// Validation kinds reported by Compile.
const (
	DanglingReference    ValidationKind = "dangling-reference"
	DuplicateNode        ValidationKind = "duplicate-node"
	UnreachableCandidate ValidationKind = "unreachable-candidate"
	MalformedSentinel    ValidationKind = "malformed-sentinel-edge"
	ProjectionMismatch   ValidationKind = "projection-mismatch"
	InvalidNode          ValidationKind = "invalid-node"
)

// GraphValidationError reports one problem found while compiling a graph.
// Compile joins all of them with errors.Join.
type GraphValidationError struct {
	Graph  string
	Kind   ValidationKind
	Detail string
}

func (e *GraphValidationError) Error() string {
	return fmt.Sprintf("graph %s: %s: %s", e.Graph, e.Kind, e.Detail)
}

func (e *GraphValidationError) Is(target error) bool { return target == ErrGraphValidation }

// RoutingError reports a router that returned a value outside its declared candidates.
type RoutingError struct {
	Node       string
	Value      string
	Candidates []string
	Cause      error
}

func (e *RoutingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("router after %s failed: %v", e.Node, e.Cause)
	}
	return fmt.Sprintf("router after %s returned %q, want one of [%s]", e.Node, e.Value, strings.Join(e.Candidates, ", "))
}

func (e *RoutingError) Is(target error) bool { return target == ErrRouting }

func (e *RoutingError) Unwrap() error { return e.Cause }

// InvalidResumeStateError reports a resume of a thread that is not interrupted.
// Status is empty when the thread does not exist.
type InvalidResumeStateError struct {
	ThreadID string
	Status   Status
}

func (e *InvalidResumeStateError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("thread %s: no checkpoint to resume", e.ThreadID)
	}
	return fmt.Sprintf("thread %s: cannot resume a %s run", e.ThreadID, e.Status)
}

func (e *InvalidResumeStateError) Is(target error) bool { return target == ErrInvalidResumeState }

// ConcurrentResumeError reports that another writer advanced the thread first.
type ConcurrentResumeError struct {
	ThreadID string
}

func (e *ConcurrentResumeError) Error() string {
	return fmt.Sprintf("thread %s: already being advanced by another caller", e.ThreadID)
}

func (e *ConcurrentResumeError) Is(target error) bool { return target == ErrConcurrentResume }

// StepBudgetExceededError reports a run that still had work after MaxSteps steps.
type StepBudgetExceededError struct {
	Graph    string
	MaxSteps int
	Active   []string
}

func (e *StepBudgetExceededError) Error() string {
	return fmt.Sprintf("graph %s: exceeded %d steps with [%s] still active", e.Graph, e.MaxSteps, strings.Join(e.Active, ", "))
}

func (e *StepBudgetExceededError) Is(target error) bool { return target == ErrStepBudgetExceeded }

// NodeExecutionError reports a node body failure together with where it happened.
type NodeExecutionError struct {
	Node  string
	Step  int
	Cause error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %s failed at step %d: %v", e.Node, e.Step, e.Cause)
}

func (e *NodeExecutionError) Is(target error) bool { return target == ErrNodeExecution }

func (e *NodeExecutionError) Unwrap() error { return e.Cause }
