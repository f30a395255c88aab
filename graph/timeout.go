package graph

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// getNodeTimeout determines the timeout for a node based on precedence:
// 1. NodePolicy.Timeout (per-node override)
// 2. defaultTimeout (engine-wide default)
// 3. 0 (no timeout)
func getNodeTimeout(policy NodePolicy, defaultTimeout time.Duration) time.Duration {
	if policy.Timeout > 0 {
		return policy.Timeout
	}
	if defaultTimeout > 0 {
		return defaultTimeout
	}
	return 0
}

// executeNode invokes one node with its timeout applied and converts a panic
// in the node body into an error result.
//
// The deadline is advisory: the node body must observe ctx for it to take
// effect. A node that overruns its deadline and then reports an error gets a
// NODE_TIMEOUT error in place of the one it returned.
func executeNode(ctx context.Context, spec *nodeSpec, state State, cfg Config, defaultTimeout time.Duration) (result NodeResult) {
	defer func() {
		if r := recover(); r != nil {
			result = NodeResult{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	timeout := getNodeTimeout(spec.policy, defaultTimeout)
	if timeout == 0 {
		return spec.node.Run(ctx, state, cfg)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result = spec.node.Run(timeoutCtx, state, cfg)
	if result.Err != nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		result.Err = &EngineError{
			Message: fmt.Sprintf("node %s exceeded timeout of %v: %v", spec.name, timeout, result.Err),
			Code:    "NODE_TIMEOUT",
		}
	}
	return result
}
