package graph

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// ErrInvalidRetryPolicy indicates a RetryPolicy with impossible limits.
var ErrInvalidRetryPolicy = errors.New("invalid retry policy")

// NodePolicy configures the execution behavior of one node.
type NodePolicy struct {
	// Timeout is the maximum execution time allowed for this node.
	// If zero, the engine default (WithDefaultNodeTimeout) is used.
	Timeout time.Duration
}

// RetryPolicy defines automatic retry configuration for transient node failures.
//
// The Engine never retries a failed node on its own. Wrap a node with Retry
// to opt in.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of execution attempts (including initial attempt).
	// Must be >= 1. A value of 1 means no retries.
	MaxAttempts int

	// BaseDelay is the base delay for exponential backoff between retries.
	BaseDelay time.Duration

	// MaxDelay caps the exponential component. Zero means no cap.
	MaxDelay time.Duration

	// Retryable reports whether an error is worth another attempt.
	// If nil, all errors are considered non-retryable.
	Retryable func(error) bool

	// OnRetry, when set, is called before each retry with the zero-based
	// retry number and the error that caused it.
	OnRetry func(attempt int, err error)
}

// Validate checks if the RetryPolicy configuration is valid.
//   - MaxAttempts must be >= 1
//   - If both MaxDelay and BaseDelay are > 0, then MaxDelay must be >= BaseDelay
func (rp *RetryPolicy) Validate() error {
	if rp.MaxAttempts < 1 {
		return ErrInvalidRetryPolicy
	}
	if rp.MaxDelay > 0 && rp.BaseDelay > 0 && rp.MaxDelay < rp.BaseDelay {
		return ErrInvalidRetryPolicy
	}
	return nil
}

// Retry wraps node so that retryable failures are attempted again with
// exponential backoff. Interrupts and successful results pass through
// unchanged. The wrapper gives up early when ctx is done.
func Retry(node Node, policy RetryPolicy) (Node, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &retryNode{inner: node, policy: policy}, nil
}

type retryNode struct {
	inner  Node
	policy RetryPolicy
}

func (r *retryNode) Run(ctx context.Context, state State, cfg Config) NodeResult {
	var res NodeResult
	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		res = r.inner.Run(ctx, state, cfg)
		if res.Err == nil || r.policy.Retryable == nil || !r.policy.Retryable(res.Err) {
			return res
		}
		if attempt == r.policy.MaxAttempts-1 {
			break
		}
		if r.policy.OnRetry != nil {
			r.policy.OnRetry(attempt, res.Err)
		}
		delay := computeBackoff(attempt, r.policy.BaseDelay, r.policy.MaxDelay, nil)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return res
		case <-timer.C:
		}
	}
	return res
}

// computeBackoff calculates the delay before a retry:
//
//	delay = min(base * 2^attempt, maxDelay) + jitter(0, base)
//
// attempt is zero-based. A nil rng falls back to the global source.
func computeBackoff(attempt int, base, maxDelay time.Duration, rng *rand.Rand) time.Duration {
	if base <= 0 {
		return 0
	}
	exponentialDelay := base * (1 << attempt)
	if maxDelay > 0 && exponentialDelay > maxDelay {
		exponentialDelay = maxDelay
	}

	var jitter time.Duration
	if rng != nil {
		jitter = time.Duration(rng.Int63n(int64(base)))
	} else {
		jitter = time.Duration(rand.Int63n(int64(base))) // #nosec G404 -- jitter for retry timing, not security
	}

	return exponentialDelay + jitter
}
