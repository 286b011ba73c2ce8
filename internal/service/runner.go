package service

import (
	"context"
	"time"

	"github.com/slidewise/deckd/internal/core"
	"github.com/slidewise/deckd/internal/logging"
)

// RetryingRunner decorates an LLMRunner with a retry policy. Only
// failures the domain classifies retryable are retried; the wrapped
// runner's classification decides, not the provider's error types.
type RetryingRunner struct {
	inner  core.LLMRunner
	policy *RetryPolicy
	log    *logging.Logger
}

// NewRetryingRunner wraps a runner. A nil policy gets the LLM preset.
func NewRetryingRunner(inner core.LLMRunner, policy *RetryPolicy, log *logging.Logger) *RetryingRunner {
	if policy == nil {
		policy = LLMRetryPolicy()
	}
	return &RetryingRunner{inner: inner, policy: policy, log: log}
}

// Name implements core.LLMRunner.
func (r *RetryingRunner) Name() string { return r.inner.Name() }

// Run implements core.LLMRunner.
func (r *RetryingRunner) Run(ctx context.Context, req core.LLMRequest) (*core.LLMResult, error) {
	var result *core.LLMResult
	err := r.policy.ExecuteWithNotify(ctx, func(ctx context.Context) error {
		res, rerr := r.inner.Run(ctx, req)
		if rerr != nil {
			return rerr
		}
		result = res
		return nil
	}, func(attempt int, attemptErr error, delay time.Duration) {
		r.log.Warn("model call failed, retrying",
			"attempt", attempt, "delay", delay.String(), "error", attemptErr.Error())
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
