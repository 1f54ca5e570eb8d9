// Package adapter defines the model-adapter boundary the runtime loop calls
// through: a two-method capability set (generate a reply, observe the
// generation metadata of the last call) with retry policy owned entirely by
// the adapter implementation, not the caller.
package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/config"
)

// ErrAdapterFailure wraps a transient adapter error that survived retry.
var ErrAdapterFailure = errors.New("adapter failure")

// GenerationMeta is the observable metadata the runtime attaches to the
// assistant_message event and to metrics_turn.
type GenerationMeta struct {
	Provider   string
	Model      string
	LatencyMs  int64
	WordCount  int
	Attempts   int
}

// ModelAdapter is the runtime's only dependency on a concrete LLM backend.
type ModelAdapter interface {
	// GenerateReply produces a reply for the given system and user prompts.
	GenerateReply(ctx context.Context, system, user string) (string, GenerationMeta, error)
}

// RetryingAdapter wraps an underlying ModelAdapter with bounded exponential
// backoff on transient failures, per the adapter's own retry contract
// (AdapterFailure is retried up to N attempts; after that it is surfaced to
// the caller with no further ledger writes attempted).
type RetryingAdapter struct {
	inner ModelAdapter
	cfg   config.AdapterConfig
}

// NewRetryingAdapter wraps inner with the given retry configuration.
func NewRetryingAdapter(inner ModelAdapter, cfg config.AdapterConfig) *RetryingAdapter {
	if cfg.RetryMaxAttempts <= 0 {
		cfg.RetryMaxAttempts = 3
	}
	if cfg.RetryBaseDelayMs <= 0 {
		cfg.RetryBaseDelayMs = 500
	}
	return &RetryingAdapter{inner: inner, cfg: cfg}
}

// GenerateReply retries the inner adapter's transient failures with
// exponential backoff, tracking the number of attempts taken in the
// returned GenerationMeta.
func (r *RetryingAdapter) GenerateReply(ctx context.Context, system, user string) (string, GenerationMeta, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(r.cfg.RetryBaseDelayMs) * time.Millisecond
	var bounded backoff.BackOff = backoff.WithMaxRetries(b, uint64(r.cfg.RetryMaxAttempts-1))
	bounded = backoff.WithContext(bounded, ctx)

	var reply string
	var meta GenerationMeta
	attempts := 0

	op := func() error {
		attempts++
		var err error
		reply, meta, err = r.inner.GenerateReply(ctx, system, user)
		if err != nil {
			return err
		}
		return nil
	}

	err := backoff.Retry(op, bounded)
	meta.Attempts = attempts
	if err != nil {
		return "", meta, errors.Join(ErrAdapterFailure, err)
	}
	return reply, meta, nil
}
