package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/config"
)

type stubAdapter struct {
	failUntil int
	calls     int
}

func (s *stubAdapter) GenerateReply(ctx context.Context, system, user string) (string, GenerationMeta, error) {
	s.calls++
	if s.calls <= s.failUntil {
		return "", GenerationMeta{}, errors.New("503 transient")
	}
	return "ok", GenerationMeta{Provider: "stub", Model: "test"}, nil
}

func TestRetryingAdapter_SucceedsAfterTransientFailures(t *testing.T) {
	inner := &stubAdapter{failUntil: 2}
	cfg := config.AdapterConfig{RetryMaxAttempts: 3, RetryBaseDelayMs: 1}
	r := NewRetryingAdapter(inner, cfg)

	reply, meta, err := r.GenerateReply(context.Background(), "sys", "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.Equal(t, 3, meta.Attempts)
}

func TestRetryingAdapter_SurfacesFailureAfterMaxAttempts(t *testing.T) {
	inner := &stubAdapter{failUntil: 99}
	cfg := config.AdapterConfig{RetryMaxAttempts: 2, RetryBaseDelayMs: 1}
	r := NewRetryingAdapter(inner, cfg)

	_, meta, err := r.GenerateReply(context.Background(), "sys", "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAdapterFailure))
	assert.Equal(t, 2, meta.Attempts)
}
