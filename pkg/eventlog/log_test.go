package eventlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLog(t *testing.T) *EventLog {
	t.Helper()
	l, err := Open(context.Background())
	require.NoError(t, err)
	return l
}

func TestEventLog_HashChain(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	id1, err := l.Append(ctx, KindUserMessage, "hi", map[string]interface{}{"role": "user"})
	require.NoError(t, err)
	id2, err := l.Append(ctx, KindAssistantMessage, "hello", map[string]interface{}{"role": "assistant"})
	require.NoError(t, err)

	e1, ok := l.Get(id1)
	require.True(t, ok)
	e2, ok := l.Get(id2)
	require.True(t, ok)

	assert.Empty(t, e1.PrevHash)
	assert.Equal(t, e1.Hash, e2.PrevHash)
	assert.Len(t, e1.Hash, 64)
	assert.Len(t, e2.Hash, 64)
}

func TestEventLog_IdempotentAppend(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	meta := map[string]interface{}{"role": "user"}
	id1, err := l.Append(ctx, KindUserMessage, "hi", meta)
	require.NoError(t, err)
	id2, err := l.Append(ctx, KindUserMessage, "hi", meta)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, int64(1), l.Count())
}

func TestEventLog_InvalidKind(t *testing.T) {
	l := newTestLog(t)
	_, err := l.Append(context.Background(), Kind("not_a_real_kind"), "x", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestEventLog_TypeMismatch(t *testing.T) {
	l := newTestLog(t)
	_, err := l.AppendValue(context.Background(), KindUserMessage, 42, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestEventLog_PolicyEnforcement(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	_, err := l.Append(ctx, KindConfig,
		`{"type":"policy","forbid_sources":{"assistant":["config"]}}`,
		map[string]interface{}{"source": "system"})
	require.NoError(t, err)

	_, err = l.Append(ctx, KindConfig, `{"type":"retrieval","limit":20}`,
		map[string]interface{}{"source": "assistant"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPolicyForbidden)

	violations := l.ReadByKind(KindViolation, 0, false)
	require.Len(t, violations, 1)
	assert.Equal(t, "policy_violation:assistant:config", violations[0].Content)

	configs := l.ReadByKind(KindConfig, 0, false)
	assert.Len(t, configs, 1) // only the policy config itself
}

func TestEventLog_FindEntries_SubstringFallback(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	_, err := l.Append(ctx, KindUserMessage, "the quick brown fox", nil)
	require.NoError(t, err)
	_, err = l.Append(ctx, KindUserMessage, "lazy dog sleeps", nil)
	require.NoError(t, err)

	hits := l.FindEntries(ctx, "fox", nil, nil, nil, 10)
	require.Len(t, hits, 1)
	assert.Contains(t, hits[0].Content, "fox")
}

func TestEventLog_FindMatchingChunks(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	_, err := l.Append(ctx, KindUserMessage, "alpha beta gamma delta epsilon", nil)
	require.NoError(t, err)

	hits := l.FindMatchingChunks(ctx, "gamma", nil, nil, nil, 10, 40)
	require.NotEmpty(t, hits)
	assert.Contains(t, hits[0].Snippet, "gamma")
}

func TestEventLog_ListenerExceptionSwallowed(t *testing.T) {
	l := newTestLog(t)
	l.RegisterListener(func(Event) { panic("boom") })

	id, err := l.Append(context.Background(), KindUserMessage, "still works", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestEventLog_DeterministicClock(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l, err := Open(context.Background(), WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	id, err := l.Append(context.Background(), KindUserMessage, "x", nil)
	require.NoError(t, err)
	e, _ := l.Get(id)
	assert.Equal(t, "2026-01-01T00:00:00.000000Z", e.Ts)
}
