package runtimeloop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/adapter"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/config"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/projections"
)

// scriptedAdapter returns replies[i] on the i-th call, recording every
// prompt it was given.
type scriptedAdapter struct {
	replies []string
	prompts []string
	i       int
}

func (a *scriptedAdapter) GenerateReply(ctx context.Context, system, user string) (string, adapter.GenerationMeta, error) {
	a.prompts = append(a.prompts, user)
	reply := a.replies[a.i]
	if a.i < len(a.replies)-1 {
		a.i++
	}
	return reply, adapter.GenerationMeta{Provider: "test", Model: "test-model"}, nil
}

type stubWebSearch struct{ result string }

func (s *stubWebSearch) Search(ctx context.Context, query string, limit int) (string, error) {
	return s.result, nil
}

func newTestLoop(t *testing.T, a adapter.ModelAdapter, web WebSearchProvider) *RuntimeLoop {
	t.Helper()
	ctx := context.Background()
	log, err := eventlog.Open(ctx)
	require.NoError(t, err)
	cfg := config.Default()
	return NewRuntimeLoop(log, a, web, cfg)
}

func TestConverse_WebMarkerRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := &scriptedAdapter{replies: []string{"WEB: current weather", "the weather is sunny"}}
	loop := newTestLoop(t, a, &stubWebSearch{result: "sunny, 20C"})

	reply, _, toolErrs, err := loop.converse(ctx, "system", "what's the weather")
	require.NoError(t, err)
	require.Equal(t, 0, toolErrs)
	require.Equal(t, "the weather is sunny", reply)
	require.Len(t, a.prompts, 2)
	require.Contains(t, a.prompts[1], "[WEB_SEARCH_RESULTS]")

	events := loop.Log.ReadByKind(eventlog.KindWebSearch, 0, false)
	require.Len(t, events, 1)
}

func TestConverse_LedgerGetWrongParamNameIsProtocolError(t *testing.T) {
	ctx := context.Background()
	a := &scriptedAdapter{replies: []string{`LEDGER_GET: {"event_id":1}`, "done"}}
	loop := newTestLoop(t, a, nil)

	_, err := loop.Log.Append(ctx, eventlog.KindUserMessage, "hello", nil)
	require.NoError(t, err)

	reply, _, toolErrs, err := loop.converse(ctx, "system", "look something up")
	require.NoError(t, err)
	require.Equal(t, 1, toolErrs)
	require.Equal(t, "done", reply)
	require.Contains(t, a.prompts[1], "[TOOL_PROTOCOL_ERROR]")
}

func TestConverse_LedgerFindReturnsMatchingIDs(t *testing.T) {
	ctx := context.Background()
	log, err := eventlog.Open(ctx)
	require.NoError(t, err)
	cg := projections.NewConceptGraph()
	log.RegisterListener(cg.Sync)
	_, err = log.Append(ctx, eventlog.KindUserMessage, "a note about identity continuity", nil)
	require.NoError(t, err)

	a := &scriptedAdapter{replies: []string{`LEDGER_FIND: {"query":"identity"}`, "found it"}}
	cfg := config.Default()
	loop := NewRuntimeLoop(log, a, nil, cfg)

	reply, _, toolErrs, err := loop.converse(ctx, "system", "find identity notes")
	require.NoError(t, err)
	require.Equal(t, 0, toolErrs)
	require.Equal(t, "found it", reply)
	require.Contains(t, a.prompts[1], "[LEDGER_FIND_RESULTS]")
}

func TestConverse_NoMarkerReturnsImmediately(t *testing.T) {
	ctx := context.Background()
	a := &scriptedAdapter{replies: []string{"plain reply, no markers"}}
	loop := newTestLoop(t, a, nil)

	reply, _, toolErrs, err := loop.converse(ctx, "system", "hi")
	require.NoError(t, err)
	require.Equal(t, 0, toolErrs)
	require.Equal(t, "plain reply, no markers", reply)
	require.Len(t, a.prompts, 1)
}
