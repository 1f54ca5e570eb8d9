package runtimeloop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/config"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/projections"
)

func TestQueryVariants_NormalizesCaseAndPunctuation(t *testing.T) {
	variants := queryVariants(`What about "identity ratification"?`)
	found := map[string]bool{}
	for _, v := range variants {
		found[v] = true
	}
	require.True(t, found["identity ratification"])
	require.True(t, found["identity_ratify"])
}

func TestRetriever_SeedsFromConceptsAndKeywords(t *testing.T) {
	ctx := context.Background()
	log, err := eventlog.Open(ctx)
	require.NoError(t, err)

	cg := projections.NewConceptGraph()
	log.RegisterListener(cg.Sync)

	_, err = log.Append(ctx, eventlog.KindConceptDefine, `{"token":"identity.continuity"}`, nil)
	require.NoError(t, err)

	msgID, err := log.Append(ctx, eventlog.KindUserMessage, "tell me about identity continuity over time", nil)
	require.NoError(t, err)

	payload := `{"token":"identity.continuity"}`
	_, err = log.Append(ctx, eventlog.KindConceptBindEvent, payload, map[string]interface{}{"user_event_id": msgID})
	require.NoError(t, err)

	retriever := NewRetriever(log, cg, config.RetrievalConfig{Limit: 10})
	result := retriever.Retrieve("identity continuity", nil)

	require.Contains(t, result.ConceptTokens, "identity.continuity")
	require.Contains(t, result.EventIDs, msgID)
	require.NotEmpty(t, result.Rationale[msgID])
}

func TestRetriever_RespectsLimit(t *testing.T) {
	ctx := context.Background()
	log, err := eventlog.Open(ctx)
	require.NoError(t, err)
	cg := projections.NewConceptGraph()
	log.RegisterListener(cg.Sync)

	for i := 0; i < 5; i++ {
		_, err := log.Append(ctx, eventlog.KindUserMessage, "repeated keyword token", nil)
		require.NoError(t, err)
	}

	retriever := NewRetriever(log, cg, config.RetrievalConfig{Limit: 2})
	result := retriever.Retrieve("repeated keyword token", nil)
	require.LessOrEqual(t, len(result.EventIDs), 2)
}
