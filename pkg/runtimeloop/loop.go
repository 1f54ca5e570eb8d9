// Package runtimeloop orchestrates one turn end to end: ledger append,
// retrieval, the model-adapter call and its tool-marker round trips, marker
// extraction, reflection/summary/lifetime-memory, and ontology autonomy.
package runtimeloop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/adapter"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/analysis/commitment"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/analysis/ontology"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/config"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/projections"
)

const maxToolRounds = 3

// LedgerReader is the subset of EventLog reads the ledger-tool markers need.
type LedgerReader interface {
	Get(id int64) (eventlog.Event, bool)
	Exists(id int64) bool
}

// WebSearchProvider performs a web search for the WEB: marker. Left as an
// interface here since concrete providers are an external collaborator
// (HTTP key-gated lookups), per the retrieval pipeline's scope boundary.
type WebSearchProvider interface {
	Search(ctx context.Context, query string, limit int) (string, error)
}

// RuntimeLoop wires the ledger, its projections, the retrieval pipeline,
// the model adapter, and the autonomy/ontology machinery into one
// per-turn orchestrator.
type RuntimeLoop struct {
	Log        *eventlog.EventLog
	Mirror     *projections.Mirror
	MemeGraph  *projections.MemeGraph
	Concepts   *projections.ConceptGraph
	Commitments *projections.CommitmentManager
	Retriever  *Retriever
	Adapter    adapter.ModelAdapter
	WebSearch  WebSearchProvider

	CommitmentAnalyzer *commitment.Analyzer
	Ontology           *ontology.Autonomy

	Thresholds config.ThresholdsConfig
	Retrieval  config.RetrievalConfig

	clock func() time.Time
}

// NewRuntimeLoop wires a RuntimeLoop over an already-open ledger and
// registers Mirror/MemeGraph/Concepts/Commitments as ledger listeners, so
// they see every event appended from then on. Events already in the ledger
// are not replayed into them.
func NewRuntimeLoop(log *eventlog.EventLog, modelAdapter adapter.ModelAdapter, webSearch WebSearchProvider, cfg *config.Config) *RuntimeLoop {
	mirror := projections.NewMirror()
	memeGraph := projections.NewMemeGraph()
	concepts := projections.NewConceptGraph()
	commitments := projections.NewCommitmentManager(log)
	commitAnalyzer := commitment.New(log)

	log.RegisterListener(mirror.Sync)
	log.RegisterListener(memeGraph.Sync)
	log.RegisterListener(concepts.Sync)
	log.RegisterListener(commitments.Sync)

	return &RuntimeLoop{
		Log:                log,
		Mirror:             mirror,
		MemeGraph:          memeGraph,
		Concepts:           concepts,
		Commitments:        commitments,
		Retriever:          NewRetriever(log, concepts, cfg.Retrieval),
		Adapter:            modelAdapter,
		WebSearch:          webSearch,
		CommitmentAnalyzer: commitAnalyzer,
		Ontology:           ontology.New(log, commitAnalyzer, int64(cfg.Thresholds.SnapshotInterval)),
		Thresholds:         cfg.Thresholds,
		Retrieval:          cfg.Retrieval,
		clock:              time.Now,
	}
}

// TurnResult is what RunTurn hands back to the caller driving the
// interactive or scripted session.
type TurnResult struct {
	UserEventID      int64
	AssistantEventID int64
	Reply            string
	Delta            TurnDelta
}

// RunTurn executes the full turn sequence against a single piece of user
// input. Steps are numbered per the orchestration they implement.
func (r *RuntimeLoop) RunTurn(ctx context.Context, userText string) (TurnResult, error) {
	// 1. Append user_message (+ optional embedding_add).
	userID, err := r.Log.Append(ctx, eventlog.KindUserMessage, userText, map[string]interface{}{"role": "user"})
	if err != nil {
		return TurnResult{}, fmt.Errorf("append user_message: %w", err)
	}
	if r.Retrieval.Strategy == "vector" || r.Retrieval.Strategy == "hybrid" {
		if _, err := r.Log.Append(ctx, eventlog.KindEmbeddingAdd, userText, map[string]interface{}{"source": "user_message", "ref_event_id": userID}); err != nil {
			return TurnResult{}, fmt.Errorf("append embedding_add: %w", err)
		}
	}

	// 2. Build retrieval context and compose the system prompt.
	retrieval := r.Retriever.Retrieve(userText, nil)
	system := r.composeSystemPrompt(retrieval)

	// 3. Call the adapter, resolving tool markers in priority order.
	reply, meta, toolParseErrors, err := r.converse(ctx, system, userText)
	if err != nil {
		return TurnResult{}, fmt.Errorf("generate reply: %w", err)
	}

	// 4. Parse the optional JSON header; seed concepts.
	header, hasHeader := parseAssistantHeader(reply)
	var concepts []string
	if hasHeader {
		concepts = header.Concepts
	}
	total := currentEventID(r.Log)
	if len(concepts) == 0 {
		concepts = []string{"identity.continuity"}
	}
	if total > 20 && total%37 == 0 { // 5. active meditation turns
		concepts = append(concepts, "ontology.structure", "identity.evolution", "awareness.loop")
	}

	// 6. Append assistant_message.
	assistantMeta := map[string]interface{}{
		"provider":   meta.Provider,
		"model":      meta.Model,
		"latency_ms": meta.LatencyMs,
	}
	if hasHeader {
		payload, _ := json.Marshal(header)
		assistantMeta["assistant_payload"] = string(payload)
	}
	assistantID, err := r.Log.Append(ctx, eventlog.KindAssistantMessage, reply, assistantMeta)
	if err != nil {
		return TurnResult{}, fmt.Errorf("append assistant_message: %w", err)
	}

	// 7. Active indexing: bind each seed concept to the user/assistant ids.
	for _, token := range concepts {
		r.bindConceptIdempotent(ctx, token, userID, assistantID)
	}

	// 8. Structured concept-ops: none embedded by this adapter surface; no-op.

	// 9. REF: lines -> inter_ledger_ref, verified against an (absent) external log.
	for _, ref := range parseRefLines(reply) {
		r.appendInterLedgerRef(ctx, ref, assistantID)
	}

	// 10. metrics_turn diagnostic.
	wordCount := len(strings.Fields(reply))
	metricsPayload, _ := json.Marshal(map[string]interface{}{
		"provider":          meta.Provider,
		"model":             meta.Model,
		"latency_ms":        meta.LatencyMs,
		"word_count":        wordCount,
		"tool_parse_errors":  toolParseErrors,
	})
	if _, err := r.Log.Append(ctx, eventlog.KindMetricsTurn, string(metricsPayload), map[string]interface{}{"ref_event_id": assistantID}); err != nil {
		return TurnResult{}, fmt.Errorf("append metrics_turn: %w", err)
	}

	// 12. Extract COMMIT/CLAIM/CLOSE markers.
	delta, err := r.applyMarkers(ctx, reply, concepts)
	if err != nil {
		return TurnResult{}, fmt.Errorf("apply markers: %w", err)
	}

	// 13. Identity adoption from validated identity_* claims.
	r.adoptIdentityClaims(ctx, delta)

	// 11 + 14. Reflection (folds in staleness/auto-close scans).
	if reflectBlock, ok := parseReflectLine(reply); ok {
		delta.ReflectBlock = reflectBlock
	}
	if !delta.empty() {
		if _, err := synthesizeReflection(ctx, r.Log, r.CommitmentAnalyzer, assistantID, delta,
			r.Thresholds.CommitmentStalenessS, r.Thresholds.CommitmentAutoCloseS, "runtime_loop"); err != nil {
			return TurnResult{}, fmt.Errorf("synthesize reflection: %w", err)
		}
	}
	if _, err := maybeAppendSummary(ctx, r.Log, r.Thresholds.SummaryEventInterval); err != nil {
		return TurnResult{}, fmt.Errorf("maybe append summary: %w", err)
	}
	if _, err := maybeAppendLifetimeMemory(ctx, r.Log, r.CommitmentAnalyzer, r.Thresholds.SnapshotInterval*4); err != nil {
		return TurnResult{}, fmt.Errorf("maybe append lifetime memory: %w", err)
	}

	// 15. Ontology autonomy: possibly emit a snapshot and insights.
	if _, err := r.Ontology.MaybeEmitSnapshot(ctx); err != nil {
		return TurnResult{}, fmt.Errorf("ontology snapshot: %w", err)
	}
	if insights := r.Ontology.DetectInsights(); len(insights) > 0 {
		if err := r.Ontology.EmitInsights(ctx, insights); err != nil {
			return TurnResult{}, fmt.Errorf("ontology insights: %w", err)
		}
	}

	return TurnResult{UserEventID: userID, AssistantEventID: assistantID, Reply: reply, Delta: delta}, nil
}

func (r *RuntimeLoop) composeSystemPrompt(retrieval RetrievalResult) string {
	var b strings.Builder
	b.WriteString("## Context\n")
	for _, id := range retrieval.EventIDs {
		if e, ok := r.Log.Get(id); ok {
			fmt.Fprintf(&b, "- [%d] %s: %s\n", e.ID, e.Kind, e.Content)
		}
	}
	if len(retrieval.ConceptTokens) > 0 {
		b.WriteString("## Graph\n")
		for _, token := range retrieval.ConceptTokens {
			fmt.Fprintf(&b, "- %s\n", token)
		}
	}
	return b.String()
}

func (r *RuntimeLoop) bindConceptIdempotent(ctx context.Context, token string, userID, assistantID int64) {
	canon := r.Concepts.Canonicalize(token)
	for _, existing := range r.Concepts.EventsFor(canon) {
		if existing == assistantID {
			return
		}
	}
	payload, _ := json.Marshal(map[string]string{"token": token})
	r.Log.Append(ctx, eventlog.KindConceptBindEvent, string(payload), map[string]interface{}{
		"user_event_id":      userID,
		"assistant_event_id": assistantID,
	})
}

func (r *RuntimeLoop) appendInterLedgerRef(ctx context.Context, ref refMarker, assistantID int64) {
	payload, _ := json.Marshal(map[string]interface{}{"path": ref.Path, "id": ref.ID})
	// No external ledger is wired in-process; verification always reports
	// unverified rather than silently claiming a match.
	r.Log.Append(ctx, eventlog.KindInterLedgerRef, string(payload), map[string]interface{}{
		"verified":     false,
		"ref_event_id": assistantID,
	})
}
