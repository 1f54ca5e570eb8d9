package eventlog

// Kind is one member of the closed event-kind enumeration. Appending any
// string outside this set is a hard error.
type Kind string

const (
	KindUserMessage          Kind = "user_message"
	KindAssistantMessage     Kind = "assistant_message"
	KindReflection           Kind = "reflection"
	KindIdentityAdoption     Kind = "identity_adoption"
	KindMetaSummary          Kind = "meta_summary"
	KindMetricsTurn          Kind = "metrics_turn"
	KindMetricCheck          Kind = "metric_check"
	KindCommitmentOpen       Kind = "commitment_open"
	KindCommitmentClose      Kind = "commitment_close"
	KindClaim                Kind = "claim"
	KindAutonomyRuleTable    Kind = "autonomy_rule_table"
	KindAutonomyTick         Kind = "autonomy_tick"
	KindAutonomyStimulus     Kind = "autonomy_stimulus"
	KindAutonomyKernel       Kind = "autonomy_kernel"
	KindSummaryUpdate        Kind = "summary_update"
	KindInterLedgerRef       Kind = "inter_ledger_ref"
	KindConfig               Kind = "config"
	KindFiller               Kind = "filler"
	KindTestEvent            Kind = "test_event"
	KindMetricsUpdate        Kind = "metrics_update"
	KindAutonomyMetrics      Kind = "autonomy_metrics"
	KindInternalGoalCreated  Kind = "internal_goal_created"
	KindRetrievalSelection   Kind = "retrieval_selection"
	KindCheckpointManifest   Kind = "checkpoint_manifest"
	KindEmbeddingAdd         Kind = "embedding_add"
	KindLifetimeMemory       Kind = "lifetime_memory"
	KindWebSearch            Kind = "web_search"
	KindLedgerRead           Kind = "ledger_read"
	KindLedgerSearch         Kind = "ledger_search"
	KindStabilityMetrics     Kind = "stability_metrics"
	KindCoherenceCheck       Kind = "coherence_check"
	KindOutcomeObservation   Kind = "outcome_observation"
	KindPolicyUpdate         Kind = "policy_update"
	KindMetaPolicyUpdate     Kind = "meta_policy_update"
	KindConceptDefine        Kind = "concept_define"
	KindConceptAlias         Kind = "concept_alias"
	KindConceptBindEvent     Kind = "concept_bind_event"
	KindConceptRelate        Kind = "concept_relate"
	KindConceptStateSnapshot Kind = "concept_state_snapshot"
	KindConceptBindThread    Kind = "concept_bind_thread"
	KindClaimFromText        Kind = "claim_from_text"
	KindConceptBindAsync     Kind = "concept_bind_async"
	KindOntologySnapshot     Kind = "ontology_snapshot"
	KindOntologyInsight      Kind = "ontology_insight"
	KindCommitmentAnalysis   Kind = "commitment_analysis"
	KindViolation            Kind = "violation"
)

var validKinds = map[Kind]struct{}{
	KindUserMessage: {}, KindAssistantMessage: {}, KindReflection: {},
	KindIdentityAdoption: {}, KindMetaSummary: {}, KindMetricsTurn: {},
	KindMetricCheck: {}, KindCommitmentOpen: {}, KindCommitmentClose: {},
	KindClaim: {}, KindAutonomyRuleTable: {}, KindAutonomyTick: {},
	KindAutonomyStimulus: {}, KindAutonomyKernel: {}, KindSummaryUpdate: {},
	KindInterLedgerRef: {}, KindConfig: {}, KindFiller: {}, KindTestEvent: {},
	KindMetricsUpdate: {}, KindAutonomyMetrics: {}, KindInternalGoalCreated: {},
	KindRetrievalSelection: {}, KindCheckpointManifest: {}, KindEmbeddingAdd: {},
	KindLifetimeMemory: {}, KindWebSearch: {}, KindLedgerRead: {}, KindLedgerSearch: {},
	KindStabilityMetrics: {}, KindCoherenceCheck: {}, KindOutcomeObservation: {},
	KindPolicyUpdate: {}, KindMetaPolicyUpdate: {}, KindConceptDefine: {},
	KindConceptAlias: {}, KindConceptBindEvent: {}, KindConceptRelate: {},
	KindConceptStateSnapshot: {}, KindConceptBindThread: {}, KindClaimFromText: {},
	KindConceptBindAsync: {}, KindOntologySnapshot: {}, KindOntologyInsight: {},
	KindCommitmentAnalysis: {}, KindViolation: {},
}

// IsValidKind reports whether k belongs to the closed kind enumeration.
func IsValidKind(k Kind) bool {
	_, ok := validKinds[k]
	return ok
}

// sensitiveKinds requires a policy check before insertion.
var sensitiveKinds = map[Kind]struct{}{
	KindConfig:             {},
	KindCheckpointManifest: {},
	KindEmbeddingAdd:       {},
	KindRetrievalSelection: {},
}

func isSensitiveKind(k Kind) bool {
	_, ok := sensitiveKinds[k]
	return ok
}
