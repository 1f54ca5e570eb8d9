// Package config loads the runtime configuration aggregate: retrieval,
// policy, supervisor timing, and the staleness/auto-close/snapshot
// thresholds that are named inline throughout the design notes but
// surfaced here as a single struct, per Open Question (c).
package config

import (
	"fmt"
	"time"
)

// RetrievalConfig controls the retrieval pipeline's default strategy,
// mirrored by a `config` event of type "retrieval" once the ledger has one.
type RetrievalConfig struct {
	Strategy string `yaml:"strategy"`
	Limit    int    `yaml:"limit"`
	Model    string `yaml:"model,omitempty"`
	Dims     int    `yaml:"dims,omitempty"`
}

// PolicyConfig holds the default forbid_sources map applied before any
// policy `config` event has been appended to the ledger.
type PolicyConfig struct {
	ForbidSources map[string][]string `yaml:"forbid_sources,omitempty"`
}

// SupervisorConfig parameterizes the slot-based autonomy scheduler.
type SupervisorConfig struct {
	Epoch             string  `yaml:"epoch"`
	IntervalS         int     `yaml:"interval_s"`
	MinIntervalS      int     `yaml:"min_interval_s"`
	MaxIntervalS      int     `yaml:"max_interval_s"`
	AdaptiveMinEvents int     `yaml:"adaptive_min_events"`
	FastFactor        float64 `yaml:"fast_factor"`
	SlowFactor        float64 `yaml:"slow_factor"`
	PredictabilityHi  float64 `yaml:"predictability_high"`
	EntropyHi         float64 `yaml:"entropy_high"`
	SeedLimit         int     `yaml:"seed_limit"`

	parsedEpoch time.Time
}

// ParsedEpoch returns the validated epoch time. Config.Validate must run first.
func (s SupervisorConfig) ParsedEpoch() time.Time { return s.parsedEpoch }

// ThresholdsConfig collects the inline thresholds the design notes name but
// never group: staleness, auto-close, snapshot interval, summary interval,
// and the kernel's stale-commitment and anomaly counts. HysteresisBand and
// the Ontology*Rel fields are loaded and defaulted but no component reads
// them: topology alert hysteresis and ontology insight detection use their
// own built-in values.
type ThresholdsConfig struct {
	CommitmentStalenessS  int     `yaml:"commitment_staleness_s"`
	CommitmentAutoCloseS  int     `yaml:"commitment_auto_close_s"`
	SnapshotInterval      int     `yaml:"snapshot_interval"`
	SummaryEventInterval  int     `yaml:"summary_event_interval"`
	StaleCommitmentCount  int     `yaml:"stale_commitment_count"`
	AnomalyCountThreshold int     `yaml:"anomaly_count_threshold"`
	HysteresisBand        float64 `yaml:"hysteresis_band"`
	OntologyImproveRel    float64 `yaml:"ontology_improve_relative"`
	OntologyDeclineRel    float64 `yaml:"ontology_decline_relative"`
	OntologyAbandonRel    float64 `yaml:"ontology_abandon_relative"`
}

// AdapterConfig parameterizes the model adapter's own retry policy. The
// adapter, not the runtime loop, owns retrying a transient AdapterFailure.
type AdapterConfig struct {
	RetryMaxAttempts int    `yaml:"retry_max_attempts"`
	RetryBaseDelayMs int    `yaml:"retry_base_delay_ms"`
	Provider         string `yaml:"provider"`
	Model            string `yaml:"model"`
	APIKeyEnv        string `yaml:"api_key_env"`
	MaxTokens        int    `yaml:"max_tokens"`
}

// TopologyConfig names the identity concept tokens that structural
// identity analysis treats as the self-model's anchor set. The
// warn/critical alert bands are not part of it; they come from
// topology.Thresholds.
type TopologyConfig struct {
	IdentityTokens []string `yaml:"identity_tokens"`
}

// defaultIdentityTokensV1 is the canonical identity-concept token list:
// explicit and versioned rather than heuristically derived, so structural
// identity analysis stays deterministic across runs.
var defaultIdentityTokensV1 = []string{
	"identity.continuity",
	"identity.coherence",
	"identity.stability",
	"identity.ledger_bound_self",
	"identity.formation",
	"identity.evolution",
	"identity.fragmentation",
	"identity.emergence",
	"identity.chain",
	"identity.anchor",
	"identity.gap",
	"identity.nexus",
	"identity.awareness",
	"identity.model",
	"identity.ontology",
	"identity.validation",
	"identity.user_interaction",
	"identity.graph_binding",
	"identity.temporal_binding",
	"identity.evidence_binding",
}

// WebSearchConfig selects the WEB: marker's backing provider. The API key
// itself is resolved from an environment variable, never stored here.
type WebSearchConfig struct {
	Provider   string        `yaml:"provider"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	CacheTTL   time.Duration `yaml:"cache_ttl"`
	DefaultCap int           `yaml:"default_limit"`
}

// Config is the single aggregate every component depends on.
type Config struct {
	configDir  string
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Policy     PolicyConfig     `yaml:"policy"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Adapter    AdapterConfig    `yaml:"adapter"`
	WebSearch  WebSearchConfig  `yaml:"web_search"`
	Topology   TopologyConfig   `yaml:"topology"`
}

// ConfigDir returns the directory the config was loaded from, if any.
func (c *Config) ConfigDir() string { return c.configDir }

// Default returns the built-in configuration applied before any YAML file
// or user-defined config event overrides it.
func Default() *Config {
	return &Config{
		Retrieval: RetrievalConfig{
			Strategy: "hybrid",
			Limit:    20,
		},
		Supervisor: SupervisorConfig{
			IntervalS:         30,
			MinIntervalS:      10,
			MaxIntervalS:      300,
			AdaptiveMinEvents: 20,
			FastFactor:        0.8,
			SlowFactor:        1.3,
			PredictabilityHi:  0.7,
			EntropyHi:         2.0,
			SeedLimit:         2000,
		},
		Thresholds: ThresholdsConfig{
			CommitmentStalenessS:  7 * 24 * 3600,
			CommitmentAutoCloseS:  30 * 24 * 3600,
			SnapshotInterval:      50,
			SummaryEventInterval:  50,
			StaleCommitmentCount:  3,
			AnomalyCountThreshold: 3,
			HysteresisBand:        0.25,
			OntologyImproveRel:    0.20,
			OntologyDeclineRel:    0.20,
			OntologyAbandonRel:    0.30,
		},
		Adapter: AdapterConfig{
			RetryMaxAttempts: 3,
			RetryBaseDelayMs: 500,
			Provider:         "anthropic",
			Model:            "claude-sonnet-4-5",
			APIKeyEnv:        "PMM_ANTHROPIC_API_KEY",
			MaxTokens:        1024,
		},
		WebSearch: WebSearchConfig{
			Provider:   "brave",
			APIKeyEnv:  "PMM_BRAVE_API_KEY",
			CacheTTL:   1 * time.Minute,
			DefaultCap: 5,
		},
		Topology: TopologyConfig{
			IdentityTokens: append([]string(nil), defaultIdentityTokensV1...),
		},
	}
}

// Validate checks field invariants and resolves the epoch timestamp. A
// non-parseable epoch is a hard failure, per the supervisor configuration
// invariant.
func (c *Config) Validate() error {
	if c.Supervisor.Epoch != "" {
		t, err := time.Parse(time.RFC3339, c.Supervisor.Epoch)
		if err != nil {
			return NewValidationError("supervisor", "epoch", "epoch", fmt.Errorf("%w: %v", ErrInvalidValue, err))
		}
		c.Supervisor.parsedEpoch = t
	}
	if c.Supervisor.IntervalS < 1 {
		return NewValidationError("supervisor", "interval_s", "interval_s", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if c.Retrieval.Limit <= 0 {
		return NewValidationError("retrieval", "default", "limit", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	if c.Thresholds.SnapshotInterval <= 0 {
		return NewValidationError("thresholds", "default", "snapshot_interval", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	return nil
}
