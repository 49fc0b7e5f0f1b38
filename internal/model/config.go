package model

import "time"

// Config is the central engine configuration. Every tunable that drives a
// compliance-facing decision lives here, not in scattered env lookups, so
// tests can toggle behavior per scenario.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Flags     FeatureFlags    `yaml:"flags"`
	Mapping   MappingConfig   `yaml:"mapping"`
	Trust     TrustConfig     `yaml:"trust"`
	Gap       GapConfig       `yaml:"gap"`
	Crosswalk CrosswalkConfig `yaml:"crosswalk"`
	Citation  CitationConfig  `yaml:"citation"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Cache     CacheConfig     `yaml:"cache"`
	Limits    LimitsConfig    `yaml:"limits"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Output    OutputConfig    `yaml:"output"`
}

// FeatureFlags gates each operation. A disabled operation returns a
// "not enabled" signal instead of executing.
type FeatureFlags struct {
	GraphIngest      bool `yaml:"graph_ingest"`
	GraphQuery       bool `yaml:"graph_query"`
	Map              bool `yaml:"map"`
	TrustScore       bool `yaml:"trust_score"`
	Coverage         bool `yaml:"coverage"`
	CrosswalkBuild   bool `yaml:"crosswalk_build"`
	CitationValidate bool `yaml:"citation_validate"`
}

// StoreConfig locates the durable store
type StoreConfig struct {
	Path string `yaml:"path"` // SQLite file path, or ":memory:" for tests
}

// MappingConfig tunes the EvidenceMapper
type MappingConfig struct {
	TopK          int     `yaml:"top_k"`
	Threshold     float64 `yaml:"threshold"`       // Inclusive: score >= threshold survives
	ChunkRunes    int     `yaml:"chunk_runes"`     // Target chunk size
	MaxChunkRunes int     `yaml:"max_chunk_runes"` // Hard split point
}

// TrustConfig tunes the deterministic trust scorer
type TrustConfig struct {
	FreshnessHalfLifeDays  int     `yaml:"freshness_half_life_days"`
	CitationCapPerKiloRune float64 `yaml:"citation_cap_per_kilo_rune"`
	WeightFreshness        float64 `yaml:"weight_freshness"`
	WeightAuthenticity     float64 `yaml:"weight_authenticity"`
	WeightRedundancy       float64 `yaml:"weight_redundancy"`
	WeightCitations        float64 `yaml:"weight_citations"`
}

// GapConfig tunes the GapRisk predictor
type GapConfig struct {
	CrosswalkCredit    float64 `yaml:"crosswalk_credit"`     // Partial coverage via crosswalk
	RecencyWindowDays  int     `yaml:"recency_window_days"`  // Links older than this count as stale
	MinLinkConfidence  float64 `yaml:"min_link_confidence"`  // Links below this do not count as direct coverage
	WeightContribution float64 `yaml:"weight_contribution"`
	WeightRecency      float64 `yaml:"weight_recency"`
	WeightCrosswalk    float64 `yaml:"weight_crosswalk"`
}

// CrosswalkConfig tunes CrosswalkX
type CrosswalkConfig struct {
	MinOverlap    float64 `yaml:"min_overlap"`    // Jaccard floor for the deterministic filter
	LowConfidence float64 `yaml:"low_confidence"` // Edges below this are re-evaluated by refine
	PairBlockSize int     `yaml:"pair_block_size"`
	Workers       int     `yaml:"workers"`
}

// CitationConfig tunes CiteGuard
type CitationConfig struct {
	AsyncRuneThreshold int    `yaml:"async_rune_threshold"` // Larger documents validate in background
	ResolveURLs        bool   `yaml:"resolve_urls"`         // HEAD-check URL references
	ModelCheck         bool   `yaml:"model_check"`          // Advisory model-based detector
	UserAgent          string `yaml:"user_agent"`
}

// EmbeddingConfig configures the external embedding capability
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // "openai" or "" (disabled)
	Model      string `yaml:"model"`
	APIKey     string `yaml:"-"`
	BaseURL    string `yaml:"base_url,omitempty"`
	Dimensions int    `yaml:"dimensions"`
	Timeout    int    `yaml:"timeout"` // Seconds per batch call
	BatchSize  int    `yaml:"batch_size"`
}

// LLMConfig configures the structured text-generation capability
type LLMConfig struct {
	Provider  string `yaml:"provider"` // openai, anthropic, ollama, "" (disabled)
	Model     string `yaml:"model"`
	APIKey    string `yaml:"-"`
	BaseURL   string `yaml:"base_url,omitempty"`
	Timeout   int    `yaml:"timeout"` // Seconds per call
	MaxTokens int    `yaml:"max_tokens"`
}

// CacheConfig configures the embedding cache layers
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Dir       string        `yaml:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl"`
}

// LimitsConfig bounds request-scoped work
type LimitsConfig struct {
	MapPerMinute int `yaml:"map_per_minute"` // Per-account Map ceiling
	MapBurst     int `yaml:"map_burst"`
}

// SchedulerConfig drives the nightly background jobs
type SchedulerConfig struct {
	Enabled     bool   `yaml:"enabled"`
	NightlySpec string `yaml:"nightly_spec"` // cron spec for trust/gap recompute
	ReindexSpec string `yaml:"reindex_spec"` // cron spec for queued-artifact retries
}

// OutputConfig controls CLI rendering
type OutputConfig struct {
	Verbose bool   `yaml:"verbose"`
	LogMode string `yaml:"log_mode"` // "dev" or "prod"
}

// DefaultConfig returns sensible defaults. Weights are starting points,
// not calibrated domain constants; validate against labeled data before
// trusting them in production.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{Path: "veridex.db"},
		Flags: FeatureFlags{
			GraphIngest:      true,
			GraphQuery:       true,
			Map:              true,
			TrustScore:       true,
			Coverage:         true,
			CrosswalkBuild:   true,
			CitationValidate: true,
		},
		Mapping: MappingConfig{
			TopK:          8,
			Threshold:     0.62,
			ChunkRunes:    900,
			MaxChunkRunes: 1400,
		},
		Trust: TrustConfig{
			FreshnessHalfLifeDays:  365,
			CitationCapPerKiloRune: 4,
			WeightFreshness:        0.25,
			WeightAuthenticity:     0.25,
			WeightRedundancy:       0.25,
			WeightCitations:        0.25,
		},
		Gap: GapConfig{
			CrosswalkCredit:    0.5,
			RecencyWindowDays:  540,
			MinLinkConfidence:  0.5,
			WeightContribution: 0.6,
			WeightRecency:      0.2,
			WeightCrosswalk:    0.2,
		},
		Crosswalk: CrosswalkConfig{
			MinOverlap:    0.18,
			LowConfidence: 0.55,
			PairBlockSize: 12,
			Workers:       4,
		},
		Citation: CitationConfig{
			AsyncRuneThreshold: 200_000,
			ResolveURLs:        false,
			ModelCheck:         false,
			UserAgent:          "Veridex/0.1 (+https://github.com/veridexhq/veridex)",
		},
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			Timeout:    20,
			BatchSize:  64,
		},
		LLM: LLMConfig{
			Provider:  "", // Disabled by default; deterministic paths never need it
			Timeout:   30,
			MaxTokens: 800,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "",
			MemoryTTL: 6 * time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Limits: LimitsConfig{
			MapPerMinute: 30,
			MapBurst:     5,
		},
		Scheduler: SchedulerConfig{
			Enabled:     false,
			NightlySpec: "0 3 * * *",
			ReindexSpec: "*/15 * * * *",
		},
		Output: OutputConfig{LogMode: "dev"},
	}
}
