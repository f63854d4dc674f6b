// Package config loads Argus's runtime configuration from environment
// variables, an optional .env file, and an optional config file, using a
// nested-struct + viper + godotenv pattern.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all of Argus's runtime configuration.
type Config struct {
	Store      Store      `mapstructure:"store"`
	VectorStore VectorStore `mapstructure:"vector_store"`
	LLM        LLM        `mapstructure:"llm"`
	Similarity Similarity `mapstructure:"similarity"`
	Entity     Entity     `mapstructure:"entity"`
	Alias      Alias      `mapstructure:"alias"`
	Clustering Clustering `mapstructure:"clustering"`
	Queue      Queue      `mapstructure:"queue"`
	Decision   Decision   `mapstructure:"decision"`
	Logging    Logging    `mapstructure:"logging"`
}

// Store holds Persistent Store connection settings (component A).
type Store struct {
	DSN            string `mapstructure:"dsn"`
	MaxConnections int    `mapstructure:"max_connections"`
	IdleConnections int   `mapstructure:"idle_connections"`
}

// VectorStore holds Vector Store Adapter settings (component B).
type VectorStore struct {
	Endpoint   string `mapstructure:"endpoint"`
	Dimensions int    `mapstructure:"dimensions"`
}

// LLMPool configures one role's pool of LLM endpoints (decision vs.
// analysis).
type LLMPool struct {
	Model       string  `mapstructure:"model"`
	Endpoint    string  `mapstructure:"endpoint"`
	APIKey      string  `mapstructure:"api_key"`
	Temperature float32 `mapstructure:"temperature"`
}

// LLM holds the LLM Client's settings (component J).
type LLM struct {
	Decision       LLMPool       `mapstructure:"decision"`
	Analysis       LLMPool       `mapstructure:"analysis"`
	ReasoningMode  bool          `mapstructure:"reasoning_mode"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	BaseBackoff    time.Duration `mapstructure:"base_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// Similarity holds the Similarity Engine's weights and threshold (component F).
type Similarity struct {
	Theta         float64            `mapstructure:"theta"`
	Wv            float64            `mapstructure:"wv"`
	We            float64            `mapstructure:"we"`
	Wt            float64            `mapstructure:"wt"`
	EntityWeights map[string]float64 `mapstructure:"entity_weights"`
	WeightsVersion int               `mapstructure:"weights_version"`
	CandidateTopK int                `mapstructure:"candidate_top_k"`
	WindowDaysBefore int             `mapstructure:"window_days_before"`
	WindowDaysAfter  int             `mapstructure:"window_days_after"`
}

// FuzzyThreshold is a (Jaro-Winkler, Levenshtein) pair for one entity type.
type FuzzyThreshold struct {
	JaroWinkler float64 `mapstructure:"jaro_winkler"`
	Levenshtein int     `mapstructure:"levenshtein"`
}

// Entity holds the Entity Normalizer's type-specific thresholds (component C).
type Entity struct {
	Thresholds map[string]FuzzyThreshold `mapstructure:"thresholds"`
}

// Alias holds the Alias Repository's cache settings (component D).
type Alias struct {
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	CacheCapacity int           `mapstructure:"cache_capacity"`
}

// Clustering holds the Clustering Engine's thresholds and weights (component G).
type Clustering struct {
	AssignThreshold         float64 `mapstructure:"assign_threshold"`
	MergeJaccardThreshold   float64 `mapstructure:"merge_jaccard_threshold"`
	MergeSummaryCosineThreshold float64 `mapstructure:"merge_summary_cosine_threshold"`
	ImportanceW1            float64 `mapstructure:"importance_w1"`
	ImportanceW2            float64 `mapstructure:"importance_w2"`
	ImportanceW3            float64 `mapstructure:"importance_w3"`
	WeightsVersion          int     `mapstructure:"weights_version"`
	AllowSecondaryMappings  bool    `mapstructure:"allow_secondary_mappings"`
	MaxPrimaryEntities      int     `mapstructure:"max_primary_entities"`
	SummaryStalenessWindow  time.Duration `mapstructure:"summary_staleness_window"`
}

// Queue holds Decision/Analysis Worker scheduling settings.
type Queue struct {
	Lease           time.Duration `mapstructure:"lease"`
	IdleThreshold   time.Duration `mapstructure:"idle_threshold"`
	FallbackDuration time.Duration `mapstructure:"fallback_duration"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	PollJitter      time.Duration `mapstructure:"poll_jitter"`
	RejectOlderThan time.Duration `mapstructure:"reject_older_than"`
}

// Decision holds the Decision Worker's configured topic list (component H):
// a non-life-safety article is checked against each of these in random
// order, and the first match routes it to the TOPIC queue.
type Decision struct {
	Topics []string `mapstructure:"topics"`
}

// Logging configures Argus's ambient slog setup.
type Logging struct {
	Level string `mapstructure:"level"`
}

var globalConfig *Config

// Load reads configuration from built-in defaults, an optional YAML config
// file, and ARGUS_-prefixed environment variables: an environment variable
// overrides the config file, which overrides the defaults. An optional .env
// file only sets variables not already present in the environment.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("warning: error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".argus")
		viper.SetConfigType("yaml")
	}

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("argus")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

// Get returns the global configuration, loading it with defaults if needed.
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("failed to load configuration: %v", err))
		}
		return cfg
	}
	return globalConfig
}

// Reset clears the cached global configuration; used by tests.
func Reset() {
	globalConfig = nil
	viper.Reset()
}

func setDefaults() {
	viper.SetDefault("store.dsn", "postgres://localhost:5432/argus?sslmode=disable")
	viper.SetDefault("store.max_connections", 25)
	viper.SetDefault("store.idle_connections", 5)

	viper.SetDefault("vector_store.dimensions", 768)

	viper.SetDefault("llm.decision.model", "gemini-flash-lite-latest")
	viper.SetDefault("llm.analysis.model", "gemini-flash-lite-latest")
	viper.SetDefault("llm.reasoning_mode", false)
	viper.SetDefault("llm.request_timeout", 30*time.Second)
	viper.SetDefault("llm.max_retries", 2)
	viper.SetDefault("llm.base_backoff", 500*time.Millisecond)
	viper.SetDefault("llm.max_backoff", 8*time.Second)

	// Similarity Engine weights and threshold.
	viper.SetDefault("similarity.theta", 0.70)
	viper.SetDefault("similarity.wv", 0.60)
	viper.SetDefault("similarity.we", 0.30)
	viper.SetDefault("similarity.wt", 0.10)
	viper.SetDefault("similarity.entity_weights", map[string]interface{}{
		"PERSON": 0.35, "ORGANIZATION": 0.30, "LOCATION": 0.20, "EVENT": 0.15,
	})
	viper.SetDefault("similarity.weights_version", 1)
	viper.SetDefault("similarity.candidate_top_k", 50)
	viper.SetDefault("similarity.window_days_before", 14)
	viper.SetDefault("similarity.window_days_after", 1)

	viper.SetDefault("entity.thresholds", map[string]interface{}{
		"PERSON":       map[string]interface{}{"jaro_winkler": 0.90, "levenshtein": 2},
		"ORGANIZATION": map[string]interface{}{"jaro_winkler": 0.85, "levenshtein": 3},
		"LOCATION":     map[string]interface{}{"jaro_winkler": 0.85, "levenshtein": 3},
		"PRODUCT":      map[string]interface{}{"jaro_winkler": 0.80, "levenshtein": 3},
	})

	viper.SetDefault("alias.cache_ttl", 10*time.Minute)
	viper.SetDefault("alias.cache_capacity", 10000)

	viper.SetDefault("clustering.assign_threshold", 0.70)
	viper.SetDefault("clustering.merge_jaccard_threshold", 0.6)
	viper.SetDefault("clustering.merge_summary_cosine_threshold", 0.7)
	viper.SetDefault("clustering.importance_w1", 0.5)
	viper.SetDefault("clustering.importance_w2", 0.3)
	viper.SetDefault("clustering.importance_w3", 0.2)
	viper.SetDefault("clustering.weights_version", 1)
	viper.SetDefault("clustering.allow_secondary_mappings", false)
	viper.SetDefault("clustering.max_primary_entities", 16)
	viper.SetDefault("clustering.summary_staleness_window", 24*time.Hour)

	viper.SetDefault("queue.lease", 10*time.Minute)
	viper.SetDefault("queue.idle_threshold", 60*time.Second)
	viper.SetDefault("queue.fallback_duration", 5*time.Minute)
	viper.SetDefault("queue.max_attempts", 5)
	viper.SetDefault("queue.poll_interval", 2*time.Second)
	viper.SetDefault("queue.poll_jitter", 500*time.Millisecond)
	viper.SetDefault("queue.reject_older_than", 30*24*time.Hour)

	viper.SetDefault("decision.topics", []string{"politics", "technology", "business", "science", "sports"})

	viper.SetDefault("logging.level", "info")
}

func validate(cfg *Config) error {
	if cfg.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required")
	}
	sum := cfg.Similarity.Wv + cfg.Similarity.We + cfg.Similarity.Wt
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("similarity weights Wv+We+Wt must sum to 1.0, got %f", sum)
	}
	return nil
}
