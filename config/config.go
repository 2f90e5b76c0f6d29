package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the question answering service
type Config struct {
	General      GeneralConfig      `mapstructure:"general"`
	Server       ServerConfig       `mapstructure:"server"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Embedding    EmbeddingConfig    `mapstructure:"embedding"`
	Reranker     RerankerConfig     `mapstructure:"reranker"`
	Retrieval    RetrievalConfig    `mapstructure:"retrieval"`
	Verification VerificationConfig `mapstructure:"verification"`
	Router       RouterConfig       `mapstructure:"router"`
	Indexing     IndexingConfig     `mapstructure:"indexing"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig contains LLM provider configurations
type LLMConfig struct {
	Providers map[string]LLMProvider `mapstructure:"providers"`
	Routing   LLMRoutingConfig       `mapstructure:"routing"`
}

// LLMProvider represents a single LLM provider configuration
type LLMProvider struct {
	Type       string              `mapstructure:"type"` // openai, compatible local gateway, etc.
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Models     map[string]LLMModel `mapstructure:"models"`
	MaxRetries int                 `mapstructure:"max_retries"`
	Timeout    time.Duration       `mapstructure:"timeout"`
}

// LLMModel represents a specific model configuration
type LLMModel struct {
	Name            string  `mapstructure:"name"`
	APIName         string  `mapstructure:"api_name"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature"`
	CostPer1K       float64 `mapstructure:"cost_per_1k_input"`
	CostPer1KOutput float64 `mapstructure:"cost_per_1k_output"`
}

// LLMRoutingConfig defines which model to use for different tasks
type LLMRoutingConfig struct {
	Answering   string `mapstructure:"answering"`   // RAG answer generation
	Summarizing string `mapstructure:"summarizing"` // SQL result to natural language
	SQLGen      string `mapstructure:"sqlgen"`      // natural language to SQL
	Fallback    string `mapstructure:"fallback"`    // fallback model
}

// EmbeddingConfig contains embedding service settings
type EmbeddingConfig struct {
	Model     string        `mapstructure:"model"`
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Dimension int           `mapstructure:"dimension"`
	BatchSize int           `mapstructure:"batch_size"`
	CacheSize int           `mapstructure:"cache_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// RerankerConfig contains cross-encoder reranker settings
type RerankerConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RetrievalConfig toggles and tunes the hybrid retrieval stages
type RetrievalConfig struct {
	EnableDense           bool     `mapstructure:"enable_dense"`
	EnableRerank          bool     `mapstructure:"enable_rerank"`
	EnableLexicalFallback bool     `mapstructure:"enable_lexical_fallback"`
	Namespaces            []string `mapstructure:"namespaces"`
	TabularNamespace      string   `mapstructure:"tabular_namespace"`
	NamespaceTopK         int      `mapstructure:"namespace_top_k"`
	TopK                  int      `mapstructure:"top_k"`
	MinCandidates         int      `mapstructure:"min_candidates"`
	MaxContextTokens      int      `mapstructure:"max_context_tokens"`
	StrongBoost           float64  `mapstructure:"strong_boost"`
	DefaultBoost          float64  `mapstructure:"default_boost"`
	RerankThreshold       float64  `mapstructure:"rerank_threshold"`
	TokenCounter          string   `mapstructure:"token_counter"` // whitespace or tiktoken
}

// VerificationConfig carries the guardrail acceptance policy. The defaults are
// deliberately permissive; stricter callers raise them per deployment.
type VerificationConfig struct {
	MinConfidence        float64 `mapstructure:"min_confidence"`
	MinFactCheck         float64 `mapstructure:"min_fact_check"`
	MaxHallucinationRisk float64 `mapstructure:"max_hallucination_risk"`
	OverlapThreshold     float64 `mapstructure:"overlap_threshold"`
	RerankThreshold      float64 `mapstructure:"rerank_threshold"`
	MinClaimLength       int     `mapstructure:"min_claim_length"`
	RefusalMessage       string  `mapstructure:"refusal_message"`
}

// RouterConfig contains the path switcher settings
type RouterConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	WeightsFile         string  `mapstructure:"weights_file"`
	MaxSQLAttempts      int     `mapstructure:"max_sql_attempts"`
}

// IndexingConfig contains ingestion job settings
type IndexingConfig struct {
	CorpusFile     string `mapstructure:"corpus_file"`
	ReindexCron    string `mapstructure:"reindex_cron"`
	EmbedBatchSize int    `mapstructure:"embed_batch_size"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains PostgreSQL settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DSN builds a postgres connection string from the configured fields.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	host := p.Host
	port := p.Port
	ssl := p.SSLMode
	if host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	if port == "" {
		port = "5432"
	}
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, host, port, p.DBName, ssl), nil
}

// RedisConfig contains Redis settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	CostTracking bool `mapstructure:"cost_tracking"`
}

// LoadConfig reads the configuration from file and environment.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", "30s")
	viper.SetDefault("server.address", ":10080")
	viper.SetDefault("embedding.batch_size", 32)
	viper.SetDefault("embedding.cache_size", 2048)
	viper.SetDefault("retrieval.enable_dense", true)
	viper.SetDefault("retrieval.enable_rerank", true)
	viper.SetDefault("retrieval.enable_lexical_fallback", true)
	viper.SetDefault("retrieval.namespaces", []string{"courses", "documents", "regulations"})
	viper.SetDefault("retrieval.tabular_namespace", "courses")
	viper.SetDefault("retrieval.namespace_top_k", 10)
	viper.SetDefault("retrieval.top_k", 10)
	viper.SetDefault("retrieval.min_candidates", 3)
	viper.SetDefault("retrieval.max_context_tokens", 4000)
	viper.SetDefault("retrieval.strong_boost", 1.4)
	viper.SetDefault("retrieval.default_boost", 1.1)
	viper.SetDefault("retrieval.rerank_threshold", 0.2)
	viper.SetDefault("retrieval.token_counter", "whitespace")
	viper.SetDefault("verification.min_confidence", 0.2)
	viper.SetDefault("verification.min_fact_check", 0.1)
	viper.SetDefault("verification.max_hallucination_risk", 0.7)
	viper.SetDefault("verification.overlap_threshold", 0.3)
	viper.SetDefault("verification.rerank_threshold", 0.15)
	viper.SetDefault("verification.min_claim_length", 20)
	viper.SetDefault("verification.refusal_message",
		"I don't have enough reliable information in the knowledge base to answer that question.")
	viper.SetDefault("router.confidence_threshold", 0.7)
	viper.SetDefault("router.max_sql_attempts", 2)
	viper.SetDefault("indexing.embed_batch_size", 32)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("CAMPUSQA")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	return &config
}
