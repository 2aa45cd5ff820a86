// Package config provides application-wide configuration loaded from env vars.
// All fields have safe defaults so the binary runs locally without any env setup.
// Components receive one immutable Config value at construction; nothing reads
// the environment after Load returns.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds runtime configuration for askdb.
type Config struct {
	// LLM
	LLMDriver        string  // ASKDB_LLM_DRIVER — "ollama" | "openai" | "anthropic", default: "ollama"
	OllamaBaseURL    string  // ASKDB_OLLAMA_BASE_URL — default: "http://localhost:11434"
	OllamaModel      string  // ASKDB_OLLAMA_MODEL — default: "llama3.1"
	OpenAIBaseURL    string  // ASKDB_OPENAI_BASE_URL — default: "https://api.openai.com/v1"
	OpenAIAPIKey     string  // ASKDB_OPENAI_API_KEY
	OpenAIModel      string  // ASKDB_OPENAI_MODEL — default: "gpt-4o"
	AnthropicBaseURL string  // ASKDB_ANTHROPIC_BASE_URL — default: "https://api.anthropic.com"
	AnthropicAPIKey  string  // ASKDB_ANTHROPIC_API_KEY
	AnthropicModel   string  // ASKDB_ANTHROPIC_MODEL — default: "claude-sonnet-4-5"
	Temperature      float64 // ASKDB_LLM_TEMPERATURE — default: 0
	RequestTimeoutS  int     // ASKDB_LLM_TIMEOUT — seconds, default: 300

	// Embeddings
	EmbedModel string // ASKDB_EMBED_MODEL — default: "nomic-embed-text"

	// Agent
	MaxIterations int // ASKDB_MAX_ITERATIONS — default: 10

	// SQL safety
	MaxRows           int      // ASKDB_MAX_ROWS — default: 1000
	AllowedStatements []string // ASKDB_ALLOWED_STATEMENTS — comma-separated, default: SELECT,WITH
	ForbiddenKeywords []string // ASKDB_FORBIDDEN_KEYWORDS — comma-separated

	// Learning
	LearningEnabled bool // ASKDB_LEARNING_ENABLED — default: true

	// Search
	SearchDriver    string   // ASKDB_SEARCH_DRIVER — "fulltext" | "vector" | "hybrid" | "null", default: "fulltext"
	DistanceMetric  string   // ASKDB_DISTANCE_METRIC — "cosine" | "l2" | "inner_product", default: "cosine"
	HybridMergeBoth bool     // ASKDB_HYBRID_MERGE_BOTH — consult fallback even when primary succeeds
	CustomIndexes   []string // ASKDB_CUSTOM_INDEXES — comma-separated extra retrieval indexes

	// Storage
	StorePath         string // ASKDB_STORE_PATH — knowledge store sqlite file, default: "askdb.db"
	DataPath          string // ASKDB_DATA_PATH — queried sqlite database file, default: "data.db"
	DataConnection    string // ASKDB_DATA_CONNECTION — default data connection name
	SemanticModelPath string // ASKDB_SEMANTIC_MODEL — optional curated YAML bootstrap file

	// HTTP
	HTTPHost      string // ASKDB_HTTP_HOST — default: "0.0.0.0"
	HTTPPort      int    // ASKDB_HTTP_PORT — default: 8080
	APISecretHash string // ASKDB_API_SECRET_HASH — bcrypt hash of the shared API secret
}

// DefaultForbiddenKeywords is the keyword deny-list applied when the env var is unset.
var DefaultForbiddenKeywords = []string{
	"DROP", "DELETE", "UPDATE", "INSERT", "ALTER", "CREATE",
	"TRUNCATE", "GRANT", "REVOKE", "EXEC", "EXECUTE",
}

const (
	envLLMDriver         = "ASKDB_LLM_DRIVER"
	envOllamaBaseURL     = "ASKDB_OLLAMA_BASE_URL"
	envOllamaModel       = "ASKDB_OLLAMA_MODEL"
	envOpenAIBaseURL     = "ASKDB_OPENAI_BASE_URL"
	envOpenAIAPIKey      = "ASKDB_OPENAI_API_KEY"
	envOpenAIModel       = "ASKDB_OPENAI_MODEL"
	envAnthropicBaseURL  = "ASKDB_ANTHROPIC_BASE_URL"
	envAnthropicAPIKey   = "ASKDB_ANTHROPIC_API_KEY"
	envAnthropicModel    = "ASKDB_ANTHROPIC_MODEL"
	envTemperature       = "ASKDB_LLM_TEMPERATURE"
	envRequestTimeout    = "ASKDB_LLM_TIMEOUT"
	envEmbedModel        = "ASKDB_EMBED_MODEL"
	envMaxIterations     = "ASKDB_MAX_ITERATIONS"
	envMaxRows           = "ASKDB_MAX_ROWS"
	envAllowedStatements = "ASKDB_ALLOWED_STATEMENTS"
	envForbiddenKeywords = "ASKDB_FORBIDDEN_KEYWORDS"
	envLearningEnabled   = "ASKDB_LEARNING_ENABLED"
	envSearchDriver      = "ASKDB_SEARCH_DRIVER"
	envDistanceMetric    = "ASKDB_DISTANCE_METRIC"
	envHybridMergeBoth   = "ASKDB_HYBRID_MERGE_BOTH"
	envCustomIndexes     = "ASKDB_CUSTOM_INDEXES"
	envStorePath         = "ASKDB_STORE_PATH"
	envDataPath          = "ASKDB_DATA_PATH"
	envDataConnection    = "ASKDB_DATA_CONNECTION"
	envSemanticModel     = "ASKDB_SEMANTIC_MODEL"
	envHTTPHost          = "ASKDB_HTTP_HOST"
	envHTTPPort          = "ASKDB_HTTP_PORT"
	envAPISecretHash     = "ASKDB_API_SECRET_HASH"
)

// Load reads configuration from environment variables, applying defaults for missing values.
func Load() Config {
	return Config{
		LLMDriver:        envOr(envLLMDriver, "ollama"),
		OllamaBaseURL:    envOr(envOllamaBaseURL, "http://localhost:11434"),
		OllamaModel:      envOr(envOllamaModel, "llama3.1"),
		OpenAIBaseURL:    envOr(envOpenAIBaseURL, "https://api.openai.com/v1"),
		OpenAIAPIKey:     os.Getenv(envOpenAIAPIKey),
		OpenAIModel:      envOr(envOpenAIModel, "gpt-4o"),
		AnthropicBaseURL: envOr(envAnthropicBaseURL, "https://api.anthropic.com"),
		AnthropicAPIKey:  os.Getenv(envAnthropicAPIKey),
		AnthropicModel:   envOr(envAnthropicModel, "claude-sonnet-4-5"),
		Temperature:      envFloat(envTemperature, 0),
		RequestTimeoutS:  envInt(envRequestTimeout, 300),

		EmbedModel: envOr(envEmbedModel, "nomic-embed-text"),

		MaxIterations: envInt(envMaxIterations, 10),

		MaxRows:           envInt(envMaxRows, 1000),
		AllowedStatements: envList(envAllowedStatements, []string{"SELECT", "WITH"}),
		ForbiddenKeywords: envList(envForbiddenKeywords, DefaultForbiddenKeywords),

		LearningEnabled: envBool(envLearningEnabled, true),

		SearchDriver:    envOr(envSearchDriver, "fulltext"),
		DistanceMetric:  envOr(envDistanceMetric, "cosine"),
		HybridMergeBoth: envBool(envHybridMergeBoth, false),
		CustomIndexes:   envList(envCustomIndexes, nil),

		StorePath:         envOr(envStorePath, "askdb.db"),
		DataPath:          envOr(envDataPath, "data.db"),
		DataConnection:    envOr(envDataConnection, "default"),
		SemanticModelPath: os.Getenv(envSemanticModel),

		HTTPHost:      envOr(envHTTPHost, "0.0.0.0"),
		HTTPPort:      envInt(envHTTPPort, 8080),
		APISecretHash: os.Getenv(envAPISecretHash),
	}
}

// envOr returns the value of the environment variable key, or fallback if not set.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt parses an int env var; malformed or missing values fall back.
func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// envFloat parses a float env var; malformed or missing values fall back.
func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// envBool parses a bool env var ("true"/"false"/"1"/"0"); malformed values fall back.
func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// envList parses a comma-separated env var into a trimmed, non-empty string slice.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
