package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env         string
	Port        string
	OtelEnabled bool

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	ModelURL        string
	GenerationModel string
	EmbeddingModel  string
	EmbedTimeout    time.Duration
	GenerationRPS   float64

	RerankerURL   string
	RerankerModel string

	Collection     string
	TopKPerProbe   int
	PreRerankWidth int
	FinalK         int
	RRFK           float64

	RewriteEnabled   bool
	RewriteTimeout   time.Duration
	RewriteMaxTokens int
	FusionEnabled    bool
	VariantCount     int
	VariantTimeout   time.Duration
	VariantMaxTokens int
	HydeEnabled      bool
	HydeTimeout      time.Duration
	HydeMaxTokens    int
	RerankEnabled    bool
	RerankTimeout    time.Duration

	AnswerMaxTokens int
	AnswerCacheSize int
	AnswerCacheTTL  time.Duration

	ChunkMinLength int
	ChunkSize      int
	ChunkOverlap   int

	SourceBucket   string
	SourcePrefix   string
	SourceSuffixes []string
	CursorPath     string
}

func Load() *Config {
	return &Config{
		Env:         getEnv("ENV", "development"),
		Port:        getEnv("PORT", "9020"),
		OtelEnabled: getEnvBool("OTEL_ENABLED", false),

		DBHost:     getEnv("DB_HOST", "corpus-db"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "corpus_user"),
		DBPassword: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "corpus_password"),
		DBName:     getEnv("DB_NAME", "corpus_db"),

		ModelURL:        getEnv("MODEL_URL", "http://model-server:11434"),
		GenerationModel: getEnv("GENERATION_MODEL", "gpt-oss20b-cpu"),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", "embeddinggemma"),
		EmbedTimeout:    getEnvDuration("EMBED_TIMEOUT", 30*time.Second),
		GenerationRPS:   getEnvFloat("GENERATION_RPS", 2.0),

		RerankerURL:   getEnv("RERANKER_URL", "http://reranker:8001"),
		RerankerModel: getEnv("RERANKER_MODEL", "bge-reranker-v2-m3"),

		Collection:     getEnv("RETRIEVAL_COLLECTION", "rag_docs"),
		TopKPerProbe:   getEnvInt("RETRIEVAL_TOP_K_PER_PROBE", 8),
		PreRerankWidth: getEnvInt("RETRIEVAL_PRE_RERANK_WIDTH", 24),
		FinalK:         getEnvInt("RETRIEVAL_FINAL_K", 4),
		RRFK:           getEnvFloat("RETRIEVAL_RRF_K", 60.0),

		RewriteEnabled:   getEnvBool("REWRITE_ENABLED", true),
		RewriteTimeout:   getEnvDuration("REWRITE_TIMEOUT", 20*time.Second),
		RewriteMaxTokens: getEnvInt("REWRITE_MAX_TOKENS", 256),
		FusionEnabled:    getEnvBool("FUSION_ENABLED", true),
		VariantCount:     getEnvInt("FUSION_VARIANT_COUNT", 3),
		VariantTimeout:   getEnvDuration("FUSION_TIMEOUT", 20*time.Second),
		VariantMaxTokens: getEnvInt("FUSION_MAX_TOKENS", 256),
		HydeEnabled:      getEnvBool("HYDE_ENABLED", false),
		HydeTimeout:      getEnvDuration("HYDE_TIMEOUT", 20*time.Second),
		HydeMaxTokens:    getEnvInt("HYDE_MAX_TOKENS", 384),
		RerankEnabled:    getEnvBool("RERANK_ENABLED", true),
		RerankTimeout:    getEnvDuration("RERANK_TIMEOUT", 30*time.Second),

		AnswerMaxTokens: getEnvInt("ANSWER_MAX_TOKENS", 768),
		AnswerCacheSize: getEnvInt("ANSWER_CACHE_SIZE", 256),
		AnswerCacheTTL:  getEnvDuration("ANSWER_CACHE_TTL", 10*time.Minute),

		ChunkMinLength: getEnvInt("CHUNK_MIN_LENGTH", 80),
		ChunkSize:      getEnvInt("CHUNK_SIZE", 1200),
		ChunkOverlap:   getEnvInt("CHUNK_OVERLAP", 200),

		SourceBucket:   getEnv("SOURCE_BUCKET", "corpus-documents"),
		SourcePrefix:   getEnv("SOURCE_PREFIX", ""),
		SourceSuffixes: getEnvList("SOURCE_SUFFIXES", []string{".md", ".txt"}),
		CursorPath:     getEnv("INGEST_CURSOR_PATH", "/var/lib/corpus-qa/ingest-cursor.json"),
	}
}

// DSN builds the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	// 1. Try direct environment variable
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}

	// 2. Try reading from file specified by fileEnvKey
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
