// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./config.yaml or ~/.nova/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: generation model, sampling parameters, embedder model
//   - Retrieval: persist directory, collection name, top_k
//   - Sessions: history window, store capacity
//   - Server: listen address, rate limits, CORS origins
//
// Security: the API key is read from the environment only and never logged.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// DefaultGenerationModel is the provider-qualified Gemini model used for answers.
	DefaultGenerationModel = "googleai/gemini-2.5-flash"

	// DefaultEmbedderModel produces the vectors stored in the knowledge base.
	// Changing it invalidates every stored embedding; see knowledge.Store.
	DefaultEmbedderModel = "text-embedding-004"

	// DefaultCollection is the knowledge-base collection name.
	DefaultCollection = "customer_service_best_practices"

	// DefaultAddr is the default HTTP listen address.
	DefaultAddr = "127.0.0.1:8080"
)

// Config stores application configuration.
type Config struct {
	// AI model configuration
	GenerationModel string  `mapstructure:"generation_model" json:"generation_model"`
	EmbedderModel   string  `mapstructure:"embedder_model" json:"embedder_model"`
	Temperature     float32 `mapstructure:"temperature" json:"temperature"`
	TopP            float32 `mapstructure:"top_p" json:"top_p"`
	TopK            int     `mapstructure:"top_k" json:"top_k"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens" json:"max_output_tokens"`

	// CallTimeout bounds each outbound embedding or generation attempt.
	CallTimeout time.Duration `mapstructure:"call_timeout" json:"call_timeout"`

	// Retrieval configuration
	PersistDir     string `mapstructure:"persist_dir" json:"persist_dir"`
	Collection     string `mapstructure:"collection" json:"collection"`
	RetrievalTopK  int    `mapstructure:"retrieval_top_k" json:"retrieval_top_k"`
	MaxPromptBytes int    `mapstructure:"max_prompt_bytes" json:"max_prompt_bytes"`

	// Session configuration
	MaxTurns    int `mapstructure:"max_turns" json:"max_turns"`
	MaxSessions int `mapstructure:"max_sessions" json:"max_sessions"`

	// Server configuration
	Addr        string   `mapstructure:"addr" json:"addr"`
	RateRPS     float64  `mapstructure:"rate_rps" json:"rate_rps"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`

	// GeminiAPIKey is read from the environment (GEMINI_API_KEY), never from file.
	// SENSITIVE: excluded from JSON serialization.
	GeminiAPIKey string `mapstructure:"-" json:"-"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Best-effort .env loading for local development; a missing file is fine.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".nova"))
	}

	setDefaults(v)

	v.SetEnvPrefix("NOVA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")

	return &cfg, nil
}

// setDefaults registers default values on the given viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("generation_model", DefaultGenerationModel)
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("temperature", 0.4)
	v.SetDefault("top_p", 0.85)
	v.SetDefault("top_k", 40)
	v.SetDefault("max_output_tokens", 1024)
	v.SetDefault("call_timeout", time.Minute)

	v.SetDefault("persist_dir", "./nova_data")
	v.SetDefault("collection", DefaultCollection)
	v.SetDefault("retrieval_top_k", 5)
	v.SetDefault("max_prompt_bytes", 16384)

	v.SetDefault("max_turns", 20)
	v.SetDefault("max_sessions", 1000)

	v.SetDefault("addr", DefaultAddr)
	v.SetDefault("rate_rps", 10.0)
	v.SetDefault("rate_burst", 30)
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("trust_proxy", false)
}
