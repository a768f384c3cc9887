package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the mmrag service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	OpenSearch OpenSearchConfig `yaml:"opensearch"`
	Storage    StorageConfig    `yaml:"storage"`
	Cache      CacheConfig      `yaml:"cache"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Models     ModelsConfig     `yaml:"models"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// OpenSearchConfig holds index store connection settings. The target index
// is explicit configuration: the service never discovers indices at runtime.
type OpenSearchConfig struct {
	Endpoint   string `yaml:"endpoint"`
	Index      string `yaml:"index"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	AWSService string `yaml:"aws_service"` // "es" or "aoss"; empty = basic auth
	Region     string `yaml:"region"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// StorageConfig holds object store settings for image assets.
type StorageConfig struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
}

// CacheConfig holds the optional query-embedding cache settings.
// The cache is disabled when no addresses are configured.
type CacheConfig struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	TTLSec   int      `yaml:"ttl_sec"`
}

// EmbeddingConfig selects the text embedding provider. The multimodal
// embedder is always Bedrock; only the text path is switchable.
type EmbeddingConfig struct {
	TextProvider string       `yaml:"text_provider"` // bedrock (default) | openai
	OpenAI       OpenAIConfig `yaml:"openai"`
}

// OpenAIConfig holds settings for the OpenAI-compatible text embedder.
type OpenAIConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// ModelsConfig holds Bedrock model identifiers and the per-call timeout.
type ModelsConfig struct {
	Region          string `yaml:"region"`
	TextEmbedding   string `yaml:"text_embedding"`
	Multimodal      string `yaml:"multimodal_embedding"`
	Rerank          string `yaml:"rerank"`
	Answer          string `yaml:"answer"`
	AnswerMaxTokens int    `yaml:"answer_max_tokens"`
	TimeoutSec      int    `yaml:"timeout_sec"`
}

// RetrievalConfig holds fusion and rerank settings.
type RetrievalConfig struct {
	TextK          int  `yaml:"text_k"`      // text hits fed to the synthesizer
	ImageK         int  `yaml:"image_k"`     // image hits fed to the synthesizer
	CandidateK     int  `yaml:"candidate_k"` // hits requested per retrieval call
	RerankDisabled bool `yaml:"rerank_disabled"`
	SnippetChars   int  `yaml:"snippet_chars"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// Answer generation is slow; the write timeout covers the full pipeline.
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.OpenSearch.Index == "" {
		c.OpenSearch.Index = "multimodal_index"
	}
	if c.OpenSearch.TimeoutSec <= 0 {
		c.OpenSearch.TimeoutSec = 30
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 24 * 3600
	}
	if c.Embedding.TextProvider == "" {
		c.Embedding.TextProvider = "bedrock"
	}
	if c.Models.TextEmbedding == "" {
		c.Models.TextEmbedding = "cohere.embed-multilingual-v3"
	}
	if c.Models.Multimodal == "" {
		c.Models.Multimodal = "amazon.titan-embed-image-v1"
	}
	if c.Models.Rerank == "" {
		c.Models.Rerank = "cohere.rerank-v3-5:0"
	}
	if c.Models.Answer == "" {
		c.Models.Answer = "anthropic.claude-3-sonnet-20240229-v1:0"
	}
	if c.Models.AnswerMaxTokens <= 0 {
		c.Models.AnswerMaxTokens = 2048
	}
	if c.Models.TimeoutSec <= 0 {
		c.Models.TimeoutSec = 60
	}
	if c.Retrieval.TextK <= 0 {
		c.Retrieval.TextK = 3
	}
	if c.Retrieval.ImageK <= 0 {
		c.Retrieval.ImageK = 2
	}
	if c.Retrieval.CandidateK <= 0 {
		c.Retrieval.CandidateK = 5
	}
	if c.Retrieval.SnippetChars <= 0 {
		c.Retrieval.SnippetChars = 500
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.OpenSearch.Endpoint == "" {
		return fmt.Errorf("opensearch.endpoint is required")
	}
	if c.OpenSearch.AWSService != "" {
		switch c.OpenSearch.AWSService {
		case "es", "aoss":
			// ok
		default:
			return fmt.Errorf(
				"opensearch.aws_service must be \"es\" or \"aoss\", got %q", c.OpenSearch.AWSService)
		}
		if c.OpenSearch.Region == "" {
			return fmt.Errorf("opensearch.region is required when aws_service is set")
		}
	}
	switch c.Embedding.TextProvider {
	case "bedrock", "openai":
		// ok
	default:
		return fmt.Errorf(
			"embedding.text_provider must be \"bedrock\" or \"openai\", got %q",
			c.Embedding.TextProvider)
	}
	if c.Embedding.TextProvider == "openai" && c.Embedding.OpenAI.Model == "" {
		return fmt.Errorf("embedding.openai.model is required for the openai provider")
	}
	if c.Models.Region == "" {
		return fmt.Errorf("models.region is required")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
