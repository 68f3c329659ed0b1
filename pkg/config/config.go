// Package config loads CrewMind configuration from the environment, .env
// files, or JSON.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// ErrInvalidConfig indicates a configuration with missing required fields.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config contains the complete configuration for a CrewMind deployment.
//
// It includes settings for:
//   - LLM provider (completions and routing)
//   - Embedding provider (semantic memory retrieval)
//   - Database (memory persistence)
//   - Crew behavior (workflow strategy, generation parameters)
//
// Example:
//
//	cfg := &config.Config{
//	    LLM: config.LLMConfig{
//	        APIKey: "sk-...",
//	        Model:  "gpt-4o-mini",
//	    },
//	    Embedder: config.EmbedderConfig{
//	        APIKey:     "sk-...",
//	        Model:      "text-embedding-3-small",
//	        Dimensions: 1536,
//	    },
//	    Database: config.DatabaseConfig{
//	        Provider: "sqlite",
//	        Path:     "./crewmind.db",
//	    },
//	}
type Config struct {
	// LLM contains the completion provider configuration.
	LLM LLMConfig `json:"llm"`

	// Embedder contains the embedding provider configuration.
	Embedder EmbedderConfig `json:"embedder"`

	// Database contains the memory persistence configuration.
	Database DatabaseConfig `json:"database"`

	// Crew contains orchestration behavior configuration.
	Crew CrewConfig `json:"crew"`
}

// LLMConfig contains configuration for the completion provider.
type LLMConfig struct {
	// APIKey is the API key for the completion provider.
	APIKey string `json:"api_key"`

	// Model is the model name to use (e.g., "gpt-4o-mini").
	Model string `json:"model"`

	// BaseURL is the base URL for the API (optional, uses the provider
	// default if empty).
	BaseURL string `json:"base_url,omitempty"`
}

// EmbedderConfig contains configuration for the embedding provider.
type EmbedderConfig struct {
	// APIKey is the API key for the embedding provider.
	APIKey string `json:"api_key"`

	// Model is the embedding model name (e.g., "text-embedding-3-small").
	Model string `json:"model"`

	// BaseURL is the base URL for the API (optional).
	BaseURL string `json:"base_url,omitempty"`

	// Dimensions is the dimension of the embedding vectors (e.g., 1536).
	Dimensions int `json:"dimensions,omitempty"`
}

// DatabaseConfig contains configuration for memory persistence.
//
// Supported providers: sqlite, postgres, mysql.
type DatabaseConfig struct {
	// Provider is the database provider name (sqlite, postgres, mysql).
	Provider string `json:"provider"`

	// Path is the database file path (sqlite only).
	Path string `json:"path,omitempty"`

	// Host, Port, User, Password, Database apply to postgres and mysql.
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
	Database string `json:"database,omitempty"`

	// SSLMode applies to postgres (default "disable").
	SSLMode string `json:"ssl_mode,omitempty"`
}

// CrewConfig contains orchestration behavior configuration.
type CrewConfig struct {
	// Workflow is the multi-agent strategy (sequential, parallel,
	// hierarchical, consensus). Defaults to sequential.
	Workflow string `json:"workflow"`

	// Temperature for agent completion calls.
	Temperature float64 `json:"temperature,omitempty"`

	// MaxTokens for agent completion calls.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// LoadFromEnv loads configuration from environment variables.
//
// The loading process:
//  1. Searches for a .env file (current directory, then up to 5 levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables into a Config struct
//
// Supported environment variables:
//   - DATABASE_PROVIDER (sqlite, postgres, mysql)
//   - SQLITE_PATH
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD, POSTGRES_DATABASE, POSTGRES_SSLMODE
//   - MYSQL_HOST, MYSQL_PORT, MYSQL_USER, MYSQL_PASSWORD, MYSQL_DATABASE
//   - LLM_API_KEY, LLM_MODEL, LLM_BASE_URL
//   - EMBEDDING_API_KEY, EMBEDDING_MODEL, EMBEDDING_BASE_URL, EMBEDDING_DIMENSIONS
//   - CREW_WORKFLOW, CREW_TEMPERATURE, CREW_MAX_TOKENS
//
// Returns a Config instance, or an error if loading fails.
func LoadFromEnv() (*Config, error) {
	if envPath, found := FindEnvFile(); found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{
		LLM: LLMConfig{
			APIKey:  firstEnv("LLM_API_KEY", "OPENAI_API_KEY"),
			Model:   getEnvOrDefault("LLM_MODEL", "gpt-4o-mini"),
			BaseURL: os.Getenv("LLM_BASE_URL"),
		},
		Embedder: EmbedderConfig{
			APIKey:  firstEnv("EMBEDDING_API_KEY", "OPENAI_API_KEY"),
			Model:   getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
			BaseURL: os.Getenv("EMBEDDING_BASE_URL"),
		},
		Crew: CrewConfig{
			Workflow: getEnvOrDefault("CREW_WORKFLOW", "sequential"),
		},
	}

	if dims, err := strconv.Atoi(getEnvOrDefault("EMBEDDING_DIMENSIONS", "1536")); err == nil {
		cfg.Embedder.Dimensions = dims
	}
	if temp, err := strconv.ParseFloat(os.Getenv("CREW_TEMPERATURE"), 64); err == nil {
		cfg.Crew.Temperature = temp
	}
	if maxTokens, err := strconv.Atoi(os.Getenv("CREW_MAX_TOKENS")); err == nil {
		cfg.Crew.MaxTokens = maxTokens
	}

	provider := getEnvOrDefault("DATABASE_PROVIDER", "sqlite")
	switch provider {
	case "sqlite":
		cfg.Database = DatabaseConfig{
			Provider: "sqlite",
			Path:     getEnvOrDefault("SQLITE_PATH", "./crewmind.db"),
		}
	case "postgres":
		port, _ := strconv.Atoi(getEnvOrDefault("POSTGRES_PORT", "5432"))
		cfg.Database = DatabaseConfig{
			Provider: "postgres",
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     port,
			User:     getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			Database: getEnvOrDefault("POSTGRES_DATABASE", "crewmind"),
			SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		}
	case "mysql":
		port, _ := strconv.Atoi(getEnvOrDefault("MYSQL_PORT", "3306"))
		cfg.Database = DatabaseConfig{
			Provider: "mysql",
			Host:     getEnvOrDefault("MYSQL_HOST", "127.0.0.1"),
			Port:     port,
			User:     getEnvOrDefault("MYSQL_USER", "root"),
			Password: os.Getenv("MYSQL_PASSWORD"),
			Database: getEnvOrDefault("MYSQL_DATABASE", "crewmind"),
		}
	default:
		return nil, fmt.Errorf("unsupported database provider: %s", provider)
	}

	return cfg, nil
}

// LoadFromEnvFile loads configuration from a specific .env file.
//
// Parameters:
//   - envPath: Path to the .env file
//
// Returns a Config instance, or an error if loading fails.
func LoadFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return LoadFromEnv()
}

// LoadFromJSON loads configuration from a JSON file.
//
// Parameters:
//   - path: Path to the JSON configuration file
//
// Returns a Config instance, or an error if loading or parsing fails.
func LoadFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("%w: llm api key is required", ErrInvalidConfig)
	}
	if c.Database.Provider == "" {
		return fmt.Errorf("%w: database provider is required", ErrInvalidConfig)
	}
	switch c.Database.Provider {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("%w: unsupported database provider %q", ErrInvalidConfig, c.Database.Provider)
	}
	return nil
}

// DSN builds the driver connection string for the configured database.
func (c *DatabaseConfig) DSN() string {
	switch c.Provider {
	case "postgres":
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
			c.User, c.Password, c.Host, c.Port, c.Database)
	default:
		return c.Path
	}
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
//
// Returns:
//   - path: Path to the found file (empty if not found)
//   - found: True if a file was found, false otherwise
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// firstEnv returns the first non-empty value among the given variables.
func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}
