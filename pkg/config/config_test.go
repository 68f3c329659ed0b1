package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewmind/crewmind-go/pkg/config"
)

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name         string
		envVars      map[string]string
		wantProvider string
		wantErr      bool
	}{
		{
			name: "sqlite defaults",
			envVars: map[string]string{
				"DATABASE_PROVIDER": "sqlite",
				"SQLITE_PATH":       "./test.db",
				"LLM_API_KEY":       "test-key",
			},
			wantProvider: "sqlite",
		},
		{
			name: "postgres",
			envVars: map[string]string{
				"DATABASE_PROVIDER": "postgres",
				"POSTGRES_HOST":     "db.internal",
				"POSTGRES_PORT":     "5433",
				"POSTGRES_USER":     "crew",
				"POSTGRES_PASSWORD": "secret",
				"POSTGRES_DATABASE": "crewmind",
				"LLM_API_KEY":       "test-key",
			},
			wantProvider: "postgres",
		},
		{
			name: "mysql",
			envVars: map[string]string{
				"DATABASE_PROVIDER": "mysql",
				"MYSQL_HOST":        "127.0.0.1",
				"MYSQL_USER":        "root",
				"MYSQL_DATABASE":    "crewmind",
				"LLM_API_KEY":       "test-key",
			},
			wantProvider: "mysql",
		},
		{
			name: "unsupported provider",
			envVars: map[string]string{
				"DATABASE_PROVIDER": "mongodb",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := config.LoadFromEnv()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantProvider, cfg.Database.Provider)
			assert.Equal(t, "test-key", cfg.LLM.APIKey)
			assert.NotEmpty(t, cfg.LLM.Model)
			assert.NotEmpty(t, cfg.Embedder.Model)
			assert.Equal(t, "sequential", cfg.Crew.Workflow)
		})
	}
}

func TestLoadFromEnvDefaults(t *testing.T) {
	t.Setenv("DATABASE_PROVIDER", "sqlite")
	t.Setenv("LLM_API_KEY", "test-key")

	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.Model)
	assert.Equal(t, 1536, cfg.Embedder.Dimensions)
}

func TestValidate(t *testing.T) {
	valid := &config.Config{
		LLM:      config.LLMConfig{APIKey: "k"},
		Database: config.DatabaseConfig{Provider: "sqlite", Path: "./db"},
	}
	assert.NoError(t, valid.Validate())

	missingKey := &config.Config{Database: config.DatabaseConfig{Provider: "sqlite"}}
	assert.ErrorIs(t, missingKey.Validate(), config.ErrInvalidConfig)

	badProvider := &config.Config{
		LLM:      config.LLMConfig{APIKey: "k"},
		Database: config.DatabaseConfig{Provider: "oracle"},
	}
	assert.ErrorIs(t, badProvider.Validate(), config.ErrInvalidConfig)
}

func TestDatabaseDSN(t *testing.T) {
	pg := &config.DatabaseConfig{Provider: "postgres", Host: "h", Port: 5432, User: "u", Password: "p", Database: "d"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=d sslmode=disable", pg.DSN())

	my := &config.DatabaseConfig{Provider: "mysql", Host: "h", Port: 3306, User: "u", Password: "p", Database: "d"}
	assert.Equal(t, "u:p@tcp(h:3306)/d?parseTime=true&charset=utf8mb4", my.DSN())

	lite := &config.DatabaseConfig{Provider: "sqlite", Path: "./crew.db"}
	assert.Equal(t, "./crew.db", lite.DSN())
}

func TestLoadFromJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	payload := `{
		"llm": {"api_key": "k", "model": "gpt-4o-mini"},
		"database": {"provider": "sqlite", "path": "./crew.db"},
		"crew": {"workflow": "parallel"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	cfg, err := config.LoadFromJSON(path)
	require.NoError(t, err)
	assert.Equal(t, "parallel", cfg.Crew.Workflow)
	assert.Equal(t, "sqlite", cfg.Database.Provider)

	_, err = config.LoadFromJSON(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
