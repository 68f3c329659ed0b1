// Package crewmind provides the top-level CrewMind client, wiring the
// router, agent roster, crew orchestrator, and memory subsystem together
// from a single configuration.
package crewmind

import (
	"context"

	"go.uber.org/zap"

	"github.com/crewmind/crewmind-go/pkg/agent"
	"github.com/crewmind/crewmind-go/pkg/config"
	"github.com/crewmind/crewmind-go/pkg/crew"
	"github.com/crewmind/crewmind-go/pkg/embedder"
	embopenai "github.com/crewmind/crewmind-go/pkg/embedder/openai"
	"github.com/crewmind/crewmind-go/pkg/llm"
	llmopenai "github.com/crewmind/crewmind-go/pkg/llm/openai"
	"github.com/crewmind/crewmind-go/pkg/memory"
	"github.com/crewmind/crewmind-go/pkg/router"
	"github.com/crewmind/crewmind-go/pkg/storage"
	"github.com/crewmind/crewmind-go/pkg/storage/mysql"
	"github.com/crewmind/crewmind-go/pkg/storage/postgres"
	"github.com/crewmind/crewmind-go/pkg/storage/sqlite"
)

// Client is the assembled CrewMind stack. Create one per process with
// NewClient and share it across requests.
//
// Example:
//
//	cfg, err := config.LoadFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := crewmind.NewClient(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	resp, err := client.Process(ctx, "show me our sales pipeline", &agent.Context{
//	    UserID: "user123",
//	}, nil)
type Client struct {
	cfg      *config.Config
	llm      llm.Provider
	embedder embedder.Provider
	store    storage.Store
	memory   *memory.Registry
	crew     *crew.Crew
	logger   *zap.Logger
}

// NewClient builds the full stack from a validated configuration.
func NewClient(cfg *config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	llmClient, err := llmopenai.NewClient(&llmopenai.Config{
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		BaseURL: cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, err
	}

	embClient, err := embopenai.NewClient(&embopenai.Config{
		APIKey:     cfg.Embedder.APIKey,
		Model:      cfg.Embedder.Model,
		BaseURL:    cfg.Embedder.BaseURL,
		Dimensions: cfg.Embedder.Dimensions,
	})
	if err != nil {
		return nil, err
	}

	store, err := openStore(&cfg.Database)
	if err != nil {
		return nil, err
	}

	registry, err := memory.NewRegistry(store, embClient, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	agents := agent.NewAll(&agent.Config{
		LLM:         llmClient,
		Temperature: cfg.Crew.Temperature,
		MaxTokens:   cfg.Crew.MaxTokens,
		Logger:      logger,
	})

	c := crew.New(router.New(llmClient, logger), agents, &crew.Options{
		Workflow: crew.Workflow(cfg.Crew.Workflow),
		Memory:   registry,
		Logger:   logger,
	})

	return &Client{
		cfg:      cfg,
		llm:      llmClient,
		embedder: embClient,
		store:    store,
		memory:   registry,
		crew:     c,
		logger:   logger,
	}, nil
}

func openStore(cfg *config.DatabaseConfig) (storage.Store, error) {
	switch cfg.Provider {
	case "postgres":
		return postgres.NewClient(&postgres.Config{
			Host:     cfg.Host,
			Port:     cfg.Port,
			User:     cfg.User,
			Password: cfg.Password,
			DBName:   cfg.Database,
			SSLMode:  cfg.SSLMode,
		})
	case "mysql":
		return mysql.NewClient(&mysql.Config{
			Host:     cfg.Host,
			Port:     cfg.Port,
			User:     cfg.User,
			Password: cfg.Password,
			DBName:   cfg.Database,
		})
	default:
		return sqlite.NewClient(&sqlite.Config{DBPath: cfg.Path})
	}
}

// Process routes and answers a query through the crew.
func (c *Client) Process(ctx context.Context, query string, actx *agent.Context, history []agent.Message) (*agent.Response, error) {
	return c.crew.Process(ctx, query, actx, history)
}

// Crew exposes the underlying orchestrator for callers needing execution
// bookkeeping.
func (c *Client) Crew() *crew.Crew { return c.crew }

// Memory exposes the per-user memory registry.
func (c *Client) Memory() *memory.Registry { return c.memory }

// BuildAgentMemory assembles the memory context for a user and query.
func (c *Client) BuildAgentMemory(ctx context.Context, userID, query string) (*memory.AgentMemory, error) {
	return c.memory.BuildAgentMemory(ctx, userID, query)
}

// ConsolidateMemories merges near-duplicate memories for a user. Intended
// for an external scheduler, not the request path.
func (c *Client) ConsolidateMemories(ctx context.Context, userID string) (*memory.ConsolidateResult, error) {
	return c.memory.ConsolidateMemories(ctx, userID)
}

// DecayOldMemories lowers the relevance of stale memories for a user.
// Intended for an external scheduler, not the request path.
func (c *Client) DecayOldMemories(ctx context.Context, userID string, days int) (int, error) {
	return c.memory.DecayOldMemories(ctx, userID, days)
}

// Close releases the crew worker, providers, and store.
func (c *Client) Close() error {
	c.crew.Close()
	c.llm.Close()
	c.embedder.Close()
	err := c.store.Close()
	_ = c.logger.Sync()
	return err
}
