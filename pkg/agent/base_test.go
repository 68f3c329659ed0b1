package agent_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewmind/crewmind-go/pkg/agent"
	"github.com/crewmind/crewmind-go/pkg/llm"
	"github.com/crewmind/crewmind-go/pkg/memory"
)

// scriptedLLM replays completions in order and records every request.
type scriptedLLM struct {
	completions []*llm.Completion
	requests    [][]llm.Message
	err         error
}

func (s *scriptedLLM) Complete(_ context.Context, messages []llm.Message, _ ...llm.CompleteOption) (*llm.Completion, error) {
	s.requests = append(s.requests, messages)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.completions) == 0 {
		return &llm.Completion{Content: "out of script"}, nil
	}
	next := s.completions[0]
	s.completions = s.completions[1:]
	return next, nil
}

func (s *scriptedLLM) Close() error { return nil }

func newSalesAgent(t *testing.T, provider llm.Provider, hook agent.EventHook) agent.Agent {
	t.Helper()
	a, err := agent.New(agent.RoleSales, &agent.Config{LLM: provider, Hook: hook})
	require.NoError(t, err)
	return a
}

func crmTool(name string, execute func(ctx context.Context, args map[string]interface{}) (string, error)) agent.LoadedTool {
	return agent.LoadedTool{
		Name:        name,
		Description: "CRM lookup tool",
		Toolkit:     "hubspot-crm",
		Execute:     execute,
	}
}

func TestProcessBuildsPromptWithMemoryAndTools(t *testing.T) {
	provider := &scriptedLLM{completions: []*llm.Completion{{Content: "the pipeline looks healthy"}}}
	a := newSalesAgent(t, provider, nil)

	actx := &agent.Context{
		UserID: "user123",
		Tools: []agent.LoadedTool{
			crmTool("crm_search", nil),
			{Name: "send_tweet", Description: "posts to social media", Toolkit: "twitter-social"},
		},
		Memory: &memory.AgentMemory{
			ShortTerm: []*memory.Item{
				{Content: "user closed the Acme deal last week"},
			},
		},
	}
	history := []agent.Message{{Role: "user", Content: "earlier question"}}

	resp, err := a.Process(context.Background(), "how is the pipeline?", actx, history)
	require.NoError(t, err)
	assert.Equal(t, "the pipeline looks healthy", resp.Content)
	assert.Equal(t, agent.RoleSales, resp.AgentRole)
	require.NotNil(t, resp.Metadata)

	require.Len(t, provider.requests, 1)
	messages := provider.requests[0]
	require.GreaterOrEqual(t, len(messages), 3)

	system := messages[0]
	assert.Equal(t, "system", system.Role)
	assert.Contains(t, system.Content, "crm_search", "role-relevant tool listed")
	assert.NotContains(t, system.Content, "send_tweet", "off-category tool filtered out")
	assert.Contains(t, system.Content, "user closed the Acme deal last week")

	assert.Equal(t, "earlier question", messages[1].Content)
	assert.Equal(t, "how is the pipeline?", messages[len(messages)-1].Content)
}

func TestExecuteRunsToolsAndFollowsUpOnce(t *testing.T) {
	provider := &scriptedLLM{completions: []*llm.Completion{
		{
			ToolCalls: []llm.ToolCall{
				{ID: "call_1", Name: "crm_search", Arguments: `{"stage":"closing"}`},
				{ID: "call_2", Name: "crm_broken", Arguments: `{}`},
			},
			Usage: &llm.Usage{TotalTokens: 40},
		},
		{Content: "two deals are closing; the CRM export failed", Usage: &llm.Usage{TotalTokens: 25}},
	}}
	a := newSalesAgent(t, provider, nil)

	var gotArgs map[string]interface{}
	actx := &agent.Context{
		Tools: []agent.LoadedTool{
			crmTool("crm_search", func(_ context.Context, args map[string]interface{}) (string, error) {
				gotArgs = args
				return "2 deals in closing stage", nil
			}),
			crmTool("crm_broken", func(_ context.Context, _ map[string]interface{}) (string, error) {
				return "", errors.New("connection refused")
			}),
		},
	}

	resp, err := a.Process(context.Background(), "which deals close this week?", actx, nil)
	require.NoError(t, err)

	assert.Equal(t, "two deals are closing; the CRM export failed", resp.Content)
	assert.Equal(t, []string{"crm_search", "crm_broken"}, resp.ToolsUsed)
	assert.Equal(t, map[string]interface{}{"stage": "closing"}, gotArgs)
	assert.Equal(t, 65, resp.Metadata.Tokens, "token usage summed across both calls")

	// Exactly one follow-up completion after the tool round.
	require.Len(t, provider.requests, 2)
	followUp := provider.requests[1]
	last := followUp[len(followUp)-1]
	assert.Equal(t, "tool", last.Role)
	assert.Contains(t, last.Content, "crm_search: 2 deals in closing stage")
	assert.Contains(t, last.Content, "crm_broken: Error - connection refused",
		"one failing tool never aborts the others")
}

func TestProcessEmitsLifecycleEvents(t *testing.T) {
	provider := &scriptedLLM{completions: []*llm.Completion{{Content: "done"}}}

	var events []agent.EventType
	a := newSalesAgent(t, provider, func(e agent.Event) {
		events = append(events, e.Type)
	})

	_, err := a.Process(context.Background(), "quick check", &agent.Context{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []agent.EventType{agent.EventAgentStart, agent.EventAgentComplete}, events)
}

func TestProcessEmitsErrorEvent(t *testing.T) {
	provider := &scriptedLLM{err: errors.New("model unavailable")}

	var events []agent.EventType
	a := newSalesAgent(t, provider, func(e agent.Event) {
		events = append(events, e.Type)
	})

	_, err := a.Process(context.Background(), "quick check", &agent.Context{}, nil)
	require.Error(t, err)
	assert.Equal(t, []agent.EventType{agent.EventAgentStart, agent.EventAgentError}, events)
}

func TestCanHandleRequiredCapabilities(t *testing.T) {
	provider := &scriptedLLM{}
	gated := agent.NewBaseAgent(agent.Definition{
		Role:                 agent.RoleData,
		Name:                 "Warehouse Agent",
		SystemPrompt:         "You answer from the warehouse.",
		RequiredCapabilities: []string{"bigquery"},
	}, &agent.Config{LLM: provider})

	assert.False(t, gated.CanHandle("run the report", &agent.Context{}))
	assert.True(t, gated.CanHandle("run the report", &agent.Context{
		Tools: []agent.LoadedTool{{Name: "bigquery_run", Toolkit: "bigquery"}},
	}))

	// No declared capabilities means always eligible.
	open := newSalesAgent(t, provider, nil)
	assert.True(t, open.CanHandle("anything", &agent.Context{}))
}

func TestGeneralAgentKeepsAllTools(t *testing.T) {
	provider := &scriptedLLM{completions: []*llm.Completion{{Content: "ok"}}}
	general, err := agent.New(agent.RoleGeneral, &agent.Config{LLM: provider})
	require.NoError(t, err)

	actx := &agent.Context{Tools: []agent.LoadedTool{
		crmTool("crm_search", nil),
		{Name: "send_tweet", Description: "posts to social media", Toolkit: "twitter-social"},
	}}

	_, err = general.Process(context.Background(), "do something useful", actx, nil)
	require.NoError(t, err)

	system := provider.requests[0][0].Content
	assert.Contains(t, system, "crm_search")
	assert.Contains(t, system, "send_tweet")
}

func TestUnknownToolCallCapturedAsError(t *testing.T) {
	provider := &scriptedLLM{completions: []*llm.Completion{
		{ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "ghost_tool", Arguments: `{}`}}},
		{Content: "could not use that tool"},
	}}
	a := newSalesAgent(t, provider, nil)

	resp, err := a.Process(context.Background(), "fetch the forecast", &agent.Context{
		Tools: []agent.LoadedTool{crmTool("crm_search", nil)},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "could not use that tool", resp.Content)

	followUp := provider.requests[1]
	last := followUp[len(followUp)-1]
	assert.True(t, strings.Contains(last.Content, "ghost_tool: Error - tool not available"))
}
