package crew_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewmind/crewmind-go/pkg/agent"
	"github.com/crewmind/crewmind-go/pkg/crew"
	"github.com/crewmind/crewmind-go/pkg/llm"
	"github.com/crewmind/crewmind-go/pkg/router"
)

// fakeLLM serves the router's classification phase with a canned response.
type fakeLLM struct {
	content string
}

func (f *fakeLLM) Complete(_ context.Context, _ []llm.Message, _ ...llm.CompleteOption) (*llm.Completion, error) {
	return &llm.Completion{Content: f.content}, nil
}

func (f *fakeLLM) Close() error { return nil }

type stubCall struct {
	query   string
	history []agent.Message
}

// stubAgent records its invocations and replies with fixed content.
type stubAgent struct {
	role  agent.Role
	name  string
	emoji string
	reply string
	err   error

	mu    sync.Mutex
	calls []stubCall
}

func (s *stubAgent) Role() agent.Role                      { return s.role }
func (s *stubAgent) Name() string                          { return s.name }
func (s *stubAgent) Emoji() string                         { return s.emoji }
func (s *stubAgent) Description() string                   { return s.name + " stub" }
func (s *stubAgent) CanHandle(string, *agent.Context) bool { return true }

func (s *stubAgent) Process(_ context.Context, query string, _ *agent.Context, history []agent.Message) (*agent.Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, stubCall{query: query, history: append([]agent.Message(nil), history...)})
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &agent.Response{
		Content:   s.reply,
		AgentRole: s.role,
		Metadata:  &agent.ResponseMetadata{},
	}, nil
}

func (s *stubAgent) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func roster(agents ...*stubAgent) map[agent.Role]agent.Agent {
	m := make(map[agent.Role]agent.Agent)
	for _, a := range agents {
		m[a.role] = a
	}
	return m
}

const multiAgentDecision = `{"targetAgent":"sales","confidence":0.75,"reasoning":"spans teams","requiresMultiAgent":true,"agentSequence":["sales","marketing"]}`

// A query that trips no keyword rule, forcing the router's LLM phase.
const ambiguousQuery = "coordinate the offsite recap for both teams"

func TestSingleAgentPathInvokesOnlyTarget(t *testing.T) {
	sales := &stubAgent{role: agent.RoleSales, name: "Sales Agent", emoji: "💼", reply: "pipeline is healthy"}
	marketing := &stubAgent{role: agent.RoleMarketing, name: "Marketing Agent", emoji: "📣", reply: "unused"}
	general := &stubAgent{role: agent.RoleGeneral, name: "General Assistant", emoji: "🤖", reply: "unused"}

	c := crew.New(router.New(nil, nil), roster(sales, marketing, general), nil)
	defer c.Close()

	resp, execution, err := c.ProcessTracked(context.Background(), "show me our sales pipeline", &agent.Context{
		Tools: []agent.LoadedTool{{Name: "crm_search", Toolkit: "hubspot-crm"}},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "pipeline is healthy", resp.Content)
	assert.Equal(t, 1, sales.callCount())
	assert.Zero(t, marketing.callCount())
	assert.Zero(t, general.callCount())

	assert.Equal(t, crew.StatusCompleted, execution.Status)
	require.Len(t, execution.Tasks, 1)
	assert.Equal(t, agent.RoleSales, execution.Tasks[0].AgentRole)
	assert.Equal(t, crew.StatusCompleted, execution.Tasks[0].Status)
}

func TestSingleAgentFallsBackToGeneral(t *testing.T) {
	general := &stubAgent{role: agent.RoleGeneral, name: "General Assistant", emoji: "🤖", reply: "best effort answer"}

	c := crew.New(router.New(nil, nil), roster(general), nil)
	defer c.Close()

	resp, err := c.Process(context.Background(), "show me our sales pipeline", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "best effort answer", resp.Content)
	assert.Equal(t, 1, general.callCount())
}

func TestNoAgentsIsFatal(t *testing.T) {
	c := crew.New(router.New(nil, nil), nil, nil)
	defer c.Close()

	var errEvents int
	cWithHook := crew.New(router.New(nil, nil), nil, &crew.Options{Hook: func(e agent.Event) {
		if e.Type == agent.EventAgentError {
			errEvents++
		}
	}})
	defer cWithHook.Close()

	_, execution, err := cWithHook.ProcessTracked(context.Background(), "anything", nil, nil)
	require.Error(t, err)
	assert.Equal(t, crew.StatusFailed, execution.Status)
	assert.Equal(t, 1, errEvents)

	_, err = c.Process(context.Background(), "anything", nil, nil)
	require.Error(t, err)
}

func TestSequentialChainsPriorOutput(t *testing.T) {
	sales := &stubAgent{role: agent.RoleSales, name: "Sales Agent", emoji: "💼", reply: "ANALYSIS: 12 stalled deals"}
	marketing := &stubAgent{role: agent.RoleMarketing, name: "Marketing Agent", emoji: "📣", reply: "campaign drafted for the stalled deals"}

	c := crew.New(router.New(&fakeLLM{content: multiAgentDecision}, nil), roster(sales, marketing), &crew.Options{
		Workflow: crew.WorkflowSequential,
	})
	defer c.Close()

	resp, execution, err := c.ProcessTracked(context.Background(), ambiguousQuery, nil, nil)
	require.NoError(t, err)

	// The final answer is the last agent's content verbatim.
	assert.Equal(t, "campaign drafted for the stalled deals", resp.Content)

	require.Equal(t, 1, marketing.callCount())
	secondInput := marketing.calls[0]
	assert.Contains(t, secondInput.query, "ANALYSIS: 12 stalled deals",
		"each step's input derives from the prior step's output")
	assert.Contains(t, secondInput.query, ambiguousQuery)

	// History extended with the prior step as an assistant turn.
	require.NotEmpty(t, secondInput.history)
	assert.Equal(t, "assistant", secondInput.history[len(secondInput.history)-1].Role)
	assert.Equal(t, "ANALYSIS: 12 stalled deals", secondInput.history[len(secondInput.history)-1].Content)

	require.Len(t, execution.Tasks, 2)
	assert.Equal(t, crew.StatusCompleted, execution.Status)
}

func TestParallelMergesInSequenceOrder(t *testing.T) {
	sales := &stubAgent{role: agent.RoleSales, name: "Sales Agent", emoji: "💼", reply: "sales view"}
	marketing := &stubAgent{role: agent.RoleMarketing, name: "Marketing Agent", emoji: "📣", reply: "marketing view"}

	c := crew.New(router.New(&fakeLLM{content: multiAgentDecision}, nil), roster(sales, marketing), &crew.Options{
		Workflow: crew.WorkflowParallel,
	})
	defer c.Close()

	resp, err := c.Process(context.Background(), ambiguousQuery, nil, nil)
	require.NoError(t, err)

	salesIdx := strings.Index(resp.Content, "💼 Sales Agent:")
	marketingIdx := strings.Index(resp.Content, "📣 Marketing Agent:")
	require.GreaterOrEqual(t, salesIdx, 0)
	require.Greater(t, marketingIdx, salesIdx, "merge follows sequence order, not completion order")
	assert.Contains(t, resp.Content, "\n\n---\n\n")
	assert.Contains(t, resp.Content, "sales view")
	assert.Contains(t, resp.Content, "marketing view")
}

func TestParallelSurvivesOneFailingAgent(t *testing.T) {
	decision := `{"targetAgent":"sales","confidence":0.75,"reasoning":"spans teams","requiresMultiAgent":true,"agentSequence":["sales","marketing","research"]}`
	sales := &stubAgent{role: agent.RoleSales, name: "Sales Agent", emoji: "💼", reply: "sales view"}
	marketing := &stubAgent{role: agent.RoleMarketing, name: "Marketing Agent", emoji: "📣", err: errors.New("rate limited")}
	research := &stubAgent{role: agent.RoleResearch, name: "Research Agent", emoji: "🔬", reply: "research view"}

	c := crew.New(router.New(&fakeLLM{content: decision}, nil), roster(sales, marketing, research), &crew.Options{
		Workflow: crew.WorkflowParallel,
	})
	defer c.Close()

	resp, execution, err := c.ProcessTracked(context.Background(), ambiguousQuery, nil, nil)
	require.NoError(t, err, "a per-agent failure never propagates out of Process")

	assert.Contains(t, resp.Content, "sales view")
	assert.Contains(t, resp.Content, "research view")
	assert.NotContains(t, resp.Content, "Marketing Agent:")

	require.Len(t, execution.Tasks, 3)
	statusByRole := map[agent.Role]crew.Status{}
	for _, task := range execution.Tasks {
		statusByRole[task.AgentRole] = task.Status
	}
	assert.Equal(t, crew.StatusFailed, statusByRole[agent.RoleMarketing])
	assert.Equal(t, crew.StatusCompleted, statusByRole[agent.RoleSales])
	assert.Equal(t, crew.StatusCompleted, statusByRole[agent.RoleResearch])
	assert.Equal(t, crew.StatusCompleted, execution.Status)
}

func TestParallelAllFailingYieldsNeutralResponse(t *testing.T) {
	sales := &stubAgent{role: agent.RoleSales, name: "Sales Agent", emoji: "💼", err: errors.New("down")}
	marketing := &stubAgent{role: agent.RoleMarketing, name: "Marketing Agent", emoji: "📣", err: errors.New("down")}

	c := crew.New(router.New(&fakeLLM{content: multiAgentDecision}, nil), roster(sales, marketing), &crew.Options{
		Workflow: crew.WorkflowParallel,
	})
	defer c.Close()

	resp, err := c.Process(context.Background(), ambiguousQuery, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "No responses generated.", resp.Content)
}

func TestParallelSingleResponseReturnedUnmodified(t *testing.T) {
	decision := `{"targetAgent":"sales","confidence":0.75,"reasoning":"one team","requiresMultiAgent":true,"agentSequence":["sales"]}`
	sales := &stubAgent{role: agent.RoleSales, name: "Sales Agent", emoji: "💼", reply: "solo view"}

	c := crew.New(router.New(&fakeLLM{content: decision}, nil), roster(sales), &crew.Options{
		Workflow: crew.WorkflowParallel,
	})
	defer c.Close()

	resp, err := c.Process(context.Background(), ambiguousQuery, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "solo view", resp.Content, "a single response skips labeling entirely")
}

func TestHierarchicalWithoutTriggerReturnsPrimary(t *testing.T) {
	sales := &stubAgent{role: agent.RoleSales, name: "Sales Agent", emoji: "💼", reply: "complete confident answer"}
	marketing := &stubAgent{role: agent.RoleMarketing, name: "Marketing Agent", emoji: "📣", reply: "unused"}

	c := crew.New(router.New(&fakeLLM{content: multiAgentDecision}, nil), roster(sales, marketing), &crew.Options{
		Workflow: crew.WorkflowHierarchical,
	})
	defer c.Close()

	resp, err := c.Process(context.Background(), ambiguousQuery, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "complete confident answer", resp.Content)
	assert.Zero(t, marketing.callCount())
}

func TestHierarchicalDelegatesOnTriggerPhrase(t *testing.T) {
	sales := &stubAgent{role: agent.RoleSales, name: "Sales Agent", emoji: "💼",
		reply: "numbers look off, further investigation is warranted"}
	marketing := &stubAgent{role: agent.RoleMarketing, name: "Marketing Agent", emoji: "📣",
		reply: "the dip matches the paused campaign"}

	c := crew.New(router.New(&fakeLLM{content: multiAgentDecision}, nil), roster(sales, marketing), &crew.Options{
		Workflow: crew.WorkflowHierarchical,
	})
	defer c.Close()

	resp, err := c.Process(context.Background(), ambiguousQuery, nil, nil)
	require.NoError(t, err)

	assert.Contains(t, resp.Content, "further investigation is warranted")
	assert.Contains(t, resp.Content, "Additional Insights")
	assert.Contains(t, resp.Content, "Marketing Agent: the dip matches the paused campaign")
	require.Equal(t, 1, marketing.callCount())
	assert.Contains(t, marketing.calls[0].query, "Review and enhance")
}

func TestConsensusRunsParallel(t *testing.T) {
	sales := &stubAgent{role: agent.RoleSales, name: "Sales Agent", emoji: "💼", reply: "sales view"}
	marketing := &stubAgent{role: agent.RoleMarketing, name: "Marketing Agent", emoji: "📣", reply: "marketing view"}

	c := crew.New(router.New(&fakeLLM{content: multiAgentDecision}, nil), roster(sales, marketing), &crew.Options{
		Workflow: crew.WorkflowConsensus,
	})
	defer c.Close()

	resp, err := c.Process(context.Background(), ambiguousQuery, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "💼 Sales Agent:")
	assert.Contains(t, resp.Content, "📣 Marketing Agent:")
}

func TestSequentialFailureIsFatal(t *testing.T) {
	sales := &stubAgent{role: agent.RoleSales, name: "Sales Agent", emoji: "💼", err: errors.New("boom")}
	marketing := &stubAgent{role: agent.RoleMarketing, name: "Marketing Agent", emoji: "📣", reply: "unused"}

	c := crew.New(router.New(&fakeLLM{content: multiAgentDecision}, nil), roster(sales, marketing), &crew.Options{
		Workflow: crew.WorkflowSequential,
	})
	defer c.Close()

	_, execution, err := c.ProcessTracked(context.Background(), ambiguousQuery, nil, nil)
	require.Error(t, err)
	assert.Equal(t, crew.StatusFailed, execution.Status)
	assert.Zero(t, marketing.callCount())
}
