// Package crew orchestrates multi-agent workflows over a roster of
// specialist agents, a query router, and per-user memory.
package crew

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/crewmind/crewmind-go/pkg/agent"
	"github.com/crewmind/crewmind-go/pkg/memory"
	"github.com/crewmind/crewmind-go/pkg/router"
)

// noResponses is returned when a multi-agent run produces zero successful
// outputs.
const noResponses = "No responses generated."

// delegationTriggers are the phrases in a primary agent's answer that make
// the hierarchical strategy fan out to the remaining agents. A literal,
// inspectable table rather than a classifier.
var delegationTriggers = []string{
	"might want to check",
	"further investigation",
	"more research needed",
	"additional analysis",
	"consult",
}

// learnQueueSize bounds the fire-and-forget learning queue. Overflow is
// dropped with a log line, never blocking the response path.
const learnQueueSize = 64

type learnRequest struct {
	userID   string
	messages []memory.ConversationMessage
	role     agent.Role
}

// Options configures a Crew.
type Options struct {
	// Workflow selects the multi-agent strategy. Defaults to sequential.
	Workflow Workflow

	// Memory enables per-user memory injection and post-response
	// learning. Optional.
	Memory *memory.Registry

	// Hook receives agent lifecycle events. Optional.
	Hook agent.EventHook

	// Logger is the structured logger (zap.NewNop() if nil).
	Logger *zap.Logger
}

// Crew coordinates routing, agent execution, and memory for one roster of
// agents. Process may be called concurrently; each call owns its own
// Execution record.
type Crew struct {
	router   *router.Router
	agents   map[agent.Role]agent.Agent
	workflow Workflow
	memory   *memory.Registry
	hook     agent.EventHook
	logger   *zap.Logger

	learnCh   chan learnRequest
	learnWG   sync.WaitGroup
	closeOnce sync.Once
}

// New creates a Crew over the given router and agent roster.
func New(r *router.Router, agents map[agent.Role]agent.Agent, opts *Options) *Crew {
	if opts == nil {
		opts = &Options{}
	}
	workflow := opts.Workflow
	if workflow == "" {
		workflow = WorkflowSequential
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Crew{
		router:   r,
		agents:   agents,
		workflow: workflow,
		memory:   opts.Memory,
		hook:     opts.Hook,
		logger:   logger.Named("crew"),
		learnCh:  make(chan learnRequest, learnQueueSize),
	}

	c.learnWG.Add(1)
	go c.learnWorker()
	return c
}

// Close drains and stops the background learning worker.
func (c *Crew) Close() {
	c.closeOnce.Do(func() {
		close(c.learnCh)
	})
	c.learnWG.Wait()
}

// Process answers a query, routing it to one or more agents according to
// the routing decision and the configured workflow.
func (c *Crew) Process(ctx context.Context, query string, actx *agent.Context, history []agent.Message) (*agent.Response, error) {
	resp, _, err := c.ProcessTracked(ctx, query, actx, history)
	return resp, err
}

// ProcessTracked is Process plus the bookkeeping record of the run. The
// Execution is returned in both the success and failure case.
func (c *Crew) ProcessTracked(ctx context.Context, query string, actx *agent.Context, history []agent.Message) (*agent.Response, *Execution, error) {
	execution := newExecution(query, c.workflow)

	if actx == nil {
		actx = &agent.Context{}
	}
	c.injectMemory(ctx, query, actx)

	resp, err := c.run(ctx, query, actx, history, execution)
	if err != nil {
		execution.fail()
		c.emit(agent.Event{Type: agent.EventAgentError, Query: query, Err: err, At: execution.EndedAt})
		c.logger.Error("crew execution failed",
			zap.String("execution_id", execution.ID),
			zap.Error(err))
		return nil, execution, err
	}

	execution.succeed(resp.Content)
	c.queueLearning(actx, query, resp)
	return resp, execution, nil
}

func (c *Crew) run(ctx context.Context, query string, actx *agent.Context, history []agent.Message, execution *Execution) (*agent.Response, error) {
	if len(c.agents) == 0 {
		return nil, fmt.Errorf("crewmind: Process: no agents available")
	}

	decision := c.router.Route(ctx, &router.RoutingContext{
		Query:               query,
		ConversationHistory: history,
		AvailableAgents:     c.agentDescriptions(),
		UserToolkits:        toolkits(actx),
	})
	c.logger.Debug("routing decision",
		zap.String("target", string(decision.TargetAgent)),
		zap.Float64("confidence", decision.Confidence),
		zap.Bool("multi_agent", decision.RequiresMultiAgent))

	if !decision.RequiresMultiAgent {
		return c.runSingle(ctx, decision.TargetAgent, query, actx, history, execution)
	}

	sequence := c.resolveSequence(decision)
	if len(sequence) == 0 {
		return c.runSingle(ctx, decision.TargetAgent, query, actx, history, execution)
	}

	switch c.workflow {
	case WorkflowParallel, WorkflowConsensus:
		// Consensus surfaces all viewpoints; a voting or arbiter stage
		// is an open extension point.
		return c.runParallel(ctx, sequence, query, actx, history, execution)
	case WorkflowHierarchical:
		return c.runHierarchical(ctx, sequence, query, actx, history, execution)
	default:
		return c.runSequential(ctx, sequence, query, actx, history, execution)
	}
}

// runSingle invokes one agent, falling back to general when the target is
// not in the roster.
func (c *Crew) runSingle(ctx context.Context, role agent.Role, query string, actx *agent.Context, history []agent.Message, execution *Execution) (*agent.Response, error) {
	target, ok := c.agents[role]
	if !ok {
		target, ok = c.agents[agent.RoleGeneral]
		if !ok {
			return nil, fmt.Errorf("crewmind: Process: no agent for role %q and no general fallback", role)
		}
	}

	task := execution.newTask(target, query)
	task.start()
	resp, err := target.Process(ctx, query, actx, history)
	if err != nil {
		task.fail(err)
		return nil, err
	}
	task.complete(resp.Content)
	return resp, nil
}

// runSequential chains agents: each step's input is built from the prior
// step's full output plus the original query; the final answer is the last
// agent's content verbatim.
func (c *Crew) runSequential(ctx context.Context, sequence []agent.Agent, query string, actx *agent.Context, history []agent.Message, execution *Execution) (*agent.Response, error) {
	chained := append([]agent.Message(nil), history...)

	var last *agent.Response
	for i, step := range sequence {
		stepQuery := query
		if last != nil {
			stepQuery = fmt.Sprintf("Previous agent's work:\n%s\n\nOriginal request: %s\n\nContinue or refine the work above.", last.Content, query)
		}

		task := execution.newTask(step, stepQuery)
		task.start()
		resp, err := step.Process(ctx, stepQuery, actx, chained)
		if err != nil {
			task.fail(err)
			return nil, fmt.Errorf("crewmind: Process: sequential step %d (%s): %w", i+1, step.Role(), err)
		}
		task.complete(resp.Content)

		chained = append(chained, agent.Message{
			Role:    "assistant",
			Content: resp.Content,
			AgentID: resp.AgentID,
		})
		last = resp
	}
	return last, nil
}

// runParallel fans out all agents against the same query and history
// snapshot. A per-agent failure marks its task failed without aborting the
// siblings; the merge iterates sequence order, not completion order.
func (c *Crew) runParallel(ctx context.Context, sequence []agent.Agent, query string, actx *agent.Context, history []agent.Message, execution *Execution) (*agent.Response, error) {
	tasks := make([]*Task, len(sequence))
	for i, member := range sequence {
		tasks[i] = execution.newTask(member, query)
	}

	responses := make([]*agent.Response, len(sequence))
	var wg sync.WaitGroup
	for i, member := range sequence {
		wg.Add(1)
		go func(i int, member agent.Agent) {
			defer wg.Done()
			tasks[i].start()
			resp, err := member.Process(ctx, query, actx, history)
			if err != nil {
				tasks[i].fail(err)
				c.logger.Warn("parallel agent failed",
					zap.String("role", string(member.Role())),
					zap.Error(err))
				return
			}
			tasks[i].complete(resp.Content)
			responses[i] = resp
		}(i, member)
	}
	wg.Wait()

	return c.combine(sequence, responses), nil
}

// runHierarchical lets the first agent answer as primary; the remaining
// agents review and enhance only when the primary's answer contains a
// delegation trigger.
func (c *Crew) runHierarchical(ctx context.Context, sequence []agent.Agent, query string, actx *agent.Context, history []agent.Message, execution *Execution) (*agent.Response, error) {
	primary := sequence[0]
	task := execution.newTask(primary, query)
	task.start()
	primaryResp, err := primary.Process(ctx, query, actx, history)
	if err != nil {
		task.fail(err)
		return nil, fmt.Errorf("crewmind: Process: hierarchical primary (%s): %w", primary.Role(), err)
	}
	task.complete(primaryResp.Content)

	if len(sequence) == 1 || !needsDelegation(primaryResp.Content) {
		return primaryResp, nil
	}

	var insights strings.Builder
	insights.WriteString(primaryResp.Content)
	insights.WriteString("\n\nAdditional Insights:\n")

	reviewQuery := fmt.Sprintf("Review and enhance this answer to %q:\n\n%s", query, primaryResp.Content)
	for _, reviewer := range sequence[1:] {
		reviewTask := execution.newTask(reviewer, reviewQuery)
		reviewTask.start()
		resp, err := reviewer.Process(ctx, reviewQuery, actx, history)
		if err != nil {
			reviewTask.fail(err)
			c.logger.Warn("hierarchical reviewer failed",
				zap.String("role", string(reviewer.Role())),
				zap.Error(err))
			continue
		}
		reviewTask.complete(resp.Content)
		fmt.Fprintf(&insights, "\n%s: %s\n", reviewer.Name(), resp.Content)
	}

	combined := *primaryResp
	combined.Content = insights.String()
	return &combined, nil
}

// combine concatenates successful responses in sequence order, each labeled
// with the producing agent's emoji and name.
func (c *Crew) combine(sequence []agent.Agent, responses []*agent.Response) *agent.Response {
	var successful []*agent.Response
	var sections []string
	for i, resp := range responses {
		if resp == nil {
			continue
		}
		successful = append(successful, resp)
		sections = append(sections, fmt.Sprintf("%s %s:\n%s", sequence[i].Emoji(), sequence[i].Name(), resp.Content))
	}

	switch len(successful) {
	case 0:
		return &agent.Response{Content: noResponses, Metadata: &agent.ResponseMetadata{}}
	case 1:
		return successful[0]
	}

	combined := *successful[0]
	combined.Content = strings.Join(sections, "\n\n---\n\n")
	for _, resp := range successful[1:] {
		combined.ToolsUsed = append(combined.ToolsUsed, resp.ToolsUsed...)
	}
	return &combined
}

func needsDelegation(content string) bool {
	lowered := strings.ToLower(content)
	for _, trigger := range delegationTriggers {
		if strings.Contains(lowered, trigger) {
			return true
		}
	}
	return false
}

// resolveSequence maps the decision's agent sequence onto roster agents,
// skipping roles the roster does not have. Falls back to the single target
// when no sequence was given.
func (c *Crew) resolveSequence(decision *router.RoutingDecision) []agent.Agent {
	roles := decision.AgentSequence
	if len(roles) == 0 {
		roles = []agent.Role{decision.TargetAgent}
	}

	var sequence []agent.Agent
	for _, role := range roles {
		member, ok := c.agents[role]
		if !ok {
			c.logger.Warn("sequence role not in roster, skipping", zap.String("role", string(role)))
			continue
		}
		sequence = append(sequence, member)
	}
	return sequence
}

func (c *Crew) agentDescriptions() map[agent.Role]string {
	descriptions := make(map[agent.Role]string, len(c.agents))
	for role, member := range c.agents {
		descriptions[role] = member.Description()
	}
	return descriptions
}

// injectMemory fills actx.Memory from the registry when the caller did not
// provide one. Failure degrades to no memory, never to a request error.
func (c *Crew) injectMemory(ctx context.Context, query string, actx *agent.Context) {
	if c.memory == nil || actx.Memory != nil || actx.UserID == "" {
		return
	}
	mem, err := c.memory.BuildAgentMemory(ctx, actx.UserID, query)
	if err != nil {
		c.logger.Warn("memory injection failed, continuing without memory",
			zap.String("user_id", actx.UserID),
			zap.Error(err))
		return
	}
	actx.Memory = mem
}

// queueLearning hands the exchange to the background extraction worker.
// Queue overflow is dropped with a log line.
func (c *Crew) queueLearning(actx *agent.Context, query string, resp *agent.Response) {
	if c.memory == nil || actx.UserID == "" {
		return
	}

	req := learnRequest{
		userID: actx.UserID,
		role:   resp.AgentRole,
		messages: []memory.ConversationMessage{
			{Role: "user", Content: query},
			{Role: "assistant", Content: resp.Content},
		},
	}

	select {
	case c.learnCh <- req:
	default:
		c.logger.Warn("learning queue full, dropping exchange", zap.String("user_id", actx.UserID))
	}
}

func (c *Crew) learnWorker() {
	defer c.learnWG.Done()
	for req := range c.learnCh {
		manager, err := c.memory.Manager(req.userID)
		if err != nil {
			c.logger.Warn("learning skipped", zap.String("user_id", req.userID), zap.Error(err))
			continue
		}
		if _, err := manager.ExtractFromConversation(context.Background(), req.messages, string(req.role)); err != nil {
			c.logger.Warn("conversation extraction failed",
				zap.String("user_id", req.userID),
				zap.Error(err))
		}
	}
}

func (c *Crew) emit(event agent.Event) {
	if c.hook != nil {
		c.hook(event)
	}
}

func toolkits(actx *agent.Context) []string {
	seen := map[string]bool{}
	var names []string
	for _, tool := range actx.Tools {
		if tool.Toolkit == "" || seen[tool.Toolkit] {
			continue
		}
		seen[tool.Toolkit] = true
		names = append(names, tool.Toolkit)
	}
	return names
}
