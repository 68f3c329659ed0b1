package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crewmind/crewmind-go/pkg/llm"
)

// shortTermExcerpts is how many recent short-term memories are injected
// into the system prompt.
const shortTermExcerpts = 5

// Definition is the static description of a specialist.
type Definition struct {
	Role         Role
	Name         string
	Emoji        string
	Description  string
	SystemPrompt string

	// DomainContext is injected between the base system prompt and the
	// generic tool/memory block.
	DomainContext string

	// ToolCategories filters the request's tools down to role-relevant
	// ones; empty keeps all tools.
	ToolCategories []string

	// RequiredCapabilities, when declared, make CanHandle return true
	// only if the user's tool set covers every entry.
	RequiredCapabilities []string
}

// Config carries the runtime dependencies shared by all agents.
type Config struct {
	// LLM is the completion provider. Required.
	LLM llm.Provider

	// Temperature for completion calls. Defaults to 0.7.
	Temperature float64

	// MaxTokens for completion calls. Defaults to 1000.
	MaxTokens int

	// Hook receives lifecycle events. Optional.
	Hook EventHook

	// Logger is the structured logger (zap.NewNop() if nil).
	Logger *zap.Logger
}

// BaseAgent implements the execution contract for a role definition.
//
// Specialists are BaseAgent instances parameterized by a Definition; an
// implementation with bespoke Execute behavior can embed BaseAgent and
// override it.
type BaseAgent struct {
	id          string
	def         Definition
	llm         llm.Provider
	temperature float64
	maxTokens   int
	hook        EventHook
	logger      *zap.Logger
}

// NewBaseAgent creates an agent from a role definition.
func NewBaseAgent(def Definition, cfg *Config) *BaseAgent {
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.7
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1000
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BaseAgent{
		id:          fmt.Sprintf("%s-%s", def.Role, uuid.NewString()[:8]),
		def:         def,
		llm:         cfg.LLM,
		temperature: temperature,
		maxTokens:   maxTokens,
		hook:        cfg.Hook,
		logger:      logger.With(zap.String("agent", string(def.Role))),
	}
}

// ID returns the unique id of this agent instance.
func (a *BaseAgent) ID() string { return a.id }

// Role returns the agent's role.
func (a *BaseAgent) Role() Role { return a.def.Role }

// Name returns the agent's display name.
func (a *BaseAgent) Name() string { return a.def.Name }

// Emoji returns the agent's display emoji.
func (a *BaseAgent) Emoji() string { return a.def.Emoji }

// Description explains what the agent specializes in.
func (a *BaseAgent) Description() string { return a.def.Description }

// CanHandle reports eligibility for a query.
//
// The default returns true unless the definition declares required
// capabilities, in which case the user's tool set must cover every one.
func (a *BaseAgent) CanHandle(query string, actx *Context) bool {
	if len(a.def.RequiredCapabilities) == 0 {
		return true
	}
	for _, capability := range a.def.RequiredCapabilities {
		if !toolsCover(actx.Tools, capability) {
			return false
		}
	}
	return true
}

// Process runs the full agent lifecycle.
//
// It records a start event, builds the message list (system prompt, domain
// context, tool/memory block, history, query), filters the request's tools
// down to the agent's categories, invokes Execute, stamps latency, and
// records a completion or error event.
func (a *BaseAgent) Process(ctx context.Context, query string, actx *Context, history []Message) (*Response, error) {
	start := time.Now()
	a.emit(Event{Type: EventAgentStart, AgentID: a.id, Role: a.def.Role, Query: query, At: start})

	tools := a.filterTools(actx.Tools)
	messages := a.buildMessages(query, actx, history, tools)

	resp, err := a.Execute(ctx, messages, tools, actx)
	if err != nil {
		a.emit(Event{Type: EventAgentError, AgentID: a.id, Role: a.def.Role, Query: query, Err: err, At: time.Now()})
		a.logger.Error("agent execution failed", zap.Error(err))
		return nil, err
	}

	if resp.Metadata == nil {
		resp.Metadata = &ResponseMetadata{}
	}
	resp.Metadata.Latency = time.Since(start)

	a.emit(Event{Type: EventAgentComplete, AgentID: a.id, Role: a.def.Role, Query: query, At: time.Now()})
	return resp, nil
}

// Execute calls the completion service with the message list and tool
// schemas.
//
// If the service requests tool calls, each named tool is executed with
// per-call success/error captured independently, a synthetic tool-role
// message summarizing all results is appended, and the completion service
// is re-invoked exactly once for the final answer. Deeper tool-call chains
// are not supported by the contract.
func (a *BaseAgent) Execute(ctx context.Context, messages []llm.Message, tools []LoadedTool, actx *Context) (*Response, error) {
	opts := []llm.CompleteOption{
		llm.WithTemperature(a.temperature),
		llm.WithMaxTokens(a.maxTokens),
	}
	if len(tools) > 0 {
		opts = append(opts, llm.WithTools(toolSchemas(tools)))
	}

	completion, err := a.llm.Complete(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		AgentID:   a.id,
		AgentRole: a.def.Role,
		Metadata:  &ResponseMetadata{},
	}
	if completion.Usage != nil {
		resp.Metadata.Tokens = completion.Usage.TotalTokens
	}
	resp.Metadata.Model = completion.Model

	if len(completion.ToolCalls) == 0 {
		resp.Content = completion.Content
		return resp, nil
	}

	// The model asked for tools: run them all, then one follow-up call.
	results := make([]string, 0, len(completion.ToolCalls))
	for _, call := range completion.ToolCalls {
		resp.ToolsUsed = append(resp.ToolsUsed, call.Name)
		results = append(results, a.runTool(ctx, call, tools))
	}

	followUp := append(messages,
		llm.Message{Role: "assistant", Content: completion.Content, ToolCalls: completion.ToolCalls},
		llm.Message{Role: "tool", ToolCallID: completion.ToolCalls[0].ID, Content: "Tool results:\n" + strings.Join(results, "\n")},
	)

	final, err := a.llm.Complete(ctx, followUp,
		llm.WithTemperature(a.temperature),
		llm.WithMaxTokens(a.maxTokens),
	)
	if err != nil {
		return nil, err
	}

	resp.Content = final.Content
	if final.Usage != nil {
		resp.Metadata.Tokens += final.Usage.TotalTokens
	}
	return resp, nil
}

// runTool executes one requested tool call, capturing failure as a result
// line so one failing tool never aborts the others.
func (a *BaseAgent) runTool(ctx context.Context, call llm.ToolCall, tools []LoadedTool) string {
	var tool *LoadedTool
	for i := range tools {
		if tools[i].Name == call.Name {
			tool = &tools[i]
			break
		}
	}
	if tool == nil || tool.Execute == nil {
		return fmt.Sprintf("%s: Error - tool not available", call.Name)
	}

	args := map[string]interface{}{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return fmt.Sprintf("%s: Error - invalid arguments: %v", call.Name, err)
		}
	}

	result, err := tool.Execute(ctx, args)
	if err != nil {
		a.logger.Warn("tool execution failed",
			zap.String("tool", call.Name),
			zap.Error(err))
		return fmt.Sprintf("%s: Error - %v", call.Name, err)
	}
	return fmt.Sprintf("%s: %s", call.Name, result)
}

// buildMessages assembles the full message list for a completion call.
// Order: base system prompt, domain context, tool/memory context, history,
// current query.
func (a *BaseAgent) buildMessages(query string, actx *Context, history []Message, tools []LoadedTool) []llm.Message {
	var system strings.Builder
	system.WriteString(a.def.SystemPrompt)

	if a.def.DomainContext != "" {
		system.WriteString("\n\n")
		system.WriteString(a.def.DomainContext)
	}

	if len(tools) > 0 {
		system.WriteString("\n\nAvailable tools:\n")
		for _, t := range tools {
			fmt.Fprintf(&system, "- %s: %s\n", t.Name, t.Description)
		}
	}

	if actx.Memory != nil && len(actx.Memory.ShortTerm) > 0 {
		system.WriteString("\nRecent context about this user:\n")
		excerpts := actx.Memory.ShortTerm
		if len(excerpts) > shortTermExcerpts {
			excerpts = excerpts[:shortTermExcerpts]
		}
		for _, item := range excerpts {
			fmt.Fprintf(&system, "- %s\n", item.Content)
		}
	}

	messages := []llm.Message{{Role: "system", Content: system.String()}}
	for _, msg := range history {
		messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: query})
	return messages
}

// filterTools keeps the tools matching the agent's declared categories.
// An agent with no declared categories keeps all tools.
func (a *BaseAgent) filterTools(tools []LoadedTool) []LoadedTool {
	if len(a.def.ToolCategories) == 0 {
		return tools
	}

	var filtered []LoadedTool
	for _, t := range tools {
		for _, category := range a.def.ToolCategories {
			if containsFold(t.Toolkit, category) || containsFold(t.Name, category) {
				filtered = append(filtered, t)
				break
			}
		}
	}
	return filtered
}

func (a *BaseAgent) emit(event Event) {
	if a.hook != nil {
		a.hook(event)
	}
}

// toolSchemas converts loaded tools into the schemas sent to the model.
func toolSchemas(tools []LoadedTool) []llm.ToolSchema {
	schemas := make([]llm.ToolSchema, len(tools))
	for i, t := range tools {
		params := t.Parameters
		if params == nil {
			params = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
		}
		schemas[i] = llm.ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  params,
		}
	}
	return schemas
}

// toolsCover reports whether any tool's name or toolkit covers a capability.
func toolsCover(tools []LoadedTool, capability string) bool {
	for _, t := range tools {
		if containsFold(t.Name, capability) || containsFold(t.Toolkit, capability) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
