// Package agent defines the execution contract shared by every specialist
// agent: build prompt, call the completion service, optionally execute
// tools, return a structured response.
package agent

import (
	"context"
	"time"

	"github.com/crewmind/crewmind-go/pkg/llm"
	"github.com/crewmind/crewmind-go/pkg/memory"
)

// Role identifies a specialist agent.
type Role string

const (
	RoleSales     Role = "sales"
	RoleMarketing Role = "marketing"
	RoleResearch  Role = "research"
	RoleCode      Role = "code"
	RoleData      Role = "data"
	RoleGeneral   Role = "general"
)

// Roles lists every registered role, specialists first.
func Roles() []Role {
	return []Role{RoleSales, RoleMarketing, RoleResearch, RoleCode, RoleData, RoleGeneral}
}

// Message is one turn in a conversation. Insertion order is chronological
// and semantically meaningful.
type Message struct {
	// Role is "system", "user", "assistant", or "tool".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`

	// AgentID identifies the agent that produced an assistant turn.
	AgentID string `json:"agent_id,omitempty"`

	// ToolCalls carries tool invocations attached to an assistant turn.
	ToolCalls []llm.ToolCall `json:"tool_calls,omitempty"`
}

// ResponseMetadata carries optional accounting for one agent invocation.
type ResponseMetadata struct {
	// Tokens is the total token count reported by the provider.
	Tokens int `json:"tokens,omitempty"`

	// Model is the model that produced the response.
	Model string `json:"model,omitempty"`

	// Latency is the wall-clock duration of the invocation.
	Latency time.Duration `json:"latency,omitempty"`

	// Reasoning optionally explains how the agent arrived at the answer.
	Reasoning string `json:"reasoning,omitempty"`

	// Sources optionally lists material the answer drew on.
	Sources []string `json:"sources,omitempty"`
}

// Response is the immutable result of one agent invocation.
type Response struct {
	// Content is the natural-language answer.
	Content string `json:"content"`

	// AgentID identifies the producing agent instance.
	AgentID string `json:"agent_id"`

	// AgentRole is the role of the producing agent.
	AgentRole Role `json:"agent_role"`

	// ToolsUsed names the tools executed during the invocation.
	ToolsUsed []string `json:"tools_used,omitempty"`

	// Metadata carries optional accounting.
	Metadata *ResponseMetadata `json:"metadata,omitempty"`
}

// LoadedTool is a tool made available to agents for one request.
// The tool itself is opaque to the core; failures should surface as
// returned errors rather than panics.
type LoadedTool struct {
	// Name is the tool name presented to the model.
	Name string `json:"name"`

	// Description explains what the tool does.
	Description string `json:"description"`

	// Toolkit names the toolkit/connection the tool belongs to.
	Toolkit string `json:"toolkit"`

	// Parameters is a JSON Schema object describing the arguments.
	Parameters map[string]interface{} `json:"parameters,omitempty"`

	// Execute runs the tool with decoded arguments.
	Execute func(ctx context.Context, args map[string]interface{}) (string, error) `json:"-"`
}

// Context is the per-request immutable bundle passed by reference to every
// agent invocation within one top-level request.
type Context struct {
	// UserID identifies the requesting user.
	UserID string `json:"user_id"`

	// ConversationID identifies the conversation.
	ConversationID string `json:"conversation_id"`

	// Tools are the tools loaded for the user.
	Tools []LoadedTool `json:"tools,omitempty"`

	// Memory is the memory excerpt assembled for this request.
	Memory *memory.AgentMemory `json:"memory,omitempty"`
}

// EventType classifies lifecycle events emitted around agent invocations.
type EventType string

const (
	EventAgentStart    EventType = "agent_start"
	EventAgentComplete EventType = "agent_complete"
	EventAgentError    EventType = "agent_error"
)

// Event is a lifecycle notification.
type Event struct {
	Type    EventType `json:"type"`
	AgentID string    `json:"agent_id"`
	Role    Role      `json:"role"`
	Query   string    `json:"query,omitempty"`
	Err     error     `json:"-"`
	At      time.Time `json:"at"`
}

// EventHook receives lifecycle events. Hooks must be fast and must not
// block; they run on the request path.
type EventHook func(Event)

// Agent is the contract every specialist implements.
//
// Process is the only entry point callers use; CanHandle is a cheap
// eligibility check consulted during routing and crew assembly.
type Agent interface {
	// Role returns the agent's role.
	Role() Role

	// Name returns the agent's display name.
	Name() string

	// Emoji returns the agent's display emoji.
	Emoji() string

	// Description explains what the agent specializes in.
	Description() string

	// CanHandle reports whether the agent is eligible for the query
	// given the request context.
	CanHandle(query string, actx *Context) bool

	// Process runs the full lifecycle and returns a structured response.
	Process(ctx context.Context, query string, actx *Context, history []Message) (*Response, error)
}
