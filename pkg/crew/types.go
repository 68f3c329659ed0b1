package crew

import (
	"time"

	"github.com/google/uuid"

	"github.com/crewmind/crewmind-go/pkg/agent"
)

// Workflow selects the multi-agent combination strategy.
type Workflow string

const (
	WorkflowSequential   Workflow = "sequential"
	WorkflowParallel     Workflow = "parallel"
	WorkflowHierarchical Workflow = "hierarchical"
	WorkflowConsensus    Workflow = "consensus"
)

// Status tracks execution and task lifecycle. Transitions are forward-only:
// pending → running → completed | failed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Task records one agent invocation within an execution.
type Task struct {
	ID        string     `json:"id"`
	AgentID   string     `json:"agent_id"`
	AgentRole agent.Role `json:"agent_role"`
	Query     string     `json:"query"`
	Status    Status     `json:"status"`
	Output    string     `json:"output,omitempty"`
	Error     string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   time.Time  `json:"ended_at,omitempty"`
}

// Execution is the bookkeeping record for one Process call. It is owned
// exclusively by that call; tasks are appended as agents are invoked.
type Execution struct {
	ID            string    `json:"id"`
	Query         string    `json:"query"`
	Workflow      Workflow  `json:"workflow"`
	Status        Status    `json:"status"`
	Tasks         []*Task   `json:"tasks"`
	FinalResponse string    `json:"final_response,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at,omitempty"`
}

func newExecution(query string, workflow Workflow) *Execution {
	return &Execution{
		ID:        uuid.NewString(),
		Query:     query,
		Workflow:  workflow,
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}
}

func (e *Execution) newTask(a agent.Agent, query string) *Task {
	task := &Task{
		ID:        uuid.NewString(),
		AgentID:   agentID(a),
		AgentRole: a.Role(),
		Query:     query,
		Status:    StatusPending,
	}
	e.Tasks = append(e.Tasks, task)
	return task
}

// start marks the task running at the moment its agent is invoked.
func (t *Task) start() {
	t.Status = StatusRunning
	t.StartedAt = time.Now()
}

func (t *Task) complete(output string) {
	t.Status = StatusCompleted
	t.Output = output
	t.EndedAt = time.Now()
}

func (t *Task) fail(err error) {
	t.Status = StatusFailed
	t.Error = err.Error()
	t.EndedAt = time.Now()
}

func (e *Execution) succeed(finalResponse string) {
	e.Status = StatusCompleted
	e.FinalResponse = finalResponse
	e.EndedAt = time.Now()
}

func (e *Execution) fail() {
	e.Status = StatusFailed
	e.EndedAt = time.Now()
}

// agentID extracts a stable id when the implementation exposes one.
func agentID(a agent.Agent) string {
	if ider, ok := a.(interface{ ID() string }); ok {
		return ider.ID()
	}
	return string(a.Role())
}
