package crew

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewmind/crewmind-go/pkg/agent"
)

type lifecycleAgent struct{}

func (lifecycleAgent) Role() agent.Role                      { return agent.RoleGeneral }
func (lifecycleAgent) Name() string                          { return "General Assistant" }
func (lifecycleAgent) Emoji() string                         { return "\U0001F916" }
func (lifecycleAgent) Description() string                   { return "handles anything" }
func (lifecycleAgent) CanHandle(string, *agent.Context) bool { return true }

func (lifecycleAgent) Process(context.Context, string, *agent.Context, []agent.Message) (*agent.Response, error) {
	return &agent.Response{Content: "ok"}, nil
}

func TestTaskLifecycleTransitions(t *testing.T) {
	execution := newExecution("summarize the week", WorkflowSequential)
	task := execution.newTask(lifecycleAgent{}, "summarize the week")

	require.Len(t, execution.Tasks, 1)
	assert.Equal(t, StatusPending, task.Status, "a created task has not run yet")
	assert.True(t, task.StartedAt.IsZero())

	task.start()
	assert.Equal(t, StatusRunning, task.Status)
	assert.False(t, task.StartedAt.IsZero())

	task.complete("done")
	assert.Equal(t, StatusCompleted, task.Status)
	assert.Equal(t, "done", task.Output)
	assert.False(t, task.EndedAt.IsZero())
}

func TestTaskFailRecordsError(t *testing.T) {
	execution := newExecution("summarize the week", WorkflowParallel)
	task := execution.newTask(lifecycleAgent{}, "summarize the week")

	task.start()
	task.fail(errors.New("agent unavailable"))

	assert.Equal(t, StatusFailed, task.Status)
	assert.Equal(t, "agent unavailable", task.Error)
	assert.False(t, task.EndedAt.IsZero())
}
