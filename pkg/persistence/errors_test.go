package persistence

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkflowError(t *testing.T) {
	err := NewWorkflowError("GetByID", "wf-1", ErrWorkflowNotFound)

	assert.Equal(t, "GetByID operation failed for workflow wf-1: workflow not found", err.Error())
	assert.True(t, IsWorkflowNotFound(err))
	assert.False(t, IsExecutionNotFound(err))
}

func TestExecutionError(t *testing.T) {
	err := NewExecutionError("Save", "exec-1", errors.New("disk full"))

	assert.Contains(t, err.Error(), "exec-1")
	assert.False(t, IsExecutionNotFound(err))
	assert.True(t, IsExecutionNotFound(NewExecutionError("GetByID", "exec-2", ErrExecutionNotFound)))
	assert.True(t, IsEnvironmentNotFound(ErrEnvironmentNotFound))
}
