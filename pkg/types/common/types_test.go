package common

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSuccessResponse(t *testing.T) {
	t.Parallel()

	resp := NewSuccessResponse(map[string]int{"sections": 3})
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
	assert.Equal(t, 3, resp.Data["sections"])
	assert.False(t, resp.Timestamp.IsZero())
}

func TestNewErrorResponse(t *testing.T) {
	t.Parallel()

	resp := NewErrorResponse("RAG_001", "unknown domain")
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "RAG_001", resp.Error.Code)
}

func TestNewID(t *testing.T) {
	t.Parallel()

	a, b := NewID(), NewID()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}
