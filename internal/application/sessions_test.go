package application

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionsLifecycle(t *testing.T) {
	r := NewSessions()
	s := r.Open()
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, StateIdle, s.State())

	got, err := r.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	closed, err := r.Close(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, closed)
	assert.Zero(t, r.Len())

	_, err = r.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = r.Close(uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
