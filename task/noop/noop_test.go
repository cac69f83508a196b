package noop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_MarkPerformed(t *testing.T) {
	tracker := NewTracker()

	ctx := context.Background()
	assert.NoError(t, tracker.MarkPerformed(ctx, "a"))
	assert.NoError(t, tracker.MarkPerformed(ctx, "b"))

	assert.Equal(t, []string{"a", "b"}, tracker.Performed())
	assert.NoError(t, tracker.Close())
}

func TestTracker_Empty(t *testing.T) {
	assert.Empty(t, NewTracker().Performed())
}
