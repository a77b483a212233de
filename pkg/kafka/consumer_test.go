package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumer_Check(t *testing.T) {
	c := &Consumer{}
	require.NoError(t, c.Check(context.Background()))

	broker := errors.New("broker unreachable")
	assert.Equal(t, 1, c.recordFetch(broker))
	assert.Equal(t, 2, c.recordFetch(broker))

	err := c.Check(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, broker)
	assert.Contains(t, err.Error(), "2 consecutive fetch failures")

	assert.Equal(t, 0, c.recordFetch(nil))
	assert.NoError(t, c.Check(context.Background()))
}
