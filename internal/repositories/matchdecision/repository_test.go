package matchdecision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkEnd(t *testing.T) {
	// Small runs fit one chunk.
	assert.Equal(t, 3, chunkEnd(0, 3))

	// Large runs split at the batch size with a short tail.
	assert.Equal(t, insertBatchSize, chunkEnd(0, 1200))
	assert.Equal(t, 2*insertBatchSize, chunkEnd(insertBatchSize, 1200))
	assert.Equal(t, 1200, chunkEnd(2*insertBatchSize, 1200))
}
