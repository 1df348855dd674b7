package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorAggregates(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpEmbedding, 10*time.Millisecond)
	c.RecordTiming(OpEmbedding, 30*time.Millisecond)
	c.RecordError(OpEmbedding, 20*time.Millisecond, errors.New("boom"))
	c.RecordLLMUsage(OpModelGenerate, 100*time.Millisecond, 12, 5)

	snap := c.Snapshot()
	require.Len(t, snap.Operations, 2)
	assert.Equal(t, OpEmbedding, snap.Operations[0].Name, "sorted by name")

	emb, ok := snap.Get(OpEmbedding)
	require.True(t, ok)
	assert.Equal(t, int64(3), emb.Count)
	assert.Equal(t, int64(1), emb.Errors)
	assert.Equal(t, int64(10), emb.MinTimeMs)
	assert.Equal(t, int64(30), emb.MaxTimeMs)
	assert.InDelta(t, 20.0, emb.AvgTimeMs, 0.001)
	assert.Nil(t, emb.InputTokens)

	gen, ok := snap.Get(OpModelGenerate)
	require.True(t, ok)
	require.NotNil(t, gen.InputTokens)
	assert.Equal(t, int64(12), *gen.InputTokens)
	assert.Equal(t, int64(5), *gen.OutputTokens)
}

func TestCollectorTrack(t *testing.T) {
	c := NewCollector()

	func() {
		var err error
		defer c.Track(OpIndexSearch)(&err)
	}()
	func() {
		err := errors.New("failed")
		defer c.Track(OpIndexSearch)(&err)
	}()

	s, ok := c.Snapshot().Get(OpIndexSearch)
	require.True(t, ok)
	assert.Equal(t, int64(2), s.Count)
	assert.Equal(t, int64(1), s.Errors)
}

func TestCollectorNilSafe(t *testing.T) {
	var c *Collector
	c.RecordTiming(OpTurn, time.Second)
	c.Track(OpTurn)(nil)
	assert.Empty(t, c.Snapshot().Operations)
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordTiming(OpToolDispatch, time.Millisecond)
		}()
	}
	wg.Wait()

	s, ok := c.Snapshot().Get(OpToolDispatch)
	require.True(t, ok)
	assert.Equal(t, int64(50), s.Count)
}
