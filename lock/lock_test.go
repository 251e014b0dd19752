package lock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colin353/largetable"
)

func TestWrapSerializesConcurrentInserts(t *testing.T) {
	engine, err := largetable.Open(largetable.Config{Directory: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	serialized := Wrap(engine)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%26))
			_ = serialized.Insert(key, []largetable.Update{{Column: "c", Value: []byte{byte(i)}}}, uint64(i))
		}(i)
	}
	wg.Wait()

	stats, err := serialized.Stats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.MemTableRows, 1)
}

func TestWrapFlushAndCompact(t *testing.T) {
	engine, err := largetable.Open(largetable.Config{Directory: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	serialized := Wrap(engine)
	require.NoError(t, serialized.Insert("k", []largetable.Update{{Column: "c", Value: []byte("v")}}, 1))
	require.NoError(t, serialized.Flush())
	require.NoError(t, serialized.Compact())

	res, err := serialized.Select("k", []string{"c"}, ^uint64(0))
	require.NoError(t, err)
	assert.Equal(t, "v", string(res[0].Value))
}
