package largetable

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemTableInsertAndSelect(t *testing.T) {
	t.Run("insert then select returns the written value", func(t *testing.T) {
		mt := NewMemTable()
		err := mt.Insert("non-row", []Update{
			{Column: "date", Value: []byte("01-01-1970")},
			{Column: "weight", Value: []byte("12 kg")},
		}, 1)
		require.NoError(t, err)

		res, err := mt.Select("non-row", []string{"date", "fate", "weight"}, ^uint64(0))
		require.NoError(t, err)
		require.Len(t, res, 3)
		assert.True(t, res[0].Found)
		assert.Equal(t, "01-01-1970", string(res[0].Value))
		assert.False(t, res[1].Found)
		assert.True(t, res[2].Found)
		assert.Equal(t, "12 kg", string(res[2].Value))
	})

	t.Run("duplicate insert fails with AlreadyExists", func(t *testing.T) {
		mt := NewMemTable()
		require.NoError(t, mt.Insert("k", []Update{{Column: "c", Value: []byte("v")}}, 1))
		err := mt.Insert("k", []Update{{Column: "c", Value: []byte("v2")}}, 2)
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("select on missing row is NotFound", func(t *testing.T) {
		mt := NewMemTable()
		_, err := mt.Select("missing", []string{"c"}, 1)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemTableUpdate(t *testing.T) {
	t.Run("update on existing column appends a new version in order", func(t *testing.T) {
		mt := NewMemTable()
		require.NoError(t, mt.Insert("non-row", []Update{{Column: "weight", Value: []byte("12 kg")}}, 1))
		require.NoError(t, mt.Update("non-row", []Update{{Column: "weight", Value: []byte("15 kg")}}, 2))

		res, err := mt.Select("non-row", []string{"weight"}, ^uint64(0))
		require.NoError(t, err)
		assert.Equal(t, "15 kg", string(res[0].Value))

		col, ok := mt.rows.get("non-row").column("weight")
		require.True(t, ok)
		for i := 1; i < len(col.Entries); i++ {
			assert.LessOrEqual(t, col.Entries[i-1].Timestamp, col.Entries[i].Timestamp)
		}
	})

	t.Run("update on missing row returns NotFound", func(t *testing.T) {
		mt := NewMemTable()
		err := mt.Update("missing", []Update{{Column: "c", Value: []byte("v")}}, 1)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("timestamped read picks the newest version at or before t", func(t *testing.T) {
		mt := NewMemTable()
		require.NoError(t, mt.Insert("tt", []Update{{Column: "clock", Value: []byte("memtable-100")}}, 100))
		require.NoError(t, mt.Update("tt", []Update{{Column: "clock", Value: []byte("memtable-200")}}, 200))

		res, err := mt.Select("tt", []string{"clock"}, 150)
		require.NoError(t, err)
		assert.Equal(t, "memtable-100", string(res[0].Value))

		res, err = mt.Select("tt", []string{"clock"}, 200)
		require.NoError(t, err)
		assert.Equal(t, "memtable-200", string(res[0].Value))
	})
}

func TestMemTableSize(t *testing.T) {
	mt := NewMemTable()
	require.NoError(t, mt.Insert("k", []Update{{Column: "col", Value: make([]byte, 1024)}}, 1))
	assert.EqualValues(t, len("col")+1024, mt.Size())
}

func TestMemTableWriteTo(t *testing.T) {
	mt := NewMemTable()
	require.NoError(t, mt.Insert("b", []Update{{Column: "x", Value: []byte("2")}}, 1))
	require.NoError(t, mt.Insert("a", []Update{{Column: "x", Value: []byte("1")}}, 1))

	var buf bytes.Buffer
	header, err := mt.WriteTo(&buf)
	require.NoError(t, err)
	require.Len(t, header.entries, 2)
	assert.Equal(t, "a", header.entries[0].Key)
	assert.Equal(t, "b", header.entries[1].Key)
	assert.Less(t, header.entries[0].Offset, header.entries[1].Offset)
}
