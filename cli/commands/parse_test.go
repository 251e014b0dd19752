package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colin353/largetable/query"
)

func TestParseQuerySelect(t *testing.T) {
	t.Run("columns split on comma, explicit timestamp", func(t *testing.T) {
		req, err := ParseQuery("select non-row date,fate,weight 42")
		require.NoError(t, err)
		assert.Equal(t, query.KindSelect, req.Kind)
		assert.Equal(t, "non-row", req.Row)
		assert.Equal(t, []string{"date", "fate", "weight"}, req.Columns)
		assert.EqualValues(t, 42, req.Timestamp)
	})

	t.Run("missing column list is an error", func(t *testing.T) {
		_, err := ParseQuery("select non-row")
		assert.Error(t, err)
	})
}

func TestParseQueryInsertAndUpdate(t *testing.T) {
	t.Run("insert parses multiple col=value pairs", func(t *testing.T) {
		req, err := ParseQuery("insert non-row date=01-01-1970 weight=12kg 1")
		require.NoError(t, err)
		assert.Equal(t, query.KindInsert, req.Kind)
		require.Len(t, req.Updates, 2)
		assert.Equal(t, "date", req.Updates[0].Column)
		assert.Equal(t, "01-01-1970", string(req.Updates[0].Value))
		assert.EqualValues(t, 1, req.Timestamp)
	})

	t.Run("update with no timestamp defaults to current time", func(t *testing.T) {
		req, err := ParseQuery("update tt clock=memtable")
		require.NoError(t, err)
		assert.Equal(t, query.KindUpdate, req.Kind)
		assert.NotZero(t, req.Timestamp)
	})

	t.Run("no col=value pairs is an error", func(t *testing.T) {
		_, err := ParseQuery("insert non-row 1")
		assert.Error(t, err)
	})
}

func TestParseQueryUnrecognizedKind(t *testing.T) {
	_, err := ParseQuery("delete non-row")
	assert.Error(t, err)
}

func TestParseQueryTooShort(t *testing.T) {
	_, err := ParseQuery("select")
	assert.Error(t, err)
}
