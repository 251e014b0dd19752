package largetable

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFlush(t *testing.T, dir, name string, mt *MemTable) *DiskTable {
	t.Helper()
	dataPath := filepath.Join(dir, name+".dtable")
	headerPath := filepath.Join(dir, name+".dtable.header")

	df, err := os.Create(dataPath)
	require.NoError(t, err)
	header, err := mt.WriteTo(df)
	require.NoError(t, err)
	require.NoError(t, df.Close())

	hf, err := os.Create(headerPath)
	require.NoError(t, err)
	require.NoError(t, writeDiskTableHeader(hf, header))
	require.NoError(t, hf.Close())

	dt, err := OpenDiskTable(dataPath, headerPath)
	require.NoError(t, err)
	return dt
}

func TestMergeDiskTablesDisjointKeys(t *testing.T) {
	dir := t.TempDir()

	mt1 := NewMemTable()
	require.NoError(t, mt1.Insert("a", []Update{{Column: "c", Value: []byte("1")}}, 1))
	dt1 := mustFlush(t, dir, "0", mt1)

	mt2 := NewMemTable()
	require.NoError(t, mt2.Insert("b", []Update{{Column: "c", Value: []byte("2")}}, 1))
	dt2 := mustFlush(t, dir, "1", mt2)

	var out bytes.Buffer
	header, err := mergeDiskTables([]*DiskTable{dt1, dt2}, &out)
	require.NoError(t, err)
	require.Len(t, header.entries, 2)
	assert.Equal(t, "a", header.entries[0].Key)
	assert.Equal(t, "b", header.entries[1].Key)

	mergedPath := filepath.Join(dir, "merged.dtable")
	require.NoError(t, os.WriteFile(mergedPath, out.Bytes(), 0o644))
	mergedHeaderPath := filepath.Join(dir, "merged.dtable.header")
	hf, err := os.Create(mergedHeaderPath)
	require.NoError(t, err)
	require.NoError(t, writeDiskTableHeader(hf, header))
	require.NoError(t, hf.Close())

	readBack, err := OpenDiskTable(mergedPath, mergedHeaderPath)
	require.NoError(t, err)
	row, err := readBack.GetRow("a")
	require.NoError(t, err)
	col, ok := row.column("c")
	require.True(t, ok)
	assert.Equal(t, "1", string(col.Entries[0].Value))
}

func TestMergeDiskTablesOverlappingKeyUnionsColumns(t *testing.T) {
	dir := t.TempDir()

	mt1 := NewMemTable()
	require.NoError(t, mt1.Insert("shared", []Update{{Column: "x", Value: []byte("old-x")}}, 1))
	dt1 := mustFlush(t, dir, "0", mt1)

	mt2 := NewMemTable()
	require.NoError(t, mt2.Insert("shared", []Update{{Column: "y", Value: []byte("new-y")}}, 2))
	dt2 := mustFlush(t, dir, "1", mt2)

	var out bytes.Buffer
	header, err := mergeDiskTables([]*DiskTable{dt1, dt2}, &out)
	require.NoError(t, err)
	require.Len(t, header.entries, 1)

	mergedPath := filepath.Join(dir, "merged2.dtable")
	require.NoError(t, os.WriteFile(mergedPath, out.Bytes(), 0o644))
	mergedHeaderPath := filepath.Join(dir, "merged2.dtable.header")
	hf, err := os.Create(mergedHeaderPath)
	require.NoError(t, err)
	require.NoError(t, writeDiskTableHeader(hf, header))
	require.NoError(t, hf.Close())

	readBack, err := OpenDiskTable(mergedPath, mergedHeaderPath)
	require.NoError(t, err)
	row, err := readBack.GetRow("shared")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, row.ColumnNames)
}

func TestMergeRowsOrdersByDescendingTimestampAcrossInputs(t *testing.T) {
	older := newRow("k")
	older.ColumnNames = []string{"c"}
	older.Columns["c"] = &Column{Entries: []ValueEntry{{Timestamp: 1, Value: []byte("v1")}}}

	newer := newRow("k")
	newer.ColumnNames = []string{"c"}
	newer.Columns["c"] = &Column{Entries: []ValueEntry{{Timestamp: 5, Value: []byte("v5")}}}

	merged := mergeRows([]*Row{older, newer})
	col, ok := merged.column("c")
	require.True(t, ok)
	require.Len(t, col.Entries, 2)
	assert.Equal(t, uint64(5), col.Entries[0].Timestamp)
	assert.Equal(t, uint64(1), col.Entries[1].Timestamp)
}
