package largetable

import (
	"fmt"
	"io"
	"os"
	"sort"
)

// rawRow returns the undecoded byte range for key, for the single-source
// fast path in mergeDiskTables: when only one input carries a key, its row
// bytes can be copied straight through instead of decoded and re-encoded.
func (dt *DiskTable) rawRow(key string) ([]byte, error) {
	start, length, ok := dt.lookupOffset(key)
	if !ok {
		return nil, ErrNotFound
	}
	f, err := os.Open(dt.dataPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening data file %s: %v", ErrIO, dt.dataPath, err)
	}
	defer f.Close()

	if _, err := f.Seek(int64(start), io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: seeking in %s: %v", ErrIO, dt.dataPath, err)
	}
	if length >= 0 {
		buf := make([]byte, length)
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, fmt.Errorf("%w: reading row bytes from %s: %v", ErrIO, dt.dataPath, err)
		}
		return buf, nil
	}
	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: reading row bytes from %s: %v", ErrIO, dt.dataPath, err)
	}
	return buf, nil
}

type mergeCursor struct {
	dt   *DiskTable
	keys []string
	idx  int
}

func (c *mergeCursor) key() (string, bool) {
	if c.idx >= len(c.keys) {
		return "", false
	}
	return c.keys[c.idx], true
}

func (c *mergeCursor) advance() { c.idx++ }

// mergeRows merges same-keyed rows from multiple disktables: the output's
// column list is the sorted union of input column names, and each column's
// entries are the concatenation of every input's entries for that column,
// reordered into descending timestamp order. Ties at equal timestamps
// preserve the order of the inputs slice, so a later (more recently
// flushed) disktable's entry sorts after an earlier one at the same
// timestamp.
func mergeRows(rows []*Row) *Row {
	key := rows[0].Key
	out := newRow(key)

	names := map[string]bool{}
	for _, r := range rows {
		for _, n := range r.ColumnNames {
			names[n] = true
		}
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)
	out.ColumnNames = sorted

	for _, name := range sorted {
		var merged []ValueEntry
		for _, r := range rows {
			if col, ok := r.column(name); ok {
				merged = append(merged, col.Entries...)
			}
		}
		sort.SliceStable(merged, func(i, j int) bool {
			return merged[i].Timestamp > merged[j].Timestamp
		})
		out.Columns[name] = &Column{Entries: merged}
	}
	return out
}

// mergeDiskTables is major compaction's core: merge tables in arbitrary
// order into a single sorted stream, written to dataWriter, and returns the
// header describing it. It maintains a cursor per input and repeatedly
// advances whichever cursors are currently sitting on the smallest key,
// byte-copying a row straight through when only one table holds that key
// and decoding-then-merging when more than one does. Any I/O failure aborts
// with ErrCorruptedFiles and the caller must treat dataWriter's contents as
// unusable.
func mergeDiskTables(tables []*DiskTable, dataWriter io.Writer) (*diskTableHeader, error) {
	cursors := make([]*mergeCursor, len(tables))
	for i, dt := range tables {
		cursors[i] = &mergeCursor{dt: dt, keys: dt.Keys()}
	}

	header := &diskTableHeader{}
	var offset uint64

	for {
		minKey := ""
		haveMin := false
		var live []*mergeCursor
		for _, c := range cursors {
			k, ok := c.key()
			if !ok {
				continue
			}
			live = append(live, c)
			if !haveMin || compareKeys(k, minKey) < 0 {
				minKey = k
				haveMin = true
			}
		}
		if !haveMin {
			break
		}

		var matching []*mergeCursor
		for _, c := range live {
			k, _ := c.key()
			if k == minKey {
				matching = append(matching, c)
			}
		}

		var n int
		var err error
		if len(matching) == 1 {
			raw, rerr := matching[0].dt.rawRow(minKey)
			if rerr != nil {
				return nil, fmt.Errorf("%w: copying row %q during merge: %v", ErrCorruptedFiles, minKey, rerr)
			}
			n, err = dataWriter.Write(raw)
		} else {
			rows := make([]*Row, 0, len(matching))
			for _, c := range matching {
				row, rerr := c.dt.GetRow(minKey)
				if rerr != nil {
					return nil, fmt.Errorf("%w: decoding row %q during merge: %v", ErrCorruptedFiles, minKey, rerr)
				}
				rows = append(rows, row)
			}
			merged := mergeRows(rows)
			n, err = encodeRow(dataWriter, merged)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: writing merged row %q: %v", ErrCorruptedFiles, minKey, err)
		}

		header.entries = append(header.entries, diskTableHeaderEntry{Key: minKey, Offset: offset})
		offset += uint64(n)

		for _, c := range matching {
			c.advance()
		}
	}

	return header, nil
}
