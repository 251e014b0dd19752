package largetable

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// ValueEntry is a single timestamped version of a column's value. Entries
// within a Column are non-strictly increasing in timestamp; duplicates at
// the same timestamp preserve insertion order.
type ValueEntry struct {
	Timestamp uint64
	Value     []byte
}

// Column is a timestamp-ordered history of a single column's values.
type Column struct {
	Entries []ValueEntry
}

// insertAt inserts an entry preserving timestamp order: it lands just after
// the last existing entry whose timestamp is <= t.
func (c *Column) insertAt(t uint64, value []byte) {
	i := sort.Search(len(c.Entries), func(i int) bool {
		return c.Entries[i].Timestamp > t
	})
	c.Entries = append(c.Entries, ValueEntry{})
	copy(c.Entries[i+1:], c.Entries[i:])
	c.Entries[i] = ValueEntry{Timestamp: t, Value: value}
}

// latestAt returns the entry with the greatest timestamp <= t, breaking ties
// on equal timestamps by preferring the later-inserted (higher-index) entry.
// Entries are tolerated in either ascending or descending timestamp order: a
// memtable row's columns are always ascending, but a merged disktable row's
// columns may come out descending, so callers must not assume a direction.
func (c *Column) latestAt(t uint64) (ValueEntry, bool) {
	if len(c.Entries) == 0 {
		return ValueEntry{}, false
	}
	ascending := true
	if len(c.Entries) > 1 && c.Entries[0].Timestamp > c.Entries[len(c.Entries)-1].Timestamp {
		ascending = false
	}

	var best ValueEntry
	found := false
	if ascending {
		for i := 0; i < len(c.Entries); i++ {
			e := c.Entries[i]
			if e.Timestamp <= t {
				best = e
				found = true
			} else {
				break
			}
		}
	} else {
		for i := len(c.Entries) - 1; i >= 0; i-- {
			e := c.Entries[i]
			if e.Timestamp > t {
				break
			}
			if !found || e.Timestamp > best.Timestamp {
				best = e
				found = true
			}
		}
	}
	return best, found
}

// Row is a single key's full set of columns. ColumnNames is kept sorted and
// stored on disk separately from the column payloads: a reader can binary
// search ColumnNames without decoding any column's value history.
type Row struct {
	Key         string
	ColumnNames []string
	Columns     map[string]*Column
}

func newRow(key string) *Row {
	return &Row{Key: key, Columns: make(map[string]*Column)}
}

func (r *Row) column(name string) (*Column, bool) {
	c, ok := r.Columns[name]
	return c, ok
}

func (r *Row) ensureColumn(name string) *Column {
	c, ok := r.Columns[name]
	if ok {
		return c
	}
	c = &Column{}
	r.Columns[name] = c
	i := sort.SearchStrings(r.ColumnNames, name)
	r.ColumnNames = append(r.ColumnNames, "")
	copy(r.ColumnNames[i+1:], r.ColumnNames[i:])
	r.ColumnNames[i] = name
	return c
}

func (r *Row) clone() *Row {
	cp := newRow(r.Key)
	cp.ColumnNames = append([]string(nil), r.ColumnNames...)
	for name, col := range r.Columns {
		entries := append([]ValueEntry(nil), col.Entries...)
		cp.Columns[name] = &Column{Entries: entries}
	}
	return cp
}

// Update is a single (column, value) pair supplied to Insert/Update.
type Update struct {
	Column string
	Value  []byte
}

// --- On-disk row encoding ---
//
// encoded row := keyLen u32 | key bytes
//              | numCols u32
//              | numCols * (nameLen u32 | name bytes)
//              | numCols * (colByteLen u32 | numEntries u32 | numEntries * (timestamp u64 | valueLen u32 | value bytes))
//
// The name list and the value-list are distinct regions so that a reader
// which only wants the column names (e.g. to binary search for one column)
// never has to parse entry payloads it doesn't need.

func encodeRow(w io.Writer, r *Row) (int, error) {
	var buf bytes.Buffer

	var klen [4]byte
	putUint32(klen[:], uint32(len(r.Key)))
	buf.Write(klen[:])
	buf.WriteString(r.Key)

	var ncols [4]byte
	putUint32(ncols[:], uint32(len(r.ColumnNames)))
	buf.Write(ncols[:])

	for _, name := range r.ColumnNames {
		var nlen [4]byte
		putUint32(nlen[:], uint32(len(name)))
		buf.Write(nlen[:])
		buf.WriteString(name)
	}

	for _, name := range r.ColumnNames {
		col := r.Columns[name]
		var colBuf bytes.Buffer
		var necount [4]byte
		putUint32(necount[:], uint32(len(col.Entries)))
		colBuf.Write(necount[:])
		for _, e := range col.Entries {
			var ts [8]byte
			putUint64(ts[:], e.Timestamp)
			colBuf.Write(ts[:])
			var vlen [4]byte
			putUint32(vlen[:], uint32(len(e.Value)))
			colBuf.Write(vlen[:])
			colBuf.Write(e.Value)
		}

		var clen [4]byte
		putUint32(clen[:], uint32(colBuf.Len()))
		buf.Write(clen[:])
		buf.Write(colBuf.Bytes())
	}

	n, err := w.Write(buf.Bytes())
	return n, err
}

// decodeRow decodes exactly one row from r. It is used both by disktable
// reads (which hand it an io.LimitReader bounded by the header-derived
// length) and by the merge path.
func decodeRow(r io.Reader) (*Row, error) {
	key, err := readLenString(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading row key: %v", ErrCorruptedFiles, err)
	}

	var ncolsBuf [4]byte
	if _, err := io.ReadFull(r, ncolsBuf[:]); err != nil {
		return nil, fmt.Errorf("%w: reading column count: %v", ErrCorruptedFiles, err)
	}
	ncols := int(binary.LittleEndian.Uint32(ncolsBuf[:]))

	names := make([]string, ncols)
	for i := 0; i < ncols; i++ {
		name, err := readLenString(r)
		if err != nil {
			return nil, fmt.Errorf("%w: reading column name %d: %v", ErrCorruptedFiles, i, err)
		}
		names[i] = name
	}

	row := newRow(key)
	row.ColumnNames = names
	for _, name := range names {
		var clenBuf [4]byte
		if _, err := io.ReadFull(r, clenBuf[:]); err != nil {
			return nil, fmt.Errorf("%w: reading column length for %q: %v", ErrCorruptedFiles, name, err)
		}
		clen := binary.LittleEndian.Uint32(clenBuf[:])
		colData := make([]byte, clen)
		if _, err := io.ReadFull(r, colData); err != nil {
			return nil, fmt.Errorf("%w: reading column payload for %q: %v", ErrCorruptedFiles, name, err)
		}
		col, err := decodeColumn(colData)
		if err != nil {
			return nil, err
		}
		row.Columns[name] = col
	}

	return row, nil
}

func decodeColumn(data []byte) (*Column, error) {
	br := bytes.NewReader(data)
	var necountBuf [4]byte
	if _, err := io.ReadFull(br, necountBuf[:]); err != nil {
		return nil, fmt.Errorf("%w: reading entry count: %v", ErrCorruptedFiles, err)
	}
	necount := int(binary.LittleEndian.Uint32(necountBuf[:]))
	col := &Column{Entries: make([]ValueEntry, necount)}
	for i := 0; i < necount; i++ {
		var tsBuf [8]byte
		if _, err := io.ReadFull(br, tsBuf[:]); err != nil {
			return nil, fmt.Errorf("%w: reading entry timestamp: %v", ErrCorruptedFiles, err)
		}
		var vlenBuf [4]byte
		if _, err := io.ReadFull(br, vlenBuf[:]); err != nil {
			return nil, fmt.Errorf("%w: reading entry value length: %v", ErrCorruptedFiles, err)
		}
		vlen := binary.LittleEndian.Uint32(vlenBuf[:])
		value := make([]byte, vlen)
		if _, err := io.ReadFull(br, value); err != nil {
			return nil, fmt.Errorf("%w: reading entry value: %v", ErrCorruptedFiles, err)
		}
		col.Entries[i] = ValueEntry{Timestamp: binary.LittleEndian.Uint64(tsBuf[:]), Value: value}
	}
	return col, nil
}

func readLenString(r io.Reader) (string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return "", err
	}
	return string(data), nil
}
