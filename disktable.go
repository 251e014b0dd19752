package largetable

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"
)

// diskTableHeaderEntry is one (key, offset) pair in a disktable's header.
type diskTableHeaderEntry struct {
	Key    string
	Offset uint64
}

// diskTableHeader is the sorted list of header entries for one disktable,
// held fully in memory for the disktable's lifetime.
type diskTableHeader struct {
	entries []diskTableHeaderEntry
}

// --- header file encoding ---
//
// header file := numEntries u32 | numEntries * (keyLen u32 | key bytes | offset u64)

func writeDiskTableHeader(w io.Writer, h *diskTableHeader) error {
	var buf [4]byte
	putUint32(buf[:], uint32(len(h.entries)))
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	for _, e := range h.entries {
		var klen [4]byte
		putUint32(klen[:], uint32(len(e.Key)))
		if _, err := w.Write(klen[:]); err != nil {
			return err
		}
		if _, err := io.WriteString(w, e.Key); err != nil {
			return err
		}
		var off [8]byte
		putUint64(off[:], e.Offset)
		if _, err := w.Write(off[:]); err != nil {
			return err
		}
	}
	return nil
}

func readDiskTableHeader(r io.Reader) (*diskTableHeader, error) {
	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, fmt.Errorf("%w: reading header entry count: %v", ErrCorruptedFiles, err)
	}
	count := binary.LittleEndian.Uint32(countBuf[:])
	h := &diskTableHeader{entries: make([]diskTableHeaderEntry, count)}
	for i := uint32(0); i < count; i++ {
		key, err := readLenString(r)
		if err != nil {
			return nil, fmt.Errorf("%w: reading header key %d: %v", ErrCorruptedFiles, i, err)
		}
		var offBuf [8]byte
		if _, err := io.ReadFull(r, offBuf[:]); err != nil {
			return nil, fmt.Errorf("%w: reading header offset %d: %v", ErrCorruptedFiles, i, err)
		}
		h.entries[i] = diskTableHeaderEntry{Key: key, Offset: binary.LittleEndian.Uint64(offBuf[:])}
	}
	return h, nil
}

// DiskTable is the immutable, on-disk, key-sorted table produced by a
// compaction. Its header is loaded fully into memory at Open; the data file
// is opened on demand for each row read and closed immediately after, rather
// than held open for the table's whole lifetime, since disktables here are
// not expected to see sustained read throughput that would justify keeping
// a persistent file handle or memory-mapped region around.
type DiskTable struct {
	dataPath string
	header   *diskTableHeader
	filter   *rowBloomFilter
}

// OpenDiskTable reads headerPath fully into memory and returns a DiskTable
// bound to dataPath. It does not open or validate dataPath itself: I/O
// errors there surface lazily from GetRow/Select.
func OpenDiskTable(dataPath, headerPath string) (*DiskTable, error) {
	f, err := os.Open(headerPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening header %s: %v", ErrCorruptedFiles, headerPath, err)
	}
	defer f.Close()

	header, err := readDiskTableHeader(f)
	if err != nil {
		return nil, err
	}
	if !sort.SliceIsSorted(header.entries, func(i, j int) bool {
		return compareKeys(header.entries[i].Key, header.entries[j].Key) < 0
	}) {
		return nil, fmt.Errorf("%w: header %s is not sorted by key", ErrCorruptedFiles, headerPath)
	}

	keys := make([]string, len(header.entries))
	for i, e := range header.entries {
		keys[i] = e.Key
	}

	return &DiskTable{
		dataPath: dataPath,
		header:   header,
		filter:   newRowBloomFilter(keys),
	}, nil
}

// newDiskTableFromHeader builds a DiskTable directly from a header already
// held in memory, used right after MemTable.WriteTo/mergeDiskTables produce
// one, so the engine never has to re-read the file it just wrote.
func newDiskTableFromHeader(dataPath string, header *diskTableHeader) *DiskTable {
	keys := make([]string, len(header.entries))
	for i, e := range header.entries {
		keys[i] = e.Key
	}
	return &DiskTable{
		dataPath: dataPath,
		header:   header,
		filter:   newRowBloomFilter(keys),
	}
}

// Len returns the number of rows (header entries).
func (dt *DiskTable) Len() int {
	return len(dt.header.entries)
}

// lookupOffset binary searches the header by key. ok is false if the key is
// absent. length is -1 when the row extends to EOF (the last header entry).
func (dt *DiskTable) lookupOffset(key string) (start uint64, length int64, ok bool) {
	entries := dt.header.entries
	i := sort.Search(len(entries), func(i int) bool {
		return compareKeys(entries[i].Key, key) >= 0
	})
	if i >= len(entries) || entries[i].Key != key {
		return 0, 0, false
	}
	start = entries[i].Offset
	if i == len(entries)-1 {
		return start, -1, true
	}
	return start, int64(entries[i+1].Offset - start), true
}

// GetRow opens the data file, seeks to the row's offset, and decodes exactly
// its byte range (or to EOF for the last row). Returns ErrNotFound if key is
// absent from the header, and ErrIO on any I/O or decoding failure.
func (dt *DiskTable) GetRow(key string) (*Row, error) {
	if !dt.filter.contains(key) {
		return nil, ErrNotFound
	}
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

	var r io.Reader = f
	if length >= 0 {
		r = io.LimitReader(f, length)
	}

	row, err := decodeRow(r)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding row %q from %s: %v", ErrIO, key, dt.dataPath, err)
	}
	if row.Key != key {
		return nil, fmt.Errorf("%w: row at offset %d has key %q, header said %q", ErrIO, start, row.Key, key)
	}
	return row, nil
}

// Select fetches the row, then picks per-column the entry with the greatest
// timestamp <= t.
func (dt *DiskTable) Select(key string, cols []string, t uint64) ([]SelectResult, error) {
	row, err := dt.GetRow(key)
	if err != nil {
		return nil, err
	}
	out := make([]SelectResult, len(cols))
	for i, name := range cols {
		col, ok := row.column(name)
		if !ok {
			continue
		}
		if e, found := col.latestAt(t); found {
			out[i] = SelectResult{Found: true, Value: e.Value, Timestamp: e.Timestamp}
		}
	}
	return out, nil
}

// Keys returns every row key in header (ascending) order, used by major
// compaction to walk this table's rows in lockstep with its peers.
func (dt *DiskTable) Keys() []string {
	keys := make([]string, len(dt.header.entries))
	for i, e := range dt.header.entries {
		keys[i] = e.Key
	}
	return keys
}
