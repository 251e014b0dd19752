package largetable

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/colin353/largetable/internal/observ"
)

// Default thresholds applied when Config leaves a limit unset.
const (
	DefaultMemTableSizeLimit int64 = 32 * 1024 * 1024
	DefaultDiskTableLimit    int   = 10
)

// Config is the Engine's configuration.
type Config struct {
	Directory         string
	MemTableSizeLimit int64
	DiskTableLimit    int
}

func (c *Config) applyDefaults() {
	if c.MemTableSizeLimit <= 0 {
		c.MemTableSizeLimit = DefaultMemTableSizeLimit
	}
	if c.DiskTableLimit <= 0 {
		c.DiskTableLimit = DefaultDiskTableLimit
	}
}

// Engine is the public operation surface coordinating the memtable, commit
// log and disktable set for one data directory. It is a value, not a
// process-wide singleton: concurrency control is the caller's job, handled
// here by the lock package, so Engine itself assumes single-writer,
// single-reader access.
type Engine struct {
	dir            string
	cfg            Config
	memtable       *MemTable
	disktables     []*DiskTable
	commitLog      *CommitLog
	disktableIndex uint32
	log            *observ.Logger
}

var dtableDataRe = regexp.MustCompile(`^(\d+)\.dtable$`)
var dtableHeaderRe = regexp.MustCompile(`^(\d+)\.dtable\.header$`)

// Open replays the commit log into a fresh memtable, loads every disktable
// header found in directory, and returns a ready Engine.
func Open(cfg Config) (*Engine, error) {
	cfg.applyDefaults()
	if err := os.MkdirAll(cfg.Directory, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating data directory %s: %v", ErrIO, cfg.Directory, err)
	}

	log := observ.Component("engine")

	cl, err := OpenCommitLog(filepath.Join(cfg.Directory, "commit.log"))
	if err != nil {
		return nil, err
	}

	mt := NewMemTable()
	if err := cl.Replay(mt); err != nil {
		return nil, err
	}

	tables, maxIdx, err := scanDiskTables(cfg.Directory)
	if err != nil {
		return nil, err
	}

	log.Info("engine opened", "directory", cfg.Directory, "disktables", len(tables), "memtable_rows", len(mt.Rows()))

	return &Engine{
		dir:            cfg.Directory,
		cfg:            cfg,
		memtable:       mt,
		disktables:     tables,
		commitLog:      cl,
		disktableIndex: maxIdx,
		log:            log,
	}, nil
}

// scanDiskTables walks dir for <N>.dtable/<N>.dtable.header pairs. A file
// ending in one of those two suffixes whose name doesn't parse as digits is
// ErrCorruptedFiles; anything else (commit.log, lock files, stray files) is
// silently skipped. A data file with no matching header (or vice versa) is
// treated as the result of a crash mid-compaction and ignored.
func scanDiskTables(dir string) ([]*DiskTable, uint32, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading directory %s: %v", ErrIO, dir, err)
	}

	dataFiles := map[uint64]string{}
	headerFiles := map[uint64]string{}

	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		name := ent.Name()
		switch {
		case strings.HasSuffix(name, ".dtable.header"):
			m := dtableHeaderRe.FindStringSubmatch(name)
			if m == nil {
				return nil, 0, fmt.Errorf("%w: malformed disktable header filename %q", ErrCorruptedFiles, name)
			}
			n, _ := strconv.ParseUint(m[1], 10, 64)
			headerFiles[n] = name
		case strings.HasSuffix(name, ".dtable"):
			m := dtableDataRe.FindStringSubmatch(name)
			if m == nil {
				return nil, 0, fmt.Errorf("%w: malformed disktable filename %q", ErrCorruptedFiles, name)
			}
			n, _ := strconv.ParseUint(m[1], 10, 64)
			dataFiles[n] = name
		}
	}

	var nums []uint64
	for n := range dataFiles {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	var maxIdx uint64
	var tables []*DiskTable
	for _, n := range nums {
		if n > maxIdx {
			maxIdx = n
		}
		headerName, ok := headerFiles[n]
		if !ok {
			continue
		}
		dt, err := OpenDiskTable(filepath.Join(dir, dataFiles[n]), filepath.Join(dir, headerName))
		if err != nil {
			return nil, 0, err
		}
		tables = append(tables, dt)
	}
	return tables, uint32(maxIdx), nil
}

// Insert creates a new row. Uniqueness is checked against the memtable only:
// a row already flushed to a disktable can be re-inserted from the
// memtable's point of view.
func (e *Engine) Insert(key string, updates []Update, t uint64) error {
	if err := e.memtable.Insert(key, updates, t); err != nil {
		return err
	}
	if err := e.commitLog.Append(key, t, updates); err != nil {
		return err
	}
	return e.maybeCompact()
}

// Update appends new versions to an existing row, falling back to Insert
// when the row is absent from the memtable. Note this mirrors the
// memtable's own knowledge of the row only; a row that lives solely in a
// disktable is, from the memtable's perspective, also "absent" and will be
// created fresh rather than merged in-place — any prior disktable version
// is still reachable by Select, which reads across every source.
func (e *Engine) Update(key string, updates []Update, t uint64) error {
	err := e.memtable.Update(key, updates, t)
	if errors.Is(err, ErrNotFound) {
		err = e.memtable.Insert(key, updates, t)
	}
	if err != nil {
		return err
	}
	if err := e.commitLog.Append(key, t, updates); err != nil {
		return err
	}
	return e.maybeCompact()
}

// Select collects the memtable's and every disktable's contribution and
// picks, per requested column, the entry with the greatest timestamp <= t
// across all sources. Returns ErrRowNotFound if no source has the row at
// all.
func (e *Engine) Select(key string, cols []string, t uint64) ([]SelectResult, error) {
	out := make([]SelectResult, len(cols))
	found := false

	if res, err := e.memtable.Select(key, cols, t); err == nil {
		mergeSelectResults(out, res)
		found = true
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: memtable select: %v", ErrInternal, err)
	}

	for _, dt := range e.disktables {
		res, err := dt.Select(key, cols, t)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			// A per-disktable failure during the read path is surfaced as
			// an internal error rather than silently downgraded to a miss.
			return nil, fmt.Errorf("%w: disktable select: %v", ErrInternal, err)
		}
		mergeSelectResults(out, res)
		found = true
	}

	if !found {
		return nil, ErrRowNotFound
	}
	return out, nil
}

func mergeSelectResults(out, in []SelectResult) {
	for i := range out {
		if !in[i].Found {
			continue
		}
		if !out[i].Found || in[i].Timestamp > out[i].Timestamp {
			out[i] = in[i]
		}
	}
}

// maybeCompact runs a minor compaction when the memtable exceeds its byte
// limit, preceded by a major compaction if the new disktable would push the
// count over the configured limit.
func (e *Engine) maybeCompact() error {
	if e.memtable.Size() <= e.cfg.MemTableSizeLimit {
		return nil
	}
	if len(e.disktables)+1 > e.cfg.DiskTableLimit {
		if err := e.majorCompaction(); err != nil {
			return err
		}
	}
	return e.minorCompaction()
}

// Flush runs an explicit minor compaction, independent of the automatic
// size trigger. Calling it with an empty memtable is a no-op.
func (e *Engine) Flush() error {
	return e.minorCompaction()
}

func (e *Engine) minorCompaction() error {
	rows := e.memtable.Rows()
	if len(rows) == 0 {
		return nil
	}

	idx := e.disktableIndex + 1
	dataPath := filepath.Join(e.dir, fmt.Sprintf("%d.dtable", idx))
	headerPath := dataPath + ".header"

	var header *diskTableHeader
	err := writeFileAtomic(dataPath, func(f *os.File) error {
		h, werr := e.memtable.WriteTo(f)
		header = h
		return werr
	})
	if err != nil {
		return err
	}
	if err := writeFileAtomic(headerPath, func(f *os.File) error {
		return writeDiskTableHeader(f, header)
	}); err != nil {
		return err
	}

	dt := newDiskTableFromHeader(dataPath, header)
	e.disktables = append(e.disktables, dt)
	e.disktableIndex = idx
	e.memtable = NewMemTable()

	if err := e.commitLog.Truncate(); err != nil {
		return err
	}

	e.log.Info("minor compaction complete", "disktable", idx, "rows", len(rows))
	return nil
}

func (e *Engine) majorCompaction() error {
	if len(e.disktables) < 2 {
		return nil
	}

	idx := e.disktableIndex + 1
	dataPath := filepath.Join(e.dir, fmt.Sprintf("%d.dtable", idx))
	headerPath := dataPath + ".header"

	inputs := e.disktables
	var header *diskTableHeader
	err := writeFileAtomic(dataPath, func(f *os.File) error {
		h, merr := mergeDiskTables(inputs, f)
		header = h
		return merr
	})
	if err != nil {
		return err
	}
	if err := writeFileAtomic(headerPath, func(f *os.File) error {
		return writeDiskTableHeader(f, header)
	}); err != nil {
		return err
	}

	dt := newDiskTableFromHeader(dataPath, header)
	e.disktables = []*DiskTable{dt}
	e.disktableIndex = idx

	// The superseded inputs are unlinked now that the merged output is
	// durably installed, rather than left for an external janitor — leaving
	// them around would double-count rows on the next Open.
	for _, old := range inputs {
		if err := os.Remove(old.dataPath); err != nil {
			e.log.Warn("failed to remove superseded disktable", "path", old.dataPath, "error", err)
		}
		if err := os.Remove(old.dataPath + ".header"); err != nil {
			e.log.Warn("failed to remove superseded disktable header", "path", old.dataPath+".header", "error", err)
		}
	}

	e.log.Info("major compaction complete", "disktable", idx, "rows", dt.Len(), "inputs", len(inputs))
	return nil
}

// writeFileAtomic writes path's contents via write, fsyncing and renaming a
// temp file into place so a crash mid-write never leaves a partially
// written file at the final name.
func writeFileAtomic(path string, write func(f *os.File) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file for %s: %v", ErrIO, path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing %s: %v", ErrCorruptedFiles, path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: syncing %s: %v", ErrIO, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %v", ErrIO, path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: installing %s: %v", ErrIO, path, err)
	}
	return nil
}

// Compact forces a major compaction of every current disktable into one,
// independent of the disktable_limit trigger. It is a no-op with fewer than
// two disktables, since there is nothing to merge.
func (e *Engine) Compact() error {
	return e.majorCompaction()
}

// Stats is a read-only snapshot of engine state.
type Stats struct {
	MemTableSize   int64
	MemTableRows   int
	DiskTableCount int
	DiskTableRows  []int
	CommitLogBytes int64
	DiskTableIndex uint32
}

// Stats returns a snapshot of the engine's current counters.
func (e *Engine) Stats() (Stats, error) {
	info, err := os.Stat(filepath.Join(e.dir, "commit.log"))
	var clBytes int64
	if err == nil {
		clBytes = info.Size()
	}

	rowCounts := make([]int, len(e.disktables))
	for i, dt := range e.disktables {
		rowCounts[i] = dt.Len()
	}

	return Stats{
		MemTableSize:   e.memtable.Size(),
		MemTableRows:   len(e.memtable.Rows()),
		DiskTableCount: len(e.disktables),
		DiskTableRows:  rowCounts,
		CommitLogBytes: clBytes,
		DiskTableIndex: e.disktableIndex,
	}, nil
}

// Close releases the commit log file handle. Disktables hold no persistent
// handles of their own (each data file is opened on demand), so there is
// nothing else to release.
func (e *Engine) Close() error {
	return e.commitLog.Close()
}
