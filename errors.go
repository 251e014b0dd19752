package largetable

import "errors"

// Error taxonomy for the storage engine. Every public operation returns one
// of these (wrapped with context via fmt.Errorf("...: %w", ...)) so callers
// can branch with errors.Is.
var (
	// ErrAlreadyExists is returned by Insert when the row is already present
	// in the memtable.
	ErrAlreadyExists = errors.New("largetable: row already exists")

	// ErrNotFound is returned by a single table's lookup (memtable or
	// disktable) when the key is absent from that table.
	ErrNotFound = errors.New("largetable: not found")

	// ErrRowNotFound is returned by Engine.Select when no source (memtable
	// or any disktable) has the row at all.
	ErrRowNotFound = errors.New("largetable: row not found")

	// ErrIO wraps any underlying OS or decode failure.
	ErrIO = errors.New("largetable: io error")

	// ErrCorruptedFiles signals a structural error encountered while
	// opening a directory or compacting: an unparsable header, a malformed
	// commit log record, or a data file whose name doesn't match the
	// expected pattern.
	ErrCorruptedFiles = errors.New("largetable: corrupted files")

	// ErrPartialCommit means the in-memory state (memtable) was updated but
	// the commit log append/durability barrier could not be confirmed.
	ErrPartialCommit = errors.New("largetable: partial commit")

	// ErrInternal marks an unreachable/invariant failure.
	ErrInternal = errors.New("largetable: internal error")
)
