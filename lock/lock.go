// Package lock provides the single mutual-exclusion wrapper the engine
// relies on for its concurrency model: the engine itself is not thread-safe,
// so every public operation must be serialized by exactly one exclusive
// lock before reaching it. This is in-process exclusion between goroutines
// calling the same *Engine, not a distributed lock between processes, so a
// plain sync.Mutex is the whole implementation.
package lock

import (
	"sync"

	"github.com/colin353/largetable"
)

// Engine serializes every call into the wrapped *largetable.Engine behind
// one exclusive lock. Reads do not run concurrently with writes or with
// other reads: Select takes the same lock as Insert/Update, not a shared
// RLock, because the underlying engine's disktable set and memtable pointer
// can change out from under a concurrent reader during compaction.
type Engine struct {
	mu     sync.Mutex
	engine *largetable.Engine
}

// Wrap returns a serialized handle over engine.
func Wrap(engine *largetable.Engine) *Engine {
	return &Engine{engine: engine}
}

func (e *Engine) Insert(key string, updates []largetable.Update, t uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.engine.Insert(key, updates, t)
}

func (e *Engine) Update(key string, updates []largetable.Update, t uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.engine.Update(key, updates, t)
}

func (e *Engine) Select(key string, cols []string, t uint64) ([]largetable.SelectResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.engine.Select(key, cols, t)
}

func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.engine.Flush()
}

func (e *Engine) Compact() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.engine.Compact()
}

func (e *Engine) Stats() (largetable.Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.engine.Stats()
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.engine.Close()
}
