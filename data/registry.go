package data

import (
	"sync"
	"time"
)

// CallbackID correlates an in-flight store operation with the caller that
// issued it. The sequence number alone guarantees uniqueness for the
// lifetime of the process; the rock is opaque caller context carried along
// for the ride, never parsed.
type CallbackID struct {
	seq  uint64
	rock string
}

// Rock returns the caller context attached when the id was minted.
func (id CallbackID) Rock() string {
	return id.rock
}

type pendingEntry struct {
	done    ResultFunc
	rock    string
	addedAt time.Time
}

type staleEntry struct {
	id      CallbackID
	done    ResultFunc
	rock    string
	addedAt time.Time
}

// Registry is the table of pending store operations. Register grows it by
// one entry; Resolve consumes an entry exactly once. It is the only mutable
// state shared between dispatching goroutines, so both operations take the
// lock.
type Registry struct {
	mu      sync.Mutex
	nextSeq uint64
	pending map[CallbackID]pendingEntry
	now     func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		pending: make(map[CallbackID]pendingEntry),
		now:     time.Now,
	}
}

// Register allocates the next sequence number, stores (done, rock) under the
// resulting id, and returns the id. It never fails.
func (r *Registry) Register(done ResultFunc, rock string) CallbackID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := CallbackID{seq: r.nextSeq, rock: rock}
	r.nextSeq++
	r.pending[id] = pendingEntry{done: done, rock: rock, addedAt: r.now()}
	return id
}

// Resolve removes and returns the entry for id. The third return value is
// false when no entry is pending under id, which means the id was never
// registered or was already resolved; callers must log and drop, not crash.
func (r *Registry) Resolve(id CallbackID) (ResultFunc, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.pending[id]
	if !ok {
		return nil, "", false
	}
	delete(r.pending, id)
	return e.done, e.rock, true
}

// Len reports the number of pending entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// takeStale removes and returns every entry that has been pending for
// maxAge or longer. This is what keeps the table from growing without bound
// when the connection stalls and responses never arrive.
func (r *Registry) takeStale(maxAge time.Duration) []staleEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	var stale []staleEntry
	for id, e := range r.pending {
		if now.Sub(e.addedAt) >= maxAge {
			stale = append(stale, staleEntry{id: id, done: e.done, rock: e.rock, addedAt: e.addedAt})
			delete(r.pending, id)
		}
	}
	return stale
}
