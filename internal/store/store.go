// Package store is an in-memory document store with per-database locking,
// read/write concern levels, and a logical optime. It is the workload the
// journeyd request pipeline times: lock acquisition, concern waits, and
// optime gossip each map to a journey stage.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ConcernLevel controls how durable a read or write must be before the
// operation is acknowledged.
type ConcernLevel string

const (
	// ConcernLocal acknowledges immediately from memory.
	ConcernLocal ConcernLevel = "local"
	// ConcernMajority waits for the journal to commit the relevant optime.
	ConcernMajority ConcernLevel = "majority"
)

// ParseConcern maps a request parameter to a ConcernLevel. Empty input
// means local.
func ParseConcern(s string) (ConcernLevel, error) {
	switch s {
	case "", string(ConcernLocal):
		return ConcernLocal, nil
	case string(ConcernMajority):
		return ConcernMajority, nil
	default:
		return "", fmt.Errorf("unknown concern level %q", s)
	}
}

// Document is one stored entry.
type Document struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	OpTime    int64           `json:"op_time"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// LockMode selects shared or exclusive database access.
type LockMode int

const (
	ModeRead LockMode = iota
	ModeWrite
)

// Database holds one named document namespace under a single RWMutex.
type Database struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// Acquire takes the database lock and returns its release. Acquisition is
// split from the data operations so callers can time it separately.
func (d *Database) Acquire(mode LockMode) (release func()) {
	if mode == ModeWrite {
		d.mu.Lock()
		return d.mu.Unlock
	}
	d.mu.RLock()
	return d.mu.RUnlock
}

// GetLocked returns the document for key. Caller holds the lock.
func (d *Database) GetLocked(key string) (Document, bool) {
	document, ok := d.docs[key]
	return document, ok
}

// PutLocked upserts a document stamped with the given optime. Caller holds
// the lock in write mode.
func (d *Database) PutLocked(key string, value json.RawMessage, opTime int64) Document {
	document := Document{
		Key:       key,
		Value:     value,
		OpTime:    opTime,
		UpdatedAt: time.Now(),
	}
	d.docs[key] = document
	return document
}

// DeleteLocked removes a document. Caller holds the lock in write mode.
func (d *Database) DeleteLocked(key string) bool {
	if _, ok := d.docs[key]; !ok {
		return false
	}
	delete(d.docs, key)
	return true
}

// ListLocked returns all documents sorted by key. Caller holds the lock.
func (d *Database) ListLocked() []Document {
	out := make([]Document, 0, len(d.docs))
	for _, document := range d.docs {
		out = append(out, document)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Store is the process-wide document store.
type Store struct {
	mu  sync.RWMutex
	dbs map[string]*Database

	// opTime is the latest logical optime handed out by this process or
	// learned through gossip.
	opTime atomic.Int64

	journal *journal

	stop     context.CancelFunc
	stopped  sync.WaitGroup
	interval time.Duration
}

// New creates a Store whose journal commits every interval.
func New(commitInterval time.Duration) *Store {
	if commitInterval <= 0 {
		commitInterval = 10 * time.Millisecond
	}
	return &Store{
		dbs:      make(map[string]*Database),
		journal:  newJournal(),
		interval: commitInterval,
	}
}

// Start launches the journal flusher. Must be called before any majority
// concern wait can complete.
func (s *Store) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	s.stopped.Add(1)
	go func() {
		defer s.stopped.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.journal.commit(s.opTime.Load())
			case <-ctx.Done():
				s.journal.commit(s.opTime.Load())
				return
			}
		}
	}()
}

// Close stops the journal flusher after a final commit.
func (s *Store) Close() {
	if s.stop != nil {
		s.stop()
		s.stopped.Wait()
	}
}

// Database returns the named database, creating it on first use.
func (s *Store) Database(name string) *Database {
	s.mu.RLock()
	db := s.dbs[name]
	s.mu.RUnlock()
	if db != nil {
		return db
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if db = s.dbs[name]; db == nil {
		db = &Database{docs: make(map[string]Document)}
		s.dbs[name] = db
	}
	return db
}

// DatabaseNames returns the existing database names, sorted.
func (s *Store) DatabaseNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.dbs))
	for name := range s.dbs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NextOpTime advances and returns the logical optime for a new write.
func (s *Store) NextOpTime() int64 {
	return s.opTime.Add(1)
}

// OpTime returns the latest logical optime.
func (s *Store) OpTime() int64 {
	return s.opTime.Load()
}

// AdvanceOpTime folds a gossiped optime into ours. Lock-free: retry only
// while another writer has not already moved the clock past t.
func (s *Store) AdvanceOpTime(t int64) {
	for {
		cur := s.opTime.Load()
		if t <= cur || s.opTime.CompareAndSwap(cur, t) {
			return
		}
	}
}

// CommittedOpTime returns the optime the journal has made durable.
func (s *Store) CommittedOpTime() int64 {
	return s.journal.committedOpTime()
}

// WaitForWriteConcern blocks until the write stamped with opTime satisfies
// the concern level.
func (s *Store) WaitForWriteConcern(ctx context.Context, level ConcernLevel, opTime int64) error {
	if level == ConcernLocal {
		return nil
	}
	return s.journal.waitFor(ctx, opTime)
}

// WaitForReadConcern blocks until a read at the given level can be served:
// majority reads wait for the journal to catch up to the optime visible at
// the start of the operation.
func (s *Store) WaitForReadConcern(ctx context.Context, level ConcernLevel) error {
	if level == ConcernLocal {
		return nil
	}
	return s.journal.waitFor(ctx, s.opTime.Load())
}

// journal tracks the committed optime and wakes waiters as it advances.
type journal struct {
	mu        sync.Mutex
	committed int64
	notify    chan struct{}
}

func newJournal() *journal {
	return &journal{notify: make(chan struct{})}
}

func (j *journal) commit(upTo int64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if upTo > j.committed {
		j.committed = upTo
		close(j.notify)
		j.notify = make(chan struct{})
	}
}

func (j *journal) committedOpTime() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.committed
}

func (j *journal) waitFor(ctx context.Context, target int64) error {
	for {
		j.mu.Lock()
		if j.committed >= target {
			j.mu.Unlock()
			return nil
		}
		ch := j.notify
		j.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
