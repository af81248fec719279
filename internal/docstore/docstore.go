// Package docstore provides small in-memory document collections with
// insertion-ordered snapshots. Each collection is independently locked, so
// operations on different collections never block each other.
package docstore

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record wraps a stored document with its assigned identifier and the
// insertion timestamp used for ordering.
type Record[T any] struct {
	ID      string    `json:"id"`
	Created time.Time `json:"created"`
	Doc     T         `json:"doc"`

	// seq breaks clock ties so insertion order is always total.
	seq uint64
}

type Collection[T any] struct {
	mu    sync.Mutex
	recs  []Record[T]
	seq   uint64
	clone func(T) T
}

// New creates an empty collection. clone is applied to documents crossing
// the collection boundary so snapshots stay decoupled from later mutation;
// pass nil for documents that are plain values.
func New[T any](clone func(T) T) *Collection[T] {
	return &Collection[T]{clone: clone}
}

func (c *Collection[T]) copyDoc(doc T) T {
	if c.clone == nil {
		return doc
	}
	return c.clone(doc)
}

// Insert appends doc and returns its assigned identifier.
func (c *Collection[T]) Insert(doc T) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insertLocked(doc).ID
}

func (c *Collection[T]) insertLocked(doc T) Record[T] {
	c.seq++
	rec := Record[T]{
		ID:      uuid.NewString(),
		Created: time.Now().UTC(),
		Doc:     c.copyDoc(doc),
		seq:     c.seq,
	}
	c.recs = append(c.recs, rec)
	return rec
}

// Find returns a point-in-time snapshot of every record matching match, in
// insertion order. A nil match selects everything. The snapshot is
// independent of later mutation.
func (c *Collection[T]) Find(match func(T) bool) []Record[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record[T], 0, len(c.recs))
	for _, rec := range c.recs {
		if match != nil && !match(rec.Doc) {
			continue
		}
		rec.Doc = c.copyDoc(rec.Doc)
		out = append(out, rec)
	}
	return out
}

// FindOne returns the first record matching match under insertion order.
// A nil match returns the earliest-inserted record.
func (c *Collection[T]) FindOne(match func(T) bool) (Record[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range c.recs {
		if match == nil || match(rec.Doc) {
			rec.Doc = c.copyDoc(rec.Doc)
			return rec, true
		}
	}
	var zero Record[T]
	return zero, false
}

// Upsert merges into the first record matching match, or inserts doc when
// nothing matches. merge mutates the stored document in place and may be
// nil to leave an existing record untouched. Exactly one record is affected
// per call; the resulting record is returned along with whether it was
// newly created.
func (c *Collection[T]) Upsert(match func(T) bool, doc T, merge func(*T)) (Record[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.recs {
		if match != nil && !match(c.recs[i].Doc) {
			continue
		}
		if merge != nil {
			merge(&c.recs[i].Doc)
		}
		rec := c.recs[i]
		rec.Doc = c.copyDoc(rec.Doc)
		return rec, false
	}
	return c.insertLocked(doc), true
}

func (c *Collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.recs)
}

// SortByCreated stable-sorts a snapshot by insertion time, newest first when
// desc is true, and returns it for chaining.
func SortByCreated[T any](recs []Record[T], desc bool) []Record[T] {
	sort.SliceStable(recs, func(i, j int) bool {
		if desc {
			return recs[i].seq > recs[j].seq
		}
		return recs[i].seq < recs[j].seq
	})
	return recs
}

// SortBy stable-sorts a snapshot with a caller-supplied ordering.
func SortBy[T any](recs []Record[T], less func(a, b Record[T]) bool) []Record[T] {
	sort.SliceStable(recs, func(i, j int) bool { return less(recs[i], recs[j]) })
	return recs
}

// Limit truncates a snapshot to its first n records.
func Limit[T any](recs []Record[T], n int) []Record[T] {
	if n < 0 {
		n = 0
	}
	if n < len(recs) {
		return recs[:n]
	}
	return recs
}
