package curation

import (
	"sync"
	"time"

	"github.com/handsomefox/reelshelf/internal/paging"
	"github.com/handsomefox/reelshelf/internal/record"
)

// View holds the last successfully fetched contents of one collection and
// curates pages from it. Fetches are tagged with a generation so that an
// older fetch finishing late cannot replace newer data.
type View struct {
	mu       sync.Mutex
	pipeline Pipeline
	pageSize int

	source    []record.Item
	loaded    bool
	issued    uint64
	applied   uint64
	fetchedAt time.Time
	lastErr   error
}

// Snapshot is one curated page. Query.Page is clamped to the filtered result.
type Snapshot struct {
	Query      QueryState
	Items      []record.Item
	Total      int
	TotalPages int
	Loaded     bool
	FetchedAt  time.Time
	Err        error
}

func NewView(p Pipeline, pageSize int) *View {
	if pageSize <= 0 {
		pageSize = paging.DefaultPageSize
	}
	return &View{pipeline: p, pageSize: pageSize}
}

// BeginFetch issues the generation token for a new fetch.
func (v *View) BeginFetch() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.issued++
	return v.issued
}

// CompleteFetch stores items fetched under gen. It returns false and keeps
// the current data when a newer fetch has already been applied.
func (v *View) CompleteFetch(gen uint64, items []record.Item) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen <= v.applied {
		return false
	}
	v.source = make([]record.Item, len(items))
	for i := range items {
		v.source[i] = items[i].Clone()
	}
	v.applied = gen
	v.loaded = true
	v.fetchedAt = time.Now()
	v.lastErr = nil
	return true
}

// FailFetch records a failed fetch. Previously loaded items stay in place.
func (v *View) FailFetch(gen uint64, err error) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen <= v.applied {
		return false
	}
	v.lastErr = err
	return true
}

// Loaded reports whether any fetch has completed.
func (v *View) Loaded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loaded
}

// Curate runs the pipeline over the held items and returns the page q asks
// for. Until the first fetch completes nothing is curated.
func (v *View) Curate(q QueryState) Snapshot {
	q = q.Normalize()

	v.mu.Lock()
	defer v.mu.Unlock()

	snap := Snapshot{Query: q, Loaded: v.loaded, FetchedAt: v.fetchedAt, Err: v.lastErr, Items: []record.Item{}}
	if !v.loaded {
		snap.Query.Page = 1
		snap.TotalPages = paging.DisplayPages(0, v.pageSize)
		return snap
	}

	curated := v.pipeline.Apply(v.source, q)
	snap.Total = len(curated)
	snap.Query.Page = paging.Clamp(q.Page, paging.TotalPages(len(curated), v.pageSize))
	snap.TotalPages = paging.DisplayPages(len(curated), v.pageSize)
	snap.Items = paging.Window(curated, v.pageSize, snap.Query.Page)
	return snap
}
