// Package curation turns a collection's items into the filtered, sorted
// sequence a collection view displays, and maps the view's parameters to and
// from shareable query strings.
package curation

import (
	"cmp"
	"slices"

	"github.com/handsomefox/reelshelf/internal/record"
)

// GenreMode selects how a multi-genre selection matches items.
type GenreMode int

const (
	// GenreAny keeps items sharing at least one selected genre.
	GenreAny GenreMode = iota
	// GenreAllIfMultiple behaves like GenreAny for a single selected genre
	// and requires every selected genre once two or more are selected.
	GenreAllIfMultiple
)

func (m GenreMode) String() string {
	switch m {
	case GenreAny:
		return "any"
	case GenreAllIfMultiple:
		return "all_if_multiple"
	}
	return "unknown"
}

type Pipeline struct {
	GenreMode GenreMode
}

var (
	WatchlistPipeline = Pipeline{GenreMode: GenreAny}
	WatchedPipeline   = Pipeline{GenreMode: GenreAllIfMultiple}
)

// PipelineFor returns the pipeline used by the given collection's view.
func PipelineFor(c record.Collection) Pipeline {
	if c == record.Watched {
		return WatchedPipeline
	}
	return WatchlistPipeline
}

// Apply filters and sorts items according to q. It never modifies items and
// ignores q.Page; paging happens afterwards.
func (p Pipeline) Apply(items []record.Item, q QueryState) []record.Item {
	q = q.Normalize()

	out := make([]record.Item, 0, len(items))
	for i := range items {
		it := &items[i]
		if q.MediaType != TypeAll && string(it.MediaType) != string(q.MediaType) {
			continue
		}
		if q.HasRuntimeCeiling() && it.Runtime() > q.RuntimeCeiling {
			continue
		}
		if !p.matchesGenres(it, q.Genres) {
			continue
		}
		out = append(out, *it)
	}

	slices.SortStableFunc(out, descending(q.Sort))

	// Ascending is the descending order reversed, so ties come out in the
	// opposite order to the descending pass.
	if q.Order == OrderAsc {
		slices.Reverse(out)
	}
	return out
}

func (p Pipeline) matchesGenres(it *record.Item, selected []string) bool {
	if len(selected) == 0 {
		return true
	}
	if p.GenreMode == GenreAllIfMultiple && len(selected) > 1 {
		for _, g := range selected {
			if !it.HasGenre(g) {
				return false
			}
		}
		return true
	}
	for _, g := range selected {
		if it.HasGenre(g) {
			return true
		}
	}
	return false
}

func descending(key SortKey) func(a, b record.Item) int {
	switch key {
	case SortVoteAverage:
		return func(a, b record.Item) int {
			return compareOptional(b.VoteAverage != nil, a.VoteAverage != nil, func() int {
				return cmp.Compare(*b.VoteAverage, *a.VoteAverage)
			})
		}
	case SortReleaseDate:
		return func(a, b record.Item) int {
			ta, okA := a.Release()
			tb, okB := b.Release()
			return compareOptional(okB, okA, func() int { return tb.Compare(ta) })
		}
	default:
		return func(a, b record.Item) int {
			return b.SavedAt.Compare(a.SavedAt)
		}
	}
}

// compareOptional orders present values before absent ones in a descending
// sort; cmpBoth is only called when both are present.
func compareOptional(hasB, hasA bool, cmpBoth func() int) int {
	switch {
	case hasA && hasB:
		return cmpBoth()
	case hasA:
		return -1
	case hasB:
		return 1
	}
	return 0
}
