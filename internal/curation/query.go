package curation

import (
	"net/url"
	"strconv"
	"strings"
)

type TypeFilter string

const (
	TypeAll   TypeFilter = "all"
	TypeMovie TypeFilter = "movie"
	TypeTV    TypeFilter = "tv"
)

type SortKey string

const (
	SortSavedAt     SortKey = "saved_at"
	SortVoteAverage SortKey = "vote_average"
	SortReleaseDate SortKey = "release_date"
)

type SortOrder string

const (
	OrderDesc SortOrder = "desc"
	OrderAsc  SortOrder = "asc"
)

// MaxRuntime is the runtime ceiling that disables the runtime filter.
const MaxRuntime = 240

// Parameter keys of the shareable representation.
const (
	KeyType    = "type"
	KeySort    = "sort"
	KeyOrder   = "order"
	KeyGenres  = "genres"
	KeyRuntime = "runtime"
	KeyPage    = "page"
)

// QueryState holds the user-controlled parameters of one collection view.
type QueryState struct {
	MediaType      TypeFilter
	Sort           SortKey
	Order          SortOrder
	Genres         []string
	RuntimeCeiling int
	Page           int
}

func DefaultQuery() QueryState {
	return QueryState{
		MediaType:      TypeAll,
		Sort:           SortSavedAt,
		Order:          OrderDesc,
		RuntimeCeiling: MaxRuntime,
		Page:           1,
	}
}

// Normalize canonicalizes type, sort and order, replaces out-of-domain fields
// with their defaults and dedupes genres.
func (q QueryState) Normalize() QueryState {
	def := DefaultQuery()
	out := q
	if v, ok := parseTypeFilter(string(q.MediaType)); ok {
		out.MediaType = v
	} else {
		out.MediaType = def.MediaType
	}
	if v, ok := parseSortKey(string(q.Sort)); ok {
		out.Sort = v
	} else {
		out.Sort = def.Sort
	}
	if v, ok := parseSortOrder(string(q.Order)); ok {
		out.Order = v
	} else {
		out.Order = def.Order
	}
	if q.RuntimeCeiling < 0 || q.RuntimeCeiling > MaxRuntime {
		out.RuntimeCeiling = def.RuntimeCeiling
	}
	if q.Page < 1 {
		out.Page = def.Page
	}
	out.Genres = cleanGenres(q.Genres)
	return out
}

// HasRuntimeCeiling reports whether the runtime filter takes effect.
func (q QueryState) HasRuntimeCeiling() bool {
	return q.MediaType == TypeMovie && q.RuntimeCeiling < MaxRuntime
}

// Encode renders q as flat parameters. Empty genre sets are omitted.
func Encode(q QueryState) url.Values {
	q = q.Normalize()
	values := url.Values{}
	values.Set(KeyType, string(q.MediaType))
	values.Set(KeySort, string(q.Sort))
	values.Set(KeyOrder, string(q.Order))
	if len(q.Genres) > 0 {
		values.Set(KeyGenres, strings.Join(q.Genres, ","))
	}
	values.Set(KeyRuntime, strconv.Itoa(q.RuntimeCeiling))
	values.Set(KeyPage, strconv.Itoa(q.Page))
	return values
}

// Decode reads parameters produced by Encode. Missing or unparseable keys
// fall back to their defaults; unknown keys are ignored.
func Decode(values url.Values) QueryState {
	q := DefaultQuery()

	if v, ok := parseTypeFilter(values.Get(KeyType)); ok {
		q.MediaType = v
	}
	if v, ok := parseSortKey(values.Get(KeySort)); ok {
		q.Sort = v
	}
	if v, ok := parseSortOrder(values.Get(KeyOrder)); ok {
		q.Order = v
	}
	if raw := values.Get(KeyGenres); raw != "" {
		q.Genres = cleanGenres(strings.Split(raw, ","))
	}
	if v, err := strconv.Atoi(strings.TrimSpace(values.Get(KeyRuntime))); err == nil && v >= 0 && v <= MaxRuntime {
		q.RuntimeCeiling = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(values.Get(KeyPage))); err == nil && v >= 1 {
		q.Page = v
	}
	return q
}

func parseTypeFilter(raw string) (TypeFilter, bool) {
	switch TypeFilter(strings.ToLower(strings.TrimSpace(raw))) {
	case TypeAll:
		return TypeAll, true
	case TypeMovie:
		return TypeMovie, true
	case TypeTV:
		return TypeTV, true
	}
	return "", false
}

func parseSortOrder(raw string) (SortOrder, bool) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(raw))) {
	case OrderAsc:
		return OrderAsc, true
	case OrderDesc:
		return OrderDesc, true
	}
	return "", false
}

// parseSortKey also accepts the "<key>.desc" form older links carry.
func parseSortKey(raw string) (SortKey, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	raw = strings.TrimSuffix(raw, ".desc")
	switch SortKey(raw) {
	case SortSavedAt:
		return SortSavedAt, true
	case SortVoteAverage:
		return SortVoteAverage, true
	case SortReleaseDate:
		return SortReleaseDate, true
	}
	return "", false
}

func cleanGenres(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, g := range in {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
