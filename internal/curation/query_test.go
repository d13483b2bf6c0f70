package curation

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeDefaults(t *testing.T) {
	assert.Equal(t, DefaultQuery(), Decode(url.Values{}))
	assert.Equal(t, DefaultQuery(), Decode(nil))
}

func TestDecodeInvalidFallsBack(t *testing.T) {
	q := Decode(url.Values{
		KeyType:    {"anime"},
		KeySort:    {"popularity"},
		KeyOrder:   {"sideways"},
		KeyGenres:  {" , ,"},
		KeyRuntime: {"999"},
		KeyPage:    {"-3"},
		"utm":      {"newsletter"},
	})
	assert.Equal(t, DefaultQuery(), q)

	q = Decode(url.Values{KeyRuntime: {"abc"}, KeyPage: {"two"}})
	assert.Equal(t, MaxRuntime, q.RuntimeCeiling)
	assert.Equal(t, 1, q.Page)
}

func TestDecodeLegacySortValues(t *testing.T) {
	assert.Equal(t, SortVoteAverage, Decode(url.Values{KeySort: {"vote_average.desc"}}).Sort)
	assert.Equal(t, SortReleaseDate, Decode(url.Values{KeySort: {"release_date.desc"}}).Sort)
	assert.Equal(t, SortSavedAt, Decode(url.Values{KeySort: {"saved_at.desc"}}).Sort)
}

func TestNormalizeCanonicalizes(t *testing.T) {
	q := QueryState{
		MediaType:      "Movie",
		Sort:           "Vote_Average",
		Order:          " ASC",
		RuntimeCeiling: 120,
		Page:           2,
	}.Normalize()

	assert.Equal(t, TypeMovie, q.MediaType)
	assert.Equal(t, SortVoteAverage, q.Sort)
	assert.Equal(t, OrderAsc, q.Order)
	assert.True(t, q.HasRuntimeCeiling())

	values := Encode(QueryState{MediaType: "TV", Sort: "release_date.desc", Page: 1})
	assert.Equal(t, "tv", values.Get(KeyType))
	assert.Equal(t, "release_date", values.Get(KeySort))
	assert.Equal(t, "desc", values.Get(KeyOrder))
}

func TestDecodeGenres(t *testing.T) {
	q := Decode(url.Values{KeyGenres: {"Drama, Crime,Drama,,Action & Adventure"}})
	assert.Equal(t, []string{"Drama", "Crime", "Action & Adventure"}, q.Genres)
}

func TestEncodeOmitsEmptyGenres(t *testing.T) {
	values := Encode(DefaultQuery())
	_, ok := values[KeyGenres]
	assert.False(t, ok)
	assert.Equal(t, "all", values.Get(KeyType))
	assert.Equal(t, "saved_at", values.Get(KeySort))
	assert.Equal(t, "desc", values.Get(KeyOrder))
	assert.Equal(t, "240", values.Get(KeyRuntime))
	assert.Equal(t, "1", values.Get(KeyPage))
}

func TestRoundTrip(t *testing.T) {
	states := []QueryState{DefaultQuery()}
	for _, typ := range []TypeFilter{TypeAll, TypeMovie, TypeTV} {
		for _, sort := range []SortKey{SortSavedAt, SortVoteAverage, SortReleaseDate} {
			for _, order := range []SortOrder{OrderDesc, OrderAsc} {
				states = append(states, QueryState{
					MediaType:      typ,
					Sort:           sort,
					Order:          order,
					Genres:         []string{"Science Fiction", "Sci-Fi & Fantasy"},
					RuntimeCeiling: 95,
					Page:           3,
				})
			}
		}
	}
	states = append(states,
		QueryState{MediaType: TypeMovie, Sort: SortSavedAt, Order: OrderDesc, RuntimeCeiling: 0, Page: 1},
		QueryState{MediaType: TypeTV, Sort: SortSavedAt, Order: OrderAsc, Genres: []string{"War"}, RuntimeCeiling: MaxRuntime, Page: 12},
	)

	for _, q := range states {
		decoded := Decode(Encode(q))
		assert.Equal(t, q, decoded)
		assert.Equal(t, decoded, Decode(Encode(decoded)))
	}
}

func TestRoundTripThroughQueryString(t *testing.T) {
	q := QueryState{
		MediaType:      TypeMovie,
		Sort:           SortReleaseDate,
		Order:          OrderAsc,
		Genres:         []string{"Action & Adventure", "Drama"},
		RuntimeCeiling: 120,
		Page:           2,
	}
	parsed, err := url.ParseQuery(Encode(q).Encode())
	assert.NoError(t, err)
	assert.Equal(t, q, Decode(parsed))
}
