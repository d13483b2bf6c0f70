package handlers

import (
	"time"

	"github.com/handsomefox/reelshelf/internal/curation"
	"github.com/handsomefox/reelshelf/internal/record"
	"github.com/handsomefox/reelshelf/internal/tmdb"
)

type errorResponse struct {
	Error string `json:"error"`
}

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	Email         string `json:"email,omitempty"`
	ImageBase     string `json:"image_base"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type addItemRequest struct {
	ID        int64  `json:"id"`
	MediaType string `json:"media_type"`
}

type moveRequest struct {
	To string `json:"to"`
}

// queryState echoes the decoded query with its canonical encoding.
type queryState struct {
	MediaType      curation.TypeFilter `json:"type"`
	Sort           curation.SortKey    `json:"sort"`
	Order          curation.SortOrder  `json:"order"`
	Genres         []string            `json:"genres"`
	UnknownGenres  []string            `json:"unknown_genres,omitempty"`
	RuntimeCeiling int                 `json:"runtime"`
	Page           int                 `json:"page"`
	Encoded        string              `json:"encoded"`
}

func toQueryState(q curation.QueryState) queryState {
	genres := q.Genres
	if genres == nil {
		genres = []string{}
	}
	var unknown []string
	for _, g := range genres {
		if !record.IsKnownGenre(g) {
			unknown = append(unknown, g)
		}
	}
	return queryState{
		MediaType:      q.MediaType,
		Sort:           q.Sort,
		Order:          q.Order,
		Genres:         genres,
		UnknownGenres:  unknown,
		RuntimeCeiling: q.RuntimeCeiling,
		Page:           q.Page,
		Encoded:        curation.Encode(q).Encode(),
	}
}

type collectionPage struct {
	Collection record.Collection `json:"collection"`
	GenreMode  string            `json:"genre_mode"`
	Query      queryState        `json:"query"`
	Items      []record.Item     `json:"items"`
	Total      int               `json:"total"`
	TotalPages int               `json:"total_pages"`
	FetchedAt  time.Time         `json:"fetched_at"`
	Warning    string            `json:"warning,omitempty"`
}

type itemResponse struct {
	Item    record.Item `json:"item"`
	Warning string      `json:"warning,omitempty"`
}

type clearResponse struct {
	Deleted int    `json:"deleted"`
	Failed  int    `json:"failed,omitempty"`
	Warning string `json:"warning,omitempty"`
}

type genresResponse struct {
	Genres []string `json:"genres"`
}

type titleResponse struct {
	Item        record.Item `json:"item"`
	IMDbURL     string      `json:"imdb_url,omitempty"`
	InWatchlist *bool       `json:"in_watchlist,omitempty"`
	InWatched   *bool       `json:"in_watched,omitempty"`
}

type resultsResponse struct {
	tmdb.SearchPage
	DisplayPages int `json:"display_pages"`
}
