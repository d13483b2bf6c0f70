// Package record defines the saved-title document kept in a user's collections.
package record

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type MediaType string

const (
	Movie MediaType = "movie"
	TV    MediaType = "tv"
)

func ParseMediaType(raw string) (MediaType, error) {
	switch MediaType(strings.ToLower(strings.TrimSpace(raw))) {
	case Movie:
		return Movie, nil
	case TV:
		return TV, nil
	}
	return "", fmt.Errorf("invalid media type %q", raw)
}

// Collection names a per-user bucket of items.
type Collection string

const (
	Watchlist Collection = "watchlist"
	Watched   Collection = "watched"
)

// Collections lists every collection a user owns.
var Collections = []Collection{Watchlist, Watched}

// ParseCollection accepts "watchedfilms" as an older name for Watched.
func ParseCollection(raw string) (Collection, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(Watchlist):
		return Watchlist, nil
	case string(Watched), "watchedfilms":
		return Watched, nil
	}
	return "", fmt.Errorf("unknown collection %q", raw)
}

// Item is a title saved to a collection. RuntimeMinutes holds the feature
// runtime for movies and the episode count for tv.
type Item struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	MediaType      MediaType `json:"type"`
	PosterPath     string    `json:"poster_path,omitempty"`
	ReleaseDate    string    `json:"release_date,omitempty"`
	VoteAverage    *float64  `json:"vote_average,omitempty"`
	Overview       string    `json:"overview,omitempty"`
	SavedAt        time.Time `json:"saved_at"`
	RuntimeMinutes *int      `json:"runtime,omitempty"`
	Genres         []string  `json:"genres"`
}

var (
	ErrMissingID    = errors.New("item id is required")
	ErrMissingTitle = errors.New("item title is required")
)

func (it *Item) Validate() error {
	if strings.TrimSpace(it.ID) == "" {
		return ErrMissingID
	}
	if strings.TrimSpace(it.Title) == "" {
		return ErrMissingTitle
	}
	if _, err := ParseMediaType(string(it.MediaType)); err != nil {
		return err
	}
	return nil
}

// Runtime returns RuntimeMinutes, treating an absent value as zero.
func (it *Item) Runtime() int {
	if it.RuntimeMinutes == nil {
		return 0
	}
	return *it.RuntimeMinutes
}

// HasGenre reports whether name appears in the item's genres.
func (it *Item) HasGenre(name string) bool {
	for _, g := range it.Genres {
		if g == name {
			return true
		}
	}
	return false
}

// Release parses ReleaseDate. ok is false when the date is absent or unparseable.
func (it *Item) Release() (t time.Time, ok bool) {
	raw := strings.TrimSpace(it.ReleaseDate)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339, "2006-01"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, true
		}
	}
	if len(raw) == 4 {
		if parsed, err := time.Parse("2006", raw); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// Clone returns a copy that shares no mutable state with it.
func (it *Item) Clone() Item {
	out := *it
	if it.VoteAverage != nil {
		v := *it.VoteAverage
		out.VoteAverage = &v
	}
	if it.RuntimeMinutes != nil {
		v := *it.RuntimeMinutes
		out.RuntimeMinutes = &v
	}
	if it.Genres != nil {
		out.Genres = append([]string(nil), it.Genres...)
	}
	return out
}
