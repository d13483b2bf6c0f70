package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sourcegraph/conc/pool"

	"github.com/handsomefox/reelshelf/internal/record"
	"github.com/handsomefox/reelshelf/internal/tmdb"
)

func (h *Handler) getTrending(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	page, err := h.tmdb.Trending(r.Context(), strings.TrimSpace(q.Get("media_type")), strings.TrimSpace(q.Get("window")))
	if err != nil {
		return metadataError("trending", err)
	}
	writeJSON(w, http.StatusOK, toResults(page))
	return nil
}

func (h *Handler) getSearch(w http.ResponseWriter, r *http.Request) error {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusOK, toResults(tmdb.SearchPage{Page: 1}))
		return nil
	}

	page, err := h.tmdb.SearchPage(r.Context(), query, intQuery(r, "page", 1))
	if err != nil {
		return metadataError("search", err)
	}
	writeJSON(w, http.StatusOK, toResults(page))
	return nil
}

func (h *Handler) getDiscover(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()

	mediaType := record.Movie
	if raw := strings.TrimSpace(q.Get("media_type")); raw != "" {
		mt, err := record.ParseMediaType(raw)
		if err != nil {
			return badRequest("invalid media_type")
		}
		mediaType = mt
	}

	filters := tmdb.DiscoverFilters{
		SortBy:   strings.TrimSpace(q.Get("sort")),
		YearFrom: tmdb.ParseYear(q.Get("year_from")),
		YearTo:   tmdb.ParseYear(q.Get("year_to")),
	}
	if raw := strings.TrimSpace(q.Get("min_rating")); raw != "" {
		rating, err := strconv.ParseFloat(raw, 64)
		if err != nil || rating < 0 || rating > 10 {
			return badRequest("invalid min_rating")
		}
		filters.MinRating = &rating
	}

	page, err := h.tmdb.DiscoverPage(r.Context(), mediaType, filters, intQuery(r, "page", 1))
	if err != nil {
		return metadataError("discover", err)
	}
	writeJSON(w, http.StatusOK, toResults(page))
	return nil
}

// getTitle serves a title's details. Signed-in callers also learn whether the
// title is already in each of their collections.
func (h *Handler) getTitle(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	mediaType, err := record.ParseMediaType(chi.URLParam(r, "media_type"))
	if err != nil {
		return notFound("not found")
	}
	id, err := idParam(r, "id")
	if err != nil {
		return notFound("not found")
	}

	detail, err := h.tmdb.FetchDetails(ctx, id, mediaType)
	if err != nil {
		return metadataError("title", err)
	}

	resp := &titleResponse{
		Item:    detail.Item(h.now()),
		IMDbURL: imdbURL(detail.IMDbID),
	}

	if sess, ok := sessionFrom(ctx); ok {
		var inWatchlist, inWatched bool
		p := pool.New().WithErrors().WithContext(ctx)
		p.Go(func(ctx context.Context) (err error) {
			inWatchlist, err = h.collections.Exists(ctx, sess.UserID, record.Watchlist, resp.Item.ID)
			return err
		})
		p.Go(func(ctx context.Context) (err error) {
			inWatched, err = h.collections.Exists(ctx, sess.UserID, record.Watched, resp.Item.ID)
			return err
		})
		if err := p.Wait(); err != nil {
			return err
		}
		resp.InWatchlist = &inWatchlist
		resp.InWatched = &inWatched
	}

	writeJSON(w, http.StatusOK, resp)
	return nil
}

func toResults(page tmdb.SearchPage) *resultsResponse {
	if page.Results == nil {
		page.Results = []tmdb.SearchResult{}
	}
	return &resultsResponse{
		SearchPage:   page,
		DisplayPages: max(page.TotalPages, 1),
	}
}
