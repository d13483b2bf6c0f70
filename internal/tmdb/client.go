// Package tmdb wraps the TMDB v3 API for details, trending, search and discover.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"

	"github.com/handsomefox/reelshelf/internal/record"
)

const DefaultBaseURL = "https://api.themoviedb.org/3"

var (
	ErrInvalidMediaType = errors.New("invalid media type")
	ErrInvalidWindow    = errors.New("invalid trending window")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Op     string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tmdb %s failed: %d %s", e.Op, e.Status, http.StatusText(e.Status))
}

func (e *StatusError) retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

type Client struct {
	apiKey    string
	readToken string
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
	attempts  uint
	delay     time.Duration
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRate limits outbound requests to perSecond with a burst of one.
func WithRate(perSecond float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1) }
}

// WithRetry sets the total number of attempts per request and the base
// backoff delay. Zero attempts is treated as one.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		c.attempts = max(attempts, 1)
		c.delay = delay
	}
}

func New(apiKey, readToken string, opts ...Option) *Client {
	if strings.TrimSpace(readToken) == "" && looksLikeJWT(apiKey) {
		readToken = apiKey
		apiKey = ""
	}
	c := &Client{
		apiKey:    apiKey,
		readToken: readToken,
		baseURL:   DefaultBaseURL,
		http:      &http.Client{Timeout: 10 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(20), 1),
		attempts:  3,
		delay:     200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type SearchResult struct {
	ID          int64            `json:"id"`
	MediaType   record.MediaType `json:"media_type"`
	Title       string           `json:"title"`
	ReleaseDate string           `json:"release_date,omitempty"`
	PosterPath  string           `json:"poster_path,omitempty"`
	Overview    string           `json:"overview,omitempty"`
	VoteAverage float64          `json:"vote_average"`
	VoteCount   int              `json:"vote_count"`
}

type SearchPage struct {
	Results      []SearchResult `json:"results"`
	Page         int            `json:"page"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
}

type Detail struct {
	TMDBID           int64
	MediaType        record.MediaType
	Title            string
	ReleaseDate      string
	Genres           []string
	Overview         string
	PosterPath       string
	IMDbID           string
	VoteAverage      float64
	VoteCount        int
	Runtime          int
	NumberOfEpisodes int
}

// Item projects d into a collection record saved at now. TV titles store their
// episode count as runtime.
func (d *Detail) Item(now time.Time) record.Item {
	item := record.Item{
		ID:          strconv.FormatInt(d.TMDBID, 10),
		Title:       d.Title,
		MediaType:   d.MediaType,
		PosterPath:  d.PosterPath,
		ReleaseDate: d.ReleaseDate,
		Overview:    d.Overview,
		SavedAt:     now.UTC(),
		Genres:      append([]string(nil), d.Genres...),
	}
	if d.VoteCount > 0 || d.VoteAverage > 0 {
		v := d.VoteAverage
		item.VoteAverage = &v
	}
	runtime := d.Runtime
	if d.MediaType == record.TV {
		runtime = d.NumberOfEpisodes
	}
	if runtime > 0 {
		item.RuntimeMinutes = &runtime
	}
	return item
}

type resultPayload struct {
	ID           int64   `json:"id"`
	MediaType    string  `json:"media_type"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	PosterPath   string  `json:"poster_path"`
	Overview     string  `json:"overview"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
}

type pagePayload struct {
	Page         int             `json:"page"`
	TotalPages   int             `json:"total_pages"`
	TotalResults int             `json:"total_results"`
	Results      []resultPayload `json:"results"`
}

type detailPayload struct {
	resultPayload
	Runtime          int `json:"runtime"`
	NumberOfEpisodes int `json:"number_of_episodes"`
	Genres           []struct {
		Name string `json:"name"`
	} `json:"genres"`
	ExternalIDs struct {
		IMDbID string `json:"imdb_id"`
	} `json:"external_ids"`
}

func (c *Client) FetchDetails(ctx context.Context, id int64, mediaType record.MediaType) (*Detail, error) {
	if mediaType != record.Movie && mediaType != record.TV {
		return nil, ErrInvalidMediaType
	}
	values := url.Values{}
	values.Set("append_to_response", "external_ids")

	var payload detailPayload
	if err := c.get(ctx, "details", fmt.Sprintf("/%s/%d", mediaType, id), values, &payload); err != nil {
		return nil, err
	}

	detail := &Detail{
		TMDBID:           payload.ID,
		MediaType:        mediaType,
		PosterPath:       payload.PosterPath,
		Overview:         payload.Overview,
		VoteAverage:      payload.VoteAverage,
		VoteCount:        payload.VoteCount,
		IMDbID:           payload.ExternalIDs.IMDbID,
		Runtime:          payload.Runtime,
		NumberOfEpisodes: payload.NumberOfEpisodes,
	}
	detail.Title, detail.ReleaseDate = payload.titleAndDate(mediaType)
	for _, g := range payload.Genres {
		if strings.TrimSpace(g.Name) == "" {
			continue
		}
		detail.Genres = append(detail.Genres, g.Name)
	}
	return detail, nil
}

// Trending lists titles trending over window ("day" or "week"). An empty
// mediaType means all.
func (c *Client) Trending(ctx context.Context, mediaType, window string) (SearchPage, error) {
	switch mediaType {
	case "":
		mediaType = "all"
	case "all", string(record.Movie), string(record.TV):
	default:
		return SearchPage{}, ErrInvalidMediaType
	}
	if window == "" {
		window = "day"
	}
	if window != "day" && window != "week" {
		return SearchPage{}, ErrInvalidWindow
	}
	override := ""
	if mediaType != "all" {
		override = mediaType
	}
	return c.fetchPage(ctx, "trending", "/trending/"+mediaType+"/"+window, url.Values{}, override)
}

func (c *Client) SearchPage(ctx context.Context, query string, page int) (SearchPage, error) {
	if strings.TrimSpace(query) == "" {
		return SearchPage{}, nil
	}
	values := url.Values{}
	values.Set("query", query)
	values.Set("include_adult", "false")
	values.Set("page", strconv.Itoa(max(page, 1)))
	return c.fetchPage(ctx, "search", "/search/multi", values, "")
}

type DiscoverFilters struct {
	SortBy    string
	YearFrom  *int
	YearTo    *int
	MinRating *float64
}

var discoverSorts = map[string]bool{
	"popularity.desc":   true,
	"vote_average.desc": true,
	"release_date.desc": true,
}

func (c *Client) DiscoverPage(ctx context.Context, mediaType record.MediaType, filters DiscoverFilters, page int) (SearchPage, error) {
	if mediaType != record.Movie && mediaType != record.TV {
		return SearchPage{}, ErrInvalidMediaType
	}
	values := url.Values{}
	values.Set("include_adult", "false")
	sortBy := filters.SortBy
	if !discoverSorts[sortBy] {
		sortBy = "popularity.desc"
	}
	dateFromKey := "primary_release_date.gte"
	dateToKey := "primary_release_date.lte"
	if mediaType == record.TV {
		dateFromKey = "first_air_date.gte"
		dateToKey = "first_air_date.lte"
		if sortBy == "release_date.desc" {
			sortBy = "first_air_date.desc"
		}
	}
	values.Set("sort_by", sortBy)
	if filters.MinRating != nil {
		values.Set("vote_average.gte", strconv.FormatFloat(*filters.MinRating, 'f', 1, 64))
	}
	if filters.YearFrom != nil {
		values.Set(dateFromKey, fmt.Sprintf("%04d-01-01", *filters.YearFrom))
	}
	if filters.YearTo != nil {
		values.Set(dateToKey, fmt.Sprintf("%04d-12-31", *filters.YearTo))
	}
	values.Set("page", strconv.Itoa(max(page, 1)))
	return c.fetchPage(ctx, "discover", "/discover/"+string(mediaType), values, string(mediaType))
}

func (c *Client) fetchPage(ctx context.Context, op, path string, values url.Values, mediaTypeOverride string) (SearchPage, error) {
	var payload pagePayload
	if err := c.get(ctx, op, path, values, &payload); err != nil {
		return SearchPage{}, err
	}

	out := make([]SearchResult, 0, len(payload.Results))
	for i := range payload.Results {
		r := payload.Results[i]
		mediaType := record.MediaType(r.MediaType)
		if mediaTypeOverride != "" {
			mediaType = record.MediaType(mediaTypeOverride)
		}
		if mediaType != record.Movie && mediaType != record.TV {
			continue
		}
		res := SearchResult{
			ID:          r.ID,
			MediaType:   mediaType,
			PosterPath:  r.PosterPath,
			Overview:    r.Overview,
			VoteAverage: r.VoteAverage,
			VoteCount:   r.VoteCount,
		}
		res.Title, res.ReleaseDate = r.titleAndDate(mediaType)
		out = append(out, res)
	}
	return SearchPage{
		Results:      out,
		Page:         payload.Page,
		TotalPages:   payload.TotalPages,
		TotalResults: payload.TotalResults,
	}, nil
}

func (r *resultPayload) titleAndDate(mediaType record.MediaType) (string, string) {
	if mediaType == record.TV {
		return r.Name, r.FirstAirDate
	}
	return r.Title, r.ReleaseDate
}

// get performs a rate limited GET against path and decodes the body into dst.
// Network errors, 429 and 5xx responses are retried.
func (c *Client) get(ctx context.Context, op, path string, values url.Values, dst any) error {
	if c.apiKey != "" {
		values.Set("api_key", c.apiKey)
	}
	endpoint := c.baseURL + path
	if encoded := values.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	body, err := retry.DoWithData(
		func() ([]byte, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, retry.Unrecoverable(err)
			}
			return c.do(ctx, op, endpoint)
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("tmdb %s: decode: %w", op, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	c.applyAuth(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, retry.Unrecoverable(err)
		}
		return nil, err
	}
	body, readErr := io.ReadAll(resp.Body)
	if cerr := resp.Body.Close(); cerr != nil && readErr == nil {
		readErr = cerr
	}

	if resp.StatusCode >= 400 {
		statusErr := &StatusError{Op: op, Status: resp.StatusCode}
		if !statusErr.retryable() {
			return nil, retry.Unrecoverable(statusErr)
		}
		return nil, statusErr
	}
	if readErr != nil {
		return nil, readErr
	}
	return body, nil
}

func (c *Client) applyAuth(req *http.Request) {
	if strings.TrimSpace(c.readToken) == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(c.readToken))
}

func looksLikeJWT(token string) bool {
	parts := strings.Split(strings.TrimSpace(token), ".")
	return len(parts) == 3 && len(token) > 80
}

func ParseYear(year string) *int {
	year = strings.TrimSpace(year)
	if year == "" {
		return nil
	}
	val, err := strconv.Atoi(year)
	if err != nil {
		return nil
	}
	return &val
}
