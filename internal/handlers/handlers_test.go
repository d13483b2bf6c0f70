package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/handsomefox/reelshelf/internal/auth"
	"github.com/handsomefox/reelshelf/internal/record"
	"github.com/handsomefox/reelshelf/internal/store"
	"github.com/handsomefox/reelshelf/internal/tmdb"
)

var fakeTMDB = map[string]string{
	"/movie/603": `{"id":603,"title":"The Matrix","release_date":"1999-03-31","vote_average":8.2,
		"vote_count":100,"runtime":136,"genres":[{"name":"Action"},{"name":"Science Fiction"}],
		"external_ids":{"imdb_id":"tt0133093"}}`,
	"/movie/13": `{"id":13,"title":"Forrest Gump","release_date":"1994-07-06","vote_average":8.5,
		"vote_count":100,"runtime":142,"genres":[{"name":"Comedy"},{"name":"Drama"}]}`,
	"/tv/1396": `{"id":1396,"name":"Breaking Bad","first_air_date":"2008-01-20","vote_average":8.9,
		"vote_count":100,"number_of_episodes":62,"genres":[{"name":"Drama"},{"name":"Crime"}]}`,
	"/trending/all/day": `{"page":1,"total_pages":1,"total_results":1,
		"results":[{"id":603,"media_type":"movie","title":"The Matrix"}]}`,
	"/search/multi": `{"page":1,"total_pages":0,"total_results":0,"results":[]}`,
	"/discover/movie": `{"page":2,"total_pages":4,"total_results":70,
		"results":[{"id":13,"title":"Forrest Gump"}]}`,
}

type testApp struct {
	t      *testing.T
	router chi.Router
	now    time.Time
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	meta := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search/multi" && r.URL.Query().Get("query") == "boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		body, ok := fakeTMDB[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(meta.Close)

	st, err := store.Open(filepath.Join(t.TempDir(), "handlers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	app := &testApp{t: t, now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return app.now }

	h, err := New(&Config{
		Store:     st,
		TMDB:      tmdb.New("key", "", tmdb.WithBaseURL(meta.URL), tmdb.WithRate(1000), tmdb.WithRetry(2, time.Millisecond)),
		Auth:      auth.New(st, auth.WithCost(bcrypt.MinCost), auth.WithClock(clock)),
		ImageBase: "https://images.example/w342",
		PageSize:  2,
		Now:       clock,
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	app.router = r
	return app
}

func (a *testApp) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) signup(email string) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/signup", "", credentialsRequest{Email: email, Password: "hunter22"})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c.Value
		}
	}
	a.t.Fatal("no session cookie")
	return ""
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestSessionLifecycle(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodGet, "/session", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[sessionResponse](t, rec).Authenticated)

	token := app.signup("viewer@example.com")

	req := httptest.NewRequest(http.MethodGet, "/session", http.NoBody)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	rec = httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	sess := decode[sessionResponse](t, rec)
	assert.True(t, sess.Authenticated)
	assert.Equal(t, "viewer@example.com", sess.Email)
	assert.Equal(t, "https://images.example/w342", sess.ImageBase)

	rec = app.do(http.MethodPost, "/signup", "", credentialsRequest{Email: "viewer@example.com", Password: "hunter22"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(http.MethodPost, "/login", "", credentialsRequest{Email: "viewer@example.com", Password: "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(http.MethodPost, "/login", "", map[string]string{"email": "viewer@example.com", "pass": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(http.MethodPost, "/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(http.MethodGet, "/collections/watchlist", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCollectionFlow(t *testing.T) {
	app := newTestApp(t)
	token := app.signup("viewer@example.com")

	rec := app.do(http.MethodPost, "/collections/watchlist", token, addItemRequest{ID: 603, MediaType: "movie"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	added := decode[itemResponse](t, rec).Item
	assert.Equal(t, "The Matrix", added.Title)
	assert.True(t, added.SavedAt.Equal(app.now))

	app.now = app.now.Add(time.Hour)
	rec = app.do(http.MethodPost, "/collections/watchlist", token, addItemRequest{ID: 1396, MediaType: "tv"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	app.now = app.now.Add(time.Hour)
	rec = app.do(http.MethodPost, "/collections/watchlist", token, addItemRequest{ID: 13, MediaType: "movie"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = app.do(http.MethodPost, "/collections/watchlist", token, addItemRequest{ID: 603, MediaType: "movie"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(http.MethodPost, "/collections/watchlist", token, addItemRequest{ID: 999, MediaType: "movie"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(http.MethodPost, "/collections/watchlist", token, addItemRequest{ID: 1, MediaType: "person"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(http.MethodGet, "/collections/watchlist", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[collectionPage](t, rec)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, "any", page.GenreMode)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "13", page.Items[0].ID)
	assert.Equal(t, "1396", page.Items[1].ID)
	assert.Empty(t, page.Warning)

	rec = app.do(http.MethodGet, "/collections/watchlist?type=movie&genres=Drama&page=4", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[collectionPage](t, rec)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "13", page.Items[0].ID)
	assert.Equal(t, 1, page.Query.Page)
	assert.Contains(t, page.Query.Encoded, "type=movie")
	assert.Empty(t, page.Query.UnknownGenres)

	rec = app.do(http.MethodGet, "/collections/watchlist?genres=Drama,Zombie", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[collectionPage](t, rec)
	assert.Equal(t, []string{"Drama", "Zombie"}, page.Query.Genres)
	assert.Equal(t, []string{"Zombie"}, page.Query.UnknownGenres)

	rec = app.do(http.MethodGet, "/collections/favorites", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(http.MethodPost, "/collections/watchlist/603/move", token, moveRequest{To: "watched"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decode[itemResponse](t, rec).Item
	assert.True(t, moved.SavedAt.Equal(app.now))

	rec = app.do(http.MethodGet, "/collections/watchlist/603", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = app.do(http.MethodGet, "/collections/watchedfilms/603", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(http.MethodPost, "/collections/watchlist/603/move", token, moveRequest{To: "watched"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = app.do(http.MethodPost, "/collections/watched/603/move", token, moveRequest{To: "watched"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(http.MethodDelete, "/collections/watched/603", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = app.do(http.MethodDelete, "/collections/watched/603", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = app.do(http.MethodDelete, "/collections/watchlist", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[clearResponse](t, rec).Deleted)

	rec = app.do(http.MethodGet, "/collections/watchlist", token, nil)
	page = decode[collectionPage](t, rec)
	assert.Zero(t, page.Total)
	assert.Equal(t, 1, page.TotalPages)
	assert.NotNil(t, page.Items)
}

func TestCollectionsAreIsolatedPerUser(t *testing.T) {
	app := newTestApp(t)
	alice := app.signup("alice@example.com")
	bob := app.signup("bob@example.com")

	rec := app.do(http.MethodPost, "/collections/watched", alice, addItemRequest{ID: 603, MediaType: "movie"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = app.do(http.MethodGet, "/collections/watched", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[collectionPage](t, rec)
	assert.Zero(t, page.Total)
	assert.Equal(t, "all_if_multiple", page.GenreMode)
}

func TestTitleMembership(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodGet, "/titles/movie/603", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	title := decode[titleResponse](t, rec)
	assert.Equal(t, "https://www.imdb.com/title/tt0133093/", title.IMDbURL)
	assert.Nil(t, title.InWatchlist)

	token := app.signup("viewer@example.com")
	rec = app.do(http.MethodPost, "/collections/watchlist", token, addItemRequest{ID: 603, MediaType: "movie"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = app.do(http.MethodGet, "/titles/movie/603", token, nil)
	title = decode[titleResponse](t, rec)
	require.NotNil(t, title.InWatchlist)
	require.NotNil(t, title.InWatched)
	assert.True(t, *title.InWatchlist)
	assert.False(t, *title.InWatched)

	rec = app.do(http.MethodGet, "/titles/person/603", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetadataEndpoints(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodGet, "/trending", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	results := decode[resultsResponse](t, rec)
	require.Len(t, results.Results, 1)
	assert.Equal(t, record.Movie, results.Results[0].MediaType)

	rec = app.do(http.MethodGet, "/trending?window=month", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(http.MethodGet, "/search?q=nothing", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	results = decode[resultsResponse](t, rec)
	assert.Empty(t, results.Results)
	assert.Equal(t, 1, results.DisplayPages)

	rec = app.do(http.MethodGet, "/search?q=boom", "", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = app.do(http.MethodGet, "/discover?page=2&sort=vote_average.desc", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	results = decode[resultsResponse](t, rec)
	assert.Equal(t, 4, results.TotalPages)

	rec = app.do(http.MethodGet, "/discover?min_rating=11", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(http.MethodGet, "/genres", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[genresResponse](t, rec).Genres, len(record.Genres))
}

func TestExport(t *testing.T) {
	app := newTestApp(t)
	token := app.signup("viewer@example.com")

	rec := app.do(http.MethodPost, "/collections/watched", token, addItemRequest{ID: 1396, MediaType: "tv"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = app.do(http.MethodGet, "/export", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment"))

	var payload struct {
		Collections map[string][]record.Item `json:"collections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Collections["watched"], 1)
	assert.Equal(t, 62, payload.Collections["watched"][0].Runtime())
	assert.Empty(t, payload.Collections["watchlist"])

	rec = app.do(http.MethodGet, "/export", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
