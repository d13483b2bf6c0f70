// Package handlers wires HTTP routing and API handlers.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/handsomefox/reelshelf/internal/auth"
	"github.com/handsomefox/reelshelf/internal/collection"
	"github.com/handsomefox/reelshelf/internal/curation"
	"github.com/handsomefox/reelshelf/internal/logger"
	"github.com/handsomefox/reelshelf/internal/paging"
	"github.com/handsomefox/reelshelf/internal/record"
	"github.com/handsomefox/reelshelf/internal/store"
	"github.com/handsomefox/reelshelf/internal/tmdb"
)

type Handler struct {
	auth        *auth.Service
	collections *collection.Adapter
	tmdb        *tmdb.Client
	imageBase   string
	pageSize    int
	now         func() time.Time

	viewsMu sync.Mutex
	views   *lru.Cache[string, *curation.View]
}

type Config struct {
	Store         *store.Store
	TMDB          *tmdb.Client
	Auth          *auth.Service
	ImageBase     string
	PageSize      int
	ViewCacheSize int
	Now           func() time.Time
}

func New(cfg *Config) (*Handler, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.TMDB == nil {
		return nil, errors.New("tmdb client is required")
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = paging.DefaultPageSize
	}
	cacheSize := cfg.ViewCacheSize
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	views, err := lru.New[string, *curation.View](cacheSize)
	if err != nil {
		return nil, err
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	authSvc := cfg.Auth
	if authSvc == nil {
		authSvc = auth.New(cfg.Store, auth.WithClock(now))
	}

	return &Handler{
		auth:        authSvc,
		collections: collection.New(cfg.Store, collection.WithClock(now)),
		tmdb:        cfg.TMDB,
		imageBase:   cfg.ImageBase,
		pageSize:    pageSize,
		now:         now,
		views:       views,
	}, nil
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Use(h.MiddlewareSession)

	r.Method(http.MethodGet, "/session", Adapt(h.getSession))
	r.Method(http.MethodPost, "/signup", Adapt(h.postSignup))
	r.Method(http.MethodPost, "/login", Adapt(h.postLogin))

	r.Method(http.MethodGet, "/genres", Adapt(h.getGenres))
	r.Method(http.MethodGet, "/trending", Adapt(h.getTrending))
	r.Method(http.MethodGet, "/search", Adapt(h.getSearch))
	r.Method(http.MethodGet, "/discover", Adapt(h.getDiscover))
	r.Method(http.MethodGet, "/titles/{media_type}/{id:[0-9]+}", Adapt(h.getTitle))

	r.Group(func(r chi.Router) {
		r.Use(h.MiddlewareRequireAuth)

		r.Method(http.MethodPost, "/logout", Adapt(h.postLogout))
		r.Method(http.MethodGet, "/export", Adapt(h.getExport))

		r.Route("/collections/{collection}", func(r chi.Router) {
			r.Method(http.MethodGet, "/", Adapt(h.getCollection))
			r.Method(http.MethodPost, "/", Adapt(h.postCollectionItem))
			r.Method(http.MethodDelete, "/", Adapt(h.deleteCollection))

			r.Route("/{id}", func(r chi.Router) {
				r.Method(http.MethodGet, "/", Adapt(h.getCollectionItem))
				r.Method(http.MethodDelete, "/", Adapt(h.deleteCollectionItem))
				r.Method(http.MethodPost, "/move", Adapt(h.postMoveItem))
			})
		})
	})
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) error {
	resp := &sessionResponse{ImageBase: h.imageBase}
	if sess, ok := sessionFrom(r.Context()); ok {
		resp.Authenticated = true
		resp.Email = sess.Email
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *Handler) postSignup(w http.ResponseWriter, r *http.Request) error {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return badRequest("bad request")
	}

	sess, err := h.auth.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	setSessionCookie(w, &sess)
	writeJSON(w, http.StatusCreated, &sessionResponse{
		Authenticated: true,
		Email:         sess.Email,
		ImageBase:     h.imageBase,
	})
	return nil
}

func (h *Handler) postLogin(w http.ResponseWriter, r *http.Request) error {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return badRequest("bad request")
	}

	sess, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			slog.Warn("login: invalid credentials", slog.String("remote", r.RemoteAddr))
		}
		return err
	}

	setSessionCookie(w, &sess)
	writeJSON(w, http.StatusOK, &sessionResponse{
		Authenticated: true,
		Email:         sess.Email,
		ImageBase:     h.imageBase,
	})
	return nil
}

func (h *Handler) postLogout(w http.ResponseWriter, r *http.Request) error {
	sess, _ := sessionFrom(r.Context())
	if err := h.auth.SignOut(r.Context(), sess.Token); err != nil {
		slog.Warn("logout: delete session failed", logger.Error(err))
		return err
	}

	h.forgetViews(sess.UserID)
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, &sessionResponse{ImageBase: h.imageBase})
	return nil
}

func (h *Handler) getGenres(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, &genresResponse{Genres: record.Genres})
	return nil
}

// view returns the cached curation view for one user's collection.
func (h *Handler) view(userID string, c record.Collection) *curation.View {
	key := userID + "/" + string(c)

	h.viewsMu.Lock()
	defer h.viewsMu.Unlock()
	if v, ok := h.views.Get(key); ok {
		return v
	}
	v := curation.NewView(curation.PipelineFor(c), h.pageSize)
	h.views.Add(key, v)
	return v
}

func (h *Handler) forgetViews(userID string) {
	for _, c := range record.Collections {
		h.views.Remove(userID + "/" + string(c))
	}
}
