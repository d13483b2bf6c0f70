package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/handsomefox/reelshelf/internal/logger"
	"github.com/handsomefox/reelshelf/internal/record"
	"github.com/handsomefox/reelshelf/internal/tmdb"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if payload == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("write json failed", logger.Error(err))
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected trailing json")
		}
		return err
	}
	return nil
}

func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return 0, errors.New("missing id")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("bad id")
	}
	return id, nil
}

func collectionParam(r *http.Request) (record.Collection, error) {
	c, err := record.ParseCollection(chi.URLParam(r, "collection"))
	if err != nil {
		return "", notFound("unknown collection")
	}
	return c, nil
}

func intQuery(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func badRequest(msg string) error   { return &Error{Status: http.StatusBadRequest, Message: msg} }
func unauthorized(msg string) error { return &Error{Status: http.StatusUnauthorized, Message: msg} }
func notFound(msg string) error     { return &Error{Status: http.StatusNotFound, Message: msg} }

// metadataError turns a failed metadata call into a 400 for bad input and a
// 502 otherwise.
func metadataError(op string, err error) error {
	if errors.Is(err, tmdb.ErrInvalidMediaType) || errors.Is(err, tmdb.ErrInvalidWindow) {
		return badRequest(err.Error())
	}
	var statusErr *tmdb.StatusError
	if errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound {
		return notFound("title not found")
	}
	slog.Warn(op+": tmdb request failed", logger.Error(err))
	return &Error{Status: http.StatusBadGateway, Message: "metadata service unavailable"}
}

func imdbURL(id string) string {
	if strings.TrimSpace(id) == "" {
		return ""
	}
	return "https://www.imdb.com/title/" + strings.TrimSpace(id) + "/"
}
