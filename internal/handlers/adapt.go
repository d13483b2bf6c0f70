package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/handsomefox/reelshelf/internal/auth"
	"github.com/handsomefox/reelshelf/internal/collection"
	"github.com/handsomefox/reelshelf/internal/logger"
	"github.com/handsomefox/reelshelf/internal/record"
)

type HandlerWithErr func(w http.ResponseWriter, r *http.Request) error

type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message + " code=" + strconv.FormatInt(int64(e.Status), 10)
}

func Adapt(h HandlerWithErr) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			status, msg := statusFor(err)
			if status >= http.StatusInternalServerError {
				slog.Error("request failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					logger.Error(err),
				)
			}
			writeJSON(w, status, &errorResponse{Error: msg})
		}
	})
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) (int, string) {
	var statusErr *Error
	switch {
	case errors.As(err, &statusErr):
		return statusErr.Status, statusErr.Message
	case errors.Is(err, collection.ErrDuplicateItem):
		return http.StatusConflict, "item already in collection"
	case errors.Is(err, collection.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, collection.ErrPartialFailure):
		return http.StatusMultiStatus, err.Error()
	case errors.Is(err, collection.ErrSameCollection):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, collection.ErrTransientFetch):
		return http.StatusServiceUnavailable, "collection temporarily unavailable"
	case errors.Is(err, auth.ErrEmailTaken):
		return http.StatusConflict, err.Error()
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrNoSession):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, record.ErrMissingID), errors.Is(err, record.ErrMissingTitle):
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusInternalServerError, "internal error"
}
