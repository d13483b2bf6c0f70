package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/handsomefox/reelshelf/internal/collection"
	"github.com/handsomefox/reelshelf/internal/curation"
	"github.com/handsomefox/reelshelf/internal/logger"
	"github.com/handsomefox/reelshelf/internal/record"
)

const staleWarning = "showing last loaded items, refresh failed"

// getCollection refetches the collection and serves one curated page of it.
// When the refetch fails the last loaded contents are curated instead and the
// response carries a warning.
func (h *Handler) getCollection(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	sess, _ := sessionFrom(ctx)

	c, err := collectionParam(r)
	if err != nil {
		return err
	}
	q := curation.Decode(r.URL.Query())

	view := h.view(sess.UserID, c)
	gen := view.BeginFetch()
	items, err := h.collections.ListAll(ctx, sess.UserID, c)
	if err != nil {
		view.FailFetch(gen, err)
		slog.Warn("list collection failed",
			slog.String("collection", string(c)),
			logger.Error(err),
		)
	} else {
		view.CompleteFetch(gen, items)
	}

	snap := view.Curate(q)
	if !snap.Loaded {
		if err == nil {
			err = snap.Err
		}
		return err
	}

	resp := &collectionPage{
		Collection: c,
		GenreMode:  curation.PipelineFor(c).GenreMode.String(),
		Query:      toQueryState(snap.Query),
		Items:      snap.Items,
		Total:      snap.Total,
		TotalPages: snap.TotalPages,
		FetchedAt:  snap.FetchedAt,
	}
	if snap.Err != nil {
		resp.Warning = staleWarning
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *Handler) postCollectionItem(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	sess, _ := sessionFrom(ctx)

	c, err := collectionParam(r)
	if err != nil {
		return err
	}

	var req addItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return badRequest("bad request")
	}
	if req.ID <= 0 {
		return badRequest("id required")
	}
	mediaType, err := record.ParseMediaType(req.MediaType)
	if err != nil {
		return badRequest("invalid media_type")
	}

	itemID := strconv.FormatInt(req.ID, 10)
	exists, err := h.collections.Exists(ctx, sess.UserID, c, itemID)
	if err != nil {
		return err
	}
	if exists {
		return collection.ErrDuplicateItem
	}

	detail, err := h.tmdb.FetchDetails(ctx, req.ID, mediaType)
	if err != nil {
		return metadataError("add item", err)
	}

	item, err := h.collections.Put(ctx, sess.UserID, c, detail.Item(h.now()))
	if err != nil {
		return err
	}

	slog.Info("item added",
		slog.String("collection", string(c)),
		slog.String("item_id", item.ID),
	)
	writeJSON(w, http.StatusCreated, &itemResponse{Item: item})
	return nil
}

func (h *Handler) getCollectionItem(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	sess, _ := sessionFrom(ctx)

	c, err := collectionParam(r)
	if err != nil {
		return err
	}
	itemID := strings.TrimSpace(chi.URLParam(r, "id"))
	if itemID == "" {
		return notFound("not found")
	}

	item, err := h.collections.Get(ctx, sess.UserID, c, itemID)
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, &itemResponse{Item: item})
	return nil
}

func (h *Handler) deleteCollectionItem(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	sess, _ := sessionFrom(ctx)

	c, err := collectionParam(r)
	if err != nil {
		return err
	}
	itemID := strings.TrimSpace(chi.URLParam(r, "id"))
	if itemID == "" {
		return notFound("not found")
	}

	if err := h.collections.Remove(ctx, sess.UserID, c, itemID); err != nil {
		return err
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) postMoveItem(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	sess, _ := sessionFrom(ctx)

	from, err := collectionParam(r)
	if err != nil {
		return err
	}
	itemID := strings.TrimSpace(chi.URLParam(r, "id"))

	var req moveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return badRequest("bad request")
	}
	to, err := record.ParseCollection(req.To)
	if err != nil {
		return badRequest("unknown target collection")
	}

	item, err := h.collections.MoveItem(ctx, sess.UserID, itemID, from, to)
	if err != nil {
		var partial *collection.PartialFailureError
		if errors.As(err, &partial) {
			slog.Warn("move partially applied", slog.String("item_id", itemID), logger.Error(err))
			writeJSON(w, http.StatusMultiStatus, &itemResponse{
				Item:    item,
				Warning: "item was added to " + string(to) + " but could not be removed from " + string(from),
			})
			return nil
		}
		return err
	}

	writeJSON(w, http.StatusOK, &itemResponse{Item: item})
	return nil
}

func (h *Handler) deleteCollection(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	sess, _ := sessionFrom(ctx)

	c, err := collectionParam(r)
	if err != nil {
		return err
	}

	deleted, err := h.collections.ClearAll(ctx, sess.UserID, c)
	if err != nil {
		var partial *collection.PartialFailureError
		if errors.As(err, &partial) {
			slog.Warn("clear partially applied", slog.String("collection", string(c)), logger.Error(err))
			writeJSON(w, http.StatusMultiStatus, &clearResponse{
				Deleted: partial.Done,
				Failed:  partial.Failed,
				Warning: "some items could not be removed, try again",
			})
			return nil
		}
		return err
	}

	writeJSON(w, http.StatusOK, &clearResponse{Deleted: deleted})
	return nil
}

func (h *Handler) getExport(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	sess, _ := sessionFrom(ctx)

	payload, err := h.collections.Export(ctx, sess.UserID)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=reelshelf-export.json")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("export write failed", logger.Error(err))
	}
	return nil
}
