// Package collection provides typed access to a user's watchlist and watched
// collections on top of a per-document store.
package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/handsomefox/reelshelf/internal/logger"
	"github.com/handsomefox/reelshelf/internal/record"
	"github.com/handsomefox/reelshelf/internal/store"
)

// Backend is the document store. Every call touches a single document or
// lists one collection; there are no transactions across calls.
type Backend interface {
	GetDocument(ctx context.Context, userID, collection, itemID string) (store.Document, error)
	HasDocument(ctx context.Context, userID, collection, itemID string) (bool, error)
	PutDocument(ctx context.Context, doc *store.Document) error
	DeleteDocument(ctx context.Context, userID, collection, itemID string) error
	ListDocuments(ctx context.Context, userID, collection string) ([]store.Document, error)
}

type Adapter struct {
	backend Backend
	now     func() time.Time
	workers int
}

type Option func(*Adapter)

func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// WithConcurrency bounds the number of parallel deletes in ClearAll.
func WithConcurrency(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.workers = n
		}
	}
}

func New(backend Backend, opts ...Option) *Adapter {
	a := &Adapter{
		backend: backend,
		now:     time.Now,
		workers: 4,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Adapter) Exists(ctx context.Context, userID string, c record.Collection, itemID string) (bool, error) {
	ok, err := a.backend.HasDocument(ctx, userID, string(c), itemID)
	if err != nil {
		return false, TransientError("exists", err)
	}
	return ok, nil
}

// Put inserts item stamped with the current time as SavedAt, unless an item
// with the same id is already present, in which case it returns
// ErrDuplicateItem and writes nothing.
func (a *Adapter) Put(ctx context.Context, userID string, c record.Collection, item record.Item) (record.Item, error) {
	if err := item.Validate(); err != nil {
		return record.Item{}, err
	}

	exists, err := a.Exists(ctx, userID, c, item.ID)
	if err != nil {
		return record.Item{}, err
	}
	if exists {
		return record.Item{}, fmt.Errorf("%s %s: %w", c, item.ID, ErrDuplicateItem)
	}

	item.SavedAt = a.now().UTC()
	if item.Genres == nil {
		item.Genres = []string{}
	}
	if err := a.write(ctx, userID, c, &item); err != nil {
		return record.Item{}, err
	}
	return item, nil
}

func (a *Adapter) Get(ctx context.Context, userID string, c record.Collection, itemID string) (record.Item, error) {
	doc, err := a.backend.GetDocument(ctx, userID, string(c), itemID)
	if err != nil {
		if store.IsNoRows(err) {
			return record.Item{}, fmt.Errorf("%s %s: %w", c, itemID, ErrNotFound)
		}
		return record.Item{}, TransientError("get", err)
	}
	return decode(&doc)
}

// Remove deletes an item. Removing an absent item succeeds.
func (a *Adapter) Remove(ctx context.Context, userID string, c record.Collection, itemID string) error {
	if err := a.backend.DeleteDocument(ctx, userID, string(c), itemID); err != nil {
		return fmt.Errorf("remove %s %s: %w", c, itemID, err)
	}
	return nil
}

// ListAll returns every item of the collection in no particular order.
func (a *Adapter) ListAll(ctx context.Context, userID string, c record.Collection) ([]record.Item, error) {
	docs, err := a.backend.ListDocuments(ctx, userID, string(c))
	if err != nil {
		return nil, TransientError("list", err)
	}
	out := make([]record.Item, 0, len(docs))
	for i := range docs {
		it, err := decode(&docs[i])
		if err != nil {
			slog.Warn("skipping unreadable document",
				slog.String("collection", string(c)),
				slog.String("item_id", docs[i].ItemID),
				logger.Error(err),
			)
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

// MoveItem copies an item to another collection with SavedAt reset to now,
// then deletes it from the source. If the delete fails the item is left in
// both collections and a *PartialFailureError is returned.
func (a *Adapter) MoveItem(ctx context.Context, userID, itemID string, from, to record.Collection) (record.Item, error) {
	if from == to {
		return record.Item{}, ErrSameCollection
	}

	item, err := a.Get(ctx, userID, from, itemID)
	if err != nil {
		return record.Item{}, err
	}

	item.SavedAt = a.now().UTC()
	if err := a.write(ctx, userID, to, &item); err != nil {
		return record.Item{}, fmt.Errorf("move: %w", err)
	}

	if err := a.backend.DeleteDocument(ctx, userID, string(from), itemID); err != nil {
		return item, &PartialFailureError{Op: "move", Done: 1, Failed: 1, Err: err}
	}
	return item, nil
}

// ClearAll deletes every item in the collection one document at a time. A
// failure leaves the remaining documents in place; running it again deletes
// what is left.
func (a *Adapter) ClearAll(ctx context.Context, userID string, c record.Collection) (int, error) {
	docs, err := a.backend.ListDocuments(ctx, userID, string(c))
	if err != nil {
		return 0, TransientError("clear", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	var deleted atomic.Int64
	p := pool.New().WithMaxGoroutines(a.workers).WithErrors()
	for i := range docs {
		itemID := docs[i].ItemID
		p.Go(func() error {
			if err := a.backend.DeleteDocument(ctx, userID, string(c), itemID); err != nil {
				return fmt.Errorf("delete %s: %w", itemID, err)
			}
			deleted.Add(1)
			return nil
		})
	}
	err = p.Wait()

	done := int(deleted.Load())
	if err == nil {
		return done, nil
	}
	if done == 0 {
		return 0, fmt.Errorf("clear %s: %w", c, err)
	}
	return done, &PartialFailureError{Op: "clear", Done: done, Failed: len(docs) - done, Err: err}
}

func (a *Adapter) write(ctx context.Context, userID string, c record.Collection, item *record.Item) error {
	body, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return a.backend.PutDocument(ctx, &store.Document{
		UserID:     userID,
		Collection: string(c),
		ItemID:     item.ID,
		Body:       string(body),
		SavedAt:    store.FormatTime(item.SavedAt),
	})
}

func decode(doc *store.Document) (record.Item, error) {
	var it record.Item
	if err := json.Unmarshal([]byte(doc.Body), &it); err != nil {
		return record.Item{}, fmt.Errorf("decode %s: %w", doc.ItemID, err)
	}
	if it.ID == "" {
		it.ID = doc.ItemID
	}
	if it.ID != doc.ItemID {
		return record.Item{}, errors.New("document key does not match item id")
	}
	return it, nil
}

// Export is every collection of one user, as written by /export and the
// export command.
type Export struct {
	ExportedAt  time.Time                           `json:"exported_at"`
	UserID      string                              `json:"user_id"`
	Collections map[record.Collection][]record.Item `json:"collections"`
}

// Export lists all collections of userID, newest first within each.
func (a *Adapter) Export(ctx context.Context, userID string) (Export, error) {
	out := Export{
		ExportedAt:  a.now().UTC(),
		UserID:      userID,
		Collections: make(map[record.Collection][]record.Item, len(record.Collections)),
	}
	for _, c := range record.Collections {
		items, err := a.ListAll(ctx, userID, c)
		if err != nil {
			return Export{}, err
		}
		slices.SortStableFunc(items, func(x, y record.Item) int {
			return y.SavedAt.Compare(x.SavedAt)
		})
		out.Collections[c] = items
	}
	return out, nil
}
