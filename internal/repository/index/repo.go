package index

import (
	"context"
	"fmt"

	"github.com/clique-kr/episodes/internal/db"
	"github.com/clique-kr/episodes/internal/domain"
)

// store is the consumer interface for the index collection (ISP).
type store interface {
	Open(ctx context.Context) (db.Conn, error)
}

// Repo reads and publishes the index list document.
type Repo struct {
	store store
	loc   domain.IndexLocation
}

// New creates an index repository for the given location.
func New(s store, loc domain.IndexLocation) *Repo {
	return &Repo{store: s, loc: loc}
}

// Location returns where the repository looks for the index list.
func (r *Repo) Location() domain.IndexLocation {
	return r.loc
}

// Get returns the list field of the index document. The first matching
// document wins; Matched reports how many documents carried the key.
func (r *Repo) Get(ctx context.Context) (domain.IndexList, error) {
	var docs []db.Document
	err := db.WithConn(ctx, r.store, func(c db.Conn) error {
		var err error
		docs, err = c.Find(ctx, r.loc.Collection, r.keyFilter())
		return err
	})
	if err != nil {
		return domain.IndexList{}, wrap("find index", err)
	}

	if len(docs) == 0 {
		return domain.IndexList{}, domain.ErrIndexNotFound
	}
	value, ok := docs[0][r.loc.ListField]
	if !ok {
		return domain.IndexList{}, fmt.Errorf("field %q missing: %w", r.loc.ListField, domain.ErrIndexNotFound)
	}

	return domain.IndexList{Value: value, Matched: len(docs)}, nil
}

// Count returns the number of documents in the index collection.
func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	err := db.WithConn(ctx, r.store, func(c db.Conn) error {
		docs, err := c.Find(ctx, r.loc.Collection, db.Filter{})
		n = len(docs)
		return err
	})
	if err != nil {
		return 0, wrap("count index collection", err)
	}
	return n, nil
}

// Publish replaces the list field of the index document, creating the document if needed.
func (r *Repo) Publish(ctx context.Context, value any) error {
	err := db.WithConn(ctx, r.store, func(c db.Conn) error {
		return c.Upsert(ctx, r.loc.Collection, r.keyFilter(), db.Document{r.loc.ListField: value})
	})
	if err != nil {
		return wrap("publish index", err)
	}
	return nil
}

func (r *Repo) keyFilter() db.Filter {
	return db.Filter{r.loc.KeyField: r.loc.Key}
}

func wrap(msg string, err error) error {
	if db.IsUnavailable(err) {
		return fmt.Errorf("%s: %w: %w", msg, domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
