package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/clique-kr/episodes/internal/db"
)

const idField = "_id"

type conn struct {
	c *sql.Conn
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Find returns documents of collection matching filter in insertion order.
func (c *conn) Find(ctx context.Context, collection string, filter db.Filter) ([]db.Document, error) {
	rows, err := load(ctx, c.c, collection, filter)
	if err != nil {
		return nil, &db.Error{Op: db.OpFind, Err: mapErr(err)}
	}
	docs := make([]db.Document, len(rows))
	for i, r := range rows {
		docs[i] = r.doc
	}
	return docs, nil
}

// Upsert updates the first matching document or inserts a new one, in one transaction.
func (c *conn) Upsert(ctx context.Context, collection string, filter db.Filter, set db.Document) error {
	tx, err := c.c.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Op: db.OpUpsert, Err: mapErr(err)}
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := load(ctx, tx, collection, filter)
	if err != nil {
		return &db.Error{Op: db.OpUpsert, Err: mapErr(err)}
	}

	var (
		id  string
		doc db.Document
	)
	if len(rows) > 0 {
		id, doc = rows[0].id, rows[0].doc
	} else {
		id = uuid.NewString()
		doc = db.Merge(db.Document(filter), db.Document{idField: id})
	}

	data, err := json.Marshal(db.Merge(doc, set))
	if err != nil {
		return &db.Error{Op: db.OpUpsert, Err: fmt.Errorf("marshal document: %w", err)}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data`,
		collection, id, string(data),
	); err != nil {
		return &db.Error{Op: db.OpUpsert, Err: mapErr(err)}
	}

	if err := tx.Commit(); err != nil {
		return &db.Error{Op: db.OpUpsert, Err: mapErr(err)}
	}
	return nil
}

// Close returns the connection to the pool.
func (c *conn) Close() error {
	if err := c.c.Close(); err != nil {
		return &db.Error{Op: db.OpClose, Err: mapErr(err)}
	}
	return nil
}

type row struct {
	id  string
	doc db.Document
}

func load(ctx context.Context, q querier, collection string, filter db.Filter) ([]row, error) {
	rs, err := q.QueryContext(ctx,
		"SELECT id, data FROM documents WHERE collection = ? ORDER BY rowid", collection)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var out []row
	for rs.Next() {
		var id, raw string
		if err := rs.Scan(&id, &raw); err != nil {
			return nil, err
		}
		var doc db.Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
		}
		if doc == nil {
			doc = db.Document{}
		}
		if _, ok := doc[idField]; !ok {
			doc[idField] = id
		}
		if filter.Matches(doc) {
			out = append(out, row{id: id, doc: doc})
		}
	}
	return out, rs.Err()
}

func mapErr(err error) error {
	if errors.Is(err, sql.ErrConnDone) {
		return db.ErrConnClosed
	}
	return err
}
