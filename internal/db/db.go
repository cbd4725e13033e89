package db

import (
	"context"
	"time"
)

// Document is an untyped stored record.
type Document map[string]any

// Filter selects documents by equality on top-level fields. An empty filter matches everything.
type Filter map[string]any

// Store is the document database facade. A Store owns the driver client;
// per-request work goes through a Conn obtained from Open.
type Store interface {
	Pinger
	Opener
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Opener acquires a scoped connection.
type Opener interface {
	Open(ctx context.Context) (Conn, error)
}

// Conn is a single acquired connection. Callers must Close it exactly once.
type Conn interface {
	Finder
	Upserter
	Close() error
}

// Finder runs equality queries against a collection.
// Results are fully materialized; ordering is store-defined.
type Finder interface {
	Find(ctx context.Context, collection string, filter Filter) ([]Document, error)
}

// Upserter sets fields on the first document matching filter, creating it
// (filter fields + set fields) when none matches.
type Upserter interface {
	Upsert(ctx context.Context, collection string, filter Filter, set Document) error
}
