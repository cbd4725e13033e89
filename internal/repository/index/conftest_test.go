package index

import (
	"context"
	"testing"

	"github.com/clique-kr/episodes/internal/db"
	"github.com/clique-kr/episodes/internal/domain"
)

// mockConn implements db.Conn for tests.
type mockConn struct {
	findFn   func(ctx context.Context, collection string, filter db.Filter) ([]db.Document, error)
	upsertFn func(ctx context.Context, collection string, filter db.Filter, set db.Document) error
	closed   int
}

func (m *mockConn) Find(ctx context.Context, collection string, filter db.Filter) ([]db.Document, error) {
	if m.findFn != nil {
		return m.findFn(ctx, collection, filter)
	}
	return nil, nil
}

func (m *mockConn) Upsert(ctx context.Context, collection string, filter db.Filter, set db.Document) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, collection, filter, set)
	}
	return nil
}

func (m *mockConn) Close() error {
	m.closed++
	return nil
}

// mockStore hands out a single mockConn.
type mockStore struct {
	conn    *mockConn
	openErr error
	opened  int
}

func (m *mockStore) Open(_ context.Context) (db.Conn, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.opened++
	return m.conn, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{conn: &mockConn{}}
	return New(ms, domain.DefaultIndexLocation()), ms
}
