package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/rueidis"

	"github.com/clique-kr/episodes/internal/db"
)

// idField carries the key suffix of a stored document.
const idField = "_id"

const (
	scanCount         = 100
	maxUpsertAttempts = 5
)

// ErrWriteConflict means concurrent writers kept invalidating an upsert.
var ErrWriteConflict = errors.New("redis: write conflict")

type conn struct {
	client  rueidis.DedicatedClient
	release func()
	prefix  string

	mu     sync.Mutex
	closed bool
}

func (c *conn) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return db.ErrConnClosed
	}
	return nil
}

// Find scans the collection keyspace and returns documents matching filter.
func (c *conn) Find(ctx context.Context, collection string, filter db.Filter) ([]db.Document, error) {
	if err := c.checkOpen(); err != nil {
		return nil, &db.Error{Op: db.OpFind, Err: err}
	}

	entries, err := c.load(ctx, collection)
	if err != nil {
		return nil, err
	}

	docs := make([]db.Document, 0, len(entries))
	for _, e := range entries {
		if filter.Matches(e.doc) {
			docs = append(docs, e.doc)
		}
	}
	return docs, nil
}

// Upsert merges set into the first document matching filter, or stores a new
// one. The write runs under WATCH/MULTI/EXEC on the dedicated connection and
// is retried when another writer touched the key in between. New documents
// get an id derived from the filter, so concurrent inserts land on one key.
func (c *conn) Upsert(ctx context.Context, collection string, filter db.Filter, set db.Document) error {
	if err := c.checkOpen(); err != nil {
		return &db.Error{Op: db.OpUpsert, Err: err}
	}

	for range maxUpsertAttempts {
		done, err := c.tryUpsert(ctx, collection, filter, set)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return &db.Error{Op: db.OpUpsert, Err: ErrWriteConflict}
}

func (c *conn) tryUpsert(ctx context.Context, collection string, filter db.Filter, set db.Document) (bool, error) {
	entries, err := c.load(ctx, collection)
	if err != nil {
		return false, err
	}

	key := ""
	for _, e := range entries {
		if filter.Matches(e.doc) {
			key = e.key
			break
		}
	}
	if key == "" {
		id, err := filterID(collection, filter)
		if err != nil {
			return false, &db.Error{Op: db.OpUpsert, Err: err}
		}
		key = c.docKey(collection, id)
	}

	watch := c.client.B().Watch().Key(key).Build()
	if err := c.client.Do(ctx, watch).Error(); err != nil {
		return false, &db.Error{Op: db.OpUpsert, Err: classify(err)}
	}

	// Re-read under WATCH; EXEC fails if the key changes after this point.
	doc, err := c.get(ctx, key)
	if err != nil {
		_ = c.client.Do(ctx, c.client.B().Unwatch().Build()).Error()
		return false, err
	}
	if doc == nil {
		doc = db.Merge(db.Document(filter), db.Document{
			idField: strings.TrimPrefix(key, c.docKey(collection, "")),
		})
	}

	data, err := json.Marshal(db.Merge(doc, set))
	if err != nil {
		_ = c.client.Do(ctx, c.client.B().Unwatch().Build()).Error()
		return false, &db.Error{Op: db.OpUpsert, Err: fmt.Errorf("marshal document: %w", err)}
	}

	results := c.client.DoMulti(ctx,
		c.client.B().Multi().Build(),
		c.client.B().Arbitrary("JSON.SET").Keys(key).Args("$", string(data)).Build(),
		c.client.B().Exec().Build(),
	)
	for _, res := range results[:len(results)-1] {
		if err := res.Error(); err != nil {
			return false, &db.Error{Op: db.OpUpsert, Err: classify(err)}
		}
	}
	if err := results[len(results)-1].Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return false, nil // aborted by WATCH
		}
		return false, &db.Error{Op: db.OpUpsert, Err: classify(err)}
	}
	return true, nil
}

// filterID derives a stable document id from the collection and filter.
func filterID(collection string, filter db.Filter) (string, error) {
	b, err := json.Marshal(filter) // map keys are sorted
	if err != nil {
		return "", fmt.Errorf("marshal filter: %w", err)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, append([]byte(collection+"\x00"), b...)).String(), nil
}

// Close returns the dedicated connection to the pool.
func (c *conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &db.Error{Op: db.OpClose, Err: db.ErrConnClosed}
	}
	c.closed = true
	c.release()
	return nil
}

type entry struct {
	key string
	doc db.Document
}

// load scans the collection keyspace page by page and fetches each page of
// documents in one DoMulti round trip.
func (c *conn) load(ctx context.Context, collection string) ([]entry, error) {
	var entries []entry
	var cursor uint64
	prefix := c.docKey(collection, "")

	for {
		cmd := c.client.B().Scan().Cursor(cursor).Match(prefix + "*").Count(scanCount).Build()
		res, err := c.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, &db.Error{Op: db.OpFind, Err: classify(err)}
		}

		docs, err := c.getMulti(ctx, res.Elements)
		if err != nil {
			return nil, err
		}
		for i, doc := range docs {
			if doc == nil {
				continue // deleted between SCAN and JSON.GET
			}
			key := res.Elements[i]
			if _, ok := doc[idField]; !ok {
				doc[idField] = strings.TrimPrefix(key, prefix)
			}
			entries = append(entries, entry{key: key, doc: doc})
		}

		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}

	return entries, nil
}

func (c *conn) get(ctx context.Context, key string) (db.Document, error) {
	cmd := c.client.B().Arbitrary("JSON.GET").Keys(key).Args("$").Build()
	return decodeResult(key, c.client.Do(ctx, cmd))
}

// getMulti fetches keys in a single round trip. Vanished keys come back as nil.
func (c *conn) getMulti(ctx context.Context, keys []string) ([]db.Document, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = c.client.B().Arbitrary("JSON.GET").Keys(key).Args("$").Build()
	}

	results := c.client.DoMulti(ctx, cmds...)
	out := make([]db.Document, len(results))
	for i, res := range results {
		doc, err := decodeResult(keys[i], res)
		if err != nil {
			return nil, err
		}
		out[i] = doc
	}
	return out, nil
}

func decodeResult(key string, res rueidis.RedisResult) (db.Document, error) {
	raw, err := res.ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, &db.Error{Op: db.OpFind, Err: classify(err)}
	}

	// JSON.GET with a $ path wraps the value in an array.
	var wrapped []db.Document
	if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
		return nil, &db.Error{Op: db.OpDecode, Err: fmt.Errorf("%s: %w", key, err)}
	}
	if len(wrapped) == 0 {
		return nil, nil
	}
	return wrapped[0], nil
}

func (c *conn) docKey(collection, id string) string {
	return c.prefix + collection + ":" + id
}
