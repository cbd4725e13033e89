package mongo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/clique-kr/episodes/internal/db"
)

type conn struct {
	database *mongo.Database
	sess     mongo.Session // nil runs operations without an explicit session

	mu     sync.Mutex
	closed bool
}

func newConn(database *mongo.Database, sess mongo.Session) *conn {
	return &conn{database: database, sess: sess}
}

func (c *conn) scope(ctx context.Context) (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, db.ErrConnClosed
	}
	if c.sess == nil {
		return ctx, nil
	}
	return mongo.NewSessionContext(ctx, c.sess), nil
}

// Find materializes every document matching filter.
func (c *conn) Find(ctx context.Context, collection string, filter db.Filter) ([]db.Document, error) {
	sctx, err := c.scope(ctx)
	if err != nil {
		return nil, &db.Error{Op: db.OpFind, Err: err}
	}

	cur, err := c.database.Collection(collection).Find(sctx, toBSON(filter))
	if err != nil {
		return nil, &db.Error{Op: db.OpFind, Err: classify(err)}
	}

	var raw []bson.M
	if err := cur.All(sctx, &raw); err != nil {
		return nil, &db.Error{Op: db.OpDecode, Err: classify(err)}
	}

	docs := make([]db.Document, len(raw))
	for i, m := range raw {
		docs[i] = db.Document(m)
	}
	return docs, nil
}

// Upsert applies $set to the first document matching filter, inserting when none matches.
func (c *conn) Upsert(ctx context.Context, collection string, filter db.Filter, set db.Document) error {
	sctx, err := c.scope(ctx)
	if err != nil {
		return &db.Error{Op: db.OpUpsert, Err: err}
	}

	update := bson.M{"$set": bson.M(set)}
	_, err = c.database.Collection(collection).UpdateOne(
		sctx, toBSON(filter), update, options.Update().SetUpsert(true),
	)
	if err != nil {
		return &db.Error{Op: db.OpUpsert, Err: classify(err)}
	}
	return nil
}

// Close ends the session. A second Close reports db.ErrConnClosed.
func (c *conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &db.Error{Op: db.OpClose, Err: db.ErrConnClosed}
	}
	c.closed = true
	if c.sess != nil {
		c.sess.EndSession(context.Background())
	}
	return nil
}

func toBSON(f db.Filter) bson.M {
	if f == nil {
		return bson.M{}
	}
	return bson.M(f)
}

// classify marks network and timeout failures as db.ErrUnavailable.
func classify(err error) error {
	var se mongo.ServerError
	if errors.As(err, &se) {
		return err
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) ||
		errors.Is(err, mongo.ErrClientDisconnected) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", db.ErrUnavailable, err)
	}
	return err
}
