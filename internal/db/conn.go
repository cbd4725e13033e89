package db

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// WithConn opens a connection, runs fn and always releases the connection,
// including when fn returns an error or panics.
func WithConn(ctx context.Context, o Opener, fn func(Conn) error) (err error) {
	conn, err := o.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("release connection: %w", cerr)
		}
	}()
	return fn(conn)
}

// Matches reports whether doc satisfies every equality condition in f.
// Values are compared after normalizing numbers, so 1 (int) matches 1.0 (float64)
// as decoded from JSON.
func (f Filter) Matches(doc Document) bool {
	for k, want := range f {
		got, ok := doc[k]
		if !ok {
			return false
		}
		if !equalValues(got, want) {
			return false
		}
	}
	return true
}

func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// Merge returns a new document with set applied over base.
func Merge(base, set Document) Document {
	out := make(Document, len(base)+len(set))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range set {
		out[k] = v
	}
	return out
}

// IsUnavailable reports whether err means the store could not be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
