package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/clique-kr/episodes/internal/db"
)

var (
	storeOpenConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "episodes",
			Name:      "store_open_connections",
			Help:      "Store connections currently checked out by request handlers",
		},
	)

	storeOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "episodes",
			Name:      "store_operations_total",
			Help:      "Total number of store operations",
		},
		[]string{"op", "result"},
	)

	storeOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "episodes",
			Name:      "store_operation_duration_seconds",
			Help:      "Store operation duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(storeOpenConnections)
	prometheus.MustRegister(storeOperationsTotal)
	prometheus.MustRegister(storeOperationDuration)
}

// InstrumentStore wraps a store so that connection checkouts and queries are recorded.
func InstrumentStore(s db.Store) db.Store {
	return &instrumentedStore{Store: s}
}

type instrumentedStore struct {
	db.Store
}

func (s *instrumentedStore) Open(ctx context.Context) (db.Conn, error) {
	start := time.Now()
	c, err := s.Store.Open(ctx)
	observe("open", start, err)
	if err != nil {
		return nil, err
	}
	storeOpenConnections.Inc()
	return &instrumentedConn{Conn: c}, nil
}

type instrumentedConn struct {
	db.Conn
	once sync.Once
}

func (c *instrumentedConn) Find(ctx context.Context, collection string, filter db.Filter) ([]db.Document, error) {
	start := time.Now()
	docs, err := c.Conn.Find(ctx, collection, filter)
	observe("find", start, err)
	return docs, err
}

func (c *instrumentedConn) Upsert(ctx context.Context, collection string, filter db.Filter, set db.Document) error {
	start := time.Now()
	err := c.Conn.Upsert(ctx, collection, filter, set)
	observe("upsert", start, err)
	return err
}

func (c *instrumentedConn) Close() error {
	c.once.Do(storeOpenConnections.Dec)
	return c.Conn.Close() //nolint:wrapcheck // delegating to the wrapped connection
}

func observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	storeOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	storeOperationsTotal.WithLabelValues(op, result).Inc()
}
