// Package ch batches rows into ClickHouse. The Writer buffers rows in
// an unbounded channel and flushes per table, sized and paced by the
// flush strategy in WriterConfig. DrainFrom connects a Writer to a
// bulk queue so queued rows land in ClickHouse without a hand-written
// pump.
package ch

import (
	"context"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

type TableName string

// Row is a single insertable row. Values maps column names to values;
// missing columns take the table's defaults.
type Row interface {
	Table() TableName
	Values() map[string]any
}

type Writer interface {
	Start() error
	Close() error
	Write(ctx context.Context, rows []Row) error
	// DrainFrom consumes batches from source until ctx is cancelled or
	// the source closes, writing each batch. Runs in the background.
	DrainFrom(ctx context.Context, source RowSource)
	// RefreshTableSchema reloads the cached schema for table, for use
	// after a schema migration.
	RefreshTableSchema(ctx context.Context, table TableName) error
}

// RowSource is a batch producer the Writer can drain. BulkQueue
// satisfies it.
type RowSource interface {
	Get(ctx context.Context) []Row
}

// Client is the unified ClickHouse entry point for queries and batch
// writes over one connection.
type Client interface {
	Writer() (Writer, error)
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) driver.Row
	Close() error
}
