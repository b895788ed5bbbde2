package ch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/smallnest/chanx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dailyyoga/datakit/logger"
	"github.com/dailyyoga/datakit/routine"
)

type defaultWriter struct {
	config *Config
	logger logger.Logger

	conn driver.Conn

	tableColumns map[TableName][]TableColumn
	columnsMu    sync.RWMutex

	// channel-based batch insert
	dataChan    *chanx.UnboundedChan[Row]
	flushTicker *time.Ticker

	// control
	done   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
}

// newWriterWithConn creates a writer over an existing connection (used
// by Client).
func newWriterWithConn(conn driver.Conn, config *Config, log logger.Logger) Writer {
	if config.WriterConfig == nil {
		config.WriterConfig = DefaultWriterConfig()
	}

	dataChan := chanx.NewUnboundedChan[Row](context.Background(), config.WriterConfig.FlushSize)

	writer := &defaultWriter{
		config:       config,
		logger:       log,
		conn:         conn,
		tableColumns: make(map[TableName][]TableColumn),
		dataChan:     dataChan,
		flushTicker:  time.NewTicker(config.WriterConfig.FlushInterval),
		done:         make(chan struct{}),
	}

	log.Info("clickhouse writer initialized",
		zap.Duration("flush_interval", config.WriterConfig.FlushInterval),
		zap.Int("flush_size", config.WriterConfig.FlushSize),
		zap.Int("min_flush_size", config.WriterConfig.MinFlushSize),
		zap.Duration("max_wait_time", config.WriterConfig.MaxWaitTime),
	)

	return writer
}

func (w *defaultWriter) Start() error {
	w.wg.Add(1)
	go w.processLoop()

	w.logger.Info("clickhouse writer started")
	return nil
}

func (w *defaultWriter) Write(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	if w.closed.Load() {
		return ErrWriterClosed
	}

	for _, row := range rows {
		select {
		case w.dataChan.In <- row:
			continue
		case <-ctx.Done():
			return ctx.Err()
		default:
			w.logger.Error("channel is full, data may be lost",
				zap.Int("channel_size", w.dataChan.Len()),
				zap.Int("rows", len(rows)),
			)
			return ErrBufferFull
		}
	}
	return nil
}

// DrainFrom pumps batches from source into the writer until ctx is
// cancelled or the source closes (signalled by a nil batch after a
// cancelled ctx, or repeated nil batches once drained).
func (w *defaultWriter) DrainFrom(ctx context.Context, source RowSource) {
	routine.GoNamedWithContext(ctx, w.logger, "ch-drain", func(ctx context.Context) {
		for {
			batch := source.Get(ctx)
			if batch == nil {
				if ctx.Err() != nil {
					return
				}
				// Closed and drained source.
				return
			}
			if err := w.Write(ctx, batch); err != nil {
				w.logger.Error("failed to write drained batch",
					zap.Int("rows", len(batch)),
					zap.Error(err),
				)
				if err == ErrWriterClosed {
					return
				}
			}
		}
	})
}

func (w *defaultWriter) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}

	w.logger.Info("clickhouse writer shutting down")

	w.flushTicker.Stop()
	close(w.done)
	close(w.dataChan.In)
	w.wg.Wait()

	w.logger.Info("clickhouse writer shutdown complete")
	return nil
}

func (w *defaultWriter) processLoop() {
	defer w.wg.Done()

	buffer := make(map[TableName][]Row)
	totalRows := 0
	var firstRowTime time.Time

	for {
		select {
		case row, ok := <-w.dataChan.Out:
			if !ok {
				w.logger.Warn("data channel closed unexpectedly")
				return
			}
			if row == nil {
				continue
			}
			if totalRows == 0 {
				firstRowTime = time.Now()
			}
			buffer[row.Table()] = append(buffer[row.Table()], row)
			totalRows++

			if totalRows >= w.config.WriterConfig.FlushSize {
				w.flush(buffer)
				buffer = make(map[TableName][]Row)
				totalRows = 0
				firstRowTime = time.Time{}
			}

		case <-w.flushTicker.C:
			if totalRows == 0 {
				continue
			}
			if w.shouldFlush(totalRows, firstRowTime) {
				w.flush(buffer)
				buffer = make(map[TableName][]Row)
				totalRows = 0
				firstRowTime = time.Time{}
			} else {
				w.logger.Debug("skipping flush, waiting for more data",
					zap.Int("current_rows", totalRows),
					zap.Int("min_flush_size", w.config.WriterConfig.MinFlushSize),
					zap.Duration("waited", time.Since(firstRowTime)),
				)
			}

		case <-w.done:
			w.logger.Info("process loop stopping, draining remaining data",
				zap.Int("buffered_rows", totalRows),
				zap.Int("pending_rows", w.dataChan.Len()),
			)

			w.drainChannel(buffer, &totalRows)
			if totalRows > 0 {
				w.flush(buffer)
			}

			w.logger.Info("process loop stopped")
			return
		}
	}
}

// shouldFlush applies the MinFlushSize / MaxWaitTime strategy to a
// time-triggered flush.
func (w *defaultWriter) shouldFlush(totalRows int, firstRowTime time.Time) bool {
	minFlushSize := w.config.WriterConfig.MinFlushSize
	maxWaitTime := w.config.WriterConfig.MaxWaitTime

	if minFlushSize == 0 {
		return true
	}
	if totalRows >= minFlushSize {
		return true
	}
	if maxWaitTime > 0 && time.Since(firstRowTime) >= maxWaitTime {
		w.logger.Debug("max wait time exceeded, forcing flush",
			zap.Int("current_rows", totalRows),
			zap.Duration("waited", time.Since(firstRowTime)),
		)
		return true
	}
	return false
}

// drainChannel moves everything still buffered in the channel into the
// local buffer.
func (w *defaultWriter) drainChannel(buffer map[TableName][]Row, totalRows *int) {
	for {
		select {
		case row, ok := <-w.dataChan.Out:
			if !ok {
				return
			}
			if row == nil {
				continue
			}
			buffer[row.Table()] = append(buffer[row.Table()], row)
			*totalRows++
		default:
			return
		}
	}
}

// flush inserts each table's rows, tables in parallel.
func (w *defaultWriter) flush(buffer map[TableName][]Row) {
	var successRows, failedRows atomic.Int64
	totalRows := 0

	var g errgroup.Group
	for table, rows := range buffer {
		table, rows := table, rows
		totalRows += len(rows)

		g.Go(func() error {
			if err := w.batchInsert(context.Background(), table, rows); err != nil {
				w.logger.Error("failed to batch insert", zap.Error(err))
				failedRows.Add(int64(len(rows)))
				return nil
			}
			successRows.Add(int64(len(rows)))
			return nil
		})
	}
	_ = g.Wait()

	w.logger.Info("flush completed",
		zap.Int("total_rows", totalRows),
		zap.Int64("success_rows", successRows.Load()),
		zap.Int64("failed_rows", failedRows.Load()),
	)
}

func (w *defaultWriter) batchInsert(ctx context.Context, table TableName, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	columns, err := w.getTableColumns(ctx, table)
	if err != nil {
		return ErrInsert(table, err)
	}

	query := fmt.Sprintf("INSERT INTO `%s`", table)
	batch, err := w.conn.PrepareBatch(ctx, query)
	if err != nil {
		return ErrInsert(table, err)
	}

	for _, row := range rows {
		valueMap := row.Values()

		values := make([]any, len(columns))
		for i := range columns {
			values[i] = w.getColumnValue(valueMap, &columns[i])
		}
		if err := batch.Append(values...); err != nil {
			return ErrInsert(table, err)
		}
	}

	if err := batch.Send(); err != nil {
		return ErrInsert(table, err)
	}
	return nil
}

// fetchTableColumns loads the insertable columns of table from
// ClickHouse, skipping MATERIALIZED, ALIAS and EPHEMERAL columns.
func (w *defaultWriter) fetchTableColumns(ctx context.Context, table TableName) ([]TableColumn, error) {
	query := fmt.Sprintf("DESCRIBE TABLE `%s`", table)
	rows, err := w.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", table, err)
	}
	defer rows.Close()

	var columns []TableColumn
	for rows.Next() {
		var name, typeStr, defaultType, defaultExpr, comment, codecExpr, ttlExpr string
		if err := rows.Scan(
			&name,
			&typeStr,
			&defaultType,
			&defaultExpr,
			&comment,
			&codecExpr,
			&ttlExpr,
		); err != nil {
			return nil, err
		}

		if defaultType == "MATERIALIZED" || defaultType == "ALIAS" || defaultType == "EPHEMERAL" {
			continue
		}

		columns = append(columns, parseColumnType(name, typeStr, defaultExpr))
	}

	return columns, nil
}

// getTableColumns returns the cached schema for table, loading it on
// first use.
func (w *defaultWriter) getTableColumns(ctx context.Context, table TableName) ([]TableColumn, error) {
	w.columnsMu.RLock()
	if columns, exists := w.tableColumns[table]; exists {
		w.columnsMu.RUnlock()
		return columns, nil
	}
	w.columnsMu.RUnlock()

	w.columnsMu.Lock()
	defer w.columnsMu.Unlock()

	// double check
	if columns, exists := w.tableColumns[table]; exists {
		return columns, nil
	}

	columns, err := w.fetchTableColumns(ctx, table)
	if err != nil {
		return nil, err
	}

	w.tableColumns[table] = columns
	w.logger.Debug("table schema cached",
		zap.String("table", string(table)),
		zap.Int("columns", len(columns)),
	)
	return columns, nil
}

// RefreshTableSchema reloads the schema for table from ClickHouse.
func (w *defaultWriter) RefreshTableSchema(ctx context.Context, table TableName) error {
	columns, err := w.fetchTableColumns(ctx, table)
	if err != nil {
		return err
	}

	w.columnsMu.Lock()
	w.tableColumns[table] = columns
	w.columnsMu.Unlock()

	w.logger.Debug("table schema refreshed",
		zap.String("table", string(table)),
		zap.Int("columns", len(columns)),
	)
	return nil
}

// getColumnValue picks the value for col from valueMap, falling back
// to the column default and then the type's zero value.
func (w *defaultWriter) getColumnValue(valueMap map[string]any, col *TableColumn) any {
	val, exists := valueMap[col.Name]
	if !exists || val == nil {
		if col.DefaultValue != nil {
			if fn, ok := col.DefaultValue.(*DefaultFunc); ok {
				return fn.Evaluate()
			}
			return col.DefaultValue
		}
		return getZeroValue(col)
	}

	converted, err := getConverter(col).Convert(val, w.logger)
	if err != nil {
		w.logger.Error("failed to convert value",
			zap.String("column", col.Name),
			zap.String("type", col.OriginalType),
			zap.Error(err),
		)
		return getZeroValue(col)
	}
	return converted
}
