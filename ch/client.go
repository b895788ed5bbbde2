package ch

import (
	"context"
	"sync"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/dailyyoga/datakit/logger"
)

// defaultClient shares one connection between the Writer and ad hoc
// queries.
type defaultClient struct {
	config *Config
	logger logger.Logger

	conn driver.Conn

	writer     Writer
	writerOnce sync.Once

	closed bool
	mu     sync.RWMutex
}

// NewClient connects to ClickHouse and verifies the connection with a
// ping.
func NewClient(config *Config, log logger.Logger) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: config.Hosts,
		Auth: clickhouse.Auth{
			Database: config.Database,
			Username: config.Username,
			Password: config.Password,
		},
		DialTimeout: config.DialTimeout,
		Debug:       config.Debug,
		Settings:    config.Settings,
	})
	if err != nil {
		return nil, ErrConnection(err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		conn.Close()
		return nil, ErrConnection(err)
	}

	client := &defaultClient{
		config: config,
		logger: log,
		conn:   conn,
	}

	log.Info("clickhouse client initialized",
		zap.Strings("hosts", config.Hosts),
		zap.String("database", config.Database),
	)

	return client, nil
}

// Writer returns the lazily-created batch writer. The caller must call
// Start on it. Returns ErrWriterDisabled when WriterConfig is nil.
func (c *defaultClient) Writer() (Writer, error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, ErrWriterClosed
	}
	c.mu.RUnlock()

	if c.config.WriterConfig == nil {
		return nil, ErrWriterDisabled
	}

	c.writerOnce.Do(func() {
		c.writer = newWriterWithConn(c.conn, c.config, c.logger)
	})

	return c.writer, nil
}

func (c *defaultClient) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrConnectionClosed
	}

	rows, err := c.conn.Query(ctx, query, args...)
	if err != nil {
		c.logger.Error("query failed",
			zap.String("query", query),
			zap.Error(err),
		)
		return nil, err
	}

	return rows, nil
}

func (c *defaultClient) QueryRow(ctx context.Context, query string, args ...any) driver.Row {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		c.logger.Error("connection is closed", zap.String("query", query))
		return nil
	}

	return c.conn.QueryRow(ctx, query, args...)
}

func (c *defaultClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.logger.Info("clickhouse client shutting down")

	if c.writer != nil {
		if err := c.writer.Close(); err != nil {
			c.logger.Error("failed to close writer", zap.Error(err))
		}
	}

	if err := c.conn.Close(); err != nil {
		c.logger.Error("failed to close clickhouse connection", zap.Error(err))
		c.closed = true
		return err
	}

	c.closed = true
	c.logger.Info("clickhouse client shutdown complete")
	return nil
}
