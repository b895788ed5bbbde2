package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dailyyoga/datakit/logger"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"
)

// entityRecord is the gorm model backing Entity. Properties are stored
// as a JSON column so the schema stays fixed while property sets vary.
type entityRecord struct {
	ID        string `gorm:"primaryKey;size:191"`
	Props     string `gorm:"type:json"`
	UpdatedAt time.Time
}

type mysqlStore struct {
	log   logger.Logger
	db    *gorm.DB
	table string
}

// NewMySQL creates a MySQL-backed Store. The entity table is created
// on first use if missing.
func NewMySQL(log logger.Logger, cfg *Config) (Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var gormLogLevel glogger.LogLevel
	switch strings.ToLower(cfg.LogLevel) {
	case "silent":
		gormLogLevel = glogger.Silent
	case "error":
		gormLogLevel = glogger.Error
	case "info":
		gormLogLevel = glogger.Info
	default:
		gormLogLevel = glogger.Warn
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger: &gormLogger{
			logger:        log,
			level:         gormLogLevel,
			slowThreshold: cfg.SlowThreshold,
		},
		PrepareStmt: true,
	})
	if err != nil {
		return nil, ErrConnection(err)
	}

	sqldb, err := db.DB()
	if err != nil {
		return nil, ErrConnection(err)
	}
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqldb.Ping(); err != nil {
		return nil, ErrConnection(err)
	}

	s := &mysqlStore{log: log, db: db, table: cfg.Table}

	if err := db.Table(s.table).AutoMigrate(&entityRecord{}); err != nil {
		return nil, ErrConnection(err)
	}

	log.Info("entity store connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
		zap.String("table", cfg.Table),
	)
	return s, nil
}

func (s *mysqlStore) GetByID(ctx context.Context, id string) (*Entity, error) {
	var rec entityRecord
	err := s.db.WithContext(ctx).Table(s.table).Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, ErrQuery(err)
	}
	return rec.toEntity()
}

func (s *mysqlStore) GetByProp(ctx context.Context, prop string, value any) (*Entity, error) {
	var rec entityRecord
	err := s.db.WithContext(ctx).Table(s.table).
		Where("JSON_UNQUOTE(JSON_EXTRACT(props, ?)) = ?", "$."+prop, fmt.Sprint(value)).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, ErrQuery(err)
	}
	return rec.toEntity()
}

func (s *mysqlStore) SetProps(ctx context.Context, e *Entity, props map[string]any) error {
	if e == nil {
		return ErrNilEntity
	}

	// Read-merge-write inside one transaction so concurrent flushers
	// cannot drop each other's properties.
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec entityRecord
		err := tx.Table(s.table).Where("id = ?", e.ID).Take(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnknownEntity(e.ID)
		}
		if err != nil {
			return ErrQuery(err)
		}

		merged, err := rec.toEntity()
		if err != nil {
			return err
		}
		for k, v := range props {
			merged.Props[k] = v
		}

		encoded, err := json.Marshal(merged.Props)
		if err != nil {
			return ErrEncodeProps(e.ID, err)
		}
		return tx.Table(s.table).Where("id = ?", e.ID).
			Update("props", string(encoded)).Error
	})
}

func (s *mysqlStore) Add(ctx context.Context, e *Entity) error {
	if e == nil {
		return ErrNilEntity
	}

	encoded, err := json.Marshal(e.Props)
	if err != nil {
		return ErrEncodeProps(e.ID, err)
	}
	rec := entityRecord{ID: e.ID, Props: string(encoded)}
	if err := s.db.WithContext(ctx).Table(s.table).Create(&rec).Error; err != nil {
		return ErrQuery(err)
	}
	return nil
}

func (s *mysqlStore) Close() error {
	sqldb, err := s.db.DB()
	if err != nil {
		return ErrConnection(err)
	}
	return sqldb.Close()
}

func (r *entityRecord) toEntity() (*Entity, error) {
	props := make(map[string]any)
	if r.Props != "" {
		if err := json.Unmarshal([]byte(r.Props), &props); err != nil {
			return nil, ErrEncodeProps(r.ID, err)
		}
	}
	return &Entity{ID: r.ID, Props: props}, nil
}
