package kvstore

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// jsonValue is a JSON document column: jsonb on Postgres, text elsewhere.
// SQLite gives a JSON-typed column numeric affinity, which turns a bare
// counter such as 10 into an integer on the way back.
type jsonValue datatypes.JSON

func (jsonValue) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "JSONB"
	}
	return "TEXT"
}

func (v jsonValue) Value() (driver.Value, error) {
	return datatypes.JSON(v).Value()
}

func (v *jsonValue) Scan(src any) error {
	switch n := src.(type) {
	case int64:
		src = strconv.FormatInt(n, 10)
	case float64:
		src = strconv.FormatFloat(n, 'f', -1, 64)
	}
	return (*datatypes.JSON)(v).Scan(src)
}

// kvRow is the single table all entities are stored in.
type kvRow struct {
	Key       string    `gorm:"column:key;primaryKey;size:255"`
	Value     jsonValue `gorm:"column:value;not null"`
	Version   int64     `gorm:"column:version;not null;default:1"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (kvRow) TableName() string {
	return "kv_store"
}

// GormStore persists entries in a relational database through gorm. On
// Postgres, rows read inside a transaction are locked FOR UPDATE so
// read-modify-write sequences serialize.
type GormStore struct {
	db       *gorm.DB
	lockRows bool
}

var _ Store = (*GormStore)(nil)

// NewGormStore migrates the kv_store table and returns a store backed by db.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&kvRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate kv_store: %w", err)
	}
	return &GormStore{
		db:       db,
		lockRows: db.Dialector.Name() == "postgres",
	}, nil
}

func keyEq(key string) clause.Expression {
	return clause.Eq{Column: clause.Column{Name: "key"}, Value: key}
}

func (s *GormStore) Get(ctx context.Context, key string) (*Entry, error) {
	return getRow(s.db.WithContext(ctx), key)
}

func getRow(db *gorm.DB, key string) (*Entry, error) {
	var row kvRow
	err := db.Where(keyEq(key)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return &Entry{Key: row.Key, Value: json.RawMessage(row.Value), Version: row.Version}, nil
}

func (s *GormStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	return upsertRow(s.db.WithContext(ctx), key, value)
}

func upsertRow(db *gorm.DB, key string, value json.RawMessage) error {
	now := time.Now().UTC()
	row := kvRow{Key: key, Value: jsonValue(value), Version: 1, UpdatedAt: now}
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      jsonValue(value),
			"version":    gorm.Expr("kv_store.version + 1"),
			"updated_at": now,
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	return deleteRow(s.db.WithContext(ctx), key)
}

func deleteRow(db *gorm.DB, key string) error {
	if err := db.Where(keyEq(key)).Delete(&kvRow{}).Error; err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *GormStore) GetByPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	var rows []kvRow
	// LIKE treats '_' as a wildcard, so matches are re-checked below.
	err := s.db.WithContext(ctx).
		Where(clause.Like{Column: clause.Column{Name: "key"}, Value: prefix + "%"}).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("scan %s*: %w", prefix, err)
	}

	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		if !strings.HasPrefix(row.Key, prefix) {
			continue
		}
		out = append(out, Entry{Key: row.Key, Value: json.RawMessage(row.Value), Version: row.Version})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *GormStore) Transact(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&gormTx{db: db, lockRows: s.lockRows})
	})
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type gormTx struct {
	db       *gorm.DB
	lockRows bool
}

func (t *gormTx) Get(ctx context.Context, key string) (*Entry, error) {
	db := t.db.WithContext(ctx)
	if t.lockRows {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return getRow(db, key)
}

func (t *gormTx) Set(ctx context.Context, key string, value json.RawMessage) error {
	return upsertRow(t.db.WithContext(ctx), key, value)
}

func (t *gormTx) Delete(ctx context.Context, key string) error {
	return deleteRow(t.db.WithContext(ctx), key)
}
