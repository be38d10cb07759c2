package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"BarBridge/internal/domain/models"
	"BarBridge/internal/domain/repository"
)

// ClickHouseStore writes completed bars into a MergeTree table. The price
// level footprint goes in as a JSON string column.
type ClickHouseStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseStore creates a bar store over an existing pool.
func NewClickHouseStore(db *sql.DB, table string) repository.BarArchive {
	return &ClickHouseStore{db: db, table: table}
}

// Schema returns the idempotent DDL for the bar table, for use with the
// client's InitSchema.
func Schema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			symbol String,
			open_time DateTime64(3, 'UTC'),
			close_time DateTime64(3, 'UTC'),
			open Float64,
			high Float64,
			low Float64,
			close Float64,
			volume Float64,
			levels String
		) ENGINE = ReplacingMergeTree ORDER BY (symbol, close_time)`, database, table),
	}
}

func (s *ClickHouseStore) Store(ctx context.Context, symbol string, bar models.CachedBar) error {
	levels, err := json.Marshal(bar.Levels)
	if err != nil {
		return fmt.Errorf("marshal levels: %w", err)
	}
	q := fmt.Sprintf("INSERT INTO %s (symbol, open_time, close_time, open, high, low, close, volume, levels) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", s.table)
	_, err = s.db.ExecContext(ctx, q,
		symbol,
		bar.OpenTime,
		bar.CloseTime,
		bar.Open,
		bar.High,
		bar.Low,
		bar.Close,
		bar.Volume,
		string(levels),
	)
	if err != nil {
		return fmt.Errorf("insert bar: %w", err)
	}
	return nil
}

func (s *ClickHouseStore) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *ClickHouseStore) Close() error {
	return nil // pool is owned by pkg/clickhouse.Client
}
