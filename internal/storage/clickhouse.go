package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"swim_feed/internal/bus"
	"swim_feed/internal/swim"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ClickHouseDB wraps a ClickHouse connection for the raw-message
// archive.
type ClickHouseDB struct {
	conn driver.Conn
}

// OpenClickHouse opens and pings a connection.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}
	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the connection.
func (d *ClickHouseDB) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the archive table.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	const q = `CREATE TABLE IF NOT EXISTS raw_messages (
		received    DateTime64(3),
		topic       LowCardinality(String),
		service     LowCardinality(String),
		payload     String,
		created_at  DateTime64(3) DEFAULT now64(3)
	)
	ENGINE = MergeTree()
	PARTITION BY toYYYYMM(received)
	ORDER BY (service, received)
	SETTINGS index_granularity = 8192`

	if err := d.conn.Exec(ctx, q); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// InsertBatch archives a batch of raw messages.
func (d *ClickHouseDB) InsertBatch(ctx context.Context, msgs []*swim.RawMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	batch, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO raw_messages (received, topic, service, payload)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, m := range msgs {
		if err := batch.Append(m.Received, m.Topic, string(m.Service), string(m.Payload)); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Archiver drains raw messages from the bus into ClickHouse in batches.
// Archive failure never stalls ingestion; a failed batch is logged and
// dropped.
type Archiver struct {
	db  *ClickHouseDB
	log *slog.Logger

	batchSize     int
	flushInterval time.Duration
}

func NewArchiver(db *ClickHouseDB, log *slog.Logger) *Archiver {
	if log == nil {
		log = slog.Default()
	}
	return &Archiver{
		db:            db,
		log:           log,
		batchSize:     500,
		flushInterval: 5 * time.Second,
	}
}

// Run batches until ctx is cancelled, flushing on size or interval.
func (a *Archiver) Run(ctx context.Context, b *bus.Bus) {
	sub := b.Subscribe("RawArchive", bus.DefaultCapacity)
	defer sub.Close()

	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	pending := make([]*swim.RawMessage, 0, a.batchSize)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.db.InsertBatch(flushCtx, pending); err != nil {
			a.log.Warn("archive batch failed", "messages", len(pending), "error", err)
		}
		cancel()
		pending = pending[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-sub.Done():
			flush()
			return
		case <-ticker.C:
			flush()
		case msg := <-sub.C():
			raw, ok := msg.(*swim.RawMessage)
			if !ok {
				continue
			}
			pending = append(pending, raw)
			if len(pending) >= a.batchSize {
				flush()
			}
		}
	}
}
