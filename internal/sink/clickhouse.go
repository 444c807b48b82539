package sink

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/golang-migrate/migrate/v4"
	chdriver "github.com/golang-migrate/migrate/v4/database/clickhouse"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

//go:embed migrations/clickhouse/*.sql
var clickhouseMigrations embed.FS

// ClickHouseConfig dials the metrics-history store, mirroring the
// reference pack's clickhouse Config shape.
type ClickHouseConfig struct {
	Host, Database, Username, Password string
	Port                                int
	Debug                               bool
}

// MetricsSink appends rule-engine and scheduler task statistics as time
// series. It never reads them back; querying/dashboarding is external.
type MetricsSink struct {
	conn *sql.DB
}

// NewMetricsSink opens and pings a ClickHouse connection.
func NewMetricsSink(cfg ClickHouseConfig) (*MetricsSink, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
	})
	if err := conn.Ping(); err != nil {
		return nil, oops.Wrapf(err, "failed to ping clickhouse")
	}
	return &MetricsSink{conn: conn}, nil
}

// MigrateClickHouse runs the embedded metrics schema.
func MigrateClickHouse(database *sql.DB, verbose bool) error {
	driver, err := chdriver.WithInstance(database, &chdriver.Config{})
	if err != nil {
		return oops.Wrapf(err, "failed to create clickhouse driver")
	}
	d, err := iofs.New(clickhouseMigrations, "migrations/clickhouse")
	if err != nil {
		return oops.Wrapf(err, "failed to create iofs driver")
	}
	m, err := migrate.NewWithInstance("iofs", d, "clickhouse", driver)
	if err != nil {
		return oops.Wrapf(err, "failed to create migrate instance")
	}
	defer d.Close()
	m.Log = &migrationsLogger{verbose: verbose}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return oops.Wrapf(err, "clickhouse migration failed")
	}
	return nil
}

// Migrate runs the embedded metrics schema against this sink's connection.
func (s *MetricsSink) Migrate(verbose bool) error { return MigrateClickHouse(s.conn, verbose) }

// Close releases the underlying connection.
func (s *MetricsSink) Close() error { return s.conn.Close() }

// RuleMatchSample is one rule-engine match-latency observation (average
// match latency per kind) flushed periodically rather than per line.
type RuleMatchSample struct {
	ServerID   string
	Kind       string
	Count      uint64
	Unmatched  uint64
	Dropped    uint64
	AvgLatency time.Duration
	ObservedAt time.Time
}

// WriteRuleStats appends one rule-engine stats row.
func (s *MetricsSink) WriteRuleStats(ctx context.Context, sample RuleMatchSample) error {
	const q = `INSERT INTO rule_match_stats
		(server_id, kind, match_count, unmatched_count, dropped_count, avg_latency_ms, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.conn.ExecContext(ctx, q,
		sample.ServerID, sample.Kind, sample.Count, sample.Unmatched, sample.Dropped,
		float64(sample.AvgLatency.Microseconds())/1000.0, sample.ObservedAt)
	if err != nil {
		return oops.Wrapf(err, "failed to write rule match stats")
	}
	return nil
}

// TaskStatSample is one scheduler task's stats snapshot.
type TaskStatSample struct {
	ServerID   string
	TaskName   string
	Runs       uint64
	Errors     uint64
	Skipped    uint64
	LastRunAt  time.Time
	ObservedAt time.Time
}

// WriteTaskStats appends one scheduler task stats row.
func (s *MetricsSink) WriteTaskStats(ctx context.Context, sample TaskStatSample) error {
	const q = `INSERT INTO scheduler_task_stats
		(server_id, task_name, runs, errors, skipped, last_run_at, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.conn.ExecContext(ctx, q,
		sample.ServerID, sample.TaskName, sample.Runs, sample.Errors, sample.Skipped,
		sample.LastRunAt, sample.ObservedAt)
	if err != nil {
		return oops.Wrapf(err, "failed to write task stats")
	}
	return nil
}
