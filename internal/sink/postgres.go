// Package sink provides the narrow collaborator interfaces this control
// plane treats as external: the relational audit/ban-log store and the
// metrics-history store. Neither is owned by this core — the core only
// writes through these interfaces; CRUD, schema, and query surfaces beyond
// that belong to the dashboard. Grounded on the reference pack's db/db.go
// (Executor interface),
// internal/db/migrations.go (golang-migrate + lib/pq runner) and
// internal/clickhouse/{client,migrations}.go (the ClickHouse counterpart).
package sink

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

// Executor abstracts *sql.DB/*sql.Tx so the audit/ban sink can run inside a
// caller-managed transaction.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// BanRecord is one admin ban written by the RCON engine's Ban convenience
// command, persisted for cross-session enforcement.
type BanRecord struct {
	ServerID   string
	EOSID      string
	PlatformID string
	AdminName  string
	Reason     string
	IntervalS  int
	CreatedAt  time.Time
}

// AuditRecord is one admin command invocation (warn/kick/ban/broadcast/
// map change/etc.), persisted for accountability.
type AuditRecord struct {
	ServerID  string
	AdminName string
	Command   string
	Target    string
	CreatedAt time.Time
}

// PostgresDSN builds a standard libpq connection string, matching the
// reference pack's db.PostgresDSN.
func PostgresDSN(host string, port int, user, pass, name string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", user, pass, host, port, name)
}

type migrationsLogger struct{ verbose bool }

func (l *migrationsLogger) Printf(format string, v ...any) { log.Printf(format, v...) }
func (l *migrationsLogger) Verbose() bool                  { return l.verbose }

// MigratePostgres runs the embedded postgres schema against database.
func MigratePostgres(database *sql.DB, verbose bool) error {
	driver, err := postgres.WithInstance(database, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}
	d, err := iofs.New(postgresMigrations, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("failed to create iofs driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", d, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer d.Close()
	m.Log = &migrationsLogger{verbose: verbose}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// PostgresSink writes ban and audit records through a narrow interface; it
// never reads them back (CRUD/listing is the dashboard's concern).
type PostgresSink struct {
	db Executor
}

// NewPostgresSink wraps an already-migrated connection (or transaction).
func NewPostgresSink(db Executor) *PostgresSink { return &PostgresSink{db: db} }

// RecordBan inserts one ban row.
func (s *PostgresSink) RecordBan(ctx context.Context, rec BanRecord) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	q, args, err := psql.Insert("server_bans").
		Columns("server_id", "eos_id", "platform_id", "admin_name", "reason", "interval_seconds", "created_at").
		Values(rec.ServerID, rec.EOSID, rec.PlatformID, rec.AdminName, rec.Reason, rec.IntervalS, rec.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build ban insert: %w", err)
	}
	_, err = s.db.ExecContext(ctx, q, args...)
	return err
}

// RecordAudit inserts one admin-command audit row.
func (s *PostgresSink) RecordAudit(ctx context.Context, rec AuditRecord) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	q, args, err := psql.Insert("server_audit_logs").
		Columns("server_id", "admin_name", "command", "target", "created_at").
		Values(rec.ServerID, rec.AdminName, rec.Command, rec.Target, rec.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build audit insert: %w", err)
	}
	_, err = s.db.ExecContext(ctx, q, args...)
	return err
}
