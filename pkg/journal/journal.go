// Package journal records chat membership changes (joins and parts) in SQLite.
// It never stores message text.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const dbTimeLayout = "2006-01-02 15:04:05.000"

// Kind is the type of a membership event.
type Kind string

const (
	KindJoin Kind = "join"
	KindPart Kind = "part"
)

// Event is one recorded membership change.
type Event struct {
	ID       int64
	Kind     Kind
	UserName string
	At       time.Time
}

// Journal is a SQLite-backed membership log.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the journal database at path and migrates it.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open DB: %w", err)
	}
	// Pragmas are per connection; one connection keeps them in force.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("journal: %s: %w", p, err)
		}
	}

	j := &Journal{db: db, now: time.Now}
	if err := j.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return j, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) migrate(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	var count int
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		return fmt.Errorf("check schema_migrations: %w", err)
	}
	if count == 0 {
		if _, err := j.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (0)"); err != nil {
			return fmt.Errorf("init schema_migrations: %w", err)
		}
	}
	var version int
	if err := j.db.QueryRowContext(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	migrations := []struct {
		version    int
		statements []string
	}{
		{
			version: 1,
			statements: []string{`
			CREATE TABLE IF NOT EXISTS membership (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				kind       TEXT NOT NULL CHECK(kind IN ('join', 'part')),
				user_name  TEXT NOT NULL,
				created_at TEXT NOT NULL
			)`,
				"CREATE INDEX IF NOT EXISTS membership_user ON membership(user_name)",
			},
		},
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		for _, stmt := range m.statements {
			if _, err := j.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("version %d: %w", m.version, err)
			}
		}
		if _, err := j.db.ExecContext(ctx, "UPDATE schema_migrations SET version = ?", m.version); err != nil {
			return fmt.Errorf("update schema version: %w", err)
		}
	}
	return nil
}

// Record appends a membership event.
func (j *Journal) Record(ctx context.Context, kind Kind, userName string) error {
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO membership (kind, user_name, created_at) VALUES (?, ?, ?)",
		string(kind), userName, j.now().UTC().Format(dbTimeLayout))
	if err != nil {
		return fmt.Errorf("journal: record %s: %w", kind, err)
	}
	return nil
}

// Joined records that userName registered.
func (j *Journal) Joined(userName string) error {
	return j.Record(context.Background(), KindJoin, userName)
}

// Parted records that userName disconnected.
func (j *Journal) Parted(userName string) error {
	return j.Record(context.Background(), KindPart, userName)
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT id, kind, user_name, created_at FROM membership ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var (
			ev   Event
			kind string
			at   string
		)
		if err := rows.Scan(&ev.ID, &kind, &ev.UserName, &at); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		ev.Kind = Kind(kind)
		ev.At, err = time.ParseInLocation(dbTimeLayout, at, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("journal: parse time %q: %w", at, err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
