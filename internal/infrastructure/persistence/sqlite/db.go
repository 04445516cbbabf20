// Package sqlite implements the domain repositories on an embedded SQLite
// database through sqlx. It backs local development and single-node
// deployments; PostgreSQL remains the production store.
//
// Instants are stored as Unix nanoseconds so that range filters and
// ordering are plain integer comparisons.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// DB wraps the sqlx handle.
type DB struct {
	*sqlx.DB
}

// Open connects to the database file at path and creates the schema.
func Open(path string) (*DB, error) {
	if path == "" {
		path = "grithabit.db"
	}

	dsn := path + "?_foreign_keys=on&_busy_timeout=5000"
	if path != MemoryPath {
		dsn += "&_journal_mode=WAL"
	}

	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// SQLite allows one writer; an in-memory database also exists only
	// within its connection.
	db.SetMaxOpenConns(1)

	wrapper := &DB{DB: db}
	if err := wrapper.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return wrapper, nil
}

func (db *DB) createTables() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS activities (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			category TEXT NOT NULL,
			description TEXT NOT NULL,
			detail TEXT NOT NULL,
			duration_minutes INTEGER,
			goal_id TEXT,
			sub_goal_id TEXT,
			goal_progress_percentage INTEGER,
			occurred_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS goals (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL,
			period TEXT NOT NULL,
			target_count INTEGER NOT NULL,
			sub_goals TEXT NOT NULL DEFAULT '[]',
			completed_at INTEGER,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS user_stats (
			user_id TEXT PRIMARY KEY,
			total_xp INTEGER NOT NULL DEFAULT 0,
			level INTEGER NOT NULL DEFAULT 1,
			current_streak INTEGER NOT NULL DEFAULT 0,
			longest_streak INTEGER NOT NULL DEFAULT 0,
			total_activities INTEGER NOT NULL DEFAULT 0,
			workout_count INTEGER NOT NULL DEFAULT 0,
			learning_count INTEGER NOT NULL DEFAULT 0,
			creating_count INTEGER NOT NULL DEFAULT 0,
			goals_completed INTEGER NOT NULL DEFAULT 0,
			achievements_earned INTEGER NOT NULL DEFAULT 0,
			version INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS user_achievements (
			user_id TEXT NOT NULL,
			achievement_id TEXT NOT NULL,
			earned_at INTEGER NOT NULL,
			shared BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (user_id, achievement_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_activities_user_occurred ON activities(user_id, occurred_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_activities_created ON activities(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_goals_user ON goals(user_id, created_at DESC);`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}

// isConstraintViolation reports a PRIMARY KEY or UNIQUE conflict.
func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func timeFromNull(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intFromNull(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
