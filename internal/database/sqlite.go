package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ibk-go/internal/database/migrations"
	"ibk-go/internal/ibk"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase records operation history in SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase opens the database at path (or ":memory:") and brings
// its schema up to date.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection.
// path can be a file path or ":memory:".
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// Path returns the file the database was opened from.
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// StartOperation inserts a running operation and returns its ID.
func (s *SQLiteDatabase) StartOperation(kind, parameters string, startedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(context.Background(),
		`INSERT INTO operations (kind, parameters, started_at, status) VALUES (?, ?, ?, ?)`,
		kind, parameters, startedAt.UnixMicro(), ibk.OperationRunning)
	if err != nil {
		return 0, fmt.Errorf("creating operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("creating operation: %w", err)
	}
	return id, nil
}

// FinishOperation sets the final status and summary of an operation and
// stores its failures, all in one transaction.
func (s *SQLiteDatabase) FinishOperation(id int64, status, summary string, failures []ibk.Failure, finishedAt time.Time) error {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("finishing operation %d: %w", id, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE operations SET finished_at = ?, status = ?, summary = ? WHERE id = ?`,
		finishedAt.UnixMicro(), status, summary, id)
	if err != nil {
		return fmt.Errorf("finishing operation %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finishing operation %d: %w", id, ibk.ErrNotFound)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO operation_failures (operation_id, relative_path, reason) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("recording failures of operation %d: %w", id, err)
	}
	defer stmt.Close()
	for _, f := range failures {
		if _, err := stmt.ExecContext(ctx, id, f.RelativePath, f.Reason); err != nil {
			return fmt.Errorf("recording failure %s: %w", f.RelativePath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("finishing operation %d: %w", id, err)
	}
	return nil
}

// ListOperations returns up to limit operations, newest first.
// A limit of zero or less returns all of them.
func (s *SQLiteDatabase) ListOperations(limit int) ([]ibk.Operation, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT o.id, o.kind, o.parameters, o.started_at, o.finished_at, o.status, o.summary,
		       (SELECT COUNT(*) FROM operation_failures f WHERE f.operation_id = o.id)
		FROM operations o
		ORDER BY o.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []ibk.Operation
	for rows.Next() {
		var (
			op       ibk.Operation
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&op.ID, &op.Kind, &op.Parameters, &started, &finished, &op.Status, &op.Summary, &op.Failures); err != nil {
			return nil, fmt.Errorf("listing operations: %w", err)
		}
		op.StartedAt = time.UnixMicro(started)
		if finished.Valid {
			op.FinishedAt = time.UnixMicro(finished.Int64)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

// OperationFailures returns the failures recorded for operation id, ordered by path.
func (s *SQLiteDatabase) OperationFailures(id int64) ([]ibk.Failure, error) {
	var exists int64
	err := s.db.QueryRowContext(context.Background(), `SELECT id FROM operations WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("operation %d: %w", id, ibk.ErrNotFound)
		}
		return nil, fmt.Errorf("operation %d: %w", id, err)
	}

	rows, err := s.db.QueryContext(context.Background(),
		`SELECT relative_path, reason FROM operation_failures WHERE operation_id = ? ORDER BY relative_path`, id)
	if err != nil {
		return nil, fmt.Errorf("listing failures of operation %d: %w", id, err)
	}
	defer rows.Close()

	var failures []ibk.Failure
	for rows.Next() {
		var f ibk.Failure
		if err := rows.Scan(&f.RelativePath, &f.Reason); err != nil {
			return nil, fmt.Errorf("listing failures of operation %d: %w", id, err)
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo writes a complete copy of the database to destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ ibk.History = (*SQLiteDatabase)(nil)
