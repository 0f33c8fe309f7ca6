// Package database owns the SQLite connection and the migration runner.
//
// modernc.org/sqlite is a pure-Go driver; it registers itself under the
// name "sqlite" through the blank import below.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO
)

// recoverableErrors are migration errors that are safe to skip.
// Re-running a half-applied migration fails with "duplicate column name"
// on an ALTER TABLE ADD COLUMN that already went through.
var recoverableErrors = []string{
	"duplicate column name",
}

// DB wraps the connection pool.
// *sql.DB is safe for concurrent use by many goroutines.
type DB struct {
	Conn *sql.DB
}

// New opens the SQLite database at dbPath and applies pending migrations.
//
// migrationsFS holds the *.sql files at its root (embed.FS via fs.Sub, or
// os.DirFS).
func New(dbPath string, migrationsFS fs.FS) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// foreign_keys is off by default in SQLite.
	// WAL lets the storefront read while the admin writes.
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{Conn: conn}

	if err := db.runMigrations(migrationsFS); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("[database] connected and migrations applied")
	return db, nil
}

// Open opens the embedded migrations variant; it is what main and the
// maintenance CLI use.
func Open(dbPath string) (*DB, error) {
	migrations, err := fs.Sub(EmbeddedMigrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	return New(dbPath, migrations)
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.Conn.Close()
}

// Ping checks the connection; used by health and diagnostics.
func (db *DB) Ping(ctx context.Context) error {
	return db.Conn.PingContext(ctx)
}

// AppliedMigrations returns the migration filenames recorded as applied.
func (db *DB) AppliedMigrations(ctx context.Context) ([]string, error) {
	rows, err := db.Conn.QueryContext(ctx, "SELECT filename FROM schema_migrations ORDER BY filename")
	if err != nil {
		return nil, fmt.Errorf("failed to query schema_migrations: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// runMigrations applies the pending *.sql files in filename order. Each file
// and its schema_migrations row commit in one transaction, so a failed file
// leaves no trace and runs again on the next start.
func (db *DB) runMigrations(migrationsFS fs.FS) error {
	ctx := context.Background()

	if _, err := db.Conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	files, err := migrationFiles(migrationsFS)
	if err != nil {
		return err
	}

	done, err := db.AppliedMigrations(ctx)
	if err != nil {
		return err
	}

	// A catalog created before migrations were tracked already has the
	// images table; record every file instead of replaying them.
	if len(done) == 0 {
		legacy, err := db.hasTable(ctx, "images")
		if err != nil {
			return err
		}
		if legacy {
			return WithTx(ctx, db.Conn, func(tx *sql.Tx) error {
				for _, file := range files {
					if err := recordMigration(ctx, tx, file); err != nil {
						return err
					}
				}
				log.Printf("[database] recorded %d migrations of an existing catalog", len(files))
				return nil
			})
		}
	}

	applied := make(map[string]bool, len(done))
	for _, name := range done {
		applied[name] = true
	}

	for _, file := range files {
		if applied[file] {
			continue
		}
		content, err := fs.ReadFile(migrationsFS, file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		err = WithTx(ctx, db.Conn, func(tx *sql.Tx) error {
			if err := execStatements(ctx, tx, file, string(content)); err != nil {
				return err
			}
			return recordMigration(ctx, tx, file)
		})
		if err != nil {
			return err
		}
		log.Printf("[database] migration applied: %s", file)
	}

	return nil
}

func migrationFiles(migrationsFS fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func (db *DB) hasTable(ctx context.Context, name string) (bool, error) {
	var n int
	err := db.Conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check for table %s: %w", name, err)
	}
	return n > 0, nil
}

func recordMigration(ctx context.Context, tx *sql.Tx, file string) error {
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", file); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", file, err)
	}
	return nil
}

// execStatements runs a migration file one statement at a time. Errors
// matching recoverableErrors are logged and skipped.
func execStatements(ctx context.Context, tx *sql.Tx, filename, content string) error {
	for i, stmt := range splitStatements(content) {
		_, err := tx.ExecContext(ctx, stmt)
		if err == nil {
			continue
		}
		if isRecoverable(err) {
			log.Printf("[database] %s: statement %d skipped: %v", filename, i+1, err)
			continue
		}
		return fmt.Errorf("failed to execute migration %s (statement %d): %w", filename, i+1, err)
	}
	return nil
}

func isRecoverable(err error) bool {
	for _, pattern := range recoverableErrors {
		if strings.Contains(err.Error(), pattern) {
			return true
		}
	}
	return false
}

// splitStatements splits SQL text on semicolons, ignoring the ones inside
// single-quoted string literals. Line comments ("-- ...") are dropped.
func splitStatements(sql string) []string {
	var statements []string
	var current strings.Builder
	inString := false

	for i := 0; i < len(sql); i++ {
		ch := sql[i]

		if !inString && ch == '-' && i+1 < len(sql) && sql[i+1] == '-' {
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			current.WriteByte('\n')
			continue
		}

		if ch == '\'' {
			// '' is an escaped quote inside a literal
			if inString && i+1 < len(sql) && sql[i+1] == '\'' {
				current.WriteByte(ch)
				current.WriteByte(sql[i+1])
				i++
				continue
			}
			inString = !inString
		}

		if ch == ';' && !inString {
			s := strings.TrimSpace(current.String())
			if s != "" {
				statements = append(statements, s)
			}
			current.Reset()
			continue
		}

		current.WriteByte(ch)
	}

	s := strings.TrimSpace(current.String())
	if s != "" {
		statements = append(statements, s)
	}

	return statements
}
