package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a document or revision does not exist.
var ErrNotFound = errors.New("not found")

// Supported SQL drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// DB wraps a SQL connection and the dialect details of its driver.
type DB struct {
	conn   *sql.DB
	driver string
}

// Open opens a SQL database and runs migrations. For sqlite the dsn is a
// file path; its directory is created if needed.
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite:
		return openSQLite(dsn)
	case DriverPostgres:
		return openPooled(DriverPostgres, dsn)
	case DriverMySQL:
		return openPooled(DriverMySQL, mysqlDSN(dsn))
	}
	return nil, fmt.Errorf("unsupported driver %q", driver)
}

func openSQLite(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite only supports one writer; a single connection avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)
	return finishOpen(conn, DriverSQLite)
}

func openPooled(driver, dsn string) (*DB, error) {
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(10 * time.Minute)
	return finishOpen(conn, driver)
}

func finishOpen(conn *sql.DB, driver string) (*DB, error) {
	db := &DB{conn: conn, driver: driver}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// mysqlDSN makes sure timestamps scan into time.Time.
func mysqlDSN(dsn string) string {
	if strings.Contains(dsn, "parseTime=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Driver returns the driver name.
func (db *DB) Driver() string {
	return db.driver
}

// rebind rewrites ? placeholders to $n for postgres.
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (db *DB) exec(query string, args ...any) (sql.Result, error) {
	return db.conn.Exec(db.rebind(query), args...)
}

func (db *DB) query(query string, args ...any) (*sql.Rows, error) {
	return db.conn.Query(db.rebind(query), args...)
}

func (db *DB) queryRow(query string, args ...any) *sql.Row {
	return db.conn.QueryRow(db.rebind(query), args...)
}

// columnTypes maps the logical column types used by the schema to each
// driver's DDL.
var columnTypes = map[string]map[string]string{
	DriverSQLite:   {"ID": "TEXT", "TEXT": "TEXT", "BLOB": "TEXT", "TIME": "DATETIME"},
	DriverPostgres: {"ID": "TEXT", "TEXT": "TEXT", "BLOB": "TEXT", "TIME": "TIMESTAMPTZ"},
	DriverMySQL:    {"ID": "VARCHAR(64)", "TEXT": "VARCHAR(255)", "BLOB": "LONGTEXT", "TIME": "DATETIME(6)"},
}

func (db *DB) ddl(stmt string) string {
	types := columnTypes[db.driver]
	return strings.NewReplacer(
		"{ID}", types["ID"],
		"{TEXT}", types["TEXT"],
		"{BLOB}", types["BLOB"],
		"{TIME}", types["TIME"],
	).Replace(stmt)
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id {ID} PRIMARY KEY,
			name {TEXT} NOT NULL,
			slug {TEXT} NOT NULL,
			status {TEXT} NOT NULL DEFAULT 'draft',
			content_json {BLOB} NOT NULL,
			created_at {TIME} NOT NULL,
			updated_at {TIME} NOT NULL
		)`,
		`CREATE UNIQUE INDEX idx_documents_slug ON documents(slug)`,
		`CREATE TABLE IF NOT EXISTS revisions (
			id {ID} PRIMARY KEY,
			document_id {ID} NOT NULL,
			label {TEXT} NOT NULL,
			content_json {BLOB} NOT NULL,
			created_at {TIME} NOT NULL
		)`,
		`CREATE INDEX idx_revisions_document ON revisions(document_id)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(db.ddl(m)); err != nil {
			// MySQL has no CREATE INDEX IF NOT EXISTS; re-running fails harmlessly.
			if strings.HasPrefix(m, "CREATE") && strings.Contains(m, "INDEX") && isDuplicateIndex(err) {
				continue
			}
			return fmt.Errorf("migration failed: %s: %w", firstLine(m), err)
		}
	}
	return nil
}

func isDuplicateIndex(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate key name")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
