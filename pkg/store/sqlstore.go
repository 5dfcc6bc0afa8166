package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect captures the SQL differences between the supported databases.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

const defaultTable = "entities"

var tableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// SQLStore keeps every entity as a JSON document in one (kind, id) keyed table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	table   string
}

// OpenSQL connects, applies pragmas for sqlite and creates the table.
func OpenSQL(dialect Dialect, dsn, table string) (*SQLStore, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dialect, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// A single writer keeps sqlite transactions serialized.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set SQLite pragmas: %w", err)
		}
	}
	s, err := NewSQLStore(db, dialect, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := s.Init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database.
func NewSQLStore(db *sql.DB, dialect Dialect, table string) (*SQLStore, error) {
	if table == "" {
		table = defaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %s", table)
	}
	return &SQLStore{db: db, dialect: dialect, table: table}, nil
}

// Init creates the entity table if it does not exist.
func (s *SQLStore) Init(ctx context.Context) error {
	bodyType := "TEXT"
	if s.dialect == DialectPostgres {
		bodyType = "JSONB"
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			kind TEXT NOT NULL,
			id TEXT NOT NULL,
			body %s NOT NULL,
			PRIMARY KEY (kind, id)
		)`, s.table, bodyType))
	if err != nil {
		return fmt.Errorf("failed to create %s table: %w", s.table, err)
	}
	return nil
}

// bind rewrites ? placeholders for postgres.
func (s *SQLStore) bind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Get(ctx context.Context, kind, id string) ([]byte, bool, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		s.bind(fmt.Sprintf("SELECT body FROM %s WHERE kind = ? AND id = ?", s.table)), kind, id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s %s: %w", kind, id, err)
	}
	return body, true, nil
}

func (s *SQLStore) Scan(ctx context.Context, kind, prefix string, fn func(id string, body []byte) error) error {
	rows, err := s.db.QueryContext(ctx,
		s.bind(fmt.Sprintf("SELECT id, body FROM %s WHERE kind = ? AND id LIKE ? ORDER BY id", s.table)),
		kind, escapeLike(prefix)+"%")
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", kind, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   string
			body []byte
		)
		if err := rows.Scan(&id, &body); err != nil {
			return fmt.Errorf("failed to read %s row: %w", kind, err)
		}
		if err := fn(id, body); err != nil {
			if err == ErrStopScan {
				return nil
			}
			return err
		}
	}
	return rows.Err()
}

// Entity ids are hex so LIKE wildcards never occur, but prefixes come from
// API callers too.
func escapeLike(s string) string {
	return strings.NewReplacer("%", "", "_", "").Replace(s)
}

func (s *SQLStore) Commit(ctx context.Context, changes []Change) error {
	if len(changes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	upsert := s.bind(fmt.Sprintf(`INSERT INTO %s (kind, id, body) VALUES (?, ?, ?)
		ON CONFLICT (kind, id) DO UPDATE SET body = excluded.body`, s.table))
	remove := s.bind(fmt.Sprintf("DELETE FROM %s WHERE kind = ? AND id = ?", s.table))

	for _, c := range changes {
		switch c.Op {
		case OpPut:
			if _, err := tx.ExecContext(ctx, upsert, c.Kind, c.ID, string(c.Body)); err != nil {
				return fmt.Errorf("failed to upsert %s %s: %w", c.Kind, c.ID, err)
			}
		case OpDelete:
			if _, err := tx.ExecContext(ctx, remove, c.Kind, c.ID); err != nil {
				return fmt.Errorf("failed to delete %s %s: %w", c.Kind, c.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
