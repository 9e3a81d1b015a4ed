// Package drafts keeps resource payloads that have not been sent to the
// backend yet in a local SQLite database, or a shared PostgreSQL one, so
// that work survives failed requests and restarts.
package drafts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database/sql driver names
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
)

// ValidDriver reports whether driver names a supported database driver
func ValidDriver(driver string) bool {
	switch driver {
	case DriverSQLite, DriverPostgres, DriverPgx:
		return true
	default:
		return false
	}
}

// ErrNotFound is returned when no draft has the requested ID
var ErrNotFound = errors.New("draft not found")

// IsNotFound returns true if err is or wraps ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Draft is a saved, unsent resource payload
type Draft struct {
	ID        string
	Resource  string
	Payload   map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Times are stored as RFC 3339 text so both dialects share one schema
var schemaSQL = []string{
	`CREATE TABLE IF NOT EXISTS drafts (
	id         TEXT PRIMARY KEY,
	resource   TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_drafts_resource ON drafts(resource)`,
}

// Store persists drafts. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// Open opens or creates the SQLite database at path and prepares its schema.
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	return Connect(DriverSQLite, path)
}

// Connect opens the drafts database of driver and prepares its schema. For
// SQLite dsn is a file path, for PostgreSQL a connection URL.
func Connect(driver, dsn string) (*Store, error) {
	if !ValidDriver(driver) {
		return nil, fmt.Errorf("unsupported drafts driver %q", driver)
	}
	if driver == DriverSQLite {
		dsn += "?_busy_timeout=5000"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open drafts database: %w", err)
	}
	if driver == DriverSQLite {
		// one connection keeps in-memory databases shared and serializes writers
		db.SetMaxOpenConns(1)
	}

	s := NewStore(db, driver)
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an open database of driver. Call Migrate before first use.
func NewStore(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver, now: time.Now}
}

// Migrate creates the drafts table when missing
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaSQL {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate drafts: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders into the numbered form PostgreSQL expects
func (s *Store) rebind(query string) string {
	if s.driver == DriverSQLite {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores payload as a new draft of resource
func (s *Store) Save(ctx context.Context, resource string, payload map[string]any) (*Draft, error) {
	if resource == "" {
		return nil, errors.New("draft resource name is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode draft: %w", err)
	}

	now := s.now().UTC()
	d := &Draft{
		ID:        uuid.NewString(),
		Resource:  resource,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	stamp := now.Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO drafts (id, resource, payload, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`),
		d.ID, d.Resource, string(data), stamp, stamp,
	)
	if err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	return d, nil
}

// Update replaces the payload of draft id
func (s *Store) Update(ctx context.Context, id string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE drafts SET payload = ?, updated_at = ? WHERE id = ?`),
		string(data), s.now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("update draft %s: %w", id, err)
	}
	return expectOne(res, id)
}

// Get returns draft id
func (s *Store) Get(ctx context.Context, id string) (*Draft, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT id, resource, payload, created_at, updated_at FROM drafts WHERE id = ?`), id)
	d, err := scanDraft(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get draft %s: %w", id, err)
	}
	return d, nil
}

// List returns the drafts of resource, or every draft when resource is
// empty, oldest first
func (s *Store) List(ctx context.Context, resource string) ([]*Draft, error) {
	query := `SELECT id, resource, payload, created_at, updated_at FROM drafts`
	var args []any
	if resource != "" {
		query += ` WHERE resource = ?`
		args = append(args, resource)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	var out []*Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("list drafts: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	return out, nil
}

// Delete removes draft id
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM drafts WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete draft %s: %w", id, err)
	}
	return expectOne(res, id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDraft(sc scanner) (*Draft, error) {
	var (
		d                Draft
		payload          string
		created, updated string
	)
	if err := sc.Scan(&d.ID, &d.Resource, &payload, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), &d.Payload); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", d.ID, err)
	}
	var err error
	if d.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", d.ID, err)
	}
	if d.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", d.ID, err)
	}
	return &d, nil
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
