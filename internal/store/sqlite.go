package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/oklog/ulid/v2"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	defaultBusyTimeout = 5 * time.Second
	defaultWorkspace   = "default"
	defaultSystemActor = "system"
)

// querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db           *sql.DB
	log          *slog.Logger
	busyTimeout  time.Duration
	workspace    string
	systemActor  string
	doneStatuses map[string]bool
	now          func() time.Time
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets the logger used for diagnostics. Defaults to a discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *SQLiteStore) {
		if l != nil {
			s.log = l
		}
	}
}

// WithBusyTimeout bounds how long a writer waits for the database lock
// before failing with ErrRetryable.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *SQLiteStore) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// WithWorkspace sets the workspace stamped onto new issues.
func WithWorkspace(ws string) Option {
	return func(s *SQLiteStore) {
		if ws != "" {
			s.workspace = ws
		}
	}
}

// WithSystemActor sets the user recorded for membership changes made through
// AddToCycle and AddToModule.
func WithSystemActor(actor string) Option {
	return func(s *SQLiteStore) {
		if actor != "" {
			s.systemActor = actor
		}
	}
}

// WithDoneStatuses sets which issue statuses count as completed in analytics.
// Defaults to just "done".
func WithDoneStatuses(statuses ...string) Option {
	return func(s *SQLiteStore) {
		set := make(map[string]bool, len(statuses))
		for _, st := range statuses {
			if st != "" {
				set[st] = true
			}
		}
		if len(set) > 0 {
			s.doneStatuses = set
		}
	}
}

// withClock replaces time.Now, for tests.
func withClock(now func() time.Time) Option {
	return func(s *SQLiteStore) { s.now = now }
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		busyTimeout:  defaultBusyTimeout,
		workspace:    defaultWorkspace,
		systemActor:  defaultSystemActor,
		doneStatuses: map[string]bool{"done": true},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one writer. A single pooled connection keeps every
	// statement of this process on the same connection, so BEGIN IMMEDIATE
	// below serializes writers without "database is locked" churn in-process.
	db.SetMaxOpenConns(1)

	pragmas := []struct{ name, stmt string }{
		{"enable WAL mode", "PRAGMA journal_mode=WAL"},
		{"set busy timeout", fmt.Sprintf("PRAGMA busy_timeout=%d", s.busyTimeout.Milliseconds())},
		{"enable foreign keys", "PRAGMA foreign_keys=ON"},
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p.stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p.name, err)
		}
	}

	s.db = db
	return s, nil
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// newULID generates a new ULID string.
func newULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Migrate applies the embedded golang-migrate migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, _, _ := m.Version()
	s.log.Debug("migrated database", "version", version)
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a BEGIN IMMEDIATE transaction on a dedicated
// connection. Acquiring the write lock is retried with exponential backoff
// for up to the busy timeout; after that the call fails with ErrRetryable.
// fn's error, a failed commit or a panic roll everything back.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(q querier) error) (err error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return wrapDBError("acquire connection", err)
	}
	defer func() { _ = conn.Close() }()

	if err := s.beginImmediate(ctx, conn); err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			// Background context so the rollback still runs if ctx was cancelled.
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(conn); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return wrapDBError("commit transaction", err)
	}
	committed = true
	return nil
}

func (s *SQLiteStore) beginImmediate(ctx context.Context, conn *sql.Conn) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = s.busyTimeout

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err == nil {
			return nil
		}
		if classifyError(err) == ErrRetryable {
			s.log.Debug("write lock busy, retrying", "attempt", attempt, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return wrapDBError("begin transaction", err)
	}
	return nil
}

// Timestamps are stored as fixed-width ISO-8601 text in UTC so that string
// order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}
