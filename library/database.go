package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// MemoryPath selects an ephemeral in-memory database.
const MemoryPath = ":memory:"

const defaultBusyTimeout = 5 * time.Second

// Lifetime controls how long a database connection lives.
type Lifetime string

const (
	// LifetimeAuto keeps a resident connection for MemoryPath and opens one
	// per call for files.
	LifetimeAuto Lifetime = ""
	// LifetimeResident holds one connection until Close.
	LifetimeResident Lifetime = "resident"
	// LifetimePerCall opens and closes a connection around every call.
	LifetimePerCall Lifetime = "per_call"
)

// ParseLifetime maps a config value onto a Lifetime.
func ParseLifetime(s string) (Lifetime, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return LifetimeAuto, nil
	case "resident":
		return LifetimeResident, nil
	case "per_call", "per-call", "percall":
		return LifetimePerCall, nil
	}
	return LifetimeAuto, errors.Errorf("unknown connection lifetime %q", s)
}

// Options configures a Database.
type Options struct {
	Path        string
	Lifetime    Lifetime
	BusyTimeout time.Duration
}

func (o Options) resolve() (Options, error) {
	if strings.TrimSpace(o.Path) == "" {
		return o, errors.New("database path is required")
	}
	switch o.Lifetime {
	case LifetimeAuto:
		if o.Path == MemoryPath {
			o.Lifetime = LifetimeResident
		} else {
			o.Lifetime = LifetimePerCall
		}
	case LifetimeResident:
	case LifetimePerCall:
		if o.Path == MemoryPath {
			return o, errors.Errorf("lifetime %q cannot hold an in-memory database", o.Lifetime)
		}
	default:
		return o, errors.Errorf("unknown connection lifetime %q", o.Lifetime)
	}
	if o.BusyTimeout <= 0 {
		o.BusyTimeout = defaultBusyTimeout
	}
	return o, nil
}

// dsn enables busy_timeout and foreign keys; files also get WAL.
func (o Options) dsn() string {
	if o.Path == MemoryPath {
		return fmt.Sprintf("file::memory:?_busy_timeout=%d&_foreign_keys=1", o.BusyTimeout.Milliseconds())
	}
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=1&_journal_mode=WAL", o.Path, o.BusyTimeout.Milliseconds())
}

// Database is the catalog store: schema owner and the single point where SQL
// is executed. Callers see rows and ids, never connections.
type Database struct {
	opts Options
	conn connector
	log  *zap.Logger

	mu     sync.RWMutex // guards closed; held shared by every call
	closed bool

	writeMu sync.Mutex
}

// NewDatabase opens (or creates) the database described by opts and applies
// schema migrations.
func NewDatabase(ctx context.Context, opts Options, log *zap.Logger) (*Database, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts, err := opts.resolve()
	if err != nil {
		return nil, err
	}

	// Ensure directory exists so first-run succeeds.
	if opts.Path != MemoryPath {
		if dir := filepath.Dir(opts.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrap(err, "create db dir")
			}
		}
	}

	var conn connector
	switch opts.Lifetime {
	case LifetimeResident:
		conn, err = newResidentConnector(ctx, opts.dsn())
		if err != nil {
			return nil, &StoreError{Op: "open", Kind: ErrStorageFailure, Err: err}
		}
	default:
		conn = perCallConnector{dsn: opts.dsn()}
	}

	d := &Database{opts: opts, conn: conn, log: log.Named("store")}
	if err := d.Initialize(ctx); err != nil {
		_ = conn.close()
		return nil, err
	}
	d.log.Debug("catalog store ready",
		zap.String("path", opts.Path),
		zap.String("lifetime", string(opts.Lifetime)))
	return d, nil
}

// Path returns the database location.
func (d *Database) Path() string { return d.opts.Path }

// Lifetime returns the resolved connection lifetime.
func (d *Database) Lifetime() Lifetime { return d.opts.Lifetime }

// Initialize ensures the books and members tables exist. It is idempotent and
// never drops data.
func (d *Database) Initialize(ctx context.Context) error {
	const op = "initialize"
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return closedError(op)
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	db, release, err := d.conn.acquire(ctx)
	if err != nil {
		return d.translate(op, "", err)
	}
	defer release()

	if err := migrate(db.DB, d.log); err != nil {
		d.log.Error("apply migrations", zap.Error(err))
		return &StoreError{Op: op, Kind: ErrStorageFailure, Err: err}
	}
	return nil
}

// Exec runs a single INSERT or UPDATE. The statement commits as a whole or
// not at all.
func (d *Database) Exec(ctx context.Context, query string, args []any) (WriteResult, error) {
	const op = "exec"
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return WriteResult{}, closedError(op)
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	db, release, err := d.conn.acquire(ctx)
	if err != nil {
		return WriteResult{}, d.translate(op, query, err)
	}
	defer release()

	start := time.Now()
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return WriteResult{}, d.translate(op, query, err)
	}

	var out WriteResult
	if out.LastInsertID, err = res.LastInsertId(); err != nil {
		return WriteResult{}, d.translate(op, query, err)
	}
	if out.RowsAffected, err = res.RowsAffected(); err != nil {
		return WriteResult{}, d.translate(op, query, err)
	}
	d.log.Debug("executed",
		zap.String("query", query),
		zap.Int64("rows_affected", out.RowsAffected),
		zap.Duration("duration", time.Since(start)))
	return out, nil
}

// FetchAll runs a read-only query and returns every row in result order.
func (d *Database) FetchAll(ctx context.Context, query string, args []any) ([]Row, error) {
	const op = "fetch"
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, closedError(op)
	}

	db, release, err := d.conn.acquire(ctx)
	if err != nil {
		return nil, d.translate(op, query, err)
	}
	defer release()

	rows, err := db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, d.translate(op, query, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, d.translate(op, query, err)
	}

	out := make([]Row, 0)
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, d.translate(op, query, err)
		}
		out = append(out, NewRow(cols, vals))
	}
	if err := rows.Err(); err != nil {
		return nil, d.translate(op, query, err)
	}
	return out, nil
}

// Close releases the connection. Calling it again is a no-op; any other call
// after Close fails with ErrStoreClosed.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.conn.close()
}

func closedError(op string) error {
	return &StoreError{Op: op, Kind: ErrStorageFailure, Err: ErrStoreClosed}
}

// translate maps driver errors onto the store's error kinds.
func (d *Database) translate(op, query string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		d.log.Debug("constraint violation",
			zap.String("op", op),
			zap.String("query", query),
			zap.Error(err))
		return &StoreError{Op: op, Kind: ErrIntegrityViolation, Err: err}
	}
	d.log.Error("storage failure",
		zap.String("op", op),
		zap.String("query", query),
		zap.Error(err))
	return &StoreError{Op: op, Kind: ErrStorageFailure, Err: err}
}

// ---------------------------------------------------------------------------
// Connection lifetimes
// ---------------------------------------------------------------------------

type connector interface {
	acquire(ctx context.Context) (db *sqlx.DB, release func(), err error)
	close() error
}

// residentConnector pins a single connection; an in-memory database lives
// exactly as long as that connection.
type residentConnector struct {
	db *sqlx.DB
}

func newResidentConnector(ctx context.Context, dsn string) (*residentConnector, error) {
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &residentConnector{db: db}, nil
}

func (c *residentConnector) acquire(context.Context) (*sqlx.DB, func(), error) {
	return c.db, func() {}, nil
}

func (c *residentConnector) close() error { return c.db.Close() }

type perCallConnector struct {
	dsn string
}

func (c perCallConnector) acquire(ctx context.Context) (*sqlx.DB, func(), error) {
	db, err := sqlx.Open("sqlite3", c.dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, func() { _ = db.Close() }, nil
}

func (perCallConnector) close() error { return nil }
