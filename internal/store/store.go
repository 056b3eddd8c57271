package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DefaultRetries is the number of open attempts made under lock contention.
	DefaultRetries = 3

	// DefaultBackoff is the backoff step; attempt n waits n*DefaultBackoff.
	DefaultBackoff = 2 * time.Second

	// DefaultBusyTimeout is how long SQLite itself waits on a lock per statement.
	DefaultBusyTimeout = time.Second

	dirPermissions = 0750
)

// Mode selects how a database file is opened.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

func (m Mode) String() string {
	if m == ReadWrite {
		return "read-write"
	}
	return "read-only"
}

// Config controls how the gateway opens database files.
type Config struct {
	// Retries is the total number of open attempts under lock contention.
	// Values below 1 are treated as 1.
	Retries int

	// Backoff is the linear backoff step between attempts.
	Backoff time.Duration

	// BusyTimeout is passed to SQLite as busy_timeout.
	BusyTimeout time.Duration
}

// DefaultConfig returns the gateway defaults: 3 attempts, 2s linear backoff.
func DefaultConfig() Config {
	return Config{
		Retries:     DefaultRetries,
		Backoff:     DefaultBackoff,
		BusyTimeout: DefaultBusyTimeout,
	}
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Gateway opens connections to a single-writer SQLite database file.
//
// SQLite permits exactly one writer per file. The gateway makes that rule
// explicit: every read-write open takes a process-wide writer token for the
// file and probes the engine lock with BEGIN IMMEDIATE. Either failing is
// lock contention, which is retried with linear backoff. Every other error
// is returned immediately.
//
// Thread-safety: Gateway is safe for concurrent use.
type Gateway struct {
	cfg    Config
	logger *slog.Logger
}

// NewGateway creates a gateway with the given configuration.
func NewGateway(cfg Config, opts ...Option) *Gateway {
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	g := &Gateway{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Config returns the effective gateway configuration.
func (g *Gateway) Config() Config {
	return g.cfg
}

// OpenReadOnly opens path for reading. The file must already exist.
// The caller owns the returned connection and must Close it.
func (g *Gateway) OpenReadOnly(ctx context.Context, path string) (*Conn, error) {
	return g.open(ctx, path, ReadOnly)
}

// OpenReadWrite opens path for writing, creating the file and its directory
// if needed. The caller owns the returned connection and must Close it; the
// writer token for path is held until then.
func (g *Gateway) OpenReadWrite(ctx context.Context, path string) (*Conn, error) {
	return g.open(ctx, path, ReadWrite)
}

// WithReadOnly opens path read-only, runs fn, and closes the connection on
// every exit path.
func (g *Gateway) WithReadOnly(ctx context.Context, path string, fn func(*Conn) error) error {
	return g.with(ctx, path, ReadOnly, fn)
}

// WithReadWrite opens path read-write, runs fn, and closes the connection on
// every exit path. The write lock is never held longer than fn.
func (g *Gateway) WithReadWrite(ctx context.Context, path string, fn func(*Conn) error) error {
	return g.with(ctx, path, ReadWrite, fn)
}

func (g *Gateway) with(ctx context.Context, path string, mode Mode, fn func(*Conn) error) (err error) {
	conn, err := g.open(ctx, path, mode)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(conn)
}

// open retries openOnce while the failure is lock contention.
func (g *Gateway) open(ctx context.Context, path string, mode Mode) (*Conn, error) {
	if path == "" {
		return nil, fmt.Errorf("open %s database: empty path", mode)
	}

	var conn *Conn
	attempts := 0
	operation := func() error {
		attempts++
		c, err := g.openOnce(ctx, path, mode)
		if err != nil {
			if !IsContention(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		conn = c
		return nil
	}
	notify := func(err error, delay time.Duration) {
		g.logger.Warn("database locked, retrying",
			"path", path,
			"mode", mode.String(),
			"attempt", attempts,
			"max_attempts", g.cfg.Retries,
			"delay", delay,
			"error", err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newLinearBackOff(g.cfg.Backoff), uint64(g.cfg.Retries-1)),
		ctx,
	)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if IsContention(err) {
			return nil, &ContentionError{Path: path, Mode: mode, Attempts: attempts, Err: err}
		}
		return nil, fmt.Errorf("open %s database %s: %w", mode, path, err)
	}
	return conn, nil
}

// openOnce makes a single open attempt without retrying.
func (g *Gateway) openOnce(ctx context.Context, path string, mode Mode) (*Conn, error) {
	busyMS := g.cfg.BusyTimeout.Milliseconds()

	if mode == ReadOnly {
		// mode=ro never creates the file; report absence plainly.
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		dsn, err := sqliteURI(path, url.Values{
			"mode":          {"ro"},
			"_busy_timeout": {strconv.FormatInt(busyMS, 10)},
		})
		if err != nil {
			return nil, err
		}
		db, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return &Conn{db: db, path: path, mode: ReadOnly}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// _txlock=immediate makes every BeginTx take the write lock up front, so
	// contention shows up at BEGIN rather than halfway through a transaction.
	dsn, err := sqliteURI(path, url.Values{
		"_busy_timeout": {strconv.FormatInt(busyMS, 10)},
		"_txlock":       {"immediate"},
		"_journal_mode": {"WAL"},
		"_synchronous":  {"NORMAL"},
		"_foreign_keys": {"off"},
	})
	if err != nil {
		return nil, err
	}

	release, err := writers.acquire(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		release()
		return nil, err
	}

	// SQLite only supports one writer; keep a single pooled connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := probeWriteLock(ctx, db); err != nil {
		db.Close()
		release()
		return nil, err
	}

	return &Conn{db: db, path: path, mode: ReadWrite, release: release}, nil
}

// sqliteURI builds the file: URI for path. The path is made absolute and
// percent-escaped so '#', '?' and '%' in file or directory names reach SQLite
// as part of the path rather than as fragment, query or escape.
func sqliteURI(path string, params url.Values) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve database path: %w", err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: params.Encode()}
	return u.String(), nil
}

// probeWriteLock takes and drops the engine's write lock.
func probeWriteLock(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	return tx.Rollback()
}

// Conn is one open connection to a database file.
// It is owned by whoever obtained it and must be closed exactly once.
type Conn struct {
	db      *sql.DB
	path    string
	mode    Mode
	release func()

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps an existing handle. It holds no writer token; Close only
// closes db.
func NewConn(db *sql.DB, path string, mode Mode) *Conn {
	return &Conn{db: db, path: path, mode: mode}
}

// DB returns the underlying handle.
func (c *Conn) DB() *sql.DB {
	return c.db
}

// Path returns the database file path.
func (c *Conn) Path() string {
	return c.path
}

// BeginTx starts a transaction. On read-write connections it takes the
// engine write lock immediately.
func (c *Conn) BeginTx(ctx context.Context) (*sql.Tx, error) {
	if c.mode != ReadWrite {
		return nil, fmt.Errorf("begin transaction: connection to %s is %s", c.path, c.mode)
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, nil
}

// TableExists reports whether name is a table in this database.
func (c *Conn) TableExists(ctx context.Context, name string) (bool, error) {
	return TableExists(ctx, c.db, name)
}

// Close closes the connection and releases the writer token.
// Calling Close more than once returns the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		if c.db != nil {
			if err := c.db.Close(); err != nil {
				c.closeErr = fmt.Errorf("close database: %w", err)
			}
		}
		if c.release != nil {
			c.release()
		}
	})
	return c.closeErr
}
