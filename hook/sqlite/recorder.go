// This package contains a [Recorder] that persists retry attempts into SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/teenjuna/stamina/hook"
)

var (
	// ErrClosed is returned by Recorder methods when the recorder has been closed.
	ErrClosed = errors.New("recorder is closed")
)

const (
	memory = ":memory:"
)

// Recorder records every retry attempt it's notified about into a SQLite database.
//
// The database is opened when the declaration returned by [Recorder.Declaration] is resolved for
// the first time, so creating a Recorder never fails.
type Recorder struct {
	cfg *Config

	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// New creates a new Recorder with the provided configuration functions.
//
// Default configuration:
//   - URI: ":memory:" (in-memory database)
//   - Conns: 4
func New(configFuncs ...ConfigFunc) *Recorder {
	cfg := &Config{}
	cfg.URI(memory)
	cfg.Conns(4)
	for _, cf := range configFuncs {
		if cf != nil {
			cf(cfg)
		}
	}

	return &Recorder{cfg: cfg}
}

// Declaration returns a declaration of the recording hook.
//
// Resolution opens the database if it wasn't opened yet and returns [ErrClosed] if the recorder
// has been closed.
func (r *Recorder) Declaration() hook.Declaration {
	return hook.Lazy(r.init)
}

func (r *Recorder) init() (hook.Hook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	if r.db == nil {
		db, err := open(r.cfg)
		if err != nil {
			return nil, fmt.Errorf("open: %w", err)
		}
		if err := setup(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
		r.db = db
	}

	db := r.db
	return func(ctx context.Context, d hook.Details) {
		if err := record(ctx, db, d); err != nil {
			r.logger().WarnContext(ctx, "record retry attempt",
				slog.String("callable", d.Name),
				slog.Int("retry_num", d.RetryNum),
				slog.Any("error", err),
			)
		}
	}, nil
}

// Attempts returns all recorded attempts, oldest first.
//
// Returns an empty slice if the database wasn't opened yet.
// Returns [ErrClosed] if the recorder has been closed.
func (r *Recorder) Attempts(ctx context.Context) ([]Attempt, error) {
	db, err := r.conn()
	if err != nil {
		return nil, err
	}
	if db == nil {
		return []Attempt{}, nil
	}

	rows, err := db.QueryContext(
		ctx,
		`
		select
			id,
			callable,
			args,
			retry_num,
			wait_for,
			waited_so_far,
			caused_by,
			error_type,
			recorded_at
		from attempt
		order by
			recorded_at asc,
			rowid asc
		`,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	type rawAttempt struct {
		ID          string
		Callable    string
		Args        string
		RetryNum    int
		WaitFor     int64
		WaitedSoFar int64
		CausedBy    string
		ErrorType   string
		RecordedAt  int64
	}

	attempts := make([]Attempt, 0)

	for rows.Next() {
		var a rawAttempt
		if err := rows.Scan(
			&a.ID,
			&a.Callable,
			&a.Args,
			&a.RetryNum,
			&a.WaitFor,
			&a.WaitedSoFar,
			&a.CausedBy,
			&a.ErrorType,
			&a.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		attempts = append(attempts, Attempt{
			ID:          a.ID,
			Callable:    a.Callable,
			Args:        a.Args,
			RetryNum:    a.RetryNum,
			WaitFor:     time.Duration(a.WaitFor),
			WaitedSoFar: time.Duration(a.WaitedSoFar),
			CausedBy:    a.CausedBy,
			ErrorType:   a.ErrorType,
			RecordedAt:  fromTimestamp(a.RecordedAt),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	return attempts, nil
}

// Stats returns statistics about the recorded attempts.
//
// Returns zero stats if the database wasn't opened yet.
// Returns [ErrClosed] if the recorder has been closed.
func (r *Recorder) Stats(ctx context.Context) (*Stats, error) {
	db, err := r.conn()
	if err != nil {
		return nil, err
	}
	if db == nil {
		return &Stats{}, nil
	}

	var (
		attempts      int
		callables     int
		lastAttemptAt int64
	)
	err = db.QueryRowContext(
		ctx,
		`
		select
			coalesce(count(*), 0) as attempts,
			coalesce(count(distinct callable), 0) as callables,
			coalesce(max(recorded_at), 0) as last_attempt_at
		from
			attempt
		`,
	).Scan(
		&attempts,
		&callables,
		&lastAttemptAt,
	)
	if err != nil {
		return nil, err
	}

	stats := Stats{
		Attempts:  attempts,
		Callables: callables,
	}
	if lastAttemptAt != 0 {
		stats.LastAttemptAt = fromTimestamp(lastAttemptAt)
	}

	return &stats, nil
}

// Close closes the underlying SQLite database.
//
// After closing, declarations of the recorder fail to resolve and already resolved hooks only log
// their failures.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	r.closed = true

	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Recorder) conn() (*sql.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	return r.db, nil
}

func (r *Recorder) logger() *slog.Logger {
	if r.cfg.logger != nil {
		return r.cfg.logger
	}
	return slog.Default()
}

// Attempt represents a recorded retry attempt.
type Attempt struct {
	// ID is the unique identifier of this attempt.
	ID string
	// Callable is the name of the retried callable.
	Callable string
	// Args is the JSON encoded arguments of the callable, or empty if there were none.
	Args string
	// RetryNum is the number of the retry.
	RetryNum int
	// WaitFor is the backoff before the retry.
	WaitFor time.Duration
	// WaitedSoFar is the total backoff before this one.
	WaitedSoFar time.Duration
	// CausedBy is the message of the error that caused the retry.
	CausedBy string
	// ErrorType is the Go type of the error that caused the retry.
	ErrorType string
	// RecordedAt is the time when the attempt was recorded.
	RecordedAt time.Time
}

// Stats represents statistics about the recorded attempts.
type Stats struct {
	// Attempts is the total number of recorded attempts.
	Attempts int
	// Callables is the number of distinct retried callables.
	Callables int
	// LastAttemptAt is the time of the latest recorded attempt.
	LastAttemptAt time.Time
}

func record(ctx context.Context, db *sql.DB, d hook.Details) error {
	var causedBy, errorType string
	if d.CausedBy != nil {
		causedBy = d.CausedBy.Error()
		errorType = fmt.Sprintf("%T", d.CausedBy)
	}

	_, err := db.ExecContext(
		ctx,
		`
		insert into attempt (
			id,
			callable,
			args,
			retry_num,
			wait_for,
			waited_so_far,
			caused_by,
			error_type,
			recorded_at
		) values (
			:id,
			:callable,
			:args,
			:retry_num,
			:wait_for,
			:waited_so_far,
			:caused_by,
			:error_type,
			:recorded_at
		)
		`,
		sql.Named("id", uuid.NewString()),
		sql.Named("callable", d.Name),
		sql.Named("args", jsonArgs(d.Args)),
		sql.Named("retry_num", d.RetryNum),
		sql.Named("wait_for", int64(d.WaitFor)),
		sql.Named("waited_so_far", int64(d.WaitedSoFar)),
		sql.Named("caused_by", causedBy),
		sql.Named("error_type", errorType),
		sql.Named("recorded_at", toTimestamp(time.Now())),
	)
	if err != nil && err.Error() == "sql: database is closed" {
		return ErrClosed
	}
	return err
}

func open(cfg *Config) (*sql.DB, error) {
	path, query, _ := strings.Cut(cfg.uri, "?")
	custom, _ := url.ParseQuery(query)

	params := url.Values{}
	params.Add("_timeout", "5000") // 5s
	inMemory := path == memory
	if inMemory {
		path = "file:" + uuid.NewString()
		params.Add("mode", "memory")
		params.Add("cache", "shared")
	} else {
		params.Add("_journal", "wal")
		params.Add("_sync", "normal")
	}
	for k, v := range custom {
		if len(v) != 0 {
			params.Set(k, v[0])
		}
	}

	db, err := sql.Open("sqlite3", path+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	db.SetConnMaxIdleTime(0)
	db.SetConnMaxLifetime(0)
	if inMemory {
		// The shared in-memory database lives as long as its last connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(cfg.conns)
		db.SetMaxIdleConns(cfg.conns)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func setup(db *sql.DB) error {
	// Create table for attempts.
	if _, err := db.Exec(
		`
		create table if not exists attempt (
			id            text primary key,
			callable      text not null,
			args          text not null,
			retry_num     int not null,
			wait_for      int not null,
			waited_so_far int not null,
			caused_by     text not null,
			error_type    text not null,
			recorded_at   int not null
		) strict
		`,
	); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	// Create the index for the listing logic.
	if _, err := db.Exec(
		`
		create index if not exists idx_attempt_recorded_at
		on attempt (recorded_at)
		`,
	); err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	return nil
}

func jsonArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprint(args)
	}
	return string(data)
}

func toTimestamp(time time.Time) int64 {
	return time.UnixNano()
}

func fromTimestamp(timestamp int64) time.Time {
	return time.Unix(0, timestamp)
}
