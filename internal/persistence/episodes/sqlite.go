package episodes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

var (
	ErrEmptyPath = errors.New("empty db path")
	ErrClosed    = errors.New("episode index closed")
)

// SQLiteIndex stores episode summaries. Writes are queued to a single writer
// goroutine that batches them into transactions; reads go straight to the db.
// The first write failure is kept and reported by Record, Flush and Close.
type SQLiteIndex struct {
	db *sql.DB

	// mu orders sends on ch against close(ch).
	mu     sync.RWMutex
	ch     chan req
	closed bool
	wg     sync.WaitGroup
	once   sync.Once

	dropped atomic.Uint64
	failed  atomic.Uint64

	errMu sync.Mutex
	err   error
}

type req struct {
	summary Summary
	// flush, when set, is closed once everything queued before it is committed.
	flush chan struct{}
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS episodes (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			episode INTEGER NOT NULL,
			steps INTEGER NOT NULL,
			duration REAL NOT NULL,
			reward REAL NOT NULL,
			outcome TEXT NOT NULL,
			branch TEXT NOT NULL,
			goal_distance REAL NOT NULL,
			finished_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_agent ON episodes(agent_id, episode);`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_run ON episodes(run_id);`,
	}
	for _, st := range stmts {
		if _, err := db.Exec(st); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()

		s.wg.Wait()
		err = errors.Join(s.Err(), s.db.Close())
	})
	return err
}

// Record queues a summary. It never blocks the caller: when the writer falls
// behind the summary is dropped and counted.
func (s *SQLiteIndex) Record(sum Summary) error {
	if s == nil {
		return nil
	}
	if err := s.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case s.ch <- req{summary: sum}:
	default:
		s.dropped.Add(1)
	}
	return nil
}

// Dropped counts summaries lost to a full queue.
func (s *SQLiteIndex) Dropped() uint64 { return s.dropped.Load() }

// Failed counts summaries the writer could not store.
func (s *SQLiteIndex) Failed() uint64 { return s.failed.Load() }

// Err returns the first write failure, if any.
func (s *SQLiteIndex) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *SQLiteIndex) fail(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}

// Flush waits until every summary queued so far is committed and reports the
// first write failure.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if err := s.enqueueFlush(ctx, done); err != nil {
		return err
	}
	select {
	case <-done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) enqueueFlush(ctx context.Context, done chan struct{}) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case s.ch <- req{flush: done}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Summaries returns the newest summaries first. An empty agentID matches all
// agents; a non-positive limit returns everything.
func (s *SQLiteIndex) Summaries(ctx context.Context, agentID string, limit int) ([]Summary, error) {
	q := `SELECT id,run_id,agent_id,episode,steps,duration,reward,outcome,branch,goal_distance,finished_at FROM episodes`
	var args []any
	if agentID != "" {
		q += ` WHERE agent_id=?`
		args = append(args, agentID)
	}
	q += ` ORDER BY rowid DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum      Summary
			episode  int64
			steps    int64
			finished string
		)
		if err := rows.Scan(&sum.ID, &sum.RunID, &sum.AgentID, &episode, &steps, &sum.Duration,
			&sum.Reward, &sum.Outcome, &sum.Branch, &sum.GoalDistance, &finished); err != nil {
			return nil, err
		}
		sum.Episode = uint64(episode)
		sum.Steps = uint64(steps)
		if sum.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("episode %s: finished_at: %w", sum.ID, err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Outcomes counts episodes per outcome.
func (s *SQLiteIndex) Outcomes(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM episodes GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		out[outcome] = n
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	insert, err := s.db.Prepare(`INSERT OR REPLACE INTO episodes(id,run_id,agent_id,episode,steps,duration,reward,outcome,branch,goal_distance,finished_at) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		s.fail(fmt.Errorf("prepare insert: %w", err))
	} else {
		defer insert.Close()
	}

	var (
		tx      *sql.Tx
		batch   uint64
		waiters []chan struct{}
	)
	abort := func(err error) {
		if tx != nil {
			_ = tx.Rollback()
			tx = nil
		}
		s.failed.Add(batch)
		batch = 0
		s.fail(err)
	}
	commit := func() {
		if tx != nil {
			err := tx.Commit()
			tx = nil
			if err != nil {
				abort(fmt.Errorf("commit: %w", err))
			}
			batch = 0
		}
		for _, w := range waiters {
			close(w)
		}
		waiters = waiters[:0]
	}

	for r := range s.ch {
		switch {
		case r.flush != nil:
			waiters = append(waiters, r.flush)
		case insert == nil:
			s.failed.Add(1)
		default:
			if tx == nil {
				if tx, err = s.db.Begin(); err != nil {
					tx = nil
					s.failed.Add(1)
					s.fail(fmt.Errorf("begin: %w", err))
					break
				}
			}
			sum := r.summary
			batch++
			if _, err := tx.Stmt(insert).Exec(
				sum.ID, sum.RunID, sum.AgentID,
				int64(sum.Episode), int64(sum.Steps),
				sum.Duration, sum.Reward, sum.Outcome, sum.Branch, sum.GoalDistance,
				sum.FinishedAt.UTC().Format(time.RFC3339Nano),
			); err != nil {
				abort(fmt.Errorf("insert episode %s: %w", sum.ID, err))
			}
		}
		// The single connection is held by tx until the queue drains.
		if len(s.ch) == 0 {
			commit()
		}
	}
	commit()
}
