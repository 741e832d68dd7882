package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// RunRow is one finished simulation.
type RunRow struct {
	RunID      string `json:"run_id"`
	Source     string `json:"source"`
	Speed      int    `json:"speed"`
	Width      int    `json:"width"`
	Left       int    `json:"left"`
	Right      int    `json:"right"`
	Ticks      uint64 `json:"ticks"`
	ElapsedUS  int64  `json:"elapsed_us"`
	Digest     string `json:"digest"`
	FramesPath string `json:"frames_path,omitempty"`
	RecordedAt string `json:"recorded_at"`
}

// SQLiteIndex is a write-behind index of run summaries. Writes are queued
// and applied by a single goroutine in batched transactions.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan RunRow
	wg   sync.WaitGroup
	once sync.Once

	mu      sync.RWMutex // guards ch against send-after-close
	closed  bool
	dropped atomic.Uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
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
		ch: make(chan RunRow, 4096),
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
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			speed INTEGER NOT NULL,
			width INTEGER NOT NULL,
			left_count INTEGER NOT NULL,
			right_count INTEGER NOT NULL,
			ticks INTEGER NOT NULL,
			elapsed_us INTEGER NOT NULL,
			digest TEXT NOT NULL,
			frames_path TEXT,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_recorded_at ON runs(recorded_at);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_width ON runs(width);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
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
		err = s.db.Close()
	})
	return err
}

// RecordRun queues a row. It never blocks the caller; rows are dropped if
// the writer falls behind. Rows recorded after Close are ignored.
func (s *SQLiteIndex) RecordRun(r RunRow) {
	if s == nil {
		return
	}
	if r.RecordedAt == "" {
		r.RecordedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- r:
	default:
		s.dropped.Add(1)
	}
}

// Dropped is the number of rows discarded because the queue was full.
func (s *SQLiteIndex) Dropped() uint64 { return s.dropped.Load() }

// Recent returns up to limit runs, newest first.
func (s *SQLiteIndex) Recent(ctx context.Context, limit int) ([]RunRow, error) {
	return QueryRecent(ctx, s.db, limit)
}

// QueryRecent reads runs from an already open database.
func QueryRecent(ctx context.Context, db *sql.DB, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `SELECT run_id,source,speed,width,left_count,right_count,ticks,elapsed_us,digest,COALESCE(frames_path,''),recorded_at
		FROM runs ORDER BY recorded_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var (
			r     RunRow
			ticks int64
		)
		if err := rows.Scan(&r.RunID, &r.Source, &r.Speed, &r.Width, &r.Left, &r.Right, &ticks, &r.ElapsedUS, &r.Digest, &r.FramesPath, &r.RecordedAt); err != nil {
			return nil, err
		}
		r.Ticks = uint64(ticks)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,source,speed,width,left_count,right_count,ticks,elapsed_us,digest,frames_path,recorded_at) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertRun != nil {
			_ = insertRun.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil || insertRun == nil {
			continue
		}
		var frames any
		if r.FramesPath != "" {
			frames = r.FramesPath
		}
		if _, err := tx.Stmt(insertRun).Exec(
			r.RunID,
			r.Source,
			r.Speed,
			r.Width,
			r.Left,
			r.Right,
			int64(r.Ticks),
			r.ElapsedUS,
			r.Digest,
			frames,
			r.RecordedAt,
		); err != nil {
			rollback()
			continue
		}
		opCount++
		// Commit eagerly when the queue drains so short-lived CLIs and
		// readers see rows without waiting for a full batch.
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}

	commit()
}
