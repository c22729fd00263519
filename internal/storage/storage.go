// Package storage persists engine sessions and concluded searches to
// SQLite. Writes are asynchronous: analysis must never wait on disk.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// Store handles SQLite database operations with async writes
type Store struct {
	db           *sql.DB
	path         string
	writeChan    chan func(*sql.Tx) error
	healthStatus atomic.Bool
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewStore creates a new storage instance with async writer
func NewStore(dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	ctx, cancel := context.WithCancel(context.Background())

	s := &Store{
		db:        db,
		path:      dataSourceName,
		writeChan: make(chan func(*sql.Tx) error, 1000), // Buffered for async writes
		ctx:       ctx,
		cancel:    cancel,
	}

	s.healthStatus.Store(true)

	s.wg.Add(1)
	go s.writerLoop()

	return s, nil
}

// writerLoop processes async write operations
func (s *Store) writerLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			// Drain remaining writes with timeout
			deadline := time.After(2 * time.Second)
			for {
				select {
				case fn := <-s.writeChan:
					if s.healthStatus.Load() {
						s.executeWrite(fn)
					}
				case <-deadline:
					return
				default:
					return
				}
			}

		case fn := <-s.writeChan:
			// Skip if already degraded
			if !s.healthStatus.Load() {
				continue
			}
			s.executeWrite(fn)
		}
	}
}

// executeWrite runs a transactional write operation
func (s *Store) executeWrite(fn func(*sql.Tx) error) {
	tx, err := s.db.Begin()
	if err != nil {
		logrus.WithError(err).Warn("storage degraded: failed to begin transaction")
		s.healthStatus.Store(false)
		return
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		logrus.WithError(err).Warn("storage degraded: write operation failed")
		s.healthStatus.Store(false)
		return
	}

	if err := tx.Commit(); err != nil {
		logrus.WithError(err).Warn("storage degraded: failed to commit")
		s.healthStatus.Store(false)
		return
	}
}

// enqueue submits a write, dropping it when the queue is full or the
// store is degraded. Persistence is best effort by design.
func (s *Store) enqueue(fn func(*sql.Tx) error) {
	if !s.healthStatus.Load() {
		return
	}
	select {
	case s.writeChan <- fn:
	default:
		logrus.Warn("storage write queue full, dropping record")
	}
}

// RecordSession asynchronously records a new engine session
func (s *Store) RecordSession(record SessionRecord) {
	s.enqueue(func(tx *sql.Tx) error {
		query := `INSERT INTO sessions (
			session_id, engine_name, engine_path, start_time_utc
		) VALUES (?, ?, ?, ?)`

		_, err := tx.Exec(query,
			record.SessionID, record.EngineName, record.EnginePath, record.StartTimeUTC,
		)
		return err
	})
}

// RecordSessionEnd asynchronously marks a session ended with its reason
func (s *Store) RecordSessionEnd(sessionID, reason string) {
	s.enqueue(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE sessions SET end_reason = ? WHERE session_id = ?`,
			reason, sessionID)
		return err
	})
}

// RecordSearch asynchronously records a concluded search
func (s *Store) RecordSearch(record SearchRecord) {
	s.enqueue(func(tx *sql.Tx) error {
		query := `INSERT INTO searches (
			session_id, fen, moves, params,
			best_move, ponder, score, mate, depth, done_time_utc
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

		_, err := tx.Exec(query,
			record.SessionID, record.FEN, record.Moves, record.Params,
			record.BestMove, record.Ponder, record.Score, record.Mate,
			record.Depth, record.DoneTimeUTC,
		)
		return err
	})
}

// IsHealthy returns the current health status
func (s *Store) IsHealthy() bool {
	return s.healthStatus.Load()
}

// Close gracefully closes the database connection
func (s *Store) Close() error {
	// Signal writer to stop
	s.cancel()

	// Wait for writer with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// Writer finished cleanly
	case <-time.After(2 * time.Second):
		logrus.Warn("storage writer shutdown timeout, some writes may be lost")
	}

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InitDB creates the database schema
func (s *Store) InitDB() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return tx.Commit()
}

// DeleteDB removes the database file
func (s *Store) DeleteDB() error {
	if err := s.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete database file: %w", err)
	}

	return nil
}

// QuerySearches retrieves the recorded searches for a session, newest
// first. An empty sessionID returns all of them.
func (s *Store) QuerySearches(sessionID string) ([]SearchRecord, error) {
	query := `SELECT
		search_id, session_id, fen, moves, params,
		best_move, ponder, score, mate, depth, done_time_utc
	FROM searches WHERE 1=1`

	var args []interface{}
	if sessionID != "" && sessionID != "*" {
		query += " AND session_id = ?"
		args = append(args, sessionID)
	}
	query += " ORDER BY done_time_utc DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var searches []SearchRecord
	for rows.Next() {
		var r SearchRecord
		err := rows.Scan(
			&r.SearchID, &r.SessionID, &r.FEN, &r.Moves, &r.Params,
			&r.BestMove, &r.Ponder, &r.Score, &r.Mate, &r.Depth, &r.DoneTimeUTC,
		)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		searches = append(searches, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return searches, nil
}
