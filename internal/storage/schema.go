package storage

import "time"

// SessionRecord represents a row in the sessions table: one engine
// process lifetime.
type SessionRecord struct {
	SessionID    string    `db:"session_id"`
	EngineName   string    `db:"engine_name"`
	EnginePath   string    `db:"engine_path"`
	StartTimeUTC time.Time `db:"start_time_utc"`
	EndReason    string    `db:"end_reason"`
}

// SearchRecord represents a row in the searches table: one concluded
// search with the last evaluation the engine reported for it.
type SearchRecord struct {
	SearchID    int64     `db:"search_id"`
	SessionID   string    `db:"session_id"`
	FEN         string    `db:"fen"`
	Moves       string    `db:"moves"` // space-joined move list
	Params      string    `db:"params"`
	BestMove    string    `db:"best_move"`
	Ponder      string    `db:"ponder"`
	Score       int       `db:"score"`
	Mate        int       `db:"mate"`
	Depth       int       `db:"depth"`
	DoneTimeUTC time.Time `db:"done_time_utc"`
}

// Schema defines the SQLite database structure
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	engine_name TEXT NOT NULL,
	engine_path TEXT NOT NULL,
	start_time_utc DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	end_reason TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS searches (
	search_id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	fen TEXT NOT NULL,
	moves TEXT NOT NULL DEFAULT '',
	params TEXT NOT NULL DEFAULT '',
	best_move TEXT NOT NULL DEFAULT '',
	ponder TEXT NOT NULL DEFAULT '',
	score INTEGER NOT NULL DEFAULT 0,
	mate INTEGER NOT NULL DEFAULT 0,
	depth INTEGER NOT NULL DEFAULT 0,
	done_time_utc DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_searches_session_id ON searches(session_id);
CREATE INDEX IF NOT EXISTS idx_sessions_engine_name ON sessions(engine_name);
`
