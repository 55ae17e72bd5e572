package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"territory.ai/internal/persistence/snapshot"
	"territory.ai/internal/sim/catalogs"
	"territory.ai/internal/sim/game"
	"territory.ai/internal/sim/tuning"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropCommand  atomic.Uint64
	dropSnapshot atomic.Uint64
}

type reqKind int

const (
	reqCommand reqKind = iota + 1
	reqSnapshot
)

type req struct {
	kind reqKind

	command  game.CommandEntry
	snapshot snapshotRow
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
		ch: make(chan req, 16384),
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
		"PRAGMA foreign_keys=ON;",
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
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS commands (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			at TEXT NOT NULL,
			kind TEXT NOT NULL,
			node_id TEXT,
			team TEXT,
			code TEXT,
			error TEXT,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_commands_session_seq ON commands(session_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_commands_team ON commands(team);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			path TEXT NOT NULL,
			map_digest TEXT NOT NULL,
			nodes INTEGER NOT NULL,
			occupied INTEGER NOT NULL,
			teams INTEGER NOT NULL,
			PRIMARY KEY (session_id, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS team_scores (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			team TEXT NOT NULL,
			score INTEGER NOT NULL,
			PRIMARY KEY (session_id, seq, team)
		);`,
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
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) RecordCommand(entry game.CommandEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqCommand, command: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropCommand.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: summarize(path, snap)}:
	default:
		s.dropSnapshot.Add(1)
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropCommandTotal:  s.dropCommand.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

func (s *SQLiteIndex) UpsertCatalog(cat *catalogs.MapCatalog, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range catalogRows(cat, tune) {
		if r.name == "" || r.digest == "" || len(r.data) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.data), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CatalogDigest returns the stored digest for a catalog row, or "".
func (s *SQLiteIndex) CatalogDigest(ctx context.Context, name string) (string, error) {
	var d string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM catalogs WHERE name=?`, name).Scan(&d)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return d, err
}

// RecentCommands returns up to limit commands for a session, newest first.
// An empty sessionID matches every session.
func (s *SQLiteIndex) RecentCommands(ctx context.Context, sessionID string, limit int) ([]game.CommandEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT raw_json FROM commands ORDER BY id DESC LIMIT ?`
	args := []any{limit}
	if sessionID != "" {
		q = `SELECT raw_json FROM commands WHERE session_id=? ORDER BY id DESC LIMIT ?`
		args = []any{sessionID, limit}
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []game.CommandEntry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var e game.CommandEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ScoreHistory returns a team's score at each indexed snapshot of a session,
// oldest first.
func (s *SQLiteIndex) ScoreHistory(ctx context.Context, sessionID, team string) ([]ScorePoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, score FROM team_scores WHERE session_id=? AND team=? ORDER BY seq ASC`,
		sessionID, team)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ScorePoint
	for rows.Next() {
		var p ScorePoint
		var seq int64
		if err := rows.Scan(&seq, &p.Score); err != nil {
			return nil, err
		}
		p.Seq = uint64(seq)
		out = append(out, p)
	}
	return out, rows.Err()
}

type ScorePoint struct {
	Seq   uint64 `json:"seq"`
	Score int    `json:"score"`
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertCommand, _ := s.db.Prepare(`INSERT INTO commands(session_id,seq,at,kind,node_id,team,code,error,raw_json) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(session_id,seq,path,map_digest,nodes,occupied,teams) VALUES(?,?,?,?,?,?,?)`)
	insertScore, _ := s.db.Prepare(`INSERT OR REPLACE INTO team_scores(session_id,seq,team,score) VALUES(?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertCommand, insertSnapshot, insertScore} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
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
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqCommand:
			c := r.command
			raw, _ := json.Marshal(c)
			if insertCommand != nil {
				if _, err := tx.Stmt(insertCommand).Exec(
					c.SessionID,
					int64(c.Seq),
					c.At.UTC().Format(time.RFC3339Nano),
					c.Kind,
					c.NodeID,
					c.Team,
					c.Code,
					c.Error,
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(
					sn.SessionID,
					int64(sn.Seq),
					sn.Path,
					sn.MapDigest,
					sn.Nodes,
					sn.Occupied,
					sn.Teams,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			teamsSorted := make([]string, 0, len(sn.Scores))
			for team := range sn.Scores {
				teamsSorted = append(teamsSorted, team)
			}
			sort.Strings(teamsSorted)
			for _, team := range teamsSorted {
				if insertScore == nil {
					break
				}
				if _, err := tx.Stmt(insertScore).Exec(sn.SessionID, int64(sn.Seq), team, sn.Scores[team]); err != nil {
					rollback()
					break
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
