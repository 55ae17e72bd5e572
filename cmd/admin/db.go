package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

type snapshotRow struct {
	SessionID string `db:"session_id" json:"session_id"`
	Seq       uint64 `db:"seq" json:"seq"`
	Path      string `db:"path" json:"path"`
	MapDigest string `db:"map_digest" json:"map_digest"`
	Nodes     int    `db:"nodes" json:"nodes"`
	Occupied  int    `db:"occupied" json:"occupied"`
	Teams     int    `db:"teams" json:"teams"`
}

type commandRow struct {
	SessionID string `db:"session_id" json:"session_id"`
	Seq       uint64 `db:"seq" json:"seq"`
	At        string `db:"at" json:"at"`
	Kind      string `db:"kind" json:"kind"`
	NodeID    string `db:"node_id" json:"node_id,omitempty"`
	Team      string `db:"team" json:"team,omitempty"`
	Code      string `db:"code" json:"code,omitempty"`
	Error     string `db:"error" json:"error,omitempty"`
}

type scoreRow struct {
	SessionID string `db:"session_id" json:"session_id"`
	Seq       uint64 `db:"seq" json:"seq"`
	Team      string `db:"team" json:"team"`
	Score     int64  `db:"score" json:"score"`
}

type catalogRow struct {
	Name      string `db:"name" json:"name"`
	Digest    string `db:"digest" json:"digest"`
	UpdatedAt string `db:"updated_at" json:"updated_at"`
}

type dbQuery struct {
	Session string
	Team    string
	Seq     uint64
	Limit   int
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/index/server.sqlite)")
	sessionID := fs.String("session", "", "session_id filter")
	team := fs.String("team", "", "team filter (commands, scores)")
	seq := fs.Uint64("seq", 0, "snapshot seq (scores; defaults to latest for the session)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "server.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fail("open", err)
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		fail("open", err)
	}
	defer db.Close()

	in := dbQuery{Session: strings.TrimSpace(*sessionID), Team: strings.TrimSpace(*team), Seq: *seq, Limit: *limit}
	if in.Limit <= 0 {
		in.Limit = 20
	}

	var rows any
	switch q {
	case "snapshots":
		rows, err = querySnapshots(db, in)
	case "commands":
		rows, err = queryCommands(db, in)
	case "scores":
		if in.Session == "" {
			fmt.Fprintln(os.Stderr, "missing -session")
			os.Exit(2)
		}
		rows, err = queryScores(db, in)
	case "catalogs":
		var out []catalogRow
		err = db.Select(&out, `SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
		rows = out
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data|-db PATH] [-session S] [-team T] [-seq N] snapshots|commands|scores|catalogs")
		os.Exit(2)
	}
	if err != nil {
		fail("query", err)
	}
	printRows(rows)
}

func querySnapshots(db *sqlx.DB, q dbQuery) ([]snapshotRow, error) {
	var out []snapshotRow
	if q.Session != "" {
		err := db.Select(&out, `SELECT session_id,seq,path,map_digest,nodes,occupied,teams FROM snapshots WHERE session_id=? ORDER BY seq DESC LIMIT ?`, q.Session, q.Limit)
		return out, err
	}
	err := db.Select(&out, `SELECT session_id,seq,path,map_digest,nodes,occupied,teams FROM snapshots ORDER BY rowid DESC LIMIT ?`, q.Limit)
	return out, err
}

func queryCommands(db *sqlx.DB, q dbQuery) ([]commandRow, error) {
	where, args := []string{}, []any{}
	if q.Session != "" {
		where = append(where, "session_id=?")
		args = append(args, q.Session)
	}
	if q.Team != "" {
		where = append(where, "team=?")
		args = append(args, q.Team)
	}
	query := `SELECT session_id,seq,at,kind,COALESCE(node_id,'') AS node_id,COALESCE(team,'') AS team,COALESCE(code,'') AS code,COALESCE(error,'') AS error FROM commands`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, q.Limit)

	var out []commandRow
	err := db.Select(&out, query, args...)
	return out, err
}

// queryScores returns one team's history across snapshots when Team is set,
// otherwise every team at Seq (the latest snapshot when Seq is zero).
func queryScores(db *sqlx.DB, q dbQuery) ([]scoreRow, error) {
	var out []scoreRow
	if q.Team != "" {
		err := db.Select(&out, `SELECT session_id,seq,team,score FROM team_scores WHERE session_id=? AND team=? ORDER BY seq`, q.Session, q.Team)
		return out, err
	}
	at := q.Seq
	if at == 0 {
		if err := db.Get(&at, `SELECT COALESCE(MAX(seq),0) FROM snapshots WHERE session_id=?`, q.Session); err != nil {
			return nil, err
		}
		if at == 0 {
			return nil, fmt.Errorf("no snapshots found for session %s", q.Session)
		}
	}
	err := db.Select(&out, `SELECT session_id,seq,team,score FROM team_scores WHERE session_id=? AND seq=? ORDER BY score DESC, team`, q.Session, at)
	return out, err
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}

// printRows writes one JSON object per line.
func printRows(rows any) {
	b, err := json.Marshal(rows)
	if err != nil {
		fail("encode", err)
	}
	var list []json.RawMessage
	if err := json.Unmarshal(b, &list); err != nil {
		fail("encode", err)
	}
	for _, r := range list {
		fmt.Println(string(r))
	}
}
