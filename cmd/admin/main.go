package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"territory.ai/internal/persistence/snapshot"
	"territory.ai/internal/sim/catalogs"
	"territory.ai/internal/sim/game"
	"territory.ai/internal/sim/tuning"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "reset":
			resetCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints sessions that have snapshots on disk, newest file first.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "sessions")
	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	type row struct {
		id   string
		path string
		mod  int64
	}
	var rows []row
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p := snapshot.Latest(filepath.Join(base, e.Name(), "snapshots"))
		r := row{id: e.Name(), path: p}
		if p != "" {
			if st, err := os.Stat(p); err == nil {
				r.mod = st.ModTime().UnixNano()
			}
		}
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].mod > rows[j].mod })
	for _, r := range rows {
		if r.path == "" {
			fmt.Printf("%s\t(no snapshots)\n", r.id)
			continue
		}
		st, _ := os.Stat(r.path)
		size := uint64(0)
		if st != nil {
			size = uint64(st.Size())
		}
		fmt.Printf("%s\t%s\t%s\n", r.id, filepath.Base(r.path), humanize.Bytes(size))
	}
}

// inspectCmd loads a snapshot into a scratch instance and prints its status table.
func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	sessionID := fs.String("session", "", "session id (uses its latest snapshot)")
	snapPath := fs.String("snapshot", "", "snapshot path (overrides -session)")
	mapPath := fs.String("map", "./configs/map.json", "path to map.json")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		if strings.TrimSpace(*sessionID) == "" {
			fmt.Fprintln(os.Stderr, "missing -session or -snapshot")
			os.Exit(2)
		}
		path = snapshot.Latest(filepath.Join(*dataDir, "sessions", *sessionID, "snapshots"))
		if path == "" {
			fmt.Fprintln(os.Stderr, "no snapshot found for session", *sessionID)
			os.Exit(2)
		}
	}

	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	cat, err := catalogs.LoadMap(*mapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load map:", err)
		os.Exit(1)
	}
	tune := tuning.Defaults()
	in := game.New(snap.Header.SessionID, cat, game.Config{Bands: tune.Threat.Bands(), BattleSlots: tune.BattleSlots})
	if err := in.ImportSnapshot(snap); err != nil {
		fmt.Fprintln(os.Stderr, "import snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("snapshot=%s session=%s seq=%d map=%s\n\n",
		filepath.Base(path), snap.Header.SessionID, snap.Header.Seq, short(snap.Header.MapDigest))
	fmt.Print(in.View().StatusTable())
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
