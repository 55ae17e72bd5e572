package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	persistlog "territory.ai/internal/persistence/log"
	"territory.ai/internal/persistence/snapshot"
	"territory.ai/internal/sim/catalogs"
	"territory.ai/internal/sim/game"
	"territory.ai/internal/sim/tuning"
)

func main() {
	var (
		dataDir    = flag.String("data", "./data", "runtime data directory")
		sessionID  = flag.String("session", "", "session id to rebuild (required)")
		snapPath   = flag.String("snapshot", "", "start from this snapshot (default: latest for the session, or a fresh board)")
		fresh      = flag.Bool("fresh", false, "ignore snapshots and replay from an empty board")
		mapPath    = flag.String("map", "./configs/map.json", "path to map.json")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		toSeq      = flag.Uint64("to_seq", 0, "stop after this sequence number (optional)")
	)
	flag.Parse()

	if strings.TrimSpace(*sessionID) == "" {
		fmt.Fprintln(os.Stderr, "missing -session")
		os.Exit(2)
	}

	cat, err := catalogs.LoadMap(*mapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load map:", err)
		os.Exit(1)
	}
	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}
	in := game.New(*sessionID, cat, game.Config{Bands: tune.Threat.Bands(), BattleSlots: tune.BattleSlots})

	start := strings.TrimSpace(*snapPath)
	if start == "" && !*fresh {
		start = snapshot.Latest(filepath.Join(*dataDir, "sessions", *sessionID, "snapshots"))
	}
	if start != "" {
		snap, err := snapshot.ReadSnapshot(start)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		if err := in.ImportSnapshot(snap); err != nil {
			fmt.Fprintln(os.Stderr, "import snapshot:", err)
			os.Exit(1)
		}
		fmt.Printf("snapshot v%d session=%s seq=%d nodes=%d teams=%d\n",
			snap.Header.Version, snap.Header.SessionID, snap.Header.Seq, len(snap.Nodes), len(snap.Teams))
	}

	files, err := persistlog.CommandFiles(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list command logs:", err)
		os.Exit(1)
	}

	var applied, skipped int
	stop := errors.New("stop")
	for _, f := range files {
		err := persistlog.ReadCommands(f, func(e game.CommandEntry) error {
			if e.SessionID != *sessionID || e.Seq <= in.Seq() && e.Code == "" {
				return nil
			}
			if *toSeq != 0 && e.Seq > *toSeq {
				return stop
			}
			ok, err := in.Replay(e)
			if err != nil {
				return err
			}
			if ok {
				applied++
			} else {
				skipped++
			}
			return nil
		})
		if errors.Is(err, stop) {
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "replay %s: %v\n", filepath.Base(f), err)
			os.Exit(1)
		}
	}

	fmt.Printf("replayed=%d rejected_skipped=%d final_seq=%d\n\n", applied, skipped, in.Seq())
	fmt.Print(in.View().StatusTable())
}
