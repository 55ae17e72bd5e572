package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"territory.ai/internal/persistence/snapshot"
	"territory.ai/internal/sim/catalogs"
	"territory.ai/internal/sim/game"
	"territory.ai/internal/sim/tuning"
)

const help = `commands:
  assign <node> <team>                          occupy a node
  team <name> <activity> [b1,b2,...] [territory] register or update a team
  teams                                         list the registry
  status                                        print the status table
  save [path]                                   write a snapshot
  reset                                         clear the board and the registry
  help | quit`

func main() {
	var (
		configDir  = flag.String("configs", "./configs", "config directory")
		mapPath    = flag.String("map", "", "path to map.json (default: <configs>/map.json)")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		snapPath   = flag.String("snapshot", "", "start from this snapshot (optional)")
		dataDir    = flag.String("data", "./data", "where save writes snapshots by default")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[sim] ", log.LstdFlags)

	mp := strings.TrimSpace(*mapPath)
	if mp == "" {
		mp = filepath.Join(*configDir, "map.json")
	}
	cat, err := catalogs.LoadMap(mp)
	if err != nil {
		logger.Fatalf("load map: %v", err)
	}
	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		tune = tuning.Defaults()
	}

	in := game.New(uuid.NewString(), cat, game.Config{Bands: tune.Threat.Bands(), BattleSlots: tune.BattleSlots})
	if p := strings.TrimSpace(*snapPath); p != "" {
		snap, err := snapshot.ReadSnapshot(p)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if err := in.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("loaded %s seq=%d", filepath.Base(p), in.Seq())
	}

	sh := &shell{in: in, out: os.Stdout, snapDir: filepath.Join(*dataDir, "sim", "snapshots")}
	fmt.Fprint(sh.out, in.View().StatusTable())
	sh.run(os.Stdin)
}

type shell struct {
	in      *game.Instance
	out     io.Writer
	snapDir string
}

func (s *shell) run(r io.Reader) {
	sc := bufio.NewScanner(r)
	for {
		fmt.Fprint(s.out, "> ")
		if !sc.Scan() {
			return
		}
		if !s.exec(sc.Text()) {
			return
		}
	}
}

// exec runs one command line and reports whether the shell should continue.
func (s *shell) exec(line string) bool {
	args := strings.Fields(line)
	if len(args) == 0 {
		return true
	}
	switch args[0] {
	case "quit", "exit":
		return false
	case "help", "?":
		fmt.Fprintln(s.out, help)
	case "status":
		fmt.Fprint(s.out, s.in.View().StatusTable())
	case "assign":
		if len(args) < 3 {
			fmt.Fprintln(s.out, "usage: assign <node> <team>")
			return true
		}
		if err := s.in.AssignTeam(args[1], args[2]); err != nil {
			fmt.Fprintf(s.out, "error [%s]: %v\n", game.ErrorCode(err), err)
			return true
		}
		fmt.Fprint(s.out, s.in.View().StatusTable())
	case "team":
		if len(args) < 3 {
			fmt.Fprintln(s.out, "usage: team <name> <activity> [b1,b2,...] [territory]")
			return true
		}
		var battle []float64
		if len(args) > 3 && args[3] != "-" {
			for _, f := range strings.Split(args[3], ",") {
				v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
				if err != nil {
					fmt.Fprintf(s.out, "error: battle value %q: %v\n", f, err)
					return true
				}
				battle = append(battle, v)
			}
		}
		territory := ""
		if len(args) > 4 {
			territory = args[4]
		}
		if err := s.in.RegisterOrUpdateTeam(args[1], args[2], battle, territory); err != nil {
			fmt.Fprintf(s.out, "error [%s]: %v\n", game.ErrorCode(err), err)
			return true
		}
		fmt.Fprintf(s.out, "%s registered\n", args[1])
	case "teams":
		v := s.in.View()
		for _, t := range v.Teams {
			fmt.Fprintf(s.out, "%-10s raw=%-12s total=%-14.0f battle=%v territory=%s threat=%s\n",
				t.Name, t.RawActivity, t.ActivityTotal, t.BattleValues, t.Territory, v.Threat[t.Name])
		}
	case "save":
		snap := s.in.ExportSnapshot()
		path := snapshot.PathFor(s.snapDir, snap.Header.Seq)
		if len(args) > 1 {
			path = args[1]
		}
		if err := snapshot.WriteSnapshot(path, snap); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
			return true
		}
		fmt.Fprintf(s.out, "saved %s\n", path)
	case "reset":
		s.in.Reset()
		fmt.Fprint(s.out, s.in.View().StatusTable())
	default:
		fmt.Fprintf(s.out, "unknown command %q (try help)\n", args[0])
	}
	return true
}
