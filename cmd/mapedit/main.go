// Command mapedit edits map.json in place: add nodes, link them, and
// normalise links and territory colours. Every write is validated against
// the map schema before it reaches disk.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"territory.ai/internal/sim/catalogs"
)

const usage = `usage: mapedit [-map PATH] [-out PATH] <command> [args]

commands:
  show                       list nodes
  normalize                  make links symmetric and drop dangling ones
  colors                     reassign territory colours clockwise from north
  add <type> <x> <y>         add a node (type: one of the map node types)
  link <a> <b>               connect two nodes
  set <id> <name> <score>    rename a node and set its score
  move <id> <x> <y>          reposition a node`

func main() {
	fs := flag.NewFlagSet("mapedit", flag.ExitOnError)
	mapPath := fs.String("map", "./configs/map.json", "path to map.json")
	outPath := fs.String("out", "", "output path (default: overwrite -map)")
	_ = fs.Parse(os.Args[1:])

	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	cat, err := catalogs.LoadMap(*mapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load map:", err)
		os.Exit(1)
	}

	ed := catalogs.EditCatalog(cat)
	msg, err := apply(ed, cat, fs.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if msg == "" {
		return
	}

	next, err := ed.Catalog()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid map:", err)
		os.Exit(1)
	}
	out := strings.TrimSpace(*outPath)
	if out == "" {
		out = *mapPath
	}
	if err := catalogs.WriteMap(out, next); err != nil {
		fmt.Fprintln(os.Stderr, "write map:", err)
		os.Exit(1)
	}
	fmt.Printf("%s; wrote %s (%d nodes, digest %s)\n", msg, out, len(next.Order), next.Digest[:12])
}

// apply runs one editor command. An empty message means nothing changed.
func apply(ed *catalogs.Editor, cat *catalogs.MapCatalog, args []string) (string, error) {
	switch args[0] {
	case "show":
		for _, id := range cat.Order {
			d, _ := cat.Node(id)
			fmt.Printf("%-8s %-10s %-6s (%d,%d) score=%d color=%s links=%s\n",
				id, d.Name, d.Type, d.X, d.Y, d.Score, d.AssignedColor, strings.Join(d.Links, ","))
		}
		return "", nil
	case "normalize":
		ed.NormalizeLinks()
		return "links normalized", nil
	case "colors":
		ed.AssignTerritoryColors()
		return "territory colors assigned", nil
	case "add":
		if len(args) != 4 {
			return "", fmt.Errorf("usage: add <type> <x> <y>")
		}
		x, y, err := parseXY(args[2], args[3])
		if err != nil {
			return "", err
		}
		id, err := ed.AddNode(args[1], x, y)
		if err != nil {
			return "", err
		}
		return "added " + id, nil
	case "link":
		if len(args) != 3 {
			return "", fmt.Errorf("usage: link <a> <b>")
		}
		if err := ed.AddLink(args[1], args[2]); err != nil {
			return "", err
		}
		return fmt.Sprintf("linked %s <-> %s", args[1], args[2]), nil
	case "set":
		if len(args) != 4 {
			return "", fmt.Errorf("usage: set <id> <name> <score>")
		}
		score, err := strconv.Atoi(args[3])
		if err != nil {
			return "", fmt.Errorf("score: %w", err)
		}
		if err := ed.SetNode(args[1], args[2], score); err != nil {
			return "", err
		}
		return "updated " + args[1], nil
	case "move":
		if len(args) != 4 {
			return "", fmt.Errorf("usage: move <id> <x> <y>")
		}
		x, y, err := parseXY(args[2], args[3])
		if err != nil {
			return "", err
		}
		if err := ed.MoveNode(args[1], x, y); err != nil {
			return "", err
		}
		return "moved " + args[1], nil
	}
	return "", fmt.Errorf("unknown command %q\n%s", args[0], usage)
}

func parseXY(xs, ys string) (int, int, error) {
	x, err := strconv.Atoi(xs)
	if err != nil {
		return 0, 0, fmt.Errorf("x: %w", err)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return 0, 0, fmt.Errorf("y: %w", err)
	}
	return x, y, nil
}
