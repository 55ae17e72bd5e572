package catalogs

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Editor is a mutable draft of a map. Freeze it with Catalog once edits are done.
type Editor struct {
	bases    map[string]NodeDef
	counters map[string]int
}

func NewEditor() *Editor {
	return &Editor{bases: map[string]NodeDef{}, counters: map[string]int{}}
}

// EditCatalog starts a draft from an existing catalog. Per-type counters
// resume after the highest numbered id already present.
func EditCatalog(c *MapCatalog) *Editor {
	e := NewEditor()
	for _, id := range c.Order {
		d, _ := c.Node(id)
		e.bases[id] = d
		prefix := typePrefix(d.Type)
		if n, err := strconv.Atoi(strings.TrimPrefix(id, prefix)); err == nil && strings.HasPrefix(id, prefix) {
			if n > e.counters[d.Type] {
				e.counters[d.Type] = n
			}
		}
	}
	return e
}

func typePrefix(nodeType string) string {
	r := []rune(nodeType)
	if len(r) > 2 {
		r = r[:2]
	}
	return string(r)
}

func validType(nodeType string) bool {
	for _, t := range NodeTypes {
		if t == nodeType {
			return true
		}
	}
	return false
}

// AddNode places a new node and returns its generated id ("陣地" -> "陣地3").
func (e *Editor) AddNode(nodeType string, x, y int) (string, error) {
	if !validType(nodeType) {
		return "", fmt.Errorf("unknown node type %q", nodeType)
	}
	for {
		e.counters[nodeType]++
		n := e.counters[nodeType]
		id := typePrefix(nodeType) + strconv.Itoa(n)
		if _, taken := e.bases[id]; taken {
			continue
		}
		e.bases[id] = NodeDef{
			Name:  nodeType + strconv.Itoa(n),
			Type:  nodeType,
			X:     x,
			Y:     y,
			Links: []string{},
		}
		return id, nil
	}
}

// SetNode updates the editable fields of a node.
func (e *Editor) SetNode(id, name string, score int) error {
	d, ok := e.bases[id]
	if !ok {
		return fmt.Errorf("unknown node %s", id)
	}
	if score < 0 {
		score = 0
	}
	d.Name = name
	d.Score = score
	e.bases[id] = d
	return nil
}

// MoveNode repositions a node.
func (e *Editor) MoveNode(id string, x, y int) error {
	d, ok := e.bases[id]
	if !ok {
		return fmt.Errorf("unknown node %s", id)
	}
	d.X, d.Y = x, y
	e.bases[id] = d
	return nil
}

// AddLink connects two nodes in both directions. Linking twice is a no-op.
func (e *Editor) AddLink(a, b string) error {
	if a == b {
		return fmt.Errorf("cannot link %s to itself", a)
	}
	na, ok := e.bases[a]
	if !ok {
		return fmt.Errorf("unknown node %s", a)
	}
	nb, ok := e.bases[b]
	if !ok {
		return fmt.Errorf("unknown node %s", b)
	}
	na.Links = appendUnique(na.Links, b)
	nb.Links = appendUnique(nb.Links, a)
	e.bases[a] = na
	e.bases[b] = nb
	return nil
}

// NormalizeLinks makes every link symmetric and drops dangling targets.
func (e *Editor) NormalizeLinks() {
	ids := e.ids()
	for _, id := range ids {
		d := e.bases[id]
		kept := d.Links[:0]
		for _, l := range d.Links {
			if _, ok := e.bases[l]; ok && l != id {
				kept = append(kept, l)
			}
		}
		d.Links = kept
		e.bases[id] = d
	}
	for _, id := range ids {
		for _, l := range e.bases[id].Links {
			o := e.bases[l]
			o.Links = appendUnique(o.Links, id)
			e.bases[l] = o
		}
	}
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// AssignTerritoryColors walks territories clockwise from north around their
// centroid and hands out the palette in that order.
func (e *Editor) AssignTerritoryColors() {
	type terr struct {
		id    string
		angle float64
	}
	var ts []terr
	var sx, sy float64
	for _, id := range e.ids() {
		d := e.bases[id]
		if !d.IsTerritory() {
			continue
		}
		ts = append(ts, terr{id: id})
		sx += float64(d.X)
		sy += float64(d.Y)
	}
	if len(ts) == 0 {
		return
	}
	avgX, avgY := sx/float64(len(ts)), sy/float64(len(ts))
	for i := range ts {
		d := e.bases[ts[i].id]
		dx, dy := float64(d.X)-avgX, avgY-float64(d.Y)
		a := math.Atan2(dx, dy) * 180 / math.Pi
		ts[i].angle = math.Mod(a+360, 360)
	}
	sort.SliceStable(ts, func(i, j int) bool { return ts[i].angle < ts[j].angle })
	for i, t := range ts {
		d := e.bases[t.id]
		d.AssignedColor = TerritoryColors[i%len(TerritoryColors)]
		e.bases[t.id] = d
	}
}

func (e *Editor) ids() []string {
	out := make([]string, 0, len(e.bases))
	for id := range e.bases {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Catalog freezes the draft into an immutable catalog.
func (e *Editor) Catalog() (*MapCatalog, error) {
	return newMapCatalog(e.bases)
}

// WriteMap saves the catalog as indented map.json.
func WriteMap(path string, c *MapCatalog) error {
	b, err := json.MarshalIndent(mapFile{Bases: c.Bases}, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
