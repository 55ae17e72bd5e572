package catalogs

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Authored node types. Only TypeTerritory matters to the rules; the rest
// differ in display size only.
const (
	TypeConvenience  = "コンビニ"
	TypeSupermarket  = "スーパー"
	TypeHall         = "ホール"
	TypeCentralTower = "中心大厦"
	TypeTerritory    = "陣地"
)

// NodeTypes lists the authored node types in editor order.
var NodeTypes = []string{TypeConvenience, TypeSupermarket, TypeHall, TypeCentralTower, TypeTerritory}

// TerritoryColors is the fixed 8-slot palette handed out to territories and
// the teams that found them.
var TerritoryColors = []string{"yellow", "red", "orange", "blue", "lightblue", "purple", "lightyellow", "magenta"}

const mapSchemaURL = "https://territory.ai/schemas/map.schema.json"

//go:embed map.schema.json
var mapSchemaJSON string

// NodeDef is one authored node as stored in map.json.
type NodeDef struct {
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	X             int      `json:"x"`
	Y             int      `json:"y"`
	Score         int      `json:"score"`
	Links         []string `json:"links"`
	AssignedColor string   `json:"assigned_color,omitempty"`
}

func (d NodeDef) IsTerritory() bool { return d.Type == TypeTerritory }

// MapCatalog is the immutable authored board. Callers must treat Bases as
// read-only and work on copies.
type MapCatalog struct {
	Bases  map[string]NodeDef
	Order  []string
	Digest string
}

type mapFile struct {
	Bases map[string]NodeDef `json:"bases"`
}

var mapSchema = jsonschema.MustCompileString(mapSchemaURL, mapSchemaJSON)

// LoadMap reads, validates and digests a map.json file.
func LoadMap(path string) (*MapCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := ParseMap(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return c, nil
}

// ParseMap validates raw map.json bytes against the map schema and checks
// that every link points at a known node.
func ParseMap(raw []byte) (*MapCatalog, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := mapSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}

	var f mapFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return newMapCatalog(f.Bases)
}

func newMapCatalog(bases map[string]NodeDef) (*MapCatalog, error) {
	c := &MapCatalog{Bases: make(map[string]NodeDef, len(bases))}
	for id, d := range bases {
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("empty node id")
		}
		d.Links = copyLinks(d.Links)
		c.Bases[id] = d
		c.Order = append(c.Order, id)
	}
	sort.Strings(c.Order)
	for _, id := range c.Order {
		for _, l := range c.Bases[id].Links {
			if _, ok := c.Bases[l]; !ok {
				return nil, fmt.Errorf("node %s links to unknown node %s", id, l)
			}
		}
	}
	b, err := json.Marshal(mapFile{Bases: c.Bases})
	if err != nil {
		return nil, err
	}
	c.Digest = sha256Hex(b)
	return c, nil
}

// Territories returns territory node ids in id order.
func (c *MapCatalog) Territories() []string {
	var out []string
	for _, id := range c.Order {
		if c.Bases[id].IsTerritory() {
			out = append(out, id)
		}
	}
	return out
}

// Node returns a defensive copy of one authored node.
func (c *MapCatalog) Node(id string) (NodeDef, bool) {
	d, ok := c.Bases[id]
	if !ok {
		return NodeDef{}, false
	}
	d.Links = copyLinks(d.Links)
	return d, true
}

func copyLinks(links []string) []string {
	out := make([]string, len(links))
	copy(out, links)
	return out
}

// MarshalJSON writes the map.json document shape.
func (c *MapCatalog) MarshalJSON() ([]byte, error) {
	return json.Marshal(mapFile{Bases: c.Bases})
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
