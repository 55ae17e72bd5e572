// Package teams is the team registry: per-team activity and battle figures and
// the territory each team most recently claimed.
package teams

// BattleSlots is how many battle values a team carries.
const BattleSlots = 5

// DefaultRawActivity is what a team created implicitly by an assignment shows.
const DefaultRawActivity = "0"

type Team struct {
	Name          string
	RawActivity   string
	ActivityTotal float64
	BattleValues  []float64
	Territory     string
}

// BattleSum adds up the battle values.
func (t Team) BattleSum() float64 {
	var s float64
	for _, v := range t.BattleValues {
		s += v
	}
	return s
}

// Ratio is battle strength per unit of activity; zero activity yields 0.
func (t Team) Ratio() float64 {
	if t.ActivityTotal == 0 {
		return 0
	}
	return t.BattleSum() / t.ActivityTotal
}

func (t Team) clone() Team {
	t.BattleValues = append([]float64(nil), t.BattleValues...)
	return t
}

// Registry keeps teams in first-reference order. Not safe for concurrent use.
type Registry struct {
	byName map[string]*Team
	order  []string
}

func NewRegistry() *Registry {
	return &Registry{byName: map[string]*Team{}}
}

func (r *Registry) Len() int { return len(r.order) }

func (r *Registry) Get(name string) (Team, bool) {
	t, ok := r.byName[name]
	if !ok {
		return Team{}, false
	}
	return t.clone(), true
}

func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Ensure creates the team with zeroed figures on first reference, then points
// its territory at territoryID. It reports whether the team was created.
func (r *Registry) Ensure(name, territoryID string) bool {
	if t, ok := r.byName[name]; ok {
		t.Territory = territoryID
		return false
	}
	r.put(Team{
		Name:         name,
		RawActivity:  DefaultRawActivity,
		BattleValues: make([]float64, BattleSlots),
		Territory:    territoryID,
	})
	return true
}

// Put replaces the team record wholesale, keeping its original position.
func (r *Registry) Put(t Team) {
	r.put(t.clone())
}

func (r *Registry) put(t Team) {
	if _, ok := r.byName[t.Name]; !ok {
		r.order = append(r.order, t.Name)
	}
	r.byName[t.Name] = &t
}

// List returns copies in first-reference order.
func (r *Registry) List() []Team {
	out := make([]Team, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name].clone())
	}
	return out
}

func (r *Registry) Clear() {
	r.byName = map[string]*Team{}
	r.order = nil
}
