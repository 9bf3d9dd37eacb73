package actorcheck

import (
	"sort"
)

// IsolationAnalyzer partitions each actor's fields into the coarsest groups
// that can be locked independently. Fields coupled by any state-writing
// method must share a group, so the groups are the weakly-connected
// components of the per-method field-dependency relation. A post-pass folds
// lone fields into the most similarly-accessed larger group so that fields
// which behave alike are scheduled alike.
type IsolationAnalyzer struct {
	cfg Config
}

// NewIsolationAnalyzer returns an analyzer using cfg's similarity threshold.
func NewIsolationAnalyzer(cfg Config) *IsolationAnalyzer {
	return &IsolationAnalyzer{cfg: cfg}
}

// Analyze partitions every actor and resolves the group ids on its fields
// and Isolated-mode methods. Actors are processed independently.
func (ia *IsolationAnalyzer) Analyze(actors []*Actor) {
	for _, a := range actors {
		ia.analyzeActor(a)
	}
}

func (ia *IsolationAnalyzer) analyzeActor(a *Actor) {
	n := len(a.Fields)
	if n == 0 {
		a.Groups = nil
		return
	}

	dsu := newUnionFind(n)

	// A method that writes state serializes on everything it touches, and an
	// isolated method must resolve to a single group. Either way its written
	// fields depend on its read fields, so the whole access set fuses.
	for _, m := range a.Methods {
		if len(m.Accesses) < 2 {
			continue
		}
		if !m.WritesState() && m.Mode.Kind != ModeIsolated {
			continue
		}

		fields := m.AccessedFields()
		for _, idx := range fields[1:] {
			dsu.union(fields[0], idx)
		}
	}

	touches := make([]int, n)
	for _, m := range a.Methods {
		for idx, acc := range m.Accesses {
			touches[idx] += acc.Reads + acc.Writes
		}
	}

	// Component roots are always the lowest member index, so iterating field
	// indices in order visits components deterministically.
	members := make(map[int][]int, n)
	for i := 0; i < n; i++ {
		r := dsu.find(i)
		members[r] = append(members[r], i)
	}

	ia.mergeSingletons(dsu, members, touches)

	roots := make([]int, 0, len(members))
	for r := range members {
		roots = append(roots, r)
	}
	sort.Ints(roots)

	a.Groups = make([]IsolationGroup, 0, len(roots))
	for id, r := range roots {
		g := IsolationGroup{ID: id, Fields: members[r]}
		a.Groups = append(a.Groups, g)
		for _, idx := range g.Fields {
			a.Fields[idx].Group = id
		}
	}

	for _, m := range a.Methods {
		if m.Mode.Kind != ModeIsolated {
			continue
		}
		fields := m.AccessedFields()
		if len(fields) == 0 {
			continue
		}
		m.Mode.Group = a.Fields[fields[0]].Group
	}
}

// mergeSingletons folds each lone field into the best-matching group of two
// or more fields, judged by access-frequency similarity. A field that does
// not clear the threshold against any candidate keeps its own group.
func (ia *IsolationAnalyzer) mergeSingletons(dsu *unionFind, members map[int][]int, touches []int) {
	avg := func(fields []int) float64 {
		sum := 0
		for _, idx := range fields {
			sum += touches[idx]
		}
		return float64(sum) / float64(len(fields))
	}

	for i := 0; i < len(touches); i++ {
		r := dsu.find(i)
		if len(members[r]) != 1 {
			continue
		}

		roots := make([]int, 0, len(members))
		for root := range members {
			roots = append(roots, root)
		}
		sort.Ints(roots)

		best := -1
		bestScore := 0.0
		for _, root := range roots {
			if root == r || len(members[root]) < 2 {
				continue
			}
			score := touchSimilarity(avg(members[r]), avg(members[root]))
			if score > bestScore {
				bestScore = score
				best = root
			}
		}

		if best < 0 || bestScore <= ia.cfg.MergeSimilarityThreshold {
			continue
		}

		dsu.union(best, r)
		merged := dsu.find(best)
		fused := append(members[best], members[r]...)
		sort.Ints(fused)
		delete(members, best)
		delete(members, r)
		members[merged] = fused
	}
}

// touchSimilarity scores two average touch counts as the ratio of the
// smaller to the larger. Two untouched sides count as identical.
func touchSimilarity(a, b float64) float64 {
	if a == 0 && b == 0 {
		return 1.0
	}
	if a > b {
		a, b = b, a
	}
	if b == 0 {
		return 0.0
	}
	return a / b
}

// unionFind is a union-by-minimum disjoint-set over field indices. Keeping
// the smallest member as the root makes component identity stable across
// runs.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if ra > rb {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
}
