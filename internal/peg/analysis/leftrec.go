package analysis

import (
	"sort"

	"github.com/dekarrin/sturgeon/internal/peg/diag"
	"github.com/dekarrin/sturgeon/internal/peg/ir"
)

// InitialNames computes, for each rule, the set of names that might be
// consumed first by some alternative of that rule. Nullable
// prefix items also contribute their initial names, since a PEG engine may
// fall through them without consuming input.
func InitialNames(g *ir.Grammar, nullable *Nullable) map[string]map[string]bool {
	graph := make(map[string]map[string]bool)
	for _, r := range g.Rules() {
		graph[r.Name] = rhsInitialNames(r.Rhs, nullable)
	}
	// ensure every name mentioned as a vertex exists, even token names,
	// so SCC computation never indexes a missing adjacency list.
	for _, names := range graph {
		for name := range names {
			if _, ok := graph[name]; !ok {
				graph[name] = map[string]bool{}
			}
		}
	}
	return graph
}

func rhsInitialNames(rhs *ir.Rhs, nullable *Nullable) map[string]bool {
	out := map[string]bool{}
	for _, alt := range rhs.Alts {
		for _, item := range alt.Items {
			itemInitialNames(item.Item, nullable, out)
			if !itemNullable(item.Item, nullable) {
				break
			}
		}
	}
	return out
}

func itemNullable(it ir.Item, nullable *Nullable) bool {
	if nl, ok := it.(ir.NameLeaf); ok {
		return nullable.Rule(nl.Name)
	}
	switch v := it.(type) {
	case ir.StringLeaf:
		return v.Literal == ""
	case ir.Group:
		for _, alt := range v.Rhs.Alts {
			allNullable := true
			for _, item := range alt.Items {
				if !itemNullable(item.Item, nullable) {
					allNullable = false
					break
				}
			}
			if allNullable {
				return true
			}
		}
		return false
	case ir.Opt, ir.Repeat0:
		return true
	default:
		// Repeat1, Gather, Cut, Forced, and both lookaheads are treated as
		// non-nullable for left-recursion purposes, the same convention
		// ComputeNullable follows: a conscious choice, not an oversight, so
		// initial-name scanning stops at them.
		return false
	}
}

func itemInitialNames(it ir.Item, nullable *Nullable, out map[string]bool) {
	switch v := it.(type) {
	case ir.NameLeaf:
		out[v.Name] = true
	case ir.StringLeaf:
		// literal terminals are not rule references; no graph edge.
	case ir.Group:
		for _, alt := range v.Rhs.Alts {
			for _, item := range alt.Items {
				itemInitialNames(item.Item, nullable, out)
				if !itemNullable(item.Item, nullable) {
					break
				}
			}
		}
	case ir.Opt:
		itemInitialNames(v.Item, nullable, out)
	case ir.Repeat0:
		itemInitialNames(v.Elem, nullable, out)
	case ir.Repeat1:
		itemInitialNames(v.Elem, nullable, out)
	case ir.Gather:
		itemInitialNames(v.Elem, nullable, out)
	case ir.PositiveLookahead, ir.NegativeLookahead, ir.Forced, ir.Cut:
		// zero-width; contributes no initial name of its own atom is a
		// deliberate simplification matching pegen's GrammarVisitor, which
		// never descends into lookahead/cut nodes when computing initial
		// names (only nullability does).
	}
}

// LeftRecursion holds the results of SCC analysis over the initial-name
// graph: which rules are left-recursive, and which rule in each non-trivial
// SCC is the leader.
type LeftRecursion struct {
	Graph   map[string]map[string]bool
	SCCs    [][]string
	Leaders map[string]bool // rule name -> is leader
}

// ComputeLeftRecursion runs Tarjan's algorithm over the initial-name graph
// restricted to rule vertices, marks every rule in a non-trivial SCC (or
// with a self-loop) as left-recursive, and selects exactly one leader per
// SCC by elementary-cycle intersection.
// Mutates LeftRecursive/Leader on the grammar's rules in place.
func ComputeLeftRecursion(g *ir.Grammar, nullable *Nullable) (*LeftRecursion, error) {
	graph := InitialNames(g, nullable)

	ruleNames := make(map[string]bool)
	for _, r := range g.Rules() {
		ruleNames[r.Name] = true
	}

	sccs := tarjanSCC(graph)

	lr := &LeftRecursion{Graph: graph, SCCs: sccs, Leaders: map[string]bool{}}

	for _, scc := range sccs {
		// restrict SCC membership to grammar rules; token names can appear
		// as graph vertices but are never left-recursive.
		ruleScc := make([]string, 0, len(scc))
		for _, name := range scc {
			if ruleNames[name] {
				ruleScc = append(ruleScc, name)
			}
		}
		if len(ruleScc) == 0 {
			continue
		}

		if len(ruleScc) > 1 {
			for _, name := range ruleScc {
				r, _ := g.Rule(name)
				r.LeftRecursive = true
			}
			leader, err := selectLeader(graph, ruleScc)
			if err != nil {
				return nil, err
			}
			lr.Leaders[leader] = true
			r, _ := g.Rule(leader)
			r.Leader = true
		} else {
			name := ruleScc[0]
			if graph[name][name] {
				r, _ := g.Rule(name)
				r.LeftRecursive = true
				r.Leader = true
				lr.Leaders[name] = true
			}
		}
	}

	return lr, nil
}

// tarjanSCC returns the strongly connected components of graph, each as a
// slice of vertex names. Standard Tarjan's algorithm, iterative-safe via
// explicit recursion since grammars are small.
func tarjanSCC(graph map[string]map[string]bool) [][]string {
	index := 0
	indices := map[string]int{}
	lowlink := map[string]int{}
	onStack := map[string]bool{}
	var stack []string
	var sccs [][]string

	// deterministic vertex order so leader selection ties resolve the same
	// way on every run.
	names := make([]string, 0, len(graph))
	for name := range graph {
		names = append(names, name)
	}
	sort.Strings(names)

	var strongconnect func(v string)
	strongconnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		neighbors := make([]string, 0, len(graph[v]))
		for w := range graph[v] {
			neighbors = append(neighbors, w)
		}
		sort.Strings(neighbors)

		for _, w := range neighbors {
			if _, seen := indices[w]; !seen {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var component []string
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				component = append(component, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, component)
		}
	}

	for _, name := range names {
		if _, seen := indices[name]; !seen {
			strongconnect(name)
		}
	}

	return sccs
}

// selectLeader enumerates elementary cycles within scc starting from each
// member and intersects their vertex sets; the remaining candidates are
// the nodes through which every elementary cycle passes. Ties broken by
// lexicographically smallest name.
func selectLeader(graph map[string]map[string]bool, scc []string) (string, error) {
	inSCC := make(map[string]bool, len(scc))
	for _, n := range scc {
		inSCC[n] = true
	}

	leaders := make(map[string]bool, len(scc))
	for _, n := range scc {
		leaders[n] = true
	}

	for _, start := range scc {
		cycles := findCyclesInSCC(graph, inSCC, start)
		for _, cycle := range cycles {
			inCycle := make(map[string]bool, len(cycle))
			for _, n := range cycle {
				inCycle[n] = true
			}
			for _, n := range scc {
				if !inCycle[n] {
					delete(leaders, n)
				}
			}
			if len(leaders) == 0 {
				return "", diag.NewGrammarError("", "SCC %v has no leadership candidate (no element is included in all cycles)", scc)
			}
		}
	}

	candidates := make([]string, 0, len(leaders))
	for n := range leaders {
		candidates = append(candidates, n)
	}
	sort.Strings(candidates)
	return candidates[0], nil
}

// findCyclesInSCC enumerates simple (elementary) cycles through start that
// stay within the SCC, via depth-first search with a visited-on-path set.
func findCyclesInSCC(graph map[string]map[string]bool, inSCC map[string]bool, start string) [][]string {
	var cycles [][]string
	visited := map[string]bool{start: true}
	path := []string{start}

	var dfs func(v string)
	dfs = func(v string) {
		neighbors := make([]string, 0, len(graph[v]))
		for w := range graph[v] {
			neighbors = append(neighbors, w)
		}
		sort.Strings(neighbors)

		for _, w := range neighbors {
			if !inSCC[w] {
				continue
			}
			if w == start {
				cycle := make([]string, len(path))
				copy(cycle, path)
				cycles = append(cycles, cycle)
				continue
			}
			if visited[w] {
				continue
			}
			visited[w] = true
			path = append(path, w)
			dfs(w)
			path = path[:len(path)-1]
			visited[w] = false
		}
	}
	dfs(start)
	return cycles
}
