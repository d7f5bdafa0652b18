// Package cache serializes the results of grammar analysis so a driver can
// skip re-running nullability/left-recursion/leader analysis on a grammar
// whose source text has not changed, the same way a pre-compiled artifact
// is loaded from disk rather than regenerated on every run.
//
// Only analysis metadata is cached, not the grammar IR itself: ir.Item is
// a closed sum type carried as an interface, which github.com/dekarrin/rezi
// cannot serialize generically without a per-variant codec; re-parsing
// grammar source is cheap relative to the SCC/cycle-enumeration work this
// cache exists to skip, so there is no need to round-trip the IR too.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dekarrin/rezi"
	"github.com/dekarrin/sturgeon/internal/peg/diag"
	"github.com/dekarrin/sturgeon/internal/peg/ir"
)

// formatVersion is bumped whenever Snapshot's shape changes in a way that
// would make an old cache file misleading rather than merely stale.
const formatVersion = 1

// Snapshot is the cached result of running internal/peg/analysis over a
// grammar: enough to skip re-running it, keyed by a content hash of the
// grammar source that produced it.
type Snapshot struct {
	Version      int
	SourceHash   string
	RuleNames    []string
	RuleIDs      []int
	LeftRecursive []bool
	Leader       []bool
}

// HashSource returns the content hash Snapshot.SourceHash is keyed by.
func HashSource(grammarSource string) string {
	sum := sha256.Sum256([]byte(grammarSource))
	return hex.EncodeToString(sum[:])
}

// Build captures the current analysis state of g into a Snapshot keyed by
// grammarSource's content hash.
func Build(g *ir.Grammar, grammarSource string) Snapshot {
	rules := g.Rules()
	snap := Snapshot{
		Version:    formatVersion,
		SourceHash: HashSource(grammarSource),
	}
	for _, r := range rules {
		snap.RuleNames = append(snap.RuleNames, r.Name)
		snap.RuleIDs = append(snap.RuleIDs, r.RuleID)
		snap.LeftRecursive = append(snap.LeftRecursive, r.LeftRecursive)
		snap.Leader = append(snap.Leader, r.Leader)
	}
	return snap
}

// Encode serializes snap using rezi's binary encoding.
func Encode(snap Snapshot) []byte {
	return rezi.EncBinary(snap)
}

// Decode deserializes previously-Encoded bytes, rejecting a mismatched
// format version rather than returning a corrupt Snapshot.
func Decode(data []byte) (Snapshot, error) {
	var snap Snapshot
	if _, err := rezi.DecBinary(data, &snap); err != nil {
		return Snapshot{}, diag.WrapGrammarError(err, "", "decoding cached analysis snapshot")
	}
	if snap.Version != formatVersion {
		return Snapshot{}, diag.NewGrammarError("", "cached analysis snapshot is format version %d, expected %d", snap.Version, formatVersion)
	}
	return snap, nil
}

// Apply restores a Snapshot's analysis results onto g, provided g's rule
// set (by name, in order) matches exactly what produced the snapshot.
func Apply(g *ir.Grammar, snap Snapshot) error {
	rules := g.Rules()
	if len(rules) != len(snap.RuleNames) {
		return fmt.Errorf("cache: rule count mismatch (grammar has %d, snapshot has %d)", len(rules), len(snap.RuleNames))
	}
	for i, r := range rules {
		if r.Name != snap.RuleNames[i] {
			return fmt.Errorf("cache: rule order mismatch at index %d (grammar has %q, snapshot has %q)", i, r.Name, snap.RuleNames[i])
		}
		r.RuleID = snap.RuleIDs[i]
		r.LeftRecursive = snap.LeftRecursive[i]
		r.Leader = snap.Leader[i]
	}
	return nil
}
