package memory

import "strings"

// Matcher decides whether a new candidate duplicates an existing memory.
// The store consults it during upsert; a match becomes a refresh-touch
// instead of an insert.
type Matcher interface {
	// Match reports whether candidate duplicates existing. Both strings
	// are already normalized.
	Match(existing, candidate string) bool
}

// ExactMatcher treats only byte-identical content as a duplicate.
type ExactMatcher struct{}

func (ExactMatcher) Match(existing, candidate string) bool {
	return existing == candidate
}

// PrefixProbeLength is how much of the candidate PrefixMatcher probes for.
const PrefixProbeLength = 30

// PrefixMatcher matches when the existing content contains the first
// PrefixProbeLength characters of the candidate. Long entries sharing a
// common prefix can falsely merge under this heuristic; it is kept as a
// named strategy precisely so it can be swapped for ExactMatcher or a
// similarity-based matcher.
type PrefixMatcher struct{}

func (PrefixMatcher) Match(existing, candidate string) bool {
	if existing == candidate {
		return true
	}
	probe := candidate
	if len(probe) > PrefixProbeLength {
		probe = probe[:PrefixProbeLength]
	}
	return probe != "" && strings.Contains(existing, probe)
}
