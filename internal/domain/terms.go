// Path: internal/domain/terms.go
package domain

import "strings"

// TermDelimiter separates terms when a TermSet is stored as a single string.
const TermDelimiter = ","

// TermSet is an insertion-ordered set of query terms. Membership is exact
// and case-sensitive; "AI" and "AITA" are different terms.
type TermSet []string

// ParseTermSet splits a delimited string into a TermSet, dropping blanks
// and repeats.
func ParseTermSet(s string) TermSet {
	var ts TermSet
	for _, part := range strings.Split(s, TermDelimiter) {
		ts = ts.Add(strings.TrimSpace(part))
	}
	return ts
}

// Has reports whether term is a member of the set.
func (ts TermSet) Has(term string) bool {
	for _, t := range ts {
		if t == term {
			return true
		}
	}
	return false
}

// Add returns the set with term appended. Empty and already present terms
// leave the set unchanged.
func (ts TermSet) Add(term string) TermSet {
	if term == "" || ts.Has(term) {
		return ts
	}
	out := make(TermSet, len(ts), len(ts)+1)
	copy(out, ts)
	return append(out, term)
}

// Union adds every term of other, keeping the receiver's order first.
func (ts TermSet) Union(other TermSet) TermSet {
	out := ts
	for _, t := range other {
		out = out.Add(t)
	}
	return out
}

// Remove returns the set without term.
func (ts TermSet) Remove(term string) TermSet {
	out := make(TermSet, 0, len(ts))
	for _, t := range ts {
		if t != term {
			out = append(out, t)
		}
	}
	return out
}

// String joins the set with TermDelimiter.
func (ts TermSet) String() string {
	return strings.Join(ts, TermDelimiter)
}
