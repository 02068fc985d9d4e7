package model

import (
	"encoding/json"
	"slices"
)

// LinkSet is a set of absolute URL strings.
// The zero value is an empty set ready to use.
// A LinkSet is not safe for concurrent use; the crawler owns it from a
// single goroutine and hands it out read-only once the crawl is done.
type LinkSet struct {
	m map[string]struct{}
}

// NewLinkSet returns a set holding the given members.
func NewLinkSet(members ...string) LinkSet {
	var s LinkSet
	for _, m := range members {
		s.Add(m)
	}
	return s
}

// Add inserts u and reports whether it was not already present.
func (s *LinkSet) Add(u string) bool {
	if s.m == nil {
		s.m = make(map[string]struct{})
	}
	if _, ok := s.m[u]; ok {
		return false
	}
	s.m[u] = struct{}{}
	return true
}

// Has reports whether u is a member.
func (s LinkSet) Has(u string) bool {
	_, ok := s.m[u]
	return ok
}

// Len returns the number of members.
func (s LinkSet) Len() int {
	return len(s.m)
}

// Members returns a sorted copy of the members.
func (s LinkSet) Members() []string {
	out := make([]string, 0, len(s.m))
	for u := range s.m {
		out = append(out, u)
	}
	slices.Sort(out)
	return out
}

// Difference returns the sorted members of s that are not in other.
func (s LinkSet) Difference(other LinkSet) []string {
	out := make([]string, 0)
	for u := range s.m {
		if !other.Has(u) {
			out = append(out, u)
		}
	}
	slices.Sort(out)
	return out
}

// MarshalJSON encodes the set as a sorted JSON array.
func (s LinkSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Members())
}

// UnmarshalJSON decodes a JSON array into the set.
func (s *LinkSet) UnmarshalJSON(data []byte) error {
	var members []string
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}
	*s = NewLinkSet(members...)
	return nil
}
