// Package permission models URL permissions: a path pattern, one operation,
// and whether named segments are bound to the caller's own identity.
package permission

import (
	"sort"
)

// Permission grants one operation on the paths matching Pattern.
type Permission struct {
	Pattern   Pattern
	Operation Operation
	SelfOnly  bool
}

// New builds a permission. Patterns with a named segment are self-only.
func New(pattern string, op Operation) (Permission, error) {
	p, err := ParsePattern(pattern)
	if err != nil {
		return Permission{}, err
	}
	return Permission{Pattern: p, Operation: op, SelfOnly: p.HasParameter()}, nil
}

// Grants reports whether this permission allows op on path for identity.
// Operations never imply each other.
func (p Permission) Grants(path string, op Operation, identity string) bool {
	if p.Operation != op {
		return false
	}
	return p.Pattern.Match(path, identity, p.SelfOnly)
}

// String renders the permission as "OPERATION /pattern".
func (p Permission) String() string {
	return string(p.Operation) + " " + p.Pattern.String()
}

// Set is a deduplicated collection of permissions.
// A Set is not safe for concurrent mutation; it is built once and then only read.
type Set struct {
	perms map[string]Permission
}

// NewSet creates a set holding perms.
func NewSet(perms ...Permission) *Set {
	s := &Set{perms: make(map[string]Permission, len(perms))}
	s.Add(perms...)
	return s
}

// Add inserts permissions, ignoring duplicates.
func (s *Set) Add(perms ...Permission) {
	for _, p := range perms {
		s.perms[p.String()] = p
	}
}

// Union returns a new set with the permissions of s and other.
func (s *Set) Union(other *Set) *Set {
	out := NewSet(s.List()...)
	if other != nil {
		out.Add(other.List()...)
	}
	return out
}

// Len returns the number of distinct permissions.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.perms)
}

// List returns the permissions sorted by pattern then operation.
func (s *Set) List() []Permission {
	if s == nil {
		return nil
	}
	out := make([]Permission, 0, len(s.perms))
	for _, p := range s.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pattern.String() != out[j].Pattern.String() {
			return out[i].Pattern.String() < out[j].Pattern.String()
		}
		return out[i].Operation < out[j].Operation
	})
	return out
}

// Grants reports whether any permission in the set allows op on path.
func (s *Set) Grants(path string, op Operation, identity string) bool {
	if s == nil {
		return false
	}
	for _, p := range s.perms {
		if p.Grants(path, op, identity) {
			return true
		}
	}
	return false
}
