// Package commonutils carries small generic helpers shared across the engine.
package commonutils

import "sort"

// SortedKeys returns the keys of an integer-keyed map in ascending order.
func SortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// SortedSet returns the members of an integer set in ascending order.
func SortedSet(s map[int]struct{}) []int {
	members := make([]int, 0, len(s))
	for k := range s {
		members = append(members, k)
	}
	sort.Ints(members)
	return members
}

// SetOf builds an integer set from its arguments.
func SetOf(members ...int) map[int]struct{} {
	s := make(map[int]struct{}, len(members))
	for _, m := range members {
		s[m] = struct{}{}
	}
	return s
}

// Contains reports set membership.
func Contains(s map[int]struct{}, member int) bool {
	_, ok := s[member]
	return ok
}
