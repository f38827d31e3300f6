// Package reconcile diffs a persisted keyed collection against the desired one.
package reconcile

import "sort"

// Plan lists the writes needed to turn the current key set into the desired one.
// Add and Update carry the desired values; Remove only carries keys.
type Plan[K comparable, V any] struct {
	Add    map[K]V
	Update map[K]V
	Remove []K
}

// Empty reports whether applying the plan would write nothing.
func (p Plan[K, V]) Empty() bool {
	return len(p.Add) == 0 && len(p.Update) == 0 && len(p.Remove) == 0
}

// KeyedSet compares the keys present in current with desired. Keys only in
// desired are added, keys in both are updated, keys only in current are removed.
func KeyedSet[K comparable, V any](current []K, desired map[K]V) Plan[K, V] {
	plan := Plan[K, V]{
		Add:    make(map[K]V),
		Update: make(map[K]V),
	}

	seen := make(map[K]struct{}, len(current))
	for _, k := range current {
		seen[k] = struct{}{}
	}

	for k, v := range desired {
		if _, ok := seen[k]; ok {
			plan.Update[k] = v
		} else {
			plan.Add[k] = v
		}
	}

	for k := range seen {
		if _, ok := desired[k]; !ok {
			plan.Remove = append(plan.Remove, k)
		}
	}

	return plan
}

// Set is KeyedSet for collections without values, e.g. a feature column list.
// Keys present on both sides need no write and are left out of Update.
func Set[K comparable](current, desired []K) Plan[K, struct{}] {
	want := make(map[K]struct{}, len(desired))
	for _, k := range desired {
		want[k] = struct{}{}
	}
	plan := KeyedSet(current, want)
	plan.Update = map[K]struct{}{}
	return plan
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
