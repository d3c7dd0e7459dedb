package stats

import "sort"

// LabelEncode maps each value to its index in the sorted set of distinct
// values. It returns the codes (as floats, ready for Correlation) and the
// sorted classes.
func LabelEncode(values []string) ([]float64, []string) {
	classes := SortedKeys(values)
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	codes := make([]float64, len(values))
	for i, v := range values {
		codes[i] = float64(index[v])
	}
	return codes, classes
}

// SortedKeys returns the distinct values of keys in ascending order.
func SortedKeys(keys []string) []string {
	out := FirstSeen(keys)
	sort.Strings(out)
	return out
}

// FirstSeen returns the distinct values of keys in order of first
// appearance.
func FirstSeen(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	var out []string
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Group collects values by key, preserving first-appearance key order.
type Group struct {
	Keys   []string
	Values map[string][]float64
}

// GroupBy partitions values by the parallel keys slice.
func GroupBy(keys []string, values []float64) Group {
	g := Group{Values: make(map[string][]float64)}
	for i, k := range keys {
		if _, ok := g.Values[k]; !ok {
			g.Keys = append(g.Keys, k)
		}
		g.Values[k] = append(g.Values[k], values[i])
	}
	return g
}
