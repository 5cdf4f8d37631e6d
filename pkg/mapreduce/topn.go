package mapreduce

import (
	"fmt"
	"sort"
)

type kv struct {
	Key   string
	Value int
}

// sorted orders counts by value (descending), then key, dropping zero counts.
func sorted(counts map[string]int) []kv {
	var ss []kv
	for k, v := range counts {
		if v > 0 {
			ss = append(ss, kv{k, v})
		}
	}
	sort.Slice(ss, func(i, j int) bool {
		if ss[i].Value != ss[j].Value {
			return ss[i].Value > ss[j].Value
		}
		return ss[i].Key < ss[j].Key
	})
	return ss
}

// TopCounts returns the top N entries as "key:count" strings (e.g., "about-us/index.html:12").
func TopCounts(counts map[string]int, n int) []string {
	ss := sorted(counts)

	limit := n
	if len(ss) < n {
		limit = len(ss)
	}
	if limit < 0 {
		limit = 0
	}

	out := make([]string, limit)
	for i := 0; i < limit; i++ {
		out[i] = fmt.Sprintf("%s:%d", ss[i].Key, ss[i].Value)
	}
	return out
}
