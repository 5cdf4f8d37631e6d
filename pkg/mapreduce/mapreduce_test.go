package mapreduce

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapDropsZeroStages(t *testing.T) {
	got := Map(map[string]int{"paths": 3, "inject": 0, "token": 1})
	assert.Equal(t, map[string]int{"paths": 3, "token": 1}, got)
}

func TestReduce(t *testing.T) {
	got := Reduce([]map[string]int{
		{"paths": 3, "token": 1},
		{"paths": 2, "patch": 4},
		{},
	})
	assert.Equal(t, map[string]int{"paths": 5, "token": 1, "patch": 4}, got)
}

func TestTopCounts(t *testing.T) {
	counts := map[string]int{"b.html": 2, "a.html": 2, "c.html": 9, "d.html": 0}

	tests := []struct {
		name string
		n    int
		want []string
	}{
		{"top two", 2, []string{"c.html:9", "a.html:2"}},
		{"more than available", 10, []string{"c.html:9", "a.html:2", "b.html:2"}},
		{"zero", 0, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TopCounts(counts, tt.n))
		})
	}
}
