package mapreduce

// Map counts edits per stage for a single document.
// Stages that made no change are left out.
func Map(stageEdits map[string]int) map[string]int {
	counts := make(map[string]int, len(stageEdits))
	for stage, n := range stageEdits {
		if n > 0 {
			counts[stage] = n
		}
	}
	return counts
}

// Reduce aggregates a slice of count maps into a single map.
func Reduce(intermediate []map[string]int) map[string]int {
	finalResults := make(map[string]int)

	for _, counts := range intermediate {
		for key, count := range counts {
			finalResults[key] += count
		}
	}

	return finalResults
}
