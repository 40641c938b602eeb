//go:build drrepo_debug

package workflow

import "fmt"

const debugAssertions = true

func assertGrowth(before, after *State) {
	prev := accumulatorLengths(before)
	for field, n := range accumulatorLengths(after) {
		if n < prev[field] {
			panic(fmt.Sprintf("workflow: accumulator %s shrank from %d to %d", field, prev[field], n))
		}
	}
}
