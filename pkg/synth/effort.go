package synth

import (
	"math"
	"strings"

	"github.com/zen-systems/drrepo/pkg/workflow"
)

var effortHours = []struct {
	prefix string
	hours  float64
}{
	{"Low", 1.5},
	{"Medium", 3},
	{"High", 10},
}

func estimateEffort(items []workflow.ActionItem) workflow.Effort {
	var e workflow.Effort
	for _, it := range items {
		for _, eh := range effortHours {
			if strings.HasPrefix(it.Effort, eh.prefix) {
				e.TotalHours += eh.hours
				break
			}
		}
		if it.Priority == workflow.PriorityHigh {
			e.HighPriority++
		}
		if strings.HasPrefix(it.Effort, "Low") {
			e.QuickWins++
		}
	}
	e.TotalHours = math.Round(e.TotalHours*10) / 10

	switch {
	case e.TotalHours < 5:
		e.Recommendation = "Start with quick wins"
	case e.TotalHours < 15:
		e.Recommendation = "Prioritize high-impact items"
	default:
		e.Recommendation = "Plan for multiple sessions"
	}
	return e
}
