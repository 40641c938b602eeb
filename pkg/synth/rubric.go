package synth

import (
	"fmt"

	"github.com/zen-systems/drrepo/pkg/workflow"
)

// Check awards Points when Test holds.
type Check struct {
	Name   string
	Points int
	Test   func(Signals) bool
}

// Category is a group of checks whose total is capped.
type Category struct {
	Name   string
	Cap    int
	Checks []Check
}

// Rubric is the ordered list of scoring categories.
type Rubric []Category

// DefaultRubric scores structure, content, visuals, and completeness out of
// 30, 30, 20, and 20 points.
func DefaultRubric() Rubric {
	return Rubric{
		{
			Name: "Structure",
			Cap:  30,
			Checks: []Check{
				{"main title", 5, func(s Signals) bool { return s.Readme.HasTitle }},
				{"at least 3 sections", 5, func(s Signals) bool { return s.Readme.SectionCount() >= 3 }},
				{"at least 5 sections", 5, func(s Signals) bool { return s.Readme.SectionCount() >= 5 }},
				{"over 200 words", 5, func(s Signals) bool { return s.Readme.WordCount > 200 }},
				{"over 500 words", 5, func(s Signals) bool { return s.Readme.WordCount > 500 }},
				{"table of contents", 5, func(s Signals) bool { return s.Readme.HasTOC }},
			},
		},
		{
			Name: "Content",
			Cap:  30,
			Checks: []Check{
				{"installation", 5, func(s Signals) bool { return s.Readme.HasInstallation }},
				{"usage", 5, func(s Signals) bool { return s.Readme.HasUsage }},
				{"examples", 5, func(s Signals) bool { return s.Readme.HasExamples }},
				{"prerequisites", 5, func(s Signals) bool { return s.Readme.HasPrerequisites }},
				{"configuration", 5, func(s Signals) bool { return s.Readme.HasConfiguration }},
				{"detailed description", 5, func(s Signals) bool { return s.Readme.CharCount > 500 }},
			},
		},
		{
			Name: "Visual",
			Cap:  20,
			Checks: []Check{
				{"at least 3 badges", 5, func(s Signals) bool { return s.Readme.BadgeCount >= 3 }},
				{"code blocks", 5, func(s Signals) bool { return s.Readme.HasCodeBlocks() }},
				{"images", 5, func(s Signals) bool { return s.Readme.HasImages() }},
				{"tables", 5, func(s Signals) bool { return s.Readme.HasTables }},
			},
		},
		{
			Name: "Completeness",
			Cap:  20,
			Checks: []Check{
				{"testing section", 5, func(s Signals) bool { return s.Readme.HasTesting }},
				{"contributing section", 5, func(s Signals) bool { return s.Readme.HasContributing }},
				{"license section", 5, func(s Signals) bool { return s.Readme.HasLicense }},
				{"documentation section", 5, func(s Signals) bool { return s.Readme.HasDocumentation }},
			},
		},
	}
}

func (r Rubric) validate() error {
	if len(r) == 0 {
		return fmt.Errorf("rubric has no categories")
	}
	for _, c := range r {
		if c.Cap < 0 {
			return fmt.Errorf("category %s has negative cap", c.Name)
		}
		for _, ch := range c.Checks {
			if ch.Test == nil {
				return fmt.Errorf("check %s/%s has no test", c.Name, ch.Name)
			}
		}
	}
	return nil
}

// Score evaluates every check. Each category subtotal is clamped to
// [0, Cap] and the total to [0, 100].
func (r Rubric) Score(s Signals) (int, []workflow.CategoryScore) {
	total := 0
	breakdown := make([]workflow.CategoryScore, 0, len(r))
	for _, c := range r {
		sub := 0
		for _, ch := range c.Checks {
			if ch.Test(s) {
				sub += ch.Points
			}
		}
		sub = clamp(sub, 0, c.Cap)
		total += sub
		breakdown = append(breakdown, workflow.CategoryScore{Category: c.Name, Points: sub, Cap: c.Cap})
	}
	return clamp(total, 0, 100), breakdown
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
