package synth

import (
	"fmt"

	"github.com/zen-systems/drrepo/pkg/readme"
	"github.com/zen-systems/drrepo/pkg/workflow"
)

// Rule appends Item to the action list when Match holds.
type Rule struct {
	Name  string
	Item  workflow.ActionItem
	Match func(Signals) bool
}

// Effort labels. The leading word selects the hour estimate.
const (
	effortMinutes = "Low (under 1 hour)"
	effortLow     = "Low (1-2 hours)"
	effortMedium  = "Medium (2-4 hours)"
	effortHigh    = "High (8+ hours)"
)

// DefaultRules returns the action-item rules, high priority first.
func DefaultRules() []Rule {
	return []Rule{
		missingSectionRule(readme.Installation, "Critical for adoption: readers cannot get started without it"),
		missingSectionRule(readme.Usage, "Critical for usability: readers cannot tell how to use the project"),
		{
			Name: "license-section",
			Item: workflow.ActionItem{
				Priority: workflow.PriorityHigh,
				Category: "Documentation",
				Action:   "Add 'License' section to the README",
				Impact:   "States the terms of use where readers look first",
				Effort:   effortMinutes,
			},
			Match: func(s Signals) bool { return !s.Readme.HasLicense },
		},
		{
			Name: "license-file",
			Item: workflow.ActionItem{
				Priority: workflow.PriorityHigh,
				Category: "Legal/Compliance",
				Action:   "Add a LICENSE file to the repository",
				Impact:   "Required for others to legally use the code",
				Effort:   effortMinutes,
			},
			Match: func(s Signals) bool { return !s.Files.HasLicense },
		},
		{
			Name: "code-examples",
			Item: workflow.ActionItem{
				Priority: workflow.PriorityHigh,
				Category: "Documentation",
				Action:   "Add code examples demonstrating core functionality",
				Impact:   "Essential for user understanding",
				Effort:   effortMedium,
			},
			Match: func(s Signals) bool { return !s.Readme.HasCodeBlocks() },
		},
		{
			Name: "readme-length",
			Item: workflow.ActionItem{
				Priority: workflow.PriorityMedium,
				Category: "Documentation",
				Action:   "Expand the README beyond 300 words",
				Impact:   "Short READMEs leave key questions unanswered",
				Effort:   effortLow,
			},
			Match: func(s Signals) bool { return s.Readme.WordCount < 300 },
		},
		{
			Name: "badges",
			Item: workflow.ActionItem{
				Priority: workflow.PriorityMedium,
				Category: "Visual/Branding",
				Action:   "Add status badges (build, license, version)",
				Impact:   "Signals project health at a glance",
				Effort:   effortMinutes,
			},
			Match: func(s Signals) bool { return s.Readme.BadgeCount < 3 },
		},
		{
			Name: "tests",
			Item: workflow.ActionItem{
				Priority: workflow.PriorityMedium,
				Category: "Quality Assurance",
				Action:   "Create a test suite with basic coverage",
				Impact:   "Essential for production-ready code",
				Effort:   effortHigh,
			},
			Match: func(s Signals) bool { return !s.Files.HasTests },
		},
		{
			Name: "ci",
			Item: workflow.ActionItem{
				Priority: workflow.PriorityMedium,
				Category: "DevOps",
				Action:   "Set up a CI pipeline (GitHub Actions)",
				Impact:   "Automates testing and quality checks",
				Effort:   effortMedium,
			},
			Match: func(s Signals) bool { return !s.Files.HasCI },
		},
		{
			Name: "contributing",
			Item: workflow.ActionItem{
				Priority: workflow.PriorityMedium,
				Category: "Community",
				Action:   "Add a CONTRIBUTING.md file",
				Impact:   "Encourages community contributions",
				Effort:   effortLow,
			},
			Match: func(s Signals) bool { return !s.Files.HasContributing },
		},
		{
			Name: "images",
			Item: workflow.ActionItem{
				Priority: workflow.PriorityLow,
				Category: "Visual",
				Action:   "Add screenshots or a demo GIF",
				Impact:   "Shows the project working without running it",
				Effort:   effortMedium,
			},
			Match: func(s Signals) bool { return !s.Readme.HasImages() },
		},
		{
			Name: "table-of-contents",
			Item: workflow.ActionItem{
				Priority: workflow.PriorityLow,
				Category: "Navigation",
				Action:   "Add a table of contents to the README",
				Impact:   "Improves navigation in long documentation",
				Effort:   effortMinutes,
			},
			Match: func(s Signals) bool { return s.Readme.SectionCount() > 5 && !s.Readme.HasTOC },
		},
	}
}

func missingSectionRule(section, impact string) Rule {
	return Rule{
		Name: "section-" + section,
		Item: workflow.ActionItem{
			Priority: workflow.PriorityHigh,
			Category: "Documentation",
			Action:   fmt.Sprintf("Add '%s' section to the README", section),
			Impact:   impact,
			Effort:   effortLow,
		},
		Match: func(s Signals) bool { return !s.Readme.Has(section) },
	}
}

func validateRules(rules []Rule) error {
	for i, r := range rules {
		if r.Match == nil {
			return fmt.Errorf("rule %q has no matcher", r.Name)
		}
		if r.Item.Priority.Rank() > workflow.PriorityLow.Rank() {
			return fmt.Errorf("rule %q has unknown priority %q", r.Name, r.Item.Priority)
		}
		if i > 0 && r.Item.Priority.Rank() < rules[i-1].Item.Priority.Rank() {
			return fmt.Errorf("rule %q (%s) is declared after lower-priority rule %q", r.Name, r.Item.Priority, rules[i-1].Name)
		}
	}
	return nil
}

// actionItems evaluates rules in order, drops repeated actions, and keeps at
// most max items.
func actionItems(rules []Rule, s Signals, max int) []workflow.ActionItem {
	items := make([]workflow.ActionItem, 0, max)
	seen := make(map[string]bool)
	for _, r := range rules {
		if len(items) == max {
			break
		}
		if !r.Match(s) {
			continue
		}
		key := r.Item.Category + "\x00" + r.Item.Action
		if seen[key] {
			continue
		}
		seen[key] = true
		items = append(items, r.Item)
	}
	return items
}
