package readme

import "fmt"

// Suggestion is a mechanical improvement derived from an Analysis.
type Suggestion struct {
	Category string `json:"category"`
	Priority string `json:"priority"`
	Text     string `json:"suggestion"`
	Example  string `json:"example,omitempty"`
}

// Suggest lists improvements in a fixed order: title, missing sections,
// badges, code examples, images, table of contents.
func (a *Analysis) Suggest() []Suggestion {
	var out []Suggestion
	if !a.HasTitle {
		out = append(out, Suggestion{
			Category: "Structure",
			Priority: "High",
			Text:     "Add a clear, descriptive title using # heading",
			Example:  "# Project Name - Brief Description",
		})
	}
	for _, missing := range a.MissingSections() {
		priority := "Medium"
		if missing == Installation || missing == Usage {
			priority = "High"
		}
		out = append(out, Suggestion{
			Category: "Completeness",
			Priority: priority,
			Text:     fmt.Sprintf("Add '%s' section", missing),
			Example:  fmt.Sprintf("## %s", missing),
		})
	}
	if a.BadgeCount < 3 {
		out = append(out, Suggestion{
			Category: "Visual",
			Priority: "Medium",
			Text:     "Add badges for build status, license, and version",
			Example:  "![Build](https://img.shields.io/badge/build-passing-brightgreen)",
		})
	}
	if !a.HasCodeBlocks() {
		out = append(out, Suggestion{
			Category: "Content",
			Priority: "High",
			Text:     "Add code examples demonstrating usage",
		})
	}
	if !a.HasImages() {
		out = append(out, Suggestion{
			Category: "Visual",
			Priority: "Medium",
			Text:     "Add screenshots or diagrams to illustrate functionality",
			Example:  "![Demo](./docs/images/demo.png)",
		})
	}
	if a.SectionCount() > 5 && !a.HasTOC {
		out = append(out, Suggestion{
			Category: "Structure",
			Priority: "Medium",
			Text:     "Add a table of contents for better navigation",
		})
	}
	return out
}
