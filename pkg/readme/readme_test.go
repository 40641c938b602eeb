package readme

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

const fullReadme = "# Widget\n\n" +
	"A small library that turns gadgets into widgets with a single call.\n\n" +
	"[![Build](https://img.shields.io/badge/build-passing-green)](https://ci.example.com)\n" +
	"![Logo](docs/logo.png)\n\n" +
	"## Table of Contents\n\n- [Installation](#installation)\n- [Usage](#usage)\n\n" +
	"## Installation\n\n```bash\ngo get example.com/widget\n```\n\n" +
	"## Usage\n\n```go\nw := widget.New()\n```\n\n" +
	"## Examples\n\n1. First example\n\n" +
	"## Documentation\n\nSee the [docs](https://example.com/docs).\n\n" +
	"### Configuration\n\n| key | value |\n|-----|-------|\n\n" +
	"## Testing\n\n> run the suite\n\n" +
	"## Contributing\n\nPRs welcome.\n\n" +
	"## License\n\nMIT\n"

func TestAnalyzeFullReadme(t *testing.T) {
	a := Analyze(fullReadme)

	if !a.HasTitle || a.Title != "Widget" {
		t.Errorf("title = %q (has=%v)", a.Title, a.HasTitle)
	}
	wantSections := []string{"Table of Contents", "Installation", "Usage", "Examples", "Documentation", "Testing", "Contributing", "License"}
	if diff := cmp.Diff(wantSections, a.Sections); diff != "" {
		t.Errorf("sections mismatch (-want +got):\n%s", diff)
	}
	if a.H3Count != 1 {
		t.Errorf("H3Count = %d, want 1", a.H3Count)
	}
	if missing := a.MissingSections(); len(missing) != 0 {
		t.Errorf("expected no missing sections, got %v", missing)
	}
	if a.CodeBlockCount != 2 {
		t.Errorf("CodeBlockCount = %d, want 2", a.CodeBlockCount)
	}
	if diff := cmp.Diff([]string{"bash", "go"}, a.CodeLanguages); diff != "" {
		t.Errorf("languages mismatch (-want +got):\n%s", diff)
	}
	if a.BadgeCount == 0 || a.ImageCount != 1 {
		t.Errorf("badges=%d images=%d", a.BadgeCount, a.ImageCount)
	}
	if !a.HasTOC || !a.HasTables || !a.HasLists || !a.HasNumberedLists || !a.HasBlockquotes || !a.HasConfiguration {
		t.Errorf("formatting signals missing: %+v", a)
	}
	if a.ExternalLinkCount != 2 {
		t.Errorf("ExternalLinkCount = %d, want 2", a.ExternalLinkCount)
	}
	if a.DescriptionWords != 14 {
		t.Errorf("DescriptionWords = %d, want 14", a.DescriptionWords)
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	a := Analyze("")
	if a.HasTitle || a.WordCount != 0 || a.LineCount != 0 || a.SectionCount() != 0 {
		t.Errorf("expected zero analysis, got %+v", a)
	}
	if diff := cmp.Diff(Checklist, a.MissingSections()); diff != "" {
		t.Errorf("missing mismatch (-want +got):\n%s", diff)
	}
}

func TestMissingSectionsKeepsChecklistOrder(t *testing.T) {
	a := Analyze("# Tool\n\n## License\n\nMIT\n\n## Examples\n\nnone\n\n## Setup\n\nrun it\n")
	want := []string{Usage, Documentation, Testing, Contributing}
	if diff := cmp.Diff(want, a.MissingSections()); diff != "" {
		t.Errorf("missing mismatch (-want +got):\n%s", diff)
	}
}

func TestSectionKeywordsAreCaseInsensitive(t *testing.T) {
	a := Analyze("## GETTING STARTED\n\n### how to use\n")
	if !a.HasInstallation || !a.HasUsage {
		t.Errorf("installation=%v usage=%v", a.HasInstallation, a.HasUsage)
	}
	if a.HasTitle {
		t.Error("H2 must not count as title")
	}
}

func TestTitleIgnoresCarriageReturn(t *testing.T) {
	a := Analyze("# Widget  \r\n\r\nText\r\n")
	if a.Title != "Widget" {
		t.Errorf("Title = %q", a.Title)
	}
}

func TestSuggest(t *testing.T) {
	texts := func(ss []Suggestion) []string {
		var out []string
		for _, s := range ss {
			out = append(out, s.Text)
		}
		return out
	}

	full := Analyze(fullReadme).Suggest()
	if diff := cmp.Diff([]string{"Add badges for build status, license, and version"}, texts(full)); diff != "" {
		t.Errorf("full README suggestions mismatch (-want +got):\n%s", diff)
	}

	empty := Analyze("").Suggest()
	if len(empty) != 11 {
		t.Fatalf("got %d suggestions for empty README, want 11: %v", len(empty), texts(empty))
	}
	if empty[0].Category != "Structure" || empty[1].Text != "Add 'Installation' section" || empty[1].Priority != "High" {
		t.Errorf("unexpected leading suggestions: %+v", empty[:2])
	}
	if empty[3].Priority != "Medium" {
		t.Errorf("Examples suggestion priority = %q, want Medium", empty[3].Priority)
	}
}
