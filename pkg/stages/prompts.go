package stages

import (
	"fmt"
	"strings"

	"github.com/zen-systems/drrepo/pkg/readme"
	"github.com/zen-systems/drrepo/pkg/repo"
	"github.com/zen-systems/drrepo/pkg/search"
	"github.com/zen-systems/drrepo/pkg/workflow"
)

const (
	analystRole     = "You are a repository analyst. Assess repository health and documentation quality from the facts given. Be factual and concise."
	metadataRole    = "You are a discoverability specialist. Recommend repository names, descriptions, topics and keywords that help people find the project."
	editorRole      = "You are a technical writer. Recommend concrete README improvements with examples."
	reviewerRole    = "You are a strict reviewer. Score the documentation and list the most important issues and quick wins."
	factCheckerRole = "You are a fact checker. Summarize which README claims are backed by evidence and which are not."
)

func analysisPrompt(snap *repo.Snapshot, a *readme.Analysis) string {
	var b strings.Builder
	b.WriteString("Analyze this GitHub repository:\n\n")
	writeRepoFacts(&b, snap)
	writeReadmeFacts(&b, a)
	fmt.Fprintf(&b, "\nFile structure:\n- Has tests: %t\n- Has CI/CD: %t\n- Has documentation: %t\n",
		snap.Files.HasTests, snap.Files.HasCI, snap.Files.HasDocs)
	b.WriteString("\nCover repository health, documentation quality, project maturity, key strengths and improvement areas.")
	return b.String()
}

func metadataPrompt(snap *repo.Snapshot, description string, similar []search.Result) string {
	var b strings.Builder
	b.WriteString("Suggest metadata improvements for this repository:\n\n")
	fmt.Fprintf(&b, "- Name: %s\n- Description: %s\n- Topics: %s\n- Language: %s\n- Stars: %d\n",
		snap.Name, orNone(description), orNone(strings.Join(snap.Topics, ", ")), snap.Language, snap.Stars)
	if len(similar) > 0 {
		b.WriteString("\nSimilar successful repositories:\n")
		for _, s := range similar {
			fmt.Fprintf(&b, "- %s (%s)\n", s.Title, s.URL)
		}
	}
	b.WriteString("\nRecommend a clearer name if needed, a 1-2 sentence description, 5-8 topics, 5 search keywords and a tagline of at most 10 words. Use a bulleted list.")
	return b.String()
}

func contentPrompt(snap *repo.Snapshot, a *readme.Analysis, auto []readme.Suggestion, practices []search.Result) string {
	var b strings.Builder
	b.WriteString("Suggest content improvements for this README:\n\n")
	writeReadmeFacts(&b, a)
	fmt.Fprintf(&b, "- Badges: %d\n- Missing: %s\n", a.BadgeCount, orNone(strings.Join(a.MissingSections(), ", ")))
	if preview := truncate(snap.Readme, 600); preview != "" {
		fmt.Fprintf(&b, "\nREADME preview:\n%s\n", preview)
	}
	if len(auto) > 0 {
		b.WriteString("\nAutomated suggestions:\n")
		for i, s := range auto {
			if i == 5 {
				break
			}
			fmt.Fprintf(&b, "- %s\n", s.Text)
		}
	}
	if len(practices) > 0 {
		b.WriteString("\nBest practice references:\n")
		for i, p := range practices {
			if i == 3 {
				break
			}
			fmt.Fprintf(&b, "- %s\n", p.Title)
		}
	}
	b.WriteString("\nCover title and tagline, introduction, missing sections, visual enhancements, code examples, structure and three quick wins. Use a bulleted list.")
	return b.String()
}

func reviewPrompt(snap *repo.Snapshot, a *readme.Analysis, s *workflow.State) string {
	var b strings.Builder
	b.WriteString("Perform a quality review of this repository:\n\n")
	writeRepoFacts(&b, snap)
	writeReadmeFacts(&b, a)
	fmt.Fprintf(&b, "- Missing sections: %s\n", orNone(strings.Join(a.MissingSections(), ", ")))
	fmt.Fprintf(&b, "\nProject structure:\n- Has tests: %t\n- Has CI/CD: %t\n- Has docs: %t\n- Has license: %t\n",
		snap.Files.HasTests, snap.Files.HasCI, snap.Files.HasDocs, snap.License != "" || snap.Files.HasLicense)

	for _, group := range []struct {
		title    string
		findings []workflow.Finding
	}{
		{"Analysis", s.Analyses},
		{"Metadata recommendations", s.MetadataRecommendations},
		{"Content improvements", s.ContentImprovements},
	} {
		if len(group.findings) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s:\n", group.title)
		for _, f := range group.findings {
			fmt.Fprintf(&b, "%s\n", truncate(f.Summary, 400))
		}
	}
	b.WriteString("\nScore completeness, clarity, professionalism and discoverability (0-25 each). List the top 3 critical issues and top 3 quick wins as bullets.")
	return b.String()
}

func factCheckPrompt(snap *repo.Snapshot, claims []workflow.Claim) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fact-check the README claims of %s:\n\n", snap.Name)
	if len(claims) == 0 {
		b.WriteString("No verifiable claims were found.\n")
	}
	for _, c := range claims {
		mark := "not verified"
		if c.Verified {
			mark = "verified"
		}
		fmt.Fprintf(&b, "- %s: %s\n", c.Text, mark)
	}
	b.WriteString("\nSummarize the accuracy of the documentation and what should be substantiated.")
	return b.String()
}

func writeRepoFacts(b *strings.Builder, snap *repo.Snapshot) {
	fmt.Fprintf(b, "Repository:\n- Name: %s\n- Description: %s\n- Language: %s\n- Stars: %d\n- Forks: %d\n- Topics: %s\n- License: %s\n",
		snap.Name, orNone(snap.Description), snap.Language, snap.Stars, snap.Forks,
		orNone(strings.Join(snap.Topics, ", ")), orNone(snap.License))
	if !snap.UpdatedAt.IsZero() {
		fmt.Fprintf(b, "- Last updated: %s\n", snap.UpdatedAt.Format("2006-01-02"))
	}
}

func writeReadmeFacts(b *strings.Builder, a *readme.Analysis) {
	fmt.Fprintf(b, "\nREADME:\n- Word count: %d\n- Sections: %d\n- Code examples: %d\n- Images: %d\n",
		a.WordCount, a.SectionCount(), a.CodeBlockCount, a.ImageCount)
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "None"
	}
	return s
}
