// Package readme extracts structural and content signals from Markdown.
package readme

import (
	"regexp"
	"sort"
	"strings"
)

// Analysis holds the signals found in one README.
type Analysis struct {
	HasTitle  bool     `json:"has_main_title"`
	Title     string   `json:"title,omitempty"`
	H2Count   int      `json:"headers_h2"`
	H3Count   int      `json:"headers_h3"`
	Sections  []string `json:"sections"`
	WordCount int      `json:"word_count"`
	CharCount int      `json:"char_count"`
	LineCount int      `json:"line_count"`

	HasInstallation  bool `json:"has_installation"`
	HasUsage         bool `json:"has_usage"`
	HasExamples      bool `json:"has_examples"`
	HasDocumentation bool `json:"has_documentation"`
	HasTesting       bool `json:"has_testing"`
	HasContributing  bool `json:"has_contributing"`
	HasLicense       bool `json:"has_license"`

	DescriptionWords   int  `json:"description_length"`
	HasPrerequisites   bool `json:"has_prerequisites"`
	HasQuickstart      bool `json:"has_quickstart"`
	HasTroubleshooting bool `json:"has_troubleshooting"`
	HasConfiguration   bool `json:"has_configuration"`

	BadgeCount        int      `json:"badge_count"`
	ImageCount        int      `json:"image_count"`
	HasLogo           bool     `json:"has_logo"`
	HasScreenshot     bool     `json:"has_screenshot"`
	HasDemo           bool     `json:"has_demo_gif"`
	CodeBlockCount    int      `json:"code_block_count"`
	CodeLanguages     []string `json:"code_languages"`
	HasTables         bool     `json:"has_tables"`
	HasLists          bool     `json:"has_lists"`
	HasNumberedLists  bool     `json:"has_numbered_lists"`
	HasBlockquotes    bool     `json:"has_blockquotes"`
	HasLinks          bool     `json:"has_links"`
	ExternalLinkCount int      `json:"external_link_count"`
	HasTOC            bool     `json:"has_table_of_contents"`
}

// Essential section names in checklist order.
const (
	Installation  = "Installation"
	Usage         = "Usage"
	Examples      = "Examples"
	Documentation = "Documentation"
	Testing       = "Testing"
	Contributing  = "Contributing"
	License       = "License"
)

// Checklist is the fixed order in which missing sections are reported.
var Checklist = []string{Installation, Usage, Examples, Documentation, Testing, Contributing, License}

var sectionPatterns = map[string]*regexp.Regexp{
	Installation:  headingPattern("installation", "setup", "getting started", "quick start"),
	Usage:         headingPattern("usage", "how to use", "basic usage"),
	Examples:      headingPattern("examples", "example", "demo"),
	Documentation: headingPattern("documentation", "docs", "api reference"),
	Testing:       headingPattern("testing", "tests", "running tests"),
	Contributing:  headingPattern("contributing", "contribution guidelines"),
	License:       headingPattern("license", "licensing"),
}

func headingPattern(keywords ...string) *regexp.Regexp {
	quoted := make([]string, len(keywords))
	for i, k := range keywords {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return regexp.MustCompile(`(?im)^#{2,}[ \t]*(?:` + strings.Join(quoted, "|") + `)`)
}

var (
	titleRe      = regexp.MustCompile(`(?m)^#[ \t]+(.+?)[ \t]*\r?$`)
	h2Re         = regexp.MustCompile(`(?m)^##[ \t]+(.+?)[ \t]*\r?$`)
	h3Re         = regexp.MustCompile(`(?m)^###[ \t]+.+`)
	prereqRe     = regexp.MustCompile(`(?i)prerequisite|requirement|before you begin`)
	quickstartRe = regexp.MustCompile(`(?i)quick\s*start|getting\s*started|tldr`)
	troubleRe    = regexp.MustCompile(`(?i)troubleshoot|common\s*issue|faq`)
	configRe     = regexp.MustCompile(`(?i)configuration|config|environment`)

	badgeRes = []*regexp.Regexp{
		regexp.MustCompile(`!\[[^\]]*\]\(https://img\.shields\.io`),
		regexp.MustCompile(`!\[[^\]]*\]\(https://badge`),
		regexp.MustCompile(`\[!\[[^\]]*\]\([^)]*\)\]\([^)]*\)`),
	}
	imageRe      = regexp.MustCompile(`(?i)!\[[^\]]*\]\([^)]*\.(?:png|jpe?g|gif|svg|webp)`)
	logoRe       = regexp.MustCompile(`(?i)logo`)
	screenshotRe = regexp.MustCompile(`(?i)screenshot`)
	demoRe       = regexp.MustCompile(`(?i)\.(?:gif|mp4)`)
	codeBlockRe  = regexp.MustCompile("(?s)```([\\w+#.-]*)[^\\n]*\\n.*?```")
	tableRe      = regexp.MustCompile(`\|.*\|.*\|`)
	listRe       = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	numberedRe   = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
	quoteRe      = regexp.MustCompile(`(?m)^>\s+`)
	linkRe       = regexp.MustCompile(`\[[^\]]*\]\([^)]*\)`)
	externalRe   = regexp.MustCompile(`\[[^\]]*\]\(https?://[^)]*\)`)
	tocRe        = regexp.MustCompile(`(?i)table\s+of\s+contents|\btoc\b|\bcontents\b`)
)

// Analyze extracts signals from Markdown content. It never fails; empty
// content yields a zero Analysis with every essential section missing.
func Analyze(content string) *Analysis {
	a := &Analysis{
		WordCount: len(strings.Fields(content)),
		CharCount: len(content),
		LineCount: strings.Count(content, "\n") + 1,
		H3Count:   len(h3Re.FindAllString(content, -1)),
	}
	if content == "" {
		a.LineCount = 0
	}

	if m := titleRe.FindStringSubmatch(content); m != nil {
		a.HasTitle = true
		a.Title = m[1]
	}
	for _, m := range h2Re.FindAllStringSubmatch(content, -1) {
		a.Sections = append(a.Sections, m[1])
	}
	a.H2Count = len(a.Sections)

	a.HasInstallation = sectionPatterns[Installation].MatchString(content)
	a.HasUsage = sectionPatterns[Usage].MatchString(content)
	a.HasExamples = sectionPatterns[Examples].MatchString(content)
	a.HasDocumentation = sectionPatterns[Documentation].MatchString(content)
	a.HasTesting = sectionPatterns[Testing].MatchString(content)
	a.HasContributing = sectionPatterns[Contributing].MatchString(content)
	a.HasLicense = sectionPatterns[License].MatchString(content)

	a.DescriptionWords = descriptionWords(content)
	a.HasPrerequisites = prereqRe.MatchString(content)
	a.HasQuickstart = quickstartRe.MatchString(content)
	a.HasTroubleshooting = troubleRe.MatchString(content)
	a.HasConfiguration = configRe.MatchString(content)

	for _, re := range badgeRes {
		a.BadgeCount += len(re.FindAllStringIndex(content, -1))
	}
	a.ImageCount = len(imageRe.FindAllStringIndex(content, -1))
	a.HasLogo = logoRe.MatchString(content)
	a.HasScreenshot = screenshotRe.MatchString(content)
	a.HasDemo = demoRe.MatchString(content)

	langs := map[string]bool{}
	for _, m := range codeBlockRe.FindAllStringSubmatch(content, -1) {
		a.CodeBlockCount++
		if m[1] != "" {
			langs[strings.ToLower(m[1])] = true
		}
	}
	for l := range langs {
		a.CodeLanguages = append(a.CodeLanguages, l)
	}
	sort.Strings(a.CodeLanguages)

	a.HasTables = tableRe.MatchString(content)
	a.HasLists = listRe.MatchString(content)
	a.HasNumberedLists = numberedRe.MatchString(content)
	a.HasBlockquotes = quoteRe.MatchString(content)
	a.HasLinks = linkRe.MatchString(content)
	a.ExternalLinkCount = len(externalRe.FindAllStringIndex(content, -1))
	a.HasTOC = tocRe.MatchString(content)
	return a
}

// descriptionWords counts words between the title and the first H2.
func descriptionWords(content string) int {
	loc := titleRe.FindStringIndex(content)
	if loc == nil {
		return 0
	}
	rest := content[loc[1]:]
	if !strings.HasPrefix(rest, "\n\n") {
		return 0
	}
	rest = rest[2:]
	if i := strings.Index(rest, "\n##"); i >= 0 {
		rest = rest[:i]
	}
	return len(strings.Fields(rest))
}

// SectionCount is the number of H2 sections.
func (a *Analysis) SectionCount() int { return len(a.Sections) }

// HasBadges reports whether any badge was found.
func (a *Analysis) HasBadges() bool { return a.BadgeCount > 0 }

// HasImages reports whether any image was found.
func (a *Analysis) HasImages() bool { return a.ImageCount > 0 }

// HasCodeBlocks reports whether any fenced code block was found.
func (a *Analysis) HasCodeBlocks() bool { return a.CodeBlockCount > 0 }

// Has reports whether the named essential section is present.
func (a *Analysis) Has(section string) bool {
	switch section {
	case Installation:
		return a.HasInstallation
	case Usage:
		return a.HasUsage
	case Examples:
		return a.HasExamples
	case Documentation:
		return a.HasDocumentation
	case Testing:
		return a.HasTesting
	case Contributing:
		return a.HasContributing
	case License:
		return a.HasLicense
	}
	return false
}

// MissingSections lists absent essential sections in Checklist order.
func (a *Analysis) MissingSections() []string {
	var missing []string
	for _, s := range Checklist {
		if !a.Has(s) {
			missing = append(missing, s)
		}
	}
	return missing
}
