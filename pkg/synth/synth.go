// Package synth turns an accumulated workflow state into the final report.
// Everything here is pure: the same state always yields the same report.
package synth

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/zen-systems/drrepo/pkg/workflow"
)

// ErrUnusableInput is returned when the run has no subject to report on.
var ErrUnusableInput = errors.New("input identifier is empty")

// DefaultMaxActionItems bounds the action list.
const DefaultMaxActionItems = 10

// Synthesizer implements workflow.Synthesizer.
type Synthesizer struct {
	rubric   Rubric
	tiers    Tiers
	rules    []Rule
	maxItems int
}

var _ workflow.Synthesizer = (*Synthesizer)(nil)

// Option configures a Synthesizer.
type Option func(*Synthesizer)

func WithRubric(r Rubric) Option { return func(s *Synthesizer) { s.rubric = r } }

func WithTiers(t Tiers) Option { return func(s *Synthesizer) { s.tiers = t } }

func WithRules(r []Rule) Option { return func(s *Synthesizer) { s.rules = r } }

func WithMaxActionItems(n int) Option { return func(s *Synthesizer) { s.maxItems = n } }

// New builds a Synthesizer and validates its tables.
func New(opts ...Option) (*Synthesizer, error) {
	s := Default()
	for _, opt := range opts {
		opt(s)
	}
	if err := s.rubric.validate(); err != nil {
		return nil, fmt.Errorf("rubric: %w", err)
	}
	if err := s.tiers.validate(); err != nil {
		return nil, fmt.Errorf("tiers: %w", err)
	}
	if err := validateRules(s.rules); err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	if s.maxItems < 1 {
		return nil, fmt.Errorf("max action items must be positive, got %d", s.maxItems)
	}
	return s, nil
}

// Default returns a Synthesizer with the built-in tables.
func Default() *Synthesizer {
	return &Synthesizer{
		rubric:   DefaultRubric(),
		tiers:    DefaultTiers(),
		rules:    DefaultRules(),
		maxItems: DefaultMaxActionItems,
	}
}

// criticalSections are the missing sections counted as critical issues.
var criticalSections = map[string]bool{"Installation": true, "Usage": true, "License": true}

// Synthesize builds the report. Absent fields are defaulted; the only error
// is ErrUnusableInput.
func (s *Synthesizer) Synthesize(st *workflow.State) (*workflow.Report, error) {
	sig := SignalsOf(st)
	if sig.Subject == "" {
		return nil, ErrUnusableInput
	}

	score, breakdown := s.rubric.Score(sig)
	missing := sig.Missing()
	items := actionItems(s.rules, sig, s.maxItems)

	critical := 0
	for _, m := range missing {
		if criticalSections[m] {
			critical++
		}
	}

	return &workflow.Report{
		Subject:        sig.Subject,
		Repository:     repositorySummary(st),
		Score:          score,
		Tier:           s.tiers.Lookup(score),
		Breakdown:      breakdown,
		Missing:        missing,
		CriticalIssues: critical,
		Completeness:   completeness(sig),
		Checklist:      checklist(sig),
		ActionItems:    items,
		Effort:         estimateEffort(items),
		Metadata:       metadataSummary(st.MetadataRecommendations),
		Content:        workflow.ContentSummary{Improvements: st.ContentImprovements},
		Quality:        qualitySummary(st.QualityReviews),
		FactCheck:      factCheckSummary(st.FactChecks),
		Warnings:       st.Errors,
	}, nil
}

func repositorySummary(st *workflow.State) workflow.RepositorySummary {
	if st.Repo == nil {
		return workflow.RepositorySummary{
			Name:     path.Base(strings.TrimSuffix(st.Input.ID(), "/")),
			URL:      st.Input.ID(),
			Language: "Unknown",
		}
	}
	return workflow.RepositorySummary{
		Name:     st.Repo.Name,
		URL:      st.Repo.URL,
		Language: st.Repo.Language,
		Stars:    st.Repo.Stars,
	}
}

// completeness is the share of fourteen README and tree checks that pass,
// as a percentage.
func completeness(s Signals) float64 {
	checks := []bool{
		s.Readme.HasTitle,
		s.Readme.HasInstallation,
		s.Readme.HasUsage,
		s.Readme.HasExamples,
		s.Readme.HasCodeBlocks(),
		s.Readme.HasContributing,
		s.Readme.HasLicense,
		s.Readme.HasBadges(),
		s.Readme.WordCount > 300,
		s.Files.HasTests,
		s.Files.HasRequirements,
		s.Files.HasLicense,
		s.Files.HasCI,
		s.Files.HasContributing,
	}
	passed := 0
	for _, c := range checks {
		if c {
			passed++
		}
	}
	return float64(passed) / float64(len(checks)) * 100
}

func checklist(s Signals) []workflow.Check {
	return []workflow.Check{
		{Name: "readme", Passed: s.HasReadme && s.Readme.WordCount > 0},
		{Name: "tests", Passed: s.Files.HasTests},
		{Name: "ci", Passed: s.Files.HasCI},
		{Name: "license", Passed: s.LicensePresent()},
		{Name: "contributing", Passed: s.ContributingPresent()},
	}
}

// metadataSummary merges suggestions from every record; similar repositories
// come from the first record only.
func metadataSummary(recs []workflow.Finding) workflow.MetadataSummary {
	sum := workflow.MetadataSummary{Suggestions: []string{}, SimilarRepos: []string{}}
	seen := map[string]bool{}
	for _, r := range recs {
		for _, sg := range r.Suggestions {
			if !seen[sg] {
				seen[sg] = true
				sum.Suggestions = append(sum.Suggestions, sg)
			}
		}
	}
	if len(recs) > 0 && len(recs[0].Related) > 0 {
		sum.SimilarRepos = recs[0].Related
	}
	return sum
}

func qualitySummary(reviews []workflow.Finding) workflow.QualitySummary {
	sum := workflow.QualitySummary{Feedback: []string{}}
	for _, r := range reviews {
		if r.Summary != "" {
			sum.Feedback = append(sum.Feedback, r.Summary)
		}
		sum.Feedback = append(sum.Feedback, r.Suggestions...)
	}
	return sum
}

func factCheckSummary(checks []workflow.Finding) workflow.FactCheckSummary {
	var sum workflow.FactCheckSummary
	for _, f := range checks {
		for _, c := range f.Claims {
			sum.Checked++
			if c.Verified {
				sum.Verified++
			}
		}
	}
	return sum
}
