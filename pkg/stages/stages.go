// Package stages implements the five analysis stages of a documentation
// review and wires them to their external dependencies.
package stages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/zen-systems/drrepo/pkg/adapter"
	"github.com/zen-systems/drrepo/pkg/logging"
	"github.com/zen-systems/drrepo/pkg/readme"
	"github.com/zen-systems/drrepo/pkg/repo"
	"github.com/zen-systems/drrepo/pkg/retrieval"
	"github.com/zen-systems/drrepo/pkg/search"
	"github.com/zen-systems/drrepo/pkg/workflow"
)

// Stage names, in execution order.
const (
	AnalyzeRepo       = "analyze_repo"
	RecommendMetadata = "recommend_metadata"
	ImproveContent    = "improve_content"
	ReviewQuality     = "review_quality"
	CheckFacts        = "check_facts"
)

// MaxClaims bounds the claims check_facts verifies per run.
const MaxClaims = 5

// Deps are the collaborators shared by every stage.
type Deps struct {
	Fetcher  repo.Fetcher
	Reasoner adapter.Adapter
	Model    string
	// Search may be nil; search-backed context is then omitted.
	Search search.Searcher
	Guard  *Guard
	Logger *slog.Logger
}

// Pipeline returns the stages in execution order.
func Pipeline(d Deps) ([]workflow.Stage, error) {
	if d.Fetcher == nil {
		return nil, errors.New("stages: fetcher is required")
	}
	if d.Reasoner == nil {
		return nil, errors.New("stages: reasoner is required")
	}
	if d.Guard == nil {
		return nil, errors.New("stages: guard is required")
	}
	if d.Logger == nil {
		d.Logger = logging.New("stages")
	}
	r := &runner{Deps: d}
	return []workflow.Stage{
		workflow.StageFunc{
			StageName: AnalyzeRepo,
			Fields:    []workflow.Field{workflow.FieldRepo, workflow.FieldReadme, workflow.FieldAnalyses, workflow.FieldMessages},
			Fn:        r.analyzeRepo,
		},
		workflow.StageFunc{
			StageName: RecommendMetadata,
			Fields:    []workflow.Field{workflow.FieldMetadataRecommendations, workflow.FieldMessages},
			Fn:        r.recommendMetadata,
		},
		workflow.StageFunc{
			StageName: ImproveContent,
			Fields:    []workflow.Field{workflow.FieldContentImprovements, workflow.FieldMessages},
			Fn:        r.improveContent,
		},
		workflow.StageFunc{
			StageName: ReviewQuality,
			Fields:    []workflow.Field{workflow.FieldQualityReviews, workflow.FieldMessages},
			Fn:        r.reviewQuality,
		},
		workflow.StageFunc{
			StageName: CheckFacts,
			Fields:    []workflow.Field{workflow.FieldFactChecks, workflow.FieldMessages},
			Fn:        r.checkFacts,
		},
	}, nil
}

type runner struct {
	Deps
}

func (r *runner) analyzeRepo(ctx context.Context, s *workflow.State) (workflow.Update, error) {
	snap, err := Call(ctx, r.Guard, DepGitHub, func(ctx context.Context) (*repo.Snapshot, error) {
		return r.Fetcher.Fetch(ctx, s.Input.ID())
	})
	if err != nil {
		return workflow.Update{}, fmt.Errorf("fetch repository: %w", err)
	}
	analysis := readme.Analyze(snap.Readme)

	reply, msgs, err := r.ask(ctx, analystRole, analysisPrompt(snap, analysis))
	if err != nil {
		return workflow.Update{}, err
	}
	return workflow.Update{
		Repo:   snap,
		Readme: analysis,
		Analyses: []workflow.Finding{{
			Category: "Repository Health",
			Summary:  reply,
			Checks:   fileChecks(snap.Files),
		}},
		Messages: msgs,
	}, nil
}

func (r *runner) recommendMetadata(ctx context.Context, s *workflow.State) (workflow.Update, error) {
	snap := snapshotOf(s)
	description := snap.Description
	if s.Input.Description != "" {
		description = s.Input.Description
	}
	similar := r.searchOrEmpty(ctx, "similar repositories", func(ctx context.Context) ([]search.Result, error) {
		return r.Search.SimilarRepositories(ctx, snap.Language, description)
	})
	if len(similar) > 3 {
		similar = similar[:3]
	}

	reply, msgs, err := r.ask(ctx, metadataRole, metadataPrompt(snap, description, similar))
	if err != nil {
		return workflow.Update{}, err
	}
	related := make([]string, 0, len(similar))
	for _, res := range similar {
		related = append(related, res.URL)
	}
	return workflow.Update{
		MetadataRecommendations: []workflow.Finding{{
			Category:    "Discoverability",
			Priority:    workflow.PriorityHigh,
			Summary:     reply,
			Suggestions: bulletLines(reply, 8),
			Related:     related,
		}},
		Messages: msgs,
	}, nil
}

func (r *runner) improveContent(ctx context.Context, s *workflow.State) (workflow.Update, error) {
	snap := snapshotOf(s)
	analysis := analysisOf(s)
	practices := r.searchOrEmpty(ctx, "best practices", func(ctx context.Context) ([]search.Result, error) {
		return r.Search.BestPractices(ctx)
	})
	auto := analysis.Suggest()

	reply, msgs, err := r.ask(ctx, editorRole, contentPrompt(snap, analysis, auto, practices))
	if err != nil {
		return workflow.Update{}, err
	}
	suggestions := make([]string, 0, len(auto))
	for _, sg := range auto {
		suggestions = append(suggestions, sg.Text)
	}
	return workflow.Update{
		ContentImprovements: []workflow.Finding{{
			Category:    "Documentation",
			Priority:    workflow.PriorityHigh,
			Summary:     reply,
			Suggestions: append(suggestions, bulletLines(reply, 8)...),
		}},
		Messages: msgs,
	}, nil
}

func (r *runner) reviewQuality(ctx context.Context, s *workflow.State) (workflow.Update, error) {
	snap := snapshotOf(s)
	analysis := analysisOf(s)

	reply, msgs, err := r.ask(ctx, reviewerRole, reviewPrompt(snap, analysis, s))
	if err != nil {
		return workflow.Update{}, err
	}
	checks := fileChecks(snap.Files)
	for _, section := range readme.Checklist {
		checks["readme_"+strings.ToLower(section)] = analysis.Has(section)
	}
	return workflow.Update{
		QualityReviews: []workflow.Finding{{
			Category:    "Quality Assurance",
			Priority:    workflow.PriorityMedium,
			Summary:     reply,
			Suggestions: bulletLines(reply, 5),
			Checks:      checks,
		}},
		Messages: msgs,
	}, nil
}

func (r *runner) checkFacts(ctx context.Context, s *workflow.State) (workflow.Update, error) {
	snap := snapshotOf(s)
	claims := ExtractClaims(snap.Readme, snap.Language)
	verdicts := retrieval.VerifyClaims(snap.Readme, claims)

	out := make([]workflow.Claim, 0, len(verdicts))
	for _, v := range verdicts {
		out = append(out, workflow.Claim{Text: v.Claim, Verified: v.Found, Evidence: truncate(v.Evidence, 300)})
	}

	reply, msgs, err := r.ask(ctx, factCheckerRole, factCheckPrompt(snap, out))
	if err != nil {
		return workflow.Update{}, err
	}
	return workflow.Update{
		FactChecks: []workflow.Finding{{
			Category: "Accuracy",
			Priority: workflow.PriorityMedium,
			Summary:  reply,
			Claims:   out,
		}},
		Messages: msgs,
	}, nil
}

// ask sends one prompt through the reasoning breaker and records the
// exchange.
func (r *runner) ask(ctx context.Context, role, prompt string) (string, []workflow.Message, error) {
	full := role + "\n\n" + prompt
	resp, err := Call(ctx, r.Guard, DepReasoning, func(ctx context.Context) (*adapter.Response, error) {
		return r.Reasoner.Generate(ctx, r.Model, full)
	})
	if err != nil {
		return "", nil, fmt.Errorf("reasoning service: %w", err)
	}
	reply := strings.TrimSpace(resp.Content)
	answer := workflow.Message{Role: "assistant", Content: reply}
	if u := resp.Usage; u != nil {
		answer.PromptTokens = u.PromptTokens
		answer.CompletionTokens = u.CompletionTokens
	}
	return reply, []workflow.Message{
		{Role: "user", Content: prompt},
		answer,
	}, nil
}

// searchOrEmpty degrades every search failure, including an open breaker,
// to no results.
func (r *runner) searchOrEmpty(ctx context.Context, what string, fn func(ctx context.Context) ([]search.Result, error)) []search.Result {
	if r.Search == nil {
		return nil
	}
	results, err := Call(ctx, r.Guard, DepSearch, fn)
	if err != nil {
		r.Logger.Warn("search unavailable, continuing without results", "query", what, "error", err)
		return nil
	}
	return results
}

// snapshotOf returns the fetched repository or a placeholder derived from
// the input URL.
func snapshotOf(s *workflow.State) *repo.Snapshot {
	if s.Repo != nil {
		return s.Repo
	}
	id := s.Input.ID()
	return &repo.Snapshot{
		Name:        path.Base(id),
		URL:         id,
		Description: s.Input.Description,
		Language:    "Unknown",
	}
}

func analysisOf(s *workflow.State) *readme.Analysis {
	if s.Readme != nil {
		return s.Readme
	}
	return readme.Analyze("")
}

func fileChecks(fs repo.FileStructure) map[string]bool {
	return map[string]bool{
		"has_tests":        fs.HasTests,
		"has_ci":           fs.HasCI,
		"has_docs":         fs.HasDocs,
		"has_license":      fs.HasLicense,
		"has_contributing": fs.HasContributing,
		"has_changelog":    fs.HasChangelog,
		"has_requirements": fs.HasRequirements,
	}
}

var claimPatterns = []struct {
	claim string
	words []string
}{
	{"stated features exist", []string{"features"}},
	{"performance optimization claims", []string{"fast", "efficient", "optimized"}},
	{"compatibility and support claims", []string{"supports", "compatible"}},
	{"package installation availability", []string{"pip install", "npm install", "go get", "go install", "cargo install", "cargo add"}},
}

// ExtractClaims picks the verifiable statements a README makes, at most
// MaxClaims of them.
func ExtractClaims(content, language string) []string {
	lower := strings.ToLower(content)
	var claims []string
	if strings.Contains(lower, "features") {
		claims = append(claims, claimPatterns[0].claim)
	}
	if language != "" && language != "Unknown" {
		claims = append(claims, language+" implementation")
	}
	for _, p := range claimPatterns[1:] {
		for _, w := range p.words {
			if strings.Contains(lower, w) {
				claims = append(claims, p.claim)
				break
			}
		}
	}
	if len(claims) > MaxClaims {
		claims = claims[:MaxClaims]
	}
	return claims
}

// bulletLines extracts list items from a model reply.
func bulletLines(text string, max int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		item, ok := stripMarker(line)
		if !ok {
			continue
		}
		item = strings.TrimSpace(strings.ReplaceAll(item, "**", ""))
		if item == "" {
			continue
		}
		out = append(out, item)
		if len(out) == max {
			break
		}
	}
	return out
}

func stripMarker(line string) (string, bool) {
	for _, m := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, m) {
			return line[len(m):], true
		}
	}
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i+1 < len(line) && (line[i] == '.' || line[i] == ')') && line[i+1] == ' ' {
		return line[i+2:], true
	}
	return "", false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
