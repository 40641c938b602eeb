// Package workflow runs a fixed chain of analysis stages over one input,
// merging each stage's partial output into a shared State under per-field
// merge policies, and finishes every run with a synthesis step.
package workflow

import (
	"slices"
	"strings"

	"github.com/zen-systems/drrepo/pkg/readme"
	"github.com/zen-systems/drrepo/pkg/repo"
)

// Input is the subject of a run. It does not change once the run starts.
type Input struct {
	RepoURL     string `json:"repo_url"`
	Description string `json:"description,omitempty"`
}

// MaxDescriptionRunes caps the free-text description carried into prompts
// and search queries.
const MaxDescriptionRunes = 500

// Normalized returns a copy with the description trimmed and capped at
// MaxDescriptionRunes, with "..." marking a cut.
func (in Input) Normalized() Input {
	d := strings.TrimSpace(in.Description)
	if r := []rune(d); len(r) > MaxDescriptionRunes {
		d = string(r[:MaxDescriptionRunes]) + "..."
	}
	in.Description = d
	return in
}

// ID returns the identifier the synthesizer requires.
func (in Input) ID() string {
	return strings.TrimSpace(in.RepoURL)
}

// Status is the lifecycle position of a run.
type Status string

const (
	StatusPending             Status = "pending"
	StatusRunning             Status = "running"
	StatusCompleted           Status = "completed"
	StatusCompletedWithErrors Status = "completed_with_errors"
	StatusFailed              Status = "failed"
)

// Terminal reports whether no further merges are accepted.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithErrors, StatusFailed:
		return true
	}
	return false
}

// Finding is one record produced by a stage.
type Finding struct {
	Stage       string          `json:"stage"`
	Category    string          `json:"category,omitempty"`
	Priority    Priority        `json:"priority,omitempty"`
	Summary     string          `json:"summary"`
	Suggestions []string        `json:"suggestions,omitempty"`
	Related     []string        `json:"related,omitempty"`
	Checks      map[string]bool `json:"checks,omitempty"`
	Claims      []Claim         `json:"claims,omitempty"`
}

// Claim is a README statement and whether retrieved evidence supports it.
type Claim struct {
	Text     string `json:"text"`
	Verified bool   `json:"verified"`
	Evidence string `json:"evidence,omitempty"`
}

// Message records one exchange with the reasoning service. Assistant
// messages carry the token usage the service reported.
type Message struct {
	Stage            string `json:"stage"`
	Role             string `json:"role"`
	Content          string `json:"content"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
}

// TokenCount totals reasoning-service usage.
type TokenCount struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// CountTokens sums the usage recorded on msgs.
func CountTokens(msgs []Message) TokenCount {
	var c TokenCount
	for _, m := range msgs {
		c.Prompt += m.PromptTokens
		c.Completion += m.CompletionTokens
	}
	c.Total = c.Prompt + c.Completion
	return c
}

// StageError is one entry of the error log.
type StageError struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// State is the accumulator threaded through a run.
type State struct {
	Input Input `json:"input"`

	CurrentStage string           `json:"current_stage"`
	Status       Status           `json:"status"`
	Repo         *repo.Snapshot   `json:"repo,omitempty"`
	Readme       *readme.Analysis `json:"readme,omitempty"`
	Report       *Report          `json:"report,omitempty"`

	Analyses                []Finding `json:"analyses"`
	MetadataRecommendations []Finding `json:"metadata_recommendations"`
	ContentImprovements     []Finding `json:"content_improvements"`
	QualityReviews          []Finding `json:"quality_reviews"`
	FactChecks              []Finding `json:"fact_checks"`
	Messages                []Message `json:"messages"`

	Errors []StageError `json:"errors"`
}

// NewState returns a pending state with empty accumulators.
func NewState(in Input) *State {
	return &State{
		Input:  in,
		Status: StatusPending,
	}
}

// Field names one State field.
type Field string

const (
	FieldCurrentStage            Field = "current_stage"
	FieldStatus                  Field = "status"
	FieldRepo                    Field = "repo"
	FieldReadme                  Field = "readme"
	FieldReport                  Field = "report"
	FieldAnalyses                Field = "analyses"
	FieldMetadataRecommendations Field = "metadata_recommendations"
	FieldContentImprovements     Field = "content_improvements"
	FieldQualityReviews          Field = "quality_reviews"
	FieldFactChecks              Field = "fact_checks"
	FieldMessages                Field = "messages"
	FieldErrors                  Field = "errors"
)

// Policy is how incoming writes to a field combine with its current value.
type Policy int

const (
	LastWriteWins Policy = iota
	Append
)

func (p Policy) String() string {
	if p == Append {
		return "append"
	}
	return "last_write_wins"
}

// FieldSpec pairs a field with its merge policy.
type FieldSpec struct {
	Field  Field
	Policy Policy
}

// Schema is the merge policy of every State field, in merge order.
var Schema = []FieldSpec{
	{FieldCurrentStage, LastWriteWins},
	{FieldStatus, LastWriteWins},
	{FieldRepo, LastWriteWins},
	{FieldReadme, LastWriteWins},
	{FieldReport, LastWriteWins},
	{FieldAnalyses, Append},
	{FieldMetadataRecommendations, Append},
	{FieldContentImprovements, Append},
	{FieldQualityReviews, Append},
	{FieldFactChecks, Append},
	{FieldMessages, Append},
	{FieldErrors, Append},
}

// executorFields are written only by the executor.
var executorFields = []Field{FieldCurrentStage, FieldStatus, FieldReport, FieldErrors}

// PolicyOf returns the declared policy for f.
func PolicyOf(f Field) (Policy, bool) {
	for _, s := range Schema {
		if s.Field == f {
			return s.Policy, true
		}
	}
	return 0, false
}

// Update is a partial State written by one stage. Zero values mean "not
// written".
type Update struct {
	CurrentStage string
	Status       Status
	Repo         *repo.Snapshot
	Readme       *readme.Analysis
	Report       *Report

	Analyses                []Finding
	MetadataRecommendations []Finding
	ContentImprovements     []Finding
	QualityReviews          []Finding
	FactChecks              []Finding
	Messages                []Message

	Errors []StageError
}

// Fields lists the fields u writes, in schema order.
func (u Update) Fields() []Field {
	written := map[Field]bool{
		FieldCurrentStage:            u.CurrentStage != "",
		FieldStatus:                  u.Status != "",
		FieldRepo:                    u.Repo != nil,
		FieldReadme:                  u.Readme != nil,
		FieldReport:                  u.Report != nil,
		FieldAnalyses:                len(u.Analyses) > 0,
		FieldMetadataRecommendations: len(u.MetadataRecommendations) > 0,
		FieldContentImprovements:     len(u.ContentImprovements) > 0,
		FieldQualityReviews:          len(u.QualityReviews) > 0,
		FieldFactChecks:              len(u.FactChecks) > 0,
		FieldMessages:                len(u.Messages) > 0,
		FieldErrors:                  len(u.Errors) > 0,
	}
	var fields []Field
	for _, s := range Schema {
		if written[s.Field] {
			fields = append(fields, s.Field)
		}
	}
	return fields
}

// Merge applies u to state and returns the result. state is not modified.
// Scalars take the incoming value; accumulators are extended in order.
// Findings and messages without a stage are attributed to stageName.
func Merge(state *State, stageName string, u Update) (*State, error) {
	if state.Status.Terminal() {
		return nil, ErrFrozen
	}

	next := *state
	if u.CurrentStage != "" {
		next.CurrentStage = u.CurrentStage
	}
	if u.Status != "" {
		next.Status = u.Status
	}
	if u.Repo != nil {
		next.Repo = u.Repo
	}
	if u.Readme != nil {
		next.Readme = u.Readme
	}
	if u.Report != nil {
		next.Report = u.Report
	}

	next.Analyses = appendFindings(state.Analyses, stageName, u.Analyses)
	next.MetadataRecommendations = appendFindings(state.MetadataRecommendations, stageName, u.MetadataRecommendations)
	next.ContentImprovements = appendFindings(state.ContentImprovements, stageName, u.ContentImprovements)
	next.QualityReviews = appendFindings(state.QualityReviews, stageName, u.QualityReviews)
	next.FactChecks = appendFindings(state.FactChecks, stageName, u.FactChecks)

	next.Messages = slices.Clip(state.Messages)
	for _, m := range u.Messages {
		if m.Stage == "" {
			m.Stage = stageName
		}
		next.Messages = append(next.Messages, m)
	}
	next.Errors = append(slices.Clip(state.Errors), u.Errors...)

	if debugAssertions {
		assertGrowth(state, &next)
	}
	return &next, nil
}

func appendFindings(cur []Finding, stageName string, incoming []Finding) []Finding {
	out := slices.Clip(cur)
	for _, f := range incoming {
		f = f.clone()
		if f.Stage == "" {
			f.Stage = stageName
		}
		out = append(out, f)
	}
	return out
}

// Clone returns a deep copy that can be handed to a stage.
func (s *State) Clone() *State {
	c := *s
	if s.Repo != nil {
		r := *s.Repo
		r.Topics = slices.Clone(s.Repo.Topics)
		c.Repo = &r
	}
	if s.Readme != nil {
		a := *s.Readme
		a.Sections = slices.Clone(s.Readme.Sections)
		a.CodeLanguages = slices.Clone(s.Readme.CodeLanguages)
		c.Readme = &a
	}
	c.Analyses = cloneFindings(s.Analyses)
	c.MetadataRecommendations = cloneFindings(s.MetadataRecommendations)
	c.ContentImprovements = cloneFindings(s.ContentImprovements)
	c.QualityReviews = cloneFindings(s.QualityReviews)
	c.FactChecks = cloneFindings(s.FactChecks)
	c.Messages = slices.Clone(s.Messages)
	c.Errors = slices.Clone(s.Errors)
	return &c
}

func cloneFindings(in []Finding) []Finding {
	if in == nil {
		return nil
	}
	out := make([]Finding, len(in))
	for i, f := range in {
		out[i] = f.clone()
	}
	return out
}

func (f Finding) clone() Finding {
	f.Suggestions = slices.Clone(f.Suggestions)
	f.Related = slices.Clone(f.Related)
	f.Claims = slices.Clone(f.Claims)
	if f.Checks != nil {
		checks := make(map[string]bool, len(f.Checks))
		for k, v := range f.Checks {
			checks[k] = v
		}
		f.Checks = checks
	}
	return f
}

func accumulatorLengths(s *State) map[Field]int {
	return map[Field]int{
		FieldAnalyses:                len(s.Analyses),
		FieldMetadataRecommendations: len(s.MetadataRecommendations),
		FieldContentImprovements:     len(s.ContentImprovements),
		FieldQualityReviews:          len(s.QualityReviews),
		FieldFactChecks:              len(s.FactChecks),
		FieldMessages:                len(s.Messages),
		FieldErrors:                  len(s.Errors),
	}
}
