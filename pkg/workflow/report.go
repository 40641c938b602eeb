package workflow

// Priority orders action items.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Rank returns 0 for High, 1 for Medium, 2 for Low and 3 otherwise.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	}
	return 3
}

// Tier is the quality band a score falls into.
type Tier string

const (
	TierExcellent        Tier = "Excellent"
	TierGood             Tier = "Good"
	TierNeedsImprovement Tier = "Needs Improvement"
	TierPoor             Tier = "Poor"
)

// Report is the final output of a run.
type Report struct {
	Subject    string            `json:"subject"`
	Repository RepositorySummary `json:"repository"`

	Score     int             `json:"score"`
	Tier      Tier            `json:"tier"`
	Breakdown []CategoryScore `json:"breakdown"`

	Missing        []string     `json:"missing_sections"`
	CriticalIssues int          `json:"critical_issues"`
	Completeness   float64      `json:"completion_percentage"`
	Checklist      []Check      `json:"checklist"`
	ActionItems    []ActionItem `json:"action_items"`
	Effort         Effort       `json:"estimated_effort"`

	Metadata  MetadataSummary  `json:"metadata"`
	Content   ContentSummary   `json:"content"`
	Quality   QualitySummary   `json:"quality_review"`
	FactCheck FactCheckSummary `json:"fact_check"`

	Warnings []StageError `json:"warnings,omitempty"`
	Failed   bool         `json:"failed,omitempty"`
	Failure  string       `json:"failure,omitempty"`
}

// RepositorySummary identifies the analysed repository.
type RepositorySummary struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Language string `json:"language"`
	Stars    int    `json:"stars"`
}

// CategoryScore is one capped rubric category.
type CategoryScore struct {
	Category string `json:"category"`
	Points   int    `json:"points"`
	Cap      int    `json:"cap"`
}

// Check is one pass/fail line of the quality checklist.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
}

// ActionItem is one prioritized recommendation.
type ActionItem struct {
	Priority Priority `json:"priority"`
	Category string   `json:"category"`
	Action   string   `json:"action"`
	Impact   string   `json:"impact"`
	Effort   string   `json:"effort"`
}

// Effort estimates the work the action items represent.
type Effort struct {
	TotalHours     float64 `json:"total_estimated_hours"`
	HighPriority   int     `json:"high_priority_items"`
	QuickWins      int     `json:"quick_wins"`
	Recommendation string  `json:"recommendation"`
}

type MetadataSummary struct {
	Suggestions  []string `json:"suggestions"`
	SimilarRepos []string `json:"similar_repos"`
}

type ContentSummary struct {
	Improvements []Finding `json:"improvements"`
}

type QualitySummary struct {
	Feedback []string `json:"feedback"`
}

type FactCheckSummary struct {
	Checked  int `json:"claims_checked"`
	Verified int `json:"verified_claims"`
}

// FailureReport describes a run whose synthesis could not complete.
func FailureReport(s *State, cause error) *Report {
	return &Report{
		Subject:  s.Input.ID(),
		Tier:     TierPoor,
		Warnings: append([]StageError(nil), s.Errors...),
		Failed:   true,
		Failure:  cause.Error(),
	}
}

// FailedStages returns the distinct stage names in the report's warnings.
func (r *Report) FailedStages() []string {
	seen := map[string]bool{}
	var names []string
	for _, w := range r.Warnings {
		if !seen[w.Stage] {
			seen[w.Stage] = true
			names = append(names, w.Stage)
		}
	}
	return names
}
