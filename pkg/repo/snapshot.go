package repo

import (
	"context"
	"strings"
	"time"
)

// Snapshot is the repository metadata gathered by a Fetcher.
type Snapshot struct {
	Name          string        `json:"name"`
	FullName      string        `json:"full_name"`
	Description   string        `json:"description"`
	URL           string        `json:"url"`
	Stars         int           `json:"stars"`
	Forks         int           `json:"forks"`
	Watchers      int           `json:"watchers"`
	Language      string        `json:"language"`
	Topics        []string      `json:"topics"`
	License       string        `json:"license,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	PushedAt      time.Time     `json:"pushed_at"`
	Size          int           `json:"size"`
	DefaultBranch string        `json:"default_branch"`
	OpenIssues    int           `json:"open_issues"`
	Readme        string        `json:"-"`
	Files         FileStructure `json:"file_structure"`
}

// FileStructure records which conventional files sit at the repository root.
type FileStructure struct {
	HasTests        bool `json:"has_tests"`
	HasCI           bool `json:"has_ci"`
	HasDocs         bool `json:"has_docs"`
	HasLicense      bool `json:"has_license"`
	HasContributing bool `json:"has_contributing"`
	HasChangelog    bool `json:"has_changelog"`
	HasRequirements bool `json:"has_requirements"`
}

// Fetcher loads a repository snapshot.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Snapshot, error)
}

var (
	testDirs     = []string{"tests", "test", "__tests__", "spec", "testdata"}
	ciEntries    = []string{".github", ".gitlab-ci.yml", ".travis.yml", "circle.yml", ".circleci", "azure-pipelines.yml", "jenkinsfile"}
	docDirs      = []string{"docs", "doc", "documentation"}
	manifestFile = []string{
		"requirements.txt", "pyproject.toml", "setup.py", "pipfile",
		"go.mod", "package.json", "cargo.toml", "gemfile", "pom.xml", "build.gradle", "composer.json",
	}
)

// DetectFileStructure classifies root entry names.
func DetectFileStructure(names []string) FileStructure {
	var fs FileStructure
	for _, n := range names {
		lower := strings.ToLower(n)
		switch {
		case contains(testDirs, lower):
			fs.HasTests = true
		case contains(ciEntries, lower):
			fs.HasCI = true
		case contains(docDirs, lower):
			fs.HasDocs = true
		case contains(manifestFile, lower):
			fs.HasRequirements = true
		}
		if strings.Contains(lower, "license") || strings.Contains(lower, "licence") {
			fs.HasLicense = true
		}
		if strings.Contains(lower, "contributing") {
			fs.HasContributing = true
		}
		if strings.Contains(lower, "changelog") || strings.Contains(lower, "history") {
			fs.HasChangelog = true
		}
	}
	return fs
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
