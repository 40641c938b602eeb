package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/go-github/v66/github"
)

// GitHubFetcher reads repository metadata through the GitHub REST API.
type GitHubFetcher struct {
	client *github.Client
	logger *slog.Logger
}

// Option configures a GitHubFetcher.
type Option func(*fetcherOptions)

type fetcherOptions struct {
	httpClient *http.Client
	baseURL    *url.URL
	logger     *slog.Logger
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *fetcherOptions) {
		o.httpClient = c
	}
}

// WithBaseURL points the fetcher at a different API root. The path must end
// with a slash.
func WithBaseURL(u *url.URL) Option {
	return func(o *fetcherOptions) {
		o.baseURL = u
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *fetcherOptions) {
		o.logger = l
	}
}

// NewGitHubFetcher creates a fetcher. An empty token makes unauthenticated
// requests, which GitHub limits to 60 per hour.
func NewGitHubFetcher(token string, opts ...Option) *GitHubFetcher {
	o := fetcherOptions{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(&o)
	}

	client := github.NewClient(o.httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if o.baseURL != nil {
		client.BaseURL = o.baseURL
	}

	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &GitHubFetcher{client: client, logger: logger}
}

// Fetch loads metadata, README content, and root file structure for url.
// A repository without a README yields an empty Readme.
func (f *GitHubFetcher) Fetch(ctx context.Context, rawURL string) (*Snapshot, error) {
	owner, name, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	r, _, err := f.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, classify(err, owner, name)
	}

	readme, err := f.readme(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	files, err := f.fileStructure(ctx, owner, name)
	if err != nil {
		return nil, err
	}

	language := r.GetLanguage()
	if language == "" {
		language = "Unknown"
	}
	snap := &Snapshot{
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Description:   r.GetDescription(),
		URL:           r.GetHTMLURL(),
		Stars:         r.GetStargazersCount(),
		Forks:         r.GetForksCount(),
		Watchers:      r.GetWatchersCount(),
		Language:      language,
		Topics:        append([]string(nil), r.Topics...),
		License:       r.GetLicense().GetName(),
		CreatedAt:     r.GetCreatedAt().Time,
		UpdatedAt:     r.GetUpdatedAt().Time,
		PushedAt:      r.GetPushedAt().Time,
		Size:          r.GetSize(),
		DefaultBranch: r.GetDefaultBranch(),
		OpenIssues:    r.GetOpenIssuesCount(),
		Readme:        readme,
		Files:         files,
	}
	f.logger.Info("fetched repository", "repo", snap.FullName, "stars", snap.Stars, "readme_bytes", len(readme))
	return snap, nil
}

func (f *GitHubFetcher) readme(ctx context.Context, owner, name string) (string, error) {
	content, _, err := f.client.Repositories.GetReadme(ctx, owner, name, nil)
	if err != nil {
		classified := classify(err, owner, name)
		var nf *NotFoundError
		if errors.As(classified, &nf) {
			f.logger.Warn("no README found", "repo", owner+"/"+name)
			return "", nil
		}
		return "", classified
	}
	text, err := content.GetContent()
	if err != nil {
		return "", fmt.Errorf("decode README: %w", err)
	}
	return text, nil
}

func (f *GitHubFetcher) fileStructure(ctx context.Context, owner, name string) (FileStructure, error) {
	_, entries, _, err := f.client.Repositories.GetContents(ctx, owner, name, "", nil)
	if err != nil {
		classified := classify(err, owner, name)
		var apiErr *APIError
		if errors.As(classified, &apiErr) && apiErr.StatusCode == http.StatusForbidden {
			// Partial data beats failing the whole fetch.
			f.logger.Warn("file structure unavailable", "repo", owner+"/"+name, "error", classified)
			return FileStructure{}, nil
		}
		return FileStructure{}, classified
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.GetName())
	}
	return DetectFileStructure(names), nil
}

// Ping checks API reachability with a rate-limit query.
func (f *GitHubFetcher) Ping(ctx context.Context) error {
	limits, _, err := f.client.RateLimit.Get(ctx)
	if err != nil {
		return classify(err, "", "")
	}
	if core := limits.GetCore(); core != nil && core.Remaining == 0 {
		return &APIError{
			StatusCode: http.StatusForbidden,
			Message:    "rate limit exhausted until " + core.Reset.Time.Format(time.RFC3339),
			Transient:  true,
		}
	}
	return nil
}
