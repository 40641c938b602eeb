package repo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func newTestFetcher(t *testing.T, handler http.Handler) *GitHubFetcher {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("failed to listen for httptest server: %v", err)
	}
	server := httptest.NewUnstartedServer(handler)
	server.Listener = listener
	server.Start()
	t.Cleanup(server.Close)

	base, err := url.Parse(server.URL + "/")
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	return NewGitHubFetcher("test-token", WithBaseURL(base), WithHTTPClient(server.Client()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestGitHubFetcher_Fetch(t *testing.T) {
	readme := "# Widget\n\n## Installation\n\ngo get example.com/widget\n"

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/widget", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"name":              "widget",
			"full_name":         "octo/widget",
			"description":       "Widgets for everyone",
			"html_url":          "https://github.com/octo/widget",
			"stargazers_count":  42,
			"forks_count":       7,
			"watchers_count":    42,
			"language":          "Go",
			"topics":            []string{"cli", "widgets"},
			"license":           map[string]any{"name": "MIT License"},
			"default_branch":    "main",
			"open_issues_count": 3,
			"created_at":        "2024-01-02T03:04:05Z",
		})
	})
	mux.HandleFunc("/repos/octo/widget/readme", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"type":     "file",
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte(readme)),
		})
	})
	mux.HandleFunc("/repos/octo/widget/contents/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"name": "LICENSE", "type": "file"},
			{"name": ".github", "type": "dir"},
			{"name": "go.mod", "type": "file"},
		})
	})

	f := newTestFetcher(t, mux)
	snap, err := f.Fetch(context.Background(), "https://github.com/octo/widget")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if snap.FullName != "octo/widget" || snap.Stars != 42 || snap.Language != "Go" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if snap.License != "MIT License" {
		t.Errorf("License = %q", snap.License)
	}
	if len(snap.Topics) != 2 {
		t.Errorf("Topics = %v", snap.Topics)
	}
	if snap.Readme != readme {
		t.Errorf("Readme = %q", snap.Readme)
	}
	if !snap.Files.HasLicense || !snap.Files.HasCI || !snap.Files.HasRequirements || snap.Files.HasTests {
		t.Errorf("unexpected file structure: %+v", snap.Files)
	}
	if snap.CreatedAt.Year() != 2024 {
		t.Errorf("CreatedAt = %v", snap.CreatedAt)
	}
}

func TestGitHubFetcher_MissingReadmeIsEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/bare", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"name": "bare", "full_name": "octo/bare"})
	})
	mux.HandleFunc("/repos/octo/bare/readme", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
	})
	mux.HandleFunc("/repos/octo/bare/contents/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{"message": "Resource not accessible"})
	})

	f := newTestFetcher(t, mux)
	snap, err := f.Fetch(context.Background(), "https://github.com/octo/bare")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if snap.Readme != "" {
		t.Errorf("expected empty readme, got %q", snap.Readme)
	}
	if snap.Language != "Unknown" {
		t.Errorf("Language = %q, want Unknown", snap.Language)
	}
	if snap.Files != (FileStructure{}) {
		t.Errorf("expected partial (empty) file structure, got %+v", snap.Files)
	}
}

func TestGitHubFetcher_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		message   string
		notFound  bool
		transient bool
	}{
		{name: "not found", status: http.StatusNotFound, message: "Not Found", notFound: true},
		{name: "unauthorized", status: http.StatusUnauthorized, message: "Bad credentials"},
		{name: "forbidden", status: http.StatusForbidden, message: "Forbidden"},
		{name: "rate limited", status: http.StatusForbidden, message: "API rate limit exceeded for user", transient: true},
		{name: "too many requests", status: http.StatusTooManyRequests, message: "slow down", transient: true},
		{name: "server error", status: http.StatusBadGateway, message: "bad gateway", transient: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]any{"message": tt.message})
			}))

			_, err := f.Fetch(context.Background(), "https://github.com/octo/widget")
			if err == nil {
				t.Fatal("expected error")
			}
			var nf *NotFoundError
			if got := errors.As(err, &nf); got != tt.notFound {
				t.Errorf("NotFoundError = %v, want %v (err: %v)", got, tt.notFound, err)
			}
			if got := IsTransient(err); got != tt.transient {
				t.Errorf("IsTransient = %v, want %v (err: %v)", got, tt.transient, err)
			}
		})
	}
}

func TestGitHubFetcher_InvalidURL(t *testing.T) {
	f := NewGitHubFetcher("")
	_, err := f.Fetch(context.Background(), "not a url")
	if !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
	if IsTransient(err) {
		t.Error("invalid URL must not be transient")
	}
}
