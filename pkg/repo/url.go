package repo

import (
	"errors"
	"fmt"
	"strings"
)

const githubPrefix = "https://github.com/"

// ErrInvalidURL is wrapped by every ParseURL failure.
var ErrInvalidURL = errors.New("invalid repository url")

// ParseURL extracts owner and repository name from a GitHub URL.
// Paths below the repository (tree/main/...) are ignored.
func ParseURL(raw string) (owner, name string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", fmt.Errorf("%w: url is empty", ErrInvalidURL)
	}
	if !strings.HasPrefix(raw, githubPrefix) {
		return "", "", fmt.Errorf("%w: must start with %s", ErrInvalidURL, githubPrefix)
	}

	path := strings.Trim(strings.TrimPrefix(raw, githubPrefix), "/")
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: expected %sowner/repo", ErrInvalidURL, githubPrefix)
	}
	name = strings.TrimSuffix(parts[1], ".git")
	if name == "" {
		return "", "", fmt.Errorf("%w: repository name is empty", ErrInvalidURL)
	}
	return parts[0], name, nil
}
