// Package version reports the build version and looks up newer releases.
package version

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultAPIURL is the GitHub API root used for release lookups.
	DefaultAPIURL = "https://api.github.com"

	requestTimeout = 5 * time.Second
)

// Build information, set at link time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String returns a one-line build description.
func String() string {
	return fmt.Sprintf("localserve %s (commit %s, built %s)", Version, Commit, Date)
}

// Release is the subset of a GitHub release we care about.
type Release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
	Name    string `json:"name"`
}

// Update describes a release newer than the running build.
type Update struct {
	Current string
	Latest  string
	URL     string
}

func (u Update) String() string {
	return fmt.Sprintf("localserve %s is available (running %s): %s", u.Latest, u.Current, u.URL)
}

// Checker compares the running version against the latest GitHub release.
type Checker struct {
	owner   string
	repo    string
	current string
	apiURL  string
	client  *http.Client
}

// Option configures a Checker.
type Option func(*Checker)

// WithAPIURL overrides the GitHub API root.
func WithAPIURL(url string) Option {
	return func(c *Checker) { c.apiURL = strings.TrimSuffix(url, "/") }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Checker) { c.client = client }
}

// NewChecker creates a checker for owner/repo.
func NewChecker(owner, repo, current string, opts ...Option) *Checker {
	c := &Checker{
		owner:   owner,
		repo:    repo,
		current: normalize(current),
		apiURL:  DefaultAPIURL,
		client:  &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Latest fetches the latest published release.
func (c *Checker) Latest(ctx context.Context) (Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.apiURL, c.owner, c.repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Release{}, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "localserve/"+c.current)

	resp, err := c.client.Do(req)
	if err != nil {
		return Release{}, fmt.Errorf("failed to fetch latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Release{}, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return Release{}, fmt.Errorf("failed to decode release: %w", err)
	}
	return release, nil
}

// Check returns the available update, or nil when the running build is
// current. Development builds never report updates.
func (c *Checker) Check(ctx context.Context) (*Update, error) {
	if c.current == "dev" || c.current == "" {
		return nil, nil
	}

	release, err := c.Latest(ctx)
	if err != nil {
		return nil, err
	}

	latest := normalize(release.TagName)
	if Compare(latest, c.current) <= 0 {
		return nil, nil
	}
	return &Update{Current: c.current, Latest: latest, URL: release.HTMLURL}, nil
}

// Compare orders two dotted versions numerically. Pre-release and build
// suffixes are ignored and missing parts sort first, so 1.0.1 > 1.0.
func Compare(a, b string) int {
	ap, bp := parts(normalize(a)), parts(normalize(b))
	for i := 0; i < len(ap) && i < len(bp); i++ {
		switch {
		case ap[i] > bp[i]:
			return 1
		case ap[i] < bp[i]:
			return -1
		}
	}
	switch {
	case len(ap) > len(bp):
		return 1
	case len(ap) < len(bp):
		return -1
	}
	return 0
}

func normalize(v string) string {
	v = strings.TrimSpace(v)
	return strings.TrimPrefix(strings.TrimPrefix(v, "v"), "V")
}

func parts(v string) []int {
	if idx := strings.IndexAny(v, "-+"); idx != -1 {
		v = v[:idx]
	}
	fields := strings.Split(v, ".")
	result := make([]int, 0, len(fields))
	for _, f := range fields {
		n, _ := strconv.Atoi(f)
		result = append(result, n)
	}
	return result
}
