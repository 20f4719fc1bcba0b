package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/discourse/discourse-releases/internal/git"
)

const (
	// DefaultTimeout bounds each HTTP request.
	DefaultTimeout = 30 * time.Second
	// DefaultAPIBase is the GitHub REST endpoint.
	DefaultAPIBase = "https://api.github.com"

	githubAPIVersion = "2022-11-28"
)

var linkPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="([^"]+)"`)

// ClientOptions configures a Client.
type ClientOptions struct {
	Timeout time.Duration
	// RequestsPerSecond limits outgoing requests. Zero disables limiting.
	RequestsPerSecond float64
	Token             string
	UserAgent         string
	Logger            *slog.Logger
}

// Client fetches the auxiliary feeds. Requests are issued one at a time.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	token     string
	userAgent string
	logger    *slog.Logger
}

// NewClient creates a feed client.
func NewClient(opts ClientOptions) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "discourse-releases"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		limiter:   limiter,
		token:     opts.Token,
		userAgent: userAgent,
		logger:    logger,
	}
}

// FetchFeatures downloads the new-features feed and returns the raw body together
// with the decoded records.
func (c *Client) FetchFeatures(ctx context.Context, feedURL string) (json.RawMessage, []Feature, error) {
	c.logger.Info("fetching new features", "url", feedURL)
	resp, err := c.get(ctx, feedURL, nil)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, git.NewUpstreamFetchError("read features", err)
	}
	var features []Feature
	if err := json.Unmarshal(body, &features); err != nil {
		return nil, nil, git.NewUpstreamFetchError("decode features", err)
	}
	c.logger.Info("fetched new features", "count", len(features))
	return body, features, nil
}

// FetchAdvisories pages through the published security advisories of owner/repo,
// following Link rel="next" until it is absent.
func (c *Client) FetchAdvisories(ctx context.Context, apiBase, owner, repo string) ([]Advisory, error) {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	next := fmt.Sprintf("%s/repos/%s/%s/security-advisories?state=published&per_page=100",
		strings.TrimRight(apiBase, "/"), url.PathEscape(owner), url.PathEscape(repo))

	headers := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": githubAPIVersion,
	}
	if c.token != "" {
		headers["Authorization"] = "Bearer " + c.token
	}

	var advisories []Advisory
	for page := 1; next != ""; page++ {
		c.logger.Info("fetching advisories page", "page", page)
		resp, err := c.get(ctx, next, headers)
		if err != nil {
			return nil, err
		}

		var raw []rawAdvisory
		err = json.NewDecoder(resp.Body).Decode(&raw)
		links := ParseLinks(resp.Header.Get("Link"))
		resp.Body.Close()
		if err != nil {
			return nil, git.NewUpstreamFetchError(fmt.Sprintf("decode advisories page %d", page), err)
		}

		for _, r := range raw {
			advisories = append(advisories, transformAdvisory(r))
		}
		c.logger.Info("advisories page fetched", "page", page, "count", len(raw), "total", len(advisories))
		next = links["next"]
	}

	if advisories == nil {
		advisories = []Advisory{}
	}
	return advisories, nil
}

// ParseLinks parses an RFC 8288 Link header into rel -> URL.
func ParseLinks(header string) map[string]string {
	links := make(map[string]string)
	if header == "" {
		return links
	}
	for _, part := range strings.Split(header, ",") {
		if m := linkPattern.FindStringSubmatch(part); m != nil {
			links[m[2]] = m[1]
		}
	}
	return links
}

// get performs a rate-limited GET. Non-2xx responses and transport failures are
// returned as *git.UpstreamFetchError. The caller closes the body.
func (c *Client) get(ctx context.Context, target string, headers map[string]string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, git.NewUpstreamFetchError("GET "+target, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, git.NewUpstreamFetchError("GET "+target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, git.NewUpstreamFetchError("GET "+target,
			fmt.Errorf("status %d %s: %s", resp.StatusCode, http.StatusText(resp.StatusCode), strings.TrimSpace(string(body))))
	}
	return resp, nil
}
