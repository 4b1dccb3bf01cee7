// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/naka-gawa/repo-quality/internal/domain"
)

const (
	defaultAPIBaseURL = "https://api.github.com"

	// Window sizes for the sampled facets.
	directPushSampleSize  = 100
	prAnalysisWindow      = 100
	maxPullsFallbackPages = 5
	maxCommitPages        = 100

	maxRateLimitRetries = 3
	defaultRetryDelay   = 30 * time.Second

	// The search API budget is 30 requests per minute; the direct-push
	// heuristic issues one search per sampled commit, so it is paced.
	searchInterval = 2 * time.Second
)

// RepoInfo is the repository listing entry handed to the analyzer. It
// carries only the fields the record needs, keeping the REST client types
// out of the usecase layer.
type RepoInfo struct {
	Name          string
	FullName      string
	Description   string
	DefaultBranch string
	Language      string
	CreatedAt     string
	Private       bool
	Archived      bool
	SizeKB        int
	Stars         int
	Forks         int
	OpenIssues    int
}

// CommitStats aggregates the commit facet of a repository.
type CommitStats struct {
	TotalCommits   int
	LastCommitDate string
	DirectPushes   int
}

// PRAnalysis aggregates the closed-PR review facet of a repository.
type PRAnalysis struct {
	TotalAnalyzed       int
	SelfApproved        int
	ReviewedByOthers    int
	WithDescription     int
	Merged              int
	ClosedWithoutMerge  int
	MultipleReviewers   int
	LargePRs            int
	SlowReviews         int
	AvgTimeToMergeHours float64
}

// Fetcher defines the behavior of a gateway for fetching repository facets
// from GitHub. Each method covers one independently degradable facet.
type Fetcher interface {
	ListRepositories(ctx context.Context, languages []string) ([]RepoInfo, error)
	FetchPullRequestCounts(ctx context.Context, repo string) (open, closed int, err error)
	FetchContributorsCount(ctx context.Context, repo string) (int, error)
	FetchCommitStats(ctx context.Context, repo, defaultBranch string) (CommitStats, error)
	FetchPRAnalysis(ctx context.Context, repo string, largeFilesThreshold, slowReviewDays int) (PRAnalysis, error)
	DetectCodeTypes(ctx context.Context, repo string) ([]string, error)
}

// Options configures the gateway construction.
type Options struct {
	Token         string
	Org           string
	BaseURL       string // empty means api.github.com
	SkipTLSVerify bool
	Languages     domain.LanguageTable
	Logger        *log.Logger
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	org           string
	languages     domain.LanguageTable
	searchLimiter *rate.Limiter
	logger        *log.Logger
}

// NewGitHubGateway builds a gateway with a token transport wrapped in the
// secondary-rate-limit waiter, pointed at either api.github.com or a
// self-hosted instance.
func NewGitHubGateway(opts Options) (*GitHubGateway, error) {
	if opts.Org == "" {
		return nil, errors.New("organization is required")
	}

	var base http.RoundTripper
	if opts.SkipTLSVerify {
		base = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	}
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(base, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}

	restClient := github.NewClient(httpClient)
	var graphqlClient *githubv4.Client
	baseURL := strings.TrimSuffix(opts.BaseURL, "/")
	if baseURL == "" || baseURL == defaultAPIBaseURL {
		graphqlClient = githubv4.NewClient(httpClient)
	} else {
		restClient, err = restClient.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid API base URL %q: %w", opts.BaseURL, err)
		}
		graphqlClient = githubv4.NewEnterpriseClient(graphqlEndpoint(baseURL), httpClient)
	}

	languages := opts.Languages
	if languages == nil {
		languages = domain.DefaultLanguageTable()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		org:           opts.Org,
		languages:     languages,
		searchLimiter: rate.NewLimiter(rate.Every(searchInterval), 1),
		logger:        logger,
	}, nil
}

// graphqlEndpoint derives the GraphQL URL of a GitHub Enterprise REST base
// URL (".../api/v3" becomes ".../api/graphql").
func graphqlEndpoint(baseURL string) string {
	if root, ok := strings.CutSuffix(baseURL, "/api/v3"); ok {
		return root + "/api/graphql"
	}
	return baseURL + "/graphql"
}

// ListRepositories lists the organization's repositories. With a language
// filter it goes through the search API instead, which caps results at
// 1000.
func (g *GitHubGateway) ListRepositories(ctx context.Context, languages []string) ([]RepoInfo, error) {
	if len(languages) > 0 {
		return g.searchRepositories(ctx, languages)
	}

	g.logger.Printf("Fetching repositories for organization: %s", g.org)
	opts := &github.RepositoryListByOrgOptions{
		Type:        "all",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	var infos []RepoInfo
	for {
		var repos []*github.Repository
		var resp *github.Response
		err := g.withRetry(ctx, func() error {
			var err error
			repos, resp, err = g.restClient.Repositories.ListByOrg(ctx, g.org, opts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories for %s: %w", g.org, err)
		}
		for _, r := range repos {
			infos = append(infos, repoInfo(r))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
		g.logger.Println("  Fetching next page of repositories...")
	}
	g.logger.Printf("Total repositories found: %d", len(infos))
	return infos, nil
}

func (g *GitHubGateway) searchRepositories(ctx context.Context, languages []string) ([]RepoInfo, error) {
	terms := make([]string, len(languages))
	for i, lang := range languages {
		terms[i] = "lang:" + lang
	}
	query := fmt.Sprintf("org:%s %s", g.org, strings.Join(terms, " OR "))
	g.logger.Printf("Searching repositories with query: %s", query)

	opts := &github.SearchOptions{
		Sort:        "updated",
		Order:       "desc",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	var infos []RepoInfo
	for {
		var result *github.RepositoriesSearchResult
		var resp *github.Response
		err := g.withRetry(ctx, func() error {
			var err error
			result, resp, err = g.restClient.Search.Repositories(ctx, query, opts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to search repositories: %w", err)
		}
		for _, r := range result.Repositories {
			infos = append(infos, repoInfo(r))
		}
		// The search API stops serving past 1000 results.
		if resp.NextPage == 0 || len(infos) >= 1000 {
			break
		}
		opts.Page = resp.NextPage
		g.logger.Println("  Fetching next page of repository search results...")
	}
	g.logger.Printf("Total repositories found with language filter: %d", len(infos))
	return infos, nil
}

// FetchPullRequestCounts returns the open and closed PR totals via search
// counts. A repository the search index does not know yields zeros.
func (g *GitHubGateway) FetchPullRequestCounts(ctx context.Context, repo string) (int, int, error) {
	open, err := g.searchIssueCount(ctx, fmt.Sprintf("repo:%s/%s type:pr state:open", g.org, repo))
	if err != nil {
		return 0, 0, err
	}
	closed, err := g.searchIssueCount(ctx, fmt.Sprintf("repo:%s/%s type:pr state:closed", g.org, repo))
	if err != nil {
		return 0, 0, err
	}
	return open, closed, nil
}

func (g *GitHubGateway) searchIssueCount(ctx context.Context, query string) (int, error) {
	var result *github.IssuesSearchResult
	err := g.withRetry(ctx, func() error {
		var err error
		result, _, err = g.restClient.Search.Issues(ctx, query, &github.SearchOptions{
			ListOptions: github.ListOptions{PerPage: 1},
		})
		return err
	})
	if err != nil {
		if isMissing(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to count issues for %q: %w", query, err)
	}
	return result.GetTotal(), nil
}

// FetchContributorsCount counts contributors through pagination. Empty and
// inaccessible repositories count as zero.
func (g *GitHubGateway) FetchContributorsCount(ctx context.Context, repo string) (int, error) {
	opts := &github.ListContributorsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	count := 0
	for {
		var contributors []*github.Contributor
		var resp *github.Response
		err := g.withRetry(ctx, func() error {
			var err error
			contributors, resp, err = g.restClient.Repositories.ListContributors(ctx, g.org, repo, opts)
			return err
		})
		if err != nil {
			if isMissing(err) {
				return 0, nil
			}
			return 0, fmt.Errorf("failed to list contributors of %s: %w", repo, err)
		}
		count += len(contributors)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return count, nil
}

// FetchCommitStats returns the commit total, the last commit date, and the
// direct-push count. The total comes from the contributor statistics
// endpoint when available and falls back to commit pagination with branch
// fallbacks otherwise.
func (g *GitHubGateway) FetchCommitStats(ctx context.Context, repo, defaultBranch string) (CommitStats, error) {
	var cs CommitStats

	total, err := g.commitTotalFromStats(ctx, repo)
	if err != nil {
		return cs, err
	}
	cs.TotalCommits = total

	if cs.TotalCommits == 0 {
		total, lastDate, err := g.commitsViaPagination(ctx, repo, defaultBranch)
		if err != nil {
			return cs, err
		}
		cs.TotalCommits = total
		cs.LastCommitDate = lastDate
	}

	if cs.TotalCommits > 0 && cs.LastCommitDate == "" {
		lastDate, err := g.lastCommitDate(ctx, repo, defaultBranch)
		if err != nil {
			return cs, err
		}
		cs.LastCommitDate = lastDate
	}

	pushes, err := g.directPushCount(ctx, repo, defaultBranch)
	if err != nil {
		return cs, err
	}
	cs.DirectPushes = pushes
	return cs, nil
}

func (g *GitHubGateway) commitTotalFromStats(ctx context.Context, repo string) (int, error) {
	var contributors []*github.ContributorStats
	err := g.withRetry(ctx, func() error {
		var err error
		contributors, _, err = g.restClient.Repositories.ListContributorsStats(ctx, g.org, repo)
		return err
	})
	if err != nil {
		// 202 means GitHub is still computing the statistics; fall back to
		// pagination rather than waiting.
		var accepted *github.AcceptedError
		if errors.As(err, &accepted) || isMissing(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to fetch contributor stats of %s: %w", repo, err)
	}
	total := 0
	for _, c := range contributors {
		total += c.GetTotal()
	}
	return total, nil
}

// branchCandidates returns the branches to try, default branch first.
func branchCandidates(defaultBranch string) []string {
	candidates := []string{defaultBranch, "master", "main", "develop"}
	out := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, b := range candidates {
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	return out
}

func (g *GitHubGateway) commitsViaPagination(ctx context.Context, repo, defaultBranch string) (int, string, error) {
	for _, branch := range branchCandidates(defaultBranch) {
		opts := &github.CommitsListOptions{
			SHA:         branch,
			ListOptions: github.ListOptions{PerPage: 100},
		}
		total := 0
		lastDate := ""
		found := false
		for page := 1; page <= maxCommitPages; page++ {
			opts.Page = page
			var commits []*github.RepositoryCommit
			err := g.withRetry(ctx, func() error {
				var err error
				commits, _, err = g.restClient.Repositories.ListCommits(ctx, g.org, repo, opts)
				return err
			})
			if err != nil {
				if isMissing(err) {
					break // try the next branch
				}
				return 0, "", fmt.Errorf("failed to list commits of %s: %w", repo, err)
			}
			if len(commits) == 0 {
				break
			}
			found = true
			total += len(commits)
			if page == 1 {
				lastDate = commitDate(commits[0])
			}
			if len(commits) < 100 {
				break
			}
			g.logger.Println("  Fetching next page of commits...")
		}
		if found {
			return total, lastDate, nil
		}
	}
	return 0, "", nil
}

func (g *GitHubGateway) lastCommitDate(ctx context.Context, repo, defaultBranch string) (string, error) {
	for _, branch := range branchCandidates(defaultBranch) {
		var commits []*github.RepositoryCommit
		err := g.withRetry(ctx, func() error {
			var err error
			commits, _, err = g.restClient.Repositories.ListCommits(ctx, g.org, repo, &github.CommitsListOptions{
				SHA:         branch,
				ListOptions: github.ListOptions{PerPage: 1},
			})
			return err
		})
		if err != nil {
			if isMissing(err) {
				continue
			}
			return "", fmt.Errorf("failed to fetch last commit of %s: %w", repo, err)
		}
		if len(commits) > 0 {
			return commitDate(commits[0]), nil
		}
	}
	return "", nil
}

// directPushCount samples the most recent commits on the default branch
// and counts those with no associated pull request. One search query per
// commit, paced by the search limiter. Individual search failures skip the
// commit instead of failing the facet.
func (g *GitHubGateway) directPushCount(ctx context.Context, repo, defaultBranch string) (int, error) {
	var commits []*github.RepositoryCommit
	err := g.withRetry(ctx, func() error {
		var err error
		commits, _, err = g.restClient.Repositories.ListCommits(ctx, g.org, repo, &github.CommitsListOptions{
			SHA:         defaultBranch,
			ListOptions: github.ListOptions{PerPage: directPushSampleSize},
		})
		return err
	})
	if err != nil {
		if isMissing(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to sample commits of %s: %w", repo, err)
	}

	direct := 0
	for _, commit := range commits {
		if err := g.searchLimiter.Wait(ctx); err != nil {
			return 0, err
		}
		query := fmt.Sprintf("repo:%s/%s type:pr %s", g.org, repo, commit.GetSHA())
		total, err := g.searchIssueCount(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			g.logger.Printf("  skipping commit %.8s: %v", commit.GetSHA(), err)
			continue
		}
		if total == 0 {
			direct++
		}
	}
	return direct, nil
}

// DetectCodeTypes scans the root-directory listing and maps extensions
// through the injected language table. Empty or inaccessible repositories
// yield an empty list.
func (g *GitHubGateway) DetectCodeTypes(ctx context.Context, repo string) ([]string, error) {
	var entries []*github.RepositoryContent
	err := g.withRetry(ctx, func() error {
		var err error
		_, entries, _, err = g.restClient.Repositories.GetContents(ctx, g.org, repo, "", nil)
		return err
	})
	if err != nil {
		if isMissing(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list contents of %s: %w", repo, err)
	}

	seen := make(map[string]bool)
	var types []string
	for _, entry := range entries {
		if entry.GetType() != "file" {
			continue
		}
		lang, ok := g.languages.Lookup(entry.GetName())
		if ok && !seen[lang] {
			seen[lang] = true
			types = append(types, lang)
		}
	}
	sort.Strings(types)
	return types, nil
}

func repoInfo(r *github.Repository) RepoInfo {
	createdAt := ""
	if !r.GetCreatedAt().IsZero() {
		createdAt = r.GetCreatedAt().UTC().Format(time.RFC3339)
	}
	return RepoInfo{
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Description:   r.GetDescription(),
		DefaultBranch: r.GetDefaultBranch(),
		Language:      r.GetLanguage(),
		CreatedAt:     createdAt,
		Private:       r.GetPrivate(),
		Archived:      r.GetArchived(),
		SizeKB:        r.GetSize(),
		Stars:         r.GetStargazersCount(),
		Forks:         r.GetForksCount(),
		OpenIssues:    r.GetOpenIssuesCount(),
	}
}

func commitDate(c *github.RepositoryCommit) string {
	date := c.GetCommit().GetCommitter().GetDate()
	if date.IsZero() {
		return ""
	}
	return date.UTC().Format(time.RFC3339)
}

// withRetry runs op, sleeping and retrying a bounded number of times when
// GitHub answers with a primary or secondary rate limit.
func (g *GitHubGateway) withRetry(ctx context.Context, op func() error) error {
	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		delay, retryable := retryDelay(err)
		if !retryable || attempt >= maxRateLimitRetries {
			return err
		}
		g.logger.Printf("  rate limited, retrying in %s (attempt %d/%d)", delay, attempt+1, maxRateLimitRetries)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func retryDelay(err error) (time.Duration, bool) {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		delay := time.Until(rateErr.Rate.Reset.Time) + time.Second
		if delay < time.Second {
			delay = time.Second
		}
		return delay, true
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		if abuseErr.RetryAfter != nil {
			return *abuseErr.RetryAfter, true
		}
		return defaultRetryDelay, true
	}
	return 0, false
}

// isMissing reports whether the error is a known-empty condition: 404 for
// absent or inaccessible resources, 409 for empty repositories.
func isMissing(err error) bool {
	var errResp *github.ErrorResponse
	if !errors.As(err, &errResp) || errResp.Response == nil {
		return false
	}
	code := errResp.Response.StatusCode
	return code == http.StatusNotFound || code == http.StatusConflict
}
