package gateway

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/naka-gawa/repo-quality/internal/domain"
)

// setupTestGateway creates a GitHubGateway that communicates with a mock HTTP server.
func setupTestGateway(t *testing.T, handler http.Handler) (*GitHubGateway, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	// Setup REST client to point to the mock server.
	restClient := github.NewClient(server.Client())
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	restClient.BaseURL = baseURL

	// Use NewEnterpriseClient to point the GraphQL client to our mock server's URL.
	graphqlClient := githubv4.NewEnterpriseClient(server.URL+"/graphql", server.Client())

	gateway := &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		org:           "acme",
		languages:     domain.DefaultLanguageTable(),
		searchLimiter: rate.NewLimiter(rate.Inf, 1), // no pacing in tests
		logger:        log.New(io.Discard, "", 0),
	}
	return gateway, server
}

func TestGitHubGateway_ListRepositories(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orgs/acme/repos", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `[
			{"name": "widget", "full_name": "acme/widget", "default_branch": "main",
			 "language": "Go", "stargazers_count": 42, "forks_count": 3,
			 "created_at": "2020-01-01T00:00:00Z", "archived": false, "private": true},
			{"name": "legacy", "full_name": "acme/legacy", "default_branch": "master",
			 "language": "Python", "archived": true}
		]`)
	})
	gateway, _ := setupTestGateway(t, handler)

	infos, err := gateway.ListRepositories(context.Background(), nil)

	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "widget", infos[0].Name)
	assert.Equal(t, "acme/widget", infos[0].FullName)
	assert.Equal(t, "main", infos[0].DefaultBranch)
	assert.Equal(t, "Go", infos[0].Language)
	assert.Equal(t, 42, infos[0].Stars)
	assert.Equal(t, "2020-01-01T00:00:00Z", infos[0].CreatedAt)
	assert.True(t, infos[0].Private)
	assert.True(t, infos[1].Archived)
}

func TestGitHubGateway_ListRepositories_LanguageFilterUsesSearch(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/repositories", r.URL.Path)
		q := r.URL.Query().Get("q")
		assert.Contains(t, q, "org:acme")
		assert.Contains(t, q, "lang:Go")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"total_count": 1, "items": [{"name": "widget", "full_name": "acme/widget", "language": "Go"}]}`)
	})
	gateway, _ := setupTestGateway(t, handler)

	infos, err := gateway.ListRepositories(context.Background(), []string{"Go"})

	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "widget", infos[0].Name)
}

func TestGitHubGateway_FetchPullRequestCounts(t *testing.T) {
	testCases := []struct {
		name           string
		handlerFunc    func(w http.ResponseWriter, r *http.Request)
		expectedOpen   int
		expectedClosed int
		expectError    bool
		expectedErrMsg string
	}{
		{
			name: "happy path - counts come from the search totals",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/search/issues", r.URL.Path)
				q := r.URL.Query().Get("q")
				w.WriteHeader(http.StatusOK)
				if strings.Contains(q, "state:open") {
					fmt.Fprint(w, `{"total_count": 3, "items": []}`)
				} else {
					fmt.Fprint(w, `{"total_count": 7, "items": []}`)
				}
			},
			expectedOpen:   3,
			expectedClosed: 7,
		},
		{
			name: "unknown repository counts as zero",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"message": "Not Found"}`)
			},
			expectedOpen:   0,
			expectedClosed: 0,
		},
		{
			name: "error case - GitHub API returns an error",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"message": "Internal Server Error"}`)
			},
			expectError:    true,
			expectedErrMsg: "failed to count issues",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway, _ := setupTestGateway(t, http.HandlerFunc(tc.handlerFunc))

			open, closed, err := gateway.FetchPullRequestCounts(context.Background(), "widget")

			if tc.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedErrMsg)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expectedOpen, open)
				assert.Equal(t, tc.expectedClosed, closed)
			}
		})
	}
}

func TestGitHubGateway_FetchContributorsCount(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/repos/acme/widget/contributors", r.URL.Path)
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `[{"login": "alice"}, {"login": "bob"}, {"login": "carol"}]`)
		})
		gateway, _ := setupTestGateway(t, handler)

		count, err := gateway.FetchContributorsCount(context.Background(), "widget")

		assert.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("empty repository counts as zero", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			fmt.Fprint(w, `{"message": "Git Repository is empty."}`)
		})
		gateway, _ := setupTestGateway(t, handler)

		count, err := gateway.FetchContributorsCount(context.Background(), "widget")

		assert.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}

func TestGitHubGateway_DetectCodeTypes(t *testing.T) {
	t.Run("maps extensions and deduplicates", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/repos/acme/widget/contents/", r.URL.Path)
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `[
				{"type": "file", "name": "main.go"},
				{"type": "file", "name": "util.go"},
				{"type": "file", "name": "setup.py"},
				{"type": "dir", "name": "docs.html"},
				{"type": "file", "name": "README"}
			]`)
		})
		gateway, _ := setupTestGateway(t, handler)

		types, err := gateway.DetectCodeTypes(context.Background(), "widget")

		assert.NoError(t, err)
		assert.Equal(t, []string{"Go", "Python"}, types)
	})

	t.Run("missing repository yields no types", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message": "Not Found"}`)
		})
		gateway, _ := setupTestGateway(t, handler)

		types, err := gateway.DetectCodeTypes(context.Background(), "widget")

		assert.NoError(t, err)
		assert.Empty(t, types)
	})
}

func TestGitHubGateway_FetchCommitStats(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widget/stats/contributors", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `[{"total": 30, "author": {"login": "alice"}}, {"total": 12, "author": {"login": "bob"}}]`)
	})
	mux.HandleFunc("/repos/acme/widget/commits", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `[
			{"sha": "abc123", "commit": {"committer": {"date": "2024-05-01T10:00:00Z"}}},
			{"sha": "def456", "commit": {"committer": {"date": "2024-04-01T10:00:00Z"}}}
		]`)
	})
	mux.HandleFunc("/search/issues", func(w http.ResponseWriter, r *http.Request) {
		// Only abc123 has an associated pull request.
		w.WriteHeader(http.StatusOK)
		if strings.Contains(r.URL.Query().Get("q"), "abc123") {
			fmt.Fprint(w, `{"total_count": 1, "items": []}`)
		} else {
			fmt.Fprint(w, `{"total_count": 0, "items": []}`)
		}
	})
	gateway, _ := setupTestGateway(t, mux)

	cs, err := gateway.FetchCommitStats(context.Background(), "widget", "main")

	require.NoError(t, err)
	assert.Equal(t, 42, cs.TotalCommits)
	assert.Equal(t, "2024-05-01T10:00:00Z", cs.LastCommitDate)
	assert.Equal(t, 1, cs.DirectPushes)
}

func TestGitHubGateway_FetchCommitStats_FallsBackToPagination(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widget/stats/contributors", func(w http.ResponseWriter, r *http.Request) {
		// GitHub is still computing the statistics.
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/repos/acme/widget/commits", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `[{"sha": "abc123", "commit": {"committer": {"date": "2024-05-01T10:00:00Z"}}}]`)
	})
	mux.HandleFunc("/search/issues", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"total_count": 1, "items": []}`)
	})
	gateway, _ := setupTestGateway(t, mux)

	cs, err := gateway.FetchCommitStats(context.Background(), "widget", "main")

	require.NoError(t, err)
	assert.Equal(t, 1, cs.TotalCommits)
	assert.Equal(t, "2024-05-01T10:00:00Z", cs.LastCommitDate)
	assert.Equal(t, 0, cs.DirectPushes)
}

func TestBranchCandidates(t *testing.T) {
	assert.Equal(t, []string{"main", "master", "develop"}, branchCandidates("main"))
	assert.Equal(t, []string{"trunk", "master", "main", "develop"}, branchCandidates("trunk"))
	assert.Equal(t, []string{"master", "main", "develop"}, branchCandidates(""))
}

func TestGraphqlEndpoint(t *testing.T) {
	assert.Equal(t, "https://ghe.example.com/api/graphql", graphqlEndpoint("https://ghe.example.com/api/v3"))
	assert.Equal(t, "https://other.example.com/graphql", graphqlEndpoint("https://other.example.com"))
}
