package gateway

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
)

// minDescriptionLength is the shortest PR body counted as a real
// description.
const minDescriptionLength = 10

// closedPR is the client-neutral shape both fetch paths produce before
// aggregation.
type closedPR struct {
	author       string
	body         string
	createdAt    time.Time
	mergedAt     time.Time // zero when closed without merging
	changedFiles int
	reviews      []prReview
}

type prReview struct {
	state       string
	author      string
	submittedAt time.Time
}

// closedPRQuery fetches the most recently updated closed PRs with their
// review details in one search round trip per page.
type closedPRQuery struct {
	Search struct {
		PageInfo struct {
			HasNextPage bool
			EndCursor   githubv4.String
		}
		Edges []struct {
			Node struct {
				Typename    string `graphql:"__typename"`
				PullRequest struct {
					Author struct {
						Login string
					}
					Body         string
					CreatedAt    githubv4.DateTime
					MergedAt     githubv4.DateTime
					Merged       bool
					ChangedFiles int
					Reviews      struct {
						Nodes []struct {
							State       string
							SubmittedAt githubv4.DateTime
							Author      struct {
								Login string
							}
						}
					} `graphql:"reviews(first: 50)"`
				} `graphql:"... on PullRequest"`
			}
		}
	} `graphql:"search(query: $query, type: ISSUE, first: 25, after: $cursor)"` // Smaller page size; each node carries its review list.
}

// FetchPRAnalysis analyzes the most recent closed pull requests of the
// repository. The primary path is a GraphQL search that returns review
// details inline; when it fails, the REST pulls API is paged as a fallback
// with one extra detail and review request per PR.
func (g *GitHubGateway) FetchPRAnalysis(ctx context.Context, repo string, largeFilesThreshold, slowReviewDays int) (PRAnalysis, error) {
	prs, err := g.closedPRsViaSearch(ctx, repo)
	if err != nil {
		g.logger.Printf("  closed-PR search failed for %s (%v), falling back to pulls API", repo, err)
		prs, err = g.closedPRsViaREST(ctx, repo)
		if err != nil {
			if isMissing(err) {
				return PRAnalysis{}, nil
			}
			return PRAnalysis{}, err
		}
	}
	return analyzeClosedPRs(prs, largeFilesThreshold, slowReviewDays), nil
}

func (g *GitHubGateway) closedPRsViaSearch(ctx context.Context, repo string) ([]closedPR, error) {
	g.logger.Printf("  Fetching closed PRs of %s via search...", repo)
	query := fmt.Sprintf("repo:%s/%s is:pr is:closed sort:updated-desc", g.org, repo)
	variables := map[string]interface{}{
		"query":  githubv4.String(query),
		"cursor": (*githubv4.String)(nil),
	}

	var prs []closedPR
	for len(prs) < prAnalysisWindow {
		var q closedPRQuery
		if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
			return nil, fmt.Errorf("closed-PR search query: %w", err)
		}
		for _, edge := range q.Search.Edges {
			if edge.Node.Typename != "PullRequest" {
				continue
			}
			node := edge.Node.PullRequest
			pr := closedPR{
				author:       node.Author.Login,
				body:         node.Body,
				createdAt:    node.CreatedAt.Time,
				changedFiles: node.ChangedFiles,
			}
			if node.Merged {
				pr.mergedAt = node.MergedAt.Time
			}
			for _, review := range node.Reviews.Nodes {
				pr.reviews = append(pr.reviews, prReview{
					state:       review.State,
					author:      review.Author.Login,
					submittedAt: review.SubmittedAt.Time,
				})
			}
			prs = append(prs, pr)
			if len(prs) == prAnalysisWindow {
				break
			}
		}
		if !q.Search.PageInfo.HasNextPage {
			break
		}
		variables["cursor"] = githubv4.NewString(q.Search.PageInfo.EndCursor)
		g.logger.Println("  Fetching next page of closed PRs...")
	}
	g.logger.Printf("  Found %d closed PRs for %s via search", len(prs), repo)
	return prs, nil
}

func (g *GitHubGateway) closedPRsViaREST(ctx context.Context, repo string) ([]closedPR, error) {
	opts := &github.PullRequestListOptions{
		State:       "closed",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var listed []*github.PullRequest
	for page := 1; page <= maxPullsFallbackPages; page++ {
		opts.Page = page
		var prs []*github.PullRequest
		var resp *github.Response
		err := g.withRetry(ctx, func() error {
			var err error
			prs, resp, err = g.restClient.PullRequests.List(ctx, g.org, repo, opts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list closed PRs of %s: %w", repo, err)
		}
		listed = append(listed, prs...)
		if resp.NextPage == 0 {
			break
		}
	}
	g.logger.Printf("  Found %d closed PRs for %s via pulls API", len(listed), repo)

	var prs []closedPR
	for _, listedPR := range listed {
		pr := closedPR{
			author:    listedPR.GetUser().GetLogin(),
			body:      listedPR.GetBody(),
			createdAt: listedPR.GetCreatedAt().Time,
		}
		if listedPR.MergedAt != nil {
			pr.mergedAt = listedPR.GetMergedAt().Time
		}

		// The list endpoint omits the diff size; one detail request per PR.
		var detail *github.PullRequest
		err := g.withRetry(ctx, func() error {
			var err error
			detail, _, err = g.restClient.PullRequests.Get(ctx, g.org, repo, listedPR.GetNumber())
			return err
		})
		if err == nil {
			pr.changedFiles = detail.GetChangedFiles()
		} else if !isMissing(err) {
			return nil, fmt.Errorf("failed to fetch PR #%d of %s: %w", listedPR.GetNumber(), repo, err)
		}

		var reviews []*github.PullRequestReview
		err = g.withRetry(ctx, func() error {
			var err error
			reviews, _, err = g.restClient.PullRequests.ListReviews(ctx, g.org, repo, listedPR.GetNumber(), nil)
			return err
		})
		if err != nil && !isMissing(err) {
			return nil, fmt.Errorf("failed to fetch reviews of PR #%d of %s: %w", listedPR.GetNumber(), repo, err)
		}
		for _, review := range reviews {
			pr.reviews = append(pr.reviews, prReview{
				state:       review.GetState(),
				author:      review.GetUser().GetLogin(),
				submittedAt: review.GetSubmittedAt().Time,
			})
		}
		prs = append(prs, pr)
	}
	return prs, nil
}

// analyzeClosedPRs aggregates the facet counters from the fetched window.
func analyzeClosedPRs(prs []closedPR, largeFilesThreshold, slowReviewDays int) PRAnalysis {
	analysis := PRAnalysis{TotalAnalyzed: len(prs)}
	if len(prs) == 0 {
		return analysis
	}

	totalMergeHours := 0.0
	for _, pr := range prs {
		if len(strings.TrimSpace(pr.body)) > minDescriptionLength {
			analysis.WithDescription++
		}

		if !pr.mergedAt.IsZero() {
			analysis.Merged++
			totalMergeHours += pr.mergedAt.Sub(pr.createdAt).Hours()
		} else {
			analysis.ClosedWithoutMerge++
		}

		if pr.changedFiles > largeFilesThreshold {
			analysis.LargePRs++
		}

		approvers := make(map[string]bool)
		selfApproved := false
		othersApproved := false
		var firstReview time.Time
		for _, review := range pr.reviews {
			if firstReview.IsZero() || review.submittedAt.Before(firstReview) {
				firstReview = review.submittedAt
			}
			// The uppercase state is the GraphQL spelling; REST matches it.
			if strings.EqualFold(review.state, "APPROVED") {
				approvers[review.author] = true
				if review.author == pr.author {
					selfApproved = true
				} else {
					othersApproved = true
				}
			}
		}
		if selfApproved {
			analysis.SelfApproved++
		}
		if othersApproved {
			analysis.ReviewedByOthers++
		}
		if len(approvers) > 1 {
			analysis.MultipleReviewers++
		}

		// PRs with no reviews at all are not slow; the review-rate rules
		// already account for them.
		if !firstReview.IsZero() {
			turnaround := firstReview.Sub(pr.createdAt)
			if turnaround > time.Duration(slowReviewDays)*24*time.Hour {
				analysis.SlowReviews++
			}
		}
	}

	if analysis.Merged > 0 {
		analysis.AvgTimeToMergeHours = math.Round(totalMergeHours/float64(analysis.Merged)*10) / 10
	}
	return analysis
}
