// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"

	"github.com/naka-gawa/repo-quality/internal/domain"
	"github.com/naka-gawa/repo-quality/internal/gateway"
	"github.com/naka-gawa/repo-quality/internal/scoring"
)

// ProgressFunc receives batch progress updates. It is injected by the CLI
// layer so that TTY handling never reaches the business logic; a nil
// function disables progress reporting.
type ProgressFunc func(current, total int, repoName string)

// Filter narrows which of the organization's repositories are analyzed.
type Filter struct {
	// Limit caps the number of repositories; zero means no cap.
	Limit int
	// Languages restricts the listing to repositories in these languages.
	Languages []string
	// Repos is a case-insensitive allow-list of repository names.
	Repos []string
}

// Analyzer is the use case for collecting and scoring repositories.
// Repositories are processed one at a time; a failing repository is
// logged and skipped so the rest of the batch survives.
type Analyzer struct {
	fetcher  gateway.Fetcher
	cfg      scoring.Config
	logger   *log.Logger
	progress ProgressFunc
}

// NewAnalyzer creates a new Analyzer instance. progress may be nil.
func NewAnalyzer(fetcher gateway.Fetcher, cfg scoring.Config, logger *log.Logger, progress ProgressFunc) *Analyzer {
	return &Analyzer{
		fetcher:  fetcher,
		cfg:      cfg,
		logger:   logger,
		progress: progress,
	}
}

// AnalyzeOrganization lists the organization's repositories, applies the
// filter, and analyzes them sequentially. Context cancellation stops the
// batch between repositories; any other per-repository failure is skipped.
func (a *Analyzer) AnalyzeOrganization(ctx context.Context, org string, filter Filter) (*domain.Batch, error) {
	a.logger.Println("Usecase: Starting repository analysis...")

	infos, err := a.fetcher.ListRepositories(ctx, filter.Languages)
	if err != nil {
		return nil, err
	}
	infos = applyRepoFilter(infos, filter.Repos, a.logger)
	if filter.Limit > 0 && filter.Limit < len(infos) {
		a.logger.Printf("Usecase: Limiting analysis to first %d repositories", filter.Limit)
		infos = infos[:filter.Limit]
	}

	records := make([]*domain.RepositoryRecord, 0, len(infos))
	for i, info := range infos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if a.progress != nil {
			a.progress(i+1, len(infos), info.Name)
		}

		rec, err := a.AnalyzeRepository(ctx, org, info)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			a.logger.Printf("Error analyzing repository %s: %v", info.Name, err)
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})
	a.logger.Println("Usecase: Analysis complete.")
	return domain.NewBatch(org, records), nil
}

// AnalyzeRepository collects every facet of one repository and scores the
// result. Facet failures degrade to zero values with a logged warning;
// only context cancellation is returned as an error.
func (a *Analyzer) AnalyzeRepository(ctx context.Context, org string, info gateway.RepoInfo) (*domain.RepositoryRecord, error) {
	rec := &domain.RepositoryRecord{
		Name:          info.Name,
		Org:           org,
		FullName:      info.FullName,
		Description:   info.Description,
		CreatedAt:     info.CreatedAt,
		DefaultBranch: info.DefaultBranch,
		Language:      info.Language,
		Private:       info.Private,
		Archived:      info.Archived,
		SizeKB:        info.SizeKB,
		Stars:         info.Stars,
		Forks:         info.Forks,
		OpenIssues:    info.OpenIssues,
	}

	a.logger.Printf("[1/5] Detecting code types of %s...", info.Name)
	codeTypes, err := a.fetcher.DetectCodeTypes(ctx, info.Name)
	if err := a.degrade(ctx, info.Name, "code types", err); err != nil {
		return nil, err
	}
	rec.CodeTypes = codeTypes
	rec.PrimaryCodeType = "Unknown"
	if len(codeTypes) > 0 {
		rec.PrimaryCodeType = codeTypes[0]
	}

	a.logger.Printf("[2/5] Counting pull requests of %s...", info.Name)
	open, closed, err := a.fetcher.FetchPullRequestCounts(ctx, info.Name)
	if err := a.degrade(ctx, info.Name, "pull request counts", err); err != nil {
		return nil, err
	}
	rec.OpenPRs = open
	rec.ClosedPRs = closed
	rec.TotalPRs = open + closed

	a.logger.Printf("[3/5] Counting contributors of %s...", info.Name)
	contributors, err := a.fetcher.FetchContributorsCount(ctx, info.Name)
	if err := a.degrade(ctx, info.Name, "contributors", err); err != nil {
		return nil, err
	}
	rec.ContributorsCount = contributors

	a.logger.Printf("[4/5] Fetching commit stats of %s...", info.Name)
	commitStats, err := a.fetcher.FetchCommitStats(ctx, info.Name, info.DefaultBranch)
	if err := a.degrade(ctx, info.Name, "commit stats", err); err != nil {
		return nil, err
	}
	rec.TotalCommits = commitStats.TotalCommits
	rec.LastCommitDate = commitStats.LastCommitDate
	rec.DirectPushesToBranch = commitStats.DirectPushes

	a.logger.Printf("[5/5] Analyzing PR reviews of %s...", info.Name)
	analysis, err := a.fetcher.FetchPRAnalysis(ctx, info.Name,
		a.cfg.Penalties.LargePRs.FilesThreshold,
		a.cfg.Penalties.SlowReviews.DaysThreshold)
	if err := a.degrade(ctx, info.Name, "PR review analysis", err); err != nil {
		return nil, err
	}
	rec.TotalAnalyzedPRs = analysis.TotalAnalyzed
	rec.SelfApprovedPRs = analysis.SelfApproved
	rec.PRsReviewedByOthers = analysis.ReviewedByOthers
	rec.PRsWithDescription = analysis.WithDescription
	rec.MergedPRs = analysis.Merged
	rec.ClosedWithoutMerge = analysis.ClosedWithoutMerge
	rec.PRsWithMultipleReviewers = analysis.MultipleReviewers
	rec.LargePRsCount = analysis.LargePRs
	rec.SlowReviewsCount = analysis.SlowReviews
	rec.AvgTimeToMergeHours = analysis.AvgTimeToMergeHours

	scoring.Annotate(rec, a.cfg)
	return rec, nil
}

// Rescore re-applies the scoring engine to every record of a cached batch.
// Only the derived score fields change; the raw facets are untouched.
func (a *Analyzer) Rescore(batch *domain.Batch) {
	for _, rec := range batch.Repositories {
		scoring.Annotate(rec, a.cfg)
	}
}

// degrade converts a facet failure into a warning unless the context is
// gone, in which case the batch must stop.
func (a *Analyzer) degrade(ctx context.Context, repo, facet string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	a.logger.Printf("Warning: %s facet of %s degraded to empty: %v", facet, repo, err)
	return nil
}

func applyRepoFilter(infos []gateway.RepoInfo, names []string, logger *log.Logger) []gateway.RepoInfo {
	if len(names) == 0 {
		return infos
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[strings.ToLower(name)] = true
	}
	filtered := make([]gateway.RepoInfo, 0, len(names))
	found := make(map[string]bool, len(names))
	for _, info := range infos {
		if wanted[strings.ToLower(info.Name)] {
			filtered = append(filtered, info)
			found[strings.ToLower(info.Name)] = true
		}
	}
	logger.Printf("Usecase: Filtered %d repositories to %d by name", len(infos), len(filtered))
	for _, name := range names {
		if !found[strings.ToLower(name)] {
			logger.Printf("Warning: repository %q not found in organization", name)
		}
	}
	return filtered
}
