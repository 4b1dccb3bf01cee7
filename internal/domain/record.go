// Package domain contains the core data structures and domain logic for the application.
package domain

import "time"

// RepositoryRecord holds everything collected about a single repository,
// plus the quality score derived from it. It is the core domain entity:
// the collector produces it, the scoring engine annotates it, and the
// report writers serialize it.
type RepositoryRecord struct {
	// Identity and basic metadata, immutable once fetched.
	Name          string `json:"name"`
	Org           string `json:"org"`
	FullName      string `json:"full_name"`
	Description   string `json:"description"`
	CreatedAt     string `json:"created_at"`
	DefaultBranch string `json:"default_branch"`
	Language      string `json:"language"`
	Private       bool   `json:"private"`
	Archived      bool   `json:"archived"`
	SizeKB        int    `json:"size"`
	Stars         int    `json:"stargazers_count"`
	Forks         int    `json:"forks_count"`
	OpenIssues    int    `json:"open_issues_count"`

	// Code types detected from root-directory file extensions.
	CodeTypes       []string `json:"code_types"`
	PrimaryCodeType string   `json:"primary_code_type"`

	// Pull request aggregates.
	OpenPRs                  int     `json:"open_prs"`
	ClosedPRs                int     `json:"closed_prs"`
	TotalPRs                 int     `json:"total_prs"`
	TotalAnalyzedPRs         int     `json:"total_analyzed_prs"`
	SelfApprovedPRs          int     `json:"self_approved_prs"`
	PRsReviewedByOthers      int     `json:"prs_reviewed_by_others"`
	PRsWithDescription       int     `json:"prs_with_description"`
	MergedPRs                int     `json:"merged_prs"`
	ClosedWithoutMerge       int     `json:"closed_without_merge"`
	PRsWithMultipleReviewers int     `json:"prs_with_multiple_reviewers"`
	LargePRsCount            int     `json:"large_prs_count"`
	SlowReviewsCount         int     `json:"slow_reviews_count"`
	AvgTimeToMergeHours      float64 `json:"avg_time_to_merge_hours"`

	// Commit aggregates. LastCommitDate is the raw ISO-8601 timestamp as
	// returned by the API, or empty when the repository has no commits.
	TotalCommits         int    `json:"total_commits"`
	DirectPushesToBranch int    `json:"direct_pushes_to_default"`
	LastCommitDate       string `json:"last_commit_date"`

	ContributorsCount int `json:"contributors_count"`

	// Derived by the scoring engine; every other field is left untouched
	// when a record is re-scored.
	QualityScore         int    `json:"quality_score"`
	QualityJustification string `json:"quality_justification"`
}

// Batch wraps the records of one collection run with its metadata. It is
// the persisted cache format: a batch saved after fetching can be reloaded
// and re-scored against a different configuration without network access.
type Batch struct {
	Organization string              `json:"organization"`
	FetchedAt    time.Time           `json:"fetched_at"`
	RecordCount  int                 `json:"record_count"`
	Repositories []*RepositoryRecord `json:"repositories"`
}

// NewBatch creates a batch wrapping the given records.
func NewBatch(org string, records []*RepositoryRecord) *Batch {
	return &Batch{
		Organization: org,
		FetchedAt:    time.Now().UTC(),
		RecordCount:  len(records),
		Repositories: records,
	}
}
