package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/naka-gawa/repo-quality/internal/domain"
)

// csvHeader fixes the column order of the tabular outputs (CSV and XLSX).
var csvHeader = []string{
	"name",
	"full_name",
	"language",
	"code_types",
	"quality_score",
	"quality_justification",
	"total_analyzed_prs",
	"self_approved_prs",
	"prs_reviewed_by_others",
	"prs_with_description",
	"merged_prs",
	"closed_without_merge",
	"prs_with_multiple_reviewers",
	"large_prs_count",
	"slow_reviews_count",
	"avg_time_to_merge_hours",
	"open_prs",
	"closed_prs",
	"total_prs",
	"total_commits",
	"direct_pushes_to_default",
	"last_commit_date",
	"contributors_count",
	"stargazers_count",
	"forks_count",
	"open_issues_count",
	"default_branch",
	"created_at",
	"archived",
	"private",
}

func csvRow(rec *domain.RepositoryRecord) []string {
	return []string{
		rec.Name,
		rec.FullName,
		rec.Language,
		strings.Join(rec.CodeTypes, ", "),
		strconv.Itoa(rec.QualityScore),
		rec.QualityJustification,
		strconv.Itoa(rec.TotalAnalyzedPRs),
		strconv.Itoa(rec.SelfApprovedPRs),
		strconv.Itoa(rec.PRsReviewedByOthers),
		strconv.Itoa(rec.PRsWithDescription),
		strconv.Itoa(rec.MergedPRs),
		strconv.Itoa(rec.ClosedWithoutMerge),
		strconv.Itoa(rec.PRsWithMultipleReviewers),
		strconv.Itoa(rec.LargePRsCount),
		strconv.Itoa(rec.SlowReviewsCount),
		strconv.FormatFloat(rec.AvgTimeToMergeHours, 'f', 1, 64),
		strconv.Itoa(rec.OpenPRs),
		strconv.Itoa(rec.ClosedPRs),
		strconv.Itoa(rec.TotalPRs),
		strconv.Itoa(rec.TotalCommits),
		strconv.Itoa(rec.DirectPushesToBranch),
		rec.LastCommitDate,
		strconv.Itoa(rec.ContributorsCount),
		strconv.Itoa(rec.Stars),
		strconv.Itoa(rec.Forks),
		strconv.Itoa(rec.OpenIssues),
		rec.DefaultBranch,
		rec.CreatedAt,
		strconv.FormatBool(rec.Archived),
		strconv.FormatBool(rec.Private),
	}
}

// WriteJSON writes the records as a pretty-printed JSON array.
func WriteJSON(records []*domain.RepositoryRecord, filename string) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records to JSON: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return nil
}

// WriteCSV writes the records as a flat CSV; list-valued fields are joined
// with ", ".
func WriteCSV(records []*domain.RepositoryRecord, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write(csvRow(rec)); err != nil {
			return fmt.Errorf("failed to write CSV row for %s: %w", rec.Name, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", filename, err)
	}
	return nil
}
