package report

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/montanaflynn/stats"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/naka-gawa/repo-quality/internal/domain"
)

// Table creates a tablewriter with the summary styling.
func (u *UI) Table(headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(u.Out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}

// PrintSummary renders the per-repository table and the aggregate score
// statistics of a batch to the terminal.
func (u *UI) PrintSummary(batch *domain.Batch) {
	if batch.RecordCount == 0 {
		u.Warning("No repositories analyzed")
		return
	}

	fmt.Fprintf(u.Out, "\nAnalyzed %s repositories in %s\n\n",
		Cyan(strconv.Itoa(batch.RecordCount)), Cyan(batch.Organization))

	table := u.Table([]string{"Repository", "Language", "Score", "PRs", "Contributors", "Last Commit"})
	for _, rec := range batch.Repositories {
		lastCommit := "never"
		if len(rec.LastCommitDate) >= 10 {
			lastCommit = rec.LastCommitDate[:10]
		}
		lang := rec.Language
		if lang == "" {
			lang = "-"
		}
		table.Append([]string{
			rec.Name,
			lang,
			ScoreColor(rec.QualityScore),
			strconv.Itoa(rec.TotalPRs),
			strconv.Itoa(rec.ContributorsCount),
			lastCommit,
		})
	}
	if err := table.Render(); err != nil {
		u.Error("failed to render summary table: %v", err)
		return
	}

	scores := make([]float64, 0, len(batch.Repositories))
	for _, rec := range batch.Repositories {
		scores = append(scores, float64(rec.QualityScore))
	}
	mean, _ := stats.Mean(scores)
	median, _ := stats.Median(scores)
	stddev, _ := stats.StandardDeviation(scores)
	min, _ := stats.Min(scores)
	max, _ := stats.Max(scores)

	fmt.Fprintf(u.Out, "\nScore distribution: mean %.1f, median %.1f, stddev %.1f, range %d-%d\n",
		mean, median, stddev, int(min), int(max))

	if top := topCodeTypes(batch.Repositories, 5); len(top) > 0 {
		fmt.Fprintf(u.Out, "Top code types: ")
		for i, ct := range top {
			if i > 0 {
				fmt.Fprint(u.Out, ", ")
			}
			fmt.Fprintf(u.Out, "%s (%d)", ct.name, ct.count)
		}
		fmt.Fprintln(u.Out)
	}
}

type codeTypeCount struct {
	name  string
	count int
}

// topCodeTypes counts code type occurrences across records and returns the
// n most common, ties broken alphabetically.
func topCodeTypes(records []*domain.RepositoryRecord, n int) []codeTypeCount {
	counts := make(map[string]int)
	for _, rec := range records {
		for _, ct := range rec.CodeTypes {
			counts[ct]++
		}
	}
	out := make([]codeTypeCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, codeTypeCount{name: name, count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
