package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/naka-gawa/repo-quality/internal/domain"
	"github.com/naka-gawa/repo-quality/internal/scoring"
)

func sampleBatch() *domain.Batch {
	return domain.NewBatch("acme", []*domain.RepositoryRecord{
		{
			Name:                 "widget",
			Org:                  "acme",
			FullName:             "acme/widget",
			Language:             "Go",
			CodeTypes:            []string{"Go", "Shell"},
			PrimaryCodeType:      "Go",
			OpenPRs:              2,
			ClosedPRs:            18,
			TotalPRs:             20,
			TotalAnalyzedPRs:     18,
			SelfApprovedPRs:      1,
			PRsReviewedByOthers:  15,
			PRsWithDescription:   16,
			MergedPRs:            15,
			ClosedWithoutMerge:   3,
			AvgTimeToMergeHours:  18.5,
			TotalCommits:         240,
			DirectPushesToBranch: 9,
			LastCommitDate:       "2024-05-01T10:00:00Z",
			ContributorsCount:    6,
			QualityScore:         95,
			QualityJustification: "Good external review rate (83.3%) maintains high score.",
		},
		{
			Name:                 "legacy",
			Org:                  "acme",
			FullName:             "acme/legacy",
			Language:             "Python",
			ContributorsCount:    1,
			QualityScore:         30,
			QualityJustification: "No PRs to analyze for review quality.",
		},
	})
}

func TestSaveAndLoadBatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	batch := sampleBatch()

	require.NoError(t, SaveBatch(batch, path))

	loaded, err := LoadBatch(path)
	require.NoError(t, err)

	assert.Equal(t, batch.Organization, loaded.Organization)
	assert.Equal(t, batch.RecordCount, loaded.RecordCount)
	require.Len(t, loaded.Repositories, 2)
	// Every facet survives the round trip, so the batch can be re-scored.
	assert.Equal(t, batch.Repositories[0], loaded.Repositories[0])
	assert.Equal(t, batch.Repositories[1], loaded.Repositories[1])
}

func TestLoadBatch_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadBatch(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		_, err := LoadBatch(path)
		assert.ErrorContains(t, err, "failed to parse cache")
	})

	t.Run("stale record count is corrected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.json")
		content := `{"organization": "acme", "record_count": 99, "repositories": [{"name": "widget"}]}`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		batch, err := LoadBatch(path)
		require.NoError(t, err)
		assert.Equal(t, 1, batch.RecordCount)
	})
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	batch := sampleBatch()

	require.NoError(t, WriteJSON(batch.Repositories, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var records []*domain.RepositoryRecord
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 2)
	assert.Equal(t, batch.Repositories[0], records[0])
	// Field names follow the serialized contract, not the Go names.
	assert.Contains(t, string(data), `"quality_score"`)
	assert.Contains(t, string(data), `"direct_pushes_to_default"`)
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	batch := sampleBatch()

	require.NoError(t, WriteCSV(batch.Repositories, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])

	widget := rows[1]
	assert.Equal(t, "widget", widget[0])
	assert.Equal(t, "Go, Shell", widget[3])
	assert.Equal(t, "95", widget[4])
	assert.Equal(t, "18.5", widget[15])
}

func TestWriteExcel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	batch := sampleBatch()

	require.NoError(t, WriteExcel(batch.Repositories, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(excelSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "name", rows[0][0])
	assert.Equal(t, "widget", rows[1][0])
	assert.Equal(t, "legacy", rows[2][0])
}

func TestWriteHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.html")
	batch := sampleBatch()

	require.NoError(t, WriteHTML(batch, scoring.Default(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(data)

	assert.Contains(t, html, "acme")
	assert.Contains(t, html, `"name":"widget"`)
	// Slider defaults come from the active configuration.
	assert.Contains(t, html, "no_prs_points: 50")
	assert.Contains(t, html, "inactive_days: 365")
	assert.Contains(t, html, "calculateQualityScore")
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	batch := sampleBatch()

	outputs, err := WriteAll(batch, scoring.Default(), dir, "acme_repos_20240501_100000")

	require.NoError(t, err)
	for _, path := range []string{outputs.JSON, outputs.CSV, outputs.Excel, outputs.HTML} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestUI_PrintSummary(t *testing.T) {
	var out, errOut bytes.Buffer
	ui := &UI{Out: &out, ErrOut: &errOut}

	ui.PrintSummary(sampleBatch())

	text := out.String()
	assert.Contains(t, text, "widget")
	assert.Contains(t, text, "legacy")
	assert.Contains(t, text, "2024-05-01")
	assert.Contains(t, text, "mean 62.5")
	assert.Contains(t, text, "median 62.5")
	assert.Contains(t, text, "range 30-95")
	assert.Contains(t, text, "Go (1)")
}

func TestUI_PrintSummary_EmptyBatch(t *testing.T) {
	var out, errOut bytes.Buffer
	ui := &UI{Out: &out, ErrOut: &errOut}

	ui.PrintSummary(domain.NewBatch("acme", nil))

	assert.Contains(t, errOut.String(), "No repositories analyzed")
	assert.NotContains(t, out.String(), "mean")
}

func TestScoreColor(t *testing.T) {
	// Bands, not exact escape sequences: color may be disabled in CI.
	assert.Contains(t, ScoreColor(95), "95")
	assert.Contains(t, ScoreColor(60), "60")
	assert.Contains(t, ScoreColor(10), "10")
}

func TestTopCodeTypes(t *testing.T) {
	records := []*domain.RepositoryRecord{
		{CodeTypes: []string{"Go", "Shell"}},
		{CodeTypes: []string{"Go", "Python"}},
		{CodeTypes: []string{"Go"}},
	}

	top := topCodeTypes(records, 2)

	require.Len(t, top, 2)
	assert.Equal(t, codeTypeCount{name: "Go", count: 3}, top[0])
	assert.Equal(t, codeTypeCount{name: "Python", count: 1}, top[1])
}

func TestCSVHeaderMatchesRowWidth(t *testing.T) {
	row := csvRow(sampleBatch().Repositories[0])
	assert.Equal(t, len(csvHeader), len(row))
	assert.False(t, strings.ContainsAny(csvHeader[0], " ,"))
}
