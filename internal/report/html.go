package report

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"os"

	"github.com/naka-gawa/repo-quality/internal/domain"
	"github.com/naka-gawa/repo-quality/internal/scoring"
)

//go:embed template.html
var dashboardTemplate string

// dashboardDefaults feeds the slider defaults of the interactive dashboard
// from the active scoring configuration, so the page starts from the same
// numbers that produced the embedded scores.
type dashboardDefaults struct {
	NoPRsPoints             int
	SelfApprovalPoints      int
	SelfApprovalThreshold   float64
	ExternalReviewPoints    int
	ExternalReviewThreshold float64
	DescriptionsPoints      int
	DescriptionsThreshold   float64
	DirectPushesPoints      int
	DirectPushesThreshold   float64
	SingleContributorPoints int
	NoCommitsPoints         int
	InactivePoints          int
	InactiveDays            int
	LargePRsPoints          int
	LargePRsThreshold       float64
	SlowReviewsPoints       int
	SlowReviewsThreshold    float64
}

func defaultsFrom(cfg scoring.Config) dashboardDefaults {
	p := cfg.Penalties
	return dashboardDefaults{
		NoPRsPoints:             p.NoPRs.Points,
		SelfApprovalPoints:      p.HighSelfApproval.Points,
		SelfApprovalThreshold:   p.HighSelfApproval.Threshold,
		ExternalReviewPoints:    p.LowExternalReview.Points,
		ExternalReviewThreshold: p.LowExternalReview.Threshold,
		DescriptionsPoints:      p.NoPRDescriptions.Points,
		DescriptionsThreshold:   p.NoPRDescriptions.Threshold,
		DirectPushesPoints:      p.HighDirectPushes.Points,
		DirectPushesThreshold:   p.HighDirectPushes.Threshold,
		SingleContributorPoints: p.SingleContributor.Points,
		NoCommitsPoints:         p.NoCommits.Points,
		InactivePoints:          p.InactiveRepository.Points,
		InactiveDays:            p.InactiveRepository.DaysThreshold,
		LargePRsPoints:          p.LargePRs.Points,
		LargePRsThreshold:       p.LargePRs.Threshold,
		SlowReviewsPoints:       p.SlowReviews.Points,
		SlowReviewsThreshold:    p.SlowReviews.Threshold,
	}
}

// WriteHTML renders the interactive dashboard: the full dataset embedded as
// JSON plus a client-side rendition of the scoring rules, so thresholds can
// be explored without re-running the analysis.
func WriteHTML(batch *domain.Batch, cfg scoring.Config, filename string) error {
	data, err := json.Marshal(batch.Repositories)
	if err != nil {
		return fmt.Errorf("failed to marshal records for dashboard: %w", err)
	}

	tmpl, err := template.New("dashboard").Parse(dashboardTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse dashboard template: %w", err)
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	defer f.Close()

	err = tmpl.Execute(f, struct {
		Organization string
		Data         template.JS
		Defaults     dashboardDefaults
	}{
		Organization: batch.Organization,
		Data:         template.JS(data),
		Defaults:     defaultsFrom(cfg),
	})
	if err != nil {
		return fmt.Errorf("failed to render dashboard: %w", err)
	}
	return nil
}
