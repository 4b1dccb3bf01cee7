package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/naka-gawa/repo-quality/internal/domain"
)

// Weight factors scaling a rule's ratio into penalty points before the
// configured cap is applied. These are part of the scoring formula itself,
// not operator-tunable knobs.
const (
	selfApprovalFactor   = 30
	externalReviewFactor = 50
	descriptionFactor    = 30
	directPushFactor     = 25
	largePRFactor        = 10
	slowReviewFactor     = 8
)

// goodExternalReviewRatio and goodDirectPushRatio bound the positive
// justification paths, which record text but never change the score.
const (
	goodExternalReviewRatio = 0.7
	goodDirectPushRatio     = 0.2
	recentCommitDays        = 30
)

// timeNow is replaced in tests to pin the activity rule.
var timeNow = time.Now

// Score evaluates every rule against the record and returns the clamped
// quality score with its justification text. It is pure: it never mutates
// the record, never fails, and identical inputs always yield identical
// output, which is what allows cached records to be re-scored against a
// different configuration without re-fetching.
func Score(rec domain.RepositoryRecord, cfg Config) (int, string) {
	score := cfg.BaseScore
	var lines []string

	penalize := func(rule Rule, points int, sentence string) {
		score -= points
		if rule.Message != "" {
			sentence = rule.Message
		}
		lines = append(lines, sentence)
	}

	// Ratio penalty for rules that fire when the ratio exceeds the
	// configured threshold.
	overPenalty := func(rule Rule, ratio float64, factor int) int {
		return capped(rule.Points, ratio*float64(factor))
	}
	// Ratio penalty for rules that fire on the shortfall below the
	// threshold.
	underPenalty := func(rule Rule, ratio float64, factor int) int {
		return capped(rule.Points, (rule.Threshold-ratio)*float64(factor))
	}

	totalPRs := rec.TotalAnalyzedPRs

	if totalPRs == 0 {
		penalize(cfg.Penalties.NoPRs, cfg.Penalties.NoPRs.Points,
			"No PRs to analyze for review quality")
	} else {
		selfRatio := float64(rec.SelfApprovedPRs) / float64(totalPRs)
		if rule := cfg.Penalties.HighSelfApproval; selfRatio > rule.Threshold {
			p := overPenalty(rule, selfRatio, selfApprovalFactor)
			penalize(rule, p, fmt.Sprintf("High self-approval rate (%s) reduces score by %d points", percent(selfRatio), p))
		}

		extRatio := float64(rec.PRsReviewedByOthers) / float64(totalPRs)
		if rule := cfg.Penalties.LowExternalReview; extRatio < rule.Threshold {
			p := underPenalty(rule, extRatio, externalReviewFactor)
			penalize(rule, p, fmt.Sprintf("Low external review rate (%s) reduces score by %d points", percent(extRatio), p))
		} else if extRatio > goodExternalReviewRatio {
			lines = append(lines, fmt.Sprintf("Good external review rate (%s) maintains high score", percent(extRatio)))
		}

		descRatio := float64(rec.PRsWithDescription) / float64(totalPRs)
		if rule := cfg.Penalties.NoPRDescriptions; descRatio < rule.Threshold {
			p := underPenalty(rule, descRatio, descriptionFactor)
			penalize(rule, p, fmt.Sprintf("Low PR description rate (%s) reduces score by %d points", percent(descRatio), p))
		} else {
			lines = append(lines, fmt.Sprintf("Good documentation with %s of PRs having descriptions", percent(descRatio)))
		}
	}

	// Branch discipline is independent of the PR gate. The direct-push
	// count is a sampled heuristic and the commit total comes from a
	// different API, so the ratio may exceed 1.0; it is deliberately left
	// unclamped and the penalty cap bounds the result.
	if rec.TotalCommits > 0 {
		pushRatio := float64(rec.DirectPushesToBranch) / float64(rec.TotalCommits)
		if rule := cfg.Penalties.HighDirectPushes; pushRatio > rule.Threshold {
			p := overPenalty(rule, pushRatio, directPushFactor)
			penalize(rule, p, fmt.Sprintf("High direct push ratio (%s) reduces score by %d points", percent(pushRatio), p))
		} else if pushRatio < goodDirectPushRatio {
			lines = append(lines, fmt.Sprintf("Good branch discipline with low direct push ratio (%s)", percent(pushRatio)))
		}
	}

	switch {
	case rec.ContributorsCount == 1:
		rule := cfg.Penalties.SingleContributor
		penalize(rule, rule.Points, fmt.Sprintf("Single contributor reduces collaboration score by %d points", rule.Points))
	case rec.ContributorsCount >= 5:
		lines = append(lines, fmt.Sprintf("Good collaboration with %d contributors", rec.ContributorsCount))
	case rec.ContributorsCount >= 3:
		lines = append(lines, fmt.Sprintf("Moderate collaboration with %d contributors", rec.ContributorsCount))
	}

	if rec.TotalCommits == 0 {
		rule := cfg.Penalties.NoCommits
		penalize(rule, rule.Points, fmt.Sprintf("No commits found reduces score by %d points", rule.Points))
	} else if rec.LastCommitDate != "" {
		// Unparsable dates are ignored: no penalty, no justification.
		if last, err := time.Parse(time.RFC3339, rec.LastCommitDate); err == nil {
			days := int(timeNow().Sub(last).Hours() / 24)
			rule := cfg.Penalties.InactiveRepository
			if days > rule.DaysThreshold {
				penalize(rule, rule.Points, fmt.Sprintf("Last commit was %d days ago, reducing score by %d points", days, rule.Points))
			} else if days <= recentCommitDays {
				lines = append(lines, "Recent activity maintains score")
			}
		}
	}

	if totalPRs > 0 {
		largeRatio := float64(rec.LargePRsCount) / float64(totalPRs)
		if rule := cfg.Penalties.LargePRs; largeRatio > rule.Threshold {
			p := overPenalty(rule, largeRatio, largePRFactor)
			penalize(rule, p, fmt.Sprintf("High ratio of large PRs (%s) reduces score by %d points", percent(largeRatio), p))
		}

		slowRatio := float64(rec.SlowReviewsCount) / float64(totalPRs)
		if rule := cfg.Penalties.SlowReviews; slowRatio > rule.Threshold {
			p := overPenalty(rule, slowRatio, slowReviewFactor)
			penalize(rule, p, fmt.Sprintf("Slow review turnaround on %s of PRs reduces score by %d points", percent(slowRatio), p))
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	justification := "Repository meets basic quality standards."
	if len(lines) > 0 {
		justification = strings.Join(lines, ". ") + "."
	}
	return score, justification
}

// Annotate scores the record in place, overwriting only the two derived
// fields.
func Annotate(rec *domain.RepositoryRecord, cfg Config) {
	rec.QualityScore, rec.QualityJustification = Score(*rec, cfg)
}

func capped(limit int, raw float64) int {
	p := int(math.Round(raw))
	if p > limit {
		return limit
	}
	if p < 0 {
		return 0
	}
	return p
}

func percent(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}
