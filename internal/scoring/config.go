// Package scoring computes a 0-100 quality score for a repository record
// from a configurable table of penalty rules.
package scoring

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Rule is the configuration of a single scoring rule. Fields that do not
// apply to a rule are ignored: ratio rules use Points as the penalty cap
// and Threshold as the trigger ratio, flat rules use Points as the exact
// deduction, and the time/size rules read their dedicated thresholds.
// A non-empty Message replaces the default justification sentence.
type Rule struct {
	Points         int     `mapstructure:"penalty_percent"`
	Threshold      float64 `mapstructure:"threshold"`
	DaysThreshold  int     `mapstructure:"days_threshold"`
	FilesThreshold int     `mapstructure:"files_threshold"`
	Message        string  `mapstructure:"message"`
}

// Penalties holds one rule per scoring concern.
type Penalties struct {
	NoPRs              Rule `mapstructure:"no_prs"`
	HighSelfApproval   Rule `mapstructure:"high_self_approval"`
	LowExternalReview  Rule `mapstructure:"low_external_review"`
	NoPRDescriptions   Rule `mapstructure:"no_pr_descriptions"`
	HighDirectPushes   Rule `mapstructure:"high_direct_pushes"`
	SingleContributor  Rule `mapstructure:"single_contributor"`
	NoCommits          Rule `mapstructure:"no_commits"`
	InactiveRepository Rule `mapstructure:"inactive_repository"`
	LargePRs           Rule `mapstructure:"large_prs"`
	SlowReviews        Rule `mapstructure:"slow_reviews"`
}

// Config drives the scoring engine. The zero value is not usable; obtain
// one via Default or Load so that every field carries its documented
// default even when the operator overrides only a subset of rules.
type Config struct {
	BaseScore int       `mapstructure:"base_score"`
	Penalties Penalties `mapstructure:"penalties"`
}

// setDefaults registers every recognized key so that a partial config file
// falls back per field, not per rule block. Keys are also bound to
// REPOQUALITY_* environment variables (dots become underscores).
func setDefaults(v *viper.Viper) {
	v.SetEnvPrefix("repoquality")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("base_score", 100)

	v.SetDefault("penalties.no_prs.penalty_percent", 50)
	v.SetDefault("penalties.high_self_approval.penalty_percent", 25)
	v.SetDefault("penalties.high_self_approval.threshold", 0.5)
	v.SetDefault("penalties.low_external_review.penalty_percent", 15)
	v.SetDefault("penalties.low_external_review.threshold", 0.3)
	v.SetDefault("penalties.no_pr_descriptions.penalty_percent", 15)
	v.SetDefault("penalties.no_pr_descriptions.threshold", 0.5)
	v.SetDefault("penalties.high_direct_pushes.penalty_percent", 20)
	v.SetDefault("penalties.high_direct_pushes.threshold", 0.5)
	v.SetDefault("penalties.single_contributor.penalty_percent", 10)
	v.SetDefault("penalties.no_commits.penalty_percent", 10)
	v.SetDefault("penalties.inactive_repository.penalty_percent", 5)
	v.SetDefault("penalties.inactive_repository.days_threshold", 365)
	v.SetDefault("penalties.large_prs.penalty_percent", 5)
	v.SetDefault("penalties.large_prs.threshold", 0.3)
	v.SetDefault("penalties.large_prs.files_threshold", 15)
	v.SetDefault("penalties.slow_reviews.penalty_percent", 5)
	v.SetDefault("penalties.slow_reviews.threshold", 0.4)
	v.SetDefault("penalties.slow_reviews.days_threshold", 7)
}

// Default returns the built-in configuration.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Unmarshal of pure defaults cannot fail; the struct mirrors the keys.
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Load reads a YAML scoring configuration from path and merges it over the
// defaults. A missing or malformed file is never fatal: it logs a warning
// and returns the defaults, so an analysis run always has a usable config.
func Load(path string, logger *log.Logger) Config {
	if path == "" {
		return Default()
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		logger.Printf("scoring config %s not usable (%v), using defaults", path, err)
		return Default()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		logger.Printf("scoring config %s not parsable (%v), using defaults", path, err)
		return Default()
	}
	return cfg
}

// Validate reports obviously broken overrides. It is advisory: the engine
// tolerates any config, but the CLI surfaces these to the operator.
func (c Config) Validate() error {
	if c.BaseScore < 0 || c.BaseScore > 100 {
		return fmt.Errorf("base_score %d outside [0, 100]", c.BaseScore)
	}
	for name, r := range map[string]Rule{
		"high_self_approval":  c.Penalties.HighSelfApproval,
		"low_external_review": c.Penalties.LowExternalReview,
		"no_pr_descriptions":  c.Penalties.NoPRDescriptions,
		"high_direct_pushes":  c.Penalties.HighDirectPushes,
	} {
		if r.Threshold < 0 || r.Threshold > 1 {
			return fmt.Errorf("penalties.%s.threshold %v outside [0, 1]", name, r.Threshold)
		}
	}
	return nil
}
