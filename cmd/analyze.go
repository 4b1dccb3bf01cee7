package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/naka-gawa/repo-quality/internal/domain"
	"github.com/naka-gawa/repo-quality/internal/gateway"
	"github.com/naka-gawa/repo-quality/internal/report"
	"github.com/naka-gawa/repo-quality/internal/scoring"
	"github.com/naka-gawa/repo-quality/internal/usecase"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyzes and scores every repository of a GitHub organization",
	Long: `Collects pull request, commit, and contributor metadata for each
repository of the organization, scores it against the quality rules, and
writes JSON, CSV, XLSX, and HTML reports plus a reusable fetch cache.`,
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verbose, _ := cmd.InheritedFlags().GetBool("verbose")
	logger := log.New(io.Discard, "", log.LstdFlags) // Default: discard all logs.
	if verbose {
		logger.SetOutput(os.Stderr) // If verbose, log to standard error.
	}
	ui := report.NewUI()

	org, _ := cmd.Flags().GetString("org")
	if org == "" {
		org = os.Getenv("GITHUB_ORG")
	}
	if org == "" {
		return fmt.Errorf("organization is required: pass --org or set GITHUB_ORG")
	}
	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}

	outputDir, _ := cmd.Flags().GetString("output-dir")
	limit, _ := cmd.Flags().GetInt("limit")
	languages, _ := cmd.Flags().GetStringSlice("languages")
	repos, _ := cmd.Flags().GetStringSlice("repos")
	apiURL, _ := cmd.Flags().GetString("api-url")
	skipTLS, _ := cmd.Flags().GetBool("insecure-skip-verify")
	noProgress, _ := cmd.Flags().GetBool("no-progress")
	configPath, _ := cmd.Flags().GetString("scoring-config")
	fetchOnly, _ := cmd.Flags().GetBool("fetch-only")
	fromCache, _ := cmd.Flags().GetString("from-cache")

	cfg := scoring.Load(configPath, logger)
	if err := cfg.Validate(); err != nil {
		ui.Warning("scoring config: %v", err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var batch *domain.Batch
	if fromCache != "" {
		// Offline path: reload a previous fetch and re-score it against
		// the current configuration. No network access.
		loaded, err := report.LoadBatch(fromCache)
		if err != nil {
			return err
		}
		batch = loaded
		analyzer := usecase.NewAnalyzer(nil, cfg, logger, nil)
		analyzer.Rescore(batch)
		ui.Info("Re-scored %d cached repositories of %s", batch.RecordCount, batch.Organization)
	} else {
		if token == "" {
			return fmt.Errorf("a token is required: pass --token or set GITHUB_TOKEN")
		}
		fetcher, err := gateway.NewGitHubGateway(gateway.Options{
			Token:         token,
			Org:           org,
			BaseURL:       apiURL,
			SkipTLSVerify: skipTLS,
			Languages:     domain.DefaultLanguageTable(),
			Logger:        logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create GitHub gateway: %w", err)
		}

		var progress usecase.ProgressFunc
		if !noProgress && !verbose && isatty.IsTerminal(os.Stdout.Fd()) {
			progress = func(current, total int, repoName string) {
				fmt.Printf("\r\033[K[%d/%d] Analyzing %s...", current, total, report.Cyan(repoName))
			}
		}

		analyzer := usecase.NewAnalyzer(fetcher, cfg, logger, progress)
		batch, err = analyzer.AnalyzeOrganization(ctx, org, usecase.Filter{
			Limit:     limit,
			Languages: languages,
			Repos:     repos,
		})
		if progress != nil {
			fmt.Print("\r\033[K")
		}
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}
	}

	base := fmt.Sprintf("%s_repos_%s", batch.Organization, time.Now().Format("20060102_150405"))

	cachePath := filepath.Join(outputDir, base+"_cache.json")
	if fromCache == "" {
		if err := report.SaveBatch(batch, cachePath); err != nil {
			return err
		}
		ui.Success("Cache written to %s", cachePath)
	}
	if fetchOnly {
		return nil
	}

	outputs, err := report.WriteAll(batch, cfg, outputDir, base)
	if err != nil {
		return err
	}
	ui.Success("Reports written: %s, %s, %s, %s", outputs.JSON, outputs.CSV, outputs.Excel, outputs.HTML)

	ui.PrintSummary(batch)
	return nil
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringP("org", "o", "", "Target GitHub organization name (or GITHUB_ORG)")
	analyzeCmd.Flags().StringP("token", "t", "", "GitHub API token (or GITHUB_TOKEN)")
	analyzeCmd.Flags().StringP("output-dir", "d", ".", "Directory for report files")
	analyzeCmd.Flags().IntP("limit", "l", 0, "Analyze at most this many repositories (0 = all)")
	analyzeCmd.Flags().StringSlice("languages", nil, "Restrict to repositories in these languages")
	analyzeCmd.Flags().StringSlice("repos", nil, "Analyze only these repositories by name")
	analyzeCmd.Flags().String("api-url", "", "GitHub Enterprise base URL (default api.github.com)")
	analyzeCmd.Flags().Bool("insecure-skip-verify", false, "Skip TLS certificate verification")
	analyzeCmd.Flags().Bool("no-progress", false, "Disable the progress indicator")
	analyzeCmd.Flags().String("scoring-config", "", "Path to a YAML scoring configuration")
	analyzeCmd.Flags().Bool("fetch-only", false, "Fetch and cache data without writing reports")
	analyzeCmd.Flags().String("from-cache", "", "Re-score a cached batch file instead of fetching")
	analyzeCmd.MarkFlagsMutuallyExclusive("fetch-only", "from-cache")
}
