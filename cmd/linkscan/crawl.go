package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/nao1215/linkscan/internal/config"
	"github.com/nao1215/linkscan/internal/crawler"
	"github.com/nao1215/linkscan/internal/database"
	"github.com/nao1215/linkscan/internal/log"
	"github.com/nao1215/linkscan/internal/metrics"
	"github.com/nao1215/linkscan/internal/model"
	"github.com/nao1215/linkscan/internal/pipeline"
	"github.com/nao1215/linkscan/internal/report"
	"github.com/nao1215/linkscan/internal/transport"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl a website and list its internal and external links",
		Long: `Crawl fetches the seed URL, follows every internal link up to the depth
threshold and reports all internal and external links it found.

The seed page is depth 1. Links found on it are depth 2, and so on.
External links are recorded but never fetched. Without a threshold the
crawl continues until no new internal link is found.

Examples:
  # Crawl a site without a depth limit
  linkscan crawl -u https://example.com

  # Stop at depth 2 and write the report to a file
  linkscan crawl -u https://example.com -t 2 -o links.txt

  # Flat lists, with external links also grouped by extension
  linkscan crawl -u https://example.com -s -e

  # Crawl two sites concurrently and print JSON
  linkscan crawl -u https://example.com -u https://example.org --json

  # Route requests through a SOCKS5 proxy
  linkscan crawl -u https://example.com --proxy 127.0.0.1:1080

Configuration file (.linkscan) example:
  sites:
    example.com:
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"
      depth: 3`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl scope flags
	cmd.Flags().StringArrayP("url", "u", nil,
		"Seed URL to crawl (repeatable; positional arguments are also accepted)")
	cmd.Flags().IntP("threshold", "t", config.DefaultMaxDepth,
		"Maximum crawl depth, the seed being depth 1 (default: unbounded)")
	cmd.Flags().String("domain-policy", config.DomainPolicyExact,
		"Which links are internal: exact, subdomain or registrable")
	cmd.Flags().StringSlice("ignore", nil,
		"URL path glob patterns that are never fetched")
	cmd.Flags().StringSlice("follow", nil,
		"Only fetch URL paths matching these glob patterns")

	// Crawl behavior flags
	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Number of fetches in flight per crawl")
	cmd.Flags().Int("max-pages", config.DefaultMaxPages,
		"Maximum number of pages fetched per crawl (0 = unlimited)")
	cmd.Flags().Duration("timeout", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().Duration("max-duration", config.DefaultMaxDuration,
		"Wall-clock limit for one crawl (0 = none)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of seeds crawled concurrently")

	// Network flags
	cmd.Flags().String("proxy", "",
		"Route requests through a SOCKS5 proxy (host:port)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and route requests through it")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .linkscan in current or home directory)")

	// Report flags
	cmd.Flags().StringP("output", "o", "",
		"Write the report to a new file (an existing file is never overwritten)")
	cmd.Flags().BoolP("simple", "s", false,
		"List links without grouping them")
	cmd.Flags().BoolP("ext-sort", "e", false,
		"Also list external links grouped by file extension")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")

	// Persistence flags
	cmd.Flags().Bool("no-history", false,
		"Do not archive the report in the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")
	cmd.Flags().String("metrics-file", "",
		"Write Prometheus metrics of the crawl to this file")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cmd, cfg, logger)
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.Seeds, err = cmd.Flags().GetStringArray("url")
	if err != nil {
		return nil, err
	}
	cfg.Seeds = append(cfg.Seeds, args...)

	cfg.MaxDepth, err = cmd.Flags().GetInt("threshold")
	if err != nil {
		return nil, err
	}
	cfg.ThresholdSet = cmd.Flags().Changed("threshold")

	cfg.DomainPolicy, err = cmd.Flags().GetString("domain-policy")
	if err != nil {
		return nil, err
	}

	cfg.IgnorePatterns, err = cmd.Flags().GetStringSlice("ignore")
	if err != nil {
		return nil, err
	}

	cfg.FollowPatterns, err = cmd.Flags().GetStringSlice("follow")
	if err != nil {
		return nil, err
	}

	cfg.Concurrency, err = cmd.Flags().GetInt("concurrency")
	if err != nil {
		return nil, err
	}

	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.MaxDuration, err = cmd.Flags().GetDuration("max-duration")
	if err != nil {
		return nil, err
	}

	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}

	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}

	cfg.ProxyAddress, err = cmd.Flags().GetString("proxy")
	if err != nil {
		return nil, err
	}

	cfg.UseTor, err = cmd.Flags().GetBool("tor")
	if err != nil {
		return nil, err
	}

	cfg.TorStartupTimeout, err = cmd.Flags().GetDuration("tor-timeout")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicitly given config file must exist; otherwise a missing
	// file means no site-specific settings.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case explicitConfigPath:
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	cfg.OutputFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	cfg.Simple, err = cmd.Flags().GetBool("simple")
	if err != nil {
		return nil, err
	}

	cfg.ExtSort, err = cmd.Flags().GetBool("ext-sort")
	if err != nil {
		return nil, err
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	noHistory, err := cmd.Flags().GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveHistory = !noHistory

	cfg.DBDir, err = cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}

	cfg.MetricsFile, err = cmd.Flags().GetString("metrics-file")
	if err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)

	return cfg, nil
}

// runCrawl crawls every seed and writes the reports.
func runCrawl(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"seeds", cfg.Seeds,
		"threshold", cfg.MaxDepth,
		"batchSize", cfg.BatchSize,
		"saveHistory", cfg.SaveHistory,
	)

	client, closeTransport, err := newTransport(ctx, cmd.ErrOrStderr(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeTransport()

	env := &crawlEnv{
		cfg:          cfg,
		client:       client,
		logger:       logger,
		policySet:    cmd.Flags().Changed("domain-policy"),
		userAgentSet: cmd.Flags().Changed("user-agent"),
	}

	if cfg.SaveHistory {
		history, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			// The crawl is still worth running without its archive.
			logger.Warn("history disabled: failed to open database", "path", cfg.DBPath(), "error", err)
		} else {
			defer history.Close()
			env.history = history
			logger.Info("history database opened", "path", history.Path())
		}
	}

	if cfg.MetricsFile != "" {
		env.metrics, err = metrics.New()
		if err != nil {
			return err
		}
	}

	bp := pipeline.NewBatchProcessor(env.newPipeline,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)
	runs, batchErr := bp.ProcessBatch(ctx, cfg.Seeds)

	if err := outputReports(cmd, cfg, runs); err != nil {
		return err
	}

	if env.metrics != nil {
		if err := env.metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Warn("failed to write metrics", "path", cfg.MetricsFile, "error", err)
		}
	}

	errs := make([]error, 0, len(runs)+1)
	for _, run := range runs {
		if run != nil && run.Err != nil {
			errs = append(errs, run.Err)
		}
	}
	if batchErr != nil && len(errs) == 0 {
		errs = append(errs, batchErr)
	}
	return errors.Join(errs...)
}

// crawlEnv is shared by the pipelines of one crawl command.
type crawlEnv struct {
	cfg     *config.Config
	client  *transport.Client
	history *database.HistoryDB
	metrics *metrics.Metrics
	logger  *slog.Logger

	// policySet and userAgentSet record flags given explicitly on the
	// command line. Explicit flags win over the config file.
	policySet    bool
	userAgentSet bool
}

// newPipeline builds the pipeline for one seed, applying its site configuration.
func (env *crawlEnv) newPipeline(seed string) (*pipeline.Pipeline, error) {
	cfg := env.cfg

	seedURL, err := crawler.ParseSeed(seed)
	if err != nil {
		return nil, err
	}
	site := cfg.SiteConfigs.GetSiteConfig(seedURL.Host)

	policyName := cfg.DomainPolicy
	if site.DomainPolicy != "" && !env.policySet {
		policyName = site.DomainPolicy
	}
	policy, err := crawler.ParsePolicy(policyName)
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", seedURL.Host, err)
	}

	userAgent := cfg.UserAgent
	if site.UserAgent != "" && !env.userAgentSet {
		userAgent = site.UserAgent
	}

	fetcher := crawler.NewHTTPFetcher(
		env.client.HTTPClientWithConfig(site.Cookie, site.Headers),
		crawler.WithUserAgent(userAgent),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
	)

	opts := []crawler.Option{
		crawler.WithMaxDepth(effectiveDepth(cfg, site)),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithMaxDuration(cfg.MaxDuration),
		crawler.WithTimeout(cfg.Timeout),
		crawler.WithConcurrency(cfg.Concurrency),
		crawler.WithDomainPolicy(policy),
		crawler.WithIgnorePatterns(slices.Concat(cfg.IgnorePatterns, site.IgnorePatterns)),
		crawler.WithFollowPatterns(slices.Concat(cfg.FollowPatterns, site.FollowPatterns)),
		crawler.WithLogger(env.logger),
	}
	if env.metrics != nil {
		opts = append(opts, crawler.WithRecorder(env.metrics.Recorder(seedURL.String())))
	}

	p := pipeline.New(pipeline.WithLogger(env.logger))
	p.AddStep(pipeline.NewCrawlStep(crawler.NewEngine(fetcher, opts...)))
	if env.history != nil {
		p.AddStep(pipeline.NewHistoryStep(env.history, env.logger))
	}
	if env.metrics != nil {
		p.AddStep(pipeline.NewMetricsStep(env.metrics))
	}
	return p, nil
}

// effectiveDepth returns the depth threshold for a site.
// An explicit --threshold wins over the site's depth, which wins over the default.
func effectiveDepth(cfg *config.Config, site config.SiteConfig) int {
	if cfg.ThresholdSet || site.Depth <= 0 {
		return cfg.MaxDepth
	}
	return site.Depth
}

// newTransport returns the client all fetches go through and a function
// releasing it.
func newTransport(ctx context.Context, stderr io.Writer, cfg *config.Config, logger *slog.Logger) (*transport.Client, func(), error) {
	if cfg.UseTor {
		return startEmbeddedTor(ctx, stderr, cfg, logger)
	}

	client, err := transport.NewClient(cfg.ProxyAddress, cfg.Timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	if cfg.ProxyAddress != "" {
		if status := client.CheckConnection(ctx); status != transport.ProxyStatusOK {
			return nil, nil, fmt.Errorf("proxy check failed: %w (make sure a SOCKS5 proxy is running at %s)",
				status.Err(), cfg.ProxyAddress)
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
	}

	return client, func() {}, nil
}

// startEmbeddedTor starts an embedded Tor daemon and returns a client dialing through it.
func startEmbeddedTor(ctx context.Context, stderr io.Writer, cfg *config.Config, logger *slog.Logger) (*transport.Client, func(), error) {
	fmt.Fprintln(stderr, "Starting embedded Tor daemon...")
	fmt.Fprintf(stderr, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embeddedTor := transport.NewEmbeddedTor(
		transport.WithStartupTimeout(cfg.TorStartupTimeout),
		transport.WithTorLogger(logger),
	)
	if err := embeddedTor.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	stop := func() {
		logger.Info("stopping embedded Tor daemon")
		if err := embeddedTor.Stop(); err != nil {
			logger.Error("failed to stop embedded Tor", "error", err)
		}
	}

	client, err := embeddedTor.NewClient(ctx, cfg.Timeout)
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}

	fmt.Fprintf(stderr, "Embedded Tor daemon started (SOCKS proxy: %s)\n\n", embeddedTor.SocksAddr())
	return client, stop, nil
}

// newReportWriter returns the writer for the configured output format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	opts := []report.Option{
		report.WithSimple(cfg.Simple),
		report.WithExtSort(cfg.ExtSort),
		report.WithVersion(getVersion()),
	}
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output, opts...)
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output, opts...)
	default:
		return report.NewTextWriter(output, opts...)
	}
}

// outputReports writes the report of every run, in seed order.
// When the reports went to a file, the totals are echoed on stdout.
func outputReports(cmd *cobra.Command, cfg *config.Config, runs []*pipeline.Run) error {
	dest, err := report.OpenDestination(cfg.OutputFile, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	reports, err := writeReports(dest, newReportWriter(cfg, dest), runs)
	if err != nil {
		return err
	}

	if dest.Redirected {
		fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", cfg.OutputFile)
		return report.WriteTotals(cmd.OutOrStdout(), reports...)
	}
	return nil
}

// writeReports writes the reports of runs with writer and closes out.
// Some filesystems only report a failed write on close, so the close
// error is returned too.
func writeReports(out io.Closer, writer report.Writer, runs []*pipeline.Run) (reports []*model.CrawlReport, err error) {
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close report output: %w", cerr)
		}
	}()

	reports = make([]*model.CrawlReport, 0, len(runs))
	for _, run := range runs {
		if run == nil || run.Report == nil {
			continue
		}
		if _, err := writer.Write(run.Report); err != nil {
			return nil, fmt.Errorf("failed to write report: %w", err)
		}
		reports = append(reports, run.Report)
	}
	return reports, nil
}
