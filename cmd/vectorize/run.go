package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nao1215/vectorize/internal/config"
	"github.com/nao1215/vectorize/internal/crawler"
	"github.com/nao1215/vectorize/internal/log"
	"github.com/nao1215/vectorize/internal/pipeline"
	"github.com/nao1215/vectorize/internal/plot"
	"github.com/nao1215/vectorize/internal/report"
	"github.com/nao1215/vectorize/internal/session"
	"github.com/spf13/cobra"
)

// errNothingCrawled is returned when a run ends without a single usable page.
var errNothingCrawled = errors.New("no pages could be crawled")

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <url>",
		Short: "Crawl a website and visualize its content embeddings",
		Long: `Run crawls a website breadth-first starting at the given URL, embeds the
text of every page and projects the embeddings to 2D and 3D.

A page list is written to stdout (or --output) and, with --html, an
interactive scatter plot page is written as well. Bare file names given to
--output and --html are placed in $XDG_DATA_HOME/vectorize.

Examples:
  # Crawl up to 20 pages of a site with Gemini embeddings
  GEMINI_API_KEY=... vectorize run https://example.com/

  # Use a local text-embeddings-inference server
  vectorize run --provider tei https://example.com/

  # Only PCA in 2D, written as an HTML page
  vectorize run --method pca --dims 2 --html plot.html https://example.com/

  # Export the page list as CSV
  vectorize run --csv -o ./pages.csv https://example.com/`,
		Args: cobra.ExactArgs(1),
		RunE: runRunCmd,
	}

	// Crawl flags
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to crawl")
	cmd.Flags().Bool("same-domain", true,
		"Only follow links on the seed URL's host")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Delay before each request")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().String("extractor", config.ExtractorText,
		"Text extractor: text or readability")

	// Embedding and reduction flags
	cmd.Flags().String("provider", config.DefaultProvider,
		"Embedding provider: gemini or tei")
	cmd.Flags().String("method", config.MethodBoth,
		"Reduction method: pca, umap or both")
	cmd.Flags().String("dims", config.DimsBoth,
		"Plot dimensions: 2, 3 or both")
	cmd.Flags().Bool("no-jitter", false,
		"Disable the small overlap jitter added to PCA output")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .vectorize in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report")
	cmd.Flags().Bool("csv", false,
		"Output CSV report")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().String("html", "",
		"Write an interactive plot page to specified file path")

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildRunConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.ValidateRun(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signalContext(cmd.Context(), logger)
	defer stop()

	return runVectorize(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// buildRunConfig creates a Config for one run.
// Precedence, lowest first: defaults, config file, environment, flags.
func buildRunConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	if len(args) > 0 {
		cfg.Target = args[0]
	}
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cf, err := loadConfigFile(cfg.ConfigFilePath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyFile(cf, seedHost(cfg.Target))

	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(env)

	if err := applyRunFlags(cmd, cfg); err != nil {
		return nil, err
	}

	cfg.ReportFile = resolveOutputPath(cfg.ReportFile)
	cfg.HTMLFile = resolveOutputPath(cfg.HTMLFile)
	return cfg, nil
}

// loadConfigFile finds and parses the config file.
// If the user explicitly specified a path, a missing file is an error.
// Otherwise an empty config is used when no file is found.
func loadConfigFile(path string) (*config.File, error) {
	found := config.FindConfigFile(path)
	if found == "" {
		if path != "" {
			return nil, fmt.Errorf("configuration file not found: %s", path)
		}
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}

	cf, err := config.LoadConfigFile(found)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
	}
	return cf, nil
}

// seedHost returns the host of the seed URL, or "" if it does not parse.
func seedHost(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// applyRunFlags overlays the flags the user actually set.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error

	if flags.Changed("max-pages") {
		if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
			return err
		}
	}
	if flags.Changed("same-domain") {
		if cfg.SameDomainOnly, err = flags.GetBool("same-domain"); err != nil {
			return err
		}
	}
	if flags.Changed("delay") {
		if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
			return err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return err
		}
	}
	if flags.Changed("extractor") {
		if cfg.Extractor, err = flags.GetString("extractor"); err != nil {
			return err
		}
	}
	if flags.Changed("provider") {
		if cfg.Provider, err = flags.GetString("provider"); err != nil {
			return err
		}
	}

	if cfg.Method, err = flags.GetString("method"); err != nil {
		return err
	}
	if cfg.Dims, err = flags.GetString("dims"); err != nil {
		return err
	}
	noJitter, err := flags.GetBool("no-jitter")
	if err != nil {
		return err
	}
	cfg.Jitter = !noJitter

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return err
	}
	if cfg.CSVReport, err = flags.GetBool("csv"); err != nil {
		return err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return err
	}
	if cfg.HTMLFile, err = flags.GetString("html"); err != nil {
		return err
	}
	return nil
}

// progressPrinter reports crawl progress on the terminal.
type progressPrinter struct {
	w        io.Writer
	maxPages int
}

func (p *progressPrinter) PageStarted(pageURL string, visited int) {
	fmt.Fprintf(p.w, "Crawling [%d/%d] %s\n", visited, p.maxPages, pageURL)
}

func (p *progressPrinter) PageFailed(pageURL string, err error) {
	fmt.Fprintf(p.w, "  skipped %s: %v\n", pageURL, err)
}

func (p *progressPrinter) CrawlFinished(pages int) {
	fmt.Fprintf(p.w, "Crawled %d pages\n", pages)
}

// runVectorize crawls, embeds and reduces cfg.Target, then writes the
// report and, if requested, the plot page. Progress goes to progress.
func runVectorize(ctx context.Context, cfg *config.Config, logger *slog.Logger, out, progress io.Writer) error {
	if _, err := crawler.ParseSeed(cfg.Target); err != nil {
		return err
	}

	processor, cleanup, err := newProcessor(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	visualizeOpts, err := visualizeOptions(cfg, logger)
	if err != nil {
		return err
	}

	spider := newSpider(cfg, logger, &progressPrinter{w: progress, maxPages: cfg.MaxPages})
	return execute(ctx, cfg, logger, out, progress, []pipeline.Step{
		pipeline.NewCrawlStep(spider),
		pipeline.NewEmbedStep(processor),
		pipeline.NewVisualizeStep(newReducer(cfg, logger, nil), visualizeOpts...),
	})
}

// execute runs the steps and writes the outputs.
func execute(ctx context.Context, cfg *config.Config, logger *slog.Logger, out, progress io.Writer, steps []pipeline.Step) error {
	logger.Info("starting run",
		"target", cfg.Target,
		"maxPages", cfg.MaxPages,
		"provider", cfg.Provider,
		"method", cfg.Method,
		"dims", cfg.Dims,
	)

	p := pipeline.New(steps,
		pipeline.WithLogger(logger),
		pipeline.WithContinueOnError(true),
	)

	run := session.NewRun(cfg.Target)
	startTime := time.Now()
	execErr := p.Execute(ctx, run)

	// An interrupted run still reports the pages it reached.
	if run.Cancelled {
		if len(run.Records) > 0 {
			fmt.Fprintf(progress, "Interrupted: reporting %d crawled pages\n\n", len(run.Records))
			if err := outputReport(cfg, run, out); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
		}
		return fmt.Errorf("run cancelled: %w", ctx.Err())
	}
	if len(run.Records) == 0 {
		if execErr != nil {
			return fmt.Errorf("%w: %w", errNothingCrawled, execErr)
		}
		return errNothingCrawled
	}

	fmt.Fprintf(progress, "Embedded %d pages (%d degraded), built %d figures in %s\n\n",
		len(run.Embedded), run.Degraded(), len(run.Figures),
		time.Since(startTime).Round(time.Millisecond))
	for _, stepErr := range run.Errors {
		fmt.Fprintf(progress, "Warning: %v\n", stepErr)
	}

	if err := outputReport(cfg, run, out); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if cfg.HTMLFile != "" {
		if len(run.Figures) == 0 {
			return errors.New("no figures to plot")
		}
		if err := outputHTML(cfg.HTMLFile, run); err != nil {
			return fmt.Errorf("failed to write plot page: %w", err)
		}
		fmt.Fprintf(progress, "Plot written to %s\n", cfg.HTMLFile)
	}
	return nil
}

// outputReport writes the page list in the requested format.
func outputReport(cfg *config.Config, run *session.Run, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		f, err := createOutputFile(cfg.ReportFile)
		if err != nil {
			return err
		}
		defer f.Close()
		output = f
	}

	export := report.NewExport(run.Target, run.Records)

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewJSONWriter(output, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(output)
	case cfg.CSVReport:
		writer = report.NewCSVWriter(output)
	default:
		writer = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
	_, err := writer.Write(export)
	return err
}

// outputHTML writes every figure of run into one page.
func outputHTML(path string, run *session.Run) error {
	f, err := createOutputFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	figs := make([]*plot.Figure, 0, len(run.Figures))
	for _, key := range run.FigureKeys() {
		figs = append(figs, run.Figures[key])
	}
	return plot.RenderHTML(f, figs...)
}

// createOutputFile creates or truncates path with owner-only permissions,
// creating parent directories as needed.
func createOutputFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}
