package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nao1215/vectorize/internal/config"
	"github.com/nao1215/vectorize/internal/log"
	"github.com/nao1215/vectorize/internal/monitoring"
	"github.com/nao1215/vectorize/internal/pipeline"
	"github.com/nao1215/vectorize/internal/server"
	"github.com/nao1215/vectorize/internal/session"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the crawl and visualization HTTP API",
		Long: `Serve starts an HTTP API with one in-memory session per client.

Endpoints:
  POST   /api/sessions                  create a session
  DELETE /api/sessions/{id}             delete a session
  POST   /api/sessions/{id}/crawl       crawl {"url": "...", "max_pages": 20}
  POST   /api/sessions/{id}/vectorize   embed the crawled pages
  GET    /api/sessions/{id}/visualize   figure data as JSON
  GET    /api/sessions/{id}/plot        interactive plot page
  GET    /api/sessions/{id}/export      page list (format=json|csv|markdown)
  GET    /healthz                       liveness probe
  GET    /metrics                       Prometheus metrics

Logs are written to stderr as JSON.

Examples:
  # Listen on the default address
  GEMINI_API_KEY=... vectorize serve

  # Use a TEI server and keep idle sessions for an hour
  vectorize serve --provider tei --session-ttl 1h --addr 127.0.0.1:9000`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().String("addr", config.DefaultServerAddr,
		"Listen address")
	cmd.Flags().Duration("session-ttl", config.DefaultSessionTTL,
		"How long an idle session is kept")
	cmd.Flags().String("provider", config.DefaultProvider,
		"Embedding provider: gemini or tei")
	cmd.Flags().Bool("no-jitter", false,
		"Disable the small overlap jitter added to PCA output")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .vectorize in current or home directory)")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildServeConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureJSONLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signalContext(cmd.Context(), logger)
	defer stop()

	metrics := monitoring.NewMetrics()

	processor, cleanup, err := newProcessor(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer cleanup()

	visualizeOpts, err := visualizeOptions(cfg, logger)
	if err != nil {
		return err
	}

	store := session.NewStore(cfg.SessionTTL,
		session.WithHooks(metrics.SessionOpened, metrics.SessionClosed),
		session.WithLogger(logger),
	)

	srv := server.New(store, crawlerFactory(cfg, logger, metrics),
		processor, newReducer(cfg, logger, metrics),
		server.WithLogger(logger),
		server.WithMetrics(metrics),
		server.WithMaxPages(cfg.MaxPages, 0),
		server.WithVisualizeOptions(visualizeOpts...),
	)

	fmt.Fprintf(cmd.ErrOrStderr(), "Listening on %s\n", cfg.ServerAddr)
	if err := srv.ListenAndServe(ctx, cfg.ServerAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// buildServeConfig creates the server Config.
// Precedence, lowest first: defaults, config file, environment, flags.
func buildServeConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
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
	cfg.ApplyFile(cf, "")

	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(env)

	flags := cmd.Flags()
	if flags.Changed("addr") {
		if cfg.ServerAddr, err = flags.GetString("addr"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("provider") {
		if cfg.Provider, err = flags.GetString("provider"); err != nil {
			return nil, err
		}
	}
	if cfg.SessionTTL, err = flags.GetDuration("session-ttl"); err != nil {
		return nil, err
	}
	noJitter, err := flags.GetBool("no-jitter")
	if err != nil {
		return nil, err
	}
	cfg.Jitter = !noJitter

	return cfg, nil
}

// crawlerFactory builds one spider per crawl request. A config file entry
// for the seed's host is applied first; the request's page budget and
// domain restriction always win.
func crawlerFactory(cfg *config.Config, logger *slog.Logger, metrics *monitoring.Metrics) server.CrawlerFactory {
	return func(seedURL string, maxPages int, sameDomainOnly bool) pipeline.Crawler {
		site := *cfg
		host := seedHost(seedURL)
		if _, ok := cfg.SiteConfigs.Sites[host]; ok {
			site.ApplyFile(cfg.SiteConfigs, host)
		}
		site.MaxPages = maxPages
		site.SameDomainOnly = sameDomainOnly
		return newSpider(&site, logger.With("target", seedURL), metrics)
	}
}
