package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"seedharvest/internal/downloader"
	"seedharvest/pkg/auth"
	"seedharvest/pkg/catalog"
	"seedharvest/pkg/config"
	"seedharvest/pkg/consumer"
	errs "seedharvest/pkg/errors"
	"seedharvest/pkg/harvester"
	"seedharvest/pkg/inventory"
	"seedharvest/pkg/ledger"
	"seedharvest/pkg/logger"
	"seedharvest/pkg/metrics"
	"seedharvest/pkg/storage"
	"seedharvest/pkg/ui"
)

var (
	// Run command flags
	maxCount      int
	workers       int
	startPage     int
	dryRun        bool
	apiKey        string
	downloadDir   string
	ledgerPath    string
	metricsListen string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Harvest new torrents from the catalog",
	Long: `Walk the catalog from the ledger's next page, download every item that
has not been processed and is not already in the download consumer, and add
it to the consumer.

The run ends when the catalog returns an empty page, when --max-count items
have been dispatched, on SIGINT/SIGTERM, or when the daily download quota is
exhausted. The ledger is saved in every case.`,
	Example: `  # Harvest with the configured settings
  seedharvest run

  # Dispatch at most 20 items with 5 workers
  seedharvest run --max-count 20 --workers 5

  # Show what would happen to page 3 without downloading anything
  seedharvest run --page 3 --dry-run`,
	Args: cobra.NoArgs,
	RunE: runHarvest,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&maxCount, "max-count", 0, "maximum items dispatched this run (default from config)")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent item workers (default from config)")
	cmd.Flags().IntVar(&startPage, "page", 0, "start from this catalog page instead of the ledger cursor")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list one page and report what would be done")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "catalog API key")
	cmd.Flags().StringVarP(&downloadDir, "download-dir", "o", "", "directory or bucket URL for torrent files")
	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "path of the ledger file")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address")
}

// commandFlags collects the flags that override configuration values
func commandFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if apiKey != "" {
		flags["api-key"] = apiKey
	}
	if downloadDir != "" {
		flags["download-dir"] = downloadDir
	}
	if workers > 0 {
		flags["workers"] = workers
	}
	if maxCount > 0 {
		flags["max-count"] = maxCount
	}
	if ledgerPath != "" {
		flags["ledger"] = ledgerPath
	}
	if metricsListen != "" {
		flags["metrics-listen"] = metricsListen
	}
	if quiet {
		flags["log-level"] = "error"
	} else if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return flags
}

// loadConfig loads configuration and fills missing secrets from the
// credential store
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile, commandFlags())
	if err != nil {
		return nil, errs.Config("load", err)
	}

	manager, err := auth.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	if _, err := manager.Apply(cfg, profileName); err != nil {
		return nil, fmt.Errorf("failed to read stored credentials: %w", err)
	}
	return cfg, nil
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errs.Config("validate", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return errs.Config("logging", err)
	}
	log := logger.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.PrintBanner()

	book, err := ledger.Open(cfg.Ledger.Path, log)
	if err != nil {
		ui.PrintError("Refusing to start with an unreadable ledger", err.Error())
		return err
	}

	store, err := storage.Open(ctx, cfg.Download.Dir, cfg.Download.FilePrefix, cfg.Download.FileExt)
	if err != nil {
		return err
	}
	defer store.Close()

	gateway, err := consumer.New(&cfg.Consumer, log)
	if err != nil {
		return err
	}

	m := metrics.New()
	m.SetLedgerSize(book.Len())

	cache := inventory.New(gateway, cfg.Inventory.TTL, inventory.WithLogger(log))
	cache.OnRefresh = m.InventoryRefreshed

	client := catalog.FromConfig(&cfg.Catalog, log)
	dl := downloader.New(client, store, downloader.Options{
		MaxRetries:        cfg.Download.MaxRetries,
		InitialRetryDelay: cfg.Download.InitialRetryDelay,
		OnRetry: func(id string, attempt int, delay time.Duration) {
			m.Retry()
		},
	}, log)

	h := harvester.New(harvester.Deps{
		Catalog:    client,
		Downloader: dl,
		Store:      store,
		Inventory:  cache,
		Gateway:    gateway,
		Ledger:     book,
		Metrics:    m,
		Logger:     log,
	}, harvester.Options{
		MaxWorkers:       cfg.Download.MaxWorkers,
		MaxDownloadCount: cfg.Download.MaxDownloadCount,
		RequestInterval:  cfg.Download.RequestInterval,
		PageRetryDelay:   cfg.Download.PageRetryDelay,
		StartPage:        startPage,
		Add:              consumer.OptionsFromConfig(&cfg.Consumer),
	})

	if dryRun {
		return runPlan(ctx, h, cache, log)
	}

	if err := cache.Refresh(ctx); err != nil {
		ui.PrintError("Cannot reach the download consumer", err.Error())
		return err
	}

	printStartup(ctx, cfg.Consumer.Kind, book, cache, store, log)

	var summary harvester.Summary
	g, gctx := errgroup.WithContext(ctx)
	metricsCtx, stopMetrics := context.WithCancel(gctx)
	defer stopMetrics()

	g.Go(func() error {
		defer stopMetrics()
		logger.LogComponentStart("harvester", map[string]interface{}{
			"workers":   cfg.Download.MaxWorkers,
			"max_count": cfg.Download.MaxDownloadCount,
		})
		var runErr error
		summary, runErr = h.Run(gctx)
		logger.LogComponentStop("harvester", summary.Reason)
		return runErr
	})
	if cfg.Metrics.Listen != "" {
		g.Go(func() error {
			logger.LogComponentStart("metrics", map[string]interface{}{"listen": cfg.Metrics.Listen})
			defer logger.LogComponentStop("metrics", "harvest finished")
			return m.Serve(metricsCtx, cfg.Metrics.Listen, log)
		})
	}

	err = g.Wait()
	printSummary(summary)

	switch {
	case err == nil:
		ui.PrintSuccess("Harvest finished: " + summary.Reason)
		return nil
	case errors.Is(err, errs.ErrQuotaExhausted):
		ui.PrintWarning("Daily download quota exhausted")
		return err
	default:
		ui.PrintError("Harvest failed", err.Error())
		return err
	}
}

// printStartup shows what the run starts from
func printStartup(ctx context.Context, kind string, book *ledger.Ledger, cache *inventory.Cache, store *storage.Store, log logger.Logger) {
	ui.PrintInfo("Ledger", fmt.Sprintf("%s (%d processed, next page %d)", book.Path(), book.Len(), book.NextPage()))
	ui.PrintInfo("Consumer", fmt.Sprintf("%s, %d torrents, listed at %s",
		kind, cache.Len(), cache.LastRefreshed().Format("15:04:05")))

	stored, err := store.Count(ctx)
	if err != nil {
		log.WithError(err).Warn("Cannot count stored artifacts")
		ui.PrintInfo("Storage", store.Location(""))
		return
	}
	ui.PrintInfo("Storage", fmt.Sprintf("%s (%d artifacts)", store.Location(""), stored))
}

func runPlan(ctx context.Context, h *harvester.Harvester, cache *inventory.Cache, log logger.Logger) error {
	if err := cache.Refresh(ctx); err != nil {
		log.WithError(err).Warn("Consumer unreachable, in_consumer status unavailable")
	}

	entries, err := h.Plan(ctx, startPage)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		ui.PrintInfo("Plan", "page is empty")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.ID, ui.Truncate(e.Title, 60), e.Status})
	}
	ui.PrintTable([]string{"ID", "TITLE", "STATUS"}, rows)
	return nil
}

func printSummary(s harvester.Summary) {
	if ui.IsQuietMode() {
		return
	}
	ui.PrintTable([]string{"RUN", "PAGES", "DISPATCHED", "ADDED", "PRESENT", "SKIPPED", "FAILED", "NEXT PAGE"}, [][]string{{
		s.RunID,
		strconv.Itoa(s.Pages),
		strconv.Itoa(s.Dispatched),
		strconv.Itoa(s.Added),
		strconv.Itoa(s.AlreadyPresent),
		strconv.Itoa(s.Skipped),
		strconv.Itoa(s.Failed),
		strconv.Itoa(s.NextPage),
	}})
}
