package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/adapter"
	"github.com/marmos91/dittodrive/pkg/api"
	"github.com/marmos91/dittodrive/pkg/blob"
	"github.com/marmos91/dittodrive/pkg/config"
	"github.com/marmos91/dittodrive/pkg/drive"
	"github.com/marmos91/dittodrive/pkg/gc"
	"github.com/marmos91/dittodrive/pkg/metadata"
	"github.com/marmos91/dittodrive/pkg/server"
	"github.com/marmos91/dittodrive/pkg/usage"
)

const usageText = `DittoDrive - personal file storage service

Usage:
  dittodrive <command> [flags]

Commands:
  init     Write a sample configuration file
  start    Start the server
  token    Issue an API token for an owner id
  gc       Run one orphan blob sweep and exit

Run 'dittodrive <command> -h' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = runInit(os.Args[2:])
	case "start":
		err = runStart(os.Args[2:])
	case "token":
		err = runToken(os.Args[2:])
	case "gc":
		err = runGC(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usageText)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usageText)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to write (default: $XDG_CONFIG_HOME/dittodrive/config.yaml)")
	force := fs.Bool("force", false, "Overwrite an existing file")
	_ = fs.Parse(args)

	path := *configPath
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	if err := config.InitConfigToPath(path, *force); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n", path)
	return nil
}

// loadConfig loads the configuration and initializes the logger from it.
func loadConfig(configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		return nil, err
	}
	return cfg, nil
}

// stores holds the backends built from configuration.
type stores struct {
	metadata metadata.Store
	blobs    blob.Store
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	metadataStore, err := config.CreateMetadataStore(ctx, &cfg.Metadata)
	if err != nil {
		return nil, err
	}
	logger.Info("Metadata store: %s", cfg.Metadata.Type)

	blobStore, err := config.CreateBlobStore(ctx, &cfg.Blob)
	if err != nil {
		_ = metadataStore.Close()
		return nil, err
	}
	logger.Info("Blob store: %s", cfg.Blob.Type)

	return &stores{metadata: metadataStore, blobs: blobStore}, nil
}

func (s *stores) Close() {
	if err := s.metadata.Close(); err != nil {
		logger.Error("Closing metadata store: %v", err)
	}
}

func runStart(args []string) error {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/dittodrive/config.yaml)")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if cfg.Logging.Level != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("DittoDrive - personal file storage service")

	metricsResult := config.InitializeMetrics(cfg)

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	cache, err := config.CreateUsageCache(ctx, &cfg.Usage)
	if err != nil {
		return err
	}
	accountantCfg, err := cfg.Drive.AccountantConfig()
	if err != nil {
		return err
	}
	accountant := usage.NewAccountant(st.metadata, accountantCfg,
		usage.WithCache(cache),
		usage.WithMetrics(metricsResult.Usage),
	)
	defer func() { _ = accountant.Close() }()
	logger.Info("Per-owner quota: %s (usage cache: %s)", cfg.Drive.Quota, cfg.Usage.Cache)

	service := drive.NewService(st.metadata, st.blobs, cfg.Drive.ServiceConfig(),
		drive.WithObserver(accountant),
		drive.WithMetrics(metricsResult.Drive),
	)

	srv := server.New(&adapter.Services{
		Drive:    service,
		Usage:    accountant,
		Metadata: st.metadata,
	}, cfg.Server.ShutdownTimeout)

	for _, a := range config.CreateAdapters(cfg, metricsResult.API) {
		if err := srv.AddAdapter(a); err != nil {
			return err
		}
	}

	collector, err := gc.NewCollector(st.metadata, st.blobs, cfg.GC.CollectorConfig(cfg.Drive.RootPrefix), metricsResult.GC)
	switch {
	case err != nil && cfg.GC.Enabled:
		return err
	case err != nil:
		logger.Debug("Orphan sweep unavailable: %v", err)
	default:
		srv.AddWorker(collector)
	}

	if metricsResult.Server != nil {
		go func() {
			if err := metricsResult.Server.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("DittoDrive stopped")
	return nil
}

func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/dittodrive/config.yaml)")
	subject := fs.String("sub", "", "Owner id the token is issued for (required)")
	ttl := fs.Duration("ttl", 24*time.Hour, "Token lifetime")
	_ = fs.Parse(args)

	if *subject == "" {
		return errors.New("token: -sub is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	token, err := api.NewToken(cfg.API.JWTSecret, cfg.API.JWTIssuer, *subject, *ttl)
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}
	fmt.Println(token)
	return nil
}

func runGC(args []string) error {
	fs := flag.NewFlagSet("gc", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/dittodrive/config.yaml)")
	dryRun := fs.Bool("dry-run", false, "Report orphans without deleting them")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	gcCfg := cfg.GC.CollectorConfig(cfg.Drive.RootPrefix)
	gcCfg.DryRun = gcCfg.DryRun || *dryRun

	collector, err := gc.NewCollector(st.metadata, st.blobs, gcCfg, nil)
	if err != nil {
		return err
	}

	stats, err := collector.RunNow(ctx)
	if err != nil {
		return err
	}
	fmt.Println(stats.Summary())
	return nil
}
