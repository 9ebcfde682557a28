package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gocmd "github.com/goliatone/go-command"
	glog "github.com/goliatone/go-logger/glog"
	postwork "github.com/goliatone/go-postwork"
	"github.com/goliatone/go-postwork/adapters/gocommand"
	"github.com/goliatone/go-postwork/adapters/gologger"
	"github.com/goliatone/go-postwork/core"
	"github.com/goliatone/go-postwork/inbound"
	postworkmigrations "github.com/goliatone/go-postwork/migrations"
	sqlstore "github.com/goliatone/go-postwork/store/sql"
	"github.com/goliatone/go-postwork/webhooks"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/joho/godotenv"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "postworkd: load .env: %v\n", err)
	}

	settings, err := loadDaemonSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "postworkd: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(settings, os.Stdout)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, settings, logger, logger); err != nil {
		logger.Error("postworkd stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(settings daemonSettings, w io.Writer) *glog.BaseLogger {
	return glog.NewLogger(
		glog.WithLoggerTypeJSON(),
		glog.WithName("postworkd"),
		glog.WithLevel(settings.LogLevel),
		glog.WithWriter(w),
	)
}

func run(ctx context.Context, settings daemonSettings, provider core.LoggerProvider, logger core.Logger) error {
	provider, logger = gologger.Resolve("postworkd", provider, logger)

	client, err := sqlstore.Open(sqlstore.ConnectionConfig{
		Driver: settings.DBDriver,
		DSN:    settings.DBDSN,
		Debug:  settings.DBDebug,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	dialect := sqlstore.MigrationDialect(settings.DBDriver)
	if _, err := postworkmigrations.Register(ctx, func(_ context.Context, _ string, _ string, fsys fs.FS) error {
		client.RegisterSQLMigrations(fsys)
		return nil
	}, postworkmigrations.WithDialects(dialect)); err != nil {
		return fmt.Errorf("postworkd: register migrations: %w", err)
	}
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("postworkd: migrate: %w", err)
	}

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		return err
	}
	cacheConfig := repositorycache.DefaultConfig()
	cacheConfig.TTL = settings.CacheTTL
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		return fmt.Errorf("postworkd: lookup cache: %w", err)
	}
	store, err := sqlstore.NewCachedUnitStore(factory.UnitStore(), cacheService)
	if err != nil {
		return err
	}

	queue := core.NewMemoryJobQueue()
	svc, err := postwork.NewService(postwork.Config{},
		postwork.WithConfigProvider(core.NewCfgxConfigProvider(envConfigLoader{})),
		postwork.WithLoggerProvider(provider),
		postwork.WithLogger(logger),
		postwork.WithPersistenceClient(client),
		postwork.WithRepositoryFactory(factory),
		postwork.WithUnitStore(store),
		postwork.WithJobEnqueuer(queue),
	)
	if err != nil {
		return err
	}
	cfg := svc.Config()
	if cfg.Callback.APIKey == "" {
		logger.Warn("callback api key is empty; every callback will be rejected")
	}

	subs, err := gocommand.RegisterPostwork(gocommand.NewRegistryAdapter(gocmd.NewRegistry()), svc)
	if err != nil {
		return err
	}
	defer subs.Unsubscribe()

	runner, err := core.NewDispatchRunner(svc, queue, core.DispatchRunnerConfig{
		Workers:      cfg.Runner.Workers,
		PollInterval: cfg.Runner.PollInterval,
	}, core.WithRunnerLogger(logger), core.WithRunnerHook(gologger.NewRunnerHook(logger)))
	if err != nil {
		return err
	}

	// HTTP traffic goes through the subscribed go-command handlers.
	routed := gocommand.DispatchService{}
	handler := inbound.NewHandler(routed, webhooks.NewProcessor(webhooks.NewAPIKeyVerifier(cfg.Callback.APIKey), routed), settings.RoutePrefix)
	handler.Logger = logger
	routes, err := handler.Routes()
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              settings.Addr,
		Handler:           routes,
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	runnerDone := make(chan error, 1)
	go func() {
		runnerDone <- runner.Run(runCtx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("postworkd listening", "addr", settings.Addr, "prefix", settings.RoutePrefix, "driver", settings.DBDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-serverErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("postworkd shutdown", "error", err)
	}
	cancelRun()
	<-runnerDone
	logger.Info("postworkd stopped", "pending_jobs", queue.Len())
	if serveErr != nil {
		return fmt.Errorf("postworkd: serve: %w", serveErr)
	}
	return nil
}
