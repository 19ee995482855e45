package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/cyderes/newsarticle-sync/internal/config"
	"github.com/cyderes/newsarticle-sync/internal/ingestion"
	"github.com/cyderes/newsarticle-sync/internal/metrics"
	"github.com/cyderes/newsarticle-sync/internal/server"
	"github.com/cyderes/newsarticle-sync/internal/storage"
)

const usage = `usage: newsarticle-sync [serve|import|purge]

  serve   run the HTTP API and import every IMPORT_INTERVAL (default)
  import  run a single import and print the result
  purge   delete all imported articles
`

func main() {
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	command := "serve"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	setupLog(cfg.Debug)

	if err := run(command, cfg); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

func run(command string, cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.NewStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	importer := ingestion.NewService(cfg.Import, store)

	switch command {
	case "serve":
		return serve(ctx, cfg, store, importer)
	case "import":
		metrics.InitPusher(cfg.Metrics.PushURL, cfg.Metrics.Job)
		defer metrics.PushMetrics()

		summary, err := importer.Run(ctx)
		if err != nil {
			fmt.Println(err)
			return err
		}
		fmt.Printf("Newsarticle Inserted: %d - Newsarticle Updated: %d\n", summary.Inserted, summary.Updated)
		return nil
	case "purge":
		deleted, err := importer.Purge(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Newsarticle Deleted: %d\n", deleted)
		return nil
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func serve(ctx context.Context, cfg *config.Config, store storage.Storage, importer *ingestion.Service) error {
	httpServer := server.NewServer(cfg.Server, store, importer)

	go func() {
		log.Printf("[INFO] starting HTTP server on port %d", cfg.Server.Port)
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[ERROR] HTTP server error, %v", err)
		}
	}()

	go func() {
		log.Printf("[INFO] starting news import every %s", cfg.Import.Interval)
		if err := importer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[ERROR] import loop error, %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("[INFO] shutdown signal received, gracefully shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}
	log.Printf("[INFO] shutdown complete")
	return nil
}

func setupLog(dbg bool) {
	if dbg {
		log.Setup(log.Debug, log.CallerFile, log.CallerFunc, log.Msec, log.LevelBraces)
		return
	}
	log.Setup(log.Msec, log.LevelBraces)
}
