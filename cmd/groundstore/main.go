// Package main is the entry point for the GroundStore geospatial I/O server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/groundstore/groundstore/internal/asset"
	"github.com/groundstore/groundstore/internal/config"
	"github.com/groundstore/groundstore/internal/creds"
	"github.com/groundstore/groundstore/internal/driver"
	"github.com/groundstore/groundstore/internal/fetch"
	"github.com/groundstore/groundstore/internal/identity"
	"github.com/groundstore/groundstore/internal/logging"
	"github.com/groundstore/groundstore/internal/metrics"
	"github.com/groundstore/groundstore/internal/server"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	port := flag.Int("port", 0, "override listening port (default: from config)")
	host := flag.String("host", "", "override listening host (default: from config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Command-line flags override config file values.
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	if cfg.Observability.Metrics {
		metrics.Register()
	}

	// Build the fetch client from the configured tunables and install it
	// for the driver layer.
	connect, read, lowSpeed, retryWait := cfg.Fetch.FetchDurations()
	client := fetch.NewClient(fetch.Config{
		ConnectTimeout: connect,
		ReadTimeout:    read,
		LowSpeedLimit:  cfg.Fetch.LowSpeedLimit,
		LowSpeedTime:   lowSpeed,
		Attempts:       cfg.Fetch.Attempts,
		TLSVerify:      cfg.Fetch.TLSVerify,
		RetryWait:      retryWait,
	})
	driver.SetClient(client)

	// Load the asset directory. The default asset always exists so
	// callers can omit the asset name.
	assets := asset.NewDirectory()
	assets.Add(asset.New(cfg.Fetch.DefaultAsset, cfg.Fetch.DefaultRegion, "", ""))
	for _, a := range cfg.Assets {
		assets.Add(asset.New(a.Name, a.Region, a.Endpoint, a.Path))
		slog.Info("registered asset", "name", a.Name, "region", a.Region, "path", a.Path)
	}

	if cfg.Cache.CreateOnStartup {
		if err := driver.CreateCache(cfg.Cache.Root, cfg.Cache.MaxFiles); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create cache: %v\n", err)
			os.Exit(1)
		}
		slog.Info("created disk cache", "root", cfg.Cache.Root, "max_files", cfg.Cache.MaxFiles)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the identity refresh loop, which keeps the role credential in
	// the store current.
	if cfg.Identity.Enabled {
		refresher := &identity.Refresher{
			Host:     cfg.Identity.Host,
			Interval: time.Duration(cfg.Identity.Interval) * time.Second,
			Store:    storePutter{},
		}
		go refresher.Run(ctx)
		slog.Info("started identity refresher", "host", cfg.Identity.Host, "interval", cfg.Identity.Interval)
	}

	srv := server.New(cfg, client, assets)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("GroundStore listening", "addr", addr, "schemes", driver.Schemes())
		if err := srv.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "err", err)
		}
		slog.Info("server stopped")

	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}
}

// storePutter adapts the package-level credential store to the refresher's
// store interface.
type storePutter struct{}

func (storePutter) Put(host string, cred creds.Credential) bool {
	return creds.Put(host, cred)
}
