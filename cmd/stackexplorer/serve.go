package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mmm-workbench/stackexplorer/internal/api"
	"github.com/mmm-workbench/stackexplorer/internal/config"
	"github.com/mmm-workbench/stackexplorer/internal/db"
	"github.com/mmm-workbench/stackexplorer/internal/explorer"
	"github.com/mmm-workbench/stackexplorer/internal/monitoring"
	"github.com/mmm-workbench/stackexplorer/internal/rpc"
)

func handleServe(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	listen := fs.String("listen", "", "HTTP listen address (overrides config)")
	grpcListen := fs.String("grpc-listen", "", "gRPC listen address (overrides config, \"off\" disables)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.load(stderr)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *grpcListen != "" {
		cfg.GRPCListen = *grpcListen
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg)
}

// serve runs the HTTP and gRPC servers until ctx is cancelled.
func serve(ctx context.Context, cfg *config.ExplorerConfig) error {
	log := monitoring.Component("serve")

	database, err := db.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	views := explorer.NewRegistry(explorer.Options{
		PlaybackInterval: cfg.GetPlaybackInterval(),
		Compose:          cfg.ComposeOptions(),
	})
	defer views.Close()

	if cfg.GRPCListen != "" && cfg.GRPCListen != "off" {
		grpcServer := rpc.NewServer(cfg.GRPCListen, rpc.NewChartService(database, cfg))
		if err := grpcServer.Start(); err != nil {
			return fmt.Errorf("failed to start gRPC server: %w", err)
		}
		defer grpcServer.Stop()
	}

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.NewServer(database, views, cfg).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	errc := make(chan error, 1)

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Str("addr", cfg.Listen).Str("db", database.Path()).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-errc:
	}

	log.Info().Msg("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := server.Shutdown(shutdownCtx); serr != nil {
		log.Warn().Err(serr).Msg("HTTP server shutdown error")
		// Force close the server if graceful shutdown fails
		if cerr := server.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("HTTP server force close error")
		}
	}

	wg.Wait()
	log.Info().Msg("graceful shutdown complete")
	return err
}
