package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/vctt94/cardroom/pkg/blackjack"
	"github.com/vctt94/cardroom/pkg/game"
	"github.com/vctt94/cardroom/pkg/logging"
	"github.com/vctt94/cardroom/pkg/server"
)

func run(ctx context.Context, cfg *Config) error {
	backend, err := logging.NewLogBackend(logging.LogConfig{
		LogFile:     cfg.logFile,
		DebugLevel:  cfg.debugLevel,
		MaxLogFiles: cfg.maxLogFiles,
	})
	if err != nil {
		return err
	}
	defer backend.Close()

	log := backend.Logger("CRSV")
	log.Infof("cardroomsrv v%s starting", releaseVersion)

	registry := game.NewRegistry()
	if err := registry.Register(blackjack.NewFactory()); err != nil {
		return err
	}

	srv := server.NewServer(registry, server.Config{
		LogBackend: backend,
		Version:    releaseVersion,
		Seed:       cfg.seed,
		Profile:    cfg.profile,
	})

	httpSrv := &http.Server{
		Addr:              net.JoinHostPort(cfg.hostname, strconv.Itoa(cfg.port)),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       10 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Listening on ws://%s/ws", httpSrv.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infof("Received %v, shutting down", sig)
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	// Farewell and close every live session before the listener goes away.
	srv.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP shutdown: %v", err)
	}
	return nil
}
