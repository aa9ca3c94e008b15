package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/brc721/indexer/internal/api"
	"github.com/brc721/indexer/internal/chain"
	"github.com/brc721/indexer/internal/config"
	"github.com/brc721/indexer/internal/logging"
	"github.com/brc721/indexer/internal/parser"
	"github.com/brc721/indexer/internal/scanner"
	"github.com/brc721/indexer/internal/store/sqlite"
	"github.com/brc721/indexer/internal/wallet"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("brc721d exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logCloser.Close()

	slog.Info("starting brc721d",
		"version", version,
		"network", cfg.Network,
		"apiListen", cfg.APIListen,
		"dataDir", cfg.DataDir,
	)

	rpcUser, rpcPass := cfg.RPCUser, cfg.RPCPass
	if cfg.RPCCookiePath != "" {
		rpcUser, rpcPass, err = chain.ReadCookieAuth(cfg.RPCCookiePath)
		if err != nil {
			return fmt.Errorf("read rpc cookie: %w", err)
		}
	}

	node := chain.NewClient(chain.ClientConfig{
		URL:                     cfg.RPCURL,
		User:                    rpcUser,
		Pass:                    rpcPass,
		RequestsPerSecond:       config.RPCRateLimitPerSecond,
		CircuitBreakerThreshold: config.RPCCircuitFailThreshold,
		CircuitBreakerCooldown:  config.RPCCircuitCooldown,
		Timeout:                 config.RPCRequestTimeout,
	})

	dbPath := filepath.Join(cfg.DataDir, "brc721.sqlite")
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	startHeight := cfg.StartHeight
	if tip, err := db.LoadTip(context.Background()); err == nil {
		startHeight = tip.Height + 1
	}

	sc := scanner.New(node, startHeight, cfg.Confirmations, cfg.BatchSize)
	p := parser.New(db)

	indexCtx, indexCancel := context.WithCancel(context.Background())
	indexErr := make(chan error, 1)
	go func() {
		indexErr <- runIndexer(indexCtx, sc, p)
	}()

	net := wallet.NetworkParams(cfg.Network)
	router := api.NewRouter(db, cfg, net)

	srv := &http.Server{
		Addr:         cfg.APIListen,
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	srvErr := make(chan error, 1)
	go func() {
		slog.Info("read API listening", "addr", cfg.APIListen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srvErr <- err
			return
		}
		srvErr <- nil
	}()

	var runErr error
	select {
	case <-done:
		slog.Info("shutdown signal received")
	case err := <-indexErr:
		// Indexer died on a fail-fast error (chain continuity, duplicate
		// slot assignment) — per parser.ProcessBlock's contract this is
		// fatal, not something the scanner can resume past, since it has
		// already advanced nextHeight beyond the failed block.
		runErr = fmt.Errorf("indexing task stopped unexpectedly: %w", err)
		slog.Error("shutting down due to indexer failure", "error", err)
	case err := <-srvErr:
		runErr = fmt.Errorf("http server stopped unexpectedly: %w", err)
		slog.Error("shutting down due to http server failure", "error", err)
	}

	indexCancel()
	if runErr == nil {
		<-indexErr // indexCancel causes runIndexer to return nil; drain it
	}
	slog.Info("indexing task stopped")

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && runErr == nil {
		runErr = fmt.Errorf("http server shutdown: %w", err)
	}

	if runErr != nil {
		return runErr
	}
	slog.Info("brc721d stopped gracefully")
	return nil
}

// runIndexer pulls confirmed blocks from Scanner and folds them into Store,
// one block per Parser transaction, until ctx is cancelled or ProcessBlock
// returns an error. Scanner.NextBatch advances past a block's height as soon
// as it is fetched, so a failed ProcessBlock can never be safely retried at
// the same height — per its documented contract this is treated as fatal for
// the whole indexing task rather than skipped or retried.
func runIndexer(ctx context.Context, sc *scanner.Scanner, p *parser.Parser) error {
	for {
		items, err := sc.NextBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("scanner batch failed: %w", err)
		}

		for _, item := range items {
			if err := p.ProcessBlock(ctx, item.Height, item.Hash, item.Block); err != nil {
				return fmt.Errorf("process block %d: %w", item.Height, err)
			}
			slog.Info("block indexed", "height", item.Height, "hash", item.Hash, "txCount", len(item.Block.Transactions))
		}
	}
}
