// Command indexer runs the UTXO ledger indexer: an HTTP service that
// accepts blocks in strict height order, validates and applies them to a
// persistent UTXO set and balance table, and answers balance/block-list
// queries.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/roastedledger/utxo-indexer/internal/api"
	"github.com/roastedledger/utxo-indexer/internal/config"
	"github.com/roastedledger/utxo-indexer/internal/engine"
	"github.com/roastedledger/utxo-indexer/internal/logging"
	"github.com/roastedledger/utxo-indexer/internal/store"
)

func main() {
	cfg, err := config.Load(os.LookupEnv)
	if err != nil {
		logging.GetDefault().Fatalf("configuration error: %v", err)
	}

	log := logging.New(&logging.Config{Level: cfg.LogLevel, TimeFormat: time.TimeOnly})
	logging.SetDefault(log)

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()
	log.Component("store").Infof("opened %s", cfg.DatabaseURL)

	eng, err := engine.New(st, log.Component("engine"))
	if err != nil {
		log.Fatalf("failed to build chain state engine: %v", err)
	}
	log.Component("engine").Infof("rebuilt in-memory index at height %d", eng.Height())

	srv := api.New(eng, log.Component("api"), cfg.ListenAddr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server stopped: %v", err)
		}
	case sig := <-sigCh:
		log.Infof("received %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Errorf("graceful shutdown failed: %v", err)
		}
	}
}
