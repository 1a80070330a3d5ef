package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"transferengine/internal/api"
	"transferengine/internal/chainrpc"
	"transferengine/internal/config"
	"transferengine/internal/keys"
	"transferengine/internal/metrics"
	"transferengine/internal/transfer"
	"transferengine/internal/txbuilder"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	passphrase := cfg.Passphrase()
	if passphrase == "" {
		logger.Warn("keystore passphrase env is empty", "env", cfg.KeyStore.PassphraseEnv)
	}
	keysManager, err := keys.NewManager(cfg.KeyStore.Dir, passphrase)
	if err != nil {
		logger.Error("keystore init failed", "error", err)
		os.Exit(1)
	}
	logger.Info("keystore loaded", "dir", keysManager.KeystoreDir(), "accounts", len(keysManager.Accounts()))

	retries, backoff := cfg.RPC.DialRetries, cfg.RPC.DialBackoff.Duration
	rpcClient, err := chainrpc.Dial(ctx, cfg.RPC.HTTP, retries, backoff, logger)
	if err != nil {
		logger.Error("rpc dial failed", "error", err)
		os.Exit(1)
	}
	defer rpcClient.Close()

	var heads transfer.HeadSubscriber
	if cfg.RPC.WS != "" {
		wsClient, err := chainrpc.Dial(ctx, cfg.RPC.WS, retries, backoff, logger)
		if err != nil {
			logger.Error("ws dial failed", "error", err)
			os.Exit(1)
		}
		defer wsClient.Close()
		heads = chainrpc.NewHeadSubscriber(wsClient)
	} else {
		logger.Warn("rpc.ws not set, fee streaming disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	timeout := cfg.RPC.RequestTimeout.Duration
	quoter := chainrpc.NewFeeQuoter(rpcClient, timeout)
	svc, err := transfer.NewService(transfer.Deps{
		Quoter:    quoter,
		Nonces:    chainrpc.NewNonceTracker(rpcClient, timeout),
		Builder:   txbuilder.NewBuilder(cfg.ChainIDBig(), txbuilder.NewTokenEncoder(quoter)),
		Signer:    keysManager,
		Submitter: chainrpc.NewSubmitter(rpcClient, timeout),
		Heads:     heads,
		Logger:    logger,
		Metrics:   metrics.New(reg),
	})
	if err != nil {
		logger.Error("transfer service init failed", "error", err)
		os.Exit(1)
	}

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}
	server := api.NewServer(cfg, logger, svc, chainrpc.NewContractReader(rpcClient, timeout), metricsHandler)

	logger.Info("api starting", "listen", cfg.API.Listen, "chain_id", cfg.ChainID)
	if err := server.Start(ctx); err != nil {
		logger.Error("api stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	_ = level.UnmarshalText([]byte(cfg.Log.Level))
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Log.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
