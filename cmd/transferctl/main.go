package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"transferengine/internal/chainrpc"
	"transferengine/internal/config"
	"transferengine/internal/keys"
	"transferengine/internal/transfer"
	"transferengine/internal/txbuilder"
)

type options struct {
	mode          string
	from          string
	to            string
	token         string
	amount        string
	amountWei     string
	decimals      int
	baseFeeWei    string
	privateKeyEnv string
	simulate      bool
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	var opts options
	flag.StringVar(&opts.mode, "mode", "estimate", "estimate|submit|watch|import")
	flag.StringVar(&opts.from, "from", "", "sender address (defaults to the private key's address)")
	flag.StringVar(&opts.to, "to", "", "receiver address")
	flag.StringVar(&opts.token, "token", "", "token contract address (native transfer if empty)")
	flag.StringVar(&opts.amount, "amount", "", "amount in whole units (decimal, e.g. 0.5)")
	flag.StringVar(&opts.amountWei, "amount-wei", "", "amount in base units")
	flag.IntVar(&opts.decimals, "token-decimals", -1, "token decimals (fetched from the contract if not set)")
	flag.StringVar(&opts.baseFeeWei, "base-fee-wei", "", "estimate with this base fee instead of the flat gas price")
	flag.StringVar(&opts.privateKeyEnv, "private-key-env", "", "env var holding a hex private key (keystore is used if empty)")
	flag.BoolVar(&opts.simulate, "simulate", false, "replay a failed gas estimate with eth_call to show the revert")
	debug := flag.Bool("debug", false, "enable debug logs")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg, opts); err != nil {
		logger.Error(opts.mode+" failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config, opts options) error {
	mode := strings.ToLower(strings.TrimSpace(opts.mode))
	if mode == "import" {
		return importKey(cfg, logger, opts.privateKeyEnv)
	}
	signer, defaultFrom, err := openSigner(cfg, opts.privateKeyEnv)
	if err != nil {
		return err
	}

	rpcClient, err := chainrpc.Dial(ctx, cfg.RPC.HTTP, cfg.RPC.DialRetries, cfg.RPC.DialBackoff.Duration, logger)
	if err != nil {
		return fmt.Errorf("dial %s: %w", cfg.RPC.HTTP, err)
	}
	defer rpcClient.Close()

	var heads transfer.HeadSubscriber
	if mode == "watch" {
		if cfg.RPC.WS == "" {
			return errors.New("watch mode requires rpc.ws")
		}
		wsClient, err := chainrpc.Dial(ctx, cfg.RPC.WS, cfg.RPC.DialRetries, cfg.RPC.DialBackoff.Duration, logger)
		if err != nil {
			return fmt.Errorf("dial %s: %w", cfg.RPC.WS, err)
		}
		defer wsClient.Close()
		heads = chainrpc.NewHeadSubscriber(wsClient)
	}

	timeout := cfg.RPC.RequestTimeout.Duration
	quoter := chainrpc.NewFeeQuoter(rpcClient, timeout)
	encoder := txbuilder.NewTokenEncoder(quoter)
	svc, err := transfer.NewService(transfer.Deps{
		Quoter:    quoter,
		Nonces:    chainrpc.NewNonceTracker(rpcClient, timeout),
		Builder:   txbuilder.NewBuilder(cfg.ChainIDBig(), encoder),
		Signer:    signer,
		Submitter: chainrpc.NewSubmitter(rpcClient, timeout),
		Heads:     heads,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	reader := chainrpc.NewContractReader(rpcClient, timeout)

	t, err := buildTransfer(ctx, encoder, reader, opts, defaultFrom)
	if err != nil {
		return err
	}

	switch mode {
	case "estimate":
		return estimate(ctx, logger, svc, reader, t, opts)
	case "submit":
		hash, err := svc.Submit(ctx, t)
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	case "watch":
		return watch(ctx, logger, svc, t)
	default:
		return fmt.Errorf("unknown mode %q", opts.mode)
	}
}

func estimate(ctx context.Context, logger *slog.Logger, svc *transfer.Service, reader *chainrpc.ContractReader, t txbuilder.Transfer, opts options) error {
	var (
		fee *big.Int
		err error
	)
	if opts.baseFeeWei != "" {
		baseFee, perr := txbuilder.ParseQuantity(opts.baseFeeWei)
		if perr != nil {
			return fmt.Errorf("base-fee-wei: %w", perr)
		}
		fee, err = svc.EstimateFeeWithBaseFee(ctx, t, baseFee)
	} else {
		fee, err = svc.EstimateFee(ctx, t)
	}
	if err != nil {
		var estErr *chainrpc.EstimateGasError
		if opts.simulate && errors.As(err, &estErr) {
			runSimulation(ctx, logger, reader, estErr)
		}
		return err
	}
	logger.Info("fee estimated", "fee_wei", fee.String(), "fee", txbuilder.FormatUnits(fee, 18))
	return nil
}

func runSimulation(ctx context.Context, logger *slog.Logger, reader *chainrpc.ContractReader, estErr *chainrpc.EstimateGasError) {
	out, err := reader.Simulate(ctx, estErr.CallMsg)
	if err != nil {
		var dataErr rpc.DataError
		if errors.As(err, &dataErr) {
			logger.Error("simulation reverted", "error", err, "data", dataErr.ErrorData())
			return
		}
		logger.Error("simulation failed", "error", err)
		return
	}
	logger.Info("simulation succeeded", "result", hexutil.Encode(out))
}

type logListener struct {
	logger *slog.Logger
}

func (l logListener) OnFee(fee *big.Int) {
	l.logger.Info("fee", "fee_wei", fee.String(), "fee", txbuilder.FormatUnits(fee, 18))
}

func (l logListener) OnFeeError(err error) {
	l.logger.Warn("fee unavailable", "error", err)
}

func watch(ctx context.Context, logger *slog.Logger, svc *transfer.Service, t txbuilder.Transfer) error {
	sub := svc.SubscribeForFee(ctx, t, logListener{logger: logger})
	defer sub.Unsubscribe()
	if sub.State() != transfer.Subscribed {
		return errors.New("head subscription did not open")
	}
	logger.Info("watching new heads, ctrl-c to stop")
	select {
	case <-ctx.Done():
	case <-sub.Done():
	}
	return nil
}

func buildTransfer(ctx context.Context, encoder *txbuilder.TokenEncoder, reader *chainrpc.ContractReader, opts options, defaultFrom common.Address) (txbuilder.Transfer, error) {
	from := defaultFrom
	if opts.from != "" {
		addr, err := parseAddressRequired("from", opts.from)
		if err != nil {
			return txbuilder.Transfer{}, err
		}
		from = addr
	}
	if from == (common.Address{}) {
		return txbuilder.Transfer{}, errors.New("from is required")
	}
	to, err := parseAddressRequired("to", opts.to)
	if err != nil {
		return txbuilder.Transfer{}, err
	}
	asset := txbuilder.NativeAsset()
	decimals := uint8(18)
	if opts.token != "" {
		token, err := parseAddressRequired("token", opts.token)
		if err != nil {
			return txbuilder.Transfer{}, err
		}
		asset = txbuilder.TokenAsset(token)
		if opts.decimals < 0 && opts.amountWei == "" {
			d, err := encoder.Decimals(ctx, reader, token)
			if err != nil {
				return txbuilder.Transfer{}, fmt.Errorf("read token decimals: %w", err)
			}
			decimals = d
		}
	}
	if opts.decimals >= 0 {
		if opts.decimals > 255 {
			return txbuilder.Transfer{}, errors.New("token-decimals out of range")
		}
		decimals = uint8(opts.decimals)
	}

	var amount *big.Int
	switch {
	case opts.amountWei != "":
		amount, err = txbuilder.ParseQuantity(opts.amountWei)
	case opts.amount != "":
		amount, err = txbuilder.ParseUnits(opts.amount, decimals)
	default:
		err = errors.New("amount or amount-wei is required")
	}
	if err != nil {
		return txbuilder.Transfer{}, err
	}
	return txbuilder.NewTransfer(asset, from, to, amount), nil
}

func openSigner(cfg *config.Config, privateKeyEnv string) (transfer.Signer, common.Address, error) {
	if privateKeyEnv != "" {
		s, err := keys.NewPrivateKeySigner(os.Getenv(privateKeyEnv))
		if err != nil {
			return nil, common.Address{}, fmt.Errorf("%s: %w", privateKeyEnv, err)
		}
		return s, s.Address(), nil
	}
	m, err := keys.NewManager(cfg.KeyStore.Dir, cfg.Passphrase())
	if err != nil {
		return nil, common.Address{}, err
	}
	var from common.Address
	if accts := m.Accounts(); len(accts) == 1 {
		from = accts[0]
	}
	return m, from, nil
}

func importKey(cfg *config.Config, logger *slog.Logger, privateKeyEnv string) error {
	if privateKeyEnv == "" {
		return errors.New("import requires -private-key-env")
	}
	s, err := keys.NewPrivateKeySigner(os.Getenv(privateKeyEnv))
	if err != nil {
		return err
	}
	m, err := keys.NewManager(cfg.KeyStore.Dir, cfg.Passphrase())
	if err != nil {
		return err
	}
	addr, err := m.Import(s.PrivateKey())
	if err != nil {
		return err
	}
	logger.Info("key imported", "address", addr.Hex(), "dir", m.KeystoreDir())
	return nil
}

func parseAddressRequired(field, value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return common.Address{}, fmt.Errorf("%s is required", field)
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s is not a valid address", field)
	}
	return common.HexToAddress(value), nil
}
