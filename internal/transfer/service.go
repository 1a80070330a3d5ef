package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"transferengine/internal/chainrpc"
	"transferengine/internal/metrics"
	"transferengine/internal/txbuilder"
)

// Deps wires the service to its collaborators. Signer and Submitter are only
// needed for Submit, Sign and Send; Heads only for SubscribeForFee.
type Deps struct {
	Quoter    FeeQuoter
	Nonces    NonceSource
	Builder   *txbuilder.Builder
	Signer    Signer
	Submitter TxSubmitter
	Heads     HeadSubscriber
	Logger    *slog.Logger
	Metrics   *metrics.Engine
}

// Service estimates fees for, signs and submits transfers. It keeps no state
// between calls; every submission derives a fresh nonce and gas quote.
type Service struct {
	quoter    FeeQuoter
	nonces    NonceSource
	builder   *txbuilder.Builder
	signer    Signer
	submitter TxSubmitter
	heads     HeadSubscriber
	logger    *slog.Logger
	metrics   *metrics.Engine
}

func NewService(d Deps) (*Service, error) {
	if d.Quoter == nil {
		return nil, errors.New("fee quoter is required")
	}
	if d.Nonces == nil {
		return nil, errors.New("nonce source is required")
	}
	if d.Builder == nil || d.Builder.ChainID == nil {
		return nil, errors.New("builder with chain id is required")
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		quoter:    d.Quoter,
		nonces:    d.Nonces,
		builder:   d.Builder,
		signer:    d.Signer,
		submitter: d.Submitter,
		heads:     d.Heads,
		logger:    logger,
		metrics:   d.Metrics,
	}, nil
}

func (s *Service) ChainID() *big.Int {
	return new(big.Int).Set(s.builder.ChainID)
}

// EstimateFee returns gasLimit × gasPrice for t.
func (s *Service) EstimateFee(ctx context.Context, t txbuilder.Transfer) (fee *big.Int, err error) {
	defer func() { s.metrics.FeeEstimate("legacy", err) }()

	c, err := s.builder.Resolve(t)
	if err != nil {
		return nil, intentError(err, newFeeError)
	}
	var limit, price *big.Int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		limit, err = s.gasLimit(gctx, c)
		return err
	})
	g.Go(func() (err error) {
		price, err = s.quoter.GasPrice(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return txbuilder.Fee(limit, price), nil
}

// EstimateFeeWithBaseFee returns gasLimit × (baseFee + priority fee).
func (s *Service) EstimateFeeWithBaseFee(ctx context.Context, t txbuilder.Transfer, baseFee *big.Int) (fee *big.Int, err error) {
	defer func() { s.metrics.FeeEstimate("dynamic", err) }()

	c, err := s.builder.Resolve(t)
	if err != nil {
		return nil, intentError(err, newFeeError)
	}
	if baseFee == nil || baseFee.Sign() < 0 {
		return nil, &FeeError{Reason: "base fee is required"}
	}
	var limit, tip *big.Int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		limit, err = s.gasLimit(gctx, c)
		return err
	})
	g.Go(func() (err error) {
		tip, err = s.quoter.MaxPriorityFeePerGas(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return txbuilder.Fee(limit, new(big.Int).Add(baseFee, tip)), nil
}

// Submit builds, signs and sends t, returning the 0x-prefixed lowercase
// transaction hash.
func (s *Service) Submit(ctx context.Context, t txbuilder.Transfer) (hash string, err error) {
	defer func() { s.metrics.Submission("transfer", err) }()

	c, err := s.builder.Resolve(t)
	if err != nil {
		return "", intentError(err, newTransferError)
	}
	if s.signer == nil || s.submitter == nil {
		return "", &TransferError{Reason: "signer and submitter are required"}
	}
	utx, err := s.prepare(ctx, s.builder, c)
	if err != nil {
		return "", err
	}
	signed, err := s.sign(utx)
	if err != nil {
		return "", err
	}
	h, err := s.send(ctx, signed)
	if err != nil {
		return "", err
	}
	return h.Hex(), nil
}

// Sign rebuilds tx with a fresh nonce and gas quote and returns the signed
// raw bytes without submitting them.
func (s *Service) Sign(ctx context.Context, tx WalletTx, chainID *big.Int) (raw []byte, err error) {
	signed, err := s.signWalletTx(ctx, tx, chainID)
	if err != nil {
		return nil, err
	}
	return signed.MarshalBinary()
}

// Send is Sign followed by submission.
func (s *Service) Send(ctx context.Context, tx WalletTx, chainID *big.Int) (hash common.Hash, err error) {
	defer func() { s.metrics.Submission("wallet", err) }()

	signed, err := s.signWalletTx(ctx, tx, chainID)
	if err != nil {
		return common.Hash{}, err
	}
	if s.submitter == nil {
		return common.Hash{}, errors.New("submitter is not configured")
	}
	return s.send(ctx, signed)
}

func (s *Service) signWalletTx(ctx context.Context, tx WalletTx, chainID *big.Int) (*types.Transaction, error) {
	c, err := walletCall(tx)
	if err != nil {
		return nil, err
	}
	if s.signer == nil {
		return nil, &SigningError{Err: errors.New("signer is not configured")}
	}
	b := s.builder
	if chainID != nil && chainID.Cmp(b.ChainID) != 0 {
		b = b.WithChainID(chainID)
	}
	utx, err := s.prepare(ctx, b, c)
	if err != nil {
		return nil, err
	}
	return s.sign(utx)
}

func walletCall(tx WalletTx) (txbuilder.Call, error) {
	switch {
	case tx.From == nil:
		return txbuilder.Call{}, fmt.Errorf("%w: from is required", ErrInvalidParams)
	case tx.To == nil:
		return txbuilder.Call{}, fmt.Errorf("%w: to is required", ErrInvalidParams)
	case tx.Value == nil:
		return txbuilder.Call{}, fmt.Errorf("%w: value is required", ErrInvalidParams)
	}
	return txbuilder.Call{
		From:  *tx.From,
		To:    *tx.To,
		Value: new(big.Int).Set(tx.Value.ToInt()),
		Data:  tx.Data,
	}, nil
}

// prepare queries nonce, gas price and gas limit concurrently and assembles
// the unsigned transaction with legacy pricing.
func (s *Service) prepare(ctx context.Context, b *txbuilder.Builder, c txbuilder.Call) (*txbuilder.UnsignedTx, error) {
	var (
		nonce        uint64
		price, limit *big.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		nonce, err = s.nonces.Next(gctx, c.From)
		return err
	})
	g.Go(func() (err error) {
		price, err = s.quoter.GasPrice(gctx)
		return err
	})
	g.Go(func() (err error) {
		limit, err = s.gasLimit(gctx, c)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	utx, err := b.Assemble(c, nonce, txbuilder.LegacyPricing{GasPrice: price}, limit)
	if err != nil {
		return nil, &TransferError{Reason: err.Error(), Err: err}
	}
	return utx, nil
}

func (s *Service) gasLimit(ctx context.Context, c txbuilder.Call) (*big.Int, error) {
	if len(c.Data) > 0 {
		return s.builder.Encoder().EstimateGas(ctx, c.From, c.To, c.Value, c.Data)
	}
	return s.quoter.EstimateGasForCall(ctx, chainrpc.CallRequest{From: c.From, To: c.To, Value: c.Value})
}

func (s *Service) sign(utx *txbuilder.UnsignedTx) (*types.Transaction, error) {
	signed, err := s.signer.SignTransaction(utx.From, utx.Transaction(), utx.ChainID)
	s.metrics.Signature(err)
	if err != nil {
		return nil, &SigningError{Err: err}
	}
	return signed, nil
}

func (s *Service) send(ctx context.Context, signed *types.Transaction) (common.Hash, error) {
	hash, err := s.submitter.SubmitTransaction(ctx, signed)
	if err != nil {
		s.logger.Warn("submit transaction failed", "nonce", signed.Nonce(), "error", err)
		return common.Hash{}, err
	}
	if local := signed.Hash(); hash != local {
		s.logger.Warn("node returned unexpected tx hash", "node", hash.Hex(), "local", local.Hex())
	}
	s.logger.Info("transaction submitted", "hash", hash.Hex(), "nonce", signed.Nonce(), "gas", signed.Gas())
	return hash, nil
}

func newFeeError(reason string, err error) error {
	return &FeeError{Reason: reason, Err: err}
}

func newTransferError(reason string, err error) error {
	return &TransferError{Reason: reason, Err: err}
}

// intentError classifies a rejected transfer. Encoding failures pass through
// unchanged.
func intentError(err error, wrap func(reason string, err error) error) error {
	var encErr *txbuilder.EncodingError
	switch {
	case errors.Is(err, txbuilder.ErrUnknownAsset):
		return wrap("unknown asset", err)
	case errors.As(err, &encErr):
		return err
	default:
		return wrap(err.Error(), err)
	}
}
