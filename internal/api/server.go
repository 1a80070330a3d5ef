package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"transferengine/internal/chainrpc"
	"transferengine/internal/config"
	"transferengine/internal/transfer"
	"transferengine/internal/txbuilder"
)

const nativeDecimals = 18

type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	svc     *transfer.Service
	encoder *txbuilder.TokenEncoder
	reader  txbuilder.ContractReader
	metrics http.Handler
}

// NewServer exposes svc over HTTP. reader resolves token decimals for human
// amounts; metrics is mounted at cfg.Metrics.Path when enabled.
func NewServer(cfg *config.Config, logger *slog.Logger, svc *transfer.Service, reader txbuilder.ContractReader, metrics http.Handler) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		cfg:     cfg,
		logger:  logger,
		svc:     svc,
		encoder: txbuilder.NewTokenEncoder(nil),
		reader:  reader,
		metrics: metrics,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.withAuth(s.handleHealth))
	mux.HandleFunc("/fee/estimate", s.withAuth(s.handleEstimate))
	mux.HandleFunc("/fee/stream", s.withAuth(s.handleFeeStream))
	mux.HandleFunc("/transfer/submit", s.withAuth(s.handleSubmit))
	mux.HandleFunc("/wc/sign", s.withAuth(s.handleWalletSign))
	mux.HandleFunc("/wc/send", s.withAuth(s.handleWalletSend))
	if s.cfg.Metrics.Enabled && s.metrics != nil {
		mux.Handle(s.cfg.Metrics.Path, s.metrics)
	}
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.API.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctxTimeout)
	}()
	s.logger.Info("api listening", "addr", s.cfg.API.Listen)
	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.API.AuthToken != "" {
			token := r.Header.Get("X-API-Key")
			if token == "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
					token = strings.TrimSpace(auth[7:])
				}
			}
			if token != s.cfg.API.AuthToken {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "chain_id": s.svc.ChainID().String()})
}

type transferRequest struct {
	From          string `json:"from"`
	To            string `json:"to"`
	Token         string `json:"token,omitempty"`
	TokenDecimals *uint8 `json:"token_decimals,omitempty"`
	Amount        string `json:"amount,omitempty"`
	AmountWei     string `json:"amount_wei,omitempty"`
	BaseFeeWei    string `json:"base_fee_wei,omitempty"`
}

type feeResponse struct {
	FeeWei string `json:"fee_wei"`
	Fee    string `json:"fee"`
	Mode   string `json:"mode"`
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req transferRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := s.toTransfer(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var fee *big.Int
	mode := "legacy"
	if req.BaseFeeWei != "" {
		baseFee, perr := txbuilder.ParseQuantity(req.BaseFeeWei)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "base_fee_wei: "+perr.Error())
			return
		}
		mode = "dynamic"
		fee, err = s.svc.EstimateFeeWithBaseFee(r.Context(), t, baseFee)
	} else {
		fee, err = s.svc.EstimateFee(r.Context(), t)
	}
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feeResponse{FeeWei: fee.String(), Fee: txbuilder.FormatUnits(fee, nativeDecimals), Mode: mode})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req transferRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := s.toTransfer(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := s.svc.Submit(r.Context(), t)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tx_hash": hash})
}

type walletRequest struct {
	ChainID *hexutil.Big      `json:"chain_id,omitempty"`
	Tx      transfer.WalletTx `json:"tx"`
}

func (s *Server) handleWalletSign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req walletRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	raw, err := s.svc.Sign(r.Context(), req.Tx, req.ChainID.ToInt())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"raw": hexutil.Encode(raw)})
}

func (s *Server) handleWalletSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req walletRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := s.svc.Send(r.Context(), req.Tx, req.ChainID.ToInt())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tx_hash": hash.Hex()})
}

func (s *Server) toTransfer(ctx context.Context, req transferRequest) (txbuilder.Transfer, error) {
	from, err := parseAddress(req.From)
	if err != nil {
		return txbuilder.Transfer{}, fmt.Errorf("from: %w", err)
	}
	to, err := parseAddress(req.To)
	if err != nil {
		return txbuilder.Transfer{}, fmt.Errorf("to: %w", err)
	}
	asset := txbuilder.NativeAsset()
	if strings.TrimSpace(req.Token) != "" {
		token, err := parseAddress(req.Token)
		if err != nil {
			return txbuilder.Transfer{}, fmt.Errorf("token: %w", err)
		}
		asset = txbuilder.TokenAsset(token)
	}
	amount, err := s.parseAmount(ctx, asset, req)
	if err != nil {
		return txbuilder.Transfer{}, err
	}
	return txbuilder.NewTransfer(asset, from, to, amount), nil
}

func (s *Server) parseAmount(ctx context.Context, asset txbuilder.Asset, req transferRequest) (*big.Int, error) {
	if req.AmountWei != "" {
		return txbuilder.ParseQuantity(req.AmountWei)
	}
	if req.Amount == "" {
		return nil, errors.New("amount or amount_wei is required")
	}
	decimals := uint8(nativeDecimals)
	switch {
	case req.TokenDecimals != nil:
		decimals = *req.TokenDecimals
	case asset.Kind == txbuilder.AssetToken:
		if s.reader == nil {
			return nil, errors.New("token_decimals is required")
		}
		d, err := s.encoder.Decimals(ctx, s.reader, asset.Contract)
		if err != nil {
			return nil, fmt.Errorf("read token decimals: %w", err)
		}
		decimals = d
	}
	return txbuilder.ParseUnits(req.Amount, decimals)
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("engine call failed", "error", err)
	}
	writeError(w, status, err.Error())
}

func errorStatus(err error) int {
	var (
		rpcErr  *chainrpc.RPCError
		signErr *transfer.SigningError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, chainrpc.ErrUnexpected), errors.As(err, &rpcErr):
		return http.StatusBadGateway
	case errors.As(err, &signErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func readJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return errors.New("empty body")
	}
	return json.Unmarshal(b, v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func parseAddress(value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return common.Address{}, errors.New("address is required")
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, errors.New("invalid address")
	}
	return common.HexToAddress(value), nil
}
