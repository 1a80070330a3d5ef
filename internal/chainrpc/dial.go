package chainrpc

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	"transferengine/internal/util"
)

const userAgent = "transferengine"

// Dial connects to an http(s) or ws(s) endpoint, retrying with exponential
// backoff.
func Dial(ctx context.Context, endpoint string, retries int, backoff time.Duration, logger *slog.Logger) (*rpc.Client, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var client *rpc.Client
	err := util.Retry(ctx, retries, backoff, func(attempt int) error {
		c, err := rpc.DialContext(ctx, endpoint)
		if err != nil {
			logger.Warn("rpc dial failed", "endpoint", endpoint, "attempt", attempt+1, "error", err)
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	client.SetHeader("User-Agent", userAgent)
	return client, nil
}
