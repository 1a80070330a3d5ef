package api

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"transferengine/internal/txbuilder"
)

const streamBuffer = 16

type feeEvent struct {
	name string
	body interface{}
}

// streamListener never blocks the head stream; events beyond the buffer are
// dropped.
type streamListener struct {
	events chan feeEvent
}

func (l *streamListener) OnFee(fee *big.Int) {
	l.push(feeEvent{name: "fee", body: feeResponse{
		FeeWei: fee.String(),
		Fee:    txbuilder.FormatUnits(fee, nativeDecimals),
		Mode:   "dynamic",
	}})
}

func (l *streamListener) OnFeeError(err error) {
	l.push(feeEvent{name: "error", body: map[string]string{"error": err.Error()}})
}

func (l *streamListener) push(ev feeEvent) {
	select {
	case l.events <- ev:
	default:
	}
}

// handleFeeStream serves live dynamic fee estimates as server-sent events,
// one per block, until the client disconnects.
func (s *Server) handleFeeStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	q := r.URL.Query()
	req := transferRequest{
		From:      q.Get("from"),
		To:        q.Get("to"),
		Token:     q.Get("token"),
		Amount:    q.Get("amount"),
		AmountWei: q.Get("amount_wei"),
	}
	if v := q.Get("token_decimals"); v != "" {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			writeError(w, http.StatusBadRequest, "token_decimals: invalid value")
			return
		}
		d := uint8(n)
		req.TokenDecimals = &d
	}
	t, err := s.toTransfer(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	l := &streamListener{events: make(chan feeEvent, streamBuffer)}
	sub := s.svc.SubscribeForFee(r.Context(), t, l)
	defer sub.Unsubscribe()
	s.logger.Debug("fee stream opened", "from", req.From, "token", req.Token)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-l.events:
			if err := writeEvent(w, ev); err != nil {
				return
			}
			flusher.Flush()
		case <-sub.Done():
			for {
				select {
				case ev := <-l.events:
					if writeEvent(w, ev) != nil {
						return
					}
				default:
					flusher.Flush()
					return
				}
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, ev feeEvent) error {
	b, err := json.Marshal(ev.body)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, b)
	return err
}
