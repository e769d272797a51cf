package exstate

import (
	"context"
	"encoding/json"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"exec-core/internal/account"
	"exec-core/internal/events"
	"exec-core/pkg/binance"
	"exec-core/pkg/logger"
)

const keepAliveInterval = 30 * time.Minute

// wsConn is the subset of *websocket.Conn the stream reader needs.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	Close() error
}

type dialFunc func(ctx context.Context, wsURL string) (wsConn, error)

func gorillaDial(ctx context.Context, wsURL string) (wsConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	return conn, err
}

// streamLoop keeps one user-data stream session alive, reconnecting with a
// capped attempt count and linearly growing backoff. A session that survived
// over a minute resets the attempt counter. When the budget is exhausted the
// service stops and must be restarted externally.
func (s *Service) streamLoop(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		if attempt >= s.maxReconnects {
			logger.Error("stream reconnect budget exhausted, stopping service",
				logger.Pair("attempts", attempt))
			s.Stop()
			return
		}
		if attempt > 0 {
			backoff := time.Duration(attempt) * s.backoffStep
			if backoff > s.backoffMax {
				backoff = s.backoffMax
			}
			logger.Warn("stream reconnecting",
				logger.Pair("attempt", attempt), logger.Pair("backoff", backoff.String()))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
		}

		started := time.Now()
		err := s.runSession(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Warn("stream session ended", logger.Pair("error", err.Error()))
		}
		if time.Since(started) > time.Minute {
			attempt = 0
		}
		attempt++
	}
}

// runSession acquires a listen key, dials the stream and reads frames until
// the connection drops. Keep-alive failure closes the connection, which
// lands on the same reconnect path as any other stream failure.
func (s *Service) runSession(ctx context.Context) error {
	listenKey, err := s.api.CreateListenKey(ctx)
	if err != nil {
		return err
	}

	u := url.URL{Scheme: "wss", Host: s.api.StreamHost(), Path: "/ws/" + listenKey}
	conn, err := s.dial(ctx, u.String())
	if err != nil {
		return err
	}
	logger.Info("user data stream connected", logger.Pair("host", s.api.StreamHost()))

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				if err := s.api.KeepAliveListenKey(ctx, listenKey); err != nil {
					logger.Warn("listen key keepalive failed", logger.Pair("error", err.Error()))
					conn.Close()
					return
				}
			}
		}
	}()

	defer conn.Close()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handleStreamMessage(msg)
	}
}

// handleStreamMessage classifies one frame by its event discriminator.
// Malformed frames are skipped without tearing down the connection.
func (s *Service) handleStreamMessage(msg []byte) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(msg, &raw); err != nil {
		logger.Warn("stream frame parse error", logger.Pair("error", err.Error()))
		return
	}

	var eventType string
	if v, ok := raw["e"]; ok {
		if err := json.Unmarshal(v, &eventType); err != nil {
			logger.Warn("stream frame has non-string event type", logger.Pair("payload", string(v)))
			return
		}
	} else {
		return
	}

	switch eventType {
	case "ORDER_TRADE_UPDATE":
		s.handleOrderTradeUpdate(msg)
	case "ACCOUNT_UPDATE":
		s.handleAccountUpdate(msg)
	default:
		// ignore other events
	}
}

// handleOrderTradeUpdate surfaces fill executions to listeners and patches
// the realized-P&L bookkeeping. Fills never write into the position cache;
// ACCOUNT_UPDATE deltas and reconciliation own that.
func (s *Service) handleOrderTradeUpdate(msg []byte) {
	var wrap struct {
		EventTime int64 `json:"E"`
		Data      struct {
			Symbol        string `json:"s"`
			Side          string `json:"S"`
			PositionSide  string `json:"ps"`
			Status        string `json:"X"`
			ExecutionType string `json:"x"`
			OrderID       int64  `json:"i"`
			TradeID       int64  `json:"t"`
			ClientOrderID string `json:"c"`
			LastPrice     string `json:"L"`
			LastQty       string `json:"l"`
			Commission    string `json:"n"`
			RealizedPnl   string `json:"rp"`
			IsMaker       bool   `json:"m"`
		} `json:"o"`
	}
	if err := json.Unmarshal(msg, &wrap); err != nil {
		logger.Warn("order update parse error", logger.Pair("error", err.Error()))
		return
	}
	if strings.ToUpper(wrap.Data.ExecutionType) != "TRADE" {
		return
	}

	fill := Fill{
		Symbol:        wrap.Data.Symbol,
		Side:          wrap.Data.Side,
		PositionSide:  wrap.Data.PositionSide,
		Price:         binance.ToFloat(wrap.Data.LastPrice),
		Qty:           binance.ToFloat(wrap.Data.LastQty),
		Commission:    binance.ToFloat(wrap.Data.Commission),
		RealizedPnl:   binance.ToFloat(wrap.Data.RealizedPnl),
		OrderID:       wrap.Data.OrderID,
		TradeID:       wrap.Data.TradeID,
		ClientOrderID: wrap.Data.ClientOrderID,
		Maker:         wrap.Data.IsMaker,
		Status:        strings.ToUpper(wrap.Data.Status),
		Time:          time.UnixMilli(wrap.EventTime),
	}
	if fill.Time.UnixMilli() <= 0 {
		fill.Time = time.Now()
	}

	s.mu.Lock()
	s.recentFills = append(s.recentFills, fill)
	if len(s.recentFills) > recentFillsCap {
		s.recentFills = s.recentFills[len(s.recentFills)-recentFillsCap:]
	}
	date := fill.Time.UTC().Format("2006-01-02")
	row, ok := s.dailyPnl[date]
	if !ok {
		row = &PnlRow{Date: date}
		s.dailyPnl[date] = row
	}
	row.RealizedPnl += fill.RealizedPnl
	row.Fees += fill.Commission
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(events.EventOrderFill, fill)
	}
}

// handleAccountUpdate applies per-symbol position deltas as in-place
// upserts/deletes against the cached positions. A zero-quantity update
// removes the entry; every applied delta raises the same change
// notification a reconciliation pass would.
func (s *Service) handleAccountUpdate(msg []byte) {
	var wrap struct {
		Data struct {
			Positions []struct {
				Symbol       string `json:"s"`
				Amount       string `json:"pa"`
				EntryPrice   string `json:"ep"`
				PositionSide string `json:"ps"`
			} `json:"P"`
		} `json:"a"`
	}
	if err := json.Unmarshal(msg, &wrap); err != nil {
		logger.Warn("account update parse error", logger.Pair("error", err.Error()))
		return
	}

	for _, entry := range wrap.Data.Positions {
		amt := binance.ToFloat(entry.Amount)

		s.mu.Lock()
		applied := false
		if amt == 0 {
			for k := range s.positions {
				if k.Symbol == entry.Symbol {
					delete(s.positions, k)
					applied = true
				}
			}
		} else {
			side := account.SideLong
			if amt < 0 {
				side = account.SideShort
			}
			key := posKey{Symbol: entry.Symbol, Side: side}
			// Replace the opposite-side entry if the delta flipped direction.
			for k := range s.positions {
				if k.Symbol == entry.Symbol && k.Side != side {
					delete(s.positions, k)
				}
			}
			prev := s.positions[key]
			qty := math.Abs(amt)
			entryPrice := binance.ToFloat(entry.EntryPrice)
			pos := account.Position{
				Symbol:     entry.Symbol,
				Side:       side,
				Quantity:   qty,
				EntryPrice: entryPrice,
				MarkPrice:  prev.MarkPrice,
				Notional:   qty * entryPrice,
				EntryTime:  prev.EntryTime,
			}
			if prev.Quantity == 0 {
				pos.EntryTime = time.Now()
			}
			s.positions[key] = pos
			applied = true
		}
		s.mu.Unlock()

		if applied {
			s.notifyPositionChange()
		}
	}
}
