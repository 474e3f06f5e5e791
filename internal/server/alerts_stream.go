package server

import (
	"context"
	"net/http"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"nhooyr.io/websocket"

	"github.com/fundops/compliance-engine/internal/events"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamPingInterval = 30 * time.Second
)

// alertStreamMessage is one msgpack-framed push over /ws/alerts.
type alertStreamMessage struct {
	Type string      `msgpack:"type"`
	Data events.EventData `msgpack:"data"`
}

// handleAlertsStream upgrades to a websocket and pushes every alert-raised
// and trade-alerted event for the life of the connection, framed as
// msgpack. There is no subscription filter: a connected operator console
// watches every fund.
func (s *Server) handleAlertsStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	msgs := make(chan alertStreamMessage, 16)
	push := func(msgType string) events.Handler {
		return func(e events.Event) {
			select {
			case msgs <- alertStreamMessage{Type: msgType, Data: e.Data}:
			default:
				s.log.Warn().Str("event_type", string(e.Type)).Msg("alert stream backpressure, dropping event")
			}
		}
	}

	unsubAlert := s.deps.Bus.Subscribe(events.AlertCreated, push("alert_created"))
	unsubTradeAlert := s.deps.Bus.Subscribe(events.TradeAlerted, push("trade_alerted"))
	defer unsubAlert()
	defer unsubTradeAlert()

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "server shutting down")
			return
		case <-ticker.C:
			pingCtx, pingCancel := context.WithTimeout(ctx, streamWriteTimeout)
			err := conn.Ping(pingCtx)
			pingCancel()
			if err != nil {
				s.log.Debug().Err(err).Msg("alert stream ping failed, closing")
				return
			}
		case msg := <-msgs:
			payload, err := msgpack.Marshal(msg)
			if err != nil {
				s.log.Error().Err(err).Msg("failed to marshal alert stream message")
				continue
			}
			writeCtx, writeCancel := context.WithTimeout(ctx, streamWriteTimeout)
			err = conn.Write(writeCtx, websocket.MessageBinary, payload)
			writeCancel()
			if err != nil {
				s.log.Debug().Err(err).Msg("alert stream write failed, closing")
				return
			}
		}
	}
}
