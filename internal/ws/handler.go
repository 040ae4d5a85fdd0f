package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tap-to-win/internal/ledger"
	"github.com/DoyleJ11/tap-to-win/internal/lobby"
	"github.com/DoyleJ11/tap-to-win/internal/types"
)

const writeTimeout = 3 * time.Second

// Handler streams round snapshots to the client and accepts taps.
func Handler(lb *lobby.Lobby, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID := uuid.NewString()
		clog := log.With(zap.String("client_id", clientID))

		out := make(chan lobby.Snapshot, 8)
		if err := lb.Subscribe(r.Context(), clientID, out); err != nil {
			conn.Close(websocket.StatusTryAgainLater, "lobby unavailable")
			return
		}
		defer lb.Unsubscribe(clientID)
		clog.Debug("feed client joined")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Replies and snapshots share one writer so frames never interleave.
		replies := make(chan types.ServerMessage, 4)

		// Writer goroutine
		go func() {
			defer cancel()
			for {
				var msg types.ServerMessage
				select {
				case <-ctx.Done():
					return
				case snap, ok := <-out:
					if !ok {
						// dropped as slow, or lobby shut down
						conn.Close(websocket.StatusGoingAway, "feed closed")
						return
					}
					msg = snapshotMessage(snap)
				case msg = <-replies:
				}

				wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
				err := wsjson.Write(wctx, conn, msg)
				wcancel()
				if err != nil {
					return
				}
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				// Treat clean close/going-away as normal:
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					clog.Debug("feed client left")
				default:
					clog.Debug("feed read ended", zap.Error(err))
				}
				return
			}

			reply := handleClientMessage(ctx, lb, data)
			select {
			case replies <- reply:
			case <-ctx.Done():
				return
			}
		}
	}
}

func handleClientMessage(ctx context.Context, lb *lobby.Lobby, data []byte) types.ServerMessage {
	var cm types.ClientMessage
	if err := json.Unmarshal(data, &cm); err != nil {
		return types.ServerMessage{Type: "error", Message: "bad json"}
	}

	switch cm.Type {
	case "tap":
		receipt, err := lb.Tap(ctx, ledger.OrAnonymous(cm.User))
		if err != nil {
			_, msg := types.ErrorFor(err)
			return types.ServerMessage{Type: "error", Message: msg}
		}
		return types.ServerMessage{Type: "tap", Tap: &types.TapResponse{
			Status:    types.StatusOK,
			Message:   types.MsgTapRecorded,
			Timestamp: receipt.Timestamp,
			Balance:   receipt.Balance,
			Jackpot:   receipt.Jackpot,
		}}
	default:
		return types.ServerMessage{Type: "error", Message: "unknown type"}
	}
}

func snapshotMessage(s lobby.Snapshot) types.ServerMessage {
	round := s.Round
	jackpot, taps := s.Jackpot, s.Taps
	return types.ServerMessage{
		Type:    "snapshot",
		Version: s.Version,
		Event:   string(s.Event),
		Round:   &round,
		Jackpot: &jackpot,
		Taps:    &taps,
		Winner:  s.Winner,
	}
}
