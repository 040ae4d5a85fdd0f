package ws

import (
	"context"
	"math/rand/v2"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tap-to-win/internal/ledger"
	"github.com/DoyleJ11/tap-to-win/internal/lobby"
	"github.com/DoyleJ11/tap-to-win/internal/types"
)

var owner = ledger.User{ID: "252205625", DisplayName: "owner"}

func dialFeed(t *testing.T) (*websocket.Conn, *lobby.Lobby) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	lb := lobby.NewLobby(ctx, ledger.New(ledger.DefaultConfig(), clock, rand.New(rand.NewPCG(1, 1))), clock, lobby.Options{})
	srv := httptest.NewServer(Handler(lb, zap.NewNop()))

	dctx, dcancel := context.WithTimeout(ctx, time.Second)
	defer dcancel()
	conn, _, err := websocket.Dial(dctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close(websocket.StatusNormalClosure, "done")
		srv.Close()
		cancel()
	})
	return conn, lb
}

func readMsg(t *testing.T, conn *websocket.Conn) types.ServerMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var msg types.ServerMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	return msg
}

func TestHandler_StreamsSnapshots(t *testing.T) {
	conn, lb := dialFeed(t)

	joined := readMsg(t, conn)
	assert.Equal(t, "snapshot", joined.Type)
	assert.Equal(t, string(lobby.EvtJoined), joined.Event)
	require.NotNil(t, joined.Jackpot)
	assert.Equal(t, 0, *joined.Jackpot)

	_, err := lb.Tap(context.Background(), owner)
	require.NoError(t, err)

	next := readMsg(t, conn)
	assert.Equal(t, string(lobby.EvtTap), next.Event)
	assert.Equal(t, 1, next.Version)
	require.NotNil(t, next.Jackpot)
	assert.Equal(t, 1, *next.Jackpot)
	require.NotNil(t, next.Round)
	assert.Equal(t, int64(60_000), next.Round.EndTime-next.Round.StartTime)
}

func TestHandler_TapOverSocket(t *testing.T) {
	conn, _ := dialFeed(t)
	_ = readMsg(t, conn) // join snapshot

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, types.ClientMessage{Type: "tap", User: &owner}))

	// the reply and the broadcast may arrive in either order
	got := map[string]types.ServerMessage{}
	for i := 0; i < 2; i++ {
		msg := readMsg(t, conn)
		got[msg.Type] = msg
	}

	require.Contains(t, got, "tap")
	require.NotNil(t, got["tap"].Tap)
	assert.Equal(t, "Tap recorded", got["tap"].Tap.Message)
	assert.Equal(t, 1, got["tap"].Tap.Jackpot)
	require.Contains(t, got, "snapshot")
	assert.Equal(t, string(lobby.EvtTap), got["snapshot"].Event)
}

func TestHandler_RejectsBadMessages(t *testing.T) {
	conn, _ := dialFeed(t)
	_ = readMsg(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{bad")))
	msg := readMsg(t, conn)
	assert.Equal(t, types.ServerMessage{Type: "error", Message: "bad json"}, msg)

	require.NoError(t, wsjson.Write(ctx, conn, types.ClientMessage{Type: "dance"}))
	msg = readMsg(t, conn)
	assert.Equal(t, "unknown type", msg.Message)

	// anonymous has no taps; no broadcast follows a rejected tap
	require.NoError(t, wsjson.Write(ctx, conn, types.ClientMessage{Type: "tap"}))
	msg = readMsg(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, types.MsgInsufficient, msg.Message)
}
