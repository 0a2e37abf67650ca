package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"colorsnap/internal/chain"
	"colorsnap/internal/service"
	"colorsnap/internal/session"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var player = common.HexToAddress("0x00000000000000000000000000000000000000a1")

func newServer(t *testing.T) (*httptest.Server, *Hub, *session.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	service.InitJWT("ws-secret")

	sim := chain.NewSimulator(3)
	mgr := session.NewManager(func(addr common.Address) (chain.Gateway, error) {
		return sim.As(addr), nil
	}, session.Config{}, session.Options{}, 0)
	hub := NewHub()

	r := gin.New()
	r.GET("/ws", HandleWS(hub, mgr, ""))
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
		mgr.CloseAll()
	})
	return srv, hub, mgr
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// next reads frames until one of type typ arrives.
func next(t *testing.T, conn *websocket.Conn, typ string) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var m Message
		require.NoError(t, conn.ReadJSON(&m))
		if m.Type == typ {
			return m
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	msg, err := encode(typ, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, msg))
}

func TestClientHandshakeAndCommands(t *testing.T) {
	srv, hub, mgr := newServer(t)
	tok, err := service.GenerateJWT(player, time.Hour)
	require.NoError(t, err)

	conn := dial(t, srv, tok)

	var ready ReadyPayload
	require.NoError(t, json.Unmarshal(next(t, conn, MsgReady).Payload, &ready))
	require.Equal(t, player.Hex(), ready.Address)
	require.NotEmpty(t, ready.ClientID)

	var view session.View
	require.NoError(t, json.Unmarshal(next(t, conn, MsgState).Payload, &view))
	require.Equal(t, player, view.Address)

	require.Eventually(t, func() bool { return hub.Count(player) == 1 }, time.Second, 5*time.Millisecond)
	_, ok := mgr.Get(player)
	require.True(t, ok)

	send(t, conn, MsgPing, nil)
	next(t, conn, MsgPong)

	send(t, conn, MsgClick, ClickPayload{Index: 0})
	var ack AckPayload
	require.NoError(t, json.Unmarshal(next(t, conn, MsgAck).Payload, &ack))
	require.Equal(t, MsgClick, ack.Action)
	require.False(t, ack.Accepted, "no active game")

	send(t, conn, MsgSubmit, nil)
	var e ErrorPayload
	require.NoError(t, json.Unmarshal(next(t, conn, MsgError).Payload, &e))
	require.Equal(t, MsgSubmit, e.Action)

	send(t, conn, MsgSetName, NamePayload{Name: "carol"})
	require.NoError(t, json.Unmarshal(next(t, conn, MsgAck).Payload, &ack))
	require.True(t, ack.Accepted)
	next(t, conn, MsgTx)

	send(t, conn, "bogus", nil)
	next(t, conn, MsgError)
}

func TestRejectsMissingOrBadToken(t *testing.T) {
	srv, _, _ := newServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.Equal(t, 401, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"?token=nope", nil)
	require.Error(t, err)
	require.Equal(t, 401, resp.StatusCode)
}

func TestHubDisconnectClosesSockets(t *testing.T) {
	srv, hub, _ := newServer(t)
	tok, err := service.GenerateJWT(player, time.Hour)
	require.NoError(t, err)

	conn := dial(t, srv, tok)
	next(t, conn, MsgReady)
	require.Eventually(t, func() bool { return hub.Count(player) == 1 }, time.Second, 5*time.Millisecond)

	hub.Disconnect(player)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	require.Eventually(t, func() bool { return hub.Count(player) == 0 }, time.Second, 5*time.Millisecond)
}
