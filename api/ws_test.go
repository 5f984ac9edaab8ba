package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-display/models"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dial(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws"
	conn, res, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, res.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestWS_ConnectWithoutOrder(t *testing.T) {
	env := newTestEnv(t, nil, Options{})
	conn := dial(t, env)

	hello := readFrame(t, conn)
	require.Equal(t, models.EventConnectionStatus, hello.Event)
	var status models.ConnectionStatus
	require.NoError(t, json.Unmarshal(hello.Data, &status))
	assert.True(t, status.Connected)
	assert.True(t, strings.HasPrefix(status.ClientID, "display-"))

	snap := readFrame(t, conn)
	require.Equal(t, models.EventDisplayMessage, snap.Event)
	var msg models.DisplayMessage
	require.NoError(t, json.Unmarshal(snap.Data, &msg))
	assert.Equal(t, models.DisplayMessageClear, msg.Message)
}

func TestWS_LateJoinAndLiveUpdates(t *testing.T) {
	env := newTestEnv(t, nil, Options{})
	env.do(t, http.MethodPost, "/api/order/items", map[string]any{"id": "A", "name": "Coffee", "price": 3})
	env.do(t, http.MethodPost, "/api/order/items", map[string]any{"id": "A", "name": "Coffee", "price": 3})

	conn := dial(t, env)
	assert.Equal(t, models.EventConnectionStatus, readFrame(t, conn).Event)

	snap := readFrame(t, conn)
	require.Equal(t, models.EventOrderUpdate, snap.Event)
	var o models.Order
	require.NoError(t, json.Unmarshal(snap.Data, &o))
	assert.Equal(t, 2, o.Items[0].Quantity)

	env.do(t, http.MethodPost, "/api/order/discount", map[string]any{"discount": 1})
	update := readFrame(t, conn)
	require.Equal(t, models.EventOrderUpdate, update.Event)
	require.NoError(t, json.Unmarshal(update.Data, &o))
	assert.Equal(t, 5.54, o.Total)

	env.do(t, http.MethodPost, "/api/order/cancel", nil)
	assert.Equal(t, models.EventDisplayMessage, readFrame(t, conn).Event)
}

func TestWS_DisconnectUnsubscribes(t *testing.T) {
	env := newTestEnv(t, nil, Options{})
	conn := dial(t, env)
	readFrame(t, conn)
	readFrame(t, conn)
	require.Eventually(t, func() bool { return env.hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	conn.Close()
	require.Eventually(t, func() bool { return env.hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	env.do(t, http.MethodPost, "/api/order/items", map[string]any{"id": "A", "name": "Coffee", "price": 3})
	assert.Equal(t, uint64(0), env.hub.Stats().Failed, "a gone display is not written to")
}
