package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kasuganosora/combatcore/cache"
	"github.com/kasuganosora/combatcore/game/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, origins []string) (*httptest.Server, cache.PubSub, *Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ps, err := cache.NewPubSub(cache.CacheConfig{})
	require.NoError(t, err)
	h := NewHandler(ps, origins, nil)
	r := gin.New()
	r.GET("/ws", h.ServeWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, ps, h
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
}

func readPacket(t *testing.T, conn *websocket.Conn) Packet {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var pkt Packet
	require.NoError(t, conn.ReadJSON(&pkt))
	return pkt
}

func TestServeWSStreamsFilteredEvents(t *testing.T) {
	srv, ps, h := startServer(t, nil)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?entity=g1"), nil)
	require.NoError(t, err)
	defer conn.Close()

	welcome := readPacket(t, conn)
	assert.Equal(t, TypeWelcome, welcome.Type)
	assert.Equal(t, uint64(1), welcome.Seq)
	var f telemetry.Filter
	require.NoError(t, json.Unmarshal(welcome.Payload, &f))
	assert.Equal(t, "g1", f.EntityID)
	assert.Equal(t, int64(1), h.Active())

	ctx := context.Background()
	require.NoError(t, ps.Publish(ctx, telemetry.Channel, `{"entity_id":"g2","kind":"damage"}`))
	require.NoError(t, ps.Publish(ctx, telemetry.Channel, `{"entity_id":"g1","kind":"death"}`))

	pkt := readPacket(t, conn)
	assert.Equal(t, TypeEvent, pkt.Type)
	assert.JSONEq(t, `{"entity_id":"g1","kind":"death"}`, string(pkt.Payload))
}

func TestServeWSFilterPacket(t *testing.T) {
	srv, ps, _ := startServer(t, nil)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	require.NoError(t, err)
	defer conn.Close()
	readPacket(t, conn)

	require.NoError(t, conn.WriteJSON(Packet{Type: TypeFilter, Payload: json.RawMessage(`{"kind":"phase"}`)}))
	ok := readPacket(t, conn)
	assert.Equal(t, TypeFilterOK, ok.Type)
	assert.JSONEq(t, `{"kind":"phase"}`, string(ok.Payload))

	ctx := context.Background()
	require.NoError(t, ps.Publish(ctx, telemetry.Channel, `{"entity_id":"b","kind":"damage"}`))
	require.NoError(t, ps.Publish(ctx, telemetry.Channel, `{"entity_id":"b","kind":"phase"}`))
	pkt := readPacket(t, conn)
	assert.JSONEq(t, `{"entity_id":"b","kind":"phase"}`, string(pkt.Payload))

	require.NoError(t, conn.WriteJSON(Packet{Type: "shout"}))
	bad := readPacket(t, conn)
	assert.Equal(t, TypeError, bad.Type)
}

func TestServeWSRejectsForeignOrigin(t *testing.T) {
	srv, _, _ := startServer(t, []string{"https://ops.example"})

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://ops.example")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), header)
	require.NoError(t, err)
	conn.Close()
}
