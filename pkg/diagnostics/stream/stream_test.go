package stream

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/architect-io/bpcompile/pkg/diagnostics"
)

func TestWireDiagnosticMarshalsLabelsAndHelp(t *testing.T) {
	d := diagnostics.New(diagnostics.Error, "ConstructibleError", "no constructor for Config").
		Label(diagnostics.Span{File: "main.go", ByteStart: 10, ByteEnd: 16}, "required here").
		WithHelp("register a constructor for Config").
		Build()

	data, err := marshalForTest(d)
	require.NoError(t, err)

	s := string(data)
	assert.True(t, strings.Contains(s, `"severity":"error"`))
	assert.True(t, strings.Contains(s, `"code":"ConstructibleError"`))
	assert.True(t, strings.Contains(s, `"message":"required here"`))
	assert.True(t, strings.Contains(s, `"help":"register a constructor for Config"`))
	assert.NotEmpty(t, d.ID)
	assert.True(t, strings.Contains(s, `"id":"`+d.ID+`"`))
}

func TestHubBroadcastsToConnectedClient(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the server a moment to register the client before broadcasting.
	time.Sleep(20 * time.Millisecond)

	d := diagnostics.New(diagnostics.Error, "CycleError", "dependency cycle detected").Build()
	hub.Broadcast(d)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var got map[string]interface{}
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "CycleError", got["code"])
	assert.Equal(t, "dependency cycle detected", got["message"])
}

func TestSinkPushMirrorsToHub(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	time.Sleep(20 * time.Millisecond)

	underlying := diagnostics.NewSink()
	sink := NewSink(underlying, hub)

	d := diagnostics.New(diagnostics.Warning, "UnusedBinding", "binding never consumed").Build()
	sink.Push(d)

	assert.Len(t, underlying.All(), 1)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var got map[string]interface{}
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "UnusedBinding", got["code"])
}
