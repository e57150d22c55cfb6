// ABOUTME: Tests for WebSocket client implementation
// ABOUTME: Tests handshake, rejection and message routing against a scripted server
package client

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mariotaku/Sunshine/internal/protocol"
)

// scriptedServer answers the hello with reply and then sends extra messages
func scriptedServer(t *testing.T, reply protocol.Message, extra ...interface{}) (*httptest.Server, chan protocol.ClientHello) {
	t.Helper()
	hellos := make(chan protocol.ClientHello, 1)
	upgrader := websocket.Upgrader{}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := protocol.ParseEnvelope(data)
		if err != nil {
			return
		}
		var hello protocol.ClientHello
		env.Decode(&hello)
		hellos <- hello

		conn.WriteJSON(reply)
		for _, m := range extra {
			switch v := m.(type) {
			case []byte:
				conn.WriteMessage(websocket.BinaryMessage, v)
			default:
				conn.WriteJSON(v)
			}
		}
		// hold the connection until the client leaves
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(ts.Close)
	return ts, hellos
}

func testConfig(ts *httptest.Server) Config {
	return Config{
		ServerAddr: strings.TrimPrefix(ts.URL, "http://"),
		ClientID:   "test-client",
		Name:       "Test Monitor",
		Codecs:     []string{"opus"},
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient(Config{ServerAddr: "localhost:8937", ClientID: "c"})
	if client.config.Path != "/audio" {
		t.Errorf("default path = %q, want /audio", client.config.Path)
	}
	if client.IsConnected() {
		t.Error("new client reports connected")
	}
}

func TestConnectRoutesMessages(t *testing.T) {
	hello := protocol.Message{Type: protocol.TypeServerHello, Payload: protocol.ServerHello{ServerID: "s1", Name: "host", Version: 1}}
	start := protocol.Message{Type: protocol.TypeStreamStart, Payload: protocol.StreamStart{Codec: "opus", SampleRate: 48000, Channels: 2, FrameSize: 240}}
	packet := protocol.AppendAudioPacket(nil, protocol.AudioPacket{Sequence: 9, TimestampUs: 45000, Payload: []byte{7, 7}})
	end := protocol.Message{Type: protocol.TypeStreamEnd, Payload: protocol.StreamEnd{Reason: "source_ended"}}

	ts, hellos := scriptedServer(t, hello, start, packet, end)
	client := NewClient(testConfig(ts))
	if err := client.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer client.Close()

	got := <-hellos
	if got.ClientID != "test-client" || got.Version != protocol.Version || len(got.Codecs) != 1 {
		t.Errorf("hello = %+v", got)
	}
	if client.Server().ServerID != "s1" {
		t.Errorf("Server() = %+v", client.Server())
	}

	timeout := time.After(2 * time.Second)
	select {
	case s := <-client.StreamStart:
		if s.FrameSize != 240 {
			t.Errorf("stream/start = %+v", s)
		}
	case <-timeout:
		t.Fatal("no stream/start")
	}
	select {
	case p := <-client.Packets:
		if p.Sequence != 9 || p.TimestampUs != 45000 || len(p.Payload) != 2 {
			t.Errorf("packet = %+v", p)
		}
	case <-timeout:
		t.Fatal("no packet")
	}
	select {
	case e := <-client.StreamEnd:
		if e.Reason != "source_ended" {
			t.Errorf("stream/end = %+v", e)
		}
	case <-timeout:
		t.Fatal("no stream/end")
	}

	if err := client.SendStats(protocol.ClientStats{Received: 1}); err != nil {
		t.Errorf("SendStats() error: %v", err)
	}
}

func TestConnectRejected(t *testing.T) {
	reject := protocol.Message{Type: protocol.TypeServerError, Payload: protocol.ServerError{Error: "unsupported_codec", Message: "stream codec is ac3"}}
	ts, _ := scriptedServer(t, reject)

	client := NewClient(testConfig(ts))
	err := client.Connect()
	if err == nil {
		t.Fatal("Connect() succeeded against a rejecting server")
	}
	if !strings.Contains(err.Error(), "unsupported_codec") {
		t.Errorf("error = %v", err)
	}
	if client.IsConnected() {
		t.Error("client still connected after rejection")
	}
}

func TestSendWhenDisconnected(t *testing.T) {
	client := NewClient(Config{ServerAddr: "localhost:1"})
	if err := client.SendTimeSync(1); err == nil {
		t.Error("SendTimeSync() succeeded without a connection")
	}
}
