package bridge

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"wagate/internal/credstore"
	"wagate/internal/engine"
	"wagate/internal/engine/loopback"
	"wagate/internal/registry"
	"wagate/internal/session"
	"wagate/internal/testutil/testlog"
)

const testWait = 3 * time.Second

func TestRenderDataURL(t *testing.T) {
	testlog.Start(t)
	dataURL, err := RenderDataURL("pair-challenge-1")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasPrefix(dataURL, "data:image/png;base64,") {
		t.Fatalf("unexpected data url prefix: %.40q", dataURL)
	}
	if len(dataURL) < 100 {
		t.Fatalf("suspiciously small image payload: %d bytes", len(dataURL))
	}
}

func TestTranslate(t *testing.T) {
	testlog.Start(t)

	frame := translate(session.Event{Kind: session.EventQR, QR: "pair-challenge-1"})
	if frame.Event != "qr" {
		t.Fatalf("unexpected qr frame: %+v", frame)
	}
	if data, ok := frame.Data.(string); !ok || !strings.HasPrefix(data, "data:image/png;base64,") {
		t.Fatalf("qr frame must carry a rendered data url: %+v", frame.Data)
	}

	if frame := translate(session.Event{Kind: session.EventLoading}); frame.Event != "scanning" {
		t.Fatalf("loading must surface as scanning, got %q", frame.Event)
	}

	frame = translate(session.Event{Kind: session.EventReady, PhoneNumber: "15551234567"})
	if frame.Event != "ready" {
		t.Fatalf("unexpected ready frame: %+v", frame)
	}
	if data, ok := frame.Data.(gin.H); !ok || data["phoneNumber"] != "15551234567" {
		t.Fatalf("ready frame must carry phone number: %+v", frame.Data)
	}

	if frame := translate(session.Event{Kind: session.EventDisconnected}); frame.Event != "disconnected" {
		t.Fatalf("unexpected disconnected frame: %+v", frame)
	}

	msg := &engine.InboundMessage{From: "15550001111@s.whatsapp.net", Text: "hi"}
	frame = translate(session.Event{Kind: session.EventMessage, Message: msg})
	if frame.Event != "message" || frame.Data != any(msg) {
		t.Fatalf("unexpected message frame: %+v", frame)
	}

	if frame := translate(session.Event{Kind: session.EventError, Error: "boom"}); frame.Event != "error" {
		t.Fatalf("unexpected error frame: %+v", frame)
	}
}

type rawFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func newBridgeServer(t *testing.T) (*registry.Registry, *httptest.Server) {
	t.Helper()
	store, err := credstore.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	reg, err := registry.New(registry.Config{
		Dialer:      &loopback.Dialer{PairDelay: 10 * time.Millisecond},
		Credentials: store,
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	r := gin.New()
	r.GET("/ws", New(reg).Handler())
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), testWait)
		defer cancel()
		reg.Shutdown(ctx)
	})
	return reg, srv
}

func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrameOfKind(t *testing.T, conn *websocket.Conn, event string) rawFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(testWait))
	for {
		var frame rawFrame
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read frame while waiting for %q: %v", event, err)
		}
		if frame.Event == event {
			return frame
		}
	}
}

func TestBridgePairingFlowOverWebsocket(t *testing.T) {
	testlog.Start(t)
	reg, srv := newBridgeServer(t)
	conn := dialWS(t, srv, "?deviceId=device-ws")

	if err := conn.WriteJSON(map[string]string{"action": "initialize"}); err != nil {
		t.Fatalf("write initialize: %v", err)
	}

	qr := readFrameOfKind(t, conn, "qr")
	if data, ok := qr.Data.(string); !ok || !strings.HasPrefix(data, "data:image/png;base64,") {
		t.Fatalf("qr frame must carry a data url: %+v", qr.Data)
	}
	readFrameOfKind(t, conn, "scanning")
	ready := readFrameOfKind(t, conn, "ready")
	data, ok := ready.Data.(map[string]any)
	if !ok || data["phoneNumber"] == nil || data["phoneNumber"] == "" {
		t.Fatalf("ready frame must carry phone number: %+v", ready.Data)
	}

	if !reg.Status("device-ws").Connected {
		t.Fatalf("session not connected after pairing")
	}
}

func TestBridgeRequiresDeviceID(t *testing.T) {
	testlog.Start(t)
	_, srv := newBridgeServer(t)
	conn := dialWS(t, srv, "")

	frame := readFrameOfKind(t, conn, "error")
	if frame.Event != "error" {
		t.Fatalf("expected error frame, got %+v", frame)
	}
}

func TestBridgeUnknownActionRejected(t *testing.T) {
	testlog.Start(t)
	_, srv := newBridgeServer(t)
	conn := dialWS(t, srv, "?deviceId=device-x")

	if err := conn.WriteJSON(map[string]string{"action": "explode"}); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	readFrameOfKind(t, conn, "error")
}

func TestBridgeListenerDetachLeavesSessionRunning(t *testing.T) {
	testlog.Start(t)
	reg, srv := newBridgeServer(t)
	conn := dialWS(t, srv, "?deviceId=device-detach")

	if err := conn.WriteJSON(map[string]string{"action": "initialize"}); err != nil {
		t.Fatalf("write initialize: %v", err)
	}
	readFrameOfKind(t, conn, "ready")

	conn.Close()

	// The session survives its listener.
	deadline := time.Now().Add(testWait)
	for time.Now().Before(deadline) {
		if reg.Status("device-detach").Connected {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !reg.Status("device-detach").Connected {
		t.Fatalf("session died with its listener")
	}

	// A fresh listener can reattach without re-pairing.
	conn2 := dialWS(t, srv, "?deviceId=device-detach")
	if err := conn2.WriteJSON(map[string]string{"action": "initialize"}); err != nil {
		t.Fatalf("write initialize: %v", err)
	}
	readFrameOfKind(t, conn2, "ready")
}
