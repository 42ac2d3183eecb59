package bridge

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"wagate/internal/registry"
	"wagate/internal/session"
)

// inboundFrame is one client request on the event channel.
type inboundFrame struct {
	Action   string `json:"action"`
	DeviceID string `json:"deviceId,omitempty"`
}

// client is one connected listener. It owns exactly one session
// subscription at a time; re-initializing swaps the subscription without
// touching the predecessor session's listeners elsewhere.
type client struct {
	registry *registry.Registry
	conn     *websocket.Conn
	deviceID string

	outbound chan outboundFrame
	stopped  chan struct{}
	stopOnce sync.Once

	subMu sync.Mutex
	sub   *session.Subscription
}

func newClient(reg *registry.Registry, conn *websocket.Conn, deviceID string) *client {
	return &client{
		registry: reg,
		conn:     conn,
		deviceID: strings.TrimSpace(deviceID),
		outbound: make(chan outboundFrame, outboundDepth),
		stopped:  make(chan struct{}),
	}
}

// run blocks until the connection closes. Closing the connection detaches
// this client's subscription only; the session keeps running.
func (c *client) run() {
	defer c.conn.Close()
	defer c.detach()

	if c.deviceID == "" {
		_ = c.writeFrame(outboundFrame{Event: "error", Data: map[string]string{"message": "device id is required"}})
		return
	}

	log.Info().Str("device_id", c.deviceID).Str("remote", c.conn.RemoteAddr().String()).Msg("bridge.client connected")
	defer log.Info().Str("device_id", c.deviceID).Msg("bridge.client disconnected")

	go c.writeLoop()
	c.readLoop()
}

func (c *client) readLoop() {
	defer c.stop()
	c.conn.SetReadLimit(1 << 20)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame inboundFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			c.enqueue(outboundFrame{Event: "error", Data: map[string]string{"message": "invalid frame"}})
			continue
		}
		c.handle(frame)
	}
}

func (c *client) handle(frame inboundFrame) {
	switch frame.Action {
	case "initialize":
		// Frame-level device id wins when present, for older clients that
		// did not pass it at connection time.
		if id := strings.TrimSpace(frame.DeviceID); id != "" {
			c.deviceID = id
		}
		sess, err := c.registry.Initialize(context.Background(), c.deviceID)
		if err != nil {
			c.enqueue(outboundFrame{Event: "error", Data: map[string]string{"message": err.Error()}})
			return
		}
		c.attach(sess)
	default:
		c.enqueue(outboundFrame{Event: "error", Data: map[string]string{"message": "unknown action: " + frame.Action}})
	}
}

// attach swaps this client's subscription to the given session.
func (c *client) attach(sess *session.Session) {
	sub := sess.Subscribe()

	c.subMu.Lock()
	old := c.sub
	c.sub = sub
	c.subMu.Unlock()
	if old != nil {
		old.Cancel()
	}

	go c.pumpEvents(sub)
}

func (c *client) pumpEvents(sub *session.Subscription) {
	for event := range sub.Events {
		c.enqueue(translate(event))
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopped:
			return
		case frame := <-c.outbound:
			if err := c.writeFrame(frame); err != nil {
				c.stop()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.stop()
				return
			}
		}
	}
}

func (c *client) writeFrame(frame outboundFrame) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(frame)
}

func (c *client) enqueue(frame outboundFrame) {
	select {
	case c.outbound <- frame:
	case <-c.stopped:
	default:
		log.Warn().Str("device_id", c.deviceID).Str("event", frame.Event).Msg("bridge.client outbound queue full, frame dropped")
	}
}

func (c *client) stop() {
	c.stopOnce.Do(func() { close(c.stopped) })
}

func (c *client) detach() {
	c.stop()
	c.subMu.Lock()
	sub := c.sub
	c.sub = nil
	c.subMu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
}
