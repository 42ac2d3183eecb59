// Package bridge republishes session lifecycle events to external listeners.
//
// Ownership boundary:
// - one outward event channel per client connection, scoped by device id
// - pairing payload -> rendered image translation
//
// Listener lifetime is deliberately decoupled from session lifetime: closing
// a client connection detaches its subscription and nothing else, so a new
// client can reattach to a running session without re-pairing.
package bridge

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"wagate/internal/registry"
	"wagate/internal/session"
)

const (
	writeTimeout  = 10 * time.Second
	pongTimeout   = 60 * time.Second
	pingInterval  = 30 * time.Second
	outboundDepth = 32
)

// Bridge upgrades client connections and binds them to sessions.
type Bridge struct {
	registry *registry.Registry
	upgrader websocket.Upgrader
}

func New(reg *registry.Registry) *Bridge {
	return &Bridge{
		registry: reg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The gateway fronts browser clients on arbitrary origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler serves the websocket endpoint. The device id is supplied at
// connection time via query parameter.
func (b *Bridge) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		deviceID := c.Query("deviceId")

		conn, err := b.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Msg("bridge.Handler upgrade failed")
			return
		}

		cl := newClient(b.registry, conn, deviceID)
		cl.run()
	}
}

// outboundFrame is one event envelope written to a client connection.
type outboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// translate maps one session event onto the external frame shape, rendering
// the pairing payload into an image before emission.
func translate(event session.Event) outboundFrame {
	switch event.Kind {
	case session.EventQR:
		dataURL, err := RenderDataURL(event.QR)
		if err != nil {
			log.Error().Str("device_id", event.DeviceID).Err(err).Msg("bridge.translate qr render failed")
			return outboundFrame{Event: "error", Data: gin.H{"message": "failed to render pairing code"}}
		}
		return outboundFrame{Event: "qr", Data: dataURL}
	case session.EventLoading:
		// Historical external name for the loading phase.
		return outboundFrame{Event: "scanning"}
	case session.EventReady:
		return outboundFrame{Event: "ready", Data: gin.H{"phoneNumber": event.PhoneNumber}}
	case session.EventDisconnected:
		return outboundFrame{Event: "disconnected"}
	case session.EventMessage:
		return outboundFrame{Event: "message", Data: event.Message}
	default:
		return outboundFrame{Event: "error", Data: gin.H{"message": event.Error}}
	}
}
