// Package gateway is the external command surface: a stateless translation
// layer from HTTP requests onto registry operations, plus the websocket
// event channel.
package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"wagate/internal/auth"
	"wagate/internal/bridge"
	"wagate/internal/observability"
	"wagate/internal/registry"
)

const serviceVersion = "1.0.0"

// ServerConfig carries the HTTP surface settings.
type ServerConfig struct {
	MediaDir    string
	CORSOrigins []string

	// AuthToken, when set, guards the command routes with a shared bearer
	// token. The websocket pairing channel and probes stay open.
	AuthToken string
}

// Server owns the HTTP router and its route handlers. It holds no session
// state of its own; every command resolves through the registry.
type Server struct {
	registry *registry.Registry
	bridge   *bridge.Bridge
	cfg      ServerConfig
	router   *gin.Engine
	appeared time.Time
}

func NewServer(reg *registry.Registry, br *bridge.Bridge, cfg ServerConfig) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CORSOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		registry: reg,
		bridge:   br,
		cfg:      cfg,
		router:   r,
		appeared: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"service": "wagate",
			"version": serviceVersion,
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":   true,
			"uptime":  time.Since(s.appeared).String(),
			"service": "wagate",
			"version": serviceVersion,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/ws", s.bridge.Handler())

	commands := s.router.Group("/")
	if s.cfg.AuthToken != "" {
		commands.Use(requireAuth(auth.StaticToken{Token: s.cfg.AuthToken}))
	}
	commands.GET("/devices", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"devices": s.registry.Devices(),
		})
	})
	commands.POST("/send-message", s.handleSendMessage)
	commands.POST("/send-media", s.handleSendMedia)
	commands.POST("/disconnect", s.handleDisconnect)
	commands.GET("/status/:deviceId", s.handleStatus)
}

func requireAuth(v auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.TokenFromHeader(c.GetHeader("Authorization"))
		if err := v.Validate(token); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "unauthorized",
			})
			return
		}
		c.Next()
	}
}

type sendMessageRequest struct {
	DeviceID string `json:"deviceId"`
	Number   string `json:"number"`
	Message  string `json:"message"`
}

func (s *Server) handleSendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DeviceID == "" || req.Number == "" || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "deviceId, number and message are required",
		})
		return
	}

	result, err := s.registry.SendText(c.Request.Context(), req.DeviceID, req.Number, req.Message)
	if err != nil {
		s.respondCommandError(c, "failed to send message", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

func (s *Server) handleSendMedia(c *gin.Context) {
	deviceID := c.PostForm("deviceId")
	number := c.PostForm("number")
	caption := c.PostForm("caption")
	file, err := c.FormFile("file")
	if deviceID == "" || number == "" || err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "deviceId, number and file are required",
		})
		return
	}

	storedPath, err := s.storeUpload(c, file)
	if err != nil {
		log.Error().Str("device_id", deviceID).Err(err).Msg("gateway.handleSendMedia store upload failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "failed to store media",
			"error":   err.Error(),
		})
		return
	}

	mimeType := file.Header.Get("Content-Type")
	result, err := s.registry.SendMedia(c.Request.Context(), deviceID, number, storedPath, caption, mimeType)
	if err != nil {
		s.respondCommandError(c, "failed to send media", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

type disconnectRequest struct {
	DeviceID string `json:"deviceId"`
}

func (s *Server) handleDisconnect(c *gin.Context) {
	var req disconnectRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DeviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "deviceId is required",
		})
		return
	}

	if err := s.registry.Disconnect(c.Request.Context(), req.DeviceID); err != nil {
		s.respondCommandError(c, "failed to disconnect device", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "device disconnected"})
}

// handleStatus reports connected:false for unknown devices rather than an
// error, so pollers need no special casing before first initialize.
func (s *Server) handleStatus(c *gin.Context) {
	deviceID := c.Param("deviceId")
	status := s.registry.Status(deviceID)
	body := gin.H{
		"success":   true,
		"connected": status.Connected,
	}
	if status.PhoneNumber != "" {
		body["phoneNumber"] = status.PhoneNumber
	}
	c.JSON(http.StatusOK, body)
}

// respondCommandError maps registry/session error kinds onto external
// status codes: unknown device -> 404, everything else -> 500 with the
// underlying message.
func (s *Server) respondCommandError(c *gin.Context, message string, err error) {
	if errors.Is(err, registry.ErrDeviceNotFound) || errors.Is(err, registry.ErrInvalidDeviceID) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "device not found or not connected",
		})
		return
	}
	log.Warn().Err(err).Str("path", c.FullPath()).Msg("gateway command failed")
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"message": message,
		"error":   err.Error(),
	})
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
