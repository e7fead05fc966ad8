// Package api exposes a local HTTP control surface over a running mesh
// node: status, the peer table and message submission.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bitmesh/bitmesh-node/pkg/mesh"
)

// Config holds server configuration.
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Server is the HTTP control server.
type Server struct {
	node       *mesh.Node
	router     *gin.Engine
	port       int
	httpServer *http.Server
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// StatusResponse reports the node's lifecycle state.
type StatusResponse struct {
	Status   string `json:"status"`
	PeerID   string `json:"peerId"`
	Nickname string `json:"nickname"`
	Peers    int    `json:"peers"`
}

// PeerInfo is one row of the peer table.
type PeerInfo struct {
	ID          string    `json:"id"`
	Nickname    string    `json:"nickname"`
	RSSI        int       `json:"rssi"`
	LastSeen    time.Time `json:"lastSeen"`
	Online      bool      `json:"online"`
	Favorite    bool      `json:"favorite"`
	HandshakeOK bool      `json:"handshakeOk"`
	Channels    []string  `json:"channels,omitempty"`
}

// SendRequest submits a message through the node.
type SendRequest struct {
	Kind    string `json:"kind" binding:"required"` // broadcast | private | channel
	To      string `json:"to,omitempty"`
	Channel string `json:"channel,omitempty"`
	Content string `json:"content" binding:"required"`
}

// SendResponse acknowledges a submission.
type SendResponse struct {
	Success bool `json:"success"`
}

// NewServer creates the control server for a node.
func NewServer(node *mesh.Node, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		node:   node,
		router: router,
		port:   config.Port,
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/status", s.handleStatus)
		v1.GET("/peers", s.handlePeers)
		v1.POST("/send", s.handleSend)
		v1.POST("/channels/:name/join", s.handleJoinChannel)
		v1.POST("/channels/:name/leave", s.handleLeaveChannel)
	}
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Status:   s.node.Status().String(),
		PeerID:   s.node.PeerID(),
		Nickname: s.node.Nickname(),
		Peers:    len(s.node.Peers()),
	})
}

func (s *Server) handlePeers(c *gin.Context) {
	peers := s.node.Peers()
	out := make([]PeerInfo, 0, len(peers))
	for _, p := range peers {
		out = append(out, PeerInfo{
			ID:          p.ID,
			Nickname:    p.Nickname,
			RSSI:        p.RSSI,
			LastSeen:    p.LastSeen,
			Online:      p.Online,
			Favorite:    p.Favorite,
			HandshakeOK: p.HandshakeOK,
			Channels:    p.Channels,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleSend(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid request",
			Message: err.Error(),
		})
		return
	}

	var err error
	switch req.Kind {
	case "broadcast":
		err = s.node.SendBroadcast(req.Content)
	case "private":
		err = s.node.SendPrivate(req.To, req.Content)
	case "channel":
		err = s.node.SendChannel(req.Channel, req.Content)
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid kind",
			Message: "kind must be broadcast, private or channel",
		})
		return
	}

	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "send failed",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, SendResponse{Success: true})
}

func (s *Server) handleJoinChannel(c *gin.Context) {
	if err := s.node.JoinChannel(c.Param("name")); err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "join failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SendResponse{Success: true})
}

func (s *Server) handleLeaveChannel(c *gin.Context) {
	if err := s.node.LeaveChannel(c.Param("name")); err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "leave failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SendResponse{Success: true})
}
