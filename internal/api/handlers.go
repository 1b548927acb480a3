// Package api provides the REST surface exposed in front of a connected
// business network.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ECOMANAGEMENT-TECHNOLOGY-SL/composer/internal/network"
)

// StatusResponse is the response from the /status endpoint.
type StatusResponse struct {
	Status     string `json:"status"`
	Service    string `json:"service"`
	Network    string `json:"network"`
	Secured    bool   `json:"secured"`
	WebSockets bool   `json:"websockets"`
}

// Handlers serves the system API for one business-network connection.
type Handlers struct {
	conn        network.Connection
	participant string
	secured     bool
	websockets  bool
	logger      *zap.Logger
}

// NewHandlers creates the API handlers.
func NewHandlers(conn network.Connection, participant string, secured, websockets bool, logger *zap.Logger) *Handlers {
	return &Handlers{
		conn:        conn,
		participant: participant,
		secured:     secured,
		websockets:  websockets,
		logger:      logger.Named("api"),
	}
}

// RegisterRoutes adds the system API routes to the router.
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	router.GET("/status", h.Status)

	system := router.Group("/api/system")
	system.GET("/ping", h.Ping)
	system.GET("/networks", h.Network)
	system.POST("/transactions", h.SubmitTransaction)
}

// Status reports the server composition.
func (h *Handlers) Status(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Status:     "ok",
		Service:    "composer-rest-server",
		Network:    h.conn.Network().Identifier,
		Secured:    h.secured,
		WebSockets: h.websockets,
	})
}

// Ping verifies the business-network connection is healthy.
func (h *Handlers) Ping(c *gin.Context) {
	if err := h.conn.Ping(c.Request.Context()); err != nil {
		h.logger.Error("Network ping failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "business network unreachable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"version":     h.conn.Network().Version,
		"participant": h.participant,
	})
}

// Network returns the resolved business network definition.
func (h *Handlers) Network(c *gin.Context) {
	c.JSON(http.StatusOK, h.conn.Network())
}

type submitRequest struct {
	Type string                 `json:"$class" binding:"required"`
	Data map[string]interface{} `json:"data"`
}

// SubmitTransaction submits a transaction to the business network.
func (h *Handlers) SubmitTransaction(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "transaction $class is required"})
		return
	}

	id, err := h.conn.Submit(c.Request.Context(), network.Transaction{
		Type: req.Type,
		Data: req.Data,
	})
	if err != nil {
		h.logger.Error("Transaction submit failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "transaction rejected"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactionId": id})
}
