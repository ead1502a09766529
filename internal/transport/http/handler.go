package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tuht/evsc-assistant/internal/domain"
	"github.com/tuht/evsc-assistant/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/ai/chat", h.Chat)
	e.GET("/api/ai/conversations/:conversation_id", h.GetConversation)
	e.GET("/health", h.Health)
}

// Chat handles one chat turn.
// POST /api/ai/chat
func (h *Handler) Chat(c echo.Context) error {
	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Message == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "message is required"})
	}

	resp := h.service.Chat(c.Request().Context(), &req)
	return c.JSON(http.StatusOK, resp)
}

// GetConversation returns the recorded history of one conversation.
// GET /api/ai/conversations/:conversation_id
func (h *Handler) GetConversation(c echo.Context) error {
	conversationID := c.Param("conversation_id")
	messages := h.service.History(conversationID)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversation_id": conversationID,
		"messages":        messages,
		"count":           len(messages),
	})
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
