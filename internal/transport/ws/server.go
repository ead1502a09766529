package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/tuht/evsc-assistant/internal/domain"
	"github.com/tuht/evsc-assistant/internal/service"
)

const (
	readTimeout    = 60 * time.Second
	writeTimeout   = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 64 * 1024

	// Chat turns can include a forecast run, so the per-turn budget is
	// generous.
	chatTimeout = 120 * time.Second
)

// Server handles WebSocket connections.
type Server struct {
	service  *service.Service
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(svc *service.Service, h *Hub) *Server {
	return &Server{
		service: svc,
		hub:     h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes registers the WebSocket endpoint with the echo server.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", s.HandleWebSocket)
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return err
	}

	conn := s.hub.NewConnection(ws)

	// A conversation id in the query string binds the connection up
	// front; otherwise one is assigned on the first chat_message.
	if conversationID := c.QueryParam("conversation_id"); conversationID != "" {
		conn.ConversationID = conversationID
	}
	s.hub.Register(conn)

	ws.SetReadLimit(maxMessageSize)

	s.hub.SendJSONToConnection(conn, StatusFrame{
		BaseFrame: BaseFrame{
			Type:           TypeStatus,
			Ts:             time.Now().UnixMilli(),
			ConversationID: conn.ConversationID,
		},
		Status: "connected",
	})

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump reads messages from the WebSocket connection.
func (s *Server) readPump(conn *Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		s.handleMessage(conn, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (s *Server) writePump(conn *Connection) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming frames.
func (s *Server) handleMessage(conn *Connection, data []byte) {
	var base BaseFrame
	if err := json.Unmarshal(data, &base); err != nil {
		s.sendError(conn, ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch base.Type {
	case TypeChatMessage:
		s.handleChatMessage(conn, data)
	default:
		s.sendError(conn, ErrorCodeInvalidMessage, "unknown message type: "+base.Type)
	}
}

// handleChatMessage runs one chat turn. The turn runs in its own
// goroutine so a slow forecast does not stall the read pump.
func (s *Server) handleChatMessage(conn *Connection, data []byte) {
	var msg ChatMessageFrame
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, ErrorCodeInvalidMessage, "invalid chat_message frame")
		return
	}
	if msg.Message == "" {
		s.sendError(conn, ErrorCodeInvalidMessage, "message is required")
		return
	}

	conversationID := msg.ConversationID
	if conversationID == "" {
		conversationID = conn.ConversationID
	}
	if conversationID == "" {
		conversationID = "conv_" + uuid.New().String()[:8]
	}
	if conn.ConversationID != conversationID {
		s.hub.BindConversation(conn, conversationID)
		s.hub.SendJSONToConnection(conn, StatusFrame{
			BaseFrame: BaseFrame{
				Type:           TypeStatus,
				Ts:             time.Now().UnixMilli(),
				ConversationID: conversationID,
			},
			Status: "conversation_bound",
		})
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), chatTimeout)
		defer cancel()

		resp := s.service.Chat(ctx, &domain.ChatRequest{
			Message:        msg.Message,
			ConversationID: conversationID,
			UserID:         msg.UserID,
			Context:        msg.Context,
		})

		s.hub.BroadcastJSON(conversationID, ChatResponseFrame{
			BaseFrame: BaseFrame{
				Type:           TypeChatResponse,
				Ts:             time.Now().UnixMilli(),
				ConversationID: conversationID,
			},
			Payload: resp,
		})
	}()
}

// sendError sends an error frame to a connection.
func (s *Server) sendError(conn *Connection, code, message string) {
	s.hub.SendJSONToConnection(conn, ErrorFrame{
		BaseFrame: BaseFrame{
			Type:           TypeError,
			Ts:             time.Now().UnixMilli(),
			ConversationID: conn.ConversationID,
		},
		Code:    code,
		Message: message,
	})
}
