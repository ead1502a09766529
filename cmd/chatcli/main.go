// Package main provides a simple CLI client for talking to the assistant
// over its WebSocket endpoint.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Frame types
const (
	TypeStatus       = "status"
	TypeChatMessage  = "chat_message"
	TypeChatResponse = "chat_response"
	TypeError        = "error"
)

// BaseFrame contains common fields for all frames.
type BaseFrame struct {
	Type           string `json:"type"`
	Ts             int64  `json:"ts"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatMessageFrame is sent to start one chat turn.
type ChatMessageFrame struct {
	BaseFrame
	Message string `json:"message"`
	UserID  string `json:"user_id,omitempty"`
}

// ChatResponseFrame carries the assistant's reply.
type ChatResponseFrame struct {
	BaseFrame
	Payload struct {
		Response          string   `json:"response"`
		Success           bool     `json:"success"`
		Error             string   `json:"error,omitempty"`
		FunctionCalls     []string `json:"function_calls"`
		FunctionCallCount int      `json:"function_call_count"`
	} `json:"payload"`
}

// ErrorFrame represents an error from the server.
type ErrorFrame struct {
	BaseFrame
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client represents a WebSocket client.
type Client struct {
	conn           *websocket.Conn
	conversationID string
	done           chan struct{}
}

// NewClient connects to the server and waits for the status frame.
func NewClient(addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read status: %w", err)
	}
	var base BaseFrame
	if err := json.Unmarshal(data, &base); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unmarshal status: %w", err)
	}
	if base.Type != TypeStatus {
		conn.Close()
		return nil, fmt.Errorf("expected status frame, got: %s", base.Type)
	}

	return &Client{
		conn:           conn,
		conversationID: base.ConversationID,
		done:           make(chan struct{}),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	close(c.done)
	return c.conn.Close()
}

// SendChat sends one chat turn.
func (c *Client) SendChat(userID, content string) error {
	msg := ChatMessageFrame{
		BaseFrame: BaseFrame{
			Type:           TypeChatMessage,
			Ts:             time.Now().UnixMilli(),
			ConversationID: c.conversationID,
		},
		Message: content,
		UserID:  userID,
	}
	return c.conn.WriteJSON(msg)
}

// ReadFrames reads and prints frames from the server.
func (c *Client) ReadFrames() {
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("Read error: %v", err)
				}
				return
			}

			var base BaseFrame
			if err := json.Unmarshal(data, &base); err != nil {
				log.Printf("Unmarshal error: %v", err)
				continue
			}

			switch base.Type {
			case TypeChatResponse:
				var frame ChatResponseFrame
				if err := json.Unmarshal(data, &frame); err != nil {
					log.Printf("Unmarshal error: %v", err)
					continue
				}
				if frame.Payload.Success {
					fmt.Printf("\nAssistant: %s\n", frame.Payload.Response)
				} else {
					fmt.Printf("\nAssistant (lỗi): %s\n", frame.Payload.Response)
				}
				if frame.Payload.FunctionCallCount > 0 {
					fmt.Printf("  [tools: %s]\n", strings.Join(frame.Payload.FunctionCalls, ", "))
				}
			case TypeStatus:
				if base.ConversationID != "" {
					c.conversationID = base.ConversationID
				}
			case TypeError:
				var frame ErrorFrame
				json.Unmarshal(data, &frame)
				fmt.Printf("\nServer error: %s - %s\n", frame.Code, frame.Message)
			default:
				fmt.Printf("\n[%s] %s\n", base.Type, string(data))
			}
		}
	}
}

func main() {
	addr := flag.String("addr", "ws://localhost:8469/ws", "WebSocket server address")
	conversationID := flag.String("conversation", "", "Conversation ID to resume")
	userID := flag.String("user", "", "User ID to attach to messages")
	flag.Parse()

	log.SetFlags(log.Ltime)

	url := *addr
	if *conversationID != "" {
		url += "?conversation_id=" + *conversationID
	}

	fmt.Printf("Connecting to %s...\n", url)

	client, err := NewClient(url)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	if client.conversationID != "" {
		fmt.Printf("Conversation: %s\n", client.conversationID)
	}
	fmt.Println("\nType a message and press Enter to send.")
	fmt.Println("Commands: /quit to exit")
	fmt.Println()

	// Start reading frames in background
	go client.ReadFrames()

	// Handle Ctrl+C
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	// Read user input
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		select {
		case <-interrupt:
			fmt.Println("\nInterrupted")
			return
		default:
			if !scanner.Scan() {
				return
			}

			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}

			if input == "/quit" {
				fmt.Println("Bye!")
				return
			}

			if err := client.SendChat(*userID, input); err != nil {
				log.Printf("Send error: %v", err)
				continue
			}
		}
	}
}
