package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/tuht/evsc-assistant/internal/adapter/dispatch"
	"github.com/tuht/evsc-assistant/internal/adapter/genai"
	"github.com/tuht/evsc-assistant/internal/config"
	"github.com/tuht/evsc-assistant/internal/conversation"
	"github.com/tuht/evsc-assistant/internal/forecast"
	"github.com/tuht/evsc-assistant/internal/policy"
	"github.com/tuht/evsc-assistant/internal/service"
	"github.com/tuht/evsc-assistant/internal/store"
)

func newTestWSServer(t *testing.T) (*httptest.Server, *genai.MockClient) {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	policyEngine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	mock := genai.NewMockClient()
	cfg := &config.Config{
		GenAIModel:          "test-model",
		ForecastModel:       "test-model",
		AssignTimeout:       time.Second,
		RequiredTechnicians: 1,
	}
	svc := service.New(
		st,
		mock,
		dispatch.NewClient("http://127.0.0.1:1", time.Second),
		policyEngine,
		forecast.NewEngine(st, mock, cfg.ForecastModel),
		conversation.NewStore(),
		cfg,
	)

	hub := NewHub()
	go hub.Run()
	server := NewServer(svc, hub)

	e := echo.New()
	server.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, mock
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var frame map[string]interface{}
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return frame
}

func TestWebSocketStatusOnConnect(t *testing.T) {
	srv, _ := newTestWSServer(t)
	conn := dial(t, srv, "?conversation_id=c1")

	frame := readFrame(t, conn)
	if frame["type"] != TypeStatus || frame["status"] != "connected" {
		t.Fatalf("unexpected frame: %v", frame)
	}
	if frame["conversation_id"] != "c1" {
		t.Errorf("conversation_id = %v", frame["conversation_id"])
	}
}

func TestWebSocketChatRoundTrip(t *testing.T) {
	srv, mock := newTestWSServer(t)
	mock.Enqueue(genai.TextResponse("test-model", "Chào bạn, tôi có thể giúp gì?"))

	conn := dial(t, srv, "?conversation_id=c2")
	readFrame(t, conn) // connected status

	err := conn.WriteJSON(ChatMessageFrame{
		BaseFrame: BaseFrame{Type: TypeChatMessage, ConversationID: "c2"},
		Message:   "xin chào",
		UserID:    "u1",
	})
	if err != nil {
		t.Fatalf("write frame: %v", err)
	}

	frame := readFrame(t, conn)
	if frame["type"] != TypeChatResponse {
		t.Fatalf("unexpected frame: %v", frame)
	}
	payload, ok := frame["payload"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing payload: %v", frame)
	}
	if payload["success"] != true {
		t.Errorf("payload = %v", payload)
	}
	if payload["conversation_id"] != "c2" {
		t.Errorf("conversation_id = %v", payload["conversation_id"])
	}
}

func TestWebSocketAssignsConversationID(t *testing.T) {
	srv, mock := newTestWSServer(t)
	mock.Enqueue(genai.TextResponse("test-model", "Chào bạn."))

	conn := dial(t, srv, "")
	readFrame(t, conn) // connected status, unbound

	err := conn.WriteJSON(ChatMessageFrame{
		BaseFrame: BaseFrame{Type: TypeChatMessage},
		Message:   "xin chào",
	})
	if err != nil {
		t.Fatalf("write frame: %v", err)
	}

	bound := readFrame(t, conn)
	if bound["type"] != TypeStatus || bound["status"] != "conversation_bound" {
		t.Fatalf("expected binding status, got %v", bound)
	}
	if bound["conversation_id"] == "" || bound["conversation_id"] == nil {
		t.Fatal("expected assigned conversation id")
	}

	frame := readFrame(t, conn)
	if frame["type"] != TypeChatResponse {
		t.Fatalf("unexpected frame: %v", frame)
	}
}

func TestWebSocketRejectsUnknownType(t *testing.T) {
	srv, _ := newTestWSServer(t)
	conn := dial(t, srv, "?conversation_id=c3")
	readFrame(t, conn)

	if err := conn.WriteJSON(map[string]string{"type": "bogus"}); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	frame := readFrame(t, conn)
	if frame["type"] != TypeError || frame["code"] != ErrorCodeInvalidMessage {
		t.Fatalf("unexpected frame: %v", frame)
	}
}

func TestWebSocketRejectsEmptyMessage(t *testing.T) {
	srv, _ := newTestWSServer(t)
	conn := dial(t, srv, "?conversation_id=c4")
	readFrame(t, conn)

	if err := conn.WriteJSON(ChatMessageFrame{
		BaseFrame: BaseFrame{Type: TypeChatMessage, ConversationID: "c4"},
	}); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	frame := readFrame(t, conn)
	if frame["type"] != TypeError {
		t.Fatalf("unexpected frame: %v", frame)
	}
}

func TestWebSocketUsesHTTPHandler(t *testing.T) {
	srv, _ := newTestWSServer(t)
	resp, err := http.Get(srv.URL + "/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("plain GET should fail upgrade, got %d", resp.StatusCode)
	}
}
