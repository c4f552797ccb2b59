package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/adotb/adotb-go/internal/auth"
	"github.com/adotb/adotb-go/internal/session"
)

// dialChat connects to the test server's chat endpoint with the given query
// string.
func dialChat(t *testing.T, s *Server, query string) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/chat"
	if query != "" {
		url += "?" + query
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func sendMessage(t *testing.T, conn *websocket.Conn, typ, message string) {
	t.Helper()
	b, err := json.Marshal(map[string]string{"type": typ, "message": message})
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readResponse(t *testing.T, conn *websocket.Conn) session.BotResponse {
	t.Helper()
	var resp session.BotResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	return resp
}

func TestChat_TurnOverWebsocket(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)
	conn := dialChat(t, s, "")

	sendMessage(t, conn, "message", "Can you tell me about angels?")
	resp := readResponse(t, conn)

	if resp.Type != session.TypeAnswer || resp.Sender != session.SenderBot {
		t.Fatalf("response = %+v, want a Bot answer", resp)
	}
	if resp.Message != "a grounded answer" {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.Sources == nil || resp.Media == nil {
		t.Error("sources and media must be present, empty rather than null")
	}
}

func TestChat_ResetEmitsCannedNotice(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)
	conn := dialChat(t, s, "")

	sendMessage(t, conn, "reset", "")
	resp := readResponse(t, conn)

	if !strings.Contains(resp.Message, "start a new conversation") {
		t.Errorf("reset notice = %q", resp.Message)
	}
}

func TestChat_WithoutTokenGetsSignInNotice(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, func(cfg *Config) {
		cfg.Auth = &fakeAuthenticator{userID: "u1"}
	})
	conn := dialChat(t, s, "")

	resp := readResponse(t, conn)
	if resp.Type != session.TypeError || resp.Message != auth.SignInNotice {
		t.Fatalf("response = %+v, want the sign-in notice", resp)
	}
	// The server closes the connection after the notice.
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("connection stayed open after the sign-in notice")
	}
}

func TestChat_LabelsNarrowedToEntitlements(t *testing.T) {
	t.Parallel()
	// Seed one open and one restricted document sharing distinctive text.
	pipe := func() *Server {
		s := newTestServer(t, func(cfg *Config) {
			cfg.Auth = &fakeAuthenticator{userID: "u1", accessible: []string{"open-access"}}
		})
		return s
	}()
	ctx := context.Background()
	err := pipe.pipe.Ingest(ctx, append(
		singleDoc("open-1", "angels are messengers", "open-access"),
		singleDoc("secret-1", "angels are messengers", "restricted")...))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	conn := dialChat(t, pipe, "token=valid-token&labels=open-access,restricted")
	sendMessage(t, conn, "message", "tell me about angels")
	resp := readResponse(t, conn)

	if resp.Type != session.TypeAnswer {
		t.Fatalf("response = %+v", resp)
	}
	for _, src := range resp.Sources {
		if src == "secret-1" {
			t.Error("restricted document cited despite missing entitlement")
		}
	}
	if len(resp.Sources) == 0 || resp.Sources[0] != "open-1" {
		t.Errorf("sources = %v, want the entitled document", resp.Sources)
	}
}

func TestChat_UpgradeRequired(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/chat")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Errorf("plain GET /chat = %d, want an upgrade failure", resp.StatusCode)
	}
}

// Compile-time check that the gorilla connection satisfies the session's
// connection surface.
var _ session.Conn = (*websocket.Conn)(nil)
