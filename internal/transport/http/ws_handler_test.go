package http

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"recruitment-portal/internal/app"
	"recruitment-portal/internal/countdown"
	"recruitment-portal/internal/domain"

	"github.com/gorilla/websocket"
)

type rawMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (e *testEnv) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + e.server.URL[len("http"):] + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readNext(t *testing.T, conn *websocket.Conn) rawMessage {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	var msg rawMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

// readUntil skips messages until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(rawMessage) bool) rawMessage {
	t.Helper()
	for i := 0; i < 50; i++ {
		msg := readNext(t, conn)
		if match(msg) {
			return msg
		}
	}
	t.Fatalf("expected message not received")
	return rawMessage{}
}

func TestAttemptStream(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_ = env.store.SaveUser(ctx, domain.UserProfile{UID: "u1", Email: "u1@vitstudent.ac.in", SelectedDomains: []domain.Domain{domain.Technical}})
	_ = env.store.SaveQuestionnaire(ctx, domain.Questionnaire{Domain: domain.Technical, Questions: []domain.Question{
		{Text: "Why Go?", Type: domain.QuestionText},
	}})
	token := env.token(t, "u1", "u1@vitstudent.ac.in")

	conn := env.dial(t, "/ws/attempt?domain=Technical&token="+token)

	first := readNext(t, conn)
	if first.Type != "attempt" {
		t.Fatalf("expected attempt view first, got %s", first.Type)
	}
	var view app.AttemptView
	if err := json.Unmarshal(first.Payload, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if len(view.Questions) != 1 || view.Status.RemainingSeconds <= 0 {
		t.Fatalf("unexpected view %+v", view)
	}

	if err := conn.WriteJSON(map[string]any{"type": "submit"}); err != nil {
		t.Fatalf("write submit: %v", err)
	}
	readUntil(t, conn, func(m rawMessage) bool { return m.Type == "error" })

	if err := conn.WriteJSON(map[string]any{"type": "answer", "payload": map[string]any{"index": 0, "answer": "Channels"}}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	readUntil(t, conn, func(m rawMessage) bool {
		if m.Type != "status" {
			return false
		}
		var s app.AttemptStatus
		_ = json.Unmarshal(m.Payload, &s)
		return s.Answers["q1"] == "Channels"
	})

	if err := conn.WriteJSON(map[string]any{"type": "submit"}); err != nil {
		t.Fatalf("write submit: %v", err)
	}
	msg := readUntil(t, conn, func(m rawMessage) bool { return m.Type == "submitted" })
	var resp domain.QuizResponse
	if err := json.Unmarshal(msg.Payload, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.UserID != "u1" || resp.Responses["q1"] != "Channels" || resp.TimeExpired {
		t.Fatalf("unexpected response %+v", resp)
	}

	user, _ := env.store.GetUser(ctx, "u1")
	if !user.HasAttempted(domain.Technical) {
		t.Fatalf("expected attempted flag set")
	}
}

func TestAttemptStreamRejectsIneligibleUser(t *testing.T) {
	env := newTestEnv(t)
	_ = env.store.SaveUser(context.Background(), domain.UserProfile{UID: "u2", Email: "u2@vitstudent.ac.in", SelectedDomains: []domain.Domain{domain.Technical}})
	token := env.token(t, "u2", "u2@vitstudent.ac.in")

	conn := env.dial(t, "/ws/attempt?domain=Design&token="+token)
	msg := readNext(t, conn)
	if msg.Type != "error" {
		t.Fatalf("expected error, got %s", msg.Type)
	}
	var payload errorPayload
	_ = json.Unmarshal(msg.Payload, &payload)
	if payload.Redirect != domain.RedirectDashboard || payload.Kind != "access_denied" {
		t.Fatalf("unexpected error payload %+v", payload)
	}
}

func TestCountdownStreamEndsAtExpiry(t *testing.T) {
	env := newTestEnv(t)
	end := time.Now().Add(300 * time.Millisecond)
	_ = env.store.SaveTimer(context.Background(), app.ScopePrivate, domain.TimerConfig{Kind: domain.TimerRegistration, EndTime: end})

	conn := env.dial(t, "/ws/countdown?kind=registration")

	first := readNext(t, conn)
	var snap countdown.Snapshot
	if err := json.Unmarshal(first.Payload, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if first.Type != "countdown" || snap.Source != app.SourcePrivate || snap.State != countdown.StateActive {
		t.Fatalf("unexpected first snapshot %s %+v", first.Type, snap)
	}

	readUntil(t, conn, func(m rawMessage) bool {
		var s countdown.Snapshot
		_ = json.Unmarshal(m.Payload, &s)
		return s.State == countdown.StateExpired
	})

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close after expiry, got %v", err)
	}
}

func TestCountdownStreamRejectsUnknownKind(t *testing.T) {
	env := newTestEnv(t)
	url := "ws" + env.server.URL[len("http"):] + "/ws/countdown?kind=exam"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != 400 {
		t.Fatalf("expected 400 response, got %+v", resp)
	}
}
