package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestProgressStreamFlow(t *testing.T) {
	env := newTestEnv(t, &stubCompleter{})
	token := env.register(t, "alice@example.com")

	u := "ws" + env.server.URL[len("http"):] + "/ws/progress?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Current stats arrive first.
	payload := readNext(conn, t, "progress")
	if payload["totalQuizzes"].(float64) != 0 {
		t.Fatalf("expected empty initial stats, got %v", payload)
	}

	questions := []map[string]any{
		{"question": "q1", "options": []string{"a", "b", "c", "d"}, "correctAnswer": 0},
		{"question": "q2", "options": []string{"a", "b", "c", "d"}, "correctAnswer": 1},
		{"question": "q3", "options": []string{"a", "b", "c", "d"}, "correctAnswer": 2},
	}
	status, body := env.do(t, http.MethodPost, "/api/quiz/submit", token, map[string]any{
		"topic":       "javascript",
		"difficulty":  "beginner",
		"questions":   questions,
		"userAnswers": []int{0, 1, 2},
		"timeSpent":   30,
	})
	if status != http.StatusOK {
		t.Fatalf("submit: %d %v", status, body)
	}

	payload = readNext(conn, t, "progress")
	if payload["totalQuizzes"].(float64) != 1 || payload["averageScore"].(float64) != 100 || payload["streakCount"].(float64) != 1 {
		t.Fatalf("unexpected progress update: %v", payload)
	}
}

func TestProgressStreamRequiresToken(t *testing.T) {
	env := newTestEnv(t, &stubCompleter{})

	u := "ws" + env.server.URL[len("http"):] + "/ws/progress"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail without token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 handshake response, got %v", resp)
	}
}

func TestProgressStreamClosesSubscriptionOnDisconnect(t *testing.T) {
	env := newTestEnv(t, &stubCompleter{})
	token := env.register(t, "alice@example.com")
	user, err := env.store.GetUserByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("lookup user: %v", err)
	}

	u := "ws" + env.server.URL[len("http"):] + "/ws/progress?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	readNext(conn, t, "progress")
	if n := env.quiz.Subscribers(user.ID); n != 1 {
		t.Fatalf("expected 1 subscriber, got %d", n)
	}
	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for env.quiz.Subscribers(user.ID) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscription not released after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) map[string]any {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read %s: %v", expect, err)
	}
	if msg.Type != expect {
		t.Fatalf("expected %s, got %s", expect, msg.Type)
	}
	return msg.Payload
}
