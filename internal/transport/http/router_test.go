package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"edulearn-quiz-service/internal/app"
	"edulearn-quiz-service/internal/catalog"
	"edulearn-quiz-service/internal/infra/memory"
	"edulearn-quiz-service/internal/logger"
)

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, &stubCompleter{})

	status, body := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"fullName": "Alice Doe", "email": "alice@example.com", "password": "supersecret",
	})
	if status != http.StatusCreated || body["token"] == "" || body["success"] != true {
		t.Fatalf("register: %d %v", status, body)
	}
	user := body["user"].(map[string]any)
	if user["email"] != "alice@example.com" || user["password"] != nil {
		t.Fatalf("unexpected public user: %v", user)
	}

	status, body = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"fullName": "Alice Again", "email": "ALICE@example.com", "password": "supersecret",
	})
	if status != http.StatusConflict || body["error"] != "Account with this email already exists" {
		t.Fatalf("duplicate register: %d %v", status, body)
	}

	status, body = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"email": "alice@example.com", "password": "nope-nope"})
	if status != http.StatusUnauthorized || body["error"] != "Invalid email or password" {
		t.Fatalf("bad login: %d %v", status, body)
	}

	status, body = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"email": "alice@example.com", "password": "supersecret"})
	if status != http.StatusOK || body["token"] == "" {
		t.Fatalf("login: %d %v", status, body)
	}

	status, body = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{"fullName": "B", "email": "b@example.com", "password": "supersecret"})
	if status != http.StatusBadRequest || body["success"] != false {
		t.Fatalf("invalid register: %d %v", status, body)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, &stubCompleter{})

	status, body := env.do(t, http.MethodGet, "/api/user/dashboard", "", nil)
	if status != http.StatusUnauthorized || body["error"] != "Authentication required" {
		t.Fatalf("missing token: %d %v", status, body)
	}
	status, body = env.do(t, http.MethodGet, "/api/user/dashboard", "not-a-jwt", nil)
	if status != http.StatusForbidden || body["error"] != "Invalid or expired token" {
		t.Fatalf("bad token: %d %v", status, body)
	}
}

func TestTopicsAndHealth(t *testing.T) {
	env := newTestEnv(t, &stubCompleter{})

	status, body := env.do(t, http.MethodGet, "/api/topics", "", nil)
	if status != http.StatusOK {
		t.Fatalf("topics: %d", status)
	}
	topics := body["topics"].([]any)
	if len(topics) != 6 {
		t.Fatalf("expected 6 topics, got %d", len(topics))
	}
	first := topics[0].(map[string]any)
	if first["id"] != "javascript" || first["difficulty"] == nil || first["subcategories"] == nil {
		t.Fatalf("unexpected topic shape: %v", first)
	}

	status, body = env.do(t, http.MethodGet, "/api/health", "", nil)
	if status != http.StatusOK || body["status"] != "healthy" {
		t.Fatalf("health: %d %v", status, body)
	}

	resp, err := http.Get(env.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", resp.StatusCode)
	}
}

func TestGenerateSubmitDashboard(t *testing.T) {
	llm := &stubCompleter{reply: "Here you go:\n" + generatedQuestions(5)}
	env := newTestEnv(t, llm)
	token := env.register(t, "alice@example.com")

	status, body := env.do(t, http.MethodPost, "/api/quiz/generate", token, map[string]any{"topic": "python"})
	if status != http.StatusOK {
		t.Fatalf("generate: %d %v", status, body)
	}
	quiz := body["quiz"].(map[string]any)
	if quiz["difficulty"] != "intermediate" || quiz["questionCount"].(float64) != 5 || quiz["timeLimit"].(float64) != 300 {
		t.Fatalf("unexpected quiz: %v", quiz)
	}
	questions := quiz["questions"].([]any)

	answers := make([]any, len(questions))
	for i, q := range questions {
		correct := int(q.(map[string]any)["correctAnswer"].(float64))
		switch i {
		case 0, 1, 2, 3:
			answers[i] = correct
		default:
			answers[i] = nil
		}
	}
	status, body = env.do(t, http.MethodPost, "/api/quiz/submit", token, map[string]any{
		"quizId":      quiz["id"],
		"topic":       "python",
		"difficulty":  "intermediate",
		"questions":   questions,
		"userAnswers": answers,
		"timeSpent":   120,
	})
	if status != http.StatusOK {
		t.Fatalf("submit: %d %v", status, body)
	}
	result := body["result"].(map[string]any)
	if result["score"].(float64) != 80 || result["percentage"].(float64) != 80 || result["correctAnswers"].(float64) != 4 {
		t.Fatalf("unexpected result: %v", result)
	}
	detailed := result["detailedResults"].([]any)
	if detailed[4].(map[string]any)["userAnswer"] != nil {
		t.Fatalf("unanswered question should be null: %v", detailed[4])
	}
	progress := body["progress"].(map[string]any)
	if progress["streakCount"].(float64) != 1 || progress["totalQuizzes"].(float64) != 1 {
		t.Fatalf("unexpected progress: %v", progress)
	}

	status, body = env.do(t, http.MethodGet, "/api/user/dashboard", token, nil)
	if status != http.StatusOK {
		t.Fatalf("dashboard: %d %v", status, body)
	}
	recent := body["recentActivity"].([]any)
	if len(recent) != 1 || recent[0].(map[string]any)["score"].(float64) != 80 {
		t.Fatalf("unexpected recent activity: %v", recent)
	}
	if body["user"].(map[string]any)["email"] != "alice@example.com" || len(body["availableTopics"].([]any)) != 6 {
		t.Fatalf("unexpected dashboard: %v", body)
	}
}

func TestGenerateErrors(t *testing.T) {
	llm := &stubCompleter{reply: `[{"question":"q","options":["a","b","c"],"correctAnswer":0}]`}
	env := newTestEnv(t, llm)
	token := env.register(t, "alice@example.com")

	cases := []struct {
		body   map[string]any
		status int
		msg    string
	}{
		{map[string]any{}, http.StatusBadRequest, "Valid topic is required"},
		{map[string]any{"topic": "quantum"}, http.StatusBadRequest, "Valid topic is required"},
		{map[string]any{"topic": "machinelearning", "difficulty": "beginner"}, http.StatusBadRequest, "Invalid difficulty. Valid options: intermediate, advanced"},
		{map[string]any{"topic": "python", "questionCount": 21}, http.StatusBadRequest, "Question count must be between 3 and 20"},
		{map[string]any{"topic": "python", "questionCount": 3}, http.StatusBadGateway, "Failed to parse quiz questions from AI response"},
	}
	for _, tc := range cases {
		status, body := env.do(t, http.MethodPost, "/api/quiz/generate", token, tc.body)
		if status != tc.status || body["error"] != tc.msg {
			t.Fatalf("%v: got %d %v", tc.body, status, body)
		}
	}
	if llm.calls != 1 {
		t.Fatalf("validation failures must not reach the generation service, calls=%d", llm.calls)
	}

	llm.err = errors.New("upstream down")
	status, body := env.do(t, http.MethodPost, "/api/quiz/generate", token, map[string]any{"topic": "python"})
	if status != http.StatusBadGateway || body["error"] != "Failed to generate quiz questions" {
		t.Fatalf("upstream failure: %d %v", status, body)
	}
}

func TestSubmitRejectsMismatch(t *testing.T) {
	env := newTestEnv(t, &stubCompleter{})
	token := env.register(t, "alice@example.com")

	status, body := env.do(t, http.MethodPost, "/api/quiz/submit", token, map[string]any{
		"topic":       "python",
		"difficulty":  "beginner",
		"questions":   []map[string]any{{"question": "q", "options": []string{"a", "b", "c", "d"}, "correctAnswer": 1}},
		"userAnswers": []int{1, 2},
	})
	if status != http.StatusBadRequest || body["error"] != "Invalid quiz submission data" {
		t.Fatalf("mismatch: %d %v", status, body)
	}
}

func TestTutorChat(t *testing.T) {
	llm := &stubCompleter{reply: "Recursion is a function calling itself."}
	env := newTestEnv(t, llm)
	token := env.register(t, "alice@example.com")

	status, body := env.do(t, http.MethodPost, "/api/tutor/chat", token, map[string]any{"message": "What is recursion?"})
	if status != http.StatusOK || body["response"] != "Recursion is a function calling itself." || body["timestamp"] == nil {
		t.Fatalf("tutor: %d %v", status, body)
	}

	status, body = env.do(t, http.MethodPost, "/api/tutor/chat", token, map[string]any{"message": "  "})
	if status != http.StatusBadRequest || body["error"] != "Message is required" {
		t.Fatalf("empty message: %d %v", status, body)
	}

	llm.err = errors.New("boom")
	status, body = env.do(t, http.MethodPost, "/api/tutor/chat", token, map[string]any{"message": "hi"})
	if status != http.StatusBadGateway || body["error"] != "AI tutor is temporarily unavailable. Please try again." {
		t.Fatalf("tutor failure: %d %v", status, body)
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, &stubCompleter{}, withLimiter(memory.NewRateLimiter(2, time.Minute)))

	for i := 0; i < 2; i++ {
		if status, _ := env.do(t, http.MethodGet, "/api/topics", "", nil); status != http.StatusOK {
			t.Fatalf("request %d: %d", i+1, status)
		}
	}
	status, body := env.do(t, http.MethodGet, "/api/topics", "", nil)
	if status != http.StatusTooManyRequests || body["error"] != msgTooManyRequests {
		t.Fatalf("expected 429, got %d %v", status, body)
	}

	resp, err := http.Get(env.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz should not be rate limited, got %d", resp.StatusCode)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	env := newTestEnv(t, &stubCompleter{}, withLimiter(failingLimiter{}))
	if status, _ := env.do(t, http.MethodGet, "/api/topics", "", nil); status != http.StatusOK {
		t.Fatalf("expected request through when limiter fails, got %d", status)
	}
}

func TestRateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	env := newTestEnv(t, &stubCompleter{}, withLimiter(memory.NewRateLimiter(2, time.Minute)))

	accepted := 0
	for i := 0; i < 10; i++ {
		if env.getTopics(t, fmt.Sprintf("198.51.100.%d", i+1)) == http.StatusOK {
			accepted++
		}
	}
	if accepted != 2 {
		t.Fatalf("rotating X-Forwarded-For must not bypass the limit, accepted %d of 10", accepted)
	}
}

func TestRateLimitUsesForwardedForBehindTrustedProxy(t *testing.T) {
	env := newTestEnv(t, &stubCompleter{},
		withLimiter(memory.NewRateLimiter(1, time.Minute)),
		withTrustedProxies(t, "127.0.0.1", "::1"),
	)

	if status := env.getTopics(t, "198.51.100.1"); status != http.StatusOK {
		t.Fatalf("first client: %d", status)
	}
	if status := env.getTopics(t, "198.51.100.2"); status != http.StatusOK {
		t.Fatalf("second client has its own window, got %d", status)
	}
	// Spoofed left-most hop; the proxy appended the real client.
	if status := env.getTopics(t, "203.0.113.99, 198.51.100.1"); status != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for the real client, got %d", status)
	}
}

func TestParseTrustedProxies(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.168.1.5 ", "", "::1"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(proxies) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(proxies))
	}
	if _, err := ParseTrustedProxies([]string{"proxy.internal"}); err == nil {
		t.Fatalf("expected error for a hostname")
	}
	if _, err := ParseTrustedProxies([]string{"10.0.0.0/33"}); err == nil {
		t.Fatalf("expected error for a bad mask")
	}
}

func TestRequestLoggerSeesUnmatchedRoutes(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	env := newTestEnv(t, &stubCompleter{}, withRequestLog(logger.NewWithCore(core)))

	status, _ := env.do(t, http.MethodGet, "/api/nope", "", nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	resp, err := http.Post(env.server.URL+"/api/topics", "application/json", nil)
	if err != nil {
		t.Fatalf("post topics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}

	entries := logs.FilterMessage("HTTP request").All()
	if len(entries) != 2 {
		t.Fatalf("expected each request logged once, got %d entries", len(entries))
	}
	for i, want := range []int64{http.StatusNotFound, http.StatusMethodNotAllowed} {
		fields := entries[i].ContextMap()
		if fields["status"] != want {
			t.Fatalf("entry %d: expected status %d, got %v", i, want, fields["status"])
		}
		if entries[i].Level != zap.WarnLevel {
			t.Fatalf("entry %d: expected warn level, got %v", i, entries[i].Level)
		}
	}
}

type testEnv struct {
	server *httptest.Server
	store  *memory.Store
	quiz   *app.QuizService
	auth   *app.AuthService
}

type envOption func(*RouterDeps)

func withLimiter(l Limiter) envOption {
	return func(d *RouterDeps) { d.Limiter = l }
}

func withTrustedProxies(t *testing.T, entries ...string) envOption {
	t.Helper()
	proxies, err := ParseTrustedProxies(entries)
	if err != nil {
		t.Fatalf("trusted proxies: %v", err)
	}
	return func(d *RouterDeps) { d.TrustedProxies = proxies }
}

func withRequestLog(log *logger.Logger) envOption {
	return func(d *RouterDeps) { d.Log = log }
}

func newTestEnv(t *testing.T, llm app.Completer, opts ...envOption) *testEnv {
	t.Helper()
	log := logger.Nop()
	store := memory.NewStore()
	topics := catalog.Default()

	auth, err := app.NewAuthService(store, app.AuthConfig{Secret: "test-secret", BcryptCost: bcrypt.MinCost}, log)
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	quiz := app.NewQuizService(
		topics,
		app.NewGenerator(topics, llm, log),
		store,
		store,
		memory.NewActivityCache(store, time.Minute),
		app.NewProgressFeed(),
		log,
	)
	tutor := app.NewTutorService(llm, log)

	deps := RouterDeps{
		Handlers: NewHandlers(quiz, auth, tutor, HealthInfo{Version: "test", Database: "memory", Cache: "memory"}, log),
		Progress: NewProgressWSHandler(quiz, log),
		Auth:     auth,
		Log:      log,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	server := httptest.NewServer(NewRouter(deps))
	t.Cleanup(server.Close)
	return &testEnv{server: server, store: store, quiz: quiz, auth: auth}
}

// getTopics sends GET /api/topics with the given X-Forwarded-For value.
func (e *testEnv) getTopics(t *testing.T, forwardedFor string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.server.URL+"/api/topics", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get topics: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func (e *testEnv) do(t *testing.T, method, path, token string, payload any) (int, map[string]any) {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp.StatusCode, out
}

func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()
	_, token, err := e.auth.Register(context.Background(), app.RegisterInput{FullName: "Test User", Email: email, Password: "supersecret"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return token
}

type stubCompleter struct {
	reply string
	err   error
	calls int
}

func (s *stubCompleter) Complete(context.Context, app.CompletionRequest) (string, error) {
	s.calls++
	return s.reply, s.err
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func generatedQuestions(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf(`{"question":"Question %d?","options":["a%d","b%d","c%d","d%d"],"correctAnswer":%d,"explanation":"why","difficulty":"intermediate","category":"python"}`, i, i, i, i, i, i%4)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
