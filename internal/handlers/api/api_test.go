package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rankwise/internal/db"
	"rankwise/internal/entitlement"
	"rankwise/internal/llm"
	"rankwise/internal/middleware"
	"rankwise/internal/models"
	"rankwise/internal/research"
)

const anonymousAddr = "203.0.113.9"

// memLedger is an in-memory quota ledger.
type memLedger struct {
	mu      sync.Mutex
	counts  map[string]int
	readErr error
}

func newMemLedger() *memLedger {
	return &memLedger{counts: make(map[string]int)}
}

func (l *memLedger) GetQuotaCount(_ context.Context, identifier string, _ time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readErr != nil {
		return 0, l.readErr
	}
	n, ok := l.counts[identifier]
	if !ok {
		return 0, db.ErrLedgerEntryNotFound
	}
	return n, nil
}

func (l *memLedger) IncrementQuota(_ context.Context, identifier string, _ time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[identifier]++
	return l.counts[identifier], nil
}

func (l *memLedger) count(identifier string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[identifier]
}

// stubResolver treats the token "premium" as a premium user and anything
// else as an anonymous caller at a fixed address.
type stubResolver struct{}

func (stubResolver) Resolve(_ context.Context, token, _ string) models.CallerIdentity {
	if token == "premium" {
		return models.CallerIdentity{Identifier: "user-premium", Authenticated: true, Premium: true}
	}
	return models.AnonymousIdentity(anonymousAddr)
}

// funcClient adapts a function to llm.Client and counts calls.
type funcClient struct {
	mu    sync.Mutex
	calls int
	fn    func(msgs []llm.Message) (string, error)
}

func (f *funcClient) Complete(_ context.Context, msgs []llm.Message, _ llm.Options) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(msgs)
}

func (f *funcClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func replyWith(text string, err error) *funcClient {
	return &funcClient{fn: func([]llm.Message) (string, error) { return text, err }}
}

func newTestApp(ledger *memLedger, client llm.Client) *fiber.App {
	gate := entitlement.NewGate(ledger, entitlement.DefaultDailyLimit, nil)
	analyzer := research.NewAnalyzer(client, research.Config{}, nil, nil)

	app := fiber.New()
	app.Use(middleware.NewAuthMiddleware(stubResolver{}, false).Identify)

	keywords := NewKeywordHandler(gate, client, nil, llm.Options{}, nil, nil)
	researchHandler := NewResearchHandler(gate, analyzer, nil, nil)
	quota := NewQuotaHandler(gate)

	app.All("/api/keywords", Action(fiber.MethodPost, keywords.Generate))
	app.All("/api/research", Action(fiber.MethodPost, researchHandler.Analyze))
	app.All("/api/quota", Action(fiber.MethodGet, quota.Status))
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path, body, token string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestKeywords_Success(t *testing.T) {
	ledger := newMemLedger()
	client := replyWith("```json\n"+`{"keywords": [{"term": "trail running shoes", "volume": "12k", "kd": "34"}, {"notes": "no keyword"}]}`+"\n```", nil)
	app := newTestApp(ledger, client)

	status, body := doRequest(t, app, http.MethodPost, "/api/keywords", `{"keyword": "trail shoes"}`, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["premium"])
	assert.Equal(t, float64(4), body["remaining"])

	keywords, ok := body["keywords"].([]any)
	require.True(t, ok)
	require.Len(t, keywords, 1)
	first := keywords[0].(map[string]any)
	assert.Equal(t, "trail running shoes", first["keyword"])
	assert.Equal(t, float64(12000), first["searchVolume"])
	assert.Equal(t, float64(34), first["difficulty"])
	assert.Equal(t, 1, ledger.count(anonymousAddr))
}

func TestKeywords_InputErrors(t *testing.T) {
	ledger := newMemLedger()
	client := replyWith(`{"keywords": []}`, nil)
	app := newTestApp(ledger, client)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"not json", `keyword=shoes`, CodeInvalidBody},
		{"empty object", `{}`, CodeMissingSeed},
		{"blank keyword", `{"keyword": "   "}`, CodeMissingSeed},
		{"too long", `{"keyword": "` + strings.Repeat("a", 121) + `"}`, CodeMissingSeed},
		{"private url", `{"url": "http://192.168.1.10/"}`, CodeInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doRequest(t, app, http.MethodPost, "/api/keywords", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.code, body["code"])
			assert.NotContains(t, body, "remaining")
		})
	}
	assert.Zero(t, client.callCount())
	assert.Zero(t, ledger.count(anonymousAddr))
}

func TestKeywords_UpstreamFailures(t *testing.T) {
	t.Run("model unavailable", func(t *testing.T) {
		app := newTestApp(newMemLedger(), replyWith("", llm.ErrUnavailable))
		status, body := doRequest(t, app, http.MethodPost, "/api/keywords", `{"url": "example.com"}`, "")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, CodeModelUnavailable, body["code"])
		assert.Equal(t, float64(4), body["remaining"])
	})

	t.Run("parse failed", func(t *testing.T) {
		app := newTestApp(newMemLedger(), replyWith("Sorry, I can't help with that.", nil))
		status, body := doRequest(t, app, http.MethodPost, "/api/keywords", `{"keyword": "boots"}`, "")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, CodeParseFailed, body["code"])
		assert.Equal(t, "Sorry, I can't help with that.", body["rawText"])
	})
}

func TestKeywords_RawTextCostsNoQuota(t *testing.T) {
	ledger := newMemLedger()
	client := replyWith("", errors.New("must not be called"))
	app := newTestApp(ledger, client)

	status, body := doRequest(t, app, http.MethodPost, "/api/keywords",
		`{"rawText": "Here: [{\"keyword\": \"rain jacket\", \"searchVolume\": \"five thousand\"}]"}`, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["reparsed"])
	assert.Equal(t, float64(5), body["remaining"])

	keywords := body["keywords"].([]any)
	require.Len(t, keywords, 1)
	assert.Equal(t, float64(5000), keywords[0].(map[string]any)["searchVolume"])

	assert.Zero(t, client.callCount())
	assert.Zero(t, ledger.count(anonymousAddr))
}

func TestKeywords_QuotaLimit(t *testing.T) {
	ledger := newMemLedger()
	app := newTestApp(ledger, replyWith(`[{"keyword": "boots"}]`, nil))

	for i := 0; i < entitlement.DefaultDailyLimit; i++ {
		status, body := doRequest(t, app, http.MethodPost, "/api/keywords", `{"keyword": "boots"}`, "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(entitlement.DefaultDailyLimit-(i+1)), body["remaining"])
	}

	status, body := doRequest(t, app, http.MethodPost, "/api/keywords", `{"keyword": "boots"}`, "")
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, CodeQuotaExceeded, body["code"])
	assert.Equal(t, float64(0), body["remaining"])
	assert.Equal(t, entitlement.DefaultDailyLimit, ledger.count(anonymousAddr))
}

func TestKeywords_PremiumUnlimited(t *testing.T) {
	ledger := newMemLedger()
	app := newTestApp(ledger, replyWith(`[{"keyword": "boots"}]`, nil))

	for i := 0; i < entitlement.DefaultDailyLimit*10; i++ {
		status, body := doRequest(t, app, http.MethodPost, "/api/keywords", `{"keyword": "boots"}`, "premium")
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, "unlimited", body["remaining"])
		require.Equal(t, true, body["premium"])
	}
	assert.Zero(t, ledger.count("user-premium"))
}

func TestAction_MethodGuard(t *testing.T) {
	app := newTestApp(newMemLedger(), replyWith("", nil))

	status, body := doRequest(t, app, http.MethodOptions, "/api/keywords", "", "")
	assert.Equal(t, http.StatusNoContent, status)
	assert.Nil(t, body)

	status, body = doRequest(t, app, http.MethodGet, "/api/keywords", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, status)
	assert.Equal(t, CodeMethodNotAllowed, body["code"])

	status, _ = doRequest(t, app, http.MethodDelete, "/api/quota", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

// signalClient answers research prompts by signal name.
func signalClient(replies map[string]string) *funcClient {
	return &funcClient{fn: func(msgs []llm.Message) (string, error) {
		user := msgs[len(msgs)-1].Content
		first, _, _ := strings.Cut(user, "\n")
		if text, ok := replies[strings.TrimPrefix(first, "Signal: ")]; ok {
			return text, nil
		}
		return "", llm.ErrUnavailable
	}}
}

func TestResearch_Success(t *testing.T) {
	ledger := newMemLedger()
	client := signalClient(map[string]string{
		research.SignalVolume:      `{"monthlySearches": 4500}`,
		research.SignalCompetitors: `["rei.com", "REI.com"]`,
	})
	app := newTestApp(ledger, client)

	status, body := doRequest(t, app, http.MethodPost, "/api/research",
		`{"url": "example.com", "keyword": "boots", "keywords": ["tents", "BOOTS"]}`, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "https://example.com", body["targetUrl"])
	assert.Equal(t, float64(4), body["remaining"])

	results := body["results"].([]any)
	require.Len(t, results, 2)
	first := results[0].(map[string]any)
	assert.Equal(t, "boots", first["keyword"])
	assert.Equal(t, float64(4500), first["monthlySearches"])
	assert.Equal(t, float64(48), first["dailyVisitors"])
	assert.Equal(t, []any{"rei.com"}, first["topCompetitors"])
	assert.Equal(t, "tents", results[1].(map[string]any)["keyword"])
	assert.Empty(t, body["errors"])

	assert.Equal(t, 1, ledger.count(anonymousAddr), "one action per request")
}

func TestResearch_NoData(t *testing.T) {
	app := newTestApp(newMemLedger(), signalClient(nil))

	status, body := doRequest(t, app, http.MethodPost, "/api/research",
		`{"url": "https://example.com", "keywords": ["obscure"]}`, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, CodeNoData, body["code"])

	errs := body["errors"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "obscure", errs[0].(map[string]any)["keyword"])
}

func TestResearch_InputErrors(t *testing.T) {
	ledger := newMemLedger()
	client := signalClient(nil)
	app := newTestApp(ledger, client)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"not json", `[`, CodeInvalidBody},
		{"missing url", `{"keywords": ["boots"]}`, CodeInvalidURL},
		{"bad scheme", `{"url": "ftp://example.com", "keywords": ["boots"]}`, CodeInvalidURL},
		{"localhost", `{"url": "http://localhost:8080", "keywords": ["boots"]}`, CodeInvalidURL},
		{"no keywords", `{"url": "example.com"}`, CodeMissingKeywords},
		{"blank keywords", `{"url": "example.com", "keywords": [" ", ""]}`, CodeMissingKeywords},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doRequest(t, app, http.MethodPost, "/api/research", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tt.code, body["code"])
		})
	}
	assert.Zero(t, client.callCount())
	assert.Zero(t, ledger.count(anonymousAddr))
}

func TestQuota_Status(t *testing.T) {
	ledger := newMemLedger()
	ledger.counts[anonymousAddr] = 2
	app := newTestApp(ledger, replyWith("", nil))

	status, body := doRequest(t, app, http.MethodGet, "/api/quota", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(3), body["remaining"])
	assert.Equal(t, float64(entitlement.DefaultDailyLimit), body["limit"])
	assert.Equal(t, "durable", body["mode"])
	assert.Equal(t, 2, ledger.count(anonymousAddr), "status must not consume quota")

	status, body = doRequest(t, app, http.MethodGet, "/api/quota", "", "premium")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "unlimited", body["remaining"])
	assert.Equal(t, true, body["premium"])
	assert.NotContains(t, body, "limit")
}

func TestQuota_DegradedLedger(t *testing.T) {
	ledger := newMemLedger()
	ledger.readErr = errors.New("connection reset")
	app := newTestApp(ledger, replyWith(`[{"keyword": "boots"}]`, nil))

	status, body := doRequest(t, app, http.MethodPost, "/api/keywords", `{"keyword": "boots"}`, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(4), body["remaining"])

	_, body = doRequest(t, app, http.MethodGet, "/api/quota", "", "")
	assert.Equal(t, "degraded", body["mode"])
	assert.Equal(t, float64(4), body["remaining"])
}
