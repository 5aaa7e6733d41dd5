package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"podscrub/internal/ratelimit"
)

func completionBody(content string) map[string]any {
	return map[string]any{
		"choices": []any{
			map[string]any{
				"message": map[string]any{
					"content": content,
				},
			},
		},
	}
}

func TestClientCheckReachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewEncoder(w).Encode(completionBody(`{"ok":true}`)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.CheckReachable(context.Background()); err != nil {
		t.Fatalf("CheckReachable returned error: %v", err)
	}
}

func TestClientCheckReachableCodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := completionBody("```json\n{\"ok\":true}\n```")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.CheckReachable(context.Background()); err != nil {
		t.Fatalf("CheckReachable returned error: %v", err)
	}
}

func TestClientCheckReachableFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	if err := client.CheckReachable(context.Background()); err == nil {
		t.Fatal("expected health check to fail")
	}
}

func TestClientDetectAdSegments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content := `{"segments":[{"start":300.0,"end":360.5,"confidence":0.95,"reason":"sponsor read"},{"start":10.0,"end":55.0,"confidence":0.8,"reason":"network promo"}]}`
		if err := json.NewEncoder(w).Encode(completionBody(content)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	segments, err := client.DetectAdSegments(context.Background(), "[0.0 - 5.0] welcome back")
	if err != nil {
		t.Fatalf("DetectAdSegments returned error: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Start != 10.0 || segments[1].Start != 300.0 {
		t.Fatalf("segments not sorted by start: %+v", segments)
	}
	if segments[1].Reason != "sponsor read" {
		t.Fatalf("unexpected reason %q", segments[1].Reason)
	}
}

func TestClientDetectAdSegmentsCodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := completionBody("```json\n{\"segments\":[{\"start\":5,\"end\":20,\"confidence\":1.4,\"reason\":\"promo\"}]}\n```")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	segments, err := client.DetectAdSegments(context.Background(), "[0.0 - 5.0] hello")
	if err != nil {
		t.Fatalf("DetectAdSegments returned error: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	if segments[0].Confidence != 1 {
		t.Fatalf("expected confidence clamped to 1, got %v", segments[0].Confidence)
	}
}

func TestClientDetectAdSegmentsEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewEncoder(w).Encode(completionBody(`{"segments":[]}`)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	segments, err := client.DetectAdSegments(context.Background(), "[0.0 - 5.0] no ads here")
	if err != nil {
		t.Fatalf("DetectAdSegments returned error: %v", err)
	}
	if len(segments) != 0 {
		t.Fatalf("expected no segments, got %+v", segments)
	}
}

func TestNormalizeSegmentsMergesOverlaps(t *testing.T) {
	segments := NormalizeSegments([]AdSegment{
		{Start: 100, End: 90},
		{Start: 50, End: 70, Confidence: 0.6, Reason: "first"},
		{Start: 65, End: 95, Confidence: 0.9, Snippet: " brought to you by "},
		{Start: 95, End: 110, Confidence: 0.4},
		{Start: 200, End: 230, Confidence: 2, Reason: "later"},
	})
	if len(segments) != 2 {
		t.Fatalf("expected 2 merged segments, got %+v", segments)
	}
	first := segments[0]
	if first.Start != 50 || first.End != 110 {
		t.Fatalf("unexpected merged span: %+v", first)
	}
	if first.Confidence != 0.9 || first.Reason != "first" {
		t.Fatalf("merge should keep max confidence and first reason: %+v", first)
	}
	if first.Snippet != "brought to you by" {
		t.Fatalf("merge should adopt the first non-empty snippet, trimmed: %+v", first)
	}
	if segments[1].Confidence != 1 {
		t.Fatalf("expected confidence clamped to 1, got %v", segments[1].Confidence)
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
			return
		}
		_ = json.NewEncoder(w).Encode(completionBody(`{"segments":[]}`))
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRateLimitBackoff(0, 10*time.Second),
		WithRetryMaxAttempts(5),
	)
	if _, err := client.DetectAdSegments(context.Background(), "[0.0 - 5.0] hello"); err != nil {
		t.Fatalf("DetectAdSegments returned error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s from Retry-After, got %v", slept)
	}
}

func TestClientRetriesOnEmptyContentThenSucceeds(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		content := ""
		if calls >= 3 {
			content = `{"segments":[]}`
		}
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"finish_reason": "stop",
					"message":       map[string]any{"content": content},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
		WithRetryMaxAttempts(5),
	)
	if _, err := client.DetectAdSegments(context.Background(), "[0.0 - 5.0] hello"); err != nil {
		t.Fatalf("DetectAdSegments returned error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestClientFailsFastOnHTTP400(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad request"})
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(time.Duration) { t.Fatal("must not sleep on 4xx") }),
		WithRetryMaxAttempts(5),
	)
	_, err := client.DetectAdSegments(context.Background(), "[0.0 - 5.0] hello")
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if calls != 1 {
		t.Fatalf("expected single call, got %d", calls)
	}
	if !strings.Contains(err.Error(), "http 400") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

type fakeLimiter struct {
	estimate   int
	prepareErr error
	acquireErr error

	prepared   int
	acquired   int
	released   int
	reconciled [][2]int
}

func (f *fakeLimiter) PrepareForCall(ctx context.Context, texts ...string) (int, error) {
	if f.prepareErr != nil {
		return 0, f.prepareErr
	}
	f.prepared++
	return f.estimate, nil
}

func (f *fakeLimiter) AcquireSlot(ctx context.Context) (func(), error) {
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	f.acquired++
	return func() { f.released++ }, nil
}

func (f *fakeLimiter) ReconcileUsage(estimated, actual int) {
	f.reconciled = append(f.reconciled, [2]int{estimated, actual})
}

func TestClientReconcilesUsageThroughLimiter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := completionBody(`{"segments":[]}`)
		payload["usage"] = map[string]any{"prompt_tokens": 400, "completion_tokens": 100, "total_tokens": 500}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	limiter := &fakeLimiter{estimate: 100}
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithLimiter(limiter),
	)
	if _, err := client.DetectAdSegments(context.Background(), "[0.0 - 5.0] hello"); err != nil {
		t.Fatalf("DetectAdSegments returned error: %v", err)
	}
	if limiter.prepared != 1 || limiter.acquired != 1 || limiter.released != 1 {
		t.Fatalf("unexpected limiter traffic: %+v", limiter)
	}
	if len(limiter.reconciled) != 1 || limiter.reconciled[0] != [2]int{100, 500} {
		t.Fatalf("expected reconcile (100, 500), got %v", limiter.reconciled)
	}
}

func TestClientCeilingFailsWithoutRetry(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	limiter := &fakeLimiter{prepareErr: ratelimit.ErrTokenCeiling}
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithLimiter(limiter),
		WithSleeper(func(time.Duration) { t.Fatal("must not retry ceiling failures") }),
		WithRetryMaxAttempts(5),
	)
	_, err := client.DetectAdSegments(context.Background(), "[0.0 - 5.0] hello")
	if !errors.Is(err, ratelimit.ErrTokenCeiling) {
		t.Fatalf("expected ErrTokenCeiling, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("no HTTP call should happen, got %d", calls)
	}
}

func TestClientGateTimeoutFailsWithoutRetry(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	limiter := &fakeLimiter{acquireErr: ratelimit.ErrGateTimeout}
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithLimiter(limiter),
		WithSleeper(func(time.Duration) { t.Fatal("must not retry gate timeouts") }),
		WithRetryMaxAttempts(5),
	)
	_, err := client.DetectAdSegments(context.Background(), "[0.0 - 5.0] hello")
	if !errors.Is(err, ratelimit.ErrGateTimeout) {
		t.Fatalf("expected ErrGateTimeout, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("no HTTP call should happen, got %d", calls)
	}
}

func TestDecodeJSONHandlesProseWrapper(t *testing.T) {
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeJSON("Here is the result you asked for: {\"ok\": true} hope that helps!", &parsed); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if !parsed.OK {
		t.Fatal("expected ok=true")
	}
	if err := DecodeJSON("", &parsed); err == nil {
		t.Fatal("expected error for empty payload")
	}
}
