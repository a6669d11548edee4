package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"storyreel/internal/services"
)

func noSleep(time.Duration) {}

func TestSynthesizeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req synthesizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.VoiceID != "narrator" || req.Text != "hi [pause] there" {
			t.Errorf("unexpected request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(synthesizeResponse{
			AudioBase64:     base64.StdEncoding.EncodeToString([]byte("ID3audio")),
			DurationSeconds: 1.25,
		})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "secret"})
	audio, err := client.Synthesize(context.Background(), "narrator", "hi [pause] there")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio.Data) != "ID3audio" || audio.DurationSeconds != 1.25 {
		t.Fatalf("unexpected audio %+v", audio)
	}
}

func TestSynthesizeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(synthesizeResponse{
			AudioBase64:     base64.StdEncoding.EncodeToString([]byte("ok")),
			DurationSeconds: 2,
		})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, RetryAttempts: 3}, WithSleeper(noSleep))
	if _, err := client.Synthesize(context.Background(), "v", "text"); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}

func TestSynthesizeQuotaExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "1")
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(Config{BaseURL: server.URL, RetryAttempts: 2}, WithSleeper(func(d time.Duration) {
		slept = append(slept, d)
	}))
	_, err := client.Synthesize(context.Background(), "v", "text")
	if !errors.Is(err, services.ErrQuota) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if calls.Load() != 2 || len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("unexpected retry behaviour calls=%d slept=%v", calls.Load(), slept)
	}
}

func TestSynthesizeDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad markup", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, WithSleeper(noSleep))
	_, err := client.Synthesize(context.Background(), "v", "text")
	if !errors.Is(err, services.ErrValidation) || calls.Load() != 1 {
		t.Fatalf("expected single validation failure, got %v after %d calls", err, calls.Load())
	}
}

func TestSynthesizeRequiresConfig(t *testing.T) {
	_, err := NewClient(Config{}).Synthesize(context.Background(), "v", "text")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	_, err = NewClient(Config{BaseURL: "http://x"}).Synthesize(context.Background(), "v", "  ")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
