package summarize

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anatolykoptev/go_digest/internal/engine"
)

func TestLocalCallTimeout(t *testing.T) {
	initTestEngine(t, 40, 12)

	restore := localTimeout
	localTimeout = 50 * time.Millisecond
	t.Cleanup(func() { localTimeout = restore })

	// The second chunk call stalls past the per-call deadline; the first
	// succeeds, so the failure provably lands mid-sequence.
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) > 1 {
			time.Sleep(500 * time.Millisecond)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(chatReply("partial"))
	}))
	t.Cleanup(srv.Close)

	_, err := Summarize(context.Background(), LocalRequest{Text: twoChunkText(40), BaseURL: srv.URL})
	if !errors.Is(err, engine.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("err = %v, want the timeout message, not a connection failure", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("provider calls = %d, want 2 (sequence stops at the stalled call)", n)
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "blank defaults",
			raw:  "",
			want: "http://localhost:11434/v1",
		},
		{
			name: "whitespace defaults",
			raw:  "   ",
			want: "http://localhost:11434/v1",
		},
		{
			name: "bare host gets v1 path",
			raw:  "http://localhost:8080",
			want: "http://localhost:8080/v1",
		},
		{
			name: "root path gets v1",
			raw:  "http://127.0.0.1:1234/",
			want: "http://127.0.0.1:1234/v1",
		},
		{
			name: "existing path kept",
			raw:  "http://localhost:9999/api/v2",
			want: "http://localhost:9999/api/v2",
		},
		{
			name: "trailing slash trimmed",
			raw:  "http://localhost:9999/v1/",
			want: "http://localhost:9999/v1",
		},
		{
			name: "https allowed",
			raw:  "https://localhost:443",
			want: "https://localhost:443/v1",
		},
		{
			name:    "ftp rejected",
			raw:     "ftp://localhost/v1",
			wantErr: true,
		},
		{
			name:    "no host",
			raw:     "http://",
			wantErr: true,
		},
		{
			name:    "not a url",
			raw:     "::::",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeBaseURL(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("normalizeBaseURL(%q) = %q, want error", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("normalizeBaseURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestIsLoopbackHost(t *testing.T) {
	for host, want := range map[string]bool{
		"localhost":    true,
		"127.0.0.1":    true,
		"127.8.8.8":    true,
		"::1":          true,
		"192.168.1.10": false,
		"example.com":  false,
		"10.0.0.1":     false,
		"":             false,
	} {
		if got := isLoopbackHost(host); got != want {
			t.Errorf("isLoopbackHost(%q) = %v, want %v", host, got, want)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	status := http.StatusText(http.StatusNotFound)
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "error string",
			body: `{"error": "model not found"}`,
			want: "model not found",
		},
		{
			name: "error object",
			body: `{"error": {"message": "context length exceeded"}}`,
			want: "context length exceeded",
		},
		{
			name: "top level message",
			body: `{"message": "try again later"}`,
			want: "try again later",
		},
		{
			name: "detail field",
			body: `{"detail": "unauthorized"}`,
			want: "unauthorized",
		},
		{
			name: "unparseable falls back to status",
			body: `<html>Not Found</html>`,
			want: status,
		},
		{
			name: "empty object falls back",
			body: `{}`,
			want: status,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorMessage([]byte(tt.body), status); got != tt.want {
				t.Errorf("errorMessage(%q) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}
