package external

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/keiri-audit/engine/internal/blockerr"
)

func TestCallRequiresURL(t *testing.T) {
	if _, err := Call(context.Background(), HTTPRequest{}); err == nil {
		t.Fatalf("expected error for missing url")
	}
}

func TestCallReturnsStatusAndJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	resp, err := Call(context.Background(), HTTPRequest{Method: "GET", URL: srv.URL})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if resp.Status != 200 {
		t.Fatalf("status = %d, want 200", resp.Status)
	}
	if !resp.Summary.OK {
		t.Fatalf("expected summary.ok true")
	}
	js, ok := resp.ResponseJSON.(map[string]any)
	if !ok || js["ok"] != true {
		t.Fatalf("response_json = %+v", resp.ResponseJSON)
	}
}

func TestCallRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			time.Sleep(100 * time.Millisecond)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := Call(context.Background(), HTTPRequest{
		Method:     "GET",
		URL:        srv.URL,
		TimeoutSec: 0.02,
		Retry:      RetryConfig{MaxRetries: 2, BackoffMs: 1},
	})
	if err != nil {
		t.Fatalf("call with retry: %v", err)
	}
	if resp.Status != 200 {
		t.Fatalf("status = %d, want 200", resp.Status)
	}
	if attempts < 2 {
		t.Fatalf("expected at least 2 attempts, got %d", attempts)
	}
}

func TestNotifyWebhookConfigMissingWithoutURL(t *testing.T) {
	os.Unsetenv("WEBHOOK_URL")
	_, err := Notify(context.Background(), NotifyRequest{Provider: NotifyWebhook, Message: "hi"})
	if err == nil {
		t.Fatalf("expected CONFIG_MISSING error")
	}
}

func TestNotifySlackPostsToWebhook(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	out, err := Notify(context.Background(), NotifyRequest{
		Provider: NotifySlack,
		Target:   map[string]any{"url": srv.URL},
		Title:    "Alert",
		Message:  "something happened",
	})
	if err != nil {
		t.Fatalf("notify slack: %v", err)
	}
	if !out.OK {
		t.Fatalf("expected ok response, got %+v", out)
	}
	if gotBody == "" {
		t.Fatalf("expected a posted body")
	}
}

func TestSignManifestMissingKeyRefFails(t *testing.T) {
	os.Unsetenv("SIGNING_KEY")
	_, err := SignManifest(SignManifestRequest{Manifest: map[string]any{"a": 1}, KeyRef: "SIGNING_KEY", Algo: AlgoEd25519})
	if err == nil {
		t.Fatalf("expected CONFIG_MISSING error for unset SIGNING_KEY")
	}
}

func TestSignManifestInvalidPEMFails(t *testing.T) {
	os.Setenv("SIGNING_KEY", "NOT_A_PEM")
	defer os.Unsetenv("SIGNING_KEY")
	_, err := SignManifest(SignManifestRequest{Manifest: map[string]any{"a": 1}, KeyRef: "SIGNING_KEY", Algo: AlgoEd25519})
	if err == nil {
		t.Fatalf("expected error for invalid PEM")
	}
}

func TestSignManifestUnsupportedAlgoFails(t *testing.T) {
	os.Setenv("SIGNING_KEY", "NOT_A_PEM")
	defer os.Unsetenv("SIGNING_KEY")
	_, err := SignManifest(SignManifestRequest{Manifest: map[string]any{"a": 1}, KeyRef: "SIGNING_KEY", Algo: "unknown_algo"})
	if err == nil {
		t.Fatalf("expected error for unsupported algo")
	}
	var be *blockerr.Error
	if !errors.As(err, &be) || be.Code != blockerr.ConfigInvalid {
		t.Fatalf("expected CONFIG_INVALID for unsupported algo, got %v", err)
	}
}
