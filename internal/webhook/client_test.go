package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ucsindex/engine/internal/domain"
)

var targetDate = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func TestTriggerSendsPayload(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, 0, 0)
	err := client.Trigger(context.Background(), targetDate, map[string]decimal.Decimal{
		"boi_gordo": decimal.RequireFromString("310.5"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got["data_referencia"] != "2025-03-10" {
		t.Errorf("data_referencia = %v", got["data_referencia"])
	}
	if got["salvar_historico"] != true {
		t.Errorf("salvar_historico = %v", got["salvar_historico"])
	}
	if got["origem"] != "painel_auditoria" {
		t.Errorf("origem = %v", got["origem"])
	}
	edits, ok := got["ajustes_manuais"].(map[string]any)
	if !ok {
		t.Fatalf("ajustes_manuais = %T, want object", got["ajustes_manuais"])
	}
	// Values must be JSON numbers, not strings.
	if v, ok := edits["boi_gordo"].(float64); !ok || v != 310.5 {
		t.Errorf("ajustes_manuais.boi_gordo = %#v, want 310.5", edits["boi_gordo"])
	}
}

func TestTriggerNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, 0, 2)
	err := client.Trigger(context.Background(), targetDate, nil)

	var syncErr *domain.ExternalSyncError
	if !errors.As(err, &syncErr) {
		t.Fatalf("error = %v, want ExternalSyncError", err)
	}
	if syncErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", syncErr.StatusCode)
	}
}

func TestTriggerRetriesOnUnavailable(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, 10*time.Millisecond, 2)
	if err := client.Trigger(context.Background(), targetDate, nil); err != nil {
		t.Fatalf("unexpected error after retry: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestTriggerTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.URL, 50*time.Millisecond, 0, 0)
	start := time.Now()
	err := client.Trigger(context.Background(), targetDate, nil)

	var syncErr *domain.ExternalSyncError
	if !errors.As(err, &syncErr) {
		t.Fatalf("error = %v, want ExternalSyncError", err)
	}
	if syncErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 for network errors", syncErr.StatusCode)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Trigger took %v, expected the timeout to bound it", elapsed)
	}
}

func TestTriggerUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, time.Second, 0, 0)
	err := client.Trigger(context.Background(), targetDate, nil)

	var syncErr *domain.ExternalSyncError
	if !errors.As(err, &syncErr) {
		t.Fatalf("error = %v, want ExternalSyncError", err)
	}
}
