package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lvonguyen/numintel/internal/collect"
)

// TestRequestAuthentication checks that the API key header is attached
// when an env var is configured and omitted when it is not.
func TestRequestAuthentication(t *testing.T) {
	t.Setenv("TEST_SOURCE_KEY", "secret-key")

	var gotKey, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(`{"valid":false}`))
	}))
	defer srv.Close()

	c := NewCarrierLookup(ClientConfig{BaseURL: srv.URL, APIKeyEnv: "TEST_SOURCE_KEY", Weight: 0.9})
	if _, fault := c.Submit(context.Background(), collect.Query{Phone: "+15551234567"}); fault != nil {
		t.Fatalf("unexpected fault: %+v", fault)
	}
	if gotKey != "secret-key" {
		t.Fatalf("X-API-Key = %q, want secret-key", gotKey)
	}
	if gotAccept != "application/json" {
		t.Fatalf("Accept = %q, want application/json", gotAccept)
	}

	c = NewCarrierLookup(ClientConfig{BaseURL: srv.URL, Weight: 0.9})
	if _, fault := c.Submit(context.Background(), collect.Query{Phone: "+15551234567"}); fault != nil {
		t.Fatalf("unexpected fault: %+v", fault)
	}
	if gotKey != "" {
		t.Fatalf("X-API-Key = %q, want empty without a configured env var", gotKey)
	}
}

// TestStatusFaultMapping checks the HTTP status to fault taxonomy
// mapping shared by every networked collector.
func TestStatusFaultMapping(t *testing.T) {
	tests := []struct {
		status    int
		kind      collect.FaultKind
		retriable bool
	}{
		{http.StatusUnauthorized, collect.FaultAuth, false},
		{http.StatusForbidden, collect.FaultBlocked, true},
		{http.StatusTooManyRequests, collect.FaultBlocked, true},
		{http.StatusRequestTimeout, collect.FaultTimeout, true},
		{http.StatusGatewayTimeout, collect.FaultTimeout, true},
		{http.StatusInternalServerError, collect.FaultUnknown, true},
		{http.StatusNotFound, collect.FaultUnknown, false},
	}
	for _, tt := range tests {
		fault := faultFromStatus("testsource", tt.status)
		if fault.Kind != tt.kind {
			t.Errorf("status %d: kind = %s, want %s", tt.status, fault.Kind, tt.kind)
		}
		if fault.Retriable != tt.retriable {
			t.Errorf("status %d: retriable = %v, want %v", tt.status, fault.Retriable, tt.retriable)
		}
	}
}

// TestMalformedPayloadFault checks that undecodable bodies become
// faults, never evidence.
func TestMalformedPayloadFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rows": [`))
	}))
	defer srv.Close()

	b := NewBreachIndex(ClientConfig{BaseURL: srv.URL, Weight: 0.85})
	batch, fault := b.Submit(context.Background(), collect.Query{Phone: "+15551234567"})
	if fault == nil || fault.Kind != collect.FaultUnknown {
		t.Fatalf("fault = %+v, want unknown decode fault", fault)
	}
	if batch != nil {
		t.Fatalf("batch = %v, want nil", batch)
	}
}
