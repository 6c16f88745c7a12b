package vif

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteStatsReportsCountersPerInterface(t *testing.T) {
	a := NewMemAdapter()
	defer a.Close()

	if err := a.Register(Config{Name: "tap0", MTU: 1500}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := a.Open("tap0"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	mem := a.(*memAdapter)
	if err := mem.Capture("tap0", []byte("hello")); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if err := a.Submit("tap0", []byte("world!")); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var sb strings.Builder
	mem.manager.WriteStats(&sb)
	out := sb.String()

	if !strings.Contains(out, `vnddvpn_tx_packets{interface="tap0"} 1`) {
		t.Errorf("missing tx_packets line for captured frame, got:\n%s", out)
	}
	if !strings.Contains(out, `vnddvpn_rx_packets{interface="tap0"} 1`) {
		t.Errorf("missing rx_packets line for submitted frame, got:\n%s", out)
	}
}

func TestNewStatsHandlerServesMetrics(t *testing.T) {
	a := NewMemAdapter()
	defer a.Close()

	if err := a.Register(Config{Name: "tap0", MTU: 1500}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	h := NewStatsHandler(a)
	if h == nil {
		t.Fatal("NewStatsHandler returned nil for memAdapter")
	}

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "tap0") {
		t.Errorf("response missing interface name: %s", rec.Body.String())
	}
}
