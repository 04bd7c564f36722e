package audit_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/muazhazali/lepakmasjid/internal/audit"
	"github.com/muazhazali/lepakmasjid/internal/config"
)

func testEntry(action string) *audit.Entry {
	return &audit.Entry{
		ID:         "3b1f0c1e-8e63-4c8e-9d0a-1b2c3d4e5f60",
		Timestamp:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		ActorID:    "admin0000000001",
		Action:     action,
		EntityType: "mosque",
		EntityID:   "m00000000000001",
	}
}

// ---------------------------------------------------------------------------
// MultiShipper
// ---------------------------------------------------------------------------

func TestNewMultiShipper_Empty(t *testing.T) {
	ms, err := audit.NewMultiShipper(nil, nil)
	if err != nil {
		t.Fatalf("NewMultiShipper(nil) error: %v", err)
	}
	if ms.Len() != 0 {
		t.Errorf("Len() = %d, want 0", ms.Len())
	}
	if err := ms.Ship(context.Background(), testEntry("create")); err != nil {
		t.Errorf("Ship() on empty multi-shipper = %v, want nil", err)
	}
	if err := ms.Close(); err != nil {
		t.Errorf("Close() on empty multi-shipper = %v, want nil", err)
	}
}

func TestNewMultiShipper_ConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  audit.ShipperConfig
	}{
		{"unknown type", audit.ShipperConfig{Enabled: true, Type: "syslog"}},
		{"webhook without config", audit.ShipperConfig{Enabled: true, Type: "webhook"}},
		{"webhook without url", audit.ShipperConfig{Enabled: true, Type: "webhook", Webhook: &audit.WebhookConfig{}}},
		{"file without config", audit.ShipperConfig{Enabled: true, Type: "file"}},
		{"kafka without config", audit.ShipperConfig{Enabled: true, Type: "kafka"}},
		{"kafka without brokers", audit.ShipperConfig{Enabled: true, Type: "kafka", Kafka: &audit.KafkaConfig{Topic: "audit"}}},
		{"kafka without topic", audit.ShipperConfig{Enabled: true, Type: "kafka", Kafka: &audit.KafkaConfig{Brokers: []string{"localhost:9092"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := audit.NewMultiShipper([]audit.ShipperConfig{tt.cfg}, nil); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestNewMultiShipper_DisabledConfigSkipped(t *testing.T) {
	ms, err := audit.NewMultiShipper([]audit.ShipperConfig{
		{Enabled: false, Type: "webhook", Webhook: &audit.WebhookConfig{URL: "http://example.com"}},
		{Enabled: false, Type: "bogus"},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ms.Len() != 0 {
		t.Errorf("Len() = %d, want 0", ms.Len())
	}
}

func TestMultiShipper_ContinuesAfterShipperError(t *testing.T) {
	srv1 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv1.Close()

	var srv2Count atomic.Int32
	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		srv2Count.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv2.Close()

	ms, err := audit.NewMultiShipper([]audit.ShipperConfig{
		{Enabled: true, Type: "webhook", Webhook: &audit.WebhookConfig{URL: srv1.URL, Timeout: time.Second}},
		{Enabled: true, Type: "webhook", Webhook: &audit.WebhookConfig{URL: srv2.URL, Timeout: time.Second}},
	}, nil)
	if err != nil {
		t.Fatalf("NewMultiShipper error: %v", err)
	}
	defer ms.Close()

	if err := ms.Ship(context.Background(), testEntry("update")); err == nil {
		t.Error("Ship() = nil, want error from first shipper")
	}
	if got := srv2Count.Load(); got != 1 {
		t.Errorf("second shipper received %d calls, want 1", got)
	}
}

func TestShipperConfigs(t *testing.T) {
	got := audit.ShipperConfigs(config.AuditConfig{Shippers: []config.AuditShipperConfig{
		{Enabled: true, Type: "webhook", Webhook: &config.AuditWebhookConfig{URL: "https://siem.example.com", TimeoutSecs: 3, BatchSize: 10, FlushInterval: 2}},
		{Enabled: true, Type: "kafka", Kafka: &config.AuditKafkaConfig{Brokers: []string{"k1:9092"}, Topic: "audit"}},
	}})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Webhook.Timeout != 3*time.Second || got[0].Webhook.FlushInterval != 2*time.Second {
		t.Errorf("webhook durations = %v/%v", got[0].Webhook.Timeout, got[0].Webhook.FlushInterval)
	}
	if got[1].Kafka.Topic != "audit" || got[1].Webhook != nil {
		t.Errorf("kafka config = %+v", got[1])
	}
}

// ---------------------------------------------------------------------------
// WebhookShipper
// ---------------------------------------------------------------------------

func TestWebhookShipper_ShipEntry(t *testing.T) {
	var received bytes.Buffer
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		received.ReadFrom(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ws, err := audit.NewWebhookShipper(&audit.WebhookConfig{URL: srv.URL, Timeout: 5 * time.Second}, nil)
	if err != nil {
		t.Fatalf("NewWebhookShipper error: %v", err)
	}
	defer ws.Close()

	entry := testEntry("approve")
	entry.After = json.RawMessage(`{"status":"approved"}`)
	if err := ws.Ship(context.Background(), entry); err != nil {
		t.Fatalf("Ship() error: %v", err)
	}

	var decoded audit.Entry
	if err := json.Unmarshal(received.Bytes(), &decoded); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if decoded.Action != "approve" || decoded.EntityID != entry.EntityID {
		t.Errorf("decoded = %+v", decoded)
	}
	if string(decoded.After) != `{"status":"approved"}` {
		t.Errorf("After = %s", decoded.After)
	}
}

func TestWebhookShipper_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ws, _ := audit.NewWebhookShipper(&audit.WebhookConfig{URL: srv.URL, Timeout: 5 * time.Second}, nil)
	defer ws.Close()

	if err := ws.Ship(context.Background(), testEntry("delete")); err == nil {
		t.Error("Ship() = nil, want error for 502 response")
	}
}

func TestWebhookShipper_CustomHeader(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Auth-Token")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ws, _ := audit.NewWebhookShipper(&audit.WebhookConfig{
		URL:     srv.URL,
		Timeout: 5 * time.Second,
		Headers: map[string]string{"X-Auth-Token": "secret"},
	}, nil)
	defer ws.Close()

	if err := ws.Ship(context.Background(), testEntry("create")); err != nil {
		t.Fatalf("Ship() error: %v", err)
	}
	if gotToken != "secret" {
		t.Errorf("X-Auth-Token = %q, want secret", gotToken)
	}
}

func TestWebhookShipper_CloseTwice(t *testing.T) {
	ws, err := audit.NewWebhookShipper(&audit.WebhookConfig{URL: "http://localhost:0", Timeout: time.Second, BatchSize: 5}, nil)
	if err != nil {
		t.Fatalf("NewWebhookShipper: %v", err)
	}
	if err := ws.Close(); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
	ws.Close()
}

func TestWebhookShipper_BatchFlushOnSize(t *testing.T) {
	got := make(chan []audit.Entry, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch []audit.Entry
		json.NewDecoder(r.Body).Decode(&batch)
		w.WriteHeader(http.StatusOK)
		got <- batch
	}))
	defer srv.Close()

	ws, err := audit.NewWebhookShipper(&audit.WebhookConfig{
		URL:           srv.URL,
		Timeout:       5 * time.Second,
		BatchSize:     2,
		FlushInterval: time.Minute,
	}, nil)
	if err != nil {
		t.Fatalf("NewWebhookShipper error: %v", err)
	}
	defer ws.Close()

	ws.Ship(context.Background(), testEntry("create"))
	ws.Ship(context.Background(), testEntry("update"))

	select {
	case batch := <-got:
		if len(batch) != 2 {
			t.Errorf("batch size = %d, want 2", len(batch))
		}
	case <-time.After(3 * time.Second):
		t.Error("timed out waiting for batch to be sent to server")
	}
}

func TestWebhookShipper_BatchFlushOnInterval(t *testing.T) {
	done := make(chan struct{}, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		done <- struct{}{}
	}))
	defer srv.Close()

	ws, _ := audit.NewWebhookShipper(&audit.WebhookConfig{
		URL:           srv.URL,
		Timeout:       5 * time.Second,
		BatchSize:     100,
		FlushInterval: 50 * time.Millisecond,
	}, nil)
	defer ws.Close()

	ws.Ship(context.Background(), testEntry("reject"))

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Error("timed out waiting for interval flush")
	}
}

func TestWebhookShipper_BatchFlushOnClose(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ws, _ := audit.NewWebhookShipper(&audit.WebhookConfig{
		URL:           srv.URL,
		Timeout:       5 * time.Second,
		BatchSize:     100,
		FlushInterval: time.Minute,
	}, nil)

	ws.Ship(context.Background(), testEntry("delete"))
	// Close drains the queue and flushes before returning.
	ws.Close()

	if got := calls.Load(); got != 1 {
		t.Errorf("server received %d requests, want 1", got)
	}
}

// ---------------------------------------------------------------------------
// FileShipper
// ---------------------------------------------------------------------------

func TestFileShipper_ShipEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	fs, err := audit.NewFileShipper(&audit.FileConfig{Path: path}, nil)
	if err != nil {
		t.Fatalf("NewFileShipper error: %v", err)
	}
	for _, action := range []string{"create", "update", "delete"} {
		if err := fs.Ship(context.Background(), testEntry(action)); err != nil {
			t.Fatalf("Ship(%s) error: %v", action, err)
		}
	}
	if err := fs.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	var actions []string
	for scanner.Scan() {
		var e audit.Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		actions = append(actions, e.Action)
	}
	if len(actions) != 3 || actions[0] != "create" || actions[2] != "delete" {
		t.Errorf("actions = %v", actions)
	}
}

func TestNewFileShipper_InvalidPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodir", "audit.log")
	if _, err := audit.NewFileShipper(&audit.FileConfig{Path: path}, nil); err == nil {
		t.Error("expected error for path with nonexistent parent, got nil")
	}
}

func TestFileShipper_Rotate(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "audit.log")

	// Just over 1MB so the next Ship rotates.
	if err := os.WriteFile(logPath, make([]byte, 1*1024*1024+1), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	fs, err := audit.NewFileShipper(&audit.FileConfig{Path: logPath, MaxSizeMB: 1, MaxBackups: 2}, nil)
	if err != nil {
		t.Fatalf("NewFileShipper: %v", err)
	}
	defer fs.Close()

	if err := fs.Ship(context.Background(), testEntry("after-rotate")); err != nil {
		t.Fatalf("Ship() error: %v", err)
	}

	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatalf("log file missing after rotation: %v", err)
	}
	if info.Size() > 1024 {
		t.Errorf("live file size = %d, want a single entry", info.Size())
	}
	if _, err := os.Stat(logPath + ".1"); err != nil {
		t.Errorf("backup .1 missing after rotation: %v", err)
	}
}
