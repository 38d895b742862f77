package builtin

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

type fakeStatusProvider struct {
	sessions int
	uptime   time.Duration
}

func (f *fakeStatusProvider) ActiveSessions() int      { return f.sessions }
func (f *fakeStatusProvider) Uptime() time.Duration    { return f.uptime }

func TestSystemStatusReportsProviderValues(t *testing.T) {
	tool := NewSystemStatusTool(&fakeStatusProvider{sessions: 3, uptime: 90 * time.Second})

	result, err := tool.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var status struct {
		ActiveSessions int   `json:"active_sessions"`
		UptimeSeconds  int64 `json:"uptime_seconds"`
		Goroutines     int   `json:"goroutines"`
	}
	if err := json.Unmarshal([]byte(result.Content), &status); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if status.ActiveSessions != 3 || status.UptimeSeconds != 90 {
		t.Fatalf("status = %+v", status)
	}
	if status.Goroutines == 0 {
		t.Fatal("expected non-zero goroutine count")
	}
}

func TestSystemStatusWithoutProvider(t *testing.T) {
	tool := NewSystemStatusTool(nil)
	if _, err := tool.Execute(context.Background(), nil); err != nil {
		t.Fatalf("execute: %v", err)
	}
}
