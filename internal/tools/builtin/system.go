package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/haasonsaas/stark/internal/tools"
	"github.com/haasonsaas/stark/pkg/models"
)

// StatusProvider reports the dispatcher's own health, decoupling this tool
// from the agent package to avoid an import cycle.
type StatusProvider interface {
	ActiveSessions() int
	Uptime() time.Duration
}

// SystemStatusTool reports runtime health: active sessions, uptime, and
// Go runtime stats.
type SystemStatusTool struct {
	provider StatusProvider
}

// NewSystemStatusTool builds a system_status tool reporting from provider.
func NewSystemStatusTool(provider StatusProvider) *SystemStatusTool {
	return &SystemStatusTool{provider: provider}
}

func (t *SystemStatusTool) Spec() models.ToolSpec {
	return models.ToolSpec{
		Name:        "system_status",
		Group:       models.GroupSystem,
		Description: "Report dispatcher health: active sessions, uptime, goroutine and memory stats.",
		Enabled:     true,
		Timeout:     5 * time.Second,
		SideEffectClass: models.EffectPureRead,
	}
}

func (t *SystemStatusTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	status := struct {
		ActiveSessions int    `json:"active_sessions"`
		UptimeSeconds  int64  `json:"uptime_seconds"`
		Goroutines     int    `json:"goroutines"`
		HeapAllocBytes uint64 `json:"heap_alloc_bytes"`
	}{
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: mem.HeapAlloc,
	}
	if t.provider != nil {
		status.ActiveSessions = t.provider.ActiveSessions()
		status.UptimeSeconds = int64(t.provider.Uptime().Seconds())
	}
	payload, err := json.Marshal(status)
	if err != nil {
		return nil, fmt.Errorf("marshal status: %w", err)
	}
	return &tools.Result{Content: string(payload)}, nil
}
