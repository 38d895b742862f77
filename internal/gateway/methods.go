package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/haasonsaas/stark/internal/agent"
	"github.com/haasonsaas/stark/internal/skills"
	"github.com/haasonsaas/stark/internal/storage"
	"github.com/haasonsaas/stark/internal/tools"
	"github.com/haasonsaas/stark/pkg/models"
)

// RegisterCoreMethods binds the gateway's read-only snapshot methods and
// control operations (§4.9) against the given components. Any component
// left nil simply has its methods omitted.
func RegisterCoreMethods(r *RPCRouter, store *storage.Store, executor *tools.Executor, skillMgr *skills.Manager, supervisor *agent.Supervisor) {
	if store != nil && store.Sessions != nil {
		r.Register("sessions.list", sessionsListHandler(store))
	}
	if store != nil && store.Memories != nil {
		r.Register("memory.stats", memoryStatsHandler(store))
	}
	if store != nil && store.ToolAudit != nil {
		r.Register("tool.history", toolHistoryHandler(store))
	}
	if executor != nil {
		r.Register("tool.metrics", toolMetricsHandler(executor))
	}
	if supervisor != nil {
		r.Register("session.cancel", sessionCancelHandler(supervisor))
	}
	if skillMgr != nil {
		r.Register("skill.reload", skillReloadHandler(skillMgr))
	}
}

type sessionsListParams struct {
	Since string `json:"since,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

func sessionsListHandler(store *storage.Store) RPCHandler {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		var p sessionsListParams
		if len(params) > 0 {
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, fmt.Errorf("decode sessions.list params: %w", err)
			}
		}
		limit := p.Limit
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		since := time.Unix(0, 0)
		if p.Since != "" {
			t, err := time.Parse(time.RFC3339, p.Since)
			if err != nil {
				return nil, fmt.Errorf("decode sessions.list since: %w", err)
			}
			since = t
		}
		list, err := store.Sessions.ListActive(ctx, since, limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"sessions": list}, nil
	}
}

type memoryStatsParams struct {
	IdentityID string             `json:"identity_id"`
	Types      []models.MemoryType `json:"types,omitempty"`
	Limit      int                `json:"limit,omitempty"`
}

func memoryStatsHandler(store *storage.Store) RPCHandler {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		var p memoryStatsParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decode memory.stats params: %w", err)
		}
		if p.IdentityID == "" {
			return nil, fmt.Errorf("memory.stats: identity_id is required")
		}
		limit := p.Limit
		if limit <= 0 || limit > 500 {
			limit = 100
		}
		list, err := store.Memories.ListByIdentity(ctx, p.IdentityID, p.Types, limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"count": len(list), "memories": list}, nil
	}
}

type toolHistoryParams struct {
	SessionID string `json:"session_id"`
	Limit     int    `json:"limit,omitempty"`
}

func toolHistoryHandler(store *storage.Store) RPCHandler {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		var p toolHistoryParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decode tool.history params: %w", err)
		}
		if p.SessionID == "" {
			return nil, fmt.Errorf("tool.history: session_id is required")
		}
		limit := p.Limit
		if limit <= 0 || limit > 500 {
			limit = 100
		}
		list, err := store.ToolAudit.ListBySession(ctx, p.SessionID, limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"records": list}, nil
	}
}

func toolMetricsHandler(executor *tools.Executor) RPCHandler {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		return executor.Metrics(), nil
	}
}

type sessionCancelParams struct {
	SessionID string `json:"session_id"`
}

func sessionCancelHandler(supervisor *agent.Supervisor) RPCHandler {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		var p sessionCancelParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decode session.cancel params: %w", err)
		}
		if p.SessionID == "" {
			return nil, fmt.Errorf("session.cancel: session_id is required")
		}
		supervisor.Cancel(p.SessionID)
		return map[string]bool{"cancelled": true}, nil
	}
}

func skillReloadHandler(skillMgr *skills.Manager) RPCHandler {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		if err := skillMgr.Reload(ctx); err != nil {
			return nil, err
		}
		return map[string]any{"skills": skillMgr.Index()}, nil
	}
}
