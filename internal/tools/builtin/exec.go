package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/haasonsaas/stark/internal/tools"
	"github.com/haasonsaas/stark/pkg/models"
)

// RunShellTool runs a shell command in the workspace. It is disabled by
// default; operators opt in via the exec tool group.
type RunShellTool struct {
	workdir        string
	defaultTimeout time.Duration
	maxOutputBytes int
}

// NewRunShellTool builds a run_shell tool scoped to workdir.
func NewRunShellTool(workdir string) *RunShellTool {
	return &RunShellTool{workdir: workdir, defaultTimeout: 30 * time.Second, maxOutputBytes: 64_000}
}

func (t *RunShellTool) Spec() models.ToolSpec {
	return models.ToolSpec{
		Name:        "run_shell",
		Group:       models.GroupExec,
		Description: "Run a shell command in the workspace and return its combined output.",
		Enabled:     true,
		Timeout:     t.defaultTimeout,
		SideEffectClass: models.EffectLocalWrite,
		ArgumentSchema: []models.ArgumentField{
			{Name: "command", Type: "string", Required: true},
			{Name: "timeout_seconds", Type: "integer"},
		},
	}
}

func (t *RunShellTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		Command        string `json:"command"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if input.Command == "" {
		return nil, fmt.Errorf("command is required")
	}

	runCtx := ctx
	if input.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(input.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", input.Command)
	cmd.Dir = t.workdir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()

	output := out.String()
	if len(output) > t.maxOutputBytes {
		output = output[:t.maxOutputBytes] + "\n...(truncated)"
	}

	if runErr != nil {
		return &tools.Result{Content: fmt.Sprintf("%s\nexit error: %v", output, runErr), IsError: true}, nil
	}
	return &tools.Result{Content: output}, nil
}
