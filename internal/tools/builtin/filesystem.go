// Package builtin implements the stock tools shipped with every starkd
// install, one or more per models.ToolGroup, adapted from the workspace
// file, shell, web, messaging, system, memory, and web3 tools of the
// pattern this runtime is built on.
package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/haasonsaas/stark/internal/tools"
	"github.com/haasonsaas/stark/pkg/models"
)

// PathResolver resolves a workspace-relative path to an absolute path,
// rejecting anything that escapes the workspace root.
type PathResolver struct {
	Root string
}

// Resolve returns an absolute, cleaned path guaranteed to stay within Root.
func (r PathResolver) Resolve(path string) (string, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return "", fmt.Errorf("path is required")
	}
	root := strings.TrimSpace(r.Root)
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}
	var target string
	if filepath.IsAbs(clean) {
		target = filepath.Clean(clean)
	} else {
		target = filepath.Join(rootAbs, clean)
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	rel, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes workspace")
	}
	return targetAbs, nil
}

const defaultMaxReadBytes = 200_000

// ReadFileTool reads a file from the workspace with an offset and a byte cap.
type ReadFileTool struct {
	resolver     PathResolver
	maxReadBytes int
}

// NewReadFileTool builds a read_file tool scoped to root.
func NewReadFileTool(root string, maxReadBytes int) *ReadFileTool {
	if maxReadBytes <= 0 {
		maxReadBytes = defaultMaxReadBytes
	}
	return &ReadFileTool{resolver: PathResolver{Root: root}, maxReadBytes: maxReadBytes}
}

func (t *ReadFileTool) Spec() models.ToolSpec {
	return models.ToolSpec{
		Name:        "read_file",
		Group:       models.GroupFilesystem,
		Description: "Read a file from the workspace with optional offset and byte limit.",
		Enabled:     true,
		Timeout:     10 * time.Second,
		SideEffectClass: models.EffectPureRead,
		ArgumentSchema: []models.ArgumentField{
			{Name: "path", Type: "string", Required: true},
			{Name: "offset", Type: "integer"},
			{Name: "max_bytes", Type: "integer"},
		},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		Path     string `json:"path"`
		Offset   int64  `json:"offset"`
		MaxBytes int    `json:"max_bytes"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(resolved)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	if input.Offset > 0 {
		if _, err := f.Seek(input.Offset, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seek file: %w", err)
		}
	}
	limit := t.maxReadBytes
	if input.MaxBytes > 0 && input.MaxBytes < limit {
		limit = input.MaxBytes
	}
	buf := make([]byte, limit)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return &tools.Result{Content: string(buf[:n])}, nil
}

// WriteFileTool writes or appends content to a file in the workspace.
type WriteFileTool struct {
	resolver PathResolver
}

// NewWriteFileTool builds a write_file tool scoped to root.
func NewWriteFileTool(root string) *WriteFileTool {
	return &WriteFileTool{resolver: PathResolver{Root: root}}
}

func (t *WriteFileTool) Spec() models.ToolSpec {
	return models.ToolSpec{
		Name:        "write_file",
		Group:       models.GroupFilesystem,
		Description: "Write content to a file in the workspace (overwrites by default).",
		Enabled:     true,
		Timeout:     10 * time.Second,
		SideEffectClass: models.EffectLocalWrite,
		ArgumentSchema: []models.ArgumentField{
			{Name: "path", Type: "string", Required: true},
			{Name: "content", Type: "string", Required: true},
			{Name: "append", Type: "boolean"},
		},
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		Path    string `json:"path"`
		Content string `json:"content"`
		Append  bool   `json:"append"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	flags := os.O_CREATE | os.O_WRONLY
	if input.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(resolved, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(input.Content); err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}
	return &tools.Result{Content: fmt.Sprintf("wrote %d bytes to %s", len(input.Content), input.Path)}, nil
}
