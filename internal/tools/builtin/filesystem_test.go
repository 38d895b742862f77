package builtin

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestPathResolverRejectsEscape(t *testing.T) {
	root := t.TempDir()
	resolver := PathResolver{Root: root}
	if _, err := resolver.Resolve("../outside.txt"); err == nil {
		t.Fatal("expected escape to be rejected")
	}
}

func TestReadWriteFile(t *testing.T) {
	root := t.TempDir()
	writeTool := NewWriteFileTool(root)
	readTool := NewReadFileTool(root, 0)

	writeArgs, _ := json.Marshal(map[string]any{"path": "notes.txt", "content": "hello world"})
	if _, err := writeTool.Execute(context.Background(), writeArgs); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	readArgs, _ := json.Marshal(map[string]any{"path": "notes.txt"})
	result, err := readTool.Execute(context.Background(), readArgs)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.Contains(result.Content, "hello world") {
		t.Fatalf("content = %q, want to contain 'hello world'", result.Content)
	}
}

func TestWriteFileAppend(t *testing.T) {
	root := t.TempDir()
	writeTool := NewWriteFileTool(root)
	readTool := NewReadFileTool(root, 0)

	first, _ := json.Marshal(map[string]any{"path": "log.txt", "content": "a"})
	if _, err := writeTool.Execute(context.Background(), first); err != nil {
		t.Fatalf("first write: %v", err)
	}
	second, _ := json.Marshal(map[string]any{"path": "log.txt", "content": "b", "append": true})
	if _, err := writeTool.Execute(context.Background(), second); err != nil {
		t.Fatalf("second write: %v", err)
	}
	readArgs, _ := json.Marshal(map[string]any{"path": "log.txt"})
	result, err := readTool.Execute(context.Background(), readArgs)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if result.Content != "ab" {
		t.Fatalf("content = %q, want ab", result.Content)
	}
}

func TestReadFileRespectsMaxBytes(t *testing.T) {
	root := t.TempDir()
	writeTool := NewWriteFileTool(root)
	readTool := NewReadFileTool(root, 3)

	writeArgs, _ := json.Marshal(map[string]any{"path": "big.txt", "content": "0123456789"})
	if _, err := writeTool.Execute(context.Background(), writeArgs); err != nil {
		t.Fatalf("write: %v", err)
	}
	readArgs, _ := json.Marshal(map[string]any{"path": "big.txt"})
	result, err := readTool.Execute(context.Background(), readArgs)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(result.Content) != 3 {
		t.Fatalf("content length = %d, want 3", len(result.Content))
	}
}

func TestReadFileMissingPath(t *testing.T) {
	tool := NewReadFileTool(t.TempDir(), 0)
	args, _ := json.Marshal(map[string]any{})
	if _, err := tool.Execute(context.Background(), args); err == nil {
		t.Fatal("expected error for missing path")
	}
}
