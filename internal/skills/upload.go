package skills

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/haasonsaas/stark/pkg/models"
)

// InstallArchive validates and stages a skill archive uploaded via the admin
// API, then atomically swaps it into the managed source directory (§4.4).
// The archive must contain exactly one manifest at its top level; entries
// that would escape the staging directory are rejected rather than silently skipped,
// since a crafted upload is an adversarial input, not a developer typo.
func InstallArchive(data []byte, managedRoot string) (*ParseResult, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	manifestEntries := 0
	for _, f := range zr.File {
		cleaned := filepath.Clean(f.Name)
		if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
			return nil, fmt.Errorf("archive entry escapes destination: %q", f.Name)
		}
		if cleaned == ManifestFilename {
			manifestEntries++
		}
	}
	if manifestEntries != 1 {
		return nil, fmt.Errorf("archive must contain exactly one %s at top level, found %d", ManifestFilename, manifestEntries)
	}

	stageDir, err := os.MkdirTemp(managedRoot, ".upload-")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(stageDir)

	for _, f := range zr.File {
		target := filepath.Join(stageDir, filepath.Clean(f.Name))
		if !strings.HasPrefix(target, stageDir+string(os.PathSeparator)) && target != stageDir {
			return nil, fmt.Errorf("archive entry escapes destination: %q", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, fmt.Errorf("create directory: %w", err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, fmt.Errorf("create parent directory: %w", err)
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open archive entry: %w", err)
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("create staged file: %w", err)
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		out.Close()
		if copyErr != nil {
			return nil, fmt.Errorf("extract archive entry: %w", copyErr)
		}
	}

	manifestPath := filepath.Join(stageDir, ManifestFilename)
	result, err := ParseManifestFile(manifestPath, models.SkillSourceManaged)
	if err != nil {
		return nil, fmt.Errorf("parse uploaded manifest: %w", err)
	}

	finalDir := filepath.Join(managedRoot, result.Skill.Name)
	if err := os.RemoveAll(finalDir); err != nil {
		return nil, fmt.Errorf("clear previous managed skill: %w", err)
	}
	if err := os.Rename(stageDir, finalDir); err != nil {
		return nil, fmt.Errorf("swap staged skill into place: %w", err)
	}
	result.Skill.Path = finalDir

	return result, nil
}
