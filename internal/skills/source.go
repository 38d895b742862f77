package skills

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/haasonsaas/stark/pkg/models"
)

// Source discovers skill manifests from one of the three priority tiers
// named in §2.4: bundled, managed, workspace.
type Source interface {
	Tier() models.SkillSource
	Root() string
	Discover(ctx context.Context) ([]*ParseResult, error)
}

// DirSource scans immediate subdirectories of a root for a SKILL.md file,
// one skill per subdirectory. Grounded on the teacher's LocalSource.
type DirSource struct {
	root   string
	tier   models.SkillSource
	logger *slog.Logger
}

// NewDirSource creates a directory-backed discovery source for tier. root
// may not exist yet (e.g. a managed dir before the first upload); Discover
// then returns no skills rather than an error.
func NewDirSource(root string, tier models.SkillSource) *DirSource {
	return &DirSource{
		root:   root,
		tier:   tier,
		logger: slog.Default().With("component", "skills", "source", string(tier)),
	}
}

func (s *DirSource) Tier() models.SkillSource { return s.tier }
func (s *DirSource) Root() string             { return s.root }

func (s *DirSource) Discover(ctx context.Context) ([]*ParseResult, error) {
	if s.root == "" {
		return nil, nil
	}
	info, err := os.Stat(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", s.root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", s.root)
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", s.root, err)
	}

	var results []*ParseResult
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}
		if !entry.IsDir() {
			continue
		}
		manifestPath := filepath.Join(s.root, entry.Name(), ManifestFilename)
		if _, err := os.Stat(manifestPath); os.IsNotExist(err) {
			continue
		}
		res, err := ParseManifestFile(manifestPath, s.tier)
		if err != nil {
			s.logger.Warn("failed to parse skill manifest", "path", manifestPath, "error", err)
			continue
		}
		for _, w := range res.Warnings {
			s.logger.Warn("skill manifest warning", "skill", res.Skill.Name, "warning", w)
		}
		results = append(results, res)
	}
	return results, nil
}
