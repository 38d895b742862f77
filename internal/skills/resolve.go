package skills

import (
	"fmt"
	"os/exec"
	"sync"

	"github.com/haasonsaas/stark/internal/tools"
	"github.com/haasonsaas/stark/pkg/models"
)

// ToolResolver is the narrow seam into the Tool Registry a skill needs to
// check whether its required_tools exist and are enabled. A thin adapter
// over *tools.Registry satisfies this without internal/skills importing
// internal/tools (and its policy subpackage) directly.
type ToolResolver interface {
	Get(name string) (models.ToolSpec, bool)
}

// RegistryResolver adapts *tools.Registry to ToolResolver.
type RegistryResolver struct {
	Registry *tools.Registry
}

func (r RegistryResolver) Get(name string) (models.ToolSpec, bool) {
	t, ok := r.Registry.Get(name)
	if !ok {
		return models.ToolSpec{}, false
	}
	return t.Spec(), true
}

// BinaryProber checks whether a named executable is present on $PATH,
// caching results so repeated resolvability checks don't re-stat PATH.
type BinaryProber struct {
	mu    sync.Mutex
	cache map[string]bool
}

// NewBinaryProber returns a BinaryProber with an empty cache.
func NewBinaryProber() *BinaryProber {
	return &BinaryProber{cache: make(map[string]bool)}
}

// Has reports whether name resolves via exec.LookPath.
func (p *BinaryProber) Has(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.cache[name]; ok {
		return v
	}
	_, err := exec.LookPath(name)
	found := err == nil
	p.cache[name] = found
	return found
}

// Resolve sets Skill.Resolvable and returns the reason the skill is
// unresolved, or "" if it resolves. A skill is selectable only when every
// required tool resolves (exists and is enabled) and every required binary
// is present on the host (§3).
func Resolve(skill *models.Skill, tools ToolResolver, bins *BinaryProber) string {
	for _, name := range skill.RequiredTools {
		spec, ok := tools.Get(name)
		if !ok {
			skill.Resolvable = false
			return fmt.Sprintf("required tool %q is not registered", name)
		}
		if !spec.Enabled {
			skill.Resolvable = false
			return fmt.Sprintf("required tool %q is disabled", name)
		}
	}
	for _, bin := range skill.RequiredBinaries {
		if !bins.Has(bin) {
			skill.Resolvable = false
			return fmt.Sprintf("required binary %q not found on PATH", bin)
		}
	}
	skill.Resolvable = true
	return ""
}
