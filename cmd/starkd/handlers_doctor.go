package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/stark/internal/config"
	"github.com/haasonsaas/stark/internal/skills"
	"github.com/haasonsaas/stark/internal/storage"
	"github.com/haasonsaas/stark/internal/tools"
)

// runDoctor is a narrower version of the teacher's doctor command: this
// runtime has no plugin system, workspace file set, or channel policy
// schema to validate, so there is nothing for those checks to inspect.
// What is load-bearing here is config parse, database reachability, a
// clean skill reload, and a configured default llm provider, so that is
// what gets checked.
func runDoctor(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(out, "[FAIL] config: %v\n", err)
		return err
	}
	fmt.Fprintf(out, "[ OK ] config loaded from %s\n", configPath)

	store, err := storage.NewPostgresStore(cfg.Database.URL, nil)
	if err != nil {
		fmt.Fprintf(out, "[FAIL] database: %v\n", err)
		return err
	}
	defer store.Close()
	fmt.Fprintln(out, "[ OK ] database reachable")

	registry := tools.NewRegistry()
	skillMgr := skills.NewManager(skills.Roots{
		Bundled: cfg.Skills.BundledDir,
		Managed: cfg.Skills.ManagedDir,
	}, store.Skills, skills.RegistryResolver{Registry: registry})
	if err := skillMgr.Reload(cmd.Context()); err != nil {
		fmt.Fprintf(out, "[FAIL] skill index: %v\n", err)
		return err
	}
	fmt.Fprintf(out, "[ OK ] skill index loaded (%d skills)\n", len(skillMgr.List()))

	if _, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; !ok {
		fmt.Fprintf(out, "[FAIL] no llm provider configured for default_provider %q\n", cfg.LLM.DefaultProvider)
		return fmt.Errorf("missing llm provider config for %q", cfg.LLM.DefaultProvider)
	}
	fmt.Fprintf(out, "[ OK ] llm provider %q configured\n", cfg.LLM.DefaultProvider)

	return nil
}
