package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/stark/internal/config"
	"github.com/haasonsaas/stark/internal/skills"
	"github.com/haasonsaas/stark/internal/storage"
	"github.com/haasonsaas/stark/internal/tools"
)

func runSkillsList(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := storage.NewPostgresStore(cfg.Database.URL, nil)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer store.Close()

	registry := tools.NewRegistry()
	skillMgr := skills.NewManager(skills.Roots{
		Bundled: cfg.Skills.BundledDir,
		Managed: cfg.Skills.ManagedDir,
	}, store.Skills, skills.RegistryResolver{Registry: registry})

	if err := skillMgr.Reload(cmd.Context()); err != nil {
		return fmt.Errorf("load skills: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, entry := range skillMgr.Index() {
		fmt.Fprintf(out, "%s\t%s\n", entry.Name, entry.Description)
	}
	return nil
}
