// Package main provides the skill content importer: it loads YAML skill
// definitions, validates them, and upserts them into the database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aethelgard/server/internal/config"
	"github.com/aethelgard/server/internal/game/skill"
	"github.com/aethelgard/server/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	skillsDir := flag.String("skills", "content/skills", "path to skill YAML files directory")
	dryRun := flag.Bool("dry-run", false, "validate content without writing to the database")
	flag.Parse()

	skills, err := skill.LoadSkillsFromDir(*skillsDir)
	if err != nil {
		log.Fatalf("loading skills: %v", err)
	}
	if len(skills) == 0 {
		fmt.Fprintf(os.Stderr, "no skills found in %s\n", *skillsDir)
		os.Exit(1)
	}

	if *dryRun {
		fmt.Printf("validated %d skills in %s\n", len(skills), time.Since(start).Round(time.Millisecond))
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer pool.Close()

	repo := postgres.NewSkillRepository(pool.DB())
	for _, s := range skills {
		if err := repo.Upsert(ctx, s); err != nil {
			log.Fatalf("importing skill %s: %v", s.ID, err)
		}
	}

	fmt.Printf("imported %d skills in %s\n", len(skills), time.Since(start).Round(time.Millisecond))
}
