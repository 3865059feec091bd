// Package main provides a combat simulation harness for development: it
// creates two throwaway characters, runs a full round through the
// orchestrator against a live database, and prints the resolution.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/aethelgard/server/internal/config"
	"github.com/aethelgard/server/internal/game/character"
	"github.com/aethelgard/server/internal/game/combat"
	"github.com/aethelgard/server/internal/game/dice"
	"github.com/aethelgard/server/internal/game/skill"
	"github.com/aethelgard/server/internal/observability"
	"github.com/aethelgard/server/internal/storage/postgres"
)

// consoleNarrator prints resolution lines to stdout.
type consoleNarrator struct{}

func (consoleNarrator) RoundResolved(_ context.Context, round *combat.Round, res *combat.Resolution) error {
	fmt.Printf("--- round %d resolved: %d clashes, %d independent ---\n",
		res.RoundNumber, res.ClashCount, res.IndependentCount)
	for _, clash := range res.Clashes {
		fmt.Printf("  clash: %s\n", clash.Outcome.Resolution)
	}
	for _, ind := range res.Independent {
		fmt.Printf("  %s\n", ind.Narrative)
	}
	return nil
}

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	location := flag.String("location", "simulation_arena", "location ID for the simulated round")
	rounds := flag.Int("rounds", 1, "number of rounds to simulate")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer pool.Close()
	db := pool.DB()

	chars := postgres.NewCharacterRepository(db)
	skills := postgres.NewSkillRepository(db)

	orch := combat.NewOrchestrator(
		chars,
		skills,
		postgres.NewUsageRepository(db),
		postgres.NewRoundRepository(db),
		postgres.NewSessionRepository(db),
		consoleNarrator{},
		dice.NewLoggedRoller(dice.NewCryptoSource(), logger),
		logger,
	)

	strike := seedSkill(ctx, skills, &skill.Skill{
		ID: "sim_strike", Name: "Sim Strike", BasePower: 10, AetherCost: 5,
		Target: skill.TargetOther, ScalingStats: []string{"might"},
		Type: "attack", BranchID: "sim_blades",
	})
	riposte := seedSkill(ctx, skills, &skill.Skill{
		ID: "sim_riposte", Name: "Sim Riposte", BasePower: 8, AetherCost: 5,
		Target: skill.TargetOther, ScalingStats: []string{"finesse"},
		Type: "counter", BranchID: "sim_blades",
	})

	alice := seedCharacter(ctx, chars, "Sim Alice", *location, map[string]int{
		character.StatAether: 1000, "might": 14, "finesse": 10,
	})
	bram := seedCharacter(ctx, chars, "Sim Bram", *location, map[string]int{
		character.StatAether: 1000, "might": 10, "finesse": 14,
	})

	for i := 0; i < *rounds; i++ {
		round, err := orch.CreateRound(ctx, *location, alice.UserID, nil, nil)
		if err != nil {
			log.Fatalf("creating round: %v", err)
		}

		if _, err := orch.SubmitAction(ctx, combat.SubmitParams{
			RoundID: round.ID, CharacterID: alice.ID, SkillID: strike.ID, TargetID: &bram.ID,
		}); err != nil {
			log.Fatalf("submitting attack: %v", err)
		}
		if _, err := orch.SubmitAction(ctx, combat.SubmitParams{
			RoundID: round.ID, CharacterID: bram.ID, SkillID: riposte.ID, TargetID: &alice.ID,
		}); err != nil {
			log.Fatalf("submitting counter: %v", err)
		}

		res, err := orch.ResolveRound(ctx, round.ID, alice.UserID)
		if err != nil {
			log.Fatalf("resolving round: %v", err)
		}

		payload, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			log.Fatalf("encoding resolution: %v", err)
		}
		fmt.Fprintln(os.Stdout, string(payload))
	}

	history, err := orch.ResolvedRounds(ctx, *location, cfg.Combat.HistoryLimit)
	if err != nil {
		log.Fatalf("listing resolved rounds: %v", err)
	}
	fmt.Printf("location %s has %d resolved round(s) on record (limit %d)\n",
		*location, len(history), cfg.Combat.HistoryLimit)

	fmt.Printf("simulated %d round(s) in %s\n", *rounds, time.Since(start).Round(time.Millisecond))
}

func seedSkill(ctx context.Context, repo *postgres.SkillRepository, s *skill.Skill) *skill.Skill {
	if err := repo.Upsert(ctx, s); err != nil {
		log.Fatalf("seeding skill %s: %v", s.ID, err)
	}
	return s
}

func seedCharacter(ctx context.Context, repo *postgres.CharacterRepository, name, locationID string, stats map[string]int) *character.Character {
	// Fresh user per run keeps reruns from tripping the (user, name) unique
	// constraint.
	c, err := repo.Create(ctx, &character.Character{
		UserID:     uuid.NewString(),
		Name:       fmt.Sprintf("%s %d", name, time.Now().Unix()),
		LocationID: locationID,
		Active:     true,
		Stats:      stats,
	})
	if err != nil {
		log.Fatalf("seeding character %s: %v", name, err)
	}
	return c
}
