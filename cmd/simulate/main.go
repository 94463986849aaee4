// Command simulate runs the endowment model headless for a fixed number
// of weeks and prints the final KPI summary as JSON. Useful for
// parameter sweeps and regression comparisons; with -log it also writes
// the full compressed step log.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	persistlog "endowsim/internal/persistence/log"
	"endowsim/internal/sim/archetypes"
	"endowsim/internal/sim/model"
	"endowsim/internal/sim/tuning"
)

func main() {
	var (
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		weeks      = flag.Int("weeks", 260, "number of weeks to simulate")
		seed       = flag.Int64("seed", 1337, "rng seed")

		holders       = flag.Int("holders", 100, "initial holder count")
		proposals     = flag.Int("proposals", 10, "initial proposal count")
		participation = flag.Float64("participation", 0.30, "initial participation rate")
		burnRate      = flag.Float64("burn_rate", 0.02, "rsc burned per deploy, fraction of holdings")
		successRate   = flag.Float64("success_rate", 0.80, "funded proposal success probability")
		thresholdMean = flag.Float64("yield_threshold_mean", 0.08, "mean exit yield threshold")

		logDir  = flag.String("log", "", "write compressed step log under this directory (empty to disable)")
		history = flag.Bool("history", false, "print full week-by-week history instead of the final summary")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[simulate] ", log.LstdFlags)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	cats, err := archetypes.Load(filepath.Join(*configDir, "archetypes.json"))
	if err != nil {
		logger.Fatalf("load archetypes: %v", err)
	}

	cfg := model.DefaultConfig()
	cfg.Seed = *seed
	cfg.NumHolders = *holders
	cfg.NumProposals = *proposals
	cfg.InitialParticipationRate = *participation
	cfg.BurnRate = *burnRate
	cfg.SuccessRate = *successRate
	cfg.YieldThresholdMean = *thresholdMean

	m, err := model.New(cfg, tune, cats)
	if err != nil {
		logger.Fatalf("new model: %v", err)
	}

	if *logDir != "" {
		runID := m.StateDigest()[:12]
		sl := persistlog.NewStepLogger(*logDir, runID)
		defer sl.Close()
		m.SetStepLogger(sl)
		logger.Printf("step log: %s/runs/%s.jsonl.zst", *logDir, runID)
	}

	m.Run(*weeks)
	logger.Printf("simulated %d weeks, final digest %s", *weeks, m.StateDigest()[:16])

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if *history {
		if err := enc.Encode(m.History()); err != nil {
			logger.Fatalf("encode history: %v", err)
		}
		return
	}
	if err := enc.Encode(m.Metrics()); err != nil {
		logger.Fatalf("encode metrics: %v", err)
	}
}
