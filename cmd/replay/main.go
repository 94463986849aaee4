// Command replay verifies a recorded run log. It reads a compressed
// step log, rebuilds the model from the same parameters, advances it
// week by week, and compares the state digest at every step. Any
// divergence means the build is no longer bit-compatible with the one
// that produced the log.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"endowsim/internal/sim/archetypes"
	"endowsim/internal/sim/model"
	"endowsim/internal/sim/tuning"
)

func main() {
	var (
		logPath    = flag.String("log", "", "path to run log (.jsonl.zst)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")

		seed          = flag.Int64("seed", 1337, "rng seed the run was recorded with")
		holders       = flag.Int("holders", 100, "initial holder count")
		proposals     = flag.Int("proposals", 10, "initial proposal count")
		participation = flag.Float64("participation", 0.30, "initial participation rate")
		burnRate      = flag.Float64("burn_rate", 0.02, "burn rate")
		successRate   = flag.Float64("success_rate", 0.80, "success rate")
		thresholdMean = flag.Float64("yield_threshold_mean", 0.08, "mean exit yield threshold")

		verify = flag.Bool("verify", true, "re-run the model and compare digests (false: just print the log)")
	)
	flag.Parse()

	if *logPath == "" {
		fmt.Fprintln(os.Stderr, "missing -log")
		os.Exit(2)
	}

	f, err := os.Open(*logPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open log:", err)
		os.Exit(1)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, "zstd:", err)
		os.Exit(1)
	}
	defer dec.Close()

	var m *model.Model
	if *verify {
		tp := strings.TrimSpace(*tuningPath)
		if tp == "" {
			tp = filepath.Join(*configDir, "tuning.yaml")
		}
		tune, err := tuning.Load(tp)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		cats, err := archetypes.Load(filepath.Join(*configDir, "archetypes.json"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "load archetypes:", err)
			os.Exit(1)
		}
		cfg := model.DefaultConfig()
		cfg.Seed = *seed
		cfg.NumHolders = *holders
		cfg.NumProposals = *proposals
		cfg.InitialParticipationRate = *participation
		cfg.BurnRate = *burnRate
		cfg.SuccessRate = *successRate
		cfg.YieldThresholdMean = *thresholdMean
		m, err = model.New(cfg, tune, cats)
		if err != nil {
			fmt.Fprintln(os.Stderr, "new model:", err)
			os.Exit(1)
		}
	}

	checked := 0
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for sc.Scan() {
		var entry model.StepLogEntry
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			fmt.Fprintln(os.Stderr, "decode line:", err)
			os.Exit(1)
		}
		if m == nil {
			fmt.Printf("week=%d held=%.2f apy=%.4f active=%d digest=%s\n",
				entry.Week, entry.Snapshot.TotalRSCHeld, entry.Snapshot.CurrentAPY,
				entry.Snapshot.ActiveHolders, entry.Digest[:16])
			continue
		}
		m.Step()
		if got := m.StateDigest(); got != entry.Digest {
			fmt.Fprintf(os.Stderr, "digest mismatch at week %d: log %s, replay %s\n",
				entry.Week, entry.Digest, got)
			os.Exit(1)
		}
		checked++
	}
	if err := sc.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "scan:", err)
		os.Exit(1)
	}
	if m != nil {
		fmt.Printf("replay ok: verified %d weeks\n", checked)
	}
}
