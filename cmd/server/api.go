package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/santhosh-tekuri/jsonschema/v5"

	persistlog "endowsim/internal/persistence/log"
	"endowsim/internal/protocol"
	"endowsim/internal/sim/archetypes"
	"endowsim/internal/sim/model"
	"endowsim/internal/sim/tuning"
	"endowsim/internal/transport/ws"
)

// api owns the single active model. All mutation goes through the
// mutex; the model itself is single-threaded.
type api struct {
	log  *log.Logger
	tune tuning.Tuning
	cats *archetypes.Catalog

	initSchema *jsonschema.Schema
	stream     *ws.Server
	dataDir    string
	logRuns    bool

	mu      sync.Mutex
	model   *model.Model
	runID   string
	stepLog *persistlog.StepLogger
}

func newAPI(logger *log.Logger, tune tuning.Tuning, cats *archetypes.Catalog, initSchema *jsonschema.Schema, dataDir string, logRuns bool) *api {
	a := &api{
		log:        logger,
		tune:       tune,
		cats:       cats,
		initSchema: initSchema,
		dataDir:    dataDir,
		logRuns:    logRuns,
	}
	a.stream = ws.NewServer(a.welcome, logger)
	return a
}

func (a *api) routes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/api", a.handleInfo)
	mux.HandleFunc("/api/init", a.handleInit)
	mux.HandleFunc("/api/step", a.handleStep)
	mux.HandleFunc("/api/run", a.handleRun)
	mux.HandleFunc("/api/state", a.handleState)
	mux.HandleFunc("/api/metrics", a.handleMetrics)
	mux.HandleFunc("/api/holders", a.handleHolders)
	mux.HandleFunc("/api/stakers", a.handleHolders) // legacy alias
	mux.HandleFunc("/api/holders/", a.handleHolderDetail)
	mux.HandleFunc("/api/proposals", a.handleProposals)
	mux.HandleFunc("/api/proposals/", a.handleProposalDetail)
	mux.HandleFunc("/api/history", a.handleHistory)
	mux.HandleFunc("/api/history/export", a.handleHistoryExport)
	mux.HandleFunc("/api/events", a.handleEvents)
	mux.HandleFunc("/api/multipliers", a.handleMultipliers)
	mux.HandleFunc("/api/tiers", a.handleMultipliers) // legacy alias
	mux.HandleFunc("/api/archetypes", a.handleArchetypes)
	mux.HandleFunc("/api/participation", a.handleParticipation)
	mux.HandleFunc("/api/defaults", a.handleDefaults)
	mux.HandleFunc("/v1/ws", a.stream.Handler())
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, code, field, reason string) {
	writeJSON(rw, status, protocol.ErrorMsg{Code: code, Field: field, Reason: reason})
}

// withModel runs fn under the lock when a model exists; otherwise it
// answers E_STATE.
func (a *api) withModel(rw http.ResponseWriter, fn func(m *model.Model)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.model == nil {
		writeError(rw, http.StatusConflict, protocol.ErrState, "", model.ErrNotInitialized.Error())
		return
	}
	fn(a.model)
}

func (a *api) welcome() protocol.WelcomeMsg {
	a.mu.Lock()
	defer a.mu.Unlock()
	msg := protocol.WelcomeMsg{
		TuningDigest:     a.tune.Digest,
		ArchetypesDigest: a.cats.Digest,
	}
	if a.model != nil {
		msg.Snapshot = a.model.State()
	}
	return msg
}

func (a *api) handleInfo(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, 200, map[string]any{
		"name":             "RSC Decentralized Endowment Simulation",
		"description":      "Held RSC auto-earns yield credits pro rata by time-weighted share of a decaying emission schedule.",
		"primary_question": "What participation rate does the market equilibrate to?",
		"endpoints": map[string]string{
			"/api/init":           "POST - Initialize model with parameters",
			"/api/step":           "POST - Advance simulation by 1 week",
			"/api/run":            "POST - Run N weeks",
			"/api/state":          "GET - Current model state",
			"/api/metrics":        "GET - Computed metrics",
			"/api/holders":        "GET - List all holders",
			"/api/proposals":      "GET - List all proposals",
			"/api/history":        "GET - Time series data",
			"/api/history/export": "GET - Compressed JSONL history download",
			"/api/events":         "GET - Event log",
			"/api/multipliers":    "GET - Time-weight multiplier tiers",
			"/api/archetypes":     "GET - Behavioral archetypes",
			"/api/participation":  "GET - Participation data + reference scenarios",
			"/api/defaults":       "GET - Default parameter values",
			"/v1/ws":              "WS - Step stream",
		},
		"status": "ready",
	})
}

// initRequest mirrors Config with optional fields so absent keys keep
// their defaults.
type initRequest struct {
	Seed         *int64 `json:"seed"`
	NumHolders   *int   `json:"num_holders"`
	NumStakers   *int   `json:"num_stakers"` // legacy alias for num_holders
	NumProposals *int   `json:"num_proposals"`

	BurnRate          *float64 `json:"burn_rate"`
	SuccessRate       *float64 `json:"success_rate"`
	FundingTargetMin  *float64 `json:"funding_target_min"`
	FundingTargetMax  *float64 `json:"funding_target_max"`
	DeployProbability *float64 `json:"deploy_probability"`

	ArchetypeMix             map[string]float64 `json:"archetype_mix"`
	YieldThresholdMean       *float64           `json:"yield_threshold_mean"`
	InitialParticipationRate *float64           `json:"initial_participation_rate"`

	CreditExpiryEnabled   *bool    `json:"credit_expiry_enabled"`
	CreditExpiryWeeks     *int     `json:"credit_expiry_weeks"`
	FailureMode           *string  `json:"failure_mode"`
	PartialRefundFraction *float64 `json:"partial_refund_fraction"`
}

func (req initRequest) apply(cfg model.Config) model.Config {
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}
	if req.NumStakers != nil {
		cfg.NumHolders = *req.NumStakers
	}
	if req.NumHolders != nil {
		cfg.NumHolders = *req.NumHolders
	}
	if req.NumProposals != nil {
		cfg.NumProposals = *req.NumProposals
	}
	if req.BurnRate != nil {
		cfg.BurnRate = *req.BurnRate
	}
	if req.SuccessRate != nil {
		cfg.SuccessRate = *req.SuccessRate
	}
	if req.FundingTargetMin != nil {
		cfg.FundingTargetMin = *req.FundingTargetMin
	}
	if req.FundingTargetMax != nil {
		cfg.FundingTargetMax = *req.FundingTargetMax
	}
	if req.DeployProbability != nil {
		cfg.DeployProbability = *req.DeployProbability
	}
	if req.ArchetypeMix != nil {
		cfg.ArchetypeMix = req.ArchetypeMix
	}
	if req.YieldThresholdMean != nil {
		cfg.YieldThresholdMean = *req.YieldThresholdMean
	}
	if req.InitialParticipationRate != nil {
		cfg.InitialParticipationRate = *req.InitialParticipationRate
	}
	if req.CreditExpiryEnabled != nil {
		cfg.CreditExpiryEnabled = *req.CreditExpiryEnabled
	}
	if req.CreditExpiryWeeks != nil {
		cfg.CreditExpiryWeeks = *req.CreditExpiryWeeks
	}
	if req.FailureMode != nil {
		cfg.FailureMode = *req.FailureMode
	}
	if req.PartialRefundFraction != nil {
		cfg.PartialRefundFraction = *req.PartialRefundFraction
	}
	return cfg
}

func (a *api) handleInit(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		raw = []byte("{}")
	}
	if a.initSchema != nil {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "", err.Error())
			return
		}
		if err := a.initSchema.Validate(v); err != nil {
			writeError(rw, http.StatusBadRequest, protocol.ErrConfig, "", err.Error())
			return
		}
	}
	var req initRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "", err.Error())
		return
	}

	cfg := req.apply(model.DefaultConfig())
	m, err := model.New(cfg, a.tune, a.cats)
	if err != nil {
		var cfgErr *model.ConfigError
		if errors.As(err, &cfgErr) {
			writeError(rw, http.StatusBadRequest, protocol.ErrConfig, cfgErr.Field, cfgErr.Reason)
			return
		}
		writeError(rw, http.StatusBadRequest, protocol.ErrConfig, "", err.Error())
		return
	}

	a.mu.Lock()
	if a.stepLog != nil {
		_ = a.stepLog.Close()
		a.stepLog = nil
	}
	a.model = m
	a.runID = uuid.NewString()
	if a.logRuns {
		a.stepLog = persistlog.NewStepLogger(a.dataDir, a.runID)
		m.SetStepLogger(a.stepLog)
	}
	runID := a.runID
	state := m.State()
	a.mu.Unlock()

	a.log.Printf("initialized run %s: %d holders, %d proposals, seed %d",
		runID, cfg.NumHolders, cfg.NumProposals, cfg.Seed)
	writeJSON(rw, 200, map[string]any{
		"status": "initialized",
		"run_id": runID,
		"model":  state,
	})
}

func (a *api) handleStep(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	a.withModel(rw, func(m *model.Model) {
		events, snap := m.Step()
		a.stream.Broadcast(protocol.StepMsg{
			Type:            protocol.TypeStep,
			ProtocolVersion: protocol.Version,
			Snapshot:        snap,
			Events:          events,
		})
		writeJSON(rw, 200, map[string]any{
			"model":       snap,
			"events":      m.Events(10),
			"deployments": m.StepDeployments(),
		})
	})
}

func (a *api) handleRun(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Steps int `json:"steps"`
	}
	req.Steps = 10
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "", err.Error())
		return
	}
	if req.Steps < 0 || req.Steps > 10_000 {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "steps",
			fmt.Sprintf("must be in [0, 10000], got %d", req.Steps))
		return
	}
	a.withModel(rw, func(m *model.Model) {
		for i := 0; i < req.Steps; i++ {
			events, snap := m.Step()
			a.stream.Broadcast(protocol.StepMsg{
				Type:            protocol.TypeStep,
				ProtocolVersion: protocol.Version,
				Snapshot:        snap,
				Events:          events,
			})
		}
		writeJSON(rw, 200, map[string]any{
			"model":     m.State(),
			"steps_run": req.Steps,
		})
	})
}

func (a *api) handleState(rw http.ResponseWriter, r *http.Request) {
	a.withModel(rw, func(m *model.Model) {
		writeJSON(rw, 200, map[string]any{
			"model":  m.State(),
			"events": m.Events(20),
		})
	})
}

func (a *api) handleMetrics(rw http.ResponseWriter, r *http.Request) {
	a.withModel(rw, func(m *model.Model) {
		writeJSON(rw, 200, m.Metrics())
	})
}

func (a *api) handleHolders(rw http.ResponseWriter, r *http.Request) {
	a.withModel(rw, func(m *model.Model) {
		writeJSON(rw, 200, m.Holders())
	})
}

func (a *api) handleHolderDetail(rw http.ResponseWriter, r *http.Request) {
	id, ok := trailingID(r.URL.Path, "/api/holders/")
	if !ok {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "holder_id", "not a number")
		return
	}
	a.withModel(rw, func(m *model.Model) {
		hv, found := m.HolderByID(id)
		if !found {
			writeError(rw, http.StatusNotFound, protocol.ErrNotFound, "holder_id", fmt.Sprintf("holder H%d not found", id))
			return
		}
		writeJSON(rw, 200, hv)
	})
}

func (a *api) handleProposals(rw http.ResponseWriter, r *http.Request) {
	a.withModel(rw, func(m *model.Model) {
		writeJSON(rw, 200, m.Proposals())
	})
}

func (a *api) handleProposalDetail(rw http.ResponseWriter, r *http.Request) {
	id, ok := trailingID(r.URL.Path, "/api/proposals/")
	if !ok {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "proposal_id", "not a number")
		return
	}
	a.withModel(rw, func(m *model.Model) {
		pv, found := m.ProposalByID(id)
		if !found {
			writeError(rw, http.StatusNotFound, protocol.ErrNotFound, "proposal_id", fmt.Sprintf("proposal P%d not found", id))
			return
		}
		writeJSON(rw, 200, pv)
	})
}

func (a *api) handleHistory(rw http.ResponseWriter, r *http.Request) {
	a.withModel(rw, func(m *model.Model) {
		writeJSON(rw, 200, m.History())
	})
}

// handleHistoryExport streams the run history as zstd-compressed JSONL,
// one snapshot per line.
func (a *api) handleHistoryExport(rw http.ResponseWriter, r *http.Request) {
	a.withModel(rw, func(m *model.Model) {
		rw.Header().Set("Content-Type", "application/zstd")
		rw.Header().Set("Content-Disposition", "attachment; filename=history.jsonl.zst")
		enc, err := zstd.NewWriter(rw, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			writeError(rw, http.StatusInternalServerError, protocol.ErrInternal, "", err.Error())
			return
		}
		defer enc.Close()
		w := json.NewEncoder(enc)
		for _, snap := range m.History() {
			if err := w.Encode(snap); err != nil {
				a.log.Printf("history export: %v", err)
				return
			}
		}
	})
}

func (a *api) handleEvents(rw http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "limit", "must be a non-negative integer")
			return
		}
		limit = n
	}
	a.withModel(rw, func(m *model.Model) {
		writeJSON(rw, 200, m.Events(limit))
	})
}

func (a *api) handleMultipliers(rw http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"tiers": a.tune.TimeWeights}
	a.mu.Lock()
	if a.model != nil {
		resp["distribution"] = a.model.TierDistribution()
	}
	a.mu.Unlock()
	writeJSON(rw, 200, resp)
}

func (a *api) handleArchetypes(rw http.ResponseWriter, r *http.Request) {
	defs := make([]archetypes.Def, 0, len(a.cats.Order))
	for _, id := range a.cats.Order {
		defs = append(defs, a.cats.ByID[id])
	}
	resp := map[string]any{
		"archetypes":  defs,
		"default_mix": model.DefaultConfig().ArchetypeMix,
	}
	a.mu.Lock()
	if a.model != nil {
		resp["current_metrics"] = a.model.ArchetypeMetrics()
	}
	a.mu.Unlock()
	writeJSON(rw, 200, resp)
}

func (a *api) handleParticipation(rw http.ResponseWriter, r *http.Request) {
	a.withModel(rw, func(m *model.Model) {
		writeJSON(rw, 200, m.ParticipationData())
	})
}

func (a *api) handleDefaults(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, 200, model.DefaultConfig())
}

func (a *api) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stepLog != nil {
		_ = a.stepLog.Close()
		a.stepLog = nil
	}
}

func trailingID(path, prefix string) (int, bool) {
	raw := strings.TrimPrefix(path, prefix)
	raw = strings.TrimPrefix(raw, "H")
	raw = strings.TrimPrefix(raw, "P")
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return id, true
}
