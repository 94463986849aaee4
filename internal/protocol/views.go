package protocol

// ProposalCounts breaks the proposal pool down by status.
type ProposalCounts struct {
	Open      int `json:"open"`
	Funded    int `json:"funded"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Expired   int `json:"expired"`
}

// Snapshot is the immutable per-week aggregate appended to the run history.
type Snapshot struct {
	Week              int     `json:"week"`
	Year              float64 `json:"year"`
	TotalRSCHeld      float64 `json:"total_rsc_held"`
	EffectiveRSC      float64 `json:"effective_rsc"`
	CirculatingSupply float64 `json:"circulating_supply"`
	ParticipationRate float64 `json:"participation_rate"`
	CurrentAPY        float64 `json:"current_apy"`
	AnnualEmission    float64 `json:"annual_emission"`
	WeeklyEmission    float64 `json:"weekly_emission"`

	CreditsEarnedStep   float64 `json:"credits_earned_step"`
	CreditsDeployedStep float64 `json:"credits_deployed_step"`
	BurnedStep          float64 `json:"burned_step"`
	ExitsStep           int     `json:"exits_step"`
	EntriesStep         int     `json:"entries_step"`

	ActiveHolders int `json:"active_holders"`
	ExitedHolders int `json:"exited_holders"`

	Proposals    ProposalCounts     `json:"proposals"`
	ArchetypeRSC map[string]float64 `json:"archetype_rsc"`
	TierCounts   map[string]int     `json:"tier_counts"`
}

// HolderView is the read-only serialization of a single holder.
type HolderView struct {
	ID               string  `json:"id"`
	Archetype        string  `json:"archetype"`
	Active           bool    `json:"active"`
	MissionAlignment float64 `json:"mission_alignment"`
	Engagement       float64 `json:"engagement"`
	PriceSensitivity float64 `json:"price_sensitivity"`
	HoldHorizon      float64 `json:"hold_horizon"`
	Satisfaction     float64 `json:"satisfaction"`

	RSCHeld        float64 `json:"rsc_held"`
	InitialRSC     float64 `json:"initial_rsc"`
	WeeksHeld      int     `json:"weeks_held"`
	Tier           string  `json:"tier"`
	Multiplier     float64 `json:"multiplier"`
	YieldThreshold float64 `json:"yield_threshold"`

	Credits          float64 `json:"credits"`
	TotalDeployed    float64 `json:"total_deployed"`
	TotalBurned      float64 `json:"total_burned"`
	DeploymentsCount int     `json:"deployments_count"`
	EnteredWeek      int     `json:"entered_week"`
	ExitedWeek       int     `json:"exited_week,omitempty"`
}

// ProposalView is the read-only serialization of a single proposal.
type ProposalView struct {
	ID              string  `json:"id"`
	FundingTarget   float64 `json:"funding_target"`
	CreditsReceived float64 `json:"credits_received"`
	FundingProgress float64 `json:"funding_progress"`
	BackerCount     int     `json:"backer_count"`
	Status          string  `json:"status"`
	WeekCreated     int     `json:"week_created"`
	WeekFunded      int     `json:"week_funded,omitempty"`
	WeekResolved    int     `json:"week_resolved,omitempty"`
}

// DeploymentView is one credit deployment surfaced for a single step.
type DeploymentView struct {
	HolderID   string  `json:"holder_id"`
	Archetype  string  `json:"archetype"`
	ProposalID string  `json:"proposal_id"`
	Credits    float64 `json:"credits"`
	Excess     float64 `json:"excess,omitempty"`
	Burned     float64 `json:"burned"`
}

// ArchetypeMetrics aggregates one archetype's population.
type ArchetypeMetrics struct {
	Total         int     `json:"total"`
	Active        int     `json:"active"`
	Exited        int     `json:"exited"`
	AvgRSC        float64 `json:"avg_rsc"`
	AvgWeeksHeld  float64 `json:"avg_weeks_held"`
	AvgMultiplier float64 `json:"avg_multiplier"`
	AvgCredits    float64 `json:"avg_credits"`
	TotalDeployed float64 `json:"total_deployed"`
	TotalBurned   float64 `json:"total_burned"`
}

// TierStat is the per-multiplier-tier slice of the active population.
type TierStat struct {
	Count      int     `json:"count"`
	RSC        float64 `json:"rsc"`
	Multiplier float64 `json:"multiplier"`
}

// ParticipationData is the headline equilibrium readout plus the
// fixed-participation reference scenarios.
type ParticipationData struct {
	ParticipationRate float64            `json:"participation_rate"`
	CurrentAPY        float64            `json:"current_apy"`
	TotalRSCHeld      float64            `json:"total_rsc_held"`
	CirculatingSupply float64            `json:"circulating_supply"`
	AnnualEmission    float64            `json:"annual_emission"`
	Year              float64            `json:"year"`
	Scenarios         map[string]float64 `json:"scenarios"`
}

// KPISummary is the computed-metrics payload.
type KPISummary struct {
	Week              int     `json:"week"`
	Year              float64 `json:"year"`
	ParticipationRate float64 `json:"participation_rate"`
	CurrentAPY        float64 `json:"current_apy"`
	TotalRSCHeld      float64 `json:"total_rsc_held"`
	CirculatingSupply float64 `json:"circulating_supply"`
	AnnualEmission    float64 `json:"annual_emission"`
	WeeklyEmission    float64 `json:"weekly_emission"`

	TotalCredits          float64 `json:"total_credits"`
	TotalBurned           float64 `json:"total_burned"`
	TotalCreditsEarned    float64 `json:"total_credits_earned"`
	TotalCreditsDeployed  float64 `json:"total_credits_deployed"`
	DeploymentRatePerWeek float64 `json:"deployment_rate_per_week"`

	TierDistribution map[string]TierStat `json:"tier_distribution"`

	Proposals         ProposalCounts `json:"proposals"`
	SuccessRateActual float64        `json:"success_rate_actual"`

	NumHolders    int `json:"num_holders"`
	ActiveHolders int `json:"active_holders"`
	ExitedHolders int `json:"exited_holders"`
	NumProposals  int `json:"num_proposals"`
}

// WELCOME (server -> client) on websocket attach.
type WelcomeMsg struct {
	Type             string   `json:"type"`
	ProtocolVersion  string   `json:"protocol_version"`
	SessionID        string   `json:"session_id"`
	TuningDigest     string   `json:"tuning_digest,omitempty"`
	ArchetypesDigest string   `json:"archetypes_digest,omitempty"`
	Snapshot         Snapshot `json:"snapshot"`
}

// STEP (server -> client) after every advanced week.
type StepMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Snapshot        Snapshot `json:"snapshot"`
	Events          []Event  `json:"events"`
}
