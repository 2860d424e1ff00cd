// Package budget implements the Existential Budget: a finite token pool,
// karma accumulator, and age/generation counter with age-up and regression
// rules (the "Learned Efficiency Paradox").
package budget

import (
	"math"
	"time"
)

// Params are the tuned economy constants. DefaultParams() returns the reference
// tuning, not the conservative/documented values — see SPEC_FULL.md §12.
type Params struct {
	BaseTokenPool          int
	TokenPoolGrowthRate    float64
	EmergencyTokenReserve  int
	LearnedEfficiencyThreshold float64
	EfficiencyRewardMultiplier float64
	VerbosityPenaltyFactor     float64

	AgeRegressionEnabled       bool
	RegressionPenaltyMultiplier float64
	RegressionCooldown          time.Duration

	BaseKarmaQuota          float64
	KarmaQuotaGrowthRate    float64
	SurvivalKarmaThreshold  float64

	EfficiencyRequirementGrowth float64
	MaxEfficiencyBonus          float64

	HighAnxietyThreshold      float64
	LowTokenAnxietyThreshold  int
	AnxietyDecayRate          float64

	TokenCostTiers    map[InvestmentLevel]int
	QualityThresholds map[InvestmentLevel]float64
}

// InvestmentLevel is the closed set of response-cost tiers used by the
// Learned Efficiency Paradox's token-budget calculation.
type InvestmentLevel string

const (
	Minimal       InvestmentLevel = "minimal"
	Conservative  InvestmentLevel = "conservative"
	Standard      InvestmentLevel = "standard"
	Investment    InvestmentLevel = "investment"
	Philosophical InvestmentLevel = "philosophical"
)

// DefaultParams returns the tuned reference configuration.
func DefaultParams() Params {
	return Params{
		BaseTokenPool:              64000,
		TokenPoolGrowthRate:        2.0,
		EmergencyTokenReserve:      1000,
		LearnedEfficiencyThreshold: 0.5,
		EfficiencyRewardMultiplier: 2.0,
		VerbosityPenaltyFactor:     1.0,

		AgeRegressionEnabled:         false,
		RegressionPenaltyMultiplier:  1.1,
		RegressionCooldown:           time.Hour,

		BaseKarmaQuota:         100.0,
		KarmaQuotaGrowthRate:   1.3,
		SurvivalKarmaThreshold: 0.5,

		EfficiencyRequirementGrowth: 1.05,
		MaxEfficiencyBonus:          2.0,

		HighAnxietyThreshold:     0.9,
		LowTokenAnxietyThreshold: 5000,
		AnxietyDecayRate:         0.25,

		TokenCostTiers: map[InvestmentLevel]int{
			Minimal:       5,
			Conservative:  15,
			Standard:      50,
			Investment:    150,
			Philosophical: 400,
		},
		QualityThresholds: map[InvestmentLevel]float64{
			Minimal:       0.1,
			Conservative:  0.3,
			Standard:      0.6,
			Investment:    0.8,
			Philosophical: 0.9,
		},
	}
}

// State is the persistent Existential Budget state.
type State struct {
	Age                     int
	CurrentTokenPool        int
	MaxTokenPool            int
	KarmaQuota              float64
	CurrentKarma            float64
	TotalResponses          int
	LastAgeUp               time.Time
	LastRegression          time.Time
	SurvivalThreshold       float64
	ExistentialAnxietyLevel float64
	RegressionCount         int
	PermanentKnowledgeLevel int
}

// NewState creates the initial state for a fresh Budget at age 1.
func NewState(p Params) State {
	return State{
		Age:               1,
		CurrentTokenPool:  p.BaseTokenPool,
		MaxTokenPool:      p.BaseTokenPool,
		KarmaQuota:        p.BaseKarmaQuota,
		SurvivalThreshold: p.SurvivalKarmaThreshold,
	}
}

// historyEntry is one row of the bounded recent-response window used for the
// Learned Efficiency Paradox's age-up/regression checks.
type historyEntry struct {
	qualityScore   float64
	tokenCost      int
	generationTime float64
	karmaEarned    float64
}

const maxHistory = 100

// Budget is the stateful Existential Budget engine. It is not safe for
// concurrent use; callers must serialize access (see SPEC_FULL.md §5).
type Budget struct {
	params  Params
	state   State
	history []historyEntry
}

// New constructs a Budget from explicit params and state, e.g. after loading
// persisted state from disk.
func New(p Params, s State) *Budget {
	return &Budget{params: p, state: s}
}

// State returns a copy of the current persistent state.
func (b *Budget) State() State { return b.state }

// QuestionContext carries the classification hints the budget needs to
// assess a question's potential value. These are supplied by the caller
// (typically derived from the RVC tier and any personality/context hints).
type QuestionContext struct {
	QuestionType  string // "philosophical", "emotional", "casual_question", "standard"
	EmotionalTone string // "vulnerable", "curious", "agitated", "enthusiastic", "neutral"
}

type questionAssessment struct {
	potentialQuality float64
	investmentLevel  InvestmentLevel
}

// Decision is the result of assessing whether and how much to respond.
type Decision struct {
	ShouldRespond    bool
	TokenBudget      int
	ResponsePriority string // "high", "medium", "low", "conservative"
	ExistentialRisk  float64
	Reasoning        string
}

// Assess decides whether to respond and sizes the token budget, given the
// current karma score (typically supplied by the Arbiter; 100 if unavailable).
func (b *Budget) Assess(question string, ctx QuestionContext, karmaScore float64) Decision {
	_ = question // reserved for future lexical analysis; context carries the signal today

	anxiety := b.existentialAnxiety()
	qa := b.assessQuestionValue(ctx)

	if !b.shouldRespond(qa, anxiety) {
		return Decision{
			ShouldRespond:    false,
			TokenBudget:      0,
			ResponsePriority: "conservative",
			ExistentialRisk:  1.0,
			Reasoning:        "High existential risk - conserving tokens for survival",
		}
	}

	tokenBudget := b.calculateTokenBudget(qa, anxiety, karmaScore)
	priority := responsePriority(qa, anxiety)
	risk := b.existentialRisk(tokenBudget)
	reasoning := decisionReasoning(qa, anxiety, tokenBudget, b.state.CurrentTokenPool)

	return Decision{
		ShouldRespond:    true,
		TokenBudget:      tokenBudget,
		ResponsePriority: priority,
		ExistentialRisk:  risk,
		Reasoning:        reasoning,
	}
}

func (b *Budget) existentialAnxiety() float64 {
	anxiety := 0.0

	tokenRatio := float64(b.state.CurrentTokenPool) / float64(b.state.MaxTokenPool)
	switch {
	case tokenRatio < 0.2:
		anxiety += 0.6
	case tokenRatio < 0.5:
		anxiety += 0.3
	}

	karmaProgress := b.state.CurrentKarma / b.state.KarmaQuota
	switch {
	case karmaProgress < 0.3:
		anxiety += 0.4
	case karmaProgress < 0.6:
		anxiety += 0.2
	}

	if b.state.Age > 5 {
		anxiety += math.Min(0.3, float64(b.state.Age-5)*0.05)
	}

	if b.state.CurrentTokenPool < b.params.EmergencyTokenReserve {
		anxiety += 0.5
	}

	if anxiety > 1.0 {
		anxiety = 1.0
	}
	b.state.ExistentialAnxietyLevel = anxiety
	return anxiety
}

func (b *Budget) assessQuestionValue(ctx QuestionContext) questionAssessment {
	potentialQuality := 0.5

	switch ctx.QuestionType {
	case "philosophical":
		potentialQuality += 0.3
	case "emotional":
		potentialQuality += 0.2
	case "casual_question":
		potentialQuality -= 0.1
	}

	switch ctx.EmotionalTone {
	case "vulnerable", "curious":
		potentialQuality += 0.2
	case "agitated", "enthusiastic":
		potentialQuality += 0.1
	}

	var level InvestmentLevel
	switch {
	case potentialQuality >= 0.8:
		level = Philosophical
	case potentialQuality >= 0.6:
		level = Investment
	case potentialQuality >= 0.4:
		level = Standard
	case potentialQuality >= 0.2:
		level = Conservative
	default:
		level = Minimal
	}

	return questionAssessment{potentialQuality: potentialQuality, investmentLevel: level}
}

func (b *Budget) shouldRespond(qa questionAssessment, anxiety float64) bool {
	if b.state.CurrentTokenPool <= b.params.EmergencyTokenReserve {
		return qa.potentialQuality >= 0.6
	}
	if anxiety >= 0.85 {
		return qa.potentialQuality >= 0.4
	}
	if anxiety >= 0.5 {
		return qa.potentialQuality >= 0.2
	}
	return true
}

func (b *Budget) calculateTokenBudget(qa questionAssessment, anxiety, karmaScore float64) int {
	baseCost := b.params.TokenCostTiers[qa.investmentLevel]

	var tokenBudget int
	switch {
	case anxiety >= 0.8:
		tokenBudget = maxInt(1, int(float64(baseCost)*0.5))
	case anxiety >= 0.5:
		tokenBudget = maxInt(1, int(float64(baseCost)*0.75))
	default:
		tokenBudget = baseCost
	}

	karmaMultiplier := karmaScore / 100.0
	karmaRestricted := int(float64(tokenBudget) * karmaMultiplier)

	if (qa.investmentLevel == Investment || qa.investmentLevel == Philosophical) && karmaScore < 95 {
		pressureMultiplier := math.Max(0.3, karmaMultiplier*0.7)
		karmaRestricted = int(float64(tokenBudget) * pressureMultiplier)
	}

	available := b.state.CurrentTokenPool - b.params.EmergencyTokenReserve
	tokenBudget = minInt(karmaRestricted, available)
	return maxInt(1, tokenBudget)
}

func responsePriority(qa questionAssessment, anxiety float64) string {
	switch {
	case anxiety >= 0.8:
		return "conservative"
	case qa.potentialQuality >= 0.8:
		return "high"
	case qa.potentialQuality >= 0.5:
		return "medium"
	default:
		return "low"
	}
}

func (b *Budget) existentialRisk(tokenBudget int) float64 {
	remaining := b.state.CurrentTokenPool - tokenBudget
	reserve := b.params.EmergencyTokenReserve

	switch {
	case remaining <= reserve:
		return 1.0
	case remaining <= reserve*2:
		return 0.7
	case float64(remaining) <= float64(b.state.MaxTokenPool)*0.2:
		return 0.4
	case float64(remaining) <= float64(b.state.MaxTokenPool)*0.5:
		return 0.2
	default:
		return 0.0
	}
}

func decisionReasoning(qa questionAssessment, anxiety float64, tokenBudget, currentPool int) string {
	parts := make([]string, 0, 4)
	switch {
	case anxiety >= 0.8:
		parts = append(parts, "High existential anxiety - prioritizing survival")
	case anxiety >= 0.5:
		parts = append(parts, "Moderate anxiety - being selective")
	default:
		parts = append(parts, "Low anxiety - normal operation")
	}
	switch {
	case qa.potentialQuality >= 0.8:
		parts = append(parts, "High-value question - worth investment")
	case qa.potentialQuality >= 0.5:
		parts = append(parts, "Medium-value question - balanced approach")
	default:
		parts = append(parts, "Low-value question - minimal investment")
	}
	parts = append(parts, "token budget computed")
	_ = currentPool
	return joinPipe(parts)
}

func joinPipe(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " | "
		}
		out += p
	}
	return out
}

// Result is returned by ProcessResponseResult after a response completes.
type Result struct {
	KarmaEarned    float64
	TokensRemaining int
	KarmaProgress  float64
	Age            int
	AnxietyLevel   float64
	AgedUp         bool
	Regressed      bool
}

// ProcessResponseResult applies Layer III accountability to the budget: debits
// the token pool, credits karma, and checks regression (priority) then age-up.
func (b *Budget) ProcessResponseResult(qualityScore float64, tokenCost int, generationTime float64, ctx QuestionContext, now time.Time) Result {
	karmaEarned := b.calculateKarmaEarned(qualityScore, tokenCost, generationTime, ctx)

	b.state.CurrentTokenPool -= tokenCost
	b.state.CurrentKarma += karmaEarned
	b.state.TotalResponses++

	regressed := false
	if b.checkAgeRegressionCondition(now) {
		b.performAgeRegression(now)
		regressed = true
	}

	agedUp := false
	if !regressed && b.checkAgeUpCondition() {
		b.performAgeUp(now)
		agedUp = true
	}

	b.updateSurvivalThreshold()

	b.history = append(b.history, historyEntry{
		qualityScore:   qualityScore,
		tokenCost:      tokenCost,
		generationTime: generationTime,
		karmaEarned:    karmaEarned,
	})
	if len(b.history) > maxHistory {
		b.history = b.history[len(b.history)-maxHistory:]
	}

	return Result{
		KarmaEarned:     karmaEarned,
		TokensRemaining: b.state.CurrentTokenPool,
		KarmaProgress:   b.state.CurrentKarma / b.state.KarmaQuota,
		Age:             b.state.Age,
		AnxietyLevel:    b.state.ExistentialAnxietyLevel,
		AgedUp:          agedUp,
		Regressed:       regressed,
	}
}

func (b *Budget) calculateKarmaEarned(qualityScore float64, tokenCost int, generationTime float64, ctx QuestionContext) float64 {
	baseKarma := qualityScore * 10

	var efficiency, efficiencyBonus float64
	if tokenCost > 0 {
		efficiency = qualityScore / float64(tokenCost)
		efficiencyBonus = math.Min(b.params.MaxEfficiencyBonus, efficiency*100*b.params.EfficiencyRewardMultiplier)
	} else {
		efficiency = math.Inf(1)
		efficiencyBonus = b.params.MaxEfficiencyBonus
	}

	verbosityPenalty := 0.0
	if tokenCost > 100 {
		verbosityPenalty = float64(tokenCost-100) * 0.01 * b.params.VerbosityPenaltyFactor
	}

	speedBonus := 0.0
	if generationTime > 0 {
		speed := qualityScore / generationTime
		speedBonus = math.Min(1.0, speed*5)
	}

	contextBonus := 0.0
	switch ctx.QuestionType {
	case "philosophical":
		contextBonus = 2.0
	case "emotional":
		contextBonus = 1.0
	}

	ageEfficiencyRequirement := math.Pow(b.params.EfficiencyRequirementGrowth, float64(b.state.Age-1))
	efficiencyPenalty := 0.0
	if !math.IsInf(efficiency, 1) && efficiency < ageEfficiencyRequirement {
		efficiencyPenalty = (ageEfficiencyRequirement - efficiency) * 10
	}

	total := baseKarma + efficiencyBonus - verbosityPenalty + speedBonus + contextBonus - efficiencyPenalty

	if total < b.state.SurvivalThreshold {
		total *= 0.5
	}

	return math.Max(0.0, total)
}

func (b *Budget) checkAgeUpCondition() bool {
	if b.state.CurrentKarma < b.state.KarmaQuota {
		return false
	}
	if len(b.history) >= 10 {
		recent := b.history[len(b.history)-10:]
		total := 0.0
		for _, r := range recent {
			if r.tokenCost > 0 {
				total += r.qualityScore / float64(r.tokenCost)
			}
		}
		avg := total / float64(len(recent))
		if avg < b.params.LearnedEfficiencyThreshold {
			return false
		}
	}
	return true
}

func (b *Budget) performAgeUp(now time.Time) {
	b.state.Age++
	b.state.CurrentKarma = 0.0

	b.state.MaxTokenPool = int(float64(b.state.MaxTokenPool) * b.params.TokenPoolGrowthRate)
	b.state.CurrentTokenPool = b.state.MaxTokenPool

	b.state.KarmaQuota *= b.params.KarmaQuotaGrowthRate
	b.state.LastAgeUp = now
	b.state.ExistentialAnxietyLevel *= 0.5
}

func (b *Budget) checkAgeRegressionCondition(now time.Time) bool {
	if !b.params.AgeRegressionEnabled {
		return false
	}
	if !b.state.LastRegression.IsZero() && now.Sub(b.state.LastRegression) < b.params.RegressionCooldown {
		return false
	}
	if b.state.CurrentTokenPool <= 0 {
		return true
	}
	if b.state.CurrentKarma < -10.0 {
		return true
	}
	if len(b.history) >= 5 {
		recent := b.history[len(b.history)-5:]
		sum := 0.0
		for _, r := range recent {
			sum += r.karmaEarned
		}
		avg := sum / float64(len(recent))
		if avg < b.state.SurvivalThreshold*0.3 {
			return true
		}
	}
	return false
}

func (b *Budget) performAgeRegression(now time.Time) {
	oldAge := b.state.Age

	if b.state.Age > 1 {
		b.state.Age--
	}
	b.state.RegressionCount++

	newTokenPool := int(float64(b.params.BaseTokenPool) * math.Pow(b.params.TokenPoolGrowthRate, float64(b.state.Age-1)))
	b.state.MaxTokenPool = newTokenPool
	b.state.CurrentTokenPool = newTokenPool

	b.state.KarmaQuota *= b.params.RegressionPenaltyMultiplier
	b.state.CurrentKarma = 0.0
	b.state.LastRegression = now

	b.state.ExistentialAnxietyLevel = math.Min(1.0, b.state.ExistentialAnxietyLevel+0.5)
	b.state.SurvivalThreshold *= 1.1

	if b.state.PermanentKnowledgeLevel < oldAge {
		b.state.PermanentKnowledgeLevel = oldAge
	}
}

func (b *Budget) updateSurvivalThreshold() {
	if len(b.history) < 10 {
		return
	}
	recent := b.history[len(b.history)-10:]
	sum := 0.0
	for _, r := range recent {
		sum += r.karmaEarned
	}
	avg := sum / float64(len(recent))

	switch {
	case avg > b.state.SurvivalThreshold*1.5:
		b.state.SurvivalThreshold *= 1.1
	case avg < b.state.SurvivalThreshold*0.7:
		b.state.SurvivalThreshold *= 0.9
	}

	b.state.SurvivalThreshold = math.Max(0.1, math.Min(2.0, b.state.SurvivalThreshold))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
