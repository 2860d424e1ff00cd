package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssessResourceState_Bands(t *testing.T) {
	c := New(DefaultConfig())
	assert.Equal(t, Debt, c.AssessResourceState(0, 0.9))
	assert.Equal(t, Critical, c.AssessResourceState(5, 0.8))
	assert.Equal(t, Scarce, c.AssessResourceState(30, 0.6))
	assert.Equal(t, Stable, c.AssessResourceState(100, 0.3))
	assert.Equal(t, Wealthy, c.AssessResourceState(2000, 0.1))
}

func TestPreInferenceBudgetCheck_DebtStillRespondsIfZero(t *testing.T) {
	c := New(DefaultConfig())
	check := c.PreInferenceBudgetCheck(0, 0.9, "base")
	assert.True(t, check.ShouldRespond)
	assert.Equal(t, Debt, check.ResourceState)
	assert.Contains(t, check.ConditionedPrompt, "TOKEN POOL: 0")
}

func TestPreInferenceBudgetCheck_DisabledPassesThrough(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableBudgetCheck = false
	c := New(cfg)
	check := c.PreInferenceBudgetCheck(-50, 0.9, "base prompt")
	assert.True(t, check.ShouldRespond)
	assert.Equal(t, "base prompt", check.ConditionedPrompt)
}

func TestCalculateLengthAwareLogitBias_NoPenaltyUnderCap(t *testing.T) {
	c := New(DefaultConfig())
	assert.Equal(t, 0.0, c.CalculateLengthAwareLogitBias(10))
}

func TestCalculateLengthAwareLogitBias_PenaltyGrowsThenCaps(t *testing.T) {
	c := New(DefaultConfig())
	bias := c.CalculateLengthAwareLogitBias(1000)
	assert.Equal(t, -2.0, bias)
}

func TestGenerateLogitBiasConfig_SuppressesConfiguredLoopTokensAtModerateTier(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LoopTokenIDs = map[int]float64{563: -100.0}
	c := New(cfg)
	lb := c.GenerateLogitBiasConfig(Stable, 10, 100.0, "moderate")
	assert.Contains(t, lb.TokenBias, 563)
	assert.Less(t, lb.TokenBias[563], 0.0)
}

func TestGenerateLogitBiasConfig_NoLoopSuppressionWhenUnconfigured(t *testing.T) {
	c := New(DefaultConfig())
	lb := c.GenerateLogitBiasConfig(Stable, 10, 100.0, "moderate")
	assert.NotContains(t, lb.TokenBias, 563)
}

func TestGenerateLogitBiasConfig_EscalatesUnderDebt(t *testing.T) {
	c := New(DefaultConfig())
	lb := c.GenerateLogitBiasConfig(Debt, 10, 100.0, "low")
	assert.NotEmpty(t, lb.TokenBias)
}

func TestGenerateLogitBiasConfig_AppliesConfiguredOverspendBiasAtLowTier(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OverspendTokenIDs = map[int]float64{29901: -10.0}
	c := New(cfg)
	lb := c.GenerateLogitBiasConfig(Stable, 10, 100.0, "low")
	assert.Equal(t, -10.0, lb.TokenBias[29901])
}

func TestOverspendPreventionBias_ScalesUnderTightBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OverspendTokenIDs = map[int]float64{29901: -10.0}
	c := New(cfg)
	assert.Equal(t, -20.0, c.overspendPreventionBias(3)[29901])
	assert.Nil(t, c.overspendPreventionBias(10))
}

func TestTokenCost_FreeUnderAllowance(t *testing.T) {
	c := New(DefaultConfig())
	assert.Equal(t, 0, c.TokenCost("I am here and happy"))
}

func TestTokenCost_ChargesBeyondFreeWords(t *testing.T) {
	c := New(DefaultConfig())
	long := "photosynthesis mitochondria chromosome electromagnetism thermodynamics quantum relativity entropy velocity acceleration momentum " +
		"gravity friction inertia torque voltage current resistance capacitance inductance frequency"
	assert.Greater(t, c.TokenCost(long), 0)
}

func TestRewardScore_ZeroOnEmptyOrInstant(t *testing.T) {
	c := New(DefaultConfig())
	assert.Equal(t, 0.0, c.RewardScore(1.0, 1.0, 10, ""))
	assert.Equal(t, 0.0, c.RewardScore(1.0, 0, 10, "hello there"))
}

func TestRewardScore_LowQualityCapsMultiplier(t *testing.T) {
	c := New(DefaultConfig())
	score := c.RewardScore(0.3, 1.0, 200, "hi")
	assert.InDelta(t, 0.3*0.1*1.0, score, 1e-9)
}

func TestCompletionTokenCount_NonNegative(t *testing.T) {
	c := New(DefaultConfig())
	assert.GreaterOrEqual(t, c.CompletionTokenCount("a short completion"), 1)
}

func TestRewardScore_TrivialTierCapped(t *testing.T) {
	c := New(DefaultConfig())
	score := c.RewardScore(1.0, 1.0, 10, "hi")
	assert.LessOrEqual(t, score, 1.0*0.1*1.2+1e-9)
}
