package rvc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Greeting(t *testing.T) {
	c := New()
	a := c.Classify("hi")
	assert.Equal(t, Trivial, a.Tier)
	assert.Equal(t, 8, a.TargetTokenCount)
	assert.Equal(t, 15, a.MaxTokenBudget)
	assert.InDelta(t, 0.005, a.ComplexityScore, 1e-9)
}

func TestClassify_EmptyInput(t *testing.T) {
	c := New()
	a := c.Classify("")
	assert.Equal(t, Trivial, a.Tier)
}

func TestClassify_TechnicalDomainBoostsTier(t *testing.T) {
	c := New()
	a := c.Classify("can you explain quantum mechanics and relativity theory in depth?")
	assert.Contains(t, []Tier{Critical, Maximum}, a.Tier)
	assert.Greater(t, a.ComplexityScore, 0.6)
}

func TestClassify_EmotionalStakesDetected(t *testing.T) {
	c := New()
	a := c.Classify("I feel anxious and overwhelmed about my relationship, I don't know what to do")
	assert.Greater(t, a.EmotionalStakes, 0.3)
}

func TestClassify_Deterministic(t *testing.T) {
	c := New()
	a1 := c.Classify("how does a neural network learn from data?")
	a2 := c.Classify("how does a neural network learn from data?")
	assert.Equal(t, a1, a2)
}

func TestClassify_TierBoundsAreExhaustive(t *testing.T) {
	c := New()
	for _, in := range []string{"hi", "what's up", "explain calculus", "help me, I'm in crisis and scared", "what is the meaning of life and the nature of reality?"} {
		a := c.Classify(in)
		bounds, ok := tokenTiers[a.Tier]
		assert.True(t, ok)
		assert.LessOrEqual(t, bounds.target, bounds.max)
	}
}

func TestValidateEfficiency_GradesByQualityPerToken(t *testing.T) {
	c := New()
	a := c.Classify("hi")

	high := ValidateEfficiency(a, 1, 1.0)
	assert.Equal(t, "A", high.Grade)
	assert.True(t, high.MeetsRequirement)

	low := ValidateEfficiency(a, 100, 0.1)
	assert.Equal(t, "F", low.Grade)
}

func TestValidateEfficiency_OverspendPenaltyOnlyAboveMax(t *testing.T) {
	c := New()
	a := c.Classify("hi")

	under := ValidateEfficiency(a, a.MaxTokenBudget, 0.5)
	assert.Equal(t, 0, under.OverspendPenalty)
	assert.True(t, under.TokenUsageAppropriate)

	over := ValidateEfficiency(a, a.MaxTokenBudget+10, 0.5)
	assert.Equal(t, 10, over.OverspendPenalty)
	assert.False(t, over.TokenUsageAppropriate)
}
