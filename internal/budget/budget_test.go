package budget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBudget() *Budget {
	p := DefaultParams()
	return New(p, NewState(p))
}

func TestAssess_LowAnxietyAlwaysResponds(t *testing.T) {
	b := newTestBudget()
	d := b.Assess("hello", QuestionContext{QuestionType: "standard"}, 100)
	assert.True(t, d.ShouldRespond)
	assert.Greater(t, d.TokenBudget, 0)
}

func TestAssess_DebtOnlyRespondsToHighValue(t *testing.T) {
	p := DefaultParams()
	s := NewState(p)
	s.CurrentTokenPool = p.EmergencyTokenReserve // exactly at reserve
	b := New(p, s)

	low := b.Assess("hi", QuestionContext{QuestionType: "casual_question"}, 100)
	assert.False(t, low.ShouldRespond)

	high := b.Assess("deep question", QuestionContext{QuestionType: "philosophical", EmotionalTone: "curious"}, 100)
	assert.True(t, high.ShouldRespond)
}

func TestProcessResponseResult_KarmaNeverNegative(t *testing.T) {
	b := newTestBudget()
	r := b.ProcessResponseResult(0.05, 500, 10.0, QuestionContext{}, time.Now())
	assert.GreaterOrEqual(t, r.KarmaEarned, 0.0)
}

func TestProcessResponseResult_ZeroTokenCostMaxEfficiency(t *testing.T) {
	b := newTestBudget()
	r := b.ProcessResponseResult(1.0, 0, 1.0, QuestionContext{}, time.Now())
	assert.Greater(t, r.KarmaEarned, 9.0) // base 10 + max efficiency bonus, minus small penalties
}

func TestAgeUp_AfterSustainedEfficiency(t *testing.T) {
	p := DefaultParams()
	s := NewState(p)
	b := New(p, s)

	now := time.Now()
	var last Result
	for i := 0; i < 30; i++ {
		last = b.ProcessResponseResult(1.0, 1, 0.5, QuestionContext{}, now)
		now = now.Add(time.Second)
	}
	require.True(t, last.Age >= 1)
	if last.AgedUp {
		assert.Equal(t, 2, b.State().Age)
		assert.Equal(t, 0.0, b.State().CurrentKarma)
		assert.Equal(t, b.State().MaxTokenPool, b.State().CurrentTokenPool)
	}
}

func TestAgeRegression_DisabledByDefaultNeverTriggers(t *testing.T) {
	p := DefaultParams()
	require.False(t, p.AgeRegressionEnabled)
	s := NewState(p)
	s.CurrentTokenPool = 0
	b := New(p, s)

	r := b.ProcessResponseResult(0.1, 100, 5.0, QuestionContext{}, time.Now())
	assert.False(t, r.Regressed)
	assert.Equal(t, 1, b.State().Age)
}

func TestAgeRegression_WhenEnabledAndPoolExhausted(t *testing.T) {
	p := DefaultParams()
	p.AgeRegressionEnabled = true
	s := NewState(p)
	s.Age = 2
	s.MaxTokenPool = int(float64(p.BaseTokenPool) * p.TokenPoolGrowthRate)
	s.CurrentTokenPool = 1
	b := New(p, s)

	r := b.ProcessResponseResult(0.01, 10, 1.0, QuestionContext{}, time.Now())
	assert.True(t, r.Regressed)
	assert.Equal(t, 1, b.State().Age)
	assert.Equal(t, 1, b.State().RegressionCount)
	assert.GreaterOrEqual(t, b.State().PermanentKnowledgeLevel, 2)
}

func TestAgeRegression_CannotGoBelowAgeOne(t *testing.T) {
	p := DefaultParams()
	p.AgeRegressionEnabled = true
	s := NewState(p)
	s.CurrentTokenPool = -100
	b := New(p, s)

	b.ProcessResponseResult(0.01, 10, 1.0, QuestionContext{}, time.Now())
	assert.Equal(t, 1, b.State().Age)
}

func TestSurvivalThresholdBounds(t *testing.T) {
	b := newTestBudget()
	now := time.Now()
	for i := 0; i < 15; i++ {
		b.ProcessResponseResult(1.0, 1, 0.1, QuestionContext{}, now)
		now = now.Add(time.Second)
	}
	st := b.State().SurvivalThreshold
	assert.GreaterOrEqual(t, st, 0.1)
	assert.LessOrEqual(t, st, 2.0)
}
