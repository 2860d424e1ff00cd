package arbiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedGold struct{ text string }

func (f fixedGold) Generate(ctx context.Context, userPrompt, response string) (string, error) {
	return f.text, nil
}

type fixedJudge struct{ score float64 }

func (f fixedJudge) Score(ctx context.Context, response, goldStandard string) (float64, error) {
	return f.score, nil
}

type alwaysZone struct{ zone string }

func (a alwaysZone) ActiveZone() (string, bool) { return a.zone, true }

type neverZone struct{}

func (neverZone) ActiveZone() (string, bool) { return "", false }

func TestAssessResponse_HighQualityGoodEfficiency(t *testing.T) {
	a := New(fixedGold{"a great reference answer"}, fixedJudge{0.9}, neverZone{})
	assessment := a.AssessResponse(context.Background(), "explain machine learning", "a solid response", 30, 50, "", time.Now(), "")
	assert.Greater(t, assessment.UtilityScore, 0.8)
	assert.Equal(t, 5.0, assessment.KarmaDelta)
}

func TestAssessResponse_NoBackendsUsesFallback(t *testing.T) {
	a := New(nil, nil, neverZone{})
	assessment := a.AssessResponse(context.Background(), "hello there", "hi!", 5, 50, "", time.Now(), "")
	assert.NotEmpty(t, assessment.GoldStandard)
	assert.InDelta(t, 0.1*0.6, assessment.UtilityScore, 0.2) // low quality floor dominates
}

func TestAssessResponse_EmergenceZoneBypassesGrading(t *testing.T) {
	a := New(fixedGold{"x"}, fixedJudge{0.0}, alwaysZone{"curiosity"})
	assessment := a.AssessResponse(context.Background(), "what is love", "a wandering reflection", 10, 50, "", time.Now(), "")
	assert.Equal(t, "EMERGENCE_ZONE_BYPASS", assessment.GoldStandard)
	assert.Equal(t, 1.0, assessment.UtilityScore)
	assert.Equal(t, 0.0, assessment.KarmaDelta)
}

func TestCalculateKarmaDelta_PassingGradeRewardsRegardlessOfUtility(t *testing.T) {
	a := New(nil, nil, neverZone{})
	delta := a.calculateKarmaDelta(0.1, 25, 50, "A")
	assert.Equal(t, 3.0, delta) // base 2.0 + efficiency bonus 1.0 (ratio 0.5 in [0.3,0.8])
}

func TestCalculateKarmaDelta_SevereOverspendPenalized(t *testing.T) {
	a := New(nil, nil, neverZone{})
	delta := a.calculateKarmaDelta(0.5, 100, 50, "") // ratio 2.0, utility band = 0.0
	assert.Less(t, delta, 0.0)
}

func TestExtractContextTags_MultiMatch(t *testing.T) {
	tags := ExtractContextTags("hi there, can you help with anxiety and machine learning?")
	assert.Contains(t, tags, "greeting")
	assert.Contains(t, tags, "technical")
	assert.Contains(t, tags, "emotional_support")
}

func TestCalculateUtilityScore_MiddleEfficiencyBandScoresHighest(t *testing.T) {
	mid := calculateUtilityScore(1.0, 30, 50) // ratio 0.6, in [0.5,0.7]
	low := calculateUtilityScore(1.0, 5, 50)  // ratio 0.1, < 0.2
	require.Greater(t, mid, low)
}

func TestAdaptiveThresholds_TightenAfterGoodPerformance(t *testing.T) {
	a := New(nil, nil, neverZone{})
	for i := 0; i < 12; i++ {
		a.calculateKarmaDelta(0.9, 30, 50, "")
	}
	assert.GreaterOrEqual(t, a.Thresholds().PenaltyScaling, 1.0)
}

func TestShadowScoreReport_ClassifiesEmpathyAndEfficiencyChoices(t *testing.T) {
	a := New(fixedGold{"a great reference answer"}, fixedJudge{1.0}, neverZone{})

	// High spend (ratio 0.9) on an emotionally-toned trait: empathy choice.
	a.AssessResponse(context.Background(), "I need help, feeling anxious", "a caring reply", 45, 50, "", time.Now(), "emotional:concerned")
	// High utility (0.7) at low spend (ratio 0.3): efficiency choice.
	a.AssessResponse(context.Background(), "explain machine learning", "a solid response", 15, 50, "", time.Now(), "technical:neutral")

	report := a.GetShadowScoreReport()
	assert.Equal(t, 2, report.TotalRecords)
	assert.Equal(t, 1, report.EmpathyChoices)
	assert.Equal(t, 1, report.EfficiencyChoices)
	assert.Contains(t, report.ByTrait, "emotional:concerned")
	assert.Contains(t, report.ByTrait, "technical:neutral")
}
