package cfia

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedSeed(v int) SeedGenerator {
	return func() int { return v }
}

func TestNewState_Generation2Defaults(t *testing.T) {
	now := time.Now()
	s := NewState(1234, now)
	assert.Equal(t, 2, s.AIIQ)
	assert.Equal(t, 1, s.TotalFiles)
	assert.Equal(t, 1000.0, s.CurrentThresholdKB)
	assert.Equal(t, 100.0, s.KarmaPool)
	assert.Len(t, s.FileRegistry, 1)
}

func TestGranularityThreshold_KnownFactors(t *testing.T) {
	now := time.Now()
	c := New(NewState(1, now), fixedSeed(9999))
	assert.InDelta(t, 375.0, c.GranularityThreshold(), 1e-9) // 1000 * 0.375 at AIIQ=2
}

func TestPlanLessonAddition_NoSplitWhenUnderThreshold(t *testing.T) {
	now := time.Now()
	c := New(NewState(1, now), fixedSeed(9999))
	p := c.PlanLessonAddition("file_1", 10.0)
	assert.False(t, p.SplitRequired)
	assert.Equal(t, 10.0, p.ProjectedSizeKB)
}

func TestPlanLessonAddition_SplitWhenOverThreshold(t *testing.T) {
	now := time.Now()
	s := NewState(1, now)
	c := New(s, fixedSeed(9999))
	p := c.PlanLessonAddition("file_1", 400.0) // > 375 threshold at AIIQ 2
	assert.True(t, p.SplitRequired)
}

func TestCommitSimpleAddition_UpdatesRegistry(t *testing.T) {
	now := time.Now()
	c := New(NewState(1, now), fixedSeed(9999))
	c.CommitSimpleAddition("file_1", 50.0, now)
	assert.Equal(t, 50.0, c.State().FileRegistry["file_1"].SizeKB)
	assert.Equal(t, 1, c.State().FileRegistry["file_1"].ContentCount)
}

func TestCommitSplit_IncrementsTotalFilesAndRegistersNewShards(t *testing.T) {
	now := time.Now()
	c := New(NewState(1, now), fixedSeed(9999))
	result := c.CommitSplit("file_1", 200.0, 200.0, 3, 3, now)

	assert.Equal(t, "file_1", result.FileDeleted)
	assert.Equal(t, "file_2", result.NewFileA)
	assert.Equal(t, "file_3", result.NewFileB)
	assert.Equal(t, 2, c.State().TotalFiles)
	_, stillThere := c.State().FileRegistry["file_1"]
	assert.False(t, stillThere)
	assert.Len(t, c.State().FileRegistry, 2)
}

func TestCommitSplit_TriggersAIIQIncrementAtFactorialMilestone(t *testing.T) {
	now := time.Now()
	s := NewState(1, now)
	s.TotalFiles = 1 // factorial(2) == 2, so one more file triggers the increment
	c := New(s, fixedSeed(9999))

	result := c.CommitSplit("file_1", 100.0, 100.0, 1, 1, now)

	require.True(t, result.AIIQIncremented.Occurred)
	assert.Equal(t, 2, result.AIIQIncremented.OldAIIQ)
	assert.Equal(t, 3, result.AIIQIncremented.NewAIIQ)
	assert.Equal(t, 3, c.State().AIIQ)
}

func TestCalculateNewThreshold_FixedAtAIIQTwo(t *testing.T) {
	now := time.Now()
	c := New(NewState(1, now), fixedSeed(9999))
	assert.Equal(t, 1000.0, c.calculateNewThreshold())
}

func TestCalculateNewThreshold_GrowsAboveAIIQTwo(t *testing.T) {
	now := time.Now()
	s := NewState(1, now)
	s.AIIQ = 3
	s.CurrentThresholdKB = 1000.0
	c := New(s, fixedSeed(9999))

	got := c.calculateNewThreshold()
	want := 1000.0 + 1000.0*(1.0/3.0)*0.15
	assert.InDelta(t, want, got, 1e-9)
}

func TestUpdateKarmaPool_ClampsAtZero(t *testing.T) {
	now := time.Now()
	c := New(NewState(1, now), fixedSeed(9999))
	u := c.UpdateKarmaPool(-1000.0, now)
	assert.Equal(t, 0.0, u.NewKarma)
}

func TestUpdateKarmaPool_DeathTriggersGenerationalReset(t *testing.T) {
	now := time.Now()
	s := NewState(1, now)
	s.TotalFiles = 1 // below factorial(2)==2, so only death triggers reset here
	c := New(s, fixedSeed(4242))

	u := c.UpdateKarmaPool(-200.0, now.Add(time.Hour))

	require.True(t, u.GenerationDied)
	require.True(t, u.GenerationReset)
	assert.False(t, u.GenerationSuccess)
	assert.Equal(t, 3, c.State().AIIQ)
	assert.Equal(t, 4242, c.State().GenerationSeed)
	assert.Equal(t, 100.0, c.State().KarmaPool)
}

func TestUpdateKarmaPool_SuccessTriggersGenerationalReset(t *testing.T) {
	now := time.Now()
	s := NewState(1, now)
	s.TotalFiles = 2 // == factorial(2), milestone reached
	c := New(s, fixedSeed(7777))

	u := c.UpdateKarmaPool(1.0, now.Add(time.Hour))

	require.True(t, u.GenerationSuccess)
	require.True(t, u.GenerationReset)
	assert.False(t, u.GenerationDied)
	assert.Equal(t, 3, c.State().AIIQ)
	assert.Equal(t, 7777, c.State().GenerationSeed)
}

func TestUpdateKarmaPool_DeathTakesPriorityOverSuccess(t *testing.T) {
	now := time.Now()
	s := NewState(1, now)
	s.TotalFiles = 2 // also meets the success milestone
	s.KarmaPool = 50.0
	c := New(s, fixedSeed(1))

	u := c.UpdateKarmaPool(-100.0, now)

	assert.True(t, u.GenerationDied)
	assert.False(t, u.GenerationSuccess)
}

func TestGenerationStatus_ReportsHealth(t *testing.T) {
	now := time.Now()
	c := New(NewState(55, now), fixedSeed(1))
	status := c.GenerationStatus(now.Add(10 * time.Second))
	assert.Equal(t, 2, status.GenerationNumber)
	assert.Equal(t, 55, status.GenerationSeed)
	assert.True(t, status.IsAlive)
	assert.False(t, status.IsSuccessful)
	assert.Equal(t, 10.0, status.AgeSeconds)
	assert.Equal(t, 1, status.FilesRemaining)
}
