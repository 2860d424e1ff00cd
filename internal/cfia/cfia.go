// Package cfia implements the Constrained Factorial Intelligence Architecture:
// the factorial file-granularity manager and generational karma lifecycle
// that governs how the lesson cache grows and resets.
package cfia

import (
	"fmt"
	"math"
	"time"
)

// FileInfo describes one lesson-cache shard's metadata. The shard's actual
// content lives in a lesson.Store; CFIA tracks only size/count bookkeeping.
type FileInfo struct {
	FileID       string
	SizeKB       float64
	ContentCount int
	LastAccessed time.Time
	SplitCount   int
}

// State is the persistent CFIA state.
type State struct {
	AIIQ                int
	Alpha               float64
	TotalFiles          int
	CurrentThresholdKB  float64
	LastAIIQIncrement   time.Time
	GenerationSeed      int
	KarmaPool           float64
	GenerationBirthTime time.Time
	FileRegistry        map[string]FileInfo
}

// NewState returns the initial Generation-2 state with one empty shard.
func NewState(seed int, now time.Time) State {
	return State{
		AIIQ:                2,
		Alpha:               0.15,
		TotalFiles:          1,
		CurrentThresholdKB:  1000.0,
		LastAIIQIncrement:   now,
		GenerationSeed:      seed,
		KarmaPool:           100.0,
		GenerationBirthTime: now,
		FileRegistry: map[string]FileInfo{
			"file_1": {FileID: "file_1", LastAccessed: now},
		},
	}
}

// SeedGenerator produces a new generation-seed value on demand (1000-9999 in
// the reference implementation).
type SeedGenerator func() int

// CFIA is the stateful factorial-lifecycle engine. Not safe for concurrent use.
type CFIA struct {
	state State
	seed  SeedGenerator
}

// New constructs a CFIA from explicit state (e.g. loaded from disk).
func New(s State, seed SeedGenerator) *CFIA {
	if seed == nil {
		seed = func() int { return 1000 }
	}
	return &CFIA{state: s, seed: seed}
}

// State returns a copy of the current persistent state.
func (c *CFIA) State() State { return c.state }

// TargetFileCount returns factorial(AIIQ), the file-count milestone for the
// current generation.
func (c *CFIA) TargetFileCount() int {
	return factorial(c.state.AIIQ)
}

func factorial(n int) int {
	if n <= 1 {
		return 1
	}
	result := 1
	for i := 2; i <= n; i++ {
		result *= i
	}
	return result
}

// granularityFactor implements the fixed lookup table for AIIQ in {2,3,4} and
// the 1/(n*n!) formula for AIIQ > 4.
func granularityFactor(n int) float64 {
	switch n {
	case 2:
		return 0.375
	case 3:
		return 0.167
	case 4:
		return 0.0625
	}
	if n > 4 {
		return (1.0 / float64(n)) * (1.0 / float64(factorial(n)))
	}
	return 0.0625
}

// GranularityThreshold returns the effective per-shard write ceiling for the
// current generation.
func (c *CFIA) GranularityThreshold() float64 {
	return c.state.CurrentThresholdKB * granularityFactor(c.state.AIIQ)
}

// SelectTargetFile picks the shard with the most available space, or reports
// that a new empty shard must be created (created=true; the caller is
// responsible for creating the physical shard and then calling
// RegisterNewFile).
func (c *CFIA) SelectTargetFile() (fileID string, created bool) {
	if len(c.state.FileRegistry) == 0 {
		return c.nextFileID(), true
	}
	best := ""
	bestSpace := 0.0
	for id, info := range c.state.FileRegistry {
		available := c.state.CurrentThresholdKB - info.SizeKB
		if available > bestSpace {
			bestSpace = available
			best = id
		}
	}
	if best == "" {
		return c.nextFileID(), true
	}
	return best, false
}

func (c *CFIA) nextFileID() string {
	return fmt.Sprintf("file_%d", c.state.TotalFiles)
}

// RegisterNewFile adds a freshly created empty shard to the registry.
func (c *CFIA) RegisterNewFile(fileID string, now time.Time) {
	c.state.FileRegistry[fileID] = FileInfo{FileID: fileID, LastAccessed: now}
}

// Plan is the result of evaluating whether adding lessonKB to targetFile
// requires a split, computed before any mutation.
type Plan struct {
	TargetFile        string
	CurrentSizeKB     float64
	ProjectedSizeKB   float64
	GranularityThresh float64
	SplitRequired     bool
}

// PlanLessonAddition evaluates (without mutating state) whether adding a
// lesson of the given size to targetFile would exceed the granularity
// threshold.
func (c *CFIA) PlanLessonAddition(targetFile string, lessonKB float64) Plan {
	current := c.state.FileRegistry[targetFile].SizeKB
	threshold := c.GranularityThreshold()
	projected := current + lessonKB
	return Plan{
		TargetFile:        targetFile,
		CurrentSizeKB:     current,
		ProjectedSizeKB:    projected,
		GranularityThresh: threshold,
		SplitRequired:     projected > threshold,
	}
}

// CommitSimpleAddition records a lesson addition that did not require a split.
func (c *CFIA) CommitSimpleAddition(fileID string, lessonKB float64, now time.Time) {
	info := c.state.FileRegistry[fileID]
	info.FileID = fileID
	info.SizeKB += lessonKB
	info.ContentCount++
	info.LastAccessed = now
	c.state.FileRegistry[fileID] = info
}

// AIIQIncrement describes a generation-boundary event triggered purely by the
// file-count milestone (not karma depletion/success — see UpdateKarmaPool).
type AIIQIncrement struct {
	Occurred     bool
	OldAIIQ      int
	NewAIIQ      int
	NewThreshold float64
}

// SplitResult is returned by CommitSplit.
type SplitResult struct {
	FileDeleted      string
	NewFileA         string
	NewFileB         string
	AIIQIncremented  AIIQIncrement
}

// CommitSplit records a shard split: the caller has already partitioned the
// shard's content on disk into two new shards; CommitSplit updates the
// registry, bumps TotalFiles, and checks the AIIQ-increment milestone.
func (c *CFIA) CommitSplit(oldFileID string, sizeAKB, sizeBKB float64, countA, countB int, now time.Time) SplitResult {
	fileAID := fmt.Sprintf("file_%d", c.state.TotalFiles+1)
	fileBID := fmt.Sprintf("file_%d", c.state.TotalFiles+2)

	prevSplitCount := c.state.FileRegistry[oldFileID].SplitCount
	delete(c.state.FileRegistry, oldFileID)

	c.state.FileRegistry[fileAID] = FileInfo{FileID: fileAID, SizeKB: sizeAKB, ContentCount: countA, LastAccessed: now, SplitCount: prevSplitCount + 1}
	c.state.FileRegistry[fileBID] = FileInfo{FileID: fileBID, SizeKB: sizeBKB, ContentCount: countB, LastAccessed: now, SplitCount: prevSplitCount + 1}

	c.state.TotalFiles++

	inc := AIIQIncrement{}
	if c.state.TotalFiles == factorial(c.state.AIIQ) {
		inc = c.incrementAIIQ(now)
	}

	return SplitResult{FileDeleted: oldFileID, NewFileA: fileAID, NewFileB: fileBID, AIIQIncremented: inc}
}

func (c *CFIA) incrementAIIQ(now time.Time) AIIQIncrement {
	old := c.state.AIIQ
	c.state.AIIQ++
	c.state.LastAIIQIncrement = now
	c.state.CurrentThresholdKB = c.calculateNewThreshold()
	return AIIQIncrement{Occurred: true, OldAIIQ: old, NewAIIQ: c.state.AIIQ, NewThreshold: c.state.CurrentThresholdKB}
}

// calculateNewThreshold implements T_n = T_{n-1} + T_{n-1}*(1/n)*alpha, with
// the fixed base of 1000 KB at AIIQ==2.
func (c *CFIA) calculateNewThreshold() float64 {
	n := c.state.AIIQ
	if n == 2 {
		return 1000.0
	}
	prev := c.state.CurrentThresholdKB
	increment := prev * (1.0 / float64(n)) * c.state.Alpha
	return prev + increment
}

// KarmaUpdate is returned by UpdateKarmaPool.
type KarmaUpdate struct {
	OldKarma          float64
	NewKarma          float64
	KarmaDelta        float64
	GenerationDied    bool
	GenerationSuccess bool
	GenerationReset   bool
}

// UpdateKarmaPool applies a karma delta to the generation's health pool and
// triggers a generational reset on death (karma <= 0) or success (file-count
// milestone reached), death taking priority.
func (c *CFIA) UpdateKarmaPool(delta float64, now time.Time) KarmaUpdate {
	old := c.state.KarmaPool
	c.state.KarmaPool = math.Max(0.0, c.state.KarmaPool+delta)

	result := KarmaUpdate{OldKarma: old, NewKarma: c.state.KarmaPool, KarmaDelta: delta}

	switch {
	case c.state.KarmaPool <= 0.0:
		result.GenerationDied = true
		result.GenerationReset = c.performGenerationalReset(now)
	case c.state.TotalFiles >= factorial(c.state.AIIQ):
		result.GenerationSuccess = true
		result.GenerationReset = c.performGenerationalReset(now)
	}

	return result
}

func (c *CFIA) performGenerationalReset(now time.Time) bool {
	c.state.AIIQ++
	c.state.GenerationSeed = c.seed()
	c.state.KarmaPool = 100.0
	c.state.GenerationBirthTime = now
	c.state.LastAIIQIncrement = now
	c.state.CurrentThresholdKB = c.calculateNewThreshold()
	return true
}

// GenerationStatus reports generation health for diagnostics (§4.5, §9).
type GenerationStatus struct {
	GenerationNumber int
	GenerationSeed   int
	KarmaPool        float64
	AgeSeconds       float64
	FilesCreated     int
	TargetFiles      int
	FilesRemaining   int
	IsAlive          bool
	IsSuccessful     bool
}

func (c *CFIA) GenerationStatus(now time.Time) GenerationStatus {
	target := factorial(c.state.AIIQ)
	return GenerationStatus{
		GenerationNumber: c.state.AIIQ,
		GenerationSeed:   c.state.GenerationSeed,
		KarmaPool:        c.state.KarmaPool,
		AgeSeconds:       now.Sub(c.state.GenerationBirthTime).Seconds(),
		FilesCreated:     c.state.TotalFiles,
		TargetFiles:      target,
		FilesRemaining:   target - c.state.TotalFiles,
		IsAlive:          c.state.KarmaPool > 0.0,
		IsSuccessful:     c.state.TotalFiles >= target,
	}
}
