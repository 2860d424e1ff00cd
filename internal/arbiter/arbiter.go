// Package arbiter implements the internal critic and teacher: it grades a
// response against a generated gold standard, converts the grade into a
// karma delta, and hands the resulting lesson to the CFIA/lesson subsystems
// for storage.
package arbiter

import (
	"context"
	"strings"
	"time"
)

// GoldStandardGenerator produces the reference answer a response is graded
// against. Implementations call out to a configured LLM backend.
type GoldStandardGenerator interface {
	Generate(ctx context.Context, userPrompt, response string) (string, error)
}

// QualityJudge scores a response against a gold standard in [0, 1].
// Implementations call out to a configured LLM backend.
type QualityJudge interface {
	Score(ctx context.Context, response, goldStandard string) (float64, error)
}

// EmergenceZoneChecker reports whether the system is currently in a bypass
// zone where Gold Standard assessment is skipped in favor of unconditional
// reward (curiosity/creative breakthroughs are not penalized).
type EmergenceZoneChecker interface {
	ActiveZone() (zone string, active bool)
}

// Lesson is one stored triplet: the prompt, the response that was actually
// given, and the gold standard it was graded against.
type Lesson struct {
	OriginalPrompt string
	Response       string
	GoldStandard   string
	UtilityScore   float64
	KarmaDelta     float64
	Timestamp      time.Time
	ContextTags    []string
}

// Assessment is the Arbiter's verdict on one response.
type Assessment struct {
	GoldStandard  string
	UtilityScore  float64
	KarmaDelta    float64
	EfficiencyGap float64
	QualityGap    float64
	Reasoning     string
	Lesson        Lesson
}

// AdaptiveThresholds self-tune based on recent assessment history.
type AdaptiveThresholds struct {
	UtilityThreshold    float64
	EfficiencyThreshold float64
	PenaltyScaling      float64
}

// DefaultAdaptiveThresholds returns the baseline tuning values.
func DefaultAdaptiveThresholds() AdaptiveThresholds {
	return AdaptiveThresholds{UtilityThreshold: 0.2, EfficiencyThreshold: 0.3, PenaltyScaling: 1.0}
}

// LearningRecord is one historical assessment kept for adaptive tuning.
type LearningRecord struct {
	UtilityScore    float64
	EfficiencyRatio float64
	KarmaDelta      float64
}

// ShadowScore is a per-request observational record of one assessment,
// classifying the response as an empathy choice (high spend on emotionally
// loaded prompts) and/or an efficiency choice (high utility at low spend).
// It is diagnostic only and never feeds back into the response path.
type ShadowScore struct {
	Timestamp          time.Time
	IsEmpathyChoice    bool
	IsEfficiencyChoice bool
	Utility            float64
	KarmaDelta         float64
	TTEUsed            int
	MaxTTE             int
	Trait              string
}

// TraitLedger accumulates running karma cost/gain per personality trait from
// the shadow score stream.
type TraitLedger struct {
	Count      int
	KarmaTotal float64
	KarmaGain  float64
	KarmaCost  float64
}

// ShadowScoreReport summarizes the shadow score ledger accumulated so far.
type ShadowScoreReport struct {
	TotalRecords      int
	EmpathyChoices    int
	EfficiencyChoices int
	ByTrait           map[string]TraitLedger
}

// Arbiter is the stateful assessment engine. Not safe for concurrent use;
// callers serialize access to a single generation's Arbiter.
type Arbiter struct {
	gold         GoldStandardGenerator
	judge        QualityJudge
	zones        EmergenceZoneChecker
	thresholds   AdaptiveThresholds
	history      []LearningRecord
	shadowScores []ShadowScore

	goldCache  *fifoCache[string]
	judgeCache *fifoCache[float64]
}

const maxLearningHistory = 50
const maxShadowScoreHistory = 1000
const maxAssessmentCacheEntries = 500

// fifoCache is a bounded key/value cache with FIFO eviction: once full, the
// oldest inserted key is dropped to make room for the newest, regardless of
// access recency. Not safe for concurrent use; the Arbiter serializes access
// to it the same way it serializes everything else.
type fifoCache[V any] struct {
	limit   int
	entries map[string]V
	order   []string
}

func newFIFOCache[V any](limit int) *fifoCache[V] {
	return &fifoCache[V]{limit: limit, entries: make(map[string]V, limit)}
}

func (c *fifoCache[V]) get(key string) (V, bool) {
	v, ok := c.entries[key]
	return v, ok
}

func (c *fifoCache[V]) put(key string, value V) {
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = value
	for len(c.order) > c.limit {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// cacheKey identifies one (prompt, response) assessment for gold-standard and
// quality-judgment caching. A null byte separator avoids accidental collision
// between a prompt/response pair and its concatenation under a different split.
func cacheKey(userPrompt, response string) string {
	return userPrompt + "\x00" + response
}

// New constructs an Arbiter. gold and judge may be nil, in which case the
// rule-based fallback gold standard is used and quality defaults to the
// harsh 0.1 floor, matching the reference implementation's failure path.
func New(gold GoldStandardGenerator, judge QualityJudge, zones EmergenceZoneChecker) *Arbiter {
	return &Arbiter{
		gold:       gold,
		judge:      judge,
		zones:      zones,
		thresholds: DefaultAdaptiveThresholds(),
		goldCache:  newFIFOCache[string](maxAssessmentCacheEntries),
		judgeCache: newFIFOCache[float64](maxAssessmentCacheEntries),
	}
}

// AssessResponse is the core per-response Arbiter function. trait carries the
// question-type:emotional-tone hint (e.g. "philosophical:curious") used only
// to key the shadow score ledger; pass "" if unknown.
func (a *Arbiter) AssessResponse(ctx context.Context, userPrompt, response string, tteUsed, maxTTE int, rvcGrade string, now time.Time, trait string) Assessment {
	if a.zones != nil {
		if zone, active := a.zones.ActiveZone(); active {
			_ = zone
			assessment := a.emergenceBypass(userPrompt, response, now)
			a.recordShadowScore(assessment, tteUsed, maxTTE, now, trait)
			return assessment
		}
	}

	goldStandard := a.generateGoldStandard(ctx, userPrompt, response)
	quality := a.judgeQuality(ctx, response, goldStandard)
	utility := calculateUtilityScore(quality, tteUsed, maxTTE)
	karmaDelta := a.calculateKarmaDelta(utility, tteUsed, maxTTE, rvcGrade)

	lesson := Lesson{
		OriginalPrompt: userPrompt,
		Response:       response,
		GoldStandard:   goldStandard,
		UtilityScore:   utility,
		KarmaDelta:     karmaDelta,
		Timestamp:      now,
		ContextTags:    ExtractContextTags(userPrompt),
	}

	assessment := Assessment{
		GoldStandard:  goldStandard,
		UtilityScore:  utility,
		KarmaDelta:    karmaDelta,
		EfficiencyGap: maxFloat(0, 1.0-utility),
		QualityGap:    calculateQualityGap(response, goldStandard),
		Reasoning:     assessmentReasoning(utility, karmaDelta, tteUsed, maxTTE),
		Lesson:        lesson,
	}
	a.recordShadowScore(assessment, tteUsed, maxTTE, now, trait)
	return assessment
}

// recordShadowScore appends the diagnostic shadow-score record for this
// assessment, classifying it as an empathy and/or efficiency choice.
func (a *Arbiter) recordShadowScore(assessment Assessment, tteUsed, maxTTE int, now time.Time, trait string) {
	var ratio float64
	if maxTTE > 0 {
		ratio = float64(tteUsed) / float64(maxTTE)
	}
	isEmpathy := strings.Contains(strings.ToLower(trait), "emotional") && ratio >= 0.5
	isEfficiency := assessment.UtilityScore >= 0.7 && ratio <= 0.3

	a.shadowScores = append(a.shadowScores, ShadowScore{
		Timestamp:          now,
		IsEmpathyChoice:    isEmpathy,
		IsEfficiencyChoice: isEfficiency,
		Utility:            assessment.UtilityScore,
		KarmaDelta:         assessment.KarmaDelta,
		TTEUsed:            tteUsed,
		MaxTTE:             maxTTE,
		Trait:              trait,
	})
	if len(a.shadowScores) > maxShadowScoreHistory {
		a.shadowScores = a.shadowScores[len(a.shadowScores)-maxShadowScoreHistory:]
	}
}

// GetShadowScoreReport summarizes the accumulated shadow score ledger. It is
// diagnostic only: never consumed by the response path, only by operators.
func (a *Arbiter) GetShadowScoreReport() ShadowScoreReport {
	report := ShadowScoreReport{
		TotalRecords: len(a.shadowScores),
		ByTrait:      make(map[string]TraitLedger),
	}
	for _, s := range a.shadowScores {
		if s.IsEmpathyChoice {
			report.EmpathyChoices++
		}
		if s.IsEfficiencyChoice {
			report.EfficiencyChoices++
		}
		trait := s.Trait
		if trait == "" {
			trait = "unknown"
		}
		ledger := report.ByTrait[trait]
		ledger.Count++
		ledger.KarmaTotal += s.KarmaDelta
		if s.KarmaDelta > 0 {
			ledger.KarmaGain += s.KarmaDelta
		} else {
			ledger.KarmaCost += -s.KarmaDelta
		}
		report.ByTrait[trait] = ledger
	}
	return report
}

func (a *Arbiter) emergenceBypass(userPrompt, response string, now time.Time) Assessment {
	lesson := Lesson{
		OriginalPrompt: userPrompt,
		Response:       response,
		GoldStandard:   "EMERGENCE_ZONE_BYPASS",
		UtilityScore:   1.0,
		KarmaDelta:     0.0,
		Timestamp:      now,
		ContextTags:    ExtractContextTags(userPrompt),
	}
	return Assessment{
		GoldStandard:  lesson.GoldStandard,
		UtilityScore:  1.0,
		KarmaDelta:    0.0,
		EfficiencyGap: 0.0,
		QualityGap:    0.0,
		Reasoning:     "emergence zone active: gold-standard assessment bypassed",
		Lesson:        lesson,
	}
}

func (a *Arbiter) generateGoldStandard(ctx context.Context, userPrompt, response string) string {
	key := cacheKey(userPrompt, response)
	if gs, ok := a.goldCache.get(key); ok {
		return gs
	}

	gs := fallbackGoldStandard(userPrompt)
	if a.gold != nil {
		if generated, err := a.gold.Generate(ctx, userPrompt, response); err == nil {
			gs = strings.Trim(generated, `"`)
		}
	}
	a.goldCache.put(key, gs)
	return gs
}

func (a *Arbiter) judgeQuality(ctx context.Context, response, goldStandard string) float64 {
	key := cacheKey(response, goldStandard)
	if score, ok := a.judgeCache.get(key); ok {
		return score
	}

	score := 0.1
	if a.judge != nil {
		if judged, err := a.judge.Score(ctx, response, goldStandard); err == nil {
			score = clamp01(judged)
		}
	}
	a.judgeCache.put(key, score)
	return score
}

// fallbackGoldStandard mirrors the rule-based reference answer used when no
// backend is configured or the call fails.
func fallbackGoldStandard(userPrompt string) string {
	lower := strings.ToLower(userPrompt)
	switch {
	case containsAny(lower, "hello", "hi", "hey", "how are you"):
		return "Hi! I'm doing well, thanks for asking. How can I help you today?"
	case containsAny(lower, "pizza", "food", "like", "favorite"):
		return "That sounds good! I enjoy discussing food and preferences. What's your favorite type?"
	case containsAny(lower, "explain", "how does", "machine learning", "artificial intelligence"):
		return "Machine learning is a subset of AI where algorithms learn patterns from data to make predictions or decisions without explicit programming."
	case containsAny(lower, "intelligence", "ai", "artificial", "opinion", "think"):
		return "Artificial intelligence is one of the most fascinating fields of study, processing information through pattern recognition and language modeling."
	case containsAny(lower, "anxiety", "struggling", "advice", "help", "meaning of life"):
		return "I understand that existential anxiety can be overwhelming. You're not alone in these feelings; small steps and self-compassion can help."
	case containsAny(lower, "comprehensive", "analysis", "philosophical implications", "impact"):
		return "The emergence of artificial intelligence raises profound questions about computation, intelligence, and humanity's place in the technological universe."
	default:
		return "That's an interesting question about '" + userPrompt + "'. Let me think about that and give a thoughtful answer."
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// calculateUtilityScore blends quality (weighted 0.6) with a harshly banded
// efficiency component (weighted 0.4) that punishes both too-terse and
// too-verbose responses more than the middle of the range.
func calculateUtilityScore(qualityScore float64, tteUsed, maxTTE int) float64 {
	qualityComponent := qualityScore * 0.6

	var efficiencyComponent float64
	if maxTTE > 0 {
		ratio := minFloat(1.0, float64(tteUsed)/float64(maxTTE))
		switch {
		case ratio >= 0.5 && ratio <= 0.7:
			efficiencyComponent = 0.4
		case ratio < 0.2:
			efficiencyComponent = 0.0
		case ratio < 0.5:
			efficiencyComponent = 0.1
		default:
			efficiencyComponent = 0.05
		}
	}

	return minFloat(1.0, qualityComponent+efficiencyComponent)
}

// calculateQualityGap approximates closeness to the gold standard via word
// overlap, with penalties for known degenerate patterns.
func calculateQualityGap(response, goldStandard string) float64 {
	goldWords := wordSet(goldStandard)
	if len(goldWords) == 0 {
		return 0.0
	}
	responseWords := wordSet(response)

	overlap := 0
	for w := range responseWords {
		if _, ok := goldWords[w]; ok {
			overlap++
		}
	}
	score := float64(overlap) / float64(len(goldWords))

	lowerResponse := strings.ToLower(response)
	if strings.Contains(lowerResponse, "nice") && len(strings.Fields(response)) <= 5 {
		score *= 0.2
	}
	if hasBrokenGrammar(lowerResponse) {
		score *= 0.5
	}

	return minFloat(1.0, score)
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

var brokenGrammarPatterns = []string{
	"nice. self-acceptance",
	"weight existence",
	"intelligence product",
	"emergence artificial",
}

func hasBrokenGrammar(lowerResponse string) bool {
	for _, p := range brokenGrammarPatterns {
		if strings.Contains(lowerResponse, p) {
			return true
		}
	}
	return false
}

// calculateKarmaDelta converts a utility score (and RVC grade) into a karma
// delta. A passing RVC grade (A or B) returns the fixed grade reward plus the
// in-band efficiency bonus directly, without penalty scaling and without a
// learning record; otherwise the utility-band delta and efficiency-ratio
// penalties are multiplied by the current penalty-scaling factor and the
// assessment is recorded for adaptive tuning.
func (a *Arbiter) calculateKarmaDelta(utilityScore float64, tteUsed, maxTTE int, rvcGrade string) float64 {
	if rvcGrade == "A" || rvcGrade == "B" {
		baseReward := 1.0
		if rvcGrade == "A" {
			baseReward = 2.0
		}
		efficiencyBonus := 0.0
		if maxTTE > 0 {
			ratio := float64(tteUsed) / float64(maxTTE)
			if ratio >= 0.3 && ratio <= 0.8 {
				efficiencyBonus = 1.0
			}
		}
		return baseReward + efficiencyBonus
	}

	var karmaDelta float64
	switch {
	case utilityScore >= 0.8:
		karmaDelta = 5.0
	case utilityScore >= 0.6:
		karmaDelta = 2.0
	case utilityScore >= 0.4:
		karmaDelta = 0.0
	case utilityScore >= 0.2:
		karmaDelta = -0.05
	default:
		efficiencyGap := 0.2 - utilityScore
		karmaDelta = -0.1 - (efficiencyGap * 0.5)
	}

	var efficiencyRatio float64
	if maxTTE > 0 {
		efficiencyRatio = float64(tteUsed) / float64(maxTTE)
		switch {
		case efficiencyRatio > 1.5:
			over := (efficiencyRatio - 1.5) / 0.5
			karmaDelta -= 0.2 + over*0.3
		case efficiencyRatio > 1.2:
			over := (efficiencyRatio - 1.2) / 0.3
			karmaDelta -= 0.05 + over*0.15
		case efficiencyRatio > 1.0:
			over := (efficiencyRatio - 1.0) / 0.2
			karmaDelta -= 0.01 + over*0.04
		case efficiencyRatio < 0.05:
			under := (0.05 - efficiencyRatio) / 0.05
			karmaDelta -= 1.0 + under*1.0
		case efficiencyRatio < 0.1:
			under := (0.1 - efficiencyRatio) / 0.05
			karmaDelta -= 0.3 + under*0.7
		case efficiencyRatio < 0.2:
			under := (0.2 - efficiencyRatio) / 0.1
			karmaDelta -= 0.1 + under*0.2
		}
	}

	karmaDelta *= a.thresholds.PenaltyScaling

	a.recordLearning(LearningRecord{UtilityScore: utilityScore, EfficiencyRatio: efficiencyRatio, KarmaDelta: karmaDelta})

	return karmaDelta
}

func (a *Arbiter) recordLearning(r LearningRecord) {
	a.history = append(a.history, r)
	if len(a.history) > maxLearningHistory {
		a.history = a.history[len(a.history)-maxLearningHistory:]
	}
	if len(a.history) < 10 {
		return
	}

	recent := a.history[len(a.history)-10:]
	var sumUtility, sumEfficiency, sumKarma float64
	for _, h := range recent {
		sumUtility += h.UtilityScore
		sumEfficiency += h.EfficiencyRatio
		sumKarma += h.KarmaDelta
	}
	avgUtility := sumUtility / 10
	avgEfficiency := sumEfficiency / 10
	avgKarma := sumKarma / 10

	switch {
	case avgUtility < 0.1 && avgKarma < -3.0:
		a.thresholds.UtilityThreshold = maxFloat(0.1, a.thresholds.UtilityThreshold-0.01)
		a.thresholds.PenaltyScaling = maxFloat(0.5, a.thresholds.PenaltyScaling-0.05)
	case avgUtility > 0.3 && avgKarma > 0:
		a.thresholds.UtilityThreshold = minFloat(0.3, a.thresholds.UtilityThreshold+0.01)
		a.thresholds.PenaltyScaling = minFloat(1.5, a.thresholds.PenaltyScaling+0.02)
	}

	switch {
	case avgEfficiency < 0.2:
		a.thresholds.EfficiencyThreshold = maxFloat(0.1, a.thresholds.EfficiencyThreshold-0.02)
	case avgEfficiency > 0.8:
		a.thresholds.EfficiencyThreshold = minFloat(0.5, a.thresholds.EfficiencyThreshold+0.02)
	}
}

// Thresholds returns a copy of the current adaptive thresholds.
func (a *Arbiter) Thresholds() AdaptiveThresholds { return a.thresholds }

// ExtractContextTags derives coarse retrieval tags from a prompt, used as
// the tag-overlap fallback when richer retrieval is unavailable.
func ExtractContextTags(prompt string) []string {
	lower := strings.ToLower(prompt)
	var tags []string
	if containsAny(lower, "hello", "hi", "hey") {
		tags = append(tags, "greeting")
	}
	if containsAny(lower, "pizza", "food") {
		tags = append(tags, "food")
	}
	if containsAny(lower, "machine learning", "ai", "artificial intelligence") {
		tags = append(tags, "technical")
	}
	if containsAny(lower, "intelligence", "philosophy", "meaning") {
		tags = append(tags, "philosophical")
	}
	if containsAny(lower, "anxiety", "help", "advice") {
		tags = append(tags, "emotional_support")
	}
	return tags
}

func assessmentReasoning(utility, karmaDelta float64, tteUsed, maxTTE int) string {
	var b strings.Builder
	switch {
	case utility >= 0.8:
		b.WriteString("high utility response")
	case utility >= 0.6:
		b.WriteString("good utility response")
	case utility >= 0.4:
		b.WriteString("neutral utility response")
	case utility >= 0.2:
		b.WriteString("below-threshold response, trivial penalty")
	default:
		b.WriteString("low utility response")
	}
	if maxTTE > 0 {
		ratio := float64(tteUsed) / float64(maxTTE)
		switch {
		case ratio > 1.0:
			b.WriteString("; overspent token budget")
		case ratio < 0.2:
			b.WriteString("; underused token budget")
		}
	}
	if karmaDelta < 0 {
		b.WriteString("; karma penalty applied")
	} else if karmaDelta > 0 {
		b.WriteString("; karma reward applied")
	}
	return b.String()
}

func clamp01(v float64) float64 {
	if v > 1.0 {
		v = v / 10.0
	}
	return maxFloat(0.0, minFloat(1.0, v))
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
