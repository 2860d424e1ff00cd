// Package rvc implements the Response Value Classifier: a deterministic
// mapping from user input to a complexity tier that bounds the token budget
// for the rest of the pipeline.
package rvc

import (
	"regexp"
	"strings"
)

// Tier is the closed set of response-value tiers.
type Tier string

const (
	Trivial  Tier = "trivial"
	Low      Tier = "low"
	Moderate Tier = "moderate"
	High     Tier = "high"
	Critical Tier = "critical"
	Maximum  Tier = "maximum"
)

// Assessment is the immutable result of classifying one piece of input.
type Assessment struct {
	Tier                  Tier
	ComplexityScore       float64
	EmotionalStakes       float64
	SemanticDensity       float64
	TargetTokenCount      int
	MaxTokenBudget        int
	EfficiencyRequirement float64
	Reasoning             string
	RecommendedStyle      string
}

type tokenBounds struct {
	target, max int
}

var tokenTiers = map[Tier]tokenBounds{
	Trivial:  {8, 15},
	Low:      {20, 35},
	Moderate: {50, 80},
	High:     {100, 200},
	Critical: {200, 400},
	Maximum:  {500, 1000},
}

var efficiencyRequirements = map[Tier]float64{
	Trivial:  0.6,
	Low:      0.15,
	Moderate: 0.25,
	High:     0.14,
	Critical: 0.15,
	Maximum:  0.10,
}

var responseStyles = map[Tier]string{
	Trivial:  "Concise and casual",
	Low:      "Brief and friendly",
	Moderate: "Balanced and informative",
	High:     "Substantial and thoughtful",
	Critical: "Comprehensive and deep",
	Maximum:  "Maximum complexity and depth",
}

type patternGroup struct {
	category string
	weight   float64
	patterns []*regexp.Regexp
}

func mustCompileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile("(?i)"+p))
	}
	return out
}

var complexityPatterns = []patternGroup{
	{"philosophical", 0.4, mustCompileAll([]string{
		`\b(what is the meaning of life|existential|purpose of existence|nature of reality)\b`,
		`\b(intelligence|existence|reality|truth|wisdom)\b`,
		`\b(paradox|contradiction|irony|sophistication)\b`,
		`\b(comprehensive analysis|philosophical implications|deep understanding)\b`,
	})},
	{"analytical", 0.3, mustCompileAll([]string{
		`\b(explain|how does|how do|what is|what are|can you explain|can you describe)\b`,
		`\b(analyze|examine|evaluate|assess|compare|contrast)\b`,
		`\b(cause|effect|consequence|result|outcome)\b`,
		`\b(pattern|trend|correlation|relationship)\b`,
		`\b(hypothesis|theory|concept|framework)\b`,
	})},
	{"emotional", 0.2, mustCompileAll([]string{
		`\b(feel|emotion|mood|state|experience)\b`,
		`\b(love|hate|fear|joy|sadness|anger|anxiety)\b`,
		`\b(relationship|connection|bond|attachment)\b`,
		`\b(support|help|comfort|understanding)\b`,
	})},
	{"technical", 0.25, mustCompileAll([]string{
		`\b(how to|tutorial|guide|instruction|process)\b`,
		`\b(technical|scientific|mathematical|logical)\b`,
		`\b(algorithm|method|technique|approach)\b`,
		`\b(implementation|execution|performance)\b`,
	})},
}

var trivialPatterns = mustCompileAll([]string{
	`^(hi|hello|hey|sup|what's up)\b`,
	`^(how are you|how's it going|how do you do)\b`,
	`^(thanks|thank you|thx)\b`,
	`^(ok|okay|alright|sure|yes|no)\b`,
	`^(good|bad|fine|ok|cool)\b`,
	`^(lol|lmao|haha|hehe)\b`,
	`^(bye|goodbye|see you|later)\b`,
})

var highStakesPatterns = mustCompileAll([]string{
	`\b(crisis|emergency|urgent|critical|serious)\b`,
	`\b(problem|issue|challenge|difficulty|struggle)\b`,
	`\b(help|support|advice|guidance|assistance)\b`,
	`\b(personal|private|confidential|sensitive)\b`,
	`\b(important|significant|meaningful|valuable)\b`,
	`\b(anxiety|overwhelmed|drowning|hard time|disappear)\b`,
	`\b(crawl under|blanket|feel like|can't|don't know)\b`,
	`\b(relationship|family|work|health|mental|emotional)\b`,
	`\b(trauma|ptsd|depression|panic|fear|worry)\b`,
})

var mediumStakesPatterns = mustCompileAll([]string{
	`\b(question|ask|wonder|curious|think|opinion)\b`,
	`\b(like|dislike|prefer|enjoy|hate|love)\b`,
	`\b(experience|feeling|emotion|mood|state)\b`,
})

var lowStakesPatterns = mustCompileAll([]string{
	`\b(casual|informal|just|simply|basic)\b`,
	`\b(quick|brief|short|simple|easy)\b`,
	`\b(chat|talk|conversation|discussion)\b`,
	`\b(hello|hi|hey|thanks|okay|sure)\b`,
})

var personalPronouns = regexp.MustCompile(`(?i)\b(i|me|my|myself|you|your|yourself)\b`)

var highComplexityDomains = map[string][]string{
	"physics":          {"quantum mechanics", "relativity theory", "thermodynamics", "electromagnetism", "particle physics"},
	"philosophy":       {"meaning of life", "nature of intelligence", "existential reality", "fundamental truth", "free will"},
	"mathematics":      {"calculus", "advanced algebra", "complex equation", "mathematical proof", "theoretical formula"},
	"computer_science": {"machine learning", "neural network", "artificial intelligence", "programming", "algorithm", "data"},
	"biology":          {"evolutionary biology", "molecular genetics", "cellular biology", "organism development"},
	"chemistry":        {"molecular compound", "chemical reaction", "organic synthesis", "catalyst"},
}

var commonWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {}, "at": {},
	"to": {}, "for": {}, "of": {}, "with": {}, "by": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {},
	"will": {}, "would": {}, "could": {}, "should": {}, "may": {}, "might": {}, "can": {},
	"this": {}, "that": {}, "these": {}, "those": {},
}

// Classifier is stateless and safe for concurrent use.
type Classifier struct{}

// New returns a ready-to-use Classifier.
func New() *Classifier {
	return &Classifier{}
}

// Classify is total: every input, including the empty string, produces an Assessment.
func (c *Classifier) Classify(userInput string) Assessment {
	normalized := strings.ToLower(strings.TrimSpace(userInput))

	complexity := complexityScore(normalized)
	stakes := emotionalStakes(normalized)
	density := semanticDensity(normalized)
	tier := determineTier(complexity, stakes, density)

	bounds := tokenTiers[tier]
	return Assessment{
		Tier:                  tier,
		ComplexityScore:       complexity,
		EmotionalStakes:       stakes,
		SemanticDensity:       density,
		TargetTokenCount:      bounds.target,
		MaxTokenBudget:        bounds.max,
		EfficiencyRequirement: efficiencyRequirements[tier],
		Reasoning:             reasoning(tier, complexity, stakes, density),
		RecommendedStyle:      responseStyles[tier],
	}
}

// EfficiencyValidation is the post-generation efficiency check against an
// Assessment's requirement, with a letter grade the Arbiter uses for its
// passing-grade karma shortcut.
type EfficiencyValidation struct {
	MeetsRequirement    bool
	ActualEfficiency    float64
	RequiredEfficiency  float64
	EfficiencyGap       float64
	TokenUsageAppropriate bool
	OverspendPenalty    int
	Grade               string
}

// ValidateEfficiency scores how efficiently a response met its assessed
// tier's requirement, given the tokens actually spent and the quality score
// assigned by the Arbiter.
func ValidateEfficiency(a Assessment, actualTokens int, qualityScore float64) EfficiencyValidation {
	tokens := actualTokens
	if tokens < 1 {
		tokens = 1
	}
	efficiency := qualityScore / float64(tokens)

	overspend := actualTokens - a.MaxTokenBudget
	if overspend < 0 {
		overspend = 0
	}

	return EfficiencyValidation{
		MeetsRequirement:      efficiency >= a.EfficiencyRequirement,
		ActualEfficiency:      efficiency,
		RequiredEfficiency:    a.EfficiencyRequirement,
		EfficiencyGap:         a.EfficiencyRequirement - efficiency,
		TokenUsageAppropriate: actualTokens <= a.MaxTokenBudget,
		OverspendPenalty:      overspend,
		Grade:                 efficiencyGrade(efficiency),
	}
}

func efficiencyGrade(efficiency float64) string {
	switch {
	case efficiency >= 0.9:
		return "A"
	case efficiency >= 0.8:
		return "B"
	case efficiency >= 0.7:
		return "C"
	case efficiency >= 0.6:
		return "D"
	default:
		return "F"
	}
}

func isTrivial(text string) bool {
	for _, p := range trivialPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func complexityScore(text string) float64 {
	if isTrivial(text) {
		return 0.005
	}

	domainComplexity := 0.0
	for _, keywords := range highComplexityDomains {
		matches := 0
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				matches++
			}
		}
		if matches > 0 {
			candidate := 0.60 + float64(matches)*0.10
			if candidate > domainComplexity {
				domainComplexity = candidate
			}
		}
	}

	score := 0.0
	for _, group := range complexityPatterns {
		for _, p := range group.patterns {
			matches := len(p.FindAllStringIndex(text, -1))
			score += float64(matches) * group.weight
		}
	}

	wordCount := len(strings.Fields(text))
	switch {
	case wordCount > 20:
		score += 0.15
	case wordCount > 10:
		score += 0.05
	}

	questionCount := strings.Count(text, "?")
	switch {
	case questionCount > 2:
		score += 0.2
	case questionCount > 0:
		score += 0.05
	}

	if domainComplexity > 0 {
		return min1(domainComplexity + score*0.1)
	}
	return min1(score)
}

func emotionalStakes(text string) float64 {
	score := 0.0
	for _, p := range highStakesPatterns {
		score += float64(len(p.FindAllStringIndex(text, -1))) * 0.4
	}
	for _, p := range mediumStakesPatterns {
		score += float64(len(p.FindAllStringIndex(text, -1))) * 0.15
	}
	for _, p := range lowStakesPatterns {
		score -= float64(len(p.FindAllStringIndex(text, -1))) * 0.1
	}
	score += float64(len(personalPronouns.FindAllStringIndex(text, -1))) * 0.05

	if score < 0 {
		return 0
	}
	return min1(score)
}

func semanticDensity(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	if isTrivial(text) {
		return 0.01
	}
	meaningful := 0
	for _, w := range words {
		if _, common := commonWords[strings.ToLower(w)]; !common {
			meaningful++
		}
	}
	return min1(float64(meaningful) / float64(len(words)))
}

func determineTier(complexity, stakes, density float64) Tier {
	combined := complexity*0.5 + stakes*0.3 + density*0.2
	switch {
	case combined >= 0.75:
		return Maximum
	case combined >= 0.55:
		return Critical
	case combined >= 0.35:
		return High
	case combined >= 0.25:
		return Moderate
	case combined >= 0.12:
		return Low
	default:
		return Trivial
	}
}

func reasoning(tier Tier, complexity, stakes, density float64) string {
	var b strings.Builder
	switch tier {
	case Trivial:
		b.WriteString("trivial input: minimal response warranted")
	case Low:
		b.WriteString("low complexity: brief response sufficient")
	case Moderate:
		b.WriteString("moderate complexity: balanced response needed")
	case High:
		b.WriteString("high complexity/stakes: substantial response needed")
	case Critical:
		b.WriteString("critical stakes or complexity: comprehensive response needed")
	case Maximum:
		b.WriteString("maximum complexity: deep analysis needed")
	}
	if complexity > 0.5 {
		b.WriteString("; high complexity detected")
	}
	if stakes > 0.5 {
		b.WriteString("; high emotional stakes detected")
	}
	if density > 0.5 {
		b.WriteString("; high semantic density detected")
	}
	return b.String()
}

func min1(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}
